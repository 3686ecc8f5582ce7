package payment

import (
	"github.com/smallbiznis/vehicleguard/internal/payment/repository"
	"github.com/smallbiznis/vehicleguard/internal/payment/service"
	"github.com/smallbiznis/vehicleguard/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(webhook.NewService),
)
