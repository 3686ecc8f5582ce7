package notification

import (
	"github.com/smallbiznis/vehicleguard/internal/notification/domain"
	"github.com/smallbiznis/vehicleguard/internal/notification/repository"
	"github.com/smallbiznis/vehicleguard/internal/notification/service"
	"github.com/smallbiznis/vehicleguard/internal/payment/webhook"
	"github.com/smallbiznis/vehicleguard/internal/paymentevents"
	"go.uber.org/fx"
)

var Module = fx.Module("notification.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(func(svc domain.Service) webhook.PaidNotifier { return svc }),
	fx.Provide(
		fx.Annotate(
			func(svc domain.Service) paymentevents.Handler { return svc.(*service.Service) },
			fx.ResultTags(`group:"payment_event_handlers"`),
		),
	),
)
