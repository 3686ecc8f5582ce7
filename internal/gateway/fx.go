package gateway

import (
	"github.com/smallbiznis/vehicleguard/internal/gateway/adapters"
	"github.com/smallbiznis/vehicleguard/internal/gateway/asaas"
	"github.com/smallbiznis/vehicleguard/internal/gateway/gerencianet"
	"github.com/smallbiznis/vehicleguard/internal/gateway/inter"
	"github.com/smallbiznis/vehicleguard/internal/gateway/mercadopago"
	"github.com/smallbiznis/vehicleguard/internal/gateway/service"
	"go.uber.org/fx"
)

var Module = fx.Module("gateway.service",
	fx.Provide(func() *adapters.Registry {
		return adapters.NewRegistry(
			mercadopago.NewFactory(),
			asaas.NewFactory(),
			inter.NewFactory(),
			gerencianet.NewFactory(),
		)
	}),
	fx.Provide(service.New),
)
