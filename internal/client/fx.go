package client

import (
	"github.com/smallbiznis/vehicleguard/internal/client/repository"
	"github.com/smallbiznis/vehicleguard/internal/client/service"
	"go.uber.org/fx"
)

var Module = fx.Module("client.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
