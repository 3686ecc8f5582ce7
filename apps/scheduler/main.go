package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vehicleguard/internal/audit"
	"github.com/smallbiznis/vehicleguard/internal/cache"
	"github.com/smallbiznis/vehicleguard/internal/client"
	"github.com/smallbiznis/vehicleguard/internal/clock"
	"github.com/smallbiznis/vehicleguard/internal/company"
	"github.com/smallbiznis/vehicleguard/internal/config"
	"github.com/smallbiznis/vehicleguard/internal/contract"
	"github.com/smallbiznis/vehicleguard/internal/credential"
	"github.com/smallbiznis/vehicleguard/internal/migration"
	"github.com/smallbiznis/vehicleguard/internal/notification"
	"github.com/smallbiznis/vehicleguard/internal/observability"
	"github.com/smallbiznis/vehicleguard/internal/payment"
	"github.com/smallbiznis/vehicleguard/internal/paymentevents"
	"github.com/smallbiznis/vehicleguard/internal/providers"
	"github.com/smallbiznis/vehicleguard/internal/ratelimit"
	"github.com/smallbiznis/vehicleguard/internal/scheduler"
	"github.com/smallbiznis/vehicleguard/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		cache.Module,
		ratelimit.Module,

		// Domain services required by scheduler jobs and outbox handlers
		audit.Module,
		company.Module,
		client.Module,
		contract.Module,
		credential.Module,
		payment.Module,
		paymentevents.Module,
		notification.Module,
		providers.Module,

		// No server module!
		paymentevents.RelayLoop,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(3)
	if err != nil {
		panic(err)
	}
	return node
}
