package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vehicleguard/internal/apikey"
	"github.com/smallbiznis/vehicleguard/internal/audit"
	"github.com/smallbiznis/vehicleguard/internal/authorization"
	"github.com/smallbiznis/vehicleguard/internal/cache"
	"github.com/smallbiznis/vehicleguard/internal/client"
	"github.com/smallbiznis/vehicleguard/internal/clock"
	"github.com/smallbiznis/vehicleguard/internal/company"
	"github.com/smallbiznis/vehicleguard/internal/config"
	"github.com/smallbiznis/vehicleguard/internal/contract"
	"github.com/smallbiznis/vehicleguard/internal/credential"
	"github.com/smallbiznis/vehicleguard/internal/gateway"
	"github.com/smallbiznis/vehicleguard/internal/notification"
	"github.com/smallbiznis/vehicleguard/internal/observability"
	"github.com/smallbiznis/vehicleguard/internal/payment"
	"github.com/smallbiznis/vehicleguard/internal/paymentevents"
	"github.com/smallbiznis/vehicleguard/internal/plan"
	"github.com/smallbiznis/vehicleguard/internal/providers"
	"github.com/smallbiznis/vehicleguard/internal/ratelimit"
	"github.com/smallbiznis/vehicleguard/internal/server"
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
		cache.Module,
		ratelimit.Module,

		// Domain services behind the HTTP API
		audit.Module,
		authorization.Module,
		apikey.Module,
		company.Module,
		client.Module,
		plan.Module,
		contract.Module,
		credential.Module,
		gateway.Module,
		payment.Module,
		paymentevents.Module,
		notification.Module,
		providers.Module,

		// The scheduler process owns the outbox relay; this one only listens.
		paymentevents.SubscriberLoop,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}
