package paymentevents

import (
	"context"

	"github.com/smallbiznis/vehicleguard/internal/paymentevents/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.events",
	fx.Provide(repository.Provide),
	fx.Provide(NewHub),
	fx.Provide(NewRelay),
	fx.Provide(NewSubscriber),
)

// RelayLoop drains the outbox. Run it in exactly one process per deployment.
var RelayLoop = fx.Invoke(func(lc fx.Lifecycle, relay *Relay) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			relay.Start()
			return nil
		},
		OnStop: relay.Stop,
	})
})

// SubscriberLoop feeds the local Hub from Redis for processes that serve SSE.
var SubscriberLoop = fx.Invoke(func(lc fx.Lifecycle, sub *Subscriber) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			sub.Start()
			return nil
		},
		OnStop: sub.Stop,
	})
})

// Stream starts both loops for single-process deployments.
var Stream = fx.Options(SubscriberLoop, RelayLoop)
