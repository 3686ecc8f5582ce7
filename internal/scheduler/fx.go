package scheduler

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(runLoop),
)

// runLoop ties the tick loop to the fx lifecycle. Stop cancels the loop and
// waits for the in-flight tick to return or for the stop deadline.
func runLoop(lc fx.Lifecycle, cfg Config, sched *Scheduler) {
	if !cfg.Enabled {
		sched.log.Info("scheduler disabled")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			sched.log.Info("scheduler started",
				zap.Duration("interval", sched.cfg.RunInterval),
				zap.Strings("jobs", sched.cfg.EnabledJobs),
			)
			go func() {
				defer close(done)
				sched.RunForever(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
				sched.log.Warn("scheduler stop timed out")
			}
			return nil
		},
	})
}
