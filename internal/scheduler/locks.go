package scheduler

import (
	"context"

	obsmetrics "github.com/smallbiznis/vehicleguard/internal/observability/metrics"
	"github.com/smallbiznis/vehicleguard/internal/ratelimit"
	"go.uber.org/zap"
)

// acquireLease keeps one replica running a job at a time. Without Redis, or
// when Redis errors, every replica runs the job; the jobs are idempotent.
func (s *Scheduler) acquireLease(ctx context.Context, job string) (func(), bool) {
	noop := func() {}
	if !s.locker.Enabled() {
		return noop, true
	}

	lease, err := s.locker.TryLock(ctx, ratelimit.JobLeaseKey(job), s.cfg.LeaseTTL)
	if err != nil {
		s.logger(ctx).Warn("scheduler lease unavailable, running unlocked", zap.String("job", job), zap.Error(err))
		return noop, true
	}
	if lease == nil {
		obsmetrics.Scheduler().Defer(job, obsmetrics.DeferredLockHeld)
		return nil, false
	}

	return func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger(ctx).Warn("scheduler lease release failed", zap.String("job", job), zap.Error(err))
		}
	}, true
}
