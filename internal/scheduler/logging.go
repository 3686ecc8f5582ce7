package scheduler

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	obscontext "github.com/smallbiznis/vehicleguard/internal/observability/context"
	obslogger "github.com/smallbiznis/vehicleguard/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/vehicleguard/internal/observability/metrics"
	"go.uber.org/zap"
)

// runStats tallies one job execution. It travels in the context so the
// per-company loops inside a job can add to it. All methods accept a nil receiver.
type runStats struct {
	job       string
	id        string
	batchSize int
	started   time.Time
	processed int
	errors    int
}

type runStatsKey struct{}

func (r *runStats) add(n int) {
	if r != nil && n > 0 {
		r.processed += n
	}
}

func (r *runStats) failed() {
	if r != nil {
		r.errors++
	}
}

func (r *runStats) runID() string {
	if r == nil {
		return ""
	}
	return r.id
}

func statsFrom(ctx context.Context) *runStats {
	run, _ := ctx.Value(runStatsKey{}).(*runStats)
	return run
}

// beginRun attaches fresh stats to ctx and logs the start. When ctx already
// carries stats the caller is nested inside another run and owner is false.
func (s *Scheduler) beginRun(ctx context.Context, job string, batchSize int) (_ context.Context, run *runStats, owner bool) {
	if run = statsFrom(ctx); run != nil {
		return ctx, run, false
	}
	run = &runStats{
		job:       job,
		id:        s.genID.Generate().String(),
		batchSize: batchSize,
		started:   s.clock.Now(),
	}
	ctx = context.WithValue(ctx, runStatsKey{}, run)
	ctx = obscontext.WithActor(ctx, "system", "scheduler")

	s.logger(ctx).Info("scheduler.job.start",
		zap.String("job", job),
		zap.String("run_id", run.id),
		zap.Int("batch_size", batchSize),
	)
	return ctx, run, true
}

// finishRun logs the tally, at warn level when any company failed.
func (s *Scheduler) finishRun(ctx context.Context, run *runStats) {
	fields := []zap.Field{
		zap.String("job", run.job),
		zap.String("run_id", run.id),
		zap.Duration("elapsed", s.clock.Now().Sub(run.started)),
		zap.Int("processed", run.processed),
		zap.Int("errors", run.errors),
	}
	if run.errors > 0 {
		s.logger(ctx).Warn("scheduler.job.finish", fields...)
		return
	}
	s.logger(ctx).Info("scheduler.job.finish", fields...)
}

// reportCompanyError records a failure for one company without aborting the job.
func (s *Scheduler) reportCompanyError(ctx context.Context, job, msg string, companyID snowflake.ID, err error, extra ...zap.Field) {
	run := statsFrom(ctx)
	run.failed()
	class := obsmetrics.ClassifyError(err)
	fields := append([]zap.Field{
		zap.String("job", job),
		zap.String("run_id", run.runID()),
		zap.String("error_type", class.Type),
		zap.String("error_reason", class.Reason),
		zap.Bool("retryable", class.Retryable),
		zap.Error(err),
	}, extra...)
	s.logger(s.tenantContext(ctx, companyID)).Error(msg, fields...)
}

func (s *Scheduler) tenantContext(ctx context.Context, companyID snowflake.ID) context.Context {
	if companyID == 0 {
		return ctx
	}
	return obscontext.WithCompanyID(ctx, companyID.String())
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}
