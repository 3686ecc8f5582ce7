package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/vehicleguard/internal/audit/domain"
	"github.com/smallbiznis/vehicleguard/internal/auditcontext"
	"github.com/smallbiznis/vehicleguard/internal/clock"
	companydomain "github.com/smallbiznis/vehicleguard/internal/company/domain"
	"github.com/smallbiznis/vehicleguard/internal/companycontext"
	notificationdomain "github.com/smallbiznis/vehicleguard/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/vehicleguard/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/vehicleguard/internal/payment/domain"
	"github.com/smallbiznis/vehicleguard/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobNextChargeBackfill    = "next_charge_backfill"
	JobDispatchNotifications = "dispatch_notifications"
	JobMarkOverdue           = "mark_overdue"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log             *zap.Logger
	GenID           *snowflake.Node
	Clock           clock.Clock
	CompanySvc      companydomain.Service
	PaymentSvc      paymentdomain.Service
	NotificationSvc notificationdomain.Service
	AuditSvc        auditdomain.Service `optional:"true"`
	Locker          *ratelimit.Locker   `optional:"true"`
	Config          Config              `optional:"true"`
}

type Scheduler struct {
	log             *zap.Logger
	cfg             Config
	genID           *snowflake.Node
	clock           clock.Clock
	companySvc      companydomain.Service
	paymentSvc      paymentdomain.Service
	notificationSvc notificationdomain.Service
	auditSvc        auditdomain.Service
	locker          *ratelimit.Locker

	mu           sync.Mutex
	lastBackfill time.Time
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.CompanySvc == nil || p.PaymentSvc == nil || p.NotificationSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:             p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:             p.Config.withDefaults(),
		genID:           p.GenID,
		clock:           p.Clock,
		companySvc:      p.CompanySvc,
		paymentSvc:      p.PaymentSvc,
		notificationSvc: p.NotificationSvc,
		auditSvc:        p.AuditSvc,
		locker:          p.Locker,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	release, ok := s.acquireLease(parent, name)
	if !ok {
		s.logger(parent).Debug("scheduler job skipped, lease held elsewhere", zap.String("job", name))
		return nil
	}
	defer release()

	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx = auditcontext.WithActor(ctx, auditcontext.ActorTypeSystem, "scheduler")
	ctx, run, owner := s.beginRun(ctx, name, batchSize)
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.id),
	)

	err := fn(ctx)
	obsmetrics.Scheduler().ObserveJob(name, time.Since(start), err)
	if owner {
		if err != nil && run.errors == 0 {
			run.failed()
		}
		s.finishRun(ctx, run)
	}
	if err == nil {
		return nil
	}

	// deadline is a soft timeout; the next tick resumes the work
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		log.Warn("job timed out", zap.Duration("timeout", timeout), zap.Error(err))
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{JobMarkOverdue, s.isJobEnabled(JobMarkOverdue), func(ctx context.Context) error {
			return s.runJob(ctx, JobMarkOverdue, s.cfg.OverdueBatchSize, s.cfg.JobTimeout, s.MarkOverdueJob)
		}},
		{JobDispatchNotifications, s.isJobEnabled(JobDispatchNotifications), func(ctx context.Context) error {
			return s.runJob(ctx, JobDispatchNotifications, s.cfg.DispatchBatchSize, s.cfg.JobTimeout, s.DispatchNotificationsJob)
		}},
		{JobNextChargeBackfill, s.isJobEnabled(JobNextChargeBackfill) && s.backfillDue(), func(ctx context.Context) error {
			return s.runJob(ctx, JobNextChargeBackfill, 0, 10*s.cfg.JobTimeout, s.NextChargeBackfillJob)
		}},
	}

	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, job.Run(parent))
		}
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := time.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := time.Since(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveTickLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// empty EnabledJobs runs everything in this process
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(strings.TrimSpace(enabled), jobName) {
			return true
		}
	}
	return false
}

// backfillDue reports whether BackfillEvery has elapsed since the last pass and
// claims the slot when it has.
func (s *Scheduler) backfillDue() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	if !s.lastBackfill.IsZero() && now.Sub(s.lastBackfill) < s.cfg.BackfillEvery {
		return false
	}
	s.lastBackfill = now
	return true
}

// NextChargeBackfillJob runs the retroactive next-charge generator for every company.
func (s *Scheduler) NextChargeBackfillJob(ctx context.Context) error {
	run := statsFrom(ctx)
	companyIDs, err := s.companySvc.ListIDs(ctx)
	if err != nil {
		return err
	}

	schedMetrics := obsmetrics.Scheduler()
	var jobErr error
	for _, companyID := range companyIDs {
		if err := ctx.Err(); err != nil {
			return errors.Join(jobErr, err)
		}
		companyCtx := s.withCompany(ctx, companyID)
		summary, err := s.paymentSvc.Backfill(companyCtx, companyID)
		run.add(summary.Processed)
		schedMetrics.AddProcessed(JobNextChargeBackfill, "payments", summary.Processed)
		if err != nil {
			s.reportCompanyError(companyCtx, JobNextChargeBackfill, "next charge backfill failed", companyID, err)
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return errors.Join(jobErr, err)
			}
			jobErr = errors.Join(jobErr, err)
			continue
		}
		for _, item := range summary.Errors {
			s.reportCompanyError(companyCtx, JobNextChargeBackfill, "next charge generation failed", companyID,
				errors.New(item.Error),
				zap.String("payment_id", item.PaymentID.String()),
			)
		}
		if summary.Generated > 0 || len(summary.Errors) > 0 {
			s.audit(companyCtx, companyID, "payment.backfill.completed", map[string]any{
				"processed":      summary.Processed,
				"generated":      summary.Generated,
				"already_exists": summary.AlreadyExists,
				"skipped":        summary.Skipped,
				"errors":         len(summary.Errors),
			})
		}
	}
	return jobErr
}

// DispatchNotificationsJob sends pending notifications whose scheduled time has passed.
func (s *Scheduler) DispatchNotificationsJob(ctx context.Context) error {
	run := statsFrom(ctx)
	summary, err := s.notificationSvc.DispatchDue(ctx, s.clock.Now(), s.cfg.DispatchBatchSize)
	run.add(summary.Processed)

	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.AddProcessed(JobDispatchNotifications, "notifications", summary.Processed)
	if summary.RateLimited > 0 {
		schedMetrics.Defer(JobDispatchNotifications, obsmetrics.DeferredRateLimited)
	}
	if err != nil {
		return err
	}
	if summary.Processed > 0 {
		s.logger(ctx).Info("notifications dispatched",
			zap.Int("processed", summary.Processed),
			zap.Int("sent", summary.Sent),
			zap.Int("failed", summary.Failed),
			zap.Int("skipped", summary.Skipped),
			zap.Int("rate_limited", summary.RateLimited),
		)
	}
	return nil
}

// MarkOverdueJob flips pending charges past their due date to overdue, company by company.
func (s *Scheduler) MarkOverdueJob(ctx context.Context) error {
	run := statsFrom(ctx)
	companyIDs, err := s.companySvc.ListIDs(ctx)
	if err != nil {
		return err
	}

	schedMetrics := obsmetrics.Scheduler()
	var jobErr error
	for _, companyID := range companyIDs {
		if err := ctx.Err(); err != nil {
			return errors.Join(jobErr, err)
		}
		companyCtx := s.withCompany(ctx, companyID)
		marked, err := s.paymentSvc.MarkOverdue(companyCtx, companyID, s.cfg.OverdueBatchSize)
		run.add(marked)
		schedMetrics.AddProcessed(JobMarkOverdue, "payments", marked)
		if err != nil {
			s.reportCompanyError(companyCtx, JobMarkOverdue, "mark overdue failed", companyID, err)
			jobErr = errors.Join(jobErr, err)
		}
	}
	return jobErr
}

func (s *Scheduler) withCompany(ctx context.Context, companyID snowflake.ID) context.Context {
	ctx = companycontext.WithCompanyID(ctx, companyID)
	return s.tenantContext(ctx, companyID)
}

func (s *Scheduler) audit(ctx context.Context, companyID snowflake.ID, action string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := companyID.String()
	if err := s.auditSvc.AuditLog(ctx, &companyID, auditcontext.ActorTypeSystem, nil, action, "company", &targetID, metadata); err != nil {
		s.logger(ctx).Warn("scheduler audit failed", zap.String("action", action), zap.Error(err))
	}
}
