package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/smallbiznis/vehicleguard/internal/clock"
	companydomain "github.com/smallbiznis/vehicleguard/internal/company/domain"
	"github.com/smallbiznis/vehicleguard/internal/companycontext"
	"github.com/smallbiznis/vehicleguard/internal/config"
	notificationdomain "github.com/smallbiznis/vehicleguard/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/vehicleguard/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/vehicleguard/internal/payment/domain"
	"go.uber.org/zap/zaptest"
)

type fakeCompanies struct {
	companydomain.Service
	ids []snowflake.ID
}

func (f *fakeCompanies) ListIDs(context.Context) ([]snowflake.ID, error) {
	return f.ids, nil
}

type fakePayments struct {
	paymentdomain.Service

	mu          sync.Mutex
	backfilled  []snowflake.ID
	overdue     []snowflake.ID
	overdueErr  map[snowflake.ID]error
	ctxCompany  []snowflake.ID
	backfillSum paymentdomain.BackfillSummary
}

func (f *fakePayments) Backfill(ctx context.Context, companyID snowflake.ID) (paymentdomain.BackfillSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.backfilled = append(f.backfilled, companyID)
	if id, ok := companycontext.CompanyIDFromContext(ctx); ok {
		f.ctxCompany = append(f.ctxCompany, id)
	}
	return f.backfillSum, nil
}

func (f *fakePayments) MarkOverdue(_ context.Context, companyID snowflake.ID, limit int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overdue = append(f.overdue, companyID)
	if err := f.overdueErr[companyID]; err != nil {
		return 0, err
	}
	return 1, nil
}

type fakeNotifications struct {
	notificationdomain.Service
	calls []time.Time
	limit int
}

func (f *fakeNotifications) DispatchDue(_ context.Context, now time.Time, limit int) (notificationdomain.DispatchSummary, error) {
	f.calls = append(f.calls, now)
	f.limit = limit
	return notificationdomain.DispatchSummary{Processed: 2, Sent: 1, RateLimited: 1}, nil
}

type fixture struct {
	sched         *Scheduler
	clock         *clock.FakeClock
	payments      *fakePayments
	notifications *fakeNotifications
	registry      *prometheus.Registry
}

func newFixture(t *testing.T, cfg Config) fixture {
	t.Helper()
	registry := prometheus.NewRegistry()
	restore := swapPrometheusRegistry(registry)
	t.Cleanup(restore)
	obsmetrics.ResetSchedulerMetricsForTest()
	obsmetrics.SchedulerWithConfig(obsmetrics.Config{ServiceName: "vehicleguard", Environment: "test"})

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	fakeClock := clock.NewFakeClock(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))
	payments := &fakePayments{overdueErr: map[snowflake.ID]error{}}
	notifications := &fakeNotifications{}

	sched, err := New(Params{
		Log:             zaptest.NewLogger(t),
		GenID:           node,
		Clock:           fakeClock,
		CompanySvc:      &fakeCompanies{ids: []snowflake.ID{101, 202}},
		PaymentSvc:      payments,
		NotificationSvc: notifications,
		Config:          cfg,
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return fixture{sched: sched, clock: fakeClock, payments: payments, notifications: notifications, registry: registry}
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(Params{}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestRunOnceRunsEveryJob(t *testing.T) {
	f := newFixture(t, Config{})

	if err := f.sched.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}

	if len(f.payments.overdue) != 2 || len(f.payments.backfilled) != 2 {
		t.Fatalf("expected both companies processed, got overdue=%v backfill=%v", f.payments.overdue, f.payments.backfilled)
	}
	if len(f.payments.ctxCompany) != 2 || f.payments.ctxCompany[0] != 101 {
		t.Fatalf("expected company in context, got %v", f.payments.ctxCompany)
	}
	if len(f.notifications.calls) != 1 || !f.notifications.calls[0].Equal(f.clock.Now()) {
		t.Fatalf("expected dispatch at clock time, got %v", f.notifications.calls)
	}
	if f.notifications.limit != DefaultConfig().DispatchBatchSize {
		t.Fatalf("expected default dispatch batch, got %d", f.notifications.limit)
	}

	labels := map[string]string{"service": "vehicleguard", "env": "test", "job": JobMarkOverdue, "outcome": "ok"}
	if got := getCounterValue(t, f.registry, "vehicleguard_scheduler_job_runs_total", labels); got != 1 {
		t.Fatalf("expected one mark_overdue run, got %v", got)
	}
	deferred := map[string]string{"service": "vehicleguard", "env": "test", "job": JobDispatchNotifications, "reason": obsmetrics.DeferredRateLimited}
	if got := getCounterValue(t, f.registry, "vehicleguard_scheduler_deferred_total", deferred); got != 1 {
		t.Fatalf("expected rate limited deferral, got %v", got)
	}
}

func TestRunOnceHonorsEnabledJobs(t *testing.T) {
	f := newFixture(t, Config{EnabledJobs: []string{"DISPATCH_NOTIFICATIONS"}})

	if err := f.sched.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(f.notifications.calls) != 1 {
		t.Fatalf("expected dispatch to run")
	}
	if len(f.payments.overdue) != 0 || len(f.payments.backfilled) != 0 {
		t.Fatalf("expected payment jobs disabled")
	}
}

func TestBackfillRunsOncePerInterval(t *testing.T) {
	f := newFixture(t, Config{BackfillEvery: time.Hour, EnabledJobs: []string{JobNextChargeBackfill}})
	ctx := context.Background()

	if err := f.sched.RunOnce(ctx); err != nil {
		t.Fatalf("first run: %v", err)
	}
	f.clock.Advance(30 * time.Minute)
	if err := f.sched.RunOnce(ctx); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(f.payments.backfilled) != 2 {
		t.Fatalf("expected a single backfill pass, got %v", f.payments.backfilled)
	}

	f.clock.Advance(31 * time.Minute)
	if err := f.sched.RunOnce(ctx); err != nil {
		t.Fatalf("third run: %v", err)
	}
	if len(f.payments.backfilled) != 4 {
		t.Fatalf("expected second backfill pass, got %v", f.payments.backfilled)
	}
}

func TestMarkOverdueIsolatesCompanyFailures(t *testing.T) {
	f := newFixture(t, Config{EnabledJobs: []string{JobMarkOverdue}})
	boom := errors.New("boom")
	f.payments.overdueErr[101] = boom

	err := f.sched.RunOnce(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined company error, got %v", err)
	}
	if len(f.payments.overdue) != 2 {
		t.Fatalf("expected second company processed, got %v", f.payments.overdue)
	}

	labels := map[string]string{"service": "vehicleguard", "env": "test", "job": JobMarkOverdue, "reason": obsmetrics.ReasonUnknown}
	if got := getCounterValue(t, f.registry, "vehicleguard_scheduler_job_errors_total", labels); got != 1 {
		t.Fatalf("expected job error count 1, got %v", got)
	}
}

func TestRunJobTimeoutDoesNotReturnErrorAndIncrementsTimeout(t *testing.T) {
	f := newFixture(t, Config{})

	err := f.sched.runJob(context.Background(), "timeout_job", 0, 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	labels := map[string]string{
		"service": "vehicleguard",
		"env":     "test",
		"job":     "timeout_job",
		"outcome": "timeout",
	}
	if got := getCounterValue(t, f.registry, "vehicleguard_scheduler_job_runs_total", labels); got != 1 {
		t.Fatalf("expected timeout count 1, got %v", got)
	}

	errorLabels := map[string]string{
		"service": "vehicleguard",
		"env":     "test",
		"job":     "timeout_job",
		"reason":  obsmetrics.ReasonTimeout,
	}
	if got := getCounterValue(t, f.registry, "vehicleguard_scheduler_job_errors_total", errorLabels); got != 1 {
		t.Fatalf("expected error count 1, got %v", got)
	}
}

func TestProvideConfig(t *testing.T) {
	cfg := ProvideConfig(config.Config{Scheduler: config.SchedulerConfig{
		Enabled:     false,
		Interval:    15 * time.Second,
		EnabledJobs: []string{JobMarkOverdue},
	}})
	if cfg.Enabled || cfg.RunInterval != 15*time.Second || len(cfg.EnabledJobs) != 1 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.DispatchBatchSize != DefaultConfig().DispatchBatchSize {
		t.Fatalf("expected default batch size, got %d", cfg.DispatchBatchSize)
	}
}

func swapPrometheusRegistry(registry *prometheus.Registry) func() {
	oldRegisterer := prometheus.DefaultRegisterer
	oldGatherer := prometheus.DefaultGatherer
	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
	return func() {
		prometheus.DefaultRegisterer = oldRegisterer
		prometheus.DefaultGatherer = oldGatherer
		obsmetrics.ResetSchedulerMetricsForTest()
	}
}

func getCounterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metricFamilies {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			if !labelsMatch(metric, labels) {
				continue
			}
			if metric.Counter == nil {
				t.Fatalf("metric %s is not a counter", name)
			}
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.Label) != len(labels) {
		return false
	}
	for _, label := range metric.Label {
		if labels[label.GetName()] != label.GetValue() {
			return false
		}
	}
	return true
}
