package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	DeferredLockHeld    = "lock_held"
	DeferredRateLimited = "rate_limited"
)

var (
	jobBuckets = []float64{0.05, 0.25, 1, 5, 15, 60, 300, 900}
	lagBuckets = []float64{0.1, 0.5, 1, 5, 30, 120, 600}
)

// SchedulerMetrics are the Prometheus series for the background jobs: overdue
// marking, reminder dispatch and next-charge backfill.
type SchedulerMetrics struct {
	runs      *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	failures  *prometheus.CounterVec
	processed *prometheus.CounterVec
	deferred  *prometheus.CounterVec
	lag       prometheus.Histogram
}

var (
	schedulerOnce sync.Once
	scheduler     *SchedulerMetrics
)

// Scheduler returns the process-wide scheduler metrics.
func Scheduler() *SchedulerMetrics {
	return SchedulerWithConfig(Config{})
}

// SchedulerWithConfig registers the scheduler metrics on first use; later calls
// return the same instance regardless of cfg.
func SchedulerWithConfig(cfg Config) *SchedulerMetrics {
	schedulerOnce.Do(func() {
		scheduler = newSchedulerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return scheduler
}

// ResetSchedulerMetricsForTest drops the singleton so a test can register again.
func ResetSchedulerMetricsForTest() {
	schedulerOnce = sync.Once{}
	scheduler = nil
}

func newSchedulerMetrics(reg prometheus.Registerer, cfg Config) *SchedulerMetrics {
	labels := prometheus.Labels{
		"service": orDefault(cfg.ServiceName, "vehicleguard"),
		"env":     orDefault(cfg.Environment, "unknown"),
	}
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{Namespace: "vehicleguard", Subsystem: "scheduler", Name: name, Help: help, ConstLabels: labels}
	}
	hist := func(name, help string, buckets []float64) prometheus.HistogramOpts {
		o := opts(name, help)
		return prometheus.HistogramOpts{
			Namespace: o.Namespace, Subsystem: o.Subsystem, Name: o.Name, Help: o.Help,
			ConstLabels: o.ConstLabels, Buckets: buckets,
		}
	}

	m := &SchedulerMetrics{
		runs:      prometheus.NewCounterVec(prometheus.CounterOpts(opts("job_runs_total", "Job runs by outcome (ok, error, timeout).")), []string{"job", "outcome"}),
		duration:  prometheus.NewHistogramVec(hist("job_duration_seconds", "Job wall time.", jobBuckets), []string{"job"}),
		failures:  prometheus.NewCounterVec(prometheus.CounterOpts(opts("job_errors_total", "Job errors by reason.")), []string{"job", "reason"}),
		processed: prometheus.NewCounterVec(prometheus.CounterOpts(opts("items_processed_total", "Payments or notifications handled by a job.")), []string{"job", "resource"}),
		deferred:  prometheus.NewCounterVec(prometheus.CounterOpts(opts("deferred_total", "Work postponed to a later tick.")), []string{"job", "reason"}),
		lag:       prometheus.NewHistogram(hist("tick_lag_seconds", "Delay between the planned and actual tick.", lagBuckets)),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.runs, m.duration, m.failures, m.processed, m.deferred, m.lag)
	return m
}

// ObserveJob records one run of job. A context deadline counts as a timeout,
// not an error.
func (m *SchedulerMetrics) ObserveJob(job string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(job).Observe(elapsed.Seconds())

	outcome := "ok"
	if err != nil {
		class := ClassifyError(err)
		outcome = "error"
		if class.Type == "timeout" {
			outcome = "timeout"
		}
		m.failures.WithLabelValues(job, class.Reason).Inc()
	}
	m.runs.WithLabelValues(job, outcome).Inc()
}

func (m *SchedulerMetrics) AddProcessed(job, resource string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.processed.WithLabelValues(job, resource).Add(float64(n))
}

func (m *SchedulerMetrics) Defer(job, reason string) {
	if m == nil {
		return
	}
	m.deferred.WithLabelValues(job, reason).Inc()
}

func (m *SchedulerMetrics) ObserveTickLag(lag time.Duration) {
	if m == nil || lag <= 0 {
		return
	}
	m.lag.Observe(lag.Seconds())
}

func orDefault(value, def string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return def
}
