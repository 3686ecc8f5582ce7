package scheduler

import (
	"time"

	"github.com/smallbiznis/vehicleguard/internal/config"
)

// Config controls scheduler intervals, batch sizes and job cadence.
type Config struct {
	Enabled     bool
	RunInterval time.Duration
	EnabledJobs []string

	JobTimeout time.Duration
	LeaseTTL   time.Duration

	BackfillEvery     time.Duration
	DispatchBatchSize int
	OverdueBatchSize  int
}

func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		RunInterval:       time.Minute,
		JobTimeout:        30 * time.Second,
		LeaseTTL:          2 * time.Minute,
		BackfillEvery:     time.Hour,
		DispatchBatchSize: 100,
		OverdueBatchSize:  200,
	}
}

// ProvideConfig derives the scheduler config from the process config.
func ProvideConfig(cfg config.Config) Config {
	out := DefaultConfig()
	out.Enabled = cfg.Scheduler.Enabled
	if cfg.Scheduler.Interval > 0 {
		out.RunInterval = cfg.Scheduler.Interval
	}
	out.EnabledJobs = cfg.Scheduler.EnabledJobs
	return out
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = defaults.LeaseTTL
	}
	if c.BackfillEvery < 0 {
		c.BackfillEvery = 0
	}
	if c.DispatchBatchSize <= 0 {
		c.DispatchBatchSize = defaults.DispatchBatchSize
	}
	if c.OverdueBatchSize <= 0 {
		c.OverdueBatchSize = defaults.OverdueBatchSize
	}
	return c
}
