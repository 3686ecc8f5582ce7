package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("APP_BASE_URL", "https://billing.example.com/")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("SCHEDULER_INTERVAL", "30s")
	t.Setenv("SCHEDULER_JOBS", "mark_overdue, dispatch_notifications,,")
	t.Setenv("DATABASE_MAX_OPEN_CONN", "not-a-number")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "http")
	t.Setenv("OTEL_SAMPLING_RATIO", "0.5")

	cfg := Load()

	assert.Equal(t, "https://billing.example.com/", cfg.AppBaseURL)
	assert.True(t, cfg.RedisEnabled())
	assert.Equal(t, 30*time.Second, cfg.Scheduler.Interval)
	assert.Equal(t, []string{"mark_overdue", "dispatch_notifications"}, cfg.Scheduler.EnabledJobs)
	assert.Equal(t, 50, cfg.DBMaxOpenConn)
	assert.Equal(t, "http", cfg.Telemetry.OtelProtocol)
	assert.Equal(t, 0.5, cfg.Telemetry.SamplingRatio)
	assert.Equal(t, []string{"/health", "/metrics"}, cfg.Telemetry.QuietRoutes)
}

func TestGetenvBool(t *testing.T) {
	t.Setenv("FLAG_ON", "yes")
	t.Setenv("FLAG_OFF", "0")
	t.Setenv("FLAG_BAD", "maybe")

	assert.True(t, getenvBool("FLAG_ON", false))
	assert.False(t, getenvBool("FLAG_OFF", true))
	assert.True(t, getenvBool("FLAG_BAD", true))
	assert.False(t, getenvBool("FLAG_MISSING", false))
}

func TestNotificationConfigDefaults(t *testing.T) {
	holder, err := NewNotificationConfigHolder()
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, -3, cfg.Offsets.PreDue)
	assert.Equal(t, 3, cfg.Offsets.PostDue)
	assert.Contains(t, cfg.Templates, "pre_due")
	assert.Contains(t, cfg.Templates, "paid")
}

func TestValidateNotificationConfig(t *testing.T) {
	cfg := DefaultNotificationConfig()
	require.NoError(t, validateNotificationConfig(cfg))

	cfg.Offsets.PreDue = 2
	assert.Error(t, validateNotificationConfig(cfg))

	cfg = DefaultNotificationConfig()
	cfg.SendHour = 24
	assert.Error(t, validateNotificationConfig(cfg))
}

func TestMergeTemplateDefaultsKeepsOverrides(t *testing.T) {
	defaults := DefaultNotificationConfig()
	cfg := NotificationConfig{Templates: map[string]string{"PAID": "valeu {{.ClientName}}", "on_due": "  "}}

	merged := mergeTemplateDefaults(cfg, defaults)

	assert.Equal(t, "valeu {{.ClientName}}", merged.Templates["paid"])
	assert.Equal(t, defaults.Templates["on_due"], merged.Templates["on_due"])
}
