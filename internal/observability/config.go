package observability

import (
	"strings"

	"github.com/smallbiznis/vehicleguard/internal/config"
)

const defaultService = "vehicleguard"

// Config is the resolved telemetry setup for one process.
type Config struct {
	Service     string
	Environment string
	Version     string

	Log    LogSettings
	Export ExportSettings
}

type LogSettings struct {
	Level       string
	Format      string
	QuietRoutes []string
}

// ExportSettings describe the OTLP exporter shared by traces and metrics.
type ExportSettings struct {
	Enabled       bool
	Endpoint      string
	Protocol      string
	SamplingRatio float64
}

// LoadConfig normalizes the telemetry part of the application config.
// Export is disabled when no endpoint is configured.
func LoadConfig(cfg config.Config) Config {
	t := cfg.Telemetry
	endpoint := strings.TrimSpace(t.OtelEndpoint)

	return Config{
		Service:     lowerOr(cfg.AppName, defaultService),
		Environment: lowerOr(cfg.Environment, "development"),
		Version:     strings.TrimSpace(cfg.AppVersion),
		Log: LogSettings{
			Level:       lowerOr(t.LogLevel, "info"),
			Format:      lowerOr(t.LogFormat, "json"),
			QuietRoutes: t.QuietRoutes,
		},
		Export: ExportSettings{
			Enabled:       t.OtelEnabled && endpoint != "",
			Endpoint:      endpoint,
			Protocol:      lowerOr(t.OtelProtocol, "grpc"),
			SamplingRatio: clampRatio(t.SamplingRatio),
		},
	}
}

// Debug turns on verbose request logs and error stacks.
func (c Config) Debug() bool {
	if c.Log.Level == "debug" {
		return true
	}
	switch c.Environment {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func lowerOr(value, def string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return def
	}
	return value
}

func clampRatio(r float64) float64 {
	switch {
	case r < 0:
		return 0
	case r > 1:
		return 1
	}
	return r
}
