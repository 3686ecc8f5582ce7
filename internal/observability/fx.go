package observability

import (
	"github.com/smallbiznis/vehicleguard/internal/observability/logger"
	"github.com/smallbiznis/vehicleguard/internal/observability/metrics"
	"github.com/smallbiznis/vehicleguard/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		splitConfig,
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
	),
	fx.Invoke(start),
)

type componentConfigs struct {
	fx.Out

	Logger  logger.Config
	Tracing tracing.Config
	Metrics metrics.Config
}

// splitConfig hands each telemetry component its own view of Config.
func splitConfig(cfg Config) componentConfigs {
	debug := cfg.Debug()
	return componentConfigs{
		Logger: logger.Config{
			ServiceName:         cfg.Service,
			Environment:         cfg.Environment,
			Version:             cfg.Version,
			Level:               cfg.Log.Level,
			Format:              cfg.Log.Format,
			Debug:               debug,
			IncludeCaller:       true,
			IncludeStackOnError: debug,
		},
		Tracing: tracing.Config{
			Enabled:          cfg.Export.Enabled,
			ServiceName:      cfg.Service,
			ServiceVersion:   cfg.Version,
			Environment:      cfg.Environment,
			ExporterEndpoint: cfg.Export.Endpoint,
			ExporterProtocol: cfg.Export.Protocol,
			SamplingRatio:    cfg.Export.SamplingRatio,
		},
		Metrics: metrics.Config{
			Enabled:          cfg.Export.Enabled,
			ExporterEndpoint: cfg.Export.Endpoint,
			ExporterProtocol: cfg.Export.Protocol,
			ServiceName:      cfg.Service,
			Environment:      cfg.Environment,
		},
	}
}

// start forces the tracer provider to be built and registers scheduler instruments.
func start(_ *sdktrace.TracerProvider, cfg metrics.Config) {
	metrics.SchedulerWithConfig(cfg)
}
