package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the OTLP meter provider and the Prometheus const labels.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

const exportInterval = 10 * time.Second

// NewProvider installs the global meter provider. A noop provider is used when
// export is off so instruments stay valid.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval))),
	)
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{OnStop: provider.Shutdown})
	}
	if log != nil {
		log.Info("metrics export enabled",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}
	return provider, nil
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	ctx := context.Background()
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(ctx, opts...)
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(ctx, opts...)
	}
	return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
}

// Metrics are the business counters: webhook deliveries, payment status moves,
// next-charge generation, WhatsApp notifications and rate limiter denials.
type Metrics struct {
	webhookDeliveries metric.Int64Counter
	statusChanges     metric.Int64Counter
	chargeGeneration  metric.Int64Counter
	notifications     metric.Int64Counter
	rateLimitDenied   metric.Int64Counter
}

// New creates the business counters on the service meter.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(orDefault(cfg.ServiceName, "vehicleguard"))
	m := &Metrics{}

	instruments := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.webhookDeliveries, "vehicleguard_webhook_deliveries_total", "Gateway callbacks by resolved outcome."},
		{&m.statusChanges, "vehicleguard_payment_status_changes_total", "Payment status transitions."},
		{&m.chargeGeneration, "vehicleguard_charge_generation_total", "Next-charge generator results."},
		{&m.notifications, "vehicleguard_notifications_total", "WhatsApp notifications by event and delivery status."},
		{&m.rateLimitDenied, "vehicleguard_rate_limit_denied_total", "Calls refused by the token bucket."},
	}
	for _, in := range instruments {
		counter, err := meter.Int64Counter(in.name, metric.WithDescription(in.desc))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", in.name, err)
		}
		*in.dst = counter
	}
	return m, nil
}

func (m *Metrics) RecordWebhookDelivery(ctx context.Context, gateway, outcome string) {
	if m != nil {
		inc(ctx, m.webhookDeliveries, "gateway", gateway, "outcome", outcome)
	}
}

func (m *Metrics) RecordStatusChange(ctx context.Context, from, to string) {
	if m != nil {
		inc(ctx, m.statusChanges, "from", from, "to", to)
	}
}

// RecordChargeGeneration counts generator results; reason is a fixed skip code.
func (m *Metrics) RecordChargeGeneration(ctx context.Context, created bool, reason string) {
	if m == nil {
		return
	}
	outcome := "skipped"
	if created {
		outcome = "created"
	}
	inc(ctx, m.chargeGeneration, "outcome", outcome, "reason", reason)
}

func (m *Metrics) RecordNotification(ctx context.Context, eventType, status string) {
	if m != nil {
		inc(ctx, m.notifications, "event_type", eventType, "status", status)
	}
}

func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m != nil {
		inc(ctx, m.rateLimitDenied, "endpoint", endpoint, "reason", reason)
	}
}

// inc adds one with the given key/value label pairs, dropping unknown keys.
func inc(ctx context.Context, counter metric.Int64Counter, kv ...string) {
	attrs := make([]attribute.KeyValue, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		attrs = append(attrs, attribute.String(kv[i], strings.TrimSpace(kv[i+1])))
	}
	counter.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attrs...)...))
}

// Labels allowed on business counters. Tenant and payment ids are unbounded
// and never become labels.
var allowedLabelKeys = map[attribute.Key]bool{
	"gateway":     true,
	"outcome":     true,
	"from":        true,
	"to":          true,
	"endpoint":    true,
	"status":      true,
	"status_code": true,
	"event_type":  true,
	"reason":      true,
}

// FilterAttributes keeps only allowed label keys.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := attrs[:0:0]
	for _, attr := range attrs {
		if allowedLabelKeys[attr.Key] {
			out = append(out, attr)
		}
	}
	return out
}
