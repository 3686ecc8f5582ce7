package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("gateway", "mercadopago"),
		attribute.String("company_id", "456"),
		attribute.String("external_id", "123"),
		attribute.String("outcome", "updated"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "company_id" || attr.Key == "external_id" {
			t.Fatalf("unexpected high-cardinality label %q", attr.Key)
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordWebhookDelivery(context.Background(), "asaas", "ignored")
	m.RecordChargeGeneration(context.Background(), true, "")
	m.RecordNotification(context.Background(), "pre_due", "sent")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "vehicleguard"}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.RecordStatusChange(context.Background(), "pending", "paid")
	m.RecordRateLimitDenied(context.Background(), "notification.send", "burst")
}
