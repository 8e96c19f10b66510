package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("workspace_id", "123"),
		attribute.String("kind", "AI"),
		attribute.String("reason", "topup.purchase"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "workspace_id" {
			t.Fatalf("expected workspace_id to be dropped")
		}
	}
}

func TestRecordOnNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordConsumption(ctx, "AI", 10)
	m.RecordEntitlementDenied(ctx, "EMAIL")
	m.RecordGrant(ctx, "AI", "topup.purchase")
	m.RecordIdempotentReplay(ctx, "/v1/consume")
}

func TestNewRegistersInstruments(t *testing.T) {
	m, err := New(Config{ServiceName: "creditd-test"}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m == nil {
		t.Fatal("expected metrics instance")
	}
}
