package metrics

import (
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("priority", "high"),
		attribute.String("store_code", "HEL001"),
		attribute.String("severity", "major"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "priority" && attrs[1].Key != "priority" {
		t.Fatalf("expected priority to be retained")
	}
	if attrs[0].Key != "severity" && attrs[1].Key != "severity" {
		t.Fatalf("expected severity to be retained")
	}
}
