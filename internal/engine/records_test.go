package engine

import (
	"testing"
)

func TestRedact(t *testing.T) {
	data := map[string]interface{}{
		"title": "Widget",
		"price": 9.99,
		"cost":  4.20,
	}

	got := Redact(data, []string{"title", "price"})
	if len(got) != 2 {
		t.Fatalf("expected 2 fields, got %d: %v", len(got), got)
	}
	if _, ok := got["cost"]; ok {
		t.Error("restricted field leaked through redaction")
	}
	if got["title"] != "Widget" {
		t.Errorf("allowed field mangled: %v", got["title"])
	}

	// Source map must not be mutated
	if len(data) != 3 {
		t.Error("redaction mutated the source map")
	}
}

func TestRedactNothingAllowed(t *testing.T) {
	data := map[string]interface{}{"title": "Widget"}
	got := Redact(data, nil)
	if len(got) != 0 {
		t.Fatalf("expected empty map, got %v", got)
	}
}
