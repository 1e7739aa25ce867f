package engine

import (
	"testing"

	"github.com/aethra/strata/internal/models"
)

func TestGenerateFormSchema(t *testing.T) {
	catalog := NewCatalog()
	model := &models.DynamicModel{
		Name: "events",
		Fields: models.FieldList{
			{Name: "title", Type: "text", Label: "Title", Required: true, MaxLength: intPtr(255)},
			{Name: "capacity", Type: "number", Min: floatPtr(1), Max: floatPtr(500)},
			{Name: "status", Type: "select", Options: []string{"draft", "live"}, HelpText: "Publication state"},
		},
	}

	schema := GenerateFormSchema(catalog, model)

	if schema.Model != "events" {
		t.Errorf("expected model name events, got %s", schema.Model)
	}
	if len(schema.Fields) != 3 {
		t.Fatalf("expected 3 form fields, got %d", len(schema.Fields))
	}

	title := schema.Fields[0]
	if title.Label != "Title" {
		t.Errorf("expected explicit label, got %s", title.Label)
	}
	if title.UIHint != "text-input" {
		t.Errorf("expected text-input hint, got %s", title.UIHint)
	}
	if title.ValidationRules["required"] != true {
		t.Error("expected required rule")
	}
	if title.ValidationRules["max_length"] != 255 {
		t.Errorf("expected max_length 255, got %v", title.ValidationRules["max_length"])
	}

	capacity := schema.Fields[1]
	if capacity.ValidationRules["min"] != float64(1) {
		t.Errorf("expected min 1, got %v", capacity.ValidationRules["min"])
	}
	if capacity.ValidationRules["max"] != float64(500) {
		t.Errorf("expected max 500, got %v", capacity.ValidationRules["max"])
	}

	status := schema.Fields[2]
	if len(status.Options) != 2 {
		t.Errorf("expected options carried through, got %v", status.Options)
	}
	if status.HelpText != "Publication state" {
		t.Errorf("expected help text, got %q", status.HelpText)
	}
	if status.UIHint != "select" {
		t.Errorf("expected select hint, got %s", status.UIHint)
	}
}

func TestGenerateFormSchemaLabelFallback(t *testing.T) {
	catalog := NewCatalog()
	model := &models.DynamicModel{
		Name:   "notes",
		Fields: models.FieldList{{Name: "body", Type: "textarea"}},
	}

	schema := GenerateFormSchema(catalog, model)
	if schema.Fields[0].Label != "body" {
		t.Errorf("expected label fallback to field name, got %s", schema.Fields[0].Label)
	}
}

func TestDisplayFieldsMarked(t *testing.T) {
	model := &models.DynamicModel{
		Fields: models.FieldList{
			{Name: "a", Type: "text"},
			{Name: "b", Type: "text", ShowInList: true},
			{Name: "c", Type: "text"},
			{Name: "d", Type: "text", ShowInList: true},
		},
	}

	got := DisplayFields(model)
	if len(got) != 2 || got[0].Name != "b" || got[1].Name != "d" {
		t.Fatalf("expected marked fields [b d], got %v", got.Names())
	}
}

func TestDisplayFieldsDefaultFirstThree(t *testing.T) {
	model := &models.DynamicModel{
		Fields: models.FieldList{
			{Name: "a", Type: "text"},
			{Name: "b", Type: "text"},
			{Name: "c", Type: "text"},
			{Name: "d", Type: "text"},
		},
	}

	got := DisplayFields(model)
	if len(got) != 3 || got[2].Name != "c" {
		t.Fatalf("expected first three fields, got %v", got.Names())
	}
}

func TestDisplayFieldsShortList(t *testing.T) {
	model := &models.DynamicModel{
		Fields: models.FieldList{
			{Name: "a", Type: "text"},
			{Name: "b", Type: "text"},
		},
	}

	got := DisplayFields(model)
	if len(got) != 2 {
		t.Fatalf("expected both fields, got %v", got.Names())
	}
}
