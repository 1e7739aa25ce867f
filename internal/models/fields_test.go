package models

import (
	"encoding/json"
	"testing"
)

func TestFieldListRoundTrip(t *testing.T) {
	minLen := 3
	list := FieldList{
		{Name: "title", Type: "text", Label: "Title", Required: true, MinLength: &minLen},
		{Name: "status", Type: "select", Options: []string{"draft", "live"}},
	}

	val, err := list.Value()
	if err != nil {
		t.Fatal(err)
	}

	var got FieldList
	if err := got.Scan(val); err != nil {
		t.Fatal(err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(got))
	}
	if got[0].Name != "title" || !got[0].Required {
		t.Errorf("first field mangled: %+v", got[0])
	}
	if got[0].MinLength == nil || *got[0].MinLength != 3 {
		t.Errorf("min_length lost: %+v", got[0].MinLength)
	}
	if len(got[1].Options) != 2 {
		t.Errorf("options lost: %+v", got[1])
	}
}

func TestFieldListScanString(t *testing.T) {
	// Some drivers hand JSONB back as a string
	var got FieldList
	if err := got.Scan(`[{"name":"a","type":"text"}]`); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Name != "a" {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestFieldListScanNil(t *testing.T) {
	var got FieldList
	if err := got.Scan(nil); err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected nil list, got %v", got)
	}
}

func TestFieldListOmitsEmptyOptions(t *testing.T) {
	list := FieldList{{Name: "title", Type: "text"}}
	raw, err := json.Marshal(list)
	if err != nil {
		t.Fatal(err)
	}
	var decoded []map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if _, ok := decoded[0]["options"]; ok {
		t.Error("empty options must be omitted from the document")
	}
	if _, ok := decoded[0]["required"]; ok {
		t.Error("false required must be omitted from the document")
	}
}

func TestFieldListClone(t *testing.T) {
	minLen := 1
	maxVal := 10.0
	list := FieldList{
		{Name: "status", Type: "select", Options: []string{"a", "b"}, MinLength: &minLen, Max: &maxVal},
	}

	clone := list.Clone()
	clone[0].Options[0] = "mutated"
	*clone[0].MinLength = 99
	*clone[0].Max = 99

	if list[0].Options[0] != "a" {
		t.Error("clone shares option slice")
	}
	if *list[0].MinLength != 1 {
		t.Error("clone shares min_length pointer")
	}
	if *list[0].Max != 10.0 {
		t.Error("clone shares max pointer")
	}
}

func TestFieldListNames(t *testing.T) {
	list := FieldList{{Name: "a"}, {Name: "b"}, {Name: "c"}}
	names := list.Names()
	if len(names) != 3 || names[0] != "a" || names[2] != "c" {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestDisplayLabelFallback(t *testing.T) {
	f := FieldDefinition{Name: "body"}
	if f.DisplayLabel() != "body" {
		t.Errorf("expected name fallback, got %s", f.DisplayLabel())
	}
	f.Label = "Body Text"
	if f.DisplayLabel() != "Body Text" {
		t.Errorf("expected explicit label, got %s", f.DisplayLabel())
	}
}

func TestConditionListRoundTrip(t *testing.T) {
	list := ConditionList{
		{Field: "status", Op: ConditionOpEq, Value: "draft"},
		{Field: "region", Op: ConditionOpIn, Value: []interface{}{"eu", "us"}},
	}

	val, err := list.Value()
	if err != nil {
		t.Fatal(err)
	}

	var got ConditionList
	if err := got.Scan(val); err != nil {
		t.Fatal(err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 conditions, got %d", len(got))
	}
	if got[0].Field != "status" || got[0].Op != ConditionOpEq || got[0].Value != "draft" {
		t.Errorf("first condition mangled: %+v", got[0])
	}
}

func TestConditionListNilValue(t *testing.T) {
	var list ConditionList
	val, err := list.Value()
	if err != nil {
		t.Fatal(err)
	}
	if val != nil {
		t.Errorf("nil condition list must store NULL, got %v", val)
	}
}

func TestStringArrayContains(t *testing.T) {
	arr := StringArray{"title", "price"}
	if !arr.Contains("title") {
		t.Error("expected member to be found")
	}
	if arr.Contains("cost") {
		t.Error("non-member reported as found")
	}
}
