package engine

import (
	stderrors "errors"
	"testing"

	"github.com/aethra/strata/internal/errors"
)

func TestCatalogBuiltins(t *testing.T) {
	c := NewCatalog()

	for _, name := range []string{
		TypeText, TypeTextarea, TypeNumber, TypeEmail, TypeURL,
		TypeDate, TypeDatetime, TypeBoolean, TypeSelect, TypeMultiselect,
	} {
		if !c.Has(name) {
			t.Errorf("expected builtin type %s", name)
		}
	}

	if len(c.List()) != 10 {
		t.Errorf("expected 10 builtin types, got %d", len(c.List()))
	}
}

func TestCatalogLookupUnknown(t *testing.T) {
	c := NewCatalog()

	_, err := c.Lookup("geopoint")
	if err == nil {
		t.Fatal("expected error for unknown type")
	}
	var ute *errors.UnknownFieldTypeError
	if !stderrors.As(err, &ute) {
		t.Errorf("expected UnknownFieldTypeError, got %T", err)
	}
}

func TestCatalogChoiceFlags(t *testing.T) {
	c := NewCatalog()

	sel, err := c.Lookup(TypeSelect)
	if err != nil {
		t.Fatal(err)
	}
	if !sel.IsChoice {
		t.Error("select should be a choice type")
	}

	txt, err := c.Lookup(TypeText)
	if err != nil {
		t.Fatal(err)
	}
	if txt.IsChoice {
		t.Error("text should not be a choice type")
	}
}

func TestCatalogListOrderIsStable(t *testing.T) {
	c := NewCatalog()

	list := c.List()
	if list[0].Name != TypeText {
		t.Errorf("expected text first, got %s", list[0].Name)
	}

	again := c.List()
	for i := range list {
		if list[i].Name != again[i].Name {
			t.Fatalf("list order changed between calls at %d", i)
		}
	}
}

func TestCatalogListByCategory(t *testing.T) {
	c := NewCatalog()

	choices := c.ListByCategory(CategoryChoice)
	if len(choices) != 2 {
		t.Fatalf("expected 2 choice types, got %d", len(choices))
	}
	for _, ft := range choices {
		if ft.Category != CategoryChoice {
			t.Errorf("unexpected category %s", ft.Category)
		}
	}

	if len(c.ListByCategory("nope")) != 0 {
		t.Error("expected empty result for unknown category")
	}
}

func TestCatalogRegisterCustomType(t *testing.T) {
	c := NewCatalog()
	c.Register(FieldTypeDescriptor{
		Name:           "color",
		Label:          "Color",
		Category:       CategoryMisc,
		ValidationRule: "string",
		UIHint:         "color-picker",
	})

	if !c.Has("color") {
		t.Fatal("expected registered type to be present")
	}
	list := c.List()
	if list[len(list)-1].Name != "color" {
		t.Error("expected new type at end of registration order")
	}
}
