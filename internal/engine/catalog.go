// Package engine contains the Strata dynamic model engine
// Schemas are site-defined content types stored as JSONB field documents;
// the engine validates, versions and gates access to them without ever
// running a schema migration per site.
package engine

import (
	"sort"
	"sync"

	"github.com/aethra/strata/internal/errors"
)

// Field type categories
const (
	CategoryText    = "text"
	CategoryNumeric = "numeric"
	CategoryChoice  = "choice"
	CategoryDate    = "date"
	CategoryMisc    = "misc"
)

// Built-in field type names
const (
	TypeText        = "text"
	TypeTextarea    = "textarea"
	TypeNumber      = "number"
	TypeEmail       = "email"
	TypeURL         = "url"
	TypeDate        = "date"
	TypeDatetime    = "datetime"
	TypeBoolean     = "boolean"
	TypeSelect      = "select"
	TypeMultiselect = "multiselect"
)

// FieldTypeDescriptor is an immutable catalog entry. ValidationRule names the
// rule the validation engine dispatches on; UIHint names the default widget.
type FieldTypeDescriptor struct {
	Name           string `json:"name"`
	Label          string `json:"label"`
	Category       string `json:"category"`
	ValidationRule string `json:"validation_rule"`
	UIHint         string `json:"ui_hint"`
	IsChoice       bool   `json:"is_choice"`
}

// Catalog is the process-wide field type registry. It is populated at startup
// and read-only afterwards; tenants cannot register types.
type Catalog struct {
	mu    sync.RWMutex
	types map[string]FieldTypeDescriptor
	order []string
}

// NewCatalog returns a catalog seeded with the built-in field types.
func NewCatalog() *Catalog {
	c := &Catalog{types: make(map[string]FieldTypeDescriptor)}
	for _, ft := range builtinFieldTypes() {
		c.Register(ft)
	}
	return c
}

// Register adds a descriptor to the catalog. This is an administrative
// operation that runs during process startup, never per request.
func (c *Catalog) Register(ft FieldTypeDescriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.types[ft.Name]; !exists {
		c.order = append(c.order, ft.Name)
	}
	c.types[ft.Name] = ft
}

// Lookup returns the descriptor for a type name.
func (c *Catalog) Lookup(typeName string) (FieldTypeDescriptor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ft, ok := c.types[typeName]
	if !ok {
		return FieldTypeDescriptor{}, errors.NewUnknownFieldTypeError(typeName)
	}
	return ft, nil
}

// Has reports whether the catalog knows the type name.
func (c *Catalog) Has(typeName string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.types[typeName]
	return ok
}

// List returns every descriptor in registration order.
func (c *Catalog) List() []FieldTypeDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]FieldTypeDescriptor, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.types[name])
	}
	return out
}

// ListByCategory returns the descriptors of one category, sorted by name.
func (c *Catalog) ListByCategory(category string) []FieldTypeDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []FieldTypeDescriptor
	for _, ft := range c.types {
		if ft.Category == category {
			out = append(out, ft)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func builtinFieldTypes() []FieldTypeDescriptor {
	return []FieldTypeDescriptor{
		{Name: TypeText, Label: "Text", Category: CategoryText, ValidationRule: "string", UIHint: "text-input"},
		{Name: TypeTextarea, Label: "Text Area", Category: CategoryText, ValidationRule: "string", UIHint: "textarea"},
		{Name: TypeNumber, Label: "Number", Category: CategoryNumeric, ValidationRule: "number", UIHint: "number-input"},
		{Name: TypeEmail, Label: "Email", Category: CategoryText, ValidationRule: "email", UIHint: "email-input"},
		{Name: TypeURL, Label: "URL", Category: CategoryText, ValidationRule: "url", UIHint: "url-input"},
		{Name: TypeDate, Label: "Date", Category: CategoryDate, ValidationRule: "date", UIHint: "date-picker"},
		{Name: TypeDatetime, Label: "Date & Time", Category: CategoryDate, ValidationRule: "datetime", UIHint: "datetime-picker"},
		{Name: TypeBoolean, Label: "Boolean", Category: CategoryMisc, ValidationRule: "boolean", UIHint: "checkbox"},
		{Name: TypeSelect, Label: "Select", Category: CategoryChoice, ValidationRule: "select", UIHint: "select", IsChoice: true},
		{Name: TypeMultiselect, Label: "Multi Select", Category: CategoryChoice, ValidationRule: "multiselect", UIHint: "multi-select", IsChoice: true},
	}
}
