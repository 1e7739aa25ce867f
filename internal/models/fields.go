// Package models - field descriptors and permission conditions
// A model's field list is a JSONB document of typed descriptors interpreted
// by the validation engine at read/write time; no storage columns are ever
// generated per field.
package models

import (
	"database/sql/driver"
	"encoding/json"
)

// FieldDefinition is one entry in a model's ordered field list.
type FieldDefinition struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Label      string   `json:"label,omitempty"`
	Required   bool     `json:"required,omitempty"`
	Options    []string `json:"options,omitempty"`
	MinLength  *int     `json:"min_length,omitempty"`
	MaxLength  *int     `json:"max_length,omitempty"`
	Min        *float64 `json:"min,omitempty"`
	Max        *float64 `json:"max,omitempty"`
	ShowInList bool     `json:"show_in_list,omitempty"`
	HelpText   string   `json:"help_text,omitempty"`
}

// DisplayLabel returns the label, falling back to the field name.
func (f FieldDefinition) DisplayLabel() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// HasOption reports whether value is a member of the field's option set.
func (f FieldDefinition) HasOption(value string) bool {
	for _, o := range f.Options {
		if o == value {
			return true
		}
	}
	return false
}

// FieldList is an ordered field definition list stored as a JSONB document.
type FieldList []FieldDefinition

// Value implements the driver.Valuer interface
func (l FieldList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal(FieldList{})
	}
	return json.Marshal(l)
}

// Scan implements the sql.Scanner interface
func (l *FieldList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}

	bytes, err := jsonbBytes(value)
	if err != nil {
		return err
	}
	if len(bytes) == 0 {
		*l = make(FieldList, 0)
		return nil
	}

	var result []FieldDefinition
	if err := json.Unmarshal(bytes, &result); err != nil {
		return err
	}
	*l = result
	return nil
}

// Names returns the field names in schema order.
func (l FieldList) Names() []string {
	names := make([]string, 0, len(l))
	for _, f := range l {
		names = append(names, f.Name)
	}
	return names
}

// Clone returns a deep copy of the field list. Version snapshots and
// rollbacks copy field lists so no two model rows share backing slices.
func (l FieldList) Clone() FieldList {
	if l == nil {
		return nil
	}
	out := make(FieldList, len(l))
	for i, f := range l {
		if f.Options != nil {
			f.Options = append([]string(nil), f.Options...)
		}
		if f.MinLength != nil {
			v := *f.MinLength
			f.MinLength = &v
		}
		if f.MaxLength != nil {
			v := *f.MaxLength
			f.MaxLength = &v
		}
		if f.Min != nil {
			v := *f.Min
			f.Min = &v
		}
		if f.Max != nil {
			v := *f.Max
			f.Max = &v
		}
		out[i] = f
	}
	return out
}

// Condition operators for permission grants
const (
	ConditionOpEq       = "eq"
	ConditionOpNe       = "ne"
	ConditionOpIn       = "in"
	ConditionOpContains = "contains"
)

// Condition is one clause of a grant's condition set, evaluated against a
// record's data map. All clauses of a grant must hold (conjunction).
type Condition struct {
	Field string      `json:"field"`
	Op    string      `json:"op"`
	Value interface{} `json:"value"`
}

// ConditionList is a conjunctive condition set stored as a JSONB document.
type ConditionList []Condition

// Value implements the driver.Valuer interface
func (c ConditionList) Value() (driver.Value, error) {
	if c == nil {
		return nil, nil
	}
	return json.Marshal(c)
}

// Scan implements the sql.Scanner interface
func (c *ConditionList) Scan(value interface{}) error {
	if value == nil {
		*c = nil
		return nil
	}

	bytes, err := jsonbBytes(value)
	if err != nil {
		return err
	}
	if len(bytes) == 0 {
		*c = make(ConditionList, 0)
		return nil
	}

	var result []Condition
	if err := json.Unmarshal(bytes, &result); err != nil {
		return err
	}
	*c = result
	return nil
}
