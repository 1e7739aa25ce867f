// Package engine - Form and table schema generation for UI consumption
package engine

import (
	"github.com/aethra/strata/internal/models"
)

// FormField is one entry of a generated form schema.
type FormField struct {
	Name            string                 `json:"name"`
	Label           string                 `json:"label"`
	Type            string                 `json:"type"`
	Required        bool                   `json:"required"`
	ValidationRules map[string]interface{} `json:"validation_rules"`
	Options         []string               `json:"options,omitempty"`
	UIHint          string                 `json:"ui_hint,omitempty"`
	HelpText        string                 `json:"help_text,omitempty"`
}

// FormSchema is the UI contract for rendering a model's edit form.
type FormSchema struct {
	Model  string      `json:"model"`
	Fields []FormField `json:"fields"`
}

// GenerateFormSchema builds the form schema for a model from its field list
// and the type catalog.
func GenerateFormSchema(catalog *Catalog, model *models.DynamicModel) FormSchema {
	schema := FormSchema{Model: model.Name, Fields: make([]FormField, 0, len(model.Fields))}

	for _, f := range model.Fields {
		ff := FormField{
			Name:            f.Name,
			Label:           f.DisplayLabel(),
			Type:            f.Type,
			Required:        f.Required,
			ValidationRules: map[string]interface{}{},
			Options:         f.Options,
			HelpText:        f.HelpText,
		}
		if ft, err := catalog.Lookup(f.Type); err == nil {
			ff.UIHint = ft.UIHint
			ff.ValidationRules["rule"] = ft.ValidationRule
		}
		if f.Required {
			ff.ValidationRules["required"] = true
		}
		if f.MinLength != nil {
			ff.ValidationRules["min_length"] = *f.MinLength
		}
		if f.MaxLength != nil {
			ff.ValidationRules["max_length"] = *f.MaxLength
		}
		if f.Min != nil {
			ff.ValidationRules["min"] = *f.Min
		}
		if f.Max != nil {
			ff.ValidationRules["max"] = *f.Max
		}
		schema.Fields = append(schema.Fields, ff)
	}
	return schema
}

// DisplayFields returns the fields marked show_in_list, or the first three
// fields when none are marked.
func DisplayFields(model *models.DynamicModel) models.FieldList {
	var marked models.FieldList
	for _, f := range model.Fields {
		if f.ShowInList {
			marked = append(marked, f)
		}
	}
	if len(marked) > 0 {
		return marked
	}
	if len(model.Fields) <= 3 {
		return model.Fields
	}
	return model.Fields[:3]
}
