// Package engine - Validation Engine
// Validates a record's data map against a model's field list, collecting
// every field-level failure instead of stopping at the first one.
package engine

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/aethra/strata/internal/errors"
	"github.com/aethra/strata/internal/models"
	"github.com/aethra/strata/internal/security"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	urlRegex   = regexp.MustCompile(`^https?://[^\s]+$`)
)

const dateLayout = "2006-01-02"

// Validator checks record data against field lists using the catalog's
// validation rules.
type Validator struct {
	catalog *Catalog
}

// NewValidator creates a new validator
func NewValidator(catalog *Catalog) *Validator {
	return &Validator{catalog: catalog}
}

// Validate runs the field list over the data map in schema order and returns
// every field-level error. An empty result means the record is valid.
// Malformed schemas never surface here; they are rejected at create and
// version-promotion time by ValidateFieldConfig.
func (v *Validator) Validate(model *models.DynamicModel, data map[string]interface{}) []errors.FieldError {
	return v.ValidateFields(model.Fields, data)
}

// ValidateFields validates data against an explicit field list. Used
// directly when extension fields are merged onto a built-in type.
func (v *Validator) ValidateFields(fields models.FieldList, data map[string]interface{}) []errors.FieldError {
	var errs []errors.FieldError

	for _, field := range fields {
		value, present := data[field.Name]
		if !present || isEmptyValue(value) {
			if field.Required {
				errs = append(errs, errors.FieldError{
					Field:   field.Name,
					Message: fmt.Sprintf("field %s is required", field.Name),
				})
			}
			continue
		}

		ft, err := v.catalog.Lookup(field.Type)
		if err != nil {
			// Unknown type in a persisted schema should not happen; treat
			// the value as unverifiable rather than panic mid-validation.
			errs = append(errs, errors.FieldError{
				Field:   field.Name,
				Message: fmt.Sprintf("field %s has unknown type %s", field.Name, field.Type),
			})
			continue
		}

		if fe := v.validateValue(ft, field, value); fe != nil {
			errs = append(errs, *fe)
		}
	}

	return errs
}

func (v *Validator) validateValue(ft FieldTypeDescriptor, field models.FieldDefinition, value interface{}) *errors.FieldError {
	switch ft.ValidationRule {
	case "string":
		return validateString(field, value)
	case "number":
		return validateNumber(field, value)
	case "email":
		return validatePattern(field, value, emailRegex, "must be a valid email address")
	case "url":
		return validatePattern(field, value, urlRegex, "must be a valid http(s) URL")
	case "date":
		return validateDate(field, value)
	case "datetime":
		return validateDatetime(field, value)
	case "boolean":
		return validateBoolean(field, value)
	case "select":
		return validateSelect(field, value)
	case "multiselect":
		return validateMultiselect(field, value)
	default:
		return nil
	}
}

func validateString(field models.FieldDefinition, value interface{}) *errors.FieldError {
	s, ok := value.(string)
	if !ok {
		return fieldErrorf(field, "must be a string")
	}
	if field.MinLength != nil && len(s) < *field.MinLength {
		return fieldErrorf(field, "must be at least %d characters", *field.MinLength)
	}
	if field.MaxLength != nil && len(s) > *field.MaxLength {
		return fieldErrorf(field, "must be at most %d characters", *field.MaxLength)
	}
	return nil
}

func validateNumber(field models.FieldDefinition, value interface{}) *errors.FieldError {
	n, ok := toFloat(value)
	if !ok {
		return fieldErrorf(field, "must be a number")
	}
	if field.Min != nil && n < *field.Min {
		return fieldErrorf(field, "must be at least %v", *field.Min)
	}
	if field.Max != nil && n > *field.Max {
		return fieldErrorf(field, "must be at most %v", *field.Max)
	}
	return nil
}

func validatePattern(field models.FieldDefinition, value interface{}, pattern *regexp.Regexp, message string) *errors.FieldError {
	s, ok := value.(string)
	if !ok || !pattern.MatchString(s) {
		return fieldErrorf(field, "%s", message)
	}
	return nil
}

func validateDate(field models.FieldDefinition, value interface{}) *errors.FieldError {
	s, ok := value.(string)
	if !ok {
		return fieldErrorf(field, "must be a date in YYYY-MM-DD format")
	}
	if _, err := time.Parse(dateLayout, s); err != nil {
		return fieldErrorf(field, "must be a date in YYYY-MM-DD format")
	}
	return nil
}

func validateDatetime(field models.FieldDefinition, value interface{}) *errors.FieldError {
	s, ok := value.(string)
	if !ok {
		return fieldErrorf(field, "must be an ISO-8601 datetime")
	}
	if _, err := time.Parse(time.RFC3339, s); err != nil {
		return fieldErrorf(field, "must be an ISO-8601 datetime")
	}
	return nil
}

func validateBoolean(field models.FieldDefinition, value interface{}) *errors.FieldError {
	if _, ok := CoerceBool(value); !ok {
		return fieldErrorf(field, "must be a boolean")
	}
	return nil
}

func validateSelect(field models.FieldDefinition, value interface{}) *errors.FieldError {
	s, ok := value.(string)
	if !ok || !field.HasOption(s) {
		return fieldErrorf(field, "must be one of: %s", strings.Join(field.Options, ", "))
	}
	return nil
}

func validateMultiselect(field models.FieldDefinition, value interface{}) *errors.FieldError {
	items, ok := toStringSlice(value)
	if !ok {
		return fieldErrorf(field, "must be a list of options")
	}
	for _, item := range items {
		if !field.HasOption(item) {
			return fieldErrorf(field, "'%s' is not one of: %s", item, strings.Join(field.Options, ", "))
		}
	}
	return nil
}

// CoerceBool interprets booleans and the canonical truthy/falsy tokens
// ("true"/"false"/"1"/"0"/1/0). The second return is false when the value
// is not a recognized boolean form.
func CoerceBool(value interface{}) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(v) {
		case "true", "1":
			return true, true
		case "false", "0":
			return false, true
		}
	case int:
		if v == 0 || v == 1 {
			return v == 1, true
		}
	case float64:
		if v == 0 || v == 1 {
			return v == 1, true
		}
	case json.Number:
		if v.String() == "0" || v.String() == "1" {
			return v.String() == "1", true
		}
	}
	return false, false
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toStringSlice(value interface{}) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return v, true
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func isEmptyValue(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []interface{}:
		return len(v) == 0
	case []string:
		return len(v) == 0
	default:
		return false
	}
}

func fieldErrorf(field models.FieldDefinition, format string, args ...interface{}) *errors.FieldError {
	return &errors.FieldError{
		Field:   field.Name,
		Message: fmt.Sprintf("field %s %s", field.Name, fmt.Sprintf(format, args...)),
	}
}

// =============================================================================
// SCHEMA-LEVEL VALIDATION
// =============================================================================

// ValidateFieldConfig checks a field list against the structural invariants:
// names are unique identifiers, types exist in the catalog, choice types
// carry options, bounds are coherent. Any violation aborts the operation
// before persistence.
func (v *Validator) ValidateFieldConfig(fields models.FieldList) error {
	if len(fields) == 0 {
		return errors.NewInvalidFieldConfigError("", "field list cannot be empty")
	}

	seen := make(map[string]bool, len(fields))
	for _, field := range fields {
		if err := security.ValidateFieldName(field.Name); err != nil {
			return errors.NewInvalidFieldConfigError(field.Name, fmt.Sprintf("invalid field name '%s': %v", field.Name, err))
		}
		if seen[field.Name] {
			return errors.NewInvalidFieldConfigError(field.Name, fmt.Sprintf("duplicate field name '%s'", field.Name))
		}
		seen[field.Name] = true

		ft, err := v.catalog.Lookup(field.Type)
		if err != nil {
			return err
		}
		if ft.IsChoice && len(field.Options) == 0 {
			return errors.NewInvalidFieldConfigError(field.Name, fmt.Sprintf("field '%s' of type %s requires options", field.Name, field.Type))
		}
		if field.MinLength != nil && field.MaxLength != nil && *field.MinLength > *field.MaxLength {
			return errors.NewInvalidFieldConfigError(field.Name, fmt.Sprintf("field '%s' min_length exceeds max_length", field.Name))
		}
		if field.Min != nil && field.Max != nil && *field.Min > *field.Max {
			return errors.NewInvalidFieldConfigError(field.Name, fmt.Sprintf("field '%s' min exceeds max", field.Name))
		}
	}
	return nil
}
