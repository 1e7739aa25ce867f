// Package errors provides custom error types for Strata
package errors

import (
	"fmt"
	"net/http"
	"strings"
)

// StrataError is the base interface for all Strata errors
type StrataError interface {
	error
	HTTPStatus() int
	Code() string
}

// BaseError is the base implementation of StrataError
type BaseError struct {
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	ErrorCode  string `json:"code"`
	Details    string `json:"details,omitempty"`
}

func (e *BaseError) Error() string {
	return e.Message
}

func (e *BaseError) HTTPStatus() int {
	return e.StatusCode
}

func (e *BaseError) Code() string {
	return e.ErrorCode
}

// FieldError is a single field-level validation failure
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	BaseError
	Resource string
}

func NewNotFoundError(resource string) *NotFoundError {
	return &NotFoundError{
		BaseError: BaseError{
			Message:    fmt.Sprintf("%s not found", resource),
			StatusCode: http.StatusNotFound,
			ErrorCode:  "NOT_FOUND",
		},
		Resource: resource,
	}
}

// DuplicateNameError is returned when a (site, name) pair is already taken
type DuplicateNameError struct {
	BaseError
	Name string
}

func NewDuplicateNameError(name string) *DuplicateNameError {
	return &DuplicateNameError{
		BaseError: BaseError{
			Message:    fmt.Sprintf("model '%s' already exists for this site", name),
			StatusCode: http.StatusConflict,
			ErrorCode:  "DUPLICATE_NAME",
		},
		Name: name,
	}
}

// InvalidFieldConfigError is a structural schema error: duplicate field
// names, bad identifiers, missing options on choice types. Fatal before
// any persistence happens.
type InvalidFieldConfigError struct {
	BaseError
	Field string
}

func NewInvalidFieldConfigError(field, message string) *InvalidFieldConfigError {
	return &InvalidFieldConfigError{
		BaseError: BaseError{
			Message:    message,
			StatusCode: http.StatusBadRequest,
			ErrorCode:  "INVALID_FIELD_CONFIG",
		},
		Field: field,
	}
}

// UnknownFieldTypeError is returned when a field references a type missing
// from the catalog
type UnknownFieldTypeError struct {
	BaseError
	TypeName string
}

func NewUnknownFieldTypeError(typeName string) *UnknownFieldTypeError {
	return &UnknownFieldTypeError{
		BaseError: BaseError{
			Message:    fmt.Sprintf("unknown field type '%s'", typeName),
			StatusCode: http.StatusBadRequest,
			ErrorCode:  "UNKNOWN_FIELD_TYPE",
		},
		TypeName: typeName,
	}
}

// ValidationFailedError carries every field-level failure of a record write
// so the caller can present a complete correction list in one round trip.
type ValidationFailedError struct {
	BaseError
	Errors []FieldError `json:"errors"`
}

func NewValidationFailedError(errs []FieldError) *ValidationFailedError {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return &ValidationFailedError{
		BaseError: BaseError{
			Message:    "validation failed: " + strings.Join(msgs, "; "),
			StatusCode: http.StatusBadRequest,
			ErrorCode:  "VALIDATION_FAILED",
		},
		Errors: errs,
	}
}

// NotAnExtensionError is returned when a standalone model is applied as an
// extension
type NotAnExtensionError struct {
	BaseError
	ModelName string
}

func NewNotAnExtensionError(modelName string) *NotAnExtensionError {
	return &NotAnExtensionError{
		BaseError: BaseError{
			Message:    fmt.Sprintf("model '%s' is not an extension", modelName),
			StatusCode: http.StatusBadRequest,
			ErrorCode:  "NOT_AN_EXTENSION",
		},
		ModelName: modelName,
	}
}

// ExtensionError represents a failure while attaching an extension
type ExtensionError struct {
	BaseError
}

func NewExtensionError(message string) *ExtensionError {
	return &ExtensionError{
		BaseError: BaseError{
			Message:    message,
			StatusCode: http.StatusUnprocessableEntity,
			ErrorCode:  "EXTENSION_ERROR",
		},
	}
}

// VersionNotFoundError is returned for rollback targets that do not exist
// in the model's own lineage
type VersionNotFoundError struct {
	BaseError
	Version int
}

func NewVersionNotFoundError(version int) *VersionNotFoundError {
	return &VersionNotFoundError{
		BaseError: BaseError{
			Message:    fmt.Sprintf("version %d not found", version),
			StatusCode: http.StatusNotFound,
			ErrorCode:  "VERSION_NOT_FOUND",
		},
		Version: version,
	}
}

// PermissionDeniedError represents a permission denied error. Reported
// distinctly from validation errors so callers render "forbidden" rather
// than "bad request".
type PermissionDeniedError struct {
	BaseError
	Action   string
	Resource string
}

func NewPermissionDeniedError(action, resource string) *PermissionDeniedError {
	return &PermissionDeniedError{
		BaseError: BaseError{
			Message:    "permission denied",
			StatusCode: http.StatusForbidden,
			ErrorCode:  "PERMISSION_DENIED",
		},
		Action:   action,
		Resource: resource,
	}
}

// AlreadyExistsError represents an import conflict
type AlreadyExistsError struct {
	BaseError
	Resource string
}

func NewAlreadyExistsError(resource string) *AlreadyExistsError {
	return &AlreadyExistsError{
		BaseError: BaseError{
			Message:    fmt.Sprintf("%s already exists", resource),
			StatusCode: http.StatusConflict,
			ErrorCode:  "ALREADY_EXISTS",
		},
		Resource: resource,
	}
}

// UnauthorizedError represents an authentication error
type UnauthorizedError struct {
	BaseError
}

func NewUnauthorizedError(message string) *UnauthorizedError {
	if message == "" {
		message = "authentication required"
	}
	return &UnauthorizedError{
		BaseError: BaseError{
			Message:    message,
			StatusCode: http.StatusUnauthorized,
			ErrorCode:  "UNAUTHORIZED",
		},
	}
}

// BadRequestError represents a generic bad request error
type BadRequestError struct {
	BaseError
}

func NewBadRequestError(message string) *BadRequestError {
	return &BadRequestError{
		BaseError: BaseError{
			Message:    message,
			StatusCode: http.StatusBadRequest,
			ErrorCode:  "BAD_REQUEST",
		},
	}
}

// InternalError represents an internal server error
type InternalError struct {
	BaseError
	OriginalError error
}

func NewInternalError(original error) *InternalError {
	return &InternalError{
		BaseError: BaseError{
			Message:    "internal server error",
			StatusCode: http.StatusInternalServerError,
			ErrorCode:  "INTERNAL_ERROR",
		},
		OriginalError: original,
	}
}

// ToHTTPError converts any error to an appropriate HTTP response
func ToHTTPError(err error) (int, map[string]interface{}) {
	if err == nil {
		return http.StatusOK, nil
	}

	if ve, ok := err.(*ValidationFailedError); ok {
		return ve.HTTPStatus(), map[string]interface{}{
			"error":   ve.Code(),
			"message": "validation failed",
			"errors":  ve.Errors,
		}
	}

	if se, ok := err.(StrataError); ok {
		return se.HTTPStatus(), map[string]interface{}{
			"error":   se.Code(),
			"message": se.Error(),
		}
	}

	return http.StatusInternalServerError, map[string]interface{}{
		"error":   "INTERNAL_ERROR",
		"message": "internal server error",
	}
}
