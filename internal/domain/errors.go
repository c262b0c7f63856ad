// Package domain holds the error taxonomy shared by the domain services,
// the storage layer and the HTTP error mapping.
package domain

import (
	"errors"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrAuthenticationRequired is returned when no identity could be resolved.
	ErrAuthenticationRequired = errors.New("authentication required")

	// ErrAuthorizationDenied is returned when an identity lacks a required permission.
	ErrAuthorizationDenied = errors.New("authorization denied")

	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write would violate a uniqueness rule.
	ErrConflict = errors.New("conflict")

	// ErrInvalidCredentials is returned by login when email or password do not match.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrStorage marks failures of the underlying persistence layer.
	ErrStorage = errors.New("storage error")
)

// ValidationError describes malformed input. Fields maps an input field
// name to a short reason.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return e.Message + " (" + strings.Join(parts, ", ") + ")"
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{
		Message: "validation failed",
		Fields:  map[string]string{field: reason},
	}
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// FromValidator converts go-playground validator output into a ValidationError.
// Errors of any other type are returned unchanged.
func FromValidator(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[jsonFieldName(fe.Field())] = describeTag(fe)
	}
	return &ValidationError{Message: "validation failed", Fields: fields}
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gtfield":
		return "must be after " + jsonFieldName(fe.Param())
	case "uuid":
		return "must be a valid UUID"
	default:
		return "is invalid"
	}
}

// jsonFieldName lower-cases the first rune so struct field names match the
// camelCase JSON keys clients send.
func jsonFieldName(name string) string {
	if name == "" {
		return name
	}
	return strings.ToLower(name[:1]) + name[1:]
}

// NormalizePage applies a default and an upper bound to limit and rejects
// negative values.
func NormalizePage(limit, offset, defaultLimit, maxLimit int) (int, int, error) {
	if limit < 0 {
		return 0, 0, NewValidationError("limit", "must not be negative")
	}
	if offset < 0 {
		return 0, 0, NewValidationError("offset", "must not be negative")
	}
	if limit == 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit, offset, nil
}
