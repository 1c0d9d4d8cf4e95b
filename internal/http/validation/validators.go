// Package validation checks raw query parameters before they are converted into typed options.
package validation

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	apperrors "github.com/target/jobrelay/internal/errors"
)

// Validator is a function that validates a string value and returns an error message if invalid.
// An empty value is always accepted: query parameters are optional.
type Validator func(v string) string

// IntRange validates that a field is a valid integer between minVal and maxVal.
func IntRange(fieldName string, minVal, maxVal int) Validator {
	return func(v string) string {
		v = strings.TrimSpace(v)
		if v == "" {
			return ""
		}
		i, err := strconv.Atoi(v)
		if err != nil {
			return fieldName + " must be a number."
		}
		if i < minVal || i > maxVal {
			return fmt.Sprintf("%s must be between %d and %d.", fieldName, minVal, maxVal)
		}
		return ""
	}
}

// NonNegativeInt validates that a field is an integer of at least zero.
func NonNegativeInt(fieldName string) Validator {
	return func(v string) string {
		v = strings.TrimSpace(v)
		if v == "" {
			return ""
		}
		i, err := strconv.Atoi(v)
		if err != nil {
			return fieldName + " must be a number."
		}
		if i < 0 {
			return fieldName + " must be non-negative."
		}
		return ""
	}
}

// OneOf validates that a field matches one of the provided options (case-insensitive).
func OneOf(fieldName string, options []string) Validator {
	return func(v string) string {
		v = strings.TrimSpace(v)
		if v == "" {
			return ""
		}
		for _, opt := range options {
			if strings.EqualFold(v, opt) {
				return ""
			}
		}
		return fmt.Sprintf("%s must be one of: %s", fieldName, strings.Join(options, ", "))
	}
}

// MaxLen validates that a field does not exceed maxLen characters.
// Uses rune count for proper Unicode support.
func MaxLen(fieldName string, maxLen int) Validator {
	return func(v string) string {
		if utf8.RuneCountInString(strings.TrimSpace(v)) > maxLen {
			return fmt.Sprintf("%s cannot exceed %d characters.", fieldName, maxLen)
		}
		return ""
	}
}

// FieldValidator provides a fluent API for validating multiple fields.
type FieldValidator struct {
	errors map[string]string
	order  []string
}

// New creates a new FieldValidator instance.
func New() *FieldValidator {
	return &FieldValidator{errors: make(map[string]string)}
}

// Validate validates a field with one or more validators.
// It stops at the first error for each field.
func (fv *FieldValidator) Validate(field, value string, validators ...Validator) *FieldValidator {
	for _, v := range validators {
		if err := v(value); err != "" {
			if _, seen := fv.errors[field]; !seen {
				fv.order = append(fv.order, field)
			}
			fv.errors[field] = err
			break // Stop at first error per field
		}
	}
	return fv
}

// Errors returns the accumulated validation errors.
func (fv *FieldValidator) Errors() map[string]string {
	return fv.errors
}

// Err returns the first failure, in validation order, as a field-scoped
// validation error, or nil when every field passed.
func (fv *FieldValidator) Err() error {
	if len(fv.order) == 0 {
		return nil
	}
	field := fv.order[0]
	return apperrors.ValidationField(field, fv.errors[field])
}
