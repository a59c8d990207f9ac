package entity

import (
	"errors"
	"fmt"
)

// ErrValidationFailed is matched by every *ValidationError via errors.Is.
var ErrValidationFailed = errors.New("validation failed")

// ValidationError reports which field of an entity is invalid.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns a formatted error message for the validation error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// Is reports whether target is ErrValidationFailed.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}
