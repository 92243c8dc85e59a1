package validate

import (
	"errors"
	"fmt"
)

// Sentinel kinds for validation errors.
var (
	ErrMissingField = errors.New("required field missing")
	ErrOutOfRange   = errors.New("value out of range")
)

// FieldError reports the field that failed validation.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	if errors.Is(e.Err, ErrMissingField) {
		return fmt.Sprintf("%s is required", e.Field)
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

func missing(field string) error {
	return &FieldError{Field: field, Err: ErrMissingField}
}

func outOfRange(field string, lo, hi int) error {
	return &FieldError{Field: field, Err: fmt.Errorf("%w: must be an integer in [%d, %d]", ErrOutOfRange, lo, hi)}
}
