// Package apperr holds the error taxonomy shared by the engine, the HTTP
// boundary and the front-ends.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrConflict means the interval was claimed by someone else at commit time.
	ErrConflict = errors.New("slot already booked")
	// ErrNotFound covers missing records and bookings that are already terminal.
	ErrNotFound = errors.New("not found")
	// ErrTransient wraps timeouts and connectivity failures. Never retried automatically.
	ErrTransient = errors.New("temporary network failure")
)

// ValidationError is a local input failure. It blocks the current step and
// is never sent over the boundary.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// Transient wraps err so that errors.Is(err, ErrTransient) holds.
func Transient(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrTransient, err)
}

// Code returns a stable machine-readable error code.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case IsValidation(err):
		return "validation_error"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "internal"
	}
}
