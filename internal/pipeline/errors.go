package pipeline

import (
	"errors"
	"fmt"
)

// Common pipeline errors
var (
	// ErrNoPages is returned when rasterization yields no usable pages,
	// so there is nothing to transcribe.
	ErrNoPages = errors.New("no pages processed")
)

// Error wraps errors with context about a failed pipeline stage.
type Error struct {
	// Op is the operation that failed.
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("pipeline: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("pipeline: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new Error.
func NewError(op string, err error, details string) *Error {
	return &Error{Op: op, Err: err, Details: details}
}
