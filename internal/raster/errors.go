package raster

import (
	"errors"
	"fmt"
)

// Common rasterization errors
var (
	// ErrInvalidPDF is returned when the provided data is not a valid PDF document.
	ErrInvalidPDF = errors.New("invalid or corrupted PDF document")

	// ErrBackendUnavailable is returned when the rasterization backend
	// cannot run at all (e.g. pdftoppm is not installed).
	ErrBackendUnavailable = errors.New("rasterization backend unavailable")
)

// Error wraps errors with additional context about the rasterization failure.
type Error struct {
	// Op is the operation that failed (e.g. "Rasterize", "renderPage").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("raster: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("raster: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new Error with the specified operation and underlying error.
func NewError(op string, err error, details string) *Error {
	return &Error{Op: op, Err: err, Details: details}
}

// WrapError wraps an error as a raster Error if it isn't already one.
func WrapError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var rerr *Error
	if errors.As(err, &rerr) {
		return err // Already wrapped
	}

	return NewError(op, err, details)
}
