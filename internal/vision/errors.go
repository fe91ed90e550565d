package vision

import (
	"errors"
	"fmt"
)

// Common transcription errors
var (
	// ErrTranscriptionFailed is returned when the vision model call
	// fails after the retry budget is exhausted.
	ErrTranscriptionFailed = errors.New("vision transcription failed")

	// ErrMalformedResponse is returned when the model answers with an
	// unusable payload (e.g. no choices).
	ErrMalformedResponse = errors.New("malformed vision model response")

	// ErrMissingCredentials is returned when the backend has no API
	// credentials configured.
	ErrMissingCredentials = errors.New("missing vision backend credentials")
)

// Error wraps errors with context about a failed transcription and
// records whether the condition is transient. Transient failures
// (timeouts, rate limits, 5xx) are retried; permanent ones (4xx,
// malformed requests) surface immediately.
type Error struct {
	// Op is the operation that failed.
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string

	// Transient marks conditions worth retrying.
	Transient bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("vision: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("vision: %s failed: %v", e.Op, e.Err)
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
func NewError(op string, err error, details string, transient bool) *Error {
	return &Error{Op: op, Err: err, Details: details, Transient: transient}
}

// IsTransient reports whether err is a transient transcription failure.
func IsTransient(err error) bool {
	var verr *Error
	return errors.As(err, &verr) && verr.Transient
}
