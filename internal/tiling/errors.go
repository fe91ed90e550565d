package tiling

import (
	"errors"
	"fmt"
)

// Common tile extraction errors
var (
	// ErrInvalidRegion is returned when a tile rectangle falls outside
	// the page bounds. The planner never produces such a rectangle, but
	// the extractor defends against it anyway.
	ErrInvalidRegion = errors.New("tile region outside page bounds")

	// ErrImageDecode is returned when the page image cannot be decoded.
	ErrImageDecode = errors.New("page image decode failed")
)

// ExtractionError wraps errors with context about a failed tile
// extraction. Extraction failures are local to one tile; callers drop
// the tile and continue with the rest of the page.
type ExtractionError struct {
	// Op is the operation that failed.
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *ExtractionError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("tiling: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("tiling: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *ExtractionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewExtractionError creates a new ExtractionError.
func NewExtractionError(op string, err error, details string) *ExtractionError {
	return &ExtractionError{Op: op, Err: err, Details: details}
}
