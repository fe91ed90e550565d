// Package raster converts PDF documents into per-page raster images.
//
// Two backends are provided behind the Rasterizer interface: MuPDF
// (in-process, via go-fitz) and Poppler (external pdftoppm). Which one
// is used is a deployment decision made through configuration; the
// backends are alternatives, not a fallback chain.
//
// A page-count cap bounds cost and latency for pathologically long
// documents. Hitting the cap is early termination, never an error.
// Backends that can isolate page failures skip the broken page and
// report it in Result.Skipped instead of failing the document.
package raster

import (
	"context"
)

const (
	// DefaultDPI is the render resolution used when Options.DPI is unset.
	// 200 DPI is enough for reliable text recognition on invoice scans.
	DefaultDPI = 200

	// DefaultMaxPages caps how many pages of a document are rendered.
	DefaultMaxPages = 20
)

// Page is one rendered PDF page.
type Page struct {
	// Index is the zero-based page number within the source document.
	Index int

	// Width and Height are the pixel dimensions of the rendered image.
	Width  int
	Height int

	// PNG holds the encoded image. The buffer is owned by the receiver
	// and is not shared with the backend after Rasterize returns.
	PNG []byte
}

// PageError records a page that could not be rendered.
type PageError struct {
	Index int
	Err   error
}

// Result is the outcome of rasterizing one document.
type Result struct {
	// Pages holds the successfully rendered pages in document order.
	Pages []Page

	// Skipped lists pages that failed to render. A non-empty Skipped
	// list with a non-empty Pages list is a partial success.
	Skipped []PageError
}

// Options controls rasterization.
type Options struct {
	DPI      int
	MaxPages int
}

func (o Options) normalized() Options {
	if o.DPI <= 0 {
		o.DPI = DefaultDPI
	}
	if o.MaxPages <= 0 {
		o.MaxPages = DefaultMaxPages
	}
	return o
}

// Rasterizer renders PDF bytes into page images.
type Rasterizer interface {
	// Rasterize renders up to opts.MaxPages pages at opts.DPI. It fails
	// only when the document as a whole cannot be read; per-page render
	// failures are reported through Result.Skipped.
	Rasterize(ctx context.Context, pdf []byte, opts Options) (*Result, error)
}

// validatePDF rejects inputs that are not PDF documents before any
// backend work is attempted.
func validatePDF(pdf []byte) error {
	if len(pdf) == 0 {
		return NewError("validatePDF", ErrInvalidPDF, "empty input")
	}
	if len(pdf) < 4 || string(pdf[:4]) != "%PDF" {
		return NewError("validatePDF", ErrInvalidPDF, "missing PDF header")
	}
	return nil
}
