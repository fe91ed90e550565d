package raster

import (
	"bytes"
	"context"
	"fmt"
	"image/png"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog"

	"docpipe/internal/logger"
)

// MuPDF renders PDF pages in-process through go-fitz.
type MuPDF struct {
	log zerolog.Logger
}

// NewMuPDF creates the MuPDF-backed rasterizer.
func NewMuPDF() *MuPDF {
	return &MuPDF{log: logger.WithComponent("raster-mupdf")}
}

// Rasterize renders up to opts.MaxPages pages of the document. A page
// that fails to render is skipped and reported; only a document that
// cannot be opened at all fails the call.
func (m *MuPDF) Rasterize(ctx context.Context, pdf []byte, opts Options) (*Result, error) {
	const op = "Rasterize"
	opts = opts.normalized()

	if err := validatePDF(pdf); err != nil {
		return nil, err
	}

	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, NewError(op, ErrInvalidPDF, fmt.Sprintf("open document: %v", err))
	}
	defer func() {
		if closeErr := doc.Close(); closeErr != nil {
			m.log.Warn().Err(closeErr).Msg("Failed to close PDF document")
		}
	}()

	total := doc.NumPage()
	if total == 0 {
		return &Result{}, nil
	}

	count := total
	if count > opts.MaxPages {
		m.log.Info().
			Int("pages", total).
			Int("max_pages", opts.MaxPages).
			Msg("Document exceeds page cap, truncating")
		count = opts.MaxPages
	}

	result := &Result{Pages: make([]Page, 0, count)}
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, WrapError(op, err, "canceled during rasterization")
		}

		img, err := doc.ImageDPI(i, float64(opts.DPI))
		if err != nil {
			m.log.Warn().
				Err(err).
				Int("page", i+1).
				Msg("Failed to render page, skipping")
			result.Skipped = append(result.Skipped, PageError{
				Index: i,
				Err:   NewError(op, err, fmt.Sprintf("render page %d", i+1)),
			})
			continue
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			result.Skipped = append(result.Skipped, PageError{
				Index: i,
				Err:   NewError(op, err, fmt.Sprintf("encode page %d", i+1)),
			})
			continue
		}

		bounds := img.Bounds()
		result.Pages = append(result.Pages, Page{
			Index:  i,
			Width:  bounds.Dx(),
			Height: bounds.Dy(),
			PNG:    buf.Bytes(),
		})
	}

	m.log.Debug().
		Int("rendered", len(result.Pages)).
		Int("skipped", len(result.Skipped)).
		Int("dpi", opts.DPI).
		Msg("Rasterization complete")

	return result, nil
}
