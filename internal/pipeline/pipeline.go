// Package pipeline orchestrates the document OCR flow: rasterize the
// PDF into page images, plan and extract tiles from oversized pages,
// transcribe every tile through a vision model with bounded
// concurrency, and reassemble the per-tile text into one document
// string in reading order.
//
// The pipeline degrades rather than aborts: a page that fails to
// rasterize or a tile that fails to transcribe becomes an entry in
// Result.Errors while the rest of the document still goes through.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"docpipe/internal/logger"
	"docpipe/internal/raster"
	"docpipe/internal/tiling"
	"docpipe/internal/vision"
)

// Config controls one pipeline run.
type Config struct {
	// DPI is the rasterization resolution.
	DPI int

	// MaxPages caps how many pages of the document are processed.
	MaxPages int

	// TileMaxSidePx is the preferred maximum tile side length.
	TileMaxSidePx int

	// AspectRatioSplitTrigger decides the split axis for oversized
	// pages.
	AspectRatioSplitTrigger float64

	// TileOverlapFraction is the overlap between adjacent tiles as a
	// fraction of the window size.
	TileOverlapFraction float64

	// MaxConcurrent bounds in-flight transcription calls.
	MaxConcurrent int
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() Config {
	return Config{
		DPI:                     raster.DefaultDPI,
		MaxPages:                raster.DefaultMaxPages,
		TileMaxSidePx:           2048,
		AspectRatioSplitTrigger: 2.7,
		TileOverlapFraction:     0.05,
		MaxConcurrent:           5,
	}
}

func (c Config) planConfig() tiling.PlanConfig {
	return tiling.PlanConfig{
		MaxSidePx:          c.TileMaxSidePx,
		AspectSplitTrigger: c.AspectRatioSplitTrigger,
		OverlapFraction:    c.TileOverlapFraction,
	}
}

// Pipeline runs PDF documents through rasterization, tiling,
// transcription, and reassembly.
type Pipeline struct {
	rasterizer  raster.Rasterizer
	transcriber vision.Transcriber
	config      Config
	log         zerolog.Logger
}

// New creates a pipeline over the given rasterizer and transcriber.
func New(rasterizer raster.Rasterizer, transcriber vision.Transcriber, config Config) *Pipeline {
	return &Pipeline{
		rasterizer:  rasterizer,
		transcriber: transcriber,
		config:      config,
		log:         logger.WithComponent("pipeline"),
	}
}

// Process runs one PDF through the full pipeline. It returns ErrNoPages
// when not a single page could be rasterized; any lesser failure is
// reported through Result.Errors alongside the partial text.
func (p *Pipeline) Process(ctx context.Context, pdf []byte) (*Result, error) {
	const op = "Process"
	start := time.Now()

	p.log.Info().
		Int("pdf_bytes", len(pdf)).
		Int("dpi", p.config.DPI).
		Msg("Starting document processing")

	rres, err := p.rasterizer.Rasterize(ctx, pdf, raster.Options{
		DPI:      p.config.DPI,
		MaxPages: p.config.MaxPages,
	})
	if err != nil {
		return nil, NewError(op, err, "rasterization failed")
	}

	var errs []string
	for _, skip := range rres.Skipped {
		errs = append(errs, fmt.Sprintf("page %d: %v", skip.Index+1, skip.Err))
	}

	if len(rres.Pages) == 0 {
		return nil, NewError(op, ErrNoPages, "document produced no usable page images")
	}

	jobs, planErrs := p.planJobs(rres.Pages)
	errs = append(errs, planErrs...)

	p.log.Info().
		Int("pages", len(rres.Pages)).
		Int("tiles", len(jobs)).
		Int("max_concurrent", p.config.MaxConcurrent).
		Msg("Dispatching tiles for transcription")

	results := dispatch(ctx, p.transcriber, jobs, p.config.MaxConcurrent)

	succeeded := 0
	tokens := 0
	for _, r := range results {
		if r.Succeeded {
			succeeded++
			tokens += r.Usage.TotalTokens
			continue
		}
		errs = append(errs, fmt.Sprintf("page %d chunk %d: %s", r.Page+1, r.Chunk, r.ErrMessage))
	}

	rate := 0.0
	if len(results) > 0 {
		rate = float64(succeeded) / float64(len(results))
	}

	result := &Result{
		FullText:       assemble(results),
		TotalPages:     len(rres.Pages),
		TotalChunks:    len(results),
		ProcessingTime: time.Since(start),
		TokensUsed:     tokens,
		SuccessRate:    rate,
		Errors:         errs,
	}

	p.log.Info().
		Int("pages", result.TotalPages).
		Int("chunks", result.TotalChunks).
		Int("tokens", result.TokensUsed).
		Float64("success_rate", result.SuccessRate).
		Dur("duration", result.ProcessingTime).
		Msg("Document processing complete")

	return result, nil
}

// planJobs plans tiles for every page and extracts their PNGs. Pages
// whose tiles cannot be extracted contribute error messages instead of
// jobs.
func (p *Pipeline) planJobs(pages []raster.Page) ([]job, []string) {
	planCfg := p.config.planConfig()

	var jobs []job
	var errs []string
	for _, page := range pages {
		rects := tiling.Plan(page.Width, page.Height, planCfg)

		if len(rects) > 1 {
			p.log.Debug().
				Int("page", page.Index).
				Int("width", page.Width).
				Int("height", page.Height).
				Int("tiles", len(rects)).
				Msg("Page split into tiles")
		}

		for _, r := range rects {
			// A rect covering the whole page needs no re-encode.
			if r.X == 0 && r.Y == 0 && r.Width == page.Width && r.Height == page.Height {
				jobs = append(jobs, job{page: page.Index, chunk: r.Chunk, png: page.PNG})
				continue
			}

			tile, err := tiling.Extract(page, r)
			if err != nil {
				errs = append(errs, fmt.Sprintf("page %d chunk %d: %v", page.Index+1, r.Chunk, err))
				continue
			}
			jobs = append(jobs, job{page: page.Index, chunk: tile.Chunk, png: tile.PNG})
		}
	}

	return jobs, errs
}
