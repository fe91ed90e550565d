// Package tiling splits rendered page images into tiles sized for a
// vision model's effective input resolution.
//
// Pages that fit within the maximum side length pass through as a
// single tile. Oversized pages are split along one axis only: wide
// pages (landscape scans, side-by-side columns) split horizontally so
// each tile keeps full column height, tall pages (most invoices) split
// vertically so each tile keeps full line width. Consecutive tiles
// overlap so text straddling a cut appears whole in at least one tile;
// the duplicated text in the overlap region is accepted downstream.
package tiling

import "math"

// Rect is a planned tile rectangle within a page image.
type Rect struct {
	// Chunk is the tile's position in generation order, starting at 0.
	Chunk int

	X      int
	Y      int
	Width  int
	Height int
}

// PlanConfig controls how oversized pages are split.
type PlanConfig struct {
	// MaxSidePx is the side length above which a page is split.
	MaxSidePx int

	// AspectSplitTrigger is the width/height ratio above which the
	// split runs horizontally instead of vertically.
	AspectSplitTrigger float64

	// OverlapFraction is the fraction of a tile's length shared with
	// its neighbor, in (0, 1).
	OverlapFraction float64
}

// DefaultPlanConfig returns the planner defaults tuned for invoice
// scans and a ~2k-pixel vision model input.
func DefaultPlanConfig() PlanConfig {
	return PlanConfig{
		MaxSidePx:          2048,
		AspectSplitTrigger: 2.7,
		OverlapFraction:    0.05,
	}
}

func (c PlanConfig) normalized() PlanConfig {
	if c.MaxSidePx <= 0 {
		c.MaxSidePx = 2048
	}
	if c.AspectSplitTrigger <= 0 {
		c.AspectSplitTrigger = 2.7
	}
	if c.OverlapFraction <= 0 || c.OverlapFraction >= 1 {
		c.OverlapFraction = 0.05
	}
	return c
}

// Plan decides how a page of the given pixel dimensions is tiled.
// It is a pure function of the dimensions and configuration.
func Plan(width, height int, cfg PlanConfig) []Rect {
	cfg = cfg.normalized()

	// Common case: the page fits, no splitting.
	if width <= cfg.MaxSidePx && height <= cfg.MaxSidePx {
		return []Rect{{Chunk: 0, X: 0, Y: 0, Width: width, Height: height}}
	}

	horizontal := float64(width)/float64(height) > cfg.AspectSplitTrigger

	axis := height
	if horizontal {
		axis = width
	}

	spans := windows(axis, cfg.MaxSidePx, cfg.OverlapFraction)
	rects := make([]Rect, 0, len(spans))
	for i, s := range spans {
		if horizontal {
			rects = append(rects, Rect{Chunk: i, X: s.start, Y: 0, Width: s.length, Height: height})
		} else {
			rects = append(rects, Rect{Chunk: i, X: 0, Y: s.start, Width: width, Height: s.length})
		}
	}
	return rects
}

type span struct {
	start  int
	length int
}

// windows slices an axis into ceil(axis/window) overlapping windows.
// Consecutive windows overlap by round(window*overlap) pixels; the last
// window extends to the axis boundary, absorbing the remainder left by
// the overlap-shortened stride.
func windows(axis, maxSide int, overlap float64) []span {
	size := maxSide
	if axis < size {
		size = axis
	}

	ov := int(math.Round(float64(size) * overlap))
	stride := size - ov
	if stride <= 0 {
		stride = size
	}

	count := (axis + size - 1) / size
	spans := make([]span, 0, count)
	for i := 0; i < count; i++ {
		start := i * stride
		end := start + size
		if i == count-1 {
			end = axis
		}
		spans = append(spans, span{start: start, length: end - start})
	}
	return spans
}
