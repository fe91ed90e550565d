package tiling

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	xdraw "golang.org/x/image/draw"

	"docpipe/internal/raster"
)

// Tile is a materialized crop of one page image. It owns its own
// buffer, so the parent page can be released while tiles are still in
// flight.
type Tile struct {
	Page   int
	Chunk  int
	Width  int
	Height int
	PNG    []byte
}

// Extract crops the planned rectangle out of the page image and
// re-encodes it as an independent PNG buffer.
func Extract(page raster.Page, r Rect) (*Tile, error) {
	const op = "Extract"

	if r.Width <= 0 || r.Height <= 0 {
		return nil, NewExtractionError(op, ErrInvalidRegion,
			fmt.Sprintf("page %d chunk %d: empty rectangle", page.Index, r.Chunk))
	}

	img, err := png.Decode(bytes.NewReader(page.PNG))
	if err != nil {
		return nil, NewExtractionError(op, ErrImageDecode,
			fmt.Sprintf("page %d: %v", page.Index, err))
	}

	bounds := img.Bounds()
	crop := image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height).Add(bounds.Min)
	if !crop.In(bounds) {
		return nil, NewExtractionError(op, ErrInvalidRegion,
			fmt.Sprintf("page %d chunk %d: %dx%d+%d+%d exceeds %dx%d",
				page.Index, r.Chunk, r.Width, r.Height, r.X, r.Y, bounds.Dx(), bounds.Dy()))
	}

	dst := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	xdraw.Copy(dst, image.Point{}, img, crop, xdraw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, NewExtractionError(op, err,
			fmt.Sprintf("page %d chunk %d: encode", page.Index, r.Chunk))
	}

	return &Tile{
		Page:   page.Index,
		Chunk:  r.Chunk,
		Width:  r.Width,
		Height: r.Height,
		PNG:    buf.Bytes(),
	}, nil
}
