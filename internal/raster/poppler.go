package raster

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"docpipe/internal/logger"
)

// Poppler renders PDF pages by shelling out to pdftoppm. Each page is
// rendered with its own invocation so a single broken page does not
// take the rest of the document with it.
type Poppler struct {
	log zerolog.Logger
}

// NewPoppler creates the pdftoppm-backed rasterizer.
func NewPoppler() *Poppler {
	return &Poppler{log: logger.WithComponent("raster-poppler")}
}

func (p *Poppler) Rasterize(ctx context.Context, pdf []byte, opts Options) (*Result, error) {
	const op = "Rasterize"
	opts = opts.normalized()

	if err := validatePDF(pdf); err != nil {
		return nil, err
	}
	if _, err := exec.LookPath("pdftoppm"); err != nil {
		return nil, NewError(op, ErrBackendUnavailable, "pdftoppm not found in PATH")
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, WrapError(op, err, "nanoid")
	}
	tmpDir := filepath.Join(os.TempDir(), "docpipe-raster-"+id)
	if err := os.MkdirAll(tmpDir, 0o700); err != nil {
		return nil, WrapError(op, err, "mkdir tmp")
	}
	defer os.RemoveAll(tmpDir)

	pdfPath := filepath.Join(tmpDir, "input.pdf")
	if err := os.WriteFile(pdfPath, pdf, 0o600); err != nil {
		return nil, WrapError(op, err, "write pdf")
	}

	total, err := p.countPages(ctx, tmpDir, pdfPath)
	if err != nil {
		return nil, WrapError(op, err, "count pages")
	}
	if total == 0 {
		return &Result{}, nil
	}

	count := total
	if count > opts.MaxPages {
		p.log.Info().
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

		b, renderErr := p.renderPage(ctx, tmpDir, pdfPath, i+1, opts.DPI)
		if renderErr != nil {
			p.log.Warn().
				Err(renderErr).
				Int("page", i+1).
				Msg("Failed to render page, skipping")
			result.Skipped = append(result.Skipped, PageError{Index: i, Err: renderErr})
			continue
		}

		cfg, cfgErr := png.DecodeConfig(bytes.NewReader(b))
		if cfgErr != nil {
			result.Skipped = append(result.Skipped, PageError{
				Index: i,
				Err:   NewError(op, cfgErr, fmt.Sprintf("decode page %d", i+1)),
			})
			continue
		}

		result.Pages = append(result.Pages, Page{
			Index:  i,
			Width:  cfg.Width,
			Height: cfg.Height,
			PNG:    b,
		})
	}

	p.log.Debug().
		Int("rendered", len(result.Pages)).
		Int("skipped", len(result.Skipped)).
		Int("dpi", opts.DPI).
		Msg("Rasterization complete")

	return result, nil
}

// countPages determines the page count via pdfinfo when available,
// otherwise by doing a cheap low-resolution bulk render and counting
// the produced files.
func (p *Poppler) countPages(ctx context.Context, tmpDir, pdfPath string) (int, error) {
	if _, err := exec.LookPath("pdfinfo"); err == nil {
		cmd := exec.CommandContext(ctx, "pdfinfo", pdfPath)
		out, err := cmd.Output()
		if err == nil {
			for _, line := range strings.Split(string(out), "\n") {
				if !strings.HasPrefix(line, "Pages:") {
					continue
				}
				fields := strings.Fields(line)
				if len(fields) >= 2 {
					if pages, err := strconv.Atoi(fields[1]); err == nil {
						return pages, nil
					}
				}
			}
		}
	}

	// Fallback: bulk render at preview resolution and count files.
	prefix := filepath.Join(tmpDir, "count")
	cmd := exec.CommandContext(ctx, "pdftoppm", "-png", "-r", "36", "-q", pdfPath, prefix)
	cmd.Env = append(os.Environ(), "LANG=C.UTF-8", "LC_ALL=C.UTF-8")
	out, err := cmd.CombinedOutput()
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	if err != nil {
		return 0, NewError("countPages", ErrInvalidPDF,
			fmt.Sprintf("pdftoppm: %v: %s", err, strings.TrimSpace(string(out))))
	}

	paths, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return 0, err
	}
	return maxPageNum(paths), nil
}

// renderPage renders a single page (1-based, matching pdftoppm).
func (p *Poppler) renderPage(ctx context.Context, tmpDir, pdfPath string, pageNum, dpi int) ([]byte, error) {
	const op = "renderPage"

	prefix := filepath.Join(tmpDir, fmt.Sprintf("page-%04d", pageNum))
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png",
		"-r", strconv.Itoa(dpi),
		"-q",
		"-singlefile",
		"-f", strconv.Itoa(pageNum),
		"-l", strconv.Itoa(pageNum),
		pdfPath, prefix)
	cmd.Env = append(os.Environ(), "LANG=C.UTF-8", "LC_ALL=C.UTF-8")

	out, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, NewError(op, ctx.Err(), fmt.Sprintf("timed out on page %d", pageNum))
	}
	if err != nil {
		return nil, NewError(op, err, fmt.Sprintf("pdftoppm page %d: %s", pageNum, strings.TrimSpace(string(out))))
	}

	b, err := os.ReadFile(prefix + ".png")
	if err != nil {
		return nil, NewError(op, err, fmt.Sprintf("read page %d image", pageNum))
	}
	return b, nil
}

// maxPageNum returns the highest page number embedded in bulk-rendered
// pdftoppm output filenames (prefix-N.png).
func maxPageNum(paths []string) int {
	highest := 0
	for _, path := range paths {
		if n := parsePageNum(path); n > highest {
			highest = n
		}
	}
	return highest
}

func parsePageNum(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), ".png")
	idx := strings.LastIndexByte(base, '-')
	if idx == -1 || idx+1 >= len(base) {
		return 0
	}
	n, _ := strconv.Atoi(base[idx+1:])
	return n
}
