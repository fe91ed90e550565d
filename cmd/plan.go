package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"docpipe/internal/logger"
	"docpipe/internal/tiling"
)

var planCmd = &cobra.Command{
	Use:   "plan [WxH]",
	Short: "Show the tile plan for a page of the given pixel dimensions",
	Long: `Compute and print the tile rectangles that would be extracted from
a page image of the given dimensions, without touching any PDF or
calling a vision model.

Useful for checking how a page size interacts with the tiling
parameters before spending API tokens on it.`,
	Example: `  # A portrait A4 page at 200 DPI
  docpipe plan 1654x2339

  # A wide receipt scan with custom tiling parameters
  docpipe plan 4096x1200 --max-side 2048 --overlap 0.05`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().Int("max-side", 2048, "Preferred maximum tile side length in pixels")
	planCmd.Flags().Float64("aspect-trigger", 2.7, "Aspect ratio above which wide pages split horizontally")
	planCmd.Flags().Float64("overlap", 0.05, "Overlap between adjacent tiles as a fraction of window size")
}

func runPlan(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("plan")

	width, height, err := parseDimensions(args[0])
	if err != nil {
		return err
	}

	maxSide, _ := cmd.Flags().GetInt("max-side")
	aspectTrigger, _ := cmd.Flags().GetFloat64("aspect-trigger")
	overlap, _ := cmd.Flags().GetFloat64("overlap")

	cfg := tiling.PlanConfig{
		MaxSidePx:          maxSide,
		AspectSplitTrigger: aspectTrigger,
		OverlapFraction:    overlap,
	}

	rects := tiling.Plan(width, height, cfg)

	log.Debug().
		Int("width", width).
		Int("height", height).
		Int("tiles", len(rects)).
		Msg("Tile plan computed")

	fmt.Printf("Page %dx%d -> %d tile(s)\n", width, height, len(rects))
	for _, r := range rects {
		fmt.Printf("  chunk %d: x=%d y=%d %dx%d\n", r.Chunk, r.X, r.Y, r.Width, r.Height)
	}

	return nil
}

// parseDimensions parses a "WxH" string into positive pixel dimensions.
func parseDimensions(s string) (int, int, error) {
	parts := strings.SplitN(strings.ToLower(s), "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid dimensions %q (expected WxH, e.g. 1654x2339)", s)
	}

	width, err := strconv.Atoi(parts[0])
	if err != nil || width <= 0 {
		return 0, 0, fmt.Errorf("invalid width in %q", s)
	}
	height, err := strconv.Atoi(parts[1])
	if err != nil || height <= 0 {
		return 0, 0, fmt.Errorf("invalid height in %q", s)
	}

	return width, height, nil
}
