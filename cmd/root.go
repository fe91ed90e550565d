package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"docpipe/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "docpipe",
	Short: "docpipe - vision-model OCR for PDF documents",
	Long: `docpipe turns PDF documents into text using vision-capable
language models.

Each page is rasterized to a PNG, oversized pages are split into
overlapping tiles, the tiles are transcribed concurrently, and the
results are reassembled into a single document in reading order.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Info().
			Str("version", version).
			Msg("docpipe executed")

		fmt.Println("Welcome to docpipe!")
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}
