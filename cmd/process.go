package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"docpipe/internal/config"
	"docpipe/internal/logger"
	"docpipe/internal/pipeline"
	"docpipe/internal/raster"
	"docpipe/internal/vision"
)

var processCmd = &cobra.Command{
	Use:   "process [pdf-file]",
	Short: "Extract text from a PDF using a vision language model",
	Long: `Process a PDF file through the full OCR pipeline: rasterize each
page, split oversized pages into overlapping tiles, transcribe every
tile with the configured vision backend, and reassemble the text in
reading order.

The pipeline degrades rather than aborts. Pages that fail to rasterize
and tiles that fail to transcribe are reported as errors while the rest
of the document still produces text.

Required environment variables (openai backend, the default):
  OPENAI_API_KEY - OpenAI API key

Required environment variables (google backend):
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string`,
	Example: `  # Extract text from invoice.pdf to stdout
  docpipe process invoice.pdf

  # Save extracted text to a file
  docpipe process invoice.pdf -o extracted.txt

  # Output as JSON with per-run statistics
  docpipe process invoice.pdf --json -o result.json

  # Render at higher resolution with more parallel requests
  docpipe process scan.pdf --dpi 300 --concurrency 8

  # Use the Google Cloud Vision backend and the poppler rasterizer
  docpipe process invoice.pdf --vision google --raster poppler`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

// ProcessOutput represents the JSON output structure when --json flag is used
type ProcessOutput struct {
	Text             string   `json:"text"`
	FileName         string   `json:"file_name"`
	FileSize         int64    `json:"file_size"`
	TotalPages       int      `json:"total_pages"`
	TotalChunks      int      `json:"total_chunks"`
	TokensUsed       int      `json:"tokens_used"`
	SuccessRate      float64  `json:"success_rate"`
	ProcessingTimeMs int64    `json:"processing_time_ms"`
	Errors           []string `json:"errors,omitempty"`
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	processCmd.Flags().Bool("json", false, "Output as JSON")
	processCmd.Flags().Int("dpi", 0, "Rasterization DPI (default: RASTER_DPI or 200)")
	processCmd.Flags().Int("max-pages", 0, "Maximum pages to process (default: MAX_PAGES_PER_DOC or 20)")
	processCmd.Flags().Int("concurrency", 0, "Maximum concurrent transcriptions (default: MAX_CONCURRENT_TRANSCRIPTIONS or 5)")
	processCmd.Flags().Int("timeout", 300, "Overall processing timeout in seconds")
	processCmd.Flags().String("vision", "", "Vision backend: openai or google (default: VISION_BACKEND or openai)")
	processCmd.Flags().String("raster", "", "Rasterizer backend: mupdf or poppler (default: RASTER_BACKEND or mupdf)")
}

func runProcess(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("process")

	outputPath, _ := cmd.Flags().GetString("output")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	pdfPath := args[0]

	cfg, err := loadProcessConfig(cmd)
	if err != nil {
		return err
	}

	log.Info().
		Str("file", pdfPath).
		Str("output", outputPath).
		Str("vision_backend", cfg.VisionBackend).
		Str("raster_backend", cfg.RasterBackend).
		Int("dpi", cfg.DPI).
		Int("concurrency", cfg.MaxConcurrentTranscriptions).
		Msg("Starting document processing")

	fileInfo, err := validatePDFFile(pdfPath, log)
	if err != nil {
		return err
	}

	pdf, err := os.ReadFile(pdfPath)
	if err != nil {
		log.Error().
			Err(err).
			Str("file", pdfPath).
			Msg("Failed to read PDF file")
		return fmt.Errorf("failed to read PDF file: %w", err)
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	rasterizer, err := createRasterizer(cfg)
	if err != nil {
		return err
	}

	transcriber, closeTranscriber, err := createTranscriber(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeTranscriber()

	p := pipeline.New(rasterizer, transcriber, pipeline.Config{
		DPI:                     cfg.DPI,
		MaxPages:                cfg.MaxPagesPerDoc,
		TileMaxSidePx:           cfg.TileMaxSidePx,
		AspectRatioSplitTrigger: cfg.AspectRatioSplitTrigger,
		TileOverlapFraction:     cfg.TileOverlapFraction,
		MaxConcurrent:           cfg.MaxConcurrentTranscriptions,
	})

	result, err := p.Process(ctx, pdf)
	if err != nil {
		return handleProcessError(err, log)
	}

	log.Info().
		Int("pages", result.TotalPages).
		Int("chunks", result.TotalChunks).
		Int("tokens", result.TokensUsed).
		Float64("success_rate", result.SuccessRate).
		Dur("duration", result.ProcessingTime).
		Msg("Document processing completed")

	for _, msg := range result.Errors {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", msg)
	}

	return outputResults(result, fileInfo, outputPath, jsonOutput, log)
}

// loadProcessConfig loads the environment configuration and applies
// flag overrides on top.
func loadProcessConfig(cmd *cobra.Command) (*config.Config, error) {
	// Flags override the environment, so set them before validation.
	if backend, _ := cmd.Flags().GetString("vision"); backend != "" {
		os.Setenv("VISION_BACKEND", backend)
	}
	if backend, _ := cmd.Flags().GetString("raster"); backend != "" {
		os.Setenv("RASTER_BACKEND", backend)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	if dpi, _ := cmd.Flags().GetInt("dpi"); dpi > 0 {
		cfg.DPI = dpi
	}
	if maxPages, _ := cmd.Flags().GetInt("max-pages"); maxPages > 0 {
		cfg.MaxPagesPerDoc = maxPages
	}
	if concurrency, _ := cmd.Flags().GetInt("concurrency"); concurrency > 0 {
		cfg.MaxConcurrentTranscriptions = concurrency
	}

	return cfg, nil
}

// validatePDFFile checks if the file exists, is readable, and appears to be a PDF
func validatePDFFile(pdfPath string, log zerolog.Logger) (os.FileInfo, error) {
	fileInfo, err := os.Stat(pdfPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().
				Str("file", pdfPath).
				Msg("PDF file not found")
			return nil, fmt.Errorf("PDF file not found: %s", pdfPath)
		}
		if os.IsPermission(err) {
			log.Error().
				Str("file", pdfPath).
				Msg("Permission denied accessing PDF file")
			return nil, fmt.Errorf("permission denied accessing PDF file: %s", pdfPath)
		}
		return nil, fmt.Errorf("error accessing PDF file: %w", err)
	}

	if !fileInfo.Mode().IsRegular() {
		log.Error().
			Str("file", pdfPath).
			Msg("Path is not a regular file")
		return nil, fmt.Errorf("path is not a regular file: %s", pdfPath)
	}

	if !strings.HasSuffix(strings.ToLower(pdfPath), ".pdf") {
		log.Warn().
			Str("file", pdfPath).
			Msg("File does not have .pdf extension")
	}

	if fileInfo.Size() == 0 {
		log.Error().
			Str("file", pdfPath).
			Msg("PDF file is empty")
		return nil, fmt.Errorf("PDF file is empty: %s", pdfPath)
	}

	return fileInfo, nil
}

// createContextWithTimeout creates a context with timeout and signal handling
func createContextWithTimeout(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling processing")
			cancel()
		case <-ctx.Done():
			// Context completed normally
		}
	}()

	return ctx, cancel
}

// createRasterizer builds the configured rasterizer backend.
func createRasterizer(cfg *config.Config) (raster.Rasterizer, error) {
	switch cfg.RasterBackend {
	case "mupdf":
		return raster.NewMuPDF(), nil
	case "poppler":
		return raster.NewPoppler(), nil
	default:
		return nil, fmt.Errorf("unknown raster backend: %s", cfg.RasterBackend)
	}
}

// createTranscriber builds the configured vision backend. The returned
// closer releases backend resources and is safe to call once.
func createTranscriber(ctx context.Context, cfg *config.Config, log zerolog.Logger) (vision.Transcriber, func(), error) {
	visionCfg := vision.Config{
		Model:        cfg.OpenAIModel,
		Timeout:      time.Duration(cfg.TranscriptionTimeoutSecs) * time.Second,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: time.Duration(cfg.RetryBackoffMs) * time.Millisecond,
	}

	switch cfg.VisionBackend {
	case "openai":
		transcriber, err := vision.NewOpenAI(cfg.OpenAIAPIKey, visionCfg)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create OpenAI transcriber")
			return nil, nil, fmt.Errorf("failed to create OpenAI transcriber: %w", err)
		}
		return transcriber, func() {}, nil

	case "google":
		hasCredentials := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" ||
			os.Getenv("GOOGLE_CREDENTIALS") != ""
		if !hasCredentials {
			log.Warn().Msg("No explicit Google credentials set, trying application default credentials")
		}

		transcriber, err := vision.NewGoogleVision(ctx, visionCfg)
		if err != nil {
			if errors.Is(err, vision.ErrMissingCredentials) {
				log.Error().Err(err).Msg("Google Cloud credentials validation failed")
				return nil, nil, fmt.Errorf("Google Cloud credentials not configured. Please set one of:\n\n"+
					"1. Export GOOGLE_APPLICATION_CREDENTIALS with path to service account JSON:\n"+
					"   export GOOGLE_APPLICATION_CREDENTIALS=/path/to/service-account-key.json\n\n"+
					"2. Export GOOGLE_CREDENTIALS with inline JSON:\n"+
					"   export GOOGLE_CREDENTIALS='{\"type\":\"service_account\",...}'\n\n"+
					"3. Use Application Default Credentials (if gcloud is configured):\n"+
					"   gcloud auth application-default login\n\n"+
					"Original error: %w", err)
			}
			log.Error().Err(err).Msg("Failed to create Google Vision transcriber")
			return nil, nil, fmt.Errorf("failed to create Google Vision transcriber: %w", err)
		}
		closer := func() {
			if closeErr := transcriber.Close(); closeErr != nil {
				log.Warn().Err(closeErr).Msg("Failed to close Vision client")
			}
		}
		return transcriber, closer, nil

	default:
		return nil, nil, fmt.Errorf("unknown vision backend: %s", cfg.VisionBackend)
	}
}

// handleProcessError provides user-friendly error messages for pipeline failures
func handleProcessError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Document processing failed")

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("processing timed out. Try increasing --timeout or processing a smaller file")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("processing was canceled")
	case errors.Is(err, raster.ErrInvalidPDF):
		return fmt.Errorf("invalid or corrupted PDF file. Please check the file integrity")
	case errors.Is(err, raster.ErrBackendUnavailable):
		return fmt.Errorf("rasterizer backend unavailable. Install poppler-utils or switch to --raster mupdf")
	case errors.Is(err, pipeline.ErrNoPages):
		return fmt.Errorf("no pages could be rendered from the document. The PDF may be corrupted or empty")
	default:
		return fmt.Errorf("document processing failed: %w", err)
	}
}

// outputResults formats and outputs the pipeline results
func outputResults(result *pipeline.Result, fileInfo os.FileInfo, outputPath string, jsonOutput bool, log zerolog.Logger) error {
	var outputData []byte

	if jsonOutput {
		out := ProcessOutput{
			Text:             result.FullText,
			FileName:         filepath.Base(fileInfo.Name()),
			FileSize:         fileInfo.Size(),
			TotalPages:       result.TotalPages,
			TotalChunks:      result.TotalChunks,
			TokensUsed:       result.TokensUsed,
			SuccessRate:      result.SuccessRate,
			ProcessingTimeMs: result.ProcessingTime.Milliseconds(),
			Errors:           result.Errors,
		}

		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal JSON output")
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
		outputData = data
	} else {
		outputData = []byte(result.FullText)
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, outputData, 0644); err != nil {
			log.Error().
				Err(err).
				Str("output_file", outputPath).
				Msg("Failed to write output file")
			return fmt.Errorf("failed to write output file: %w", err)
		}

		log.Info().
			Str("output_file", outputPath).
			Int("bytes", len(outputData)).
			Msg("Results written to file")
		return nil
	}

	if _, err := os.Stdout.Write(outputData); err != nil {
		log.Error().Err(err).Msg("Failed to write to stdout")
		return fmt.Errorf("failed to write output: %w", err)
	}
	if !jsonOutput {
		fmt.Println()
	}

	return nil
}
