package pipeline_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"docpipe/internal/pipeline"
	"docpipe/internal/raster"
	"docpipe/internal/vision"
)

// Example demonstrates running a PDF through the full pipeline.
func Example() {
	// Overall deadline for the whole document.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// Credentials come from the environment (OPENAI_API_KEY).
	transcriber, err := vision.NewOpenAI(os.Getenv("OPENAI_API_KEY"), vision.DefaultConfig())
	if err != nil {
		log.Fatalf("Failed to create transcriber: %v", err)
	}

	pdf, err := os.ReadFile("sample_invoice.pdf")
	if err != nil {
		log.Fatalf("Failed to read PDF: %v", err)
	}

	p := pipeline.New(raster.NewMuPDF(), transcriber, pipeline.DefaultConfig())

	result, err := p.Process(ctx, pdf)
	if err != nil {
		log.Fatalf("Failed to process PDF: %v", err)
	}

	fmt.Printf("Extracted %d characters from %d pages (%d tiles, %.0f%% success)\n",
		len(result.FullText), result.TotalPages, result.TotalChunks, result.SuccessRate*100)
	fmt.Println(result.FullText)
}
