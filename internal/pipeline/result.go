package pipeline

import (
	"time"

	"docpipe/internal/vision"
)

// ChunkResult is the outcome of transcribing one tile. Page and Chunk
// are zero-based and identify the tile's position in the plan.
type ChunkResult struct {
	Page       int          `json:"page"`
	Chunk      int          `json:"chunk"`
	Text       string       `json:"text"`
	Usage      vision.Usage `json:"usage"`
	Succeeded  bool         `json:"succeeded"`
	ErrMessage string       `json:"error,omitempty"`
}

// Result is the aggregate outcome of processing one document.
type Result struct {
	// FullText is the reassembled document text with page break
	// markers between pages.
	FullText string `json:"full_text"`

	// TotalPages counts pages that rasterized successfully.
	TotalPages int `json:"total_pages"`

	// TotalChunks counts tiles dispatched for transcription.
	TotalChunks int `json:"total_chunks"`

	// ProcessingTime is the wall-clock duration of the whole run.
	ProcessingTime time.Duration `json:"processing_time"`

	// TokensUsed sums token usage across all successful transcriptions.
	TokensUsed int `json:"tokens_used"`

	// SuccessRate is the fraction of dispatched tiles that transcribed
	// successfully, in [0, 1]. Zero when no tiles were dispatched.
	SuccessRate float64 `json:"success_rate"`

	// Errors collects per-page and per-tile failure messages. A
	// non-empty list with a non-empty FullText means a partial result.
	Errors []string `json:"errors,omitempty"`
}
