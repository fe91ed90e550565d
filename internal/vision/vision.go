// Package vision sends page and tile images to an external
// vision-capable language model and returns the extracted text plus
// token usage.
//
// Two backends are provided behind the Transcriber interface: OpenAI
// chat completions with image input (the default) and Google Cloud
// Vision document text detection. Selection is a configuration
// decision; the backends are alternatives, not a fallback chain.
//
// Transient failures (timeouts, rate limits, 5xx) are retried with a
// fixed backoff up to the configured attempt budget. Client-side
// failures (4xx) surface immediately. A model answer that is empty or
// whitespace-only is a valid blank transcription, not an error; blank
// tiles are common on sparse pages.
package vision

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Instruction is the fixed prompt sent with every tile image.
const Instruction = "Extract all text from this image. Preserve the original layout " +
	"and reading order as closely as possible. Output the text only, with no commentary."

// Usage reports the token consumption of one transcription call.
// Backends that do not meter tokens report zeros.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Transcription is the text extracted from one image.
type Transcription struct {
	Text  string `json:"text"`
	Usage Usage  `json:"usage"`
}

// Transcriber extracts text from a single image.
type Transcriber interface {
	// Transcribe sends one encoded image to the vision model. The
	// returned transcription may be empty; that is a valid result for a
	// blank tile.
	Transcribe(ctx context.Context, image []byte) (*Transcription, error)
}

// Config controls a transcriber backend.
type Config struct {
	// Model names the vision model (OpenAI backend only).
	Model string

	// MaxTokens bounds the model's answer length.
	MaxTokens int

	// Timeout applies independently to every attempt.
	Timeout time.Duration

	// MaxRetries is the total attempt budget per image.
	MaxRetries int

	// RetryBackoff is the fixed wait between attempts.
	RetryBackoff time.Duration
}

// DefaultConfig returns the transcriber defaults.
func DefaultConfig() Config {
	return Config{
		Model:        "gpt-4o",
		MaxTokens:    4096,
		Timeout:      45 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 2 * time.Second,
	}
}

func (c Config) normalized() Config {
	if c.Model == "" {
		c.Model = "gpt-4o"
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 4096
	}
	if c.Timeout <= 0 {
		c.Timeout = 45 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 1
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 2 * time.Second
	}
	return c
}

// transcribeWithRetry drives the shared retry loop for both backends.
// attempt performs one call under its own deadline and reports failures
// through the package error taxonomy so transience is visible here.
func transcribeWithRetry(
	ctx context.Context,
	cfg Config,
	log zerolog.Logger,
	attempt func(ctx context.Context) (*Transcription, error),
) (*Transcription, error) {
	const op = "Transcribe"

	var lastErr error
	for try := 1; try <= cfg.MaxRetries; try++ {
		callCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		result, err := attempt(callCtx)
		cancel()

		if err == nil {
			return result, nil
		}
		if !IsTransient(err) {
			return nil, err
		}

		lastErr = err
		log.Warn().
			Err(err).
			Int("attempt", try).
			Int("max_retries", cfg.MaxRetries).
			Msg("Vision request failed, retrying")

		if try < cfg.MaxRetries {
			select {
			case <-time.After(cfg.RetryBackoff):
			case <-ctx.Done():
				return nil, NewError(op, ctx.Err(), "canceled while waiting to retry", false)
			}
		}
	}

	return nil, lastErr
}
