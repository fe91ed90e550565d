package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"docpipe/internal/logger"
)

// chatClient is the slice of the OpenAI client this backend needs.
// Tests inject a stub through NewOpenAIWithClient.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI transcribes images through OpenAI chat completions with image
// input.
type OpenAI struct {
	client chatClient
	config Config
	log    zerolog.Logger
}

// NewOpenAI creates the OpenAI-backed transcriber.
func NewOpenAI(apiKey string, config Config) (*OpenAI, error) {
	if apiKey == "" {
		return nil, NewError("NewOpenAI", ErrMissingCredentials,
			"OPENAI_API_KEY environment variable is required", false)
	}
	return NewOpenAIWithClient(openai.NewClient(apiKey), config), nil
}

// NewOpenAIWithClient creates the transcriber with an explicit client
// (for testing).
func NewOpenAIWithClient(client chatClient, config Config) *OpenAI {
	return &OpenAI{
		client: client,
		config: config.normalized(),
		log:    logger.WithComponent("vision-openai"),
	}
}

// Transcribe sends one PNG image to the vision model and returns the
// extracted text plus token usage.
func (o *OpenAI) Transcribe(ctx context.Context, image []byte) (*Transcription, error) {
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(image)

	return transcribeWithRetry(ctx, o.config, o.log, func(ctx context.Context) (*Transcription, error) {
		const op = "Transcribe"

		resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:     o.config.Model,
			MaxTokens: o.config.MaxTokens,
			Messages: []openai.ChatCompletionMessage{
				{
					Role: openai.ChatMessageRoleUser,
					MultiContent: []openai.ChatMessagePart{
						{
							Type: openai.ChatMessagePartTypeText,
							Text: Instruction,
						},
						{
							Type: openai.ChatMessagePartTypeImageURL,
							ImageURL: &openai.ChatMessageImageURL{
								URL:    dataURL,
								Detail: openai.ImageURLDetailHigh,
							},
						},
					},
				},
			},
		})
		if err != nil {
			return nil, classifyOpenAIError(op, err)
		}
		if len(resp.Choices) == 0 {
			return nil, NewError(op, ErrMalformedResponse, "no choices in response", false)
		}

		// Whitespace-only answers are valid: the tile was blank.
		text := strings.TrimRight(resp.Choices[0].Message.Content, "\n")

		return &Transcription{
			Text: text,
			Usage: Usage{
				InputTokens:  resp.Usage.PromptTokens,
				OutputTokens: resp.Usage.CompletionTokens,
				TotalTokens:  resp.Usage.TotalTokens,
			},
		}, nil
	})
}

// classifyOpenAIError maps client errors onto the package taxonomy,
// deciding transience from the HTTP status: 5xx and 429 are worth
// retrying, other 4xx are not.
func classifyOpenAIError(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		transient := apiErr.HTTPStatusCode >= http.StatusInternalServerError ||
			apiErr.HTTPStatusCode == http.StatusTooManyRequests
		return NewError(op, err, fmt.Sprintf("API error (HTTP %d)", apiErr.HTTPStatusCode), transient)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		transient := reqErr.HTTPStatusCode >= http.StatusInternalServerError
		return NewError(op, err, fmt.Sprintf("request error (HTTP %d)", reqErr.HTTPStatusCode), transient)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(op, err, "request timed out", true)
	}
	if errors.Is(err, context.Canceled) {
		return NewError(op, err, "request canceled", false)
	}

	// Anything else is a transport-level failure.
	return NewError(op, err, "transport failure", true)
}
