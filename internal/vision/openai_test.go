package vision

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubChat scripts a sequence of chat completion responses.
type stubChat struct {
	script []func() (openai.ChatCompletionResponse, error)
	calls  int
}

func (s *stubChat) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	idx := s.calls
	s.calls++
	if idx >= len(s.script) {
		idx = len(s.script) - 1
	}
	return s.script[idx]()
}

func textResponse(text string, usage openai.Usage) func() (openai.ChatCompletionResponse, error) {
	return func() (openai.ChatCompletionResponse, error) {
		return openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: text}},
			},
			Usage: usage,
		}, nil
	}
}

func apiFailure(status int) func() (openai.ChatCompletionResponse, error) {
	return func() (openai.ChatCompletionResponse, error) {
		return openai.ChatCompletionResponse{}, &openai.APIError{HTTPStatusCode: status, Message: "boom"}
	}
}

func fastConfig() Config {
	return Config{
		Model:        "gpt-4o",
		MaxTokens:    1024,
		Timeout:      time.Second,
		MaxRetries:   3,
		RetryBackoff: time.Millisecond,
	}
}

func TestOpenAITranscribeSuccess(t *testing.T) {
	stub := &stubChat{script: []func() (openai.ChatCompletionResponse, error){
		textResponse("INVOICE #42\nTotal: 99.00\n", openai.Usage{
			PromptTokens:     800,
			CompletionTokens: 50,
			TotalTokens:      850,
		}),
	}}

	transcriber := NewOpenAIWithClient(stub, fastConfig())
	result, err := transcriber.Transcribe(context.Background(), []byte("fake-png"))

	require.NoError(t, err)
	assert.Equal(t, "INVOICE #42\nTotal: 99.00", result.Text)
	assert.Equal(t, Usage{InputTokens: 800, OutputTokens: 50, TotalTokens: 850}, result.Usage)
	assert.Equal(t, 1, stub.calls)
}

func TestOpenAITranscribeSendsImageAsDataURL(t *testing.T) {
	var captured openai.ChatCompletionRequest
	stub := &stubChat{script: []func() (openai.ChatCompletionResponse, error){
		textResponse("ok", openai.Usage{}),
	}}

	transcriber := NewOpenAIWithClient(clientFunc(func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
		captured = req
		return stub.script[0]()
	}), fastConfig())

	_, err := transcriber.Transcribe(context.Background(), []byte{0x89, 0x50})
	require.NoError(t, err)

	require.Len(t, captured.Messages, 1)
	parts := captured.Messages[0].MultiContent
	require.Len(t, parts, 2)
	assert.Equal(t, openai.ChatMessagePartTypeText, parts[0].Type)
	assert.Equal(t, Instruction, parts[0].Text)
	assert.Equal(t, openai.ChatMessagePartTypeImageURL, parts[1].Type)
	assert.True(t, strings.HasPrefix(parts[1].ImageURL.URL, "data:image/png;base64,"))
	assert.Equal(t, openai.ImageURLDetailHigh, parts[1].ImageURL.Detail)
}

type clientFunc func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)

func (f clientFunc) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return f(ctx, req)
}

func TestOpenAIRetriesTransientFailure(t *testing.T) {
	stub := &stubChat{script: []func() (openai.ChatCompletionResponse, error){
		apiFailure(http.StatusInternalServerError),
		textResponse("recovered", openai.Usage{TotalTokens: 10}),
	}}

	transcriber := NewOpenAIWithClient(stub, fastConfig())
	result, err := transcriber.Transcribe(context.Background(), []byte("img"))

	require.NoError(t, err)
	assert.Equal(t, "recovered", result.Text)
	assert.Equal(t, 2, stub.calls)
}

func TestOpenAIRetriesRateLimit(t *testing.T) {
	stub := &stubChat{script: []func() (openai.ChatCompletionResponse, error){
		apiFailure(http.StatusTooManyRequests),
		textResponse("ok", openai.Usage{}),
	}}

	transcriber := NewOpenAIWithClient(stub, fastConfig())
	_, err := transcriber.Transcribe(context.Background(), []byte("img"))

	require.NoError(t, err)
	assert.Equal(t, 2, stub.calls)
}

func TestOpenAIPermanentFailureNotRetried(t *testing.T) {
	stub := &stubChat{script: []func() (openai.ChatCompletionResponse, error){
		apiFailure(http.StatusBadRequest),
	}}

	transcriber := NewOpenAIWithClient(stub, fastConfig())
	_, err := transcriber.Transcribe(context.Background(), []byte("img"))

	require.Error(t, err)
	assert.False(t, IsTransient(err))
	assert.Equal(t, 1, stub.calls)
}

func TestOpenAIExhaustsRetryBudget(t *testing.T) {
	stub := &stubChat{script: []func() (openai.ChatCompletionResponse, error){
		apiFailure(http.StatusServiceUnavailable),
	}}

	cfg := fastConfig()
	transcriber := NewOpenAIWithClient(stub, cfg)
	_, err := transcriber.Transcribe(context.Background(), []byte("img"))

	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Equal(t, cfg.MaxRetries, stub.calls)
}

func TestOpenAIEmptyAnswerIsValid(t *testing.T) {
	stub := &stubChat{script: []func() (openai.ChatCompletionResponse, error){
		textResponse("", openai.Usage{PromptTokens: 700, TotalTokens: 700}),
	}}

	transcriber := NewOpenAIWithClient(stub, fastConfig())
	result, err := transcriber.Transcribe(context.Background(), []byte("blank-tile"))

	require.NoError(t, err)
	assert.Empty(t, result.Text)
	assert.Equal(t, 700, result.Usage.TotalTokens)
}

func TestOpenAINoChoicesIsMalformed(t *testing.T) {
	stub := &stubChat{script: []func() (openai.ChatCompletionResponse, error){
		func() (openai.ChatCompletionResponse, error) {
			return openai.ChatCompletionResponse{}, nil
		},
	}}

	transcriber := NewOpenAIWithClient(stub, fastConfig())
	_, err := transcriber.Transcribe(context.Background(), []byte("img"))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.False(t, IsTransient(err))
}

func TestNewOpenAIRequiresAPIKey(t *testing.T) {
	_, err := NewOpenAI("", DefaultConfig())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestClassifyOpenAIError(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		transient bool
	}{
		{"server error", &openai.APIError{HTTPStatusCode: 502}, true},
		{"rate limit", &openai.APIError{HTTPStatusCode: 429}, true},
		{"bad request", &openai.APIError{HTTPStatusCode: 400}, false},
		{"unauthorized", &openai.APIError{HTTPStatusCode: 401}, false},
		{"request 500", &openai.RequestError{HTTPStatusCode: 500, Err: errors.New("x")}, true},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"transport", errors.New("connection reset"), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			classified := classifyOpenAIError("Transcribe", tc.err)
			assert.Equal(t, tc.transient, IsTransient(classified))
		})
	}
}
