package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docpipe/internal/vision"
)

// funcTranscriber adapts a function to the Transcriber interface.
type funcTranscriber func(ctx context.Context, image []byte) (*vision.Transcription, error)

func (f funcTranscriber) Transcribe(ctx context.Context, image []byte) (*vision.Transcription, error) {
	return f(ctx, image)
}

func TestDispatchPreservesJobOrder(t *testing.T) {
	const n = 50

	jobs := make([]job, 0, n)
	for i := 0; i < n; i++ {
		jobs = append(jobs, job{page: i / 4, chunk: i % 4, png: []byte(fmt.Sprintf("img-%d", i))})
	}

	// Random latency shuffles completion order; results must still line
	// up with their jobs.
	transcriber := funcTranscriber(func(ctx context.Context, image []byte) (*vision.Transcription, error) {
		time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)
		return &vision.Transcription{Text: string(image)}, nil
	})

	results := dispatch(context.Background(), transcriber, jobs, 8)

	require.Len(t, results, n)
	for i, r := range results {
		assert.Equal(t, jobs[i].page, r.Page)
		assert.Equal(t, jobs[i].chunk, r.Chunk)
		assert.Equal(t, string(jobs[i].png), r.Text)
		assert.True(t, r.Succeeded)
	}
}

func TestDispatchBoundsConcurrency(t *testing.T) {
	const n = 50
	const limit = 5

	jobs := make([]job, n)
	for i := range jobs {
		jobs[i] = job{page: 0, chunk: i, png: []byte("x")}
	}

	var inFlight, peak int64
	var mu sync.Mutex

	transcriber := funcTranscriber(func(ctx context.Context, image []byte) (*vision.Transcription, error) {
		current := atomic.AddInt64(&inFlight, 1)
		mu.Lock()
		if current > peak {
			peak = current
		}
		mu.Unlock()
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		return &vision.Transcription{Text: "ok"}, nil
	})

	results := dispatch(context.Background(), transcriber, jobs, limit)

	require.Len(t, results, n)
	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, int64(limit))
	assert.Greater(t, peak, int64(0))
}

func TestDispatchEmptyBatch(t *testing.T) {
	transcriber := funcTranscriber(func(ctx context.Context, image []byte) (*vision.Transcription, error) {
		t.Fatal("transcriber must not be called for an empty batch")
		return nil, nil
	})

	results := dispatch(context.Background(), transcriber, nil, 5)
	assert.Empty(t, results)
}

func TestDispatchRecordsFailuresWithoutAborting(t *testing.T) {
	jobs := []job{
		{page: 0, chunk: 0, png: []byte("a")},
		{page: 0, chunk: 1, png: []byte("fail")},
		{page: 0, chunk: 2, png: []byte("c")},
	}

	transcriber := funcTranscriber(func(ctx context.Context, image []byte) (*vision.Transcription, error) {
		if string(image) == "fail" {
			return nil, fmt.Errorf("model refused")
		}
		return &vision.Transcription{Text: string(image)}, nil
	})

	results := dispatch(context.Background(), transcriber, jobs, 2)

	require.Len(t, results, 3)
	assert.True(t, results[0].Succeeded)
	assert.False(t, results[1].Succeeded)
	assert.Contains(t, results[1].ErrMessage, "model refused")
	assert.True(t, results[2].Succeeded)
}

func TestDispatchAbandonsAfterCancellation(t *testing.T) {
	jobs := make([]job, 20)
	for i := range jobs {
		jobs[i] = job{page: 0, chunk: i, png: []byte("x")}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int64
	transcriber := funcTranscriber(func(ctx context.Context, image []byte) (*vision.Transcription, error) {
		atomic.AddInt64(&calls, 1)
		return &vision.Transcription{Text: "ok"}, nil
	})

	results := dispatch(ctx, transcriber, jobs, 5)

	require.Len(t, results, 20)
	for _, r := range results {
		assert.False(t, r.Succeeded)
		assert.Contains(t, r.ErrMessage, "abandoned")
	}
	assert.Zero(t, atomic.LoadInt64(&calls))
}
