package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"docpipe/internal/vision"
)

// job is one tile queued for transcription.
type job struct {
	page  int
	chunk int
	png   []byte
}

// dispatch transcribes all jobs with at most maxConcurrent calls in
// flight. Results come back in the same order as jobs regardless of
// completion order. A tile failure is recorded in its ChunkResult, not
// returned; dispatch itself never fails once started. After the parent
// context is canceled, remaining tiles are marked failed without
// calling the backend.
func dispatch(ctx context.Context, transcriber vision.Transcriber, jobs []job, maxConcurrent int) []ChunkResult {
	results := make([]ChunkResult, len(jobs))

	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	var g errgroup.Group
	g.SetLimit(maxConcurrent)

	for i, j := range jobs {
		g.Go(func() error {
			results[i] = transcribeOne(ctx, transcriber, j)
			return nil
		})
	}
	g.Wait()

	return results
}

func transcribeOne(ctx context.Context, transcriber vision.Transcriber, j job) ChunkResult {
	result := ChunkResult{Page: j.page, Chunk: j.chunk}

	if err := ctx.Err(); err != nil {
		result.ErrMessage = fmt.Sprintf("abandoned: %v", err)
		return result
	}

	transcription, err := transcriber.Transcribe(ctx, j.png)
	if err != nil {
		result.ErrMessage = err.Error()
		return result
	}

	result.Text = transcription.Text
	result.Usage = transcription.Usage
	result.Succeeded = true
	return result
}
