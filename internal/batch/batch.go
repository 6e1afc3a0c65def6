// Package batch provides a rate-limited concurrent-batch executor. It is the
// single primitive behind the summarization and embedding stages: items run
// concurrently within a fixed-size chunk, chunks run sequentially with an
// enforced delay between them, and one item's failure never aborts siblings.
package batch

import (
	"context"
	"sync"
	"time"
)

// Options tunes a batch run.
type Options struct {
	ChunkSize int           // Items executed concurrently per chunk
	Delay     time.Duration // Sleep between chunks (not after the last)
}

// Result is the settled outcome of one item's worker call.
type Result[R any] struct {
	Key   string
	Value R
	Err   error
}

// Run partitions items into chunks of opts.ChunkSize and invokes worker
// concurrently for every item in a chunk, waiting for all of them to settle
// before moving on. Failures are captured as strings rather than propagated.
// It returns the successful results keyed by key(item) plus every captured
// error message; the caller decides whether partial completion is acceptable.
// Cancelling ctx stops the run between chunks and returns what settled so far.
func Run[T, R any](
	ctx context.Context,
	items []T,
	opts Options,
	key func(T) string,
	worker func(ctx context.Context, item T) (R, error),
) (map[string]R, []string) {
	results := make(map[string]R)
	var errs []string

	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1
	}

	for start := 0; start < len(items); start += opts.ChunkSize {
		select {
		case <-ctx.Done():
			errs = append(errs, "batch run cancelled: "+ctx.Err().Error())
			return results, errs
		default:
		}

		end := start + opts.ChunkSize
		if end > len(items) {
			end = len(items)
		}

		for _, settled := range runChunk(ctx, items[start:end], key, worker) {
			if settled.Err != nil {
				errs = append(errs, settled.Err.Error())
				continue
			}
			results[settled.Key] = settled.Value
		}

		if end < len(items) && opts.Delay > 0 {
			sleep(ctx, opts.Delay)
		}
	}

	return results, errs
}

// runChunk executes worker for every item concurrently and returns once all
// calls have settled.
func runChunk[T, R any](
	ctx context.Context,
	chunk []T,
	key func(T) string,
	worker func(ctx context.Context, item T) (R, error),
) []Result[R] {
	settled := make([]Result[R], len(chunk))
	var wg sync.WaitGroup

	for i, item := range chunk {
		wg.Add(1)
		go func(i int, item T) {
			defer wg.Done()
			value, err := worker(ctx, item)
			settled[i] = Result[R]{Key: key(item), Value: value, Err: err}
		}(i, item)
	}

	wg.Wait()
	return settled
}

// sleep waits for d or until ctx is cancelled, whichever comes first.
func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
