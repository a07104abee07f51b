// Package batch runs many independent operations in ordered chunks with
// bounded concurrency and per-item outcome capture.
package batch

import (
	"context"
	"sync"
)

const (
	DefaultChunkSize   = 20
	DefaultConcurrency = 5
)

// Outcome records one item's result or failure. Exactly one of Result
// and Err is meaningful.
type Outcome[T, R any] struct {
	Item   T
	Result R
	Err    error
}

// Options tunes one Process call.
type Options struct {
	// ChunkSize partitions the input; chunk N+1 starts only after every
	// operation in chunk N has settled.
	ChunkSize int
	// Concurrency bounds in-flight operations within a chunk.
	Concurrency int
	// OnProgress, when set, fires after each chunk with the cumulative
	// processed count and the total.
	OnProgress func(processed, total int)
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	return o
}

// Process applies op to every item and returns outcomes in input order.
// One item's failure never aborts its siblings; a canceled ctx marks the
// remaining items with ctx.Err() instead of dropping them.
func Process[T, R any](ctx context.Context, items []T, op func(context.Context, T) (R, error), opts Options) []Outcome[T, R] {
	opts = opts.withDefaults()
	outcomes := make([]Outcome[T, R], len(items))
	total := len(items)

	for start := 0; start < total; start += opts.ChunkSize {
		end := start + opts.ChunkSize
		if end > total {
			end = total
		}

		sem := make(chan struct{}, opts.Concurrency)
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			i := i
			outcomes[i].Item = items[i]
			if err := ctx.Err(); err != nil {
				outcomes[i].Err = err
				continue
			}
			wg.Add(1)
			sem <- struct{}{}
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				result, err := op(ctx, items[i])
				if err != nil {
					outcomes[i].Err = err
					return
				}
				outcomes[i].Result = result
			}()
		}
		wg.Wait()

		if opts.OnProgress != nil {
			opts.OnProgress(end, total)
		}
	}
	return outcomes
}
