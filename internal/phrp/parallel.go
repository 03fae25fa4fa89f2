package phrp

import (
	"context"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

// WorkItem is one input file queued for processing.
type WorkItem struct {
	Seq     int
	Options Options
}

// WorkResult holds the outcome of one WorkItem.
type WorkResult struct {
	Seq     int
	Input   string
	Summary *Summary
	Err     error
}

// RunAll processes every options set using a pool of workers, each run on
// its own Pipeline. Results are sent to the returned channel in arrival
// order (not sequence order). Use OrderedCollect to consume results in
// input order. If workers is 0, runtime.NumCPU() is used.
func RunAll(ctx context.Context, runs []Options, workers int, logger *zap.Logger) <-chan WorkResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	items := make(chan WorkItem)
	go func() {
		defer close(items)
		for i, o := range runs {
			select {
			case items <- WorkItem{Seq: i, Options: o}:
			case <-ctx.Done():
				return
			}
		}
	}()

	results := make(chan WorkResult, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()
			for item := range items {
				p := New(item.Options)
				p.SetLogger(logger.With(zap.String("input", item.Options.InputPath)))
				sum, err := p.Run(ctx)
				results <- WorkResult{
					Seq:     item.Seq,
					Input:   item.Options.InputPath,
					Summary: sum,
					Err:     err,
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// OrderedCollect calls fn for each result in sequence-number order.
// It buffers out-of-order results in a pending map and emits them
// as soon as the next expected sequence number is available.
// Blocks until the results channel is closed.
func OrderedCollect(results <-chan WorkResult, fn func(WorkResult) error) error {
	pending := make(map[int]WorkResult)
	nextSeq := 0

	for r := range results {
		pending[r.Seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := fn(rr); err != nil {
				// Drain remaining results to unblock workers.
				for range results {
				}
				return err
			}
		}
	}

	return nil
}
