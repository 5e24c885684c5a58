package pool

import (
	"context"
	"sync"
)

// MapFunc processes one item into a result.
type MapFunc[T, R any] func(ctx context.Context, item T) (R, error)

// Result pairs an item's output with its error. Results keep the input order.
type Result[R any] struct {
	Value R
	Err   error
}

// Map runs fn over items with numWorkers goroutines and returns one Result per
// item, in input order. Items not started before ctx ends carry ctx.Err().
func Map[T, R any](ctx context.Context, items []T, numWorkers int, fn MapFunc[T, R]) []Result[R] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	results := make([]Result[R], len(items))
	tasks := make(chan int, numWorkers)

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range tasks {
				if err := ctx.Err(); err != nil {
					results[idx].Err = err
					continue
				}
				v, err := fn(ctx, items[idx])
				results[idx] = Result[R]{Value: v, Err: err}
			}
		}()
	}

	next := 0
OUT:
	for ; next < len(items); next++ {
		select {
		case tasks <- next:
		case <-ctx.Done():
			break OUT
		}
	}
	close(tasks)
	wg.Wait()

	for ; next < len(items); next++ {
		results[next].Err = ctx.Err()
	}
	return results
}
