package cache

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// gatherLimit bounds the concurrency of batch lookups so a large preload
// cannot flood the remote tier.
const gatherLimit = 16

// gather runs every fn concurrently, waits for all of them to settle and
// returns the successful results in input order. Individual failures are
// dropped, never substituted, and never abort the batch.
func gather[T any](ctx context.Context, fns []func(ctx context.Context) (T, bool, error)) []T {
	results := make([]T, len(fns))
	found := make([]bool, len(fns))

	var group errgroup.Group
	group.SetLimit(gatherLimit)
	for i, fn := range fns {
		i, fn := i, fn
		group.Go(func() error {
			val, ok, err := fn(ctx)
			if err != nil || !ok {
				return nil
			}
			results[i] = val
			found[i] = true
			return nil
		})
	}
	// Goroutines never return an error, so Wait only joins.
	_ = group.Wait()

	out := make([]T, 0, len(fns))
	for i, ok := range found {
		if ok {
			out = append(out, results[i])
		}
	}
	return out
}
