package integrator

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Pixels handled per goroutine
const parallelChunk = 1024

// parallelFor calls fn over [0, n) in chunks on at most workers goroutines
func parallelFor(ctx context.Context, n, workers int, fn func(lo, hi int) error) error {
	if n <= parallelChunk || workers <= 1 {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(0, n)
	}

	sem := semaphore.NewWeighted(int64(workers))
	g, gctx := errgroup.WithContext(ctx)
	for lo := 0; lo < n; lo += parallelChunk {
		hi := lo + parallelChunk
		if hi > n {
			hi = n
		}
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		lo, hi := lo, hi
		g.Go(func() error {
			defer sem.Release(1)
			return fn(lo, hi)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
