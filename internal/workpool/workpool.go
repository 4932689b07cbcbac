// Package workpool provides a bounded, data-parallel worker pool. Its one
// user is annindex.Index.Add, which runs per-vector validation on it;
// tokenization and inference do not use it. It is a thin wrapper over golang.org/x/sync/errgroup
// sized to GOMAXPROCS by default, grounded on the parallel-search fan-out
// pattern used elsewhere in the ecosystem (concurrent BM25/vector search
// via errgroup.WithContext).
package workpool

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Pool runs tasks with bounded concurrency.
type Pool struct {
	limit int
}

// New returns a Pool limited to workers concurrent tasks. workers <= 0
// defaults to GOMAXPROCS(0).
func New(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Pool{limit: workers}
}

// Run executes fn(i) for i in [0, n) with bounded concurrency, returning the
// first error encountered (subsequent tasks are cancelled via ctx).
func (p *Pool) Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.limit)

	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			return fn(gctx, i)
		})
	}
	return g.Wait()
}

// Limit returns the configured concurrency bound.
func (p *Pool) Limit() int { return p.limit }
