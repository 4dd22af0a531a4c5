package sluice

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"
)

// DefaultWorkerCount is the worker limit used by Parallel when none is given.
const DefaultWorkerCount = 4

// Strategy decides how a finished stream of elements is materialized:
// whether per-element effects may run concurrently, whether encounter order
// survives materialization, and how a container is sorted.
//
// Two strategies ship with the library: Sequential, which preserves
// encounter order end to end, and Parallel, which trades ordering
// guarantees for throughput on effectful stages.
type Strategy interface {
	// Name identifies the strategy in schemas and introspection output.
	Name() string

	// Ordered reports whether the strategy guarantees encounter order.
	Ordered() bool

	// Traverse runs fn for indexes 0..n-1, honoring the strategy's
	// concurrency policy. It returns the first error encountered.
	Traverse(ctx context.Context, n int, fn func(context.Context, int) error) error

	// Sort totally orders a materialized container in place.
	Sort(items []any, less func(a, b any) bool)
}

type sequentialStrategy struct{}

// Sequential preserves encounter order from source to final container and
// runs per-element effects one at a time, in order.
var Sequential Strategy = sequentialStrategy{}

func (sequentialStrategy) Name() string  { return "sequential" }
func (sequentialStrategy) Ordered() bool { return true }

func (sequentialStrategy) Traverse(ctx context.Context, n int, fn func(context.Context, int) error) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx, i); err != nil {
			return err
		}
	}
	return nil
}

func (sequentialStrategy) Sort(items []any, less func(a, b any) bool) {
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
}

type parallelStrategy struct {
	workers int
}

// Parallel runs per-element effects concurrently with at most workers
// goroutines. Encounter order is not part of its contract; attach order
// sensitive combinators only after bridging back to Sequential, or rely on
// combinators that force their own ordering.
func Parallel(workers int) Strategy {
	if workers <= 0 {
		workers = DefaultWorkerCount
	}
	return parallelStrategy{workers: workers}
}

func (parallelStrategy) Name() string  { return "parallel" }
func (parallelStrategy) Ordered() bool { return false }

func (p parallelStrategy) Traverse(ctx context.Context, n int, fn func(context.Context, int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i)
		})
	}
	return g.Wait()
}

func (parallelStrategy) Sort(items []any, less func(a, b any) bool) {
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
}

// strategyByName resolves a schema strategy reference.
func strategyByName(name string, workers int) (Strategy, bool) {
	switch name {
	case "sequential":
		return Sequential, true
	case "parallel":
		return Parallel(workers), true
	default:
		return nil, false
	}
}
