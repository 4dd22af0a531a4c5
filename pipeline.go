// Package sluice provides lazily-evaluated, composable data-transformation
// pipelines with a finite-state-machine fold on top.
//
// Building a pipeline only constructs an immutable graph of nodes; no work
// happens until the terminal Evaluate effect is run. Each combinator wraps
// the previous pipeline in a new node, so pipeline values are persistent
// and safe to share as templates:
//
//	nums := sluice.FromSlice(1, 2, 3, 4)
//	doubled := sluice.Map(nums, func(n int) int { return n * 2 })
//	evens := doubled.Filter(func(n int) bool { return n%4 == 0 })
//	out, err := evens.Run(ctx) // [4 8]
//
// Element transforms that can fail (Apply, MapEffect) produce per-element
// failures that HandleError and HandleErrorWith intercept without halting
// the rest of the stream; anything left unrecovered fails the whole
// evaluation.
//
// The execution Strategy decides how effectful stages are sequenced.
// Sequential preserves encounter order end to end; Parallel runs effectful
// stages concurrently. Bridge switches strategies mid-pipeline:
//
//	fast := sluice.MapEffect(src.Bridge(sluice.Parallel(8)), fetch)
//	ordered := fast.Bridge(sluice.Sequential).Sorted(byID)
//
// The FSM combinator (see FSM and Rules) folds elements through per-state
// transition rules, threading state data strictly in encounter order.
//
// Stage chains can also be declared in YAML or JSON schemas and built
// through a Factory, which registers named pipz processors, predicates,
// orderings, and fallbacks; see Factory and Schema.
package sluice

import (
	"context"
	"iter"

	"golang.org/x/exp/constraints"

	"github.com/zoobzio/sluice/effect"
)

// Pipeline is a composed, unevaluated chain of element transformations
// over a source. The zero value is not usable; build pipelines with the
// From constructors.
type Pipeline[A any] struct {
	n     node
	strat Strategy
}

// Strategy returns the strategy the pipeline will materialize under.
func (p Pipeline[A]) Strategy() Strategy { return p.strat }

// FromSlice builds a sequential pipeline over an in-memory sequence.
func FromSlice[A any](items ...A) Pipeline[A] {
	return From(Sequential, items...)
}

// From builds a pipeline over an in-memory sequence under a chosen
// strategy.
func From[A any](strat Strategy, items ...A) Pipeline[A] {
	vals := make([]any, len(items))
	for i, it := range items {
		vals[i] = it
	}
	return Pipeline[A]{
		n: &sourceNode{produce: func(context.Context) ([]any, error) {
			out := make([]any, len(vals))
			copy(out, vals)
			return out, nil
		}},
		strat: strat,
	}
}

// FromFunc builds a sequential pipeline whose elements are produced inside
// the evaluation effect. The thunk runs once per evaluation.
func FromFunc[A any](produce func(ctx context.Context) ([]A, error)) Pipeline[A] {
	return Pipeline[A]{
		n: &sourceNode{produce: func(ctx context.Context) ([]any, error) {
			items, err := produce(ctx)
			if err != nil {
				return nil, err
			}
			vals := make([]any, len(items))
			for i, it := range items {
				vals[i] = it
			}
			return vals, nil
		}},
		strat: Sequential,
	}
}

// FromSeq builds a sequential pipeline by draining an iterator at
// evaluation time.
func FromSeq[A any](seq iter.Seq[A]) Pipeline[A] {
	return Pipeline[A]{
		n: &sourceNode{produce: func(ctx context.Context) ([]any, error) {
			vals := []any{}
			for a := range seq {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				vals = append(vals, a)
			}
			return vals, nil
		}},
		strat: Sequential,
	}
}

// Map pipes each element through a pure function. Consecutive maps fuse
// into a single node, and a map over FlatMap is pushed into the
// sub-pipelines, so no intermediate container is built either way.
func Map[A, B any](p Pipeline[A], f func(A) B) Pipeline[B] {
	switch up := p.n.(type) {
	case *mapNode:
		inner := up.fn
		return Pipeline[B]{
			n:     &mapNode{up: up.up, fn: func(v any) any { return f(inner(v).(A)) }},
			strat: p.strat,
		}
	case *flatMapNode:
		innerFn := up.fn
		return Pipeline[B]{
			n: &flatMapNode{up: up.up, fn: func(v any) (node, Strategy) {
				sn, sstrat := innerFn(v)
				return &mapNode{up: sn, fn: func(sv any) any { return f(sv.(A)) }}, sstrat
			}},
			strat: p.strat,
		}
	default:
		return Pipeline[B]{
			n:     &mapNode{up: p.n, fn: func(v any) any { return f(v.(A)) }},
			strat: p.strat,
		}
	}
}

// Apply pipes each element through a transform that can fail. A failure
// replaces only that element's contribution with a pending error that
// HandleError or HandleErrorWith can intercept.
func Apply[A, B any](p Pipeline[A], f func(A) (B, error)) Pipeline[B] {
	return MapEffect(p, func(_ context.Context, a A) (B, error) { return f(a) })
}

// MapEffect pipes each element through an effectful transform. Effects are
// sequenced in encounter order under Sequential; Parallel may run them
// concurrently. A map feeding directly into MapEffect is fused into the
// effectful node.
func MapEffect[A, B any](p Pipeline[A], f func(context.Context, A) (B, error)) Pipeline[B] {
	if up, ok := p.n.(*mapNode); ok {
		inner := up.fn
		return Pipeline[B]{
			n: &mapEffectNode{up: up.up, fn: func(ctx context.Context, v any) (any, error) {
				return f(ctx, inner(v).(A))
			}},
			strat: p.strat,
		}
	}
	return Pipeline[B]{
		n: &mapEffectNode{up: p.n, fn: func(ctx context.Context, v any) (any, error) {
			return f(ctx, v.(A))
		}},
		strat: p.strat,
	}
}

// MapEffectVia is MapEffect with an effect conversion applied per element,
// e.g. wrapping each element's effect with retries or a deadline:
//
//	sluice.MapEffectVia(p, fetch, effect.Backoff[Row](3, time.Second))
func MapEffectVia[A, B any](p Pipeline[A], f func(A) effect.Effect[B], via effect.Middleware[B]) Pipeline[B] {
	return MapEffect(p, func(ctx context.Context, a A) (B, error) {
		e := f(a)
		if via != nil {
			e = via(e)
		}
		return e(ctx)
	})
}

// FlatMap maps each element to a sub-pipeline and concatenates the
// materialized sub-containers in outer encounter order. A sub-pipeline
// that produces nothing contributes nothing.
func FlatMap[A, B any](p Pipeline[A], f func(A) Pipeline[B]) Pipeline[B] {
	if up, ok := p.n.(*mapNode); ok {
		inner := up.fn
		return Pipeline[B]{
			n: &flatMapNode{up: up.up, fn: func(v any) (node, Strategy) {
				sp := f(inner(v).(A))
				return sp.n, sp.strat
			}},
			strat: p.strat,
		}
	}
	return Pipeline[B]{
		n: &flatMapNode{up: p.n, fn: func(v any) (node, Strategy) {
			sp := f(v.(A))
			return sp.n, sp.strat
		}},
		strat: p.strat,
	}
}

// Collect applies a partial function: elements the function rejects
// contribute zero outputs, without error. Collect is the primitive;
// Filter is sugar over it.
func Collect[A, B any](p Pipeline[A], pf func(A) (B, bool)) Pipeline[B] {
	return Pipeline[B]{
		n: &collectNode{up: p.n, pf: func(v any) (any, bool) {
			b, ok := pf(v.(A))
			if !ok {
				return nil, false
			}
			return b, true
		}},
		strat: p.strat,
	}
}

// Filter keeps only elements matching the predicate. Equivalent to Collect
// with an identity payload guarded by the predicate.
func (p Pipeline[A]) Filter(pred func(A) bool) Pipeline[A] {
	return Collect(p, func(a A) (A, bool) {
		if pred(a) {
			return a, true
		}
		var zero A
		return zero, false
	})
}

// HandleError replaces any failing element with a pure fallback value,
// continuing the stream. Exactly the failing element is replaced; no other
// element is dropped or duplicated. A failed source recovers to a single
// fallback element.
func (p Pipeline[A]) HandleError(f func(error) A) Pipeline[A] {
	return Pipeline[A]{
		n:     &handleErrorNode{up: p.n, fb: func(err error) any { return f(err) }},
		strat: p.strat,
	}
}

// HandleErrorWith splices a recovery pipeline's materialized output in
// place of each failing element's contribution. The recovery pipeline may
// legally produce zero, one, or many replacement elements, and evaluates
// under its own declared strategy before being spliced.
func (p Pipeline[A]) HandleErrorWith(f func(error) Pipeline[A]) Pipeline[A] {
	return Pipeline[A]{
		n: &handleErrorWithNode{up: p.n, fb: func(err error) (node, Strategy) {
			rp := f(err)
			return rp.n, rp.strat
		}},
		strat: p.strat,
	}
}

// Sorted materializes the container and totally orders it with the given
// ordering. It is a blocking point: downstream combinators observe the
// fully sorted container.
func (p Pipeline[A]) Sorted(less func(a, b A) bool) Pipeline[A] {
	return Pipeline[A]{
		n: &sortedNode{up: p.n, less: func(a, b any) bool {
			return less(a.(A), b.(A))
		}},
		strat: p.strat,
	}
}

// Bridge switches the active execution strategy mid-pipeline. The upstream
// container is drained under the strategy that built it and rebuilt under
// the new one.
func (p Pipeline[A]) Bridge(strat Strategy) Pipeline[A] {
	return Pipeline[A]{
		n:     &bridgeNode{up: p.n, from: p.strat},
		strat: strat,
	}
}

// Evaluate is the single deferred terminal: running the returned effect
// walks the graph bottom-up and materializes the container. An empty
// source yields an empty container; an unrecovered element failure fails
// the whole run with that element's error.
func (p Pipeline[A]) Evaluate() effect.Effect[[]A] {
	return func(ctx context.Context) ([]A, error) {
		items, err := evalNode(ctx, p.n, p.strat)
		if err != nil {
			return nil, err
		}
		out := make([]A, 0, len(items))
		for _, it := range items {
			if it.err != nil {
				return nil, it.err
			}
			out = append(out, it.v.(A))
		}
		return out, nil
	}
}

// Run evaluates the pipeline immediately. Equivalent to p.Evaluate()(ctx).
func (p Pipeline[A]) Run(ctx context.Context) ([]A, error) {
	return p.Evaluate()(ctx)
}

// Memoize evaluates the pipeline now and returns a pipeline over the
// materialized container, so repeated downstream evaluations do not re-run
// upstream work.
func (p Pipeline[A]) Memoize(ctx context.Context) (Pipeline[A], error) {
	vals, err := p.Run(ctx)
	if err != nil {
		return Pipeline[A]{}, err
	}
	items := make([]item, len(vals))
	for i, v := range vals {
		items[i] = item{v: v}
	}
	return Pipeline[A]{n: &memoNode{items: items}, strat: p.strat}, nil
}

// Fold reduces the materialized container left to right. It composes with
// the same deferred evaluation contract as Evaluate.
func Fold[A, B any](p Pipeline[A], zero B, f func(B, A) B) effect.Effect[B] {
	return effect.Map(p.Evaluate(), func(items []A) B {
		acc := zero
		for _, a := range items {
			acc = f(acc, a)
		}
		return acc
	})
}

// Number constrains Sum to built-in numeric element types.
type Number interface {
	constraints.Integer | constraints.Float
}

// Sum adds up the materialized container.
func Sum[A Number](p Pipeline[A]) effect.Effect[A] {
	var zero A
	return Fold(p, zero, func(acc, a A) A { return acc + a })
}

// Count reports the size of the materialized container.
func Count[A any](p Pipeline[A]) effect.Effect[int] {
	return effect.Map(p.Evaluate(), func(items []A) int { return len(items) })
}
