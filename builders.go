package sluice

import (
	"context"
	"fmt"
	"time"

	"github.com/zoobzio/pipz"

	"github.com/zoobzio/sluice/effect"
)

// Stage kind constants.
const (
	stageApply   = "apply"
	stageFilter  = "filter"
	stageSorted  = "sorted"
	stageRecover = "recover"
	stageBridge  = "bridge"
	stageNamed   = "stage"
)

// buildChain folds a schema's stages into a single StageFunc.
// Callers hold f.mu.
func (f *Factory[T]) buildChain(schema *Schema) (StageFunc[T], error) {
	stages := make([]StageFunc[T], 0, len(schema.Stages))
	for i := range schema.Stages {
		stage, err := f.buildStage(&schema.Stages[i], fmt.Sprintf("stages[%d]", i))
		if err != nil {
			return nil, err
		}
		stages = append(stages, stage)
	}

	return func(p Pipeline[T]) Pipeline[T] {
		for _, stage := range stages {
			p = stage(p)
		}
		return p
	}, nil
}

// buildStage builds a single stage node.
func (f *Factory[T]) buildStage(node *StageNode, path string) (StageFunc[T], error) {
	switch node.kind() {
	case stageApply:
		return f.buildApply(node, path)
	case stageFilter:
		return f.buildFilter(node, path)
	case stageSorted:
		return f.buildSorted(node, path)
	case stageRecover:
		return f.buildRecover(node, path)
	case stageBridge:
		return f.buildBridge(node, path)
	case stageNamed:
		return f.buildNamed(node, path)
	default:
		return nil, fmt.Errorf("%s: exactly one stage kind must be set", path)
	}
}

// buildApply creates an apply stage from a registered processor, wrapping
// its per-element effect with retry/backoff/timeout middlewares when the
// node asks for them.
func (f *Factory[T]) buildApply(node *StageNode, path string) (StageFunc[T], error) {
	pm, exists := f.processors[pipz.Name(node.Apply)]
	if !exists {
		return nil, fmt.Errorf("%s: processor '%s' not found", path, node.Apply)
	}
	proc := pm.processor

	var middlewares []effect.Middleware[T]
	if node.Attempts > 0 {
		if node.Backoff != "" {
			base, err := time.ParseDuration(node.Backoff)
			if err != nil {
				return nil, fmt.Errorf("%s: invalid backoff duration '%s': %w", path, node.Backoff, err)
			}
			middlewares = append(middlewares, effect.Backoff[T](node.Attempts, base))
		} else {
			middlewares = append(middlewares, effect.Retry[T](node.Attempts))
		}
	}
	if node.Timeout != "" {
		d, err := time.ParseDuration(node.Timeout)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid timeout duration '%s': %w", path, node.Timeout, err)
		}
		middlewares = append(middlewares, effect.Timeout[T](d))
	}

	if len(middlewares) == 0 {
		return func(p Pipeline[T]) Pipeline[T] {
			return ApplyChainable(p, proc)
		}, nil
	}

	via := chainMiddlewares(middlewares)
	return func(p Pipeline[T]) Pipeline[T] {
		return MapEffectVia(p, func(t T) effect.Effect[T] {
			return func(ctx context.Context) (T, error) {
				out, perr := proc.Process(ctx, t)
				if perr != nil {
					return out, perr
				}
				return out, nil
			}
		}, via)
	}, nil
}

// buildFilter creates a filter stage from a registered predicate.
func (f *Factory[T]) buildFilter(node *StageNode, path string) (StageFunc[T], error) {
	pm, exists := f.predicates[node.Filter]
	if !exists {
		return nil, fmt.Errorf("%s: predicate '%s' not found", path, node.Filter)
	}
	pred := pm.predicate

	return func(p Pipeline[T]) Pipeline[T] {
		return p.Filter(pred)
	}, nil
}

// buildSorted creates a sorted stage from a registered ordering.
func (f *Factory[T]) buildSorted(node *StageNode, path string) (StageFunc[T], error) {
	om, exists := f.orderings[node.Sorted]
	if !exists {
		return nil, fmt.Errorf("%s: ordering '%s' not found", path, node.Sorted)
	}
	less := om.less

	return func(p Pipeline[T]) Pipeline[T] {
		return p.Sorted(less)
	}, nil
}

// buildRecover creates a recover stage from a registered fallback.
func (f *Factory[T]) buildRecover(node *StageNode, path string) (StageFunc[T], error) {
	fm, exists := f.fallbacks[node.Recover]
	if !exists {
		return nil, fmt.Errorf("%s: fallback '%s' not found", path, node.Recover)
	}
	fb := fm.fallback

	return func(p Pipeline[T]) Pipeline[T] {
		return p.HandleError(fb)
	}, nil
}

// buildBridge creates a bridge stage switching the execution strategy.
func (f *Factory[T]) buildBridge(node *StageNode, path string) (StageFunc[T], error) {
	strat, ok := strategyByName(node.Bridge, node.Workers)
	if !ok {
		return nil, fmt.Errorf("%s: unknown strategy '%s'", path, node.Bridge)
	}

	return func(p Pipeline[T]) Pipeline[T] {
		return p.Bridge(strat)
	}, nil
}

// buildNamed resolves a registered opaque stage.
func (f *Factory[T]) buildNamed(node *StageNode, path string) (StageFunc[T], error) {
	sm, exists := f.stages[node.Stage]
	if !exists {
		return nil, fmt.Errorf("%s: stage '%s' not found", path, node.Stage)
	}
	return sm.stage, nil
}

// chainMiddlewares composes middlewares so the first listed is outermost.
func chainMiddlewares[T any](middlewares []effect.Middleware[T]) effect.Middleware[T] {
	return func(e effect.Effect[T]) effect.Effect[T] {
		for i := len(middlewares) - 1; i >= 0; i-- {
			e = middlewares[i](e)
		}
		return e
	}
}
