package sluice

import (
	"context"
	"fmt"
)

// item is one cell of a materialized container: either a value or a pending
// element-production failure awaiting a handler combinator or the terminal.
type item struct {
	v   any
	err error
}

// node is the closed set of pipeline graph variants. Nodes are immutable
// once built and own their upstream exclusively; building a combinator
// allocates a new node wrapping the previous one. All work happens in
// evalNode.
type node interface {
	isNode()
}

// sourceNode produces the initial container inside the evaluation effect.
type sourceNode struct {
	produce func(ctx context.Context) ([]any, error)
}

// memoNode holds a previously materialized container.
type memoNode struct {
	items []item
}

// mapNode applies a pure element transform. Consecutive pure maps are fused
// into a single node at construction time.
type mapNode struct {
	up node
	fn func(any) any
}

// collectNode applies a partial function; rejected elements contribute
// nothing. Filter is sugar over this variant.
type collectNode struct {
	up node
	pf func(any) (any, bool)
}

// flatMapNode maps each element to a sub-pipeline and concatenates the
// materialized sub-containers in outer encounter order.
type flatMapNode struct {
	up node
	fn func(any) (node, Strategy)
}

// mapEffectNode applies an effectful element transform, sequenced by the
// active strategy.
type mapEffectNode struct {
	up node
	fn func(context.Context, any) (any, error)
}

// handleErrorNode replaces each failing element with a pure fallback value.
type handleErrorNode struct {
	up node
	fb func(error) any
}

// handleErrorWithNode splices a recovery pipeline's output in place of each
// failing element's contribution.
type handleErrorWithNode struct {
	up node
	fb func(error) (node, Strategy)
}

// sortedNode materializes and totally orders the container.
type sortedNode struct {
	up   node
	less func(a, b any) bool
}

// bridgeNode switches the active strategy: the upstream is drained under
// the strategy that built it, and downstream nodes continue under the new
// one.
type bridgeNode struct {
	up   node
	from Strategy
}

// fsmNode folds the upstream container through a transition table. The fold
// closure is built by FSM / FSMFromFirst and is inherently sequential.
type fsmNode struct {
	up  node
	run func(ctx context.Context, in []item) ([]item, error)
}

func (*sourceNode) isNode()          {}
func (*memoNode) isNode()            {}
func (*mapNode) isNode()             {}
func (*collectNode) isNode()         {}
func (*flatMapNode) isNode()         {}
func (*mapEffectNode) isNode()       {}
func (*handleErrorNode) isNode()     {}
func (*handleErrorWithNode) isNode() {}
func (*sortedNode) isNode()          {}
func (*bridgeNode) isNode()          {}
func (*fsmNode) isNode()             {}

// evalNode is the single recursive evaluation entry point. Every variant
// asks its upstream to evaluate first, then applies its own transformation.
// A returned error is a container-level failure (failed source, canceled
// context); per-element failures travel as errored cells so that handler
// combinators can replace them.
func evalNode(ctx context.Context, n node, strat Strategy) ([]item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch t := n.(type) {
	case *sourceNode:
		vals, err := t.produce(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]item, len(vals))
		for i, v := range vals {
			out[i] = item{v: v}
		}
		return out, nil

	case *memoNode:
		out := make([]item, len(t.items))
		copy(out, t.items)
		return out, nil

	case *mapNode:
		ups, err := evalNode(ctx, t.up, strat)
		if err != nil {
			return nil, err
		}
		for i := range ups {
			if ups[i].err == nil {
				ups[i].v = t.fn(ups[i].v)
			}
		}
		return ups, nil

	case *collectNode:
		ups, err := evalNode(ctx, t.up, strat)
		if err != nil {
			return nil, err
		}
		out := make([]item, 0, len(ups))
		for _, it := range ups {
			if it.err != nil {
				out = append(out, it)
				continue
			}
			if v, ok := t.pf(it.v); ok {
				out = append(out, item{v: v})
			}
		}
		return out, nil

	case *flatMapNode:
		ups, err := evalNode(ctx, t.up, strat)
		if err != nil {
			return nil, err
		}
		var out []item
		for _, it := range ups {
			if it.err != nil {
				out = append(out, it)
				continue
			}
			sub, substrat := t.fn(it.v)
			subItems, err := evalNode(ctx, sub, substrat)
			if err != nil {
				if ctx.Err() != nil {
					return nil, err
				}
				out = append(out, item{err: err})
				continue
			}
			out = append(out, subItems...)
		}
		if out == nil {
			out = []item{}
		}
		return out, nil

	case *mapEffectNode:
		ups, err := evalNode(ctx, t.up, strat)
		if err != nil {
			return nil, err
		}
		out := make([]item, len(ups))
		err = strat.Traverse(ctx, len(ups), func(ctx context.Context, i int) error {
			it := ups[i]
			if it.err != nil {
				out[i] = it
				return nil
			}
			v, err := t.fn(ctx, it.v)
			if err != nil {
				if ctx.Err() != nil {
					return err
				}
				out[i] = item{err: err}
				return nil
			}
			out[i] = item{v: v}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return out, nil

	case *handleErrorNode:
		ups, err := evalNode(ctx, t.up, strat)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			return []item{{v: t.fb(err)}}, nil
		}
		for i := range ups {
			if ups[i].err != nil {
				ups[i] = item{v: t.fb(ups[i].err)}
			}
		}
		return ups, nil

	case *handleErrorWithNode:
		ups, err := evalNode(ctx, t.up, strat)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			return evalRecovery(ctx, t.fb, err)
		}
		var out []item
		for _, it := range ups {
			if it.err == nil {
				out = append(out, it)
				continue
			}
			recovered, rerr := evalRecovery(ctx, t.fb, it.err)
			if rerr != nil {
				return nil, rerr
			}
			out = append(out, recovered...)
		}
		if out == nil {
			out = []item{}
		}
		return out, nil

	case *sortedNode:
		ups, err := evalNode(ctx, t.up, strat)
		if err != nil {
			return nil, err
		}
		vals := make([]any, 0, len(ups))
		var pending []item
		for _, it := range ups {
			if it.err != nil {
				pending = append(pending, it)
				continue
			}
			vals = append(vals, it.v)
		}
		strat.Sort(vals, t.less)
		out := make([]item, 0, len(ups))
		for _, v := range vals {
			out = append(out, item{v: v})
		}
		return append(out, pending...), nil

	case *bridgeNode:
		// Drain under the strategy the upstream was built for; the caller's
		// strategy takes over from here.
		return evalNode(ctx, t.up, t.from)

	case *fsmNode:
		ups, err := evalNode(ctx, t.up, strat)
		if err != nil {
			return nil, err
		}
		return t.run(ctx, ups)

	default:
		return nil, fmt.Errorf("unknown node type %T", n)
	}
}

// evalRecovery evaluates a recovery pipeline under its own declared
// strategy. Recovery failures surface as container-level errors unless the
// context is still live, in which case they become the errored contribution
// for the element being recovered.
func evalRecovery(ctx context.Context, fb func(error) (node, Strategy), cause error) ([]item, error) {
	rn, rstrat := fb(cause)
	recovered, err := evalNode(ctx, rn, rstrat)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return []item{{err: err}}, nil
	}
	return recovered, nil
}
