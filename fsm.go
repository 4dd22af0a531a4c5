package sluice

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoTransition reports that neither the current state's rule nor the
// fallback rule matched an element. It flows through the pipeline as an
// ordinary element-production failure, so HandleError and HandleErrorWith
// intercept it like any other.
var ErrNoTransition = errors.New("no matching transition")

// State is one snapshot of a running machine: a finite name tag plus
// arbitrary user-defined state data.
type State[N comparable, D any] struct {
	Name N
	Data D
}

// Counters is a copy-on-write counter map, the common shape for FSM state
// data. Mutating methods return a fresh map; missing keys count as zero.
type Counters[K comparable] map[K]int

// Inc returns a copy with the counter for k incremented, starting from
// zero when k is absent.
func (c Counters[K]) Inc(k K) Counters[K] { return c.Add(k, 1) }

// Add returns a copy with delta added to the counter for k.
func (c Counters[K]) Add(k K, delta int) Counters[K] {
	out := make(Counters[K], len(c)+1)
	for key, v := range c {
		out[key] = v
	}
	out[k] += delta
	return out
}

// Get reads the counter for k, zero when absent.
func (c Counters[K]) Get(k K) int { return c[k] }

// Reset returns an empty counter map.
func (c Counters[K]) Reset() Counters[K] { return Counters[K]{} }

// Step declares the outcome of processing one element in a given state:
// the next state name, a state-data update, and what to emit. Build one
// with Goto or Stay and chain the setters:
//
//	sluice.Goto[door, counters, int](Closed).
//	    Change(func(c counters) counters { return c.Inc(Opened) }).
//	    Push(func(st sluice.State[door, counters]) int { return st.Data.Get(Opened) })
//
// Emission observes the committed (post-transition) state. A Step with no
// emission setter pushes nothing.
type Step[N comparable, D, B any] struct {
	nextName N
	hasNext  bool
	update   func(D) D
	emit     func(ctx context.Context, st State[N, D]) ([]B, error)
}

// Goto starts a step that moves the machine to a new state name.
func Goto[N comparable, D, B any](next N) Step[N, D, B] {
	return Step[N, D, B]{nextName: next, hasNext: true}
}

// Stay starts a step that keeps the current state name.
func Stay[N comparable, D, B any]() Step[N, D, B] {
	return Step[N, D, B]{}
}

// Change sets the state-data update applied during the transition.
func (s Step[N, D, B]) Change(f func(D) D) Step[N, D, B] {
	s.update = f
	return s
}

// Push emits one output value computed from the committed state.
func (s Step[N, D, B]) Push(f func(st State[N, D]) B) Step[N, D, B] {
	s.emit = func(_ context.Context, st State[N, D]) ([]B, error) {
		return []B{f(st)}, nil
	}
	return s
}

// PushEffect emits one output value computed through a secondary effect.
// A failing effect fails this element, not the whole stream.
func (s Step[N, D, B]) PushEffect(f func(ctx context.Context, st State[N, D]) (B, error)) Step[N, D, B] {
	s.emit = func(ctx context.Context, st State[N, D]) ([]B, error) {
		b, err := f(ctx, st)
		if err != nil {
			return nil, err
		}
		return []B{b}, nil
	}
	return s
}

// Spam emits n copies of a value computed once from the committed state.
func (s Step[N, D, B]) Spam(n int, f func(st State[N, D]) B) Step[N, D, B] {
	s.emit = func(_ context.Context, st State[N, D]) ([]B, error) {
		b := f(st)
		out := make([]B, n)
		for i := range out {
			out[i] = b
		}
		return out, nil
	}
	return s
}

// Handler computes the transition step for an element observed in the
// current state.
type Handler[A any, N comparable, D, B any] func(a A, st State[N, D]) Step[N, D, B]

// Case is one clause of a partial function: a predicate over the element
// plus the handler to run when it matches. Cases are tested in
// registration order.
type Case[A any, N comparable, D, B any] struct {
	match func(A) bool
	then  Handler[A, N, D, B]
}

// On builds a case guarded by a predicate.
func On[A any, N comparable, D, B any](match func(A) bool, then Handler[A, N, D, B]) Case[A, N, D, B] {
	return Case[A, N, D, B]{match: match, then: then}
}

// Always builds a case that matches every element.
func Always[A any, N comparable, D, B any](then Handler[A, N, D, B]) Case[A, N, D, B] {
	return Case[A, N, D, B]{then: then}
}

// Rules is the transition table builder: one partial function (an ordered
// case list) per state name, plus a fallback for elements no active-state
// case matches. Start empty with NewRules, accumulate with When, and
// optionally finish with WhenUndefined. Without a matching fallback, an
// unmatched element fails with ErrNoTransition.
type Rules[A any, N comparable, D, B any] struct {
	states   map[N][]Case[A, N, D, B]
	fallback []Case[A, N, D, B]
}

// NewRules returns an empty transition table builder.
func NewRules[A any, N comparable, D, B any]() *Rules[A, N, D, B] {
	return &Rules[A, N, D, B]{states: make(map[N][]Case[A, N, D, B])}
}

// When registers the partial function for a state name. Registering the
// same name again replaces the earlier registration.
func (r *Rules[A, N, D, B]) When(name N, cases ...Case[A, N, D, B]) *Rules[A, N, D, B] {
	r.states[name] = cases
	return r
}

// WhenUndefined registers the fallback partial function, consulted when no
// case of the current state matches the element.
func (r *Rules[A, N, D, B]) WhenUndefined(cases ...Case[A, N, D, B]) *Rules[A, N, D, B] {
	r.fallback = cases
	return r
}

// lookup finds the first matching case for the element, trying the current
// state's cases then the fallback.
func (r *Rules[A, N, D, B]) lookup(name N, a A) (Handler[A, N, D, B], bool) {
	for _, c := range r.states[name] {
		if c.match == nil || c.match(a) {
			return c.then, true
		}
	}
	for _, c := range r.fallback {
		if c.match == nil || c.match(a) {
			return c.then, true
		}
	}
	return nil, false
}

// FSM attaches a transition table to a pipeline with a fixed initial
// state, turning it into a pipeline of emitted outputs.
//
// The fold observes and commits one state value per element, strictly in
// encounter order, so the machine runs sequentially at this node
// regardless of the active strategy. The state cell lives inside a single
// evaluation run; concurrent evaluations of the same pipeline value do not
// share it.
func FSM[A, B any, N comparable, D any](p Pipeline[A], initial State[N, D], rules *Rules[A, N, D, B]) Pipeline[B] {
	return attachFSM(p, func(A) State[N, D] { return initial }, rules)
}

// FSMFromFirst is FSM with the initial state derived from the first
// observed element. An empty upstream never calls init and yields an empty
// container.
func FSMFromFirst[A, B any, N comparable, D any](p Pipeline[A], init func(A) State[N, D], rules *Rules[A, N, D, B]) Pipeline[B] {
	return attachFSM(p, init, rules)
}

func attachFSM[A, B any, N comparable, D any](p Pipeline[A], init func(A) State[N, D], rules *Rules[A, N, D, B]) Pipeline[B] {
	run := func(ctx context.Context, in []item) ([]item, error) {
		var (
			cur     State[N, D]
			started bool
		)
		out := []item{}
		for _, it := range in {
			if it.err != nil {
				// A pending upstream failure is not an observed element;
				// it passes through without touching the state.
				out = append(out, it)
				continue
			}
			a := it.v.(A)
			if !started {
				cur = init(a)
				started = true
			}
			handle, ok := rules.lookup(cur.Name, a)
			if !ok {
				out = append(out, item{err: fmt.Errorf("%w: state %v, element %v", ErrNoTransition, cur.Name, a)})
				continue
			}
			step := handle(a, cur)
			next := cur
			if step.update != nil {
				next.Data = step.update(cur.Data)
			}
			if step.hasNext {
				next.Name = step.nextName
			}
			cur = next
			if step.emit == nil {
				continue
			}
			vals, err := step.emit(ctx, cur)
			if err != nil {
				if ctx.Err() != nil {
					return nil, err
				}
				out = append(out, item{err: err})
				continue
			}
			for _, b := range vals {
				out = append(out, item{v: b})
			}
		}
		return out, nil
	}
	return Pipeline[B]{n: &fsmNode{up: p.n, run: run}, strat: p.strat}
}
