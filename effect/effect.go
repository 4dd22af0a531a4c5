// Package effect models deferred, sequenced, failable computations.
//
// An Effect[A] is a computation that, when run against a context, either
// produces an A or fails. Nothing happens until the effect is invoked, so
// effects compose freely before any work is done. Concurrency, timeouts,
// and cancellation all arrive through the context; the package itself
// starts no goroutines except where a middleware explicitly needs one.
//
// Basic usage:
//
//	fetch := func(ctx context.Context) (string, error) {
//	    return client.Get(ctx, url)
//	}
//	upper := effect.Map(effect.Effect[string](fetch), strings.ToUpper)
//	out, err := upper(ctx)
//
// Middlewares convert one effect into another of the same type, e.g.
// wrapping it with retries or a deadline:
//
//	resilient := effect.Retry[string](3)(upper)
package effect

import (
	"context"
	"time"
)

// Effect is a deferred computation producing an A. Running the same effect
// twice runs the underlying work twice; memoization is the caller's concern.
type Effect[A any] func(ctx context.Context) (A, error)

// Pure lifts a plain value into an effect that always succeeds.
func Pure[A any](a A) Effect[A] {
	return func(ctx context.Context) (A, error) {
		if err := ctx.Err(); err != nil {
			var zero A
			return zero, err
		}
		return a, nil
	}
}

// Fail lifts an error into an effect that always fails.
func Fail[A any](err error) Effect[A] {
	return func(context.Context) (A, error) {
		var zero A
		return zero, err
	}
}

// Map transforms the result of an effect with a pure function.
func Map[A, B any](e Effect[A], f func(A) B) Effect[B] {
	return func(ctx context.Context) (B, error) {
		a, err := e(ctx)
		if err != nil {
			var zero B
			return zero, err
		}
		return f(a), nil
	}
}

// FlatMap sequences a dependent effect after e. The second effect is not
// constructed unless e succeeds.
func FlatMap[A, B any](e Effect[A], f func(A) Effect[B]) Effect[B] {
	return func(ctx context.Context) (B, error) {
		a, err := e(ctx)
		if err != nil {
			var zero B
			return zero, err
		}
		return f(a)(ctx)
	}
}

// Recover replaces a failure with a pure fallback value. Context
// cancellation is not recoverable: a canceled run stays canceled.
func (e Effect[A]) Recover(f func(error) A) Effect[A] {
	return func(ctx context.Context) (A, error) {
		a, err := e(ctx)
		if err == nil {
			return a, nil
		}
		if cerr := ctx.Err(); cerr != nil {
			var zero A
			return zero, cerr
		}
		return f(err), nil
	}
}

// RecoverWith replaces a failure with a fallback effect. Context
// cancellation is not recoverable.
func (e Effect[A]) RecoverWith(f func(error) Effect[A]) Effect[A] {
	return func(ctx context.Context) (A, error) {
		a, err := e(ctx)
		if err == nil {
			return a, nil
		}
		if cerr := ctx.Err(); cerr != nil {
			var zero A
			return zero, cerr
		}
		return f(err)(ctx)
	}
}

// Sequence runs effects in slice order, collecting their results. It fails
// fast on the first error.
func Sequence[A any](effects []Effect[A]) Effect[[]A] {
	return func(ctx context.Context) ([]A, error) {
		out := make([]A, 0, len(effects))
		for _, e := range effects {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			a, err := e(ctx)
			if err != nil {
				return nil, err
			}
			out = append(out, a)
		}
		return out, nil
	}
}

// Middleware converts an effect into another effect of the same type.
type Middleware[A any] func(Effect[A]) Effect[A]

// Retry re-runs a failing effect up to attempts times. Context cancellation
// stops the retry loop immediately.
func Retry[A any](attempts int) Middleware[A] {
	if attempts < 1 {
		attempts = 1
	}
	return func(e Effect[A]) Effect[A] {
		return func(ctx context.Context) (A, error) {
			var (
				a   A
				err error
			)
			for i := 0; i < attempts; i++ {
				if cerr := ctx.Err(); cerr != nil {
					var zero A
					return zero, cerr
				}
				a, err = e(ctx)
				if err == nil {
					return a, nil
				}
			}
			var zero A
			return zero, err
		}
	}
}

// Backoff re-runs a failing effect up to attempts times, doubling the wait
// between attempts starting from base. The wait is context-aware.
func Backoff[A any](attempts int, base time.Duration) Middleware[A] {
	if attempts < 1 {
		attempts = 1
	}
	return func(e Effect[A]) Effect[A] {
		return func(ctx context.Context) (A, error) {
			var (
				a   A
				err error
			)
			wait := base
			for i := 0; i < attempts; i++ {
				if cerr := ctx.Err(); cerr != nil {
					var zero A
					return zero, cerr
				}
				a, err = e(ctx)
				if err == nil {
					return a, nil
				}
				if i == attempts-1 {
					break
				}
				timer := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					timer.Stop()
					var zero A
					return zero, ctx.Err()
				case <-timer.C:
				}
				wait *= 2
			}
			var zero A
			return zero, err
		}
	}
}

// Timeout bounds an effect with a deadline relative to each run.
func Timeout[A any](d time.Duration) Middleware[A] {
	return func(e Effect[A]) Effect[A] {
		return func(ctx context.Context) (A, error) {
			tctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return e(tctx)
		}
	}
}
