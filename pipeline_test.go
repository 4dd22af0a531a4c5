package sluice_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/zoobzio/sluice"
)

func assertInts(t *testing.T, got, want []int) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestLazyConstruction(t *testing.T) {
	calls := 0
	p := sluice.FromFunc(func(context.Context) ([]int, error) {
		calls++
		return []int{1, 2, 3}, nil
	})
	chained := sluice.Map(p, func(n int) int { return n * 2 }).
		Filter(func(n int) bool { return n > 2 })

	if calls != 0 {
		t.Fatalf("expected no evaluation during construction, source ran %d times", calls)
	}

	out, err := chained.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertInts(t, out, []int{4, 6})
	if calls != 1 {
		t.Fatalf("expected one source run, got %d", calls)
	}
}

func TestMapFusionLaw(t *testing.T) {
	f := func(n int) int { return n + 1 }
	g := func(n int) int { return n * 10 }

	src := sluice.FromSlice(1, 2, 3)
	chained := sluice.Map(sluice.Map(src, f), g)
	composed := sluice.Map(src, func(n int) int { return g(f(n)) })

	ctx := context.Background()
	a, err := chained.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := composed.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertInts(t, a, b)
	assertInts(t, a, []int{20, 30, 40})
}

func TestFilterEqualsCollect(t *testing.T) {
	even := func(n int) bool { return n%2 == 0 }
	src := sluice.FromSlice(1, 2, 3, 4, 5, 6)

	ctx := context.Background()
	filtered, err := src.Filter(even).Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	collected, err := sluice.Collect(src, func(n int) (int, bool) {
		if even(n) {
			return n, true
		}
		return 0, false
	}).Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertInts(t, filtered, collected)
	assertInts(t, filtered, []int{2, 4, 6})
}

func TestEmptySource(t *testing.T) {
	ctx := context.Background()
	empty := sluice.FromSlice[int]()

	t.Run("plain", func(t *testing.T) {
		out, err := empty.Run(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out == nil || len(out) != 0 {
			t.Fatalf("expected empty non-nil container, got %v", out)
		}
	})

	t.Run("through a full chain", func(t *testing.T) {
		chained := sluice.FlatMap(
			sluice.Map(empty, func(n int) int { return n * 2 }).
				Filter(func(n int) bool { return true }).
				Sorted(func(a, b int) bool { return a < b }),
			func(n int) sluice.Pipeline[int] { return sluice.FromSlice(n) },
		)
		out, err := chained.Run(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(out) != 0 {
			t.Fatalf("expected empty container, got %v", out)
		}
	})

	t.Run("collect rejecting everything", func(t *testing.T) {
		out, err := sluice.FromSlice(1, 2, 3).Filter(func(int) bool { return false }).Run(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(out) != 0 {
			t.Fatalf("expected empty container, got %v", out)
		}
	})
}

func TestFlatMap(t *testing.T) {
	ctx := context.Background()

	t.Run("concatenates in encounter order", func(t *testing.T) {
		out, err := sluice.FlatMap(sluice.FromSlice(1, 2, 3), func(n int) sluice.Pipeline[int] {
			items := make([]int, n)
			for i := range items {
				items[i] = n
			}
			return sluice.FromSlice(items...)
		}).Run(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertInts(t, out, []int{1, 2, 2, 3, 3, 3})
	})

	t.Run("empty sub-pipelines contribute nothing", func(t *testing.T) {
		out, err := sluice.FlatMap(sluice.FromSlice(1, 2, 3, 4), func(n int) sluice.Pipeline[int] {
			if n%2 == 0 {
				return sluice.FromSlice[int]()
			}
			return sluice.FromSlice(n)
		}).Run(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertInts(t, out, []int{1, 3})
	})

	t.Run("map over flatMap is pushed into sub-pipelines", func(t *testing.T) {
		fm := sluice.FlatMap(sluice.FromSlice(1, 2), func(n int) sluice.Pipeline[int] {
			return sluice.FromSlice(n, n)
		})
		out, err := sluice.Map(fm, func(n int) int { return n * 10 }).Run(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertInts(t, out, []int{10, 10, 20, 20})
	})
}

func TestHandleError(t *testing.T) {
	ctx := context.Background()

	t.Run("masks exactly the failing element", func(t *testing.T) {
		divided := sluice.Apply(sluice.FromSlice(1, 2, 0, 4), func(n int) (float64, error) {
			if n == 0 {
				return 0, errors.New("division by zero")
			}
			return 10 / float64(n), nil
		})
		out, err := divided.HandleError(func(error) float64 { return -1 }).Run(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []float64{10, 5, -1, 2.5}
		if len(out) != len(want) {
			t.Fatalf("expected %v, got %v", want, out)
		}
		for i := range want {
			if out[i] != want[i] {
				t.Fatalf("expected %v, got %v", want, out)
			}
		}
	})

	t.Run("unrecovered failure aborts evaluation", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := sluice.Apply(sluice.FromSlice(1, 2), func(n int) (int, error) {
			if n == 2 {
				return 0, boom
			}
			return n, nil
		}).Run(ctx)
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
	})

	t.Run("recovers a failed source as one element", func(t *testing.T) {
		src := sluice.FromFunc(func(context.Context) ([]int, error) {
			return nil, errors.New("source down")
		})
		out, err := src.HandleError(func(error) int { return -1 }).Run(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertInts(t, out, []int{-1})
	})
}

func TestHandleErrorWith(t *testing.T) {
	ctx := context.Background()
	failing := sluice.Apply(sluice.FromSlice(1, 0, 3), func(n int) (int, error) {
		if n == 0 {
			return 0, errors.New("bad element")
		}
		return n * 10, nil
	})

	t.Run("splices many replacements", func(t *testing.T) {
		out, err := failing.HandleErrorWith(func(error) sluice.Pipeline[int] {
			return sluice.FromSlice(-1, -2)
		}).Run(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertInts(t, out, []int{10, -1, -2, 30})
	})

	t.Run("splices zero replacements", func(t *testing.T) {
		out, err := failing.HandleErrorWith(func(error) sluice.Pipeline[int] {
			return sluice.FromSlice[int]()
		}).Run(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertInts(t, out, []int{10, 30})
	})
}

func TestSorted(t *testing.T) {
	ctx := context.Background()
	out, err := sluice.FromSlice(3, 1, 2).Sorted(func(a, b int) bool { return a < b }).Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertInts(t, out, []int{1, 2, 3})
}

func TestMapEffectSequencing(t *testing.T) {
	ctx := context.Background()
	var order []int
	out, err := sluice.MapEffect(sluice.FromSlice(3, 1, 2), func(_ context.Context, n int) (int, error) {
		order = append(order, n)
		return n, nil
	}).Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertInts(t, out, []int{3, 1, 2})
	assertInts(t, order, []int{3, 1, 2})
}

func TestBridgeRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := sluice.FromSlice(5, 3, 8, 1, 9, 2)
	doubled := func(n int) int { return n * 2 }

	plain, err := sluice.Map(src, doubled).Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bridged, err := sluice.Map(
		src.Bridge(sluice.Parallel(4)),
		doubled,
	).Bridge(sluice.Sequential).Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sort.Ints(plain)
	sort.Ints(bridged)
	assertInts(t, bridged, plain)
}

func TestMemoize(t *testing.T) {
	ctx := context.Background()
	calls := 0
	src := sluice.FromFunc(func(context.Context) ([]int, error) {
		calls++
		return []int{1, 2, 3}, nil
	})

	memo, err := src.Memoize(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 3; i++ {
		out, err := sluice.Map(memo, func(n int) int { return n + 1 }).Run(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertInts(t, out, []int{2, 3, 4})
	}
	if calls != 1 {
		t.Fatalf("expected one source run, got %d", calls)
	}
}

func TestFromSeq(t *testing.T) {
	ctx := context.Background()
	seq := func(yield func(int) bool) {
		for i := 1; i <= 4; i++ {
			if !yield(i) {
				return
			}
		}
	}
	out, err := sluice.FromSeq(seq).Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertInts(t, out, []int{1, 2, 3, 4})
}

func TestReducers(t *testing.T) {
	ctx := context.Background()
	src := sluice.FromSlice(1, 2, 3, 4)

	total, err := sluice.Sum(src)(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 10 {
		t.Fatalf("expected sum 10, got %d", total)
	}

	n, err := sluice.Count(src)(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected count 4, got %d", n)
	}

	joined, err := sluice.Fold(src, "", func(acc string, n int) string {
		return acc + fmt.Sprint(n)
	})(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if joined != "1234" {
		t.Fatalf("expected '1234', got %q", joined)
	}
}

func TestCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sluice.MapEffect(sluice.FromSlice(1, 2, 3), func(ctx context.Context, n int) (int, error) {
		return n, ctx.Err()
	}).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	// Cancellation is not maskable by error handlers.
	_, err = sluice.FromSlice(1).HandleError(func(error) int { return 0 }).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPipelineReuse(t *testing.T) {
	// A constructed pipeline is a persistent template: evaluating it twice
	// yields identical containers and never shares state between runs.
	ctx := context.Background()
	p := sluice.Map(sluice.FromSlice(1, 2, 3), func(n int) int { return n * n })

	first, err := p.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := p.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertInts(t, first, second)
	assertInts(t, first, []int{1, 4, 9})
}
