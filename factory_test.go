package sluice_test

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/zoobzio/pipz"

	"github.com/zoobzio/sluice"
)

// Reading is the element type used across the factory tests.
type Reading struct {
	Sensor string
	Value  int
}

func testFactory() *sluice.Factory[Reading] {
	factory := sluice.New[Reading]()

	factory.Add(
		pipz.Transform("double", func(_ context.Context, r Reading) Reading {
			r.Value *= 2
			return r
		}),
		pipz.Apply("positive", func(_ context.Context, r Reading) (Reading, error) {
			if r.Value < 0 {
				return r, errors.New("negative reading")
			}
			return r, nil
		}),
	)

	factory.AddPredicate(sluice.Predicate[Reading]{
		Name:      "is-high",
		Predicate: func(r Reading) bool { return r.Value > 10 },
	})

	factory.AddOrdering(sluice.Ordering[Reading]{
		Name: "by-value",
		Less: func(a, b Reading) bool { return a.Value < b.Value },
	})

	factory.AddFallback(sluice.Fallback[Reading]{
		Name:     "zeroed",
		Fallback: func(error) Reading { return Reading{Sensor: "fallback"} },
	})

	return factory
}

func TestFactoryBasic(t *testing.T) {
	factory := testFactory()

	schema := sluice.Schema{
		Stages: []sluice.StageNode{
			{Apply: "double"},
			{Filter: "is-high"},
		},
	}

	chain, err := factory.Build(schema)
	if err != nil {
		t.Fatalf("Failed to build chain: %v", err)
	}

	ctx := context.Background()
	out, err := chain(sluice.FromSlice(
		Reading{Sensor: "a", Value: 3},
		Reading{Sensor: "b", Value: 8},
	)).Run(ctx)
	if err != nil {
		t.Fatalf("Chain error: %v", err)
	}

	if len(out) != 1 {
		t.Fatalf("Expected 1 reading, got %v", out)
	}
	if out[0].Sensor != "b" || out[0].Value != 16 {
		t.Errorf("Expected doubled reading b=16, got %+v", out[0])
	}
}

func TestFactoryRecoverStage(t *testing.T) {
	factory := testFactory()

	schema := sluice.Schema{
		Stages: []sluice.StageNode{
			{Apply: "positive"},
			{Recover: "zeroed"},
		},
	}

	chain, err := factory.Build(schema)
	if err != nil {
		t.Fatalf("Failed to build chain: %v", err)
	}

	out, err := chain(sluice.FromSlice(
		Reading{Sensor: "a", Value: 5},
		Reading{Sensor: "b", Value: -1},
	)).Run(context.Background())
	if err != nil {
		t.Fatalf("Chain error: %v", err)
	}

	if len(out) != 2 {
		t.Fatalf("Expected 2 readings, got %v", out)
	}
	if out[1].Sensor != "fallback" {
		t.Errorf("Expected fallback reading, got %+v", out[1])
	}
}

func TestFactorySortedStage(t *testing.T) {
	factory := testFactory()

	chain, err := factory.Build(sluice.Schema{
		Stages: []sluice.StageNode{{Sorted: "by-value"}},
	})
	if err != nil {
		t.Fatalf("Failed to build chain: %v", err)
	}

	out, err := chain(sluice.FromSlice(
		Reading{Value: 3}, Reading{Value: 1}, Reading{Value: 2},
	)).Run(context.Background())
	if err != nil {
		t.Fatalf("Chain error: %v", err)
	}

	for i, want := range []int{1, 2, 3} {
		if out[i].Value != want {
			t.Fatalf("Expected sorted values, got %v", out)
		}
	}
}

func TestSetSchemaAndStageChain(t *testing.T) {
	factory := testFactory()

	schema := sluice.Schema{
		Version: "1.0",
		Stages:  []sluice.StageNode{{Apply: "double"}},
	}
	if err := factory.SetSchema("readings", schema); err != nil {
		t.Fatalf("SetSchema failed: %v", err)
	}

	chain, ok := factory.StageChain("readings")
	if !ok {
		t.Fatal("Expected chain for registered schema")
	}
	out, err := chain(sluice.FromSlice(Reading{Value: 4})).Run(context.Background())
	if err != nil {
		t.Fatalf("Chain error: %v", err)
	}
	if out[0].Value != 8 {
		t.Errorf("Expected 8, got %d", out[0].Value)
	}

	got, ok := factory.GetSchema("readings")
	if !ok || got.Version != "1.0" {
		t.Errorf("Expected stored schema version 1.0, got %+v found=%v", got, ok)
	}

	names := factory.ListSchemas()
	if len(names) != 1 || names[0] != "readings" {
		t.Errorf("Expected schema list [readings], got %v", names)
	}

	if !factory.RemoveSchema("readings") {
		t.Error("Expected RemoveSchema to report removal")
	}
	if _, ok := factory.StageChain("readings"); ok {
		t.Error("Expected chain gone after RemoveSchema")
	}
	if factory.RemoveSchema("readings") {
		t.Error("Expected second RemoveSchema to report missing")
	}
}

func TestSetSchemaRejectsInvalid(t *testing.T) {
	factory := testFactory()

	err := factory.SetSchema("bad", sluice.Schema{
		Stages: []sluice.StageNode{{Apply: "missing"}},
	})
	if err == nil {
		t.Fatal("Expected error for unknown processor")
	}
	if _, ok := factory.GetSchema("bad"); ok {
		t.Error("Invalid schema must not be stored")
	}
}

func TestFactoryRegistries(t *testing.T) {
	factory := testFactory()

	factory.AddStage(sluice.NamedStage[Reading]{
		Name:  "identity",
		Stage: func(p sluice.Pipeline[Reading]) sluice.Pipeline[Reading] { return p },
	})

	if !factory.HasProcessor("double") || !factory.HasProcessor("positive") {
		t.Error("Expected registered processors")
	}
	if !factory.HasPredicate("is-high") {
		t.Error("Expected registered predicate")
	}
	if !factory.HasOrdering("by-value") {
		t.Error("Expected registered ordering")
	}
	if !factory.HasFallback("zeroed") {
		t.Error("Expected registered fallback")
	}
	if !factory.HasStage("identity") {
		t.Error("Expected registered stage")
	}

	procs := factory.ListProcessors()
	sort.Slice(procs, func(i, j int) bool { return procs[i] < procs[j] })
	if len(procs) != 2 || procs[0] != "double" || procs[1] != "positive" {
		t.Errorf("Expected processors [double positive], got %v", procs)
	}

	if n := factory.Remove("double", "missing"); n != 1 {
		t.Errorf("Expected 1 processor removed, got %d", n)
	}
	if factory.HasProcessor("double") {
		t.Error("Expected processor gone after Remove")
	}
	if n := factory.RemovePredicate("is-high"); n != 1 {
		t.Errorf("Expected 1 predicate removed, got %d", n)
	}
	if n := factory.RemoveOrdering("by-value"); n != 1 {
		t.Errorf("Expected 1 ordering removed, got %d", n)
	}
	if n := factory.RemoveFallback("zeroed"); n != 1 {
		t.Errorf("Expected 1 fallback removed, got %d", n)
	}
	if n := factory.RemoveStage("identity"); n != 1 {
		t.Errorf("Expected 1 stage removed, got %d", n)
	}
}

func TestAddWithMeta(t *testing.T) {
	factory := sluice.New[Reading]()
	factory.AddWithMeta(sluice.ProcessorMeta[Reading]{
		Processor: pipz.Transform("tag", func(_ context.Context, r Reading) Reading {
			r.Sensor = "tagged"
			return r
		}),
		Description: "Tags each reading",
		Tags:        []string{"enrichment"},
	})

	if !factory.HasProcessor("tag") {
		t.Fatal("Expected processor registered through AddWithMeta")
	}

	spec := factory.Spec()
	if len(spec.Processors) != 1 {
		t.Fatalf("Expected 1 processor spec, got %v", spec.Processors)
	}
	if spec.Processors[0].Description != "Tags each reading" {
		t.Errorf("Expected description carried into spec, got %+v", spec.Processors[0])
	}
}
