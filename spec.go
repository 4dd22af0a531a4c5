package sluice

import (
	"encoding/json"
	"sort"
)

// FactorySpec provides a complete description of a factory's capabilities
// for introspection, documentation, and schema generation.
type FactorySpec struct {
	Processors []ProcessorSpec `json:"processors"`
	Predicates []PredicateSpec `json:"predicates"`
	Orderings  []OrderingSpec  `json:"orderings"`
	Fallbacks  []FallbackSpec  `json:"fallbacks"`
	Stages     []StageSpec     `json:"stages"`
	StageKinds []StageKindSpec `json:"stage_kinds"`
}

// ProcessorSpec describes a registered processor.
type ProcessorSpec struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// PredicateSpec describes a registered predicate.
type PredicateSpec struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// OrderingSpec describes a registered ordering.
type OrderingSpec struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// FallbackSpec describes a registered fallback.
type FallbackSpec struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// StageSpec describes a registered opaque stage.
type StageSpec struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// StageKindSpec describes a stage kind and its schema requirements.
type StageKindSpec struct {
	Kind           string      `json:"kind"`
	Description    string      `json:"description"`
	RequiredFields []FieldSpec `json:"required_fields,omitempty"`
	OptionalFields []FieldSpec `json:"optional_fields,omitempty"`
}

// FieldSpec describes a field within a stage node.
type FieldSpec struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // "string", "int", "duration"
	Description string `json:"description"`
}

// stageKindSpecs defines all available stage kinds and their schemas.
// This is the authoritative definition of the schema grammar.
var stageKindSpecs = []StageKindSpec{
	{
		Kind:        "apply",
		Description: "Runs each element through a registered processor; failures become per-element errors",
		RequiredFields: []FieldSpec{
			{Name: "apply", Type: "string", Description: "Name of a registered processor"},
		},
		OptionalFields: []FieldSpec{
			{Name: "attempts", Type: "int", Description: "Retry attempts for each element's effect"},
			{Name: "backoff", Type: "duration", Description: "Base wait between retries (e.g., '100ms'); requires attempts"},
			{Name: "timeout", Type: "duration", Description: "Deadline for each element's effect (e.g., '5s')"},
		},
	},
	{
		Kind:        "filter",
		Description: "Keeps only elements matching a registered predicate",
		RequiredFields: []FieldSpec{
			{Name: "filter", Type: "string", Description: "Name of a registered predicate"},
		},
	},
	{
		Kind:        "sorted",
		Description: "Materializes and totally orders the container with a registered ordering",
		RequiredFields: []FieldSpec{
			{Name: "sorted", Type: "string", Description: "Name of a registered ordering"},
		},
	},
	{
		Kind:        "recover",
		Description: "Replaces each failing element with a registered fallback value",
		RequiredFields: []FieldSpec{
			{Name: "recover", Type: "string", Description: "Name of a registered fallback"},
		},
	},
	{
		Kind:        "bridge",
		Description: "Switches the execution strategy mid-chain",
		RequiredFields: []FieldSpec{
			{Name: "bridge", Type: "string", Description: "Target strategy: 'sequential' or 'parallel'"},
		},
		OptionalFields: []FieldSpec{
			{Name: "workers", Type: "int", Description: "Concurrency limit for a parallel bridge"},
		},
	},
	{
		Kind:        "stage",
		Description: "Applies a registered opaque stage, e.g. an FSM attachment",
		RequiredFields: []FieldSpec{
			{Name: "stage", Type: "string", Description: "Name of a registered stage"},
		},
	},
}

// Spec returns a complete specification of the factory's capabilities.
// This includes all registered components and the stage grammar.
// Output is sorted alphabetically for deterministic results.
func (f *Factory[T]) Spec() FactorySpec {
	f.mu.RLock()
	defer f.mu.RUnlock()

	spec := FactorySpec{
		Processors: make([]ProcessorSpec, 0, len(f.processors)),
		Predicates: make([]PredicateSpec, 0, len(f.predicates)),
		Orderings:  make([]OrderingSpec, 0, len(f.orderings)),
		Fallbacks:  make([]FallbackSpec, 0, len(f.fallbacks)),
		Stages:     make([]StageSpec, 0, len(f.stages)),
		StageKinds: stageKindSpecs,
	}

	for name, pm := range f.processors {
		spec.Processors = append(spec.Processors, ProcessorSpec{
			Name:        string(name),
			Description: pm.description,
			Tags:        pm.tags,
		})
	}
	sort.Slice(spec.Processors, func(i, j int) bool { return spec.Processors[i].Name < spec.Processors[j].Name })

	for name, pm := range f.predicates {
		spec.Predicates = append(spec.Predicates, PredicateSpec{
			Name:        name,
			Description: pm.description,
		})
	}
	sort.Slice(spec.Predicates, func(i, j int) bool { return spec.Predicates[i].Name < spec.Predicates[j].Name })

	for name, om := range f.orderings {
		spec.Orderings = append(spec.Orderings, OrderingSpec{
			Name:        name,
			Description: om.description,
		})
	}
	sort.Slice(spec.Orderings, func(i, j int) bool { return spec.Orderings[i].Name < spec.Orderings[j].Name })

	for name, fm := range f.fallbacks {
		spec.Fallbacks = append(spec.Fallbacks, FallbackSpec{
			Name:        name,
			Description: fm.description,
		})
	}
	sort.Slice(spec.Fallbacks, func(i, j int) bool { return spec.Fallbacks[i].Name < spec.Fallbacks[j].Name })

	for name, sm := range f.stages {
		spec.Stages = append(spec.Stages, StageSpec{
			Name:        name,
			Description: sm.description,
		})
	}
	sort.Slice(spec.Stages, func(i, j int) bool { return spec.Stages[i].Name < spec.Stages[j].Name })

	return spec
}

// SpecJSON returns the factory specification as a JSON string.
// This is suitable for documentation generation or external tooling.
func (f *Factory[T]) SpecJSON() (string, error) {
	spec := f.Spec()
	data, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
