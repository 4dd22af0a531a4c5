package sluice

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/pipz"
)

// StageFunc is one built stage of a chain: a combinator applied to a
// pipeline. Build folds a schema's stages into a single StageFunc.
type StageFunc[T any] func(Pipeline[T]) Pipeline[T]

// Predicate combines a name with a predicate function for batch registration.
type Predicate[T any] struct {
	Name        string
	Description string // Human-readable description of what this predicate checks
	Predicate   func(T) bool
}

// Ordering combines a name with a less function for sorted stages.
type Ordering[T any] struct {
	Name        string
	Description string // Human-readable description of the order this imposes
	Less        func(a, b T) bool
}

// Fallback combines a name with an error fallback for recover stages.
type Fallback[T any] struct {
	Name        string
	Description string // Human-readable description of the replacement produced
	Fallback    func(error) T
}

// NamedStage combines a name with an opaque stage function. This is how
// combinators the schema grammar cannot express directly, such as FSM
// attachments or Collect stages, enter schemas.
type NamedStage[T any] struct {
	Name        string
	Description string // Human-readable description of what this stage does
	Stage       StageFunc[T]
}

// ProcessorMeta wraps a processor with metadata for introspection.
type ProcessorMeta[T any] struct {
	Processor   pipz.Chainable[T]
	Description string   // Human-readable description of what this processor does
	Tags        []string // Categorization tags for discovery
}

// predicateMeta stores a predicate function with its metadata.
type predicateMeta[T any] struct {
	predicate   func(T) bool
	description string
}

// orderingMeta stores a less function with its metadata.
type orderingMeta[T any] struct {
	less        func(a, b T) bool
	description string
}

// fallbackMeta stores a fallback function with its metadata.
type fallbackMeta[T any] struct {
	fallback    func(error) T
	description string
}

// stageMeta stores an opaque stage with its metadata.
type stageMeta[T any] struct {
	stage       StageFunc[T]
	description string
}

// processorMeta stores a processor with its metadata.
type processorMeta[T any] struct {
	processor   pipz.Chainable[T]
	description string
	tags        []string
}

// Factory builds stage chains from schemas using registered components.
// It maintains registries for processors, predicates, orderings,
// fallbacks, and opaque stages, plus named schemas whose built chains are
// swapped atomically on update.
type Factory[T any] struct {
	processors map[pipz.Name]processorMeta[T]
	predicates map[string]predicateMeta[T]
	orderings  map[string]orderingMeta[T]
	fallbacks  map[string]fallbackMeta[T]
	stages     map[string]stageMeta[T]
	schemas    map[string]*Schema
	chains     map[string]*atomic.Pointer[StageFunc[T]]
	bindings   map[string][]*Binding[T]
	mu         sync.RWMutex
}

// New creates a new Factory for type T.
func New[T any]() *Factory[T] {
	factory := &Factory[T]{
		processors: make(map[pipz.Name]processorMeta[T]),
		predicates: make(map[string]predicateMeta[T]),
		orderings:  make(map[string]orderingMeta[T]),
		fallbacks:  make(map[string]fallbackMeta[T]),
		stages:     make(map[string]stageMeta[T]),
		schemas:    make(map[string]*Schema),
		chains:     make(map[string]*atomic.Pointer[StageFunc[T]]),
		bindings:   make(map[string][]*Binding[T]),
	}

	capitan.Emit(context.Background(), FactoryCreated,
		KeyType.Field(fmt.Sprintf("%T", *new(T))))

	return factory
}

// Add registers one or more processors to the factory using their
// intrinsic names. For processors with metadata, use AddWithMeta instead.
func (f *Factory[T]) Add(processors ...pipz.Chainable[T]) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, processor := range processors {
		f.processors[processor.Name()] = processorMeta[T]{
			processor: processor,
		}

		capitan.Emit(context.Background(), ProcessorRegistered,
			KeyName.Field(string(processor.Name())))
	}
}

// AddWithMeta registers one or more processors with metadata for introspection.
func (f *Factory[T]) AddWithMeta(processors ...ProcessorMeta[T]) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, pm := range processors {
		f.processors[pm.Processor.Name()] = processorMeta[T]{
			processor:   pm.Processor,
			description: pm.Description,
			tags:        pm.Tags,
		}

		capitan.Emit(context.Background(), ProcessorRegistered,
			KeyName.Field(string(pm.Processor.Name())))
	}
}

// AddPredicate registers one or more predicates for use in filter stages.
func (f *Factory[T]) AddPredicate(predicates ...Predicate[T]) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, p := range predicates {
		f.predicates[p.Name] = predicateMeta[T]{
			description: p.Description,
			predicate:   p.Predicate,
		}

		capitan.Emit(context.Background(), PredicateRegistered,
			KeyName.Field(p.Name))
	}
}

// AddOrdering registers one or more orderings for use in sorted stages.
func (f *Factory[T]) AddOrdering(orderings ...Ordering[T]) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, o := range orderings {
		f.orderings[o.Name] = orderingMeta[T]{
			description: o.Description,
			less:        o.Less,
		}

		capitan.Emit(context.Background(), OrderingRegistered,
			KeyName.Field(o.Name))
	}
}

// AddFallback registers one or more fallbacks for use in recover stages.
func (f *Factory[T]) AddFallback(fallbacks ...Fallback[T]) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, fb := range fallbacks {
		f.fallbacks[fb.Name] = fallbackMeta[T]{
			description: fb.Description,
			fallback:    fb.Fallback,
		}

		capitan.Emit(context.Background(), FallbackRegistered,
			KeyName.Field(fb.Name))
	}
}

// AddStage registers one or more opaque stages for use in stage nodes.
func (f *Factory[T]) AddStage(stages ...NamedStage[T]) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, s := range stages {
		f.stages[s.Name] = stageMeta[T]{
			description: s.Description,
			stage:       s.Stage,
		}

		capitan.Emit(context.Background(), StageRegistered,
			KeyName.Field(s.Name))
	}
}

// Build creates a stage chain from a schema.
func (f *Factory[T]) Build(schema Schema) (StageFunc[T], error) {
	start := time.Now()

	startFields := []capitan.Field{}
	if schema.Version != "" {
		startFields = append(startFields, KeyVersion.Field(schema.Version))
	}
	capitan.Emit(context.Background(), SchemaBuildStarted, startFields...)

	// Validate first
	if err := f.ValidateSchema(schema); err != nil {
		failFields := []capitan.Field{
			KeyError.Field(err.Error()),
			KeyDuration.Field(time.Since(start)),
		}
		if schema.Version != "" {
			failFields = append(failFields, KeyVersion.Field(schema.Version))
		}
		capitan.Emit(context.Background(), SchemaBuildFailed, failFields...)
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	chain, err := f.buildChain(&schema)
	if err != nil {
		failFields := []capitan.Field{
			KeyError.Field(err.Error()),
			KeyDuration.Field(time.Since(start)),
		}
		if schema.Version != "" {
			failFields = append(failFields, KeyVersion.Field(schema.Version))
		}
		capitan.Emit(context.Background(), SchemaBuildFailed, failFields...)
		return nil, err
	}

	completeFields := []capitan.Field{
		KeyDuration.Field(time.Since(start)),
	}
	if schema.Version != "" {
		completeFields = append(completeFields, KeyVersion.Field(schema.Version))
	}
	capitan.Emit(context.Background(), SchemaBuildCompleted, completeFields...)
	return chain, nil
}

// SetSchema adds or updates a named schema and builds its stage chain.
// Auto-sync bindings bound to the schema are rebuilt.
func (f *Factory[T]) SetSchema(name string, schema Schema) error {
	// Validate first (Build will also validate, but this gives clearer error context)
	if err := f.ValidateSchema(schema); err != nil {
		return fmt.Errorf("invalid schema %s: %w", name, err)
	}

	chain, err := f.Build(schema)
	if err != nil {
		return fmt.Errorf("failed to build schema %s: %w", name, err)
	}

	f.mu.Lock()

	oldSchema := f.schemas[name]
	isUpdate := oldSchema != nil

	f.schemas[name] = &schema
	if ptr, exists := f.chains[name]; exists {
		ptr.Store(&chain)
	} else {
		ptr := &atomic.Pointer[StageFunc[T]]{}
		ptr.Store(&chain)
		f.chains[name] = ptr
	}

	var toSync []*Binding[T]
	for _, b := range f.bindings[name] {
		if b.autoSync {
			toSync = append(toSync, b)
		}
	}
	f.mu.Unlock()

	for _, b := range toSync {
		b.store(chain)
		capitan.Emit(context.Background(), BindingSynced,
			KeyName.Field(b.name),
			KeySchema.Field(name))
	}

	if isUpdate {
		fields := []capitan.Field{
			KeyName.Field(name),
		}
		if oldSchema.Version != "" {
			fields = append(fields, KeyOldVersion.Field(oldSchema.Version))
		}
		if schema.Version != "" {
			fields = append(fields, KeyNewVersion.Field(schema.Version))
		}
		capitan.Emit(context.Background(), SchemaUpdated, fields...)
	} else {
		fields := []capitan.Field{
			KeyName.Field(name),
		}
		if schema.Version != "" {
			fields = append(fields, KeyVersion.Field(schema.Version))
		}
		capitan.Emit(context.Background(), SchemaRegistered, fields...)
	}
	return nil
}

// StageChain returns the current built chain for a named schema.
// Returns the chain and true if found, or nil and false if not found.
func (f *Factory[T]) StageChain(name string) (StageFunc[T], bool) {
	f.mu.RLock()
	ptr := f.chains[name]
	f.mu.RUnlock()

	if ptr == nil {
		capitan.Emit(context.Background(), ChainRetrieved,
			KeyName.Field(name),
			KeyFound.Field(false))
		return nil, false
	}

	capitan.Emit(context.Background(), ChainRetrieved,
		KeyName.Field(name),
		KeyFound.Field(true))
	return *ptr.Load(), true
}

// GetSchema returns a schema by name.
// Returns the schema and true if found, or an empty schema and false if not found.
func (f *Factory[T]) GetSchema(name string) (Schema, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if schema, exists := f.schemas[name]; exists {
		return *schema, true
	}
	return Schema{}, false
}

// RemoveSchema removes a named schema, its chain, and its bindings'
// registration. Returns true if the schema was removed, false if it
// didn't exist.
func (f *Factory[T]) RemoveSchema(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.schemas[name]; !exists {
		return false
	}

	delete(f.schemas, name)
	delete(f.chains, name)
	delete(f.bindings, name)

	capitan.Emit(context.Background(), SchemaRemoved,
		KeyName.Field(name))
	return true
}

// ListSchemas returns a list of all registered schema names.
func (f *Factory[T]) ListSchemas() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]string, 0, len(f.schemas))
	for name := range f.schemas {
		names = append(names, name)
	}
	return names
}

// HasProcessor checks if a processor is registered.
func (f *Factory[T]) HasProcessor(name pipz.Name) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, exists := f.processors[name]
	return exists
}

// HasPredicate checks if a predicate is registered.
func (f *Factory[T]) HasPredicate(name string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, exists := f.predicates[name]
	return exists
}

// HasOrdering checks if an ordering is registered.
func (f *Factory[T]) HasOrdering(name string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, exists := f.orderings[name]
	return exists
}

// HasFallback checks if a fallback is registered.
func (f *Factory[T]) HasFallback(name string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, exists := f.fallbacks[name]
	return exists
}

// HasStage checks if an opaque stage is registered.
func (f *Factory[T]) HasStage(name string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, exists := f.stages[name]
	return exists
}

// ListProcessors returns a slice of all registered processor names.
func (f *Factory[T]) ListProcessors() []pipz.Name {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]pipz.Name, 0, len(f.processors))
	for name := range f.processors {
		names = append(names, name)
	}
	return names
}

// ListPredicates returns a slice of all registered predicate names.
func (f *Factory[T]) ListPredicates() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]string, 0, len(f.predicates))
	for name := range f.predicates {
		names = append(names, name)
	}
	return names
}

// ListOrderings returns a slice of all registered ordering names.
func (f *Factory[T]) ListOrderings() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]string, 0, len(f.orderings))
	for name := range f.orderings {
		names = append(names, name)
	}
	return names
}

// ListFallbacks returns a slice of all registered fallback names.
func (f *Factory[T]) ListFallbacks() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]string, 0, len(f.fallbacks))
	for name := range f.fallbacks {
		names = append(names, name)
	}
	return names
}

// ListStages returns a slice of all registered opaque stage names.
func (f *Factory[T]) ListStages() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]string, 0, len(f.stages))
	for name := range f.stages {
		names = append(names, name)
	}
	return names
}

// Remove removes one or more processors from the factory.
// Returns the number of processors actually removed.
func (f *Factory[T]) Remove(names ...pipz.Name) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	removed := 0
	for _, name := range names {
		if _, exists := f.processors[name]; exists {
			delete(f.processors, name)
			removed++

			capitan.Emit(context.Background(), ProcessorRemoved,
				KeyName.Field(string(name)))
		}
	}
	return removed
}

// RemovePredicate removes one or more predicates from the factory.
// Returns the number of predicates actually removed.
func (f *Factory[T]) RemovePredicate(names ...string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	removed := 0
	for _, name := range names {
		if _, exists := f.predicates[name]; exists {
			delete(f.predicates, name)
			removed++

			capitan.Emit(context.Background(), PredicateRemoved,
				KeyName.Field(name))
		}
	}
	return removed
}

// RemoveOrdering removes one or more orderings from the factory.
// Returns the number of orderings actually removed.
func (f *Factory[T]) RemoveOrdering(names ...string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	removed := 0
	for _, name := range names {
		if _, exists := f.orderings[name]; exists {
			delete(f.orderings, name)
			removed++

			capitan.Emit(context.Background(), OrderingRemoved,
				KeyName.Field(name))
		}
	}
	return removed
}

// RemoveFallback removes one or more fallbacks from the factory.
// Returns the number of fallbacks actually removed.
func (f *Factory[T]) RemoveFallback(names ...string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	removed := 0
	for _, name := range names {
		if _, exists := f.fallbacks[name]; exists {
			delete(f.fallbacks, name)
			removed++

			capitan.Emit(context.Background(), FallbackRemoved,
				KeyName.Field(name))
		}
	}
	return removed
}

// RemoveStage removes one or more opaque stages from the factory.
// Returns the number of stages actually removed.
func (f *Factory[T]) RemoveStage(names ...string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	removed := 0
	for _, name := range names {
		if _, exists := f.stages[name]; exists {
			delete(f.stages, name)
			removed++

			capitan.Emit(context.Background(), StageRemoved,
				KeyName.Field(name))
		}
	}
	return removed
}
