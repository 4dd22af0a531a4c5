package sluice

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/zoobzio/capitan"
)

// Binding represents a live stage chain bound to a schema in the factory
// registry. It provides lock-free access to the built chain and optional
// auto-sync when the source schema changes.
//
// Bindings are created via Factory.Bind(). When auto-sync is enabled, the
// binding automatically picks up the rebuilt chain when its source schema
// is updated via Factory.SetSchema().
//
// Example:
//
//	factory.SetSchema("orders", schema)
//
//	binding, err := factory.Bind("order-chain", "orders", sluice.WithAutoSync[Order]())
//
//	// Attach the current chain to a source (lock-free)
//	out, err := binding.Apply(sluice.FromSlice(orders...)).Run(ctx)
//
//	// Update schema - all auto-sync bindings pick up the rebuild
//	factory.SetSchema("orders", newSchema)
type Binding[T any] struct {
	current  atomic.Pointer[StageFunc[T]]
	factory  *Factory[T]
	name     string
	schemaID string
	autoSync bool
}

// BindingOption configures a Binding.
type BindingOption[T any] func(*Binding[T])

// WithAutoSync enables automatic chain replacement when the source schema
// changes. When enabled, calls to Factory.SetSchema() update this binding.
func WithAutoSync[T any]() BindingOption[T] {
	return func(b *Binding[T]) {
		b.autoSync = true
	}
}

// Bind creates a binding to a registered schema's built chain.
func (f *Factory[T]) Bind(name, schemaID string, opts ...BindingOption[T]) (*Binding[T], error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ptr, exists := f.chains[schemaID]
	if !exists {
		return nil, fmt.Errorf("schema '%s' not found", schemaID)
	}

	b := &Binding[T]{
		factory:  f,
		name:     name,
		schemaID: schemaID,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.current.Store(ptr.Load())
	f.bindings[schemaID] = append(f.bindings[schemaID], b)

	capitan.Emit(context.Background(), BindingCreated,
		KeyName.Field(name),
		KeySchema.Field(schemaID))

	return b, nil
}

// Apply attaches the binding's current chain to a pipeline. This is a
// lock-free operation using atomic pointer access.
func (b *Binding[T]) Apply(p Pipeline[T]) Pipeline[T] {
	return (*b.current.Load())(p)
}

// Process runs an in-memory sequence through the current chain and
// materializes the result.
func (b *Binding[T]) Process(ctx context.Context, items ...T) ([]T, error) {
	return b.Apply(FromSlice(items...)).Run(ctx)
}

// store swaps in a rebuilt chain. Called by Factory.SetSchema() for
// auto-sync bindings.
func (b *Binding[T]) store(chain StageFunc[T]) {
	b.current.Store(&chain)
}

// Name returns the binding's name.
func (b *Binding[T]) Name() string {
	return b.name
}

// SchemaID returns the ID of the schema this binding is bound to.
func (b *Binding[T]) SchemaID() string {
	return b.schemaID
}

// AutoSync returns whether this binding follows schema changes.
func (b *Binding[T]) AutoSync() bool {
	return b.autoSync
}

// Chain returns the binding's current chain for advanced use cases.
// Most users should use Apply or Process instead.
func (b *Binding[T]) Chain() StageFunc[T] {
	return *b.current.Load()
}
