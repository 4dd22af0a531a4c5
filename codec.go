package sluice

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrSnapshotType reports that a snapshot was taken over a different
// element type than the one it is being restored into.
var ErrSnapshotType = errors.New("snapshot element type mismatch")

var typeNameCache sync.Map // map[reflect.Type]string

// typeSignature identifies the element type inside snapshot envelopes.
// Reflection runs only on first use per type.
func typeSignature[A any]() string {
	t := reflect.TypeOf((*A)(nil)).Elem()
	if name, ok := typeNameCache.Load(t); ok {
		return name.(string)
	}
	name := t.String()
	typeNameCache.Store(t, name)
	return name
}

type snapshotEnvelope struct {
	Type  string             `msgpack:"type"`
	Items msgpack.RawMessage `msgpack:"items"`
}

// Snapshot materializes the pipeline and encodes the container into a
// msgpack envelope tagged with the element type. The envelope is a
// transport format for memoized containers, not a stable persistence
// format.
func (p Pipeline[A]) Snapshot(ctx context.Context) ([]byte, error) {
	vals, err := p.Run(ctx)
	if err != nil {
		return nil, err
	}
	items, err := msgpack.Marshal(vals)
	if err != nil {
		return nil, fmt.Errorf("encode failed: %w", err)
	}
	data, err := msgpack.Marshal(snapshotEnvelope{
		Type:  typeSignature[A](),
		Items: items,
	})
	if err != nil {
		return nil, fmt.Errorf("encode failed: %w", err)
	}
	return data, nil
}

// FromSnapshot restores a snapshot into a memoized pipeline under the
// given strategy. The snapshot's element type must match A.
func FromSnapshot[A any](data []byte, strat Strategy) (Pipeline[A], error) {
	var env snapshotEnvelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return Pipeline[A]{}, fmt.Errorf("decode failed: %w", err)
	}
	if sig := typeSignature[A](); env.Type != sig {
		return Pipeline[A]{}, fmt.Errorf("%w: snapshot holds %s, want %s", ErrSnapshotType, env.Type, sig)
	}
	var vals []A
	if err := msgpack.Unmarshal(env.Items, &vals); err != nil {
		return Pipeline[A]{}, fmt.Errorf("decode failed: %w", err)
	}
	items := make([]item, len(vals))
	for i, v := range vals {
		items[i] = item{v: v}
	}
	return Pipeline[A]{n: &memoNode{items: items}, strat: strat}, nil
}
