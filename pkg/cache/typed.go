package cache

import (
	"context"

	"github.com/cockroachdb/errors"
)

// Typed is a typed view over a Cache. Values are encoded with a Codec before
// they reach the backend, so one backend can hold entries of different types.
type Typed[V any] struct {
	cache Cache
	codec Codec
}

// NewTyped creates a typed view. A nil codec selects JSONCodec.
func NewTyped[V any](c Cache, codec Codec) *Typed[V] {
	if codec == nil {
		codec = JSONCodec{}
	}
	return &Typed[V]{cache: c, codec: codec}
}

// Set encodes value and stores it under key.
func (t *Typed[V]) Set(ctx context.Context, key string, value V, policy EntryPolicy) error {
	data, err := t.codec.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal value for key %q", key)
	}
	return t.cache.Set(ctx, key, data, policy)
}

// TryGet fetches and decodes the entry at key. A payload that cannot be decoded
// yields ErrCorruptEntry.
func (t *Typed[V]) TryGet(ctx context.Context, key string) (Result[V], error) {
	raw, err := t.cache.TryGet(ctx, key)
	if err != nil {
		return Absent[V](), err
	}
	data, ok := raw.Value()
	if !ok {
		return Absent[V](), nil
	}
	var value V
	if err := t.codec.Unmarshal(data, &value); err != nil {
		return Absent[V](), errors.Mark(errors.Wrapf(err, "key %q (%s)", key, t.codec.Name()), ErrCorruptEntry)
	}
	return Present(value), nil
}

// Remove evicts key.
func (t *Typed[V]) Remove(ctx context.Context, key string) error {
	return t.cache.Remove(ctx, key)
}
