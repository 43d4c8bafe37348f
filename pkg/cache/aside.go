package cache

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// Loader computes the authoritative value on a miss. found=false means the
// source has no value; such results are never cached.
type Loader[V any] func(ctx context.Context) (value V, found bool, err error)

// Aside implements the cache-aside read path for values of type V.
// Concurrent misses on the same key are not coalesced: each caller loads and
// writes back independently.
type Aside[V any] struct {
	typed  *Typed[V]
	logger zerolog.Logger
}

// NewAside creates a cache-aside reader over c. A nil codec selects JSONCodec.
func NewAside[V any](c Cache, codec Codec, logger zerolog.Logger) *Aside[V] {
	return &Aside[V]{
		typed:  NewTyped[V](c, codec),
		logger: logger.With().Str("component", "CacheAside").Logger(),
	}
}

// GetOrLoad returns the cached value for key, or loads, stores and returns it.
// A cache outage degrades to a direct load; only loader errors are returned.
func (a *Aside[V]) GetOrLoad(ctx context.Context, key string, policy EntryPolicy, load Loader[V]) (V, bool, error) {
	var zero V

	cached, err := a.typed.TryGet(ctx, key)
	switch {
	case err == nil:
		if value, ok := cached.Value(); ok {
			a.logger.Debug().Str("key", key).Msg("Cache hit.")
			return value, true, nil
		}
		a.logger.Debug().Str("key", key).Msg("Cache miss. Falling back to source.")
	case errors.Is(err, ErrCorruptEntry):
		a.logger.Warn().Err(err).Str("key", key).Msg("Discarding undecodable cache entry.")
		if rmErr := a.typed.Remove(ctx, key); rmErr != nil {
			a.logger.Warn().Err(rmErr).Str("key", key).Msg("Failed to remove undecodable cache entry.")
		}
	default:
		a.logger.Warn().Err(err).Str("key", key).Msg("Cache lookup failed. Falling back to source.")
	}

	value, found, err := load(ctx)
	if err != nil {
		return zero, false, err
	}
	if !found {
		return zero, false, nil
	}

	if err := a.typed.Set(ctx, key, value, policy); err != nil {
		a.logger.Warn().Err(err).Str("key", key).Msg("Failed to write back to cache.")
	}
	return value, true, nil
}

// Invalidate evicts key.
func (a *Aside[V]) Invalidate(ctx context.Context, key string) error {
	return a.typed.Remove(ctx, key)
}
