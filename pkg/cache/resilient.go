package cache

import (
	"context"

	"github.com/akashdube/PartsUL/pkg/resilience"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ResilientCache decorates a Cache with a bounded retry policy.
// Failures that are not transient, or that outlast the policy, are returned
// as ErrCacheUnavailable; they are never reported as a miss.
type ResilientCache struct {
	inner  Cache
	policy resilience.RetryPolicy
	logger zerolog.Logger
}

var _ Cache = (*ResilientCache)(nil)

// NewResilientCache wraps inner with policy.
func NewResilientCache(inner Cache, policy resilience.RetryPolicy, logger zerolog.Logger) (*ResilientCache, error) {
	if inner == nil {
		return nil, errors.New("inner cache cannot be nil")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	detect := policy.IsTransient
	policy.IsTransient = func(err error) bool {
		if errors.Is(err, ErrCorruptEntry) {
			return false
		}
		return detect == nil || detect(err)
	}
	return &ResilientCache{
		inner:  inner,
		policy: policy,
		logger: logger.With().Str("component", "ResilientCache").Logger(),
	}, nil
}

// Set stores value, retrying transient failures.
func (c *ResilientCache) Set(ctx context.Context, key string, value []byte, policy EntryPolicy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	return c.run(ctx, "set", key, func(ctx context.Context) error {
		return c.inner.Set(ctx, key, value, policy)
	})
}

// TryGet reads key, retrying transient failures. A miss is returned as Absent.
func (c *ResilientCache) TryGet(ctx context.Context, key string) (Result[[]byte], error) {
	var result Result[[]byte]
	err := c.run(ctx, "get", key, func(ctx context.Context) error {
		var err error
		result, err = c.inner.TryGet(ctx, key)
		return err
	})
	if err != nil {
		return Absent[[]byte](), err
	}
	return result, nil
}

// Remove evicts key, retrying transient failures.
func (c *ResilientCache) Remove(ctx context.Context, key string) error {
	return c.run(ctx, "remove", key, func(ctx context.Context) error {
		return c.inner.Remove(ctx, key)
	})
}

// Close closes the wrapped cache.
func (c *ResilientCache) Close() error {
	return c.inner.Close()
}

func (c *ResilientCache) run(ctx context.Context, op, key string, fn func(ctx context.Context) error) error {
	attempt := 0
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err != nil && !errors.Is(err, ErrCorruptEntry) {
			c.logger.Debug().Err(err).Str("op", op).Str("key", key).Int("attempt", attempt).Msg("Cache backend call failed.")
		}
		return err
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrCorruptEntry) {
		return err
	}
	c.logger.Warn().Err(err).Str("op", op).Str("key", key).Int("attempts", attempt).Msg("Cache unavailable.")
	return unavailable(err, op, key)
}
