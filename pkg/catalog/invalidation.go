package catalog

import (
	"context"

	"github.com/akashdube/PartsUL/pkg/cache"
	"github.com/rs/zerolog"
)

// Invalidator evicts cache entries after a committed write. Failures are
// logged and counted, never returned: a stale entry lives at most until its
// expiration.
type Invalidator struct {
	cache  cache.Cache
	logger zerolog.Logger
}

// NewInvalidator creates an invalidator over c.
func NewInvalidator(c cache.Cache, logger zerolog.Logger) *Invalidator {
	return &Invalidator{
		cache:  c,
		logger: logger.With().Str("component", "Invalidator").Logger(),
	}
}

// Evict removes keys in order and returns how many could not be removed.
// The write has already been committed, so the caller's cancellation does not
// stop the evictions.
func (i *Invalidator) Evict(ctx context.Context, reason string, keys ...string) int {
	ctx = context.WithoutCancel(ctx)
	failed := 0
	for _, key := range keys {
		if err := i.cache.Remove(ctx, key); err != nil {
			failed++
			i.logger.Warn().Err(err).Str("key", key).Str("reason", reason).Msg("Cache invalidation failed; entry will expire on its own.")
			continue
		}
		i.logger.Debug().Str("key", key).Str("reason", reason).Msg("Cache entry invalidated.")
	}
	return failed
}
