package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/akashdube/PartsUL/pkg/cache"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// DefaultAnnounceTimeout bounds a single announcement publish.
const DefaultAnnounceTimeout = 10 * time.Second

// Admin performs catalog writes. Every successful write evicts the cache
// entries it made stale; a failed write evicts nothing.
type Admin struct {
	store           Store
	invalidator     *Invalidator
	announcer       Announcer
	announceTimeout time.Duration
	logger          zerolog.Logger

	announcements sync.WaitGroup
}

// NewAdmin creates the admin write path. A nil announcer disables announcements.
func NewAdmin(store Store, c cache.Cache, announcer Announcer, logger zerolog.Logger) (*Admin, error) {
	if store == nil || c == nil {
		return nil, errors.New("store and cache cannot be nil")
	}
	if announcer == nil {
		announcer = NopAnnouncer{}
	}
	return &Admin{
		store:           store,
		invalidator:     NewInvalidator(c, logger),
		announcer:       announcer,
		announceTimeout: DefaultAnnounceTimeout,
		logger:          logger.With().Str("component", "CatalogAdmin").Logger(),
	}, nil
}

// CreateProduct inserts p, evicts the listings a new row can join and
// announces the product in the background.
func (a *Admin) CreateProduct(ctx context.Context, p *Product) error {
	if p == nil {
		return errors.New("product cannot be nil")
	}
	if err := a.store.Insert(ctx, p); err != nil {
		a.logger.Error().Err(err).Str("title", p.Title).Msg("Failed to create product.")
		return dataStoreError(err, "insert product")
	}

	a.invalidator.Evict(ctx, "create", listingKeys...)
	a.announce(ctx, NewAnnouncement(p))
	return nil
}

// UpdateProduct replaces p and evicts its detail entry and the listings that may show it.
func (a *Admin) UpdateProduct(ctx context.Context, p *Product) error {
	if p == nil {
		return errors.New("product cannot be nil")
	}
	if err := a.store.Update(ctx, p); err != nil {
		a.logger.Error().Err(err).Int("product_id", p.ProductID).Msg("Failed to update product.")
		return dataStoreError(err, "update product %d", p.ProductID)
	}

	a.invalidator.Evict(ctx, "update", append([]string{ProductKey(p.ProductID)}, listingKeys...)...)
	return nil
}

// DeleteProduct removes the product and its dependent rows, then evicts its
// detail entry and the listings. Dependent rows are not cached and need no eviction.
func (a *Admin) DeleteProduct(ctx context.Context, id int) (DeleteResult, error) {
	result, err := a.store.Delete(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrProductNotFound) {
			a.logger.Error().Err(err).Int("product_id", id).Msg("Failed to delete product.")
		}
		return DeleteResult{}, dataStoreError(err, "delete product %d", id)
	}

	a.invalidator.Evict(ctx, "delete", append([]string{ProductKey(id)}, listingKeys...)...)
	a.logger.Info().
		Int("product_id", id).
		Int("cart_items", result.CartItems).
		Int("order_details", result.OrderDetails).
		Int("rain_checks", result.RainChecks).
		Msg("Product deleted.")
	return result, nil
}

// Wait blocks until in-flight announcements finish.
func (a *Admin) Wait() {
	a.announcements.Wait()
}

// announce publishes off the request path. Its failures are logged and never
// reach the caller of the write.
func (a *Admin) announce(ctx context.Context, ann Announcement) {
	a.announcements.Add(1)
	go func() {
		defer a.announcements.Done()
		defer func() {
			if r := recover(); r != nil {
				a.logger.Error().Interface("panic", r).Str("announcement_id", ann.ID).Msg("Announcer panicked.")
			}
		}()

		announceCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.announceTimeout)
		defer cancel()
		if err := a.announcer.Announce(announceCtx, ann); err != nil {
			a.logger.Warn().Err(err).Str("announcement_id", ann.ID).Msg("Failed to announce product.")
		}
	}()
}
