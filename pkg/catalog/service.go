package catalog

import (
	"context"
	"time"

	"github.com/akashdube/PartsUL/pkg/cache"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Config holds the entry policies per key family.
type Config struct {
	// DetailPolicy applies to product_{id} entries.
	DetailPolicy cache.EntryPolicy
	// ListingPolicy applies to the top-selling, new-arrivals and announcement entries.
	ListingPolicy cache.EntryPolicy
	// ListingSize is the number of products in each listing.
	ListingSize int
}

// DefaultConfig returns a sliding 10 minute window for details and a fixed
// 10 minute, high priority lifetime for listings of 4 products.
func DefaultConfig() Config {
	return Config{
		DetailPolicy:  cache.Sliding(10 * time.Minute),
		ListingPolicy: cache.Absolute(10 * time.Minute).WithPriority(cache.PriorityHigh),
		ListingSize:   4,
	}
}

// Validate checks the policies and listing size.
func (c Config) Validate() error {
	if err := c.DetailPolicy.Validate(); err != nil {
		return errors.Wrap(err, "detail policy")
	}
	if err := c.ListingPolicy.Validate(); err != nil {
		return errors.Wrap(err, "listing policy")
	}
	if c.ListingSize <= 0 {
		return errors.Newf("listing size must be greater than 0, got %d", c.ListingSize)
	}
	return nil
}

// Service serves product reads through the cache.
// Categories are not cached: they are fetched from the store on every detail read.
type Service struct {
	cfg      Config
	store    Store
	details  *cache.Aside[Product]
	listings *cache.Aside[[]Product]
	logger   zerolog.Logger
}

// NewService creates the read service. c should be the resilient cache so that
// outages surface as cache.ErrCacheUnavailable.
func NewService(cfg Config, c cache.Cache, codec cache.Codec, store Store, logger zerolog.Logger) (*Service, error) {
	if c == nil || store == nil {
		return nil, errors.New("cache and store cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Service{
		cfg:      cfg,
		store:    store,
		details:  cache.NewAside[Product](c, codec, logger),
		listings: cache.NewAside[[]Product](c, codec, logger),
		logger:   logger.With().Str("component", "CatalogService").Logger(),
	}, nil
}

// ProductDetails returns the product with its category, or ErrProductNotFound.
func (s *Service) ProductDetails(ctx context.Context, id int) (*Product, error) {
	key := ProductKey(id)
	product, found, err := s.details.GetOrLoad(ctx, key, s.cfg.DetailPolicy, func(ctx context.Context) (Product, bool, error) {
		p, err := s.store.FindByID(ctx, id)
		if err != nil {
			return Product{}, false, dataStoreError(err, "find product %d", id)
		}
		if p == nil {
			return Product{}, false, nil
		}
		return p.withoutCategory(), true, nil
	})
	if err != nil {
		s.logger.Error().Err(err).Int("product_id", id).Msg("Failed to load product.")
		return nil, err
	}
	if !found {
		// Make sure nothing stale survives under the key of a missing product.
		if err := s.details.Invalidate(ctx, key); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("Failed to clear key of missing product.")
		}
		return nil, errors.Wrapf(ErrProductNotFound, "product %d", id)
	}

	category, err := s.store.FindCategory(ctx, product.CategoryID)
	if err != nil {
		return nil, dataStoreError(err, "find category %d", product.CategoryID)
	}
	product.Category = category
	return &product, nil
}

// TopSelling returns the most ordered products.
func (s *Service) TopSelling(ctx context.Context) ([]Product, error) {
	return s.listing(ctx, TopSellingKey, s.store.TopByOrderCount)
}

// NewArrivals returns the most recently created products.
func (s *Service) NewArrivals(ctx context.Context) ([]Product, error) {
	return s.listing(ctx, NewArrivalsKey, s.store.TopByCreated)
}

// Home loads both home page listings concurrently.
func (s *Service) Home(ctx context.Context) (HomeView, error) {
	var view HomeView
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		view.TopSelling, err = s.TopSelling(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		view.NewArrivals, err = s.NewArrivals(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return HomeView{}, err
	}
	return view, nil
}

// AnnouncementProduct returns the newest product, or nil when the catalog is empty.
func (s *Service) AnnouncementProduct(ctx context.Context) (*Product, error) {
	latest, found, err := s.listings.GetOrLoad(ctx, AnnouncementProductKey, s.cfg.ListingPolicy, func(ctx context.Context) ([]Product, bool, error) {
		products, err := s.store.TopByCreated(ctx, 1)
		if err != nil {
			return nil, false, dataStoreError(err, "find newest product")
		}
		return products, len(products) > 0, nil
	})
	if err != nil {
		return nil, err
	}
	if !found || len(latest) == 0 {
		return nil, nil
	}
	return &latest[0], nil
}

func (s *Service) listing(ctx context.Context, key string, query func(ctx context.Context, n int) ([]Product, error)) ([]Product, error) {
	products, _, err := s.listings.GetOrLoad(ctx, key, s.cfg.ListingPolicy, func(ctx context.Context) ([]Product, bool, error) {
		products, err := query(ctx, s.cfg.ListingSize)
		if err != nil {
			return nil, false, dataStoreError(err, "query %s", key)
		}
		return products, len(products) > 0, nil
	})
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to load listing.")
		return nil, err
	}
	if products == nil {
		products = []Product{}
	}
	return products, nil
}
