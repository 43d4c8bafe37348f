package catalog_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akashdube/PartsUL/pkg/cache"
	"github.com/akashdube/PartsUL/pkg/catalog"
	"github.com/akashdube/PartsUL/pkg/resilience"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// countingStore wraps the in-memory store to count reads and inject failures.
type countingStore struct {
	*catalog.InMemoryStore
	findCalls     atomic.Int32
	categoryCalls atomic.Int32
	listingCalls  atomic.Int32
	failWith      error
}

func (s *countingStore) FindByID(ctx context.Context, id int) (*catalog.Product, error) {
	s.findCalls.Add(1)
	if s.failWith != nil {
		return nil, s.failWith
	}
	return s.InMemoryStore.FindByID(ctx, id)
}

func (s *countingStore) FindCategory(ctx context.Context, id int) (*catalog.Category, error) {
	s.categoryCalls.Add(1)
	return s.InMemoryStore.FindCategory(ctx, id)
}

func (s *countingStore) TopByCreated(ctx context.Context, n int) ([]catalog.Product, error) {
	s.listingCalls.Add(1)
	if s.failWith != nil {
		return nil, s.failWith
	}
	return s.InMemoryStore.TopByCreated(ctx, n)
}

func (s *countingStore) TopByOrderCount(ctx context.Context, n int) ([]catalog.Product, error) {
	s.listingCalls.Add(1)
	if s.failWith != nil {
		return nil, s.failWith
	}
	return s.InMemoryStore.TopByOrderCount(ctx, n)
}

func (s *countingStore) Insert(ctx context.Context, p *catalog.Product) error {
	if s.failWith != nil {
		return s.failWith
	}
	return s.InMemoryStore.Insert(ctx, p)
}

func (s *countingStore) Update(ctx context.Context, p *catalog.Product) error {
	if s.failWith != nil {
		return s.failWith
	}
	return s.InMemoryStore.Update(ctx, p)
}

func (s *countingStore) Delete(ctx context.Context, id int) (catalog.DeleteResult, error) {
	if s.failWith != nil {
		return catalog.DeleteResult{}, s.failWith
	}
	return s.InMemoryStore.Delete(ctx, id)
}

// downCache fails every call as if the backend were unreachable.
type downCache struct{ calls atomic.Int32 }

func (d *downCache) fail() error {
	d.calls.Add(1)
	return errors.Mark(errors.New("redis: connection refused"), cache.ErrCacheUnavailable)
}

func (d *downCache) Set(context.Context, string, []byte, cache.EntryPolicy) error { return d.fail() }
func (d *downCache) TryGet(context.Context, string) (cache.Result[[]byte], error) {
	return cache.Absent[[]byte](), d.fail()
}
func (d *downCache) Remove(context.Context, string) error { return d.fail() }
func (d *downCache) Close() error                         { return nil }

// recordingAnnouncer captures announcements; it can be told to fail.
type recordingAnnouncer struct {
	mu       sync.Mutex
	received []catalog.Announcement
	err      error
}

func (r *recordingAnnouncer) Announce(_ context.Context, a catalog.Announcement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = append(r.received, a)
	return r.err
}

func (r *recordingAnnouncer) all() []catalog.Announcement {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]catalog.Announcement(nil), r.received...)
}

func newMemoryCache(t *testing.T) *cache.InMemoryCache {
	t.Helper()
	c, err := cache.NewInMemoryCache(cache.InMemoryConfig{})
	require.NoError(t, err)
	return c
}

// newResilientMemoryCache builds the production shape: a retrying decorator over a backend.
func newResilientMemoryCache(t *testing.T) (*cache.ResilientCache, *cache.InMemoryCache) {
	t.Helper()
	backend := newMemoryCache(t)
	c, err := cache.NewResilientCache(backend, resilience.RetryPolicy{
		MaxAttempts: 3,
		Interval:    time.Millisecond,
	}, zerolog.Nop())
	require.NoError(t, err)
	return c, backend
}

func newSeededStore() *countingStore {
	store := catalog.NewInMemoryStore()
	store.AddCategory(catalog.Category{CategoryID: 1, Name: "Lighting"})
	store.AddCategory(catalog.Category{CategoryID: 2, Name: "Wheels & Tires"})
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for id := 1; id <= 7; id++ {
		store.Seed(catalog.Product{
			ProductID:  id,
			CategoryID: 1 + id%2,
			Title:      "Part " + string(rune('A'+id-1)),
			Price:      float64(10 * id),
			Created:    base.Add(time.Duration(id) * time.Hour),
		})
	}
	store.Seed(catalog.Product{ProductID: 7, CategoryID: 2, Title: "Alpha", Price: 70, Created: base.Add(7 * time.Hour)})
	return &countingStore{InMemoryStore: store}
}
