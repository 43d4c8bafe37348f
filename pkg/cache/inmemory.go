package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// InMemoryConfig holds the configuration for the in-process backend.
type InMemoryConfig struct {
	// MaxEntries bounds the number of entries. Zero means unbounded.
	MaxEntries int
}

// memoryEntry is the internal structure stored in the linked list.
type memoryEntry struct {
	key       string
	data      []byte
	policy    EntryPolicy
	expiresAt time.Time
}

// InMemoryCache is a thread-safe, in-process implementation of Cache.
// Expired entries are dropped lazily on access. When MaxEntries is reached,
// expired entries go first, then the least recently used entry among those
// with the lowest priority.
type InMemoryCache struct {
	maxEntries int
	now        func() time.Time

	mu      sync.Mutex
	ll      *list.List // front is most recently used
	entries map[string]*list.Element
}

var _ Cache = (*InMemoryCache)(nil)

// NewInMemoryCache creates a new in-memory cache.
func NewInMemoryCache(cfg InMemoryConfig) (*InMemoryCache, error) {
	if cfg.MaxEntries < 0 {
		return nil, errors.Newf("maxEntries cannot be negative, got %d", cfg.MaxEntries)
	}
	return &InMemoryCache{
		maxEntries: cfg.MaxEntries,
		now:        time.Now,
		ll:         list.New(),
		entries:    make(map[string]*list.Element),
	}, nil
}

// Set stores a copy of value under key.
func (c *InMemoryCache) Set(_ context.Context, key string, value []byte, policy EntryPolicy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	data := append([]byte(nil), value...)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*memoryEntry)
		entry.data = data
		entry.policy = policy
		entry.expiresAt = policy.deadline(now)
		c.ll.MoveToFront(elem)
		return nil
	}

	if c.maxEntries > 0 && c.ll.Len() >= c.maxEntries {
		c.evict(now)
	}
	entry := &memoryEntry{key: key, data: data, policy: policy, expiresAt: policy.deadline(now)}
	c.entries[key] = c.ll.PushFront(entry)
	return nil
}

// TryGet returns a copy of the stored value. Sliding entries are renewed.
func (c *InMemoryCache) TryGet(_ context.Context, key string) (Result[[]byte], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return Absent[[]byte](), nil
	}
	entry := elem.Value.(*memoryEntry)
	now := c.now()
	if !now.Before(entry.expiresAt) {
		c.removeElement(elem)
		return Absent[[]byte](), nil
	}
	if entry.policy.IsSliding() {
		entry.expiresAt = entry.policy.deadline(now)
	}
	c.ll.MoveToFront(elem)
	return Present(append([]byte(nil), entry.data...)), nil
}

// Remove evicts key if present.
func (c *InMemoryCache) Remove(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		c.removeElement(elem)
	}
	return nil
}

// Len returns the number of stored entries, expired or not.
func (c *InMemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Close is a no-op for the in-memory cache but satisfies the Cache interface.
func (c *InMemoryCache) Close() error {
	return nil
}

// evict frees one slot. This method is unexported and must be called within a locked mutex.
func (c *InMemoryCache) evict(now time.Time) {
	expired := false
	for elem := c.ll.Back(); elem != nil; {
		prev := elem.Prev()
		if !now.Before(elem.Value.(*memoryEntry).expiresAt) {
			c.removeElement(elem)
			expired = true
		}
		elem = prev
	}
	if expired {
		return
	}

	// Walk from least to most recently used, keeping the first entry of the lowest priority.
	var victim *list.Element
	for elem := c.ll.Back(); elem != nil; elem = elem.Prev() {
		if victim == nil || elem.Value.(*memoryEntry).policy.Priority < victim.Value.(*memoryEntry).policy.Priority {
			victim = elem
		}
	}
	if victim != nil {
		c.removeElement(victim)
	}
}

func (c *InMemoryCache) removeElement(elem *list.Element) {
	entry := c.ll.Remove(elem).(*memoryEntry)
	delete(c.entries, entry.key)
}
