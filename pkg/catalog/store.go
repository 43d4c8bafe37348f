package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

var (
	// ErrProductNotFound is returned when no product has the requested id.
	ErrProductNotFound = errors.New("product not found")

	// ErrDataStore marks failures of the authoritative store. They are fatal
	// to the request and suppress cache invalidation.
	ErrDataStore = errors.New("data store failure")
)

// Store is the authoritative source of catalog data.
type Store interface {
	// FindByID returns nil and no error when the product does not exist.
	FindByID(ctx context.Context, id int) (*Product, error)
	// FindCategory returns nil and no error when the category does not exist.
	FindCategory(ctx context.Context, id int) (*Category, error)
	// TopByOrderCount returns up to n products ordered by number of order lines.
	TopByOrderCount(ctx context.Context, n int) ([]Product, error)
	// TopByCreated returns up to n products, newest first.
	TopByCreated(ctx context.Context, n int) ([]Product, error)
	// Insert assigns the product id, and the created time when unset.
	Insert(ctx context.Context, p *Product) error
	// Update replaces a product. It returns ErrProductNotFound for unknown ids.
	Update(ctx context.Context, p *Product) error
	// Delete removes a product together with the cart items, order details and
	// rain checks referencing it. It returns ErrProductNotFound for unknown ids.
	Delete(ctx context.Context, id int) (DeleteResult, error)
}

// dataStoreError marks err as a store failure unless it is a plain not-found.
func dataStoreError(err error, format string, args ...any) error {
	if errors.Is(err, ErrProductNotFound) {
		return err
	}
	return errors.Mark(errors.Wrapf(err, format, args...), ErrDataStore)
}

// CartItem references a product in a shopping cart.
type CartItem struct {
	CartID    string
	ProductID int
	Count     int
}

// OrderDetail is one line of a placed order.
type OrderDetail struct {
	OrderID   int
	ProductID int
	Quantity  int
	UnitPrice float64
}

// RainCheck is a promise to sell an out-of-stock product later.
type RainCheck struct {
	StoreID   int
	ProductID int
	Quantity  int
	SalePrice float64
}

// InMemoryStore is a thread-safe, in-memory Store.
// It is primarily intended for local development and testing.
type InMemoryStore struct {
	mu           sync.RWMutex
	nextID       int
	products     map[int]Product
	categories   map[int]Category
	cartItems    []CartItem
	orderDetails []OrderDetail
	rainChecks   []RainCheck
	now          func() time.Time
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		nextID:     1,
		products:   make(map[int]Product),
		categories: make(map[int]Category),
		now:        time.Now,
	}
}

// Seed stores products with their ids as given.
func (s *InMemoryStore) Seed(products ...Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range products {
		if p.Created.IsZero() {
			p.Created = s.now().UTC()
		}
		s.products[p.ProductID] = p.withoutCategory()
		if p.ProductID >= s.nextID {
			s.nextID = p.ProductID + 1
		}
	}
}

// AddCategory stores or replaces a category.
func (s *InMemoryStore) AddCategory(c Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[c.CategoryID] = c
}

// AddCartItem records a cart line.
func (s *InMemoryStore) AddCartItem(item CartItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cartItems = append(s.cartItems, item)
}

// AddOrderDetail records an order line.
func (s *InMemoryStore) AddOrderDetail(d OrderDetail) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orderDetails = append(s.orderDetails, d)
}

// AddRainCheck records a rain check.
func (s *InMemoryStore) AddRainCheck(r RainCheck) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rainChecks = append(s.rainChecks, r)
}

// FindByID implements Store.
func (s *InMemoryStore) FindByID(_ context.Context, id int) (*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// FindCategory implements Store.
func (s *InMemoryStore) FindCategory(_ context.Context, id int) (*Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// TopByOrderCount implements Store. Ties are broken by ascending id.
func (s *InMemoryStore) TopByOrderCount(_ context.Context, n int) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[int]int)
	for _, d := range s.orderDetails {
		counts[d.ProductID]++
	}
	all := s.snapshot()
	sort.SliceStable(all, func(i, j int) bool {
		ci, cj := counts[all[i].ProductID], counts[all[j].ProductID]
		if ci != cj {
			return ci > cj
		}
		return all[i].ProductID < all[j].ProductID
	})
	return limit(all, n), nil
}

// TopByCreated implements Store. Ties are broken by descending id.
func (s *InMemoryStore) TopByCreated(_ context.Context, n int) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.snapshot()
	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].Created.Equal(all[j].Created) {
			return all[i].Created.After(all[j].Created)
		}
		return all[i].ProductID > all[j].ProductID
	})
	return limit(all, n), nil
}

// Insert implements Store.
func (s *InMemoryStore) Insert(_ context.Context, p *Product) error {
	if p == nil {
		return errors.New("product cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p.ProductID = s.nextID
	s.nextID++
	if p.Created.IsZero() {
		p.Created = s.now().UTC()
	}
	s.products[p.ProductID] = p.withoutCategory()
	return nil
}

// Update implements Store.
func (s *InMemoryStore) Update(_ context.Context, p *Product) error {
	if p == nil {
		return errors.New("product cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[p.ProductID]
	if !ok {
		return errors.Wrapf(ErrProductNotFound, "update product %d", p.ProductID)
	}
	if p.Created.IsZero() {
		p.Created = existing.Created
	}
	s.products[p.ProductID] = p.withoutCategory()
	return nil
}

// Delete implements Store.
func (s *InMemoryStore) Delete(_ context.Context, id int) (DeleteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return DeleteResult{}, errors.Wrapf(ErrProductNotFound, "delete product %d", id)
	}

	result := DeleteResult{ProductID: id}
	s.cartItems = removeWhere(s.cartItems, func(c CartItem) bool { return c.ProductID == id }, &result.CartItems)
	s.orderDetails = removeWhere(s.orderDetails, func(d OrderDetail) bool { return d.ProductID == id }, &result.OrderDetails)
	s.rainChecks = removeWhere(s.rainChecks, func(r RainCheck) bool { return r.ProductID == id }, &result.RainChecks)
	delete(s.products, id)
	return result, nil
}

// snapshot must be called with the lock held.
func (s *InMemoryStore) snapshot() []Product {
	all := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		all = append(all, p)
	}
	return all
}

func limit(products []Product, n int) []Product {
	if n >= 0 && len(products) > n {
		return products[:n]
	}
	return products
}

func removeWhere[T any](items []T, match func(T) bool, removed *int) []T {
	kept := items[:0]
	for _, item := range items {
		if match(item) {
			*removed++
			continue
		}
		kept = append(kept, item)
	}
	return kept
}
