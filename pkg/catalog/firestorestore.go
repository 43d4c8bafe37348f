package catalog

import (
	"context"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore collection names.
const (
	productsCollection     = "products"
	categoriesCollection   = "categories"
	cartItemsCollection    = "cartItems"
	orderDetailsCollection = "orderDetails"
	rainChecksCollection   = "rainChecks"
	countersCollection     = "counters"
	productCounterDoc      = "products"
)

// productDoc is the stored form of a product. OrderCount is maintained by the
// ordering flow and only read here.
type productDoc struct {
	ProductID     int       `firestore:"productId"`
	SkuNumber     string    `firestore:"skuNumber"`
	CategoryID    int       `firestore:"categoryId"`
	Title         string    `firestore:"title"`
	Price         float64   `firestore:"price"`
	SalePrice     float64   `firestore:"salePrice"`
	ProductArtURL string    `firestore:"productArtUrl"`
	Description   string    `firestore:"description"`
	Inventory     int       `firestore:"inventory"`
	LeadTime      int       `firestore:"leadTime"`
	Created       time.Time `firestore:"created"`
	OrderCount    int       `firestore:"orderCount"`
}

func toProductDoc(p *Product, orderCount int) productDoc {
	return productDoc{
		ProductID:     p.ProductID,
		SkuNumber:     p.SkuNumber,
		CategoryID:    p.CategoryID,
		Title:         p.Title,
		Price:         p.Price,
		SalePrice:     p.SalePrice,
		ProductArtURL: p.ProductArtURL,
		Description:   p.Description,
		Inventory:     p.Inventory,
		LeadTime:      p.LeadTime,
		Created:       p.Created,
		OrderCount:    orderCount,
	}
}

func (d productDoc) product() Product {
	return Product{
		ProductID:     d.ProductID,
		SkuNumber:     d.SkuNumber,
		CategoryID:    d.CategoryID,
		Title:         d.Title,
		Price:         d.Price,
		SalePrice:     d.SalePrice,
		ProductArtURL: d.ProductArtURL,
		Description:   d.Description,
		Inventory:     d.Inventory,
		LeadTime:      d.LeadTime,
		Created:       d.Created,
	}
}

type counterDoc struct {
	Next int `firestore:"next"`
}

// FirestoreStore is a Store backed by Firestore collections.
type FirestoreStore struct {
	client *firestore.Client
	logger zerolog.Logger
	now    func() time.Time
}

var _ Store = (*FirestoreStore)(nil)

// NewFirestoreStore creates a store over an injected client.
func NewFirestoreStore(client *firestore.Client, logger zerolog.Logger) (*FirestoreStore, error) {
	if client == nil {
		return nil, errors.New("firestore client cannot be nil")
	}
	return &FirestoreStore{
		client: client,
		logger: logger.With().Str("component", "FirestoreStore").Logger(),
		now:    time.Now,
	}, nil
}

func docKey(id int) string {
	return strconv.Itoa(id)
}

// FindByID implements Store.
func (s *FirestoreStore) FindByID(ctx context.Context, id int) (*Product, error) {
	snap, err := s.client.Collection(productsCollection).Doc(docKey(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "firestore get product %d", id)
	}
	var doc productDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, errors.Wrapf(err, "firestore DataTo for product %d", id)
	}
	p := doc.product()
	return &p, nil
}

// FindCategory implements Store.
func (s *FirestoreStore) FindCategory(ctx context.Context, id int) (*Category, error) {
	snap, err := s.client.Collection(categoriesCollection).Doc(docKey(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "firestore get category %d", id)
	}
	var c Category
	if err := snap.DataTo(&c); err != nil {
		return nil, errors.Wrapf(err, "firestore DataTo for category %d", id)
	}
	return &c, nil
}

// TopByOrderCount implements Store.
func (s *FirestoreStore) TopByOrderCount(ctx context.Context, n int) ([]Product, error) {
	return s.top(ctx, "orderCount", n)
}

// TopByCreated implements Store.
func (s *FirestoreStore) TopByCreated(ctx context.Context, n int) ([]Product, error) {
	return s.top(ctx, "created", n)
}

func (s *FirestoreStore) top(ctx context.Context, field string, n int) ([]Product, error) {
	docs, err := s.client.Collection(productsCollection).
		OrderBy(field, firestore.Desc).
		Limit(n).
		Documents(ctx).
		GetAll()
	if err != nil {
		return nil, errors.Wrapf(err, "firestore query products by %s", field)
	}
	products := make([]Product, 0, len(docs))
	for _, snap := range docs {
		var doc productDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, errors.Wrapf(err, "firestore DataTo for %s", snap.Ref.ID)
		}
		products = append(products, doc.product())
	}
	return products, nil
}

// Insert implements Store. Ids come from a counter document updated in the same transaction.
func (s *FirestoreStore) Insert(ctx context.Context, p *Product) error {
	if p == nil {
		return errors.New("product cannot be nil")
	}
	if p.Created.IsZero() {
		p.Created = s.now().UTC()
	}
	counterRef := s.client.Collection(countersCollection).Doc(productCounterDoc)

	var assigned int
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		counter := counterDoc{Next: 1}
		snap, err := tx.Get(counterRef)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if err == nil {
			if err := snap.DataTo(&counter); err != nil {
				return err
			}
		}
		assigned = counter.Next
		candidate := *p
		candidate.ProductID = assigned
		if err := tx.Set(counterRef, counterDoc{Next: assigned + 1}); err != nil {
			return err
		}
		return tx.Create(s.client.Collection(productsCollection).Doc(docKey(assigned)), toProductDoc(&candidate, 0))
	})
	if err != nil {
		return errors.Wrap(err, "firestore insert product")
	}
	p.ProductID = assigned
	s.logger.Debug().Int("product_id", assigned).Msg("Inserted product.")
	return nil
}

// Update implements Store. The stored order count and creation time are preserved.
func (s *FirestoreStore) Update(ctx context.Context, p *Product) error {
	if p == nil {
		return errors.New("product cannot be nil")
	}
	ref := s.client.Collection(productsCollection).Doc(docKey(p.ProductID))
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return errors.Wrapf(ErrProductNotFound, "update product %d", p.ProductID)
			}
			return err
		}
		var existing productDoc
		if err := snap.DataTo(&existing); err != nil {
			return err
		}
		if p.Created.IsZero() {
			p.Created = existing.Created
		}
		return tx.Set(ref, toProductDoc(p, existing.OrderCount))
	})
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return err
		}
		return errors.Wrapf(err, "firestore update product %d", p.ProductID)
	}
	return nil
}

// Delete implements Store. The product and every row referencing it are
// removed in one transaction.
func (s *FirestoreStore) Delete(ctx context.Context, id int) (DeleteResult, error) {
	ref := s.client.Collection(productsCollection).Doc(docKey(id))
	var result DeleteResult
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		result = DeleteResult{ProductID: id}
		if _, err := tx.Get(ref); err != nil {
			if status.Code(err) == codes.NotFound {
				return errors.Wrapf(ErrProductNotFound, "delete product %d", id)
			}
			return err
		}

		// Firestore transactions require every read before the first write.
		dependents := make(map[string][]*firestore.DocumentSnapshot)
		for _, collection := range []string{cartItemsCollection, orderDetailsCollection, rainChecksCollection} {
			docs, err := tx.Documents(s.client.Collection(collection).Where("productId", "==", id)).GetAll()
			if err != nil {
				return err
			}
			dependents[collection] = docs
		}

		for collection, docs := range dependents {
			for _, snap := range docs {
				if err := tx.Delete(snap.Ref); err != nil {
					return err
				}
			}
			switch collection {
			case cartItemsCollection:
				result.CartItems = len(docs)
			case orderDetailsCollection:
				result.OrderDetails = len(docs)
			case rainChecksCollection:
				result.RainChecks = len(docs)
			}
		}
		return tx.Delete(ref)
	})
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return DeleteResult{}, err
		}
		return DeleteResult{}, errors.Wrapf(err, "firestore delete product %d", id)
	}
	return result, nil
}
