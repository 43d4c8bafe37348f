// Package catalog implements the storefront's cached product reads and the
// admin writes that invalidate them.
package catalog

import (
	"strconv"
	"time"
)

// Cache keys. Detail entries are keyed by product id; listings use fixed keys.
const (
	productKeyPrefix = "product_"

	TopSellingKey          = "topselling"
	NewArrivalsKey         = "newarrivals"
	AnnouncementProductKey = "announcementProduct"
)

// listingKeys are the aggregate entries whose contents depend on any product row.
var listingKeys = []string{TopSellingKey, NewArrivalsKey, AnnouncementProductKey}

// ProductKey returns the cache key of a product's detail entry.
func ProductKey(id int) string {
	return productKeyPrefix + strconv.Itoa(id)
}

// Category groups products in the store.
type Category struct {
	CategoryID  int    `json:"categoryId" msgpack:"categoryId"`
	Name        string `json:"name" msgpack:"name"`
	Description string `json:"description,omitempty" msgpack:"description,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty" msgpack:"imageUrl,omitempty"`
}

// Product is a catalog entry. Category is attached on read and is never part
// of a cached payload.
type Product struct {
	ProductID     int       `json:"productId" msgpack:"productId"`
	SkuNumber     string    `json:"skuNumber" msgpack:"skuNumber"`
	CategoryID    int       `json:"categoryId" msgpack:"categoryId"`
	Title         string    `json:"title" msgpack:"title"`
	Price         float64   `json:"price" msgpack:"price"`
	SalePrice     float64   `json:"salePrice" msgpack:"salePrice"`
	ProductArtURL string    `json:"productArtUrl" msgpack:"productArtUrl"`
	Description   string    `json:"description,omitempty" msgpack:"description,omitempty"`
	Inventory     int       `json:"inventory" msgpack:"inventory"`
	LeadTime      int       `json:"leadTime" msgpack:"leadTime"`
	Created       time.Time `json:"created" msgpack:"created"`
	Category      *Category `json:"category,omitempty" msgpack:"-"`
}

// withoutCategory returns a copy suitable for caching.
func (p Product) withoutCategory() Product {
	p.Category = nil
	return p
}

// DetailsURL is the canonical storefront URL of a product.
func DetailsURL(id int) string {
	return "/Store/Details/" + strconv.Itoa(id)
}

// HomeView holds the listings shown on the storefront home page.
type HomeView struct {
	TopSelling  []Product `json:"topSelling"`
	NewArrivals []Product `json:"newArrivals"`
}

// DeleteResult reports the rows removed by a product delete.
type DeleteResult struct {
	ProductID    int `json:"productId"`
	CartItems    int `json:"cartItems"`
	OrderDetails int `json:"orderDetails"`
	RainChecks   int `json:"rainChecks"`
}
