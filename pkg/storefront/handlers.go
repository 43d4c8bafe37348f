// Package storefront exposes the catalog over HTTP as JSON.
package storefront

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/akashdube/PartsUL/pkg/catalog"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// maxBodyBytes bounds admin request bodies.
const maxBodyBytes = 1 << 20

// Catalog is the read side served to shoppers.
type Catalog interface {
	ProductDetails(ctx context.Context, id int) (*catalog.Product, error)
	Home(ctx context.Context) (catalog.HomeView, error)
	AnnouncementProduct(ctx context.Context) (*catalog.Product, error)
}

// CatalogAdmin is the write side served to store managers.
type CatalogAdmin interface {
	CreateProduct(ctx context.Context, p *catalog.Product) error
	UpdateProduct(ctx context.Context, p *catalog.Product) error
	DeleteProduct(ctx context.Context, id int) (catalog.DeleteResult, error)
}

// errBadRequest marks client input errors.
var errBadRequest = errors.New("bad request")

// Handlers serves the storefront routes.
type Handlers struct {
	catalog Catalog
	admin   CatalogAdmin
	logger  zerolog.Logger
}

// NewHandlers creates the route handlers.
func NewHandlers(c Catalog, admin CatalogAdmin, logger zerolog.Logger) (*Handlers, error) {
	if c == nil || admin == nil {
		return nil, errors.New("catalog and admin cannot be nil")
	}
	return &Handlers{
		catalog: c,
		admin:   admin,
		logger:  logger.With().Str("component", "StorefrontHandlers").Logger(),
	}, nil
}

// Register adds every route to mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /home", h.home)
	mux.HandleFunc("GET /products/{id}", h.productDetails)
	mux.HandleFunc("GET /Store/Details/{id}", h.productDetails)
	mux.HandleFunc("GET /announcement", h.announcement)

	mux.HandleFunc("POST /admin/products", h.createProduct)
	mux.HandleFunc("PUT /admin/products/{id}", h.updateProduct)
	mux.HandleFunc("DELETE /admin/products/{id}", h.deleteProduct)
}

func (h *Handlers) home(w http.ResponseWriter, r *http.Request) {
	view, err := h.catalog.Home(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handlers) productDetails(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	product, err := h.catalog.ProductDetails(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *Handlers) announcement(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.AnnouncementProduct(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if product == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *Handlers) createProduct(w http.ResponseWriter, r *http.Request) {
	product, err := decodeProduct(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	product.ProductID = 0
	if err := h.admin.CreateProduct(r.Context(), product); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/products/"+strconv.Itoa(product.ProductID))
	writeJSON(w, http.StatusCreated, product)
}

func (h *Handlers) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	product, err := decodeProduct(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	product.ProductID = id
	if err := h.admin.UpdateProduct(r.Context(), product); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *Handlers) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.admin.DeleteProduct(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func pathID(r *http.Request) (int, error) {
	raw := r.PathValue("id")
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, errors.Mark(errors.Newf("invalid product id %q", raw), errBadRequest)
	}
	return id, nil
}

func decodeProduct(w http.ResponseWriter, r *http.Request) (*catalog.Product, error) {
	var p catalog.Product
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "invalid product body"), errBadRequest)
	}
	switch {
	case p.Title == "":
		return nil, errors.Mark(errors.New("title is required"), errBadRequest)
	case p.Price < 0 || p.SalePrice < 0:
		return nil, errors.Mark(errors.New("prices cannot be negative"), errBadRequest)
	case p.CategoryID <= 0:
		return nil, errors.Mark(errors.New("categoryId is required"), errBadRequest)
	}
	p.Category = nil
	return &p, nil
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps catalog errors to status codes. Store failures are logged
// here and reported without their details.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errBadRequest):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, catalog.ErrProductNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "product not found"})
	default:
		h.logger.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Request failed.")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
