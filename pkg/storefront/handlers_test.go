package storefront_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/akashdube/PartsUL/pkg/cache"
	"github.com/akashdube/PartsUL/pkg/catalog"
	"github.com/akashdube/PartsUL/pkg/storefront"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingCatalog fails every read with a store error.
type failingCatalog struct{}

func (failingCatalog) ProductDetails(context.Context, int) (*catalog.Product, error) {
	return nil, errors.Mark(errors.New("sql: connection reset"), catalog.ErrDataStore)
}
func (failingCatalog) Home(context.Context) (catalog.HomeView, error) {
	return catalog.HomeView{}, errors.Mark(errors.New("sql: connection reset"), catalog.ErrDataStore)
}
func (failingCatalog) AnnouncementProduct(context.Context) (*catalog.Product, error) {
	return nil, errors.Mark(errors.New("sql: connection reset"), catalog.ErrDataStore)
}

type testServer struct {
	mux   *http.ServeMux
	admin *catalog.Admin
}

func newTestServer(t *testing.T, store *catalog.InMemoryStore) *testServer {
	t.Helper()
	c, err := cache.NewInMemoryCache(cache.InMemoryConfig{})
	require.NoError(t, err)
	svc, err := catalog.NewService(catalog.DefaultConfig(), c, nil, store, zerolog.Nop())
	require.NoError(t, err)
	admin, err := catalog.NewAdmin(store, c, nil, zerolog.Nop())
	require.NoError(t, err)
	h, err := storefront.NewHandlers(svc, admin, zerolog.Nop())
	require.NoError(t, err)

	mux := http.NewServeMux()
	h.Register(mux)
	return &testServer{mux: mux, admin: admin}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func seededStore() *catalog.InMemoryStore {
	store := catalog.NewInMemoryStore()
	store.AddCategory(catalog.Category{CategoryID: 1, Name: "Lighting"})
	store.Seed(
		catalog.Product{ProductID: 1, CategoryID: 1, Title: "Bulb", Price: 5, Created: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		catalog.Product{ProductID: 7, CategoryID: 1, Title: "Alpha", Price: 70, Created: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
	)
	return store
}

func TestHandlers_Reads(t *testing.T) {
	srv := newTestServer(t, seededStore())

	t.Run("Product details", func(t *testing.T) {
		rec := srv.do(t, http.MethodGet, "/products/7", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		var p catalog.Product
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
		assert.Equal(t, "Alpha", p.Title)
		require.NotNil(t, p.Category)
		assert.Equal(t, "Lighting", p.Category.Name)
	})

	t.Run("Canonical details URL", func(t *testing.T) {
		rec := srv.do(t, http.MethodGet, catalog.DetailsURL(1), "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Unknown product", func(t *testing.T) {
		rec := srv.do(t, http.MethodGet, "/products/404", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Malformed id", func(t *testing.T) {
		rec := srv.do(t, http.MethodGet, "/products/abc", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Home", func(t *testing.T) {
		rec := srv.do(t, http.MethodGet, "/home", "")

		require.Equal(t, http.StatusOK, rec.Code)
		var view catalog.HomeView
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
		assert.Len(t, view.NewArrivals, 2)
		assert.Equal(t, 7, view.NewArrivals[0].ProductID)
	})

	t.Run("Announcement", func(t *testing.T) {
		rec := srv.do(t, http.MethodGet, "/announcement", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"title":"Alpha"`)
	})
}

func TestHandlers_EmptyAnnouncement(t *testing.T) {
	srv := newTestServer(t, catalog.NewInMemoryStore())

	rec := srv.do(t, http.MethodGet, "/announcement", "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHandlers_StoreFailure(t *testing.T) {
	h, err := storefront.NewHandlers(failingCatalog{}, &catalog.Admin{}, zerolog.Nop())
	require.NoError(t, err)
	mux := http.NewServeMux()
	h.Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/home", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

func TestHandlers_Writes(t *testing.T) {
	t.Run("Edit is visible on the next read", func(t *testing.T) {
		// Arrange
		srv := newTestServer(t, seededStore())
		require.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/products/7", "").Code)

		// Act
		rec := srv.do(t, http.MethodPut, "/admin/products/7", `{"categoryId":1,"title":"Beta","price":71}`)

		// Assert
		require.Equal(t, http.StatusOK, rec.Code)
		read := srv.do(t, http.MethodGet, "/products/7", "")
		assert.Contains(t, read.Body.String(), `"title":"Beta"`)
	})

	t.Run("Create", func(t *testing.T) {
		srv := newTestServer(t, seededStore())

		rec := srv.do(t, http.MethodPost, "/admin/products", `{"categoryId":1,"title":"Headlamp","price":19.5}`)
		srv.admin.Wait()

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "/products/8", rec.Header().Get("Location"))
		var p catalog.Product
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
		assert.Equal(t, 8, p.ProductID)
	})

	t.Run("Invalid body", func(t *testing.T) {
		srv := newTestServer(t, seededStore())

		for _, body := range []string{`{`, `{"categoryId":1}`, `{"categoryId":1,"title":"x","price":-1}`, `{"title":"x","unknown":1}`} {
			rec := srv.do(t, http.MethodPost, "/admin/products", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		}
	})

	t.Run("Update of missing product", func(t *testing.T) {
		srv := newTestServer(t, seededStore())

		rec := srv.do(t, http.MethodPut, "/admin/products/404", `{"categoryId":1,"title":"Ghost"}`)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Delete", func(t *testing.T) {
		srv := newTestServer(t, seededStore())

		rec := srv.do(t, http.MethodDelete, "/admin/products/7", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"productId":7`)

		assert.Equal(t, http.StatusNotFound, srv.do(t, http.MethodGet, "/products/7", "").Code)
		assert.Equal(t, http.StatusNotFound, srv.do(t, http.MethodDelete, "/admin/products/7", "").Code)
	})
}

func TestNewHandlers_Validation(t *testing.T) {
	_, err := storefront.NewHandlers(nil, nil, zerolog.Nop())
	assert.Error(t, err)
}
