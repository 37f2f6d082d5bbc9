package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/tavola-kitchen/api/internal/domain"
	"github.com/tavola-kitchen/api/internal/services"
)

type stubCatalogService struct {
	products []services.Product
	err      error
}

var _ services.CatalogService = (*stubCatalogService)(nil)

func (s *stubCatalogService) GetProduct(_ context.Context, productID string) (services.Product, error) {
	if s.err != nil {
		return services.Product{}, s.err
	}
	for _, p := range s.products {
		if p.ID == productID {
			return p, nil
		}
	}
	return services.Product{}, services.ErrCatalogProductNotFound
}

func (s *stubCatalogService) ListProducts(context.Context) ([]services.Product, error) {
	return s.products, s.err
}

func (s *stubCatalogService) ValidateSelection(services.Product, services.ItemSelection) error {
	return nil
}

func catalogRouter(svc services.CatalogService) chi.Router {
	r := chi.NewRouter()
	r.Route("/catalog", NewCatalogHandlers(svc).Routes)
	return r
}

func TestCatalogHandlersListProducts(t *testing.T) {
	svc := &stubCatalogService{products: []domain.Product{{ID: "burger", Name: "Burger", Price: 10}, {ID: "fries", Price: 3}}}
	router := catalogRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/catalog/products", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body struct {
		Items []domain.Product `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Items) != 2 || body.Items[0].ID != "burger" {
		t.Fatalf("unexpected items %+v", body.Items)
	}
}

func TestCatalogHandlersGetProduct(t *testing.T) {
	svc := &stubCatalogService{products: []domain.Product{{ID: "burger", Price: 10}}}
	router := catalogRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/catalog/products/burger", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/catalog/products/pizza", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestCatalogHandlersUnavailable(t *testing.T) {
	router := catalogRouter(&stubCatalogService{err: services.ErrCatalogUnavailable})

	req := httptest.NewRequest(http.MethodGet, "/catalog/products", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
