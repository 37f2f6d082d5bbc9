package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/tavola-kitchen/api/internal/domain"
	"github.com/tavola-kitchen/api/internal/platform/httpx"
	"github.com/tavola-kitchen/api/internal/services"
)

// CatalogHandlers serves the read-only menu.
type CatalogHandlers struct {
	catalog services.CatalogService
}

func NewCatalogHandlers(catalog services.CatalogService) *CatalogHandlers {
	return &CatalogHandlers{catalog: catalog}
}

// Routes wires the /catalog endpoints.
func (h *CatalogHandlers) Routes(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Get("/products/{productID}", h.getProduct)
}

type productListResponse struct {
	Items []domain.Product `json:"items"`
}

func (h *CatalogHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProducts(r.Context())
	if err != nil {
		writeCatalogError(w, r, err)
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	w.Header().Set("Cache-Control", "public, max-age=60")
	httpx.WriteJSON(w, http.StatusOK, productListResponse{Items: products})
}

func (h *CatalogHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.GetProduct(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		writeCatalogError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=60")
	httpx.WriteJSON(w, http.StatusOK, product)
}

func writeCatalogError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", errorDetail(err), http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCatalogUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog is temporarily unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "catalog request failed", http.StatusInternalServerError))
	}
}
