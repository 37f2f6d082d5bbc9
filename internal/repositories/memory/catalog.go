package memory

import (
	"context"
	"fmt"
	"strings"

	domain "github.com/tavola-kitchen/api/internal/domain"
	"github.com/tavola-kitchen/api/internal/repositories"
)

// Catalog serves products decoded once at start-up from a file or object.
type Catalog struct {
	order    []string
	products map[string]domain.Product
}

var _ repositories.CatalogRepository = (*Catalog)(nil)

// NewCatalog indexes the products by id. Duplicate ids are rejected.
func NewCatalog(products []domain.Product) (*Catalog, error) {
	catalog := &Catalog{
		order:    make([]string, 0, len(products)),
		products: make(map[string]domain.Product, len(products)),
	}
	for _, product := range products {
		id := strings.TrimSpace(product.ID)
		if id == "" {
			return nil, fmt.Errorf("memory catalog: product %q has no id", product.Name)
		}
		if _, exists := catalog.products[id]; exists {
			return nil, fmt.Errorf("memory catalog: duplicate product id %s", id)
		}
		catalog.order = append(catalog.order, id)
		catalog.products[id] = product
	}
	return catalog, nil
}

// NewCatalogFromJSON decodes a catalog document and indexes it.
func NewCatalogFromJSON(data []byte) (*Catalog, error) {
	products, err := domain.DecodeCatalog(data)
	if err != nil {
		return nil, err
	}
	return NewCatalog(products)
}

// FindProduct implements repositories.CatalogRepository.
func (c *Catalog) FindProduct(_ context.Context, productID string) (domain.Product, error) {
	product, ok := c.products[strings.TrimSpace(productID)]
	if !ok {
		return domain.Product{}, repositories.NewNotFoundError("memory.catalog.find")
	}
	return product, nil
}

// ListProducts implements repositories.CatalogRepository.
func (c *Catalog) ListProducts(_ context.Context) ([]domain.Product, error) {
	out := make([]domain.Product, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.products[id])
	}
	return out, nil
}
