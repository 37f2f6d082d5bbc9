package firestore

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"

	domain "github.com/tavola-kitchen/api/internal/domain"
	pfirestore "github.com/tavola-kitchen/api/internal/platform/firestore"
	"github.com/tavola-kitchen/api/internal/repositories"
)

const productCollection = "products"

type taxDocument struct {
	Amount  float64 `firestore:"amount"`
	Type    string  `firestore:"type"`
	Setting string  `firestore:"setting"`
}

type optionDocument struct {
	ID    string       `firestore:"id"`
	Name  string       `firestore:"name"`
	Price float64      `firestore:"price"`
	Taxes *taxDocument `firestore:"taxes,omitempty"`
}

type variationDocument struct {
	ID       string           `firestore:"id"`
	Name     string           `firestore:"name"`
	Multiple bool             `firestore:"multiple"`
	Required bool             `firestore:"required"`
	Options  []optionDocument `firestore:"options"`
}

type addonDocument struct {
	ID          string       `firestore:"id"`
	Name        string       `firestore:"name"`
	Price       float64      `firestore:"price"`
	Tax         *taxDocument `firestore:"tax,omitempty"`
	QuantityAdd int          `firestore:"quantity_add"`
}

type extraDocument struct {
	ID                 string   `firestore:"id"`
	Name               string   `firestore:"name"`
	Price              float64  `firestore:"price"`
	PriceAfterDiscount *float64 `firestore:"price_after_discount,omitempty"`
	Min                int      `firestore:"min"`
	Max                int      `firestore:"max"`
	VariationID        string   `firestore:"variation_id,omitempty"`
	OptionID           string   `firestore:"option_id,omitempty"`
}

type productDocument struct {
	Name               string              `firestore:"name"`
	Price              float64             `firestore:"price"`
	PriceAfterDiscount *float64            `firestore:"price_after_discount,omitempty"`
	TaxObj             *taxDocument        `firestore:"tax_obj,omitempty"`
	Taxes              *taxDocument        `firestore:"taxes,omitempty"`
	Variations         []variationDocument `firestore:"variations"`
	Addons             []addonDocument     `firestore:"addons"`
	Extras             []extraDocument     `firestore:"allExtras"`
	Active             *bool               `firestore:"active,omitempty"`
}

// CatalogRepository reads menu products from the products collection. Documents with
// active=false are hidden.
type CatalogRepository struct {
	base *pfirestore.BaseRepository[productDocument]
}

var _ repositories.CatalogRepository = (*CatalogRepository)(nil)

// NewCatalogRepository constructs a Firestore-backed catalog repository.
func NewCatalogRepository(provider *pfirestore.Provider) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository requires firestore provider")
	}
	return &CatalogRepository{
		base: pfirestore.NewBaseRepository[productDocument](provider, productCollection, nil, nil),
	}, nil
}

// FindProduct implements repositories.CatalogRepository.
func (r *CatalogRepository) FindProduct(ctx context.Context, productID string) (domain.Product, error) {
	doc, err := r.base.Get(ctx, strings.TrimSpace(productID))
	if err != nil {
		return domain.Product{}, err
	}
	if doc.Data.Active != nil && !*doc.Data.Active {
		return domain.Product{}, repositories.NewNotFoundError("products.get")
	}
	return productFromDocument(doc.ID, doc.Data), nil
}

// ListProducts implements repositories.CatalogRepository.
func (r *CatalogRepository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("name", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	products := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		if doc.Data.Active != nil && !*doc.Data.Active {
			continue
		}
		products = append(products, productFromDocument(doc.ID, doc.Data))
	}
	return products, nil
}

func productFromDocument(id string, doc productDocument) domain.Product {
	tax := doc.TaxObj
	if tax == nil {
		tax = doc.Taxes
	}
	product := domain.Product{
		ID:                 id,
		Name:               doc.Name,
		Price:              doc.Price,
		PriceAfterDiscount: doc.PriceAfterDiscount,
		Tax:                taxFromDocument(tax),
	}
	for _, v := range doc.Variations {
		variation := domain.Variation{ID: v.ID, Name: v.Name, Multiple: v.Multiple, Required: v.Required}
		for _, o := range v.Options {
			variation.Options = append(variation.Options, domain.VariationOption{
				ID:    o.ID,
				Name:  o.Name,
				Price: o.Price,
				Tax:   taxFromDocument(o.Taxes),
			})
		}
		product.Variations = append(product.Variations, variation)
	}
	for _, a := range doc.Addons {
		product.Addons = append(product.Addons, domain.Addon{
			ID:                 a.ID,
			Name:               a.Name,
			Price:              a.Price,
			Tax:                taxFromDocument(a.Tax),
			QuantityAdjustable: a.QuantityAdd != 0,
		})
	}
	for _, e := range doc.Extras {
		product.Extras = append(product.Extras, domain.Extra{
			ID:                 e.ID,
			Name:               e.Name,
			Price:              e.Price,
			PriceAfterDiscount: e.PriceAfterDiscount,
			Min:                e.Min,
			Max:                e.Max,
			VariationID:        e.VariationID,
			OptionID:           e.OptionID,
		})
	}
	return product
}

func taxFromDocument(doc *taxDocument) *domain.TaxSpec {
	if doc == nil {
		return nil
	}
	return &domain.TaxSpec{
		Amount:  doc.Amount,
		Type:    domain.TaxType(strings.ToLower(strings.TrimSpace(doc.Type))),
		Setting: domain.TaxSetting(strings.ToLower(strings.TrimSpace(doc.Setting))),
	}
}
