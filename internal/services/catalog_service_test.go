package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/tavola-kitchen/api/internal/domain"
	"github.com/tavola-kitchen/api/internal/repositories"
)

type stubCatalogRepository struct {
	findFunc func(ctx context.Context, productID string) (domain.Product, error)
	listFunc func(ctx context.Context) ([]domain.Product, error)
}

func (s *stubCatalogRepository) FindProduct(ctx context.Context, productID string) (domain.Product, error) {
	if s.findFunc != nil {
		return s.findFunc(ctx, productID)
	}
	return domain.Product{}, repositories.NewNotFoundError("catalog.find")
}

func (s *stubCatalogRepository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	if s.listFunc != nil {
		return s.listFunc(ctx)
	}
	return nil, nil
}

func newCatalogServiceForTest(t *testing.T, repo repositories.CatalogRepository) CatalogService {
	t.Helper()
	svc, err := NewCatalogService(CatalogServiceDeps{Catalog: repo})
	if err != nil {
		t.Fatalf("NewCatalogService: %v", err)
	}
	return svc
}

func TestCatalogServiceGetProduct(t *testing.T) {
	repo := &stubCatalogRepository{
		findFunc: func(_ context.Context, productID string) (domain.Product, error) {
			switch productID {
			case "burger":
				return burgerProduct(), nil
			case "broken":
				return domain.Product{}, &repositories.StoreError{Op: "catalog.find", Code: repositories.StoreErrorIO, Err: errors.New("eof")}
			}
			return domain.Product{}, repositories.NewNotFoundError("catalog.find")
		},
	}
	svc := newCatalogServiceForTest(t, repo)
	ctx := context.Background()

	product, err := svc.GetProduct(ctx, " burger ")
	if err != nil || product.ID != "burger" {
		t.Fatalf("expected burger, got %+v %v", product, err)
	}
	if _, err := svc.GetProduct(ctx, "pizza"); !errors.Is(err, ErrCatalogProductNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.GetProduct(ctx, "broken"); !errors.Is(err, ErrCatalogUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if _, err := svc.GetProduct(ctx, ""); !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestCatalogServiceListProductsNeverNil(t *testing.T) {
	svc := newCatalogServiceForTest(t, &stubCatalogRepository{})
	products, err := svc.ListProducts(context.Background())
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if products == nil {
		t.Fatalf("expected empty slice")
	}
}

func TestValidateSelection(t *testing.T) {
	valid := burgerSelection()

	cases := []struct {
		name   string
		mutate func(sel *domain.ItemSelection)
		ok     bool
	}{
		{name: "valid", mutate: func(*domain.ItemSelection) {}, ok: true},
		{name: "unknown variation", mutate: func(sel *domain.ItemSelection) {
			sel.Variations["crust"] = domain.SingleOption{ID: "thin"}
		}},
		{name: "unknown option", mutate: func(sel *domain.ItemSelection) {
			sel.Variations["size"] = domain.SingleOption{ID: "huge"}
		}},
		{name: "list for single select", mutate: func(sel *domain.ItemSelection) {
			sel.Variations["size"] = domain.MultipleOptions{IDs: []string{"large"}}
		}},
		{name: "scalar for multi select", mutate: func(sel *domain.ItemSelection) {
			sel.Variations["sauces"] = domain.SingleOption{ID: "bbq"}
		}},
		{name: "duplicate option", mutate: func(sel *domain.ItemSelection) {
			sel.Variations["sauces"] = domain.MultipleOptions{IDs: []string{"bbq", "bbq"}}
		}},
		{name: "missing required variation", mutate: func(sel *domain.ItemSelection) {
			delete(sel.Variations, "size")
			delete(sel.Extras, "fries")
		}},
		{name: "unknown addon", mutate: func(sel *domain.ItemSelection) {
			sel.Addons["olives"] = domain.AddonSelection{Checked: true, Quantity: 1}
		}},
		{name: "fixed addon quantity", mutate: func(sel *domain.ItemSelection) {
			sel.Addons["bacon"] = domain.AddonSelection{Checked: true, Quantity: 2}
		}},
		{name: "adjustable addon quantity", mutate: func(sel *domain.ItemSelection) {
			sel.Addons["cheese"] = domain.AddonSelection{Checked: true, Quantity: 5}
		}, ok: true},
		{name: "blank exclude", mutate: func(sel *domain.ItemSelection) {
			sel.Excludes = []string{" "}
		}},
		{name: "extra above max", mutate: func(sel *domain.ItemSelection) {
			sel.Extras["fries"] = 4
		}},
		{name: "unknown extra", mutate: func(sel *domain.ItemSelection) {
			sel.Extras["gravy"] = 1
		}},
		{name: "extra dependency met", mutate: func(sel *domain.ItemSelection) {
			sel.Extras["truffle"] = 1
		}, ok: true},
		{name: "extra dependency unmet", mutate: func(sel *domain.ItemSelection) {
			sel.Variations["size"] = domain.SingleOption{ID: "regular"}
			sel.Extras["truffle"] = 1
		}},
		{name: "zero extra ignores dependency", mutate: func(sel *domain.ItemSelection) {
			sel.Variations["size"] = domain.SingleOption{ID: "regular"}
			sel.Extras["truffle"] = 0
		}, ok: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sel := valid.Clone()
			tc.mutate(&sel)
			err := validateSelection(burgerProduct(), sel)
			if tc.ok && err != nil {
				t.Fatalf("expected valid selection, got %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrCatalogInvalidInput) {
				t.Fatalf("expected ErrCatalogInvalidInput, got %v", err)
			}
		})
	}
}

func TestValidateSelectionExtraMinimum(t *testing.T) {
	product := domain.Product{ID: "wings", Extras: []domain.Extra{{ID: "dip", Price: 1, Min: 2, Max: 4}}}
	if err := validateSelection(product, domain.ItemSelection{Extras: map[string]int{"dip": 1}}); !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected minimum violation, got %v", err)
	}
	if err := validateSelection(product, domain.ItemSelection{Extras: map[string]int{"dip": 2}}); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
}
