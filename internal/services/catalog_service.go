package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/tavola-kitchen/api/internal/domain"
	"github.com/tavola-kitchen/api/internal/repositories"
)

var (
	// ErrCatalogInvalidInput indicates the caller supplied an invalid product id or selection.
	ErrCatalogInvalidInput = errors.New("catalog service: invalid input")
	// ErrCatalogProductNotFound indicates the requested product is not on the menu.
	ErrCatalogProductNotFound = errors.New("catalog service: product not found")
	// ErrCatalogUnavailable indicates the catalog backend failed.
	ErrCatalogUnavailable = errors.New("catalog service: unavailable")
)

// CatalogServiceDeps bundles constructor inputs for the catalog service.
type CatalogServiceDeps struct {
	Catalog repositories.CatalogRepository
	Logger  func(context.Context, string, map[string]any)
}

type catalogService struct {
	repo   repositories.CatalogRepository
	logger func(context.Context, string, map[string]any)
}

var _ CatalogService = (*catalogService)(nil)

// NewCatalogService constructs the catalog service with the supplied dependencies.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Catalog == nil {
		return nil, errors.New("catalog service: catalog repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &catalogService{repo: deps.Catalog, logger: logger}, nil
}

func (s *catalogService) GetProduct(ctx context.Context, productID string) (Product, error) {
	id := strings.TrimSpace(productID)
	if id == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}
	product, err := s.repo.FindProduct(ctx, id)
	if err != nil {
		return Product{}, s.translateRepoError(ctx, "catalog.find_failed", id, err)
	}
	return product, nil
}

func (s *catalogService) ListProducts(ctx context.Context) ([]Product, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, s.translateRepoError(ctx, "catalog.list_failed", "", err)
	}
	if products == nil {
		products = []Product{}
	}
	return products, nil
}

// ValidateSelection checks a selection against the product definition: every referenced
// variation, option, addon and extra must exist, single-select variations take one option,
// required variations must be answered and extras must respect their bounds and dependency.
func (s *catalogService) ValidateSelection(product Product, sel ItemSelection) error {
	return validateSelection(product, sel)
}

func validateSelection(product domain.Product, sel domain.ItemSelection) error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrCatalogInvalidInput, fmt.Sprintf(format, args...))
	}

	for variationID, choice := range sel.Variations {
		variation, ok := product.Variation(variationID)
		if !ok {
			return invalid("unknown variation %q", variationID)
		}
		var ids []string
		switch c := choice.(type) {
		case domain.SingleOption:
			if variation.Multiple {
				return invalid("variation %q expects a list of options", variationID)
			}
			if c.ID == "" {
				return invalid("variation %q has no option selected", variationID)
			}
			ids = []string{c.ID}
		case domain.MultipleOptions:
			if !variation.Multiple {
				return invalid("variation %q accepts a single option", variationID)
			}
			ids = c.IDs
		default:
			return invalid("variation %q has an unsupported selection", variationID)
		}
		seen := make(map[string]struct{}, len(ids))
		for _, optionID := range ids {
			if _, ok := variation.Option(optionID); !ok {
				return invalid("unknown option %q for variation %q", optionID, variationID)
			}
			if _, dup := seen[optionID]; dup {
				return invalid("option %q selected twice for variation %q", optionID, variationID)
			}
			seen[optionID] = struct{}{}
		}
	}
	for _, variation := range product.Variations {
		if !variation.Required {
			continue
		}
		if len(domain.OptionIDs(sel.Variations[variation.ID])) == 0 {
			return invalid("variation %q is required", variation.ID)
		}
	}

	for addonID, choice := range sel.Addons {
		addon, ok := product.Addon(addonID)
		if !ok {
			return invalid("unknown addon %q", addonID)
		}
		if choice.Quantity < 0 {
			return invalid("addon %q quantity must not be negative", addonID)
		}
		if choice.Checked && choice.Quantity > 1 && !addon.QuantityAdjustable {
			return invalid("addon %q quantity is fixed", addonID)
		}
	}

	for _, excluded := range sel.Excludes {
		if strings.TrimSpace(excluded) == "" {
			return invalid("excluded component id is empty")
		}
	}

	for extraID, qty := range sel.Extras {
		extra, ok := product.Extra(extraID)
		if !ok {
			return invalid("unknown extra %q", extraID)
		}
		if qty < 0 {
			return invalid("extra %q quantity must not be negative", extraID)
		}
		if qty == 0 {
			continue
		}
		if extra.Min > 0 && qty < extra.Min {
			return invalid("extra %q requires at least %d", extraID, extra.Min)
		}
		if extra.Max > 0 && qty > extra.Max {
			return invalid("extra %q allows at most %d", extraID, extra.Max)
		}
		if extra.HasDependency() && !selectionHasOption(sel.Variations, extra.VariationID, extra.OptionID) {
			return invalid("extra %q requires option %q of variation %q", extraID, extra.OptionID, extra.VariationID)
		}
	}
	return nil
}

func selectionHasOption(selections domain.VariationSelections, variationID, optionID string) bool {
	for _, id := range domain.OptionIDs(selections[variationID]) {
		if id == optionID {
			return true
		}
	}
	return false
}

func (s *catalogService) translateRepoError(ctx context.Context, event, productID string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case repositories.IsNotFound(err):
		return fmt.Errorf("%w: %s", ErrCatalogProductNotFound, productID)
	}
	s.logger(ctx, event, map[string]any{"productID": productID, "error": err.Error()})
	return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
}
