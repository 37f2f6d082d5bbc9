package services

import (
	domain "github.com/tavola-kitchen/api/internal/domain"
)

// ComponentTax is the tax of one priced component scaled by its quantity.
type ComponentTax struct {
	TaxAmount     float64
	PriceAfterTax float64
}

// ResolveTaxSpec picks the tax applying to a component: the component's own spec when
// present, otherwise the product default, otherwise none.
func ResolveTaxSpec(component, product *domain.TaxSpec) *domain.TaxSpec {
	if component != nil {
		return component
	}
	if product != nil {
		return product
	}
	return nil
}

// ComputeComponentTax computes the tax for price under spec, scaled by qty.
// Included taxes are reported but not added to the price.
func ComputeComponentTax(price float64, spec *domain.TaxSpec, qty int) ComponentTax {
	units := float64(qty)
	if spec.IsZero() {
		return ComponentTax{TaxAmount: 0, PriceAfterTax: price * units}
	}

	var tax float64
	if spec.Type == domain.TaxTypePercentage {
		tax = price * spec.Amount / 100
	} else {
		tax = spec.Amount
	}

	after := price + tax
	if spec.Setting == domain.TaxSettingIncluded {
		after = price
	}
	return ComponentTax{TaxAmount: tax * units, PriceAfterTax: after * units}
}

// ComputeItemTaxDetails computes the tax of the product, each priced variation option and
// each checked addon of the line item. Extras are never taxed.
func ComputeItemTaxDetails(item domain.LineItem) domain.TaxDetails {
	product := item.Product
	details := domain.TaxDetails{Breakdown: []domain.TaxBreakdownEntry{}}

	record := func(name string, kind domain.TaxComponentType, price float64, spec *domain.TaxSpec, qty int) float64 {
		ct := ComputeComponentTax(price, spec, qty)
		if spec.IsZero() {
			return 0
		}
		if spec.Setting != domain.TaxSettingIncluded {
			details.AddedTax += ct.TaxAmount
		}
		details.Breakdown = append(details.Breakdown, domain.TaxBreakdownEntry{
			Name:          name,
			Type:          kind,
			TaxableAmount: price * float64(qty),
			TaxAmount:     ct.TaxAmount,
			TaxRate:       spec.Amount,
		})
		return ct.TaxAmount
	}

	base := ResolveUnitPrice(product.Price, product.PriceAfterDiscount)
	details.ProductTax = record(product.Name, domain.TaxComponentProduct, base, product.Tax, item.Quantity)

	for _, option := range selectedOptions(product, item.Variations) {
		if option.Price == 0 {
			continue
		}
		details.VariationTax += record(option.Name, domain.TaxComponentVariation, option.Price, ResolveTaxSpec(option.Tax, product.Tax), item.Quantity)
	}

	for _, addon := range checkedAddons(product, item.Addons) {
		details.AddonTax += record(addon.Name, domain.TaxComponentAddon, addon.Price, ResolveTaxSpec(addon.Tax, product.Tax), addon.quantity)
	}

	details.TotalTax = details.ProductTax + details.VariationTax + details.AddonTax
	return details
}
