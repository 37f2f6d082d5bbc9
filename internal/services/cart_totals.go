package services

import (
	"github.com/shopspring/decimal"

	domain "github.com/tavola-kitchen/api/internal/domain"
)

// ResolveUnitPrice picks the discounted price when one exists, otherwise the list price.
func ResolveUnitPrice(list float64, discounted *float64) float64 {
	if discounted != nil {
		return *discounted
	}
	return list
}

// ComputeItemTotal returns the full-precision price of a line item. Base price and options
// scale with the item quantity, addons only with their own quantity, extras with both.
func ComputeItemTotal(item domain.LineItem) float64 {
	product := item.Product
	qty := float64(item.Quantity)

	unit := ResolveUnitPrice(product.Price, product.PriceAfterDiscount)
	for _, option := range selectedOptions(product, item.Variations) {
		unit += option.Price
	}
	total := unit * qty

	for _, addon := range checkedAddons(product, item.Addons) {
		total += addon.Price * float64(addon.quantity)
	}

	for _, extra := range selectedExtras(product, item.Extras) {
		total += ResolveUnitPrice(extra.Price, extra.PriceAfterDiscount) * float64(extra.quantity) * qty
	}
	return total
}

// RecomputeCartTotals derives the cart scalars from the items alone. Each scalar is rounded
// to two decimals when assigned; the payable total only adds taxes that are not already
// included in prices.
func RecomputeCartTotals(items []domain.LineItem) domain.CartTotals {
	subtotal := decimal.Zero
	afterDiscount := decimal.Zero
	discount := decimal.Zero
	tax := decimal.Zero
	added := decimal.Zero
	count := 0

	for _, item := range items {
		product := item.Product
		qty := float64(item.Quantity)

		list := product.Price * qty
		discounted := ResolveUnitPrice(product.Price, product.PriceAfterDiscount) * qty
		shared := 0.0
		for _, option := range selectedOptions(product, item.Variations) {
			shared += option.Price * qty
		}
		for _, addon := range checkedAddons(product, item.Addons) {
			shared += addon.Price * float64(addon.quantity)
		}

		itemDiscount := positive(list - discounted)
		for _, extra := range selectedExtras(product, item.Extras) {
			units := float64(extra.quantity) * qty
			extraList := extra.Price * units
			extraDiscounted := ResolveUnitPrice(extra.Price, extra.PriceAfterDiscount) * units
			list += extraList
			discounted += extraDiscounted
			itemDiscount += positive(extraList - extraDiscounted)
		}

		subtotal = subtotal.Add(decimal.NewFromFloat(list + shared))
		afterDiscount = afterDiscount.Add(decimal.NewFromFloat(discounted + shared))
		discount = discount.Add(decimal.NewFromFloat(itemDiscount))
		tax = tax.Add(decimal.NewFromFloat(item.TaxDetails.TotalTax))
		added = added.Add(decimal.NewFromFloat(item.TaxDetails.AddedTax))
		count += item.Quantity
	}

	afterDiscount = afterDiscount.Round(2)
	return domain.CartTotals{
		Subtotal:           subtotal.Round(2).InexactFloat64(),
		PriceAfterDiscount: afterDiscount.InexactFloat64(),
		TotalDiscount:      discount.Round(2).InexactFloat64(),
		TotalTax:           tax.Round(2).InexactFloat64(),
		Total:              afterDiscount.Add(added.Round(2)).InexactFloat64(),
		ItemCount:          count,
	}
}

// priceLineItem refreshes the derived fields of a line item in place.
func priceLineItem(item *domain.LineItem) {
	item.TaxDetails = ComputeItemTaxDetails(*item)
	item.TotalPrice = ComputeItemTotal(*item)
}

type pricedAddon struct {
	domain.Addon
	quantity int
}

type pricedExtra struct {
	domain.Extra
	quantity int
}

// selectedOptions lists the chosen options in catalog variation order, each variation's
// options in the order they were selected.
func selectedOptions(product domain.Product, selections domain.VariationSelections) []domain.VariationOption {
	if len(selections) == 0 {
		return nil
	}
	var out []domain.VariationOption
	for _, variation := range product.Variations {
		choice, ok := selections[variation.ID]
		if !ok {
			continue
		}
		for _, optionID := range domain.OptionIDs(choice) {
			if option, found := variation.Option(optionID); found {
				out = append(out, option)
			}
		}
	}
	return out
}

func checkedAddons(product domain.Product, selections map[string]domain.AddonSelection) []pricedAddon {
	if len(selections) == 0 {
		return nil
	}
	var out []pricedAddon
	for _, addon := range product.Addons {
		sel, ok := selections[addon.ID]
		if !ok || !sel.Checked {
			continue
		}
		out = append(out, pricedAddon{Addon: addon, quantity: addonQuantity(sel)})
	}
	return out
}

func selectedExtras(product domain.Product, selections map[string]int) []pricedExtra {
	if len(selections) == 0 {
		return nil
	}
	var out []pricedExtra
	for _, extra := range product.Extras {
		qty := selections[extra.ID]
		if qty <= 0 {
			continue
		}
		out = append(out, pricedExtra{Extra: extra, quantity: qty})
	}
	return out
}

// addonQuantity treats a checked addon without an explicit quantity as one unit.
func addonQuantity(sel domain.AddonSelection) int {
	if sel.Quantity < 1 {
		return 1
	}
	return sel.Quantity
}

func positive(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
