package services

import (
	"testing"

	domain "github.com/tavola-kitchen/api/internal/domain"
)

func TestComputeComponentTaxSettings(t *testing.T) {
	excluded := &domain.TaxSpec{Amount: 14, Type: domain.TaxTypePercentage, Setting: domain.TaxSettingExcluded}
	included := &domain.TaxSpec{Amount: 14, Type: domain.TaxTypePercentage, Setting: domain.TaxSettingIncluded}
	fixed := &domain.TaxSpec{Amount: 1.5, Type: domain.TaxTypeFixed, Setting: domain.TaxSettingExcluded}

	cases := []struct {
		name      string
		price     float64
		spec      *domain.TaxSpec
		qty       int
		wantTax   float64
		wantAfter float64
	}{
		{name: "excluded percentage", price: 100, spec: excluded, qty: 1, wantTax: 14, wantAfter: 114},
		{name: "included percentage", price: 100, spec: included, qty: 1, wantTax: 14, wantAfter: 100},
		{name: "scaled by quantity", price: 100, spec: excluded, qty: 3, wantTax: 42, wantAfter: 342},
		{name: "fixed amount", price: 20, spec: fixed, qty: 2, wantTax: 3, wantAfter: 43},
		{name: "nil spec", price: 20, spec: nil, qty: 2, wantTax: 0, wantAfter: 40},
		{name: "zero amount", price: 20, spec: &domain.TaxSpec{Type: domain.TaxTypePercentage, Setting: domain.TaxSettingExcluded}, qty: 1, wantTax: 0, wantAfter: 20},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeComponentTax(tc.price, tc.spec, tc.qty)
			assertAmount(t, "tax", got.TaxAmount, tc.wantTax)
			assertAmount(t, "price after tax", got.PriceAfterTax, tc.wantAfter)
		})
	}
}

func TestResolveTaxSpecPrecedence(t *testing.T) {
	component := &domain.TaxSpec{Amount: 5, Type: domain.TaxTypePercentage}
	product := &domain.TaxSpec{Amount: 14, Type: domain.TaxTypePercentage}
	zero := &domain.TaxSpec{Amount: 0, Type: domain.TaxTypePercentage}

	if got := ResolveTaxSpec(component, product); got != component {
		t.Fatalf("expected component override to win")
	}
	if got := ResolveTaxSpec(nil, product); got != product {
		t.Fatalf("expected product default")
	}
	if got := ResolveTaxSpec(nil, nil); got != nil {
		t.Fatalf("expected no tax, got %+v", got)
	}
	if got := ResolveTaxSpec(zero, product); got != zero {
		t.Fatalf("expected explicit zero override to win")
	}
}

func TestComputeItemTaxDetailsBreakdown(t *testing.T) {
	item := domain.LineItem{Product: burgerProduct(), Quantity: 2, ItemSelection: burgerSelection()}
	item.Variations["sauces"] = domain.MultipleOptions{IDs: []string{"bbq", "mayo"}}

	details := ComputeItemTaxDetails(item)

	// product: 8 * 14% * 2; large: 2 * 14% * 2; bbq: 1 * 10% * 2 (included); cheese: 2 * 5% * 3.
	assertAmount(t, "product tax", details.ProductTax, 2.24)
	assertAmount(t, "variation tax", details.VariationTax, 0.76)
	assertAmount(t, "addon tax", details.AddonTax, 0.3)
	assertAmount(t, "total tax", details.TotalTax, 3.3)
	assertAmount(t, "added tax", details.AddedTax, 3.1)

	want := []struct {
		name string
		kind domain.TaxComponentType
	}{
		{"Burger", domain.TaxComponentProduct},
		{"Large", domain.TaxComponentVariation},
		{"BBQ", domain.TaxComponentVariation},
		{"Cheese", domain.TaxComponentAddon},
	}
	if len(details.Breakdown) != len(want) {
		t.Fatalf("expected %d breakdown entries, got %+v", len(want), details.Breakdown)
	}
	for idx, entry := range details.Breakdown {
		if entry.Name != want[idx].name || entry.Type != want[idx].kind {
			t.Fatalf("entry %d: expected %s/%s, got %s/%s", idx, want[idx].name, want[idx].kind, entry.Name, entry.Type)
		}
	}
	cheese := details.Breakdown[3]
	assertAmount(t, "cheese taxable", cheese.TaxableAmount, 6)
	assertAmount(t, "cheese rate", cheese.TaxRate, 5)
}

func TestComputeItemTaxDetailsIgnoresExtrasAndUncheckedAddons(t *testing.T) {
	product := burgerProduct()
	product.Tax = nil
	item := domain.LineItem{
		Product:  product,
		Quantity: 3,
		ItemSelection: domain.ItemSelection{
			Addons: map[string]domain.AddonSelection{
				"cheese": {Checked: false, Quantity: 2},
				"bacon":  {Checked: true, Quantity: 1},
			},
			Extras: map[string]int{"fries": 2},
		},
	}

	details := ComputeItemTaxDetails(item)
	if details.TotalTax != 0 {
		t.Fatalf("expected no tax, got %+v", details)
	}
	if len(details.Breakdown) != 0 {
		t.Fatalf("expected empty breakdown, got %+v", details.Breakdown)
	}
}

func TestComputeItemTaxDetailsScalesAddonByOwnQuantity(t *testing.T) {
	product := domain.Product{
		ID:     "soup",
		Name:   "Soup",
		Price:  5,
		Addons: []domain.Addon{{ID: "bread", Name: "Bread", Price: 10, Tax: &domain.TaxSpec{Amount: 10, Type: domain.TaxTypePercentage, Setting: domain.TaxSettingExcluded}, QuantityAdjustable: true}},
	}
	item := domain.LineItem{
		Product:       product,
		Quantity:      3,
		ItemSelection: domain.ItemSelection{Addons: map[string]domain.AddonSelection{"bread": {Checked: true, Quantity: 2}}},
	}

	details := ComputeItemTaxDetails(item)
	assertAmount(t, "addon tax", details.AddonTax, 2)
	assertAmount(t, "product tax", details.ProductTax, 0)
}
