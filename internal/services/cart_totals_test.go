package services

import (
	"testing"

	domain "github.com/tavola-kitchen/api/internal/domain"
)

func TestResolveUnitPrice(t *testing.T) {
	if got := ResolveUnitPrice(10, nil); got != 10 {
		t.Fatalf("expected list price, got %v", got)
	}
	if got := ResolveUnitPrice(10, floatPtr(7.5)); got != 7.5 {
		t.Fatalf("expected discounted price, got %v", got)
	}
	if got := ResolveUnitPrice(10, floatPtr(0)); got != 0 {
		t.Fatalf("expected zero discounted price to apply, got %v", got)
	}
}

func TestComputeItemTotalAddonIndependentOfItemQuantity(t *testing.T) {
	product := domain.Product{
		ID:     "soup",
		Price:  5,
		Addons: []domain.Addon{{ID: "bread", Price: 10, QuantityAdjustable: true}},
	}
	item := domain.LineItem{
		Product:       product,
		Quantity:      3,
		ItemSelection: domain.ItemSelection{Addons: map[string]domain.AddonSelection{"bread": {Checked: true, Quantity: 2}}},
	}
	// 5*3 + 10*2
	assertAmount(t, "item total", ComputeItemTotal(item), 35)
}

func TestComputeItemTotalExtraScalesWithItemQuantity(t *testing.T) {
	product := domain.Product{
		ID:     "soup",
		Price:  5,
		Extras: []domain.Extra{{ID: "croutons", Price: 5}},
	}
	item := domain.LineItem{
		Product:       product,
		Quantity:      3,
		ItemSelection: domain.ItemSelection{Extras: map[string]int{"croutons": 2}},
	}
	// 5*3 + 5*2*3
	assertAmount(t, "item total", ComputeItemTotal(item), 45)
}

func TestComputeItemTotalComposesEveryComponent(t *testing.T) {
	item := domain.LineItem{Product: burgerProduct(), Quantity: 2, ItemSelection: burgerSelection()}
	// (8 + 2 + 1) * 2 + 2*3 + 2.5*1*2
	assertAmount(t, "item total", ComputeItemTotal(item), 33)
}

func TestComputeItemTotalUncheckedAddonDefaultsAndUnknownIDs(t *testing.T) {
	item := domain.LineItem{
		Product:  burgerProduct(),
		Quantity: 1,
		ItemSelection: domain.ItemSelection{
			Addons: map[string]domain.AddonSelection{
				"cheese": {Checked: false, Quantity: 5},
				"bacon":  {Checked: true},
				"ghost":  {Checked: true, Quantity: 1},
			},
			Extras: map[string]int{"fries": 0},
		},
	}
	// 8 + bacon counted once
	assertAmount(t, "item total", ComputeItemTotal(item), 10)
}

func TestRecomputeCartTotals(t *testing.T) {
	burger := domain.LineItem{Product: burgerProduct(), Quantity: 2, ItemSelection: burgerSelection()}
	priceLineItem(&burger)
	water := domain.LineItem{Product: plainProduct("water", 1.25), Quantity: 4}
	priceLineItem(&water)

	totals := RecomputeCartTotals([]domain.LineItem{burger, water})

	want := domain.CartTotals{
		Subtotal:           43,
		PriceAfterDiscount: 38,
		TotalDiscount:      5,
		TotalTax:           3.3,
		Total:              41.1,
		ItemCount:          6,
	}
	if totals != want {
		t.Fatalf("expected %+v, got %+v", want, totals)
	}
}

func TestRecomputeCartTotalsRoundsToCents(t *testing.T) {
	item := domain.LineItem{
		Product: domain.Product{
			ID:    "tea",
			Price: 1.004,
			Tax:   &domain.TaxSpec{Amount: 7, Type: domain.TaxTypePercentage, Setting: domain.TaxSettingExcluded},
		},
		Quantity: 3,
	}
	priceLineItem(&item)

	totals := RecomputeCartTotals([]domain.LineItem{item})
	if totals.Subtotal != 3.01 {
		t.Fatalf("expected subtotal 3.01, got %v", totals.Subtotal)
	}
	if totals.TotalTax != 0.21 {
		t.Fatalf("expected tax 0.21, got %v", totals.TotalTax)
	}
	if totals.Total != 3.22 {
		t.Fatalf("expected total 3.22, got %v", totals.Total)
	}
}

func TestRecomputeCartTotalsEmpty(t *testing.T) {
	if totals := RecomputeCartTotals(nil); totals != (domain.CartTotals{}) {
		t.Fatalf("expected zero totals, got %+v", totals)
	}
}
