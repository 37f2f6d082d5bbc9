package services

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"

	domain "github.com/tavola-kitchen/api/internal/domain"
)

func floatPtr(v float64) *float64 {
	return &v
}

func intPtr(v int) *int {
	return &v
}

func strPtr(v string) *string {
	return &v
}

func assertAmount(t *testing.T, label string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("%s: expected %v, got %v", label, want, got)
	}
}

// burgerProduct is a product exercising every pricing component.
func burgerProduct() domain.Product {
	return domain.Product{
		ID:                 "burger",
		Name:               "Burger",
		Price:              10,
		PriceAfterDiscount: floatPtr(8),
		Tax:                &domain.TaxSpec{Amount: 14, Type: domain.TaxTypePercentage, Setting: domain.TaxSettingExcluded},
		Variations: []domain.Variation{
			{
				ID:       "size",
				Name:     "Size",
				Required: true,
				Options: []domain.VariationOption{
					{ID: "regular", Name: "Regular", Price: 0},
					{ID: "large", Name: "Large", Price: 2},
				},
			},
			{
				ID:       "sauces",
				Name:     "Sauces",
				Multiple: true,
				Options: []domain.VariationOption{
					{ID: "bbq", Name: "BBQ", Price: 1, Tax: &domain.TaxSpec{Amount: 10, Type: domain.TaxTypePercentage, Setting: domain.TaxSettingIncluded}},
					{ID: "mayo", Name: "Mayo", Price: 0},
					{ID: "chili", Name: "Chili", Price: 0.5},
				},
			},
		},
		Addons: []domain.Addon{
			{ID: "cheese", Name: "Cheese", Price: 2, Tax: &domain.TaxSpec{Amount: 5, Type: domain.TaxTypePercentage, Setting: domain.TaxSettingExcluded}, QuantityAdjustable: true},
			{ID: "bacon", Name: "Bacon", Price: 2},
		},
		Extras: []domain.Extra{
			{ID: "fries", Name: "Fries", Price: 3, PriceAfterDiscount: floatPtr(2.5), Max: 3},
			{ID: "truffle", Name: "Truffle", Price: 4, VariationID: "size", OptionID: "large"},
		},
	}
}

func plainProduct(id string, price float64) domain.Product {
	return domain.Product{ID: id, Name: id, Price: price}
}

// burgerSelection is large, BBQ sauce, three cheese and one fries.
func burgerSelection() domain.ItemSelection {
	return domain.ItemSelection{
		Variations: domain.VariationSelections{
			"size":   domain.SingleOption{ID: "large"},
			"sauces": domain.MultipleOptions{IDs: []string{"bbq"}},
		},
		Addons: map[string]domain.AddonSelection{"cheese": {Checked: true, Quantity: 3}},
		Extras: map[string]int{"fries": 1},
	}
}

type stubGateway struct {
	mu       sync.Mutex
	loadFunc func(ctx context.Context) (domain.Cart, error)
	saveFunc func(ctx context.Context, cart domain.Cart) error
	saved    []domain.Cart
}

func (s *stubGateway) Load(ctx context.Context) (domain.Cart, error) {
	if s.loadFunc != nil {
		return s.loadFunc(ctx)
	}
	return domain.Cart{}, nil
}

func (s *stubGateway) Save(ctx context.Context, cart domain.Cart) error {
	s.mu.Lock()
	s.saved = append(s.saved, cart.Clone())
	s.mu.Unlock()
	if s.saveFunc != nil {
		return s.saveFunc(ctx, cart)
	}
	return nil
}

func (s *stubGateway) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func sequentialIDs(prefix string) func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

type logEntry struct {
	event  string
	fields map[string]any
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) log(_ context.Context, event string, fields map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{event: event, fields: fields})
}

func (l *recordingLogger) has(event string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, entry := range l.entries {
		if entry.event == event {
			return true
		}
	}
	return false
}

func newTestEngine(t *testing.T, gateway CartGateway) *CartEngine {
	t.Helper()
	engine, err := NewCartEngine(context.Background(), CartEngineDeps{Gateway: gateway, IDGenerator: sequentialIDs("item")})
	if err != nil {
		t.Fatalf("NewCartEngine: %v", err)
	}
	return engine
}
