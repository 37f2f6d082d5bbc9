package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"

	domain "github.com/tavola-kitchen/api/internal/domain"
)

var errCartGatewayRequired = errors.New("cart engine: gateway is required")

// CartEngineDeps wires the persistence and id generation used by a CartEngine.
type CartEngineDeps struct {
	Gateway     CartGateway
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

// LineItemPatch carries the fields of a bulk update. Nil fields are left unchanged.
type LineItemPatch struct {
	Quantity  *int
	Selection *domain.ItemSelection
	Note      *string
}

// IsEmpty reports whether the patch changes nothing.
func (p LineItemPatch) IsEmpty() bool {
	return p.Quantity == nil && p.Selection == nil && p.Note == nil
}

// CartEngine owns one cart. Every mutation recomputes the derived fields from the item list
// and saves the snapshot before returning. It is not safe for concurrent use.
type CartEngine struct {
	gateway CartGateway
	newID   func() string
	logger  func(context.Context, string, map[string]any)
	cart    domain.Cart
}

// NewCartEngine restores the cart through the gateway. A missing or unreadable snapshot starts
// an empty cart; a gateway transport failure is returned.
func NewCartEngine(ctx context.Context, deps CartEngineDeps) (*CartEngine, error) {
	if deps.Gateway == nil {
		return nil, errCartGatewayRequired
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	cart, err := deps.Gateway.Load(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrCartSnapshotInvalid):
		logger(ctx, "cart.snapshot_discarded", map[string]any{"error": err.Error()})
		cart = emptyCart()
	default:
		return nil, fmt.Errorf("%w: %v", ErrCartUnavailable, err)
	}

	engine := &CartEngine{gateway: deps.Gateway, newID: idGen, logger: logger, cart: cart}
	engine.recompute()
	return engine, nil
}

// Cart returns a copy of the current cart.
func (e *CartEngine) Cart() domain.Cart {
	return e.cart.Clone()
}

// Add inserts a product configuration. A line with the same identity key absorbs the quantity
// instead of a new line being appended. The affected line is returned with the cart.
func (e *CartEngine) Add(ctx context.Context, product domain.Product, sel domain.ItemSelection, qty int, note string) (domain.LineItem, domain.Cart) {
	qty = clampQuantity(qty)
	key := LineItemKey(product.ID, sel)

	idx := e.indexOfKey(key, "")
	if idx >= 0 {
		item := &e.cart.Items[idx]
		item.Quantity += qty
		if strings.TrimSpace(note) != "" {
			item.Note = note
		}
	} else {
		e.cart.Items = append(e.cart.Items, domain.LineItem{
			ID:            e.newID(),
			Key:           key,
			Product:       product,
			Quantity:      qty,
			Note:          note,
			ItemSelection: sel.Clone(),
		})
		idx = len(e.cart.Items) - 1
	}

	e.commit(ctx, "add")
	return e.cart.Items[idx].Clone(), e.Cart()
}

// Update applies a bulk patch. When the new selection matches another line, the two lines
// are merged into that other line.
func (e *CartEngine) Update(ctx context.Context, itemID string, patch LineItemPatch) domain.Cart {
	idx := e.cart.FindItem(itemID)
	if idx < 0 || patch.IsEmpty() {
		return e.Cart()
	}

	item := &e.cart.Items[idx]
	if patch.Quantity != nil {
		item.Quantity = clampQuantity(*patch.Quantity)
	}
	if patch.Note != nil {
		item.Note = *patch.Note
	}
	if patch.Selection != nil {
		item.ItemSelection = patch.Selection.Clone()
		item.Key = LineItemKey(item.Product.ID, item.ItemSelection)
		if other := e.indexOfKey(item.Key, item.ID); other >= 0 {
			target := &e.cart.Items[other]
			target.Quantity += item.Quantity
			if strings.TrimSpace(item.Note) != "" {
				target.Note = item.Note
			}
			e.cart.Items = append(e.cart.Items[:idx], e.cart.Items[idx+1:]...)
		}
	}

	e.commit(ctx, "update")
	return e.Cart()
}

// Remove deletes a line. Unknown ids are ignored.
func (e *CartEngine) Remove(ctx context.Context, itemID string) domain.Cart {
	idx := e.cart.FindItem(itemID)
	if idx < 0 {
		return e.Cart()
	}
	e.cart.Items = append(e.cart.Items[:idx], e.cart.Items[idx+1:]...)
	e.commit(ctx, "remove")
	return e.Cart()
}

// Clear removes every line.
func (e *CartEngine) Clear(ctx context.Context) domain.Cart {
	e.cart.Items = []domain.LineItem{}
	e.commit(ctx, "clear")
	return e.Cart()
}

// Increment adds one unit to a line.
func (e *CartEngine) Increment(ctx context.Context, itemID string) domain.Cart {
	idx := e.cart.FindItem(itemID)
	if idx < 0 {
		return e.Cart()
	}
	e.cart.Items[idx].Quantity++
	e.commit(ctx, "increment")
	return e.Cart()
}

// Decrement removes one unit from a line. A line at quantity one is left untouched.
func (e *CartEngine) Decrement(ctx context.Context, itemID string) domain.Cart {
	idx := e.cart.FindItem(itemID)
	if idx < 0 || e.cart.Items[idx].Quantity <= 1 {
		return e.Cart()
	}
	e.cart.Items[idx].Quantity--
	e.commit(ctx, "decrement")
	return e.Cart()
}

// UpdateNote replaces the note of a line.
func (e *CartEngine) UpdateNote(ctx context.Context, itemID, note string) domain.Cart {
	idx := e.cart.FindItem(itemID)
	if idx < 0 {
		return e.Cart()
	}
	e.cart.Items[idx].Note = note
	e.commit(ctx, "note")
	return e.Cart()
}

// RemoveOrdered takes ordered lines out of the cart. A line is matched by id, or by identity
// key when it was merged or reconfigured since, and keeps any units beyond the ordered
// quantity. Lines added after the order was built are left in place.
func (e *CartEngine) RemoveOrdered(ctx context.Context, ordered []domain.LineItem) domain.Cart {
	changed := false
	for _, line := range ordered {
		idx := e.cart.FindItem(line.ID)
		if idx < 0 || e.cart.Items[idx].Key != line.Key {
			idx = e.indexOfKey(line.Key, "")
		}
		if idx < 0 {
			continue
		}
		changed = true
		if rest := e.cart.Items[idx].Quantity - line.Quantity; rest >= 1 {
			e.cart.Items[idx].Quantity = rest
			continue
		}
		e.cart.Items = append(e.cart.Items[:idx], e.cart.Items[idx+1:]...)
	}
	if !changed {
		return e.Cart()
	}
	e.commit(ctx, "checkout")
	return e.Cart()
}

func (e *CartEngine) commit(ctx context.Context, op string) {
	e.recompute()
	if err := e.gateway.Save(ctx, e.cart); err != nil {
		e.logger(ctx, "cart.persist_failed", map[string]any{
			"op":    op,
			"items": len(e.cart.Items),
			"error": err.Error(),
		})
	}
}

func (e *CartEngine) recompute() {
	if e.cart.Items == nil {
		e.cart.Items = []domain.LineItem{}
	}
	for idx := range e.cart.Items {
		priceLineItem(&e.cart.Items[idx])
	}
	e.cart.CartTotals = RecomputeCartTotals(e.cart.Items)
}

func (e *CartEngine) indexOfKey(key, skipID string) int {
	for idx, item := range e.cart.Items {
		if item.Key == key && item.ID != skipID {
			return idx
		}
	}
	return -1
}

func clampQuantity(qty int) int {
	if qty < 1 {
		return 1
	}
	return qty
}
