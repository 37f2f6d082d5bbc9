package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	domain "github.com/tavola-kitchen/api/internal/domain"
	"github.com/tavola-kitchen/api/internal/repositories"
)

// CartSnapshotKey is the fixed key under which a session's cart snapshot is stored.
const CartSnapshotKey = "cart"

// ErrCartSnapshotInvalid reports a persisted snapshot that cannot be turned into a cart.
var ErrCartSnapshotInvalid = errors.New("cart gateway: invalid snapshot")

// CartGateway loads and saves the cart snapshot owned by one engine.
type CartGateway interface {
	Load(ctx context.Context) (domain.Cart, error)
	Save(ctx context.Context, cart domain.Cart) error
}

// SnapshotGateway persists one session's cart as JSON in a SnapshotStore.
type SnapshotGateway struct {
	store     repositories.SnapshotStore
	namespace string
}

var _ CartGateway = (*SnapshotGateway)(nil)

// NewSnapshotGateway binds a gateway to the namespace of a session.
func NewSnapshotGateway(store repositories.SnapshotStore, namespace string) (*SnapshotGateway, error) {
	if store == nil {
		return nil, errors.New("cart gateway: snapshot store is required")
	}
	ns := strings.TrimSpace(namespace)
	if ns == "" {
		return nil, errors.New("cart gateway: namespace is required")
	}
	return &SnapshotGateway{store: store, namespace: ns}, nil
}

// Load returns the stored cart. An absent snapshot yields an empty cart; an unparsable or
// incompatible snapshot yields an empty cart together with ErrCartSnapshotInvalid.
func (g *SnapshotGateway) Load(ctx context.Context) (domain.Cart, error) {
	data, err := g.store.Get(ctx, g.namespace, CartSnapshotKey)
	if err != nil {
		if repositories.IsNotFound(err) {
			return emptyCart(), nil
		}
		return emptyCart(), fmt.Errorf("cart gateway: load %s: %w", g.namespace, err)
	}
	cart, err := DecodeCartSnapshot(data)
	if err != nil {
		return emptyCart(), err
	}
	return cart, nil
}

// Save stores the full cart snapshot.
func (g *SnapshotGateway) Save(ctx context.Context, cart domain.Cart) error {
	data, err := EncodeCartSnapshot(cart)
	if err != nil {
		return err
	}
	if err := g.store.Put(ctx, g.namespace, CartSnapshotKey, data); err != nil {
		return fmt.Errorf("cart gateway: save %s: %w", g.namespace, err)
	}
	return nil
}

// EncodeCartSnapshot serialises a cart into the persisted layout.
func EncodeCartSnapshot(cart domain.Cart) ([]byte, error) {
	if cart.Items == nil {
		cart.Items = []domain.LineItem{}
	}
	data, err := json.Marshal(cart)
	if err != nil {
		return nil, fmt.Errorf("cart gateway: encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeCartSnapshot parses a persisted cart. Identity keys and derived fields are recomputed
// from the items so a snapshot written by an older version never surfaces stale values.
func DecodeCartSnapshot(data []byte) (domain.Cart, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return emptyCart(), nil
	}
	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return emptyCart(), fmt.Errorf("%w: %v", ErrCartSnapshotInvalid, err)
	}
	for idx := range cart.Items {
		item := &cart.Items[idx]
		if strings.TrimSpace(item.ID) == "" || strings.TrimSpace(item.Product.ID) == "" || item.Quantity < 1 {
			return emptyCart(), fmt.Errorf("%w: item %d is incomplete", ErrCartSnapshotInvalid, idx)
		}
		item.Key = LineItemKey(item.Product.ID, item.ItemSelection)
		priceLineItem(item)
	}
	if cart.Items == nil {
		cart.Items = []domain.LineItem{}
	}
	cart.CartTotals = RecomputeCartTotals(cart.Items)
	return cart, nil
}

func emptyCart() domain.Cart {
	return domain.Cart{Items: []domain.LineItem{}}
}
