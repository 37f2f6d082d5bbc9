package services

import (
	"context"

	domain "github.com/tavola-kitchen/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Cart               = domain.Cart
	CartTotals         = domain.CartTotals
	LineItem           = domain.LineItem
	ItemSelection      = domain.ItemSelection
	Product            = domain.Product
	SystemHealthReport = domain.SystemHealthReport
)

// CartService scopes cart engines to browsing sessions and validates mutations against the catalog.
type CartService interface {
	GetCart(ctx context.Context, sessionID string) (Cart, error)
	AddItem(ctx context.Context, cmd AddCartItemCommand) (AddCartItemResult, error)
	UpdateItem(ctx context.Context, cmd UpdateCartItemCommand) (Cart, error)
	RemoveItem(ctx context.Context, cmd CartItemCommand) (Cart, error)
	IncrementItem(ctx context.Context, cmd CartItemCommand) (Cart, error)
	DecrementItem(ctx context.Context, cmd CartItemCommand) (Cart, error)
	UpdateItemNote(ctx context.Context, cmd CartItemNoteCommand) (Cart, error)
	ClearCart(ctx context.Context, sessionID string) (Cart, error)
	RemoveOrderedItems(ctx context.Context, sessionID string, ordered []LineItem) (Cart, error)
}

// CatalogService exposes menu products and checks item selections against them.
type CatalogService interface {
	GetProduct(ctx context.Context, productID string) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	ValidateSelection(product Product, sel ItemSelection) error
}

// CheckoutService builds order payloads from the cart and hands them off for fulfilment.
type CheckoutService interface {
	Quote(ctx context.Context, cmd CheckoutCommand) (OrderPayload, error)
	Submit(ctx context.Context, cmd SubmitCheckoutCommand) (SubmittedOrder, error)
}

// SystemService aggregates utility endpoints such as readiness reports.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

type AddCartItemCommand struct {
	SessionID string
	ProductID string
	Selection ItemSelection
	Quantity  int
	Note      string
}

type AddCartItemResult struct {
	Item LineItem
	Cart Cart
}

type UpdateCartItemCommand struct {
	SessionID string
	ItemID    string
	Quantity  *int
	Selection *ItemSelection
	Note      *string
}

type CartItemCommand struct {
	SessionID string
	ItemID    string
}

type CartItemNoteCommand struct {
	SessionID string
	ItemID    string
	Note      string
}

// Fulfilment is how the order reaches the customer.
type Fulfilment string

const (
	FulfilmentDelivery Fulfilment = "delivery"
	FulfilmentPickup   Fulfilment = "pickup"
)

type CheckoutCommand struct {
	SessionID     string
	Fulfilment    Fulfilment
	PaymentMethod string
}

type SubmitCheckoutCommand struct {
	CheckoutCommand
	IdempotencyKey string
}

// OrderPayload is the order hand-off: cart lines and totals verbatim plus checkout fees.
type OrderPayload struct {
	Items            []LineItem `json:"items"`
	Totals           CartTotals `json:"totals"`
	Fulfilment       Fulfilment `json:"fulfilment"`
	PaymentMethod    string     `json:"paymentMethod"`
	DeliveryFee      float64    `json:"deliveryFee"`
	ServiceFee       float64    `json:"serviceFee"`
	PaymentSurcharge float64    `json:"paymentSurcharge"`
	GrandTotal       float64    `json:"grandTotal"`
	Currency         string     `json:"currency"`
}

type SubmittedOrder struct {
	OrderID   string
	MessageID string
	Payload   OrderPayload
}
