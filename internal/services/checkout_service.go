package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tavola-kitchen/api/internal/platform/money"
)

var (
	// ErrCheckoutInvalidInput indicates an unknown fulfilment, missing payment method or idempotency key.
	ErrCheckoutInvalidInput = errors.New("checkout service: invalid input")
	// ErrCheckoutEmptyCart indicates there is nothing to order.
	ErrCheckoutEmptyCart = errors.New("checkout service: cart is empty")
	// ErrCheckoutBelowMinimum indicates a delivery order below the minimum order amount.
	ErrCheckoutBelowMinimum = errors.New("checkout service: below minimum order")
	// ErrCheckoutUnavailable indicates the order could not be handed off.
	ErrCheckoutUnavailable = errors.New("checkout service: unavailable")
)

// FeeSchedule configures the charges added on top of the cart totals at checkout.
type FeeSchedule struct {
	DeliveryFee           float64
	FreeDeliveryThreshold float64
	MinimumDeliveryOrder  float64
	ServiceFeePercent     float64
	// PaymentSurcharges maps payment methods to a percentage surcharge.
	PaymentSurcharges map[string]float64
}

// OrderMessage is the event handed to the order pipeline on submit.
type OrderMessage struct {
	OrderID        string       `json:"orderId"`
	SessionID      string       `json:"sessionId"`
	IdempotencyKey string       `json:"idempotencyKey,omitempty"`
	SubmittedAt    time.Time    `json:"submittedAt"`
	Order          OrderPayload `json:"order"`
}

// OrderPublisher hands submitted orders to downstream fulfilment.
type OrderPublisher interface {
	PublishOrder(ctx context.Context, message OrderMessage) (string, error)
}

// CheckoutServiceDeps wires cart access, fee configuration and the order publisher.
type CheckoutServiceDeps struct {
	Carts       CartService
	Publisher   OrderPublisher
	Fees        FeeSchedule
	Currency    string
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type checkoutService struct {
	carts     CartService
	publisher OrderPublisher
	fees      FeeSchedule
	currency  string
	now       func() time.Time
	newID     func() string
	logger    func(context.Context, string, map[string]any)
}

var _ CheckoutService = (*checkoutService)(nil)

// NewCheckoutService validates dependencies and normalises the fee schedule.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Carts == nil {
		return nil, errors.New("checkout service: cart service is required")
	}
	if deps.Publisher == nil {
		return nil, errors.New("checkout service: order publisher is required")
	}
	fees := deps.Fees
	if fees.DeliveryFee < 0 || fees.FreeDeliveryThreshold < 0 || fees.MinimumDeliveryOrder < 0 || fees.ServiceFeePercent < 0 {
		return nil, errors.New("checkout service: fees must not be negative")
	}
	surcharges := make(map[string]float64, len(fees.PaymentSurcharges))
	for method, pct := range fees.PaymentSurcharges {
		if pct < 0 {
			return nil, fmt.Errorf("checkout service: surcharge for %s must not be negative", method)
		}
		surcharges[normalisePaymentMethod(method)] = pct
	}
	fees.PaymentSurcharges = surcharges

	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = "USD"
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &checkoutService{
		carts:     deps.Carts,
		publisher: deps.Publisher,
		fees:      fees,
		currency:  currency,
		now:       func() time.Time { return clock().UTC() },
		newID:     idGen,
		logger:    logger,
	}, nil
}

// Quote builds the order payload for the current cart without submitting it.
func (s *checkoutService) Quote(ctx context.Context, cmd CheckoutCommand) (OrderPayload, error) {
	fulfilment := Fulfilment(strings.ToLower(strings.TrimSpace(string(cmd.Fulfilment))))
	if fulfilment != FulfilmentDelivery && fulfilment != FulfilmentPickup {
		return OrderPayload{}, fmt.Errorf("%w: unsupported fulfilment %q", ErrCheckoutInvalidInput, cmd.Fulfilment)
	}
	method := normalisePaymentMethod(cmd.PaymentMethod)
	if method == "" {
		return OrderPayload{}, fmt.Errorf("%w: payment method is required", ErrCheckoutInvalidInput)
	}

	cart, err := s.carts.GetCart(ctx, cmd.SessionID)
	if err != nil {
		return OrderPayload{}, err
	}
	if len(cart.Items) == 0 {
		return OrderPayload{}, ErrCheckoutEmptyCart
	}

	return s.buildPayload(cart, fulfilment, method)
}

// Submit quotes the cart, publishes the order and removes the ordered lines from the cart.
// Lines added while the order was in flight stay in the cart. The cart is kept when
// publishing fails.
func (s *checkoutService) Submit(ctx context.Context, cmd SubmitCheckoutCommand) (SubmittedOrder, error) {
	key := strings.TrimSpace(cmd.IdempotencyKey)
	if key == "" {
		return SubmittedOrder{}, fmt.Errorf("%w: idempotency key is required", ErrCheckoutInvalidInput)
	}
	payload, err := s.Quote(ctx, cmd.CheckoutCommand)
	if err != nil {
		return SubmittedOrder{}, err
	}

	orderID := s.newID()
	messageID, err := s.publisher.PublishOrder(ctx, OrderMessage{
		OrderID:        orderID,
		SessionID:      strings.TrimSpace(cmd.SessionID),
		IdempotencyKey: key,
		SubmittedAt:    s.now(),
		Order:          payload,
	})
	if err != nil {
		s.logger(ctx, "checkout.publish_failed", map[string]any{"orderID": orderID, "error": err.Error()})
		return SubmittedOrder{}, fmt.Errorf("%w: %v", ErrCheckoutUnavailable, err)
	}

	if _, err := s.carts.RemoveOrderedItems(ctx, cmd.SessionID, payload.Items); err != nil {
		s.logger(ctx, "checkout.clear_failed", map[string]any{"orderID": orderID, "error": err.Error()})
	}
	s.logger(ctx, "checkout.submitted", map[string]any{
		"orderID":    orderID,
		"messageID":  messageID,
		"grandTotal": payload.GrandTotal,
	})
	return SubmittedOrder{OrderID: orderID, MessageID: messageID, Payload: payload}, nil
}

func (s *checkoutService) buildPayload(cart Cart, fulfilment Fulfilment, method string) (OrderPayload, error) {
	base := cart.PriceAfterDiscount

	var deliveryFee float64
	if fulfilment == FulfilmentDelivery {
		if s.fees.MinimumDeliveryOrder > 0 && base < s.fees.MinimumDeliveryOrder {
			return OrderPayload{}, fmt.Errorf("%w: %.2f is below %.2f", ErrCheckoutBelowMinimum, base, s.fees.MinimumDeliveryOrder)
		}
		deliveryFee = money.Round2(s.fees.DeliveryFee)
		if s.fees.FreeDeliveryThreshold > 0 && base >= s.fees.FreeDeliveryThreshold {
			deliveryFee = 0
		}
	}

	serviceFee := money.Percent(base, s.fees.ServiceFeePercent)
	surcharge := money.Percent(money.Sum(cart.Total, deliveryFee, serviceFee), s.fees.PaymentSurcharges[method])

	return OrderPayload{
		Items:            cart.Items,
		Totals:           cart.CartTotals,
		Fulfilment:       fulfilment,
		PaymentMethod:    method,
		DeliveryFee:      deliveryFee,
		ServiceFee:       serviceFee,
		PaymentSurcharge: surcharge,
		GrandTotal:       money.Round2(money.Sum(cart.Total, deliveryFee, serviceFee, surcharge)),
		Currency:         s.currency,
	}, nil
}

func normalisePaymentMethod(method string) string {
	return strings.ToLower(strings.TrimSpace(method))
}
