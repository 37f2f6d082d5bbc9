package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tavola-kitchen/api/internal/platform/httpx"
	"github.com/tavola-kitchen/api/internal/platform/money"
	"github.com/tavola-kitchen/api/internal/services"
)

const defaultIdempotencyHeader = "Idempotency-Key"

// CheckoutHandlers quotes and submits the session cart as an order.
type CheckoutHandlers struct {
	checkout          services.CheckoutService
	idempotencyHeader string
	submitMiddlewares []func(http.Handler) http.Handler
}

// CheckoutOption customises checkout handlers.
type CheckoutOption func(*CheckoutHandlers)

// WithSubmitMiddlewares wraps only the submit route, leaving quotes unguarded.
func WithSubmitMiddlewares(mw ...func(http.Handler) http.Handler) CheckoutOption {
	return func(h *CheckoutHandlers) {
		for _, m := range mw {
			if m != nil {
				h.submitMiddlewares = append(h.submitMiddlewares, m)
			}
		}
	}
}

// NewCheckoutHandlers constructs checkout handlers. idempotencyHeader names the header carrying the submit key.
func NewCheckoutHandlers(checkout services.CheckoutService, idempotencyHeader string, opts ...CheckoutOption) *CheckoutHandlers {
	if strings.TrimSpace(idempotencyHeader) == "" {
		idempotencyHeader = defaultIdempotencyHeader
	}
	h := &CheckoutHandlers{checkout: checkout, idempotencyHeader: idempotencyHeader}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the /checkout endpoints.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	r.Post("/quote", h.quote)
	r.With(h.submitMiddlewares...).Post("/submit", h.submit)
}

type checkoutRequest struct {
	Fulfilment    string `json:"fulfilment"`
	PaymentMethod string `json:"paymentMethod"`
}

type orderDisplay struct {
	Locale           string `json:"locale"`
	Subtotal         string `json:"subtotal"`
	DeliveryFee      string `json:"deliveryFee"`
	ServiceFee       string `json:"serviceFee"`
	PaymentSurcharge string `json:"paymentSurcharge"`
	GrandTotal       string `json:"grandTotal"`
}

type quoteResponse struct {
	services.OrderPayload
	Display orderDisplay `json:"display"`
}

type submitResponse struct {
	OrderID   string        `json:"orderId"`
	MessageID string        `json:"messageId"`
	Order     quoteResponse `json:"order"`
}

func (h *CheckoutHandlers) quote(w http.ResponseWriter, r *http.Request) {
	cmd, ok := h.decodeCommand(w, r)
	if !ok {
		return
	}
	payload, err := h.checkout.Quote(r.Context(), cmd)
	if err != nil {
		writeCheckoutError(r.Context(), w, err)
		return
	}
	setNoStore(w)
	httpx.WriteJSON(w, http.StatusOK, quotePayload(r, payload))
}

func (h *CheckoutHandlers) submit(w http.ResponseWriter, r *http.Request) {
	cmd, ok := h.decodeCommand(w, r)
	if !ok {
		return
	}
	order, err := h.checkout.Submit(r.Context(), services.SubmitCheckoutCommand{
		CheckoutCommand: cmd,
		IdempotencyKey:  strings.TrimSpace(r.Header.Get(h.idempotencyHeader)),
	})
	if err != nil {
		writeCheckoutError(r.Context(), w, err)
		return
	}
	setNoStore(w)
	httpx.WriteJSON(w, http.StatusCreated, submitResponse{
		OrderID:   order.OrderID,
		MessageID: order.MessageID,
		Order:     quotePayload(r, order.Payload),
	})
}

func (h *CheckoutHandlers) decodeCommand(w http.ResponseWriter, r *http.Request) (services.CheckoutCommand, bool) {
	var req checkoutRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return services.CheckoutCommand{}, false
	}
	return services.CheckoutCommand{
		SessionID:     sessionFrom(r),
		Fulfilment:    services.Fulfilment(strings.ToLower(strings.TrimSpace(req.Fulfilment))),
		PaymentMethod: req.PaymentMethod,
	}, true
}

func quotePayload(r *http.Request, payload services.OrderPayload) quoteResponse {
	format := money.NewFormatter(r.Header.Get("Accept-Language"), payload.Currency)
	return quoteResponse{
		OrderPayload: payload,
		Display: orderDisplay{
			Locale:           format.Locale(),
			Subtotal:         format.Format(payload.Totals.Total),
			DeliveryFee:      format.Format(payload.DeliveryFee),
			ServiceFee:       format.Format(payload.ServiceFee),
			PaymentSurcharge: format.Format(payload.PaymentSurcharge),
			GrandTotal:       format.Format(payload.GrandTotal),
		},
	}
}

func writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", errorDetail(err), http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutEmptyCart):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "cart is empty", http.StatusConflict))
	case errors.Is(err, services.ErrCheckoutBelowMinimum):
		httpx.WriteError(ctx, w, httpx.NewError("below_minimum_order", errorDetail(err), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrCheckoutUnavailable), errors.Is(err, services.ErrCartUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout is temporarily unavailable", http.StatusServiceUnavailable))
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", errorDetail(err), http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_error", "checkout request failed", http.StatusInternalServerError))
	}
}
