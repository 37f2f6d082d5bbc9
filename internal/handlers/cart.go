package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/tavola-kitchen/api/internal/domain"
	"github.com/tavola-kitchen/api/internal/platform/httpx"
	"github.com/tavola-kitchen/api/internal/platform/money"
	"github.com/tavola-kitchen/api/internal/services"
)

// CartHandlers exposes the session cart.
type CartHandlers struct {
	carts    services.CartService
	currency string
}

// NewCartHandlers constructs cart handlers. currency drives the display amounts.
func NewCartHandlers(carts services.CartService, currency string) *CartHandlers {
	return &CartHandlers{carts: carts, currency: currency}
}

// Routes wires the /cart endpoints.
func (h *CartHandlers) Routes(r chi.Router) {
	r.Get("/", h.getCart)
	r.Delete("/", h.clearCart)
	r.Post("/items", h.addItem)
	r.Patch("/items/{itemID}", h.updateItem)
	r.Delete("/items/{itemID}", h.removeItem)
	r.Post("/items/{itemID}:increment", h.incrementItem)
	r.Post("/items/{itemID}:decrement", h.decrementItem)
	r.Put("/items/{itemID}/note", h.updateNote)
}

type addItemRequest struct {
	ProductID  string                           `json:"productId"`
	Quantity   *int                             `json:"quantity"`
	Note       string                           `json:"note"`
	Variations domain.VariationSelections       `json:"variations"`
	Addons     map[string]domain.AddonSelection `json:"addons"`
	Excludes   []string                         `json:"excludes"`
	Extras     map[string]int                   `json:"extras"`
}

type updateItemRequest struct {
	Quantity  *int                  `json:"quantity"`
	Selection *domain.ItemSelection `json:"selection"`
	Note      *string               `json:"note"`
}

type noteRequest struct {
	Note string `json:"note"`
}

type cartDisplay struct {
	Locale             string `json:"locale"`
	Currency           string `json:"currency"`
	Subtotal           string `json:"subtotal"`
	TotalDiscount      string `json:"totalDiscount"`
	PriceAfterDiscount string `json:"priceAfterDiscount"`
	TotalTax           string `json:"totalTax"`
	Total              string `json:"total"`
}

type cartResponse struct {
	Items   []domain.LineItem `json:"items"`
	Totals  domain.CartTotals `json:"totals"`
	Display cartDisplay       `json:"display"`
}

type addItemResponse struct {
	Item domain.LineItem `json:"item"`
	Cart cartResponse    `json:"cart"`
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.GetCart(r.Context(), sessionFrom(r))
	h.respond(w, r, cart, err)
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.ClearCart(r.Context(), sessionFrom(r))
	h.respond(w, r, cart, err)
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req addItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	result, err := h.carts.AddItem(ctx, services.AddCartItemCommand{
		SessionID: sessionFrom(r),
		ProductID: req.ProductID,
		Quantity:  quantity,
		Note:      req.Note,
		Selection: domain.ItemSelection{
			Variations: req.Variations,
			Addons:     req.Addons,
			Excludes:   req.Excludes,
			Extras:     req.Extras,
		},
	})
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	setNoStore(w)
	httpx.WriteJSON(w, http.StatusCreated, addItemResponse{
		Item: result.Item,
		Cart: h.cartPayload(r, result.Cart),
	})
}

func (h *CartHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	cart, err := h.carts.UpdateItem(r.Context(), services.UpdateCartItemCommand{
		SessionID: sessionFrom(r),
		ItemID:    chi.URLParam(r, "itemID"),
		Quantity:  req.Quantity,
		Selection: req.Selection,
		Note:      req.Note,
	})
	h.respond(w, r, cart, err)
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.RemoveItem(r.Context(), h.itemCommand(r))
	h.respond(w, r, cart, err)
}

func (h *CartHandlers) incrementItem(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.IncrementItem(r.Context(), h.itemCommand(r))
	h.respond(w, r, cart, err)
}

func (h *CartHandlers) decrementItem(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.DecrementItem(r.Context(), h.itemCommand(r))
	h.respond(w, r, cart, err)
}

func (h *CartHandlers) updateNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	cart, err := h.carts.UpdateItemNote(r.Context(), services.CartItemNoteCommand{
		SessionID: sessionFrom(r),
		ItemID:    chi.URLParam(r, "itemID"),
		Note:      req.Note,
	})
	h.respond(w, r, cart, err)
}

func (h *CartHandlers) itemCommand(r *http.Request) services.CartItemCommand {
	return services.CartItemCommand{SessionID: sessionFrom(r), ItemID: chi.URLParam(r, "itemID")}
}

func (h *CartHandlers) respond(w http.ResponseWriter, r *http.Request, cart services.Cart, err error) {
	if err != nil {
		writeCartError(r.Context(), w, err)
		return
	}
	setNoStore(w)
	httpx.WriteJSON(w, http.StatusOK, h.cartPayload(r, cart))
}

func (h *CartHandlers) cartPayload(r *http.Request, cart services.Cart) cartResponse {
	items := cart.Items
	if items == nil {
		items = []domain.LineItem{}
	}
	format := money.NewFormatter(r.Header.Get("Accept-Language"), h.currency)
	return cartResponse{
		Items:  items,
		Totals: cart.CartTotals,
		Display: cartDisplay{
			Locale:             format.Locale(),
			Currency:           format.Currency(),
			Subtotal:           format.Format(cart.Subtotal),
			TotalDiscount:      format.Format(cart.TotalDiscount),
			PriceAfterDiscount: format.Format(cart.PriceAfterDiscount),
			TotalTax:           format.Format(cart.TotalTax),
			Total:              format.Format(cart.Total),
		},
	}
}

func writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", errorDetail(err), http.StatusBadRequest))
	case errors.Is(err, services.ErrCartNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCartUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("cart_unavailable", "cart is temporarily unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("cart_error", "cart request failed", http.StatusInternalServerError))
	}
}

// errorDetail strips the sentinel prefixes so clients see only the reason.
func errorDetail(err error) string {
	msg := err.Error()
	if idx := strings.LastIndex(msg, ": "); idx >= 0 && idx+2 < len(msg) {
		return msg[idx+2:]
	}
	return msg
}

func setNoStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
}
