package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/oakmart/api/internal/platform/auth"
	"github.com/oakmart/api/internal/platform/httpx"
	"github.com/oakmart/api/internal/services"
)

const maxCartBodySize = 4 * 1024

// CartHandlers exposes the authenticated customer's cart.
type CartHandlers struct {
	authn *auth.Authenticator
	carts services.CartService
}

// NewCartHandlers constructs a new CartHandlers instance.
func NewCartHandlers(authn *auth.Authenticator, carts services.CartService) *CartHandlers {
	return &CartHandlers{authn: authn, carts: carts}
}

// Routes registers the /me/cart endpoints.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Get("/", h.getCart)
	r.Put("/items/{productID}", h.putLine)
	r.Delete("/items/{productID}", h.deleteLine)
	r.Delete("/", h.clearCart)
}

type cartLineRequest struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	cart, err := h.carts.GetOrCreateCart(ctx, actor.ID)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) putLine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return
	}

	var req cartLineRequest
	if !decodeJSONBody(ctx, w, r, maxCartBodySize, &req) {
		return
	}

	cart, err := h.carts.AddOrUpdateLine(ctx, services.UpsertCartLineCommand{
		CustomerID: actor.ID,
		ProductID:  productID,
		Quantity:   req.Quantity,
	})
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) deleteLine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return
	}

	cart, err := h.carts.RemoveLine(ctx, services.RemoveCartLineCommand{
		CustomerID: actor.ID,
		ProductID:  productID,
	})
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	if err := h.carts.ClearCart(ctx, actor.ID); err != nil {
		writeCartError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type cartResponse struct {
	Cart cartPayload `json:"cart"`
}

type cartPayload struct {
	CustomerID string            `json:"customer_id"`
	Lines      []cartLinePayload `json:"lines"`
	UpdatedAt  string            `json:"updated_at,omitempty"`
}

type cartLinePayload struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	AddedAt   string `json:"added_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

func buildCartPayload(cart services.Cart) cartPayload {
	lines := make([]cartLinePayload, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		lines = append(lines, cartLinePayload{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			AddedAt:   formatTime(line.AddedAt),
			UpdatedAt: formatTime(line.UpdatedAt),
		})
	}
	return cartPayload{
		CustomerID: cart.CustomerID,
		Lines:      lines,
		UpdatedAt:  formatTime(cart.UpdatedAt),
	}
}

func writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCartProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCartProductUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("product_unavailable", "product is not available", http.StatusConflict))
	case errors.Is(err, services.ErrCartUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("cart_unavailable", "cart temporarily unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("cart_error", "failed to process cart request", http.StatusInternalServerError))
	}
}
