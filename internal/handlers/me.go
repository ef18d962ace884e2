package handlers

import (
	"github.com/go-chi/chi/v5"

	"github.com/oakmart/api/internal/platform/auth"
)

// MeHandlers composes the customer-scoped resources mounted under /me.
type MeHandlers struct {
	authn     *auth.Authenticator
	cart      *CartHandlers
	addresses *AddressHandlers
	cards     *CardHandlers
}

// NewMeHandlers constructs the /me route group.
func NewMeHandlers(authn *auth.Authenticator, cart *CartHandlers, addresses *AddressHandlers, cards *CardHandlers) *MeHandlers {
	return &MeHandlers{
		authn:     authn,
		cart:      cart,
		addresses: addresses,
		cards:     cards,
	}
}

// Routes registers the /me subtree.
func (h *MeHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	if h.cart != nil {
		r.Route("/cart", h.cart.Routes)
	}
	if h.addresses != nil {
		r.Route("/addresses", h.addresses.Routes)
	}
	if h.cards != nil {
		r.Route("/cards", h.cards.Routes)
	}
}
