package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/oakmart/api/internal/platform/httpx"
	"github.com/oakmart/api/internal/services"
)

const maxAddressBodySize = 8 * 1024

// AddressHandlers exposes the customer's address book under /me/addresses.
type AddressHandlers struct {
	addresses services.AddressService
}

// NewAddressHandlers constructs a new AddressHandlers instance.
func NewAddressHandlers(addresses services.AddressService) *AddressHandlers {
	return &AddressHandlers{addresses: addresses}
}

// Routes registers the address book endpoints. Callers mount this inside an
// authenticated group.
func (h *AddressHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listAddresses)
	r.Post("/", h.createAddress)
	r.Get("/{addressID}", h.getAddress)
	r.Put("/{addressID}", h.updateAddress)
	r.Delete("/{addressID}", h.deleteAddress)
}

type addressRequest struct {
	Recipient  string `json:"recipient"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone"`
}

func (h *AddressHandlers) listAddresses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	addresses, err := h.addresses.ListAddresses(ctx, actor.ID)
	if err != nil {
		writeAddressError(ctx, w, err)
		return
	}

	items := make([]addressPayload, 0, len(addresses))
	for _, addr := range addresses {
		items = append(items, buildAddressPayload(addr))
	}
	writeJSONResponse(w, http.StatusOK, addressListResponse{Items: items})
}

func (h *AddressHandlers) getAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	addressID := strings.TrimSpace(chi.URLParam(r, "addressID"))
	addr, err := h.addresses.GetAddress(ctx, actor.ID, addressID)
	if err != nil {
		writeAddressError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, addressResponse{Address: buildAddressPayload(addr)})
}

func (h *AddressHandlers) createAddress(w http.ResponseWriter, r *http.Request) {
	h.saveAddress(w, r, "")
}

func (h *AddressHandlers) updateAddress(w http.ResponseWriter, r *http.Request) {
	h.saveAddress(w, r, strings.TrimSpace(chi.URLParam(r, "addressID")))
}

func (h *AddressHandlers) saveAddress(w http.ResponseWriter, r *http.Request, addressID string) {
	ctx := r.Context()
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	var req addressRequest
	if !decodeJSONBody(ctx, w, r, maxAddressBodySize, &req) {
		return
	}

	addr, err := h.addresses.SaveAddress(ctx, services.SaveAddressCommand{
		CustomerID: actor.ID,
		AddressID:  addressID,
		Recipient:  req.Recipient,
		Line1:      req.Line1,
		Line2:      req.Line2,
		City:       req.City,
		Region:     req.Region,
		PostalCode: req.PostalCode,
		Country:    req.Country,
		Phone:      req.Phone,
	})
	if err != nil {
		writeAddressError(ctx, w, err)
		return
	}

	status := http.StatusOK
	if addressID == "" {
		status = http.StatusCreated
	}
	writeJSONResponse(w, status, addressResponse{Address: buildAddressPayload(addr)})
}

func (h *AddressHandlers) deleteAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	addressID := strings.TrimSpace(chi.URLParam(r, "addressID"))
	if err := h.addresses.DeleteAddress(ctx, actor.ID, addressID); err != nil {
		writeAddressError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addressListResponse struct {
	Items []addressPayload `json:"items"`
}

type addressResponse struct {
	Address addressPayload `json:"address"`
}

type addressPayload struct {
	ID         string `json:"id,omitempty"`
	Recipient  string `json:"recipient"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

func buildAddressPayload(addr services.Address) addressPayload {
	return addressPayload{
		ID:         addr.ID,
		Recipient:  addr.Recipient,
		Line1:      addr.Line1,
		Line2:      addr.Line2,
		City:       addr.City,
		Region:     addr.Region,
		PostalCode: addr.PostalCode,
		Country:    strings.ToUpper(addr.Country),
		Phone:      addr.Phone,
		CreatedAt:  formatTime(addr.CreatedAt),
		UpdatedAt:  formatTime(addr.UpdatedAt),
	}
}

func writeAddressError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrAddressInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrAddressNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("address_not_found", "address not found", http.StatusNotFound))
	case errors.Is(err, services.ErrAddressUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("address_unavailable", "address book temporarily unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("address_error", "failed to process address request", http.StatusInternalServerError))
	}
}
