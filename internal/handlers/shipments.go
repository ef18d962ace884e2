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

// ShipmentHandlers exposes shipment reads for authenticated customers.
type ShipmentHandlers struct {
	authn     *auth.Authenticator
	shipments services.ShipmentService
}

// NewShipmentHandlers constructs a new ShipmentHandlers instance.
func NewShipmentHandlers(authn *auth.Authenticator, shipments services.ShipmentService) *ShipmentHandlers {
	return &ShipmentHandlers{authn: authn, shipments: shipments}
}

// Routes registers the /shipments endpoints.
func (h *ShipmentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Get("/{shipmentID}", h.getShipment)
}

func (h *ShipmentHandlers) getShipment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	shipmentID := strings.TrimSpace(chi.URLParam(r, "shipmentID"))
	if shipmentID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "shipment id is required", http.StatusBadRequest))
		return
	}

	shipment, err := h.shipments.GetShipment(ctx, actor, shipmentID)
	if err != nil {
		writeShipmentError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, shipmentResponse{Shipment: buildShipmentPayload(shipment)})
}

type shipmentResponse struct {
	Shipment shipmentPayload `json:"shipment"`
}

type shipmentListResponse struct {
	Items         []shipmentPayload `json:"items"`
	NextPageToken string            `json:"next_page_token,omitempty"`
}

type shipmentPayload struct {
	ID                 string `json:"id"`
	OrderID            string `json:"order_id"`
	TrackingNumber     string `json:"tracking_number"`
	Carrier            string `json:"carrier"`
	Delivered          bool   `json:"delivered"`
	ExpectedDeliveryAt string `json:"expected_delivery_at,omitempty"`
	ActualDeliveryAt   string `json:"actual_delivery_at,omitempty"`
	CreatedAt          string `json:"created_at,omitempty"`
	UpdatedAt          string `json:"updated_at,omitempty"`
}

func buildShipmentPayload(shipment services.Shipment) shipmentPayload {
	return shipmentPayload{
		ID:                 shipment.ID,
		OrderID:            shipment.OrderID,
		TrackingNumber:     shipment.TrackingNumber,
		Carrier:            shipment.Carrier,
		Delivered:          shipment.Delivered,
		ExpectedDeliveryAt: formatTime(shipment.ExpectedDeliveryAt),
		ActualDeliveryAt:   formatTime(pointerTime(shipment.ActualDeliveryAt)),
		CreatedAt:          formatTime(shipment.CreatedAt),
		UpdatedAt:          formatTime(shipment.UpdatedAt),
	}
}

func writeShipmentError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrShipmentInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrShipmentUnauthorized):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "not allowed to access this shipment", http.StatusForbidden))
	case errors.Is(err, services.ErrShipmentNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("shipment_not_found", "shipment not found", http.StatusNotFound))
	case errors.Is(err, services.ErrShipmentAlreadyDelivered):
		httpx.WriteError(ctx, w, httpx.NewError("shipment_already_delivered", "shipment is already delivered", http.StatusConflict))
	case errors.Is(err, services.ErrShipmentUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("shipment_unavailable", "shipment service temporarily unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("shipment_error", "failed to process shipment request", http.StatusInternalServerError))
	}
}
