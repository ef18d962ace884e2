package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/oakmart/api/internal/domain"
	"github.com/oakmart/api/internal/platform/auth"
	"github.com/oakmart/api/internal/platform/httpx"
	"github.com/oakmart/api/internal/services"
)

const (
	defaultShipmentPageSize = 50
	maxShipmentPageSize     = 200
	maxAdminBodySize        = 16 * 1024
)

// AdminHandlers exposes store management endpoints under /admin. Every route
// requires the admin role.
type AdminHandlers struct {
	authn     *auth.Authenticator
	catalog   services.CatalogService
	orders    services.OrderService
	shipments services.ShipmentService
}

// NewAdminHandlers constructs a new AdminHandlers instance.
func NewAdminHandlers(authn *auth.Authenticator, catalog services.CatalogService, orders services.OrderService, shipments services.ShipmentService) *AdminHandlers {
	return &AdminHandlers{
		authn:     authn,
		catalog:   catalog,
		orders:    orders,
		shipments: shipments,
	}
}

// Routes registers the /admin endpoints.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth(auth.RoleAdmin))
	}
	r.Post("/products", h.upsertProduct)
	r.Put("/products/{productID}", h.upsertProductByID)
	r.Post("/products/{productID}:adjust-stock", h.adjustStock)
	r.Get("/orders", h.listOrders)
	r.Post("/orders/{orderID}:status", h.transitionOrder)
	r.Get("/shipments", h.listShipments)
	r.Patch("/shipments/{shipmentID}", h.updateShipment)
	r.Post("/shipments/{shipmentID}:deliver", h.markDelivered)
}

type upsertProductRequest struct {
	SKU         string `json:"sku"`
	Name        string `json:"name"`
	Description string `json:"description"`
	UnitPrice   int64  `json:"unit_price"`
	Currency    string `json:"currency"`
	Stock       *int   `json:"stock"`
	Available   *bool  `json:"available"`
}

type adjustStockRequest struct {
	Delta int `json:"delta"`
}

type transitionOrderRequest struct {
	Status string `json:"status"`
}

type updateShipmentRequest struct {
	TrackingNumber     *string `json:"tracking_number"`
	Carrier            *string `json:"carrier"`
	ExpectedDeliveryAt *string `json:"expected_delivery_at"`
}

func (h *AdminHandlers) upsertProduct(w http.ResponseWriter, r *http.Request) {
	h.saveProduct(w, r, "")
}

func (h *AdminHandlers) upsertProductByID(w http.ResponseWriter, r *http.Request) {
	h.saveProduct(w, r, strings.TrimSpace(chi.URLParam(r, "productID")))
}

func (h *AdminHandlers) saveProduct(w http.ResponseWriter, r *http.Request, productID string) {
	ctx := r.Context()
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	var req upsertProductRequest
	if !decodeJSONBody(ctx, w, r, maxAdminBodySize, &req) {
		return
	}

	product, err := h.catalog.UpsertProduct(ctx, services.UpsertProductCommand{
		Actor:       actor,
		ProductID:   productID,
		SKU:         req.SKU,
		Name:        req.Name,
		Description: req.Description,
		UnitPrice:   req.UnitPrice,
		Currency:    req.Currency,
		Stock:       req.Stock,
		Available:   req.Available,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	status := http.StatusOK
	if productID == "" {
		status = http.StatusCreated
	}
	writeJSONResponse(w, status, productResponse{Product: buildProductPayload(product)})
}

func (h *AdminHandlers) adjustStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	var req adjustStockRequest
	if !decodeJSONBody(ctx, w, r, maxAdminBodySize, &req) {
		return
	}

	product, err := h.catalog.AdjustStock(ctx, services.AdjustStockCommand{
		Actor:     actor,
		ProductID: productID,
		Delta:     req.Delta,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, productResponse{Product: buildProductPayload(product)})
}

func (h *AdminHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	query := r.URL.Query()
	pagination, err := parsePagination(query, defaultOrderPageSize, maxOrderPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	filter := services.OrderListFilter{
		CustomerID: strings.TrimSpace(query.Get("customer_id")),
		Pagination: pagination,
	}
	for _, status := range parseFilterValues(query["status"]) {
		filter.Status = append(filter.Status, domain.OrderStatus(status))
	}

	page, err := h.orders.ListOrders(ctx, actor, filter)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	items := make([]orderSummaryPayload, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, buildOrderSummary(order))
	}
	writeJSONResponse(w, http.StatusOK, orderListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *AdminHandlers) transitionOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	var req transitionOrderRequest
	if !decodeJSONBody(ctx, w, r, maxAdminBodySize, &req) {
		return
	}

	order, err := h.orders.TransitionStatus(ctx, services.OrderStatusTransitionCommand{
		Actor:        actor,
		OrderID:      orderID,
		TargetStatus: domain.OrderStatus(strings.ToLower(strings.TrimSpace(req.Status))),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *AdminHandlers) listShipments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	query := r.URL.Query()
	pagination, err := parsePagination(query, defaultShipmentPageSize, maxShipmentPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	filter := services.ShipmentListFilter{
		Actor:      actor,
		Pagination: pagination,
	}
	switch strings.ToLower(strings.TrimSpace(query.Get("delivered"))) {
	case "true":
		filter.DeliveredOnly = true
	case "false":
		filter.UndeliveredOnly = true
	}

	page, err := h.shipments.ListShipments(ctx, filter)
	if err != nil {
		writeShipmentError(ctx, w, err)
		return
	}

	items := make([]shipmentPayload, 0, len(page.Items))
	for _, shipment := range page.Items {
		items = append(items, buildShipmentPayload(shipment))
	}
	writeJSONResponse(w, http.StatusOK, shipmentListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *AdminHandlers) updateShipment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	shipmentID := strings.TrimSpace(chi.URLParam(r, "shipmentID"))
	var req updateShipmentRequest
	if !decodeJSONBody(ctx, w, r, maxAdminBodySize, &req) {
		return
	}

	cmd := services.UpdateShipmentCommand{
		Actor:          actor,
		ShipmentID:     shipmentID,
		TrackingNumber: req.TrackingNumber,
		Carrier:        req.Carrier,
	}
	if req.ExpectedDeliveryAt != nil {
		ts, err := parseTimeParam(strings.TrimSpace(*req.ExpectedDeliveryAt))
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "expected_delivery_at must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		cmd.ExpectedDeliveryAt = &ts
	}

	shipment, err := h.shipments.Update(ctx, cmd)
	if err != nil {
		writeShipmentError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, shipmentResponse{Shipment: buildShipmentPayload(shipment)})
}

func (h *AdminHandlers) markDelivered(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	shipmentID := strings.TrimSpace(chi.URLParam(r, "shipmentID"))
	shipment, err := h.shipments.MarkDelivered(ctx, services.MarkDeliveredCommand{
		Actor:      actor,
		ShipmentID: shipmentID,
	})
	if err != nil {
		writeShipmentError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, shipmentResponse{Shipment: buildShipmentPayload(shipment)})
}
