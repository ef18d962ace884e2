package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/oakmart/api/internal/domain"
	"github.com/oakmart/api/internal/platform/auth"
	"github.com/oakmart/api/internal/platform/httpx"
	"github.com/oakmart/api/internal/services"
)

const (
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
	maxOrderBodySize     = 16 * 1024
)

// OrderHandlers exposes order endpoints for authenticated customers.
type OrderHandlers struct {
	authn     *auth.Authenticator
	orders    services.OrderService
	shipments services.ShipmentService
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, shipments services.ShipmentService) *OrderHandlers {
	return &OrderHandlers{
		authn:     authn,
		orders:    orders,
		shipments: shipments,
	}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Post("/", h.placeOrder)
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Post("/{orderID}:cancel", h.cancelOrder)
	r.Get("/{orderID}/shipment", h.getShipment)
}

type placeOrderRequest struct {
	Items             []orderLinePayload `json:"items"`
	ShippingAddressID string             `json:"shipping_address_id"`
	BillingAddressID  string             `json:"billing_address_id"`
	PaymentMethod     string             `json:"payment_method"`
	StoredCardID      string             `json:"stored_card_id"`
	Card              *cardInputPayload  `json:"card"`
	SaveCard          bool               `json:"save_card"`
}

type orderLinePayload struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type cardInputPayload struct {
	Number   string `json:"number"`
	Provider string `json:"provider"`
	ExpMonth int    `json:"exp_month"`
	ExpYear  int    `json:"exp_year"`
	CVC      string `json:"cvc"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *OrderHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	var req placeOrderRequest
	if !decodeJSONBody(ctx, w, r, maxOrderBodySize, &req) {
		return
	}

	cmd := services.PlaceOrderCommand{
		Actor:             actor,
		ShippingAddressID: strings.TrimSpace(req.ShippingAddressID),
		BillingAddressID:  strings.TrimSpace(req.BillingAddressID),
		PaymentMethod:     domain.PaymentMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod))),
		StoredCardID:      strings.TrimSpace(req.StoredCardID),
		SaveCard:          req.SaveCard,
	}
	for _, item := range req.Items {
		cmd.Lines = append(cmd.Lines, services.OrderLineInput{
			ProductID: strings.TrimSpace(item.ProductID),
			Quantity:  item.Quantity,
		})
	}
	if req.Card != nil {
		cmd.Card = &domain.CardInput{
			Number:   req.Card.Number,
			Provider: req.Card.Provider,
			ExpMonth: req.Card.ExpMonth,
			ExpYear:  req.Card.ExpYear,
			CVC:      req.Card.CVC,
		}
	}

	order, err := h.orders.PlaceOrder(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
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
	if raw := strings.TrimSpace(query.Get("created_after")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_after must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		filter.From = &ts
	}
	if raw := strings.TrimSpace(query.Get("created_before")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_before must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		filter.To = &ts
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

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.GetOrder(ctx, actor, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	var req cancelOrderRequest
	body, err := readLimitedBody(r, maxOrderBodySize)
	switch {
	case err == nil:
		if jsonErr := decodeCancelBody(body, &req); jsonErr != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
			return
		}
	case errors.Is(err, errEmptyBody):
		// cancellation reason is optional
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		return
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	order, err := h.orders.Cancel(ctx, services.CancelOrderCommand{
		Actor:   actor,
		OrderID: orderID,
		Reason:  strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) getShipment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}
	if h.shipments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("shipment_unavailable", "shipment service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	shipment, err := h.shipments.GetByOrder(ctx, actor, orderID)
	if err != nil {
		writeShipmentError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, shipmentResponse{Shipment: buildShipmentPayload(shipment)})
}

type orderListResponse struct {
	Items         []orderSummaryPayload `json:"items"`
	NextPageToken string                `json:"next_page_token,omitempty"`
}

type orderSummaryPayload struct {
	ID            string `json:"id"`
	OrderNumber   string `json:"order_number"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	Currency      string `json:"currency"`
	Total         int64  `json:"total"`
	CreatedAt     string `json:"created_at"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderPayload struct {
	ID              string             `json:"id"`
	OrderNumber     string             `json:"order_number"`
	CustomerID      string             `json:"customer_id"`
	Status          string             `json:"status"`
	PaymentStatus   string             `json:"payment_status"`
	PaymentMethod   string             `json:"payment_method"`
	PaymentRef      string             `json:"payment_ref,omitempty"`
	Currency        string             `json:"currency"`
	Total           int64              `json:"total"`
	Items           []orderItemPayload `json:"items"`
	ShippingAddress addressPayload     `json:"shipping_address"`
	BillingAddress  addressPayload     `json:"billing_address"`
	CancelReason    string             `json:"cancel_reason,omitempty"`
	CreatedAt       string             `json:"created_at"`
	UpdatedAt       string             `json:"updated_at,omitempty"`
	ShippedAt       string             `json:"shipped_at,omitempty"`
	DeliveredAt     string             `json:"delivered_at,omitempty"`
	CanceledAt      string             `json:"canceled_at,omitempty"`
}

type orderItemPayload struct {
	ProductID string `json:"product_id"`
	SKU       string `json:"sku"`
	Name      string `json:"name,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Total     int64  `json:"total"`
}

func buildOrderSummary(order services.Order) orderSummaryPayload {
	return orderSummaryPayload{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		Currency:      strings.ToUpper(order.Currency),
		Total:         order.TotalPrice,
		CreatedAt:     formatTime(order.CreatedAt),
	}
}

func buildOrderPayload(order services.Order) orderPayload {
	items := make([]orderItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemPayload{
			ProductID: item.ProductID,
			SKU:       item.SKU,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.PriceAtPurchase,
			Total:     item.LineTotal,
		})
	}
	return orderPayload{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		CustomerID:      order.CustomerID,
		Status:          string(order.Status),
		PaymentStatus:   string(order.PaymentStatus),
		PaymentMethod:   string(order.PaymentMethod),
		PaymentRef:      order.PaymentRef,
		Currency:        strings.ToUpper(order.Currency),
		Total:           order.TotalPrice,
		Items:           items,
		ShippingAddress: buildAddressPayload(order.ShippingAddress),
		BillingAddress:  buildAddressPayload(order.BillingAddress),
		CancelReason:    order.CancelReason,
		CreatedAt:       formatTime(order.CreatedAt),
		UpdatedAt:       formatTime(order.UpdatedAt),
		ShippedAt:       formatTime(pointerTime(order.ShippedAt)),
		DeliveredAt:     formatTime(pointerTime(order.DeliveredAt)),
		CanceledAt:      formatTime(pointerTime(order.CanceledAt)),
	}
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderUnauthorized):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "not allowed to access this order", http.StatusForbidden))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderInsufficientStock):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderProductUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("product_unavailable", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_state", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("order_unavailable", "order service temporarily unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}

func decodeCancelBody(body []byte, dst *cancelOrderRequest) error {
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, dst)
}
