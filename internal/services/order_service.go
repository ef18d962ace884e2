package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/oakmart/api/internal/domain"
	"github.com/oakmart/api/internal/repositories"
)

const (
	orderEventPlaced        = "order.placed"
	orderEventStatusChanged = "order.status.changed"
	orderEventCancelled     = "order.cancelled"

	orderIDPrefix    = "ord_"
	shipmentIDPrefix = "shp_"

	defaultEventPublishTimeout = 10 * time.Second
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderUnauthorized indicates the actor may not access the order.
	ErrOrderUnauthorized = errors.New("order: unauthorized")
	// ErrOrderInvalidState indicates the order status forbids the operation.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderConflict indicates duplicates or concurrent modification.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderInsufficientStock indicates a cart line exceeds available stock.
	ErrOrderInsufficientStock = errors.New("order: insufficient stock")
	// ErrOrderProductUnavailable indicates a cart line references a withdrawn product.
	ErrOrderProductUnavailable = errors.New("order: product not available")
	// ErrOrderUnavailable indicates a transient backend failure.
	ErrOrderUnavailable = errors.New("order: repository unavailable")
)

// Forward-only lifecycle. Cancellation is not part of the map because it runs
// through Cancel with its own compensation.
var orderStateTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:    {domain.OrderStatusProcessing},
	domain.OrderStatusProcessing: {domain.OrderStatusShipped},
	domain.OrderStatusShipped:    {domain.OrderStatusDelivered},
}

// ShippingDefaults control how shipments are materialised at placement time.
type ShippingDefaults struct {
	Carrier      string
	DeliveryDays int
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders        repositories.OrderRepository
	Carts         repositories.CartRepository
	Catalog       repositories.CatalogRepository
	Addresses     repositories.AddressRepository
	Cards         repositories.StoredCardRepository
	Counters      repositories.CounterRepository
	Shipments     repositories.ShipmentRepository
	Gateway       PaymentGateway
	Events        OrderEventPublisher
	Shipping      ShippingDefaults
	ChargeTimeout time.Duration
	Clock         func() time.Time
	IDGenerator   func() string
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders        repositories.OrderRepository
	carts         repositories.CartRepository
	catalog       repositories.CatalogRepository
	addresses     repositories.AddressRepository
	cards         repositories.StoredCardRepository
	counters      repositories.CounterRepository
	shipments     repositories.ShipmentRepository
	gateway       PaymentGateway
	events        OrderEventPublisher
	shipping      ShippingDefaults
	chargeTimeout time.Duration
	clock         func() time.Time
	newID         func() string
	logger        func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Carts == nil {
		return nil, errors.New("order service: cart repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("order service: catalog repository is required")
	}
	if deps.Addresses == nil {
		return nil, errors.New("order service: address repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}
	if deps.Shipments == nil {
		return nil, errors.New("order service: shipment repository is required")
	}

	shipping := deps.Shipping
	if shipping.Carrier == "" {
		shipping.Carrier = "Standard Delivery"
	}
	if shipping.DeliveryDays <= 0 {
		shipping.DeliveryDays = 5
	}

	chargeTimeout := deps.ChargeTimeout
	if chargeTimeout <= 0 {
		chargeTimeout = 10 * time.Second
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:        deps.Orders,
		carts:         deps.Carts,
		catalog:       deps.Catalog,
		addresses:     deps.Addresses,
		cards:         deps.Cards,
		counters:      deps.Counters,
		shipments:     deps.Shipments,
		gateway:       deps.Gateway,
		events:        deps.Events,
		shipping:      shipping,
		chargeTimeout: chargeTimeout,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// PlaceOrder turns the actor's cart into an order. The storage transaction
// covers stock decrements, the order insert, shipment creation, and the cart
// clear; the payment charge runs exactly once after the transaction commits.
func (s *orderService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error) {
	customerID := strings.TrimSpace(cmd.Actor.ID)
	if customerID == "" {
		return Order{}, fmt.Errorf("%w: actor id is required", ErrOrderUnauthorized)
	}

	method := cmd.PaymentMethod
	switch method {
	case domain.PaymentMethodCOD:
	case domain.PaymentMethodCard:
		if cmd.Card == nil && strings.TrimSpace(cmd.StoredCardID) == "" {
			return Order{}, fmt.Errorf("%w: card details or stored card id required for card payment", ErrOrderInvalidInput)
		}
	default:
		return Order{}, fmt.Errorf("%w: unsupported payment method %q", ErrOrderInvalidInput, method)
	}

	// Fresh card details are validated before anything is persisted; a charge
	// that could never succeed must not place the order.
	if method == domain.PaymentMethodCard && cmd.Card != nil && strings.TrimSpace(cmd.StoredCardID) == "" {
		if err := ValidateCardInput(*cmd.Card, s.clock()); err != nil {
			return Order{}, fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
		}
	}

	if strings.TrimSpace(cmd.StoredCardID) != "" {
		if s.cards == nil {
			return Order{}, fmt.Errorf("%w: stored cards are not supported", ErrOrderInvalidInput)
		}
		if _, err := s.cards.Get(ctx, customerID, strings.TrimSpace(cmd.StoredCardID)); err != nil {
			if isNotFound(err) {
				// A card that does not exist for this customer may belong to
				// another one; either way the actor has no claim to it.
				return Order{}, fmt.Errorf("%w: stored card %s", ErrOrderUnauthorized, cmd.StoredCardID)
			}
			return Order{}, s.mapRepositoryError(err)
		}
	}

	lines, clearCartFor, err := s.resolveOrderLines(ctx, customerID, cmd.Lines)
	if err != nil {
		return Order{}, err
	}

	shippingAddr, err := s.loadAddress(ctx, customerID, cmd.ShippingAddressID, "shipping")
	if err != nil {
		return Order{}, err
	}
	billingAddr := shippingAddr
	if strings.TrimSpace(cmd.BillingAddressID) != "" {
		billingAddr, err = s.loadAddress(ctx, customerID, cmd.BillingAddressID, "billing")
		if err != nil {
			return Order{}, err
		}
	}

	now := s.clock()

	items := make([]OrderItem, 0, len(lines))
	currency := ""
	var total int64
	for _, line := range lines {
		if line.Quantity <= 0 {
			return Order{}, fmt.Errorf("%w: quantity for product %s must be positive", ErrOrderInvalidInput, line.ProductID)
		}
		product, err := s.catalog.FindByID(ctx, line.ProductID)
		if err != nil {
			if isNotFound(err) {
				return Order{}, fmt.Errorf("%w: product %s no longer exists", ErrOrderInvalidInput, line.ProductID)
			}
			return Order{}, s.mapRepositoryError(err)
		}
		if !product.Available {
			return Order{}, fmt.Errorf("%w: %s", ErrOrderProductUnavailable, product.ID)
		}
		if currency == "" {
			currency = product.Currency
		} else if product.Currency != currency {
			return Order{}, fmt.Errorf("%w: cart mixes currencies %s and %s", ErrOrderInvalidInput, currency, product.Currency)
		}

		lineTotal := product.UnitPrice * int64(line.Quantity)
		items = append(items, OrderItem{
			ProductID:       product.ID,
			SKU:             product.SKU,
			Name:            product.Name,
			Quantity:        line.Quantity,
			PriceAtPurchase: product.UnitPrice,
			LineTotal:       lineTotal,
		})
		total += lineTotal
	}

	orderNumber, err := s.generateOrderNumber(ctx, now)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	order := Order{
		ID:              orderIDPrefix + s.newID(),
		OrderNumber:     orderNumber,
		CustomerID:      customerID,
		Status:          domain.OrderStatusPending,
		PaymentStatus:   domain.PaymentStatusPending,
		PaymentMethod:   method,
		Currency:        currency,
		TotalPrice:      total,
		Items:           items,
		ShippingAddress: shippingAddr,
		BillingAddress:  billingAddr,
	}

	shipment := Shipment{
		ID:                 shipmentIDPrefix + s.newID(),
		OrderID:            order.ID,
		Carrier:            s.shipping.Carrier,
		ExpectedDeliveryAt: now.AddDate(0, 0, s.shipping.DeliveryDays),
	}
	shipment.TrackingNumber = trackingNumberFor(shipment.ID)

	placed, err := s.orders.PlaceOrder(ctx, repositories.PlaceOrderRequest{
		Order:        order,
		Shipment:     shipment,
		ClearCartFor: clearCartFor,
		Now:          now,
	})
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	placed = s.chargePayment(ctx, placed, cmd)

	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventPlaced,
		OrderID:       placed.ID,
		OrderNumber:   placed.OrderNumber,
		CustomerID:    placed.CustomerID,
		Status:        string(placed.Status),
		PaymentStatus: string(placed.PaymentStatus),
		ActorID:       cmd.Actor.ID,
		OccurredAt:    now,
	})

	return placed, nil
}

// resolveOrderLines picks the line source for placement: explicit lines when
// the caller provides them, the customer's cart otherwise. Only a cart-sourced
// placement clears the cart.
func (s *orderService) resolveOrderLines(ctx context.Context, customerID string, explicit []OrderLineInput) ([]domain.CartLine, string, error) {
	if len(explicit) > 0 {
		lines := make([]domain.CartLine, 0, len(explicit))
		for _, line := range explicit {
			productID := strings.TrimSpace(line.ProductID)
			if productID == "" {
				return nil, "", fmt.Errorf("%w: line item product id is required", ErrOrderInvalidInput)
			}
			lines = append(lines, domain.CartLine{ProductID: productID, Quantity: line.Quantity})
		}
		return lines, "", nil
	}

	cart, err := s.carts.Get(ctx, customerID)
	if err != nil {
		if isNotFound(err) {
			return nil, "", fmt.Errorf("%w: cart is empty", ErrOrderInvalidInput)
		}
		return nil, "", s.mapRepositoryError(err)
	}
	if len(cart.Lines) == 0 {
		return nil, "", fmt.Errorf("%w: cart is empty", ErrOrderInvalidInput)
	}
	return cart.Lines, customerID, nil
}

// chargePayment runs the single post-commit charge attempt. A transport
// failure or timeout leaves the payment pending for later reconciliation; a
// provider decline marks it failed. The order itself stays placed either way.
func (s *orderService) chargePayment(ctx context.Context, order Order, cmd PlaceOrderCommand) Order {
	if s.gateway == nil {
		return order
	}

	chargeCtx, cancel := context.WithTimeout(ctx, s.chargeTimeout)
	defer cancel()

	result, err := s.gateway.Charge(chargeCtx, PaymentChargeRequest{
		OrderID:      order.ID,
		OrderNumber:  order.OrderNumber,
		CustomerID:   order.CustomerID,
		Method:       cmd.PaymentMethod,
		AmountMinor:  order.TotalPrice,
		Currency:     order.Currency,
		Card:         cmd.Card,
		StoredCardID: strings.TrimSpace(cmd.StoredCardID),
	})
	if err != nil {
		s.logger(ctx, "order.payment.deferred", map[string]any{
			"order": order.ID,
			"error": err.Error(),
		})
		return order
	}

	switch result.Status {
	case domain.PaymentStatusCompleted, domain.PaymentStatusFailed, domain.PaymentStatusPending:
	default:
		s.logger(ctx, "order.payment.unexpected_status", map[string]any{
			"order":  order.ID,
			"status": string(result.Status),
		})
		return order
	}

	if result.Status == domain.PaymentStatusFailed {
		s.logger(ctx, "order.payment.declined", map[string]any{
			"order":  order.ID,
			"reason": result.FailureReason,
		})
	}

	// The outcome is recorded against the re-read order so a cancellation
	// that won the race during the charge window is never overwritten.
	recorded, err := s.orders.RecordPaymentOutcome(ctx, repositories.PaymentOutcomeRequest{
		OrderID:   order.ID,
		Status:    result.Status,
		Reference: result.Reference,
		Now:       s.clock(),
	})
	if err != nil {
		s.logger(ctx, "order.payment.record_failed", map[string]any{
			"order":  order.ID,
			"status": string(result.Status),
			"error":  err.Error(),
		})
		return order
	}

	if cmd.SaveCard && cmd.Card != nil && result.Status == domain.PaymentStatusCompleted {
		s.saveChargedCard(ctx, recorded.CustomerID, *cmd.Card, result)
	}

	return recorded
}

// saveChargedCard persists a card reference after a successful charge with
// freshly entered details. Failures are logged; the order is already paid.
func (s *orderService) saveChargedCard(ctx context.Context, customerID string, card CardInput, result PaymentChargeResult) {
	if s.cards == nil {
		return
	}
	number := digitsOnly(card.Number)
	if len(number) < 4 {
		return
	}
	token := strings.TrimSpace(result.CardToken)
	if token == "" {
		token = "tok_" + s.newID()
	}
	now := s.clock()
	stored := StoredCard{
		ID:         cardIDPrefix + s.newID(),
		CustomerID: customerID,
		Provider:   strings.ToLower(strings.TrimSpace(card.Provider)),
		Token:      token,
		Last4:      number[len(number)-4:],
		ExpMonth:   card.ExpMonth,
		ExpYear:    card.ExpYear,
		CreatedAt:  now,
	}
	if _, err := s.cards.Insert(ctx, stored); err != nil {
		s.logger(ctx, "order.card.save_failed", map[string]any{
			"customer": customerID,
			"error":    err.Error(),
		})
	}
}

func (s *orderService) GetOrder(ctx context.Context, actor Actor, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if !actor.CanAccess(order.CustomerID) {
		return Order{}, fmt.Errorf("%w: order %s", ErrOrderUnauthorized, orderID)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, actor Actor, filter OrderListFilter) (domain.CursorPage[Order], error) {
	customerID := strings.TrimSpace(filter.CustomerID)
	if !actor.Admin {
		customerID = strings.TrimSpace(actor.ID)
		if customerID == "" {
			return domain.CursorPage[Order]{}, fmt.Errorf("%w: actor id is required", ErrOrderUnauthorized)
		}
	}

	statuses := make([]string, 0, len(filter.Status))
	for _, status := range filter.Status {
		statuses = append(statuses, string(status))
	}

	page, err := s.orders.List(ctx, repositories.OrderListFilter{
		CustomerID: customerID,
		Status:     statuses,
		DateRange:  domain.RangeQuery[time.Time]{From: filter.From, To: filter.To},
		Pagination: filter.Pagination,
	})
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

// TransitionStatus moves an order forward through its lifecycle. Only admins
// may transition orders, and cancellation is rejected here because it carries
// compensation handled by Cancel.
func (s *orderService) TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error) {
	if !cmd.Actor.Admin {
		return Order{}, fmt.Errorf("%w: admin role required", ErrOrderUnauthorized)
	}
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	target := cmd.TargetStatus
	if target == "" {
		return Order{}, fmt.Errorf("%w: target status is required", ErrOrderInvalidInput)
	}
	if target == domain.OrderStatusCancelled {
		return Order{}, fmt.Errorf("%w: use the cancel operation to cancel an order", ErrOrderInvalidState)
	}
	if !isKnownStatus(target) {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, target)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if order.Status == target {
		return order, nil
	}
	if !canTransition(order.Status, target) {
		return Order{}, fmt.Errorf("%w: %s to %s", ErrOrderInvalidState, order.Status, target)
	}

	now := s.clock()
	prev := order.Status
	order.Status = target
	order.UpdatedAt = now
	switch target {
	case domain.OrderStatusShipped:
		order.ShippedAt = &now
	case domain.OrderStatusDelivered:
		order.DeliveredAt = &now
		if order.ShippedAt == nil {
			order.ShippedAt = &now
		}
	}

	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if target == domain.OrderStatusShipped || target == domain.OrderStatusDelivered {
		s.syncShipmentStatus(ctx, order, now)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		CustomerID:     order.CustomerID,
		PreviousStatus: string(prev),
		Status:         string(order.Status),
		PaymentStatus:  string(order.PaymentStatus),
		ActorID:        cmd.Actor.ID,
		OccurredAt:     now,
	})

	return order, nil
}

// syncShipmentStatus mirrors a shipped or delivered transition onto the
// order's shipment. The order update has already committed, so failures here
// are logged rather than unwinding the transition.
func (s *orderService) syncShipmentStatus(ctx context.Context, order Order, now time.Time) {
	shipment, err := s.shipments.FindByOrder(ctx, order.ID)
	if err != nil {
		s.logger(ctx, "order.shipment_lookup_failed", map[string]any{
			"order": order.ID,
			"error": err.Error(),
		})
		return
	}

	switch order.Status {
	case domain.OrderStatusShipped:
		shipment.Delivered = false
		shipment.ActualDeliveryAt = nil
	case domain.OrderStatusDelivered:
		shipment.Delivered = true
		shipment.ActualDeliveryAt = &now
	default:
		return
	}
	shipment.UpdatedAt = now

	if err := s.shipments.Update(ctx, shipment); err != nil {
		s.logger(ctx, "order.shipment_update_failed", map[string]any{
			"order":    order.ID,
			"shipment": shipment.ID,
			"error":    err.Error(),
		})
	}
}

// Cancel cancels a pending or processing order. The repository transaction
// restocks every item and flips completed payments to refunded.
func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if !cmd.Actor.CanAccess(order.CustomerID) {
		return Order{}, fmt.Errorf("%w: order %s", ErrOrderUnauthorized, orderID)
	}

	now := s.clock()
	prev := order.Status

	cancelled, err := s.orders.CancelOrder(ctx, repositories.CancelOrderRequest{
		OrderID: orderID,
		Reason:  strings.TrimSpace(cmd.Reason),
		Now:     now,
	})
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventCancelled,
		OrderID:        cancelled.ID,
		OrderNumber:    cancelled.OrderNumber,
		CustomerID:     cancelled.CustomerID,
		PreviousStatus: string(prev),
		Status:         string(cancelled.Status),
		PaymentStatus:  string(cancelled.PaymentStatus),
		ActorID:        cmd.Actor.ID,
		OccurredAt:     now,
		Metadata:       cancelMetadata(cmd.Reason),
	})

	return cancelled, nil
}

func (s *orderService) loadAddress(ctx context.Context, customerID, addressID, kind string) (Address, error) {
	addressID = strings.TrimSpace(addressID)
	if addressID == "" {
		return Address{}, fmt.Errorf("%w: %s address id is required", ErrOrderInvalidInput, kind)
	}
	addr, err := s.addresses.Get(ctx, customerID, addressID)
	if err != nil {
		if isNotFound(err) {
			return Address{}, fmt.Errorf("%w: %s address %s not found", ErrOrderInvalidInput, kind, addressID)
		}
		return Address{}, s.mapRepositoryError(err)
	}
	return addr, nil
}

func (s *orderService) generateOrderNumber(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.counters.Next(ctx, fmt.Sprintf("orders:%d", now.Year()), 1)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("OM-%04d-%06d", now.Year(), seq), nil
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var orderErr *repositories.OrderError
	if errors.As(err, &orderErr) {
		switch orderErr.Code {
		case repositories.OrderErrorInsufficientStock:
			return fmt.Errorf("%w: %v", ErrOrderInsufficientStock, err)
		case repositories.OrderErrorProductNotFound:
			return fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
		case repositories.OrderErrorProductUnavailable:
			return fmt.Errorf("%w: %v", ErrOrderProductUnavailable, err)
		case repositories.OrderErrorInvalidState:
			return fmt.Errorf("%w: %v", ErrOrderInvalidState, err)
		}
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
		}
	}

	return err
}

// publishEvent notifies downstream consumers without blocking or failing the
// request. Publish errors are logged and swallowed.
func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	logger := s.logger
	events := s.events
	go func() {
		publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultEventPublishTimeout)
		defer cancel()
		if _, err := events.PublishOrderEvent(publishCtx, event); err != nil {
			logger(publishCtx, "order.event.publish_failed", map[string]any{
				"type":  event.Type,
				"order": event.OrderID,
				"error": err.Error(),
			})
		}
	}()
}

func cancelMetadata(reason string) map[string]any {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil
	}
	return map[string]any{"reason": reason}
}

func trackingNumberFor(shipmentID string) string {
	cleaned := strings.ToUpper(strings.TrimPrefix(shipmentID, shipmentIDPrefix))
	if len(cleaned) > 8 {
		cleaned = cleaned[:8]
	}
	return "TRK" + cleaned
}

func isKnownStatus(status domain.OrderStatus) bool {
	switch status {
	case domain.OrderStatusPending, domain.OrderStatusProcessing, domain.OrderStatusShipped, domain.OrderStatusDelivered, domain.OrderStatusCancelled:
		return true
	}
	return false
}

func canTransition(current, target domain.OrderStatus) bool {
	for _, next := range orderStateTransitions[current] {
		if next == target {
			return true
		}
	}
	return false
}
