package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/oakmart/api/internal/domain"
	"github.com/oakmart/api/internal/repositories"
)

var (
	// ErrShipmentInvalidInput signals the caller provided invalid data.
	ErrShipmentInvalidInput = errors.New("shipment: invalid input")
	// ErrShipmentNotFound indicates the shipment could not be located.
	ErrShipmentNotFound = errors.New("shipment: not found")
	// ErrShipmentUnauthorized indicates the actor may not access the shipment.
	ErrShipmentUnauthorized = errors.New("shipment: unauthorized")
	// ErrShipmentAlreadyDelivered indicates the shipment has already been delivered.
	ErrShipmentAlreadyDelivered = errors.New("shipment: already delivered")
	// ErrShipmentUnavailable indicates a transient backend failure.
	ErrShipmentUnavailable = errors.New("shipment: repository unavailable")
)

// ShipmentServiceDeps bundles collaborators required to construct the shipment service.
type ShipmentServiceDeps struct {
	Shipments repositories.ShipmentRepository
	Orders    repositories.OrderRepository
	Events    OrderEventPublisher
	Clock     func() time.Time
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type shipmentService struct {
	shipments repositories.ShipmentRepository
	orders    repositories.OrderRepository
	events    OrderEventPublisher
	clock     func() time.Time
	logger    func(context.Context, string, map[string]any)
}

// NewShipmentService wires dependencies into a concrete ShipmentService implementation.
func NewShipmentService(deps ShipmentServiceDeps) (ShipmentService, error) {
	if deps.Shipments == nil {
		return nil, errors.New("shipment service: shipment repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("shipment service: order repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &shipmentService{
		shipments: deps.Shipments,
		orders:    deps.Orders,
		events:    deps.Events,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Update amends tracking details on an undelivered shipment.
func (s *shipmentService) Update(ctx context.Context, cmd UpdateShipmentCommand) (Shipment, error) {
	if !cmd.Actor.Admin {
		return Shipment{}, fmt.Errorf("%w: admin role required", ErrShipmentUnauthorized)
	}
	shipmentID := strings.TrimSpace(cmd.ShipmentID)
	if shipmentID == "" {
		return Shipment{}, fmt.Errorf("%w: shipment id is required", ErrShipmentInvalidInput)
	}

	shipment, err := s.shipments.FindByID(ctx, shipmentID)
	if err != nil {
		return Shipment{}, s.mapRepositoryError(err)
	}
	if shipment.Delivered {
		return Shipment{}, fmt.Errorf("%w: %s", ErrShipmentAlreadyDelivered, shipmentID)
	}

	changed := false
	if cmd.TrackingNumber != nil {
		tracking := strings.TrimSpace(*cmd.TrackingNumber)
		if tracking == "" {
			return Shipment{}, fmt.Errorf("%w: tracking number must not be empty", ErrShipmentInvalidInput)
		}
		shipment.TrackingNumber = tracking
		changed = true
	}
	if cmd.Carrier != nil {
		carrier := strings.TrimSpace(*cmd.Carrier)
		if carrier == "" {
			return Shipment{}, fmt.Errorf("%w: carrier must not be empty", ErrShipmentInvalidInput)
		}
		shipment.Carrier = carrier
		changed = true
	}
	if cmd.ExpectedDeliveryAt != nil {
		shipment.ExpectedDeliveryAt = cmd.ExpectedDeliveryAt.UTC()
		changed = true
	}
	if !changed {
		return shipment, nil
	}

	shipment.UpdatedAt = s.clock()
	if err := s.shipments.Update(ctx, shipment); err != nil {
		return Shipment{}, s.mapRepositoryError(err)
	}
	return shipment, nil
}

// MarkDelivered records delivery and force-forwards the parent order to
// delivered, whatever intermediate status it was in.
func (s *shipmentService) MarkDelivered(ctx context.Context, cmd MarkDeliveredCommand) (Shipment, error) {
	if !cmd.Actor.Admin {
		return Shipment{}, fmt.Errorf("%w: admin role required", ErrShipmentUnauthorized)
	}
	shipmentID := strings.TrimSpace(cmd.ShipmentID)
	if shipmentID == "" {
		return Shipment{}, fmt.Errorf("%w: shipment id is required", ErrShipmentInvalidInput)
	}

	shipment, err := s.shipments.FindByID(ctx, shipmentID)
	if err != nil {
		return Shipment{}, s.mapRepositoryError(err)
	}
	if shipment.Delivered {
		return Shipment{}, fmt.Errorf("%w: %s", ErrShipmentAlreadyDelivered, shipmentID)
	}

	now := s.clock()
	shipment.Delivered = true
	shipment.ActualDeliveryAt = &now
	shipment.UpdatedAt = now

	if err := s.shipments.Update(ctx, shipment); err != nil {
		return Shipment{}, s.mapRepositoryError(err)
	}

	order, err := s.orders.FindByID(ctx, shipment.OrderID)
	if err != nil {
		// Delivery is recorded even when the order lookup fails; surface the
		// inconsistency in the log rather than undoing the shipment write.
		s.logger(ctx, "shipment.order_lookup_failed", map[string]any{
			"shipment": shipment.ID,
			"order":    shipment.OrderID,
			"error":    err.Error(),
		})
		return shipment, nil
	}

	if order.Status != domain.OrderStatusDelivered && order.Status != domain.OrderStatusCancelled {
		prev := order.Status
		order.Status = domain.OrderStatusDelivered
		order.DeliveredAt = &now
		if order.ShippedAt == nil {
			order.ShippedAt = &now
		}
		order.UpdatedAt = now

		if err := s.orders.Update(ctx, order); err != nil {
			s.logger(ctx, "shipment.order_update_failed", map[string]any{
				"shipment": shipment.ID,
				"order":    order.ID,
				"error":    err.Error(),
			})
			return shipment, nil
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
	}

	return shipment, nil
}

func (s *shipmentService) GetShipment(ctx context.Context, actor Actor, shipmentID string) (Shipment, error) {
	shipmentID = strings.TrimSpace(shipmentID)
	if shipmentID == "" {
		return Shipment{}, fmt.Errorf("%w: shipment id is required", ErrShipmentInvalidInput)
	}

	shipment, err := s.shipments.FindByID(ctx, shipmentID)
	if err != nil {
		return Shipment{}, s.mapRepositoryError(err)
	}
	if err := s.authoriseForOrder(ctx, actor, shipment.OrderID); err != nil {
		return Shipment{}, err
	}
	return shipment, nil
}

func (s *shipmentService) GetByOrder(ctx context.Context, actor Actor, orderID string) (Shipment, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Shipment{}, fmt.Errorf("%w: order id is required", ErrShipmentInvalidInput)
	}

	if err := s.authoriseForOrder(ctx, actor, orderID); err != nil {
		return Shipment{}, err
	}

	shipment, err := s.shipments.FindByOrder(ctx, orderID)
	if err != nil {
		return Shipment{}, s.mapRepositoryError(err)
	}
	return shipment, nil
}

func (s *shipmentService) ListShipments(ctx context.Context, filter ShipmentListFilter) (domain.CursorPage[Shipment], error) {
	if !filter.Actor.Admin {
		return domain.CursorPage[Shipment]{}, fmt.Errorf("%w: admin role required", ErrShipmentUnauthorized)
	}

	page, err := s.shipments.List(ctx, repositories.ShipmentListFilter{
		DeliveredOnly:   filter.DeliveredOnly,
		UndeliveredOnly: filter.UndeliveredOnly,
		Pagination:      filter.Pagination,
	})
	if err != nil {
		return domain.CursorPage[Shipment]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *shipmentService) authoriseForOrder(ctx context.Context, actor Actor, orderID string) error {
	if actor.Admin {
		return nil
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return s.mapRepositoryError(err)
	}
	if !actor.CanAccess(order.CustomerID) {
		return fmt.Errorf("%w: order %s", ErrShipmentUnauthorized, orderID)
	}
	return nil
}

func (s *shipmentService) publishEvent(ctx context.Context, event OrderEvent) {
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

func (s *shipmentService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrShipmentNotFound, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrShipmentUnavailable, err)
		}
	}

	return err
}
