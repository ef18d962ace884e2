package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/oakmart/api/internal/domain"
)

type shipmentServiceFixture struct {
	shipments *stubShipmentRepository
	orders    *stubOrderRepository
	events    *stubEventPublisher
	service   ShipmentService
}

func newShipmentServiceFixture(t *testing.T) *shipmentServiceFixture {
	t.Helper()

	f := &shipmentServiceFixture{
		shipments: newStubShipmentRepository(domain.Shipment{
			ID: "shp_1", OrderID: "ord_1", TrackingNumber: "TRK1", Carrier: "Standard Delivery",
		}),
		orders: newStubOrderRepository(domain.Order{
			ID: "ord_1", OrderNumber: "OM-2026-000001", CustomerID: "cus_1", Status: domain.OrderStatusShipped,
		}),
		events: newStubEventPublisher(),
	}

	service, err := NewShipmentService(ShipmentServiceDeps{
		Shipments: f.shipments,
		Orders:    f.orders,
		Events:    f.events,
		Clock:     fixedClock(testNow),
	})
	if err != nil {
		t.Fatalf("NewShipmentService: %v", err)
	}
	f.service = service
	return f
}

func TestUpdateShipment(t *testing.T) {
	f := newShipmentServiceFixture(t)
	tracking := "TRKNEW"
	carrier := "Express"
	eta := testNow.AddDate(0, 0, 2)

	shipment, err := f.service.Update(context.Background(), UpdateShipmentCommand{
		Actor:              Actor{ID: "adm_1", Admin: true},
		ShipmentID:         "shp_1",
		TrackingNumber:     &tracking,
		Carrier:            &carrier,
		ExpectedDeliveryAt: &eta,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if shipment.TrackingNumber != "TRKNEW" || shipment.Carrier != "Express" {
		t.Fatalf("shipment = %+v", shipment)
	}
	if !shipment.ExpectedDeliveryAt.Equal(eta) {
		t.Fatalf("eta = %s", shipment.ExpectedDeliveryAt)
	}
}

func TestUpdateShipmentRequiresAdmin(t *testing.T) {
	f := newShipmentServiceFixture(t)
	tracking := "TRKNEW"

	_, err := f.service.Update(context.Background(), UpdateShipmentCommand{
		Actor:          Actor{ID: "cus_1"},
		ShipmentID:     "shp_1",
		TrackingNumber: &tracking,
	})
	if !errors.Is(err, ErrShipmentUnauthorized) {
		t.Fatalf("err = %v, want ErrShipmentUnauthorized", err)
	}
}

func TestUpdateDeliveredShipmentRejected(t *testing.T) {
	f := newShipmentServiceFixture(t)
	shipment := f.shipments.shipments["shp_1"]
	shipment.Delivered = true
	f.shipments.shipments["shp_1"] = shipment
	carrier := "Express"

	_, err := f.service.Update(context.Background(), UpdateShipmentCommand{
		Actor:      Actor{ID: "adm_1", Admin: true},
		ShipmentID: "shp_1",
		Carrier:    &carrier,
	})
	if !errors.Is(err, ErrShipmentAlreadyDelivered) {
		t.Fatalf("err = %v, want ErrShipmentAlreadyDelivered", err)
	}
}

func TestMarkDeliveredForcesOrderToDelivered(t *testing.T) {
	f := newShipmentServiceFixture(t)
	f.orders.orders["ord_1"] = domain.Order{
		ID: "ord_1", OrderNumber: "OM-2026-000001", CustomerID: "cus_1", Status: domain.OrderStatusProcessing,
	}

	shipment, err := f.service.MarkDelivered(context.Background(), MarkDeliveredCommand{
		Actor:      Actor{ID: "adm_1", Admin: true},
		ShipmentID: "shp_1",
	})
	if err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}
	if !shipment.Delivered || shipment.ActualDeliveryAt == nil {
		t.Fatalf("shipment = %+v", shipment)
	}

	order := f.orders.orders["ord_1"]
	if order.Status != domain.OrderStatusDelivered {
		t.Fatalf("order status = %s, want delivered", order.Status)
	}
	if order.DeliveredAt == nil || order.ShippedAt == nil {
		t.Fatalf("timestamps = %v / %v, ShippedAt must be backfilled", order.DeliveredAt, order.ShippedAt)
	}

	event, ok := f.events.wait(time.Second)
	if !ok {
		t.Fatal("no status change event published")
	}
	if event.Type != "order.status.changed" || event.PreviousStatus != "processing" || event.Status != "delivered" {
		t.Fatalf("event = %+v", event)
	}
}

func TestMarkDeliveredTwiceRejected(t *testing.T) {
	f := newShipmentServiceFixture(t)
	admin := Actor{ID: "adm_1", Admin: true}

	if _, err := f.service.MarkDelivered(context.Background(), MarkDeliveredCommand{Actor: admin, ShipmentID: "shp_1"}); err != nil {
		t.Fatalf("first MarkDelivered: %v", err)
	}
	if _, err := f.service.MarkDelivered(context.Background(), MarkDeliveredCommand{Actor: admin, ShipmentID: "shp_1"}); !errors.Is(err, ErrShipmentAlreadyDelivered) {
		t.Fatalf("err = %v, want ErrShipmentAlreadyDelivered", err)
	}
}

func TestGetShipmentAuthorisation(t *testing.T) {
	f := newShipmentServiceFixture(t)

	if _, err := f.service.GetShipment(context.Background(), Actor{ID: "cus_1"}, "shp_1"); err != nil {
		t.Fatalf("owner read: %v", err)
	}
	if _, err := f.service.GetShipment(context.Background(), Actor{ID: "cus_2"}, "shp_1"); !errors.Is(err, ErrShipmentUnauthorized) {
		t.Fatalf("foreign read err = %v, want ErrShipmentUnauthorized", err)
	}
	if _, err := f.service.GetShipment(context.Background(), Actor{ID: "adm_1", Admin: true}, "shp_1"); err != nil {
		t.Fatalf("admin read: %v", err)
	}
	if _, err := f.service.GetShipment(context.Background(), Actor{ID: "cus_1"}, "shp_missing"); !errors.Is(err, ErrShipmentNotFound) {
		t.Fatalf("missing err = %v, want ErrShipmentNotFound", err)
	}
}

func TestGetShipmentByOrder(t *testing.T) {
	f := newShipmentServiceFixture(t)

	shipment, err := f.service.GetByOrder(context.Background(), Actor{ID: "cus_1"}, "ord_1")
	if err != nil {
		t.Fatalf("GetByOrder: %v", err)
	}
	if shipment.ID != "shp_1" {
		t.Fatalf("shipment = %+v", shipment)
	}

	if _, err := f.service.GetByOrder(context.Background(), Actor{ID: "cus_2"}, "ord_1"); !errors.Is(err, ErrShipmentUnauthorized) {
		t.Fatalf("foreign read err = %v, want ErrShipmentUnauthorized", err)
	}
}

func TestListShipmentsRequiresAdmin(t *testing.T) {
	f := newShipmentServiceFixture(t)

	if _, err := f.service.ListShipments(context.Background(), ShipmentListFilter{Actor: Actor{ID: "cus_1"}}); !errors.Is(err, ErrShipmentUnauthorized) {
		t.Fatalf("err = %v, want ErrShipmentUnauthorized", err)
	}
	page, err := f.service.ListShipments(context.Background(), ShipmentListFilter{Actor: Actor{ID: "adm_1", Admin: true}})
	if err != nil {
		t.Fatalf("ListShipments: %v", err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("items = %d", len(page.Items))
	}
}
