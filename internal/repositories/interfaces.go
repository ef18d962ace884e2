package repositories

import (
	"context"
	"time"

	domain "github.com/oakmart/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CatalogRepository persists products. AdjustStock is the only entry point that
// mutates stock counts outside the order placement transaction.
type CatalogRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	List(ctx context.Context, filter ProductListFilter) (domain.CursorPage[domain.Product], error)
	Upsert(ctx context.Context, product domain.Product) (domain.Product, error)
	// AdjustStock applies delta to the stock count inside a transaction and
	// fails when the result would drop below zero.
	AdjustStock(ctx context.Context, productID string, delta int, now time.Time) (domain.Product, error)
}

// CartRepository owns cart persistence. Carts are keyed by customer ID.
type CartRepository interface {
	Get(ctx context.Context, customerID string) (domain.Cart, error)
	Save(ctx context.Context, cart domain.Cart) (domain.Cart, error)
}

// AddressRepository stores postal addresses per customer.
type AddressRepository interface {
	Get(ctx context.Context, customerID string, addressID string) (domain.Address, error)
	List(ctx context.Context, customerID string) ([]domain.Address, error)
	Upsert(ctx context.Context, addr domain.Address) (domain.Address, error)
	Delete(ctx context.Context, customerID string, addressID string) error
}

// StoredCardRepository stores tokenised card references per customer.
type StoredCardRepository interface {
	Get(ctx context.Context, customerID string, cardID string) (domain.StoredCard, error)
	List(ctx context.Context, customerID string) ([]domain.StoredCard, error)
	Insert(ctx context.Context, card domain.StoredCard) (domain.StoredCard, error)
	Delete(ctx context.Context, customerID string, cardID string) error
}

// PlaceOrderRequest bundles everything the placement transaction persists as a
// single unit: the order, its shipment, the stock decrements implied by the
// order items, and the cart to clear.
type PlaceOrderRequest struct {
	Order        domain.Order
	Shipment     domain.Shipment
	ClearCartFor string
	Now          time.Time
}

// CancelOrderRequest bundles the compensation applied when an order is
// cancelled: status change, refund flagging, and restocking of every item.
type CancelOrderRequest struct {
	OrderID string
	Reason  string
	Now     time.Time
}

// PaymentOutcomeRequest records the result of the post-placement charge
// attempt against an order.
type PaymentOutcomeRequest struct {
	OrderID   string
	Status    domain.PaymentStatus
	Reference string
	Now       time.Time
}

// OrderRepository persists orders. PlaceOrder and CancelOrder run their
// mutations transactionally so stock and order state cannot diverge.
type OrderRepository interface {
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (domain.Order, error)
	CancelOrder(ctx context.Context, req CancelOrderRequest) (domain.Order, error)
	RecordPaymentOutcome(ctx context.Context, req PaymentOutcomeRequest) (domain.Order, error)
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
}

// ShipmentRepository stores shipment documents, one per order.
type ShipmentRepository interface {
	Insert(ctx context.Context, shipment domain.Shipment) error
	Update(ctx context.Context, shipment domain.Shipment) error
	FindByID(ctx context.Context, shipmentID string) (domain.Shipment, error)
	FindByOrder(ctx context.Context, orderID string) (domain.Shipment, error)
	List(ctx context.Context, filter ShipmentListFilter) (domain.CursorPage[domain.Shipment], error)
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
}

// Filter DTOs shared across repositories ------------------------------------

type ProductListFilter struct {
	AvailableOnly bool
	Pagination    domain.Pagination
}

type OrderListFilter struct {
	CustomerID string
	Status     []string
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}

type ShipmentListFilter struct {
	DeliveredOnly   bool
	UndeliveredOnly bool
	Pagination      domain.Pagination
}
