package services

import (
	"context"
	"time"

	domain "github.com/oakmart/api/internal/domain"
	"github.com/oakmart/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination    = domain.Pagination
	Actor         = domain.Actor
	Product       = domain.Product
	Cart          = domain.Cart
	CartLine      = domain.CartLine
	Order         = domain.Order
	OrderItem     = domain.OrderItem
	OrderStatus   = domain.OrderStatus
	PaymentStatus = domain.PaymentStatus
	PaymentMethod = domain.PaymentMethod
	Shipment      = domain.Shipment
	Address       = domain.Address
	StoredCard    = domain.StoredCard
	CardInput     = domain.CardInput
)

// CatalogService exposes product reads and admin stock management. All stock
// mutations funnel through AdjustStock or the order placement transaction.
type CatalogService interface {
	GetProduct(ctx context.Context, productID string) (Product, error)
	ListProducts(ctx context.Context, filter ProductListFilter) (domain.CursorPage[Product], error)
	UpsertProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error)
	AdjustStock(ctx context.Context, cmd AdjustStockCommand) (Product, error)
}

// CartService manages the per-customer cart aggregate.
type CartService interface {
	GetOrCreateCart(ctx context.Context, customerID string) (Cart, error)
	AddOrUpdateLine(ctx context.Context, cmd UpsertCartLineCommand) (Cart, error)
	RemoveLine(ctx context.Context, cmd RemoveCartLineCommand) (Cart, error)
	ClearCart(ctx context.Context, customerID string) error
}

// OrderService owns the order workflow: placement, reads, status transitions,
// and cancellation with compensation.
type OrderService interface {
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error)
	GetOrder(ctx context.Context, actor Actor, orderID string) (Order, error)
	ListOrders(ctx context.Context, actor Actor, filter OrderListFilter) (domain.CursorPage[Order], error)
	TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error)
}

// ShipmentService tracks shipments and propagates delivery back to orders.
type ShipmentService interface {
	Update(ctx context.Context, cmd UpdateShipmentCommand) (Shipment, error)
	MarkDelivered(ctx context.Context, cmd MarkDeliveredCommand) (Shipment, error)
	GetShipment(ctx context.Context, actor Actor, shipmentID string) (Shipment, error)
	GetByOrder(ctx context.Context, actor Actor, orderID string) (Shipment, error)
	ListShipments(ctx context.Context, filter ShipmentListFilter) (domain.CursorPage[Shipment], error)
}

// AddressService manages the customer's address book.
type AddressService interface {
	ListAddresses(ctx context.Context, customerID string) ([]Address, error)
	GetAddress(ctx context.Context, customerID string, addressID string) (Address, error)
	SaveAddress(ctx context.Context, cmd SaveAddressCommand) (Address, error)
	DeleteAddress(ctx context.Context, customerID string, addressID string) error
}

// StoredCardService manages tokenised card references. Raw card numbers are
// never persisted; only the token and display metadata are stored.
type StoredCardService interface {
	ListCards(ctx context.Context, customerID string) ([]StoredCard, error)
	AddCard(ctx context.Context, cmd AddCardCommand) (StoredCard, error)
	DeleteCard(ctx context.Context, customerID string, cardID string) error
}

// PaymentGateway charges a placed order. Implementations distinguish business
// declines (Outcome with failed status, nil error) from transport failures
// (non-nil error), which callers treat as transient.
type PaymentGateway interface {
	Charge(ctx context.Context, req PaymentChargeRequest) (PaymentChargeResult, error)
}

// PaymentChargeRequest carries everything a provider needs to charge an order.
type PaymentChargeRequest struct {
	OrderID      string
	OrderNumber  string
	CustomerID   string
	Method       PaymentMethod
	AmountMinor  int64
	Currency     string
	Card         *CardInput
	StoredCardID string
}

// PaymentChargeResult reports the provider's decision. CardToken carries the
// reusable provider token minted for freshly entered card details, when the
// provider issues one.
type PaymentChargeResult struct {
	Status        PaymentStatus
	Reference     string
	FailureReason string
	CardToken     string
}

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) (string, error)
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type           string         `json:"type"`
	OrderID        string         `json:"orderId"`
	OrderNumber    string         `json:"orderNumber,omitempty"`
	CustomerID     string         `json:"customerId,omitempty"`
	PreviousStatus string         `json:"previousStatus,omitempty"`
	Status         string         `json:"status,omitempty"`
	PaymentStatus  string         `json:"paymentStatus,omitempty"`
	ActorID        string         `json:"actorId,omitempty"`
	OccurredAt     time.Time      `json:"occurredAt"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Commands and filters -------------------------------------------------------

// UpsertProductCommand creates or replaces a catalog product.
type UpsertProductCommand struct {
	Actor       Actor
	ProductID   string
	SKU         string
	Name        string
	Description string
	UnitPrice   int64
	Currency    string
	Stock       *int
	Available   *bool
}

// AdjustStockCommand applies a signed delta to a product's stock count.
type AdjustStockCommand struct {
	Actor     Actor
	ProductID string
	Delta     int
}

// ProductListFilter narrows catalog listings.
type ProductListFilter struct {
	AvailableOnly bool
	Pagination    Pagination
}

// UpsertCartLineCommand sets the quantity for a product in the cart. A
// quantity of zero or less removes the line.
type UpsertCartLineCommand struct {
	CustomerID string
	ProductID  string
	Quantity   int
}

// RemoveCartLineCommand deletes a product line from the cart.
type RemoveCartLineCommand struct {
	CustomerID string
	ProductID  string
}

// PlaceOrderCommand turns the actor's cart into an order. Addresses are
// referenced by ID and snapshotted onto the order at placement time. When
// Lines is non-empty it is used instead of the cart, and the cart is left
// untouched.
type PlaceOrderCommand struct {
	Actor             Actor
	Lines             []OrderLineInput
	ShippingAddressID string
	BillingAddressID  string
	PaymentMethod     PaymentMethod
	Card              *CardInput
	StoredCardID      string
	SaveCard          bool
}

// OrderLineInput names a product and quantity for placement without a cart.
type OrderLineInput struct {
	ProductID string
	Quantity  int
}

// OrderStatusTransitionCommand moves an order forward through its lifecycle.
// Cancellation is not a valid target; use Cancel instead.
type OrderStatusTransitionCommand struct {
	Actor        Actor
	OrderID      string
	TargetStatus OrderStatus
}

// CancelOrderCommand cancels a pending or processing order, restocking items
// and refunding completed payments.
type CancelOrderCommand struct {
	Actor   Actor
	OrderID string
	Reason  string
}

// OrderListFilter narrows order listings. Non-admin actors are always scoped
// to their own orders regardless of CustomerID.
type OrderListFilter struct {
	CustomerID string
	Status     []OrderStatus
	From       *time.Time
	To         *time.Time
	Pagination Pagination
}

// UpdateShipmentCommand amends tracking details on an undelivered shipment.
type UpdateShipmentCommand struct {
	Actor              Actor
	ShipmentID         string
	TrackingNumber     *string
	Carrier            *string
	ExpectedDeliveryAt *time.Time
}

// MarkDeliveredCommand records delivery and force-forwards the parent order to
// delivered.
type MarkDeliveredCommand struct {
	Actor      Actor
	ShipmentID string
}

// ShipmentListFilter narrows shipment listings.
type ShipmentListFilter struct {
	Actor           Actor
	DeliveredOnly   bool
	UndeliveredOnly bool
	Pagination      Pagination
}

// SaveAddressCommand creates or updates an address owned by the customer.
type SaveAddressCommand struct {
	CustomerID string
	AddressID  string
	Recipient  string
	Line1      string
	Line2      string
	City       string
	Region     string
	PostalCode string
	Country    string
	Phone      string
}

// AddCardCommand tokenises and stores a card reference.
type AddCardCommand struct {
	CustomerID string
	Card       CardInput
}

// Shared repository error mapping hooks --------------------------------------

// RepositoryError re-exports the repositories categorisation interface for
// stub implementations in tests.
type RepositoryError = repositories.RepositoryError
