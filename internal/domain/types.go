package domain

import "time"

// Pagination carries cursor-based list parameters shared across repositories.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// RangeQuery represents inclusive range filters for timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// Actor identifies the principal performing an operation. Services never read
// identity from context; callers pass an Actor explicitly.
type Actor struct {
	ID    string
	Admin bool
}

// CanAccess reports whether the actor may read or mutate a resource owned by ownerID.
func (a Actor) CanAccess(ownerID string) bool {
	return a.Admin || (a.ID != "" && a.ID == ownerID)
}

// OrderStatus enumerates the order lifecycle states.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// PaymentStatus enumerates payment settlement states tracked on the order.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// PaymentMethod enumerates how an order is paid for.
type PaymentMethod string

const (
	PaymentMethodCOD  PaymentMethod = "cod"
	PaymentMethodCard PaymentMethod = "card"
)

// Product is a sellable catalog entry. Prices are minor currency units.
type Product struct {
	ID            string    `firestore:"-"`
	SKU           string    `firestore:"sku"`
	Name          string    `firestore:"name"`
	Description   string    `firestore:"description,omitempty"`
	UnitPrice     int64     `firestore:"unitPrice"`
	Currency      string    `firestore:"currency"`
	StockQuantity int       `firestore:"stockQuantity"`
	Available     bool      `firestore:"available"`
	CreatedAt     time.Time `firestore:"createdAt"`
	UpdatedAt     time.Time `firestore:"updatedAt"`
}

// CartLine is a single product entry in a customer's cart. Quantity is always
// positive; lines at or below zero are removed rather than stored.
type CartLine struct {
	ProductID string    `firestore:"productId"`
	Quantity  int       `firestore:"quantity"`
	AddedAt   time.Time `firestore:"addedAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// Cart holds the open cart for a customer. One cart per customer, keyed by
// customer ID.
type Cart struct {
	CustomerID string     `firestore:"customerId"`
	Lines      []CartLine `firestore:"lines"`
	UpdatedAt  time.Time  `firestore:"updatedAt"`
}

// Address is a customer postal address used for shipping and billing.
type Address struct {
	ID         string    `firestore:"-"`
	CustomerID string    `firestore:"customerId"`
	Recipient  string    `firestore:"recipient"`
	Line1      string    `firestore:"line1"`
	Line2      string    `firestore:"line2,omitempty"`
	City       string    `firestore:"city"`
	Region     string    `firestore:"region,omitempty"`
	PostalCode string    `firestore:"postalCode"`
	Country    string    `firestore:"country"`
	Phone      string    `firestore:"phone,omitempty"`
	CreatedAt  time.Time `firestore:"createdAt"`
	UpdatedAt  time.Time `firestore:"updatedAt"`
}

// StoredCard references a tokenised card held by the payment provider. Only
// display metadata is persisted, never raw card numbers.
type StoredCard struct {
	ID         string    `firestore:"-"`
	CustomerID string    `firestore:"customerId"`
	Provider   string    `firestore:"provider"`
	Token      string    `firestore:"token"`
	Last4      string    `firestore:"last4"`
	ExpMonth   int       `firestore:"expMonth"`
	ExpYear    int       `firestore:"expYear"`
	CreatedAt  time.Time `firestore:"createdAt"`
}

// CardInput carries freshly entered card details for a one-off charge. It is
// never persisted.
type CardInput struct {
	Number   string
	Provider string
	ExpMonth int
	ExpYear  int
	CVC      string
}

// OrderItem is an immutable order line. PriceAtPurchase snapshots the catalog
// unit price at placement time and never changes afterwards.
type OrderItem struct {
	ProductID       string `firestore:"productId"`
	SKU             string `firestore:"sku"`
	Name            string `firestore:"name"`
	Quantity        int    `firestore:"quantity"`
	PriceAtPurchase int64  `firestore:"priceAtPurchase"`
	LineTotal       int64  `firestore:"lineTotal"`
}

// Order is the aggregate produced by order placement. Items and address
// snapshots are embedded; orders are never deleted.
type Order struct {
	ID              string        `firestore:"-"`
	OrderNumber     string        `firestore:"orderNumber"`
	CustomerID      string        `firestore:"customerId"`
	Status          OrderStatus   `firestore:"status"`
	PaymentStatus   PaymentStatus `firestore:"paymentStatus"`
	PaymentMethod   PaymentMethod `firestore:"paymentMethod"`
	PaymentRef      string        `firestore:"paymentRef,omitempty"`
	Currency        string        `firestore:"currency"`
	TotalPrice      int64         `firestore:"totalPrice"`
	Items           []OrderItem   `firestore:"items"`
	ShippingAddress Address       `firestore:"shippingAddress"`
	BillingAddress  Address       `firestore:"billingAddress"`
	CancelReason    string        `firestore:"cancelReason,omitempty"`
	CreatedAt       time.Time     `firestore:"createdAt"`
	UpdatedAt       time.Time     `firestore:"updatedAt"`
	ShippedAt       *time.Time    `firestore:"shippedAt,omitempty"`
	DeliveredAt     *time.Time    `firestore:"deliveredAt,omitempty"`
	CanceledAt      *time.Time    `firestore:"canceledAt,omitempty"`
}

// Shipment tracks fulfilment for exactly one order.
type Shipment struct {
	ID                 string     `firestore:"-"`
	OrderID            string     `firestore:"orderId"`
	TrackingNumber     string     `firestore:"trackingNumber"`
	Carrier            string     `firestore:"carrier"`
	Delivered          bool       `firestore:"delivered"`
	ExpectedDeliveryAt time.Time  `firestore:"expectedDeliveryAt"`
	ActualDeliveryAt   *time.Time `firestore:"actualDeliveryAt,omitempty"`
	CreatedAt          time.Time  `firestore:"createdAt"`
	UpdatedAt          time.Time  `firestore:"updatedAt"`
}
