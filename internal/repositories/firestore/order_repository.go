package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/oakmart/api/internal/domain"
	pfirestore "github.com/oakmart/api/internal/platform/firestore"
	"github.com/oakmart/api/internal/repositories"
)

const ordersCollection = "orders"

// OrderRepository implements repositories.OrderRepository. Placement and
// cancellation run as single Firestore transactions so stock counts and order
// state can never diverge.
type OrderRepository struct {
	provider  *pfirestore.Provider
	orders    *pfirestore.BaseRepository[domain.Order]
	products  *pfirestore.BaseRepository[domain.Product]
	shipments *pfirestore.BaseRepository[domain.Shipment]
	carts     *pfirestore.BaseRepository[domain.Cart]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider:  provider,
		orders:    pfirestore.NewBaseRepository[domain.Order](provider, ordersCollection),
		products:  pfirestore.NewBaseRepository[domain.Product](provider, productsCollection),
		shipments: pfirestore.NewBaseRepository[domain.Shipment](provider, shipmentsCollection),
		carts:     pfirestore.NewBaseRepository[domain.Cart](provider, cartsCollection),
	}, nil
}

// PlaceOrder persists the order, its shipment, the implied stock decrements,
// and the cart clear as one transaction. Stock is revalidated inside the
// transaction so concurrent placements cannot oversell.
func (r *OrderRepository) PlaceOrder(ctx context.Context, req repositories.PlaceOrderRequest) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	if strings.TrimSpace(req.Order.ID) == "" {
		return domain.Order{}, errors.New("order place: order id is required")
	}
	if len(req.Order.Items) == 0 {
		return domain.Order{}, errors.New("order place: at least one item is required")
	}
	if strings.TrimSpace(req.Shipment.ID) == "" {
		return domain.Order{}, errors.New("order place: shipment id is required")
	}

	now := req.Now.UTC()
	order := req.Order
	order.CreatedAt = now
	order.UpdatedAt = now
	shipment := req.Shipment
	shipment.OrderID = order.ID
	shipment.CreatedAt = now
	shipment.UpdatedAt = now

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		orderRef, err := r.orders.DocumentRef(ctx, order.ID)
		if err != nil {
			return err
		}
		shipmentRef, err := r.shipments.DocumentRef(ctx, shipment.ID)
		if err != nil {
			return err
		}

		// Firestore transactions require all reads before any write, so the
		// product snapshots are collected up front.
		type stockDecrement struct {
			ref  *firestore.DocumentRef
			next int
		}
		decrements := make([]stockDecrement, 0, len(order.Items))
		for _, item := range order.Items {
			productID := strings.TrimSpace(item.ProductID)
			if productID == "" || item.Quantity <= 0 {
				return repositories.NewOrderError(repositories.OrderErrorUnknown, fmt.Sprintf("invalid order line for product %q", item.ProductID), nil)
			}

			ref, err := r.products.DocumentRef(ctx, productID)
			if err != nil {
				return err
			}
			snap, err := tx.Get(ref)
			if err != nil {
				if status.Code(err) == codes.NotFound {
					return repositories.NewOrderError(repositories.OrderErrorProductNotFound, fmt.Sprintf("product %s not found", productID), err)
				}
				return err
			}
			var product domain.Product
			if err := snap.DataTo(&product); err != nil {
				return fmt.Errorf("decode product %s: %w", productID, err)
			}
			if !product.Available {
				return repositories.NewOrderError(repositories.OrderErrorProductUnavailable, fmt.Sprintf("product %s is not available", productID), nil)
			}
			if product.StockQuantity < item.Quantity {
				return repositories.NewOrderError(repositories.OrderErrorInsufficientStock, fmt.Sprintf("insufficient stock for product %s", productID), nil)
			}
			decrements = append(decrements, stockDecrement{ref: ref, next: product.StockQuantity - item.Quantity})
		}

		for _, dec := range decrements {
			if err := tx.Update(dec.ref, []firestore.Update{
				{Path: "stockQuantity", Value: dec.next},
				{Path: "updatedAt", Value: now},
			}); err != nil {
				return err
			}
		}

		if err := tx.Create(orderRef, order); err != nil {
			return err
		}
		if err := tx.Create(shipmentRef, shipment); err != nil {
			return err
		}

		if customerID := strings.TrimSpace(req.ClearCartFor); customerID != "" {
			cartRef, err := r.carts.DocumentRef(ctx, customerID)
			if err != nil {
				return err
			}
			if err := tx.Delete(cartRef); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, wrapOrderError("orders.place", err)
	}
	return order, nil
}

// CancelOrder transitions the order to cancelled, restocks every item, and
// flags completed payments for refund, all inside one transaction. Only
// pending and processing orders may be cancelled.
func (r *OrderRepository) CancelOrder(ctx context.Context, req repositories.CancelOrderRequest) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order cancel: order id is required")
	}

	now := req.Now.UTC()
	var cancelled domain.Order

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		orderRef, err := r.orders.DocumentRef(ctx, orderID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(orderRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return pfirestore.WrapError("orders.cancel", err)
			}
			return err
		}
		var order domain.Order
		if err := snap.DataTo(&order); err != nil {
			return fmt.Errorf("decode order %s: %w", orderID, err)
		}
		order.ID = orderID

		if order.Status != domain.OrderStatusPending && order.Status != domain.OrderStatusProcessing {
			return repositories.NewOrderError(repositories.OrderErrorInvalidState, fmt.Sprintf("order %s cannot be cancelled from status %s", orderID, order.Status), nil)
		}

		type stockIncrement struct {
			ref  *firestore.DocumentRef
			next int
		}
		increments := make([]stockIncrement, 0, len(order.Items))
		for _, item := range order.Items {
			productID := strings.TrimSpace(item.ProductID)
			if productID == "" {
				continue
			}
			ref, err := r.products.DocumentRef(ctx, productID)
			if err != nil {
				return err
			}
			snap, err := tx.Get(ref)
			if err != nil {
				// A product removed from the catalog after purchase cannot be restocked.
				if status.Code(err) == codes.NotFound {
					continue
				}
				return err
			}
			var product domain.Product
			if err := snap.DataTo(&product); err != nil {
				return fmt.Errorf("decode product %s: %w", productID, err)
			}
			increments = append(increments, stockIncrement{ref: ref, next: product.StockQuantity + item.Quantity})
		}

		for _, inc := range increments {
			if err := tx.Update(inc.ref, []firestore.Update{
				{Path: "stockQuantity", Value: inc.next},
				{Path: "updatedAt", Value: now},
			}); err != nil {
				return err
			}
		}

		order.Status = domain.OrderStatusCancelled
		order.CancelReason = strings.TrimSpace(req.Reason)
		order.CanceledAt = &now
		order.UpdatedAt = now
		if order.PaymentStatus == domain.PaymentStatusCompleted {
			order.PaymentStatus = domain.PaymentStatusRefunded
		}

		if err := tx.Set(orderRef, order); err != nil {
			return err
		}
		cancelled = order
		return nil
	})
	if err != nil {
		return domain.Order{}, wrapOrderError("orders.cancel", err)
	}
	return cancelled, nil
}

// RecordPaymentOutcome patches the payment fields of an order in a
// transaction. The order is re-read first so a cancellation that committed
// during the charge window is never overwritten: once the order has left the
// pending payment state, or has been cancelled, the outcome is dropped and
// the stored order returned as-is.
func (r *OrderRepository) RecordPaymentOutcome(ctx context.Context, req repositories.PaymentOutcomeRequest) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order payment outcome: order id is required")
	}

	now := req.Now.UTC()
	var recorded domain.Order

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		orderRef, err := r.orders.DocumentRef(ctx, orderID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(orderRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return pfirestore.WrapError("orders.payment_outcome", err)
			}
			return err
		}
		var order domain.Order
		if err := snap.DataTo(&order); err != nil {
			return fmt.Errorf("decode order %s: %w", orderID, err)
		}
		order.ID = orderID

		if order.Status == domain.OrderStatusCancelled || order.PaymentStatus != domain.PaymentStatusPending {
			recorded = order
			return nil
		}

		if err := tx.Update(orderRef, []firestore.Update{
			{Path: "paymentStatus", Value: string(req.Status)},
			{Path: "paymentRef", Value: req.Reference},
			{Path: "updatedAt", Value: now},
		}); err != nil {
			return err
		}

		order.PaymentStatus = req.Status
		order.PaymentRef = req.Reference
		order.UpdatedAt = now
		recorded = order
		return nil
	})
	if err != nil {
		return domain.Order{}, wrapOrderError("orders.payment_outcome", err)
	}
	return recorded, nil
}

// Update replaces the stored order document.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if r == nil || r.orders == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order update: order id is required")
	}
	return r.orders.Set(ctx, order.ID, order)
}

// FindByID fetches a single order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.orders == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order find: order id is required")
	}

	doc, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	order := doc.Data
	order.ID = doc.ID
	return order, nil
}

// List returns a page of orders, newest first.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.orders == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}

	pageSize := clampPageSize(filter.Pagination.PageSize, 50, 200)

	type orderToken struct {
		CreatedAt time.Time `json:"createdAt"`
		ID        string    `json:"id"`
	}
	var startAfter *orderToken
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		var decoded orderToken
		if err := decodePageToken(token, &decoded); err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
		}
		startAfter = &decoded
	}

	docs, err := r.orders.Query(ctx, func(query firestore.Query) firestore.Query {
		if customerID := strings.TrimSpace(filter.CustomerID); customerID != "" {
			query = query.Where("customerId", "==", customerID)
		}
		if len(filter.Status) > 0 {
			query = query.Where("status", "in", filter.Status)
		}
		if filter.DateRange.From != nil {
			query = query.Where("createdAt", ">=", filter.DateRange.From.UTC())
		}
		if filter.DateRange.To != nil {
			query = query.Where("createdAt", "<=", filter.DateRange.To.UTC())
		}
		query = query.
			OrderBy("createdAt", firestore.Desc).
			OrderBy(firestore.DocumentID, firestore.Desc).
			Limit(pageSize + 1)
		if startAfter != nil {
			query = query.StartAfter(startAfter.CreatedAt, startAfter.ID)
		}
		return query
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		order := doc.Data
		order.ID = doc.ID
		orders = append(orders, order)
	}

	hasMore := len(orders) > pageSize
	if hasMore {
		orders = orders[:pageSize]
	}
	var nextToken string
	if hasMore && len(orders) > 0 {
		last := orders[len(orders)-1]
		encoded, err := encodePageToken(orderToken{CreatedAt: last.CreatedAt, ID: last.ID})
		if err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
		}
		nextToken = encoded
	}

	return domain.CursorPage[domain.Order]{
		Items:         orders,
		NextPageToken: nextToken,
	}, nil
}

func wrapOrderError(op string, err error) error {
	if err == nil {
		return nil
	}
	var orderErr *repositories.OrderError
	if errors.As(err, &orderErr) {
		if orderErr.Op == "" {
			orderErr.Op = op
		}
		return orderErr
	}
	return pfirestore.WrapError(op, err)
}
