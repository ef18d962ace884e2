package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	domain "github.com/oakmart/api/internal/domain"
	"github.com/oakmart/api/internal/repositories"
)

// stubRepoError satisfies repositories.RepositoryError for error-path tests.
type stubRepoError struct {
	msg         string
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *stubRepoError) Error() string       { return e.msg }
func (e *stubRepoError) IsNotFound() bool    { return e.notFound }
func (e *stubRepoError) IsConflict() bool    { return e.conflict }
func (e *stubRepoError) IsUnavailable() bool { return e.unavailable }

func notFoundErr(msg string) error    { return &stubRepoError{msg: msg, notFound: true} }
func unavailableErr(msg string) error { return &stubRepoError{msg: msg, unavailable: true} }

type stubCatalogRepository struct {
	mu            sync.Mutex
	products      map[string]domain.Product
	findErr       error
	adjustFn      func(productID string, delta int) (domain.Product, error)
	upserted      []domain.Product
	adjustedCalls []string
}

func newStubCatalogRepository(products ...domain.Product) *stubCatalogRepository {
	repo := &stubCatalogRepository{products: make(map[string]domain.Product)}
	for _, p := range products {
		repo.products[p.ID] = p
	}
	return repo
}

func (r *stubCatalogRepository) FindByID(_ context.Context, productID string) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return domain.Product{}, r.findErr
	}
	product, ok := r.products[productID]
	if !ok {
		return domain.Product{}, notFoundErr("product " + productID + " not found")
	}
	return product, nil
}

func (r *stubCatalogRepository) List(_ context.Context, _ repositories.ProductListFilter) (domain.CursorPage[domain.Product], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	page := domain.CursorPage[domain.Product]{}
	for _, p := range r.products {
		page.Items = append(page.Items, p)
	}
	return page, nil
}

func (r *stubCatalogRepository) Upsert(_ context.Context, product domain.Product) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[product.ID] = product
	r.upserted = append(r.upserted, product)
	return product, nil
}

func (r *stubCatalogRepository) AdjustStock(_ context.Context, productID string, delta int, now time.Time) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adjustedCalls = append(r.adjustedCalls, fmt.Sprintf("%s:%d", productID, delta))
	if r.adjustFn != nil {
		return r.adjustFn(productID, delta)
	}
	product, ok := r.products[productID]
	if !ok {
		return domain.Product{}, notFoundErr("product " + productID + " not found")
	}
	next := product.StockQuantity + delta
	if next < 0 {
		return domain.Product{}, repositories.NewCatalogError(repositories.CatalogErrorInsufficientStock, "insufficient stock", nil)
	}
	product.StockQuantity = next
	product.UpdatedAt = now
	r.products[productID] = product
	return product, nil
}

type stubCartRepository struct {
	mu      sync.Mutex
	carts   map[string]domain.Cart
	getErr  error
	saveErr error
	saved   []domain.Cart
}

func newStubCartRepository(carts ...domain.Cart) *stubCartRepository {
	repo := &stubCartRepository{carts: make(map[string]domain.Cart)}
	for _, c := range carts {
		repo.carts[c.CustomerID] = c
	}
	return repo
}

func (r *stubCartRepository) Get(_ context.Context, customerID string) (domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return domain.Cart{}, r.getErr
	}
	cart, ok := r.carts[customerID]
	if !ok {
		return domain.Cart{}, notFoundErr("cart for " + customerID + " not found")
	}
	return cart, nil
}

func (r *stubCartRepository) Save(_ context.Context, cart domain.Cart) (domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return domain.Cart{}, r.saveErr
	}
	r.carts[cart.CustomerID] = cart
	r.saved = append(r.saved, cart)
	return cart, nil
}

type stubAddressRepository struct {
	mu        sync.Mutex
	addresses map[string]domain.Address
	upserted  []domain.Address
	deleted   []string
}

func newStubAddressRepository(addresses ...domain.Address) *stubAddressRepository {
	repo := &stubAddressRepository{addresses: make(map[string]domain.Address)}
	for _, a := range addresses {
		repo.addresses[a.ID] = a
	}
	return repo
}

func (r *stubAddressRepository) Get(_ context.Context, customerID, addressID string) (domain.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	addr, ok := r.addresses[addressID]
	if !ok || addr.CustomerID != customerID {
		return domain.Address{}, notFoundErr("address " + addressID + " not found")
	}
	return addr, nil
}

func (r *stubAddressRepository) List(_ context.Context, customerID string) ([]domain.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Address
	for _, a := range r.addresses {
		if a.CustomerID == customerID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *stubAddressRepository) Upsert(_ context.Context, addr domain.Address) (domain.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addresses[addr.ID] = addr
	r.upserted = append(r.upserted, addr)
	return addr, nil
}

func (r *stubAddressRepository) Delete(_ context.Context, customerID, addressID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	addr, ok := r.addresses[addressID]
	if !ok || addr.CustomerID != customerID {
		return notFoundErr("address " + addressID + " not found")
	}
	delete(r.addresses, addressID)
	r.deleted = append(r.deleted, addressID)
	return nil
}

type stubCardRepository struct {
	mu       sync.Mutex
	cards    map[string]domain.StoredCard
	inserted []domain.StoredCard
	deleted  []string
}

func newStubCardRepository(cards ...domain.StoredCard) *stubCardRepository {
	repo := &stubCardRepository{cards: make(map[string]domain.StoredCard)}
	for _, c := range cards {
		repo.cards[c.ID] = c
	}
	return repo
}

func (r *stubCardRepository) Get(_ context.Context, customerID, cardID string) (domain.StoredCard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	card, ok := r.cards[cardID]
	if !ok || card.CustomerID != customerID {
		return domain.StoredCard{}, notFoundErr("card " + cardID + " not found")
	}
	return card, nil
}

func (r *stubCardRepository) List(_ context.Context, customerID string) ([]domain.StoredCard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.StoredCard
	for _, c := range r.cards {
		if c.CustomerID == customerID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *stubCardRepository) Insert(_ context.Context, card domain.StoredCard) (domain.StoredCard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cards[card.ID] = card
	r.inserted = append(r.inserted, card)
	return card, nil
}

func (r *stubCardRepository) Delete(_ context.Context, customerID, cardID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	card, ok := r.cards[cardID]
	if !ok || card.CustomerID != customerID {
		return notFoundErr("card " + cardID + " not found")
	}
	delete(r.cards, cardID)
	r.deleted = append(r.deleted, cardID)
	return nil
}

type stubOrderRepository struct {
	mu           sync.Mutex
	orders       map[string]domain.Order
	placeFn      func(req repositories.PlaceOrderRequest) (domain.Order, error)
	cancelFn     func(req repositories.CancelOrderRequest) (domain.Order, error)
	updateErr    error
	outcomeErr   error
	placedReqs   []repositories.PlaceOrderRequest
	cancelReqs   []repositories.CancelOrderRequest
	outcomeReqs  []repositories.PaymentOutcomeRequest
	updatedCalls []domain.Order
}

func newStubOrderRepository(orders ...domain.Order) *stubOrderRepository {
	repo := &stubOrderRepository{orders: make(map[string]domain.Order)}
	for _, o := range orders {
		repo.orders[o.ID] = o
	}
	return repo
}

func (r *stubOrderRepository) PlaceOrder(_ context.Context, req repositories.PlaceOrderRequest) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.placedReqs = append(r.placedReqs, req)
	if r.placeFn != nil {
		return r.placeFn(req)
	}
	order := req.Order
	order.CreatedAt = req.Now
	order.UpdatedAt = req.Now
	r.orders[order.ID] = order
	return order, nil
}

func (r *stubOrderRepository) CancelOrder(_ context.Context, req repositories.CancelOrderRequest) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelReqs = append(r.cancelReqs, req)
	if r.cancelFn != nil {
		return r.cancelFn(req)
	}
	order, ok := r.orders[req.OrderID]
	if !ok {
		return domain.Order{}, notFoundErr("order " + req.OrderID + " not found")
	}
	if order.Status != domain.OrderStatusPending && order.Status != domain.OrderStatusProcessing {
		return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorInvalidState, "order is "+string(order.Status), nil)
	}
	order.Status = domain.OrderStatusCancelled
	order.CancelReason = req.Reason
	now := req.Now
	order.CanceledAt = &now
	order.UpdatedAt = now
	if order.PaymentStatus == domain.PaymentStatusCompleted {
		order.PaymentStatus = domain.PaymentStatusRefunded
	}
	r.orders[order.ID] = order
	return order, nil
}

func (r *stubOrderRepository) RecordPaymentOutcome(_ context.Context, req repositories.PaymentOutcomeRequest) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomeReqs = append(r.outcomeReqs, req)
	if r.outcomeErr != nil {
		return domain.Order{}, r.outcomeErr
	}
	order, ok := r.orders[req.OrderID]
	if !ok {
		return domain.Order{}, notFoundErr("order " + req.OrderID + " not found")
	}
	if order.Status == domain.OrderStatusCancelled || order.PaymentStatus != domain.PaymentStatusPending {
		return order, nil
	}
	order.PaymentStatus = req.Status
	order.PaymentRef = req.Reference
	order.UpdatedAt = req.Now
	r.orders[order.ID] = order
	return order, nil
}

func (r *stubOrderRepository) Update(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updatedCalls = append(r.updatedCalls, order)
	if r.updateErr != nil {
		return r.updateErr
	}
	r.orders[order.ID] = order
	return nil
}

func (r *stubOrderRepository) FindByID(_ context.Context, orderID string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, notFoundErr("order " + orderID + " not found")
	}
	return order, nil
}

func (r *stubOrderRepository) List(_ context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	page := domain.CursorPage[domain.Order]{}
	for _, o := range r.orders {
		if filter.CustomerID != "" && o.CustomerID != filter.CustomerID {
			continue
		}
		page.Items = append(page.Items, o)
	}
	return page, nil
}

type stubShipmentRepository struct {
	mu        sync.Mutex
	shipments map[string]domain.Shipment
	updateErr error
	updated   []domain.Shipment
}

func newStubShipmentRepository(shipments ...domain.Shipment) *stubShipmentRepository {
	repo := &stubShipmentRepository{shipments: make(map[string]domain.Shipment)}
	for _, s := range shipments {
		repo.shipments[s.ID] = s
	}
	return repo
}

func (r *stubShipmentRepository) Insert(_ context.Context, shipment domain.Shipment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shipments[shipment.ID] = shipment
	return nil
}

func (r *stubShipmentRepository) Update(_ context.Context, shipment domain.Shipment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updated = append(r.updated, shipment)
	if r.updateErr != nil {
		return r.updateErr
	}
	r.shipments[shipment.ID] = shipment
	return nil
}

func (r *stubShipmentRepository) FindByID(_ context.Context, shipmentID string) (domain.Shipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	shipment, ok := r.shipments[shipmentID]
	if !ok {
		return domain.Shipment{}, notFoundErr("shipment " + shipmentID + " not found")
	}
	return shipment, nil
}

func (r *stubShipmentRepository) FindByOrder(_ context.Context, orderID string) (domain.Shipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.shipments {
		if s.OrderID == orderID {
			return s, nil
		}
	}
	return domain.Shipment{}, notFoundErr("shipment for order " + orderID + " not found")
}

func (r *stubShipmentRepository) List(_ context.Context, _ repositories.ShipmentListFilter) (domain.CursorPage[domain.Shipment], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	page := domain.CursorPage[domain.Shipment]{}
	for _, s := range r.shipments {
		page.Items = append(page.Items, s)
	}
	return page, nil
}

type stubCounterRepository struct {
	mu     sync.Mutex
	values map[string]int64
	nextFn func(counterID string, step int64) (int64, error)
	calls  []string
}

func (r *stubCounterRepository) Next(_ context.Context, counterID string, step int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, counterID)
	if r.nextFn != nil {
		return r.nextFn(counterID, step)
	}
	if r.values == nil {
		r.values = make(map[string]int64)
	}
	r.values[counterID] += step
	return r.values[counterID], nil
}

type stubPaymentGateway struct {
	mu       sync.Mutex
	chargeFn func(req PaymentChargeRequest) (PaymentChargeResult, error)
	requests []PaymentChargeRequest
}

func (g *stubPaymentGateway) Charge(_ context.Context, req PaymentChargeRequest) (PaymentChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.chargeFn != nil {
		return g.chargeFn(req)
	}
	return PaymentChargeResult{Status: domain.PaymentStatusCompleted, Reference: "pay_stub"}, nil
}

// stubEventPublisher records published events and signals each one on a channel
// so tests can wait for the fire-and-forget goroutine.
type stubEventPublisher struct {
	mu         sync.Mutex
	publishErr error
	events     []OrderEvent
	published  chan OrderEvent
}

func newStubEventPublisher() *stubEventPublisher {
	return &stubEventPublisher{published: make(chan OrderEvent, 8)}
}

func (p *stubEventPublisher) PublishOrderEvent(_ context.Context, event OrderEvent) (string, error) {
	p.mu.Lock()
	p.events = append(p.events, event)
	err := p.publishErr
	p.mu.Unlock()
	p.published <- event
	if err != nil {
		return "", err
	}
	return "msg_" + event.OrderID, nil
}

func (p *stubEventPublisher) wait(timeout time.Duration) (OrderEvent, bool) {
	select {
	case event := <-p.published:
		return event, true
	case <-time.After(timeout):
		return OrderEvent{}, false
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s%04d", prefix, n)
	}
}
