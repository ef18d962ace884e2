package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oakmart/api/internal/repositories"
)

var (
	// ErrCartInvalidInput signals the caller provided invalid data.
	ErrCartInvalidInput = errors.New("cart: invalid input")
	// ErrCartProductNotFound indicates a cart line references a missing product.
	ErrCartProductNotFound = errors.New("cart: product not found")
	// ErrCartProductUnavailable indicates the product is withdrawn from sale.
	ErrCartProductUnavailable = errors.New("cart: product not available")
	// ErrCartUnavailable indicates a transient backend failure.
	ErrCartUnavailable = errors.New("cart: repository unavailable")
)

// CartServiceDeps bundles collaborators required to construct the cart service.
type CartServiceDeps struct {
	Carts   repositories.CartRepository
	Catalog repositories.CatalogRepository
	Clock   func() time.Time
	Logger  func(ctx context.Context, event string, fields map[string]any)
}

type cartService struct {
	carts   repositories.CartRepository
	catalog repositories.CatalogRepository
	clock   func() time.Time
	logger  func(context.Context, string, map[string]any)
}

// NewCartService wires dependencies into a concrete CartService implementation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart service: cart repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("cart service: catalog repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &cartService{
		carts:   deps.Carts,
		catalog: deps.Catalog,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// GetOrCreateCart returns the customer's cart, materialising an empty one when
// none has been saved yet.
func (s *cartService) GetOrCreateCart(ctx context.Context, customerID string) (Cart, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return Cart{}, fmt.Errorf("%w: customer id is required", ErrCartInvalidInput)
	}

	cart, err := s.carts.Get(ctx, customerID)
	if err != nil {
		if isNotFound(err) {
			return Cart{CustomerID: customerID, UpdatedAt: s.clock()}, nil
		}
		return Cart{}, s.mapRepositoryError(err)
	}
	return cart, nil
}

// AddOrUpdateLine sets the quantity for a product in the cart. A quantity of
// zero or less removes the line entirely.
func (s *cartService) AddOrUpdateLine(ctx context.Context, cmd UpsertCartLineCommand) (Cart, error) {
	customerID := strings.TrimSpace(cmd.CustomerID)
	if customerID == "" {
		return Cart{}, fmt.Errorf("%w: customer id is required", ErrCartInvalidInput)
	}
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return Cart{}, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}

	if cmd.Quantity <= 0 {
		return s.RemoveLine(ctx, RemoveCartLineCommand{CustomerID: customerID, ProductID: productID})
	}

	product, err := s.catalog.FindByID(ctx, productID)
	if err != nil {
		if isNotFound(err) {
			return Cart{}, fmt.Errorf("%w: %s", ErrCartProductNotFound, productID)
		}
		return Cart{}, s.mapRepositoryError(err)
	}
	if !product.Available {
		return Cart{}, fmt.Errorf("%w: %s", ErrCartProductUnavailable, productID)
	}

	cart, err := s.GetOrCreateCart(ctx, customerID)
	if err != nil {
		return Cart{}, err
	}

	now := s.clock()
	updated := false
	for i := range cart.Lines {
		if cart.Lines[i].ProductID == productID {
			cart.Lines[i].Quantity = cmd.Quantity
			cart.Lines[i].UpdatedAt = now
			updated = true
			break
		}
	}
	if !updated {
		cart.Lines = append(cart.Lines, CartLine{
			ProductID: productID,
			Quantity:  cmd.Quantity,
			AddedAt:   now,
			UpdatedAt: now,
		})
	}
	cart.CustomerID = customerID
	cart.UpdatedAt = now

	saved, err := s.carts.Save(ctx, cart)
	if err != nil {
		return Cart{}, s.mapRepositoryError(err)
	}
	return saved, nil
}

// RemoveLine deletes the product line from the cart. Removing a line that does
// not exist is not an error.
func (s *cartService) RemoveLine(ctx context.Context, cmd RemoveCartLineCommand) (Cart, error) {
	customerID := strings.TrimSpace(cmd.CustomerID)
	if customerID == "" {
		return Cart{}, fmt.Errorf("%w: customer id is required", ErrCartInvalidInput)
	}
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return Cart{}, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}

	cart, err := s.GetOrCreateCart(ctx, customerID)
	if err != nil {
		return Cart{}, err
	}

	filtered := cart.Lines[:0]
	for _, line := range cart.Lines {
		if line.ProductID != productID {
			filtered = append(filtered, line)
		}
	}
	if len(filtered) == len(cart.Lines) {
		return cart, nil
	}
	cart.Lines = filtered
	cart.UpdatedAt = s.clock()

	saved, err := s.carts.Save(ctx, cart)
	if err != nil {
		return Cart{}, s.mapRepositoryError(err)
	}
	return saved, nil
}

// ClearCart drops every line from the customer's cart.
func (s *cartService) ClearCart(ctx context.Context, customerID string) error {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return fmt.Errorf("%w: customer id is required", ErrCartInvalidInput)
	}

	cart := Cart{CustomerID: customerID, UpdatedAt: s.clock()}
	if _, err := s.carts.Save(ctx, cart); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *cartService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrCartProductNotFound, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrCartUnavailable, err)
		}
	}

	return err
}
