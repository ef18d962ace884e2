package firestore

import (
	"context"
	"errors"
	"strings"

	domain "github.com/oakmart/api/internal/domain"
	pfirestore "github.com/oakmart/api/internal/platform/firestore"
)

const cartsCollection = "carts"

// CartRepository implements repositories.CartRepository. Cart documents are
// keyed by customer ID so each customer has exactly one cart.
type CartRepository struct {
	carts *pfirestore.BaseRepository[domain.Cart]
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{
		carts: pfirestore.NewBaseRepository[domain.Cart](provider, cartsCollection),
	}, nil
}

// Get fetches the cart for the customer. A missing document surfaces as a
// not-found repository error; callers decide whether that means an empty cart.
func (r *CartRepository) Get(ctx context.Context, customerID string) (domain.Cart, error) {
	if r == nil || r.carts == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return domain.Cart{}, errors.New("cart get: customer id is required")
	}

	doc, err := r.carts.Get(ctx, customerID)
	if err != nil {
		return domain.Cart{}, err
	}
	cart := doc.Data
	cart.CustomerID = doc.ID
	return cart, nil
}

// Save stores the cart document, replacing any previous contents.
func (r *CartRepository) Save(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if r == nil || r.carts == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	if strings.TrimSpace(cart.CustomerID) == "" {
		return domain.Cart{}, errors.New("cart save: customer id is required")
	}

	if err := r.carts.Set(ctx, cart.CustomerID, cart); err != nil {
		return domain.Cart{}, err
	}
	return cart, nil
}
