package firestore

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"

	domain "github.com/oakmart/api/internal/domain"
	pfirestore "github.com/oakmart/api/internal/platform/firestore"
)

const addressesCollection = "addresses"

// AddressRepository implements repositories.AddressRepository backed by Firestore.
type AddressRepository struct {
	addresses *pfirestore.BaseRepository[domain.Address]
}

// NewAddressRepository constructs a Firestore-backed address repository.
func NewAddressRepository(provider *pfirestore.Provider) (*AddressRepository, error) {
	if provider == nil {
		return nil, errors.New("address repository requires firestore provider")
	}
	return &AddressRepository{
		addresses: pfirestore.NewBaseRepository[domain.Address](provider, addressesCollection),
	}, nil
}

// Get fetches an address and verifies it belongs to the customer. Addresses
// owned by another customer surface as not found rather than forbidden.
func (r *AddressRepository) Get(ctx context.Context, customerID string, addressID string) (domain.Address, error) {
	if r == nil || r.addresses == nil {
		return domain.Address{}, errors.New("address repository not initialised")
	}
	customerID = strings.TrimSpace(customerID)
	addressID = strings.TrimSpace(addressID)
	if customerID == "" || addressID == "" {
		return domain.Address{}, errors.New("address get: customer id and address id are required")
	}

	doc, err := r.addresses.Get(ctx, addressID)
	if err != nil {
		return domain.Address{}, err
	}
	addr := doc.Data
	addr.ID = doc.ID
	if addr.CustomerID != customerID {
		return domain.Address{}, pfirestore.NewNotFoundError("addresses.get", "address "+addressID+" not found")
	}
	return addr, nil
}

// List returns every address stored for the customer.
func (r *AddressRepository) List(ctx context.Context, customerID string) ([]domain.Address, error) {
	if r == nil || r.addresses == nil {
		return nil, errors.New("address repository not initialised")
	}
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, errors.New("address list: customer id is required")
	}

	docs, err := r.addresses.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("customerId", "==", customerID).OrderBy("createdAt", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	addrs := make([]domain.Address, 0, len(docs))
	for _, doc := range docs {
		addr := doc.Data
		addr.ID = doc.ID
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

// Upsert stores the address document under its ID.
func (r *AddressRepository) Upsert(ctx context.Context, addr domain.Address) (domain.Address, error) {
	if r == nil || r.addresses == nil {
		return domain.Address{}, errors.New("address repository not initialised")
	}
	if strings.TrimSpace(addr.ID) == "" {
		return domain.Address{}, errors.New("address upsert: address id is required")
	}
	if strings.TrimSpace(addr.CustomerID) == "" {
		return domain.Address{}, errors.New("address upsert: customer id is required")
	}

	if err := r.addresses.Set(ctx, addr.ID, addr); err != nil {
		return domain.Address{}, err
	}
	return addr, nil
}

// Delete removes the address after verifying ownership.
func (r *AddressRepository) Delete(ctx context.Context, customerID string, addressID string) error {
	if r == nil || r.addresses == nil {
		return errors.New("address repository not initialised")
	}

	if _, err := r.Get(ctx, customerID, addressID); err != nil {
		return err
	}
	return r.addresses.Delete(ctx, addressID)
}
