package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/oakmart/api/internal/repositories"
)

const addressIDPrefix = "adr_"

var (
	// ErrAddressInvalidInput signals the caller provided invalid data.
	ErrAddressInvalidInput = errors.New("address: invalid input")
	// ErrAddressNotFound indicates the address could not be located for the customer.
	ErrAddressNotFound = errors.New("address: not found")
	// ErrAddressUnavailable indicates a transient backend failure.
	ErrAddressUnavailable = errors.New("address: repository unavailable")
)

// AddressServiceDeps bundles collaborators required to construct the address service.
type AddressServiceDeps struct {
	Addresses   repositories.AddressRepository
	Clock       func() time.Time
	IDGenerator func() string
}

type addressService struct {
	addresses repositories.AddressRepository
	clock     func() time.Time
	newID     func() string
}

// NewAddressService wires dependencies into a concrete AddressService implementation.
func NewAddressService(deps AddressServiceDeps) (AddressService, error) {
	if deps.Addresses == nil {
		return nil, errors.New("address service: address repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	return &addressService{
		addresses: deps.Addresses,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID: idGen,
	}, nil
}

func (s *addressService) ListAddresses(ctx context.Context, customerID string) ([]Address, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, fmt.Errorf("%w: customer id is required", ErrAddressInvalidInput)
	}

	addresses, err := s.addresses.List(ctx, customerID)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return addresses, nil
}

func (s *addressService) GetAddress(ctx context.Context, customerID string, addressID string) (Address, error) {
	customerID = strings.TrimSpace(customerID)
	addressID = strings.TrimSpace(addressID)
	if customerID == "" || addressID == "" {
		return Address{}, fmt.Errorf("%w: customer id and address id are required", ErrAddressInvalidInput)
	}

	addr, err := s.addresses.Get(ctx, customerID, addressID)
	if err != nil {
		return Address{}, s.mapRepositoryError(err)
	}
	return addr, nil
}

// SaveAddress creates a new address when no AddressID is given, otherwise
// replaces the existing one after an ownership check.
func (s *addressService) SaveAddress(ctx context.Context, cmd SaveAddressCommand) (Address, error) {
	customerID := strings.TrimSpace(cmd.CustomerID)
	if customerID == "" {
		return Address{}, fmt.Errorf("%w: customer id is required", ErrAddressInvalidInput)
	}
	recipient := strings.TrimSpace(cmd.Recipient)
	if recipient == "" {
		return Address{}, fmt.Errorf("%w: recipient is required", ErrAddressInvalidInput)
	}
	line1 := strings.TrimSpace(cmd.Line1)
	if line1 == "" {
		return Address{}, fmt.Errorf("%w: address line 1 is required", ErrAddressInvalidInput)
	}
	city := strings.TrimSpace(cmd.City)
	if city == "" {
		return Address{}, fmt.Errorf("%w: city is required", ErrAddressInvalidInput)
	}
	postalCode := strings.TrimSpace(cmd.PostalCode)
	if postalCode == "" {
		return Address{}, fmt.Errorf("%w: postal code is required", ErrAddressInvalidInput)
	}
	country := strings.ToUpper(strings.TrimSpace(cmd.Country))
	if country == "" {
		return Address{}, fmt.Errorf("%w: country is required", ErrAddressInvalidInput)
	}

	now := s.clock()
	addr := Address{
		ID:         strings.TrimSpace(cmd.AddressID),
		CustomerID: customerID,
		Recipient:  recipient,
		Line1:      line1,
		Line2:      strings.TrimSpace(cmd.Line2),
		City:       city,
		Region:     strings.TrimSpace(cmd.Region),
		PostalCode: postalCode,
		Country:    country,
		Phone:      strings.TrimSpace(cmd.Phone),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if addr.ID == "" {
		addr.ID = addressIDPrefix + s.newID()
	} else {
		existing, err := s.addresses.Get(ctx, customerID, addr.ID)
		if err != nil {
			return Address{}, s.mapRepositoryError(err)
		}
		addr.CreatedAt = existing.CreatedAt
	}

	saved, err := s.addresses.Upsert(ctx, addr)
	if err != nil {
		return Address{}, s.mapRepositoryError(err)
	}
	return saved, nil
}

func (s *addressService) DeleteAddress(ctx context.Context, customerID string, addressID string) error {
	customerID = strings.TrimSpace(customerID)
	addressID = strings.TrimSpace(addressID)
	if customerID == "" || addressID == "" {
		return fmt.Errorf("%w: customer id and address id are required", ErrAddressInvalidInput)
	}

	if err := s.addresses.Delete(ctx, customerID, addressID); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *addressService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrAddressNotFound, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrAddressUnavailable, err)
		}
	}

	return err
}
