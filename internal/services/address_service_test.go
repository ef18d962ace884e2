package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	domain "github.com/oakmart/api/internal/domain"
)

func newTestAddressService(t *testing.T, repo *stubAddressRepository) AddressService {
	t.Helper()
	service, err := NewAddressService(AddressServiceDeps{
		Addresses:   repo,
		Clock:       fixedClock(testNow),
		IDGenerator: sequentialIDs("ADDR"),
	})
	if err != nil {
		t.Fatalf("NewAddressService: %v", err)
	}
	return service
}

func TestSaveAddressCreates(t *testing.T) {
	repo := newStubAddressRepository()
	service := newTestAddressService(t, repo)

	addr, err := service.SaveAddress(context.Background(), SaveAddressCommand{
		CustomerID: "cus_1",
		Recipient:  "Jo Doe",
		Line1:      "1 Main St",
		City:       "Berlin",
		PostalCode: "10115",
		Country:    "de",
	})
	if err != nil {
		t.Fatalf("SaveAddress: %v", err)
	}
	if !strings.HasPrefix(addr.ID, "adr_") {
		t.Fatalf("id = %q", addr.ID)
	}
	if addr.Country != "DE" {
		t.Fatalf("country = %q, want normalised upper case", addr.Country)
	}
}

func TestSaveAddressUpdateKeepsCreatedAt(t *testing.T) {
	created := testNow.AddDate(0, -2, 0)
	repo := newStubAddressRepository(domain.Address{
		ID: "adr_1", CustomerID: "cus_1", Recipient: "Jo Doe", Line1: "1 Main St",
		City: "Berlin", PostalCode: "10115", Country: "DE", CreatedAt: created,
	})
	service := newTestAddressService(t, repo)

	addr, err := service.SaveAddress(context.Background(), SaveAddressCommand{
		CustomerID: "cus_1",
		AddressID:  "adr_1",
		Recipient:  "Jo Doe",
		Line1:      "2 New St",
		City:       "Berlin",
		PostalCode: "10115",
		Country:    "DE",
	})
	if err != nil {
		t.Fatalf("SaveAddress: %v", err)
	}
	if addr.Line1 != "2 New St" {
		t.Fatalf("line1 = %q", addr.Line1)
	}
	if !addr.CreatedAt.Equal(created) {
		t.Fatalf("CreatedAt = %s, want %s", addr.CreatedAt, created)
	}
}

func TestSaveAddressForeignUpdateRejected(t *testing.T) {
	repo := newStubAddressRepository(domain.Address{ID: "adr_1", CustomerID: "cus_2"})
	service := newTestAddressService(t, repo)

	_, err := service.SaveAddress(context.Background(), SaveAddressCommand{
		CustomerID: "cus_1",
		AddressID:  "adr_1",
		Recipient:  "Jo Doe",
		Line1:      "1 Main St",
		City:       "Berlin",
		PostalCode: "10115",
		Country:    "DE",
	})
	if !errors.Is(err, ErrAddressNotFound) {
		t.Fatalf("err = %v, want ErrAddressNotFound", err)
	}
}

func TestSaveAddressValidation(t *testing.T) {
	service := newTestAddressService(t, newStubAddressRepository())

	cases := []SaveAddressCommand{
		{CustomerID: "cus_1", Line1: "1 Main St", City: "Berlin", PostalCode: "10115", Country: "DE"},
		{CustomerID: "cus_1", Recipient: "Jo", City: "Berlin", PostalCode: "10115", Country: "DE"},
		{CustomerID: "cus_1", Recipient: "Jo", Line1: "1 Main St", PostalCode: "10115", Country: "DE"},
		{CustomerID: "cus_1", Recipient: "Jo", Line1: "1 Main St", City: "Berlin", Country: "DE"},
		{CustomerID: "cus_1", Recipient: "Jo", Line1: "1 Main St", City: "Berlin", PostalCode: "10115"},
	}
	for i, cmd := range cases {
		if _, err := service.SaveAddress(context.Background(), cmd); !errors.Is(err, ErrAddressInvalidInput) {
			t.Fatalf("case %d err = %v, want ErrAddressInvalidInput", i, err)
		}
	}
}

func TestDeleteAddressScopedToOwner(t *testing.T) {
	repo := newStubAddressRepository(domain.Address{ID: "adr_1", CustomerID: "cus_1"})
	service := newTestAddressService(t, repo)

	if err := service.DeleteAddress(context.Background(), "cus_2", "adr_1"); !errors.Is(err, ErrAddressNotFound) {
		t.Fatalf("foreign delete err = %v, want ErrAddressNotFound", err)
	}
	if err := service.DeleteAddress(context.Background(), "cus_1", "adr_1"); err != nil {
		t.Fatalf("DeleteAddress: %v", err)
	}
}
