package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/oakmart/api/internal/domain"
)

func newTestCartService(t *testing.T, carts *stubCartRepository, catalog *stubCatalogRepository) CartService {
	t.Helper()
	service, err := NewCartService(CartServiceDeps{
		Carts:   carts,
		Catalog: catalog,
		Clock:   fixedClock(testNow),
	})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}
	return service
}

func TestGetOrCreateCartReturnsEmptyCart(t *testing.T) {
	service := newTestCartService(t, newStubCartRepository(), newStubCatalogRepository())

	cart, err := service.GetOrCreateCart(context.Background(), "cus_1")
	if err != nil {
		t.Fatalf("GetOrCreateCart: %v", err)
	}
	if cart.CustomerID != "cus_1" || len(cart.Lines) != 0 {
		t.Fatalf("cart = %+v", cart)
	}
}

func TestAddOrUpdateLine(t *testing.T) {
	carts := newStubCartRepository()
	catalog := newStubCatalogRepository(domain.Product{ID: "prd_a", Available: true})
	service := newTestCartService(t, carts, catalog)

	cart, err := service.AddOrUpdateLine(context.Background(), UpsertCartLineCommand{CustomerID: "cus_1", ProductID: "prd_a", Quantity: 2})
	if err != nil {
		t.Fatalf("AddOrUpdateLine: %v", err)
	}
	if len(cart.Lines) != 1 || cart.Lines[0].Quantity != 2 {
		t.Fatalf("cart = %+v", cart)
	}

	cart, err = service.AddOrUpdateLine(context.Background(), UpsertCartLineCommand{CustomerID: "cus_1", ProductID: "prd_a", Quantity: 5})
	if err != nil {
		t.Fatalf("AddOrUpdateLine: %v", err)
	}
	if len(cart.Lines) != 1 || cart.Lines[0].Quantity != 5 {
		t.Fatalf("quantity update produced %+v", cart)
	}
}

func TestAddOrUpdateLineZeroQuantityRemoves(t *testing.T) {
	carts := newStubCartRepository(domain.Cart{
		CustomerID: "cus_1",
		Lines:      []domain.CartLine{{ProductID: "prd_a", Quantity: 2}},
	})
	catalog := newStubCatalogRepository(domain.Product{ID: "prd_a", Available: true})
	service := newTestCartService(t, carts, catalog)

	cart, err := service.AddOrUpdateLine(context.Background(), UpsertCartLineCommand{CustomerID: "cus_1", ProductID: "prd_a", Quantity: 0})
	if err != nil {
		t.Fatalf("AddOrUpdateLine: %v", err)
	}
	if len(cart.Lines) != 0 {
		t.Fatalf("zero quantity must remove the line, got %+v", cart.Lines)
	}
}

func TestAddOrUpdateLineRejectsMissingOrUnavailableProduct(t *testing.T) {
	catalog := newStubCatalogRepository(domain.Product{ID: "prd_hidden", Available: false})
	service := newTestCartService(t, newStubCartRepository(), catalog)

	if _, err := service.AddOrUpdateLine(context.Background(), UpsertCartLineCommand{CustomerID: "cus_1", ProductID: "prd_missing", Quantity: 1}); !errors.Is(err, ErrCartProductNotFound) {
		t.Fatalf("err = %v, want ErrCartProductNotFound", err)
	}
	if _, err := service.AddOrUpdateLine(context.Background(), UpsertCartLineCommand{CustomerID: "cus_1", ProductID: "prd_hidden", Quantity: 1}); !errors.Is(err, ErrCartProductUnavailable) {
		t.Fatalf("err = %v, want ErrCartProductUnavailable", err)
	}
}

func TestRemoveLineAbsentIsNoOp(t *testing.T) {
	carts := newStubCartRepository(domain.Cart{
		CustomerID: "cus_1",
		Lines:      []domain.CartLine{{ProductID: "prd_a", Quantity: 1}},
	})
	service := newTestCartService(t, carts, newStubCatalogRepository())

	cart, err := service.RemoveLine(context.Background(), RemoveCartLineCommand{CustomerID: "cus_1", ProductID: "prd_other"})
	if err != nil {
		t.Fatalf("RemoveLine: %v", err)
	}
	if len(cart.Lines) != 1 {
		t.Fatalf("cart = %+v", cart)
	}
	if len(carts.saved) != 0 {
		t.Fatal("removing an absent line must not write")
	}
}

func TestClearCart(t *testing.T) {
	carts := newStubCartRepository(domain.Cart{
		CustomerID: "cus_1",
		Lines:      []domain.CartLine{{ProductID: "prd_a", Quantity: 1}},
	})
	service := newTestCartService(t, carts, newStubCatalogRepository())

	if err := service.ClearCart(context.Background(), "cus_1"); err != nil {
		t.Fatalf("ClearCart: %v", err)
	}
	if len(carts.carts["cus_1"].Lines) != 0 {
		t.Fatalf("cart not cleared: %+v", carts.carts["cus_1"])
	}
}
