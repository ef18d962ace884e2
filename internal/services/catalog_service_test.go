package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	domain "github.com/oakmart/api/internal/domain"
)

func newTestCatalogService(t *testing.T, repo *stubCatalogRepository) CatalogService {
	t.Helper()
	service, err := NewCatalogService(CatalogServiceDeps{
		Catalog:     repo,
		Clock:       fixedClock(testNow),
		IDGenerator: sequentialIDs("CAT"),
	})
	if err != nil {
		t.Fatalf("NewCatalogService: %v", err)
	}
	return service
}

func TestGetProduct(t *testing.T) {
	repo := newStubCatalogRepository(domain.Product{ID: "prd_a", SKU: "SKU-A", Name: "Widget"})
	service := newTestCatalogService(t, repo)

	product, err := service.GetProduct(context.Background(), "prd_a")
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if product.SKU != "SKU-A" {
		t.Fatalf("sku = %q", product.SKU)
	}

	if _, err := service.GetProduct(context.Background(), "prd_missing"); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("err = %v, want ErrProductNotFound", err)
	}
	if _, err := service.GetProduct(context.Background(), "  "); !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("err = %v, want ErrCatalogInvalidInput", err)
	}
}

func TestUpsertProductRequiresAdmin(t *testing.T) {
	service := newTestCatalogService(t, newStubCatalogRepository())

	_, err := service.UpsertProduct(context.Background(), UpsertProductCommand{
		Actor: Actor{ID: "cus_1"},
		SKU:   "SKU-A",
		Name:  "Widget",
	})
	if !errors.Is(err, ErrCatalogUnauthorized) {
		t.Fatalf("err = %v, want ErrCatalogUnauthorized", err)
	}
}

func TestUpsertProductCreates(t *testing.T) {
	repo := newStubCatalogRepository()
	service := newTestCatalogService(t, repo)

	stock := 25
	product, err := service.UpsertProduct(context.Background(), UpsertProductCommand{
		Actor:     Actor{ID: "adm_1", Admin: true},
		SKU:       "SKU-A",
		Name:      "Widget",
		UnitPrice: 1500,
		Currency:  "eur",
		Stock:     &stock,
	})
	if err != nil {
		t.Fatalf("UpsertProduct: %v", err)
	}
	if !strings.HasPrefix(product.ID, "prd_") {
		t.Fatalf("id = %q", product.ID)
	}
	if product.Currency != "EUR" {
		t.Fatalf("currency = %q, want normalised upper case", product.Currency)
	}
	if product.StockQuantity != 25 || !product.Available {
		t.Fatalf("stock/available = %d/%v", product.StockQuantity, product.Available)
	}
}

func TestUpsertProductPreservesStockOnUpdate(t *testing.T) {
	repo := newStubCatalogRepository(domain.Product{
		ID: "prd_a", SKU: "SKU-A", Name: "Widget", UnitPrice: 1500, Currency: "EUR",
		StockQuantity: 7, Available: false, CreatedAt: testNow.AddDate(0, -1, 0),
	})
	service := newTestCatalogService(t, repo)

	product, err := service.UpsertProduct(context.Background(), UpsertProductCommand{
		Actor:     Actor{ID: "adm_1", Admin: true},
		ProductID: "prd_a",
		SKU:       "SKU-A",
		Name:      "Widget v2",
		UnitPrice: 1600,
		Currency:  "EUR",
	})
	if err != nil {
		t.Fatalf("UpsertProduct: %v", err)
	}
	if product.StockQuantity != 7 {
		t.Fatalf("stock = %d, update without Stock must keep the count", product.StockQuantity)
	}
	if product.Available {
		t.Fatal("availability flag must survive update")
	}
	if !product.CreatedAt.Equal(testNow.AddDate(0, -1, 0)) {
		t.Fatalf("CreatedAt = %s", product.CreatedAt)
	}
	if product.Name != "Widget v2" || product.UnitPrice != 1600 {
		t.Fatalf("update not applied: %+v", product)
	}
}

func TestUpsertProductValidation(t *testing.T) {
	service := newTestCatalogService(t, newStubCatalogRepository())
	admin := Actor{ID: "adm_1", Admin: true}

	cases := []UpsertProductCommand{
		{Actor: admin, SKU: "SKU-A", UnitPrice: 100, Currency: "EUR"},
		{Actor: admin, Name: "Widget", UnitPrice: 100, Currency: "EUR"},
		{Actor: admin, Name: "Widget", SKU: "SKU-A", UnitPrice: -1, Currency: "EUR"},
		{Actor: admin, Name: "Widget", SKU: "SKU-A", UnitPrice: 100},
	}
	for i, cmd := range cases {
		if _, err := service.UpsertProduct(context.Background(), cmd); !errors.Is(err, ErrCatalogInvalidInput) {
			t.Fatalf("case %d err = %v, want ErrCatalogInvalidInput", i, err)
		}
	}
}

func TestAdjustStock(t *testing.T) {
	repo := newStubCatalogRepository(domain.Product{ID: "prd_a", StockQuantity: 5})
	service := newTestCatalogService(t, repo)
	admin := Actor{ID: "adm_1", Admin: true}

	product, err := service.AdjustStock(context.Background(), AdjustStockCommand{Actor: admin, ProductID: "prd_a", Delta: -3})
	if err != nil {
		t.Fatalf("AdjustStock: %v", err)
	}
	if product.StockQuantity != 2 {
		t.Fatalf("stock = %d", product.StockQuantity)
	}

	if _, err := service.AdjustStock(context.Background(), AdjustStockCommand{Actor: admin, ProductID: "prd_a", Delta: -10}); !errors.Is(err, ErrCatalogInsufficientStock) {
		t.Fatalf("err = %v, want ErrCatalogInsufficientStock", err)
	}
	if _, err := service.AdjustStock(context.Background(), AdjustStockCommand{Actor: admin, ProductID: "prd_a", Delta: 0}); !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("err = %v, want ErrCatalogInvalidInput", err)
	}
	if _, err := service.AdjustStock(context.Background(), AdjustStockCommand{Actor: Actor{ID: "cus_1"}, ProductID: "prd_a", Delta: 1}); !errors.Is(err, ErrCatalogUnauthorized) {
		t.Fatalf("err = %v, want ErrCatalogUnauthorized", err)
	}
}

func TestCatalogUnavailableMapping(t *testing.T) {
	repo := newStubCatalogRepository()
	repo.findErr = unavailableErr("firestore down")
	service := newTestCatalogService(t, repo)

	if _, err := service.GetProduct(context.Background(), "prd_a"); !errors.Is(err, ErrCatalogUnavailable) {
		t.Fatalf("err = %v, want ErrCatalogUnavailable", err)
	}
}
