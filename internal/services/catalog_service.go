package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/oakmart/api/internal/domain"
	"github.com/oakmart/api/internal/repositories"
)

const productIDPrefix = "prd_"

var (
	// ErrCatalogInvalidInput signals the caller provided invalid data.
	ErrCatalogInvalidInput = errors.New("catalog: invalid input")
	// ErrProductNotFound indicates the product could not be located.
	ErrProductNotFound = errors.New("catalog: product not found")
	// ErrCatalogInsufficientStock indicates an adjustment would push stock below zero.
	ErrCatalogInsufficientStock = errors.New("catalog: insufficient stock")
	// ErrCatalogUnauthorized indicates the actor lacks permission for the operation.
	ErrCatalogUnauthorized = errors.New("catalog: unauthorized")
	// ErrCatalogUnavailable indicates a transient backend failure.
	ErrCatalogUnavailable = errors.New("catalog: repository unavailable")
)

// CatalogServiceDeps bundles collaborators required to construct the catalog service.
type CatalogServiceDeps struct {
	Catalog     repositories.CatalogRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type catalogService struct {
	catalog repositories.CatalogRepository
	clock   func() time.Time
	newID   func() string
	logger  func(context.Context, string, map[string]any)
}

// NewCatalogService wires dependencies into a concrete CatalogService implementation.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Catalog == nil {
		return nil, errors.New("catalog service: catalog repository is required")
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

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &catalogService{
		catalog: deps.Catalog,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *catalogService) GetProduct(ctx context.Context, productID string) (Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}

	product, err := s.catalog.FindByID(ctx, productID)
	if err != nil {
		return Product{}, s.mapRepositoryError(err)
	}
	return product, nil
}

func (s *catalogService) ListProducts(ctx context.Context, filter ProductListFilter) (domain.CursorPage[Product], error) {
	page, err := s.catalog.List(ctx, repositories.ProductListFilter{
		AvailableOnly: filter.AvailableOnly,
		Pagination:    filter.Pagination,
	})
	if err != nil {
		return domain.CursorPage[Product]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *catalogService) UpsertProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error) {
	if !cmd.Actor.Admin {
		return Product{}, fmt.Errorf("%w: admin role required", ErrCatalogUnauthorized)
	}
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return Product{}, fmt.Errorf("%w: product name is required", ErrCatalogInvalidInput)
	}
	sku := strings.TrimSpace(cmd.SKU)
	if sku == "" {
		return Product{}, fmt.Errorf("%w: product sku is required", ErrCatalogInvalidInput)
	}
	if cmd.UnitPrice < 0 {
		return Product{}, fmt.Errorf("%w: unit price must not be negative", ErrCatalogInvalidInput)
	}
	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if currency == "" {
		return Product{}, fmt.Errorf("%w: currency is required", ErrCatalogInvalidInput)
	}

	now := s.clock()
	product := Product{
		ID:          strings.TrimSpace(cmd.ProductID),
		SKU:         sku,
		Name:        name,
		Description: strings.TrimSpace(cmd.Description),
		UnitPrice:   cmd.UnitPrice,
		Currency:    currency,
		Available:   true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if product.ID == "" {
		product.ID = productIDPrefix + s.newID()
	} else {
		existing, err := s.catalog.FindByID(ctx, product.ID)
		switch {
		case err == nil:
			product.StockQuantity = existing.StockQuantity
			product.Available = existing.Available
			product.CreatedAt = existing.CreatedAt
		case isNotFound(err):
			// new product under a caller-chosen id
		default:
			return Product{}, s.mapRepositoryError(err)
		}
	}

	if cmd.Stock != nil {
		if *cmd.Stock < 0 {
			return Product{}, fmt.Errorf("%w: stock must not be negative", ErrCatalogInvalidInput)
		}
		product.StockQuantity = *cmd.Stock
	}
	if cmd.Available != nil {
		product.Available = *cmd.Available
	}

	saved, err := s.catalog.Upsert(ctx, product)
	if err != nil {
		return Product{}, s.mapRepositoryError(err)
	}

	s.logger(ctx, "catalog.product.upserted", map[string]any{
		"product": saved.ID,
		"sku":     saved.SKU,
		"actor":   cmd.Actor.ID,
	})
	return saved, nil
}

func (s *catalogService) AdjustStock(ctx context.Context, cmd AdjustStockCommand) (Product, error) {
	if !cmd.Actor.Admin {
		return Product{}, fmt.Errorf("%w: admin role required", ErrCatalogUnauthorized)
	}
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}
	if cmd.Delta == 0 {
		return Product{}, fmt.Errorf("%w: delta must not be zero", ErrCatalogInvalidInput)
	}

	product, err := s.catalog.AdjustStock(ctx, productID, cmd.Delta, s.clock())
	if err != nil {
		return Product{}, s.mapRepositoryError(err)
	}

	s.logger(ctx, "catalog.stock.adjusted", map[string]any{
		"product": product.ID,
		"delta":   cmd.Delta,
		"stock":   product.StockQuantity,
		"actor":   cmd.Actor.ID,
	})
	return product, nil
}

func (s *catalogService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var catalogErr *repositories.CatalogError
	if errors.As(err, &catalogErr) {
		switch catalogErr.Code {
		case repositories.CatalogErrorInsufficientStock:
			return fmt.Errorf("%w: %v", ErrCatalogInsufficientStock, err)
		case repositories.CatalogErrorInvalidInput:
			return fmt.Errorf("%w: %v", ErrCatalogInvalidInput, err)
		}
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrProductNotFound, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
		}
	}

	return err
}

func isNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
