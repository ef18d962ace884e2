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

const productsCollection = "products"

// CatalogRepository implements repositories.CatalogRepository backed by Firestore.
type CatalogRepository struct {
	provider *pfirestore.Provider
	products *pfirestore.BaseRepository[domain.Product]
}

// NewCatalogRepository constructs a Firestore-backed catalog repository.
func NewCatalogRepository(provider *pfirestore.Provider) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository requires firestore provider")
	}
	return &CatalogRepository{
		provider: provider,
		products: pfirestore.NewBaseRepository[domain.Product](provider, productsCollection),
	}, nil
}

// FindByID fetches a single product.
func (r *CatalogRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.products == nil {
		return domain.Product{}, errors.New("catalog repository not initialised")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, repositories.NewCatalogError(repositories.CatalogErrorInvalidInput, "product id is required", nil)
	}

	doc, err := r.products.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	product := doc.Data
	product.ID = doc.ID
	return product, nil
}

// List returns a page of products ordered by SKU.
func (r *CatalogRepository) List(ctx context.Context, filter repositories.ProductListFilter) (domain.CursorPage[domain.Product], error) {
	if r == nil || r.products == nil {
		return domain.CursorPage[domain.Product]{}, errors.New("catalog repository not initialised")
	}

	pageSize := clampPageSize(filter.Pagination.PageSize, 50, 200)

	type productToken struct {
		SKU string `json:"sku"`
	}
	var startAfter *productToken
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		var decoded productToken
		if err := decodePageToken(token, &decoded); err != nil {
			return domain.CursorPage[domain.Product]{}, pfirestore.WrapError("products.list", err)
		}
		startAfter = &decoded
	}

	docs, err := r.products.Query(ctx, func(query firestore.Query) firestore.Query {
		if filter.AvailableOnly {
			query = query.Where("available", "==", true)
		}
		query = query.OrderBy("sku", firestore.Asc).Limit(pageSize + 1)
		if startAfter != nil {
			query = query.StartAfter(startAfter.SKU)
		}
		return query
	})
	if err != nil {
		return domain.CursorPage[domain.Product]{}, err
	}

	products := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		product := doc.Data
		product.ID = doc.ID
		products = append(products, product)
	}

	hasMore := len(products) > pageSize
	if hasMore {
		products = products[:pageSize]
	}
	var nextToken string
	if hasMore && len(products) > 0 {
		encoded, err := encodePageToken(productToken{SKU: products[len(products)-1].SKU})
		if err != nil {
			return domain.CursorPage[domain.Product]{}, pfirestore.WrapError("products.list", err)
		}
		nextToken = encoded
	}

	return domain.CursorPage[domain.Product]{
		Items:         products,
		NextPageToken: nextToken,
	}, nil
}

// Upsert stores the product document under its ID.
func (r *CatalogRepository) Upsert(ctx context.Context, product domain.Product) (domain.Product, error) {
	if r == nil || r.products == nil {
		return domain.Product{}, errors.New("catalog repository not initialised")
	}
	if strings.TrimSpace(product.ID) == "" {
		return domain.Product{}, repositories.NewCatalogError(repositories.CatalogErrorInvalidInput, "product id is required", nil)
	}

	if err := r.products.Set(ctx, product.ID, product); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

// AdjustStock applies delta to the product's stock count inside a transaction.
// Adjustments that would push stock below zero are rejected.
func (r *CatalogRepository) AdjustStock(ctx context.Context, productID string, delta int, now time.Time) (domain.Product, error) {
	if r == nil || r.provider == nil {
		return domain.Product{}, errors.New("catalog repository not initialised")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, repositories.NewCatalogError(repositories.CatalogErrorInvalidInput, "product id is required", nil)
	}

	now = now.UTC()
	var updated domain.Product

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.products.DocumentRef(ctx, productID)
		if err != nil {
			return err
		}

		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return pfirestore.WrapError("products.adjustStock", err)
			}
			return err
		}

		var product domain.Product
		if err := snap.DataTo(&product); err != nil {
			return fmt.Errorf("decode product %s: %w", productID, err)
		}

		next := product.StockQuantity + delta
		if next < 0 {
			return repositories.NewCatalogError(
				repositories.CatalogErrorInsufficientStock,
				fmt.Sprintf("stock for %s cannot drop below zero", productID),
				nil,
			)
		}

		if err := tx.Update(ref, []firestore.Update{
			{Path: "stockQuantity", Value: next},
			{Path: "updatedAt", Value: now},
		}); err != nil {
			return err
		}

		product.ID = productID
		product.StockQuantity = next
		product.UpdatedAt = now
		updated = product
		return nil
	})
	if err != nil {
		var catalogErr *repositories.CatalogError
		if errors.As(err, &catalogErr) {
			if catalogErr.Op == "" {
				catalogErr.Op = "products.adjustStock"
			}
			return domain.Product{}, catalogErr
		}
		return domain.Product{}, pfirestore.WrapError("products.adjustStock", err)
	}
	return updated, nil
}
