package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/oakmart/api/internal/domain"
	pfirestore "github.com/oakmart/api/internal/platform/firestore"
	"github.com/oakmart/api/internal/repositories"
)

const shipmentsCollection = "shipments"

// ShipmentRepository implements repositories.ShipmentRepository backed by Firestore.
type ShipmentRepository struct {
	shipments *pfirestore.BaseRepository[domain.Shipment]
}

// NewShipmentRepository constructs a Firestore-backed shipment repository.
func NewShipmentRepository(provider *pfirestore.Provider) (*ShipmentRepository, error) {
	if provider == nil {
		return nil, errors.New("shipment repository requires firestore provider")
	}
	return &ShipmentRepository{
		shipments: pfirestore.NewBaseRepository[domain.Shipment](provider, shipmentsCollection),
	}, nil
}

// Insert creates the shipment document.
func (r *ShipmentRepository) Insert(ctx context.Context, shipment domain.Shipment) error {
	if r == nil || r.shipments == nil {
		return errors.New("shipment repository not initialised")
	}
	if strings.TrimSpace(shipment.ID) == "" {
		return errors.New("shipment insert: shipment id is required")
	}

	ref, err := r.shipments.DocumentRef(ctx, shipment.ID)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, shipment); err != nil {
		return pfirestore.WrapError("shipments.insert", err)
	}
	return nil
}

// Update replaces the stored shipment document.
func (r *ShipmentRepository) Update(ctx context.Context, shipment domain.Shipment) error {
	if r == nil || r.shipments == nil {
		return errors.New("shipment repository not initialised")
	}
	if strings.TrimSpace(shipment.ID) == "" {
		return errors.New("shipment update: shipment id is required")
	}
	return r.shipments.Set(ctx, shipment.ID, shipment)
}

// FindByID fetches a single shipment.
func (r *ShipmentRepository) FindByID(ctx context.Context, shipmentID string) (domain.Shipment, error) {
	if r == nil || r.shipments == nil {
		return domain.Shipment{}, errors.New("shipment repository not initialised")
	}
	shipmentID = strings.TrimSpace(shipmentID)
	if shipmentID == "" {
		return domain.Shipment{}, errors.New("shipment find: shipment id is required")
	}

	doc, err := r.shipments.Get(ctx, shipmentID)
	if err != nil {
		return domain.Shipment{}, err
	}
	shipment := doc.Data
	shipment.ID = doc.ID
	return shipment, nil
}

// FindByOrder fetches the shipment attached to the given order.
func (r *ShipmentRepository) FindByOrder(ctx context.Context, orderID string) (domain.Shipment, error) {
	if r == nil || r.shipments == nil {
		return domain.Shipment{}, errors.New("shipment repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Shipment{}, errors.New("shipment find: order id is required")
	}

	docs, err := r.shipments.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("orderId", "==", orderID).Limit(1)
	})
	if err != nil {
		return domain.Shipment{}, err
	}
	if len(docs) == 0 {
		return domain.Shipment{}, pfirestore.NewNotFoundError("shipments.findByOrder", "shipment for order "+orderID+" not found")
	}
	shipment := docs[0].Data
	shipment.ID = docs[0].ID
	return shipment, nil
}

// List returns a page of shipments ordered by creation time, newest first.
func (r *ShipmentRepository) List(ctx context.Context, filter repositories.ShipmentListFilter) (domain.CursorPage[domain.Shipment], error) {
	if r == nil || r.shipments == nil {
		return domain.CursorPage[domain.Shipment]{}, errors.New("shipment repository not initialised")
	}

	pageSize := clampPageSize(filter.Pagination.PageSize, 50, 200)

	type shipmentToken struct {
		CreatedAt time.Time `json:"createdAt"`
		ID        string    `json:"id"`
	}
	var startAfter *shipmentToken
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		var decoded shipmentToken
		if err := decodePageToken(token, &decoded); err != nil {
			return domain.CursorPage[domain.Shipment]{}, pfirestore.WrapError("shipments.list", err)
		}
		startAfter = &decoded
	}

	docs, err := r.shipments.Query(ctx, func(query firestore.Query) firestore.Query {
		switch {
		case filter.DeliveredOnly:
			query = query.Where("delivered", "==", true)
		case filter.UndeliveredOnly:
			query = query.Where("delivered", "==", false)
		}
		query = query.
			OrderBy("createdAt", firestore.Desc).
			OrderBy(firestore.DocumentID, firestore.Desc).
			Limit(pageSize + 1)
		if startAfter != nil {
			query = query.StartAfter(startAfter.CreatedAt, startAfter.ID)
		}
		return query
	})
	if err != nil {
		return domain.CursorPage[domain.Shipment]{}, err
	}

	shipments := make([]domain.Shipment, 0, len(docs))
	for _, doc := range docs {
		shipment := doc.Data
		shipment.ID = doc.ID
		shipments = append(shipments, shipment)
	}

	hasMore := len(shipments) > pageSize
	if hasMore {
		shipments = shipments[:pageSize]
	}
	var nextToken string
	if hasMore && len(shipments) > 0 {
		last := shipments[len(shipments)-1]
		encoded, err := encodePageToken(shipmentToken{CreatedAt: last.CreatedAt, ID: last.ID})
		if err != nil {
			return domain.CursorPage[domain.Shipment]{}, pfirestore.WrapError("shipments.list", err)
		}
		nextToken = encoded
	}

	return domain.CursorPage[domain.Shipment]{
		Items:         shipments,
		NextPageToken: nextToken,
	}, nil
}
