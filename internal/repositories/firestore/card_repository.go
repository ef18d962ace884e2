package firestore

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"

	domain "github.com/oakmart/api/internal/domain"
	pfirestore "github.com/oakmart/api/internal/platform/firestore"
)

const cardsCollection = "paymentCards"

// StoredCardRepository implements repositories.StoredCardRepository backed by
// Firestore. Only tokenised card references are stored, never raw numbers.
type StoredCardRepository struct {
	cards *pfirestore.BaseRepository[domain.StoredCard]
}

// NewStoredCardRepository constructs a Firestore-backed card repository.
func NewStoredCardRepository(provider *pfirestore.Provider) (*StoredCardRepository, error) {
	if provider == nil {
		return nil, errors.New("card repository requires firestore provider")
	}
	return &StoredCardRepository{
		cards: pfirestore.NewBaseRepository[domain.StoredCard](provider, cardsCollection),
	}, nil
}

// Get fetches a stored card and verifies it belongs to the customer.
func (r *StoredCardRepository) Get(ctx context.Context, customerID string, cardID string) (domain.StoredCard, error) {
	if r == nil || r.cards == nil {
		return domain.StoredCard{}, errors.New("card repository not initialised")
	}
	customerID = strings.TrimSpace(customerID)
	cardID = strings.TrimSpace(cardID)
	if customerID == "" || cardID == "" {
		return domain.StoredCard{}, errors.New("card get: customer id and card id are required")
	}

	doc, err := r.cards.Get(ctx, cardID)
	if err != nil {
		return domain.StoredCard{}, err
	}
	card := doc.Data
	card.ID = doc.ID
	if card.CustomerID != customerID {
		return domain.StoredCard{}, pfirestore.NewNotFoundError("paymentCards.get", "card "+cardID+" not found")
	}
	return card, nil
}

// List returns every stored card for the customer.
func (r *StoredCardRepository) List(ctx context.Context, customerID string) ([]domain.StoredCard, error) {
	if r == nil || r.cards == nil {
		return nil, errors.New("card repository not initialised")
	}
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, errors.New("card list: customer id is required")
	}

	docs, err := r.cards.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("customerId", "==", customerID).OrderBy("createdAt", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	cards := make([]domain.StoredCard, 0, len(docs))
	for _, doc := range docs {
		card := doc.Data
		card.ID = doc.ID
		cards = append(cards, card)
	}
	return cards, nil
}

// Insert creates the card document, failing if the ID already exists.
func (r *StoredCardRepository) Insert(ctx context.Context, card domain.StoredCard) (domain.StoredCard, error) {
	if r == nil || r.cards == nil {
		return domain.StoredCard{}, errors.New("card repository not initialised")
	}
	if strings.TrimSpace(card.ID) == "" {
		return domain.StoredCard{}, errors.New("card insert: card id is required")
	}
	if strings.TrimSpace(card.CustomerID) == "" {
		return domain.StoredCard{}, errors.New("card insert: customer id is required")
	}

	ref, err := r.cards.DocumentRef(ctx, card.ID)
	if err != nil {
		return domain.StoredCard{}, err
	}
	if _, err := ref.Create(ctx, card); err != nil {
		return domain.StoredCard{}, pfirestore.WrapError("paymentCards.insert", err)
	}
	return card, nil
}

// Delete removes the card after verifying ownership.
func (r *StoredCardRepository) Delete(ctx context.Context, customerID string, cardID string) error {
	if r == nil || r.cards == nil {
		return errors.New("card repository not initialised")
	}

	if _, err := r.Get(ctx, customerID, cardID); err != nil {
		return err
	}
	return r.cards.Delete(ctx, cardID)
}
