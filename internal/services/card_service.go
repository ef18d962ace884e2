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

const cardIDPrefix = "crd_"

var (
	// ErrCardInvalidInput signals the caller provided invalid card data.
	ErrCardInvalidInput = errors.New("card: invalid input")
	// ErrCardNotFound indicates the stored card could not be located for the customer.
	ErrCardNotFound = errors.New("card: not found")
	// ErrCardUnavailable indicates a transient backend failure.
	ErrCardUnavailable = errors.New("card: repository unavailable")
)

// StoredCardServiceDeps bundles collaborators required to construct the stored card service.
type StoredCardServiceDeps struct {
	Cards       repositories.StoredCardRepository
	Clock       func() time.Time
	IDGenerator func() string
}

type storedCardService struct {
	cards repositories.StoredCardRepository
	clock func() time.Time
	newID func() string
}

// NewStoredCardService wires dependencies into a concrete StoredCardService implementation.
func NewStoredCardService(deps StoredCardServiceDeps) (StoredCardService, error) {
	if deps.Cards == nil {
		return nil, errors.New("stored card service: card repository is required")
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

	return &storedCardService{
		cards: deps.Cards,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID: idGen,
	}, nil
}

func (s *storedCardService) ListCards(ctx context.Context, customerID string) ([]StoredCard, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, fmt.Errorf("%w: customer id is required", ErrCardInvalidInput)
	}

	cards, err := s.cards.List(ctx, customerID)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return cards, nil
}

// AddCard validates the submitted card, derives the stored token and display
// metadata, and persists the reference. The raw card number never leaves this
// method.
func (s *storedCardService) AddCard(ctx context.Context, cmd AddCardCommand) (StoredCard, error) {
	customerID := strings.TrimSpace(cmd.CustomerID)
	if customerID == "" {
		return StoredCard{}, fmt.Errorf("%w: customer id is required", ErrCardInvalidInput)
	}
	if err := ValidateCardInput(cmd.Card, s.clock()); err != nil {
		return StoredCard{}, err
	}

	number := digitsOnly(cmd.Card.Number)
	now := s.clock()
	card := StoredCard{
		ID:         cardIDPrefix + s.newID(),
		CustomerID: customerID,
		Provider:   strings.ToLower(strings.TrimSpace(cmd.Card.Provider)),
		Token:      "tok_" + s.newID(),
		Last4:      number[len(number)-4:],
		ExpMonth:   cmd.Card.ExpMonth,
		ExpYear:    cmd.Card.ExpYear,
		CreatedAt:  now,
	}

	saved, err := s.cards.Insert(ctx, card)
	if err != nil {
		return StoredCard{}, s.mapRepositoryError(err)
	}
	return saved, nil
}

func (s *storedCardService) DeleteCard(ctx context.Context, customerID string, cardID string) error {
	customerID = strings.TrimSpace(customerID)
	cardID = strings.TrimSpace(cardID)
	if customerID == "" || cardID == "" {
		return fmt.Errorf("%w: customer id and card id are required", ErrCardInvalidInput)
	}

	if err := s.cards.Delete(ctx, customerID, cardID); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

// ValidateCardInput checks freshly entered card details before they reach a
// payment provider. Errors wrap ErrCardInvalidInput.
func ValidateCardInput(card CardInput, now time.Time) error {
	number := digitsOnly(card.Number)
	if len(number) < 12 || len(number) > 19 {
		return fmt.Errorf("%w: card number must be 12 to 19 digits", ErrCardInvalidInput)
	}
	if card.ExpMonth < 1 || card.ExpMonth > 12 {
		return fmt.Errorf("%w: expiry month must be between 1 and 12", ErrCardInvalidInput)
	}
	if card.ExpYear < now.Year() || (card.ExpYear == now.Year() && card.ExpMonth < int(now.Month())) {
		return fmt.Errorf("%w: card is expired", ErrCardInvalidInput)
	}
	if strings.TrimSpace(card.Provider) == "" {
		return fmt.Errorf("%w: card provider is required", ErrCardInvalidInput)
	}
	if cvc := digitsOnly(card.CVC); len(cvc) < 3 || len(cvc) > 4 {
		return fmt.Errorf("%w: security code must be 3 or 4 digits", ErrCardInvalidInput)
	}
	return nil
}

func digitsOnly(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (s *storedCardService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrCardNotFound, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrCardUnavailable, err)
		}
	}

	return err
}
