package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/oakmart/api/internal/domain"
	"github.com/oakmart/api/internal/platform/httpx"
	"github.com/oakmart/api/internal/services"
)

const maxCardBodySize = 4 * 1024

// CardHandlers exposes stored payment cards under /me/cards.
type CardHandlers struct {
	cards services.StoredCardService
}

// NewCardHandlers constructs a new CardHandlers instance.
func NewCardHandlers(cards services.StoredCardService) *CardHandlers {
	return &CardHandlers{cards: cards}
}

// Routes registers the stored card endpoints. Callers mount this inside an
// authenticated group.
func (h *CardHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listCards)
	r.Post("/", h.addCard)
	r.Delete("/{cardID}", h.deleteCard)
}

func (h *CardHandlers) listCards(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	cards, err := h.cards.ListCards(ctx, actor.ID)
	if err != nil {
		writeCardError(ctx, w, err)
		return
	}

	items := make([]cardPayload, 0, len(cards))
	for _, card := range cards {
		items = append(items, buildCardPayload(card))
	}
	writeJSONResponse(w, http.StatusOK, cardListResponse{Items: items})
}

func (h *CardHandlers) addCard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	var req cardInputPayload
	if !decodeJSONBody(ctx, w, r, maxCardBodySize, &req) {
		return
	}

	card, err := h.cards.AddCard(ctx, services.AddCardCommand{
		CustomerID: actor.ID,
		Card: domain.CardInput{
			Number:   req.Number,
			Provider: req.Provider,
			ExpMonth: req.ExpMonth,
			ExpYear:  req.ExpYear,
			CVC:      req.CVC,
		},
	})
	if err != nil {
		writeCardError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, cardResponse{Card: buildCardPayload(card)})
}

func (h *CardHandlers) deleteCard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	cardID := strings.TrimSpace(chi.URLParam(r, "cardID"))
	if err := h.cards.DeleteCard(ctx, actor.ID, cardID); err != nil {
		writeCardError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type cardListResponse struct {
	Items []cardPayload `json:"items"`
}

type cardResponse struct {
	Card cardPayload `json:"card"`
}

type cardPayload struct {
	ID        string `json:"id"`
	Provider  string `json:"provider,omitempty"`
	Last4     string `json:"last4"`
	ExpMonth  int    `json:"exp_month"`
	ExpYear   int    `json:"exp_year"`
	CreatedAt string `json:"created_at,omitempty"`
}

func buildCardPayload(card services.StoredCard) cardPayload {
	return cardPayload{
		ID:        card.ID,
		Provider:  card.Provider,
		Last4:     card.Last4,
		ExpMonth:  card.ExpMonth,
		ExpYear:   card.ExpYear,
		CreatedAt: formatTime(card.CreatedAt),
	}
}

func writeCardError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCardInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCardNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("card_not_found", "card not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCardUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("card_unavailable", "stored cards temporarily unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("card_error", "failed to process card request", http.StatusInternalServerError))
	}
}
