package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	domain "github.com/oakmart/api/internal/domain"
	"github.com/oakmart/api/internal/services"
)

// StripeLogger defines the logging contract for Stripe provider operations.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

type stripePaymentIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type stripePaymentMethodAPI interface {
	New(params *stripe.PaymentMethodParams) (*stripe.PaymentMethod, error)
}

type stripeClients struct {
	intents        stripePaymentIntentAPI
	paymentMethods stripePaymentMethodAPI
}

// StoredCardResolver maps a stored card id to its persisted token. Satisfied
// by repositories.StoredCardRepository.
type StoredCardResolver interface {
	Get(ctx context.Context, customerID string, cardID string) (domain.StoredCard, error)
}

// StripeProviderConfig configures the StripeProvider.
type StripeProviderConfig struct {
	APIKey      string
	AccountID   string
	Backends    *stripe.Backends
	StoredCards StoredCardResolver
	Logger      StripeLogger
	Clock       func() time.Time
	Clients     *stripeClients
}

// StripeProvider charges orders through Stripe Payment Intents.
type StripeProvider struct {
	api         stripeClients
	account     string
	storedCards StoredCardResolver
	clock       func() time.Time
	logger      StripeLogger
}

// NewStripeProvider constructs a Stripe Provider using the given configuration.
func NewStripeProvider(cfg StripeProviderConfig) (*StripeProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Clients == nil {
		return nil, errors.New("stripe: api key is required")
	}

	var clients stripeClients
	if cfg.Clients != nil {
		clients = *cfg.Clients
	} else {
		sc := client.New(apiKey, cfg.Backends)
		clients = stripeClients{
			intents:        sc.PaymentIntents,
			paymentMethods: sc.PaymentMethods,
		}
	}

	if clients.intents == nil || clients.paymentMethods == nil {
		return nil, errors.New("stripe: incomplete client configuration")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &StripeProvider{
		api:         clients,
		account:     strings.TrimSpace(cfg.AccountID),
		storedCards: cfg.StoredCards,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Charge creates and confirms a Payment Intent for the order. The order id
// doubles as the idempotency key so a retried request cannot charge twice.
func (p *StripeProvider) Charge(ctx context.Context, req services.PaymentChargeRequest) (services.PaymentChargeResult, error) {
	if p == nil {
		return services.PaymentChargeResult{}, errors.New("stripe: provider is nil")
	}

	methodID, err := p.resolvePaymentMethod(ctx, req)
	if err != nil {
		if result, declined := declineResult(err); declined {
			p.logger(ctx, "payments.stripe.card.declined", map[string]any{
				"order":  req.OrderID,
				"reason": result.FailureReason,
			})
			return result, nil
		}
		return services.PaymentChargeResult{}, err
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.AmountMinor),
		Currency:      stripe.String(strings.ToLower(req.Currency)),
		PaymentMethod: stripe.String(methodID),
		Confirm:       stripe.Bool(true),
		Metadata: map[string]string{
			"orderId":     req.OrderID,
			"orderNumber": req.OrderNumber,
			"customerId":  req.CustomerID,
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey("order:" + req.OrderID)
	if p.account != "" {
		params.SetStripeAccount(p.account)
	}

	intent, err := p.api.intents.New(params)
	if err != nil {
		if result, declined := declineResult(err); declined {
			p.logger(ctx, "payments.stripe.intent.declined", map[string]any{
				"order":  req.OrderID,
				"reason": result.FailureReason,
			})
			return result, nil
		}
		return services.PaymentChargeResult{}, fmt.Errorf("stripe: create payment intent: %w", err)
	}

	result := intentResult(intent)
	if req.Card != nil && strings.TrimSpace(req.StoredCardID) == "" {
		// Freshly tokenised method, reusable if the caller wants to save it.
		result.CardToken = methodID
	}
	p.logger(ctx, "payments.stripe.intent.created", map[string]any{
		"order":         req.OrderID,
		"paymentIntent": intent.ID,
		"status":        string(intent.Status),
	})
	return result, nil
}

func (p *StripeProvider) resolvePaymentMethod(ctx context.Context, req services.PaymentChargeRequest) (string, error) {
	if cardID := strings.TrimSpace(req.StoredCardID); cardID != "" {
		if p.storedCards == nil {
			return "", errors.New("stripe: stored card resolver not configured")
		}
		card, err := p.storedCards.Get(ctx, req.CustomerID, cardID)
		if err != nil {
			return "", fmt.Errorf("stripe: resolve stored card %s: %w", cardID, err)
		}
		return card.Token, nil
	}

	if req.Card == nil {
		return "", errors.New("stripe: card details required")
	}

	params := &stripe.PaymentMethodParams{
		Type: stripe.String(string(stripe.PaymentMethodTypeCard)),
		Card: &stripe.PaymentMethodCardParams{
			Number:   stripe.String(req.Card.Number),
			ExpMonth: stripe.Int64(int64(req.Card.ExpMonth)),
			ExpYear:  stripe.Int64(int64(req.Card.ExpYear)),
			CVC:      stripe.String(req.Card.CVC),
		},
	}
	params.Context = ctx
	if p.account != "" {
		params.SetStripeAccount(p.account)
	}

	method, err := p.api.paymentMethods.New(params)
	if err != nil {
		if result, declined := declineResult(err); declined {
			return "", &declineError{result: result}
		}
		return "", fmt.Errorf("stripe: create payment method: %w", err)
	}
	return method.ID, nil
}

// declineError carries a decline raised while tokenising the card so Charge
// can surface it as a failed result instead of a transport error.
type declineError struct {
	result services.PaymentChargeResult
}

func (e *declineError) Error() string {
	return "stripe: card declined: " + e.result.FailureReason
}

func intentResult(intent *stripe.PaymentIntent) services.PaymentChargeResult {
	if intent == nil {
		return services.PaymentChargeResult{Status: domain.PaymentStatusPending}
	}

	status := domain.PaymentStatusPending
	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		status = domain.PaymentStatusCompleted
	case stripe.PaymentIntentStatusCanceled:
		status = domain.PaymentStatusFailed
	case stripe.PaymentIntentStatusProcessing,
		stripe.PaymentIntentStatusRequiresAction,
		stripe.PaymentIntentStatusRequiresConfirmation,
		stripe.PaymentIntentStatusRequiresCapture,
		stripe.PaymentIntentStatusRequiresPaymentMethod:
		status = domain.PaymentStatusPending
	}

	reason := ""
	if intent.LastPaymentError != nil {
		reason = string(intent.LastPaymentError.DeclineCode)
		if reason == "" {
			reason = string(intent.LastPaymentError.Code)
		}
	}

	return services.PaymentChargeResult{
		Status:        status,
		Reference:     intent.ID,
		FailureReason: reason,
	}
}

// declineResult classifies a Stripe API error. Card errors are business
// declines; everything else is a transport problem the caller must treat as
// unknown outcome.
func declineResult(err error) (services.PaymentChargeResult, bool) {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		var decline *declineError
		if errors.As(err, &decline) {
			return decline.result, true
		}
		return services.PaymentChargeResult{}, false
	}
	if stripeErr.Type != stripe.ErrorTypeCard {
		return services.PaymentChargeResult{}, false
	}

	reason := string(stripeErr.DeclineCode)
	if reason == "" {
		reason = string(stripeErr.Code)
	}
	reference := ""
	if stripeErr.PaymentIntent != nil {
		reference = stripeErr.PaymentIntent.ID
	}
	return services.PaymentChargeResult{
		Status:        domain.PaymentStatusFailed,
		Reference:     reference,
		FailureReason: reason,
	}, true
}
