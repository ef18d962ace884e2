package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/oakmart/api/internal/domain"
	"github.com/oakmart/api/internal/services"
)

// ErrUnsupportedMethod is returned when no provider is registered for the
// requested payment method.
var ErrUnsupportedMethod = errors.New("payments: unsupported payment method")

// Provider charges an order using one concrete payment method. A business
// decline is reported as a failed result with a nil error; a non-nil error
// means the provider could not be reached and the outcome is unknown.
type Provider interface {
	Charge(ctx context.Context, req services.PaymentChargeRequest) (services.PaymentChargeResult, error)
}

// Manager routes charge requests to the provider registered for the payment
// method. It implements services.PaymentGateway.
type Manager struct {
	providers map[domain.PaymentMethod]Provider
	clock     func() time.Time
}

// ManagerOption configures optional behaviour when building a Manager.
type ManagerOption func(*Manager)

// WithClock overrides the wall clock used for card expiry validation.
func WithClock(clock func() time.Time) ManagerOption {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// NewManager constructs a Manager over the supplied providers.
func NewManager(providers map[domain.PaymentMethod]Provider, opts ...ManagerOption) (*Manager, error) {
	if len(providers) == 0 {
		return nil, errors.New("payments: at least one provider is required")
	}
	copyMap := make(map[domain.PaymentMethod]Provider, len(providers))
	for method, provider := range providers {
		key := domain.PaymentMethod(strings.TrimSpace(strings.ToLower(string(method))))
		if key == "" || provider == nil {
			return nil, fmt.Errorf("payments: invalid provider registration for method %q", method)
		}
		copyMap[key] = provider
	}
	m := &Manager{
		providers: copyMap,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Charge validates the request and delegates to the method's provider.
func (m *Manager) Charge(ctx context.Context, req services.PaymentChargeRequest) (services.PaymentChargeResult, error) {
	if m == nil {
		return services.PaymentChargeResult{}, errors.New("payments: manager is nil")
	}
	if req.AmountMinor <= 0 {
		return services.PaymentChargeResult{}, fmt.Errorf("payments: charge amount must be positive, got %d", req.AmountMinor)
	}

	method := domain.PaymentMethod(strings.TrimSpace(strings.ToLower(string(req.Method))))
	provider, ok := m.providers[method]
	if !ok {
		return services.PaymentChargeResult{}, fmt.Errorf("%w: %q", ErrUnsupportedMethod, req.Method)
	}

	if req.Card != nil {
		if err := services.ValidateCardInput(*req.Card, m.clock().UTC()); err != nil {
			return services.PaymentChargeResult{}, err
		}
	}

	return provider.Charge(ctx, req)
}
