package payments

import (
	"context"

	domain "github.com/oakmart/api/internal/domain"
	"github.com/oakmart/api/internal/services"
)

// CODProvider handles cash-on-delivery orders. Nothing is charged up front;
// the payment stays pending until the courier collects on delivery.
type CODProvider struct{}

// NewCODProvider constructs a cash-on-delivery provider.
func NewCODProvider() *CODProvider {
	return &CODProvider{}
}

// Charge acknowledges the order without moving money.
func (p *CODProvider) Charge(_ context.Context, req services.PaymentChargeRequest) (services.PaymentChargeResult, error) {
	return services.PaymentChargeResult{
		Status:    domain.PaymentStatusPending,
		Reference: "cod_" + req.OrderID,
	}, nil
}
