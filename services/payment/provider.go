package payment

import (
	"context"
	"fmt"

	"pawbook/models"
)

// Provider confirms a payment intent on one client platform. A nil error means captured.
type Provider interface {
	Confirm(ctx context.Context, clientSecret string, billing models.BillingContext) error
}

// Registry picks the provider for the platform that drives the booking.
type Registry map[models.Platform]Provider

func (r Registry) For(platform models.Platform) (Provider, error) {
	p, ok := r[platform]
	if !ok || p == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoProvider, platform)
	}
	return p, nil
}
