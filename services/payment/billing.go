package payment

import (
	"context"
	"fmt"

	"pawbook/models"
)

// OwnerBilling derives the default billing context from the owner record.
type OwnerBilling struct {
	owners OwnerStore
}

func NewOwnerBilling(owners OwnerStore) *OwnerBilling {
	return &OwnerBilling{owners: owners}
}

func (b *OwnerBilling) BillingFor(ctx context.Context, req models.BookingRequest) (models.BillingContext, error) {
	owner, err := b.owners.GetOwner(ctx, req.OwnerID)
	if err != nil {
		return models.BillingContext{}, fmt.Errorf("load billing for %s: %w", req.OwnerID, err)
	}
	return models.BillingContext{
		BookingID:       req.ID,
		OwnerID:         owner.ID,
		Platform:        req.Platform,
		CustomerID:      owner.StripeCustomerID,
		PaymentMethodID: owner.DefaultPaymentMethodID,
	}, nil
}
