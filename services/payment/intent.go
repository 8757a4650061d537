package payment

import (
	"context"
	"fmt"
	"strconv"

	"pawbook/models"

	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"
)

// IntentBackend mints a fresh payment intent per capture attempt.
type IntentBackend interface {
	CreateIntent(ctx context.Context, req models.BookingRequest, billing models.BillingContext, attempt int) (*models.PaymentIntent, error)
}

// OwnerStore holds owner billing identifiers.
type OwnerStore interface {
	GetOwner(ctx context.Context, ownerID string) (*models.Owner, error)
	SetStripeCustomerID(ctx context.Context, ownerID, customerID string) error
}

// StripeIntentBackend creates Stripe payment intents for bookings.
type StripeIntentBackend struct {
	stripe              StripeClient
	owners              OwnerStore
	ephemeralKeyVersion string
	logger              *zap.Logger
}

func NewStripeIntentBackend(client StripeClient, owners OwnerStore, ephemeralKeyVersion string, logger *zap.Logger) *StripeIntentBackend {
	return &StripeIntentBackend{
		stripe:              client,
		owners:              owners,
		ephemeralKeyVersion: ephemeralKeyVersion,
		logger:              logger,
	}
}

func (b *StripeIntentBackend) CreateIntent(ctx context.Context, req models.BookingRequest, billing models.BillingContext, attempt int) (*models.PaymentIntent, error) {
	customerID, err := b.ensureCustomer(ctx, req.OwnerID, billing.CustomerID)
	if err != nil {
		return nil, err
	}

	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(req.AmountCents),
		Currency:           stripe.String(req.Currency),
		Customer:           stripe.String(customerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Description:        stripe.String(fmt.Sprintf("%s booking %s", req.ServiceType, req.ID)),
	}
	params.AddMetadata("booking_id", req.ID)
	params.AddMetadata("owner_id", req.OwnerID)
	params.AddMetadata("caregiver_id", req.AcceptedCaregiverID)
	params.AddMetadata("attempt", strconv.Itoa(attempt))
	params.SetIdempotencyKey(fmt.Sprintf("booking-%s-attempt-%d", req.ID, attempt))

	pi, err := b.stripe.CreatePaymentIntent(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	intent := &models.PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		CustomerID:   customerID,
		AmountCents:  req.AmountCents,
		Currency:     req.Currency,
	}

	if billing.Platform == models.PlatformMobile {
		key, err := b.stripe.CreateEphemeralKey(ctx, customerID, b.ephemeralKeyVersion)
		if err != nil {
			return nil, fmt.Errorf("create ephemeral key: %w", err)
		}
		intent.EphemeralKey = key.Secret
	}

	b.logger.Info("payment intent created",
		zap.String("booking_id", req.ID),
		zap.String("payment_intent_id", pi.ID),
		zap.Int("attempt", attempt),
		zap.Int64("amount_cents", req.AmountCents),
	)
	return intent, nil
}

func (b *StripeIntentBackend) ensureCustomer(ctx context.Context, ownerID, known string) (string, error) {
	if known != "" {
		return known, nil
	}
	owner, err := b.owners.GetOwner(ctx, ownerID)
	if err != nil {
		return "", fmt.Errorf("load owner %s: %w", ownerID, err)
	}
	if owner.StripeCustomerID != "" {
		return owner.StripeCustomerID, nil
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(owner.Email),
		Name:  stripe.String(owner.DisplayName),
	}
	params.AddMetadata("owner_id", owner.ID)
	params.SetIdempotencyKey("owner-customer-" + owner.ID)
	cust, err := b.stripe.CreateCustomer(ctx, params)
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	if err := b.owners.SetStripeCustomerID(ctx, owner.ID, cust.ID); err != nil {
		// the idempotency key returns the same customer on the next attempt
		b.logger.Warn("failed to store stripe customer id", zap.String("owner_id", owner.ID), zap.Error(err))
	}
	return cust.ID, nil
}
