package payment

import (
	"context"

	"pawbook/models"

	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"
)

// CardElementProvider confirms server-side with a stored payment method or a card-element token.
type CardElementProvider struct {
	stripe StripeClient
	logger *zap.Logger
}

func NewCardElementProvider(client StripeClient, logger *zap.Logger) *CardElementProvider {
	return &CardElementProvider{stripe: client, logger: logger}
}

func (p *CardElementProvider) Confirm(ctx context.Context, clientSecret string, billing models.BillingContext) error {
	intentID, err := IntentIDFromSecret(clientSecret)
	if err != nil {
		return &PaymentError{Kind: ErrorUnknown, Err: err}
	}

	methodID := billing.PaymentMethodID
	if methodID == "" && billing.CardToken != "" {
		pm, err := p.stripe.PaymentMethodFromToken(ctx, billing.CardToken)
		if err != nil {
			return classifyError(err)
		}
		methodID = pm.ID
	}
	if methodID == "" {
		return &PaymentError{Kind: ErrorDeclined, Code: "payment_method_required", Message: "no card on file"}
	}

	pi, err := p.stripe.ConfirmPaymentIntent(ctx, intentID, methodID)
	if err != nil {
		return classifyError(err)
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		p.logger.Info("card payment confirmed", zap.String("payment_intent_id", pi.ID), zap.String("booking_id", billing.BookingID))
		return nil
	case stripe.PaymentIntentStatusRequiresAction:
		return &PaymentError{Kind: ErrorDeclined, Code: "authentication_required", Message: "card requires authentication"}
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		return declineFromIntent(pi, "card_declined")
	case stripe.PaymentIntentStatusCanceled:
		return &PaymentError{Kind: ErrorUnknown, Code: "intent_canceled", Message: "payment intent was canceled"}
	default:
		return &PaymentError{Kind: ErrorUnknown, Code: string(pi.Status), Message: "payment did not complete"}
	}
}
