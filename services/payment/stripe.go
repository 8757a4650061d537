package payment

import (
	"context"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/customer"
	"github.com/stripe/stripe-go/v76/ephemeralkey"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/paymentmethod"
)

// StripeClient is the slice of the Stripe API used for captures.
type StripeClient interface {
	CreateCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error)
	CreateEphemeralKey(ctx context.Context, customerID, apiVersion string) (*stripe.EphemeralKey, error)
	CreatePaymentIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error)
	ConfirmPaymentIntent(ctx context.Context, id, paymentMethodID string) (*stripe.PaymentIntent, error)
	PaymentMethodFromToken(ctx context.Context, token string) (*stripe.PaymentMethod, error)
}

// stripeAPI uses the package-level client configured through stripe.Key.
type stripeAPI struct{}

func NewStripeClient() StripeClient {
	return stripeAPI{}
}

func (stripeAPI) CreateCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error) {
	params.Context = ctx
	return customer.New(params)
}

func (stripeAPI) CreateEphemeralKey(ctx context.Context, customerID, apiVersion string) (*stripe.EphemeralKey, error) {
	params := &stripe.EphemeralKeyParams{
		Customer:      stripe.String(customerID),
		StripeVersion: stripe.String(apiVersion),
	}
	params.Context = ctx
	return ephemeralkey.New(params)
}

func (stripeAPI) CreatePaymentIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	params.Context = ctx
	return paymentintent.New(params)
}

func (stripeAPI) GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	return paymentintent.Get(id, params)
}

func (stripeAPI) ConfirmPaymentIntent(ctx context.Context, id, paymentMethodID string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String(paymentMethodID),
	}
	params.Context = ctx
	return paymentintent.Confirm(id, params)
}

func (stripeAPI) PaymentMethodFromToken(ctx context.Context, token string) (*stripe.PaymentMethod, error) {
	params := &stripe.PaymentMethodParams{
		Type: stripe.String(string(stripe.PaymentMethodTypeCard)),
		Card: &stripe.PaymentMethodCardParams{
			Token: stripe.String(token),
		},
	}
	params.Context = ctx
	return paymentmethod.New(params)
}

// IntentIDFromSecret extracts "pi_123" from a "pi_123_secret_abc" client secret.
func IntentIDFromSecret(clientSecret string) (string, error) {
	i := strings.Index(clientSecret, "_secret_")
	if i <= 0 || !strings.HasPrefix(clientSecret, "pi_") {
		return "", ErrMalformedSecret
	}
	return clientSecret[:i], nil
}
