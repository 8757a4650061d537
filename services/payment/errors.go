package payment

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/stripe/stripe-go/v76"
)

type PaymentErrorKind string

const (
	ErrorDeclined        PaymentErrorKind = "declined"
	ErrorCancelledByUser PaymentErrorKind = "cancelled_by_user"
	ErrorNetwork         PaymentErrorKind = "network"
	ErrorUnknown         PaymentErrorKind = "unknown"
)

var (
	ErrNotPayable      = errors.New("booking is not awaiting payment")
	ErrNoProvider      = errors.New("no payment provider for platform")
	ErrNoPendingSheet  = errors.New("no payment sheet is waiting for this intent")
	ErrMalformedSecret = errors.New("malformed payment intent client secret")
)

// PaymentError is a failed confirmation. The booking stays payable after any kind.
type PaymentError struct {
	Kind    PaymentErrorKind
	Code    string
	Message string
	Err     error
}

func (e *PaymentError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Code != "" {
		return fmt.Sprintf("payment %s (%s): %s", e.Kind, e.Code, msg)
	}
	return fmt.Sprintf("payment %s: %s", e.Kind, msg)
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

// classifyError maps stripe and transport errors onto payment error kinds.
func classifyError(err error) *PaymentError {
	if err == nil {
		return nil
	}
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe
	}

	var se *stripe.Error
	if errors.As(err, &se) {
		switch {
		case se.Type == stripe.ErrorTypeCard:
			code := string(se.DeclineCode)
			if code == "" {
				code = string(se.Code)
			}
			return &PaymentError{Kind: ErrorDeclined, Code: code, Message: se.Msg, Err: err}
		case se.HTTPStatusCode >= 500 || se.HTTPStatusCode == 429:
			return &PaymentError{Kind: ErrorNetwork, Code: string(se.Code), Message: se.Msg, Err: err}
		default:
			return &PaymentError{Kind: ErrorUnknown, Code: string(se.Code), Message: se.Msg, Err: err}
		}
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return &PaymentError{Kind: ErrorNetwork, Err: err}
	}
	return &PaymentError{Kind: ErrorUnknown, Err: err}
}

// declineFromIntent builds a decline from the intent's last payment error.
func declineFromIntent(pi *stripe.PaymentIntent, fallback string) *PaymentError {
	pe := &PaymentError{Kind: ErrorDeclined, Code: fallback, Message: "payment method was declined"}
	if pi != nil && pi.LastPaymentError != nil {
		if pi.LastPaymentError.DeclineCode != "" {
			pe.Code = string(pi.LastPaymentError.DeclineCode)
		} else if pi.LastPaymentError.Code != "" {
			pe.Code = string(pi.LastPaymentError.Code)
		}
		if pi.LastPaymentError.Msg != "" {
			pe.Message = pi.LastPaymentError.Msg
		}
	}
	return pe
}
