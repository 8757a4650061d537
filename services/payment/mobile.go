package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pawbook/models"

	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"
)

// SheetRequest is pushed to the owner's device to open the native payment sheet.
type SheetRequest struct {
	BookingID       string
	OwnerID         string
	PaymentIntentID string
	ClientSecret    string
	CustomerID      string
	EphemeralKey    string
}

// SheetPresenter delivers a SheetRequest to the device.
type SheetPresenter interface {
	PresentPaymentSheet(ctx context.Context, req SheetRequest) error
}

// intentVerifyTimeout bounds the stripe read after the device stops answering.
const intentVerifyTimeout = 10 * time.Second

type SheetOutcome string

const (
	SheetCompleted SheetOutcome = "completed"
	SheetCanceled  SheetOutcome = "canceled"
	SheetFailed    SheetOutcome = "failed"
)

// SheetResult is what the device reports back once the sheet closes.
type SheetResult struct {
	Outcome   SheetOutcome `json:"outcome"`
	ErrorCode string       `json:"errorCode,omitempty"`
	Message   string       `json:"message,omitempty"`
}

type sheetWaiter struct {
	bookingID string
	ch        chan SheetResult
}

// SheetResults routes device callbacks to the confirmation waiting on the same intent.
type SheetResults struct {
	mu      sync.Mutex
	waiters map[string]*sheetWaiter
}

func NewSheetResults() *SheetResults {
	return &SheetResults{waiters: make(map[string]*sheetWaiter)}
}

func (r *SheetResults) register(intentID, bookingID string) (<-chan SheetResult, func()) {
	w := &sheetWaiter{bookingID: bookingID, ch: make(chan SheetResult, 1)}
	r.mu.Lock()
	r.waiters[intentID] = w
	r.mu.Unlock()
	return w.ch, func() {
		r.mu.Lock()
		if r.waiters[intentID] == w {
			delete(r.waiters, intentID)
		}
		r.mu.Unlock()
	}
}

// Deliver hands a device result to the waiting confirmation.
func (r *SheetResults) Deliver(bookingID, intentID string, res SheetResult) error {
	r.mu.Lock()
	w, ok := r.waiters[intentID]
	if ok && w.bookingID == bookingID {
		delete(r.waiters, intentID)
	}
	r.mu.Unlock()
	if !ok || w.bookingID != bookingID {
		return ErrNoPendingSheet
	}
	w.ch <- res
	return nil
}

// MobileSheetProvider asks the device to present the payment sheet and waits for its result.
type MobileSheetProvider struct {
	presenter SheetPresenter
	stripe    StripeClient
	results   *SheetResults
	timeout   time.Duration
	logger    *zap.Logger
}

func NewMobileSheetProvider(presenter SheetPresenter, client StripeClient, results *SheetResults, timeout time.Duration, logger *zap.Logger) *MobileSheetProvider {
	return &MobileSheetProvider{presenter: presenter, stripe: client, results: results, timeout: timeout, logger: logger}
}

// Confirm blocks until the device reports back, the sheet timeout passes, or ctx ends.
func (p *MobileSheetProvider) Confirm(ctx context.Context, clientSecret string, billing models.BillingContext) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	intentID, err := IntentIDFromSecret(clientSecret)
	if err != nil {
		return &PaymentError{Kind: ErrorUnknown, Err: err}
	}
	if billing.CustomerID == "" || billing.EphemeralKey == "" {
		return &PaymentError{Kind: ErrorUnknown, Code: "sheet_not_configured", Message: "customer or ephemeral key missing"}
	}

	results, done := p.results.register(intentID, billing.BookingID)
	defer done()

	err = p.presenter.PresentPaymentSheet(ctx, SheetRequest{
		BookingID:       billing.BookingID,
		OwnerID:         billing.OwnerID,
		PaymentIntentID: intentID,
		ClientSecret:    clientSecret,
		CustomerID:      billing.CustomerID,
		EphemeralKey:    billing.EphemeralKey,
	})
	if err != nil {
		return &PaymentError{Kind: ErrorNetwork, Code: "sheet_delivery_failed", Err: fmt.Errorf("present payment sheet: %w", err)}
	}

	var res SheetResult
	select {
	case <-ctx.Done():
		return p.unanswered(ctx, intentID, billing.BookingID)
	case res = <-results:
	}

	switch res.Outcome {
	case SheetCanceled:
		return &PaymentError{Kind: ErrorCancelledByUser, Code: "sheet_canceled", Message: "payment sheet was dismissed"}
	case SheetFailed:
		return &PaymentError{Kind: ErrorDeclined, Code: res.ErrorCode, Message: res.Message}
	case SheetCompleted:
	default:
		return &PaymentError{Kind: ErrorUnknown, Code: string(res.Outcome), Message: "unrecognized sheet outcome"}
	}

	// the sheet result is advisory; the intent status decides
	pi, err := p.stripe.GetPaymentIntent(ctx, intentID)
	if err != nil {
		return classifyError(err)
	}
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		p.logger.Info("payment sheet confirmed", zap.String("payment_intent_id", intentID), zap.String("booking_id", billing.BookingID))
		return nil
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		return declineFromIntent(pi, "card_declined")
	case stripe.PaymentIntentStatusCanceled:
		return &PaymentError{Kind: ErrorCancelledByUser, Code: "intent_canceled"}
	default:
		return &PaymentError{Kind: ErrorUnknown, Code: string(pi.Status), Message: "payment did not complete"}
	}
}

// unanswered settles a sheet the device never reported on. The callback may have been lost after
// the owner paid, so the intent is read again with a context of its own.
func (p *MobileSheetProvider) unanswered(ctx context.Context, intentID, bookingID string) error {
	vctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), intentVerifyTimeout)
	defer cancel()
	pi, err := p.stripe.GetPaymentIntent(vctx, intentID)
	if err == nil && pi.Status == stripe.PaymentIntentStatusSucceeded {
		p.logger.Info("payment sheet unanswered but intent succeeded",
			zap.String("payment_intent_id", intentID), zap.String("booking_id", bookingID))
		return nil
	}
	if err != nil {
		p.logger.Warn("could not verify unanswered payment sheet",
			zap.String("payment_intent_id", intentID), zap.String("booking_id", bookingID), zap.Error(err))
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &PaymentError{Kind: ErrorCancelledByUser, Code: "sheet_timeout", Message: "payment sheet was not completed in time"}
	}
	return &PaymentError{Kind: ErrorCancelledByUser, Err: ctx.Err()}
}
