package payment

import (
	"context"
	"fmt"
	"sync"

	"pawbook/models"
	"pawbook/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StatusUpdater moves a booking forward once payment lands.
type StatusUpdater interface {
	Transition(ctx context.Context, bookingID string, to models.BookingStatus) (*models.BookingRequest, error)
}

// CaptureService runs payment captures. At most one attempt per booking is pending at a time.
type CaptureService struct {
	mu       sync.Mutex
	attempts map[string][]*models.PaymentAttempt
	inflight map[string]*models.PaymentAttempt

	intents   IntentBackend
	providers Registry
	bookings  StatusUpdater
	clock     utils.Clock
	logger    *zap.Logger
}

func NewCaptureService(intents IntentBackend, providers Registry, bookings StatusUpdater, clock utils.Clock, logger *zap.Logger) *CaptureService {
	return &CaptureService{
		attempts:  make(map[string][]*models.PaymentAttempt),
		inflight:  make(map[string]*models.PaymentAttempt),
		intents:   intents,
		providers: providers,
		bookings:  bookings,
		clock:     clock,
		logger:    logger,
	}
}

// Capture confirms payment for req and blocks until the provider reports a terminal outcome.
// A call made while another attempt is pending returns that attempt unchanged.
func (s *CaptureService) Capture(ctx context.Context, req models.BookingRequest, billing models.BillingContext) (*models.PaymentAttempt, error) {
	attempt, started, err := s.begin(req)
	if err != nil {
		return nil, err
	}
	if !started {
		return s.settle(ctx, req, attempt)
	}
	return s.run(context.WithoutCancel(ctx), req, billing, attempt)
}

// Start is Capture without waiting: it returns the pending attempt while confirmation runs.
func (s *CaptureService) Start(ctx context.Context, req models.BookingRequest, billing models.BillingContext) (*models.PaymentAttempt, error) {
	attempt, started, err := s.begin(req)
	if err != nil {
		return nil, err
	}
	if !started {
		return s.settle(ctx, req, attempt)
	}
	snapshot := s.copyOf(attempt)
	go func() {
		if _, err := s.run(context.WithoutCancel(ctx), req, billing, attempt); err != nil {
			s.logger.Warn("background capture failed", zap.String("booking_id", req.ID), zap.Error(err))
		}
	}()
	return snapshot, nil
}

// Attempts returns every attempt made for the booking, oldest first.
func (s *CaptureService) Attempts(bookingID string) []models.PaymentAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.PaymentAttempt, 0, len(s.attempts[bookingID]))
	for _, a := range s.attempts[bookingID] {
		out = append(out, *a)
	}
	return out
}

// begin registers a new pending attempt. started is false when an existing attempt was returned.
func (s *CaptureService) begin(req models.BookingRequest) (*models.PaymentAttempt, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p := s.inflight[req.ID]; p != nil {
		cp := *p
		return &cp, false, nil
	}
	for _, a := range s.attempts[req.ID] {
		if a.Outcome == models.PaymentSucceeded {
			cp := *a
			return &cp, false, nil
		}
	}
	if req.Status != models.StatusPaymentPending {
		return nil, false, fmt.Errorf("%w: booking %s is %s", ErrNotPayable, req.ID, req.Status)
	}

	attempt := &models.PaymentAttempt{
		ID:            uuid.New().String(),
		BookingID:     req.ID,
		AttemptNumber: len(s.attempts[req.ID]) + 1,
		Outcome:       models.PaymentPending,
		StartedAt:     s.clock.Now(),
	}
	s.inflight[req.ID] = attempt
	s.attempts[req.ID] = append(s.attempts[req.ID], attempt)
	return attempt, true, nil
}

func (s *CaptureService) run(ctx context.Context, req models.BookingRequest, billing models.BillingContext, attempt *models.PaymentAttempt) (*models.PaymentAttempt, error) {
	billing.BookingID = req.ID
	billing.OwnerID = req.OwnerID
	if billing.Platform == "" {
		billing.Platform = req.Platform
	}

	provider, err := s.providers.For(billing.Platform)
	if err != nil {
		return s.fail(attempt, &PaymentError{Kind: ErrorUnknown, Code: "no_provider", Err: err})
	}

	intent, err := s.intents.CreateIntent(ctx, req, billing, attempt.AttemptNumber)
	if err != nil {
		return s.fail(attempt, classifyError(err))
	}
	s.mu.Lock()
	attempt.ClientSecret = intent.ClientSecret
	attempt.PaymentIntentID = intent.ID
	s.mu.Unlock()

	billing.CustomerID = intent.CustomerID
	billing.EphemeralKey = intent.EphemeralKey

	s.logger.Info("confirming payment",
		zap.String("booking_id", req.ID),
		zap.String("platform", string(billing.Platform)),
		zap.Int("attempt", attempt.AttemptNumber),
	)
	if err := provider.Confirm(ctx, intent.ClientSecret, billing); err != nil {
		return s.fail(attempt, classifyError(err))
	}

	done := s.finish(attempt, models.PaymentSucceeded, nil)
	if err := s.markPaid(ctx, done); err != nil {
		return done, err
	}
	s.logger.Info("payment captured", zap.String("booking_id", req.ID), zap.Int("attempt", attempt.AttemptNumber))
	return done, nil
}

// settle returns an existing attempt. A succeeded attempt on a booking still awaiting payment
// means the paid transition was lost, so it is made again instead of charging twice.
func (s *CaptureService) settle(ctx context.Context, req models.BookingRequest, attempt *models.PaymentAttempt) (*models.PaymentAttempt, error) {
	if attempt.Outcome != models.PaymentSucceeded || req.Status != models.StatusPaymentPending {
		return attempt, nil
	}
	if err := s.markPaid(ctx, attempt); err != nil {
		return attempt, err
	}
	s.logger.Info("captured payment marked paid on retry", zap.String("booking_id", req.ID), zap.Int("attempt", attempt.AttemptNumber))
	return attempt, nil
}

func (s *CaptureService) markPaid(ctx context.Context, attempt *models.PaymentAttempt) error {
	if _, err := s.bookings.Transition(ctx, attempt.BookingID, models.StatusPaid); err != nil {
		s.logger.Error("payment captured but booking not marked paid",
			zap.String("booking_id", attempt.BookingID), zap.String("payment_intent_id", attempt.PaymentIntentID), zap.Error(err))
		return fmt.Errorf("mark booking %s paid: %w", attempt.BookingID, err)
	}
	return nil
}

func (s *CaptureService) fail(attempt *models.PaymentAttempt, perr *PaymentError) (*models.PaymentAttempt, error) {
	outcome := models.PaymentFailed
	if perr.Kind == ErrorCancelledByUser {
		outcome = models.PaymentCancelled
	}
	s.logger.Warn("payment attempt failed",
		zap.String("booking_id", attempt.BookingID),
		zap.Int("attempt", attempt.AttemptNumber),
		zap.String("kind", string(perr.Kind)),
		zap.String("code", perr.Code),
		zap.Error(perr),
	)
	return s.finish(attempt, outcome, perr), perr
}

func (s *CaptureService) finish(attempt *models.PaymentAttempt, outcome models.PaymentOutcome, perr *PaymentError) *models.PaymentAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	attempt.Outcome = outcome
	attempt.FinishedAt = &now
	if perr != nil {
		attempt.ErrorKind = string(perr.Kind)
		attempt.ErrorCode = perr.Code
	}
	if s.inflight[attempt.BookingID] == attempt {
		delete(s.inflight, attempt.BookingID)
	}
	cp := *attempt
	return &cp
}

func (s *CaptureService) copyOf(attempt *models.PaymentAttempt) *models.PaymentAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *attempt
	return &cp
}
