package booking

import (
	"context"
	"errors"
	"sync"
	"time"

	"pawbook/models"
	"pawbook/services/matching"

	"go.uber.org/zap"
)

const (
	openPaymentBackoff    = 250 * time.Millisecond
	openPaymentMaxBackoff = 10 * time.Second
)

// BookingLister finds bookings that still need a watcher after a restart.
type BookingLister interface {
	ListByStatus(ctx context.Context, statuses []models.BookingStatus) ([]models.BookingRequest, error)
}

// StatusWatcher follows submitted bookings: it advances accepted bookings to payment,
// starts the one automatic capture, and tells the owner about terminal outcomes.
type StatusWatcher struct {
	gateway  matching.Gateway
	capturer Capturer
	billing  BillingResolver
	notifier OwnerNotifier
	logger   *zap.Logger

	mu     sync.Mutex
	active map[string]context.CancelFunc
	wg     sync.WaitGroup
}

func NewStatusWatcher(gateway matching.Gateway, capturer Capturer, billing BillingResolver, notifier OwnerNotifier, logger *zap.Logger) *StatusWatcher {
	return &StatusWatcher{
		gateway:  gateway,
		capturer: capturer,
		billing:  billing,
		notifier: notifier,
		logger:   logger,
		active:   make(map[string]context.CancelFunc),
	}
}

// watchState is owned by a single follow goroutine.
type watchState struct {
	version  int
	captured bool
}

// Watch starts following req unless it is already being followed or has settled.
func (w *StatusWatcher) Watch(ctx context.Context, req models.BookingRequest) {
	if req.Status.Terminal() {
		return
	}
	w.mu.Lock()
	if _, ok := w.active[req.ID]; ok {
		w.mu.Unlock()
		return
	}
	wctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w.active[req.ID] = cancel
	w.wg.Add(1)
	w.mu.Unlock()

	go func() {
		defer w.wg.Done()
		defer w.release(req.ID)
		w.follow(wctx, req.ID)
	}()
}

// Resume re-attaches watchers to every booking that has not settled yet.
func (w *StatusWatcher) Resume(ctx context.Context, lister BookingLister) (int, error) {
	open := []models.BookingStatus{
		models.StatusPendingMatch,
		models.StatusOpen,
		models.StatusAssigned,
		models.StatusAccepted,
		models.StatusPaymentPending,
	}
	reqs, err := lister.ListByStatus(ctx, open)
	if err != nil {
		return 0, err
	}
	for _, r := range reqs {
		w.Watch(ctx, r)
	}
	w.logger.Info("booking watchers resumed", zap.Int("count", len(reqs)))
	return len(reqs), nil
}

// Watching reports whether bookingID currently has a watcher.
func (w *StatusWatcher) Watching(bookingID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.active[bookingID]
	return ok
}

// Stop cancels every watcher and waits for them to exit or for ctx to end.
// A capture already confirming is not interrupted.
func (w *StatusWatcher) Stop(ctx context.Context) {
	w.mu.Lock()
	for _, cancel := range w.active {
		cancel()
	}
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("watchers still running at shutdown")
	}
}

func (w *StatusWatcher) release(id string) {
	w.mu.Lock()
	if cancel, ok := w.active[id]; ok {
		cancel()
		delete(w.active, id)
	}
	w.mu.Unlock()
}

func (w *StatusWatcher) follow(ctx context.Context, bookingID string) {
	var updates <-chan models.BookingRequest
	var err error
	for attempt := 1; ; attempt++ {
		updates, err = w.gateway.Subscribe(ctx, bookingID)
		if err == nil {
			break
		}
		if attempt == 5 {
			w.logger.Error("giving up on booking subscription", zap.String("booking_id", bookingID), zap.Error(err))
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}

	state := &watchState{}

	// replay the current snapshot; anything published before the subscription is covered by it
	current, err := w.gateway.Get(ctx, bookingID)
	if err != nil {
		w.logger.Warn("failed to load booking snapshot", zap.String("booking_id", bookingID), zap.Error(err))
	} else if w.handle(ctx, state, *current) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-updates:
			if !ok {
				w.logger.Warn("booking subscription closed", zap.String("booking_id", bookingID))
				return
			}
			if w.handle(ctx, state, req) {
				return
			}
		}
	}
}

// handle reacts to one snapshot and reports whether watching should stop.
func (w *StatusWatcher) handle(ctx context.Context, state *watchState, req models.BookingRequest) bool {
	if req.Version <= state.version {
		return false
	}
	state.version = req.Version

	switch req.Status {
	case models.StatusAccepted:
		w.notify(ctx, models.NotifyBookingAccepted, req)
		next, err := w.openPayment(ctx, req.ID)
		if err != nil {
			return false
		}
		return w.handle(ctx, state, *next)

	case models.StatusPaymentPending:
		if state.captured {
			return false
		}
		state.captured = true
		w.capture(ctx, req)
		return false

	case models.StatusPaid:
		w.notify(ctx, models.NotifyBookingPaid, req)
		return true
	case models.StatusRejected:
		w.notify(ctx, models.NotifyBookingRejected, req)
		return true
	case models.StatusExpired:
		w.notify(ctx, models.NotifyBookingExpired, req)
		return true
	case models.StatusCancelled:
		return true
	}
	return false
}

// openPayment moves an accepted booking to payment_pending, retrying store
// failures until it lands or ctx ends. An illegal move means the booking was
// changed elsewhere and the subscription will deliver that change.
func (w *StatusWatcher) openPayment(ctx context.Context, id string) (*models.BookingRequest, error) {
	delay := openPaymentBackoff
	for {
		next, err := w.gateway.Transition(ctx, id, models.StatusPaymentPending)
		if err == nil {
			return next, nil
		}
		if errors.Is(err, matching.ErrInvalidTransition) {
			return nil, err
		}
		w.logger.Warn("failed to open payment, retrying",
			zap.String("booking_id", id), zap.Duration("backoff", delay), zap.Error(err))
		select {
		case <-ctx.Done():
			w.logger.Error("gave up opening payment", zap.String("booking_id", id), zap.Error(err))
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		if delay *= 2; delay > openPaymentMaxBackoff {
			delay = openPaymentMaxBackoff
		}
	}
}

func (w *StatusWatcher) capture(ctx context.Context, req models.BookingRequest) {
	billing, err := w.billing.BillingFor(ctx, req)
	if err != nil {
		w.logger.Error("no billing context for capture", zap.String("booking_id", req.ID), zap.Error(err))
		return
	}
	attempt, err := w.capturer.Capture(ctx, req, billing)
	if err != nil {
		// the booking stays payment_pending; the owner retries from the app
		w.logger.Warn("automatic capture failed", zap.String("booking_id", req.ID), zap.Error(err))
		return
	}
	w.logger.Info("automatic capture finished",
		zap.String("booking_id", req.ID),
		zap.String("outcome", string(attempt.Outcome)),
	)
}

func (w *StatusWatcher) notify(ctx context.Context, kind models.NotificationKind, req models.BookingRequest) {
	snapshot := req.Clone()
	go func() {
		if err := w.notifier.NotifyOwner(context.WithoutCancel(ctx), snapshot.OwnerID, kind, snapshot); err != nil {
			w.logger.Warn("owner notification failed",
				zap.String("booking_id", snapshot.ID), zap.String("kind", string(kind)), zap.Error(err))
		}
	}()
}
