package booking

import (
	"context"
	"sync"

	"pawbook/models"
	"pawbook/services/matching"
)

// fakeGateway keeps bookings in memory and lets tests push status changes.
type fakeGateway struct {
	mu       sync.Mutex
	bookings map[string]models.BookingRequest
	subs     map[string][]chan models.BookingRequest
	posted   []models.BookingPayload
	postErr  error
	// transitionErrs are returned, in order, by the next Transition calls
	transitionErrs []error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		bookings: make(map[string]models.BookingRequest),
		subs:     make(map[string][]chan models.BookingRequest),
	}
}

func (g *fakeGateway) Post(ctx context.Context, p models.BookingPayload) (*models.BookingRequest, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.posted = append(g.posted, p)
	if g.postErr != nil {
		return nil, g.postErr
	}
	status := models.StatusPendingMatch
	if p.IsOpenShift {
		status = models.StatusOpen
	}
	req := models.BookingRequest{ID: "bk-1", BookingPayload: p, Status: status, Version: 1}
	g.bookings[req.ID] = req
	return &req, nil
}

func (g *fakeGateway) Get(ctx context.Context, id string) (*models.BookingRequest, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	req, ok := g.bookings[id]
	if !ok {
		return nil, matching.ErrBookingNotFound
	}
	out := req.Clone()
	return &out, nil
}

func (g *fakeGateway) Subscribe(ctx context.Context, id string) (<-chan models.BookingRequest, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch := make(chan models.BookingRequest, 16)
	g.subs[id] = append(g.subs[id], ch)
	return ch, nil
}

func (g *fakeGateway) Transition(ctx context.Context, id string, to models.BookingStatus) (*models.BookingRequest, error) {
	g.mu.Lock()
	if len(g.transitionErrs) > 0 {
		err := g.transitionErrs[0]
		g.transitionErrs = g.transitionErrs[1:]
		g.mu.Unlock()
		return nil, err
	}
	req, ok := g.bookings[id]
	if !ok {
		g.mu.Unlock()
		return nil, matching.ErrBookingNotFound
	}
	if !models.CanTransition(req.Status, to) {
		g.mu.Unlock()
		return nil, &matching.TransitionError{BookingID: id, From: string(req.Status), To: string(to)}
	}
	g.mu.Unlock()
	out := g.set(id, to)
	return &out, nil
}

// set moves a booking to status, bumps its version and fans it out.
func (g *fakeGateway) set(id string, status models.BookingStatus) models.BookingRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	req := g.bookings[id]
	req.Status = status
	req.Version++
	g.bookings[id] = req
	for _, ch := range g.subs[id] {
		ch <- req.Clone()
	}
	return req.Clone()
}

func (g *fakeGateway) put(req models.BookingRequest) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.bookings[req.ID] = req
}

func (g *fakeGateway) status(id string) models.BookingStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.bookings[id].Status
}

func (g *fakeGateway) subscribers(id string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.subs[id])
}

type fakeCapturer struct {
	mu    sync.Mutex
	calls []models.BillingContext
	err   error
}

func (c *fakeCapturer) Capture(ctx context.Context, req models.BookingRequest, billing models.BillingContext) (*models.PaymentAttempt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, billing)
	if c.err != nil {
		return nil, c.err
	}
	return &models.PaymentAttempt{BookingID: req.ID, AttemptNumber: len(c.calls), Outcome: models.PaymentSucceeded}, nil
}

func (c *fakeCapturer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

type fakeBilling struct{}

func (fakeBilling) BillingFor(ctx context.Context, req models.BookingRequest) (models.BillingContext, error) {
	return models.BillingContext{BookingID: req.ID, OwnerID: req.OwnerID, Platform: req.Platform, PaymentMethodID: "pm_card_visa"}, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	kinds []models.NotificationKind
}

func (n *fakeNotifier) NotifyOwner(ctx context.Context, ownerID string, kind models.NotificationKind, req models.BookingRequest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kinds = append(n.kinds, kind)
	return nil
}

func (n *fakeNotifier) sent() []models.NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]models.NotificationKind, len(n.kinds))
	copy(out, n.kinds)
	return out
}
