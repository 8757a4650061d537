package matching

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pawbook/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var start = time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type memRepo struct {
	mu        sync.Mutex
	bookings  map[string]models.BookingRequest
	conflicts int
}

func newMemRepo() *memRepo {
	return &memRepo{bookings: make(map[string]models.BookingRequest)}
}

func (r *memRepo) Create(ctx context.Context, req *models.BookingRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookings[req.ID] = req.Clone()
	return nil
}

func (r *memRepo) GetByID(ctx context.Context, id string) (*models.BookingRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	out := req.Clone()
	return &out, nil
}

func (r *memRepo) Replace(ctx context.Context, req *models.BookingRequest, expectedVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflicts > 0 {
		r.conflicts--
		return ErrVersionConflict
	}
	cur, ok := r.bookings[req.ID]
	if !ok {
		return ErrBookingNotFound
	}
	if cur.Version != expectedVersion {
		return ErrVersionConflict
	}
	r.bookings[req.ID] = req.Clone()
	return nil
}

func (r *memRepo) ListByStatus(ctx context.Context, statuses []models.BookingStatus) ([]models.BookingRequest, error) {
	return nil, nil
}

func (r *memRepo) ListByOwner(ctx context.Context, ownerID string) ([]models.BookingRequest, error) {
	return nil, nil
}

func (r *memRepo) ListForCaregiver(ctx context.Context, caregiverID string) ([]models.BookingRequest, error) {
	return nil, nil
}

type memBus struct {
	mu        sync.Mutex
	published []models.BookingRequest
}

func (b *memBus) Publish(ctx context.Context, req models.BookingRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, req.Clone())
	return nil
}

func (b *memBus) Subscribe(ctx context.Context, id string) (<-chan models.BookingRequest, error) {
	return make(chan models.BookingRequest), nil
}

func (b *memBus) statuses() []models.BookingStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.BookingStatus, len(b.published))
	for i, r := range b.published {
		out[i] = r.Status
	}
	return out
}

type fakeScheduler struct {
	mu          sync.Mutex
	dispatched  []string
	expiries    map[string]time.Time
	dispatchErr error
}

func (s *fakeScheduler) ScheduleDispatch(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dispatchErr != nil {
		return s.dispatchErr
	}
	s.dispatched = append(s.dispatched, id)
	return nil
}

func (s *fakeScheduler) ScheduleExpiry(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expiries == nil {
		s.expiries = make(map[string]time.Time)
	}
	s.expiries[id] = at
	return nil
}

type directory []models.CaregiverOption

func (d directory) ListCaregiverOptionsForServiceType(ctx context.Context, st models.ServiceType) ([]models.CaregiverOption, error) {
	var out []models.CaregiverOption
	for _, c := range d {
		if c.Offers(st) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (d directory) GetCaregivers(ctx context.Context, ids []string) ([]models.CaregiverOption, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []models.CaregiverOption
	for _, c := range d {
		if want[c.ID] {
			out = append(out, c)
		}
	}
	return out, nil
}

type offerRecorder struct {
	mu     sync.Mutex
	offers []string
}

func (o *offerRecorder) OfferToCaregiver(ctx context.Context, c models.CaregiverOption, req models.BookingRequest) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.offers = append(o.offers, c.ID)
	return nil
}

func (o *offerRecorder) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.offers)
}

var sitters = directory{
	{ID: "cg-1", ServiceTypes: []models.ServiceType{models.ServiceSitting}, Available: true},
	{ID: "cg-2", ServiceTypes: []models.ServiceType{models.ServiceSitting}, Available: true},
	{ID: "cg-3", ServiceTypes: []models.ServiceType{models.ServiceSitting}, Available: false},
	{ID: "cg-4", ServiceTypes: []models.ServiceType{models.ServiceWalking}, Available: true},
}

type gatewayFixture struct {
	repo      *memRepo
	bus       *memBus
	scheduler *fakeScheduler
	offers    *offerRecorder
	clock     *testClock
	g         *DefaultGateway
}

func newGatewayFixture() *gatewayFixture {
	f := &gatewayFixture{
		repo:      newMemRepo(),
		bus:       &memBus{},
		scheduler: &fakeScheduler{},
		offers:    &offerRecorder{},
		clock:     &testClock{now: start},
	}
	f.g = NewGateway(f.repo, f.bus, f.scheduler, sitters, f.offers, 30*time.Minute, f.clock, zap.NewNop())
	return f
}

func payload(openShift bool, caregivers ...string) models.BookingPayload {
	return models.BookingPayload{
		OwnerID:              "owner-1",
		Platform:             models.PlatformWeb,
		ServiceType:          models.ServiceSitting,
		IsOpenShift:          openShift,
		Pets:                 []string{"pet-1"},
		PetTypes:             []string{"dog"},
		StartDate:            start.Add(48 * time.Hour),
		SelectedCaregiverIDs: caregivers,
		AmountCents:          4000,
		Currency:             "usd",
	}
}

func TestPostOpenShift(t *testing.T) {
	f := newGatewayFixture()

	req, err := f.g.Post(context.Background(), payload(true))
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, req.Status)
	assert.Equal(t, 1, req.Version)
	require.Len(t, req.CaregiverQueue, 2)
	assert.Equal(t, "cg-1", req.CaregiverQueue[0].CaregiverID)
	assert.Equal(t, 1, req.CaregiverQueue[1].QueuePosition)
	require.NotNil(t, req.MatchingDeadline)
	assert.Equal(t, start.Add(30*time.Minute), *req.MatchingDeadline)

	assert.Equal(t, []string{req.ID}, f.scheduler.dispatched)
	assert.Equal(t, start.Add(30*time.Minute), f.scheduler.expiries[req.ID])
	assert.Equal(t, []models.BookingStatus{models.StatusOpen}, f.bus.statuses())
}

func TestPostDirectPick(t *testing.T) {
	f := newGatewayFixture()

	req, err := f.g.Post(context.Background(), payload(false, "cg-2"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingMatch, req.Status)
	assert.Nil(t, req.MatchingDeadline)
	require.Len(t, req.CaregiverQueue, 1)
	assert.Equal(t, "cg-2", req.CaregiverQueue[0].CaregiverID)
	assert.Empty(t, f.scheduler.expiries)
}

func TestPostRejections(t *testing.T) {
	tests := []struct {
		name string
		p    models.BookingPayload
		want error
	}{
		{"unavailable pick", payload(false, "cg-3"), ErrCaregiverUnavailable},
		{"pick offers another service", payload(false, "cg-4"), ErrCaregiverUnavailable},
		{"unknown pick", payload(false, "cg-9"), ErrCaregiverUnavailable},
		{"open shift naming caregivers", payload(true, "cg-1"), ErrInvalidPayload},
		{"direct without caregiver", payload(false), ErrInvalidPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGatewayFixture()
			_, err := f.g.Post(context.Background(), tt.p)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, f.repo.bookings)
		})
	}

	t.Run("no caregivers for open shift", func(t *testing.T) {
		f := newGatewayFixture()
		p := payload(true)
		p.ServiceType = models.ServiceGrooming
		_, err := f.g.Post(context.Background(), p)
		assert.ErrorIs(t, err, ErrNoCaregivers)
	})

	t.Run("past start date", func(t *testing.T) {
		f := newGatewayFixture()
		p := payload(true)
		p.StartDate = start.Add(-time.Hour)
		_, err := f.g.Post(context.Background(), p)
		assert.ErrorIs(t, err, ErrInvalidPayload)
	})
}

func TestPostDispatchesInlineWhenQueueIsDown(t *testing.T) {
	f := newGatewayFixture()
	f.scheduler.dispatchErr = errors.New("redis down")

	req, err := f.g.Post(context.Background(), payload(true))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		cur, err := f.g.Get(context.Background(), req.ID)
		return err == nil && cur.Status == models.StatusAssigned
	}, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return f.offers.count() == 2 }, time.Second, 5*time.Millisecond)
}

func postAndDispatch(t *testing.T, f *gatewayFixture, p models.BookingPayload) *models.BookingRequest {
	t.Helper()
	req, err := f.g.Post(context.Background(), p)
	require.NoError(t, err)
	req, err = f.g.Dispatch(context.Background(), req.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusAssigned, req.Status)
	return req
}

func TestDispatchIsIdempotent(t *testing.T) {
	f := newGatewayFixture()
	req := postAndDispatch(t, f, payload(true))

	again, err := f.g.Dispatch(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, req.Version, again.Version)
	assert.Eventually(t, func() bool { return f.offers.count() == 2 }, time.Second, 5*time.Millisecond)
}

func TestRespondFirstAcceptWins(t *testing.T) {
	f := newGatewayFixture()
	req := postAndDispatch(t, f, payload(true))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{"cg-1", "cg-2"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.g.Respond(context.Background(), req.ID, id, true, "")
		}(i, id)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, ErrMatchingClosed)
		}
	}
	assert.Equal(t, 1, winners)

	final, err := f.g.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, final.Status)
	require.Len(t, final.AcceptedEntries(), 1)
	assert.Equal(t, final.AcceptedEntries()[0].CaregiverID, final.AcceptedCaregiverID)
	for _, e := range final.CaregiverQueue {
		assert.True(t, e.Responded)
		if e.CaregiverID != final.AcceptedCaregiverID {
			assert.Equal(t, models.ResponseReject, e.Response)
			assert.Equal(t, reasonOtherAccepted, e.Reason)
		}
	}
}

func TestRespondAllRejectRejectsBooking(t *testing.T) {
	f := newGatewayFixture()
	req := postAndDispatch(t, f, payload(true))
	ctx := context.Background()

	cur, err := f.g.Respond(ctx, req.ID, "cg-1", false, "busy")
	require.NoError(t, err)
	assert.Equal(t, models.StatusAssigned, cur.Status)

	_, err = f.g.Respond(ctx, req.ID, "cg-1", true, "")
	assert.ErrorIs(t, err, ErrAlreadyResponded)
	_, err = f.g.Respond(ctx, req.ID, "cg-4", true, "")
	assert.ErrorIs(t, err, ErrNotQueued)

	cur, err = f.g.Respond(ctx, req.ID, "cg-2", false, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, cur.Status)
	assert.Equal(t, models.StatusRejected, f.bus.statuses()[len(f.bus.statuses())-1])
}

func TestRespondBeforeDispatchIsRefused(t *testing.T) {
	f := newGatewayFixture()
	req, err := f.g.Post(context.Background(), payload(false, "cg-1"))
	require.NoError(t, err)

	_, err = f.g.Respond(context.Background(), req.ID, "cg-1", true, "")
	assert.ErrorIs(t, err, ErrMatchingClosed)
}

func TestExpireAfterWindow(t *testing.T) {
	f := newGatewayFixture()
	req := postAndDispatch(t, f, payload(true))
	ctx := context.Background()

	cur, err := f.g.Expire(ctx, req.ID)
	require.NoError(t, err, "window has not passed yet")
	assert.Equal(t, models.StatusAssigned, cur.Status)

	f.clock.Advance(31 * time.Minute)
	cur, err = f.g.Expire(ctx, req.ID)
	var timeout *MatchingTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, req.ID, timeout.BookingID)
	assert.Equal(t, models.StatusExpired, cur.Status)

	_, err = f.g.Respond(ctx, req.ID, "cg-1", true, "")
	assert.ErrorIs(t, err, ErrMatchingClosed)

	cur, err = f.g.Expire(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, cur.Status)
}

func TestExpireSkipsAcceptedAndDirectBookings(t *testing.T) {
	f := newGatewayFixture()
	ctx := context.Background()
	open := postAndDispatch(t, f, payload(true))
	_, err := f.g.Respond(ctx, open.ID, "cg-2", true, "")
	require.NoError(t, err)
	direct := postAndDispatch(t, f, payload(false, "cg-1"))

	f.clock.Advance(time.Hour)
	cur, err := f.g.Expire(ctx, open.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, cur.Status)
	cur, err = f.g.Expire(ctx, direct.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAssigned, cur.Status)
}

func TestTransitionGuards(t *testing.T) {
	f := newGatewayFixture()
	ctx := context.Background()
	req := postAndDispatch(t, f, payload(true))

	_, err := f.g.Transition(ctx, req.ID, models.StatusPaymentPending)
	var terr *TransitionError
	require.ErrorAs(t, err, &terr)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.g.Respond(ctx, req.ID, "cg-1", true, "")
	require.NoError(t, err)

	cur, err := f.g.Transition(ctx, req.ID, models.StatusPaymentPending)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaymentPending, cur.Status)
	version := cur.Version

	same, err := f.g.Transition(ctx, req.ID, models.StatusPaymentPending)
	require.NoError(t, err)
	assert.Equal(t, version, same.Version, "no-op transitions do not write")

	_, err = f.g.Transition(ctx, req.ID, models.StatusExpired)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	paid, err := f.g.Transition(ctx, req.ID, models.StatusPaid)
	require.NoError(t, err)
	assert.True(t, paid.Status.Terminal())
}

func TestUpdateRetriesOnVersionConflict(t *testing.T) {
	f := newGatewayFixture()
	req, err := f.g.Post(context.Background(), payload(true))
	require.NoError(t, err)

	f.repo.conflicts = 2
	cur, err := f.g.Transition(context.Background(), req.ID, models.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, 2, cur.Version)

	f.repo.conflicts = maxWriteAttempts
	_, err = f.g.Transition(context.Background(), req.ID, models.StatusCancelled)
	require.NoError(t, err, "same status is a no-op and never writes")

	req2, err := f.g.Post(context.Background(), payload(true))
	require.NoError(t, err)
	_, err = f.g.Transition(context.Background(), req2.ID, models.StatusCancelled)
	assert.ErrorIs(t, err, ErrVersionConflict)
}
