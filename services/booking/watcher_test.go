package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"pawbook/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func openBooking(id string) models.BookingRequest {
	return models.BookingRequest{
		ID: id,
		BookingPayload: models.BookingPayload{
			OwnerID:     "owner-1",
			Platform:    models.PlatformWeb,
			ServiceType: models.ServiceSitting,
			IsOpenShift: true,
			Pets:        []string{"pet-1"},
		},
		Status:  models.StatusOpen,
		Version: 1,
	}
}

func newTestWatcher(g *fakeGateway, c *fakeCapturer, n *fakeNotifier) *StatusWatcher {
	return NewStatusWatcher(g, c, fakeBilling{}, n, zap.NewNop())
}

func TestWatcherAcceptedTriggersOneCapture(t *testing.T) {
	g := newFakeGateway()
	c := &fakeCapturer{}
	n := &fakeNotifier{}
	w := newTestWatcher(g, c, n)
	req := openBooking("bk-a")
	g.put(req)

	w.Watch(context.Background(), req)
	require.Eventually(t, func() bool { return g.subscribers("bk-a") == 1 }, waitFor, tick)

	g.set("bk-a", models.StatusAssigned)
	g.set("bk-a", models.StatusAccepted)

	require.Eventually(t, func() bool { return c.count() == 1 }, waitFor, tick)
	assert.Equal(t, models.StatusPaymentPending, g.status("bk-a"))
	assert.Equal(t, "bk-a", c.calls[0].BookingID)

	g.set("bk-a", models.StatusPaid)
	require.Eventually(t, func() bool { return !w.Watching("bk-a") }, waitFor, tick)
	assert.Equal(t, 1, c.count())
	assert.Eventually(t, func() bool {
		sent := n.sent()
		return assert.ObjectsAreEqual([]models.NotificationKind{models.NotifyBookingAccepted, models.NotifyBookingPaid}, sent) ||
			assert.ObjectsAreEqual([]models.NotificationKind{models.NotifyBookingPaid, models.NotifyBookingAccepted}, sent)
	}, waitFor, tick)
}

func TestWatcherRetriesFailedPaymentOpen(t *testing.T) {
	g := newFakeGateway()
	g.transitionErrs = []error{errors.New("mongo write timeout")}
	c := &fakeCapturer{}
	w := newTestWatcher(g, c, &fakeNotifier{})
	req := openBooking("bk-r")
	g.put(req)

	w.Watch(context.Background(), req)
	require.Eventually(t, func() bool { return g.subscribers("bk-r") == 1 }, waitFor, tick)

	g.set("bk-r", models.StatusAssigned)
	g.set("bk-r", models.StatusAccepted)

	require.Eventually(t, func() bool { return c.count() == 1 }, waitFor, tick)
	assert.Equal(t, models.StatusPaymentPending, g.status("bk-r"))
	assert.True(t, w.Watching("bk-r"))
}

func TestWatcherStopsWhilePaymentOpenFails(t *testing.T) {
	g := newFakeGateway()
	down := errors.New("mongo unreachable")
	g.transitionErrs = []error{down, down, down, down, down, down, down, down}
	c := &fakeCapturer{}
	w := newTestWatcher(g, c, &fakeNotifier{})
	req := openBooking("bk-s")
	req.Status = models.StatusAccepted
	g.put(req)

	w.Watch(context.Background(), req)
	require.Eventually(t, func() bool { return g.subscribers("bk-s") == 1 }, waitFor, tick)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	w.Stop(ctx)
	assert.NoError(t, ctx.Err(), "stop waited for the retry loop")
	assert.False(t, w.Watching("bk-s"))
	assert.Equal(t, models.StatusAccepted, g.status("bk-s"))
	assert.Zero(t, c.count())
}

func TestWatcherExpiredNeverCaptures(t *testing.T) {
	g := newFakeGateway()
	c := &fakeCapturer{}
	n := &fakeNotifier{}
	w := newTestWatcher(g, c, n)
	req := openBooking("bk-d")
	g.put(req)

	w.Watch(context.Background(), req)
	require.Eventually(t, func() bool { return g.subscribers("bk-d") == 1 }, waitFor, tick)
	g.set("bk-d", models.StatusExpired)

	require.Eventually(t, func() bool { return !w.Watching("bk-d") }, waitFor, tick)
	assert.Equal(t, 0, c.count())
	assert.Eventually(t, func() bool {
		sent := n.sent()
		return len(sent) == 1 && sent[0] == models.NotifyBookingExpired
	}, waitFor, tick)
}

func TestWatcherFailedCaptureLeavesBookingPayable(t *testing.T) {
	g := newFakeGateway()
	c := &fakeCapturer{err: errors.New("card declined")}
	w := newTestWatcher(g, c, &fakeNotifier{})
	req := openBooking("bk-c")
	req.Status = models.StatusAccepted
	g.put(req)

	w.Watch(context.Background(), req)
	require.Eventually(t, func() bool { return c.count() == 1 }, waitFor, tick)

	assert.Equal(t, models.StatusPaymentPending, g.status("bk-c"))
	assert.True(t, w.Watching("bk-c"))
	assert.Equal(t, 1, c.count())

	w.Stop(context.Background())
	assert.False(t, w.Watching("bk-c"))
}

func TestWatcherDedupesAndSkipsSettled(t *testing.T) {
	g := newFakeGateway()
	w := newTestWatcher(g, &fakeCapturer{}, &fakeNotifier{})
	req := openBooking("bk-1")
	g.put(req)

	w.Watch(context.Background(), req)
	w.Watch(context.Background(), req)
	require.Eventually(t, func() bool { return g.subscribers("bk-1") == 1 }, waitFor, tick)
	assert.True(t, w.Watching("bk-1"))

	paid := openBooking("bk-2")
	paid.Status = models.StatusPaid
	w.Watch(context.Background(), paid)
	assert.False(t, w.Watching("bk-2"))
	assert.Equal(t, 0, g.subscribers("bk-2"))

	w.Stop(context.Background())
	assert.False(t, w.Watching("bk-1"))
}

type fakeLister struct {
	reqs     []models.BookingRequest
	statuses []models.BookingStatus
}

func (l *fakeLister) ListByStatus(ctx context.Context, statuses []models.BookingStatus) ([]models.BookingRequest, error) {
	l.statuses = statuses
	return l.reqs, nil
}

func TestWatcherResume(t *testing.T) {
	g := newFakeGateway()
	w := newTestWatcher(g, &fakeCapturer{}, &fakeNotifier{})
	a, b := openBooking("bk-1"), openBooking("bk-2")
	b.Status = models.StatusAssigned
	g.put(a)
	g.put(b)
	lister := &fakeLister{reqs: []models.BookingRequest{a, b}}

	n, err := w.Resume(context.Background(), lister)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NotContains(t, lister.statuses, models.StatusPaid)
	assert.Contains(t, lister.statuses, models.StatusPaymentPending)
	assert.True(t, w.Watching("bk-1"))
	assert.True(t, w.Watching("bk-2"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	w.Stop(ctx)
}
