package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusOpen, StatusAssigned))
	assert.True(t, CanTransition(StatusAssigned, StatusAccepted))
	assert.True(t, CanTransition(StatusAccepted, StatusPaymentPending))
	assert.True(t, CanTransition(StatusPaymentPending, StatusPaid))

	assert.False(t, CanTransition(StatusAssigned, StatusPaymentPending), "payment needs an accepted caregiver first")
	assert.False(t, CanTransition(StatusPendingMatch, StatusExpired), "direct picks do not expire")
	assert.False(t, CanTransition(StatusPaid, StatusCancelled))
	assert.False(t, CanTransition(BookingStatus("lost"), StatusOpen))
}

func TestStatusPredicates(t *testing.T) {
	for _, s := range []BookingStatus{StatusRejected, StatusExpired, StatusPaid, StatusCancelled} {
		assert.True(t, s.Terminal(), s)
		assert.False(t, s.Matching(), s)
	}
	for _, s := range []BookingStatus{StatusPendingMatch, StatusOpen, StatusAssigned} {
		assert.False(t, s.Terminal(), s)
		assert.True(t, s.Matching(), s)
	}
	assert.False(t, StatusPaymentPending.Terminal())
	assert.False(t, BookingStatus("lost").Terminal())
}

func TestUniqueStrings(t *testing.T) {
	assert.Equal(t, []string{"pet-1", "pet-2"}, UniqueStrings([]string{"pet-1", "", "pet-2", "pet-1"}))
	assert.Nil(t, UniqueStrings([]string{"", ""}))
	assert.Nil(t, UniqueStrings(nil))
}

func TestDraftClone(t *testing.T) {
	open := true
	d := BookingDraft{IsOpenShift: &open, Pets: []string{"pet-1"}, SelectedCaregiverIDs: []string{"cg-1"}}
	c := d.Clone()
	*c.IsOpenShift = false
	c.Pets[0] = "pet-9"
	c.SelectedCaregiverIDs[0] = "cg-9"

	assert.True(t, d.OpenShift())
	assert.Equal(t, "pet-1", d.Pets[0])
	assert.Equal(t, "cg-1", d.SelectedCaregiverIDs[0])
	assert.False(t, BookingDraft{}.OpenShiftDecided())
}

func TestRequestCloneAndQueueQueries(t *testing.T) {
	deadline := time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)
	respondedAt := deadline.Add(-time.Hour)
	r := BookingRequest{
		ID: "bk-1",
		CaregiverQueue: []CaregiverQueueEntry{
			{CaregiverID: "cg-1", QueuePosition: 0, Responded: true, Response: ResponseAccept, RespondedAt: &respondedAt},
			{CaregiverID: "cg-2", QueuePosition: 1},
		},
		MatchingDeadline: &deadline,
	}
	assert.Len(t, r.AcceptedEntries(), 1)
	assert.True(t, r.AwaitingResponses())

	c := r.Clone()
	c.CaregiverQueue[1].Responded = true
	*c.MatchingDeadline = deadline.Add(time.Hour)
	*c.CaregiverQueue[0].RespondedAt = deadline
	assert.False(t, r.CaregiverQueue[1].Responded)
	assert.Equal(t, deadline, *r.MatchingDeadline)
	assert.Equal(t, deadline.Add(-time.Hour), *r.CaregiverQueue[0].RespondedAt)
	assert.Nil(t, c.CaregiverQueue[1].RespondedAt)
	assert.False(t, c.AwaitingResponses())
}

func TestValidEnums(t *testing.T) {
	assert.True(t, ServiceGrooming.Valid())
	assert.False(t, ServiceType("daycare").Valid())
	assert.True(t, PlatformWeb.Valid())
	assert.False(t, Platform("desktop").Valid())
}
