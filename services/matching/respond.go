package matching

import (
	"context"
	"fmt"

	"pawbook/models"

	"go.uber.org/zap"
)

const reasonOtherAccepted = "another caregiver accepted"

// Dispatch offers the booking to every queued caregiver and marks it assigned.
// Bookings that already left pending_match/open are left untouched.
func (g *DefaultGateway) Dispatch(ctx context.Context, bookingID string) (*models.BookingRequest, error) {
	req, err := g.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if req.Status != models.StatusPendingMatch && req.Status != models.StatusOpen {
		g.logger.Debug("dispatch skipped", zap.String("booking_id", bookingID), zap.String("status", string(req.Status)))
		return req, nil
	}

	ids := make([]string, 0, len(req.CaregiverQueue))
	for _, e := range req.CaregiverQueue {
		if !e.Responded {
			ids = append(ids, e.CaregiverID)
		}
	}
	caregivers, err := g.caregivers.GetCaregivers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load queued caregivers: %w", err)
	}

	updated, err := g.update(ctx, bookingID, func(r *models.BookingRequest) (bool, error) {
		if r.Status != models.StatusPendingMatch && r.Status != models.StatusOpen {
			return false, nil
		}
		r.Status = models.StatusAssigned
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	snapshot := updated.Clone()
	for _, c := range caregivers {
		go func(c models.CaregiverOption) {
			if err := g.notifier.OfferToCaregiver(context.WithoutCancel(ctx), c, snapshot); err != nil {
				g.logger.Warn("failed to offer booking",
					zap.String("booking_id", snapshot.ID), zap.String("caregiver_id", c.ID), zap.Error(err))
			}
		}(c)
	}
	return updated, nil
}

// Respond records one caregiver's answer. The first accept wins; every other
// pending entry is closed as rejected. When nobody is left to answer, the booking is rejected.
func (g *DefaultGateway) Respond(ctx context.Context, bookingID, caregiverID string, accept bool, reason string) (*models.BookingRequest, error) {
	return g.update(ctx, bookingID, func(req *models.BookingRequest) (bool, error) {
		if req.Status != models.StatusAssigned {
			return false, fmt.Errorf("%w: booking is %s", ErrMatchingClosed, req.Status)
		}
		idx := -1
		for i, e := range req.CaregiverQueue {
			if e.CaregiverID == caregiverID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return false, ErrNotQueued
		}
		if req.CaregiverQueue[idx].Responded {
			return false, ErrAlreadyResponded
		}

		now := g.clock.Now()
		entry := &req.CaregiverQueue[idx]
		entry.Responded = true
		entry.RespondedAt = &now
		entry.Reason = reason

		if accept {
			entry.Response = models.ResponseAccept
			for i := range req.CaregiverQueue {
				other := &req.CaregiverQueue[i]
				if other.Responded {
					continue
				}
				other.Responded = true
				other.Response = models.ResponseReject
				other.Reason = reasonOtherAccepted
				other.RespondedAt = &now
			}
			req.AcceptedCaregiverID = caregiverID
			req.Status = models.StatusAccepted
			return true, nil
		}

		entry.Response = models.ResponseReject
		if !req.AwaitingResponses() {
			req.Status = models.StatusRejected
		}
		return true, nil
	})
}

// Expire closes an open-shift booking whose matching window has passed.
// It returns a MatchingTimeoutError when the booking was expired by this call.
func (g *DefaultGateway) Expire(ctx context.Context, bookingID string) (*models.BookingRequest, error) {
	var expired bool
	req, err := g.update(ctx, bookingID, func(req *models.BookingRequest) (bool, error) {
		if !req.IsOpenShift || req.MatchingDeadline == nil {
			return false, nil
		}
		if req.Status != models.StatusOpen && req.Status != models.StatusAssigned {
			return false, nil
		}
		if g.clock.Now().Before(*req.MatchingDeadline) {
			return false, nil
		}
		req.Status = models.StatusExpired
		expired = true
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if expired {
		return req, &MatchingTimeoutError{BookingID: req.ID, Deadline: *req.MatchingDeadline}
	}
	return req, nil
}
