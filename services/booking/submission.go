package booking

import (
	"context"
	"errors"
	"fmt"

	"pawbook/models"
	"pawbook/services/matching"
	"pawbook/utils"

	"go.uber.org/zap"
)

// DefaultSubmissionService posts frozen drafts to the matching gateway. It never retries;
// callers decide based on the SubmissionError kind.
type DefaultSubmissionService struct {
	gateway  matching.Gateway
	currency string
	clock    utils.Clock
	logger   *zap.Logger
}

func NewSubmissionService(gateway matching.Gateway, currency string, clock utils.Clock, logger *zap.Logger) *DefaultSubmissionService {
	return &DefaultSubmissionService{
		gateway:  gateway,
		currency: currency,
		clock:    clock,
		logger:   logger,
	}
}

func (s *DefaultSubmissionService) Submit(ctx context.Context, draft models.BookingDraft) (*models.BookingRequest, error) {
	payload, err := s.toPayload(draft)
	if err != nil {
		return nil, err
	}

	req, err := s.gateway.Post(ctx, payload)
	if err != nil {
		return nil, classifyGatewayError(err)
	}

	expected := models.StatusPendingMatch
	if payload.IsOpenShift {
		expected = models.StatusOpen
	}
	if req.Status != expected {
		s.logger.Warn("unexpected initial booking status",
			zap.String("booking_id", req.ID),
			zap.String("status", string(req.Status)),
			zap.String("expected", string(expected)),
		)
	}

	s.logger.Info("booking request created",
		zap.String("booking_id", req.ID),
		zap.String("owner_id", req.OwnerID),
		zap.String("status", string(req.Status)),
		zap.Int("queue_length", len(req.CaregiverQueue)),
	)
	return req, nil
}

// toPayload serializes the draft into the matching wire format.
func (s *DefaultSubmissionService) toPayload(d models.BookingDraft) (models.BookingPayload, error) {
	if !d.OpenShiftDecided() {
		return models.BookingPayload{}, newSubmissionError(SubmissionValidation, "open-shift choice is missing", nil)
	}
	openShift := d.OpenShift()
	caregivers := models.UniqueStrings(d.SelectedCaregiverIDs)
	if openShift && len(caregivers) > 0 {
		return models.BookingPayload{}, newSubmissionError(SubmissionValidation, "open shift bookings cannot name caregivers", nil)
	}
	if !openShift && len(caregivers) == 0 {
		return models.BookingPayload{}, newSubmissionError(SubmissionValidation, "a caregiver must be selected", nil)
	}
	pets := models.UniqueStrings(d.Pets)
	if len(pets) == 0 {
		return models.BookingPayload{}, newSubmissionError(SubmissionValidation, "at least one pet is required", nil)
	}
	if !d.StartDate.After(s.clock.Now()) {
		return models.BookingPayload{}, newSubmissionError(SubmissionValidation, "start date must be in the future", nil)
	}

	quote, err := QuoteFor(d.ServiceType, len(pets), s.currency)
	if err != nil {
		return models.BookingPayload{}, newSubmissionError(SubmissionValidation, "booking cannot be priced", err)
	}
	if caregivers == nil {
		caregivers = []string{}
	}

	payload := models.BookingPayload{
		OwnerID:              d.OwnerID,
		Platform:             d.Platform,
		ServiceType:          d.ServiceType,
		IsOpenShift:          openShift,
		Pets:                 pets,
		PetTypes:             models.UniqueStrings(d.PetTypes),
		StartDate:            d.StartDate.UTC(),
		Notes:                d.Notes,
		SelectedCaregiverIDs: caregivers,
		AmountCents:          quote.AmountCents,
		Currency:             quote.Currency,
	}
	if d.ServiceType == models.ServiceTraining {
		payload.TrainingTypeID = d.TrainingTypeID
		payload.CustomTrainingType = d.CustomTrainingType
	}
	return payload, nil
}

func classifyGatewayError(err error) *SubmissionError {
	switch {
	case errors.Is(err, matching.ErrInvalidPayload):
		return newSubmissionError(SubmissionValidation, "booking request was rejected", err)
	case errors.Is(err, matching.ErrCaregiverUnavailable):
		return newSubmissionError(SubmissionConflict, "caregiver no longer available", err)
	case errors.Is(err, matching.ErrNoCaregivers):
		return newSubmissionError(SubmissionConflict, "no caregivers are available for this service", err)
	default:
		return newSubmissionError(SubmissionTransient, "booking request could not be sent", fmt.Errorf("post booking: %w", err))
	}
}
