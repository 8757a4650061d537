package matching

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"pawbook/models"
	"pawbook/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxWriteAttempts = 5

// DefaultGateway runs the caregiver matching lifecycle over mongo, redis and asynq.
type DefaultGateway struct {
	repo       BookingRepository
	bus        StatusBus
	scheduler  TaskScheduler
	caregivers CaregiverDirectory
	notifier   CaregiverNotifier
	window     time.Duration
	clock      utils.Clock
	logger     *zap.Logger

	// writes to one booking are serialized in-process so publish order follows apply order
	locks [64]sync.Mutex
}

func NewGateway(
	repo BookingRepository,
	bus StatusBus,
	scheduler TaskScheduler,
	caregivers CaregiverDirectory,
	notifier CaregiverNotifier,
	window time.Duration,
	clock utils.Clock,
	logger *zap.Logger,
) *DefaultGateway {
	return &DefaultGateway{
		repo:       repo,
		bus:        bus,
		scheduler:  scheduler,
		caregivers: caregivers,
		notifier:   notifier,
		window:     window,
		clock:      clock,
		logger:     logger,
	}
}

func (g *DefaultGateway) Post(ctx context.Context, payload models.BookingPayload) (*models.BookingRequest, error) {
	now := g.clock.Now()
	if err := validatePayload(payload, now); err != nil {
		return nil, err
	}

	queue, err := g.buildQueue(ctx, payload)
	if err != nil {
		return nil, err
	}

	req := &models.BookingRequest{
		ID:             uuid.New().String(),
		BookingPayload: payload,
		Status:         models.StatusPendingMatch,
		CaregiverQueue: queue,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if payload.IsOpenShift {
		req.Status = models.StatusOpen
		deadline := now.Add(g.window)
		req.MatchingDeadline = &deadline
	}

	if err := g.repo.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("persist booking: %w", err)
	}
	g.publish(ctx, *req)

	if err := g.scheduler.ScheduleDispatch(ctx, req.ID); err != nil {
		g.logger.Error("failed to schedule dispatch, dispatching inline",
			zap.String("booking_id", req.ID), zap.Error(err))
		go func(id string) {
			if _, err := g.Dispatch(context.WithoutCancel(ctx), id); err != nil {
				g.logger.Error("inline dispatch failed", zap.String("booking_id", id), zap.Error(err))
			}
		}(req.ID)
	}
	if req.MatchingDeadline != nil {
		if err := g.scheduler.ScheduleExpiry(ctx, req.ID, *req.MatchingDeadline); err != nil {
			g.logger.Error("failed to schedule expiry", zap.String("booking_id", req.ID), zap.Error(err))
		}
	}

	out := req.Clone()
	return &out, nil
}

func (g *DefaultGateway) Get(ctx context.Context, bookingID string) (*models.BookingRequest, error) {
	return g.repo.GetByID(ctx, bookingID)
}

func (g *DefaultGateway) Subscribe(ctx context.Context, bookingID string) (<-chan models.BookingRequest, error) {
	return g.bus.Subscribe(ctx, bookingID)
}

// Transition applies an owner- or workflow-driven status change.
func (g *DefaultGateway) Transition(ctx context.Context, bookingID string, to models.BookingStatus) (*models.BookingRequest, error) {
	return g.update(ctx, bookingID, func(req *models.BookingRequest) (bool, error) {
		if req.Status == to {
			return false, nil
		}
		if !models.CanTransition(req.Status, to) {
			return false, &TransitionError{BookingID: req.ID, From: string(req.Status), To: string(to)}
		}
		if to == models.StatusPaymentPending && len(req.AcceptedEntries()) != 1 {
			return false, &TransitionError{BookingID: req.ID, From: string(req.Status), To: string(to)}
		}
		req.Status = to
		return true, nil
	})
}

// ListByOwner returns the owner's bookings, newest first.
func (g *DefaultGateway) ListByOwner(ctx context.Context, ownerID string) ([]models.BookingRequest, error) {
	return g.repo.ListByOwner(ctx, ownerID)
}

// ListForCaregiver returns bookings where the caregiver is queued.
func (g *DefaultGateway) ListForCaregiver(ctx context.Context, caregiverID string) ([]models.BookingRequest, error) {
	return g.repo.ListForCaregiver(ctx, caregiverID)
}

// update runs a read-modify-write with optimistic versioning. mutate reports whether it changed req.
func (g *DefaultGateway) update(ctx context.Context, bookingID string, mutate func(req *models.BookingRequest) (bool, error)) (*models.BookingRequest, error) {
	mu := g.lockFor(bookingID)
	mu.Lock()
	defer mu.Unlock()

	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		req, err := g.repo.GetByID(ctx, bookingID)
		if err != nil {
			return nil, err
		}
		prev := req.Status
		expected := req.Version

		changed, err := mutate(req)
		if err != nil {
			return nil, err
		}
		if !changed {
			return req, nil
		}
		req.Version = expected + 1
		req.UpdatedAt = g.clock.Now()

		err = g.repo.Replace(ctx, req, expected)
		if errors.Is(err, ErrVersionConflict) {
			g.logger.Debug("booking write conflict, retrying",
				zap.String("booking_id", bookingID), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("update booking %s: %w", bookingID, err)
		}

		if req.Status != prev {
			g.logger.Info("booking status changed",
				zap.String("booking_id", bookingID),
				zap.String("from", string(prev)),
				zap.String("to", string(req.Status)),
				zap.Int("version", req.Version),
			)
		}
		g.publish(ctx, *req)
		return req, nil
	}
	return nil, fmt.Errorf("update booking %s: %w", bookingID, ErrVersionConflict)
}

func (g *DefaultGateway) publish(ctx context.Context, req models.BookingRequest) {
	if err := g.bus.Publish(ctx, req); err != nil {
		g.logger.Error("failed to publish booking status",
			zap.String("booking_id", req.ID), zap.Int("version", req.Version), zap.Error(err))
	}
}

func (g *DefaultGateway) lockFor(id string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &g.locks[h.Sum32()%uint32(len(g.locks))]
}

func (g *DefaultGateway) buildQueue(ctx context.Context, payload models.BookingPayload) ([]models.CaregiverQueueEntry, error) {
	var picked []models.CaregiverOption

	if payload.IsOpenShift {
		options, err := g.caregivers.ListCaregiverOptionsForServiceType(ctx, payload.ServiceType)
		if err != nil {
			return nil, fmt.Errorf("list caregivers: %w", err)
		}
		for _, c := range options {
			if c.Available {
				picked = append(picked, c)
			}
		}
		if len(picked) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoCaregivers, payload.ServiceType)
		}
	} else {
		found, err := g.caregivers.GetCaregivers(ctx, payload.SelectedCaregiverIDs)
		if err != nil {
			return nil, fmt.Errorf("load caregivers: %w", err)
		}
		byID := make(map[string]models.CaregiverOption, len(found))
		for _, c := range found {
			byID[c.ID] = c
		}
		for _, id := range payload.SelectedCaregiverIDs {
			c, ok := byID[id]
			if !ok || !c.Available || !c.Offers(payload.ServiceType) {
				return nil, fmt.Errorf("%w: %s", ErrCaregiverUnavailable, id)
			}
			picked = append(picked, c)
		}
	}

	queue := make([]models.CaregiverQueueEntry, 0, len(picked))
	for i, c := range picked {
		queue = append(queue, models.CaregiverQueueEntry{CaregiverID: c.ID, QueuePosition: i})
	}
	return queue, nil
}

func validatePayload(p models.BookingPayload, now time.Time) error {
	switch {
	case p.OwnerID == "":
		return fmt.Errorf("%w: owner is required", ErrInvalidPayload)
	case !p.ServiceType.Valid():
		return fmt.Errorf("%w: unknown service type %q", ErrInvalidPayload, p.ServiceType)
	case !p.Platform.Valid():
		return fmt.Errorf("%w: unknown platform %q", ErrInvalidPayload, p.Platform)
	case len(p.Pets) == 0:
		return fmt.Errorf("%w: at least one pet is required", ErrInvalidPayload)
	case !p.StartDate.After(now):
		return fmt.Errorf("%w: start date must be in the future", ErrInvalidPayload)
	case p.IsOpenShift && len(p.SelectedCaregiverIDs) > 0:
		return fmt.Errorf("%w: open shift bookings cannot name caregivers", ErrInvalidPayload)
	case !p.IsOpenShift && len(p.SelectedCaregiverIDs) == 0:
		return fmt.Errorf("%w: direct bookings need a caregiver", ErrInvalidPayload)
	case p.AmountCents <= 0:
		return fmt.Errorf("%w: amount must be positive", ErrInvalidPayload)
	case p.ServiceType == models.ServiceTraining && p.TrainingTypeID == "" && p.CustomTrainingType == "":
		return fmt.Errorf("%w: training type is required", ErrInvalidPayload)
	}
	return nil
}
