package matching

import (
	"context"
	"time"

	"pawbook/models"
)

// Gateway is what the booking workflow needs from the matching backend.
type Gateway interface {
	Post(ctx context.Context, payload models.BookingPayload) (*models.BookingRequest, error)
	Get(ctx context.Context, bookingID string) (*models.BookingRequest, error)
	// Subscribe delivers every later status change until ctx is done.
	Subscribe(ctx context.Context, bookingID string) (<-chan models.BookingRequest, error)
	Transition(ctx context.Context, bookingID string, to models.BookingStatus) (*models.BookingRequest, error)
}

// BookingRepository persists booking requests with optimistic versioning.
type BookingRepository interface {
	Create(ctx context.Context, req *models.BookingRequest) error
	GetByID(ctx context.Context, id string) (*models.BookingRequest, error)
	// Replace stores req only if the stored version equals expectedVersion.
	Replace(ctx context.Context, req *models.BookingRequest, expectedVersion int) error
	ListByStatus(ctx context.Context, statuses []models.BookingStatus) ([]models.BookingRequest, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.BookingRequest, error)
	ListForCaregiver(ctx context.Context, caregiverID string) ([]models.BookingRequest, error)
}

// StatusBus fans out booking changes to watchers.
type StatusBus interface {
	Publish(ctx context.Context, req models.BookingRequest) error
	Subscribe(ctx context.Context, bookingID string) (<-chan models.BookingRequest, error)
}

// TaskScheduler queues deferred matching work.
type TaskScheduler interface {
	ScheduleDispatch(ctx context.Context, bookingID string) error
	ScheduleExpiry(ctx context.Context, bookingID string, at time.Time) error
}

// CaregiverDirectory resolves caregivers eligible for a booking.
type CaregiverDirectory interface {
	ListCaregiverOptionsForServiceType(ctx context.Context, serviceType models.ServiceType) ([]models.CaregiverOption, error)
	GetCaregivers(ctx context.Context, ids []string) ([]models.CaregiverOption, error)
}

// CaregiverNotifier pushes booking offers to caregivers.
type CaregiverNotifier interface {
	OfferToCaregiver(ctx context.Context, caregiver models.CaregiverOption, req models.BookingRequest) error
}
