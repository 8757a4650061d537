package booking

import (
	"context"

	"pawbook/models"
)

// Submitter turns a frozen draft into a persisted booking request.
type Submitter interface {
	Submit(ctx context.Context, draft models.BookingDraft) (*models.BookingRequest, error)
}

// Capturer runs one payment capture for a payable booking.
type Capturer interface {
	Capture(ctx context.Context, req models.BookingRequest, billing models.BillingContext) (*models.PaymentAttempt, error)
}

// BillingResolver finds how the owner of a booking pays by default.
type BillingResolver interface {
	BillingFor(ctx context.Context, req models.BookingRequest) (models.BillingContext, error)
}

// OwnerNotifier informs owners about terminal booking states. Calls are fire-and-forget.
type OwnerNotifier interface {
	NotifyOwner(ctx context.Context, ownerID string, kind models.NotificationKind, req models.BookingRequest) error
}

// PetDirectory lists the pets an owner can book for.
type PetDirectory interface {
	ListPetsForOwner(ctx context.Context, ownerID string) ([]models.Pet, error)
}

// CaregiverDirectory lists caregivers offering a service type.
type CaregiverDirectory interface {
	ListCaregiverOptionsForServiceType(ctx context.Context, serviceType models.ServiceType) ([]models.CaregiverOption, error)
}

// Watcher follows a submitted booking until it settles.
type Watcher interface {
	Watch(ctx context.Context, req models.BookingRequest)
}
