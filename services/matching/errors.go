package matching

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidPayload       = errors.New("invalid booking payload")
	ErrCaregiverUnavailable = errors.New("caregiver no longer available")
	ErrNoCaregivers         = errors.New("no caregivers available for service type")
	ErrBookingNotFound      = errors.New("booking not found")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrVersionConflict      = errors.New("booking was modified concurrently")
	ErrNotQueued            = errors.New("caregiver is not queued for this booking")
	ErrAlreadyResponded     = errors.New("caregiver already responded")
	ErrMatchingClosed       = errors.New("booking no longer accepts responses")
)

// MatchingTimeoutError reports that an open-shift booking got no acceptance in its window.
type MatchingTimeoutError struct {
	BookingID string
	Deadline  time.Time
}

func (e *MatchingTimeoutError) Error() string {
	return fmt.Sprintf("booking %s: no caregiver accepted before %s", e.BookingID, e.Deadline.Format(time.RFC3339))
}

// TransitionError wraps ErrInvalidTransition with the offending states.
type TransitionError struct {
	BookingID string
	From, To  string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("booking %s: cannot move from %s to %s", e.BookingID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
