package models

import "time"

// BookingStatus is the server-side lifecycle state of a submitted booking.
type BookingStatus string

const (
	StatusPendingMatch   BookingStatus = "pending_match"
	StatusOpen           BookingStatus = "open"
	StatusAssigned       BookingStatus = "assigned"
	StatusAccepted       BookingStatus = "accepted"
	StatusRejected       BookingStatus = "rejected"
	StatusExpired        BookingStatus = "expired"
	StatusPaymentPending BookingStatus = "payment_pending"
	StatusPaid           BookingStatus = "paid"
	StatusCancelled      BookingStatus = "cancelled"
)

// AllowedTransitions maps a status to the statuses it may move to.
var AllowedTransitions = map[BookingStatus][]BookingStatus{
	StatusPendingMatch:   {StatusAssigned, StatusRejected, StatusCancelled},
	StatusOpen:           {StatusAssigned, StatusExpired, StatusCancelled},
	StatusAssigned:       {StatusAccepted, StatusRejected, StatusExpired, StatusCancelled},
	StatusAccepted:       {StatusPaymentPending, StatusCancelled},
	StatusPaymentPending: {StatusPaid, StatusCancelled},
	StatusRejected:       {},
	StatusExpired:        {},
	StatusPaid:           {},
	StatusCancelled:      {},
}

// CanTransition checks if a transition from one status to another is allowed.
func CanTransition(from, to BookingStatus) bool {
	allowed, exists := AllowedTransitions[from]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s BookingStatus) Terminal() bool {
	allowed, exists := AllowedTransitions[s]
	return exists && len(allowed) == 0
}

// Matching reports whether caregivers may still respond.
func (s BookingStatus) Matching() bool {
	return s == StatusPendingMatch || s == StatusOpen || s == StatusAssigned
}

type CaregiverResponse string

const (
	ResponseAccept CaregiverResponse = "accept"
	ResponseReject CaregiverResponse = "reject"
)

// CaregiverQueueEntry is one caregiver offered the booking.
type CaregiverQueueEntry struct {
	CaregiverID   string            `json:"caregiverId" bson:"caregiver_id"`
	QueuePosition int               `json:"queuePosition" bson:"queue_position"`
	Responded     bool              `json:"responded" bson:"responded"`
	Response      CaregiverResponse `json:"response,omitempty" bson:"response,omitempty"`
	Reason        string            `json:"reason,omitempty" bson:"reason,omitempty"`
	RespondedAt   *time.Time        `json:"respondedAt,omitempty" bson:"responded_at,omitempty"`
}

// BookingPayload is the frozen draft as posted to the matching backend.
type BookingPayload struct {
	OwnerID              string      `json:"ownerId" bson:"owner_id"`
	Platform             Platform    `json:"platform" bson:"platform"`
	ServiceType          ServiceType `json:"serviceType" bson:"service_type"`
	IsOpenShift          bool        `json:"isOpenShift" bson:"is_open_shift"`
	Pets                 []string    `json:"pets" bson:"pets"`
	PetTypes             []string    `json:"petTypes" bson:"pet_types"`
	StartDate            time.Time   `json:"startDate" bson:"start_date"`
	Notes                string      `json:"notes,omitempty" bson:"notes,omitempty"`
	TrainingTypeID       string      `json:"trainingTypeId,omitempty" bson:"training_type_id,omitempty"`
	CustomTrainingType   string      `json:"customTrainingType,omitempty" bson:"custom_training_type,omitempty"`
	SelectedCaregiverIDs []string    `json:"selectedCaregiverIds" bson:"selected_caregiver_ids"`
	AmountCents          int64       `json:"amountCents" bson:"amount_cents"`
	Currency             string      `json:"currency" bson:"currency"`
}

// BookingRequest is the persisted, server-acknowledged booking.
type BookingRequest struct {
	ID             string `json:"id" bson:"id"`
	BookingPayload `bson:",inline"`

	Status              BookingStatus         `json:"status" bson:"status"`
	CaregiverQueue      []CaregiverQueueEntry `json:"caregiverQueue" bson:"caregiver_queue"`
	AcceptedCaregiverID string                `json:"acceptedCaregiverId,omitempty" bson:"accepted_caregiver_id,omitempty"`
	MatchingDeadline    *time.Time            `json:"matchingDeadline,omitempty" bson:"matching_deadline,omitempty"`
	// Version increments on every write; subscribers drop anything older than what they saw.
	Version   int       `json:"version" bson:"version"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}

// AcceptedEntries returns the queue entries that accepted the booking.
func (r BookingRequest) AcceptedEntries() []CaregiverQueueEntry {
	var out []CaregiverQueueEntry
	for _, e := range r.CaregiverQueue {
		if e.Responded && e.Response == ResponseAccept {
			out = append(out, e)
		}
	}
	return out
}

// AwaitingResponses reports whether any queued caregiver has not answered yet.
func (r BookingRequest) AwaitingResponses() bool {
	for _, e := range r.CaregiverQueue {
		if !e.Responded {
			return true
		}
	}
	return false
}

// Clone deep-copies the request.
func (r BookingRequest) Clone() BookingRequest {
	out := r
	out.Pets = cloneStrings(r.Pets)
	out.PetTypes = cloneStrings(r.PetTypes)
	out.SelectedCaregiverIDs = cloneStrings(r.SelectedCaregiverIDs)
	if r.CaregiverQueue != nil {
		out.CaregiverQueue = make([]CaregiverQueueEntry, len(r.CaregiverQueue))
		copy(out.CaregiverQueue, r.CaregiverQueue)
		for i, e := range r.CaregiverQueue {
			if e.RespondedAt != nil {
				at := *e.RespondedAt
				out.CaregiverQueue[i].RespondedAt = &at
			}
		}
	}
	if r.MatchingDeadline != nil {
		d := *r.MatchingDeadline
		out.MatchingDeadline = &d
	}
	return out
}
