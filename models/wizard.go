package models

import "time"

type WizardStatus string

const (
	WizardEditing    WizardStatus = "editing"
	WizardSubmitting WizardStatus = "submitting"
	WizardSubmitted  WizardStatus = "submitted"
	WizardCancelled  WizardStatus = "cancelled"
)

// WizardSnapshot is the persisted form of a wizard session.
type WizardSnapshot struct {
	ID               string            `json:"id"`
	Draft            BookingDraft      `json:"draft"`
	CurrentStepIndex int               `json:"currentStepIndex"`
	StepValidation   map[string]bool   `json:"stepValidation"`
	FieldErrors      map[string]string `json:"fieldErrors,omitempty"`
	Status           WizardStatus      `json:"status"`
	BookingID        string            `json:"bookingId,omitempty"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}
