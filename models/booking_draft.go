package models

import "time"

// BookingDraft is the owner's in-progress booking, mutable until submission.
type BookingDraft struct {
	OwnerID              string      `json:"ownerId" bson:"owner_id"`
	Platform             Platform    `json:"platform" bson:"platform"`
	ServiceType          ServiceType `json:"serviceType,omitempty" bson:"service_type,omitempty"`
	IsOpenShift          *bool       `json:"isOpenShift,omitempty" bson:"is_open_shift,omitempty"` // nil until the owner decides
	Pets                 []string    `json:"pets,omitempty" bson:"pets,omitempty"`
	PetTypes             []string    `json:"petTypes,omitempty" bson:"pet_types,omitempty"`
	StartDate            time.Time   `json:"startDate,omitempty" bson:"start_date,omitempty"`
	Notes                string      `json:"notes,omitempty" bson:"notes,omitempty"`
	TrainingTypeID       string      `json:"trainingTypeId,omitempty" bson:"training_type_id,omitempty"`
	CustomTrainingType   string      `json:"customTrainingType,omitempty" bson:"custom_training_type,omitempty"`
	SelectedCaregiverIDs []string    `json:"selectedCaregiverIds,omitempty" bson:"selected_caregiver_ids,omitempty"`
}

// OpenShift reports whether the owner chose to broadcast the booking.
func (d BookingDraft) OpenShift() bool {
	return d.IsOpenShift != nil && *d.IsOpenShift
}

// OpenShiftDecided reports whether the open-shift question has been answered.
func (d BookingDraft) OpenShiftDecided() bool {
	return d.IsOpenShift != nil
}

// Clone returns a deep copy so the result shares no slices or pointers with d.
func (d BookingDraft) Clone() BookingDraft {
	out := d
	if d.IsOpenShift != nil {
		v := *d.IsOpenShift
		out.IsOpenShift = &v
	}
	out.Pets = cloneStrings(d.Pets)
	out.PetTypes = cloneStrings(d.PetTypes)
	out.SelectedCaregiverIDs = cloneStrings(d.SelectedCaregiverIDs)
	return out
}

// UniqueStrings drops empty and duplicate ids while keeping first-seen order.
func UniqueStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
