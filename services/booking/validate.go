package booking

import (
	"time"

	"pawbook/models"
)

// validateField checks one draft field and returns a message, or "" when valid.
func validateField(d models.BookingDraft, field string, now time.Time) string {
	switch field {
	case FieldServiceType:
		if d.ServiceType == "" {
			return "serviceType is required"
		}
		if !d.ServiceType.Valid() {
			return "serviceType is not supported"
		}
	case FieldTrainingType:
		if d.ServiceType == models.ServiceTraining && d.TrainingTypeID == "" && d.CustomTrainingType == "" {
			return "choose a training type or describe a custom one"
		}
	case FieldPets:
		if len(d.Pets) == 0 {
			return "select at least one pet"
		}
	case FieldPetTypes:
		if len(d.PetTypes) == 0 {
			return "pet types are required"
		}
	case FieldStartDate:
		if d.StartDate.IsZero() {
			return "startDate is required"
		}
		if !d.StartDate.After(now) {
			return "startDate must be in the future"
		}
	case FieldIsOpenShift:
		if !d.OpenShiftDecided() {
			return "choose between an open shift and picking a caregiver"
		}
	case FieldSelectedCaregiverIDs:
		if d.OpenShift() && len(d.SelectedCaregiverIDs) > 0 {
			return "open shift bookings cannot name caregivers"
		}
		if !d.OpenShift() && len(d.SelectedCaregiverIDs) == 0 {
			return "select at least one caregiver"
		}
	}
	return ""
}

// validateFields runs validateField over fields and collects failures.
func validateFields(d models.BookingDraft, fields []string, now time.Time) map[string]string {
	errs := make(map[string]string)
	for _, f := range fields {
		if msg := validateField(d, f, now); msg != "" {
			errs[f] = msg
		}
	}
	return errs
}

// validateDraft checks every required field across the resolved path.
func validateDraft(d models.BookingDraft, steps []StepSpec, now time.Time) map[string]string {
	errs := make(map[string]string)
	for _, s := range steps {
		for f, msg := range validateFields(d, s.RequiredFields, now) {
			errs[f] = msg
		}
	}
	return errs
}
