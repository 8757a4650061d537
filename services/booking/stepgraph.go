package booking

import (
	"fmt"

	"pawbook/models"
)

// StepID names a wizard step.
type StepID string

const (
	StepServiceType        StepID = "service_type"
	StepTrainingType       StepID = "training_type"
	StepPets               StepID = "pets"
	StepSchedule           StepID = "schedule"
	StepOpenShift          StepID = "open_shift"
	StepCaregiverSelection StepID = "caregiver_selection"
	StepConfirmation       StepID = "confirmation"
)

// Draft field names used for validation and error reporting.
const (
	FieldServiceType          = "serviceType"
	FieldTrainingType         = "trainingType"
	FieldPets                 = "pets"
	FieldPetTypes             = "petTypes"
	FieldStartDate            = "startDate"
	FieldIsOpenShift          = "isOpenShift"
	FieldSelectedCaregiverIDs = "selectedCaregiverIds"
	FieldNotes                = "notes"
)

// StepSpec is one step of a resolved wizard path and the fields it must validate.
type StepSpec struct {
	ID             StepID   `json:"id"`
	RequiredFields []string `json:"requiredFields"`
}

var stepFields = map[StepID][]string{
	StepServiceType:        {FieldServiceType},
	StepTrainingType:       {FieldTrainingType},
	StepPets:               {FieldPets, FieldPetTypes},
	StepSchedule:           {FieldStartDate},
	StepOpenShift:          {FieldIsOpenShift},
	StepCaregiverSelection: {FieldSelectedCaregiverIDs},
	StepConfirmation:       {},
}

var (
	standardPath = []StepID{StepServiceType, StepPets, StepSchedule, StepOpenShift, StepConfirmation}
	trainingPath = []StepID{StepServiceType, StepTrainingType, StepPets, StepSchedule, StepOpenShift, StepConfirmation}
)

// servicePaths lists the open-shift path per service type. The direct-pick path is the same
// list with StepCaregiverSelection inserted right after StepOpenShift.
var servicePaths = map[models.ServiceType][]StepID{
	models.ServiceTraining:       trainingPath,
	models.ServiceBoarding:       standardPath,
	models.ServiceWalking:        standardPath,
	models.ServiceSitting:        standardPath,
	models.ServiceGrooming:       standardPath,
	models.ServiceTransportation: standardPath,
}

// ResolveSteps maps a service type and open-shift choice to the ordered wizard steps.
// A nil isOpenShift means the owner has not decided yet; the caregiver step is left out
// until they choose a direct pick.
func ResolveSteps(serviceType models.ServiceType, isOpenShift *bool) ([]StepSpec, error) {
	path, ok := servicePaths[serviceType]
	if !ok {
		return nil, &UnsupportedServiceTypeError{ServiceType: serviceType}
	}
	directPick := isOpenShift != nil && !*isOpenShift

	steps := make([]StepSpec, 0, len(path)+1)
	for _, id := range path {
		steps = append(steps, newStepSpec(id))
		if id == StepOpenShift && directPick {
			steps = append(steps, newStepSpec(StepCaregiverSelection))
		}
	}
	return steps, nil
}

// initialSteps is the path shown before a service type is picked.
func initialSteps() []StepSpec {
	steps, _ := ResolveSteps(models.ServiceSitting, nil)
	return steps
}

func newStepSpec(id StepID) StepSpec {
	fields := make([]string, len(stepFields[id]))
	copy(fields, stepFields[id])
	return StepSpec{ID: id, RequiredFields: fields}
}

// IndexOf returns the position of id in steps, or -1.
func IndexOf(steps []StepSpec, id StepID) int {
	for i, s := range steps {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// pathFields is the union of required fields over steps.
func pathFields(steps []StepSpec) map[string]bool {
	out := make(map[string]bool)
	for _, s := range steps {
		for _, f := range s.RequiredFields {
			out[f] = true
		}
	}
	return out
}

// UnsupportedServiceTypeError is returned for service types with no step path.
type UnsupportedServiceTypeError struct {
	ServiceType models.ServiceType
}

func (e *UnsupportedServiceTypeError) Error() string {
	return fmt.Sprintf("unsupported service type %q", e.ServiceType)
}
