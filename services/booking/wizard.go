package booking

import (
	"context"
	"errors"
	"sync"
	"time"

	"pawbook/models"
	"pawbook/utils"

	"go.uber.org/zap"
)

// DraftPatch is a partial draft update. Nil fields are left untouched; an empty,
// non-nil slice clears the corresponding set.
type DraftPatch struct {
	ServiceType          *models.ServiceType `json:"serviceType,omitempty"`
	IsOpenShift          *bool               `json:"isOpenShift,omitempty"`
	Pets                 []string            `json:"pets,omitempty"`
	PetTypes             []string            `json:"petTypes,omitempty"`
	StartDate            *time.Time          `json:"startDate,omitempty"`
	Notes                *string             `json:"notes,omitempty"`
	TrainingTypeID       *string             `json:"trainingTypeId,omitempty"`
	CustomTrainingType   *string             `json:"customTrainingType,omitempty"`
	SelectedCaregiverIDs []string            `json:"selectedCaregiverIds,omitempty"`
}

// WizardController drives one owner's booking draft through its resolved steps.
type WizardController struct {
	mu sync.Mutex

	id          string
	draft       models.BookingDraft
	steps       []StepSpec
	current     int
	validated   map[StepID]bool
	fieldErrors map[string]string
	status      models.WizardStatus
	request     *models.BookingRequest

	submitter Submitter
	clock     utils.Clock
	logger    *zap.Logger
}

// NewWizardController starts a wizard over an empty draft for ownerID.
func NewWizardController(id string, ownerID string, platform models.Platform, submitter Submitter, clock utils.Clock, logger *zap.Logger) *WizardController {
	return &WizardController{
		id:          id,
		draft:       models.BookingDraft{OwnerID: ownerID, Platform: platform},
		steps:       initialSteps(),
		validated:   make(map[StepID]bool),
		fieldErrors: make(map[string]string),
		status:      models.WizardEditing,
		submitter:   submitter,
		clock:       clock,
		logger:      logger,
	}
}

// RestoreWizardController rebuilds a controller from a persisted snapshot.
func RestoreWizardController(snap models.WizardSnapshot, submitter Submitter, clock utils.Clock, logger *zap.Logger) (*WizardController, error) {
	w := &WizardController{
		id:          snap.ID,
		draft:       snap.Draft.Clone(),
		current:     snap.CurrentStepIndex,
		validated:   make(map[StepID]bool),
		fieldErrors: make(map[string]string),
		status:      snap.Status,
		submitter:   submitter,
		clock:       clock,
		logger:      logger,
	}
	if w.draft.ServiceType == "" {
		w.steps = initialSteps()
	} else {
		steps, err := ResolveSteps(w.draft.ServiceType, w.draft.IsOpenShift)
		if err != nil {
			return nil, err
		}
		w.steps = steps
	}
	for id, ok := range snap.StepValidation {
		if ok && IndexOf(w.steps, StepID(id)) >= 0 {
			w.validated[StepID(id)] = true
		}
	}
	for f, msg := range snap.FieldErrors {
		w.fieldErrors[f] = msg
	}
	w.current = clampIndex(w.current, len(w.steps))
	if w.status == models.WizardSubmitting {
		// The process stopped mid-submit; the owner may resubmit.
		logger.Warn("restoring wizard that was mid-submit", zap.String("wizard_id", snap.ID))
		w.status = models.WizardEditing
	}
	if w.status == models.WizardSubmitted && snap.BookingID != "" {
		w.request = &models.BookingRequest{ID: snap.BookingID}
	}
	return w, nil
}

func (w *WizardController) ID() string {
	return w.id
}

// Snapshot returns the persistable state of the wizard.
func (w *WizardController) Snapshot() models.WizardSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

func (w *WizardController) snapshotLocked() models.WizardSnapshot {
	snap := models.WizardSnapshot{
		ID:               w.id,
		Draft:            w.draft.Clone(),
		CurrentStepIndex: w.current,
		StepValidation:   make(map[string]bool, len(w.validated)),
		FieldErrors:      make(map[string]string, len(w.fieldErrors)),
		Status:           w.status,
		UpdatedAt:        w.clock.Now(),
	}
	for id, ok := range w.validated {
		snap.StepValidation[string(id)] = ok
	}
	for f, msg := range w.fieldErrors {
		snap.FieldErrors[f] = msg
	}
	if w.request != nil {
		snap.BookingID = w.request.ID
	}
	return snap
}

// Steps returns the currently resolved path.
func (w *WizardController) Steps() []StepSpec {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]StepSpec, len(w.steps))
	copy(out, w.steps)
	return out
}

// CurrentStep returns the active step and its index.
func (w *WizardController) CurrentStep() (StepSpec, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.steps[w.current], w.current
}

func (w *WizardController) Status() models.WizardStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Update applies a partial draft. Changing the service type or the open-shift choice
// re-resolves the step path.
func (w *WizardController) Update(p DraftPatch) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editableLocked(); err != nil {
		return err
	}

	prev := w.draft.Clone()
	reresolve := false

	if p.ServiceType != nil && *p.ServiceType != w.draft.ServiceType {
		if !p.ServiceType.Valid() {
			w.fieldErrors[FieldServiceType] = "serviceType is not supported"
			return &ValidationError{Fields: map[string]string{FieldServiceType: "serviceType is not supported"}}
		}
		w.draft.ServiceType = *p.ServiceType
		reresolve = true
	}
	if p.IsOpenShift != nil && (w.draft.IsOpenShift == nil || *w.draft.IsOpenShift != *p.IsOpenShift) {
		v := *p.IsOpenShift
		w.draft.IsOpenShift = &v
		reresolve = true
	}
	if p.Pets != nil {
		w.draft.Pets = models.UniqueStrings(p.Pets)
	}
	if p.PetTypes != nil {
		w.draft.PetTypes = models.UniqueStrings(p.PetTypes)
	}
	if p.StartDate != nil {
		w.draft.StartDate = p.StartDate.UTC()
	}
	if p.Notes != nil {
		w.draft.Notes = *p.Notes
	}
	if p.TrainingTypeID != nil {
		w.draft.TrainingTypeID = *p.TrainingTypeID
	}
	if p.CustomTrainingType != nil {
		w.draft.CustomTrainingType = *p.CustomTrainingType
	}
	if p.SelectedCaregiverIDs != nil {
		w.draft.SelectedCaregiverIDs = models.UniqueStrings(p.SelectedCaregiverIDs)
	}

	if reresolve && w.draft.ServiceType != "" {
		if err := w.reresolveLocked(); err != nil {
			w.draft = prev
			return err
		}
	} else {
		w.reconcileLocked()
	}
	w.revalidateMarksLocked()
	for _, f := range patchedFields(p) {
		delete(w.fieldErrors, f)
	}
	return nil
}

// Next validates fields (the current step's required fields when none are named) and
// advances one step on success. On the last step it validates without moving.
func (w *WizardController) Next(fields []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editableLocked(); err != nil {
		return err
	}

	step := w.steps[w.current]
	if len(fields) == 0 {
		fields = step.RequiredFields
	}
	now := w.clock.Now()
	if errs := validateFields(w.draft, fields, now); len(errs) > 0 {
		for f, msg := range errs {
			w.fieldErrors[f] = msg
		}
		return &ValidationError{Fields: errs}
	}
	for _, f := range fields {
		delete(w.fieldErrors, f)
	}
	if len(validateFields(w.draft, step.RequiredFields, now)) == 0 {
		w.validated[step.ID] = true
	}
	if w.current < len(w.steps)-1 {
		w.current++
	}
	return nil
}

// Prev moves back one step. Entered data is kept.
func (w *WizardController) Prev() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editableLocked(); err != nil {
		return err
	}
	if w.current > 0 {
		w.current--
	}
	return nil
}

// GoTo jumps to a step no further than the last validated one.
func (w *WizardController) GoTo(id StepID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editableLocked(); err != nil {
		return err
	}
	idx := IndexOf(w.steps, id)
	if idx < 0 {
		return ErrUnknownStep
	}
	if idx != w.current && idx > w.highestValidatedLocked() {
		return ErrStepNotReachable
	}
	w.current = idx
	return nil
}

// Submit validates the whole draft, freezes it and hands it to the submitter.
// A call made while another submit is in flight returns ErrSubmitInFlight without
// reaching the submitter. Once submitted, Submit returns the same request.
func (w *WizardController) Submit(ctx context.Context) (*models.BookingRequest, error) {
	w.mu.Lock()
	switch w.status {
	case models.WizardSubmitting:
		w.mu.Unlock()
		return nil, ErrSubmitInFlight
	case models.WizardSubmitted:
		req := w.request
		w.mu.Unlock()
		return req, nil
	case models.WizardCancelled:
		w.mu.Unlock()
		return nil, ErrWizardClosed
	}

	if errs := validateDraft(w.draft, w.steps, w.clock.Now()); len(errs) > 0 {
		for f, msg := range errs {
			w.fieldErrors[f] = msg
		}
		w.mu.Unlock()
		return nil, &ValidationError{Fields: errs}
	}

	frozen := w.draft.Clone()
	w.status = models.WizardSubmitting
	w.mu.Unlock()

	w.logger.Info("submitting booking draft",
		zap.String("wizard_id", w.id),
		zap.String("owner_id", frozen.OwnerID),
		zap.String("service_type", string(frozen.ServiceType)),
		zap.Bool("open_shift", frozen.OpenShift()),
	)
	req, err := w.submitter.Submit(ctx, frozen)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.status = models.WizardEditing
		var se *SubmissionError
		if errors.As(err, &se) && se.Kind == SubmissionConflict {
			w.returnToCaregiverSelectionLocked(se.Message)
		}
		w.logger.Warn("booking submission failed", zap.String("wizard_id", w.id), zap.Error(err))
		return nil, err
	}
	w.status = models.WizardSubmitted
	w.request = req
	return req, nil
}

// Cancel discards the draft. It is refused while a submit is in flight or after success.
func (w *WizardController) Cancel() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.status {
	case models.WizardSubmitting:
		return ErrSubmitInFlight
	case models.WizardSubmitted, models.WizardCancelled:
		return ErrWizardClosed
	}
	w.status = models.WizardCancelled
	w.draft = models.BookingDraft{}
	w.validated = make(map[StepID]bool)
	w.fieldErrors = make(map[string]string)
	return nil
}

func (w *WizardController) editableLocked() error {
	if w.status != models.WizardEditing {
		if w.status == models.WizardSubmitting {
			return ErrSubmitInFlight
		}
		return ErrWizardClosed
	}
	return nil
}

// highestValidatedLocked is the last index of the contiguous validated prefix, -1 if none.
func (w *WizardController) highestValidatedLocked() int {
	highest := -1
	for i, s := range w.steps {
		if !w.validated[s.ID] {
			break
		}
		highest = i
	}
	return highest
}

func (w *WizardController) reresolveLocked() error {
	steps, err := ResolveSteps(w.draft.ServiceType, w.draft.IsOpenShift)
	if err != nil {
		return err
	}
	currentID := w.steps[w.current].ID
	w.steps = steps
	w.reconcileLocked()

	for id := range w.validated {
		if IndexOf(steps, id) < 0 {
			delete(w.validated, id)
		}
	}
	if idx := IndexOf(steps, currentID); idx >= 0 {
		w.current = idx
	} else {
		w.current = clampIndex(w.current, len(steps))
	}
	return nil
}

// reconcileLocked clears fields that the current path no longer collects.
func (w *WizardController) reconcileLocked() {
	fields := pathFields(w.steps)
	if !fields[FieldTrainingType] {
		w.draft.TrainingTypeID = ""
		w.draft.CustomTrainingType = ""
		delete(w.fieldErrors, FieldTrainingType)
	}
	if !fields[FieldSelectedCaregiverIDs] {
		w.draft.SelectedCaregiverIDs = nil
		delete(w.fieldErrors, FieldSelectedCaregiverIDs)
	}
}

// revalidateMarksLocked drops the validated mark of any step whose fields no longer pass.
func (w *WizardController) revalidateMarksLocked() {
	now := w.clock.Now()
	for _, s := range w.steps {
		if w.validated[s.ID] && len(validateFields(w.draft, s.RequiredFields, now)) > 0 {
			delete(w.validated, s.ID)
		}
	}
}

func (w *WizardController) returnToCaregiverSelectionLocked(msg string) {
	idx := IndexOf(w.steps, StepCaregiverSelection)
	if idx < 0 {
		return
	}
	for i := idx; i < len(w.steps); i++ {
		delete(w.validated, w.steps[i].ID)
	}
	w.current = idx
	w.fieldErrors[FieldSelectedCaregiverIDs] = msg
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n-1 {
		return n - 1
	}
	return i
}

func patchedFields(p DraftPatch) []string {
	var out []string
	if p.ServiceType != nil {
		out = append(out, FieldServiceType)
	}
	if p.IsOpenShift != nil {
		out = append(out, FieldIsOpenShift)
	}
	if p.Pets != nil {
		out = append(out, FieldPets)
	}
	if p.PetTypes != nil {
		out = append(out, FieldPetTypes)
	}
	if p.StartDate != nil {
		out = append(out, FieldStartDate)
	}
	if p.TrainingTypeID != nil || p.CustomTrainingType != nil {
		out = append(out, FieldTrainingType)
	}
	if p.SelectedCaregiverIDs != nil {
		out = append(out, FieldSelectedCaregiverIDs)
	}
	return out
}
