package booking

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pawbook/models"
	"pawbook/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fakeSubmitter struct {
	calls   atomic.Int32
	release chan struct{}
	err     error
	status  models.BookingStatus
	drafts  []models.BookingDraft
	mu      sync.Mutex
}

func (f *fakeSubmitter) Submit(ctx context.Context, d models.BookingDraft) (*models.BookingRequest, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.drafts = append(f.drafts, d)
	f.mu.Unlock()
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	status := f.status
	if status == "" {
		status = models.StatusOpen
		if !d.OpenShift() {
			status = models.StatusPendingMatch
		}
	}
	return &models.BookingRequest{ID: "bk-1", Status: status, Version: 1}, nil
}

func newTestWizard(sub Submitter) *WizardController {
	return NewWizardController("wz-1", "owner-1", models.PlatformWeb, sub, utils.NewFixedClock(testNow), zap.NewNop())
}

func ptr[T any](v T) *T { return &v }

// fillToOpenShift walks a fresh wizard up to the open-shift step.
func fillToOpenShift(t *testing.T, w *WizardController, st models.ServiceType) {
	t.Helper()
	require.NoError(t, w.Update(DraftPatch{ServiceType: ptr(st)}))
	require.NoError(t, w.Next(nil))
	if st == models.ServiceTraining {
		require.NoError(t, w.Update(DraftPatch{TrainingTypeID: ptr("obedience")}))
		require.NoError(t, w.Next(nil))
	}
	require.NoError(t, w.Update(DraftPatch{Pets: []string{"pet-1"}, PetTypes: []string{"dog"}}))
	require.NoError(t, w.Next(nil))
	require.NoError(t, w.Update(DraftPatch{StartDate: ptr(testNow.Add(48 * time.Hour))}))
	require.NoError(t, w.Next(nil))
	step, _ := w.CurrentStep()
	require.Equal(t, StepOpenShift, step.ID)
}

func TestWizardSittingOpenShiftSubmit(t *testing.T) {
	sub := &fakeSubmitter{}
	w := newTestWizard(sub)
	fillToOpenShift(t, w, models.ServiceSitting)

	require.NoError(t, w.Update(DraftPatch{IsOpenShift: ptr(true)}))
	require.NoError(t, w.Next(nil))

	assert.Len(t, w.Steps(), 5)
	step, idx := w.CurrentStep()
	assert.Equal(t, StepConfirmation, step.ID)
	assert.Equal(t, 4, idx)

	req, err := w.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, req.Status)
	assert.Equal(t, models.WizardSubmitted, w.Status())
	assert.Equal(t, int32(1), sub.calls.Load())
	assert.Empty(t, sub.drafts[0].SelectedCaregiverIDs)

	again, err := w.Submit(context.Background())
	require.NoError(t, err)
	assert.Same(t, req, again)
	assert.Equal(t, int32(1), sub.calls.Load())
}

func TestWizardNextBlocksOnInvalidFields(t *testing.T) {
	w := newTestWizard(&fakeSubmitter{})

	err := w.Next(nil)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, FieldServiceType)
	_, idx := w.CurrentStep()
	assert.Equal(t, 0, idx)

	require.NoError(t, w.Update(DraftPatch{ServiceType: ptr(models.ServiceWalking)}))
	require.NoError(t, w.Next(nil))

	require.NoError(t, w.Update(DraftPatch{Pets: []string{"pet-1"}}))
	err = w.Next(nil)
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, FieldPetTypes)
	_, idx = w.CurrentStep()
	assert.Equal(t, 1, idx)
	assert.Contains(t, w.Snapshot().FieldErrors, FieldPetTypes)
}

func TestWizardNextValidatesOnlyNamedFields(t *testing.T) {
	w := newTestWizard(&fakeSubmitter{})
	require.NoError(t, w.Update(DraftPatch{ServiceType: ptr(models.ServiceSitting)}))
	require.NoError(t, w.Next(nil))

	require.NoError(t, w.Update(DraftPatch{Pets: []string{"pet-1"}}))
	require.NoError(t, w.Next([]string{FieldPets}))

	_, idx := w.CurrentStep()
	assert.Equal(t, 2, idx)
	assert.False(t, w.Snapshot().StepValidation[string(StepPets)], "pets step is incomplete without pet types")
}

func TestWizardPastDateRejected(t *testing.T) {
	w := newTestWizard(&fakeSubmitter{})
	require.NoError(t, w.Update(DraftPatch{ServiceType: ptr(models.ServiceSitting)}))
	require.NoError(t, w.Next(nil))
	require.NoError(t, w.Update(DraftPatch{Pets: []string{"pet-1"}, PetTypes: []string{"cat"}}))
	require.NoError(t, w.Next(nil))

	require.NoError(t, w.Update(DraftPatch{StartDate: ptr(testNow.Add(-time.Hour))}))
	err := w.Next(nil)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "startDate must be in the future", verr.Fields[FieldStartDate])
}

func TestWizardPrevKeepsData(t *testing.T) {
	w := newTestWizard(&fakeSubmitter{})
	fillToOpenShift(t, w, models.ServiceSitting)

	require.NoError(t, w.Prev())
	require.NoError(t, w.Prev())
	require.NoError(t, w.Prev())
	require.NoError(t, w.Prev())
	_, idx := w.CurrentStep()
	assert.Equal(t, 0, idx)

	d := w.Snapshot().Draft
	assert.Equal(t, []string{"pet-1"}, d.Pets)
	assert.Equal(t, []string{"dog"}, d.PetTypes)
	assert.Equal(t, testNow.Add(48*time.Hour), d.StartDate)
}

func TestWizardGoTo(t *testing.T) {
	w := newTestWizard(&fakeSubmitter{})
	require.NoError(t, w.Update(DraftPatch{ServiceType: ptr(models.ServiceSitting)}))

	assert.ErrorIs(t, w.GoTo(StepSchedule), ErrStepNotReachable)
	assert.ErrorIs(t, w.GoTo(StepTrainingType), ErrUnknownStep)

	require.NoError(t, w.Next(nil))
	require.NoError(t, w.Update(DraftPatch{Pets: []string{"pet-1"}, PetTypes: []string{"dog"}}))
	require.NoError(t, w.Next(nil))

	require.NoError(t, w.GoTo(StepServiceType))
	require.NoError(t, w.GoTo(StepPets))
	assert.ErrorIs(t, w.GoTo(StepOpenShift), ErrStepNotReachable)

	step, _ := w.CurrentStep()
	assert.Equal(t, StepPets, step.ID)
}

func TestWizardTrainingDirectPickNeedsCaregiver(t *testing.T) {
	w := newTestWizard(&fakeSubmitter{})
	fillToOpenShift(t, w, models.ServiceTraining)

	require.NoError(t, w.Update(DraftPatch{IsOpenShift: ptr(false)}))
	require.NoError(t, w.Next(nil))
	step, _ := w.CurrentStep()
	require.Equal(t, StepCaregiverSelection, step.ID)

	err := w.Next(nil)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, FieldSelectedCaregiverIDs)
	step, _ = w.CurrentStep()
	assert.Equal(t, StepCaregiverSelection, step.ID)
}

func TestWizardToggleOpenShiftKeepsCommonFields(t *testing.T) {
	w := newTestWizard(&fakeSubmitter{})
	fillToOpenShift(t, w, models.ServiceTraining)

	require.NoError(t, w.Update(DraftPatch{IsOpenShift: ptr(false)}))
	require.NoError(t, w.Next(nil))
	require.NoError(t, w.Update(DraftPatch{SelectedCaregiverIDs: []string{"cg-1"}}))
	require.Len(t, w.Steps(), 7)

	require.NoError(t, w.Update(DraftPatch{IsOpenShift: ptr(true)}))
	assert.Len(t, w.Steps(), 6)
	_, idx := w.CurrentStep()
	assert.Less(t, idx, len(w.Steps()))

	d := w.Snapshot().Draft
	assert.Equal(t, "obedience", d.TrainingTypeID)
	assert.Equal(t, []string{"pet-1"}, d.Pets)
	assert.Equal(t, testNow.Add(48*time.Hour), d.StartDate)
	assert.Empty(t, d.SelectedCaregiverIDs, "open shift bookings carry no caregiver picks")
}

func TestWizardChangingServiceTypeDropsTrainingFields(t *testing.T) {
	w := newTestWizard(&fakeSubmitter{})
	fillToOpenShift(t, w, models.ServiceTraining)

	require.NoError(t, w.Update(DraftPatch{ServiceType: ptr(models.ServiceBoarding)}))
	d := w.Snapshot().Draft
	assert.Empty(t, d.TrainingTypeID)
	assert.Equal(t, []string{"pet-1"}, d.Pets)
	step, _ := w.CurrentStep()
	assert.Equal(t, StepOpenShift, step.ID)
}

func TestWizardSubmitTwiceConcurrently(t *testing.T) {
	sub := &fakeSubmitter{release: make(chan struct{})}
	w := newTestWizard(sub)
	fillToOpenShift(t, w, models.ServiceSitting)
	require.NoError(t, w.Update(DraftPatch{IsOpenShift: ptr(true)}))
	require.NoError(t, w.Next(nil))

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := w.Submit(context.Background())
			results <- err
		}()
	}

	// One caller is parked in the submitter, the other must come straight back.
	assert.Eventually(t, func() bool {
		return sub.calls.Load() == 1 && len(results) == 1
	}, time.Second, 5*time.Millisecond)
	close(sub.release)
	wg.Wait()
	close(results)

	assert.Equal(t, int32(1), sub.calls.Load())
	inFlight := 0
	for err := range results {
		if errors.Is(err, ErrSubmitInFlight) {
			inFlight++
		} else {
			assert.NoError(t, err)
		}
	}
	assert.Equal(t, 1, inFlight)
	assert.Equal(t, models.WizardSubmitted, w.Status())
}

func TestWizardSubmitConflictReturnsToCaregiverSelection(t *testing.T) {
	sub := &fakeSubmitter{err: newSubmissionError(SubmissionConflict, "caregiver is no longer available", nil)}
	w := newTestWizard(sub)
	fillToOpenShift(t, w, models.ServiceSitting)
	require.NoError(t, w.Update(DraftPatch{IsOpenShift: ptr(false)}))
	require.NoError(t, w.Next(nil))
	require.NoError(t, w.Update(DraftPatch{SelectedCaregiverIDs: []string{"cg-1"}}))
	require.NoError(t, w.Next(nil))

	_, err := w.Submit(context.Background())
	var se *SubmissionError
	require.True(t, errors.As(err, &se))
	assert.False(t, se.Retryable())

	step, _ := w.CurrentStep()
	assert.Equal(t, StepCaregiverSelection, step.ID)
	assert.Equal(t, models.WizardEditing, w.Status())
	assert.Equal(t, "caregiver is no longer available", w.Snapshot().FieldErrors[FieldSelectedCaregiverIDs])
	assert.ErrorIs(t, w.GoTo(StepConfirmation), ErrStepNotReachable)
}

func TestWizardSubmitValidationHasNoSideEffects(t *testing.T) {
	sub := &fakeSubmitter{}
	w := newTestWizard(sub)
	require.NoError(t, w.Update(DraftPatch{ServiceType: ptr(models.ServiceGrooming)}))

	_, err := w.Submit(context.Background())
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, FieldPets)
	assert.Contains(t, verr.Fields, FieldStartDate)
	assert.Contains(t, verr.Fields, FieldIsOpenShift)
	assert.Equal(t, int32(0), sub.calls.Load())
	assert.Equal(t, models.WizardEditing, w.Status())
}

func TestWizardCancel(t *testing.T) {
	sub := &fakeSubmitter{}
	w := newTestWizard(sub)
	fillToOpenShift(t, w, models.ServiceSitting)

	require.NoError(t, w.Cancel())
	assert.Equal(t, models.WizardCancelled, w.Status())
	assert.Empty(t, w.Snapshot().Draft.Pets)
	assert.ErrorIs(t, w.Update(DraftPatch{Notes: ptr("late")}), ErrWizardClosed)
	_, err := w.Submit(context.Background())
	assert.ErrorIs(t, err, ErrWizardClosed)
	assert.Equal(t, int32(0), sub.calls.Load())
}

func TestWizardRestoreMidSubmitReopensEditing(t *testing.T) {
	w := newTestWizard(&fakeSubmitter{})
	fillToOpenShift(t, w, models.ServiceSitting)
	snap := w.Snapshot()
	snap.Status = models.WizardSubmitting
	snap.CurrentStepIndex = 42

	restored, err := RestoreWizardController(snap, &fakeSubmitter{}, utils.NewFixedClock(testNow), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, models.WizardEditing, restored.Status())
	_, idx := restored.CurrentStep()
	assert.Equal(t, len(restored.Steps())-1, idx)
	assert.True(t, restored.Snapshot().StepValidation[string(StepSchedule)])
}
