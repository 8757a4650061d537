package booking

import (
	"context"
	"errors"
	"sync"
	"time"

	"pawbook/models"
	"pawbook/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BookingReader fetches a persisted booking.
type BookingReader interface {
	Get(ctx context.Context, bookingID string) (*models.BookingRequest, error)
}

// WizardView is what clients see of a wizard session.
type WizardView struct {
	models.WizardSnapshot
	Steps       []StepSpec             `json:"steps"`
	CurrentStep StepID                 `json:"currentStep"`
	Booking     *models.BookingRequest `json:"booking,omitempty"`
}

type liveWizard struct {
	ctl     *WizardController
	touched time.Time
}

// SessionManager owns the wizard sessions of all owners. Live controllers are cached
// in memory; every change is written through to the store so sessions survive restarts.
type SessionManager struct {
	mu   sync.Mutex
	live map[string]*liveWizard

	store      WizardStore
	submitter  Submitter
	watcher    Watcher
	bookings   BookingReader
	pets       PetDirectory
	caregivers CaregiverDirectory
	ttl        time.Duration
	clock      utils.Clock
	logger     *zap.Logger
}

func NewSessionManager(
	store WizardStore,
	submitter Submitter,
	watcher Watcher,
	bookings BookingReader,
	pets PetDirectory,
	caregivers CaregiverDirectory,
	ttl time.Duration,
	clock utils.Clock,
	logger *zap.Logger,
) *SessionManager {
	return &SessionManager{
		live:       make(map[string]*liveWizard),
		store:      store,
		submitter:  submitter,
		watcher:    watcher,
		bookings:   bookings,
		pets:       pets,
		caregivers: caregivers,
		ttl:        ttl,
		clock:      clock,
		logger:     logger,
	}
}

func (m *SessionManager) Start(ctx context.Context, ownerID string, platform models.Platform) (*WizardView, error) {
	if !platform.Valid() {
		return nil, &ValidationError{Fields: map[string]string{"platform": "must be mobile or web"}}
	}
	w := NewWizardController(uuid.New().String(), ownerID, platform, m.submitter, m.clock, m.logger)

	m.mu.Lock()
	m.sweepLocked()
	m.live[w.ID()] = &liveWizard{ctl: w, touched: m.clock.Now()}
	m.mu.Unlock()

	m.persist(ctx, w)
	m.logger.Info("wizard started", zap.String("wizard_id", w.ID()), zap.String("owner_id", ownerID))
	return m.view(w, nil), nil
}

func (m *SessionManager) Get(ctx context.Context, ownerID, id string) (*WizardView, error) {
	w, err := m.load(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	return m.view(w, nil), nil
}

// Update applies a patch. Pet types are always derived from the owner's pets.
func (m *SessionManager) Update(ctx context.Context, ownerID, id string, patch DraftPatch) (*WizardView, error) {
	w, err := m.load(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	patch.PetTypes = nil
	if patch.Pets != nil {
		types, err := m.petTypesFor(ctx, ownerID, patch.Pets)
		if err != nil {
			return nil, err
		}
		patch.PetTypes = types
	}
	if err := w.Update(patch); err != nil {
		return nil, err
	}
	m.persist(ctx, w)
	return m.view(w, nil), nil
}

func (m *SessionManager) Next(ctx context.Context, ownerID, id string, fields []string) (*WizardView, error) {
	return m.step(ctx, ownerID, id, func(w *WizardController) error { return w.Next(fields) })
}

func (m *SessionManager) Prev(ctx context.Context, ownerID, id string) (*WizardView, error) {
	return m.step(ctx, ownerID, id, (*WizardController).Prev)
}

func (m *SessionManager) GoTo(ctx context.Context, ownerID, id string, step StepID) (*WizardView, error) {
	return m.step(ctx, ownerID, id, func(w *WizardController) error { return w.GoTo(step) })
}

// Submit freezes and posts the draft; on success the booking is handed to the watcher.
func (m *SessionManager) Submit(ctx context.Context, ownerID, id string) (*WizardView, error) {
	w, err := m.load(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	req, err := w.Submit(ctx)
	m.persist(ctx, w)
	if err != nil {
		return m.view(w, nil), err
	}

	if req.Status == "" && m.bookings != nil {
		// restored session: only the booking id survived
		if full, err := m.bookings.Get(ctx, req.ID); err == nil {
			req = full
		}
	}
	if m.watcher != nil && req.Status != "" {
		m.watcher.Watch(ctx, *req)
	}
	return m.view(w, req), nil
}

// Cancel abandons the wizard. Nothing has reached the server, so only the session is removed.
func (m *SessionManager) Cancel(ctx context.Context, ownerID, id string) error {
	w, err := m.load(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := w.Cancel(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.live, id)
	m.mu.Unlock()
	if err := m.store.Delete(ctx, id); err != nil {
		m.logger.Warn("failed to delete wizard snapshot", zap.String("wizard_id", id), zap.Error(err))
	}
	return nil
}

// PetOptions lists the pets the owner can pick.
func (m *SessionManager) PetOptions(ctx context.Context, ownerID string) ([]models.Pet, error) {
	return m.pets.ListPetsForOwner(ctx, ownerID)
}

// CaregiverOptions lists caregivers currently available for the service type.
func (m *SessionManager) CaregiverOptions(ctx context.Context, serviceType models.ServiceType) ([]models.CaregiverOption, error) {
	if !serviceType.Valid() {
		return nil, &UnsupportedServiceTypeError{ServiceType: serviceType}
	}
	all, err := m.caregivers.ListCaregiverOptionsForServiceType(ctx, serviceType)
	if err != nil {
		return nil, err
	}
	out := make([]models.CaregiverOption, 0, len(all))
	for _, c := range all {
		if c.Available {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *SessionManager) step(ctx context.Context, ownerID, id string, fn func(*WizardController) error) (*WizardView, error) {
	w, err := m.load(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if err := fn(w); err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			m.persist(ctx, w)
		}
		return m.view(w, nil), err
	}
	m.persist(ctx, w)
	return m.view(w, nil), nil
}

func (m *SessionManager) load(ctx context.Context, ownerID, id string) (*WizardController, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	if lw, ok := m.live[id]; ok {
		if now.Sub(lw.touched) <= m.ttl {
			if lw.ctl.Snapshot().Draft.OwnerID != ownerID {
				return nil, ErrNotSessionOwner
			}
			lw.touched = now
			return lw.ctl, nil
		}
		delete(m.live, id)
	}

	snap, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if snap.Draft.OwnerID != ownerID {
		return nil, ErrNotSessionOwner
	}
	w, err := RestoreWizardController(*snap, m.submitter, m.clock, m.logger)
	if err != nil {
		return nil, err
	}
	m.live[id] = &liveWizard{ctl: w, touched: now}
	return w, nil
}

// sweepLocked drops controllers idle for longer than the session TTL.
func (m *SessionManager) sweepLocked() {
	now := m.clock.Now()
	for id, lw := range m.live {
		if now.Sub(lw.touched) > m.ttl && lw.ctl.Status() != models.WizardSubmitting {
			delete(m.live, id)
		}
	}
}

func (m *SessionManager) persist(ctx context.Context, w *WizardController) {
	if err := m.store.Save(ctx, w.Snapshot(), m.ttl); err != nil {
		m.logger.Warn("failed to persist wizard snapshot", zap.String("wizard_id", w.ID()), zap.Error(err))
	}
}

func (m *SessionManager) petTypesFor(ctx context.Context, ownerID string, petIDs []string) ([]string, error) {
	if len(petIDs) == 0 {
		return []string{}, nil
	}
	owned, err := m.pets.ListPetsForOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Pet, len(owned))
	for _, p := range owned {
		byID[p.ID] = p
	}
	var types []string
	for _, id := range petIDs {
		p, ok := byID[id]
		if !ok {
			return nil, &ValidationError{Fields: map[string]string{FieldPets: "unknown pet " + id}}
		}
		types = append(types, p.TypeID)
	}
	return models.UniqueStrings(types), nil
}

func (m *SessionManager) view(w *WizardController, req *models.BookingRequest) *WizardView {
	step, _ := w.CurrentStep()
	return &WizardView{
		WizardSnapshot: w.Snapshot(),
		Steps:          w.Steps(),
		CurrentStep:    step.ID,
		Booking:        req,
	}
}
