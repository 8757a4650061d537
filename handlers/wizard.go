package handlers

import (
	"context"
	"errors"
	"net/http"

	"pawbook/models"
	"pawbook/services/booking"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WizardSessions is the session API the wizard endpoints drive.
type WizardSessions interface {
	Start(ctx context.Context, ownerID string, platform models.Platform) (*booking.WizardView, error)
	Get(ctx context.Context, ownerID, id string) (*booking.WizardView, error)
	Update(ctx context.Context, ownerID, id string, patch booking.DraftPatch) (*booking.WizardView, error)
	Next(ctx context.Context, ownerID, id string, fields []string) (*booking.WizardView, error)
	Prev(ctx context.Context, ownerID, id string) (*booking.WizardView, error)
	GoTo(ctx context.Context, ownerID, id string, step booking.StepID) (*booking.WizardView, error)
	Submit(ctx context.Context, ownerID, id string) (*booking.WizardView, error)
	Cancel(ctx context.Context, ownerID, id string) error
	PetOptions(ctx context.Context, ownerID string) ([]models.Pet, error)
	CaregiverOptions(ctx context.Context, serviceType models.ServiceType) ([]models.CaregiverOption, error)
}

// WizardHandler serves the owner-facing booking wizard.
type WizardHandler struct {
	Sessions WizardSessions
	Logger   *zap.Logger
}

func NewWizardHandler(sessions WizardSessions, logger *zap.Logger) *WizardHandler {
	return &WizardHandler{Sessions: sessions, Logger: logger}
}

// StartWizard handles POST /api/bookings/wizard.
func (h *WizardHandler) StartWizard(c *gin.Context) {
	var input struct {
		Platform models.Platform `json:"platform" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}
	view, err := h.Sessions.Start(c.Request.Context(), subjectID(c), input.Platform)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// GetWizard handles GET /api/bookings/wizard/:id.
func (h *WizardHandler) GetWizard(c *gin.Context) {
	view, err := h.Sessions.Get(c.Request.Context(), subjectID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// UpdateWizard handles PATCH /api/bookings/wizard/:id.
func (h *WizardHandler) UpdateWizard(c *gin.Context) {
	var patch booking.DraftPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}
	view, err := h.Sessions.Update(c.Request.Context(), subjectID(c), c.Param("id"), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// NextStep handles POST /api/bookings/wizard/:id/next. The body may list the fields the
// current screen shows; an empty body validates every field of the step.
func (h *WizardHandler) NextStep(c *gin.Context) {
	var input struct {
		Fields []string `json:"fields"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
			return
		}
	}
	view, err := h.Sessions.Next(c.Request.Context(), subjectID(c), c.Param("id"), input.Fields)
	h.respondView(c, view, err)
}

// PrevStep handles POST /api/bookings/wizard/:id/prev.
func (h *WizardHandler) PrevStep(c *gin.Context) {
	view, err := h.Sessions.Prev(c.Request.Context(), subjectID(c), c.Param("id"))
	h.respondView(c, view, err)
}

// GoToStep handles POST /api/bookings/wizard/:id/goto.
func (h *WizardHandler) GoToStep(c *gin.Context) {
	var input struct {
		Step booking.StepID `json:"step" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}
	view, err := h.Sessions.GoTo(c.Request.Context(), subjectID(c), c.Param("id"), input.Step)
	h.respondView(c, view, err)
}

// SubmitWizard handles POST /api/bookings/wizard/:id/submit.
func (h *WizardHandler) SubmitWizard(c *gin.Context) {
	view, err := h.Sessions.Submit(c.Request.Context(), subjectID(c), c.Param("id"))
	if err != nil {
		h.Logger.Info("wizard submit refused", zap.String("wizard_id", c.Param("id")), zap.Error(err))
		h.respondView(c, view, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// CancelWizard handles DELETE /api/bookings/wizard/:id.
func (h *WizardHandler) CancelWizard(c *gin.Context) {
	if err := h.Sessions.Cancel(c.Request.Context(), subjectID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PetOptions handles GET /api/bookings/options/pets.
func (h *WizardHandler) PetOptions(c *gin.Context) {
	pets, err := h.Sessions.PetOptions(c.Request.Context(), subjectID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pets": pets})
}

// CaregiverOptions handles GET /api/bookings/options/caregivers?serviceType=.
func (h *WizardHandler) CaregiverOptions(c *gin.Context) {
	st := models.ServiceType(c.Query("serviceType"))
	caregivers, err := h.Sessions.CaregiverOptions(c.Request.Context(), st)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"caregivers": caregivers})
}

// ServiceTypes handles GET /api/bookings/options/services.
func (h *WizardHandler) ServiceTypes(c *gin.Context) {
	type serviceOption struct {
		ServiceType models.ServiceType `json:"serviceType"`
		Price       booking.PriceRange `json:"price"`
	}
	out := make([]serviceOption, 0, len(models.ServiceTypes))
	for _, st := range models.ServiceTypes {
		pr, ok := booking.PriceRangeFor(st)
		if !ok {
			continue
		}
		out = append(out, serviceOption{ServiceType: st, Price: pr})
	}
	c.JSON(http.StatusOK, gin.H{"services": out})
}

// respondView returns the wizard state alongside step-level errors so clients can re-render.
func (h *WizardHandler) respondView(c *gin.Context, view *booking.WizardView, err error) {
	if err == nil {
		c.JSON(http.StatusOK, view)
		return
	}
	var ve *booking.ValidationError
	if view != nil && errors.As(err, &ve) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"message": "Some fields need attention",
			"code":    "validation_failed",
			"fields":  ve.Fields,
			"wizard":  view,
		})
		return
	}
	respondError(c, err)
}
