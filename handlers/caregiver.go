package handlers

import (
	"context"
	"net/http"

	"pawbook/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CaregiverResponder records caregiver answers to booking offers.
type CaregiverResponder interface {
	Respond(ctx context.Context, bookingID, caregiverID string, accept bool, reason string) (*models.BookingRequest, error)
	ListForCaregiver(ctx context.Context, caregiverID string) ([]models.BookingRequest, error)
}

// CaregiverProfile updates caregiver device and availability.
type CaregiverProfile interface {
	UpdateFCMToken(ctx context.Context, caregiverID, token string) error
	SetAvailable(ctx context.Context, caregiverID string, available bool) error
}

// CaregiverHandler serves the caregiver side of matching.
type CaregiverHandler struct {
	Matching CaregiverResponder
	Profile  CaregiverProfile
	Logger   *zap.Logger
}

func NewCaregiverHandler(matching CaregiverResponder, profile CaregiverProfile, logger *zap.Logger) *CaregiverHandler {
	return &CaregiverHandler{Matching: matching, Profile: profile, Logger: logger}
}

// ListOffers handles GET /api/caregivers/bookings.
func (h *CaregiverHandler) ListOffers(c *gin.Context) {
	reqs, err := h.Matching.ListForCaregiver(c.Request.Context(), subjectID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if reqs == nil {
		reqs = []models.BookingRequest{}
	}
	c.JSON(http.StatusOK, gin.H{"bookings": reqs})
}

// AcceptBooking handles POST /api/caregivers/bookings/:id/accept.
func (h *CaregiverHandler) AcceptBooking(c *gin.Context) {
	h.respond(c, true, "")
}

// RejectBooking handles POST /api/caregivers/bookings/:id/reject.
func (h *CaregiverHandler) RejectBooking(c *gin.Context) {
	var input struct {
		Reason string `json:"reason"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
			return
		}
	}
	h.respond(c, false, input.Reason)
}

func (h *CaregiverHandler) respond(c *gin.Context, accept bool, reason string) {
	caregiverID := subjectID(c)
	req, err := h.Matching.Respond(c.Request.Context(), c.Param("id"), caregiverID, accept, reason)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Logger.Info("caregiver responded",
		zap.String("booking_id", req.ID),
		zap.String("caregiver_id", caregiverID),
		zap.Bool("accept", accept),
		zap.String("status", string(req.Status)),
	)
	c.JSON(http.StatusOK, req)
}

// UpdateDevice handles PUT /api/caregivers/me/device.
func (h *CaregiverHandler) UpdateDevice(c *gin.Context) {
	var input struct {
		FCMToken string `json:"fcmToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}
	if err := h.Profile.UpdateFCMToken(c.Request.Context(), subjectID(c), input.FCMToken); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateAvailability handles PUT /api/caregivers/me/availability.
func (h *CaregiverHandler) UpdateAvailability(c *gin.Context) {
	var input struct {
		Available *bool `json:"available" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}
	if err := h.Profile.SetAvailable(c.Request.Context(), subjectID(c), *input.Available); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
