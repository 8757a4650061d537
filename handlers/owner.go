package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// OwnerProfile updates the owner fields the booking workflow relies on.
type OwnerProfile interface {
	UpdateFCMToken(ctx context.Context, ownerID, token string) error
	SetDefaultPaymentMethod(ctx context.Context, ownerID, paymentMethodID string) error
}

// OwnerHandler serves owner device and billing settings.
type OwnerHandler struct {
	Owners OwnerProfile
	Logger *zap.Logger
}

func NewOwnerHandler(owners OwnerProfile, logger *zap.Logger) *OwnerHandler {
	return &OwnerHandler{Owners: owners, Logger: logger}
}

// UpdateDevice handles PUT /api/owners/me/device.
func (h *OwnerHandler) UpdateDevice(c *gin.Context) {
	var input struct {
		FCMToken string `json:"fcmToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}
	if err := h.Owners.UpdateFCMToken(c.Request.Context(), subjectID(c), input.FCMToken); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdatePaymentMethod handles PUT /api/owners/me/payment-method.
func (h *OwnerHandler) UpdatePaymentMethod(c *gin.Context) {
	var input struct {
		PaymentMethodID string `json:"paymentMethodId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}
	if err := h.Owners.SetDefaultPaymentMethod(c.Request.Context(), subjectID(c), input.PaymentMethodID); err != nil {
		respondError(c, err)
		return
	}
	h.Logger.Info("default payment method updated", zap.String("owner_id", subjectID(c)))
	c.Status(http.StatusNoContent)
}
