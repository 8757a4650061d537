package handlers

import (
	"context"
	"net/http"

	"pawbook/models"
	"pawbook/services/payment"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BookingQueries reads submitted bookings.
type BookingQueries interface {
	Get(ctx context.Context, bookingID string) (*models.BookingRequest, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.BookingRequest, error)
}

// PaymentStarter starts captures and reports their attempts.
type PaymentStarter interface {
	Start(ctx context.Context, req models.BookingRequest, billing models.BillingContext) (*models.PaymentAttempt, error)
	Attempts(bookingID string) []models.PaymentAttempt
}

// BillingLookup resolves the owner's default billing context.
type BillingLookup interface {
	BillingFor(ctx context.Context, req models.BookingRequest) (models.BillingContext, error)
}

// SheetCallbacks accepts results reported by the mobile payment sheet.
type SheetCallbacks interface {
	Deliver(bookingID, intentID string, res payment.SheetResult) error
}

// BookingHandler serves submitted bookings and their payment.
type BookingHandler struct {
	Bookings BookingQueries
	Payments PaymentStarter
	Billing  BillingLookup
	Sheets   SheetCallbacks
	Logger   *zap.Logger
}

func NewBookingHandler(bookings BookingQueries, payments PaymentStarter, billing BillingLookup, sheets SheetCallbacks, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{
		Bookings: bookings,
		Payments: payments,
		Billing:  billing,
		Sheets:   sheets,
		Logger:   logger,
	}
}

// ListBookings handles GET /api/bookings.
func (h *BookingHandler) ListBookings(c *gin.Context) {
	reqs, err := h.Bookings.ListByOwner(c.Request.Context(), subjectID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if reqs == nil {
		reqs = []models.BookingRequest{}
	}
	c.JSON(http.StatusOK, gin.H{"bookings": reqs})
}

// GetBooking handles GET /api/bookings/:id.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	req, ok := h.ownedBooking(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, req)
}

// CapturePayment handles POST /api/bookings/:id/capture. It starts a new attempt, or returns the
// pending one, and answers before confirmation finishes; clients poll the payments endpoint.
func (h *BookingHandler) CapturePayment(c *gin.Context) {
	var input struct {
		PaymentMethodID string `json:"paymentMethodId"`
		CardToken       string `json:"cardToken"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
			return
		}
	}

	req, ok := h.ownedBooking(c)
	if !ok {
		return
	}
	billing, err := h.Billing.BillingFor(c.Request.Context(), *req)
	if err != nil {
		respondError(c, err)
		return
	}
	if input.PaymentMethodID != "" {
		billing.PaymentMethodID = input.PaymentMethodID
		billing.CardToken = ""
	} else if input.CardToken != "" {
		billing.PaymentMethodID = ""
		billing.CardToken = input.CardToken
	}

	attempt, err := h.Payments.Start(c.Request.Context(), *req, billing)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Logger.Info("capture requested",
		zap.String("booking_id", req.ID),
		zap.Int("attempt", attempt.AttemptNumber),
		zap.String("outcome", string(attempt.Outcome)),
	)
	c.JSON(http.StatusAccepted, attempt)
}

// ListPayments handles GET /api/bookings/:id/payments.
func (h *BookingHandler) ListPayments(c *gin.Context) {
	req, ok := h.ownedBooking(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempts": h.Payments.Attempts(req.ID)})
}

// PaymentSheetResult handles POST /api/bookings/:id/payment-sheet, sent by the mobile app.
func (h *BookingHandler) PaymentSheetResult(c *gin.Context) {
	var input struct {
		PaymentIntentID string               `json:"paymentIntentId" binding:"required"`
		Outcome         payment.SheetOutcome `json:"outcome" binding:"required"`
		ErrorCode       string               `json:"errorCode"`
		Message         string               `json:"message"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}
	req, ok := h.ownedBooking(c)
	if !ok {
		return
	}
	res := payment.SheetResult{Outcome: input.Outcome, ErrorCode: input.ErrorCode, Message: input.Message}
	if err := h.Sheets.Deliver(req.ID, input.PaymentIntentID, res); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

func (h *BookingHandler) ownedBooking(c *gin.Context) (*models.BookingRequest, bool) {
	req, err := h.Bookings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if req.OwnerID != subjectID(c) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Booking not found", "code": "booking_not_found"})
		return nil, false
	}
	return req, true
}
