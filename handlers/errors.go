package handlers

import (
	"errors"
	"net/http"

	"pawbook/services/booking"
	"pawbook/services/matching"
	"pawbook/services/payment"
	"pawbook/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError maps workflow errors onto HTTP statuses and stable error codes.
func respondError(c *gin.Context, err error) {
	var (
		ve  *booking.ValidationError
		se  *booking.SubmissionError
		ust *booking.UnsupportedServiceTypeError
		te  *matching.MatchingTimeoutError
		pe  *payment.PaymentError
	)

	switch {
	case errors.As(err, &ve):
		utils.JSONErrorWithCode(c, http.StatusUnprocessableEntity, "validation_failed", "Some fields need attention", ve.Fields)
	case errors.As(err, &se):
		switch se.Kind {
		case booking.SubmissionValidation:
			utils.JSONErrorWithCode(c, http.StatusUnprocessableEntity, "submission_invalid", se.Message, nil)
		case booking.SubmissionConflict:
			utils.JSONErrorWithCode(c, http.StatusConflict, "submission_conflict", se.Message, nil)
		default:
			utils.JSONErrorWithCode(c, http.StatusServiceUnavailable, "submission_unavailable", se.Message, nil)
		}
	case errors.As(err, &ust):
		utils.JSONErrorWithCode(c, http.StatusUnprocessableEntity, "unsupported_service_type", ust.Error(), nil)
	case errors.As(err, &te):
		utils.JSONErrorWithCode(c, http.StatusGone, "matching_expired", te.Error(), nil)
	case errors.As(err, &pe):
		status := http.StatusBadGateway
		switch pe.Kind {
		case payment.ErrorDeclined:
			status = http.StatusPaymentRequired
		case payment.ErrorCancelledByUser:
			status = http.StatusConflict
		case payment.ErrorNetwork:
			status = http.StatusServiceUnavailable
		}
		utils.JSONErrorWithCode(c, status, "payment_"+string(pe.Kind), pe.Error(), nil)

	case errors.Is(err, booking.ErrSubmitInFlight):
		utils.JSONErrorWithCode(c, http.StatusConflict, "submit_in_flight", err.Error(), nil)
	case errors.Is(err, booking.ErrWizardClosed):
		utils.JSONErrorWithCode(c, http.StatusConflict, "wizard_closed", err.Error(), nil)
	case errors.Is(err, booking.ErrStepNotReachable), errors.Is(err, booking.ErrUnknownStep):
		utils.JSONErrorWithCode(c, http.StatusBadRequest, "step_not_reachable", err.Error(), nil)
	case errors.Is(err, booking.ErrSessionNotFound):
		utils.JSONErrorWithCode(c, http.StatusNotFound, "session_not_found", err.Error(), nil)
	case errors.Is(err, booking.ErrNotSessionOwner):
		utils.JSONErrorWithCode(c, http.StatusForbidden, "not_session_owner", err.Error(), nil)

	case errors.Is(err, matching.ErrBookingNotFound):
		utils.JSONErrorWithCode(c, http.StatusNotFound, "booking_not_found", "Booking not found", nil)
	case errors.Is(err, matching.ErrNotQueued):
		utils.JSONErrorWithCode(c, http.StatusForbidden, "not_queued", err.Error(), nil)
	case errors.Is(err, matching.ErrInvalidTransition),
		errors.Is(err, matching.ErrMatchingClosed),
		errors.Is(err, matching.ErrAlreadyResponded):
		utils.JSONErrorWithCode(c, http.StatusConflict, "booking_state_conflict", err.Error(), nil)

	case errors.Is(err, payment.ErrNotPayable):
		utils.JSONErrorWithCode(c, http.StatusConflict, "not_payable", err.Error(), nil)
	case errors.Is(err, payment.ErrNoPendingSheet):
		utils.JSONErrorWithCode(c, http.StatusNotFound, "no_pending_sheet", err.Error(), nil)

	default:
		getLogger(c).Error("unhandled request error", zap.String("path", c.FullPath()), zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred. Please try again later.")
	}
}

func subjectID(c *gin.Context) string {
	return c.GetString("subjectID")
}
