package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lodgeworks/reserve/internal/payments"
	"github.com/lodgeworks/reserve/pkg/booking"
	"github.com/lodgeworks/reserve/pkg/payout"
)

func errorResponse(code string, message string) gin.H {
	return gin.H{"error": gin.H{"code": code, "message": message}}
}

// respondError maps domain errors onto the wire envelope. Unmatched errors
// become opaque 500s so internals never leak.
func respondError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, booking.ErrValidation), errors.Is(err, payout.ErrValidation),
		errors.Is(err, payments.ErrMalformedEvent):
		ctx.JSON(http.StatusBadRequest, errorResponse("validation_failed", err.Error()))
	case errors.Is(err, payments.ErrSignatureInvalid):
		ctx.JSON(http.StatusUnauthorized, errorResponse("signature_invalid", "webhook signature invalid"))
	case errors.Is(err, booking.ErrUnknownProperty):
		ctx.JSON(http.StatusNotFound, errorResponse("property_not_found", "unknown property"))
	case errors.Is(err, booking.ErrUnknownHold):
		ctx.JSON(http.StatusNotFound, errorResponse("hold_not_found", "unknown hold"))
	case errors.Is(err, booking.ErrUnknownBooking), errors.Is(err, payments.ErrRecordNotFound):
		ctx.JSON(http.StatusNotFound, errorResponse("booking_not_found", "unknown booking"))
	case errors.Is(err, payout.ErrStatementNotFound):
		ctx.JSON(http.StatusNotFound, errorResponse("statement_not_found", "unknown statement"))
	case errors.Is(err, payout.ErrPayoutNotFound):
		ctx.JSON(http.StatusNotFound, errorResponse("payout_not_found", "unknown payout"))
	case errors.Is(err, booking.ErrHoldConflict):
		ctx.JSON(http.StatusConflict, errorResponse("dates_unavailable", err.Error()))
	case errors.Is(err, booking.ErrHoldExpired):
		ctx.JSON(http.StatusConflict, errorResponse("hold_expired", "hold expired"))
	case errors.Is(err, booking.ErrHoldClosed):
		ctx.JSON(http.StatusConflict, errorResponse("hold_closed", "hold no longer active"))
	case errors.Is(err, payments.ErrBookingNotPayable):
		ctx.JSON(http.StatusConflict, errorResponse("not_payable", err.Error()))
	case errors.Is(err, payout.ErrStatementAlreadyFinal):
		ctx.JSON(http.StatusConflict, errorResponse("statement_final", err.Error()))
	case errors.Is(err, payout.ErrPayoutExists):
		ctx.JSON(http.StatusConflict, errorResponse("payout_exists", "statement already has a payout"))
	case errors.Is(err, booking.ErrConcurrentModification):
		ctx.JSON(http.StatusConflict, errorResponse("conflict", "concurrent modification, retry"))
	case errors.Is(err, booking.ErrInvalidTransition),
		errors.Is(err, payout.ErrStatementTransitionDenied),
		errors.Is(err, payout.ErrPayoutTransitionDenied),
		errors.Is(err, payout.ErrFailureReasonRequired):
		ctx.JSON(http.StatusUnprocessableEntity, errorResponse("invalid_transition", err.Error()))
	case errors.Is(err, booking.ErrRefundExceedsLimit):
		ctx.JSON(http.StatusUnprocessableEntity, errorResponse("refund_exceeds_limit", err.Error()))
	default:
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal_error", "internal error"))
	}
}
