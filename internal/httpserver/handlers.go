package httpserver

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lodgeworks/reserve/internal/payments"
	"github.com/lodgeworks/reserve/pkg/booking"
)

const dateLayout = time.DateOnly

type stayRequest struct {
	PropertyID string `json:"propertyId" binding:"required"`
	CheckIn    string `json:"checkIn" binding:"required"`
	CheckOut   string `json:"checkOut" binding:"required"`
	Guests     int    `json:"guests" binding:"required"`
}

func (request stayRequest) dates() (time.Time, time.Time, error) {
	checkIn, err := time.Parse(dateLayout, request.CheckIn)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	checkOut, err := time.Parse(dateLayout, request.CheckOut)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return checkIn, checkOut, nil
}

func (server *Server) handleQuote(ctx *gin.Context) {
	var request stayRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	checkIn, checkOut, err := request.dates()
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "dates must be YYYY-MM-DD"))
		return
	}
	quote, err := server.bookings.Quote(ctx.Request.Context(), request.PropertyID, checkIn, checkOut, request.Guests)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"nights":           quote.Nights,
		"baseCents":        quote.BaseCents,
		"cleaningFeeCents": quote.CleaningFeeCents,
		"serviceFeeCents":  quote.ServiceFeeCents,
		"taxCents":         quote.TaxCents,
		"totalCents":       quote.TotalCents,
		"currency":         quote.Currency,
	})
}

func (server *Server) handleReserve(ctx *gin.Context) {
	var request stayRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	checkIn, checkOut, err := request.dates()
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "dates must be YYYY-MM-DD"))
		return
	}
	hold, err := server.bookings.Reserve(ctx.Request.Context(), request.PropertyID, checkIn, checkOut, request.Guests)
	if err != nil {
		var conflict *booking.ConflictError
		if errors.As(err, &conflict) {
			reasons := make([]gin.H, 0, len(conflict.Conflicts))
			for _, blocked := range conflict.Conflicts {
				reasons = append(reasons, gin.H{
					"start": blocked.Start.Format(dateLayout),
					"end":   blocked.End.Format(dateLayout),
				})
			}
			ctx.JSON(http.StatusConflict, gin.H{"canReserve": false, "reasons": reasons})
			return
		}
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"canReserve": true,
		"hold": gin.H{
			"id":        hold.ID,
			"expiresAt": hold.ExpiresAt.UTC().Format(time.RFC3339),
		},
	})
}

func (server *Server) handleConvertHold(ctx *gin.Context) {
	var request struct {
		CustomerID string `json:"customerId" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "customerId is required"))
		return
	}
	record, err := server.bookings.ConvertHold(ctx.Request.Context(), ctx.Param("id"), request.CustomerID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, bookingView(record))
}

func (server *Server) handleGetBooking(ctx *gin.Context) {
	record, err := server.bookings.GetBooking(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, bookingView(record))
}

func (server *Server) handleAuthorizePayment(ctx *gin.Context) {
	var request struct {
		Provider string `json:"provider"`
	}
	if err := ctx.ShouldBindJSON(&request); err != nil && !errors.Is(err, io.EOF) {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	result, err := server.adapter.Initiate(ctx.Request.Context(), ctx.Param("id"), request.Provider)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"redirectUrl": result.RedirectURL,
		"providerRef": result.ProviderRef,
	})
}

func (server *Server) handleCancelBooking(ctx *gin.Context) {
	var request struct {
		Reason string `json:"reason"`
	}
	if err := ctx.ShouldBindJSON(&request); err != nil && !errors.Is(err, io.EOF) {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	result, err := server.bookings.Cancel(ctx.Request.Context(), booking.CancelInput{
		BookingID: ctx.Param("id"),
		Actor:     booking.CancelActorCustomer,
		Mode:      booking.CancelModeSoft,
		Reason:    request.Reason,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, cancelView(result))
}

func (server *Server) handlePaymentWebhook(ctx *gin.Context) {
	rawBody, err := io.ReadAll(ctx.Request.Body)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "unreadable body"))
		return
	}
	outcome, err := server.adapter.HandleWebhook(ctx.Request.Context(), rawBody, ctx.GetHeader("X-Webhook-Signature"))
	switch {
	case err == nil:
	case errors.Is(err, payments.ErrSignatureInvalid),
		errors.Is(err, payments.ErrMalformedEvent),
		errors.Is(err, payments.ErrRecordNotFound):
		respondError(ctx, err)
		return
	default:
		// Anything else must come back 5xx so the provider keeps retrying
		// until the event is durably recorded.
		server.logger.Error("webhook processing failed", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal_error", "internal error"))
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"eventId":   outcome.EventID,
		"duplicate": outcome.Duplicate,
		"confirmed": outcome.Confirmed,
	})
}

func (server *Server) handleForceCancel(ctx *gin.Context) {
	var request struct {
		Reason string `json:"reason"`
		Notes  string `json:"notes"`
	}
	if err := ctx.ShouldBindJSON(&request); err != nil && !errors.Is(err, io.EOF) {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	result, err := server.bookings.Cancel(ctx.Request.Context(), booking.CancelInput{
		BookingID: ctx.Param("id"),
		Actor:     booking.CancelActorAdminOverride,
		Mode:      booking.CancelModeHard,
		Reason:    request.Reason,
		Notes:     request.Notes,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, cancelView(result))
}

func (server *Server) handleCreateRefund(ctx *gin.Context) {
	var request struct {
		AmountCents int64  `json:"amountCents" binding:"required"`
		Reason      string `json:"reason"`
		Provider    string `json:"provider"`
	}
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "amountCents is required"))
		return
	}
	refund, err := server.bookings.CreateRefund(ctx.Request.Context(), ctx.Param("id"),
		booking.AmountCents(request.AmountCents), request.Reason, request.Provider)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{
		"id":          refund.ID,
		"bookingId":   refund.BookingID,
		"amountCents": refund.AmountCents,
		"status":      refund.Status,
	})
}

func bookingView(record booking.Booking) gin.H {
	return gin.H{
		"id":         record.ID,
		"propertyId": record.PropertyID,
		"customerId": record.CustomerID,
		"checkIn":    record.CheckIn.Format(dateLayout),
		"checkOut":   record.CheckOut.Format(dateLayout),
		"guests":     record.Guests,
		"totalCents": record.TotalCents,
		"currency":   record.Currency,
		"status":     record.Status,
		"expiresAt":  record.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

func cancelView(result booking.CancelResult) gin.H {
	return gin.H{
		"status":           result.Status,
		"alreadyCancelled": result.AlreadyCancelled,
		"penaltyCents":     result.Record.PenaltyCents,
		"refundableCents":  result.Record.RefundableCents,
	}
}
