package httpserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lodgeworks/reserve/pkg/payout"
)

func (server *Server) handleGenerateStatement(ctx *gin.Context) {
	var request struct {
		VendorID    string `json:"vendorId" binding:"required"`
		PeriodStart string `json:"periodStart" binding:"required"`
		PeriodEnd   string `json:"periodEnd" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "vendorId, periodStart, periodEnd are required"))
		return
	}
	periodStart, err := time.Parse(dateLayout, request.PeriodStart)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "periodStart must be YYYY-MM-DD"))
		return
	}
	periodEnd, err := time.Parse(dateLayout, request.PeriodEnd)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "periodEnd must be YYYY-MM-DD"))
		return
	}
	statement, err := server.payouts.GenerateStatement(ctx.Request.Context(), request.VendorID, periodStart, periodEnd)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, statementView(statement))
}

func (server *Server) handleFinalizeStatement(ctx *gin.Context) {
	if err := server.payouts.FinalizeStatement(ctx.Request.Context(), ctx.Param("id")); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": payout.StatementStatusFinalized})
}

func (server *Server) handleVoidStatement(ctx *gin.Context) {
	if err := server.payouts.VoidStatement(ctx.Request.Context(), ctx.Param("id")); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": payout.StatementStatusVoid})
}

func (server *Server) handleCreatePayout(ctx *gin.Context) {
	var request struct {
		StatementID string `json:"statementId" binding:"required"`
		Provider    string `json:"provider"`
	}
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "statementId is required"))
		return
	}
	record, err := server.payouts.CreatePayout(ctx.Request.Context(), request.StatementID, request.Provider)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, payoutView(record))
}

func (server *Server) handleMarkPayoutProcessing(ctx *gin.Context) {
	if err := server.payouts.MarkPayoutProcessing(ctx.Request.Context(), ctx.Param("id")); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": payout.PayoutStatusProcessing})
}

func (server *Server) handleMarkPayoutSucceeded(ctx *gin.Context) {
	var request struct {
		ProviderRef string `json:"providerRef"`
	}
	_ = ctx.ShouldBindJSON(&request)
	if err := server.payouts.MarkPayoutSucceeded(ctx.Request.Context(), ctx.Param("id"), request.ProviderRef); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": payout.PayoutStatusSucceeded})
}

func (server *Server) handleMarkPayoutFailed(ctx *gin.Context) {
	var request struct {
		FailureReason string `json:"failureReason" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "failureReason is required"))
		return
	}
	if err := server.payouts.MarkPayoutFailed(ctx.Request.Context(), ctx.Param("id"), request.FailureReason); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": payout.PayoutStatusFailed})
}

func (server *Server) handleCancelPayout(ctx *gin.Context) {
	if err := server.payouts.CancelPayout(ctx.Request.Context(), ctx.Param("id")); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": payout.PayoutStatusCancelled})
}

func statementView(statement payout.VendorStatement) gin.H {
	return gin.H{
		"id":              statement.ID,
		"vendorId":        statement.VendorID,
		"periodStart":     statement.PeriodStart.Format(dateLayout),
		"periodEnd":       statement.PeriodEnd.Format(dateLayout),
		"status":          statement.Status,
		"grossCents":      statement.GrossCents,
		"commissionCents": statement.CommissionCents,
		"refundCents":     statement.RefundCents,
		"netPayableCents": statement.NetPayableCents,
		"currency":        statement.Currency,
	}
}

func payoutView(record payout.Payout) gin.H {
	return gin.H{
		"id":          record.ID,
		"statementId": record.StatementID,
		"status":      record.Status,
		"amountCents": record.AmountCents,
		"currency":    record.Currency,
		"provider":    record.Provider,
	}
}
