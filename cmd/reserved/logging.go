package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/lodgeworks/reserve/pkg/booking"
)

// zapOperationLogger bridges booking operation callbacks onto zap.
type zapOperationLogger struct {
	logger *zap.Logger
}

func newZapOperationLogger(logger *zap.Logger) *zapOperationLogger {
	return &zapOperationLogger{logger: logger}
}

func (adapter *zapOperationLogger) LogOperation(_ context.Context, entry booking.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
	}
	if entry.PropertyID != "" {
		fields = append(fields, zap.String("property_id", entry.PropertyID))
	}
	if entry.HoldID != "" {
		fields = append(fields, zap.String("hold_id", entry.HoldID))
	}
	if entry.BookingID != "" {
		fields = append(fields, zap.String("booking_id", entry.BookingID))
	}
	if entry.Actor != "" {
		fields = append(fields, zap.String("actor", entry.Actor))
	}
	if entry.Amount != 0 {
		fields = append(fields, zap.Int64("amount_cents", entry.Amount.Int64()))
	}
	if entry.Error != nil {
		fields = append(fields, zap.Error(entry.Error))
		adapter.logger.Warn("reservation operation failed", fields...)
		return
	}
	adapter.logger.Info("reservation operation", fields...)
}
