package booking

import (
	"context"
	"time"
)

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing reservation operation.
type OperationLog struct {
	Operation  string
	PropertyID string
	HoldID     string
	BookingID  string
	Actor      string
	Amount     AmountCents
	Status     string
	Error      error
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithHoldTTL overrides how long a hold protects its date range.
func WithHoldTTL(ttl time.Duration) ServiceOption {
	return func(service *Service) {
		if ttl > 0 {
			service.holdTTL = ttl
		}
	}
}

// WithPaymentWindow overrides how long a pending booking waits for payment.
func WithPaymentWindow(window time.Duration) ServiceOption {
	return func(service *Service) {
		if window > 0 {
			service.paymentWindow = window
		}
	}
}
