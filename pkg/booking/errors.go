package booking

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Domain-level error values returned by the reservation engine.
var (
	ErrValidation             = errors.New("validation failed")
	ErrHoldConflict           = errors.New("dates unavailable")
	ErrHoldExpired            = errors.New("hold expired")
	ErrHoldClosed             = errors.New("hold closed")
	ErrUnknownProperty        = errors.New("unknown property")
	ErrUnknownHold            = errors.New("unknown hold")
	ErrUnknownBooking         = errors.New("unknown booking")
	ErrInvalidTransition      = errors.New("invalid transition")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrPaymentWindowElapsed   = errors.New("payment window elapsed")
	ErrCancellationExists     = errors.New("cancellation record already exists")
	ErrRefundExceedsLimit     = errors.New("refund exceeds refundable amount")
	ErrInvalidHoldStatus      = errors.New("invalid hold status")
	ErrInvalidBookingStatus   = errors.New("invalid booking status")
	ErrInvalidPolicy          = errors.New("invalid cancellation policy")
	ErrInvalidServiceConfig   = errors.New("invalid service config")
)

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}

// ConflictError reports which occupied ranges blocked a reserve call.
type ConflictError struct {
	PropertyID string
	Conflicts  []DateRange
}

// Error lists the conflicting ranges so callers can surface them.
func (conflictError *ConflictError) Error() string {
	ranges := make([]string, 0, len(conflictError.Conflicts))
	for _, conflict := range conflictError.Conflicts {
		ranges = append(ranges, fmt.Sprintf("%s..%s",
			conflict.Start.Format(time.DateOnly), conflict.End.Format(time.DateOnly)))
	}
	return fmt.Sprintf("dates unavailable for property %s: %s", conflictError.PropertyID, strings.Join(ranges, ", "))
}

// Is matches the ErrHoldConflict sentinel.
func (conflictError *ConflictError) Is(target error) bool {
	return target == ErrHoldConflict
}
