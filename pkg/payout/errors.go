package payout

import "errors"

// Domain-level error values returned by the statement and payout ledger.
var (
	ErrValidation                = errors.New("validation failed")
	ErrStatementNotFound         = errors.New("statement not found")
	ErrStatementAlreadyFinal     = errors.New("statement already finalized")
	ErrStatementTransitionDenied = errors.New("statement transition denied")
	ErrPayoutNotFound            = errors.New("payout not found")
	ErrPayoutExists              = errors.New("payout already exists for statement")
	ErrPayoutTransitionDenied    = errors.New("payout transition denied")
	ErrFailureReasonRequired     = errors.New("failure reason required")
	ErrInvalidStatementStatus    = errors.New("invalid statement status")
	ErrInvalidPayoutStatus       = errors.New("invalid payout status")
	ErrInvalidServiceConfig      = errors.New("invalid service config")
)
