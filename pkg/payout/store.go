package payout

import (
	"context"
	"time"
)

// Store is the persistence contract used by Service.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error

	// FindStatement locates the non-void statement covering a vendor period,
	// reporting ErrStatementNotFound when none exists.
	FindStatement(ctx context.Context, vendorID string, periodStart, periodEnd time.Time) (VendorStatement, error)
	GetStatement(ctx context.Context, statementID string) (VendorStatement, error)
	CreateStatement(ctx context.Context, statement VendorStatement) error
	// ReplaceStatementLines swaps the full line set of a draft statement.
	ReplaceStatementLines(ctx context.Context, statementID string, lines []StatementLine) error
	UpdateStatementTotals(ctx context.Context, statementID string, gross, commission, refunds, net AmountCents, currency string) error
	// UpdateStatementStatus transitions only when the stored status matches
	// from, reporting ErrStatementTransitionDenied otherwise.
	UpdateStatementStatus(ctx context.Context, statementID string, from, to StatementStatus) error

	// ListPayableBookings returns bookings payable in the period (confirmed
	// stays that ended inside it, plus captured-then-cancelled bookings
	// whose cancellation fell inside it) which no other non-void statement
	// already claims. excludeStatementID ignores the statement being
	// regenerated so its own draft lines do not mask its bookings.
	ListPayableBookings(ctx context.Context, vendorID string, periodStart, periodEnd time.Time, excludeStatementID string) ([]PayableBooking, error)

	// ListRefundAdjustments returns, per booking claimed by another
	// non-void statement, succeeded refunds that no statement line has
	// netted yet.
	ListRefundAdjustments(ctx context.Context, vendorID string, excludeStatementID string) ([]RefundAdjustment, error)

	// CreatePayout enforces the one-payout-per-statement uniqueness,
	// reporting ErrPayoutExists on violation.
	CreatePayout(ctx context.Context, record Payout) error
	GetPayout(ctx context.Context, payoutID string) (Payout, error)
	// UpdatePayoutStatus transitions only when the stored status matches
	// from, reporting ErrPayoutTransitionDenied otherwise.
	UpdatePayoutStatus(ctx context.Context, payoutID string, from, to PayoutStatus, failureReason, providerRef string) error
}
