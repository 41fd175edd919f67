package payout

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// AmountCents is an integer currency in cents.
type AmountCents int64

// Int64 returns the raw cents value.
func (amount AmountCents) Int64() int64 {
	return int64(amount)
}

// StatementStatus defines the vendor statement lifecycle.
type StatementStatus string

const (
	StatementStatusDraft     StatementStatus = "draft"
	StatementStatusFinalized StatementStatus = "finalized"
	StatementStatusVoid      StatementStatus = "void"
	StatementStatusPaid      StatementStatus = "paid"
)

// String returns the stored representation.
func (status StatementStatus) String() string {
	return string(status)
}

// ParseStatementStatus validates a stored statement status.
func ParseStatementStatus(raw string) (StatementStatus, error) {
	switch StatementStatus(raw) {
	case StatementStatusDraft, StatementStatusFinalized, StatementStatusVoid, StatementStatusPaid:
		return StatementStatus(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatementStatus, raw)
}

// PayoutStatus defines the disbursement lifecycle.
type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "pending"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusSucceeded  PayoutStatus = "succeeded"
	PayoutStatusFailed     PayoutStatus = "failed"
	PayoutStatusCancelled  PayoutStatus = "cancelled"
)

// String returns the stored representation.
func (status PayoutStatus) String() string {
	return string(status)
}

// ParsePayoutStatus validates a stored payout status.
func ParsePayoutStatus(raw string) (PayoutStatus, error) {
	switch PayoutStatus(raw) {
	case PayoutStatusPending, PayoutStatusProcessing, PayoutStatusSucceeded, PayoutStatusFailed, PayoutStatusCancelled:
		return PayoutStatus(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPayoutStatus, raw)
}

// VendorStatement is one vendor's earnings ledger for a period. Totals are
// regenerable while the statement is a draft and locked at finalization.
type VendorStatement struct {
	ID              string
	VendorID        string
	PeriodStart     time.Time
	PeriodEnd       time.Time
	Status          StatementStatus
	GrossCents      AmountCents
	CommissionCents AmountCents
	RefundCents     AmountCents
	NetPayableCents AmountCents
	Currency        string
	GeneratedAt     time.Time
}

// StatementLine attributes one booking's earnings to a statement.
type StatementLine struct {
	ID              string
	StatementID     string
	BookingID       string
	GrossCents      AmountCents
	CommissionCents AmountCents
	RefundCents     AmountCents
	NetCents        AmountCents
	Metadata        datatypes.JSON
}

// Payout is the disbursement tied 1:1 to a finalized statement.
type Payout struct {
	ID            string
	StatementID   string
	Status        PayoutStatus
	AmountCents   AmountCents
	Currency      string
	Provider      string
	ProviderRef   string
	FailureReason string
	CreatedAt     time.Time
}

// PayableBooking is a booking eligible for a statement line: either a
// confirmed booking whose stay ended inside the period, or a cancelled
// booking with a captured payment whose cancellation fell inside the
// period. Neither may appear in another non-void statement.
type PayableBooking struct {
	BookingID     string
	GrossCents    AmountCents
	CommissionBps int64
	RefundCents   AmountCents
	Currency      string
}

// RefundAdjustment is money refunded on a booking after the statement that
// claimed it locked its lines. The next statement carries the difference as
// a negative line, which in turn makes later deltas zero.
type RefundAdjustment struct {
	BookingID   string
	AmountCents AmountCents
}
