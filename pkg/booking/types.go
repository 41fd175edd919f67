package booking

import (
	"fmt"
	"time"
)

// AmountCents is an integer currency in cents.
type AmountCents int64

// Int64 returns the raw cents value.
func (amount AmountCents) Int64() int64 {
	return int64(amount)
}

// HoldStatus defines the hold lifecycle.
type HoldStatus string

const (
	HoldStatusActive    HoldStatus = "active"
	HoldStatusConverted HoldStatus = "converted"
	HoldStatusExpired   HoldStatus = "expired"
	HoldStatusReleased  HoldStatus = "released"
)

// String returns the stored representation.
func (status HoldStatus) String() string {
	return string(status)
}

// ParseHoldStatus validates a stored hold status.
func ParseHoldStatus(raw string) (HoldStatus, error) {
	switch HoldStatus(raw) {
	case HoldStatusActive, HoldStatusConverted, HoldStatusExpired, HoldStatusReleased:
		return HoldStatus(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidHoldStatus, raw)
}

// BookingStatus defines the booking lifecycle.
type BookingStatus string

const (
	BookingStatusPendingPayment BookingStatus = "pending_payment"
	BookingStatusConfirmed      BookingStatus = "confirmed"
	BookingStatusCancelled      BookingStatus = "cancelled"
	BookingStatusExpired        BookingStatus = "expired"
)

// String returns the stored representation.
func (status BookingStatus) String() string {
	return string(status)
}

// ParseBookingStatus validates a stored booking status.
func ParseBookingStatus(raw string) (BookingStatus, error) {
	switch BookingStatus(raw) {
	case BookingStatusPendingPayment, BookingStatusConfirmed, BookingStatusCancelled, BookingStatusExpired:
		return BookingStatus(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidBookingStatus, raw)
}

// AvailabilityKind enumerates the event kinds that occupy a date range.
type AvailabilityKind string

const (
	AvailabilityKindBooking AvailabilityKind = "booking"
	AvailabilityKindHold    AvailabilityKind = "hold"
	AvailabilityKindBlocked AvailabilityKind = "blocked"
)

// String returns the stored representation.
func (kind AvailabilityKind) String() string {
	return string(kind)
}

// CancelActor identifies who initiated a cancellation.
type CancelActor string

const (
	CancelActorCustomer      CancelActor = "customer"
	CancelActorAdminOverride CancelActor = "admin_override"
)

// CancelMode selects whether policy windows are enforced.
type CancelMode string

const (
	CancelModeSoft CancelMode = "soft"
	CancelModeHard CancelMode = "hard"
)

// RefundStatus defines the refund lifecycle.
type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusSucceeded RefundStatus = "succeeded"
	RefundStatusFailed    RefundStatus = "failed"
)

// Property carries the pricing and policy configuration the engine reads.
// CRUD over properties happens elsewhere; this package only consumes it.
type Property struct {
	ID               string
	VendorID         string
	Currency         string
	NightlyRateCents AmountCents
	CleaningFeeCents AmountCents
	ServiceFeeBps    int64
	TaxBps           int64
	MinNights        int
	MaxNights        int
	MaxGuests        int
	CommissionBps    int64
	Policy           CancellationPolicy
}

// RateOverride adjusts the nightly rate for a single calendar day, additively.
type RateOverride struct {
	PropertyID string
	Date       time.Time
	DeltaCents AmountCents
}

// AvailabilityEvent is one occupied date range on a property calendar.
// Intervals are half-open [StartDate, EndDate). Rows whose ExpiresAt has
// passed are invisible to overlap checks; confirmation clears ExpiresAt.
type AvailabilityEvent struct {
	ID         string
	PropertyID string
	Kind       AvailabilityKind
	StartDate  time.Time
	EndDate    time.Time
	RefID      string
	ExpiresAt  *time.Time
}

// Hold is a short-lived exclusive reservation of a date range prior to payment.
type Hold struct {
	ID         string
	PropertyID string
	CheckIn    time.Time
	CheckOut   time.Time
	Guests     int
	ExpiresAt  time.Time
	Status     HoldStatus
	CreatedAt  time.Time
}

// Booking is a customer's reservation once a hold has been converted.
// Version is the optimistic-concurrency counter; every status transition
// is a compare-and-swap on (status, version).
type Booking struct {
	ID         string
	PropertyID string
	CustomerID string
	VendorID   string
	CheckIn    time.Time
	CheckOut   time.Time
	Guests     int
	TotalCents AmountCents
	Currency   string
	Status     BookingStatus
	ExpiresAt  time.Time
	Version    int64
	CreatedAt  time.Time
}

// CancellationRecord is written exactly once per booking and never updated.
type CancellationRecord struct {
	BookingID       string
	Actor           CancelActor
	Mode            CancelMode
	Reason          string
	PenaltyCents    AmountCents
	RefundableCents AmountCents
	CancelledAt     time.Time
	Notes           string
}

// RefundRecord tracks money returned to the customer after cancellation.
type RefundRecord struct {
	ID                string
	BookingID         string
	AmountCents       AmountCents
	Reason            string
	Status            RefundStatus
	Provider          string
	ProviderRefundRef string
	CreatedAt         time.Time
}

// DateRange is a half-open [Start, End) calendar interval.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// NormalizeDate truncates a time to midnight UTC.
func NormalizeDate(value time.Time) time.Time {
	utc := value.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
}

// NightsBetween counts calendar nights in [checkIn, checkOut).
func NightsBetween(checkIn, checkOut time.Time) int {
	return int(NormalizeDate(checkOut).Sub(NormalizeDate(checkIn)) / (24 * time.Hour))
}
