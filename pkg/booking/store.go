package booking

import (
	"context"
	"time"
)

// Store is the persistence contract used by Service. Every mutation to the
// availability calendar happens through these methods, inside the transaction
// of the state change that justifies it.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error

	GetProperty(ctx context.Context, propertyID string) (Property, error)
	// GetPropertyForUpdate locks the property row so concurrent reserve
	// calls for the same property serialize on the overlap check.
	GetPropertyForUpdate(ctx context.Context, propertyID string) (Property, error)
	ListRateOverrides(ctx context.Context, propertyID string, from, to time.Time) ([]RateOverride, error)

	// ListBlockingEvents returns booking/hold/blocked events overlapping
	// [start, end), excluding rows whose ExpiresAt has passed.
	ListBlockingEvents(ctx context.Context, propertyID string, start, end, now time.Time) ([]AvailabilityEvent, error)
	CreateAvailabilityEvent(ctx context.Context, event AvailabilityEvent) error
	// PromoteHoldEvent upgrades a HOLD event to BOOKING, re-pointing it at
	// the booking and extending its expiry to the payment window.
	PromoteHoldEvent(ctx context.Context, holdID, bookingID string, expiresAt time.Time) error
	ClearEventExpiry(ctx context.Context, refID string) error
	DeleteAvailabilityEvent(ctx context.Context, refID string) error

	CreateHold(ctx context.Context, hold Hold) error
	GetHold(ctx context.Context, holdID string) (Hold, error)
	// UpdateHoldStatus transitions only when the stored status matches from,
	// reporting ErrHoldClosed otherwise.
	UpdateHoldStatus(ctx context.Context, holdID string, from, to HoldStatus) error
	ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]Hold, error)

	CreateBooking(ctx context.Context, record Booking) error
	GetBooking(ctx context.Context, bookingID string) (Booking, error)
	// UpdateBookingStatus is a compare-and-swap on (status, version); the
	// stored version increments on success and a stale read reports
	// ErrConcurrentModification.
	UpdateBookingStatus(ctx context.Context, bookingID string, from BookingStatus, fromVersion int64, to BookingStatus) error
	ListExpiredPendingBookings(ctx context.Context, now time.Time, limit int) ([]Booking, error)

	CreateCancellationRecord(ctx context.Context, record CancellationRecord) error
	GetCancellationRecord(ctx context.Context, bookingID string) (CancellationRecord, error)

	CreateRefund(ctx context.Context, record RefundRecord) error
	SumRefunds(ctx context.Context, bookingID string) (AmountCents, error)
}
