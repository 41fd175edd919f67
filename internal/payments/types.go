package payments

import (
	"context"
	"time"

	"gorm.io/datatypes"

	"github.com/lodgeworks/reserve/pkg/booking"
)

// RecordStatus tracks where a payment attempt stands.
type RecordStatus string

const (
	RecordStatusInitiated      RecordStatus = "initiated"
	RecordStatusCaptured       RecordStatus = "captured"
	RecordStatusFailed         RecordStatus = "failed"
	RecordStatusAmountMismatch RecordStatus = "amount_mismatch"
)

// Record is the per-booking payment attempt at the provider.
type Record struct {
	ID          string
	BookingID   string
	Provider    string
	ProviderRef string
	Status      RecordStatus
	AmountCents int64
	Currency    string
	CreatedAt   time.Time
}

// Event is one provider-delivered webhook event. ProviderEventID scopes
// duplicate detection; replays of the same id are no-ops.
type Event struct {
	ID              string
	PaymentRecordID string
	ProviderEventID string
	Type            string
	AmountCents     int64
	Currency        string
	Payload         datatypes.JSON
	ReceivedAt      time.Time
}

// Provider webhook event types.
const (
	EventTypeCaptured = "payment.captured"
	EventTypeFailed   = "payment.failed"
)

// Store is the persistence contract used by the adapter.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	GetRecordByBooking(ctx context.Context, bookingID string) (Record, error)
	CreateRecord(ctx context.Context, record Record) error
	UpdateRecordStatus(ctx context.Context, recordID string, status RecordStatus) error
	// InsertEvent enforces uniqueness on (payment_record_id,
	// provider_event_id), reporting ErrDuplicateEvent on replay.
	InsertEvent(ctx context.Context, event Event) error
}

// BookingConfirmer is the slice of the booking service the adapter drives.
type BookingConfirmer interface {
	GetBooking(ctx context.Context, bookingID string) (booking.Booking, error)
	ConfirmPayment(ctx context.Context, bookingID string) error
}
