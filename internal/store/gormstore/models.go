package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Property mirrors the properties table. The engine only reads pricing and
// policy configuration; property CRUD lives outside this service.
type Property struct {
	PropertyID       string         `gorm:"type:uuid;primaryKey"`
	VendorID         string         `gorm:"not null;index"`
	Currency         string         `gorm:"size:3;not null"`
	NightlyRateCents int64          `gorm:"not null"`
	CleaningFeeCents int64          `gorm:"not null"`
	ServiceFeeBps    int64          `gorm:"not null"`
	TaxBps           int64          `gorm:"not null"`
	MinNights        int            `gorm:"not null"`
	MaxNights        int            `gorm:"not null"`
	MaxGuests        int            `gorm:"not null"`
	CommissionBps    int64          `gorm:"not null"`
	Policy           datatypes.JSON `gorm:"not null"`
	CreatedAt        time.Time      `gorm:"not null"`
}

func (Property) TableName() string { return "properties" }

// RateOverride mirrors the rate_overrides table.
type RateOverride struct {
	OverrideID string    `gorm:"type:uuid;primaryKey"`
	PropertyID string    `gorm:"type:uuid;not null;index:idx_rate_overrides_property_date,priority:1"`
	Date       time.Time `gorm:"not null;index:idx_rate_overrides_property_date,priority:2"`
	DeltaCents int64     `gorm:"not null"`
}

func (RateOverride) TableName() string { return "rate_overrides" }

func (override *RateOverride) BeforeCreate(tx *gorm.DB) error {
	if override.OverrideID == "" {
		override.OverrideID = uuid.NewString()
	}
	return nil
}

// AvailabilityEvent mirrors the availability_events table. RefID points at
// the owning hold or booking; ExpiresAt makes abandoned claims invisible to
// overlap checks without a write.
type AvailabilityEvent struct {
	EventID    string     `gorm:"type:uuid;primaryKey"`
	PropertyID string     `gorm:"type:uuid;not null;index:idx_availability_property_dates,priority:1"`
	Kind       string     `gorm:"not null"`
	StartDate  time.Time  `gorm:"not null;index:idx_availability_property_dates,priority:2"`
	EndDate    time.Time  `gorm:"not null"`
	RefID      string     `gorm:"not null;index:uniq_availability_ref,unique"`
	ExpiresAt  *time.Time `gorm:""`
	CreatedAt  time.Time  `gorm:"not null"`
}

func (AvailabilityEvent) TableName() string { return "availability_events" }

func (event *AvailabilityEvent) BeforeCreate(tx *gorm.DB) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	return nil
}

// Hold mirrors the holds table.
type Hold struct {
	HoldID     string    `gorm:"type:uuid;primaryKey"`
	PropertyID string    `gorm:"type:uuid;not null;index"`
	CheckIn    time.Time `gorm:"not null"`
	CheckOut   time.Time `gorm:"not null"`
	Guests     int       `gorm:"not null"`
	ExpiresAt  time.Time `gorm:"not null;index:idx_holds_status_expiry,priority:2"`
	Status     string    `gorm:"not null;index:idx_holds_status_expiry,priority:1"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

func (Hold) TableName() string { return "holds" }

// Booking mirrors the bookings table. Version backs the optimistic
// compare-and-swap on status transitions.
type Booking struct {
	BookingID  string    `gorm:"type:uuid;primaryKey"`
	PropertyID string    `gorm:"type:uuid;not null;index"`
	CustomerID string    `gorm:"not null;index"`
	VendorID   string    `gorm:"not null;index"`
	CheckIn    time.Time `gorm:"not null"`
	CheckOut   time.Time `gorm:"not null"`
	Guests     int       `gorm:"not null"`
	TotalCents int64     `gorm:"not null"`
	Currency   string    `gorm:"size:3;not null"`
	Status     string    `gorm:"not null;index:idx_bookings_status_expiry,priority:1"`
	ExpiresAt  time.Time `gorm:"not null;index:idx_bookings_status_expiry,priority:2"`
	Version    int64     `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

func (Booking) TableName() string { return "bookings" }

// PaymentRecord mirrors the payment_records table, one per booking.
type PaymentRecord struct {
	PaymentRecordID string    `gorm:"type:uuid;primaryKey"`
	BookingID       string    `gorm:"type:uuid;not null;index:uniq_payment_records_booking,unique"`
	Provider        string    `gorm:"not null"`
	ProviderRef     string    `gorm:"not null"`
	Status          string    `gorm:"not null"`
	AmountCents     int64     `gorm:"not null"`
	Currency        string    `gorm:"size:3;not null"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

func (PaymentRecord) TableName() string { return "payment_records" }

// PaymentEvent mirrors the payment_events table. The unique index on
// (payment_record_id, provider_event_id) is what makes webhook replays
// no-ops.
type PaymentEvent struct {
	EventID         string         `gorm:"type:uuid;primaryKey"`
	PaymentRecordID string         `gorm:"type:uuid;not null;index:uniq_payment_events_record_event,unique,priority:1"`
	ProviderEventID string         `gorm:"not null;index:uniq_payment_events_record_event,unique,priority:2"`
	Type            string         `gorm:"not null"`
	AmountCents     int64          `gorm:"not null"`
	Currency        string         `gorm:"size:3;not null"`
	Payload         datatypes.JSON `gorm:"not null"`
	ReceivedAt      time.Time      `gorm:"not null"`
}

func (PaymentEvent) TableName() string { return "payment_events" }

// CancellationRecord mirrors the cancellation_records table; the booking id
// primary key enforces at most one record per booking.
type CancellationRecord struct {
	BookingID       string    `gorm:"type:uuid;primaryKey"`
	Actor           string    `gorm:"not null"`
	Mode            string    `gorm:"not null"`
	Reason          string    `gorm:"not null"`
	PenaltyCents    int64     `gorm:"not null"`
	RefundableCents int64     `gorm:"not null"`
	CancelledAt     time.Time `gorm:"not null"`
	Notes           string    `gorm:""`
}

func (CancellationRecord) TableName() string { return "cancellation_records" }

// RefundRecord mirrors the refund_records table.
type RefundRecord struct {
	RefundID          string    `gorm:"type:uuid;primaryKey"`
	BookingID         string    `gorm:"type:uuid;not null;index"`
	AmountCents       int64     `gorm:"not null"`
	Reason            string    `gorm:"not null"`
	Status            string    `gorm:"not null"`
	Provider          string    `gorm:"not null"`
	ProviderRefundRef string    `gorm:""`
	CreatedAt         time.Time `gorm:"not null"`
}

func (RefundRecord) TableName() string { return "refund_records" }

// VendorStatement mirrors the vendor_statements table.
type VendorStatement struct {
	StatementID     string    `gorm:"type:uuid;primaryKey"`
	VendorID        string    `gorm:"not null;index:idx_statements_vendor_period,priority:1"`
	PeriodStart     time.Time `gorm:"not null;index:idx_statements_vendor_period,priority:2"`
	PeriodEnd       time.Time `gorm:"not null"`
	Status          string    `gorm:"not null"`
	GrossCents      int64     `gorm:"not null"`
	CommissionCents int64     `gorm:"not null"`
	RefundCents     int64     `gorm:"not null"`
	NetPayableCents int64     `gorm:"not null"`
	Currency        string    `gorm:"size:3"`
	GeneratedAt     time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

func (VendorStatement) TableName() string { return "vendor_statements" }

// StatementLine mirrors the statement_lines table.
type StatementLine struct {
	LineID          string         `gorm:"type:uuid;primaryKey"`
	StatementID     string         `gorm:"type:uuid;not null;index"`
	BookingID       string         `gorm:"type:uuid;not null;index"`
	GrossCents      int64          `gorm:"not null"`
	CommissionCents int64          `gorm:"not null"`
	RefundCents     int64          `gorm:"not null"`
	NetCents        int64          `gorm:"not null"`
	Metadata        datatypes.JSON `gorm:""`
}

func (StatementLine) TableName() string { return "statement_lines" }

func (line *StatementLine) BeforeCreate(tx *gorm.DB) error {
	if line.LineID == "" {
		line.LineID = uuid.NewString()
	}
	return nil
}

// Payout mirrors the payouts table. The unique statement index enforces the
// 1:1 statement-to-payout invariant at the schema level.
type Payout struct {
	PayoutID      string    `gorm:"type:uuid;primaryKey"`
	StatementID   string    `gorm:"type:uuid;not null;index:uniq_payouts_statement,unique"`
	Status        string    `gorm:"not null"`
	AmountCents   int64     `gorm:"not null"`
	Currency      string    `gorm:"size:3;not null"`
	Provider      string    `gorm:"not null"`
	ProviderRef   string    `gorm:""`
	FailureReason string    `gorm:""`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (Payout) TableName() string { return "payouts" }

// AllModels lists every table for sqlite auto-migration.
func AllModels() []interface{} {
	return []interface{}{
		&Property{},
		&RateOverride{},
		&AvailabilityEvent{},
		&Hold{},
		&Booking{},
		&PaymentRecord{},
		&PaymentEvent{},
		&CancellationRecord{},
		&RefundRecord{},
		&VendorStatement{},
		&StatementLine{},
		&Payout{},
	}
}
