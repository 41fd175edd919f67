package httpserver

import (
	"context"
	"time"

	"github.com/lodgeworks/reserve/internal/payments"
	"github.com/lodgeworks/reserve/pkg/booking"
	"github.com/lodgeworks/reserve/pkg/payout"
)

// In-memory stores mirroring the transactional semantics of the SQL layer,
// so the handlers exercise real services end to end.

type stubBookingStore struct {
	properties    map[string]booking.Property
	overrides     []booking.RateOverride
	events        map[string]booking.AvailabilityEvent
	holds         map[string]booking.Hold
	bookings      map[string]booking.Booking
	cancellations map[string]booking.CancellationRecord
	refunds       []booking.RefundRecord
}

func newStubBookingStore() *stubBookingStore {
	return &stubBookingStore{
		properties: map[string]booking.Property{"prop-1": {
			ID:               "prop-1",
			VendorID:         "vendor-1",
			Currency:         "USD",
			NightlyRateCents: 10000,
			CleaningFeeCents: 5000,
			ServiceFeeBps:    300,
			TaxBps:           1000,
			MinNights:        2,
			MaxNights:        30,
			MaxGuests:        6,
			CommissionBps:    1500,
			Policy: booking.CancellationPolicy{
				FreeCancelBeforeHours: 168,
				Bands: []booking.PenaltyBand{
					{WithinHours: 24, PenaltyBps: 10000},
					{WithinHours: 72, PenaltyBps: 5000},
					{WithinHours: 168, PenaltyBps: 2500},
				},
			},
		}},
		events:        make(map[string]booking.AvailabilityEvent),
		holds:         make(map[string]booking.Hold),
		bookings:      make(map[string]booking.Booking),
		cancellations: make(map[string]booking.CancellationRecord),
	}
}

func (store *stubBookingStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore booking.Store) error) error {
	return fn(ctx, store)
}

func (store *stubBookingStore) GetProperty(ctx context.Context, propertyID string) (booking.Property, error) {
	property, ok := store.properties[propertyID]
	if !ok {
		return booking.Property{}, booking.ErrUnknownProperty
	}
	return property, nil
}

func (store *stubBookingStore) GetPropertyForUpdate(ctx context.Context, propertyID string) (booking.Property, error) {
	return store.GetProperty(ctx, propertyID)
}

func (store *stubBookingStore) ListRateOverrides(ctx context.Context, propertyID string, from, to time.Time) ([]booking.RateOverride, error) {
	matched := make([]booking.RateOverride, 0)
	for _, override := range store.overrides {
		if override.PropertyID == propertyID && !override.Date.Before(from) && override.Date.Before(to) {
			matched = append(matched, override)
		}
	}
	return matched, nil
}

func (store *stubBookingStore) ListBlockingEvents(ctx context.Context, propertyID string, start, end, now time.Time) ([]booking.AvailabilityEvent, error) {
	blocking := make([]booking.AvailabilityEvent, 0)
	for _, event := range store.events {
		if event.PropertyID != propertyID {
			continue
		}
		if event.ExpiresAt != nil && !event.ExpiresAt.After(now) {
			continue
		}
		if booking.Overlaps(event.StartDate, event.EndDate, start, end) {
			blocking = append(blocking, event)
		}
	}
	return blocking, nil
}

func (store *stubBookingStore) CreateAvailabilityEvent(ctx context.Context, event booking.AvailabilityEvent) error {
	if _, exists := store.events[event.RefID]; exists {
		return booking.ErrHoldConflict
	}
	store.events[event.RefID] = event
	return nil
}

func (store *stubBookingStore) PromoteHoldEvent(ctx context.Context, holdID, bookingID string, expiresAt time.Time) error {
	event, ok := store.events[holdID]
	if !ok || event.Kind != booking.AvailabilityKindHold {
		return booking.ErrUnknownHold
	}
	delete(store.events, holdID)
	event.Kind = booking.AvailabilityKindBooking
	event.RefID = bookingID
	expiry := expiresAt
	event.ExpiresAt = &expiry
	store.events[bookingID] = event
	return nil
}

func (store *stubBookingStore) ClearEventExpiry(ctx context.Context, refID string) error {
	event, ok := store.events[refID]
	if !ok {
		return nil
	}
	event.ExpiresAt = nil
	store.events[refID] = event
	return nil
}

func (store *stubBookingStore) DeleteAvailabilityEvent(ctx context.Context, refID string) error {
	delete(store.events, refID)
	return nil
}

func (store *stubBookingStore) CreateHold(ctx context.Context, hold booking.Hold) error {
	store.holds[hold.ID] = hold
	return nil
}

func (store *stubBookingStore) GetHold(ctx context.Context, holdID string) (booking.Hold, error) {
	hold, ok := store.holds[holdID]
	if !ok {
		return booking.Hold{}, booking.ErrUnknownHold
	}
	return hold, nil
}

func (store *stubBookingStore) UpdateHoldStatus(ctx context.Context, holdID string, from, to booking.HoldStatus) error {
	hold, ok := store.holds[holdID]
	if !ok {
		return booking.ErrUnknownHold
	}
	if hold.Status != from {
		return booking.ErrHoldClosed
	}
	hold.Status = to
	store.holds[holdID] = hold
	return nil
}

func (store *stubBookingStore) ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]booking.Hold, error) {
	expired := make([]booking.Hold, 0)
	for _, hold := range store.holds {
		if hold.Status == booking.HoldStatusActive && !hold.ExpiresAt.After(now) {
			expired = append(expired, hold)
		}
		if len(expired) == limit {
			break
		}
	}
	return expired, nil
}

func (store *stubBookingStore) CreateBooking(ctx context.Context, record booking.Booking) error {
	store.bookings[record.ID] = record
	return nil
}

func (store *stubBookingStore) GetBooking(ctx context.Context, bookingID string) (booking.Booking, error) {
	record, ok := store.bookings[bookingID]
	if !ok {
		return booking.Booking{}, booking.ErrUnknownBooking
	}
	return record, nil
}

func (store *stubBookingStore) UpdateBookingStatus(ctx context.Context, bookingID string, from booking.BookingStatus, fromVersion int64, to booking.BookingStatus) error {
	record, ok := store.bookings[bookingID]
	if !ok {
		return booking.ErrUnknownBooking
	}
	if record.Status != from || record.Version != fromVersion {
		return booking.ErrConcurrentModification
	}
	record.Status = to
	record.Version++
	store.bookings[bookingID] = record
	return nil
}

func (store *stubBookingStore) ListExpiredPendingBookings(ctx context.Context, now time.Time, limit int) ([]booking.Booking, error) {
	stale := make([]booking.Booking, 0)
	for _, record := range store.bookings {
		if record.Status == booking.BookingStatusPendingPayment && !record.ExpiresAt.After(now) {
			stale = append(stale, record)
		}
		if len(stale) == limit {
			break
		}
	}
	return stale, nil
}

func (store *stubBookingStore) CreateCancellationRecord(ctx context.Context, record booking.CancellationRecord) error {
	if _, exists := store.cancellations[record.BookingID]; exists {
		return booking.ErrCancellationExists
	}
	store.cancellations[record.BookingID] = record
	return nil
}

func (store *stubBookingStore) GetCancellationRecord(ctx context.Context, bookingID string) (booking.CancellationRecord, error) {
	record, ok := store.cancellations[bookingID]
	if !ok {
		return booking.CancellationRecord{}, booking.ErrUnknownBooking
	}
	return record, nil
}

func (store *stubBookingStore) CreateRefund(ctx context.Context, record booking.RefundRecord) error {
	store.refunds = append(store.refunds, record)
	return nil
}

func (store *stubBookingStore) SumRefunds(ctx context.Context, bookingID string) (booking.AmountCents, error) {
	var sum booking.AmountCents
	for _, refund := range store.refunds {
		if refund.BookingID == bookingID && refund.Status != booking.RefundStatusFailed {
			sum += refund.AmountCents
		}
	}
	return sum, nil
}

type stubPayoutStore struct {
	statements map[string]payout.VendorStatement
	lines      map[string][]payout.StatementLine
	payouts    map[string]payout.Payout
}

func newStubPayoutStore() *stubPayoutStore {
	return &stubPayoutStore{
		statements: make(map[string]payout.VendorStatement),
		lines:      make(map[string][]payout.StatementLine),
		payouts:    make(map[string]payout.Payout),
	}
}

func (store *stubPayoutStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore payout.Store) error) error {
	return fn(ctx, store)
}

func (store *stubPayoutStore) FindStatement(ctx context.Context, vendorID string, periodStart, periodEnd time.Time) (payout.VendorStatement, error) {
	for _, statement := range store.statements {
		if statement.VendorID == vendorID &&
			statement.PeriodStart.Equal(periodStart) &&
			statement.PeriodEnd.Equal(periodEnd) &&
			statement.Status != payout.StatementStatusVoid {
			return statement, nil
		}
	}
	return payout.VendorStatement{}, payout.ErrStatementNotFound
}

func (store *stubPayoutStore) GetStatement(ctx context.Context, statementID string) (payout.VendorStatement, error) {
	statement, ok := store.statements[statementID]
	if !ok {
		return payout.VendorStatement{}, payout.ErrStatementNotFound
	}
	return statement, nil
}

func (store *stubPayoutStore) CreateStatement(ctx context.Context, statement payout.VendorStatement) error {
	store.statements[statement.ID] = statement
	return nil
}

func (store *stubPayoutStore) ReplaceStatementLines(ctx context.Context, statementID string, lines []payout.StatementLine) error {
	store.lines[statementID] = append([]payout.StatementLine(nil), lines...)
	return nil
}

func (store *stubPayoutStore) UpdateStatementTotals(ctx context.Context, statementID string, gross, commission, refunds, net payout.AmountCents, currency string) error {
	statement, ok := store.statements[statementID]
	if !ok {
		return payout.ErrStatementNotFound
	}
	statement.GrossCents = gross
	statement.CommissionCents = commission
	statement.RefundCents = refunds
	statement.NetPayableCents = net
	statement.Currency = currency
	store.statements[statementID] = statement
	return nil
}

func (store *stubPayoutStore) UpdateStatementStatus(ctx context.Context, statementID string, from, to payout.StatementStatus) error {
	statement, ok := store.statements[statementID]
	if !ok {
		return payout.ErrStatementNotFound
	}
	if statement.Status != from {
		return payout.ErrStatementTransitionDenied
	}
	statement.Status = to
	store.statements[statementID] = statement
	return nil
}

func (store *stubPayoutStore) ListPayableBookings(ctx context.Context, vendorID string, periodStart, periodEnd time.Time, excludeStatementID string) ([]payout.PayableBooking, error) {
	return nil, nil
}

func (store *stubPayoutStore) ListRefundAdjustments(ctx context.Context, vendorID, excludeStatementID string) ([]payout.RefundAdjustment, error) {
	return nil, nil
}

func (store *stubPayoutStore) CreatePayout(ctx context.Context, record payout.Payout) error {
	for _, existing := range store.payouts {
		if existing.StatementID == record.StatementID {
			return payout.ErrPayoutExists
		}
	}
	store.payouts[record.ID] = record
	return nil
}

func (store *stubPayoutStore) GetPayout(ctx context.Context, payoutID string) (payout.Payout, error) {
	record, ok := store.payouts[payoutID]
	if !ok {
		return payout.Payout{}, payout.ErrPayoutNotFound
	}
	return record, nil
}

func (store *stubPayoutStore) UpdatePayoutStatus(ctx context.Context, payoutID string, from, to payout.PayoutStatus, failureReason, providerRef string) error {
	record, ok := store.payouts[payoutID]
	if !ok {
		return payout.ErrPayoutNotFound
	}
	if record.Status != from {
		return payout.ErrPayoutTransitionDenied
	}
	record.Status = to
	if from == payout.PayoutStatusFailed {
		record.FailureReason = ""
	}
	if failureReason != "" {
		record.FailureReason = failureReason
	}
	if providerRef != "" {
		record.ProviderRef = providerRef
	}
	store.payouts[payoutID] = record
	return nil
}

type stubPaymentStore struct {
	records map[string]payments.Record
	events  map[string]payments.Event
}

func newStubPaymentStore() *stubPaymentStore {
	return &stubPaymentStore{
		records: make(map[string]payments.Record),
		events:  make(map[string]payments.Event),
	}
}

func (store *stubPaymentStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore payments.Store) error) error {
	return fn(ctx, store)
}

func (store *stubPaymentStore) GetRecordByBooking(ctx context.Context, bookingID string) (payments.Record, error) {
	for _, record := range store.records {
		if record.BookingID == bookingID {
			return record, nil
		}
	}
	return payments.Record{}, payments.ErrRecordNotFound
}

func (store *stubPaymentStore) CreateRecord(ctx context.Context, record payments.Record) error {
	store.records[record.ID] = record
	return nil
}

func (store *stubPaymentStore) UpdateRecordStatus(ctx context.Context, recordID string, status payments.RecordStatus) error {
	record, ok := store.records[recordID]
	if !ok {
		return payments.ErrRecordNotFound
	}
	record.Status = status
	store.records[recordID] = record
	return nil
}

func (store *stubPaymentStore) InsertEvent(ctx context.Context, event payments.Event) error {
	key := event.PaymentRecordID + "/" + event.ProviderEventID
	if _, exists := store.events[key]; exists {
		return payments.ErrDuplicateEvent
	}
	store.events[key] = event
	return nil
}
