package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lodgeworks/reserve/pkg/booking"
)

const (
	constraintAvailabilityRef  = "uniq_availability_ref"
	constraintCancellationPkey = "cancellation_records_pkey"

	errorOperationStore       = "store"
	errorSubjectProperty      = "property"
	errorSubjectAvailability  = "availability"
	errorSubjectHold          = "hold"
	errorSubjectBooking       = "booking"
	errorSubjectCancellation  = "cancellation"
	errorSubjectRefund        = "refund"
	errorCodeCreate           = "create"
	errorCodeGet              = "get"
	errorCodeList             = "list"
	errorCodeUpdateStatus     = "update_status"
	errorCodeDelete           = "delete"
	errorCodeDuplicate        = "duplicate"
	errorCodeInvalid          = "invalid"
	errorCodeSum              = "sum"
)

// BookingStore implements booking.Store using GORM.
type BookingStore struct {
	db *gorm.DB
}

// NewBookingStore returns a BookingStore backed by gorm.DB.
func NewBookingStore(db *gorm.DB) *BookingStore {
	return &BookingStore{db: db}
}

// WithTx executes fn within a transaction.
func (store *BookingStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore booking.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &BookingStore{db: transaction})
	})
}

func (store *BookingStore) GetProperty(ctx context.Context, propertyID string) (booking.Property, error) {
	return store.getProperty(ctx, propertyID, false)
}

func (store *BookingStore) GetPropertyForUpdate(ctx context.Context, propertyID string) (booking.Property, error) {
	return store.getProperty(ctx, propertyID, true)
}

func (store *BookingStore) getProperty(ctx context.Context, propertyID string, forUpdate bool) (booking.Property, error) {
	query := store.db.WithContext(ctx)
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var model Property
	err := query.Where("property_id = ?", propertyID).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return booking.Property{}, wrapStoreError(errorSubjectProperty, errorCodeGet, booking.ErrUnknownProperty)
		}
		return booking.Property{}, wrapStoreError(errorSubjectProperty, errorCodeGet, err)
	}
	var policy booking.CancellationPolicy
	if len(model.Policy) > 0 {
		if err := json.Unmarshal(model.Policy, &policy); err != nil {
			return booking.Property{}, wrapStoreError(errorSubjectProperty, errorCodeInvalid, err)
		}
	}
	return booking.Property{
		ID:               model.PropertyID,
		VendorID:         model.VendorID,
		Currency:         model.Currency,
		NightlyRateCents: booking.AmountCents(model.NightlyRateCents),
		CleaningFeeCents: booking.AmountCents(model.CleaningFeeCents),
		ServiceFeeBps:    model.ServiceFeeBps,
		TaxBps:           model.TaxBps,
		MinNights:        model.MinNights,
		MaxNights:        model.MaxNights,
		MaxGuests:        model.MaxGuests,
		CommissionBps:    model.CommissionBps,
		Policy:           policy,
	}, nil
}

func (store *BookingStore) ListRateOverrides(ctx context.Context, propertyID string, from, to time.Time) ([]booking.RateOverride, error) {
	var rows []RateOverride
	err := store.db.WithContext(ctx).
		Where("property_id = ? AND date >= ? AND date < ?", propertyID, from, to).
		Order("date").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectProperty, errorCodeList, err)
	}
	overrides := make([]booking.RateOverride, 0, len(rows))
	for _, row := range rows {
		overrides = append(overrides, booking.RateOverride{
			PropertyID: row.PropertyID,
			Date:       row.Date,
			DeltaCents: booking.AmountCents(row.DeltaCents),
		})
	}
	return overrides, nil
}

func (store *BookingStore) ListBlockingEvents(ctx context.Context, propertyID string, start, end, now time.Time) ([]booking.AvailabilityEvent, error) {
	var rows []AvailabilityEvent
	err := store.db.WithContext(ctx).
		Where("property_id = ?", propertyID).
		Where("start_date < ? AND ? < end_date", end, start).
		Where("(expires_at IS NULL OR expires_at > ?)", now).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectAvailability, errorCodeList, err)
	}
	events := make([]booking.AvailabilityEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, booking.AvailabilityEvent{
			ID:         row.EventID,
			PropertyID: row.PropertyID,
			Kind:       booking.AvailabilityKind(row.Kind),
			StartDate:  row.StartDate,
			EndDate:    row.EndDate,
			RefID:      row.RefID,
			ExpiresAt:  row.ExpiresAt,
		})
	}
	return events, nil
}

func (store *BookingStore) CreateAvailabilityEvent(ctx context.Context, event booking.AvailabilityEvent) error {
	model := AvailabilityEvent{
		EventID:    event.ID,
		PropertyID: event.PropertyID,
		Kind:       event.Kind.String(),
		StartDate:  event.StartDate,
		EndDate:    event.EndDate,
		RefID:      event.RefID,
		ExpiresAt:  event.ExpiresAt,
		CreatedAt:  time.Now().UTC(),
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err, constraintAvailabilityRef) {
		return wrapStoreError(errorSubjectAvailability, errorCodeDuplicate, booking.ErrHoldConflict)
	}
	if err != nil {
		return wrapStoreError(errorSubjectAvailability, errorCodeCreate, err)
	}
	return nil
}

func (store *BookingStore) PromoteHoldEvent(ctx context.Context, holdID, bookingID string, expiresAt time.Time) error {
	result := store.db.WithContext(ctx).
		Model(&AvailabilityEvent{}).
		Where("ref_id = ? AND kind = ?", holdID, booking.AvailabilityKindHold.String()).
		Updates(map[string]interface{}{
			"kind":       booking.AvailabilityKindBooking.String(),
			"ref_id":     bookingID,
			"expires_at": expiresAt,
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectAvailability, errorCodeUpdateStatus, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectAvailability, errorCodeUpdateStatus, booking.ErrUnknownHold)
	}
	return nil
}

func (store *BookingStore) ClearEventExpiry(ctx context.Context, refID string) error {
	err := store.db.WithContext(ctx).
		Model(&AvailabilityEvent{}).
		Where("ref_id = ?", refID).
		Update("expires_at", nil).Error
	if err != nil {
		return wrapStoreError(errorSubjectAvailability, errorCodeUpdateStatus, err)
	}
	return nil
}

func (store *BookingStore) DeleteAvailabilityEvent(ctx context.Context, refID string) error {
	err := store.db.WithContext(ctx).
		Where("ref_id = ?", refID).
		Delete(&AvailabilityEvent{}).Error
	if err != nil {
		return wrapStoreError(errorSubjectAvailability, errorCodeDelete, err)
	}
	return nil
}

func (store *BookingStore) CreateHold(ctx context.Context, hold booking.Hold) error {
	model := Hold{
		HoldID:     hold.ID,
		PropertyID: hold.PropertyID,
		CheckIn:    hold.CheckIn,
		CheckOut:   hold.CheckOut,
		Guests:     hold.Guests,
		ExpiresAt:  hold.ExpiresAt,
		Status:     hold.Status.String(),
		CreatedAt:  hold.CreatedAt,
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return wrapStoreError(errorSubjectHold, errorCodeCreate, err)
	}
	return nil
}

func (store *BookingStore) GetHold(ctx context.Context, holdID string) (booking.Hold, error) {
	var model Hold
	err := store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("hold_id = ?", holdID).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return booking.Hold{}, wrapStoreError(errorSubjectHold, errorCodeGet, booking.ErrUnknownHold)
		}
		return booking.Hold{}, wrapStoreError(errorSubjectHold, errorCodeGet, err)
	}
	status, err := booking.ParseHoldStatus(model.Status)
	if err != nil {
		return booking.Hold{}, wrapStoreError(errorSubjectHold, errorCodeInvalid, err)
	}
	return booking.Hold{
		ID:         model.HoldID,
		PropertyID: model.PropertyID,
		CheckIn:    model.CheckIn,
		CheckOut:   model.CheckOut,
		Guests:     model.Guests,
		ExpiresAt:  model.ExpiresAt,
		Status:     status,
		CreatedAt:  model.CreatedAt,
	}, nil
}

func (store *BookingStore) UpdateHoldStatus(ctx context.Context, holdID string, from, to booking.HoldStatus) error {
	result := store.db.WithContext(ctx).
		Model(&Hold{}).
		Where("hold_id = ? AND status = ?", holdID, from.String()).
		Update("status", to.String())
	if result.Error != nil {
		return wrapStoreError(errorSubjectHold, errorCodeUpdateStatus, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectHold, errorCodeUpdateStatus, booking.ErrHoldClosed)
	}
	return nil
}

func (store *BookingStore) ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]booking.Hold, error) {
	var rows []Hold
	err := store.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", booking.HoldStatusActive.String(), now).
		Order("expires_at").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectHold, errorCodeList, err)
	}
	holds := make([]booking.Hold, 0, len(rows))
	for _, row := range rows {
		holds = append(holds, booking.Hold{
			ID:         row.HoldID,
			PropertyID: row.PropertyID,
			CheckIn:    row.CheckIn,
			CheckOut:   row.CheckOut,
			Guests:     row.Guests,
			ExpiresAt:  row.ExpiresAt,
			Status:     booking.HoldStatusActive,
			CreatedAt:  row.CreatedAt,
		})
	}
	return holds, nil
}

func (store *BookingStore) CreateBooking(ctx context.Context, record booking.Booking) error {
	model := Booking{
		BookingID:  record.ID,
		PropertyID: record.PropertyID,
		CustomerID: record.CustomerID,
		VendorID:   record.VendorID,
		CheckIn:    record.CheckIn,
		CheckOut:   record.CheckOut,
		Guests:     record.Guests,
		TotalCents: record.TotalCents.Int64(),
		Currency:   record.Currency,
		Status:     record.Status.String(),
		ExpiresAt:  record.ExpiresAt,
		Version:    record.Version,
		CreatedAt:  record.CreatedAt,
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return wrapStoreError(errorSubjectBooking, errorCodeCreate, err)
	}
	return nil
}

func (store *BookingStore) GetBooking(ctx context.Context, bookingID string) (booking.Booking, error) {
	var model Booking
	err := store.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return booking.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeGet, booking.ErrUnknownBooking)
		}
		return booking.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeGet, err)
	}
	return mapBooking(model)
}

func (store *BookingStore) UpdateBookingStatus(ctx context.Context, bookingID string, from booking.BookingStatus, fromVersion int64, to booking.BookingStatus) error {
	result := store.db.WithContext(ctx).
		Model(&Booking{}).
		Where("booking_id = ? AND status = ? AND version = ?", bookingID, from.String(), fromVersion).
		Updates(map[string]interface{}{
			"status":  to.String(),
			"version": gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectBooking, errorCodeUpdateStatus, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectBooking, errorCodeUpdateStatus, booking.ErrConcurrentModification)
	}
	return nil
}

func (store *BookingStore) ListExpiredPendingBookings(ctx context.Context, now time.Time, limit int) ([]booking.Booking, error) {
	var rows []Booking
	err := store.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", booking.BookingStatusPendingPayment.String(), now).
		Order("expires_at").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectBooking, errorCodeList, err)
	}
	records := make([]booking.Booking, 0, len(rows))
	for _, row := range rows {
		record, err := mapBooking(row)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (store *BookingStore) CreateCancellationRecord(ctx context.Context, record booking.CancellationRecord) error {
	model := CancellationRecord{
		BookingID:       record.BookingID,
		Actor:           string(record.Actor),
		Mode:            string(record.Mode),
		Reason:          record.Reason,
		PenaltyCents:    record.PenaltyCents.Int64(),
		RefundableCents: record.RefundableCents.Int64(),
		CancelledAt:     record.CancelledAt,
		Notes:           record.Notes,
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err, constraintCancellationPkey) {
		return wrapStoreError(errorSubjectCancellation, errorCodeDuplicate, booking.ErrCancellationExists)
	}
	if err != nil {
		return wrapStoreError(errorSubjectCancellation, errorCodeCreate, err)
	}
	return nil
}

func (store *BookingStore) GetCancellationRecord(ctx context.Context, bookingID string) (booking.CancellationRecord, error) {
	var model CancellationRecord
	err := store.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return booking.CancellationRecord{}, wrapStoreError(errorSubjectCancellation, errorCodeGet, booking.ErrUnknownBooking)
		}
		return booking.CancellationRecord{}, wrapStoreError(errorSubjectCancellation, errorCodeGet, err)
	}
	return booking.CancellationRecord{
		BookingID:       model.BookingID,
		Actor:           booking.CancelActor(model.Actor),
		Mode:            booking.CancelMode(model.Mode),
		Reason:          model.Reason,
		PenaltyCents:    booking.AmountCents(model.PenaltyCents),
		RefundableCents: booking.AmountCents(model.RefundableCents),
		CancelledAt:     model.CancelledAt,
		Notes:           model.Notes,
	}, nil
}

func (store *BookingStore) CreateRefund(ctx context.Context, record booking.RefundRecord) error {
	model := RefundRecord{
		RefundID:          record.ID,
		BookingID:         record.BookingID,
		AmountCents:       record.AmountCents.Int64(),
		Reason:            record.Reason,
		Status:            string(record.Status),
		Provider:          record.Provider,
		ProviderRefundRef: record.ProviderRefundRef,
		CreatedAt:         record.CreatedAt,
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return wrapStoreError(errorSubjectRefund, errorCodeCreate, err)
	}
	return nil
}

func (store *BookingStore) SumRefunds(ctx context.Context, bookingID string) (booking.AmountCents, error) {
	var sum sqlSum
	err := store.db.WithContext(ctx).
		Model(&RefundRecord{}).
		Select("coalesce(sum(amount_cents),0) as total").
		Where("booking_id = ? AND status <> ?", bookingID, string(booking.RefundStatusFailed)).
		Scan(&sum).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectRefund, errorCodeSum, err)
	}
	return booking.AmountCents(sum.Total), nil
}

func mapBooking(model Booking) (booking.Booking, error) {
	status, err := booking.ParseBookingStatus(model.Status)
	if err != nil {
		return booking.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
	}
	return booking.Booking{
		ID:         model.BookingID,
		PropertyID: model.PropertyID,
		CustomerID: model.CustomerID,
		VendorID:   model.VendorID,
		CheckIn:    model.CheckIn,
		CheckOut:   model.CheckOut,
		Guests:     model.Guests,
		TotalCents: booking.AmountCents(model.TotalCents),
		Currency:   model.Currency,
		Status:     status,
		ExpiresAt:  model.ExpiresAt,
		Version:    model.Version,
		CreatedAt:  model.CreatedAt,
	}, nil
}

func wrapStoreError(subject string, code string, err error) error {
	return booking.WrapError(errorOperationStore, subject, code, err)
}

type sqlSum struct {
	Total int64
}
