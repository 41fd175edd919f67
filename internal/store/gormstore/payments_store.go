package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lodgeworks/reserve/internal/payments"
)

const constraintPaymentEvent = "uniq_payment_events_record_event"

// PaymentStore implements payments.Store using GORM.
type PaymentStore struct {
	db *gorm.DB
}

// NewPaymentStore returns a PaymentStore backed by gorm.DB.
func NewPaymentStore(db *gorm.DB) *PaymentStore {
	return &PaymentStore{db: db}
}

// WithTx executes fn within a transaction.
func (store *PaymentStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore payments.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &PaymentStore{db: transaction})
	})
}

func (store *PaymentStore) GetRecordByBooking(ctx context.Context, bookingID string) (payments.Record, error) {
	var model PaymentRecord
	err := store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("booking_id = ?", bookingID).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return payments.Record{}, payments.ErrRecordNotFound
		}
		return payments.Record{}, fmt.Errorf("get payment record: %w", err)
	}
	return payments.Record{
		ID:          model.PaymentRecordID,
		BookingID:   model.BookingID,
		Provider:    model.Provider,
		ProviderRef: model.ProviderRef,
		Status:      payments.RecordStatus(model.Status),
		AmountCents: model.AmountCents,
		Currency:    model.Currency,
		CreatedAt:   model.CreatedAt,
	}, nil
}

func (store *PaymentStore) CreateRecord(ctx context.Context, record payments.Record) error {
	model := PaymentRecord{
		PaymentRecordID: record.ID,
		BookingID:       record.BookingID,
		Provider:        record.Provider,
		ProviderRef:     record.ProviderRef,
		Status:          string(record.Status),
		AmountCents:     record.AmountCents,
		Currency:        record.Currency,
		CreatedAt:       record.CreatedAt,
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("create payment record: %w", err)
	}
	return nil
}

func (store *PaymentStore) UpdateRecordStatus(ctx context.Context, recordID string, status payments.RecordStatus) error {
	result := store.db.WithContext(ctx).
		Model(&PaymentRecord{}).
		Where("payment_record_id = ?", recordID).
		Update("status", string(status))
	if result.Error != nil {
		return fmt.Errorf("update payment record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return payments.ErrRecordNotFound
	}
	return nil
}

func (store *PaymentStore) InsertEvent(ctx context.Context, event payments.Event) error {
	model := PaymentEvent{
		EventID:         event.ID,
		PaymentRecordID: event.PaymentRecordID,
		ProviderEventID: event.ProviderEventID,
		Type:            event.Type,
		AmountCents:     event.AmountCents,
		Currency:        event.Currency,
		Payload:         event.Payload,
		ReceivedAt:      event.ReceivedAt,
	}
	if model.ReceivedAt.IsZero() {
		model.ReceivedAt = time.Now().UTC()
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err, constraintPaymentEvent) {
		return payments.ErrDuplicateEvent
	}
	if err != nil {
		return fmt.Errorf("insert payment event: %w", err)
	}
	return nil
}
