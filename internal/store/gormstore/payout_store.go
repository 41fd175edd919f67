package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lodgeworks/reserve/internal/payments"
	"github.com/lodgeworks/reserve/pkg/booking"
	"github.com/lodgeworks/reserve/pkg/payout"
)

const constraintPayoutStatement = "uniq_payouts_statement"

// PayoutStore implements payout.Store using GORM.
type PayoutStore struct {
	db *gorm.DB
}

// NewPayoutStore returns a PayoutStore backed by gorm.DB.
func NewPayoutStore(db *gorm.DB) *PayoutStore {
	return &PayoutStore{db: db}
}

// WithTx executes fn within a transaction.
func (store *PayoutStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore payout.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &PayoutStore{db: transaction})
	})
}

func (store *PayoutStore) FindStatement(ctx context.Context, vendorID string, periodStart, periodEnd time.Time) (payout.VendorStatement, error) {
	var model VendorStatement
	err := store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("vendor_id = ? AND period_start = ? AND period_end = ? AND status <> ?",
			vendorID, periodStart, periodEnd, payout.StatementStatusVoid.String()).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return payout.VendorStatement{}, payout.ErrStatementNotFound
		}
		return payout.VendorStatement{}, fmt.Errorf("find statement: %w", err)
	}
	return mapStatement(model)
}

func (store *PayoutStore) GetStatement(ctx context.Context, statementID string) (payout.VendorStatement, error) {
	var model VendorStatement
	err := store.db.WithContext(ctx).
		Where("statement_id = ?", statementID).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return payout.VendorStatement{}, payout.ErrStatementNotFound
		}
		return payout.VendorStatement{}, fmt.Errorf("get statement: %w", err)
	}
	return mapStatement(model)
}

func (store *PayoutStore) CreateStatement(ctx context.Context, statement payout.VendorStatement) error {
	model := VendorStatement{
		StatementID:     statement.ID,
		VendorID:        statement.VendorID,
		PeriodStart:     statement.PeriodStart,
		PeriodEnd:       statement.PeriodEnd,
		Status:          statement.Status.String(),
		GrossCents:      statement.GrossCents.Int64(),
		CommissionCents: statement.CommissionCents.Int64(),
		RefundCents:     statement.RefundCents.Int64(),
		NetPayableCents: statement.NetPayableCents.Int64(),
		Currency:        statement.Currency,
		GeneratedAt:     statement.GeneratedAt,
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("create statement: %w", err)
	}
	return nil
}

func (store *PayoutStore) ReplaceStatementLines(ctx context.Context, statementID string, lines []payout.StatementLine) error {
	err := store.db.WithContext(ctx).
		Where("statement_id = ?", statementID).
		Delete(&StatementLine{}).Error
	if err != nil {
		return fmt.Errorf("clear statement lines: %w", err)
	}
	if len(lines) == 0 {
		return nil
	}
	models := make([]StatementLine, 0, len(lines))
	for _, line := range lines {
		models = append(models, StatementLine{
			LineID:          line.ID,
			StatementID:     statementID,
			BookingID:       line.BookingID,
			GrossCents:      line.GrossCents.Int64(),
			CommissionCents: line.CommissionCents.Int64(),
			RefundCents:     line.RefundCents.Int64(),
			NetCents:        line.NetCents.Int64(),
			Metadata:        line.Metadata,
		})
	}
	if err := store.db.WithContext(ctx).Create(&models).Error; err != nil {
		return fmt.Errorf("insert statement lines: %w", err)
	}
	return nil
}

func (store *PayoutStore) UpdateStatementTotals(ctx context.Context, statementID string, gross, commission, refunds, net payout.AmountCents, currency string) error {
	result := store.db.WithContext(ctx).
		Model(&VendorStatement{}).
		Where("statement_id = ?", statementID).
		Updates(map[string]interface{}{
			"gross_cents":       gross.Int64(),
			"commission_cents":  commission.Int64(),
			"refund_cents":      refunds.Int64(),
			"net_payable_cents": net.Int64(),
			"currency":          currency,
			"generated_at":      time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("update statement totals: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return payout.ErrStatementNotFound
	}
	return nil
}

func (store *PayoutStore) UpdateStatementStatus(ctx context.Context, statementID string, from, to payout.StatementStatus) error {
	result := store.db.WithContext(ctx).
		Model(&VendorStatement{}).
		Where("statement_id = ? AND status = ?", statementID, from.String()).
		Update("status", to.String())
	if result.Error != nil {
		return fmt.Errorf("update statement status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return payout.ErrStatementTransitionDenied
	}
	return nil
}

// ListPayableBookings selects the vendor's bookings payable in
// [periodStart, periodEnd): confirmed stays that ended inside it, plus
// cancelled bookings with a captured payment whose cancellation fell inside
// it. Bookings claimed by a line of another non-void statement are skipped.
// Refunds are netted per booking.
func (store *PayoutStore) ListPayableBookings(ctx context.Context, vendorID string, periodStart, periodEnd time.Time, excludeStatementID string) ([]payout.PayableBooking, error) {
	const query = `
SELECT b.booking_id AS booking_id,
       b.total_cents AS gross_cents,
       p.commission_bps AS commission_bps,
       COALESCE((SELECT SUM(r.amount_cents)
                   FROM refund_records r
                  WHERE r.booking_id = b.booking_id
                    AND r.status = ?), 0) AS refund_cents,
       b.currency AS currency
  FROM bookings b
  JOIN properties p ON p.property_id = b.property_id
 WHERE b.vendor_id = ?
   AND ((b.status = ? AND b.check_out >= ? AND b.check_out < ?)
     OR (b.status = ?
         AND EXISTS (
               SELECT 1
                 FROM payment_records pr
                WHERE pr.booking_id = b.booking_id
                  AND pr.status = ?)
         AND EXISTS (
               SELECT 1
                 FROM cancellation_records cr
                WHERE cr.booking_id = b.booking_id
                  AND cr.cancelled_at >= ?
                  AND cr.cancelled_at < ?)))
   AND NOT EXISTS (
         SELECT 1
           FROM statement_lines sl
           JOIN vendor_statements vs ON vs.statement_id = sl.statement_id
          WHERE sl.booking_id = b.booking_id
            AND vs.status <> ?
            AND vs.statement_id <> ?)
 ORDER BY b.check_out, b.booking_id`

	var rows []payableBookingRow
	err := store.db.WithContext(ctx).Raw(query,
		string(booking.RefundStatusSucceeded),
		vendorID,
		booking.BookingStatusConfirmed.String(),
		periodStart,
		periodEnd,
		booking.BookingStatusCancelled.String(),
		string(payments.RecordStatusCaptured),
		periodStart,
		periodEnd,
		payout.StatementStatusVoid.String(),
		excludeStatementID,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list payable bookings: %w", err)
	}
	results := make([]payout.PayableBooking, 0, len(rows))
	for _, row := range rows {
		results = append(results, payout.PayableBooking{
			BookingID:     row.BookingID,
			GrossCents:    payout.AmountCents(row.GrossCents),
			CommissionBps: row.CommissionBps,
			RefundCents:   payout.AmountCents(row.RefundCents),
			Currency:      row.Currency,
		})
	}
	return results, nil
}

// ListRefundAdjustments compares, per claimed booking, the succeeded refund
// total against what non-void statement lines already netted. A positive
// delta means money left the platform after the claiming statement locked
// its lines; recording the delta as an adjustment line zeroes it for the
// next run.
func (store *PayoutStore) ListRefundAdjustments(ctx context.Context, vendorID, excludeStatementID string) ([]payout.RefundAdjustment, error) {
	const query = `
SELECT sl.booking_id AS booking_id,
       COALESCE((SELECT SUM(r.amount_cents)
                   FROM refund_records r
                  WHERE r.booking_id = sl.booking_id
                    AND r.status = ?), 0) - SUM(sl.refund_cents) AS amount_cents
  FROM statement_lines sl
  JOIN vendor_statements vs ON vs.statement_id = sl.statement_id
  JOIN bookings b ON b.booking_id = sl.booking_id
 WHERE b.vendor_id = ?
   AND vs.status <> ?
   AND vs.statement_id <> ?
 GROUP BY sl.booking_id
HAVING COALESCE((SELECT SUM(r.amount_cents)
                   FROM refund_records r
                  WHERE r.booking_id = sl.booking_id
                    AND r.status = ?), 0) - SUM(sl.refund_cents) > 0
 ORDER BY sl.booking_id`

	var rows []refundAdjustmentRow
	err := store.db.WithContext(ctx).Raw(query,
		string(booking.RefundStatusSucceeded),
		vendorID,
		payout.StatementStatusVoid.String(),
		excludeStatementID,
		string(booking.RefundStatusSucceeded),
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list refund adjustments: %w", err)
	}
	results := make([]payout.RefundAdjustment, 0, len(rows))
	for _, row := range rows {
		results = append(results, payout.RefundAdjustment{
			BookingID:   row.BookingID,
			AmountCents: payout.AmountCents(row.AmountCents),
		})
	}
	return results, nil
}

func (store *PayoutStore) CreatePayout(ctx context.Context, record payout.Payout) error {
	model := Payout{
		PayoutID:      record.ID,
		StatementID:   record.StatementID,
		Status:        record.Status.String(),
		AmountCents:   record.AmountCents.Int64(),
		Currency:      record.Currency,
		Provider:      record.Provider,
		ProviderRef:   record.ProviderRef,
		FailureReason: record.FailureReason,
		CreatedAt:     record.CreatedAt,
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err, constraintPayoutStatement) {
		return payout.ErrPayoutExists
	}
	if err != nil {
		return fmt.Errorf("create payout: %w", err)
	}
	return nil
}

func (store *PayoutStore) GetPayout(ctx context.Context, payoutID string) (payout.Payout, error) {
	var model Payout
	err := store.db.WithContext(ctx).
		Where("payout_id = ?", payoutID).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return payout.Payout{}, payout.ErrPayoutNotFound
		}
		return payout.Payout{}, fmt.Errorf("get payout: %w", err)
	}
	status, err := payout.ParsePayoutStatus(model.Status)
	if err != nil {
		return payout.Payout{}, err
	}
	return payout.Payout{
		ID:            model.PayoutID,
		StatementID:   model.StatementID,
		Status:        status,
		AmountCents:   payout.AmountCents(model.AmountCents),
		Currency:      model.Currency,
		Provider:      model.Provider,
		ProviderRef:   model.ProviderRef,
		FailureReason: model.FailureReason,
		CreatedAt:     model.CreatedAt,
	}, nil
}

func (store *PayoutStore) UpdatePayoutStatus(ctx context.Context, payoutID string, from, to payout.PayoutStatus, failureReason, providerRef string) error {
	updates := map[string]interface{}{
		"status": to.String(),
	}
	if failureReason != "" {
		updates["failure_reason"] = failureReason
	} else if from == payout.PayoutStatusFailed {
		// A retry leaving failed must not carry the old reason forward.
		updates["failure_reason"] = ""
	}
	if providerRef != "" {
		updates["provider_ref"] = providerRef
	}
	result := store.db.WithContext(ctx).
		Model(&Payout{}).
		Where("payout_id = ? AND status = ?", payoutID, from.String()).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("update payout status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return payout.ErrPayoutTransitionDenied
	}
	return nil
}

func mapStatement(model VendorStatement) (payout.VendorStatement, error) {
	status, err := payout.ParseStatementStatus(model.Status)
	if err != nil {
		return payout.VendorStatement{}, err
	}
	return payout.VendorStatement{
		ID:              model.StatementID,
		VendorID:        model.VendorID,
		PeriodStart:     model.PeriodStart,
		PeriodEnd:       model.PeriodEnd,
		Status:          status,
		GrossCents:      payout.AmountCents(model.GrossCents),
		CommissionCents: payout.AmountCents(model.CommissionCents),
		RefundCents:     payout.AmountCents(model.RefundCents),
		NetPayableCents: payout.AmountCents(model.NetPayableCents),
		Currency:        model.Currency,
		GeneratedAt:     model.GeneratedAt,
	}, nil
}

type payableBookingRow struct {
	BookingID     string
	GrossCents    int64
	CommissionBps int64
	RefundCents   int64
	Currency      string
}

type refundAdjustmentRow struct {
	BookingID   string
	AmountCents int64
}
