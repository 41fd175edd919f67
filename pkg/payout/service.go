package payout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const basisPointDivisor = int64(10000)

// Service contains the statement and payout domain logic over a Store.
type Service struct {
	store Store
	nowFn func() time.Time
}

// NewService wires a Service.
func NewService(store Store, now func() time.Time) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	return &Service{store: store, nowFn: now}, nil
}

// GenerateStatement aggregates a vendor's payable bookings for a period into
// a draft statement. Refunds issued after an earlier statement locked a
// booking's line come in as negative adjustment lines, so the vendor balance
// converges across periods. Regenerating a draft replaces its line items; a
// finalized or paid statement is never regenerated.
func (service *Service) GenerateStatement(ctx context.Context, vendorID string, periodStart, periodEnd time.Time) (VendorStatement, error) {
	if !periodEnd.After(periodStart) {
		return VendorStatement{}, fmt.Errorf("%w: period end must follow period start", ErrValidation)
	}
	var statement VendorStatement
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		existing, err := transactionStore.FindStatement(ctx, vendorID, periodStart, periodEnd)
		switch {
		case err == nil:
			if existing.Status != StatementStatusDraft {
				return fmt.Errorf("%w: statement %s is %s", ErrStatementAlreadyFinal, existing.ID, existing.Status)
			}
			statement = existing
		case errors.Is(err, ErrStatementNotFound):
			statement = VendorStatement{
				ID:          uuid.NewString(),
				VendorID:    vendorID,
				PeriodStart: periodStart,
				PeriodEnd:   periodEnd,
				Status:      StatementStatusDraft,
				GeneratedAt: service.nowFn(),
			}
			if err := transactionStore.CreateStatement(ctx, statement); err != nil {
				return err
			}
		default:
			return err
		}

		payable, err := transactionStore.ListPayableBookings(ctx, vendorID, periodStart, periodEnd, statement.ID)
		if err != nil {
			return err
		}
		lines := make([]StatementLine, 0, len(payable))
		var gross, commission, refunds, net AmountCents
		currency := statement.Currency
		for _, entry := range payable {
			lineCommission := AmountCents(entry.GrossCents.Int64() * entry.CommissionBps / basisPointDivisor)
			lineNet := entry.GrossCents - lineCommission - entry.RefundCents
			lines = append(lines, StatementLine{
				ID:              uuid.NewString(),
				StatementID:     statement.ID,
				BookingID:       entry.BookingID,
				GrossCents:      entry.GrossCents,
				CommissionCents: lineCommission,
				RefundCents:     entry.RefundCents,
				NetCents:        lineNet,
			})
			gross += entry.GrossCents
			commission += lineCommission
			refunds += entry.RefundCents
			net += lineNet
			if currency == "" {
				currency = entry.Currency
			}
		}
		adjustments, err := transactionStore.ListRefundAdjustments(ctx, vendorID, statement.ID)
		if err != nil {
			return err
		}
		for _, adjustment := range adjustments {
			lines = append(lines, StatementLine{
				ID:          uuid.NewString(),
				StatementID: statement.ID,
				BookingID:   adjustment.BookingID,
				RefundCents: adjustment.AmountCents,
				NetCents:    -adjustment.AmountCents,
				Metadata:    datatypes.JSON(`{"kind":"refund_adjustment"}`),
			})
			refunds += adjustment.AmountCents
			net -= adjustment.AmountCents
		}
		if err := transactionStore.ReplaceStatementLines(ctx, statement.ID, lines); err != nil {
			return err
		}
		if err := transactionStore.UpdateStatementTotals(ctx, statement.ID, gross, commission, refunds, net, currency); err != nil {
			return err
		}
		statement.GrossCents = gross
		statement.CommissionCents = commission
		statement.RefundCents = refunds
		statement.NetPayableCents = net
		statement.Currency = currency
		return nil
	})
	if operationError != nil {
		return VendorStatement{}, operationError
	}
	return statement, nil
}

// FinalizeStatement locks a draft statement's totals.
func (service *Service) FinalizeStatement(ctx context.Context, statementID string) error {
	return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		return transactionStore.UpdateStatementStatus(ctx, statementID, StatementStatusDraft, StatementStatusFinalized)
	})
}

// VoidStatement voids a draft or finalized statement. A paid statement can
// never be voided.
func (service *Service) VoidStatement(ctx context.Context, statementID string) error {
	return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		statement, err := transactionStore.GetStatement(ctx, statementID)
		if err != nil {
			return err
		}
		if statement.Status != StatementStatusDraft && statement.Status != StatementStatusFinalized {
			return fmt.Errorf("%w: cannot void %s statement", ErrStatementTransitionDenied, statement.Status)
		}
		return transactionStore.UpdateStatementStatus(ctx, statementID, statement.Status, StatementStatusVoid)
	})
}

// CreatePayout opens the disbursement for a finalized statement. The
// statement uniqueness constraint guarantees at most one payout per
// statement.
func (service *Service) CreatePayout(ctx context.Context, statementID, provider string) (Payout, error) {
	var record Payout
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		statement, err := transactionStore.GetStatement(ctx, statementID)
		if err != nil {
			return err
		}
		if statement.Status != StatementStatusFinalized {
			return fmt.Errorf("%w: payouts require a finalized statement", ErrPayoutTransitionDenied)
		}
		record = Payout{
			ID:          uuid.NewString(),
			StatementID: statementID,
			Status:      PayoutStatusPending,
			AmountCents: statement.NetPayableCents,
			Currency:    statement.Currency,
			Provider:    provider,
			CreatedAt:   service.nowFn(),
		}
		return transactionStore.CreatePayout(ctx, record)
	})
	if operationError != nil {
		return Payout{}, operationError
	}
	return record, nil
}

// MarkPayoutProcessing records that execution started. A failed payout may
// be retried through a fresh processing attempt.
func (service *Service) MarkPayoutProcessing(ctx context.Context, payoutID string) error {
	return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		record, err := transactionStore.GetPayout(ctx, payoutID)
		if err != nil {
			return err
		}
		if record.Status != PayoutStatusPending && record.Status != PayoutStatusFailed {
			return fmt.Errorf("%w: cannot start processing a %s payout", ErrPayoutTransitionDenied, record.Status)
		}
		return transactionStore.UpdatePayoutStatus(ctx, payoutID, record.Status, PayoutStatusProcessing, "", "")
	})
}

// MarkPayoutSucceeded records the disbursement and marks the linked
// statement paid in the same transaction. Replaying a success is a no-op.
func (service *Service) MarkPayoutSucceeded(ctx context.Context, payoutID, providerRef string) error {
	return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		record, err := transactionStore.GetPayout(ctx, payoutID)
		if err != nil {
			return err
		}
		if record.Status == PayoutStatusSucceeded {
			return nil
		}
		if record.Status != PayoutStatusProcessing {
			return fmt.Errorf("%w: cannot succeed a %s payout", ErrPayoutTransitionDenied, record.Status)
		}
		if err := transactionStore.UpdatePayoutStatus(ctx, payoutID, PayoutStatusProcessing, PayoutStatusSucceeded, "", providerRef); err != nil {
			return err
		}
		return transactionStore.UpdateStatementStatus(ctx, record.StatementID, StatementStatusFinalized, StatementStatusPaid)
	})
}

// MarkPayoutFailed records a failed execution attempt with its reason.
func (service *Service) MarkPayoutFailed(ctx context.Context, payoutID, failureReason string) error {
	if failureReason == "" {
		return ErrFailureReasonRequired
	}
	return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		record, err := transactionStore.GetPayout(ctx, payoutID)
		if err != nil {
			return err
		}
		if record.Status != PayoutStatusProcessing {
			return fmt.Errorf("%w: cannot fail a %s payout", ErrPayoutTransitionDenied, record.Status)
		}
		return transactionStore.UpdatePayoutStatus(ctx, payoutID, PayoutStatusProcessing, PayoutStatusFailed, failureReason, "")
	})
}

// CancelPayout abandons a payout that has not succeeded.
func (service *Service) CancelPayout(ctx context.Context, payoutID string) error {
	return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		record, err := transactionStore.GetPayout(ctx, payoutID)
		if err != nil {
			return err
		}
		if record.Status != PayoutStatusPending && record.Status != PayoutStatusProcessing {
			return fmt.Errorf("%w: cannot cancel a %s payout", ErrPayoutTransitionDenied, record.Status)
		}
		return transactionStore.UpdatePayoutStatus(ctx, payoutID, record.Status, PayoutStatusCancelled, "", "")
	})
}

// GetStatement reads a statement by id.
func (service *Service) GetStatement(ctx context.Context, statementID string) (VendorStatement, error) {
	return service.store.GetStatement(ctx, statementID)
}

// GetPayout reads a payout by id.
func (service *Service) GetPayout(ctx context.Context, payoutID string) (Payout, error) {
	return service.store.GetPayout(ctx, payoutID)
}
