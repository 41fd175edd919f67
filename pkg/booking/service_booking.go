package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ConvertHold turns an active, unexpired hold into a pending-payment booking.
// The hold flips to converted and its availability event is upgraded from
// HOLD to BOOKING inside the same transaction, so the date range is never
// unprotected.
func (service *Service) ConvertHold(ctx context.Context, holdID, customerID string) (Booking, error) {
	var record Booking
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		hold, err := transactionStore.GetHold(ctx, holdID)
		if err != nil {
			return err
		}
		now := service.nowFn()
		if hold.Status == HoldStatusActive && !hold.ExpiresAt.After(now) {
			// Persist the lazy expiry before rejecting the conversion.
			if err := transactionStore.UpdateHoldStatus(ctx, holdID, HoldStatusActive, HoldStatusExpired); err != nil {
				return err
			}
			if err := transactionStore.DeleteAvailabilityEvent(ctx, holdID); err != nil {
				return err
			}
			return ErrHoldExpired
		}
		if hold.Status != HoldStatusActive {
			return ErrHoldClosed
		}
		property, err := transactionStore.GetProperty(ctx, hold.PropertyID)
		if err != nil {
			return err
		}
		overrides, err := transactionStore.ListRateOverrides(ctx, hold.PropertyID, hold.CheckIn, hold.CheckOut)
		if err != nil {
			return err
		}
		quote := priceStay(property, overrides, hold.CheckIn, hold.CheckOut)
		paymentExpiry := now.Add(service.paymentWindow)
		record = Booking{
			ID:         uuid.NewString(),
			PropertyID: hold.PropertyID,
			CustomerID: customerID,
			VendorID:   property.VendorID,
			CheckIn:    hold.CheckIn,
			CheckOut:   hold.CheckOut,
			Guests:     hold.Guests,
			TotalCents: quote.TotalCents,
			Currency:   quote.Currency,
			Status:     BookingStatusPendingPayment,
			ExpiresAt:  paymentExpiry,
			Version:    1,
			CreatedAt:  now,
		}
		if err := transactionStore.CreateBooking(ctx, record); err != nil {
			return err
		}
		if err := transactionStore.UpdateHoldStatus(ctx, holdID, HoldStatusActive, HoldStatusConverted); err != nil {
			return err
		}
		return transactionStore.PromoteHoldEvent(ctx, holdID, record.ID, paymentExpiry)
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationConvertHold,
		HoldID:    holdID,
		BookingID: record.ID,
		Amount:    record.TotalCents,
		Error:     operationError,
	})
	if operationError != nil {
		return Booking{}, operationError
	}
	return record, nil
}

// ConfirmPayment transitions a pending booking to confirmed. Only the payment
// reconciliation adapter calls this, after a verified webhook; confirming an
// already-confirmed booking is a no-op so event replays stay safe. A stale
// version is retried once against fresh state before surfacing.
func (service *Service) ConfirmPayment(ctx context.Context, bookingID string) error {
	var operationError error
	for attempt := 0; attempt < confirmAttempts; attempt++ {
		operationError = service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
			record, err := transactionStore.GetBooking(ctx, bookingID)
			if err != nil {
				return err
			}
			if record.Status == BookingStatusConfirmed {
				return nil
			}
			if record.Status != BookingStatusPendingPayment {
				return fmt.Errorf("%w: cannot confirm %s booking", ErrInvalidTransition, record.Status)
			}
			if !record.ExpiresAt.After(service.nowFn()) {
				return fmt.Errorf("%w: %w", ErrInvalidTransition, ErrPaymentWindowElapsed)
			}
			if err := transactionStore.UpdateBookingStatus(ctx, bookingID, BookingStatusPendingPayment, record.Version, BookingStatusConfirmed); err != nil {
				return err
			}
			// The stay is paid for; its calendar claim no longer expires.
			return transactionStore.ClearEventExpiry(ctx, bookingID)
		})
		if operationError == nil || !errors.Is(operationError, ErrConcurrentModification) {
			break
		}
	}
	service.logOperation(ctx, OperationLog{
		Operation: operationConfirm,
		BookingID: bookingID,
		Error:     operationError,
	})
	return operationError
}

// ExpirePaymentWindow moves a pending booking past its payment deadline to
// expired and frees the date range.
func (service *Service) ExpirePaymentWindow(ctx context.Context, bookingID string) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		record, err := transactionStore.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if record.Status != BookingStatusPendingPayment {
			return fmt.Errorf("%w: cannot expire %s booking", ErrInvalidTransition, record.Status)
		}
		if record.ExpiresAt.After(service.nowFn()) {
			return fmt.Errorf("%w: payment window still open", ErrInvalidTransition)
		}
		if err := transactionStore.UpdateBookingStatus(ctx, bookingID, BookingStatusPendingPayment, record.Version, BookingStatusExpired); err != nil {
			return err
		}
		return transactionStore.DeleteAvailabilityEvent(ctx, bookingID)
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationExpire,
		BookingID: bookingID,
		Error:     operationError,
	})
	return operationError
}

// GetBooking reads a booking with lazy expiry: a pending booking past its
// payment window reads as expired regardless of sweep timing. Reads never
// drive transitions.
func (service *Service) GetBooking(ctx context.Context, bookingID string) (Booking, error) {
	record, err := service.store.GetBooking(ctx, bookingID)
	if err != nil {
		return Booking{}, err
	}
	if record.Status == BookingStatusPendingPayment && !record.ExpiresAt.After(service.nowFn()) {
		record.Status = BookingStatusExpired
	}
	return record, nil
}

// CancelInput describes a customer or admin cancellation request.
type CancelInput struct {
	BookingID string
	Actor     CancelActor
	Mode      CancelMode
	Reason    string
	Notes     string
}

// CancelResult reports the outcome, including the idempotent replay case.
type CancelResult struct {
	Status           BookingStatus
	AlreadyCancelled bool
	Record           CancellationRecord
}

// Cancel ends a booking. Soft mode enforces the property's cancellation
// policy and rejects stays already under way; hard mode is the authenticated
// admin override and bypasses both. Re-cancelling an already-cancelled
// booking reports success with the original record.
func (service *Service) Cancel(ctx context.Context, input CancelInput) (CancelResult, error) {
	var result CancelResult
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		record, err := transactionStore.GetBooking(ctx, input.BookingID)
		if err != nil {
			return err
		}
		now := service.nowFn()
		if record.Status == BookingStatusCancelled {
			existing, err := transactionStore.GetCancellationRecord(ctx, input.BookingID)
			if err != nil {
				return err
			}
			result = CancelResult{Status: BookingStatusCancelled, AlreadyCancelled: true, Record: existing}
			return nil
		}
		if record.Status == BookingStatusExpired {
			return fmt.Errorf("%w: booking already expired", ErrInvalidTransition)
		}
		if record.Status == BookingStatusPendingPayment && !record.ExpiresAt.After(now) {
			return fmt.Errorf("%w: booking already expired", ErrInvalidTransition)
		}
		if input.Mode == CancelModeSoft && !now.Before(record.CheckIn) {
			return fmt.Errorf("%w: stay already started", ErrValidation)
		}

		property, err := transactionStore.GetProperty(ctx, record.PropertyID)
		if err != nil {
			return err
		}
		// Nothing has been captured for a pending booking, so there is
		// nothing to penalize or refund.
		amountPaid := AmountCents(0)
		if record.Status == BookingStatusConfirmed {
			amountPaid = record.TotalCents
		}
		outcome := ComputeCancellation(amountPaid, record.CheckIn, property.Policy, now, input.Mode)

		notes := input.Notes
		if outcome.Note != "" {
			if notes != "" {
				notes = notes + "; " + outcome.Note
			} else {
				notes = outcome.Note
			}
		}
		cancellation := CancellationRecord{
			BookingID:       record.ID,
			Actor:           input.Actor,
			Mode:            input.Mode,
			Reason:          input.Reason,
			PenaltyCents:    outcome.PenaltyCents,
			RefundableCents: outcome.RefundableCents,
			CancelledAt:     now,
			Notes:           notes,
		}
		if err := transactionStore.CreateCancellationRecord(ctx, cancellation); err != nil {
			return err
		}
		if err := transactionStore.UpdateBookingStatus(ctx, record.ID, record.Status, record.Version, BookingStatusCancelled); err != nil {
			return err
		}
		if err := transactionStore.DeleteAvailabilityEvent(ctx, record.ID); err != nil {
			return err
		}
		result = CancelResult{Status: BookingStatusCancelled, Record: cancellation}
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationCancel,
		BookingID: input.BookingID,
		Actor:     string(input.Actor),
		Amount:    result.Record.PenaltyCents,
		Error:     operationError,
	})
	if operationError != nil {
		return CancelResult{}, operationError
	}
	return result, nil
}

// CreateRefund records a refund against a cancelled or expired booking.
// Refunds are an explicit follow-up action, never implicit in cancellation.
// For a cancelled booking the running total may not exceed the refundable
// amount the cancellation computed; for an expired booking it may not exceed
// the booking total, covering captures that landed after the payment window
// closed the booking.
func (service *Service) CreateRefund(ctx context.Context, bookingID string, amount AmountCents, reason, provider string) (RefundRecord, error) {
	var refund RefundRecord
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		record, err := transactionStore.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if amount <= 0 {
			return fmt.Errorf("%w: refund amount must be positive", ErrValidation)
		}
		var limit AmountCents
		switch record.Status {
		case BookingStatusCancelled:
			cancellation, err := transactionStore.GetCancellationRecord(ctx, bookingID)
			if err != nil {
				return err
			}
			limit = cancellation.RefundableCents
		case BookingStatusExpired:
			// The stay was never delivered; a late capture is returned
			// in full.
			limit = record.TotalCents
		default:
			return fmt.Errorf("%w: refunds require a cancelled or expired booking", ErrInvalidTransition)
		}
		refunded, err := transactionStore.SumRefunds(ctx, bookingID)
		if err != nil {
			return err
		}
		if refunded+amount > limit {
			return ErrRefundExceedsLimit
		}
		refund = RefundRecord{
			ID:          uuid.NewString(),
			BookingID:   bookingID,
			AmountCents: amount,
			Reason:      reason,
			Status:      RefundStatusPending,
			Provider:    provider,
			CreatedAt:   service.nowFn(),
		}
		return transactionStore.CreateRefund(ctx, refund)
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationRefund,
		BookingID: bookingID,
		Amount:    amount,
		Error:     operationError,
	})
	if operationError != nil {
		return RefundRecord{}, operationError
	}
	return refund, nil
}
