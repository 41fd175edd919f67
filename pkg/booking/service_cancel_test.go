package booking

import (
	"context"
	"errors"
	"testing"
	"time"
)

func mustConfirmedBooking(test *testing.T, service *Service, store *stubStore) Booking {
	test.Helper()
	hold := mustReserve(test, service, "prop-1",
		testDate(2026, time.September, 10), testDate(2026, time.September, 13))
	record := mustConvert(test, service, hold.ID)
	if err := service.ConfirmPayment(context.Background(), record.ID); err != nil {
		test.Fatalf("confirm: %v", err)
	}
	return store.bookings[record.ID]
}

func TestCancelConfirmedBookingAppliesPolicy(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service, clock := mustNewService(test, store)
	record := mustConfirmedBooking(test, service, store)

	// 48 hours before check-in lands in the 72h band at 50%.
	clock.current = record.CheckIn.Add(-48 * time.Hour)

	result, err := service.Cancel(context.Background(), CancelInput{
		BookingID: record.ID,
		Actor:     CancelActorCustomer,
		Mode:      CancelModeSoft,
		Reason:    "change of plans",
	})
	if err != nil {
		test.Fatalf("cancel: %v", err)
	}
	if result.AlreadyCancelled {
		test.Fatal("first cancellation must not report a replay")
	}
	expectedPenalty := AmountCents(record.TotalCents.Int64() / 2)
	if result.Record.PenaltyCents != expectedPenalty {
		test.Fatalf("expected penalty %d, got %d", expectedPenalty, result.Record.PenaltyCents)
	}
	if result.Record.RefundableCents != record.TotalCents-expectedPenalty {
		test.Fatalf("unexpected refundable %d", result.Record.RefundableCents)
	}
	if store.bookings[record.ID].Status != BookingStatusCancelled {
		test.Fatalf("expected cancelled booking, got %s", store.bookings[record.ID].Status)
	}
	if _, ok := store.events[record.ID]; ok {
		test.Fatal("cancellation must free the date range")
	}
}

func TestCancelIsIdempotent(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service, _ := mustNewService(test, store)
	record := mustConfirmedBooking(test, service, store)

	first, err := service.Cancel(context.Background(), CancelInput{
		BookingID: record.ID, Actor: CancelActorCustomer, Mode: CancelModeSoft,
	})
	if err != nil {
		test.Fatalf("cancel: %v", err)
	}
	second, err := service.Cancel(context.Background(), CancelInput{
		BookingID: record.ID, Actor: CancelActorCustomer, Mode: CancelModeSoft,
	})
	if err != nil {
		test.Fatalf("repeat cancel: %v", err)
	}
	if !second.AlreadyCancelled {
		test.Fatal("repeat cancel must report the replay")
	}
	if second.Record != first.Record {
		test.Fatalf("replay must return the original record, got %+v", second.Record)
	}
	if len(store.cancellations) != 1 {
		test.Fatalf("expected one cancellation record, got %d", len(store.cancellations))
	}
}

func TestCancelPendingBookingHasNothingToRefund(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service, _ := mustNewService(test, store)

	hold := mustReserve(test, service, "prop-1",
		testDate(2026, time.September, 10), testDate(2026, time.September, 13))
	record := mustConvert(test, service, hold.ID)

	result, err := service.Cancel(context.Background(), CancelInput{
		BookingID: record.ID, Actor: CancelActorCustomer, Mode: CancelModeSoft,
	})
	if err != nil {
		test.Fatalf("cancel: %v", err)
	}
	if result.Record.PenaltyCents != 0 || result.Record.RefundableCents != 0 {
		test.Fatalf("nothing was captured, expected zero split, got %d/%d",
			result.Record.PenaltyCents, result.Record.RefundableCents)
	}
}

func TestCancelSoftRejectsStartedStay(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service, clock := mustNewService(test, store)
	record := mustConfirmedBooking(test, service, store)

	clock.current = record.CheckIn.Add(time.Hour)

	_, err := service.Cancel(context.Background(), CancelInput{
		BookingID: record.ID, Actor: CancelActorCustomer, Mode: CancelModeSoft,
	})
	if !errors.Is(err, ErrValidation) {
		test.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestCancelHardOverrideWaivesPenaltyMidStay(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service, clock := mustNewService(test, store)
	record := mustConfirmedBooking(test, service, store)

	clock.current = record.CheckIn.Add(time.Hour)

	result, err := service.Cancel(context.Background(), CancelInput{
		BookingID: record.ID,
		Actor:     CancelActorAdminOverride,
		Mode:      CancelModeHard,
		Reason:    "property flooded",
		Notes:     "ops ticket 4821",
	})
	if err != nil {
		test.Fatalf("hard cancel: %v", err)
	}
	if result.Record.PenaltyCents != 0 {
		test.Fatalf("expected waived penalty, got %d", result.Record.PenaltyCents)
	}
	if result.Record.RefundableCents != record.TotalCents {
		test.Fatalf("expected full refundable amount, got %d", result.Record.RefundableCents)
	}
	if result.Record.Actor != CancelActorAdminOverride {
		test.Fatalf("unexpected actor %s", result.Record.Actor)
	}
}

func TestCancelExpiredBooking(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service, clock := mustNewService(test, store)

	hold := mustReserve(test, service, "prop-1",
		testDate(2026, time.September, 10), testDate(2026, time.September, 13))
	record := mustConvert(test, service, hold.ID)
	clock.advance(defaultPaymentWindow + time.Second)

	_, err := service.Cancel(context.Background(), CancelInput{
		BookingID: record.ID, Actor: CancelActorCustomer, Mode: CancelModeSoft,
	})
	if !errors.Is(err, ErrInvalidTransition) {
		test.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestCreateRefundWithinRefundableLimit(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service, clock := mustNewService(test, store)
	record := mustConfirmedBooking(test, service, store)
	clock.current = record.CheckIn.Add(-48 * time.Hour)

	result, err := service.Cancel(context.Background(), CancelInput{
		BookingID: record.ID, Actor: CancelActorCustomer, Mode: CancelModeSoft,
	})
	if err != nil {
		test.Fatalf("cancel: %v", err)
	}
	refundable := result.Record.RefundableCents

	partial := refundable / 2
	refund, err := service.CreateRefund(context.Background(), record.ID, partial, "partial refund", "payfort")
	if err != nil {
		test.Fatalf("refund: %v", err)
	}
	if refund.Status != RefundStatusPending {
		test.Fatalf("expected pending refund, got %s", refund.Status)
	}

	if _, err := service.CreateRefund(context.Background(), record.ID, refundable-partial, "remainder", "payfort"); err != nil {
		test.Fatalf("second refund: %v", err)
	}
	// The limit is now exhausted.
	if _, err := service.CreateRefund(context.Background(), record.ID, 1, "over", "payfort"); !errors.Is(err, ErrRefundExceedsLimit) {
		test.Fatalf("expected ErrRefundExceedsLimit, got %v", err)
	}
}

func TestCreateRefundForExpiredBookingReturnsLateCapture(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service, clock := mustNewService(test, store)

	hold := mustReserve(test, service, "prop-1",
		testDate(2026, time.September, 10), testDate(2026, time.September, 13))
	record := mustConvert(test, service, hold.ID)
	clock.advance(defaultPaymentWindow + time.Second)
	if err := service.ExpirePaymentWindow(context.Background(), record.ID); err != nil {
		test.Fatalf("expire: %v", err)
	}

	// Money captured after expiry is returned in full, no cancellation
	// record required.
	refund, err := service.CreateRefund(context.Background(), record.ID, record.TotalCents, "late capture", "payfort")
	if err != nil {
		test.Fatalf("refund expired booking: %v", err)
	}
	if refund.AmountCents != record.TotalCents {
		test.Fatalf("expected full refund of %d, got %d", record.TotalCents, refund.AmountCents)
	}
	if _, err := service.CreateRefund(context.Background(), record.ID, 1, "late capture", "payfort"); !errors.Is(err, ErrRefundExceedsLimit) {
		test.Fatalf("expected ErrRefundExceedsLimit past the booking total, got %v", err)
	}
}

func TestCreateRefundRequiresCancelledBooking(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service, _ := mustNewService(test, store)
	record := mustConfirmedBooking(test, service, store)

	_, err := service.CreateRefund(context.Background(), record.ID, 100, "oops", "payfort")
	if !errors.Is(err, ErrInvalidTransition) {
		test.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestCreateRefundRejectsNonPositiveAmount(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service, clock := mustNewService(test, store)
	record := mustConfirmedBooking(test, service, store)
	clock.current = record.CheckIn.Add(-48 * time.Hour)

	if _, err := service.Cancel(context.Background(), CancelInput{
		BookingID: record.ID, Actor: CancelActorCustomer, Mode: CancelModeSoft,
	}); err != nil {
		test.Fatalf("cancel: %v", err)
	}
	if _, err := service.CreateRefund(context.Background(), record.ID, 0, "zero", "payfort"); !errors.Is(err, ErrValidation) {
		test.Fatalf("expected ErrValidation, got %v", err)
	}
}
