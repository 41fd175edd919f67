package gormstore

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/lodgeworks/reserve/internal/payments"
	"github.com/lodgeworks/reserve/pkg/booking"
	"github.com/lodgeworks/reserve/pkg/payout"
)

func TestListPayableBookingsEligibility(test *testing.T) {
	test.Parallel()
	db := mustOpenTestDB(test)
	store := NewPayoutStore(db)
	seedProperty(test, db)

	periodStart := testDay(2026, time.September, 1)
	periodEnd := testDay(2026, time.October, 1)

	// Confirmed stay ending inside the period.
	seedBooking(test, db, "b-stay", booking.BookingStatusConfirmed.String(),
		testDay(2026, time.September, 20), 40000)
	// Confirmed stay ending after the period.
	seedBooking(test, db, "b-later", booking.BookingStatusConfirmed.String(),
		testDay(2026, time.October, 5), 40000)
	// Cancelled after capture, cancellation inside the period, refunded 5000.
	seedBooking(test, db, "b-cancelled", booking.BookingStatusCancelled.String(),
		testDay(2026, time.September, 25), 30000)
	mustSeed(test, db, &PaymentRecord{
		PaymentRecordID: "pay-1",
		BookingID:       "b-cancelled",
		Provider:        "payfort",
		ProviderRef:     "ref-1",
		Status:          string(payments.RecordStatusCaptured),
		AmountCents:     30000,
		Currency:        "USD",
		CreatedAt:       testDay(2026, time.September, 10),
		UpdatedAt:       testDay(2026, time.September, 10),
	})
	seedCancellation(test, db, "b-cancelled", testDay(2026, time.September, 12))
	seedRefund(test, db, "rf-1", "b-cancelled", 5000, string(booking.RefundStatusSucceeded))
	seedRefund(test, db, "rf-2", "b-cancelled", 2000, string(booking.RefundStatusFailed))
	// Cancelled without any captured payment: nothing to pay out.
	seedBooking(test, db, "b-unpaid", booking.BookingStatusCancelled.String(),
		testDay(2026, time.September, 18), 20000)
	seedCancellation(test, db, "b-unpaid", testDay(2026, time.September, 11))
	// Claimed by a paid statement from an earlier run.
	seedBooking(test, db, "b-claimed", booking.BookingStatusConfirmed.String(),
		testDay(2026, time.September, 5), 40000)
	seedStatement(test, db, "st-aug", payout.StatementStatusPaid.String())
	mustSeed(test, db, &StatementLine{
		StatementID: "st-aug", BookingID: "b-claimed",
		GrossCents: 40000, CommissionCents: 6000, NetCents: 34000,
	})
	// A void statement's lines must not block re-claiming.
	seedStatement(test, db, "st-void", payout.StatementStatusVoid.String())
	mustSeed(test, db, &StatementLine{
		StatementID: "st-void", BookingID: "b-stay",
		GrossCents: 40000, CommissionCents: 6000, NetCents: 34000,
	})

	payable, err := store.ListPayableBookings(context.Background(), "vendor-1",
		periodStart, periodEnd, "st-new")
	if err != nil {
		test.Fatalf("list payable: %v", err)
	}
	if len(payable) != 2 {
		test.Fatalf("expected 2 payable bookings, got %+v", payable)
	}
	if payable[0].BookingID != "b-stay" || payable[0].RefundCents != 0 {
		test.Fatalf("unexpected first entry %+v", payable[0])
	}
	cancelled := payable[1]
	if cancelled.BookingID != "b-cancelled" || cancelled.GrossCents != 30000 ||
		cancelled.RefundCents != 5000 || cancelled.CommissionBps != 1500 {
		test.Fatalf("unexpected cancelled entry %+v", cancelled)
	}
}

func TestListRefundAdjustmentsConverge(test *testing.T) {
	test.Parallel()
	db := mustOpenTestDB(test)
	store := NewPayoutStore(db)
	seedProperty(test, db)

	// b-old was paid out with 1000 of refunds netted; 4000 more succeeded
	// after the statement locked.
	seedBooking(test, db, "b-old", booking.BookingStatusCancelled.String(),
		testDay(2026, time.August, 20), 30000)
	seedStatement(test, db, "st-paid", payout.StatementStatusPaid.String())
	mustSeed(test, db, &StatementLine{
		StatementID: "st-paid", BookingID: "b-old",
		GrossCents: 30000, CommissionCents: 4500, RefundCents: 1000, NetCents: 24500,
	})
	seedRefund(test, db, "rf-1", "b-old", 1000, string(booking.RefundStatusSucceeded))
	seedRefund(test, db, "rf-2", "b-old", 4000, string(booking.RefundStatusSucceeded))
	// Another vendor's refunds never leak into this vendor's adjustments.
	mustSeed(test, db, &Booking{
		BookingID: "b-other", PropertyID: "prop-2", CustomerID: "cust-2",
		VendorID: "vendor-2", CheckIn: testDay(2026, time.August, 1),
		CheckOut: testDay(2026, time.August, 4), Guests: 2, TotalCents: 10000,
		Currency: "USD", Status: booking.BookingStatusCancelled.String(),
		ExpiresAt: testDay(2026, time.August, 4), Version: 1,
		CreatedAt: testDay(2026, time.August, 1), UpdatedAt: testDay(2026, time.August, 1),
	})
	mustSeed(test, db, &StatementLine{
		StatementID: "st-paid", BookingID: "b-other",
		GrossCents: 10000, CommissionCents: 1500, NetCents: 8500,
	})
	seedRefund(test, db, "rf-3", "b-other", 3000, string(booking.RefundStatusSucceeded))

	adjustments, err := store.ListRefundAdjustments(context.Background(), "vendor-1", "st-next")
	if err != nil {
		test.Fatalf("list adjustments: %v", err)
	}
	if len(adjustments) != 1 {
		test.Fatalf("expected 1 adjustment, got %+v", adjustments)
	}
	if adjustments[0].BookingID != "b-old" || adjustments[0].AmountCents != 4000 {
		test.Fatalf("unexpected adjustment %+v", adjustments[0])
	}

	// Once a statement records the delta as a line, the next run sees zero.
	seedStatement(test, db, "st-next", payout.StatementStatusFinalized.String())
	mustSeed(test, db, &StatementLine{
		StatementID: "st-next", BookingID: "b-old",
		RefundCents: 4000, NetCents: -4000,
	})
	adjustments, err = store.ListRefundAdjustments(context.Background(), "vendor-1", "st-after")
	if err != nil {
		test.Fatalf("list adjustments after recording: %v", err)
	}
	if len(adjustments) != 0 {
		test.Fatalf("expected no adjustments, got %+v", adjustments)
	}
}

func mustOpenTestDB(test *testing.T) *gorm.DB {
	test.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		test.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(AllModels()...); err != nil {
		test.Fatalf("migrate: %v", err)
	}
	return db
}

func mustSeed(test *testing.T, db *gorm.DB, value interface{}) {
	test.Helper()
	if err := db.Create(value).Error; err != nil {
		test.Fatalf("seed %T: %v", value, err)
	}
}

func seedProperty(test *testing.T, db *gorm.DB) {
	test.Helper()
	mustSeed(test, db, &Property{
		PropertyID:       "prop-1",
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
		Policy:           datatypes.JSON(`{}`),
		CreatedAt:        testDay(2026, time.January, 1),
	})
}

func seedBooking(test *testing.T, db *gorm.DB, id, status string, checkOut time.Time, totalCents int64) {
	test.Helper()
	mustSeed(test, db, &Booking{
		BookingID:  id,
		PropertyID: "prop-1",
		CustomerID: "cust-1",
		VendorID:   "vendor-1",
		CheckIn:    checkOut.AddDate(0, 0, -3),
		CheckOut:   checkOut,
		Guests:     2,
		TotalCents: totalCents,
		Currency:   "USD",
		Status:     status,
		ExpiresAt:  checkOut,
		Version:    1,
		CreatedAt:  checkOut.AddDate(0, 0, -10),
		UpdatedAt:  checkOut.AddDate(0, 0, -10),
	})
}

func seedCancellation(test *testing.T, db *gorm.DB, bookingID string, cancelledAt time.Time) {
	test.Helper()
	mustSeed(test, db, &CancellationRecord{
		BookingID:       bookingID,
		Actor:           string(booking.CancelActorCustomer),
		Mode:            string(booking.CancelModeSoft),
		Reason:          "plans changed",
		PenaltyCents:    0,
		RefundableCents: 0,
		CancelledAt:     cancelledAt,
	})
}

func seedRefund(test *testing.T, db *gorm.DB, id, bookingID string, amountCents int64, status string) {
	test.Helper()
	mustSeed(test, db, &RefundRecord{
		RefundID:    id,
		BookingID:   bookingID,
		AmountCents: amountCents,
		Reason:      "cancellation",
		Status:      status,
		Provider:    "payfort",
		CreatedAt:   testDay(2026, time.September, 15),
	})
}

func seedStatement(test *testing.T, db *gorm.DB, id, status string) {
	test.Helper()
	mustSeed(test, db, &VendorStatement{
		StatementID: id,
		VendorID:    "vendor-1",
		PeriodStart: testDay(2026, time.August, 1),
		PeriodEnd:   testDay(2026, time.September, 1),
		Status:      status,
		Currency:    "USD",
		GeneratedAt: testDay(2026, time.September, 1),
		UpdatedAt:   testDay(2026, time.September, 1),
	})
}

func testDay(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
