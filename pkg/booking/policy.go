package booking

import (
	"fmt"
	"time"
)

// PenaltyBand applies when the time to check-in falls inside WithinHours.
type PenaltyBand struct {
	WithinHours int   `json:"within_hours"`
	PenaltyBps  int64 `json:"penalty_bps"`
}

// CancellationPolicy defines the free-cancellation window and the penalty
// schedule that applies once the window has closed. Bands are ordered by
// ascending WithinHours with non-increasing penalties, so cancelling closer
// to check-in never costs less.
type CancellationPolicy struct {
	FreeCancelBeforeHours int           `json:"free_cancel_before_hours"`
	Bands                 []PenaltyBand `json:"bands"`
}

// Validate rejects schedules whose bands are unordered or non-monotonic.
func (policy CancellationPolicy) Validate() error {
	if policy.FreeCancelBeforeHours < 0 {
		return fmt.Errorf("%w: negative free-cancel window", ErrInvalidPolicy)
	}
	previousHours := 0
	previousBps := int64(basisPointDivisor + 1)
	for index, band := range policy.Bands {
		if band.WithinHours <= 0 {
			return fmt.Errorf("%w: band %d has non-positive window", ErrInvalidPolicy, index)
		}
		if band.PenaltyBps < 0 || band.PenaltyBps > basisPointDivisor {
			return fmt.Errorf("%w: band %d penalty out of range", ErrInvalidPolicy, index)
		}
		if index > 0 && band.WithinHours <= previousHours {
			return fmt.Errorf("%w: bands must have strictly increasing windows", ErrInvalidPolicy)
		}
		if band.PenaltyBps > previousBps {
			return fmt.Errorf("%w: penalties must not grow with distance from check-in", ErrInvalidPolicy)
		}
		previousHours = band.WithinHours
		previousBps = band.PenaltyBps
	}
	return nil
}

// CancellationOutcome is the penalty/refundable split computed at cancel time.
type CancellationOutcome struct {
	PenaltyCents    AmountCents
	RefundableCents AmountCents
	Note            string
}

const adminOverrideNote = "penalty waived by admin override"

// ComputeCancellation splits the amount paid into penalty and refundable.
// Hard-mode cancellations force the penalty to zero regardless of the window;
// the waiver is recorded in the outcome note for audit.
func ComputeCancellation(amountPaid AmountCents, checkIn time.Time, policy CancellationPolicy, now time.Time, mode CancelMode) CancellationOutcome {
	if mode == CancelModeHard {
		return CancellationOutcome{
			PenaltyCents:    0,
			RefundableCents: amountPaid,
			Note:            adminOverrideNote,
		}
	}

	freeBoundary := checkIn.Add(-time.Duration(policy.FreeCancelBeforeHours) * time.Hour)
	if now.Before(freeBoundary) {
		return CancellationOutcome{PenaltyCents: 0, RefundableCents: amountPaid}
	}

	penalty := penaltyFor(amountPaid, checkIn, policy, now)
	refundable := amountPaid - penalty
	if refundable < 0 {
		refundable = 0
	}
	return CancellationOutcome{PenaltyCents: penalty, RefundableCents: refundable}
}

func penaltyFor(amountPaid AmountCents, checkIn time.Time, policy CancellationPolicy, now time.Time) AmountCents {
	if len(policy.Bands) == 0 {
		return 0
	}
	hoursToCheckIn := checkIn.Sub(now).Hours()
	for _, band := range policy.Bands {
		if hoursToCheckIn <= float64(band.WithinHours) {
			return AmountCents(amountPaid.Int64() * band.PenaltyBps / basisPointDivisor)
		}
	}
	// Past the free boundary but outside every band: the loosest band applies.
	last := policy.Bands[len(policy.Bands)-1]
	return AmountCents(amountPaid.Int64() * last.PenaltyBps / basisPointDivisor)
}
