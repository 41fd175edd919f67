package booking

import (
	"fmt"
	"time"
)

// Quote is the priced breakdown for a stay. Producing one never touches
// inventory or persists anything.
type Quote struct {
	Nights           int
	BaseCents        AmountCents
	CleaningFeeCents AmountCents
	ServiceFeeCents  AmountCents
	TaxCents         AmountCents
	TotalCents       AmountCents
	Currency         string
}

// ComputeQuote prices a stay from the property configuration. Overrides are
// additive per-night deltas; fees and taxes derive deterministically from the
// base amount.
func ComputeQuote(property Property, overrides []RateOverride, checkIn, checkOut time.Time, guests int, now time.Time) (Quote, error) {
	if err := ValidateStay(property, checkIn, checkOut, guests, now); err != nil {
		return Quote{}, err
	}
	return priceStay(property, overrides, checkIn, checkOut), nil
}

func priceStay(property Property, overrides []RateOverride, checkIn, checkOut time.Time) Quote {
	checkIn = NormalizeDate(checkIn)
	checkOut = NormalizeDate(checkOut)
	nights := NightsBetween(checkIn, checkOut)

	base := int64(nights) * property.NightlyRateCents.Int64()
	for _, override := range overrides {
		date := NormalizeDate(override.Date)
		if !date.Before(checkIn) && date.Before(checkOut) {
			base += override.DeltaCents.Int64()
		}
	}
	if base < 0 {
		base = 0
	}

	serviceFee := base * property.ServiceFeeBps / basisPointDivisor
	cleaning := property.CleaningFeeCents.Int64()
	taxes := (base + cleaning + serviceFee) * property.TaxBps / basisPointDivisor
	total := base + cleaning + serviceFee + taxes

	return Quote{
		Nights:           nights,
		BaseCents:        AmountCents(base),
		CleaningFeeCents: AmountCents(cleaning),
		ServiceFeeCents:  AmountCents(serviceFee),
		TaxCents:         AmountCents(taxes),
		TotalCents:       AmountCents(total),
		Currency:         property.Currency,
	}
}

// ValidateStay checks the stay constraints shared by quoting and reserving.
func ValidateStay(property Property, checkIn, checkOut time.Time, guests int, now time.Time) error {
	checkIn = NormalizeDate(checkIn)
	checkOut = NormalizeDate(checkOut)
	if !checkOut.After(checkIn) {
		return fmt.Errorf("%w: check-out must be after check-in", ErrValidation)
	}
	if checkIn.Before(NormalizeDate(now)) {
		return fmt.Errorf("%w: check-in must not be in the past", ErrValidation)
	}
	nights := NightsBetween(checkIn, checkOut)
	if property.MinNights > 0 && nights < property.MinNights {
		return fmt.Errorf("%w: stay shorter than %d nights", ErrValidation, property.MinNights)
	}
	if property.MaxNights > 0 && nights > property.MaxNights {
		return fmt.Errorf("%w: stay longer than %d nights", ErrValidation, property.MaxNights)
	}
	if guests < 1 {
		return fmt.Errorf("%w: at least one guest is required", ErrValidation)
	}
	if property.MaxGuests > 0 && guests > property.MaxGuests {
		return fmt.Errorf("%w: property sleeps at most %d guests", ErrValidation, property.MaxGuests)
	}
	return nil
}
