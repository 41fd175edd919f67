package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service contains the reservation domain logic over a Store.
type Service struct {
	store         Store
	nowFn         func() time.Time
	logger        OperationLogger
	holdTTL       time.Duration
	paymentWindow time.Duration
}

// NewService wires a Service.
func NewService(store Store, now func() time.Time, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{
		store:         store,
		nowFn:         now,
		holdTTL:       defaultHoldTTL,
		paymentWindow: defaultPaymentWindow,
	}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// Quote prices a stay without touching inventory.
func (service *Service) Quote(ctx context.Context, propertyID string, checkIn, checkOut time.Time, guests int) (Quote, error) {
	quote, err := service.quote(ctx, propertyID, checkIn, checkOut, guests)
	service.logOperation(ctx, OperationLog{
		Operation:  operationQuote,
		PropertyID: propertyID,
		Amount:     quote.TotalCents,
		Error:      err,
	})
	return quote, err
}

func (service *Service) quote(ctx context.Context, propertyID string, checkIn, checkOut time.Time, guests int) (Quote, error) {
	property, err := service.store.GetProperty(ctx, propertyID)
	if err != nil {
		return Quote{}, err
	}
	overrides, err := service.store.ListRateOverrides(ctx, propertyID, NormalizeDate(checkIn), NormalizeDate(checkOut))
	if err != nil {
		return Quote{}, err
	}
	return ComputeQuote(property, overrides, checkIn, checkOut, guests, service.nowFn())
}

// Reserve atomically places a hold on a date range. The overlap check and the
// hold insertion run in one transaction; a conflicting range fails the whole
// call with no partial state.
func (service *Service) Reserve(ctx context.Context, propertyID string, checkIn, checkOut time.Time, guests int) (Hold, error) {
	var hold Hold
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		property, err := transactionStore.GetPropertyForUpdate(ctx, propertyID)
		if err != nil {
			return err
		}
		now := service.nowFn()
		if err := ValidateStay(property, checkIn, checkOut, guests, now); err != nil {
			return err
		}
		start := NormalizeDate(checkIn)
		end := NormalizeDate(checkOut)
		blocking, err := transactionStore.ListBlockingEvents(ctx, propertyID, start, end, now)
		if err != nil {
			return err
		}
		if len(blocking) > 0 {
			conflicts := make([]DateRange, 0, len(blocking))
			for _, event := range blocking {
				conflicts = append(conflicts, DateRange{Start: event.StartDate, End: event.EndDate})
			}
			return &ConflictError{PropertyID: propertyID, Conflicts: conflicts}
		}
		expiresAt := now.Add(service.holdTTL)
		hold = Hold{
			ID:         uuid.NewString(),
			PropertyID: propertyID,
			CheckIn:    start,
			CheckOut:   end,
			Guests:     guests,
			ExpiresAt:  expiresAt,
			Status:     HoldStatusActive,
			CreatedAt:  now,
		}
		if err := transactionStore.CreateHold(ctx, hold); err != nil {
			return err
		}
		return transactionStore.CreateAvailabilityEvent(ctx, AvailabilityEvent{
			ID:         uuid.NewString(),
			PropertyID: propertyID,
			Kind:       AvailabilityKindHold,
			StartDate:  start,
			EndDate:    end,
			RefID:      hold.ID,
			ExpiresAt:  &expiresAt,
		})
	})
	service.logOperation(ctx, OperationLog{
		Operation:  operationReserve,
		PropertyID: propertyID,
		HoldID:     hold.ID,
		Error:      operationError,
	})
	if operationError != nil {
		return Hold{}, operationError
	}
	return hold, nil
}

// GetHold reads a hold, reporting expiry lazily: an active hold past its TTL
// is returned as expired even before the sweeper has persisted that fact.
func (service *Service) GetHold(ctx context.Context, holdID string) (Hold, error) {
	hold, err := service.store.GetHold(ctx, holdID)
	if err != nil {
		return Hold{}, err
	}
	if hold.Status == HoldStatusActive && !hold.ExpiresAt.After(service.nowFn()) {
		hold.Status = HoldStatusExpired
	}
	return hold, nil
}

// ReleaseHold cancels an active hold before conversion, freeing its range.
func (service *Service) ReleaseHold(ctx context.Context, holdID string) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		hold, err := transactionStore.GetHold(ctx, holdID)
		if err != nil {
			return err
		}
		if hold.Status != HoldStatusActive {
			return ErrHoldClosed
		}
		if err := transactionStore.UpdateHoldStatus(ctx, holdID, HoldStatusActive, HoldStatusReleased); err != nil {
			return err
		}
		return transactionStore.DeleteAvailabilityEvent(ctx, holdID)
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationReleaseHold,
		HoldID:    holdID,
		Error:     operationError,
	})
	return operationError
}

// SweepExpired reclaims inventory held by expired holds and stale pending
// bookings. Lazy read-time expiry remains authoritative; the sweep just keeps
// abandoned sessions from cluttering the calendar.
func (service *Service) SweepExpired(ctx context.Context) (int, error) {
	now := service.nowFn()
	reclaimed := 0

	expiredHolds, err := service.store.ListExpiredHolds(ctx, now, defaultSweepBatch)
	if err != nil {
		return 0, err
	}
	for _, hold := range expiredHolds {
		holdID := hold.ID
		sweepError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
			if err := transactionStore.UpdateHoldStatus(ctx, holdID, HoldStatusActive, HoldStatusExpired); err != nil {
				return err
			}
			return transactionStore.DeleteAvailabilityEvent(ctx, holdID)
		})
		if sweepError == nil {
			reclaimed++
		}
	}

	staleBookings, err := service.store.ListExpiredPendingBookings(ctx, now, defaultSweepBatch)
	if err != nil {
		return reclaimed, err
	}
	for _, stale := range staleBookings {
		if err := service.ExpirePaymentWindow(ctx, stale.ID); err == nil {
			reclaimed++
		}
	}
	service.logOperation(ctx, OperationLog{
		Operation: operationSweep,
		Amount:    AmountCents(reclaimed),
	})
	return reclaimed, nil
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}
