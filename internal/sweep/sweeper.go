// Package sweep reclaims calendar inventory held by expired holds and
// pending bookings whose payment window lapsed. Lazy read-time expiry stays
// authoritative; the sweeper only persists what reads already report.
package sweep

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lodgeworks/reserve/pkg/booking"
)

const defaultInterval = time.Minute

// Sweeper periodically drives booking.Service.SweepExpired.
type Sweeper struct {
	bookings *booking.Service
	interval time.Duration
	logger   *zap.Logger
}

// New wires a Sweeper. A non-positive interval falls back to one minute.
func New(bookings *booking.Service, interval time.Duration, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = defaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{bookings: bookings, interval: interval, logger: logger}
}

// Run sweeps on a ticker until the context is cancelled. Errors are logged
// and retried on the next tick; a transient store failure never stops the
// loop.
func (sweeper *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(sweeper.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reclaimed, err := sweeper.bookings.SweepExpired(ctx)
			if err != nil {
				sweeper.logger.Warn("sweep failed", zap.Error(err))
				continue
			}
			if reclaimed > 0 {
				sweeper.logger.Info("sweep reclaimed inventory", zap.Int("count", reclaimed))
			}
		}
	}
}
