package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"salonbook/internal/availability"
	"salonbook/internal/logging"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverAvailabilityCache serves from primary until it fails, then from
// fallback, probing primary again once per recoveryInterval. Invalidations
// always go to both so neither can serve a stale day after a switch.
type FailoverAvailabilityCache struct {
	primary  availability.Cache
	fallback availability.Cache
	logger   *zerolog.Logger

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverAvailabilityCache(primary, fallback availability.Cache, logger *zerolog.Logger) *FailoverAvailabilityCache {
	return &FailoverAvailabilityCache{
		primary:  primary,
		fallback: fallback,
		logger:   logging.Component(logger, "availability-cache-failover"),
	}
}

func (r *FailoverAvailabilityCache) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary availability cache failed, falling back to memory")
	r.isDown.Store(true)
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
}

func (r *FailoverAvailabilityCache) shouldProbe() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Since(r.lastCheck) <= recoveryInterval {
		return false
	}
	r.lastCheck = time.Now()
	return true
}

func (r *FailoverAvailabilityCache) Get(ctx context.Context, q availability.Query) (*availability.Result, bool, error) {
	if !r.isDown.Load() {
		res, ok, err := r.primary.Get(ctx, q)
		if err == nil {
			return res, ok, nil
		}
		r.markDown(err)
	} else if r.shouldProbe() {
		res, ok, err := r.primary.Get(ctx, q)
		if err == nil {
			r.logger.Info().Msg("Primary availability cache recovered")
			r.isDown.Store(false)
			return res, ok, nil
		}
	}

	return r.fallback.Get(ctx, q)
}

func (r *FailoverAvailabilityCache) Set(ctx context.Context, q availability.Query, res *availability.Result) error {
	if !r.isDown.Load() {
		err := r.primary.Set(ctx, q, res)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.Set(ctx, q, res)
}

func (r *FailoverAvailabilityCache) InvalidateDay(ctx context.Context, placeID int64, date time.Time) error {
	fallbackErr := r.fallback.InvalidateDay(ctx, placeID, date)

	if err := r.primary.InvalidateDay(ctx, placeID, date); err != nil && !r.isDown.Load() {
		r.markDown(err)
	}
	return fallbackErr
}
