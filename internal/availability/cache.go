package availability

import (
	"context"
	"fmt"
	"time"

	"salonbook/internal/metrics"
	"salonbook/internal/models"

	"github.com/rs/zerolog"
)

// Cache stores resolved views. Implementations invalidate every view of a
// place and date at once.
type Cache interface {
	Get(ctx context.Context, q Query) (*Result, bool, error)
	Set(ctx context.Context, q Query, res *Result) error
	InvalidateDay(ctx context.Context, placeID int64, date time.Time) error
}

// DayKey identifies all views of a place on a date.
func (q Query) DayKey() string {
	return fmt.Sprintf("%d:%s", q.PlaceID, models.DateOf(q.Date).Format(models.DateLayout))
}

// ViewKey identifies one view within its day.
func (q Query) ViewKey() string {
	return fmt.Sprintf("e%d:s%d", q.EmployeeID, q.ServiceID)
}

// CachedResolver is a read-through cache in front of a Resolver. Cache
// failures degrade to a direct resolve.
type CachedResolver struct {
	resolver *Resolver
	cache    Cache
	logger   *zerolog.Logger
}

func NewCachedResolver(resolver *Resolver, cache Cache, logger *zerolog.Logger) *CachedResolver {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "availability-cache").Logger()
	return &CachedResolver{resolver: resolver, cache: cache, logger: &l}
}

func (c *CachedResolver) GetAvailableSlots(ctx context.Context, q Query) (*Result, error) {
	if c.cache == nil || q.Date.IsZero() {
		return c.resolver.GetAvailableSlots(ctx, q)
	}
	q.Date = models.DateOf(q.Date)

	res, ok, err := c.cache.Get(ctx, q)
	switch {
	case err != nil:
		metrics.IncAvailabilityCache("error")
		c.logger.Warn().Err(err).Str("day", q.DayKey()).Msg("availability cache read failed")
	case ok:
		metrics.IncAvailabilityCache("hit")
		return res, nil
	default:
		metrics.IncAvailabilityCache("miss")
	}

	res, err = c.resolver.GetAvailableSlots(ctx, q)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, q, res); err != nil {
		c.logger.Warn().Err(err).Str("day", q.DayKey()).Msg("availability cache write failed")
	}
	return res, nil
}

// Invalidate drops every cached view of the place on date.
func (c *CachedResolver) Invalidate(ctx context.Context, placeID int64, date time.Time) {
	if c.cache == nil {
		return
	}
	if err := c.cache.InvalidateDay(ctx, placeID, date); err != nil {
		c.logger.Warn().Err(err).Int64("place_id", placeID).Str("date", date.Format(models.DateLayout)).
			Msg("availability cache invalidation failed")
	}
}
