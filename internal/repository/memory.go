package repository

import (
	"context"
	"sync"
	"time"

	"salonbook/internal/availability"
)

// MemoryAvailabilityCache is the in-process fallback used when Redis is
// unavailable or not configured.
type MemoryAvailabilityCache struct {
	mu   sync.Mutex
	days map[string]map[string]memoryEntry
	ttl  time.Duration
	now  func() time.Time
}

type memoryEntry struct {
	result    *availability.Result
	expiresAt time.Time
}

func NewMemoryAvailabilityCache(ttl time.Duration) *MemoryAvailabilityCache {
	return &MemoryAvailabilityCache{
		days: make(map[string]map[string]memoryEntry),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (r *MemoryAvailabilityCache) Get(_ context.Context, q availability.Query) (*availability.Result, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	views, ok := r.days[q.DayKey()]
	if !ok {
		return nil, false, nil
	}
	entry, ok := views[q.ViewKey()]
	if !ok {
		return nil, false, nil
	}
	if r.now().After(entry.expiresAt) {
		delete(views, q.ViewKey())
		return nil, false, nil
	}
	return entry.result, true, nil
}

func (r *MemoryAvailabilityCache) Set(_ context.Context, q availability.Query, res *availability.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	views, ok := r.days[q.DayKey()]
	if !ok {
		views = make(map[string]memoryEntry)
		r.days[q.DayKey()] = views
	}
	views[q.ViewKey()] = memoryEntry{result: res, expiresAt: r.now().Add(r.ttl)}
	return nil
}

func (r *MemoryAvailabilityCache) InvalidateDay(_ context.Context, placeID int64, date time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.days, availability.Query{PlaceID: placeID, Date: date}.DayKey())
	return nil
}
