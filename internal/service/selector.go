package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"salonbook/internal/domain"
	"salonbook/internal/models"
)

const (
	StrategyFirstFree   = "first_free"
	StrategyRoundRobin  = "round_robin"
	StrategyLeastLoaded = "least_loaded"
)

// EmployeeSelector orders the candidates an any-employee booking tries.
// The guard takes the first candidate that is free.
type EmployeeSelector interface {
	Order(ctx context.Context, tx domain.BookingTx, placeID int64, date time.Time, candidates []models.Employee) ([]models.Employee, error)
}

// NewSelector builds the strategy registered under name.
func NewSelector(name string) (EmployeeSelector, error) {
	switch name {
	case "", StrategyFirstFree:
		return FirstFree{}, nil
	case StrategyRoundRobin:
		return NewRoundRobin(), nil
	case StrategyLeastLoaded:
		return LeastLoaded{}, nil
	default:
		return nil, fmt.Errorf("unknown selection strategy %q", name)
	}
}

func byID(employees []models.Employee) []models.Employee {
	out := append([]models.Employee(nil), employees...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FirstFree tries employees in id order.
type FirstFree struct{}

func (FirstFree) Order(_ context.Context, _ domain.BookingTx, _ int64, _ time.Time, candidates []models.Employee) ([]models.Employee, error) {
	return byID(candidates), nil
}

// RoundRobin rotates the starting employee per place on every call. State
// is per process.
type RoundRobin struct {
	mu   sync.Mutex
	next map[int64]int
}

func NewRoundRobin() *RoundRobin {
	return &RoundRobin{next: make(map[int64]int)}
}

func (r *RoundRobin) Order(_ context.Context, _ domain.BookingTx, placeID int64, _ time.Time, candidates []models.Employee) ([]models.Employee, error) {
	ordered := byID(candidates)
	if len(ordered) == 0 {
		return ordered, nil
	}

	r.mu.Lock()
	start := r.next[placeID] % len(ordered)
	r.next[placeID] = start + 1
	r.mu.Unlock()

	rotated := make([]models.Employee, 0, len(ordered))
	rotated = append(rotated, ordered[start:]...)
	return append(rotated, ordered[:start]...), nil
}

// LeastLoaded prefers the employee with the fewest active bookings that day,
// ties broken by id.
type LeastLoaded struct{}

func (LeastLoaded) Order(ctx context.Context, tx domain.BookingTx, _ int64, date time.Time, candidates []models.Employee) ([]models.Employee, error) {
	ordered := byID(candidates)
	load := make(map[int64]int, len(ordered))
	for _, e := range ordered {
		n, err := tx.CountActiveBookings(ctx, e.ID, date)
		if err != nil {
			return nil, err
		}
		load[e.ID] = n
	}
	sort.SliceStable(ordered, func(i, j int) bool { return load[ordered[i].ID] < load[ordered[j].ID] })
	return ordered, nil
}
