package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"salonbook/internal/calendar"
	"salonbook/internal/domain"
	"salonbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2025-06-02 is a Monday.
var monday = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

type fakeStore struct {
	places    map[int64]*models.Place
	employees []models.Employee
	services  map[int64]*models.PlaceService
	closures  []models.PlaceClosedPeriod
	timeOff   []models.EmployeeTimeOff
	bookings  []models.Booking
	calls     int
}

func newFakeStore() *fakeStore {
	hours := models.WorkingHours{
		time.Monday: {Available: true, Start: models.NewClock(9, 0), End: models.NewClock(17, 0)},
	}
	return &fakeStore{
		places: map[int64]*models.Place{
			1: {ID: 1, Name: "Studio", WorkingHours: hours, BookingEnabled: true},
		},
		employees: []models.Employee{{ID: 10, PlaceID: 1, Name: "E", IsActive: true}},
		services: map[int64]*models.PlaceService{
			5: {PlaceID: 1, ServiceID: 5, Name: "Cut", Price: 2500, Duration: 30, IsAvailable: true},
			6: {PlaceID: 1, ServiceID: 6, Name: "Color", Price: 9000, Duration: 90, IsAvailable: false},
		},
	}
}

func (f *fakeStore) GetPlace(_ context.Context, id int64) (*models.Place, error) {
	f.calls++
	p, ok := f.places[id]
	if !ok {
		return nil, domain.NotFoundf("place %d", id)
	}
	return p, nil
}

func (f *fakeStore) GetEmployee(_ context.Context, id int64) (*models.Employee, error) {
	for i := range f.employees {
		if f.employees[i].ID == id {
			e := f.employees[i]
			return &e, nil
		}
	}
	return nil, domain.NotFoundf("employee %d", id)
}

func (f *fakeStore) ListActiveEmployees(_ context.Context, placeID int64) ([]models.Employee, error) {
	var out []models.Employee
	for _, e := range f.employees {
		if e.PlaceID == placeID && e.IsActive {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) GetPlaceService(_ context.Context, placeID, serviceID int64) (*models.PlaceService, error) {
	ps, ok := f.services[serviceID]
	if !ok || ps.PlaceID != placeID {
		return nil, domain.NotFoundf("service %d", serviceID)
	}
	return ps, nil
}

func (f *fakeStore) ListPlaceClosures(_ context.Context, _ int64, _ time.Time) ([]models.PlaceClosedPeriod, error) {
	return f.closures, nil
}

func (f *fakeStore) ListTimeOff(_ context.Context, _ int64, _ time.Time) ([]models.EmployeeTimeOff, error) {
	return f.timeOff, nil
}

func (f *fakeStore) ListActiveBookings(_ context.Context, _ int64, _ time.Time) ([]models.Booking, error) {
	return f.bookings, nil
}

func newResolver(store *fakeStore) *Resolver {
	return NewResolver(
		store,
		store,
		calendar.NewScheduleCalendar(store, 30),
		calendar.NewEmployeeCalendar(store),
		nil,
	)
}

func clk(h, m int) models.Clock { return models.NewClock(h, m) }

func TestResolverOpenMondayScenario(t *testing.T) {
	store := newFakeStore()
	res, err := newResolver(store).GetAvailableSlots(context.Background(), Query{PlaceID: 1, Date: monday})
	require.NoError(t, err)

	assert.Len(t, res.TimeSlots, 16)
	assert.Equal(t, clk(9, 0), res.TimeSlots[0])
	assert.Equal(t, clk(16, 30), res.TimeSlots[15])
	assert.Equal(t, res.TimeSlots, res.AvailableSlots)
	assert.Empty(t, res.BookedSlots)
	assert.True(t, res.IsAvailable)
	assert.Equal(t, []EmployeeRef{{ID: 10, Name: "E"}}, res.AvailableEmployees)
	assert.Empty(t, res.Reason)
}

func TestResolverClosed(t *testing.T) {
	tests := []struct {
		name  string
		date  time.Time
		setup func(*fakeStore)
	}{
		{name: "closed weekday", date: monday.AddDate(0, 0, 1)},
		{
			name: "direct closure",
			date: monday,
			setup: func(s *fakeStore) {
				s.closures = []models.PlaceClosedPeriod{{
					PlaceID: 1, Status: models.ClosureActive,
					DayBlock: models.DayBlock{StartDate: monday, EndDate: monday, IsFullDay: true},
				}}
			},
		},
		{
			name: "yearly closure",
			date: monday,
			setup: func(s *fakeStore) {
				past := time.Date(2001, 6, 2, 0, 0, 0, 0, time.UTC)
				s.closures = []models.PlaceClosedPeriod{{
					PlaceID: 1, Status: models.ClosureActive,
					DayBlock: models.DayBlock{
						StartDate: past, EndDate: past, IsFullDay: true,
						Recurrence: &models.RecurrencePattern{Month: time.June, Day: 2},
					},
				}}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			if tt.setup != nil {
				tt.setup(store)
			}
			res, err := newResolver(store).GetAvailableSlots(context.Background(), Query{PlaceID: 1, Date: tt.date})
			require.NoError(t, err)
			assert.Empty(t, res.TimeSlots)
			assert.Empty(t, res.AvailableSlots)
			assert.False(t, res.IsAvailable)
			assert.Equal(t, calendar.ReasonClosed, res.Reason)
		})
	}
}

func TestResolverNoEmployees(t *testing.T) {
	store := newFakeStore()
	store.employees = nil

	res, err := newResolver(store).GetAvailableSlots(context.Background(), Query{PlaceID: 1, Date: monday})
	require.NoError(t, err)
	assert.Len(t, res.TimeSlots, 16)
	assert.Empty(t, res.AvailableSlots)
	assert.Equal(t, calendar.ReasonNoEmployees, res.Reason)
}

func TestResolverBookingDisabled(t *testing.T) {
	store := newFakeStore()
	store.places[1].BookingEnabled = false

	res, err := newResolver(store).GetAvailableSlots(context.Background(), Query{PlaceID: 1, Date: monday})
	require.NoError(t, err)
	assert.Empty(t, res.AvailableSlots)
	assert.Equal(t, calendar.ReasonBookingOff, res.Reason)
}

func TestResolverBookedSlotIsFloored(t *testing.T) {
	store := newFakeStore()
	store.bookings = []models.Booking{
		{ID: 1, PlaceID: 1, EmployeeID: 10, Date: monday, Time: clk(10, 7), Status: models.StatusConfirmed},
		{ID: 2, PlaceID: 1, EmployeeID: 10, Date: monday, Time: clk(11, 0), Status: models.StatusCancelled},
	}

	res, err := newResolver(store).GetAvailableSlots(context.Background(), Query{PlaceID: 1, Date: monday})
	require.NoError(t, err)
	assert.Equal(t, []models.Clock{clk(10, 0)}, res.BookedSlots)
	assert.NotContains(t, res.AvailableSlots, clk(10, 0))
	assert.Contains(t, res.AvailableSlots, clk(11, 0), "cancelled bookings do not occupy slots")
	assert.Len(t, res.AvailableSlots, 15)
}

func TestResolverAnyEmployeeIsExistential(t *testing.T) {
	store := newFakeStore()
	store.employees = append(store.employees, models.Employee{ID: 11, PlaceID: 1, Name: "F", IsActive: true})
	store.bookings = []models.Booking{
		{ID: 1, PlaceID: 1, EmployeeID: 10, Date: monday, Time: clk(10, 0), Status: models.StatusPending},
	}

	resolver := newResolver(store)

	anyView, err := resolver.GetAvailableSlots(context.Background(), Query{PlaceID: 1, Date: monday})
	require.NoError(t, err)
	assert.Contains(t, anyView.AvailableSlots, clk(10, 0), "F is free at 10:00")
	assert.Equal(t, []models.Clock{clk(10, 0)}, anyView.BookedSlots)

	busyView, err := resolver.GetAvailableSlots(context.Background(), Query{PlaceID: 1, Date: monday, EmployeeID: 10})
	require.NoError(t, err)
	assert.NotContains(t, busyView.AvailableSlots, clk(10, 0))
	assert.Equal(t, []EmployeeRef{{ID: 10, Name: "E"}}, busyView.AvailableEmployees)

	freeView, err := resolver.GetAvailableSlots(context.Background(), Query{PlaceID: 1, Date: monday, EmployeeID: 11})
	require.NoError(t, err)
	assert.Contains(t, freeView.AvailableSlots, clk(10, 0))
	assert.Empty(t, freeView.BookedSlots)
}

func TestResolverAllBusyAtSlot(t *testing.T) {
	store := newFakeStore()
	store.employees = append(store.employees, models.Employee{ID: 11, PlaceID: 1, Name: "F", IsActive: true})
	store.bookings = []models.Booking{
		{ID: 1, PlaceID: 1, EmployeeID: 10, Date: monday, Time: clk(10, 0), Status: models.StatusPending},
	}
	store.timeOff = []models.EmployeeTimeOff{{
		EmployeeID: 11, PlaceID: 1, Status: models.TimeOffApproved,
		DayBlock: models.DayBlock{StartDate: monday, EndDate: monday, HalfDay: models.HalfDayAM},
	}}

	res, err := newResolver(store).GetAvailableSlots(context.Background(), Query{PlaceID: 1, Date: monday})
	require.NoError(t, err)
	assert.NotContains(t, res.AvailableSlots, clk(10, 0))
	assert.Contains(t, res.AvailableSlots, clk(9, 30))
	assert.Contains(t, res.AvailableSlots, clk(12, 0))
	assert.Len(t, res.AvailableEmployees, 2)
}

func TestResolverFullDayTimeOff(t *testing.T) {
	store := newFakeStore()
	store.timeOff = []models.EmployeeTimeOff{{
		EmployeeID: 10, PlaceID: 1, Status: models.TimeOffApproved,
		DayBlock: models.DayBlock{StartDate: monday, EndDate: monday, IsFullDay: true},
	}}

	res, err := newResolver(store).GetAvailableSlots(context.Background(), Query{PlaceID: 1, Date: monday, EmployeeID: 10})
	require.NoError(t, err)
	assert.Len(t, res.TimeSlots, 16)
	assert.Empty(t, res.AvailableSlots)
	assert.Empty(t, res.AvailableEmployees)
	assert.False(t, res.IsAvailable)
}

func TestResolverErrors(t *testing.T) {
	store := newFakeStore()
	store.employees = append(store.employees, models.Employee{ID: 12, PlaceID: 2, Name: "Other", IsActive: true})
	resolver := newResolver(store)
	ctx := context.Background()

	_, err := resolver.GetAvailableSlots(ctx, Query{PlaceID: 99, Date: monday})
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = resolver.GetAvailableSlots(ctx, Query{PlaceID: 1, Date: monday, EmployeeID: 12})
	assert.True(t, errors.Is(err, domain.ErrNotFound), "employee of another place")

	_, err = resolver.GetAvailableSlots(ctx, Query{PlaceID: 1, Date: monday, ServiceID: 6})
	assert.True(t, errors.Is(err, domain.ErrNotFound), "service not available")

	_, err = resolver.GetAvailableSlots(ctx, Query{PlaceID: 1})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	res, err := resolver.GetAvailableSlots(ctx, Query{PlaceID: 1, Date: monday, ServiceID: 5})
	require.NoError(t, err)
	assert.Len(t, res.AvailableSlots, 16)
}
