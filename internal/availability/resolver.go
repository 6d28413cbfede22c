package availability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"salonbook/internal/calendar"
	"salonbook/internal/domain"
	"salonbook/internal/models"
	"salonbook/internal/slots"

	"github.com/rs/zerolog"
)

// Query selects the availability view. Zero EmployeeID means any employee.
type Query struct {
	PlaceID    int64
	Date       time.Time
	EmployeeID int64
	ServiceID  int64
}

type EmployeeRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Result is the per-slot decision for one place and date.
type Result struct {
	PlaceID            int64          `json:"place_id"`
	Date               string         `json:"date"`
	EmployeeID         int64          `json:"employee_id,omitempty"`
	TimeSlots          []models.Clock `json:"time_slots"`
	AvailableSlots     []models.Clock `json:"available_slots"`
	BookedSlots        []models.Clock `json:"booked_slots"`
	IsAvailable        bool           `json:"is_available"`
	AvailableEmployees []EmployeeRef  `json:"available_employees"`
	Reason             string         `json:"reason,omitempty"`
}

// Resolver merges place hours, closures, employee hours, time-off and active
// bookings into one slot view.
type Resolver struct {
	catalog  domain.CatalogReader
	bookings domain.BookingReader
	schedule *calendar.ScheduleCalendar
	staff    *calendar.EmployeeCalendar
	logger   *zerolog.Logger
}

func NewResolver(
	catalog domain.CatalogReader,
	bookings domain.BookingReader,
	schedule *calendar.ScheduleCalendar,
	staff *calendar.EmployeeCalendar,
	logger *zerolog.Logger,
) *Resolver {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "availability").Logger()
	return &Resolver{catalog: catalog, bookings: bookings, schedule: schedule, staff: staff, logger: &l}
}

func emptyResult(q Query, reason string) *Result {
	return &Result{
		PlaceID:            q.PlaceID,
		Date:               q.Date.Format(models.DateLayout),
		EmployeeID:         q.EmployeeID,
		TimeSlots:          []models.Clock{},
		AvailableSlots:     []models.Clock{},
		BookedSlots:        []models.Clock{},
		AvailableEmployees: []EmployeeRef{},
		Reason:             reason,
	}
}

// GetAvailableSlots computes the open-slot view of a place on a date,
// either for one employee or for any employee.
func (r *Resolver) GetAvailableSlots(ctx context.Context, q Query) (*Result, error) {
	if q.PlaceID <= 0 {
		return nil, domain.Validationf("place_id is required")
	}
	if q.Date.IsZero() {
		return nil, domain.Validationf("date is required")
	}
	q.Date = models.DateOf(q.Date)

	place, err := r.catalog.GetPlace(ctx, q.PlaceID)
	if err != nil {
		return nil, err
	}

	if q.ServiceID > 0 {
		ps, err := r.catalog.GetPlaceService(ctx, q.PlaceID, q.ServiceID)
		if err != nil {
			return nil, err
		}
		if !ps.IsAvailable {
			return nil, domain.NotFoundf("service %d is not offered at place %d", q.ServiceID, q.PlaceID)
		}
	}

	var scoped *models.Employee
	if q.EmployeeID > 0 {
		scoped, err = r.catalog.GetEmployee(ctx, q.EmployeeID)
		if err != nil {
			return nil, err
		}
		if scoped.PlaceID != place.ID || !scoped.IsActive {
			return nil, domain.NotFoundf("employee %d at place %d", q.EmployeeID, place.ID)
		}
	}

	day, err := r.schedule.Day(ctx, place, q.Date)
	if err != nil {
		return nil, err
	}
	if !day.Open {
		return emptyResult(q, calendar.ReasonClosed), nil
	}

	res := emptyResult(q, "")
	res.TimeSlots = day.Slots()

	if !place.BookingEnabled {
		res.Reason = calendar.ReasonBookingOff
		return res, nil
	}

	employees, err := r.catalog.ListActiveEmployees(ctx, place.ID)
	if err != nil {
		return nil, err
	}
	if len(employees) == 0 {
		res.Reason = calendar.ReasonNoEmployees
		return res, nil
	}
	if scoped != nil {
		employees = []models.Employee{*scoped}
	}

	staffDay, err := r.staff.Day(ctx, place.ID, q.Date)
	if err != nil {
		return nil, err
	}

	active, err := r.bookings.ListActiveBookings(ctx, place.ID, q.Date)
	if err != nil {
		return nil, fmt.Errorf("failed to load bookings: %w", err)
	}
	booked := bookedByEmployee(day, active)

	bookedUnion := slots.NewSet()
	for i := range employees {
		for s := range booked[employees[i].ID] {
			bookedUnion.Add(s)
		}
	}

	free := make(map[int64]bool, len(employees))
	for _, slot := range res.TimeSlots {
		open := false
		for i := range employees {
			emp := &employees[i]
			if booked[emp.ID].Has(slot) || !staffDay.IsWorking(emp, slot) {
				continue
			}
			open = true
			free[emp.ID] = true
		}
		if open {
			res.AvailableSlots = append(res.AvailableSlots, slot)
		}
	}

	res.BookedSlots = bookedUnion.Sorted()
	for i := range employees {
		if free[employees[i].ID] {
			res.AvailableEmployees = append(res.AvailableEmployees, EmployeeRef{ID: employees[i].ID, Name: employees[i].Name})
		}
	}
	sort.Slice(res.AvailableEmployees, func(i, j int) bool { return res.AvailableEmployees[i].ID < res.AvailableEmployees[j].ID })
	res.IsAvailable = len(res.AvailableSlots) > 0

	r.logger.Debug().
		Int64("place_id", place.ID).
		Str("date", res.Date).
		Int64("employee_id", q.EmployeeID).
		Int("slots", len(res.TimeSlots)).
		Int("available", len(res.AvailableSlots)).
		Msg("availability resolved")

	return res, nil
}

// bookedByEmployee floors every booking time onto the day grid.
func bookedByEmployee(day *calendar.PlaceDay, bookings []models.Booking) map[int64]slots.Set {
	out := make(map[int64]slots.Set)
	for _, b := range bookings {
		if !b.IsActive() || b.EmployeeID == 0 {
			continue
		}
		set, ok := out[b.EmployeeID]
		if !ok {
			set = slots.NewSet()
			out[b.EmployeeID] = set
		}
		set.Add(day.SlotOf(b.Time))
	}
	return out
}
