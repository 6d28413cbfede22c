package calendar

import (
	"context"
	"fmt"
	"time"

	"salonbook/internal/domain"
	"salonbook/internal/models"
	"salonbook/internal/slots"
)

const (
	ReasonClosed      = "closed"
	ReasonBookingOff  = "booking disabled"
	ReasonNoEmployees = "no employees"
)

// ScheduleCalendar resolves a place's weekly hours against its closures.
type ScheduleCalendar struct {
	closures  domain.ClosureReader
	slotWidth int
}

func NewScheduleCalendar(closures domain.ClosureReader, slotWidth int) *ScheduleCalendar {
	if slotWidth <= 0 {
		slotWidth = models.DefaultSlotMinutes
	}
	return &ScheduleCalendar{closures: closures, slotWidth: slotWidth}
}

// PlaceDay is the resolved schedule of one place on one date.
type PlaceDay struct {
	Date    time.Time
	Open    bool
	Hours   models.DayHours
	Grid    slots.Grid
	HalfDay []models.HalfDayPeriod
}

// Day loads closures once and resolves the date.
func (c *ScheduleCalendar) Day(ctx context.Context, place *models.Place, date time.Time) (*PlaceDay, error) {
	date = models.DateOf(date)
	day := &PlaceDay{Date: date}

	hours, ok := place.WorkingHours.For(date.Weekday())
	if !ok {
		return day, nil
	}

	closures, err := c.closures.ListPlaceClosures(ctx, place.ID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load closures: %w", err)
	}

	for _, cl := range closures {
		if cl.Status != models.ClosureActive || !cl.Covers(date) {
			continue
		}
		if cl.IsFullDay {
			return day, nil
		}
		day.HalfDay = append(day.HalfDay, cl.HalfDay)
	}

	day.Open = true
	day.Hours = hours
	day.Grid = slots.NewGrid(hours.Start, hours.End, c.slotWidth)
	return day, nil
}

// IsOpen reports whether the place accepts any booking on date.
func (c *ScheduleCalendar) IsOpen(ctx context.Context, place *models.Place, date time.Time) (bool, error) {
	day, err := c.Day(ctx, place, date)
	if err != nil {
		return false, err
	}
	return day.Open, nil
}

// GetWindow returns the weekday's window, or false when the place is closed.
func (c *ScheduleCalendar) GetWindow(ctx context.Context, place *models.Place, date time.Time) (models.DayHours, bool, error) {
	day, err := c.Day(ctx, place, date)
	if err != nil {
		return models.DayHours{}, false, err
	}
	return day.Hours, day.Open, nil
}

// Allows reports whether slot is a bookable slot start of the day.
func (d *PlaceDay) Allows(slot models.Clock) bool {
	if !d.Open || !d.Grid.Contains(slot) {
		return false
	}
	for _, p := range d.HalfDay {
		if p.Blocks(slot) {
			return false
		}
	}
	return true
}

// Slots returns the day's slots with half-day closures removed.
func (d *PlaceDay) Slots() []models.Clock {
	if !d.Open {
		return []models.Clock{}
	}
	all := d.Grid.Slots()
	out := make([]models.Clock, 0, len(all))
	for _, s := range all {
		if d.Allows(s) {
			out = append(out, s)
		}
	}
	return out
}

// SlotOf floors t onto the day's grid.
func (d *PlaceDay) SlotOf(t models.Clock) models.Clock {
	if !d.Open {
		return t
	}
	return d.Grid.SlotOf(t)
}
