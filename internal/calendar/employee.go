package calendar

import (
	"context"
	"fmt"
	"time"

	"salonbook/internal/domain"
	"salonbook/internal/models"
)

// EmployeeCalendar resolves employee weekly hours against approved time-off.
type EmployeeCalendar struct {
	timeOff domain.TimeOffReader
}

func NewEmployeeCalendar(timeOff domain.TimeOffReader) *EmployeeCalendar {
	return &EmployeeCalendar{timeOff: timeOff}
}

// StaffDay holds the approved time-off of a place's employees on one date.
type StaffDay struct {
	Date    time.Time
	blocked map[int64][]models.DayBlock
}

// Day loads the time-off of all employees of placeID covering date.
func (c *EmployeeCalendar) Day(ctx context.Context, placeID int64, date time.Time) (*StaffDay, error) {
	date = models.DateOf(date)
	records, err := c.timeOff.ListTimeOff(ctx, placeID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load time off: %w", err)
	}

	day := &StaffDay{Date: date, blocked: make(map[int64][]models.DayBlock)}
	for _, r := range records {
		// Pending, rejected and cancelled requests never affect scheduling.
		if r.Status != models.TimeOffApproved || !r.Covers(date) {
			continue
		}
		day.blocked[r.EmployeeID] = append(day.blocked[r.EmployeeID], r.DayBlock)
	}
	return day, nil
}

// IsWorking reports whether emp is scheduled at slot and not on approved time-off.
func (d *StaffDay) IsWorking(emp *models.Employee, slot models.Clock) bool {
	if !emp.IsActive {
		return false
	}
	if len(emp.WorkingHours) > 0 {
		hours, ok := emp.WorkingHours.For(d.Date.Weekday())
		if !ok || slot.Before(hours.Start) || !slot.Before(hours.End) {
			return false
		}
	}
	for _, b := range d.blocked[emp.ID] {
		if b.BlocksSlot(d.Date, slot) {
			return false
		}
	}
	return true
}

// OnTimeOff reports whether an approved time-off record removes slot for emp.
func (d *StaffDay) OnTimeOff(employeeID int64, slot models.Clock) bool {
	for _, b := range d.blocked[employeeID] {
		if b.BlocksSlot(d.Date, slot) {
			return true
		}
	}
	return false
}

// IsWorking is the single-slot form of Day followed by StaffDay.IsWorking.
func (c *EmployeeCalendar) IsWorking(ctx context.Context, emp *models.Employee, date time.Time, slot models.Clock) (bool, error) {
	day, err := c.Day(ctx, emp.PlaceID, date)
	if err != nil {
		return false, err
	}
	return day.IsWorking(emp, slot), nil
}
