package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DayHours is the opening window of one weekday.
type DayHours struct {
	Available bool  `json:"available" yaml:"available"`
	Start     Clock `json:"start" yaml:"start"`
	End       Clock `json:"end" yaml:"end"`
}

// WorkingHours maps weekdays to their opening window. A missing weekday is closed.
type WorkingHours map[time.Weekday]DayHours

// For returns the window of the weekday when it is available and non-empty.
func (w WorkingHours) For(day time.Weekday) (DayHours, bool) {
	h, ok := w[day]
	if !ok || !h.Available || !h.Start.Before(h.End) {
		return DayHours{}, false
	}
	return h, true
}

func (w WorkingHours) Validate() error {
	for day, h := range w {
		if !h.Available {
			continue
		}
		if !h.Start.IsValid() || !h.End.IsValid() {
			return fmt.Errorf("%s: invalid time of day", strings.ToLower(day.String()))
		}
		if !h.Start.Before(h.End) {
			return fmt.Errorf("%s: start %s must be before end %s", strings.ToLower(day.String()), h.Start, h.End)
		}
	}
	return nil
}

func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || name == full[:3] {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", s)
}

func (w WorkingHours) toNamed() map[string]DayHours {
	out := make(map[string]DayHours, len(w))
	for day, h := range w {
		out[strings.ToLower(day.String())] = h
	}
	return out
}

func workingHoursFromNamed(named map[string]DayHours) (WorkingHours, error) {
	out := make(WorkingHours, len(named))
	for name, h := range named {
		day, err := ParseWeekday(name)
		if err != nil {
			return nil, err
		}
		out[day] = h
	}
	return out, nil
}

func (w WorkingHours) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.toNamed())
}

func (w *WorkingHours) UnmarshalJSON(data []byte) error {
	var named map[string]DayHours
	if err := json.Unmarshal(data, &named); err != nil {
		return err
	}
	parsed, err := workingHoursFromNamed(named)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

func (w *WorkingHours) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var named map[string]DayHours
	if err := unmarshal(&named); err != nil {
		return err
	}
	parsed, err := workingHoursFromNamed(named)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// HalfDayPeriod restricts a block to one half of the day.
type HalfDayPeriod string

const (
	HalfDayAM HalfDayPeriod = "AM"
	HalfDayPM HalfDayPeriod = "PM"
)

// Blocks reports whether a slot starting at c falls into the period.
func (p HalfDayPeriod) Blocks(c Clock) bool {
	switch p {
	case HalfDayAM:
		return c.Hour < 12
	case HalfDayPM:
		return c.Hour >= 12
	default:
		return false
	}
}

func (p HalfDayPeriod) Valid() bool {
	return p == HalfDayAM || p == HalfDayPM
}

// RecurrencePattern is a yearly repeat on a fixed month and day.
type RecurrencePattern struct {
	Month time.Month `json:"month" yaml:"month"`
	Day   int        `json:"day" yaml:"day"`
}

func (r RecurrencePattern) Matches(date time.Time) bool {
	return date.Month() == r.Month && date.Day() == r.Day
}

func (r RecurrencePattern) Validate() error {
	if r.Month < time.January || r.Month > time.December {
		return fmt.Errorf("recurrence month %d out of range", r.Month)
	}
	// Leap year so that Feb 29 is accepted.
	last := time.Date(2024, r.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if r.Day < 1 || r.Day > last {
		return fmt.Errorf("recurrence day %d out of range for %s", r.Day, r.Month)
	}
	return nil
}

// DayBlock is the shape shared by place closures and employee time-off.
type DayBlock struct {
	StartDate  time.Time          `json:"start_date"`
	EndDate    time.Time          `json:"end_date"`
	IsFullDay  bool               `json:"is_full_day"`
	HalfDay    HalfDayPeriod      `json:"half_day_period,omitempty"`
	Recurrence *RecurrencePattern `json:"recurrence,omitempty"`
}

// Covers reports whether the block applies to date, either through its range
// or through its yearly recurrence.
func (b DayBlock) Covers(date time.Time) bool {
	d := DateOf(date)
	if !d.Before(DateOf(b.StartDate)) && !d.After(DateOf(b.EndDate)) {
		return true
	}
	return b.Recurrence != nil && b.Recurrence.Matches(d)
}

// BlocksSlot reports whether slot on date is removed by the block.
func (b DayBlock) BlocksSlot(date time.Time, slot Clock) bool {
	if !b.Covers(date) {
		return false
	}
	return b.IsFullDay || b.HalfDay.Blocks(slot)
}

// BlocksDay reports whether the whole date is removed by the block.
func (b DayBlock) BlocksDay(date time.Time) bool {
	return b.IsFullDay && b.Covers(date)
}

func (b DayBlock) Validate() error {
	if b.StartDate.IsZero() || b.EndDate.IsZero() {
		return errors.New("start_date and end_date are required")
	}
	if DateOf(b.EndDate).Before(DateOf(b.StartDate)) {
		return fmt.Errorf("end_date %s is before start_date %s",
			b.EndDate.Format(DateLayout), b.StartDate.Format(DateLayout))
	}
	if !b.IsFullDay && !b.HalfDay.Valid() {
		return fmt.Errorf("half_day_period must be AM or PM when is_full_day is false, got %q", b.HalfDay)
	}
	if b.Recurrence != nil {
		return b.Recurrence.Validate()
	}
	return nil
}

const (
	ClosureActive   = "active"
	ClosureInactive = "inactive"
)

// PlaceClosedPeriod is a place-wide closure.
type PlaceClosedPeriod struct {
	ID      int64  `json:"id"`
	PlaceID int64  `json:"place_id"`
	Reason  string `json:"reason,omitempty"`
	Status  string `json:"status"`
	DayBlock
}

const (
	TimeOffPending   = "pending"
	TimeOffApproved  = "approved"
	TimeOffRejected  = "rejected"
	TimeOffCancelled = "cancelled"
)

// EmployeeTimeOff is the employee-scoped analogue of a closure.
type EmployeeTimeOff struct {
	ID         int64  `json:"id"`
	EmployeeID int64  `json:"employee_id"`
	PlaceID    int64  `json:"place_id"`
	Reason     string `json:"reason,omitempty"`
	Status     string `json:"status"`
	DayBlock
}
