package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    Clock
		wantErr bool
	}{
		{in: "09:00", want: NewClock(9, 0)},
		{in: "16:30", want: NewClock(16, 30)},
		{in: "07:05:59", want: NewClock(7, 5)},
		{in: "7am", wantErr: true},
		{in: "25:00", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.String(), got.String())
		})
	}
}

func TestWorkingHours(t *testing.T) {
	var hours WorkingHours
	raw := `{"monday":{"available":true,"start":"09:00","end":"17:00"},"sun":{"available":false,"start":"00:00","end":"00:00"}}`
	require.NoError(t, json.Unmarshal([]byte(raw), &hours))

	mon, ok := hours.For(time.Monday)
	assert.True(t, ok)
	assert.Equal(t, NewClock(9, 0), mon.Start)
	assert.Equal(t, NewClock(17, 0), mon.End)

	_, ok = hours.For(time.Sunday)
	assert.False(t, ok, "unavailable day")

	_, ok = hours.For(time.Tuesday)
	assert.False(t, ok, "missing day")

	assert.NoError(t, hours.Validate())

	bad := WorkingHours{time.Friday: {Available: true, Start: NewClock(18, 0), End: NewClock(9, 0)}}
	assert.Error(t, bad.Validate())

	err := json.Unmarshal([]byte(`{"funday":{"available":true}}`), &hours)
	assert.Error(t, err)
}

func TestHalfDayPeriodBlocks(t *testing.T) {
	assert.True(t, HalfDayAM.Blocks(NewClock(11, 30)))
	assert.False(t, HalfDayAM.Blocks(NewClock(12, 0)))
	assert.True(t, HalfDayPM.Blocks(NewClock(12, 0)))
	assert.False(t, HalfDayPM.Blocks(NewClock(11, 59)))
	assert.False(t, HalfDayPeriod("").Blocks(NewClock(10, 0)))
}

func TestDayBlockCovers(t *testing.T) {
	ranged := DayBlock{StartDate: date(2025, 3, 10), EndDate: date(2025, 3, 12), IsFullDay: true}
	assert.False(t, ranged.Covers(date(2025, 3, 9)))
	assert.True(t, ranged.Covers(date(2025, 3, 10)))
	assert.True(t, ranged.Covers(time.Date(2025, 3, 12, 18, 0, 0, 0, time.UTC)))
	assert.False(t, ranged.Covers(date(2025, 3, 13)))

	yearly := DayBlock{
		StartDate:  date(2020, 12, 25),
		EndDate:    date(2020, 12, 25),
		IsFullDay:  true,
		Recurrence: &RecurrencePattern{Month: time.December, Day: 25},
	}
	assert.True(t, yearly.Covers(date(2031, 12, 25)))
	assert.False(t, yearly.Covers(date(2031, 12, 26)))

	halfDay := DayBlock{StartDate: date(2025, 3, 10), EndDate: date(2025, 3, 10), HalfDay: HalfDayPM}
	assert.False(t, halfDay.BlocksDay(date(2025, 3, 10)))
	assert.True(t, halfDay.BlocksSlot(date(2025, 3, 10), NewClock(14, 0)))
	assert.False(t, halfDay.BlocksSlot(date(2025, 3, 10), NewClock(9, 0)))
}

func TestDayBlockValidate(t *testing.T) {
	tests := []struct {
		name    string
		block   DayBlock
		wantErr bool
	}{
		{name: "full day", block: DayBlock{StartDate: date(2025, 1, 1), EndDate: date(2025, 1, 2), IsFullDay: true}},
		{name: "half day", block: DayBlock{StartDate: date(2025, 1, 1), EndDate: date(2025, 1, 1), HalfDay: HalfDayAM}},
		{name: "inverted", block: DayBlock{StartDate: date(2025, 1, 2), EndDate: date(2025, 1, 1), IsFullDay: true}, wantErr: true},
		{name: "missing half", block: DayBlock{StartDate: date(2025, 1, 1), EndDate: date(2025, 1, 1)}, wantErr: true},
		{name: "missing dates", block: DayBlock{IsFullDay: true}, wantErr: true},
		{
			name: "bad recurrence",
			block: DayBlock{
				StartDate: date(2025, 2, 1), EndDate: date(2025, 2, 1), IsFullDay: true,
				Recurrence: &RecurrencePattern{Month: time.February, Day: 30},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.block.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBookingTotalsAndJSON(t *testing.T) {
	b := &Booking{
		ID:     7,
		Date:   date(2025, 6, 2),
		Time:   NewClock(10, 0),
		Status: StatusPending,
		Services: []BookingService{
			{ServiceID: 1, Name: "Cut", Price: 2500, Duration: 30},
			{ServiceID: 2, Name: "Wash", Price: 800, Duration: 15},
		},
	}
	b.ApplyTotals()
	assert.Equal(t, int64(3300), b.TotalPrice)
	assert.Equal(t, 45, b.TotalDuration)
	assert.True(t, b.IsActive())
	assert.Equal(t, time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC), b.StartsAt())

	data, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"booking_date":"2025-06-02"`)
	assert.Contains(t, string(data), `"booking_time":"10:00"`)

	var decoded Booking
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, b.Date, decoded.Date)
	assert.Equal(t, b.Time, decoded.Time)
}

func TestStatuses(t *testing.T) {
	assert.True(t, IsActiveStatus(StatusPending))
	assert.True(t, IsActiveStatus(StatusConfirmed))
	assert.False(t, IsActiveStatus(StatusCancelled))
	assert.False(t, IsActiveStatus(StatusCompleted))
	assert.False(t, IsKnownStatus("rescheduled"))
}
