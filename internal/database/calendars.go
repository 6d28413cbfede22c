package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"salonbook/internal/models"
)

type blockColumns struct {
	start, end string
	isFullDay  bool
	halfDay    sql.NullString
	recurMonth sql.NullInt64
	recurDay   sql.NullInt64
	reason     sql.NullString
}

func blockArgs(b models.DayBlock) []any {
	var (
		halfDay              sql.NullString
		recurMonth, recurDay sql.NullInt64
	)
	if !b.IsFullDay {
		halfDay = sql.NullString{String: string(b.HalfDay), Valid: true}
	}
	if b.Recurrence != nil {
		recurMonth = sql.NullInt64{Int64: int64(b.Recurrence.Month), Valid: true}
		recurDay = sql.NullInt64{Int64: int64(b.Recurrence.Day), Valid: true}
	}
	return []any{
		models.DateOf(b.StartDate).Format(models.DateLayout),
		models.DateOf(b.EndDate).Format(models.DateLayout),
		b.IsFullDay, halfDay, recurMonth, recurDay,
	}
}

func (c *blockColumns) dest() []any {
	return []any{&c.start, &c.end, &c.isFullDay, &c.halfDay, &c.recurMonth, &c.recurDay, &c.reason}
}

func (c *blockColumns) block() (models.DayBlock, error) {
	start, err := models.ParseDate(c.start)
	if err != nil {
		return models.DayBlock{}, err
	}
	end, err := models.ParseDate(c.end)
	if err != nil {
		return models.DayBlock{}, err
	}
	b := models.DayBlock{
		StartDate: start,
		EndDate:   end,
		IsFullDay: c.isFullDay,
		HalfDay:   models.HalfDayPeriod(c.halfDay.String),
	}
	if c.recurMonth.Valid && c.recurDay.Valid {
		b.Recurrence = &models.RecurrencePattern{Month: time.Month(c.recurMonth.Int64), Day: int(c.recurDay.Int64)}
	}
	return b, nil
}

// coverageFilter narrows rows to ranges containing date or any recurring
// block; the caller still applies DayBlock.Covers.
const coverageFilter = `((start_date <= ? AND end_date >= ?) OR recurrence_month IS NOT NULL)`

func (db *DB) CreateClosure(ctx context.Context, c *models.PlaceClosedPeriod) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Status == "" {
		c.Status = models.ClosureActive
	}

	args := append([]any{c.PlaceID}, blockArgs(c.DayBlock)...)
	args = append(args, c.Reason, c.Status)
	result, err := db.ExecContext(ctx,
		`INSERT INTO place_closed_periods
			(place_id, start_date, end_date, is_full_day, half_day, recurrence_month, recurrence_day, reason, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		return fmt.Errorf("failed to create closure: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	c.ID = id
	return nil
}

func (db *DB) ListPlaceClosures(ctx context.Context, placeID int64, date time.Time) ([]models.PlaceClosedPeriod, error) {
	day := models.DateOf(date).Format(models.DateLayout)
	rows, err := db.QueryContext(ctx,
		`SELECT id, place_id, status, start_date, end_date, is_full_day, half_day, recurrence_month, recurrence_day, reason
		 FROM place_closed_periods
		 WHERE place_id = ? AND status = ? AND `+coverageFilter+`
		 ORDER BY id`, placeID, models.ClosureActive, day, day)
	if err != nil {
		return nil, fmt.Errorf("failed to list closures: %w", err)
	}
	defer rows.Close()

	var closures []models.PlaceClosedPeriod
	for rows.Next() {
		var (
			c    models.PlaceClosedPeriod
			cols blockColumns
		)
		dest := append([]any{&c.ID, &c.PlaceID, &c.Status}, cols.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan closure: %w", err)
		}
		if c.DayBlock, err = cols.block(); err != nil {
			return nil, fmt.Errorf("failed to decode closure %d: %w", c.ID, err)
		}
		c.Reason = cols.reason.String
		closures = append(closures, c)
	}
	return closures, rows.Err()
}

func (db *DB) CreateTimeOff(ctx context.Context, t *models.EmployeeTimeOff) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if t.Status == "" {
		t.Status = models.TimeOffPending
	}

	args := append([]any{t.EmployeeID, t.PlaceID}, blockArgs(t.DayBlock)...)
	args = append(args, t.Reason, t.Status)
	result, err := db.ExecContext(ctx,
		`INSERT INTO employee_time_off
			(employee_id, place_id, start_date, end_date, is_full_day, half_day, recurrence_month, recurrence_day, reason, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		return fmt.Errorf("failed to create time-off: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	t.ID = id
	return nil
}

func (db *DB) UpdateTimeOffStatus(ctx context.Context, id int64, status string) error {
	result, err := db.ExecContext(ctx, `UPDATE employee_time_off SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update time-off: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return notFound(sql.ErrNoRows, "time-off %d", id)
	}
	return nil
}

// ListTimeOff returns time-off of every status; approval is checked by the
// employee calendar.
func (db *DB) ListTimeOff(ctx context.Context, placeID int64, date time.Time) ([]models.EmployeeTimeOff, error) {
	day := models.DateOf(date).Format(models.DateLayout)
	rows, err := db.QueryContext(ctx,
		`SELECT id, employee_id, place_id, status, start_date, end_date, is_full_day, half_day, recurrence_month, recurrence_day, reason
		 FROM employee_time_off
		 WHERE place_id = ? AND `+coverageFilter+`
		 ORDER BY id`, placeID, day, day)
	if err != nil {
		return nil, fmt.Errorf("failed to list time-off: %w", err)
	}
	defer rows.Close()

	var records []models.EmployeeTimeOff
	for rows.Next() {
		var (
			t    models.EmployeeTimeOff
			cols blockColumns
		)
		dest := append([]any{&t.ID, &t.EmployeeID, &t.PlaceID, &t.Status}, cols.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan time-off: %w", err)
		}
		if t.DayBlock, err = cols.block(); err != nil {
			return nil, fmt.Errorf("failed to decode time-off %d: %w", t.ID, err)
		}
		t.Reason = cols.reason.String
		records = append(records, t)
	}
	return records, rows.Err()
}
