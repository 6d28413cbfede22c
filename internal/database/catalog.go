package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"salonbook/internal/models"
)

func encodeHours(h models.WorkingHours) (sql.NullString, error) {
	if len(h) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(h)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode working hours: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeHours(raw sql.NullString) (models.WorkingHours, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var h models.WorkingHours
	if err := json.Unmarshal([]byte(raw.String), &h); err != nil {
		return nil, fmt.Errorf("failed to decode working hours: %w", err)
	}
	return h, nil
}

func (db *DB) CreatePlace(ctx context.Context, place *models.Place) error {
	if err := place.WorkingHours.Validate(); err != nil {
		return err
	}
	hours, err := encodeHours(place.WorkingHours)
	if err != nil {
		return err
	}
	if !hours.Valid {
		hours = sql.NullString{String: "{}", Valid: true}
	}

	now := time.Now()
	result, err := db.ExecContext(ctx,
		`INSERT INTO places (name, working_hours, booking_enabled, rewards_enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		place.Name, hours, place.BookingEnabled, place.RewardsEnabled, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create place: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	place.ID = id
	place.CreatedAt = now
	place.UpdatedAt = now
	return nil
}

func (db *DB) GetPlace(ctx context.Context, id int64) (*models.Place, error) {
	var (
		p     models.Place
		hours sql.NullString
	)
	err := db.QueryRowContext(ctx,
		`SELECT id, name, working_hours, booking_enabled, rewards_enabled, created_at, updated_at
		 FROM places WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &hours, &p.BookingEnabled, &p.RewardsEnabled, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, notFound(fmt.Errorf("failed to get place: %w", err), "place %d", id)
	}

	if p.WorkingHours, err = decodeHours(hours); err != nil {
		return nil, err
	}
	return &p, nil
}

func (db *DB) CreateEmployee(ctx context.Context, emp *models.Employee) error {
	if err := emp.WorkingHours.Validate(); err != nil {
		return err
	}
	hours, err := encodeHours(emp.WorkingHours)
	if err != nil {
		return err
	}

	now := time.Now()
	result, err := db.ExecContext(ctx,
		`INSERT INTO employees (place_id, name, working_hours, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		emp.PlaceID, emp.Name, hours, emp.IsActive, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create employee: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	emp.ID = id
	emp.CreatedAt = now
	emp.UpdatedAt = now
	return nil
}

func (db *DB) SetEmployeeActive(ctx context.Context, id int64, active bool) error {
	result, err := db.ExecContext(ctx,
		`UPDATE employees SET is_active = ?, updated_at = ? WHERE id = ?`, active, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update employee: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return notFound(sql.ErrNoRows, "employee %d", id)
	}
	return nil
}

const employeeColumns = `id, place_id, name, working_hours, is_active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row rowScanner) (*models.Employee, error) {
	var (
		e     models.Employee
		hours sql.NullString
	)
	if err := row.Scan(&e.ID, &e.PlaceID, &e.Name, &hours, &e.IsActive, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	h, err := decodeHours(hours)
	if err != nil {
		return nil, err
	}
	e.WorkingHours = h
	return &e, nil
}

func (db *DB) GetEmployee(ctx context.Context, id int64) (*models.Employee, error) {
	row := db.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = ?`, id)
	e, err := scanEmployee(row)
	if err != nil {
		return nil, notFound(fmt.Errorf("failed to get employee: %w", err), "employee %d", id)
	}
	return e, nil
}

// ListActiveEmployees returns a place's active employees in id order.
func (db *DB) ListActiveEmployees(ctx context.Context, placeID int64) ([]models.Employee, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE place_id = ? AND is_active = 1 ORDER BY id`, placeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var employees []models.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		employees = append(employees, *e)
	}
	return employees, rows.Err()
}

func (db *DB) CreateService(ctx context.Context, svc *models.Service) error {
	result, err := db.ExecContext(ctx,
		`INSERT INTO services (name, default_price, default_duration) VALUES (?, ?, ?)`,
		svc.Name, svc.DefaultPrice, svc.DefaultDuration,
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	svc.ID = id
	return nil
}

// UpsertPlaceService offers a service at a place. Zero price or duration
// fall back to the service defaults when read.
func (db *DB) UpsertPlaceService(ctx context.Context, ps *models.PlaceService) error {
	var price, duration sql.NullInt64
	if ps.Price > 0 {
		price = sql.NullInt64{Int64: ps.Price, Valid: true}
	}
	if ps.Duration > 0 {
		duration = sql.NullInt64{Int64: int64(ps.Duration), Valid: true}
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO place_services (place_id, service_id, price, duration, is_available)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(place_id, service_id) DO UPDATE SET
			price = excluded.price, duration = excluded.duration, is_available = excluded.is_available`,
		ps.PlaceID, ps.ServiceID, price, duration, ps.IsAvailable,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert place service: %w", err)
	}
	return nil
}

func (db *DB) GetPlaceService(ctx context.Context, placeID, serviceID int64) (*models.PlaceService, error) {
	var ps models.PlaceService
	err := db.QueryRowContext(ctx,
		`SELECT ps.place_id, ps.service_id, s.name,
			COALESCE(ps.price, s.default_price), COALESCE(ps.duration, s.default_duration), ps.is_available
		 FROM place_services ps JOIN services s ON s.id = ps.service_id
		 WHERE ps.place_id = ? AND ps.service_id = ?`, placeID, serviceID,
	).Scan(&ps.PlaceID, &ps.ServiceID, &ps.Name, &ps.Price, &ps.Duration, &ps.IsAvailable)
	if err != nil {
		return nil, notFound(fmt.Errorf("failed to get place service: %w", err),
			"service %d at place %d", serviceID, placeID)
	}
	return &ps, nil
}
