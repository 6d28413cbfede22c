package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"salonbook/internal/models"
)

// queryer is the part of *sql.DB and *sql.Tx the booking reads need.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const bookingColumns = `id, place_id, employee_id, user_id, customer_name, customer_email, customer_phone,
	booking_date, booking_time, total_price, total_duration, status, any_employee_selected, tags, notes,
	created_at, updated_at, version`

func scanBooking(row rowScanner) (*models.Booking, error) {
	var (
		b                   models.Booking
		userID              sql.NullInt64
		email, phone, notes sql.NullString
		day, at, tags       string
	)
	err := row.Scan(
		&b.ID, &b.PlaceID, &b.EmployeeID, &userID, &b.CustomerName, &email, &phone,
		&day, &at, &b.TotalPrice, &b.TotalDuration, &b.Status, &b.AnyEmployeeSelected, &tags, &notes,
		&b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}

	if userID.Valid {
		id := userID.Int64
		b.UserID = &id
	}
	b.CustomerEmail = email.String
	b.CustomerPhone = phone.String
	b.Notes = notes.String

	if b.Date, err = models.ParseDate(day); err != nil {
		return nil, err
	}
	if b.Time, err = models.ParseClock(at); err != nil {
		return nil, err
	}
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &b.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode tags: %w", err)
		}
	}
	return &b, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("failed to encode tags: %w", err)
	}
	return string(data), nil
}

func getBooking(ctx context.Context, q queryer, id int64) (*models.Booking, error) {
	b, err := scanBooking(q.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(fmt.Errorf("failed to get booking: %w", err), "booking %d", id)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT id, booking_id, service_id, name, price, duration
		 FROM booking_services WHERE booking_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking services: %w", err)
	}
	defer rows.Close()

	b.Services = []models.BookingService{}
	for rows.Next() {
		var s models.BookingService
		if err := rows.Scan(&s.ID, &s.BookingID, &s.ServiceID, &s.Name, &s.Price, &s.Duration); err != nil {
			return nil, fmt.Errorf("failed to scan booking service: %w", err)
		}
		b.Services = append(b.Services, s)
	}
	return b, rows.Err()
}

// GetBooking returns a booking with its line items.
func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return getBooking(ctx, db.DB, id)
}

// ListActiveBookings returns pending and confirmed bookings of a place on a
// day, without line items.
func (db *DB) ListActiveBookings(ctx context.Context, placeID int64, date time.Time) ([]models.Booking, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE place_id = ? AND booking_date = ? AND status IN (?, ?)
		 ORDER BY booking_time, employee_id`,
		placeID, models.DateOf(date).Format(models.DateLayout), models.StatusPending, models.StatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// ListBookingsInRange returns every booking of a place between from and to
// inclusive, whatever its status.
func (db *DB) ListBookingsInRange(ctx context.Context, placeID int64, from, to time.Time) ([]models.Booking, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE place_id = ? AND booking_date BETWEEN ? AND ?
		 ORDER BY booking_date, booking_time, employee_id`,
		placeID, models.DateOf(from).Format(models.DateLayout), models.DateOf(to).Format(models.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// Tx is the booking write path inside one transaction.
type Tx struct {
	tx *sql.Tx
}

func (t *Tx) EmployeeHasActiveBooking(ctx context.Context, employeeID int64, date time.Time, at models.Clock, excludeBookingID int64) (bool, error) {
	var count int
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings
		 WHERE employee_id = ? AND booking_date = ? AND booking_time = ? AND status IN (?, ?) AND id != ?`,
		employeeID, models.DateOf(date).Format(models.DateLayout), at.String(),
		models.StatusPending, models.StatusConfirmed, excludeBookingID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check employee occupancy: %w", err)
	}
	return count > 0, nil
}

func (t *Tx) CountActiveBookings(ctx context.Context, employeeID int64, date time.Time) (int, error) {
	var count int
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE employee_id = ? AND booking_date = ? AND status IN (?, ?)`,
		employeeID, models.DateOf(date).Format(models.DateLayout), models.StatusPending, models.StatusConfirmed,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count employee bookings: %w", err)
	}
	return count, nil
}

// InsertBooking stores the booking and its line items. The active-slot
// index turns a double booking into domain.ErrConflict.
func (t *Tx) InsertBooking(ctx context.Context, b *models.Booking) error {
	tags, err := encodeTags(b.Tags)
	if err != nil {
		return err
	}

	now := time.Now()
	result, err := t.tx.ExecContext(ctx,
		`INSERT INTO bookings (
			place_id, employee_id, user_id, customer_name, customer_email, customer_phone,
			booking_date, booking_time, total_price, total_duration, status, any_employee_selected,
			tags, notes, created_at, updated_at, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.PlaceID, b.EmployeeID, b.UserID, b.CustomerName, nullString(b.CustomerEmail), nullString(b.CustomerPhone),
		b.DateString(), b.Time.String(), b.TotalPrice, b.TotalDuration, b.Status, b.AnyEmployeeSelected,
		tags, nullString(b.Notes), now, now, 1,
	)
	if err != nil {
		return mapWriteError(fmt.Errorf("failed to insert booking: %w", err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	b.ID = id
	b.CreatedAt = now
	b.UpdatedAt = now
	b.Version = 1

	for i := range b.Services {
		s := &b.Services[i]
		s.BookingID = id
		result, err := t.tx.ExecContext(ctx,
			`INSERT INTO booking_services (booking_id, service_id, name, price, duration) VALUES (?, ?, ?, ?, ?)`,
			id, s.ServiceID, s.Name, s.Price, s.Duration)
		if err != nil {
			return fmt.Errorf("failed to insert booking service: %w", err)
		}
		if s.ID, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
	}
	return nil
}

// GetBookingForUpdate reads the booking inside the write transaction, which
// already holds the database write lock.
func (t *Tx) GetBookingForUpdate(ctx context.Context, id int64) (*models.Booking, error) {
	return getBooking(ctx, t.tx, id)
}

// UpdateBooking writes the mutable fields back using optimistic versioning.
func (t *Tx) UpdateBooking(ctx context.Context, b *models.Booking) error {
	tags, err := encodeTags(b.Tags)
	if err != nil {
		return err
	}

	now := time.Now()
	result, err := t.tx.ExecContext(ctx,
		`UPDATE bookings SET employee_id = ?, booking_date = ?, booking_time = ?, status = ?,
			tags = ?, notes = ?, updated_at = ?, version = version + 1
		 WHERE id = ? AND version = ?`,
		b.EmployeeID, b.DateString(), b.Time.String(), b.Status, tags, nullString(b.Notes), now,
		b.ID, b.Version,
	)
	if err != nil {
		return mapWriteError(fmt.Errorf("failed to update booking: %w", err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrConcurrentModification
	}
	b.UpdatedAt = now
	b.Version++
	return nil
}

func (t *Tx) EnqueueEvent(ctx context.Context, e *models.OutboxEvent) error {
	return createOutboxEvent(ctx, t.tx, e)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
