package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"salonbook/internal/domain"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// DB wraps the sqlite handle. Writers are serialised by BEGIN IMMEDIATE.
type DB struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
}

const memoryPath = ":memory:"

// ErrConcurrentModification means the row version moved under an update.
var ErrConcurrentModification = fmt.Errorf("%w: booking was modified concurrently", domain.ErrConflict)

func dsn(path string) string {
	params := "_txlock=immediate&_busy_timeout=5000"
	if path == memoryPath {
		return "file::memory:?" + params
	}
	return "file:" + path + "?" + params
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	if path != memoryPath {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == memoryPath {
		// Each connection would otherwise see its own empty database.
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{DB: conn, path: path, logger: logger}
	if err := db.createTables(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return db, nil
}

// Path is the file the database lives in.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS places (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			working_hours TEXT NOT NULL DEFAULT '{}',
			booking_enabled BOOLEAN NOT NULL DEFAULT 1,
			rewards_enabled BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS employees (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			place_id INTEGER NOT NULL REFERENCES places(id),
			name TEXT NOT NULL,
			working_hours TEXT,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS services (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			default_price INTEGER NOT NULL DEFAULT 0,
			default_duration INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS place_services (
			place_id INTEGER NOT NULL REFERENCES places(id),
			service_id INTEGER NOT NULL REFERENCES services(id),
			price INTEGER,
			duration INTEGER,
			is_available BOOLEAN NOT NULL DEFAULT 1,
			PRIMARY KEY (place_id, service_id)
		)`,
		`CREATE TABLE IF NOT EXISTS place_closed_periods (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			place_id INTEGER NOT NULL REFERENCES places(id),
			start_date TEXT NOT NULL,
			end_date TEXT NOT NULL,
			is_full_day BOOLEAN NOT NULL DEFAULT 1,
			half_day TEXT,
			recurrence_month INTEGER,
			recurrence_day INTEGER,
			reason TEXT,
			status TEXT NOT NULL DEFAULT 'active'
		)`,
		`CREATE TABLE IF NOT EXISTS employee_time_off (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			employee_id INTEGER NOT NULL REFERENCES employees(id),
			place_id INTEGER NOT NULL REFERENCES places(id),
			start_date TEXT NOT NULL,
			end_date TEXT NOT NULL,
			is_full_day BOOLEAN NOT NULL DEFAULT 1,
			half_day TEXT,
			recurrence_month INTEGER,
			recurrence_day INTEGER,
			reason TEXT,
			status TEXT NOT NULL DEFAULT 'pending'
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL UNIQUE COLLATE NOCASE,
			name TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS bookings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			place_id INTEGER NOT NULL REFERENCES places(id),
			employee_id INTEGER NOT NULL REFERENCES employees(id),
			user_id INTEGER REFERENCES users(id),
			customer_name TEXT NOT NULL,
			customer_email TEXT,
			customer_phone TEXT,
			booking_date TEXT NOT NULL,
			booking_time TEXT NOT NULL,
			total_price INTEGER NOT NULL DEFAULT 0,
			total_duration INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'pending',
			any_employee_selected BOOLEAN NOT NULL DEFAULT 0,
			tags TEXT NOT NULL DEFAULT '[]',
			notes TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			version INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS booking_services (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			booking_id INTEGER NOT NULL REFERENCES bookings(id),
			service_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			price INTEGER NOT NULL,
			duration INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS event_outbox (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id TEXT NOT NULL UNIQUE,
			event_type TEXT NOT NULL,
			booking_id INTEGER NOT NULL,
			payload TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			retry_count INTEGER NOT NULL DEFAULT 0,
			last_error TEXT,
			created_at DATETIME NOT NULL,
			processed_at DATETIME,
			next_retry_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS reward_awards (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			place_id INTEGER NOT NULL,
			booking_id INTEGER NOT NULL UNIQUE,
			points INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		)`,

		`CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_active_slot
			ON bookings(place_id, employee_id, booking_date, booking_time)
			WHERE status IN ('pending', 'confirmed')`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_place_date ON bookings(place_id, booking_date)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_employee_date ON bookings(employee_id, booking_date)`,
		`CREATE INDEX IF NOT EXISTS idx_booking_services_booking ON booking_services(booking_id)`,
		`CREATE INDEX IF NOT EXISTS idx_employees_place ON employees(place_id)`,
		`CREATE INDEX IF NOT EXISTS idx_closures_place ON place_closed_periods(place_id)`,
		`CREATE INDEX IF NOT EXISTS idx_time_off_place ON employee_time_off(place_id)`,
		`CREATE INDEX IF NOT EXISTS idx_event_outbox_status ON event_outbox(status, next_retry_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// WithTx runs fn in one write transaction. Inside fn only tx may touch the
// database.
func (db *DB) WithTx(ctx context.Context, fn func(tx domain.BookingTx) error) error {
	sqlTx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(&Tx{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return mapWriteError(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// mapWriteError turns the active-slot unique violation into a conflict and
// sqlite lock contention into an internal error.
func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique && strings.Contains(sqliteErr.Error(), "bookings.") {
			return fmt.Errorf("%w: employee already booked for this slot", domain.ErrConflict)
		}
		if sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked {
			return fmt.Errorf("%w: database is busy: %v", domain.ErrInternal, err)
		}
	}
	return err
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFoundf(format, args...)
	}
	return err
}
