package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"salonbook/internal/models"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func createOutboxEvent(ctx context.Context, ex execer, e *models.OutboxEvent) error {
	if e.Status == "" {
		e.Status = models.OutboxPending
	}
	now := time.Now()
	result, err := ex.ExecContext(ctx,
		`INSERT INTO event_outbox (event_id, event_type, booking_id, payload, status, retry_count, last_error, created_at, next_retry_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EventID, e.EventType, e.BookingID, e.Payload, e.Status, e.RetryCount, e.LastError, now, e.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	e.ID = id
	e.CreatedAt = now
	return nil
}

// CreateOutboxEvent stores an event outside of a booking transaction.
func (db *DB) CreateOutboxEvent(ctx context.Context, e *models.OutboxEvent) error {
	return createOutboxEvent(ctx, db.DB, e)
}

const outboxColumns = `id, event_id, event_type, booking_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at`

func (db *DB) scanOutbox(rows *sql.Rows) ([]models.OutboxEvent, error) {
	defer rows.Close()

	var events []models.OutboxEvent
	for rows.Next() {
		var e models.OutboxEvent
		err := rows.Scan(
			&e.ID, &e.EventID, &e.EventType, &e.BookingID, &e.Payload, &e.Status, &e.RetryCount, &e.LastError,
			&e.CreatedAt, &e.ProcessedAt, &e.NextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (db *DB) GetOutboxEvent(ctx context.Context, id int64) (*models.OutboxEvent, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+outboxColumns+` FROM event_outbox WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox event: %w", err)
	}
	events, err := db.scanOutbox(rows)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, notFound(sql.ErrNoRows, "outbox event %d", id)
	}
	return &events[0], nil
}

// GetPendingOutboxEvents returns events due for delivery, oldest first.
func (db *DB) GetPendingOutboxEvents(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+outboxColumns+` FROM event_outbox
		 WHERE status IN (?, ?) AND (next_retry_at IS NULL OR next_retry_at <= ?)
		 ORDER BY id ASC LIMIT ?`,
		models.OutboxPending, models.OutboxRetry, time.Now(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending outbox events: %w", err)
	}
	return db.scanOutbox(rows)
}

// ClaimOutboxEvent moves a due event to processing. It reports false when
// another worker got there first.
func (db *DB) ClaimOutboxEvent(ctx context.Context, id int64) (bool, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE event_outbox SET status = ? WHERE id = ? AND status IN (?, ?)`,
		models.OutboxProcessing, id, models.OutboxPending, models.OutboxRetry)
	if err != nil {
		return false, fmt.Errorf("failed to claim outbox event: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

func (db *DB) UpdateOutboxStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var (
		query string
		args  []any
		now   = time.Now()
	)
	lastErr := nullString(errMsg)

	switch status {
	case models.OutboxRetry:
		query = `UPDATE event_outbox SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1 WHERE id = ?`
		args = []any{status, lastErr, nextRetryAt, id}
	case models.OutboxCompleted, models.OutboxFailed:
		query = `UPDATE event_outbox SET status = ?, last_error = ?, next_retry_at = ?, processed_at = ? WHERE id = ?`
		args = []any{status, lastErr, nextRetryAt, now, id}
	default:
		query = `UPDATE event_outbox SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`
		args = []any{status, lastErr, nextRetryAt, id}
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update outbox status: %w", err)
	}
	return nil
}

// ResetStaleOutboxEvents returns events stuck in processing, for example
// after a crash, to the retry state.
func (db *DB) ResetStaleOutboxEvents(ctx context.Context) (int64, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE event_outbox SET status = ? WHERE status = ?`, models.OutboxRetry, models.OutboxProcessing)
	if err != nil {
		return 0, fmt.Errorf("failed to reset stale outbox events: %w", err)
	}
	return result.RowsAffected()
}

func (db *DB) GetFailedOutboxEvents(ctx context.Context) ([]models.OutboxEvent, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+outboxColumns+` FROM event_outbox WHERE status = ? ORDER BY id DESC`, models.OutboxFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to get failed outbox events: %w", err)
	}
	return db.scanOutbox(rows)
}
