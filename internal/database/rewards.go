package database

import (
	"context"
	"fmt"
	"time"
)

// AwardPoints records points for a booking once. It reports false when the
// booking was already rewarded.
func (db *DB) AwardPoints(ctx context.Context, userID, placeID, bookingID, points int64) (bool, error) {
	result, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO reward_awards (user_id, place_id, booking_id, points, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		userID, placeID, bookingID, points, time.Now(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to award points: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// UserPoints is the total awarded to a user at a place.
func (db *DB) UserPoints(ctx context.Context, userID, placeID int64) (int64, error) {
	var total int64
	err := db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(points), 0) FROM reward_awards WHERE user_id = ? AND place_id = ?`,
		userID, placeID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum points: %w", err)
	}
	return total, nil
}
