package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"salonbook/internal/domain"
	"salonbook/internal/models"
)

func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	email := strings.TrimSpace(user.Email)
	if email == "" {
		return domain.Validationf("email is required")
	}

	now := time.Now()
	_, err := db.ExecContext(ctx,
		`INSERT INTO users (email, name, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(email) DO UPDATE SET name = excluded.name`,
		email, user.Name, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	existing, err := db.FindUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	user.ID = existing.ID
	user.Email = existing.Email
	user.CreatedAt = existing.CreatedAt
	return nil
}

// FindUserByEmail matches case-insensitively and returns nil when nobody
// has the address.
func (db *DB) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := db.QueryRowContext(ctx,
		`SELECT id, email, name, created_at FROM users WHERE email = ?`, strings.TrimSpace(email),
	).Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &u, nil
}
