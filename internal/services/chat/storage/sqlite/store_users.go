package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/duochat/duochat/internal/services/chat/storage"
)

// PutUser inserts one directory entry. A zero ID lets SQLite assign one.
func (s *Store) PutUser(ctx context.Context, user storage.User) (storage.User, error) {
	if err := ctx.Err(); err != nil {
		return storage.User{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.User{}, fmt.Errorf("storage is not configured")
	}
	username := strings.TrimSpace(user.Username)
	if username == "" {
		return storage.User{}, fmt.Errorf("username is required")
	}
	createdAt := user.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var (
		result sql.Result
		err    error
	)
	if user.ID > 0 {
		result, err = s.sqlDB.ExecContext(
			ctx,
			`INSERT INTO users (id, username, active, created_at) VALUES (?, ?, ?, ?)`,
			user.ID,
			username,
			user.Active,
			toMillis(createdAt),
		)
	} else {
		result, err = s.sqlDB.ExecContext(
			ctx,
			`INSERT INTO users (username, active, created_at) VALUES (?, ?, ?)`,
			username,
			user.Active,
			toMillis(createdAt),
		)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return storage.User{}, storage.ErrAlreadyExists
		}
		return storage.User{}, fmt.Errorf("put user: %w", err)
	}

	id := user.ID
	if id <= 0 {
		id, err = result.LastInsertId()
		if err != nil {
			return storage.User{}, fmt.Errorf("put user id: %w", err)
		}
	}
	return storage.User{
		ID:        id,
		Username:  username,
		Active:    user.Active,
		CreatedAt: createdAt,
	}, nil
}

// GetUser returns one directory entry by ID.
func (s *Store) GetUser(ctx context.Context, userID int64) (storage.User, error) {
	if err := ctx.Err(); err != nil {
		return storage.User{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.User{}, fmt.Errorf("storage is not configured")
	}
	if userID <= 0 {
		return storage.User{}, fmt.Errorf("user id must be positive")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, username, active, created_at FROM users WHERE id = ?`,
		userID,
	)

	var user storage.User
	var createdAt int64
	if err := row.Scan(&user.ID, &user.Username, &user.Active, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.User{}, storage.ErrNotFound
		}
		return storage.User{}, fmt.Errorf("get user: %w", err)
	}
	user.CreatedAt = fromMillis(createdAt)
	return user, nil
}
