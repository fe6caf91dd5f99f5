package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/duochat/duochat/internal/services/chat/storage"
)

// EnsureRoom returns the room for the unordered user pair, creating it on
// first contact. The UNIQUE(user_low, user_high) constraint guarantees at
// most one row per pair; a lost insert race falls back to reading the
// winner's row.
func (s *Store) EnsureRoom(ctx context.Context, userA, userB int64) (storage.Room, error) {
	if err := ctx.Err(); err != nil {
		return storage.Room{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Room{}, fmt.Errorf("storage is not configured")
	}
	low, high, err := normalizePair(userA, userB)
	if err != nil {
		return storage.Room{}, err
	}

	room, err := s.GetRoomByPair(ctx, low, high)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return storage.Room{}, err
	}

	createdAt := time.Now().UTC()
	result, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO rooms (user_low, user_high, created_at) VALUES (?, ?, ?)`,
		low,
		high,
		toMillis(createdAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return s.GetRoomByPair(ctx, low, high)
		}
		return storage.Room{}, fmt.Errorf("create room: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return storage.Room{}, fmt.Errorf("create room id: %w", err)
	}
	return storage.Room{
		ID:        id,
		UserLow:   low,
		UserHigh:  high,
		CreatedAt: createdAt,
	}, nil
}

// GetRoomByPair returns the room for the unordered user pair. Both
// orientations are checked so rows created before canonicalization still
// resolve.
func (s *Store) GetRoomByPair(ctx context.Context, userA, userB int64) (storage.Room, error) {
	if err := ctx.Err(); err != nil {
		return storage.Room{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Room{}, fmt.Errorf("storage is not configured")
	}
	low, high, err := normalizePair(userA, userB)
	if err != nil {
		return storage.Room{}, err
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, user_low, user_high, created_at
		   FROM rooms
		  WHERE (user_low = ? AND user_high = ?)
		     OR (user_low = ? AND user_high = ?)`,
		low, high,
		high, low,
	)

	var room storage.Room
	var createdAt int64
	if err := row.Scan(&room.ID, &room.UserLow, &room.UserHigh, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Room{}, storage.ErrNotFound
		}
		return storage.Room{}, fmt.Errorf("get room: %w", err)
	}
	room.CreatedAt = fromMillis(createdAt)
	return room, nil
}

func normalizePair(userA, userB int64) (int64, int64, error) {
	if userA <= 0 || userB <= 0 {
		return 0, 0, fmt.Errorf("user ids must be positive")
	}
	if userA == userB {
		return 0, 0, fmt.Errorf("room requires two distinct users")
	}
	if userB < userA {
		userA, userB = userB, userA
	}
	return userA, userB, nil
}
