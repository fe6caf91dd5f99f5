package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/duochat/duochat/internal/services/chat/storage"
)

// AppendMessage persists one message with a server-assigned timestamp and
// identifier. Rows are immutable after creation.
func (s *Store) AppendMessage(ctx context.Context, roomID, authorID int64, content string) (storage.Message, error) {
	if err := ctx.Err(); err != nil {
		return storage.Message{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Message{}, fmt.Errorf("storage is not configured")
	}
	if roomID <= 0 {
		return storage.Message{}, fmt.Errorf("room id must be positive")
	}
	if authorID <= 0 {
		return storage.Message{}, fmt.Errorf("author id must be positive")
	}
	if strings.TrimSpace(content) == "" {
		return storage.Message{}, fmt.Errorf("content is required")
	}

	createdAt := time.Now().UTC()
	result, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO messages (room_id, author_id, content, read, created_at)
		 VALUES (?, ?, ?, 0, ?)`,
		roomID,
		authorID,
		content,
		toMillis(createdAt),
	)
	if err != nil {
		return storage.Message{}, fmt.Errorf("append message: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return storage.Message{}, fmt.Errorf("append message id: %w", err)
	}

	return storage.Message{
		ID:        id,
		RoomID:    roomID,
		AuthorID:  authorID,
		Content:   content,
		Read:      false,
		CreatedAt: createdAt,
	}, nil
}

// RoomHistory returns every message in the room ordered ascending by
// creation time, ties broken by identifier.
func (s *Store) RoomHistory(ctx context.Context, roomID int64) ([]storage.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if roomID <= 0 {
		return nil, fmt.Errorf("room id must be positive")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, room_id, author_id, content, read, created_at
		   FROM messages
		  WHERE room_id = ?
		  ORDER BY created_at ASC, id ASC`,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("room history: %w", err)
	}
	defer rows.Close()

	var history []storage.Message
	for rows.Next() {
		var msg storage.Message
		var createdAt int64
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.AuthorID, &msg.Content, &msg.Read, &createdAt); err != nil {
			return nil, fmt.Errorf("room history: %w", err)
		}
		msg.CreatedAt = fromMillis(createdAt)
		history = append(history, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("room history: %w", err)
	}
	return history, nil
}

// MarkRoomRead flips every unread message in the room to read, excluding
// messages authored by excludeAuthorID. Redundant calls are no-ops.
func (s *Store) MarkRoomRead(ctx context.Context, roomID, excludeAuthorID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if roomID <= 0 {
		return fmt.Errorf("room id must be positive")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE messages SET read = 1
		  WHERE room_id = ? AND read = 0 AND author_id != ?`,
		roomID,
		excludeAuthorID,
	)
	if err != nil {
		return fmt.Errorf("mark room read: %w", err)
	}
	return nil
}

// MarkMessageRead flips one message to read. Missing or already-read
// identifiers are silent no-ops so the call tolerates races.
func (s *Store) MarkMessageRead(ctx context.Context, messageID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if messageID <= 0 {
		return nil
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE messages SET read = 1 WHERE id = ? AND read = 0`,
		messageID,
	)
	if err != nil {
		return fmt.Errorf("mark message read: %w", err)
	}
	return nil
}
