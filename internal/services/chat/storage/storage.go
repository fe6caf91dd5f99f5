// Package storage defines persistence contracts for chat state.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/duochat/duochat/internal/services/chat/roomkey"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
var ErrAlreadyExists = errors.New("record already exists")

// User stores one directory entry consumed by the identity boundary.
type User struct {
	ID        int64
	Username  string
	Active    bool
	CreatedAt time.Time
}

// Room stores one two-party room keyed by its unordered user pair.
// UserLow/UserHigh hold the pair in canonical ascending order.
type Room struct {
	ID        int64
	UserLow   int64
	UserHigh  int64
	CreatedAt time.Time
}

// Key returns the canonical room key for the pair.
func (r Room) Key() string {
	return roomkey.Canonical(r.UserLow, r.UserHigh)
}

// Message stores one durable chat message. Author, content, and
// CreatedAt never change after creation; Read only transitions
// false to true.
type Message struct {
	ID        int64
	RoomID    int64
	AuthorID  int64
	Content   string
	Read      bool
	CreatedAt time.Time
}

// UserStore persists directory entries.
type UserStore interface {
	PutUser(ctx context.Context, user User) (User, error)
	GetUser(ctx context.Context, userID int64) (User, error)
}

// RoomStore persists two-party rooms with a uniqueness guarantee on the
// canonical pair.
type RoomStore interface {
	// EnsureRoom returns the room for the pair, creating it when absent.
	// The lookup is order-independent; concurrent first contacts for the
	// same pair converge on a single row.
	EnsureRoom(ctx context.Context, userA, userB int64) (Room, error)
	GetRoomByPair(ctx context.Context, userA, userB int64) (Room, error)
}

// MessageStore appends messages and refines their read state.
type MessageStore interface {
	// AppendMessage persists a message with a server-assigned timestamp
	// and identifier. Existing rows are never mutated.
	AppendMessage(ctx context.Context, roomID, authorID int64, content string) (Message, error)
	// RoomHistory returns all messages for the room ordered ascending by
	// (created_at, id).
	RoomHistory(ctx context.Context, roomID int64) ([]Message, error)
	// MarkRoomRead flips read to true for every unread message in the
	// room not authored by excludeAuthorID. Safe to call redundantly.
	MarkRoomRead(ctx context.Context, roomID, excludeAuthorID int64) error
	// MarkMessageRead flips read to true for one message. A missing or
	// already-read id is a no-op, not an error.
	MarkMessageRead(ctx context.Context, messageID int64) error
}

// Store combines every chat persistence contract.
type Store interface {
	UserStore
	RoomStore
	MessageStore
}
