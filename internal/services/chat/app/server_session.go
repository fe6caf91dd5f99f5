package server

import (
	"fmt"
	"sync"

	"github.com/duochat/duochat/internal/services/chat/identity"
)

// sessionState tracks a connection through its lifecycle. Transitions
// are one way: connecting to bound on a successful room subscription,
// and any state to closed exactly once.
type sessionState int

const (
	stateConnecting sessionState = iota
	stateBound
	stateClosed
)

func (s sessionState) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateBound:
		return "bound"
	case stateClosed:
		return "closed"
	default:
		return fmt.Sprintf("sessionState(%d)", int(s))
	}
}

// wsSession is the server-side record of one websocket connection. The
// identity is fixed at accept time and never changes for the lifetime
// of the session.
type wsSession struct {
	identity identity.Identity
	peer     *wsPeer

	mu     sync.Mutex
	state  sessionState
	roomID int64
	room   *chatRoom
	// usernames maps the room pair's user ids to display names for
	// rendering history and broadcast frames.
	usernames map[int64]string
}

func newWSSession(id identity.Identity, peer *wsPeer) *wsSession {
	return &wsSession{
		identity: id,
		peer:     peer,
		state:    stateConnecting,
	}
}

// bind attaches the session to its room. Only a connecting session can
// bind, and only once.
func (s *wsSession) bind(roomID int64, room *chatRoom, usernames map[int64]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateConnecting {
		return fmt.Errorf("cannot bind session in state %s", s.state)
	}
	s.state = stateBound
	s.roomID = roomID
	s.room = room
	s.usernames = usernames
	return nil
}

// boundRoom returns the subscription target, or false when the session
// never reached the bound state or already closed.
func (s *wsSession) boundRoom() (int64, *chatRoom, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateBound {
		return 0, nil, false
	}
	return s.roomID, s.room, true
}

func (s *wsSession) usernameFor(userID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name, ok := s.usernames[userID]; ok {
		return name
	}
	return identity.Anonymous.Username
}

// close moves the session to its terminal state and returns the room to
// unsubscribe from, if any. Subsequent calls return nil.
func (s *wsSession) close() *chatRoom {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateClosed {
		return nil
	}
	room := s.room
	s.state = stateClosed
	s.room = nil
	return room
}
