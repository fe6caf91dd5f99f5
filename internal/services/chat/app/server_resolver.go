package server

import (
	"context"
	"fmt"
	"sync"

	apperrors "github.com/duochat/duochat/internal/platform/errors"
	"github.com/duochat/duochat/internal/services/chat/identity"
	"github.com/duochat/duochat/internal/services/chat/roomkey"
	"github.com/duochat/duochat/internal/services/chat/storage"
)

// resolvedRoom is a room record plus the display names of its pair.
type resolvedRoom struct {
	room    storage.Room
	members map[int64]identity.Identity
}

func (r resolvedRoom) usernames() map[int64]string {
	names := make(map[int64]string, len(r.members))
	for userID, member := range r.members {
		names[userID] = member.Username
	}
	return names
}

// roomResolver turns a canonical room key into a persistent room,
// validating both members of the pair first. Resolution for the same
// key is serialized so concurrent first contact cannot race two rooms
// into existence; the store's unique pair constraint backstops the
// lock across processes.
type roomResolver struct {
	provider identity.Provider
	rooms    storage.RoomStore

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newRoomResolver(provider identity.Provider, rooms storage.RoomStore) *roomResolver {
	return &roomResolver{
		provider: provider,
		rooms:    rooms,
		locks:    make(map[string]*sync.Mutex),
	}
}

func (r *roomResolver) lockFor(key string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[key] = lock
	}
	return lock
}

// resolve validates the key and both users, then loads or creates the
// room. A malformed key yields BAD_REQUEST; a missing or inactive pair
// member yields UNKNOWN_USER.
func (r *roomResolver) resolve(ctx context.Context, key string) (resolvedRoom, error) {
	userLow, userHigh, err := roomkey.Parse(key)
	if err != nil {
		return resolvedRoom{}, apperrors.Wrap(apperrors.CodeBadRequest, "invalid room key", err)
	}

	members := make(map[int64]identity.Identity, 2)
	for _, userID := range []int64{userLow, userHigh} {
		member, err := r.provider.ResolveUser(ctx, userID)
		if err != nil {
			return resolvedRoom{}, err
		}
		if !member.Active {
			return resolvedRoom{}, apperrors.New(apperrors.CodeUnknownUser, fmt.Sprintf("user %d is not active", userID))
		}
		members[userID] = member
	}

	lock := r.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	room, err := r.rooms.EnsureRoom(ctx, userLow, userHigh)
	if err != nil {
		return resolvedRoom{}, apperrors.Wrap(apperrors.CodeStorageFailure, "ensure room", err)
	}
	return resolvedRoom{room: room, members: members}, nil
}
