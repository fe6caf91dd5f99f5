package server

import (
	"encoding/json"
	"sync"
)

type wsPeer struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

func newWSPeer(encoder *json.Encoder) *wsPeer {
	return &wsPeer{encoder: encoder}
}

func (p *wsPeer) write(event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(event)
}

// roomHub tracks the live broadcast group per canonical room key. Groups
// exist only while at least one connection is subscribed; message
// durability lives in the store, not here.
type roomHub struct {
	mu    sync.Mutex
	rooms map[string]*chatRoom
}

func newRoomHub() *roomHub {
	return &roomHub{rooms: make(map[string]*chatRoom)}
}

// join subscribes the peer to the group for key, creating the group on
// first subscription.
func (h *roomHub) join(key string, peer *wsPeer) *chatRoom {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[key]
	if !ok {
		room = newChatRoom(key)
		h.rooms[key] = room
	}
	room.join(peer)
	return room
}

// leave unsubscribes the peer and discards the group once it empties.
// Safe to call more than once for the same peer.
func (h *roomHub) leave(room *chatRoom, peer *wsPeer) {
	if room == nil || peer == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if room.leave(peer) && h.rooms[room.key] == room {
		delete(h.rooms, room.key)
	}
}

func (h *roomHub) memberCount(key string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[key]
	if !ok {
		return 0
	}
	return room.memberCount()
}

type chatRoom struct {
	mu          sync.Mutex
	key         string
	subscribers map[*wsPeer]struct{}
}

func newChatRoom(key string) *chatRoom {
	return &chatRoom{
		key:         key,
		subscribers: make(map[*wsPeer]struct{}),
	}
}

func (r *chatRoom) join(peer *wsPeer) {
	r.mu.Lock()
	r.subscribers[peer] = struct{}{}
	r.mu.Unlock()
}

func (r *chatRoom) leave(peer *wsPeer) bool {
	r.mu.Lock()
	delete(r.subscribers, peer)
	empty := len(r.subscribers) == 0
	r.mu.Unlock()
	return empty
}

func (r *chatRoom) memberCount() int {
	r.mu.Lock()
	count := len(r.subscribers)
	r.mu.Unlock()
	return count
}

// publish delivers the event to the subscribers present when the call
// started. Delivery happens outside the room lock so one slow peer never
// blocks membership changes; a peer that left after the snapshot may
// still receive this event, one that failed mid-write is dropped without
// retry.
func (r *chatRoom) publish(event any) {
	r.mu.Lock()
	subscribers := make([]*wsPeer, 0, len(r.subscribers))
	for subscriber := range r.subscribers {
		subscribers = append(subscribers, subscriber)
	}
	r.mu.Unlock()

	for _, subscriber := range subscribers {
		_ = subscriber.write(event)
	}
}
