// Package ws provides the websocket gateway: per-connection clients and the
// in-memory room registry that fans conversation events out to them.
package ws

import (
	"log/slog"
	"sync"

	"github.com/parlor/parlor/pkg/utils"
)

// Subscriber receives room events. Deliver must not block; implementations
// drop the event when they cannot accept it.
type Subscriber interface {
	Deliver(event string, payload any)
}

// Registry maps conversation ids to the set of live subscribers interested
// in them. It is process-local: nothing is persisted, and clients must
// re-join their rooms after a server restart. The registry is an owned
// component instance held by the server, not a package-level singleton, so
// tests can swap it out.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]map[Subscriber]struct{}
	logger *slog.Logger
}

// NewRegistry creates an empty room registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:  make(map[string]map[Subscriber]struct{}),
		logger: utils.GetLogger(),
	}
}

// Join adds sub to the room for conversationID, creating the room lazily.
// Joining a room twice is a no-op. No subscriber cap is enforced, and no
// authorization check happens here; that was settled when the connection
// was accepted.
func (r *Registry) Join(sub Subscriber, conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[conversationID]
	if !ok {
		room = make(map[Subscriber]struct{})
		r.rooms[conversationID] = room
	}
	room[sub] = struct{}{}
}

// Leave removes sub from every room it is a member of. Empty rooms are
// dropped.
func (r *Registry) Leave(sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, room := range r.rooms {
		if _, ok := room[sub]; ok {
			delete(room, sub)
			if len(room) == 0 {
				delete(r.rooms, id)
			}
		}
	}
}

// Broadcast delivers event with payload to every subscriber of the room.
// Delivery is fire-and-forget: no acknowledgment, no retry, and a
// subscriber that dropped mid-broadcast simply does not receive the event.
func (r *Registry) Broadcast(conversationID, event string, payload any) {
	r.mu.RLock()
	subs := make([]Subscriber, 0, len(r.rooms[conversationID]))
	for sub := range r.rooms[conversationID] {
		subs = append(subs, sub)
	}
	r.mu.RUnlock()

	for _, sub := range subs {
		sub.Deliver(event, payload)
	}
}

// RoomSize returns the current number of subscribers for a conversation.
func (r *Registry) RoomSize(conversationID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[conversationID])
}
