// Package broadcast delivers state-change events to connections
// subscribed to a session, and point-to-point events to single
// connections. Delivery is best-effort: no acknowledgment, no retry.
package broadcast

import (
	"sync"

	"github.com/AbdessamadAe/FocusIsle/pkg/types"
)

// Client is a connection handle as the broadcast layer sees it. The
// websocket connection wrapper implements it; tests use fakes.
type Client interface {
	// ID identifies this connection instance, not the user behind it.
	ID() string
	Send(event types.Event) error
}

// Registry tracks live connections and their room membership. A
// connection belongs to at most one room; rooms map 1:1 to sessions.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]Client            // connection id -> client
	rooms  map[string]map[string]Client // session id -> connection id -> client
	member map[string]string            // connection id -> session id
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[string]Client),
		rooms:  make(map[string]map[string]Client),
		member: make(map[string]string),
	}
}

// Register adds a connection to the global set. Done once on connect,
// before any room subscription.
func (r *Registry) Register(c Client) {
	if c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.ID()] = c
}

// Unregister drops a connection from the global set and from its room,
// if any. Idempotent; safe to call from racing cleanup paths.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, connID)
	r.leaveRoomLocked(connID)
}

// JoinRoom subscribes a connection to a session's broadcasts. A
// connection already in another room is moved.
func (r *Registry) JoinRoom(sessionID string, c Client) {
	if c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.leaveRoomLocked(c.ID())
	room, ok := r.rooms[sessionID]
	if !ok {
		room = make(map[string]Client)
		r.rooms[sessionID] = room
	}
	room[c.ID()] = c
	r.member[c.ID()] = sessionID
}

// LeaveRoom unsubscribes a connection from its room. Idempotent.
func (r *Registry) LeaveRoom(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveRoomLocked(connID)
}

// RoomMembers returns the clients subscribed to a session at this
// instant.
func (r *Registry) RoomMembers(sessionID string) []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.rooms[sessionID]
	members := make([]Client, 0, len(room))
	for _, c := range room {
		members = append(members, c)
	}
	return members
}

// Counts reports registry totals for health reporting.
func (r *Registry) Counts() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return map[string]int{
		"total_connections": len(r.conns),
		"active_rooms":      len(r.rooms),
	}
}

// leaveRoomLocked removes a connection from its room and drops the room
// once empty. Caller holds r.mu.
func (r *Registry) leaveRoomLocked(connID string) {
	sessionID, ok := r.member[connID]
	if !ok {
		return
	}
	delete(r.member, connID)
	if room, ok := r.rooms[sessionID]; ok {
		delete(room, connID)
		if len(room) == 0 {
			delete(r.rooms, sessionID)
		}
	}
}
