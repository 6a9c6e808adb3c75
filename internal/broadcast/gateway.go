package broadcast

import (
	"log"

	"github.com/AbdessamadAe/FocusIsle/pkg/types"
)

// Gateway fans events out to rooms. Send failures are logged and
// skipped; a slow or gone connection simply misses the event.
type Gateway struct {
	registry *Registry
}

// NewGateway creates a gateway over the registry.
func NewGateway(registry *Registry) *Gateway {
	return &Gateway{registry: registry}
}

// Broadcast sends an event to every connection in the session's room.
func (g *Gateway) Broadcast(sessionID string, event types.Event) {
	for _, c := range g.registry.RoomMembers(sessionID) {
		if err := c.Send(event); err != nil {
			log.Printf("broadcast %s to connection %s failed: %v", event.Type, c.ID(), err)
		}
	}
}

// BroadcastExcept sends an event to the room, skipping one connection.
// Used for move updates, which are not echoed to the mover.
func (g *Gateway) BroadcastExcept(sessionID, exceptConnID string, event types.Event) {
	for _, c := range g.registry.RoomMembers(sessionID) {
		if c.ID() == exceptConnID {
			continue
		}
		if err := c.Send(event); err != nil {
			log.Printf("broadcast %s to connection %s failed: %v", event.Type, c.ID(), err)
		}
	}
}

// SendTo delivers a point-to-point event to a single connection.
func (g *Gateway) SendTo(c Client, event types.Event) {
	if c == nil {
		return
	}
	if err := c.Send(event); err != nil {
		log.Printf("send %s to connection %s failed: %v", event.Type, c.ID(), err)
	}
}
