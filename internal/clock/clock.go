// Package clock advances every session's focus/break phase on a fixed
// tick and keeps rooms informed of the session document.
package clock

import (
	"context"
	"log"
	"time"

	"github.com/AbdessamadAe/FocusIsle/pkg/types"
)

// Store is the slice of the entity store the clock drives. AdvancePhase
// runs under the session's own lock, so ticks serialize against
// connection-driven mutations.
type Store interface {
	SessionIDs() []string
	AdvancePhase(sessionID string, now time.Time) (types.Session, bool, error)
}

// Broadcaster delivers the session document to a room.
type Broadcaster interface {
	Broadcast(sessionID string, event types.Event)
}

// Clock is the periodic phase checker.
type Clock struct {
	store    Store
	gateway  Broadcaster
	interval time.Duration
}

// New creates a clock ticking at the given interval.
func New(store Store, gateway Broadcaster, interval time.Duration) *Clock {
	return &Clock{store: store, gateway: gateway, interval: interval}
}

// Run ticks until the context is cancelled. An error on one session
// never stops the tick from processing the rest.
func (c *Clock) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	log.Printf("session clock started (tick %v)", c.interval)
	for {
		select {
		case <-ctx.Done():
			log.Println("session clock stopped")
			return
		case now := <-ticker.C:
			c.Tick(now)
		}
	}
}

// Tick advances every managed session and broadcasts the resulting
// session document to its room. The document goes out on every tick, not
// only on flips: clients reconcile their countdowns from it.
func (c *Clock) Tick(now time.Time) {
	for _, id := range c.store.SessionIDs() {
		session, flipped, err := c.store.AdvancePhase(id, now)
		if err != nil {
			log.Printf("phase check failed for session %s: %v", id, err)
			continue
		}
		if flipped {
			log.Printf("session %s entered %s phase until %s", id, session.Status, session.EndTime.Format(time.RFC3339))
		}
		c.gateway.Broadcast(id, types.Event{Type: types.EventSessionUpdated, Payload: session})
	}
}
