// Package reaper evicts participants whose connections went silent
// without a disconnect ever reaching the server.
package reaper

import (
	"context"
	"log"
	"time"

	"github.com/AbdessamadAe/FocusIsle/pkg/types"
)

// Store is the slice of the entity store the reaper drives.
type Store interface {
	ReapInactive(threshold time.Duration, now time.Time) map[string][]string
}

// Broadcaster notifies rooms about evictions.
type Broadcaster interface {
	Broadcast(sessionID string, event types.Event)
}

// Reaper is the periodic inactivity sweeper.
type Reaper struct {
	store     Store
	gateway   Broadcaster
	interval  time.Duration
	threshold time.Duration
}

// New creates a reaper sweeping at interval, evicting participants idle
// longer than threshold.
func New(store Store, gateway Broadcaster, interval, threshold time.Duration) *Reaper {
	return &Reaper{store: store, gateway: gateway, interval: interval, threshold: threshold}
}

// Run sweeps until the context is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.Printf("inactivity reaper started (sweep %v, threshold %v)", r.interval, r.threshold)
	for {
		select {
		case <-ctx.Done():
			log.Println("inactivity reaper stopped")
			return
		case now := <-ticker.C:
			r.Sweep(now)
		}
	}
}

// Sweep removes idle participants and tells each room who left. Evicted
// participants get the same userLeft event as an explicit leave, so
// other clients never keep rendering a ghost.
func (r *Reaper) Sweep(now time.Time) {
	for sessionID, participantIDs := range r.store.ReapInactive(r.threshold, now) {
		for _, pid := range participantIDs {
			log.Printf("reaped inactive participant %s from session %s", pid, sessionID)
			r.gateway.Broadcast(sessionID, types.Event{Type: types.EventUserLeft, Payload: pid})
		}
	}
}
