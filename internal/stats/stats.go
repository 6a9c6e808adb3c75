// Package stats derives read-only session statistics on demand from the
// entity store plus the reported-location side table.
package stats

import (
	"sort"
	"time"

	"github.com/AbdessamadAe/FocusIsle/pkg/types"
)

// Aggregator computes the dashboard read model. It holds no state of its
// own; every call reflects the store at that instant.
type Aggregator struct {
	store Source
}

// Source is the slice of the store the aggregator needs.
type Source interface {
	ListParticipants(sessionID string) ([]types.Participant, error)
	Locations() map[string]types.Location
}

// New creates an aggregator over the given store.
func New(store Source) *Aggregator {
	return &Aggregator{store: store}
}

// Stats builds the statistics document for a session. totalFocusMinutes
// sums whole wall-clock minutes since each current participant joined;
// it approximates focus engagement rather than timing focus phases.
func (a *Aggregator) Stats(sessionID string, now time.Time) (types.SessionStats, error) {
	participants, err := a.store.ListParticipants(sessionID)
	if err != nil {
		return types.SessionStats{}, err
	}

	totalMinutes := 0
	for _, p := range participants {
		totalMinutes += int(now.Sub(p.JoinedAt).Minutes())
	}

	return types.SessionStats{
		ActiveUsers:       len(participants),
		TotalFocusMinutes: totalMinutes,
		TopLocations:      a.topLocations(participants),
	}, nil
}

// topLocations joins current participants to their location reports,
// groups by country, and ranks by count descending. Participants without
// a report are skipped; ordering among equal counts is unspecified.
func (a *Aggregator) topLocations(participants []types.Participant) []types.LocationStat {
	locations := a.store.Locations()

	buckets := make(map[string]*types.LocationStat)
	order := make([]string, 0)
	for _, p := range participants {
		loc, ok := locations[p.ID]
		if !ok {
			continue
		}
		bucket, ok := buckets[loc.Country]
		if !ok {
			bucket = &types.LocationStat{Name: loc.Country, Coordinates: loc.Coordinates}
			buckets[loc.Country] = bucket
			order = append(order, loc.Country)
		}
		bucket.Count++
	}

	stats := make([]types.LocationStat, 0, len(order))
	for _, country := range order {
		stats = append(stats, *buckets[country])
	}
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Count > stats[j].Count
	})
	return stats
}
