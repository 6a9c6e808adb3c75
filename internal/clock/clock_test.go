package clock

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbdessamadAe/FocusIsle/internal/store"
	"github.com/AbdessamadAe/FocusIsle/pkg/types"
)

// fakeGateway records broadcasts per session.
type fakeGateway struct {
	mu     sync.Mutex
	events map[string][]types.Event
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{events: make(map[string][]types.Event)}
}

func (f *fakeGateway) Broadcast(sessionID string, event types.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[sessionID] = append(f.events[sessionID], event)
}

func (f *fakeGateway) forSession(sessionID string) []types.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.Event(nil), f.events[sessionID]...)
}

// failingStore reports one bad session alongside a good one.
type failingStore struct {
	inner *store.Store
}

func (f *failingStore) SessionIDs() []string {
	return append([]string{"broken"}, f.inner.SessionIDs()...)
}

func (f *failingStore) AdvancePhase(sessionID string, now time.Time) (types.Session, bool, error) {
	if sessionID == "broken" {
		return types.Session{}, false, errors.New("boom")
	}
	return f.inner.AdvancePhase(sessionID, now)
}

func TestTickBroadcastsEverySession(t *testing.T) {
	s := store.New(500)
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	_, err := s.CreateSession("default", 20, 5, start)
	require.NoError(t, err)
	_, err = s.CreateSession("team-a", 25, 5, start)
	require.NoError(t, err)

	gateway := newFakeGateway()
	c := New(s, gateway, time.Second)

	// No flip yet, the document still goes out every tick.
	c.Tick(start.Add(time.Second))
	require.Len(t, gateway.forSession("default"), 1)
	require.Len(t, gateway.forSession("team-a"), 1)

	event := gateway.forSession("default")[0]
	assert.Equal(t, types.EventSessionUpdated, event.Type)
	assert.Equal(t, types.StatusFocus, event.Payload.(types.Session).Status)
}

func TestTickFlipsExpiredPhase(t *testing.T) {
	s := store.New(500)
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	_, err := s.CreateSession("default", 20, 5, start)
	require.NoError(t, err)

	gateway := newFakeGateway()
	c := New(s, gateway, time.Second)

	flipAt := start.Add(20*time.Minute + time.Second)
	c.Tick(flipAt)

	events := gateway.forSession("default")
	require.Len(t, events, 1)
	session := events[0].Payload.(types.Session)
	assert.Equal(t, types.StatusBreak, session.Status)
	assert.Equal(t, flipAt.Add(5*time.Minute), session.EndTime)
}

func TestTickIsolatesSessionErrors(t *testing.T) {
	inner := store.New(500)
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	_, err := inner.CreateSession("default", 20, 5, start)
	require.NoError(t, err)

	gateway := newFakeGateway()
	c := New(&failingStore{inner: inner}, gateway, time.Second)

	c.Tick(start.Add(time.Second))

	assert.Empty(t, gateway.forSession("broken"))
	assert.Len(t, gateway.forSession("default"), 1, "an error in one session must not stop the others")
}
