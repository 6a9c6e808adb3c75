package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbdessamadAe/FocusIsle/pkg/types"
)

func newTestStore(t *testing.T) (*Store, time.Time) {
	t.Helper()
	s := New(500)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	_, err := s.CreateSession("default", 20, 5, now)
	require.NoError(t, err)
	return s, now
}

func TestCreateSession(t *testing.T) {
	s := New(500)
	now := time.Now()

	session, err := s.CreateSession("default", 20, 5, now)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFocus, session.Status)
	assert.Equal(t, now, session.StartTime)
	assert.Equal(t, now.Add(20*time.Minute), session.EndTime)
	assert.True(t, session.EndTime.After(session.StartTime))
	assert.Empty(t, session.Participants)

	_, err = s.CreateSession("default", 20, 5, now)
	assert.ErrorIs(t, err, types.ErrSessionExists)

	_, err = s.CreateSession("bad id!", 20, 5, now)
	assert.ErrorIs(t, err, types.ErrInvalidSessionID)

	_, err = s.CreateSession("other", 0, 5, now)
	assert.ErrorIs(t, err, types.ErrInvalidPhaseLength)
}

func TestGetSessionNotFound(t *testing.T) {
	s := New(500)
	_, err := s.GetSession("missing")
	assert.ErrorIs(t, err, types.ErrSessionNotFound)

	_, err = s.ListParticipants("missing")
	assert.ErrorIs(t, err, types.ErrSessionNotFound)
}

func TestAddParticipant(t *testing.T) {
	s, now := newTestStore(t)

	participant, session, messages, err := s.AddParticipant("default", "alba", "", now)
	require.NoError(t, err)
	assert.NotEmpty(t, participant.ID)
	assert.Equal(t, "alba", participant.Name)
	assert.Equal(t, now, participant.JoinedAt)
	assert.Equal(t, now, participant.LastActive)
	assert.Empty(t, messages)
	assert.Len(t, session.Participants, 1)

	// Spawn position stays inside the island bounds.
	assert.InDelta(t, 0, participant.Position.X, spawnRange)
	assert.InDelta(t, 0, participant.Position.Z, spawnRange)
	assert.Equal(t, 0.0, participant.Position.Y)
}

func TestAddParticipantRejoinKeepsIdentity(t *testing.T) {
	s, now := newTestStore(t)

	first, _, _, err := s.AddParticipant("default", "alba", "user-1", now)
	require.NoError(t, err)

	later := now.Add(3 * time.Minute)
	second, session, _, err := s.AddParticipant("default", "alba", "user-1", later)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.JoinedAt, second.JoinedAt, "rejoin preserves joinedAt")
	assert.Equal(t, first.Position, second.Position, "rejoin preserves position")
	assert.Equal(t, later, second.LastActive, "rejoin refreshes lastActive")
	assert.Len(t, session.Participants, 1, "rejoin must not duplicate the entry")
}

func TestAddParticipantValidation(t *testing.T) {
	s, now := newTestStore(t)

	_, _, _, err := s.AddParticipant("default", "   ", "", now)
	assert.ErrorIs(t, err, types.ErrInvalidUserName)

	_, _, _, err = s.AddParticipant("default", "alba", "bad id!", now)
	assert.ErrorIs(t, err, types.ErrInvalidUserID)

	_, _, _, err = s.AddParticipant("missing", "alba", "", now)
	assert.ErrorIs(t, err, types.ErrSessionNotFound)
}

func TestJoinLeaveCounting(t *testing.T) {
	s, now := newTestStore(t)

	for i := 0; i < 5; i++ {
		_, _, _, err := s.AddParticipant("default", "user", fmt.Sprintf("u%d", i), now)
		require.NoError(t, err)
	}

	removed, err := s.RemoveParticipant("default", "u0")
	require.NoError(t, err)
	assert.True(t, removed)

	// Removing an absent participant is a no-op, not an error: leave and
	// disconnect can both fire for the same participant.
	removed, err = s.RemoveParticipant("default", "u0")
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = s.RemoveParticipant("default", "never-joined")
	require.NoError(t, err)
	assert.False(t, removed)

	participants, err := s.ListParticipants("default")
	require.NoError(t, err)
	assert.Len(t, participants, 4)

	_, err = s.RemoveParticipant("missing", "u1")
	assert.ErrorIs(t, err, types.ErrSessionNotFound)
}

func TestUpdatePosition(t *testing.T) {
	s, now := newTestStore(t)
	_, _, _, err := s.AddParticipant("default", "alba", "u1", now)
	require.NoError(t, err)

	later := now.Add(time.Minute)
	pos := types.Position{X: 1.5, Y: 0, Z: -2.25}
	require.NoError(t, s.UpdatePosition("default", "u1", pos, later))

	participants, err := s.ListParticipants("default")
	require.NoError(t, err)
	assert.Equal(t, pos, participants[0].Position)
	assert.Equal(t, later, participants[0].LastActive)

	err = s.UpdatePosition("default", "missing", pos, later)
	assert.ErrorIs(t, err, types.ErrParticipantNotFound)

	err = s.UpdatePosition("default", "u1", types.Position{X: 1e9}, later)
	assert.ErrorIs(t, err, types.ErrInvalidPosition)
}

func TestAppendMessage(t *testing.T) {
	s, now := newTestStore(t)
	_, _, _, err := s.AddParticipant("default", "alba", "u1", now)
	require.NoError(t, err)

	msg, err := s.AppendMessage("default", "u1", "hello island", now)
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "u1", msg.UserID)
	assert.Equal(t, "alba", msg.UserName, "sender name denormalized at send time")
	assert.Equal(t, "hello island", msg.Text)

	_, err = s.AppendMessage("default", "ghost", "hi", now)
	assert.ErrorIs(t, err, types.ErrParticipantNotFound)

	_, err = s.AppendMessage("default", "u1", "   ", now)
	assert.ErrorIs(t, err, types.ErrInvalidMessageText)
}

func TestMessageLogAppendOnlyOrder(t *testing.T) {
	s, now := newTestStore(t)
	_, _, _, err := s.AddParticipant("default", "alba", "u1", now)
	require.NoError(t, err)

	var sent []types.Message
	for i := 0; i < 10; i++ {
		// Out-of-order timestamps on purpose: the log keeps insertion
		// order, it never re-sorts by timestamp.
		ts := now.Add(time.Duration(10-i) * time.Second)
		msg, err := s.AppendMessage("default", "u1", fmt.Sprintf("message %d", i), ts)
		require.NoError(t, err)
		sent = append(sent, msg)
	}

	got, err := s.Messages("default")
	require.NoError(t, err)
	require.Len(t, got, 10)
	for i, msg := range got {
		assert.Equal(t, sent[i], msg)
	}

	// Later operations never alter already-returned messages.
	_, err = s.AppendMessage("default", "u1", "one more", now)
	require.NoError(t, err)
	again, err := s.Messages("default")
	require.NoError(t, err)
	assert.Equal(t, got, again[:10])
}

func TestMessageLogCap(t *testing.T) {
	s := New(3)
	now := time.Now()
	_, err := s.CreateSession("default", 20, 5, now)
	require.NoError(t, err)
	_, _, _, err = s.AddParticipant("default", "alba", "u1", now)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := s.AppendMessage("default", "u1", fmt.Sprintf("message %d", i), now)
		require.NoError(t, err)
	}

	messages, err := s.Messages("default")
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "message 2", messages[0].Text)
	assert.Equal(t, "message 4", messages[2].Text)
}

func TestAdvancePhaseCycle(t *testing.T) {
	s := New(500)
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	_, err := s.CreateSession("default", 20, 5, start)
	require.NoError(t, err)

	// Before endTime nothing changes.
	session, flipped, err := s.AdvancePhase("default", start.Add(19*time.Minute))
	require.NoError(t, err)
	assert.False(t, flipped)
	assert.Equal(t, types.StatusFocus, session.Status)

	// One second past the focus phase: flip to break for 5 minutes.
	flipAt := start.Add(20*time.Minute + time.Second)
	session, flipped, err = s.AdvancePhase("default", flipAt)
	require.NoError(t, err)
	assert.True(t, flipped)
	assert.Equal(t, types.StatusBreak, session.Status)
	assert.Equal(t, flipAt, session.StartTime)
	assert.Equal(t, flipAt.Add(5*time.Minute), session.EndTime)
	assert.True(t, session.EndTime.After(session.StartTime))

	// And back to focus when the break runs out.
	flipAt = flipAt.Add(5*time.Minute + time.Second)
	session, flipped, err = s.AdvancePhase("default", flipAt)
	require.NoError(t, err)
	assert.True(t, flipped)
	assert.Equal(t, types.StatusFocus, session.Status)
	assert.Equal(t, flipAt.Add(20*time.Minute), session.EndTime)

	_, _, err = s.AdvancePhase("missing", flipAt)
	assert.ErrorIs(t, err, types.ErrSessionNotFound)
}

func TestReapInactive(t *testing.T) {
	s, now := newTestStore(t)
	_, _, _, err := s.AddParticipant("default", "idle", "idle-user", now)
	require.NoError(t, err)
	_, _, _, err = s.AddParticipant("default", "busy", "busy-user", now)
	require.NoError(t, err)

	sweepAt := now.Add(6 * time.Minute)
	require.NoError(t, s.UpdatePosition("default", "busy-user", types.Position{X: 1}, sweepAt.Add(-time.Minute)))

	evicted := s.ReapInactive(5*time.Minute, sweepAt)
	assert.Equal(t, []string{"idle-user"}, evicted["default"])

	participants, err := s.ListParticipants("default")
	require.NoError(t, err)
	require.Len(t, participants, 1)
	assert.Equal(t, "busy-user", participants[0].ID)
}

func TestSnapshotIsolation(t *testing.T) {
	s, now := newTestStore(t)
	_, _, _, err := s.AddParticipant("default", "alba", "u1", now)
	require.NoError(t, err)

	snapshot, err := s.GetSession("default")
	require.NoError(t, err)

	// Mutating the snapshot must not touch the store.
	snapshot.Participants["u1"].Name = "mallory"
	delete(snapshot.Participants, "u1")

	participants, err := s.ListParticipants("default")
	require.NoError(t, err)
	require.Len(t, participants, 1)
	assert.Equal(t, "alba", participants[0].Name)
}

func TestLocations(t *testing.T) {
	s, _ := newTestStore(t)

	loc := types.Location{Country: "US", Coordinates: [2]float64{-98.5, 39.8}}
	require.NoError(t, s.SetLocation("u1", loc))

	locations := s.Locations()
	assert.Equal(t, loc, locations["u1"])

	// Returned map is a copy.
	delete(locations, "u1")
	assert.Contains(t, s.Locations(), "u1")

	err := s.SetLocation("u1", types.Location{Country: ""})
	assert.ErrorIs(t, err, types.ErrInvalidLocation)
	err = s.SetLocation("bad id!", loc)
	assert.ErrorIs(t, err, types.ErrInvalidUserID)
}
