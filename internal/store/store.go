// Package store owns the canonical in-memory state: sessions, their
// participants, per-session message logs, and the location side table.
// Every other component reads and writes through it.
package store

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AbdessamadAe/FocusIsle/pkg/types"
)

// spawnRange bounds the random initial position on the x and z axes.
// New participants land somewhere on the island, not at a fixed point.
const spawnRange = 3.0

// sessionState pairs a session with its message log under one mutex.
// All mutations of a session take this lock, so connection-driven
// commands, clock flips, and reaper sweeps never interleave partial
// reads/writes of the same session.
type sessionState struct {
	mu       sync.Mutex
	session  types.Session
	messages []types.Message
}

// Store is the process-wide entity store. Sessions are independent:
// the outer lock only guards the session map itself, each session
// serializes its own mutations.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*sessionState

	locMu     sync.RWMutex
	locations map[string]types.Location

	messageCap int
}

// New creates an empty store. messageCap bounds the in-memory message
// log per session; once exceeded the oldest entries are dropped (they
// remain in the archive, which is written separately).
func New(messageCap int) *Store {
	if messageCap <= 0 {
		messageCap = 500
	}
	return &Store{
		sessions:   make(map[string]*sessionState),
		locations:  make(map[string]types.Location),
		messageCap: messageCap,
	}
}

// CreateSession initializes a session in the focus phase ending
// focusLength minutes from now.
func (s *Store) CreateSession(id string, focusLength, breakLength int, now time.Time) (types.Session, error) {
	if !types.IsValidID(id) {
		return types.Session{}, types.ErrInvalidSessionID
	}
	if focusLength <= 0 || breakLength <= 0 {
		return types.Session{}, types.ErrInvalidPhaseLength
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[id]; exists {
		return types.Session{}, types.ErrSessionExists
	}

	state := &sessionState{
		session: types.Session{
			ID:           id,
			StartTime:    now,
			EndTime:      now.Add(time.Duration(focusLength) * time.Minute),
			Status:       types.StatusFocus,
			FocusLength:  focusLength,
			BreakLength:  breakLength,
			Participants: make(map[string]*types.Participant),
		},
	}
	s.sessions[id] = state
	return snapshotLocked(state), nil
}

// GetSession returns a deep-copied snapshot of the session document.
func (s *Store) GetSession(id string) (types.Session, error) {
	state, err := s.lookup(id)
	if err != nil {
		return types.Session{}, err
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	return snapshotLocked(state), nil
}

// ListParticipants returns copies of the session's current participants.
func (s *Store) ListParticipants(id string) ([]types.Participant, error) {
	state, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	participants := make([]types.Participant, 0, len(state.session.Participants))
	for _, p := range state.session.Participants {
		participants = append(participants, *p)
	}
	return participants, nil
}

// SessionIDs returns the ids of all sessions currently managed.
func (s *Store) SessionIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

// AddParticipant creates a participant, or refreshes an existing one
// when requestedID is already present (a rejoin after reconnect keeps
// joinedAt and position and never duplicates the entry). It returns the
// participant together with a session snapshot and the message log tail,
// taken under the same lock so the join reply is never torn.
func (s *Store) AddParticipant(sessionID, name, requestedID string, now time.Time) (types.Participant, types.Session, []types.Message, error) {
	if err := types.ValidateUserName(name); err != nil {
		return types.Participant{}, types.Session{}, nil, err
	}
	if requestedID != "" && !types.IsValidID(requestedID) {
		return types.Participant{}, types.Session{}, nil, types.ErrInvalidUserID
	}

	state, err := s.lookup(sessionID)
	if err != nil {
		return types.Participant{}, types.Session{}, nil, err
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	if requestedID != "" {
		if existing, ok := state.session.Participants[requestedID]; ok {
			existing.LastActive = now
			return *existing, snapshotLocked(state), messagesLocked(state), nil
		}
	}

	id := requestedID
	if id == "" {
		id = uuid.New().String()
	}
	participant := &types.Participant{
		ID:   id,
		Name: name,
		Position: types.Position{
			X: rand.Float64()*2*spawnRange - spawnRange,
			Y: 0,
			Z: rand.Float64()*2*spawnRange - spawnRange,
		},
		JoinedAt:   now,
		LastActive: now,
	}
	state.session.Participants[id] = participant
	return *participant, snapshotLocked(state), messagesLocked(state), nil
}

// RemoveParticipant deletes a participant. Removing an absent id is a
// no-op, not an error: explicit leave and transport disconnect can race
// and both fire for the same participant. The bool reports whether an
// entry was actually removed.
func (s *Store) RemoveParticipant(sessionID, participantID string) (bool, error) {
	state, err := s.lookup(sessionID)
	if err != nil {
		return false, err
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	if _, ok := state.session.Participants[participantID]; !ok {
		return false, nil
	}
	delete(state.session.Participants, participantID)
	return true, nil
}

// UpdatePosition overwrites a participant's position and refreshes
// lastActive.
func (s *Store) UpdatePosition(sessionID, participantID string, pos types.Position, now time.Time) error {
	if err := pos.Validate(); err != nil {
		return err
	}

	state, err := s.lookup(sessionID)
	if err != nil {
		return err
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	participant, ok := state.session.Participants[participantID]
	if !ok {
		return types.ErrParticipantNotFound
	}
	participant.Position = pos
	participant.LastActive = now
	return nil
}

// AppendMessage appends a chat message, denormalizing the sender's name
// at call time. The in-memory log is capped; the oldest entries fall off
// once the cap is exceeded.
func (s *Store) AppendMessage(sessionID, senderID, text string, now time.Time) (types.Message, error) {
	if err := types.ValidateMessageText(text); err != nil {
		return types.Message{}, err
	}

	state, err := s.lookup(sessionID)
	if err != nil {
		return types.Message{}, err
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	sender, ok := state.session.Participants[senderID]
	if !ok {
		return types.Message{}, types.ErrParticipantNotFound
	}

	message := types.Message{
		ID:        uuid.New().String(),
		UserID:    senderID,
		UserName:  sender.Name,
		Text:      text,
		Timestamp: now,
	}
	state.messages = append(state.messages, message)
	if len(state.messages) > s.messageCap {
		overflow := len(state.messages) - s.messageCap
		state.messages = append([]types.Message(nil), state.messages[overflow:]...)
	}
	return message, nil
}

// Messages returns a copy of the in-memory message log in insertion order.
func (s *Store) Messages(sessionID string) ([]types.Message, error) {
	state, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	return messagesLocked(state), nil
}

// AdvancePhase flips the session between focus and break when the
// current phase has run out. The returned snapshot reflects the state
// after any flip; the bool reports whether a flip happened.
func (s *Store) AdvancePhase(sessionID string, now time.Time) (types.Session, bool, error) {
	state, err := s.lookup(sessionID)
	if err != nil {
		return types.Session{}, false, err
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	flipped := false
	if !now.Before(state.session.EndTime) {
		session := &state.session
		if session.Status == types.StatusFocus {
			session.Status = types.StatusBreak
			session.EndTime = now.Add(time.Duration(session.BreakLength) * time.Minute)
		} else {
			session.Status = types.StatusFocus
			session.EndTime = now.Add(time.Duration(session.FocusLength) * time.Minute)
		}
		session.StartTime = now
		flipped = true
	}
	return snapshotLocked(state), flipped, nil
}

// ReapInactive removes participants whose lastActive is older than
// threshold, across all sessions. It returns the removed participant ids
// per session so callers can notify the rooms.
func (s *Store) ReapInactive(threshold time.Duration, now time.Time) map[string][]string {
	evicted := make(map[string][]string)
	for _, id := range s.SessionIDs() {
		state, err := s.lookup(id)
		if err != nil {
			continue // session removed since listing
		}

		state.mu.Lock()
		for pid, participant := range state.session.Participants {
			if now.Sub(participant.LastActive) > threshold {
				delete(state.session.Participants, pid)
				evicted[id] = append(evicted[id], pid)
			}
		}
		state.mu.Unlock()
	}
	return evicted
}

// SetLocation stores a reported location for a user. Reports outlive the
// participant; stale entries are only surfaced while a matching
// participant is present.
func (s *Store) SetLocation(userID string, loc types.Location) error {
	if !types.IsValidID(userID) {
		return types.ErrInvalidUserID
	}
	if err := loc.Validate(); err != nil {
		return err
	}

	s.locMu.Lock()
	defer s.locMu.Unlock()
	s.locations[userID] = loc
	return nil
}

// Locations returns a copy of the location side table.
func (s *Store) Locations() map[string]types.Location {
	s.locMu.RLock()
	defer s.locMu.RUnlock()

	out := make(map[string]types.Location, len(s.locations))
	for id, loc := range s.locations {
		out[id] = loc
	}
	return out
}

func (s *Store) lookup(id string) (*sessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.sessions[id]
	if !ok {
		return nil, types.ErrSessionNotFound
	}
	return state, nil
}

// snapshotLocked deep-copies the session. Caller holds state.mu.
func snapshotLocked(state *sessionState) types.Session {
	session := state.session
	session.Participants = make(map[string]*types.Participant, len(state.session.Participants))
	for id, p := range state.session.Participants {
		copied := *p
		session.Participants[id] = &copied
	}
	return session
}

// messagesLocked copies the message log. Caller holds state.mu.
func messagesLocked(state *sessionState) []types.Message {
	return append([]types.Message(nil), state.messages...)
}
