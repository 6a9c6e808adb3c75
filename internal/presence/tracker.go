// Package presence binds connections to (session, participant) pairs and
// turns inbound commands into store mutations followed by broadcasts.
// Every connection that joined is reconciled exactly once on disconnect,
// whether or not the client sent an explicit leave.
package presence

import (
	"log"
	"sync"
	"time"

	"github.com/AbdessamadAe/FocusIsle/internal/broadcast"
	"github.com/AbdessamadAe/FocusIsle/pkg/types"
)

// Conn is a connection as the tracker sees it. UserID is the durable
// identity assigned at connect time; ID identifies the transport
// connection instance.
type Conn interface {
	ID() string
	UserID() string
	Send(event types.Event) error
}

// Store is the slice of the entity store the tracker drives.
type Store interface {
	AddParticipant(sessionID, name, requestedID string, now time.Time) (types.Participant, types.Session, []types.Message, error)
	RemoveParticipant(sessionID, participantID string) (bool, error)
	UpdatePosition(sessionID, participantID string, pos types.Position, now time.Time) error
	AppendMessage(sessionID, senderID, text string, now time.Time) (types.Message, error)
	SetLocation(userID string, loc types.Location) error
}

// Archiver receives every appended message for durable retention. Write
// failures never fail the chat path.
type Archiver interface {
	StoreMessage(sessionID string, msg types.Message) error
}

type binding struct {
	sessionID     string
	participantID string
}

// Tracker maps live connections to their session binding.
type Tracker struct {
	store    Store
	registry *broadcast.Registry
	gateway  *broadcast.Gateway
	archive  Archiver // optional

	mu       sync.Mutex
	bindings map[string]binding // connection id -> binding
}

// NewTracker creates a tracker. archive may be nil.
func NewTracker(store Store, registry *broadcast.Registry, gateway *broadcast.Gateway, archive Archiver) *Tracker {
	return &Tracker{
		store:    store,
		registry: registry,
		gateway:  gateway,
		archive:  archive,
		bindings: make(map[string]binding),
	}
}

// HandleJoin binds the connection to a session and participant. The
// joining connection gets the full session snapshot plus message log;
// the room, joiner included, gets a userJoined event.
func (t *Tracker) HandleJoin(c Conn, payload types.JoinPayload) {
	t.mu.Lock()
	if _, bound := t.bindings[c.ID()]; bound {
		t.mu.Unlock()
		t.sendError(c, ErrAlreadyJoined)
		return
	}
	t.mu.Unlock()

	participant, session, messages, err := t.store.AddParticipant(payload.SessionID, payload.UserName, c.UserID(), time.Now())
	if err != nil {
		t.sendError(c, err)
		return
	}

	// A rejoin from a new connection supersedes the old one: its stale
	// binding is dropped so a late disconnect on it cannot remove the
	// participant out from under the live connection.
	t.mu.Lock()
	var stale string
	for connID, existing := range t.bindings {
		if connID != c.ID() && existing.sessionID == payload.SessionID && existing.participantID == participant.ID {
			stale = connID
			delete(t.bindings, connID)
			break
		}
	}
	t.bindings[c.ID()] = binding{sessionID: payload.SessionID, participantID: participant.ID}
	t.mu.Unlock()

	if stale != "" {
		t.registry.LeaveRoom(stale)
		log.Printf("participant %s rebound from conn %s to conn %s", participant.ID, stale, c.ID())
	}

	t.registry.JoinRoom(payload.SessionID, c)
	t.gateway.Broadcast(payload.SessionID, types.Event{Type: types.EventUserJoined, Payload: participant})
	t.gateway.SendTo(c, types.Event{
		Type:    types.EventSessionState,
		Payload: types.SessionStatePayload{Session: session, Messages: messages},
	})
	log.Printf("participant joined: session=%s participant=%s conn=%s", payload.SessionID, participant.ID, c.ID())
}

// HandleLeave removes the bound participant and notifies the room. An
// unbound connection is ignored, matching the transport behavior where
// leave frames can arrive after a disconnect already reconciled.
func (t *Tracker) HandleLeave(c Conn) {
	t.release(c, "leave")
}

// HandleDisconnect reconciles a closed connection: same effect as leave,
// plus removal from the global registry. Safe to call more than once;
// only the first call for a bound connection removes the participant.
func (t *Tracker) HandleDisconnect(c Conn) {
	t.release(c, "disconnect")
	t.registry.Unregister(c.ID())
}

// HandleMove updates the participant's position and tells everyone else
// in the room. The mover does not receive its own echo.
func (t *Tracker) HandleMove(c Conn, pos types.Position) {
	b, ok := t.binding(c)
	if !ok {
		t.sendError(c, ErrNotJoined)
		return
	}

	if err := t.store.UpdatePosition(b.sessionID, b.participantID, pos, time.Now()); err != nil {
		t.sendError(c, err)
		return
	}
	t.gateway.BroadcastExcept(b.sessionID, c.ID(), types.Event{
		Type:    types.EventUserMoved,
		Payload: types.MovedPayload{UserID: b.participantID, Position: pos},
	})
}

// HandleMessage appends a chat message and broadcasts it to the room,
// sender included.
func (t *Tracker) HandleMessage(c Conn, payload types.MessagePayload) {
	b, ok := t.binding(c)
	if !ok {
		t.sendError(c, ErrNotJoined)
		return
	}

	message, err := t.store.AppendMessage(b.sessionID, b.participantID, payload.Text, time.Now())
	if err != nil {
		t.sendError(c, err)
		return
	}

	if t.archive != nil {
		if err := t.archive.StoreMessage(b.sessionID, message); err != nil {
			log.Printf("archive write failed for session %s: %v", b.sessionID, err)
		}
	}
	t.gateway.Broadcast(b.sessionID, types.Event{Type: types.EventNewMessage, Payload: message})
}

// HandleLocation stores a reported location for the connection's durable
// identity. Requires no session binding and triggers no broadcast.
func (t *Tracker) HandleLocation(c Conn, loc types.Location) {
	if err := t.store.SetLocation(c.UserID(), loc); err != nil {
		t.sendError(c, err)
	}
}

// release drops the binding and removes the participant. The binding
// delete under the mutex is the exactly-once gate for racing leave and
// disconnect paths.
func (t *Tracker) release(c Conn, cause string) {
	t.mu.Lock()
	b, bound := t.bindings[c.ID()]
	if bound {
		delete(t.bindings, c.ID())
	}
	t.mu.Unlock()

	if !bound {
		return
	}

	t.registry.LeaveRoom(c.ID())
	if _, err := t.store.RemoveParticipant(b.sessionID, b.participantID); err != nil {
		log.Printf("remove participant failed: session=%s participant=%s: %v", b.sessionID, b.participantID, err)
	}
	t.gateway.Broadcast(b.sessionID, types.Event{Type: types.EventUserLeft, Payload: b.participantID})
	log.Printf("participant left (%s): session=%s participant=%s conn=%s", cause, b.sessionID, b.participantID, c.ID())
}

func (t *Tracker) binding(c Conn) (binding, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.bindings[c.ID()]
	return b, ok
}

func (t *Tracker) sendError(c Conn, err error) {
	t.gateway.SendTo(c, types.Event{Type: types.EventError, Payload: types.ErrorPayload{Message: err.Error()}})
}
