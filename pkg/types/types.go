package types

import (
	"encoding/json"
	"time"
)

// Session status values. A session cycles focus -> break -> focus forever.
const (
	StatusFocus = "focus"
	StatusBreak = "break"
)

// Inbound command types carried in the websocket envelope.
const (
	CommandJoinSession    = "joinSession"
	CommandLeaveSession   = "leaveSession"
	CommandUpdatePosition = "updatePosition"
	CommandSendMessage    = "sendMessage"
	CommandUpdateLocation = "updateLocation"
)

// Outbound event types.
const (
	EventUserID         = "userId"
	EventSessionState   = "sessionState"
	EventUserJoined     = "userJoined"
	EventUserLeft       = "userLeft"
	EventUserMoved      = "userMoved"
	EventNewMessage     = "newMessage"
	EventSessionUpdated = "sessionUpdated"
	EventError          = "error"
)

// Position is a point in the shared 3D space. Last writer wins.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Participant is one user's live presence within a session.
// ID is durable across reconnects when the client supplies it.
type Participant struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Position   Position  `json:"position"`
	JoinedAt   time.Time `json:"joinedAt"`
	LastActive time.Time `json:"lastActive"`
}

// Session is a time-boxed focus/break cycle plus its current participants.
// StartTime and EndTime bound the current phase only; Status determines
// which configured length produced EndTime.
type Session struct {
	ID           string                  `json:"id"`
	StartTime    time.Time               `json:"startTime"`
	EndTime      time.Time               `json:"endTime"`
	Status       string                  `json:"status"`
	FocusLength  int                     `json:"focusLength"`
	BreakLength  int                     `json:"breakLength"`
	Participants map[string]*Participant `json:"users"`
}

// Message is a chat message. UserName is denormalized at send time so
// history never changes retroactively.
type Message struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Location is a client-reported geographic position, kept in a side
// table keyed by user id. Coordinates are [longitude, latitude].
type Location struct {
	Country     string     `json:"country"`
	Coordinates [2]float64 `json:"coordinates"`
}

// LocationStat is one country bucket in the stats document. Coordinates
// come from an arbitrary report sharing the country name; they stand in
// for a display centroid, not per-user data.
type LocationStat struct {
	Name        string     `json:"name"`
	Count       int        `json:"count"`
	Coordinates [2]float64 `json:"coordinates"`
}

// SessionStats is the point-in-time read model served to dashboards.
type SessionStats struct {
	ActiveUsers       int            `json:"activeUsers"`
	TotalFocusMinutes int            `json:"totalFocusMinutes"`
	TopLocations      []LocationStat `json:"topLocations"`
}

// Envelope is the wire frame for inbound commands. Payload shape depends
// on Type and is validated per command before use.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Event is the wire frame for outbound notifications.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// JoinPayload carries the joinSession command fields.
type JoinPayload struct {
	SessionID string `json:"sessionId"`
	UserName  string `json:"userName"`
}

// MessagePayload carries the sendMessage command fields.
type MessagePayload struct {
	Text string `json:"text"`
}

// MovedPayload is the userMoved broadcast body.
type MovedPayload struct {
	UserID   string   `json:"userId"`
	Position Position `json:"position"`
}

// SessionStatePayload is the snapshot sent to a connection on join.
type SessionStatePayload struct {
	Session  Session   `json:"session"`
	Messages []Message `json:"messages"`
}

// ErrorPayload is the body of an error event.
type ErrorPayload struct {
	Message string `json:"message"`
}
