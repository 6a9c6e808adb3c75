package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/AbdessamadAe/FocusIsle/internal/broadcast"
	"github.com/AbdessamadAe/FocusIsle/internal/config"
	"github.com/AbdessamadAe/FocusIsle/internal/presence"
	"github.com/AbdessamadAe/FocusIsle/pkg/types"
)

// identityCookie carries the client's durable user id across reconnects.
const identityCookie = "userId"

var upgrader = websocket.Upgrader{
	// The dashboard and island client are served from another origin
	// during development; origin checking belongs in a fronting proxy.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// Handler upgrades HTTP requests, assigns identity, and pumps inbound
// commands into the presence tracker.
type Handler struct {
	tracker  *presence.Tracker
	registry *broadcast.Registry
	cfg      *config.WebSocketConfig
}

// NewHandler creates a websocket handler.
func NewHandler(tracker *presence.Tracker, registry *broadcast.Registry, cfg *config.WebSocketConfig) *Handler {
	return &Handler{tracker: tracker, registry: registry, cfg: cfg}
}

// HandleWebSocket accepts a connection, reuses the userId cookie when it
// is well-formed or mints a fresh id, and announces the identity in use
// before any command is read.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := ""
	if cookie, err := r.Cookie(identityCookie); err == nil && types.IsValidID(cookie.Value) {
		userID = cookie.Value
	}
	if userID == "" {
		userID = uuid.New().String()
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	wsConn := NewConnection(conn, uuid.New().String(), userID, h.cfg.WriteTimeout, h.cfg.BufferSize)
	h.registry.Register(wsConn)

	if err := wsConn.Send(types.Event{Type: types.EventUserID, Payload: userID}); err != nil {
		log.Printf("failed to announce identity to %s: %v", wsConn.ID(), err)
	}

	go h.readPump(wsConn)
}

// readPump owns the connection lifecycle: heartbeat deadlines, command
// decoding, and disconnect reconciliation on exit.
func (h *Handler) readPump(c *Connection) {
	defer func() {
		h.tracker.HandleDisconnect(c)
		_ = c.Close()
	}()

	if err := c.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout)); err != nil {
		log.Printf("failed to set read deadline: %v", err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ticker.C:
				deadline := time.Now().Add(h.cfg.WriteTimeout)
				if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, deadline); err != nil {
					return
				}
			case <-c.ctx.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("websocket read error on %s: %v", c.ID(), err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		h.dispatch(c, data)
	}
}

// dispatch validates the envelope and routes the command. Malformed
// payloads are answered with an error event and otherwise ignored; they
// never take the connection down.
func (h *Handler) dispatch(c *Connection, data []byte) {
	var envelope types.Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		h.sendError(c, ErrInvalidEnvelope)
		return
	}

	switch envelope.Type {
	case types.CommandJoinSession:
		var payload types.JoinPayload
		if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
			h.sendError(c, ErrInvalidEnvelope)
			return
		}
		h.tracker.HandleJoin(c, payload)

	case types.CommandLeaveSession:
		h.tracker.HandleLeave(c)

	case types.CommandUpdatePosition:
		var pos types.Position
		if err := json.Unmarshal(envelope.Payload, &pos); err != nil {
			h.sendError(c, ErrInvalidEnvelope)
			return
		}
		h.tracker.HandleMove(c, pos)

	case types.CommandSendMessage:
		var payload types.MessagePayload
		if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
			h.sendError(c, ErrInvalidEnvelope)
			return
		}
		h.tracker.HandleMessage(c, payload)

	case types.CommandUpdateLocation:
		var loc types.Location
		if err := json.Unmarshal(envelope.Payload, &loc); err != nil {
			h.sendError(c, ErrInvalidEnvelope)
			return
		}
		h.tracker.HandleLocation(c, loc)

	default:
		h.sendError(c, ErrInvalidEnvelope)
	}
}

func (h *Handler) sendError(c *Connection, err error) {
	if sendErr := c.Send(types.Event{Type: types.EventError, Payload: types.ErrorPayload{Message: err.Error()}}); sendErr != nil {
		log.Printf("failed to send error event to %s: %v", c.ID(), sendErr)
	}
}
