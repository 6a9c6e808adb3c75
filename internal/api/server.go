// Package api serves the synchronous read surface: session documents,
// derived statistics, archived chat history, and health.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/AbdessamadAe/FocusIsle/internal/stats"
	"github.com/AbdessamadAe/FocusIsle/pkg/types"
)

// Store is the slice of the entity store the API reads from and, for
// session creation, writes to.
type Store interface {
	CreateSession(id string, focusLength, breakLength int, now time.Time) (types.Session, error)
	GetSession(id string) (types.Session, error)
	Messages(sessionID string) ([]types.Message, error)
}

// ArchiveReader serves archived chat history and health pings.
type ArchiveReader interface {
	MessageHistory(ctx context.Context, sessionID string, limit int) ([]types.Message, error)
	Ping(ctx context.Context) error
}

// Registry exposes connection counts for health reporting.
type Registry interface {
	Counts() map[string]int
}

// Server is the HTTP API. It holds no business logic beyond translating
// HTTP to store and aggregator calls.
type Server struct {
	store      Store
	aggregator *stats.Aggregator
	archive    ArchiveReader
	registry   Registry
	router     *mux.Router
}

// NewServer creates the API server and wires its routes.
func NewServer(store Store, aggregator *stats.Aggregator, archive ArchiveReader, registry Registry) *Server {
	s := &Server{
		store:      store,
		aggregator: aggregator,
		archive:    archive,
		registry:   registry,
		router:     mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.corsMiddleware, s.jsonMiddleware)
	s.router.HandleFunc("/api/session", s.createSession).Methods(http.MethodPost, http.MethodOptions)
	s.router.HandleFunc("/api/session/{sessionId}", s.getSession).Methods(http.MethodGet, http.MethodOptions)
	s.router.HandleFunc("/api/session/{sessionId}/stats", s.getStats).Methods(http.MethodGet, http.MethodOptions)
	s.router.HandleFunc("/api/session/{sessionId}/messages", s.getMessages).Methods(http.MethodGet, http.MethodOptions)
	s.router.HandleFunc("/health", s.health).Methods(http.MethodGet)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// CreateSessionRequest is the POST /api/session body.
type CreateSessionRequest struct {
	ID          string `json:"id"`
	FocusLength int    `json:"focusLength"`
	BreakLength int    `json:"breakLength"`
}

// ErrorResponse is the error envelope for all API failures.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// HealthResponse reports component status.
type HealthResponse struct {
	Status      string         `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
	Archive     string         `json:"archive"`
	Connections map[string]int `json:"connections"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	session, err := s.store.CreateSession(req.ID, req.FocusLength, req.BreakLength, time.Now())
	switch {
	case errors.Is(err, types.ErrSessionExists):
		s.sendError(w, "Session already exists", http.StatusConflict)
		return
	case errors.Is(err, types.ErrInvalidSessionID), errors.Is(err, types.ErrInvalidPhaseLength):
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		s.sendError(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	log.Printf("created session %s (focus %dm, break %dm)", session.ID, session.FocusLength, session.BreakLength)
	w.WriteHeader(http.StatusCreated)
	s.writeJSON(w, session)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]

	session, err := s.store.GetSession(sessionID)
	if err != nil {
		s.sendError(w, "Session not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, session)
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]

	document, err := s.aggregator.Stats(sessionID, time.Now())
	if err != nil {
		s.sendError(w, "Session not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, document)
}

// getMessages serves archived history, falling back to the in-memory log
// when no archive is configured.
func (s *Server) getMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]

	if _, err := s.store.GetSession(sessionID); err != nil {
		s.sendError(w, "Session not found", http.StatusNotFound)
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			s.sendError(w, "limit must be between 1 and 1000", http.StatusBadRequest)
			return
		}
		limit = n
	}

	if s.archive == nil {
		messages, err := s.store.Messages(sessionID)
		if err != nil {
			s.sendError(w, "Failed to load messages", http.StatusInternalServerError)
			return
		}
		if len(messages) > limit {
			messages = messages[len(messages)-limit:]
		}
		s.writeJSON(w, messages)
		return
	}

	messages, err := s.archive.MessageHistory(r.Context(), sessionID, limit)
	if err != nil {
		s.sendError(w, "Failed to load message history", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, messages)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	archiveStatus := "healthy"
	if s.archive != nil {
		if err := s.archive.Ping(ctx); err != nil {
			status = "unhealthy"
			archiveStatus = err.Error()
		}
	} else {
		archiveStatus = "disabled"
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Archive:   archiveStatus,
	}
	if s.registry != nil {
		response.Connections = s.registry.Counts()
	}

	if status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	s.writeJSON(w, response)
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	w.WriteHeader(code)
	s.writeJSON(w, ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
