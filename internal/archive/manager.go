// Package archive persists chat messages to sqlite. The in-memory store
// stays authoritative for live snapshots; the archive is the unbounded
// retention tier behind the capped in-memory log.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/AbdessamadAe/FocusIsle/pkg/types"
)

// Manager owns the archive database. All writes funnel through a single
// goroutine; sqlite handles concurrent readers but contends badly on
// concurrent writers.
type Manager struct {
	db           *sql.DB
	writeCh      chan writeOperation
	writeTimeout time.Duration
	shutdown     chan struct{}
	wg           sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// NewManager opens (or creates) the archive at path and starts the
// writer goroutine.
func NewManager(path string, writeTimeout time.Duration) (*Manager, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize archive schema: %w", err)
	}

	m := &Manager{
		db:           db,
		writeCh:      make(chan writeOperation, 100),
		writeTimeout: writeTimeout,
		shutdown:     make(chan struct{}),
	}
	m.wg.Add(1)
	go m.writeLoop()
	return m, nil
}

func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case op := <-m.writeCh:
			err := op.operation(m.db)
			if err != nil {
				// Retry once; transient lock contention clears quickly.
				log.Printf("archive write failed, retrying: %v", err)
				time.Sleep(time.Second)
				err = op.operation(m.db)
			}
			op.result <- err
		case <-m.shutdown:
			// Fail any writes that were queued behind the shutdown so
			// their callers do not block forever.
			for {
				select {
				case op := <-m.writeCh:
					op.result <- fmt.Errorf("archive is shutting down")
				default:
					return
				}
			}
		}
	}
}

func (m *Manager) executeWrite(operation func(*sql.DB) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return fmt.Errorf("archive is closed")
	}
	m.mu.RUnlock()

	result := make(chan error, 1)
	select {
	case m.writeCh <- writeOperation{operation: operation, result: result}:
		return <-result
	case <-time.After(m.writeTimeout):
		return fmt.Errorf("archive write timed out")
	case <-m.shutdown:
		return fmt.Errorf("archive is shutting down")
	}
}

// StoreMessage appends a message to the archive.
func (m *Manager) StoreMessage(sessionID string, msg types.Message) error {
	return m.executeWrite(func(db *sql.DB) error {
		_, err := db.Exec(
			`INSERT INTO messages (id, session_id, user_id, user_name, text, timestamp)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			msg.ID, sessionID, msg.UserID, msg.UserName, msg.Text, msg.Timestamp,
		)
		return err
	})
}

// MessageHistory returns up to limit archived messages for a session in
// insertion order, oldest first.
func (m *Manager) MessageHistory(ctx context.Context, sessionID string, limit int) ([]types.Message, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := m.db.QueryContext(ctx,
		`SELECT id, user_id, user_name, text, timestamp
		 FROM (
			SELECT id, user_id, user_name, text, timestamp
			FROM messages WHERE session_id = ?
			ORDER BY timestamp DESC, id LIMIT ?
		 ) ORDER BY timestamp ASC, id`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query message history: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("failed to close history rows: %v", err)
		}
	}()

	messages := make([]types.Message, 0, limit)
	for rows.Next() {
		var msg types.Message
		if err := rows.Scan(&msg.ID, &msg.UserID, &msg.UserName, &msg.Text, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan archived message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// Ping verifies the database is reachable, for health checks.
func (m *Manager) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

// Close stops the writer and closes the database. Pending queued writes
// are abandoned.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.shutdown)
	m.wg.Wait()
	return m.db.Close()
}
