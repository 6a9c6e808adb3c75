package archive

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbdessamadAe/FocusIsle/pkg/types"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(filepath.Join(t.TempDir(), "archive.db"), 10*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = m.Close()
	})
	return m
}

func TestStoreAndFetchHistory(t *testing.T) {
	m := newTestManager(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		msg := types.Message{
			ID:        fmt.Sprintf("msg-%d", i),
			UserID:    "u1",
			UserName:  "alba",
			Text:      fmt.Sprintf("message %d", i),
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, m.StoreMessage("default", msg))
	}

	messages, err := m.MessageHistory(context.Background(), "default", 100)
	require.NoError(t, err)
	require.Len(t, messages, 5)
	for i, msg := range messages {
		assert.Equal(t, fmt.Sprintf("msg-%d", i), msg.ID)
		assert.Equal(t, "alba", msg.UserName)
	}
}

func TestHistoryLimitKeepsNewest(t *testing.T) {
	m := newTestManager(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		msg := types.Message{
			ID:        fmt.Sprintf("msg-%d", i),
			UserID:    "u1",
			UserName:  "alba",
			Text:      "x",
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, m.StoreMessage("default", msg))
	}

	messages, err := m.MessageHistory(context.Background(), "default", 3)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	// The newest three, still oldest first.
	assert.Equal(t, "msg-7", messages[0].ID)
	assert.Equal(t, "msg-9", messages[2].ID)
}

func TestHistoryScopedToSession(t *testing.T) {
	m := newTestManager(t)
	now := time.Now().UTC()

	require.NoError(t, m.StoreMessage("one", types.Message{ID: "a", UserID: "u", UserName: "n", Text: "x", Timestamp: now}))
	require.NoError(t, m.StoreMessage("two", types.Message{ID: "b", UserID: "u", UserName: "n", Text: "x", Timestamp: now}))

	messages, err := m.MessageHistory(context.Background(), "one", 100)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "a", messages[0].ID)

	messages, err = m.MessageHistory(context.Background(), "ghost", 100)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestPingAndClose(t *testing.T) {
	m := newTestManager(t)
	assert.NoError(t, m.Ping(context.Background()))

	require.NoError(t, m.Close())
	assert.NoError(t, m.Close(), "close is idempotent")

	err := m.StoreMessage("default", types.Message{ID: "x", Timestamp: time.Now()})
	assert.Error(t, err, "writes after close fail instead of hanging")
}
