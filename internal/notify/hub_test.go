package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, hub *Hub, userID uuid.UUID) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, hub.Serve(r.Context(), w, r, userID))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHubDeliversPublishedEventToSubscriber(t *testing.T) {
	hub := NewHub()
	userID := uuid.New()
	srv := newTestServer(t, hub, userID)
	conn := dial(t, srv)

	// Give the server goroutine a moment to register the connection.
	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return len(hub.rooms[userID]) == 1
	}, time.Second, time.Millisecond)

	hub.Publish(context.Background(), userID, "active", map[string]any{"eventId": "e1"})

	var msg Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "active", msg.Event)
}

func TestHubPublishToUnknownUserIsNoop(t *testing.T) {
	hub := NewHub()
	require.NotPanics(t, func() {
		hub.Publish(context.Background(), uuid.New(), "active", nil)
	})
}

func TestHubDropsMessageWhenOutboxFull(t *testing.T) {
	hub := NewHub()
	userID := uuid.New()
	srv := newTestServer(t, hub, userID)
	_ = dial(t, srv)

	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return len(hub.rooms[userID]) == 1
	}, time.Second, time.Millisecond)

	// Flood well past outboxSize without reading; Publish must never block
	// the caller even once the channel fills up.
	done := make(chan struct{})
	go func() {
		for i := 0; i < outboxSize*4; i++ {
			hub.Publish(context.Background(), userID, "active", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked despite a full outbox")
	}
}

func TestHubUnregistersOnClose(t *testing.T) {
	hub := NewHub()
	userID := uuid.New()
	srv := newTestServer(t, hub, userID)
	conn := dial(t, srv)

	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return len(hub.rooms[userID]) == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		_, ok := hub.rooms[userID]
		return !ok
	}, time.Second, time.Millisecond)
}
