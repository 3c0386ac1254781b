// Package notify implements the notification hub: one outbound channel per
// connected user, fed by the promotion engine, expiration pipeline, and
// payment protocol, and drained by a per-connection write pump into a
// gorilla/websocket connection.
package notify

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	outboxSize     = 16
	writeWait      = 10 * time.Second
	pingPeriod     = 30 * time.Second
	pongWait       = 60 * time.Second
	maxMessageSize = 4096
)

// Message is the envelope delivered to a subscriber for every published
// event. The names published in this service are "active" and "sold_out"
// (promotion engine), "expired" (expiration pipeline) and "paid"
// (payment); no event is published on queue join or on a change of
// queue position.
type Message struct {
	Event     string    `json:"event"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub holds one room per connected user id and fans published events out
// to every connection registered under that room.
type Hub struct {
	upgrader websocket.Upgrader

	mu    sync.Mutex
	rooms map[uuid.UUID]map[*connection]struct{}
}

// NewHub builds an empty hub. Origin checking is left permissive, matching
// the development posture of the websocket examples this is grounded on;
// a reverse proxy is expected to enforce origin policy in front of it.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		rooms: make(map[uuid.UUID]map[*connection]struct{}),
	}
}

// connection is one upgraded socket registered under a single user room.
type connection struct {
	userID uuid.UUID
	conn   *websocket.Conn
	outbox chan Message
}

// Serve upgrades r to a websocket connection, registers it under userID's
// room, and blocks (running the write pump on the caller's goroutine and
// the read pump on a spawned one) until the connection closes or ctx is
// done. Callers invoke this directly from an HTTP handler after
// authenticating the token carried in the query string (see §4.7).
func (h *Hub) Serve(ctx context.Context, w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &connection{userID: userID, conn: conn, outbox: make(chan Message, outboxSize)}
	h.register(c)
	defer h.unregister(c)

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.readPump(cancel)
	c.writePump(connCtx)

	return nil
}

func (h *Hub) register(c *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.userID]
	if !ok {
		room = make(map[*connection]struct{})
		h.rooms[c.userID] = room
	}
	room[c] = struct{}{}
}

func (h *Hub) unregister(c *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[c.userID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, c.userID)
		}
	}
	_ = c.conn.Close()
}

// Publish delivers event to every connection registered for userID.
// Non-blocking: a connection whose outbox is full is skipped rather than
// stalling the caller, per spec.md §9's best-effort notification posture.
func (h *Hub) Publish(_ context.Context, userID uuid.UUID, event string, payload any) {
	msg := Message{Event: event, Payload: payload, Timestamp: time.Now().UTC()}

	h.mu.Lock()
	room := h.rooms[userID]
	conns := make([]*connection, 0, len(room))
	for c := range room {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		select {
		case c.outbox <- msg:
		default:
			log.Printf("[notify] user %s: outbox full, dropping %q", userID, event)
		}
	}
}

// readPump drains and discards inbound frames (this socket is
// push-only), existing only to process control frames and detect
// disconnects, cancelling cancel once the connection closes.
func (c *connection) readPump(cancel context.CancelFunc) {
	defer cancel()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			return
		}
	}
}

// writePump drains the outbox to the socket and keeps it alive with
// periodic pings, returning when ctx is cancelled or a write fails.
func (c *connection) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.outbox:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				log.Printf("[notify] user %s: write error: %v", c.userID, err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
