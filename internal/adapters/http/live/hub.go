// Package live streams accepted submissions to websocket subscribers.
package live

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"

	"github.com/okian/runboard/internal/domain/model"
	"github.com/okian/runboard/internal/domain/types"
	"github.com/okian/runboard/pkg/logger"
	"github.com/okian/runboard/pkg/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// Time allowed to write a message to the peer.
	writeWait = 5 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 8) / 10

	// Subscribers whose buffer fills up are dropped.
	sendBufferSize = 32

	maxMessageSize = 512
)

// Message is the frame pushed to subscribers.
type Message struct {
	Kind   string    `json:"kind"`
	Record any       `json:"record"`
	At     time.Time `json:"at"`
}

// NewMessage renders a feed event.
func NewMessage(e model.Event) Message { //nolint:gocritic // hugeParam: Event mirrors the queue payload
	m := Message{Kind: e.Kind, At: e.At.UTC()}
	switch {
	case e.Run != nil:
		m.Record = types.FromRun(0, *e.Run)
	case e.Hero != nil:
		m.Record = types.FromHero(0, *e.Hero)
	}
	return m
}

// Hub tracks websocket subscribers and broadcasts feed events to them.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	closed   bool
	upgrader websocket.Upgrader
	logger   logger.Logger
}

// NewHub creates an empty Hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			HandshakeTimeout: time.Second,
			ReadBufferSize:   maxMessageSize,
			WriteBufferSize:  2048,
			CheckOrigin:      func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logger.Get().Named("live")
	}
	return h
}

// ServeHTTP upgrades the request and subscribes the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		h.logger.Debug(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBufferSize)}
	if !h.register(c) {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
		_ = conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// Broadcast sends e to every subscriber without blocking and returns the
// number of subscribers it was queued for.
func (h *Hub) Broadcast(ctx context.Context, e model.Event) int { //nolint:gocritic // hugeParam: Event mirrors the queue payload
	payload, err := json.Marshal(NewMessage(e))
	if err != nil {
		h.logger.Error(ctx, "failed to encode feed event", logger.Error(err))
		return 0
	}

	var slow []*client
	delivered := 0
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- payload:
			delivered++
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn(ctx, "dropping slow live subscriber", logger.String("remote", c.conn.RemoteAddr().String()))
		h.unregister(c)
	}
	return delivered
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.unregister(c)
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	metrics.UpdateLiveSubscribers(len(h.clients))
	return true
}

// unregister removes c and closes its send channel, which ends writePump.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	metrics.UpdateLiveSubscribers(len(h.clients))
	h.mu.Unlock()
}

// client is a middleman between the websocket connection and the hub.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// readPump discards inbound frames; it exists to process control frames
// and to notice the peer going away.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

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

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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
