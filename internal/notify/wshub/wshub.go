// Package wshub fans incident update messages out to websocket
// observers. Delivery is fire-and-forget: a slow client is evicted
// rather than allowed to stall the ingest path.
package wshub

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/beacon/internal/incident"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 64
	broadcastSize  = 256
	maxMessageSize = 4 * 1024
)

// Hub maintains active websocket clients and broadcasts update
// messages to all of them. It implements incident.Sink.
type Hub struct {
	logger   log.Logger
	onDrop   func()
	upgrader websocket.Upgrader

	mu         sync.RWMutex
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string
}

// New creates a hub. onDrop, if non-nil, is called once per message
// dropped because the broadcast buffer was saturated.
func New(logger log.Logger, onDrop func()) *Hub {
	if logger == nil {
		logger = log.Nop()
	}
	return &Hub{
		logger: logger,
		onDrop: onDrop,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
		},
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, broadcastSize),
	}
}

// Run owns the client set until ctx is cancelled. It must be running
// before the hub is registered as a sink.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info(ctx, "websocket client connected", "client_id", c.id, "clients", n)

		case c := <-h.unregister:
			h.drop(ctx, c, "disconnected")

		case data := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*client, 0, len(h.clients))
			for c := range h.clients {
				clients = append(clients, c)
			}
			h.mu.RUnlock()

			for _, c := range clients {
				select {
				case c.send <- data:
				default:
					// Send buffer full: the client is too slow to keep up.
					h.drop(ctx, c, "send buffer full")
				}
			}

		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Publish implements incident.Sink. It never blocks: when the
// broadcast buffer is full the message is dropped and counted.
func (h *Hub) Publish(msg incident.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error(context.Background(), err, "marshal sink message", "type", string(msg.Type))
		return
	}
	select {
	case h.broadcast <- data:
	default:
		if h.onDrop != nil {
			h.onDrop()
		}
		h.logger.Warn(context.Background(), "sink broadcast buffer full, dropping message", "type", string(msg.Type))
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the request and registers the client.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error(r.Context(), err, "websocket upgrade failed")
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		id:   ulid.Make().String(),
	}
	h.register <- c

	// Greet the client before any broadcast reaches it.
	if data, err := json.Marshal(incident.Message{
		Type: incident.MsgConnection,
		Data: map[string]string{
			"client_id":    c.id,
			"connected_at": time.Now().UTC().Format(time.RFC3339),
		},
	}); err == nil {
		c.send <- data
	}

	go c.writePump()
	go c.readPump()
}

func (h *Hub) drop(ctx context.Context, c *client, reason string) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.mu.Unlock()
	h.logger.Info(ctx, "websocket client dropped", "client_id", c.id, "reason", reason)
}

// readPump discards inbound frames; the channel is one-way. It exists
// to service control frames and detect closes.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
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
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
