package http

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"transcript-editor-service/internal/observability/logging"
	"transcript-editor-service/internal/observability/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientSendSize = 64
)

// Message is one frame pushed to the page.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// client is one websocket connection. All writes go through send so that
// only writePump touches the connection for writing.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub manages WebSocket connections and fans session events out to them.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	direct     chan directMessage
	register   chan *client
	unregister chan *client
	done       chan struct{}
	metrics    *metrics.Metrics
	log        zerolog.Logger
}

type directMessage struct {
	to   *client
	data []byte
}

// NewHub creates a hub. Run must be started before clients connect.
func NewHub(m *metrics.Metrics) *Hub {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 256),
		direct:     make(chan directMessage, 16),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		metrics:    m,
		log:        logging.WithComponent("ws-hub"),
	}
}

// Run owns the client set until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return

		case c := <-h.register:
			h.clients[c] = true
			h.metrics.SetWebsocketClients(len(h.clients))
			h.log.Info().Int("clients", len(h.clients)).Msg("Client connected")

		case c := <-h.unregister:
			if h.clients[c] {
				h.drop(c)
				h.log.Info().Int("clients", len(h.clients)).Msg("Client disconnected")
			}

		case data := <-h.broadcast:
			for c := range h.clients {
				h.deliver(c, data)
			}

		case m := <-h.direct:
			if h.clients[m.to] {
				h.deliver(m.to, m.data)
			}
		}
	}
}

func (h *Hub) deliver(c *client, data []byte) {
	select {
	case c.send <- data:
	default:
		h.log.Warn().Msg("Dropping slow client")
		h.drop(c)
	}
}

func (h *Hub) drop(c *client) {
	delete(h.clients, c)
	close(c.send)
	h.metrics.SetWebsocketClients(len(h.clients))
}

// Broadcast queues msg for every connected client. It never blocks; when the
// queue is full the message is dropped.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Str("type", msg.Type).Msg("Failed to encode message")
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.log.Warn().Str("type", msg.Type).Msg("Broadcast queue full, message dropped")
	}
}

// attach registers conn and starts its write pump. Returns nil once the hub
// has stopped.
func (h *Hub) attach(conn *websocket.Conn) *client {
	c := &client{conn: conn, send: make(chan []byte, clientSendSize)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return nil
	}
	go c.writePump()
	return c
}

func (h *Hub) detach(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// send queues msg for one client only.
func (h *Hub) send(c *client, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Str("type", msg.Type).Msg("Failed to encode message")
		return
	}
	select {
	case h.direct <- directMessage{to: c, data: data}:
	case <-h.done:
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
