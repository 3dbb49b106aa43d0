package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/onnwee/secret-relay/internal/health"
	"github.com/onnwee/secret-relay/internal/logger"
	"github.com/onnwee/secret-relay/internal/metrics"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 30 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// How often the monitor re-evaluates the aggregated health
	statusCheckInterval = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS middleware already vetted the origin
		return true
	},
}

// StatusSource computes the aggregated health the feed reports.
type StatusSource interface {
	Check() health.Report
}

// StatusEvent is one message on the status feed.
type StatusEvent struct {
	Type          string        `json:"type"` // always "status"
	Status        health.Status `json:"status"`
	BreakerState  string        `json:"breaker_state"`
	SessionReady  bool          `json:"session_ready"`
	CachedSecrets int           `json:"cached_secrets"`
	Timestamp     time.Time     `json:"timestamp"`
}

// Client is one WebSocket subscriber on the status feed.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks the status feed's subscribers and pushes an event whenever the
// aggregated health changes. The feed is one-way: clients get events, their
// messages are discarded.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	source     StatusSource
	lastStatus health.Status

	stop     chan struct{}
	stopOnce sync.Once

	mu sync.RWMutex
}

// NewHub creates a status feed hub over the given health source.
func NewHub(source StatusSource) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 16),
		source:     source,
		stop:       make(chan struct{}),
	}
}

// Run starts the hub's main loop and the status monitor. It returns when
// the context is cancelled or Stop is called.
func (h *Hub) Run(ctx context.Context) {
	go h.monitorStatus(ctx)

	for {
		select {
		case <-ctx.Done():
			h.Stop()
			h.closeClients()
			return

		case <-h.stop:
			h.closeClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketConnections.Inc()
			logger.Info("status feed client connected", "total_clients", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.WebSocketConnections.Dec()
			}
			total := len(h.clients)
			h.mu.Unlock()
			logger.Info("status feed client disconnected", "total_clients", total)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
					metrics.WebSocketMessagesSent.Inc()
				default:
					// Client's send buffer is full, drop the connection
					close(client.send)
					delete(h.clients, client)
					metrics.WebSocketConnections.Dec()
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop halts the hub and the monitor.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// closeClients releases every subscriber at shutdown. Closing the send
// channel makes the write pump send a close frame and drop the connection.
func (h *Hub) closeClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
		metrics.WebSocketConnections.Dec()
	}
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// monitorStatus watches the aggregated health and broadcasts a status event
// on every change. The check reads session, breaker, and cache only; it
// never probes the upstream.
func (h *Hub) monitorStatus(ctx context.Context) {
	ticker := time.NewTicker(statusCheckInterval)
	defer ticker.Stop()

	h.lastStatus = h.source.Check().Status

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stop:
			return
		case <-ticker.C:
			if h.ClientCount() == 0 {
				// Nobody listening, skip the check
				continue
			}

			report := h.source.Check()
			if report.Status == h.lastStatus {
				continue
			}
			logger.Info("health status changed", "from", string(h.lastStatus), "to", string(report.Status))
			h.lastStatus = report.Status

			data, err := json.Marshal(statusEvent(report))
			if err != nil {
				logger.Error("Failed to marshal status event", "error", err)
				continue
			}
			h.broadcast <- data
		}
	}
}

func statusEvent(report health.Report) StatusEvent {
	return StatusEvent{
		Type:          "status",
		Status:        report.Status,
		BreakerState:  report.Breaker.State,
		SessionReady:  report.Session.Ready,
		CachedSecrets: report.Cache.Entries,
		Timestamp:     report.Time,
	}
}

// readPump drains the WebSocket connection so pongs are processed, and
// unregisters the client when the peer goes away.
func (c *Client) readPump() {
	defer func() {
		// A stopped hub no longer services unregister.
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stop:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("status feed unexpected close", "error", err)
			}
			return
		}
	}
}

// writePump pushes events from the hub to the WebSocket connection and keeps
// the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

// EventsHandler serves the WebSocket status feed.
type EventsHandler struct {
	hub *Hub
}

// NewEventsHandler creates a handler over a hub the caller runs. The server
// owns the hub's lifecycle so shutdown can stop it alongside everything
// else.
func NewEventsHandler(hub *Hub) *EventsHandler {
	return &EventsHandler{hub: hub}
}

// HandleEvents handles the WebSocket upgrade and subscribes the client.
// Every new client gets a snapshot of the current status on connect.
// GET /api/events/ws
func (h *EventsHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the request
		logger.Warn("Failed to upgrade to WebSocket", "error", err)
		return
	}

	client := &Client{
		hub:  h.hub,
		conn: conn,
		send: make(chan []byte, 16),
	}

	// Queue the snapshot before registering: until the hub knows the
	// client, this goroutine is the only writer on the channel.
	if data, err := json.Marshal(statusEvent(h.hub.source.Check())); err == nil {
		client.send <- data
	}

	select {
	case h.hub.register <- client:
	case <-h.hub.stop:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
