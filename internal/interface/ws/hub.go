// Package ws pushes mentorship notifications to connected users over
// websockets.
package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pittstate/pittstate-connect/internal/infrastructure/service"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 32
)

// ConnectionObserver is notified when connections open and close.
type ConnectionObserver interface {
	ConnectionOpened()
	ConnectionClosed()
}

// ══════════════════════════════════════════════════════════════════════════════
// HUB
// ══════════════════════════════════════════════════════════════════════════════

// Hub tracks live connections per user. A user may have several tabs open.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*Client]struct{}
	logger   *slog.Logger
	observer ConnectionObserver
}

// NewHub creates an empty hub. observer may be nil.
func NewHub(logger *slog.Logger, observer ConnectionObserver) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:  make(map[string]map[*Client]struct{}),
		logger:   logger,
		observer: observer,
	}
}

var _ service.Pusher = (*Hub)(nil)

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
	total := len(set)
	h.mu.Unlock()

	if h.observer != nil {
		h.observer.ConnectionOpened()
	}
	h.logger.Debug("ws connected", "user_id", c.userID, "user_connections", total)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.userID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := set[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
	c.mu.Lock()
	c.closed = true
	close(c.send)
	c.mu.Unlock()
	h.mu.Unlock()

	if h.observer != nil {
		h.observer.ConnectionClosed()
	}
	h.logger.Debug("ws disconnected", "user_id", c.userID)
}

// Push queues n for every connection of userID. Slow connections whose
// buffer is full are dropped.
func (h *Hub) Push(userID string, n service.Notification) int {
	payload, err := json.Marshal(n)
	if err != nil {
		h.logger.Warn("failed to encode notification", "type", n.Type, "error", err)
		return 0
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients[userID]))
	for c := range h.clients[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if c.enqueue(payload) {
			delivered++
			continue
		}
		h.logger.Warn("ws send buffer full, dropping connection", "user_id", userID)
		h.unregister(c)
	}
	return delivered
}

// ConnectionCount returns the number of live connections of a user.
func (h *Hub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Close disconnects everyone.
func (h *Hub) Close() {
	h.mu.RLock()
	all := make([]*Client, 0)
	for _, set := range h.clients {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range all {
		h.unregister(c)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is one websocket connection.
type Client struct {
	hub    *Hub
	userID string
	conn   *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newClient(hub *Hub, userID string, conn *websocket.Conn) *Client {
	return &Client{
		hub:    hub,
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
	}
}

// enqueue must not block the publisher. Returns false if the buffer is full.
func (c *Client) enqueue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// readPump only handles control frames; clients never send data.
func (c *Client) readPump() {
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
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("ws read error", "user_id", c.userID, "error", err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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

// ══════════════════════════════════════════════════════════════════════════════
// HTTP HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// Authenticator resolves the user behind an upgrade request.
type Authenticator func(r *http.Request) (userID string, err error)

// Handler upgrades authenticated requests and registers them with the hub.
type Handler struct {
	hub          *Hub
	authenticate Authenticator
	upgrader     websocket.Upgrader
}

// NewHandler creates the upgrade handler. allowedOrigins containing "*"
// accepts any origin.
func NewHandler(hub *Hub, authenticate Authenticator, allowedOrigins []string) *Handler {
	return &Handler{
		hub:          hub,
		authenticate: authenticate,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := h.authenticate(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.hub.logger.Debug("ws upgrade failed", "user_id", userID, "error", err)
		return
	}

	c := newClient(h.hub, userID, conn)
	h.hub.register(c)
	go c.writePump()
	go c.readPump()
}
