package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"realtime-service/internal/auth"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Outbound queue size per connection. Frames beyond this are dropped so a
	// slow consumer cannot stall delivery to the rest of a room.
	sendQueueSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1") {
			return true
		}
		for _, allowed := range strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",") {
			if origin == strings.TrimSpace(allowed) {
				return true
			}
		}
		return false
	},
}

// Conn is the subset of *websocket.Conn the client uses. Tests substitute an
// in-memory implementation.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Client is one live connection tracked by the hub. The transport handle is
// exclusively owned here; rooms hold client ids only.
type Client struct {
	id        string
	hub       *Hub
	conn      Conn
	send      chan []byte
	createdAt time.Time

	mu       sync.RWMutex
	identity *auth.Identity
	rooms    map[string]bool

	ctx    context.Context
	cancel context.CancelFunc
	closed int32
}

func NewClient(hub *Hub, conn Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		id:        uuid.New().String(),
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, sendQueueSize),
		createdAt: time.Now(),
		rooms:     make(map[string]bool),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (c *Client) ID() string {
	return c.id
}

// Identity returns the authenticated identity or nil.
func (c *Client) Identity() *auth.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

func (c *Client) Authenticated() bool {
	return c.Identity() != nil
}

func (c *Client) setIdentity(identity *auth.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = identity
}

// Rooms returns a copy of the rooms this client currently belongs to.
func (c *Client) Rooms() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rooms := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

func (c *Client) addRoom(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[room] = true
}

func (c *Client) removeRoom(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, room)
}

func (c *Client) inRoom(room string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rooms[room]
}

func (c *Client) isClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

func (c *Client) close() {
	if atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		c.cancel()
	}
}

// enqueue hands a pre-encoded frame to the write pump without blocking. A
// full queue drops the frame; telemetry is a live stream, not a durable log.
// The send channel is never closed, so a broadcast racing a disconnect can
// only be dropped, never panic.
func (c *Client) enqueue(data []byte) {
	if c.isClosed() {
		return
	}

	select {
	case c.send <- data:
	case <-c.ctx.Done():
	default:
		slog.Warn("Send queue full, dropping frame", "clientID", c.id)
	}
}

func (c *Client) sendFrame(frame *Frame) {
	data, err := frame.Encode()
	if err != nil {
		slog.Error("Failed to encode frame", "clientID", c.id, "type", frame.Type, "error", err)
		return
	}
	c.enqueue(data)
}

func (c *Client) sendNotification(message string) {
	c.sendFrame(NewSystemNotification(message))
}

func (c *Client) readPump() {
	defer func() {
		c.close()

		select {
		case c.hub.unregister <- c:
		case <-time.After(5 * time.Second):
			slog.Warn("Timeout sending unregister request", "clientID", c.id)
		}

		if err := c.conn.Close(); err != nil {
			slog.Debug("Error closing connection", "clientID", c.id, "error", err)
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		if c.isClosed() {
			return websocket.ErrCloseSent
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "clientID", c.id, "error", err)
			} else {
				slog.Debug("WebSocket connection closed", "clientID", c.id, "error", err)
			}
			break
		}

		var frame Frame
		if err := json.Unmarshal(messageBytes, &frame); err != nil {
			slog.Debug("Failed to unmarshal frame", "clientID", c.id, "error", err)
			c.sendNotification("Invalid message format")
			continue
		}

		// Frames are handled on this goroutine: one logical task per
		// connection, so a slow token verification suspends only this client.
		c.hub.route(c, &frame)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		slog.Debug("WritePump finished", "clientID", c.id)
	}()

	for {
		select {
		case message := <-c.send:
			if c.isClosed() {
				return
			}

			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				slog.Debug("Error writing message", "clientID", c.id, "error", err)
				return
			}

		case <-ticker.C:
			if c.isClosed() {
				return
			}

			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				slog.Debug("Error sending ping", "clientID", c.id, "error", err)
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// ServeWS upgrades an HTTP request and registers the connection with the hub.
// The connection starts unauthenticated; identity is established by an
// authentication frame.
func ServeWS(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade WebSocket connection", "error", err)
		return
	}

	client := NewClient(hub, conn)
	slog.Info("New WebSocket connection established", "clientID", client.id)

	select {
	case hub.register <- client:
	case <-time.After(5 * time.Second):
		slog.Error("Timeout sending registration request", "clientID", client.id)
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
