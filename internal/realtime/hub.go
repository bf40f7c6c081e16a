package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"realtime-service/internal/auth"
	"realtime-service/internal/services"
)

// TokenVerifier resolves a bearer token to an identity. *auth.Verifier is the
// production implementation.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*auth.Identity, error)
}

// Hub owns the connection registry and the room membership index. It is
// constructed once at startup and shared by every connection task and the bus
// bridge; all registry and index mutations happen under one lock so they are
// atomic with respect to each other.
type Hub struct {
	mu sync.RWMutex

	// Registered clients by connection id
	clients map[string]*Client

	// Connection ids per authenticated user
	userClients map[string]map[string]bool

	// Room membership: room name -> set of connection ids. Rooms hold ids,
	// never client pointers, so teardown cannot leave dangling references.
	rooms map[string]map[string]bool

	// Register requests from new connections
	register chan *Client

	// Unregister requests from disconnecting connections
	unregister chan *Client

	verifier TokenVerifier
	presence *services.PresenceService

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub builds a hub. presence may be nil; user online/offline tracking is
// then skipped.
func NewHub(verifier TokenVerifier, presence *services.PresenceService) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		clients:     make(map[string]*Client),
		userClients: make(map[string]map[string]bool),
		rooms:       make(map[string]map[string]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		verifier:    verifier,
		presence:    presence,
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-h.ctx.Done():
			slog.Info("Realtime hub shutting down")
			return
		}
	}
}

func (h *Hub) Stop() {
	h.cancel()
	h.closeAllClients()
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client.id] = client
	total := len(h.clients)
	h.mu.Unlock()

	slog.Info("Client registered", "clientID", client.id, "connections", total)
}

// unregisterClient removes a connection and purges all its room memberships.
// Safe to call for a client that was never registered or already removed.
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()

	if _, ok := h.clients[client.id]; !ok {
		h.mu.Unlock()
		return
	}

	for _, room := range client.Rooms() {
		h.leaveLocked(room, client.id)
	}
	delete(h.clients, client.id)

	var lastOfUser bool
	var userID string
	if identity := client.Identity(); identity != nil {
		userID = identity.UserID
		if conns, ok := h.userClients[userID]; ok {
			delete(conns, client.id)
			if len(conns) == 0 {
				delete(h.userClients, userID)
				lastOfUser = true
			}
		}
	}
	h.mu.Unlock()

	client.close()
	client.conn.Close()

	if lastOfUser && h.presence != nil {
		if err := h.presence.SetUserOffline(context.Background(), userID); err != nil {
			slog.Error("Failed to set user offline", "userID", userID, "error", err)
		}
	}

	slog.Info("Client unregistered", "clientID", client.id, "userID", userID)
}

// Remove unregisters a connection by id. Unknown ids are a no-op.
func (h *Hub) Remove(id string) {
	if client, ok := h.Get(id); ok {
		h.unregisterClient(client)
	}
}

// Get looks up a live connection by id.
func (h *Hub) Get(id string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[id]
	return client, ok
}

// trackUser records a connection under its authenticated user and reports
// whether it is the user's first live connection.
func (h *Hub) trackUser(userID, connID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.userClients[userID] == nil {
		h.userClients[userID] = make(map[string]bool)
	}
	first := len(h.userClients[userID]) == 0
	h.userClients[userID][connID] = true
	return first
}

// untrackUser detaches a connection from a user it previously authenticated
// as: the user room membership and the userClients entry are both removed.
// Reports whether it was the user's last live connection.
func (h *Hub) untrackUser(userID, connID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := UserRoom(userID)
	h.leaveLocked(room, connID)
	if client, ok := h.clients[connID]; ok {
		client.removeRoom(room)
	}

	conns, ok := h.userClients[userID]
	if !ok {
		return false
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(h.userClients, userID)
		return true
	}
	return false
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

func (h *Hub) closeAllClients() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.close()
		client.conn.Close()
	}
}

// ConnectionSummary is one connection's slice of the stats snapshot.
type ConnectionSummary struct {
	ID            string    `json:"id"`
	Authenticated bool      `json:"authenticated"`
	UserID        string    `json:"userId,omitempty"`
	Rooms         []string  `json:"rooms"`
	ConnectedAt   time.Time `json:"connectedAt"`
}

// StatsSnapshot is a point-in-time view of the registry.
type StatsSnapshot struct {
	Total         int                 `json:"total"`
	Authenticated int                 `json:"authenticated"`
	Connections   []ConnectionSummary `json:"connections"`
}

// Stats takes a consistent snapshot of the registry. The lock is released
// before the caller serializes the result, so reporting cannot stall message
// delivery for longer than the copy itself.
func (h *Hub) Stats() StatsSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	snapshot := StatsSnapshot{
		Total:       len(h.clients),
		Connections: make([]ConnectionSummary, 0, len(h.clients)),
	}

	for _, client := range h.clients {
		summary := ConnectionSummary{
			ID:          client.id,
			Rooms:       client.Rooms(),
			ConnectedAt: client.createdAt,
		}
		if identity := client.Identity(); identity != nil {
			summary.Authenticated = true
			summary.UserID = identity.UserID
			snapshot.Authenticated++
		}
		snapshot.Connections = append(snapshot.Connections, summary)
	}

	return snapshot
}
