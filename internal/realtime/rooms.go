package realtime

import (
	"fmt"
	"log/slog"
)

// UserRoom names the per-user room every authenticated connection joins.
func UserRoom(userID string) string {
	return "user:" + userID
}

// DeviceTelemetryRoom names the room carrying live telemetry for one device
// of one user. These rooms are numerous and short-lived; empty ones are
// pruned on leave.
func DeviceTelemetryRoom(deviceID, userID string) string {
	return fmt.Sprintf("device_telemetry:%s:%s", deviceID, userID)
}

// Join adds a connection to a room, creating the room if absent. Joining a
// room twice has no additional effect. Unknown connection ids are ignored.
func (h *Hub) Join(room, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[connID]
	if !ok {
		return
	}

	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]bool)
	}
	h.rooms[room][connID] = true
	client.addRoom(room)
}

// Leave removes a connection from a room. The room entry itself is removed
// once its last member leaves.
func (h *Hub) Leave(room, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leaveLocked(room, connID)
	if client, ok := h.clients[connID]; ok {
		client.removeRoom(room)
	}
}

func (h *Hub) leaveLocked(room, connID string) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// LeaveAll removes a connection from every room it belongs to. The
// connection's own room set drives the walk, so the cost is proportional to
// that connection's subscriptions, not the total number of rooms.
func (h *Hub) LeaveAll(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[connID]
	if !ok {
		return
	}
	for _, room := range client.Rooms() {
		h.leaveLocked(room, connID)
		client.removeRoom(room)
	}
}

// Broadcast delivers a frame to every connection currently in the room.
// Membership is snapshotted under the read lock and ids are resolved to live
// connections at delivery time; connections that closed in between are
// skipped silently. Delivery is best-effort, at most once per connection.
func (h *Hub) Broadcast(room string, frame *Frame) {
	data, err := frame.Encode()
	if err != nil {
		slog.Error("Failed to encode broadcast frame", "room", room, "type", frame.Type, "error", err)
		return
	}

	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[room]))
	for connID := range h.rooms[room] {
		if client, ok := h.clients[connID]; ok {
			members = append(members, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range members {
		client.enqueue(data)
	}

	slog.Debug("Broadcast delivered", "room", room, "type", frame.Type, "members", len(members))
}

// BroadcastAll delivers a frame to every live connection regardless of room
// membership. Used for untargeted system notifications.
func (h *Hub) BroadcastAll(frame *Frame) {
	data, err := frame.Encode()
	if err != nil {
		slog.Error("Failed to encode broadcast frame", "type", frame.Type, "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.enqueue(data)
	}
}
