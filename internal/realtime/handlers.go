package realtime

import (
	"encoding/json"
	"log/slog"
	"time"
)

// route classifies an inbound client frame and dispatches it. Unknown frame
// types are answered with a notification; the connection stays open.
func (h *Hub) route(c *Client, frame *Frame) {
	switch frame.Type {
	case FrameAuthentication:
		h.handleAuthenticate(c, frame.Payload)
	case FrameSubscribe:
		h.handleSubscribe(c, frame.Payload)
	case FrameUnsubscribe:
		h.handleUnsubscribe(c, frame.Payload)
	default:
		c.sendNotification("Unknown message type: " + frame.Type.String())
	}
}

func (h *Hub) handleAuthenticate(c *Client, payload json.RawMessage) {
	var p AuthenticatePayload
	if err := json.Unmarshal(payload, &p); err != nil || p.Token == "" {
		c.sendNotification("Authentication failed: token is required")
		return
	}

	identity, err := h.verifier.Verify(c.ctx, p.Token)
	if err != nil {
		slog.Debug("Authentication rejected", "clientID", c.id, "error", err)
		c.sendNotification("Authentication failed: invalid token")
		return
	}

	// Re-authenticating as a different user detaches the old identity first,
	// so the connection cannot keep receiving the old user's messages and the
	// registry keeps no reference under the old user.
	if previous := c.Identity(); previous != nil && previous.UserID != identity.UserID {
		last := h.untrackUser(previous.UserID, c.id)
		if last && h.presence != nil {
			if err := h.presence.SetUserOffline(c.ctx, previous.UserID); err != nil {
				slog.Error("Failed to set user offline", "userID", previous.UserID, "error", err)
			}
		}
		slog.Info("Client switched identity", "clientID", c.id, "fromUserID", previous.UserID, "toUserID", identity.UserID)
	}

	c.setIdentity(identity)
	h.Join(UserRoom(identity.UserID), c.id)
	first := h.trackUser(identity.UserID, c.id)

	if first && h.presence != nil {
		if err := h.presence.SetUserOnline(c.ctx, identity.UserID); err != nil {
			slog.Error("Failed to set user online", "userID", identity.UserID, "error", err)
		}
	}

	slog.Info("Client authenticated", "clientID", c.id, "userID", identity.UserID)
	c.sendFrame(NewAuthenticationAck(identity))
}

func (h *Hub) handleSubscribe(c *Client, payload json.RawMessage) {
	room, ok := h.resolveSubscription(c, payload)
	if !ok {
		return
	}

	h.Join(room, c.id)
	slog.Debug("Client subscribed", "clientID", c.id, "room", room)
	c.sendFrame(NewRoomAck(FrameSubscribe, "Subscribed to room", room))
}

func (h *Hub) handleUnsubscribe(c *Client, payload json.RawMessage) {
	if !c.Authenticated() {
		c.sendNotification("Unsubscribe requires an authenticated connection")
		return
	}

	room, ok := h.resolveSubscription(c, payload)
	if !ok {
		return
	}

	h.Leave(room, c.id)
	slog.Debug("Client unsubscribed", "clientID", c.id, "room", room)
	c.sendFrame(NewRoomAck(FrameUnsubscribe, "Unsubscribed from room", room))
}

// resolveSubscription maps a subscribe/unsubscribe payload to a room name.
// The device-telemetry descriptor form requires a token and re-verifies it on
// every call; a token on the plain form is re-verified when present. A false
// return means the rejection has already been sent.
func (h *Hub) resolveSubscription(c *Client, payload json.RawMessage) (string, bool) {
	var p SubscriptionPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		c.sendNotification("Invalid subscription payload")
		return "", false
	}

	if p.Type == DeviceTelemetryDescriptor {
		if p.DeviceID == "" || p.UserID == "" {
			c.sendNotification("Device telemetry subscription requires device_id and user_id")
			return "", false
		}
		if !h.reverify(c, p.Token) {
			return "", false
		}
		return DeviceTelemetryRoom(p.DeviceID, p.UserID), true
	}

	if p.Room == "" {
		c.sendNotification("Subscription requires a room or a device telemetry descriptor")
		return "", false
	}
	if p.Token != "" && !h.reverify(c, p.Token) {
		return "", false
	}
	return p.Room, true
}

// reverify re-asserts identity from a token carried in a subscription frame.
// Every call hits the verifier again rather than trusting prior connection
// state, so a reconnected client can resubscribe without a separate
// authentication round trip.
func (h *Hub) reverify(c *Client, token string) bool {
	if token == "" {
		c.sendNotification("Subscription requires a token")
		return false
	}
	if _, err := h.verifier.Verify(c.ctx, token); err != nil {
		slog.Debug("Subscription token rejected", "clientID", c.id, "error", err)
		c.sendNotification("Authentication failed: invalid token")
		return false
	}
	return true
}

// TelemetryEvent is a device telemetry reading arriving from the bus.
type TelemetryEvent struct {
	DeviceID    string     `json:"device_id"`
	UserID      string     `json:"user_id"`
	EnergyWatts float64    `json:"energy_watts"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
}

// NotificationEvent is a system notification arriving from the bus. Room
// targets a specific room (e.g. user:<id>); empty means every connection.
type NotificationEvent struct {
	Message string `json:"message"`
	Room    string `json:"room,omitempty"`
}

// HandleTelemetryEvent fans a bus telemetry reading out to the connections
// subscribed to the matching device room.
func (h *Hub) HandleTelemetryEvent(ev *TelemetryEvent) {
	if ev.DeviceID == "" || ev.UserID == "" {
		slog.Warn("Dropping telemetry event without device or user id")
		return
	}

	timestamp := time.Now().UTC()
	if ev.Timestamp != nil {
		timestamp = *ev.Timestamp
	}

	room := DeviceTelemetryRoom(ev.DeviceID, ev.UserID)
	h.Broadcast(room, NewDeviceTelemetryUpdate(ev.DeviceID, ev.UserID, ev.EnergyWatts, timestamp))
}

// HandleNotificationEvent fans a bus notification out to its target room, or
// to all connections when untargeted.
func (h *Hub) HandleNotificationEvent(ev *NotificationEvent) {
	if ev.Message == "" {
		slog.Warn("Dropping notification event without a message")
		return
	}

	frame := NewSystemNotification(ev.Message)
	if ev.Room != "" {
		h.Broadcast(ev.Room, frame)
		return
	}
	h.BroadcastAll(frame)
}
