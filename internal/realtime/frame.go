package realtime

import (
	"encoding/json"
	"time"

	"realtime-service/internal/auth"
)

// FrameType discriminates the JSON frames exchanged over a connection.
type FrameType string

const (
	// Client-originated frames
	FrameAuthentication FrameType = "authentication"
	FrameSubscribe      FrameType = "subscribe"
	FrameUnsubscribe    FrameType = "unsubscribe"

	// Server-originated frames. FrameAuthentication, FrameSubscribe and
	// FrameUnsubscribe double as acknowledgment types.
	FrameSystemNotification    FrameType = "system_notification"
	FrameDeviceTelemetryUpdate FrameType = "device_telemetry_update"
)

func (ft FrameType) String() string {
	return string(ft)
}

// Frame is one discrete JSON message on the wire.
type Frame struct {
	Type    FrameType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (f *Frame) Encode() ([]byte, error) {
	return json.Marshal(f)
}

// DeviceTelemetryDescriptor marks the structured subscription payload form.
const DeviceTelemetryDescriptor = "DEVICE_TELEMETRY"

// AuthenticatePayload is the inbound authentication frame payload.
type AuthenticatePayload struct {
	Token string `json:"token"`
}

// SubscriptionPayload covers both subscribe and unsubscribe frames. Either
// Room names a plain room, or Type is DEVICE_TELEMETRY and DeviceID/UserID
// describe a device-scoped room. Token re-asserts identity on each call and
// is required for the descriptor form.
type SubscriptionPayload struct {
	Room     string `json:"room,omitempty"`
	Type     string `json:"type,omitempty"`
	DeviceID string `json:"device_id,omitempty"`
	UserID   string `json:"user_id,omitempty"`
	Token    string `json:"token,omitempty"`
}

type NotificationPayload struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type AuthenticationAckPayload struct {
	Message   string    `json:"message"`
	UserID    string    `json:"userId"`
	UserEmail string    `json:"userEmail"`
	Timestamp time.Time `json:"timestamp"`
}

type RoomAckPayload struct {
	Message   string    `json:"message"`
	Room      string    `json:"room"`
	Timestamp time.Time `json:"timestamp"`
}

type DeviceTelemetryUpdatePayload struct {
	DeviceID    string    `json:"device_id"`
	UserID      string    `json:"user_id"`
	EnergyWatts float64   `json:"energy_watts"`
	Timestamp   time.Time `json:"timestamp"`
}

func newFrame(frameType FrameType, payload interface{}) *Frame {
	data, err := json.Marshal(payload)
	if err != nil {
		// All payload types are plain structs; marshaling them cannot fail.
		data = []byte("{}")
	}
	return &Frame{Type: frameType, Payload: data}
}

// NewSystemNotification builds the generic notification frame used for both
// informational messages and protocol-level rejections.
func NewSystemNotification(message string) *Frame {
	return newFrame(FrameSystemNotification, NotificationPayload{
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// NewAuthenticationAck acknowledges a successful authentication.
func NewAuthenticationAck(identity *auth.Identity) *Frame {
	return newFrame(FrameAuthentication, AuthenticationAckPayload{
		Message:   "Authentication successful",
		UserID:    identity.UserID,
		UserEmail: identity.Email,
		Timestamp: time.Now().UTC(),
	})
}

// NewRoomAck acknowledges a subscribe or unsubscribe for a room.
func NewRoomAck(frameType FrameType, message, room string) *Frame {
	return newFrame(frameType, RoomAckPayload{
		Message:   message,
		Room:      room,
		Timestamp: time.Now().UTC(),
	})
}

// NewDeviceTelemetryUpdate builds the normalized telemetry fan-out frame.
func NewDeviceTelemetryUpdate(deviceID, userID string, energyWatts float64, timestamp time.Time) *Frame {
	return newFrame(FrameDeviceTelemetryUpdate, DeviceTelemetryUpdatePayload{
		DeviceID:    deviceID,
		UserID:      userID,
		EnergyWatts: energyWatts,
		Timestamp:   timestamp,
	})
}
