package realtime

import (
	"testing"

	"realtime-service/internal/config"
)

func newTestBridge(hub *Hub) *Bridge {
	return NewBridge(hub, nil, &config.BusConfig{
		NotificationsChannel: "system_notifications",
		TelemetryChannel:     "device_telemetry",
	})
}

func TestDispatchTelemetryPayload(t *testing.T) {
	hub := newTestHub(nil)
	client, conn := newTestClient(t, hub)
	hub.Join(DeviceTelemetryRoom("dev-1", "user-1"), client.ID())

	bridge := newTestBridge(hub)
	bridge.dispatch("device_telemetry",
		[]byte(`{"device_id":"dev-1","user_id":"user-1","energy_watts":42.5,"timestamp":"2024-01-01T00:00:00Z"}`))

	frames := conn.waitForFrames(t, 1)
	if frames[0].Type != FrameDeviceTelemetryUpdate {
		t.Errorf("expected %s frame, got %s", FrameDeviceTelemetryUpdate, frames[0].Type)
	}
}

func TestDispatchNotificationPayload(t *testing.T) {
	hub := newTestHub(nil)
	_, conn := newTestClient(t, hub)

	bridge := newTestBridge(hub)
	bridge.dispatch("system_notifications", []byte(`{"message":"scheduled downtime"}`))

	frames := conn.waitForFrames(t, 1)
	var payload NotificationPayload
	decodePayload(t, frames[0], &payload)
	if payload.Message != "scheduled downtime" {
		t.Errorf("unexpected message: %q", payload.Message)
	}
}

func TestDispatchDropsMalformedPayloads(t *testing.T) {
	hub := newTestHub(nil)
	client, conn := newTestClient(t, hub)
	hub.Join(DeviceTelemetryRoom("dev-1", "user-1"), client.ID())

	bridge := newTestBridge(hub)
	bridge.dispatch("device_telemetry", []byte(`not json at all`))
	bridge.dispatch("system_notifications", []byte(`{broken`))
	bridge.dispatch("some_other_channel", []byte(`{"message":"ignored"}`))

	conn.expectNoFrames(t)
}

func TestDispatchDropsTelemetryWithoutIdentifiers(t *testing.T) {
	hub := newTestHub(nil)
	client, conn := newTestClient(t, hub)
	hub.Join(DeviceTelemetryRoom("dev-1", "user-1"), client.ID())

	bridge := newTestBridge(hub)
	bridge.dispatch("device_telemetry", []byte(`{"energy_watts":10}`))

	conn.expectNoFrames(t)
}
