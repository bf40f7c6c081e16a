package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"realtime-service/internal/auth"

	"github.com/gorilla/websocket"
)

// stubVerifier resolves tokens from a fixed map and counts calls.
type stubVerifier struct {
	mu         sync.Mutex
	identities map[string]*auth.Identity
	calls      int
}

func newStubVerifier() *stubVerifier {
	return &stubVerifier{identities: make(map[string]*auth.Identity)}
}

func (s *stubVerifier) allow(token, userID, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[token] = &auth.Identity{UserID: userID, Email: email}
}

func (s *stubVerifier) Verify(_ context.Context, token string) (*auth.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if identity, ok := s.identities[token]; ok {
		return identity, nil
	}
	return nil, auth.ErrInvalidToken
}

func (s *stubVerifier) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// mockConn is an in-memory Conn. Frames written by the server are recorded;
// inbound frames are fed through a channel and closing it ends the read pump.
type mockConn struct {
	mu      sync.Mutex
	written [][]byte
	closed  bool
	inbound chan []byte
}

func newMockConn() *mockConn {
	return &mockConn{inbound: make(chan []byte, 16)}
}

func (m *mockConn) ReadMessage() (int, []byte, error) {
	data, ok := <-m.inbound
	if !ok {
		return 0, nil, errors.New("connection closed")
	}
	return websocket.TextMessage, data, nil
}

func (m *mockConn) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("connection closed")
	}
	if messageType == websocket.TextMessage {
		buf := make([]byte, len(data))
		copy(buf, data)
		m.written = append(m.written, buf)
	}
	return nil
}

func (m *mockConn) SetReadLimit(int64)                {}
func (m *mockConn) SetReadDeadline(time.Time) error   { return nil }
func (m *mockConn) SetWriteDeadline(time.Time) error  { return nil }
func (m *mockConn) SetPongHandler(func(string) error) {}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockConn) frames() []Frame {
	m.mu.Lock()
	defer m.mu.Unlock()

	frames := make([]Frame, 0, len(m.written))
	for _, data := range m.written {
		var frame Frame
		if err := json.Unmarshal(data, &frame); err == nil {
			frames = append(frames, frame)
		}
	}
	return frames
}

// waitForFrames polls until the connection has received at least n frames.
func (m *mockConn) waitForFrames(t *testing.T, n int) []Frame {
	t.Helper()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if frames := m.frames(); len(frames) >= n {
			return frames
		}
		time.Sleep(5 * time.Millisecond)
	}

	frames := m.frames()
	t.Fatalf("expected at least %d frames, got %d", n, len(frames))
	return frames
}

// expectNoFrames asserts the connection received nothing within a grace
// period long enough for the write pump to have drained pending sends.
func (m *mockConn) expectNoFrames(t *testing.T) {
	t.Helper()

	time.Sleep(50 * time.Millisecond)
	if frames := m.frames(); len(frames) != 0 {
		t.Fatalf("expected no frames, got %d (first type %s)", len(frames), frames[0].Type)
	}
}

func newTestHub(verifier TokenVerifier) *Hub {
	if verifier == nil {
		verifier = newStubVerifier()
	}
	return NewHub(verifier, nil)
}

// newTestClient registers a client backed by a mock connection and starts its
// write pump so enqueued frames reach the connection.
func newTestClient(t *testing.T, h *Hub) (*Client, *mockConn) {
	t.Helper()

	conn := newMockConn()
	client := NewClient(h, conn)
	h.registerClient(client)
	go client.writePump()

	t.Cleanup(func() {
		h.unregisterClient(client)
	})
	return client, conn
}

func (h *Hub) roomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) userConnCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userClients[userID])
}

func rawPayload(t *testing.T, payload interface{}) json.RawMessage {
	t.Helper()

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	return data
}

func decodePayload(t *testing.T, frame Frame, out interface{}) {
	t.Helper()

	if err := json.Unmarshal(frame.Payload, out); err != nil {
		t.Fatalf("failed to decode %s payload: %v", frame.Type, err)
	}
}
