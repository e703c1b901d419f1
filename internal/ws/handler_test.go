package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"github.com/animavtuber/core/internal/orchestrator"
	"github.com/animavtuber/core/internal/providers"
	"github.com/animavtuber/core/internal/session"
	"github.com/animavtuber/core/internal/vad"
)

type fakeAgent struct{ response string }

func (f *fakeAgent) Stream(ctx context.Context, userMessage, ragContext, systemPrompt string, onToken providers.TokenCallback) (string, error) {
	if onToken != nil {
		onToken(f.response)
	}
	return f.response, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mgr := session.NewManager(session.Config{
		Factory: func(sessionID string) *orchestrator.Orchestrator {
			return orchestrator.New(orchestrator.Config{SessionID: sessionID, Agent: &fakeAgent{response: "hi there"}})
		},
		VADConfig: vad.DefaultConfig(),
		Adapter:   ToWire,
	})
	handler := NewHandler(HandlerConfig{Manager: mgr})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *gorillaws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/call"
	conn, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestServeHTTP_SendsHandshakeOnConnect(t *testing.T) {
	t.Parallel()
	conn := dial(t, newTestServer(t))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first map[string]any
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read handshake: %v", err)
	}
	if first["type"] != "connection-established" {
		t.Errorf("first frame type = %v, want connection-established", first["type"])
	}
}

func TestServeHTTP_TextInputProducesTextEvent(t *testing.T) {
	t.Parallel()
	conn := dial(t, newTestServer(t))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var handshake map[string]any
	conn.ReadJSON(&handshake) // connection-established
	conn.ReadJSON(&handshake) // control start-mic

	if err := conn.WriteJSON(map[string]any{"type": "text_input", "text": "hello"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	found := false
	for i := 0; i < 10; i++ {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg["type"] == "text" {
			found = true
			break
		}
	}
	if !found {
		t.Error("expected a text event in response to text_input")
	}
}

func TestHandleFrame_HeartbeatAck(t *testing.T) {
	t.Parallel()
	conn := dial(t, newTestServer(t))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var handshake map[string]any
	conn.ReadJSON(&handshake)
	conn.ReadJSON(&handshake)

	conn.WriteJSON(map[string]any{"type": "heartbeat"})

	var msg map[string]any
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg["type"] != "heartbeat-ack" {
		t.Errorf("type = %v, want heartbeat-ack", msg["type"])
	}
}
