package session

import (
	"context"
	"testing"

	"github.com/animavtuber/core/internal/event"
	"github.com/animavtuber/core/internal/orchestrator"
	"github.com/animavtuber/core/internal/vad"
)

func testAdapter(evt event.Out) (map[string]any, bool) {
	return map[string]any{"type": string(evt.Type)}, true
}

func newTestManager() *Manager {
	return NewManager(Config{
		Factory: func(sessionID string) *orchestrator.Orchestrator {
			return orchestrator.New(orchestrator.Config{SessionID: sessionID})
		},
		VADConfig: vad.DefaultConfig(),
		Adapter:   testAdapter,
	})
}

func TestOnConnect_SendsHandshake(t *testing.T) {
	t.Parallel()
	mgr := newTestManager()

	var got []map[string]any
	mgr.OnConnect("s1", func(msg map[string]any) { got = append(got, msg) })

	if len(got) != 2 {
		t.Fatalf("expected 2 handshake messages, got %d", len(got))
	}
	if got[0]["type"] != "connection-established" {
		t.Errorf("first message type = %v", got[0]["type"])
	}
	if got[1]["type"] != "control" || got[1]["text"] != "start-mic" {
		t.Errorf("second message = %+v", got[1])
	}
}

func TestOnConnect_IsIdempotentPerSession(t *testing.T) {
	t.Parallel()
	mgr := newTestManager()

	mgr.OnConnect("s1", func(map[string]any) {})
	mgr.OnConnect("s1", func(map[string]any) {})

	if mgr.SessionCount() != 1 {
		t.Errorf("session count = %d, want 1", mgr.SessionCount())
	}
}

func TestOnText_NoAgentSurfacesError(t *testing.T) {
	t.Parallel()
	mgr := newTestManager()

	var got []map[string]any
	mgr.OnConnect("s1", func(msg map[string]any) { got = append(got, msg) })
	got = nil

	mgr.OnText(context.Background(), "s1", "hello", "")

	found := false
	for _, msg := range got {
		if msg["type"] == "error" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an error message, got %+v", got)
	}
}

func TestOnDisconnect_RemovesSession(t *testing.T) {
	t.Parallel()
	mgr := newTestManager()

	mgr.OnConnect("s1", func(map[string]any) {})
	mgr.OnDisconnect("s1")

	if mgr.SessionCount() != 0 {
		t.Errorf("session count = %d, want 0", mgr.SessionCount())
	}
}

func TestOnInterrupt_ForwardsControlMessage(t *testing.T) {
	t.Parallel()
	mgr := newTestManager()

	var got []map[string]any
	mgr.OnConnect("s1", func(msg map[string]any) { got = append(got, msg) })
	got = nil

	mgr.OnInterrupt("s1", "")

	found := false
	for _, msg := range got {
		if msg["type"] == "control" && msg["text"] == "interrupted" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected interrupted control message, got %+v", got)
	}
}

func TestCheckTimeout_NoopWhenIdle(t *testing.T) {
	t.Parallel()
	mgr := newTestManager()
	mgr.OnConnect("s1", func(map[string]any) {})

	s := mgr.get("s1")
	mgr.checkTimeout(context.Background(), s)
	if s.vad.State() != vad.StateIdle {
		t.Errorf("expected idle, got %v", s.vad.State())
	}
}

