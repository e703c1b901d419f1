// Package ws implements the transport edge of the Socket Event Adapter
// (spec §4.10): a gorilla/websocket handler translating the client's JSON
// wire vocabulary (spec §6) into internal/session.Manager operations, and
// internal events back into wire-shaped frames via ToWire. Grounded on the
// teacher's internal/ws handler.go connection loop, generalized from the
// teacher's binary-audio-frame transport to the spec's JSON-embedded
// float32 audio arrays.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/animavtuber/core/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16384,
	WriteBufferSize: 16384,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandlerConfig holds the shared session manager backing every connection.
type HandlerConfig struct {
	Manager *session.Manager
}

// Handler upgrades HTTP connections to WebSocket call sessions.
type Handler struct {
	cfg HandlerConfig
}

// NewHandler creates a WebSocket handler bound to a session manager.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{cfg: cfg}
}

// inboundFrame is the union of every wire message type a client may send
// (spec §6). Only the fields relevant to Action are populated per message.
type inboundFrame struct {
	Type       string         `json:"type"`
	Text       string         `json:"text"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	FromName   string         `json:"from_name,omitempty"`
	Audio      []float32      `json:"audio,omitempty"`
	HistoryUID string         `json:"history_uid,omitempty"`
	File       string         `json:"file,omitempty"`
}

// ServeHTTP upgrades the connection and runs the call session until the
// client disconnects.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	h.runSession(r.Context(), conn, sessionID)
}

func (h *Handler) runSession(ctx context.Context, conn *websocket.Conn, sessionID string) {
	var writeMu sync.Mutex
	sink := func(msg map[string]any) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(msg); err != nil {
			slog.Error("write frame failed", "session", sessionID, "error", err)
		}
	}

	h.cfg.Manager.OnConnect(sessionID, sink)
	defer h.cfg.Manager.OnDisconnect(sessionID)

	slog.Info("call started", "session", sessionID)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			slog.Info("call ended", "session", sessionID, "error", err)
			return
		}
		h.handleFrame(ctx, sessionID, data, sink)
	}
}

func (h *Handler) handleFrame(ctx context.Context, sessionID string, data []byte, sink session.Sink) {
	var in inboundFrame
	if err := json.Unmarshal(data, &in); err != nil {
		sink(map[string]any{"type": "error", "message": "malformed frame"})
		return
	}

	switch in.Type {
	case "text_input":
		h.cfg.Manager.OnText(ctx, sessionID, in.Text, in.FromName)
	case "mic_audio_data", "raw_audio_data":
		h.cfg.Manager.OnRawAudioChunk(ctx, sessionID, in.Audio)
	case "mic_audio_end":
		// The VAD timeout/force-end path covers an explicit end-of-speech
		// signal too; nothing further to do once the client confirms it.
	case "interrupt_signal":
		h.cfg.Manager.OnInterrupt(sessionID, in.Text)
	case "heartbeat":
		sink(map[string]any{"type": "heartbeat-ack"})
	case "fetch_history_list":
		sink(map[string]any{"type": "history-list", "histories": []any{}})
	case "fetch_history":
		sink(map[string]any{"type": "history-data", "history_uid": in.HistoryUID, "messages": []any{}})
	case "create_new_history":
		sink(map[string]any{"type": "new-history-created", "history_uid": uuid.NewString()})
	case "clear_history":
		sink(map[string]any{"type": "history-cleared"})
	case "switch_config":
		// Conversation-memory and config hot-swap are delegated to an
		// external collaborator (spec §4.9's Non-goals); the core only
		// acknowledges the frame so the client's UI does not hang.
		sink(map[string]any{"type": "control", "text": "no-audio-data"})
	default:
		slog.Warn("unknown inbound frame type", "session", sessionID, "type", in.Type)
	}
}
