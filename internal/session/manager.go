// Package session implements the Session Manager (spec §4.11): it owns
// every connected client's Orchestrator, VAD state machine, and post-VAD
// audio buffer, and translates transport-level frames into orchestrator
// operations. Grounded on
// original_source/src/anima/services/conversation/session_manager.py's
// get_or_create/cleanup factory pattern.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/animavtuber/core/internal/audio"
	"github.com/animavtuber/core/internal/event"
	"github.com/animavtuber/core/internal/eventbus"
	"github.com/animavtuber/core/internal/orchestrator"
	"github.com/animavtuber/core/internal/vad"
)

// Sink delivers one outbound SinkMessage (already wire-shaped) to the
// transport for a single session.
type Sink func(msg map[string]any)

// Adapter translates one internal event into a wire SinkMessage, returning
// false for event types with no client-facing form. Satisfied by
// internal/ws.ToWire; kept as an injected function so this package never
// depends on the transport package.
type Adapter func(evt event.Out) (map[string]any, bool)

// Factory builds a fresh Orchestrator for a newly connected session ID.
type Factory func(sessionID string) *orchestrator.Orchestrator

// Cleanup runs once when a session disconnects, after its Orchestrator has
// stopped — the hook point for releasing resources the Factory attached to
// the orchestrator (e.g. closing a per-session trace.Tracer).
type Cleanup func(sessionID string)

// Config configures a Manager.
type Config struct {
	Factory   Factory
	VADConfig vad.Config
	Prober    vad.Prober
	Adapter   Adapter
	Cleanup   Cleanup
}

// Manager owns every live session, keyed by session ID.
type Manager struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	factory   Factory
	vadConfig vad.Config
	prober    vad.Prober
	adapter   Adapter
	cleanup   Cleanup
}

// Session is one connected client's full per-connection state.
type Session struct {
	id   string
	orch *orchestrator.Orchestrator
	vad  *vad.Machine
	buf  []byte
	sink Sink
}

// NewManager creates an empty session manager.
func NewManager(cfg Config) *Manager {
	return &Manager{
		sessions:  make(map[string]*Session),
		factory:   cfg.Factory,
		vadConfig: cfg.VADConfig,
		prober:    cfg.Prober,
		adapter:   cfg.Adapter,
		cleanup:   cfg.Cleanup,
	}
}

// SessionCount reports the number of live sessions.
func (m *Manager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) get(sessionID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[sessionID]
}

// OnConnect creates the session's Orchestrator and VAD machine, subscribes
// the orchestrator's event bus to the sink via the adapter, and sends the
// connection handshake: connection-established followed by control
// start-mic.
func (m *Manager) OnConnect(sessionID string, sink Sink) *Session {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok {
		s = &Session{
			id:   sessionID,
			orch: m.factory(sessionID),
			vad:  vad.New(m.vadConfig, m.prober),
			sink: sink,
		}
		s.orch.Start()
		s.orch.Bus().SubscribeAll(func(_ context.Context, evt event.Out) error {
			if msg, ok := m.adapter(evt); ok {
				sink(msg)
			}
			return nil
		}, eventbus.PriorityMonitor)
		m.sessions[sessionID] = s
		slog.Info("session connected", "session", sessionID)
	}
	m.mu.Unlock()

	sink(map[string]any{"type": "connection-established", "message": "connected", "sid": sessionID})
	sink(map[string]any{"type": "control", "text": "start-mic"})
	return s
}

// OnText handles an inbound text_input frame.
func (m *Manager) OnText(ctx context.Context, sessionID, text, fromName string) {
	s := m.get(sessionID)
	if s == nil {
		return
	}
	result := s.orch.ProcessInput(ctx, text, nil, fromName)
	if result.Error != nil {
		s.sink(map[string]any{"type": "error", "message": result.Error.Error()})
	}
}

// OnRawAudioChunk pushes pcm through the session's VAD, dispatches any
// completed utterance, and polls the timeout tracker.
func (m *Manager) OnRawAudioChunk(ctx context.Context, sessionID string, pcm []float32) {
	s := m.get(sessionID)
	if s == nil {
		return
	}

	for _, r := range s.vad.ProcessChunk(pcm) {
		m.handleVADResult(ctx, s, r)
	}
	m.checkTimeout(ctx, s)
}

func (m *Manager) handleVADResult(ctx context.Context, s *Session, r vad.Result) {
	if !r.SpeechEnd {
		return // speech-start carries no outward message
	}
	s.buf = append(s.buf, r.Audio...)
	m.dispatchUtterance(ctx, s)
}

// checkTimeout implements the VAD-timeout tracker: if a session has been
// mid-utterance longer than cfg.Timeout, force a synthetic speech-end.
func (m *Manager) checkTimeout(ctx context.Context, s *Session) {
	if s.vad.State() == vad.StateIdle {
		return
	}
	if time.Since(s.vad.ActiveSince()) <= m.vadConfig.Timeout {
		return
	}
	r := s.vad.ForceEnd()
	if !r.SpeechEnd {
		return
	}
	slog.Warn("vad timeout rescue", "session", s.id)
	s.buf = append(s.buf, r.Audio...)
	m.dispatchUtterance(ctx, s)
}

func (m *Manager) dispatchUtterance(ctx context.Context, s *Session) {
	payload := s.buf
	s.buf = nil
	if len(payload) == 0 {
		return
	}

	s.sink(map[string]any{"type": "control", "text": "mic-audio-end"})
	s.sink(map[string]any{"type": "control", "text": "conversation-start"})

	samples, _, err := audio.Decode(payload, audio.CodecPCM, 16000)
	if err != nil {
		s.sink(map[string]any{"type": "error", "message": err.Error()})
		s.sink(map[string]any{"type": "control", "text": "conversation-end"})
		return
	}

	result := s.orch.ProcessInput(ctx, "", samples, "")
	if result.Error != nil {
		s.sink(map[string]any{"type": "error", "message": result.Error.Error()})
	}
	s.sink(map[string]any{"type": "control", "text": "conversation-end"})
}

// OnInterrupt forwards a barge-in signal to the orchestrator.
func (m *Manager) OnInterrupt(sessionID, heardText string) {
	s := m.get(sessionID)
	if s == nil {
		return
	}
	_ = heardText // available for future use (e.g. logging partial ASR); not required by the turn algorithm
	s.orch.Interrupt()
	s.sink(map[string]any{"type": "control", "text": "interrupted"})
}

// OnDisconnect stops the orchestrator and releases all session state.
func (m *Manager) OnDisconnect(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	s.orch.Stop()
	delete(m.sessions, sessionID)
	if m.cleanup != nil {
		m.cleanup(sessionID)
	}
	slog.Info("session disconnected", "session", sessionID)
}
