// Package orchestrator implements the Conversation Orchestrator (spec
// §4.7): one instance per session, owning an event bus, an event router,
// and the ASR -> Agent -> TTS turn algorithm with expression choreography.
// Grounded on original_source/src/anima/services/conversation/orchestrator.go.
package orchestrator

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/animavtuber/core/internal/audio"
	"github.com/animavtuber/core/internal/denoise"
	"github.com/animavtuber/core/internal/emotion"
	"github.com/animavtuber/core/internal/errs"
	"github.com/animavtuber/core/internal/event"
	"github.com/animavtuber/core/internal/eventbus"
	"github.com/animavtuber/core/internal/knowledge"
	"github.com/animavtuber/core/internal/metrics"
	"github.com/animavtuber/core/internal/providers"
	"github.com/animavtuber/core/internal/trace"
)

// Knowledge is the optional RAG lookup step: given a user message, return a
// context block to prepend to the LLM prompt, or an empty string.
type Knowledge interface {
	Retrieve(ctx context.Context, query string) (string, error)
}

// Result is the outcome of one process-input turn.
type Result struct {
	Success  bool
	Text     string
	Error    error
	Metadata map[string]any
}

// Config bundles an Orchestrator's collaborators. ASR, TTS, and Knowledge
// are optional: a text-only session with no TTS still produces sentence
// events and an idle expression; a transcript event is emitted only for
// audio input.
type Config struct {
	SessionID      string
	ASR            providers.ASR
	TTS            providers.TTS
	Agent          providers.LLM
	Knowledge      Knowledge
	SystemPrompt   string
	DefaultEmotion string
	ValidEmotions  []string
	// TimelineStrategy selects the expression-timeline algorithm (spec
	// §4.9). Defaults to emotion.StrategyPosition.
	TimelineStrategy emotion.Strategy

	// Denoiser, when set, suppresses background noise on incoming audio
	// samples before ASR transcription.
	Denoiser *denoise.Denoiser
	// Tracer, when set, records a run with nested knowledge/LLM/TTS spans
	// for each turn to Postgres.
	Tracer *trace.Tracer
	// ReferenceTranscript, when set, is logged against each transcription's
	// word error rate for ASR accuracy evaluation sessions.
	ReferenceTranscript string
	// Classifier, when set, annotates audio turns with an additive
	// audio-scene/emotion hint; never required for the turn algorithm.
	Classifier *knowledge.ClassifyClient
	// RemoveEmoji, when true, strips emoji from recognized/typed input text
	// during the Clean step, in addition to the unconditional whitespace
	// collapse.
	RemoveEmoji bool
}

// Orchestrator runs the turn algorithm for one session.
type Orchestrator struct {
	sessionID      string
	asr            providers.ASR
	tts            providers.TTS
	agent          providers.LLM
	knowledge      Knowledge
	systemPrompt   string
	extractor           *emotion.Extractor
	timelineCalc        *emotion.Calculator
	defaultEmotion      string
	denoiser            *denoise.Denoiser
	tracer              *trace.Tracer
	referenceTranscript string
	classifier          *knowledge.ClassifyClient
	removeEmoji         bool

	bus    *eventbus.Bus
	router *eventbus.Router

	mu          sync.Mutex
	running     bool
	interrupted atomic.Bool
	processing  atomic.Bool
	seq         atomic.Int64
}

// New creates an Orchestrator with a fresh event bus and router wired
// together, per the teacher's one-bus-per-conversation pattern.
func New(cfg Config) *Orchestrator {
	bus := eventbus.New()
	defaultEmotion := cfg.DefaultEmotion
	if defaultEmotion == "" {
		defaultEmotion = "neutral"
	}
	strategy := cfg.TimelineStrategy
	if strategy == "" {
		strategy = emotion.StrategyPosition
	}
	return &Orchestrator{
		sessionID:           cfg.SessionID,
		asr:                 cfg.ASR,
		tts:                 cfg.TTS,
		agent:               cfg.Agent,
		knowledge:           cfg.Knowledge,
		systemPrompt:        cfg.SystemPrompt,
		extractor:           emotion.NewExtractor(cfg.ValidEmotions),
		timelineCalc:        emotion.NewCalculatorWithStrategy(strategy, defaultEmotion),
		defaultEmotion:      defaultEmotion,
		denoiser:            cfg.Denoiser,
		tracer:              cfg.Tracer,
		referenceTranscript: cfg.ReferenceTranscript,
		classifier:          cfg.Classifier,
		removeEmoji:         cfg.RemoveEmoji,
		bus:                 bus,
		router:              eventbus.NewRouter(bus),
	}
}

// Bus exposes the session's event bus so the socket frontend can subscribe
// to outbound events (spec §4.10).
func (o *Orchestrator) Bus() *eventbus.Bus { return o.bus }

// Register attaches handler to event_type at the given priority. Chainable,
// mirroring the Python orchestrator's register_handler.
func (o *Orchestrator) Register(eventType event.Type, handler eventbus.HandlerFunc, priority eventbus.Priority) *Orchestrator {
	o.router.Register(string(eventType), handler, priority)
	return o
}

// Start connects the router to the bus. Safe to call once; a second call
// warns and no-ops, matching EventRouter.Setup's idempotence.
func (o *Orchestrator) Start() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		slog.Warn("orchestrator already running", "session", o.sessionID)
		return
	}
	o.router.Setup()
	o.running = true
	o.interrupted.Store(false)
}

// Stop disconnects the router from the bus.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.router.Clear()
	o.running = false
}

// IsRunning reports whether Start has been called without a matching Stop.
func (o *Orchestrator) IsRunning() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// IsProcessing reports whether a turn is currently in flight.
func (o *Orchestrator) IsProcessing() bool { return o.processing.Load() }

// Interrupt signals barge-in: the in-flight turn should stop consuming LLM
// output and skip its completion marker, and the avatar should flash a
// surprised expression immediately.
func (o *Orchestrator) Interrupt() {
	o.interrupted.Store(true)
	o.emitExpression(context.Background(), "surprised")
	slog.Info("turn interrupted", "session", o.sessionID)
}

// ProcessInput runs one full turn: transcribe (if raw audio), clean, send
// to the agent, extract emotions, synthesize speech, and emit the
// expression choreography. text is used directly when samples is nil.
func (o *Orchestrator) ProcessInput(ctx context.Context, text string, samples []float32, fromName string) Result {
	if !o.IsRunning() {
		slog.Warn("orchestrator not running, starting automatically", "session", o.sessionID)
		o.Start()
	}

	o.processing.Store(true)
	o.interrupted.Store(false)
	// Seq restarts every turn: the first emission's Add(1) yields 0.
	o.seq.Store(-1)
	defer o.processing.Store(false)

	resolvedText := text
	var audioClass *knowledge.ClassifyResult
	if samples != nil {
		if o.asr == nil {
			return Result{Error: fmt.Errorf("orchestrator: no ASR configured for audio input")}
		}
		if o.denoiser != nil {
			samples = o.denoiser.Denoise(samples)
		}
		transcript, err := o.asr.Transcribe(ctx, samples)
		if err != nil {
			return Result{Error: fmt.Errorf("orchestrator: transcribe: %w", err)}
		}
		o.emit(ctx, event.New(event.TypeTranscript, transcript, int(o.seq.Add(1))))
		if o.referenceTranscript != "" {
			wer := audio.ComputeWER(o.referenceTranscript, transcript)
			slog.Info("asr accuracy", "session", o.sessionID, "wer", wer)
		}
		if o.classifier != nil {
			if c, err := o.classifier.ClassifyEmotion(ctx, samples); err == nil {
				audioClass = c
			} else {
				slog.Warn("audio classification failed", "session", o.sessionID, "error", err)
			}
		}
		resolvedText = transcript
	}

	resolvedText = cleanInputText(resolvedText, o.removeEmoji)
	if resolvedText == "" {
		return Result{Error: fmt.Errorf("orchestrator: empty input text")}
	}

	result := o.processConversation(ctx, resolvedText)
	if audioClass != nil {
		if result.Metadata == nil {
			result.Metadata = map[string]any{}
		}
		result.Metadata["audio_classification"] = audioClass
	}
	return result
}

func (o *Orchestrator) processConversation(ctx context.Context, text string) Result {
	if o.agent == nil {
		return Result{Error: fmt.Errorf("orchestrator: no agent configured")}
	}

	slog.Info("processing turn", "session", o.sessionID, "text_preview", preview(text, 50))

	turnStart := time.Now()
	runID := o.tracer.StartRun()

	o.emitExpression(ctx, "thinking")

	ragContext := ""
	if o.knowledge != nil {
		ragStart := time.Now()
		retrieved, err := o.knowledge.Retrieve(ctx, text)
		if err == nil {
			ragContext = retrieved
			o.tracer.RecordSpan(runID, "knowledge", ragStart, time.Since(ragStart).Seconds()*1000, text, preview(retrieved, 200), "ok", "")
		} else {
			slog.Warn("knowledge retrieval failed", "session", o.sessionID, "error", err)
			o.tracer.RecordSpan(runID, "knowledge", ragStart, time.Since(ragStart).Seconds()*1000, text, "", "error", err.Error())
		}
	}

	o.emitExpression(ctx, "speaking")

	start := time.Now()
	var sentences sentenceBuffer
	rawResponse, streamErr := o.agent.Stream(ctx, text, ragContext, o.systemPrompt, func(token string) {
		if o.interrupted.Load() {
			return
		}
		if complete := sentences.add(token); complete != "" {
			o.emit(ctx, event.New(event.TypeSentence, event.SentenceData{Text: complete}, int(o.seq.Add(1))))
		}
	})
	llmDuration := time.Since(start)
	metrics.E2EDuration.Observe(llmDuration.Seconds())
	if streamErr != nil {
		o.tracer.RecordSpan(runID, "llm", start, llmDuration.Seconds()*1000, text, "", "error", streamErr.Error())
		o.tracer.EndRun(runID, time.Since(turnStart).Seconds()*1000, text, "", "error")
		return Result{Error: fmt.Errorf("orchestrator: agent stream: %w", streamErr)}
	}
	o.tracer.RecordSpan(runID, "llm", start, llmDuration.Seconds()*1000, text, preview(rawResponse, 200), "ok", "")
	if !o.interrupted.Load() {
		if remainder := sentences.flush(); remainder != "" {
			o.emit(ctx, event.New(event.TypeSentence, event.SentenceData{Text: remainder}, int(o.seq.Add(1))))
		}
		completion := event.New(event.TypeSentence, event.SentenceData{Text: "", FromName: "AI"}, int(o.seq.Add(1)))
		completion.Metadata["is_complete"] = true
		o.emit(ctx, completion)
	}

	if o.interrupted.Load() {
		o.tracer.EndRun(runID, time.Since(turnStart).Seconds()*1000, text, rawResponse, "interrupted")
		return Result{Success: false, Error: errs.ErrInterrupted, Metadata: map[string]any{"interrupted": true}}
	}

	extraction := o.extractor.Extract(rawResponse)
	responseText := extraction.CleanedText
	if responseText == "" {
		responseText = rawResponse
	}

	var audioBytes []byte
	if o.tts != nil && !o.interrupted.Load() {
		ttsStart := time.Now()
		audioBytes = o.synthesizeAudio(ctx, responseText, extraction)
		status := "ok"
		if audioBytes == nil {
			status = "error"
		}
		o.tracer.RecordSpan(runID, "tts", ttsStart, time.Since(ttsStart).Seconds()*1000, preview(responseText, 200), "", status, "")
	}

	o.emitExpression(ctx, "idle")
	o.tracer.EndRun(runID, time.Since(turnStart).Seconds()*1000, text, responseText, "ok")

	return Result{
		Success: true,
		Text:    responseText,
		Metadata: map[string]any{
			"emotions":   extraction.Tags,
			"audio_size": len(audioBytes),
		},
	}
}

func (o *Orchestrator) synthesizeAudio(ctx context.Context, text string, extraction emotion.ExtractionResult) []byte {
	audioBytes, err := o.tts.Synthesize(ctx, text)
	if err != nil {
		slog.Error("tts synthesis failed", "session", o.sessionID, "error", err)
		return nil
	}

	encoded := base64.StdEncoding.EncodeToString(audioBytes)

	if extraction.HasEmotions {
		duration := audio.EstimateDuration(audioBytes)
		volumes := audio.VolumeEnvelope(audioBytes)
		timeline := o.timelineCalc.Calculate(extraction.Tags, text, duration)
		o.emit(ctx, event.New(event.TypeAudioWithExpr, event.AudioWithExpressionData{
			AudioBase64:   encoded,
			Format:        "wav",
			Volumes:       volumes,
			Segments:      toEventSegments(timeline.Segments),
			TotalDuration: timeline.TotalDuration,
			Text:          text,
		}, int(o.seq.Add(1))))
	} else {
		o.emit(ctx, event.New(event.TypeAudio, event.AudioData{AudioBase64: encoded, Format: "wav"}, int(o.seq.Add(1))))
	}

	return audioBytes
}

func (o *Orchestrator) emitExpression(ctx context.Context, expression string) {
	slog.Debug("expression", "session", o.sessionID, "value", expression)
	out := event.New(event.TypeExpression, expression, int(o.seq.Add(1)))
	out.Metadata["timestamp"] = time.Now().Unix()
	o.emit(ctx, out)
}

func (o *Orchestrator) emit(ctx context.Context, out event.Out) {
	o.bus.Emit(ctx, out)
}

// HandlerCount returns the number of handlers the router currently manages,
// mirroring the Python orchestrator's get_handler_count.
func (o *Orchestrator) HandlerCount() int { return o.router.HandlerCount() }

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func toEventSegments(segments []emotion.Segment) []event.ExpressionSegment {
	out := make([]event.ExpressionSegment, len(segments))
	for i, s := range segments {
		out[i] = event.ExpressionSegment{
			Emotion:   s.Emotion,
			Time:      s.StartTime,
			Duration:  s.Duration,
			Intensity: s.Intensity,
		}
	}
	return out
}
