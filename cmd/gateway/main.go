package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/animavtuber/core/internal/config"
	"github.com/animavtuber/core/internal/denoise"
	"github.com/animavtuber/core/internal/emotion"
	"github.com/animavtuber/core/internal/env"
	"github.com/animavtuber/core/internal/knowledge"
	"github.com/animavtuber/core/internal/orchestrator"
	"github.com/animavtuber/core/internal/prompts"
	"github.com/animavtuber/core/internal/providers"
	"github.com/animavtuber/core/internal/providers/asr"
	"github.com/animavtuber/core/internal/providers/llm"
	"github.com/animavtuber/core/internal/providers/tts"
	vadprovider "github.com/animavtuber/core/internal/providers/vad"
	"github.com/animavtuber/core/internal/registry"
	"github.com/animavtuber/core/internal/session"
	"github.com/animavtuber/core/internal/trace"
	"github.com/animavtuber/core/internal/vad"
	"github.com/animavtuber/core/internal/ws"
)

// defaultValidEmotions mirrors original_source's Live2D config expression
// vocabulary (config/live2d.py's valid_emotions default).
var defaultValidEmotions = []string{"happy", "sad", "angry", "surprised", "neutral", "thinking"}

func newRegistry() *registry.Registry {
	r := registry.New()
	must := func(err error) {
		if err != nil {
			slog.Error("registry: failed to register provider", "error", err)
			os.Exit(1)
		}
	}
	must(r.Register("asr", "whisper", asr.Config{}, asr.New))
	must(r.Register("tts", "piper", tts.Config{}, tts.New))
	must(r.Register("vad", "model", vadprovider.Config{}, vadprovider.New))
	must(r.Register("agent", "agent", llm.AgentConfig{}, llm.NewAgent))
	must(r.Register("agent", "anthropic", llm.AnthropicConfig{}, llm.NewAnthropic))
	must(r.Register("agent", "ollama", llm.OllamaConfig{}, llm.NewOllama))
	return r
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfgArg := ""
	if len(os.Args) > 1 {
		cfgArg = os.Args[1]
	}
	appCfg, err := config.Load(config.ResolvePath(cfgArg))
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}

	r := newRegistry()
	systemPrompt := prompts.ForSession(appCfg.Persona)

	asrClient, ttsClient, prober := buildProviders(r, appCfg)
	agentFactory := buildAgentFactory(r, appCfg, systemPrompt)

	denoiser := denoise.New()

	var classifier *knowledge.ClassifyClient
	if audioClassifyURL := env.Str("AUDIOCLASSIFY_URL", ""); audioClassifyURL != "" {
		classifier = knowledge.NewClassifyClient(audioClassifyURL)
	}

	var retriever orchestrator.Knowledge
	if qdrantURL := env.Str("QDRANT_URL", ""); qdrantURL != "" {
		retriever = buildRetriever(qdrantURL)
	}

	traceStore := openTraceStore()
	referenceTranscript := env.Str("REFERENCE_TRANSCRIPT", "")
	timelineStrategy := emotion.Strategy(env.Str("TIMELINE_STRATEGY", string(emotion.StrategyPosition)))
	removeEmoji := env.Bool("REMOVE_EMOJI", false)
	vadCfg := vad.DefaultConfig()

	manager := session.NewManager(session.Config{
		Factory: func(sessionID string) *orchestrator.Orchestrator {
			var tracer *trace.Tracer
			if traceStore != nil {
				_ = traceStore.CreateSession(sessionID, "")
				tracer = trace.NewTracer(traceStore, sessionID)
			}
			return orchestrator.New(orchestrator.Config{
				SessionID:           sessionID,
				ASR:                 asrClient,
				TTS:                 ttsClient,
				Agent:               agentFactory(),
				Knowledge:           retriever,
				SystemPrompt:        systemPrompt,
				ValidEmotions:       defaultValidEmotions,
				Denoiser:            denoiser,
				Tracer:              tracer,
				ReferenceTranscript: referenceTranscript,
				Classifier:          classifier,
				RemoveEmoji:         removeEmoji,
				TimelineStrategy:    timelineStrategy,
			})
		},
		VADConfig: vadCfg,
		Prober:    prober,
		Adapter:   ws.ToWire,
		Cleanup: func(sessionID string) {
			if traceStore != nil {
				_ = traceStore.EndSession(sessionID)
			}
		},
	})

	wsHandler := ws.NewHandler(ws.HandlerConfig{Manager: manager})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("/ws/call", wsHandler)
	registerTraceRoutes(mux, traceStore)

	port := env.Str("GATEWAY_PORT", "8000")
	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: mux}

	go awaitShutdown(srv, traceStore)

	slog.Info("gateway starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("gateway stopped")
}

func buildRetriever(qdrantURL string) *knowledge.Retriever {
	ollamaURL := env.Str("OLLAMA_URL", "http://localhost:11434")
	embeddingModel := env.Str("EMBEDDING_MODEL", "nomic-embed-text")
	collection := env.Str("RAG_COLLECTION", "knowledge_base")

	return knowledge.NewRetriever(knowledge.RetrieverConfig{
		Embedder:       knowledge.NewEmbeddingClient(ollamaURL, embeddingModel, 10),
		Qdrant:         knowledge.NewQdrantClient(qdrantURL, 10),
		Collection:     collection,
		TopK:           3,
		ScoreThreshold: 0.7,
	})
}

func openTraceStore() *trace.Store {
	postgresURL := env.Str("POSTGRES_URL", "")
	if postgresURL == "" {
		return nil
	}
	store, err := trace.Open(postgresURL)
	if err != nil {
		slog.Error("trace store open failed", "error", err)
		return nil
	}
	slog.Info("tracing enabled", "postgres", postgresURL)
	return store
}

func buildProviders(r *registry.Registry, appCfg *config.AppConfig) (providers.ASR, providers.TTS, vad.Prober) {
	var asrClient providers.ASR
	if frag, ok := appCfg.Fragments["asr"]; ok {
		inst, err := r.Create("asr", frag.Type, frag.Raw, "")
		if err != nil {
			slog.Error("construct asr provider", "error", err)
		} else {
			asrClient, _ = inst.(providers.ASR)
		}
	}

	var ttsClient providers.TTS
	if frag, ok := appCfg.Fragments["tts"]; ok {
		inst, err := r.Create("tts", frag.Type, frag.Raw, "")
		if err != nil {
			slog.Error("construct tts provider", "error", err)
		} else {
			ttsClient, _ = inst.(providers.TTS)
		}
	}

	var prober vad.Prober
	if frag, ok := appCfg.Fragments["vad"]; ok {
		inst, err := r.Create("vad", frag.Type, frag.Raw, "")
		if err != nil {
			slog.Error("construct vad provider", "error", err)
		} else {
			prober, _ = inst.(vad.Prober)
		}
	}

	return asrClient, ttsClient, prober
}

// buildAgentFactory returns a thunk that constructs a fresh providers.LLM
// per session from the configured agent fragment — sessions never share one
// LLM client instance, mirroring the teacher's per-call provider wiring.
func buildAgentFactory(r *registry.Registry, appCfg *config.AppConfig, systemPrompt string) func() providers.LLM {
	frag, ok := appCfg.Fragments["agent"]
	if !ok {
		slog.Warn("no agent configured; sessions will run text-only with no LLM reply")
		return func() providers.LLM { return nil }
	}
	return func() providers.LLM {
		inst, err := r.Create("agent", frag.Type, frag.Raw, systemPrompt)
		if err != nil {
			slog.Error("construct agent provider", "error", err)
			return nil
		}
		agent, _ := inst.(providers.LLM)
		return agent
	}
}

func awaitShutdown(srv *http.Server, traceStore *trace.Store) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if traceStore != nil {
		traceStore.Close()
	}
	srv.Shutdown(ctx)
}
