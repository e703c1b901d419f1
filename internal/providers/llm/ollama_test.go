package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewOllama_MissingURL(t *testing.T) {
	_, err := NewOllama(map[string]any{}, "you are a helper")
	if err == nil {
		t.Fatal("expected error for missing url")
	}
}

func TestNewOllama_Defaults(t *testing.T) {
	inst, err := NewOllama(map[string]any{"url": "http://localhost:11434", "model": "llama3"}, "sys")
	if err != nil {
		t.Fatalf("NewOllama: %v", err)
	}
	o := inst.(*Ollama)
	if o.maxTokens != 512 {
		t.Errorf("maxTokens = %d, want 512", o.maxTokens)
	}
	if o.systemPrompt != "sys" {
		t.Errorf("systemPrompt = %q", o.systemPrompt)
	}
}

func TestStream_ConsumesChunksAndCallsOnToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req ollamaRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Messages[len(req.Messages)-1].Content != "hello" {
			t.Errorf("last message = %q, want hello", req.Messages[len(req.Messages)-1].Content)
		}

		chunks := []ollamaStreamChunk{
			{Message: ollamaMessage{Role: "assistant", Content: "hi "}},
			{Message: ollamaMessage{Role: "assistant", Content: "there"}},
			{Done: true},
		}
		for _, c := range chunks {
			b, _ := json.Marshal(c)
			w.Write(b)
			w.Write([]byte("\n"))
		}
	}))
	defer srv.Close()

	inst, _ := NewOllama(map[string]any{"url": srv.URL, "model": "llama3"}, "sys")
	o := inst.(*Ollama)

	var tokens []string
	text, err := o.Stream(context.Background(), "hello", "", "", func(tok string) {
		tokens = append(tokens, tok)
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if text != "hi there" {
		t.Errorf("text = %q, want %q", text, "hi there")
	}
	if strings.Join(tokens, "") != "hi there" {
		t.Errorf("tokens joined = %q", strings.Join(tokens, ""))
	}
}

func TestStream_RAGContextIncludedAsSystemMessage(t *testing.T) {
	var gotMessages []ollamaMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		json.NewDecoder(r.Body).Decode(&req)
		gotMessages = req.Messages
		b, _ := json.Marshal(ollamaStreamChunk{Done: true})
		w.Write(b)
	}))
	defer srv.Close()

	inst, _ := NewOllama(map[string]any{"url": srv.URL, "model": "llama3"}, "sys")
	o := inst.(*Ollama)

	o.Stream(context.Background(), "hello", "the sky is blue", "", nil)

	foundRAG := false
	for _, m := range gotMessages {
		if strings.Contains(m.Content, "the sky is blue") {
			foundRAG = true
		}
	}
	if !foundRAG {
		t.Error("expected rag context to appear in a system message")
	}
}

func TestStream_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	inst, _ := NewOllama(map[string]any{"url": srv.URL, "model": "llama3"}, "sys")
	o := inst.(*Ollama)

	_, err := o.Stream(context.Background(), "hi", "", "", nil)
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
