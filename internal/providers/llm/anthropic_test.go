package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewAnthropic_MissingFields(t *testing.T) {
	_, err := NewAnthropic(map[string]any{}, "sys")
	if err == nil {
		t.Fatal("expected error for missing fields")
	}
	_, err = NewAnthropic(map[string]any{"api_key": "key", "url": "http://x"}, "sys")
	if err == nil {
		t.Fatal("expected error for missing model")
	}
}

func TestNewAnthropic_OK(t *testing.T) {
	inst, err := NewAnthropic(map[string]any{
		"api_key": "key", "url": "http://localhost", "model": "claude-3",
	}, "sys")
	if err != nil {
		t.Fatalf("NewAnthropic: %v", err)
	}
	a := inst.(*Anthropic)
	if a.maxTokens != 512 {
		t.Errorf("maxTokens = %d, want 512", a.maxTokens)
	}
}

const sseBody = "event: content_block_delta\n" +
	"data: {\"delta\":{\"type\":\"text_delta\",\"text\":\"hi \"}}\n" +
	"event: content_block_delta\n" +
	"data: {\"delta\":{\"type\":\"text_delta\",\"text\":\"there\"}}\n" +
	"event: message_stop\n" +
	"data: {}\n"

func TestStream_ConsumesSSEAndCallsOnToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "secret" {
			t.Errorf("x-api-key = %q", r.Header.Get("x-api-key"))
		}
		w.Write([]byte(sseBody))
	}))
	defer srv.Close()

	inst, _ := NewAnthropic(map[string]any{
		"api_key": "secret", "url": srv.URL, "model": "claude-3",
	}, "sys")
	a := inst.(*Anthropic)

	var tokens []string
	text, err := a.Stream(context.Background(), "hello", "", "", func(tok string) {
		tokens = append(tokens, tok)
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if text != "hi there" {
		t.Errorf("text = %q, want %q", text, "hi there")
	}
	if strings.Join(tokens, "") != "hi there" {
		t.Errorf("tokens = %v", tokens)
	}
}

func TestStream_SkipsThinkingDeltas(t *testing.T) {
	body := "event: content_block_delta\n" +
		"data: {\"delta\":{\"type\":\"thinking_delta\",\"thinking\":\"pondering\"}}\n" +
		"event: content_block_delta\n" +
		"data: {\"delta\":{\"type\":\"text_delta\",\"text\":\"answer\"}}\n" +
		"event: message_stop\n" +
		"data: {}\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	inst, _ := NewAnthropic(map[string]any{
		"api_key": "secret", "url": srv.URL, "model": "claude-3",
	}, "sys")
	a := inst.(*Anthropic)

	text, err := a.Stream(context.Background(), "hi", "", "", nil)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if text != "answer" {
		t.Errorf("text = %q, want %q", text, "answer")
	}
}

func TestAnthropicStream_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	inst, _ := NewAnthropic(map[string]any{
		"api_key": "bad", "url": srv.URL, "model": "claude-3",
	}, "sys")
	a := inst.(*Anthropic)

	_, err := a.Stream(context.Background(), "hi", "", "", nil)
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
}
