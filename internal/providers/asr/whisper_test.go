package asr

import (
	"context"
	"encoding/json"
	"mime"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNew_MissingURL(t *testing.T) {
	_, err := New(map[string]any{}, "")
	if err == nil {
		t.Fatal("expected error for missing url")
	}
}

func TestNew_DefaultPoolSize(t *testing.T) {
	inst, err := New(map[string]any{"url": "http://localhost:9000"}, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w, ok := inst.(*Whisper)
	if !ok {
		t.Fatalf("got %T, want *Whisper", inst)
	}
	if w.url != "http://localhost:9000" {
		t.Errorf("url = %q", w.url)
	}
	if tr, ok := w.client.Transport.(*http.Transport); !ok || tr.MaxIdleConns != 8 {
		t.Errorf("transport = %+v, want *http.Transport with MaxIdleConns 8", w.client.Transport)
	}
}

func TestTranscribe_SendsMultipartAndParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inference" {
			t.Errorf("path = %q, want /inference", r.URL.Path)
		}
		mr, err := r.MultipartReader()
		if err != nil {
			t.Fatalf("multipart reader: %v", err)
		}
		part, err := mr.NextPart()
		if err != nil {
			t.Fatalf("next part: %v", err)
		}
		if part.FormName() != "file" {
			t.Errorf("form name = %q, want file", part.FormName())
		}
		json.NewEncoder(w).Encode(map[string]string{"text": "hello world"})
	}))
	defer srv.Close()

	inst, err := New(map[string]any{"url": srv.URL}, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w := inst.(*Whisper)

	text, err := w.Transcribe(context.Background(), []float32{0, 0.1, -0.1, 0.2})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "hello world" {
		t.Errorf("text = %q, want %q", text, "hello world")
	}
}

func TestTranscribe_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	inst, _ := New(map[string]any{"url": srv.URL}, "")
	w := inst.(*Whisper)

	_, err := w.Transcribe(context.Background(), []float32{0, 0.1})
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestBuildMultipartAudio(t *testing.T) {
	body, contentType, err := buildMultipartAudio([]float32{0, 0.5, -0.5})
	if err != nil {
		t.Fatalf("buildMultipartAudio: %v", err)
	}
	if body.Len() == 0 {
		t.Error("expected non-empty body")
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		t.Fatalf("parse media type: %v", err)
	}
	if params["boundary"] == "" {
		t.Error("expected a multipart boundary")
	}
}
