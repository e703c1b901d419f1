package vad

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNew_MissingModelURL(t *testing.T) {
	_, err := New(map[string]any{}, "")
	if err == nil {
		t.Fatal("expected error for missing model_url")
	}
}

func TestProbability_ParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/probability" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("Content-Type") != "audio/wav" {
			t.Errorf("content-type = %q", r.Header.Get("Content-Type"))
		}
		json.NewEncoder(w).Encode(map[string]float64{"probability": 0.87})
	}))
	defer srv.Close()

	inst, err := New(map[string]any{"model_url": srv.URL}, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m := inst.(*Model)

	p, err := m.Probability(make([]float32, 320))
	if err != nil {
		t.Fatalf("Probability: %v", err)
	}
	if p != 0.87 {
		t.Errorf("p = %v, want 0.87", p)
	}
}

func TestProbability_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	inst, _ := New(map[string]any{"model_url": srv.URL}, "")
	m := inst.(*Model)

	_, err := m.Probability(make([]float32, 320))
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
