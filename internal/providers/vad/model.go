// Package vad implements the vad provider category: an HTTP-backed speech
// probability model satisfying internal/vad.Prober, following the same
// pooled-HTTP-client shape as the asr and tts providers. When no model_url
// is configured, the registry should not construct this provider at all and
// the session manager is given a nil Prober, which internal/vad.Machine degrades
// to its dB-only fallback.
package vad

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/animavtuber/core/internal/audio"
	"github.com/animavtuber/core/internal/providers/shared"
)

// Config is the model provider's settings.
type Config struct {
	ModelURL string `json:"model_url"`
	PoolSize int    `json:"pool_size,omitempty"`
}

// Model calls an external speech-probability model server over HTTP.
type Model struct {
	url    string
	client *http.Client
}

// New creates a Model prober from validated settings.
func New(settings map[string]any, _ string) (any, error) {
	url, _ := settings["model_url"].(string)
	if url == "" {
		return nil, fmt.Errorf("vad/model: missing model_url")
	}
	poolSize := 4
	if v, ok := settings["pool_size"].(float64); ok && v > 0 {
		poolSize = int(v)
	}
	return &Model{
		url:    url,
		client: shared.NewPooledHTTPClient(poolSize, 2*time.Second),
	}, nil
}

// Probability implements internal/vad.Prober.
func (m *Model) Probability(window []float32) (float64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	wavData := audio.SamplesToWAV(window, 16000)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url+"/probability", bytes.NewReader(wavData))
	if err != nil {
		return 0, fmt.Errorf("vad/model: create request: %w", err)
	}
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := m.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("vad/model: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("vad/model: status %d", resp.StatusCode)
	}

	var out struct {
		Probability float64 `json:"probability"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("vad/model: decode response: %w", err)
	}
	return out.Probability, nil
}
