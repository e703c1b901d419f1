// Package tts implements the tts provider category against a Piper HTTP
// server, adapted from the teacher's internal/pipeline TTSClient.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/animavtuber/core/internal/metrics"
	"github.com/animavtuber/core/internal/providers/shared"
)

// Config is piper's provider settings.
type Config struct {
	URL      string `json:"url"`
	Voice    string `json:"voice,omitempty"`
	PoolSize int    `json:"pool_size,omitempty"`
}

var voiceModels = map[string]string{
	"fast":    "en_US-lessac-low",
	"quality": "en_US-lessac-medium",
}

// Piper synthesizes speech by calling a Piper HTTP endpoint.
type Piper struct {
	url    string
	voice  string
	client *http.Client
}

// New creates a Piper client from validated settings.
func New(settings map[string]any, _ string) (any, error) {
	url, _ := settings["url"].(string)
	if url == "" {
		return nil, fmt.Errorf("tts/piper: missing url")
	}
	voice, _ := settings["voice"].(string)
	if voice == "" {
		voice = voiceModels["fast"]
	} else if mapped, ok := voiceModels[voice]; ok {
		voice = mapped
	}
	poolSize := 8
	if v, ok := settings["pool_size"].(float64); ok && v > 0 {
		poolSize = int(v)
	}
	return &Piper{
		url:    url,
		voice:  voice,
		client: shared.NewPooledHTTPClient(poolSize, 30*time.Second),
	}, nil
}

// Synthesize implements providers.TTS.
func (p *Piper) Synthesize(ctx context.Context, text string) ([]byte, error) {
	start := time.Now()

	reqBody, err := json.Marshal(struct {
		Text  string `json:"text"`
		Voice string `json:"voice"`
	}{Text: text, Voice: p.voice})
	if err != nil {
		return nil, fmt.Errorf("tts: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url+"/synthesize", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("tts: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		metrics.Errors.WithLabelValues("tts", "http").Inc()
		return nil, fmt.Errorf("tts: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.Errors.WithLabelValues("tts", "status").Inc()
		return nil, fmt.Errorf("tts: status %d", resp.StatusCode)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tts: read response: %w", err)
	}

	metrics.StageDuration.WithLabelValues("tts").Observe(time.Since(start).Seconds())
	return audioData, nil
}
