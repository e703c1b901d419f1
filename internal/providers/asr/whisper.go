// Package asr implements the asr provider category against a whisper.cpp
// HTTP server, adapted from the teacher's internal/pipeline ASRClient.
package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/animavtuber/core/internal/audio"
	"github.com/animavtuber/core/internal/metrics"
	"github.com/animavtuber/core/internal/providers/shared"
)

// Config is whisper's provider settings, reflected into a JSON schema by
// the registry.
type Config struct {
	URL      string `json:"url"`
	PoolSize int    `json:"pool_size,omitempty"`
}

// Whisper sends finished utterances to whisper.cpp's /inference endpoint.
type Whisper struct {
	url    string
	client *http.Client
}

// New creates a Whisper client from validated settings. Matches the
// registry.Constructor signature.
func New(settings map[string]any, _ string) (any, error) {
	url, _ := settings["url"].(string)
	if url == "" {
		return nil, fmt.Errorf("asr/whisper: missing url")
	}
	poolSize := 8
	if v, ok := settings["pool_size"].(float64); ok && v > 0 {
		poolSize = int(v)
	}
	return &Whisper{
		url:    url,
		client: shared.NewPooledHTTPClient(poolSize, 30*time.Second),
	}, nil
}

// Transcribe implements providers.ASR.
func (w *Whisper) Transcribe(ctx context.Context, samples []float32) (string, error) {
	start := time.Now()

	body, contentType, err := buildMultipartAudio(samples)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url+"/inference", body)
	if err != nil {
		return "", fmt.Errorf("asr: create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := w.client.Do(req)
	if err != nil {
		metrics.Errors.WithLabelValues("asr", "http").Inc()
		return "", fmt.Errorf("asr: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		metrics.Errors.WithLabelValues("asr", "status").Inc()
		return "", fmt.Errorf("asr: status %d: %s", resp.StatusCode, string(respBody))
	}

	var whisperResp struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&whisperResp); err != nil {
		return "", fmt.Errorf("asr: decode response: %w", err)
	}

	metrics.StageDuration.WithLabelValues("asr").Observe(time.Since(start).Seconds())
	return whisperResp.Text, nil
}

func buildMultipartAudio(samples []float32) (*bytes.Buffer, string, error) {
	wavData := audio.SamplesToWAV(samples, 16000)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, "", fmt.Errorf("asr: create form file: %w", err)
	}
	if _, err := part.Write(wavData); err != nil {
		return nil, "", fmt.Errorf("asr: write wav data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("asr: close writer: %w", err)
	}

	return &body, writer.FormDataContentType(), nil
}
