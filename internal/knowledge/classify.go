package knowledge

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// ClassifyResult holds a classification response from the audio-scene/
// emotion sidecar, used as an optional metadata hint alongside the turn's
// own [emotion] tags, not as a replacement for them.
type ClassifyResult struct {
	Label      string             `json:"label"`
	Confidence float64            `json:"confidence"`
	Scores     map[string]float64 `json:"scores"`
}

// ClassifyClient calls an audio-classification sidecar. Adapted from the
// teacher's internal/pipeline/classify.go.
type ClassifyClient struct {
	url    string
	client *http.Client
}

// NewClassifyClient creates a client for the classification sidecar.
func NewClassifyClient(url string) *ClassifyClient {
	return &ClassifyClient{url: url, client: &http.Client{Timeout: 5 * time.Second}}
}

// ClassifyEmotion sends raw float32 samples to the sidecar's /emotion
// endpoint and returns its best guess at the speaker's emotional tone.
func (c *ClassifyClient) ClassifyEmotion(ctx context.Context, samples []float32) (*ClassifyResult, error) {
	buf := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/emotion", bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("knowledge: classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("knowledge: classify http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("knowledge: classify status %d: %s", resp.StatusCode, string(body))
	}

	var result ClassifyResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("knowledge: classify decode: %w", err)
	}
	return &result, nil
}
