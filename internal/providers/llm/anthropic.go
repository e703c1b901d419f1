package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/animavtuber/core/internal/metrics"
	"github.com/animavtuber/core/internal/providers"
	"github.com/animavtuber/core/internal/providers/shared"
)

// AnthropicConfig is the anthropic-native engine's provider settings, for
// talking to the Messages API directly rather than through an
// OpenAI-compatible proxy.
type AnthropicConfig struct {
	APIKey    string `json:"api_key"`
	URL       string `json:"url"`
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens,omitempty"`
	PoolSize  int    `json:"pool_size,omitempty"`
}

// Anthropic streams chat completions from the native Anthropic Messages
// API (SSE), adapted from the teacher's internal/pipeline AnthropicLLMClient.
type Anthropic struct {
	apiKey       string
	url          string
	model        string
	systemPrompt string
	maxTokens    int
	client       *http.Client
}

// NewAnthropic creates an Anthropic client from validated settings and the
// persona system prompt.
func NewAnthropic(settings map[string]any, systemPrompt string) (any, error) {
	apiKey, _ := settings["api_key"].(string)
	url, _ := settings["url"].(string)
	model, _ := settings["model"].(string)
	if apiKey == "" || url == "" || model == "" {
		return nil, fmt.Errorf("llm/anthropic: missing api_key, url, or model")
	}
	maxTokens := 512
	if v, ok := settings["max_tokens"].(float64); ok && v > 0 {
		maxTokens = int(v)
	}
	poolSize := 4
	if v, ok := settings["pool_size"].(float64); ok && v > 0 {
		poolSize = int(v)
	}
	return &Anthropic{
		apiKey:       apiKey,
		url:          url,
		model:        model,
		systemPrompt: systemPrompt,
		maxTokens:    maxTokens,
		client:       shared.NewPooledHTTPClient(poolSize, 120*time.Second),
	}, nil
}

// Stream implements providers.LLM against the native Messages streaming
// endpoint.
func (c *Anthropic) Stream(ctx context.Context, userMessage, ragContext, systemPrompt string, onToken providers.TokenCallback) (string, error) {
	start := time.Now()

	system := c.systemPrompt
	if systemPrompt != "" {
		system = systemPrompt
	}
	if ragContext != "" {
		system += "\n\nRelevant context from knowledge base:\n" + ragContext
	}

	body, err := json.Marshal(anthropicRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Stream:    true,
		System:    system,
		Messages:  []anthropicMessage{{Role: "user", Content: userMessage}},
	})
	if err != nil {
		return "", fmt.Errorf("llm/anthropic: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm/anthropic: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.Errors.WithLabelValues("llm", "http").Inc()
		return "", fmt.Errorf("llm/anthropic: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.Errors.WithLabelValues("llm", "status").Inc()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("llm/anthropic: status %d: %s", resp.StatusCode, errBody)
	}

	text := consumeAnthropicStream(resp.Body, onToken)
	metrics.StageDuration.WithLabelValues("llm").Observe(time.Since(start).Seconds())
	return text, nil
}

func consumeAnthropicStream(body io.Reader, onToken providers.TokenCallback) string {
	var text strings.Builder
	scanner := bufio.NewScanner(body)
	var eventType string

	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "event: ") {
			eventType = strings.TrimPrefix(line, "event: ")
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		if eventType == "message_stop" {
			return text.String()
		}
		if eventType != "content_block_delta" {
			continue
		}

		var delta anthropicDeltaEvent
		if json.Unmarshal([]byte(data), &delta) != nil {
			continue
		}
		if delta.Delta.Type == "thinking_delta" || delta.Delta.Text == "" {
			continue
		}
		if onToken != nil {
			onToken(delta.Delta.Text)
		}
		text.WriteString(delta.Delta.Text)
	}

	return text.String()
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Stream    bool               `json:"stream"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicDeltaEvent struct {
	Delta anthropicDelta `json:"delta"`
}

type anthropicDelta struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Thinking string `json:"thinking,omitempty"`
}
