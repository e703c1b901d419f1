// Package llm implements the agent provider category: one backend per
// LLM engine, adapted from the teacher's internal/pipeline OllamaLLMClient
// and AgentLLM.
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

// OllamaConfig is the ollama engine's provider settings.
type OllamaConfig struct {
	URL       string `json:"url"`
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens,omitempty"`
	PoolSize  int    `json:"pool_size,omitempty"`
}

// Ollama streams chat completions from a local Ollama server.
type Ollama struct {
	url          string
	model        string
	systemPrompt string
	maxTokens    int
	client       *http.Client
}

// NewOllama creates an Ollama client from validated settings and the
// persona system prompt resolved by the registry.
func NewOllama(settings map[string]any, systemPrompt string) (any, error) {
	url, _ := settings["url"].(string)
	if url == "" {
		return nil, fmt.Errorf("llm/ollama: missing url")
	}
	model, _ := settings["model"].(string)
	maxTokens := 512
	if v, ok := settings["max_tokens"].(float64); ok && v > 0 {
		maxTokens = int(v)
	}
	poolSize := 4
	if v, ok := settings["pool_size"].(float64); ok && v > 0 {
		poolSize = int(v)
	}
	return &Ollama{
		url:          url,
		model:        model,
		systemPrompt: systemPrompt,
		maxTokens:    maxTokens,
		client:       shared.NewPooledHTTPClient(poolSize, 60*time.Second),
	}, nil
}

// Stream implements providers.LLM.
func (c *Ollama) Stream(ctx context.Context, userMessage, ragContext, systemPrompt string, onToken providers.TokenCallback) (string, error) {
	start := time.Now()

	resp, err := c.postChatRequest(ctx, userMessage, ragContext, systemPrompt)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.Errors.WithLabelValues("llm", "status").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("llm/ollama: status %d: %s", resp.StatusCode, body)
	}

	text := consumeStream(resp, onToken)
	metrics.StageDuration.WithLabelValues("llm").Observe(time.Since(start).Seconds())
	return text, nil
}

func (c *Ollama) postChatRequest(ctx context.Context, userMessage, ragContext, systemPrompt string) (*http.Response, error) {
	sysPrompt := c.systemPrompt
	if systemPrompt != "" {
		sysPrompt = systemPrompt
	}
	messages := []ollamaMessage{{Role: "system", Content: sysPrompt}}
	if ragContext != "" {
		messages = append(messages, ollamaMessage{Role: "system", Content: "Relevant context from knowledge base:\n" + ragContext})
	}
	messages = append(messages, ollamaMessage{Role: "user", Content: userMessage})

	reqBody := ollamaRequest{
		Model:    c.model,
		Stream:   true,
		Options:  ollamaOptions{NumPredict: c.maxTokens},
		Messages: messages,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("llm/ollama: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/api/chat", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("llm/ollama: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.Errors.WithLabelValues("llm", "http").Inc()
		return nil, fmt.Errorf("llm/ollama: request: %w", err)
	}
	return resp, nil
}

func consumeStream(resp *http.Response, onToken providers.TokenCallback) string {
	var text strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		var chunk ollamaStreamChunk
		if json.Unmarshal(scanner.Bytes(), &chunk) != nil {
			continue
		}
		if chunk.Done {
			break
		}
		if chunk.Message.Content == "" {
			continue
		}
		if onToken != nil {
			onToken(chunk.Message.Content)
		}
		text.WriteString(chunk.Message.Content)
	}
	return text.String()
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Stream   bool            `json:"stream"`
	Messages []ollamaMessage `json:"messages"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	NumPredict int `json:"num_predict"`
}

type ollamaStreamChunk struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}
