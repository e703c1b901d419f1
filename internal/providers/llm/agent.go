package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/animavtuber/core/internal/metrics"
	"github.com/animavtuber/core/internal/providers"
	"github.com/nlpodyssey/openai-agents-go/agents"
	"github.com/nlpodyssey/openai-agents-go/modelsettings"
	"github.com/openai/openai-go/v2/packages/param"
)

// AgentConfig is the settings shape for any engine routed through the
// openai-agents-go SDK (openai, anthropic, or an OpenAI-compatible proxy).
type AgentConfig struct {
	BaseURL      string `json:"base_url"`
	APIKey       string `json:"api_key"`
	Model        string `json:"model"`
	UseResponses bool   `json:"use_responses,omitempty"`
	MaxTokens    int    `json:"max_tokens,omitempty"`
}

// Agent streams a chat completion through an OpenAI-compatible Responses or
// Completions API via the agents SDK.
type Agent struct {
	provider     agents.ModelProvider
	model        string
	systemPrompt string
	maxTokens    int
}

// NewAgent creates an Agent client from validated settings and the persona
// system prompt resolved by the registry.
func NewAgent(settings map[string]any, systemPrompt string) (any, error) {
	baseURL, _ := settings["base_url"].(string)
	apiKey, _ := settings["api_key"].(string)
	model, _ := settings["model"].(string)
	if baseURL == "" || model == "" {
		return nil, fmt.Errorf("llm/agent: missing base_url or model")
	}
	useResponses := false
	if v, ok := settings["use_responses"].(bool); ok {
		useResponses = v
	}
	maxTokens := 512
	if v, ok := settings["max_tokens"].(float64); ok && v > 0 {
		maxTokens = int(v)
	}

	provider := agents.NewOpenAIProvider(agents.OpenAIProviderParams{
		BaseURL:      param.NewOpt(baseURL),
		APIKey:       param.NewOpt(apiKey),
		UseResponses: param.NewOpt(useResponses),
	})

	return &Agent{
		provider:     provider,
		model:        model,
		systemPrompt: systemPrompt,
		maxTokens:    maxTokens,
	}, nil
}

// Stream implements providers.LLM, running a single-turn agent and
// forwarding text deltas as they arrive.
func (a *Agent) Stream(ctx context.Context, userMessage, ragContext, systemPrompt string, onToken providers.TokenCallback) (string, error) {
	sysPrompt := a.systemPrompt
	if systemPrompt != "" {
		sysPrompt = systemPrompt
	}
	if ragContext != "" {
		sysPrompt = sysPrompt + "\n\nRelevant context from knowledge base:\n" + ragContext
	}

	agent := agents.New("assistant").
		WithInstructions(sysPrompt).
		WithModel(a.model).
		WithModelSettings(modelsettings.ModelSettings{
			MaxTokens: param.NewOpt(int64(a.maxTokens)),
		})

	runner := agents.Runner{Config: agents.RunConfig{
		ModelProvider:   a.provider,
		MaxTurns:        1,
		TracingDisabled: true,
	}}

	start := time.Now()
	events, errCh, err := runner.RunStreamedChan(ctx, agent, userMessage)
	if err != nil {
		return "", fmt.Errorf("llm/agent: stream start: %w", err)
	}

	var textBuf strings.Builder
	for ev := range events {
		raw, ok := ev.(agents.RawResponsesStreamEvent)
		if !ok || raw.Data.Type != "response.output_text.delta" {
			continue
		}
		if onToken != nil {
			onToken(raw.Data.Delta)
		}
		textBuf.WriteString(raw.Data.Delta)
	}

	if streamErr := <-errCh; streamErr != nil {
		metrics.Errors.WithLabelValues("llm", "stream").Inc()
		return "", fmt.Errorf("llm/agent: stream: %w", streamErr)
	}

	metrics.StageDuration.WithLabelValues("llm").Observe(time.Since(start).Seconds())
	return textBuf.String(), nil
}
