package llm

import "testing"

func TestNewAgent_MissingBaseURLOrModel(t *testing.T) {
	if _, err := NewAgent(map[string]any{}, "sys"); err == nil {
		t.Fatal("expected error for missing base_url and model")
	}
	if _, err := NewAgent(map[string]any{"base_url": "http://x"}, "sys"); err == nil {
		t.Fatal("expected error for missing model")
	}
}

func TestNewAgent_Defaults(t *testing.T) {
	inst, err := NewAgent(map[string]any{
		"base_url": "http://localhost:8080/v1",
		"model":    "gpt-4o-mini",
	}, "sys")
	if err != nil {
		t.Fatalf("NewAgent: %v", err)
	}
	a := inst.(*Agent)
	if a.maxTokens != 512 {
		t.Errorf("maxTokens = %d, want 512", a.maxTokens)
	}
	if a.model != "gpt-4o-mini" {
		t.Errorf("model = %q", a.model)
	}
	if a.systemPrompt != "sys" {
		t.Errorf("systemPrompt = %q", a.systemPrompt)
	}
}

func TestNewAgent_MaxTokensOverride(t *testing.T) {
	inst, err := NewAgent(map[string]any{
		"base_url":   "http://localhost:8080/v1",
		"model":      "gpt-4o-mini",
		"max_tokens": float64(1024),
	}, "sys")
	if err != nil {
		t.Fatalf("NewAgent: %v", err)
	}
	a := inst.(*Agent)
	if a.maxTokens != 1024 {
		t.Errorf("maxTokens = %d, want 1024", a.maxTokens)
	}
}
