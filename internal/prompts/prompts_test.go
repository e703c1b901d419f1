package prompts

import (
	"strings"
	"testing"
)

func TestForSession_UsesGivenPrompt(t *testing.T) {
	if got := ForSession("be a pirate"); got != "be a pirate" {
		t.Errorf("got %q, want %q", got, "be a pirate")
	}
}

func TestForSession_FallsBackToDefault(t *testing.T) {
	if got := ForSession(""); got != DefaultSystem {
		t.Errorf("got %q, want default", got)
	}
}

func TestRAGContext_WrapsContext(t *testing.T) {
	got := RAGContext("the sky is blue")
	if !strings.Contains(got, "the sky is blue") {
		t.Errorf("got %q, missing context", got)
	}
}
