// Package providers defines the uniform interfaces the Provider Registry
// (internal/registry) constructs and the Conversation Orchestrator consumes,
// one per spec §4.1 category: asr, tts, agent (LLM), vad.
package providers

import "context"

// TokenCallback is invoked once per streamed LLM token, in order.
type TokenCallback func(token string)

// ASR transcribes a finished utterance's PCM samples (16kHz mono float32)
// into text.
type ASR interface {
	Transcribe(ctx context.Context, samples []float32) (string, error)
}

// TTS synthesizes speech audio bytes from text.
type TTS interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// LLM streams a chat completion for one turn, given the user's message, an
// optional RAG context block, and a persona system prompt. onToken fires
// once per streamed delta; the full text is also returned for convenience.
type LLM interface {
	Stream(ctx context.Context, userMessage, ragContext, systemPrompt string, onToken TokenCallback) (string, error)
}
