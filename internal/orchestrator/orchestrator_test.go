package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/animavtuber/core/internal/event"
	"github.com/animavtuber/core/internal/eventbus"
	"github.com/animavtuber/core/internal/providers"
)

type fakeAgent struct {
	response    string
	err         error
	lastMessage string
}

func (f *fakeAgent) Stream(ctx context.Context, userMessage, ragContext, systemPrompt string, onToken providers.TokenCallback) (string, error) {
	f.lastMessage = userMessage
	if f.err != nil {
		return "", f.err
	}
	if onToken != nil {
		onToken(f.response)
	}
	return f.response, nil
}

type fakeTTS struct{ audio []byte }

func (f *fakeTTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return f.audio, nil
}

type fakeASR struct {
	transcript string
	err        error
}

func (f *fakeASR) Transcribe(ctx context.Context, samples []float32) (string, error) {
	return f.transcript, f.err
}

func TestProcessInput_TextTurnEmitsExpressionChoreography(t *testing.T) {
	t.Parallel()
	o := New(Config{SessionID: "s1", Agent: &fakeAgent{response: "hello there"}})

	var expressions []string
	o.Register(event.TypeExpression, func(ctx context.Context, evt event.Out) error {
		expressions = append(expressions, evt.Data.(string))
		return nil
	}, eventbus.PriorityNormal)
	o.Start()

	result := o.ProcessInput(context.Background(), "hi", nil, "User")
	if !result.Success {
		t.Fatalf("ProcessInput failed: %v", result.Error)
	}
	want := []string{"thinking", "speaking", "idle"}
	if len(expressions) != len(want) {
		t.Fatalf("expressions = %v, want %v", expressions, want)
	}
	for i, e := range want {
		if expressions[i] != e {
			t.Errorf("expressions[%d] = %q, want %q", i, expressions[i], e)
		}
	}
}

func TestProcessInput_NoAgentIsAnError(t *testing.T) {
	t.Parallel()
	o := New(Config{SessionID: "s2"})
	o.Start()
	result := o.ProcessInput(context.Background(), "hi", nil, "User")
	if result.Success {
		t.Fatal("expected failure with no agent configured")
	}
}

func TestProcessInput_AudioWithoutASRIsAnError(t *testing.T) {
	t.Parallel()
	o := New(Config{SessionID: "s3", Agent: &fakeAgent{response: "ok"}})
	o.Start()
	result := o.ProcessInput(context.Background(), "", []float32{0.1, 0.2}, "User")
	if result.Success {
		t.Fatal("expected failure with no ASR configured for audio input")
	}
}

func TestInterrupt_EmitsSurprisedAndMarksInterrupted(t *testing.T) {
	t.Parallel()
	o := New(Config{SessionID: "s4", Agent: &fakeAgent{response: "ok"}})

	var lastExpression string
	o.Register(event.TypeExpression, func(ctx context.Context, evt event.Out) error {
		lastExpression = evt.Data.(string)
		return nil
	}, eventbus.PriorityNormal)
	o.Start()

	o.Interrupt()
	if lastExpression != "surprised" {
		t.Errorf("lastExpression = %q, want surprised", lastExpression)
	}
	if !o.interrupted.Load() {
		t.Error("interrupted flag should be set")
	}
}

func TestAgentStreamError_PropagatesAsFailure(t *testing.T) {
	t.Parallel()
	o := New(Config{SessionID: "s5", Agent: &fakeAgent{err: errors.New("boom")}})
	o.Start()
	result := o.ProcessInput(context.Background(), "hi", nil, "User")
	if result.Success {
		t.Fatal("expected failure when agent stream errors")
	}
}

func TestProcessInput_AudioTurnEmitsTranscript(t *testing.T) {
	t.Parallel()
	agent := &fakeAgent{response: "ok"}
	o := New(Config{SessionID: "s7", Agent: agent, ASR: &fakeASR{transcript: "  hello   there  "}})

	var transcripts []string
	o.Register(event.TypeTranscript, func(ctx context.Context, evt event.Out) error {
		transcripts = append(transcripts, evt.Data.(string))
		return nil
	}, eventbus.PriorityNormal)
	o.Start()

	result := o.ProcessInput(context.Background(), "", []float32{0.1, 0.2}, "User")
	if !result.Success {
		t.Fatalf("ProcessInput failed: %v", result.Error)
	}
	if len(transcripts) != 1 || transcripts[0] != "  hello   there  " {
		t.Fatalf("transcripts = %v, want the raw ASR transcript", transcripts)
	}
	if agent.lastMessage != "hello there" {
		t.Errorf("agent received %q, want cleaned text", agent.lastMessage)
	}
}

func TestProcessInput_CollapsesWhitespaceInTypedText(t *testing.T) {
	t.Parallel()
	agent := &fakeAgent{response: "ok"}
	o := New(Config{SessionID: "s8", Agent: agent})
	o.Start()

	result := o.ProcessInput(context.Background(), "  hi   there  \n", nil, "User")
	if !result.Success {
		t.Fatalf("ProcessInput failed: %v", result.Error)
	}
	if agent.lastMessage != "hi there" {
		t.Errorf("agent received %q, want %q", agent.lastMessage, "hi there")
	}
}

func TestStartIsIdempotent(t *testing.T) {
	t.Parallel()
	o := New(Config{SessionID: "s6"})
	o.Start()
	o.Start()
	if !o.IsRunning() {
		t.Fatal("orchestrator should still be running after a second Start")
	}
}
