package vad

import "time"

// Config parameterizes the voice-activity state machine. Defaults mirror
// the reference Silero-based implementation: a 512-sample window at
// 16 kHz (~32ms), a five-window trailing smoothing mean, three hits to
// confirm speech-start, twenty-four misses (~0.8s) to move from ACTIVE to
// INACTIVE, and twenty-four more to confirm speech-end.
type Config struct {
	SampleRate int
	// WindowSamples is the fixed chunk size consumed per Process call.
	WindowSamples int
	ProbThreshold float64
	// DBThreshold is a dBFS floor; windows at or above it (and with
	// sufficient smoothed probability) count as speech.
	DBThreshold     float64
	RequiredHits    int
	RequiredMisses  int
	SmoothingWindow int
	// PreRollWindows bounds the IDLE-state FIFO of window-sized PCM slices
	// prepended to the eventual speech-end payload.
	PreRollWindows int
	// MinUtteranceBytes is the minimum accumulated PCM length (in bytes of
	// int16 samples) required to emit speech-end; shorter utterances are
	// discarded silently. The two reference implementations disagreed
	// (1024 vs 8000); this adopts the larger value per spec.
	MinUtteranceBytes int
	// Timeout forces a synthetic speech-end if ACTIVE/INACTIVE persists
	// this long without a natural speech-end.
	Timeout time.Duration
}

// DefaultConfig returns the reference parameterization.
func DefaultConfig() Config {
	return Config{
		SampleRate:        16000,
		WindowSamples:     512,
		ProbThreshold:     0.4,
		DBThreshold:       -42,
		RequiredHits:      3,
		RequiredMisses:    24,
		SmoothingWindow:   5,
		PreRollWindows:    20,
		MinUtteranceBytes: 8000,
		Timeout:           15 * time.Second,
	}
}
