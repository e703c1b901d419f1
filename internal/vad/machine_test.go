package vad

import (
	"math"
	"testing"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.WindowSamples = 16
	cfg.RequiredHits = 2
	cfg.RequiredMisses = 3
	cfg.SmoothingWindow = 1
	cfg.PreRollWindows = 2
	cfg.MinUtteranceBytes = 10
	return cfg
}

// loudWindow returns a window whose RMS clears the default dB threshold.
func loudWindow(n int) []float32 {
	w := make([]float32, n)
	for i := range w {
		if i%2 == 0 {
			w[i] = 0.9
		} else {
			w[i] = -0.9
		}
	}
	return w
}

func silentWindow(n int) []float32 {
	return make([]float32, n)
}

func TestMachine_IdleRemainsIdleOnSilence(t *testing.T) {
	t.Parallel()
	m := New(testConfig(), nil)
	for range 10 {
		results := m.ProcessChunk(silentWindow(16))
		if len(results) != 0 {
			t.Fatalf("unexpected result on silence: %+v", results)
		}
	}
	if m.State() != StateIdle {
		t.Errorf("state = %v, want idle", m.State())
	}
}

func TestMachine_SpeechStartAfterRequiredHits(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	m := New(cfg, nil)

	var allResults []Result
	for range cfg.RequiredHits {
		allResults = append(allResults, m.ProcessChunk(loudWindow(cfg.WindowSamples))...)
	}

	if len(allResults) != 1 || !allResults[0].SpeechStart {
		t.Fatalf("results = %+v, want single speech-start", allResults)
	}
	if m.State() != StateActive {
		t.Errorf("state = %v, want active", m.State())
	}
}

func TestMachine_FullUtteranceLifecycle(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	m := New(cfg, nil)

	for range cfg.RequiredHits {
		m.ProcessChunk(loudWindow(cfg.WindowSamples))
	}
	if m.State() != StateActive {
		t.Fatalf("state = %v, want active after hits", m.State())
	}

	// Stay speaking a while, accumulating enough bytes to clear the
	// minimum-utterance floor.
	for range 4 {
		m.ProcessChunk(loudWindow(cfg.WindowSamples))
	}

	var endResult Result
	found := false
	// RequiredMisses silent windows move ACTIVE to INACTIVE; as many again
	// end the utterance.
	for range 2 * cfg.RequiredMisses {
		for _, r := range m.ProcessChunk(silentWindow(cfg.WindowSamples)) {
			if r.SpeechEnd {
				endResult = r
				found = true
			}
		}
	}

	if !found {
		t.Fatal("never observed speech-end")
	}
	if len(endResult.Audio) == 0 {
		t.Error("speech-end payload was empty")
	}
	if m.State() != StateIdle {
		t.Errorf("state = %v after speech-end, want idle", m.State())
	}
}

func TestMachine_ShortUtteranceDiscardedSilently(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.MinUtteranceBytes = 1 << 20 // effectively unreachable
	m := New(cfg, nil)

	for range cfg.RequiredHits {
		m.ProcessChunk(loudWindow(cfg.WindowSamples))
	}

	var sawEnd bool
	for range 2 * cfg.RequiredMisses {
		for _, r := range m.ProcessChunk(silentWindow(cfg.WindowSamples)) {
			if r.SpeechEnd {
				sawEnd = true
			}
		}
	}

	if sawEnd {
		t.Error("short utterance should discard silently, no speech-end event expected")
	}
	if m.State() != StateIdle {
		t.Errorf("state = %v, want idle even when discarded", m.State())
	}
}

func TestMachine_InactiveReturnsToActiveOnResumedSpeech(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	m := New(cfg, nil)

	for range cfg.RequiredHits {
		m.ProcessChunk(loudWindow(cfg.WindowSamples))
	}
	// RequiredMisses windows reach INACTIVE; stop one miss short of
	// INACTIVE->IDLE.
	for range 2*cfg.RequiredMisses - 1 {
		m.ProcessChunk(silentWindow(cfg.WindowSamples))
	}
	if m.State() != StateInactive {
		t.Fatalf("state = %v, want inactive", m.State())
	}

	for range cfg.RequiredHits {
		m.ProcessChunk(loudWindow(cfg.WindowSamples))
	}
	if m.State() != StateActive {
		t.Errorf("state = %v, want active after resumed speech", m.State())
	}
}

func TestMachine_ForceEndRescuesStuckActive(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	m := New(cfg, nil)

	for range cfg.RequiredHits {
		m.ProcessChunk(loudWindow(cfg.WindowSamples))
	}
	if m.State() != StateActive {
		t.Fatalf("state = %v, want active", m.State())
	}

	result := m.ForceEnd()
	if !result.SpeechEnd {
		t.Fatal("ForceEnd did not report speech-end")
	}
	if m.State() != StateIdle {
		t.Errorf("state = %v after ForceEnd, want idle", m.State())
	}
}

func TestCalculateDB_SilenceIsNegativeInfinity(t *testing.T) {
	t.Parallel()
	db := calculateDB(make([]float32, 16))
	if !math.IsInf(db, -1) {
		t.Errorf("db = %v, want -Inf", db)
	}
}

func TestNormalize_Int16RangeIsRescaled(t *testing.T) {
	t.Parallel()
	in := []float32{32767, -32767, 0}
	out := normalize(in)
	for i, v := range out {
		if v < -1.0001 || v > 1.0001 {
			t.Errorf("out[%d] = %v, want within [-1,1]", i, v)
		}
	}
}

func TestNormalize_AlreadyNormalizedPassesThrough(t *testing.T) {
	t.Parallel()
	in := []float32{0.5, -0.5, 0.0}
	out := normalize(in)
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("out[%d] = %v, want unchanged %v", i, out[i], in[i])
		}
	}
}
