package vad

import (
	"encoding/binary"
	"math"
	"time"
)

// Result reports what happened after consuming zero or more windows.
// SpeechStart/SpeechEnd are mutually exclusive within one Result; Audio is
// only populated when SpeechEnd is true. A natural speech-end is reported
// only if the accumulated utterance met the minimum length; ForceEnd
// reports one regardless.
type Result struct {
	SpeechStart bool
	SpeechEnd   bool
	Audio       []byte
	State       State
}

// Machine is a per-session voice-activity state machine. It is not safe
// for concurrent use; callers (the session manager) serialize calls per
// session already.
type Machine struct {
	cfg    Config
	prober Prober
	state  State

	hitCount  int
	missCount int

	probSmoother *trailingMean
	dbSmoother   *trailingMean

	buffer  []byte
	preRoll *preRoll
	carry   []float32

	windowCount     int // windows accumulated in buffer since last reset
	activeSince     time.Time
	lastWindowTime  time.Time
}

// New creates a machine. If prober is nil, the machine degrades to a
// dB-only fallback decision with identical state-machine semantics.
func New(cfg Config, prober Prober) *Machine {
	return &Machine{
		cfg:          cfg,
		prober:       prober,
		state:        StateIdle,
		probSmoother: newTrailingMean(cfg.SmoothingWindow),
		dbSmoother:   newTrailingMean(cfg.SmoothingWindow),
		preRoll:      newPreRoll(cfg.PreRollWindows),
	}
}

// State returns the current machine state.
func (m *Machine) State() State { return m.state }

// ActiveSince returns the wall-clock time of the most recent IDLE->ACTIVE
// transition, used by the session manager's timeout tracker (spec §4.3,
// §4.11) to force a rescue speech-end if an utterance runs too long.
func (m *Machine) ActiveSince() time.Time { return m.activeSince }

// normalize assumes int16 encoding (and rescales to [-1,1]) if any sample's
// magnitude exceeds 1.0.
func normalize(samples []float32) []float32 {
	var maxAbs float32
	for _, s := range samples {
		a := s
		if a < 0 {
			a = -a
		}
		if a > maxAbs {
			maxAbs = a
		}
	}
	if maxAbs <= 1.0 {
		return samples
	}
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = s / 32767.0
	}
	return out
}

// ProcessChunk appends samples to the internal carry buffer and consumes
// as many complete windows as are available, returning one Result per
// window that started or ended an utterance (ACTIVE<->INACTIVE moves
// produce none). Windows are never processed out
// of order and a partial trailing window is retained for the next call.
func (m *Machine) ProcessChunk(samples []float32) []Result {
	samples = normalize(samples)
	m.carry = append(m.carry, samples...)

	var results []Result
	for len(m.carry) >= m.cfg.WindowSamples {
		window := m.carry[:m.cfg.WindowSamples]
		m.carry = m.carry[m.cfg.WindowSamples:]

		prob, err := m.probability(window)
		if err != nil {
			prob = 0
		}
		if r, ok := m.processWindow(window, prob); ok {
			results = append(results, r)
		}
	}
	return results
}

func (m *Machine) probability(window []float32) (float64, error) {
	if m.prober != nil {
		return m.prober.Probability(window)
	}
	return fallbackProbability(window, m.cfg.DBThreshold), nil
}

// calculateDB computes dBFS from a float32 window. An empty or all-zero
// window returns negative infinity, which is always below threshold and
// therefore treated as non-speech.
func calculateDB(window []float32) float64 {
	if len(window) == 0 {
		return math.Inf(-1)
	}
	var sumSq float64
	for _, s := range window {
		sumSq += float64(s) * float64(s)
	}
	rms := math.Sqrt(sumSq / float64(len(window)))
	if rms <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(rms)
}

func floatsToPCMBytes(window []float32) []byte {
	buf := make([]byte, len(window)*2)
	for i, s := range window {
		clamped := s
		if clamped > 1 {
			clamped = 1
		} else if clamped < -1 {
			clamped = -1
		}
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(clamped*32767)))
	}
	return buf
}

func (m *Machine) processWindow(window []float32, prob float64) (Result, bool) {
	db := calculateDB(window)
	smoothedProb := m.probSmoother.add(prob)
	smoothedDB := m.dbSmoother.add(db)
	isSpeech := smoothedProb >= m.cfg.ProbThreshold && smoothedDB >= m.cfg.DBThreshold

	chunkBytes := floatsToPCMBytes(window)
	m.lastWindowTime = time.Now()

	switch m.state {
	case StateIdle:
		m.preRoll.push(chunkBytes)
		if isSpeech {
			m.hitCount++
			if m.hitCount >= m.cfg.RequiredHits {
				m.state = StateActive
				m.activeSince = time.Now()
				m.hitCount = 0
				m.accumulate(chunkBytes)
				return Result{SpeechStart: true, State: StateActive}, true
			}
		} else {
			m.hitCount = 0
		}

	case StateActive:
		m.accumulate(chunkBytes)
		if isSpeech {
			m.missCount = 0
		} else {
			m.missCount++
			if m.missCount >= m.cfg.RequiredMisses {
				m.state = StateInactive
				m.missCount = 0
			}
		}

	case StateInactive:
		m.accumulate(chunkBytes)
		if isSpeech {
			m.hitCount++
			if m.hitCount >= m.cfg.RequiredHits {
				m.state = StateActive
				m.hitCount = 0
				m.missCount = 0
			}
		} else {
			m.hitCount = 0
			m.missCount++
			if m.missCount >= m.cfg.RequiredMisses {
				return m.finishUtterance(), true
			}
		}
	}

	return Result{}, false
}

func (m *Machine) accumulate(chunkBytes []byte) {
	m.buffer = append(m.buffer, chunkBytes...)
	m.windowCount++
}

// finishUtterance transitions to IDLE and, if enough audio accumulated,
// returns it prefixed by the pre-roll capture; otherwise discards silently
// (prevents spurious turns from brief noise bursts).
func (m *Machine) finishUtterance() Result {
	m.state = StateIdle
	m.missCount = 0

	defer m.resetBuffers()

	if len(m.buffer) < m.cfg.MinUtteranceBytes {
		return Result{State: StateIdle}
	}

	pre := m.preRoll.drain()
	audio := make([]byte, 0, len(pre)+len(m.buffer))
	audio = append(audio, pre...)
	audio = append(audio, m.buffer...)

	return Result{SpeechEnd: true, Audio: audio, State: StateIdle}
}

func (m *Machine) resetBuffers() {
	m.buffer = nil
	m.windowCount = 0
	m.preRoll.reset()
}

// ForceEnd is invoked by the session manager's VAD-timeout tracker when
// ACTIVE/INACTIVE has persisted longer than cfg.Timeout without a natural
// speech-end. It synthesizes a speech-end using whatever has accumulated
// so far and resets the machine to IDLE, regardless of the minimum-length
// floor (an explicit rescue, not a natural boundary).
func (m *Machine) ForceEnd() Result {
	defer m.resetBuffers()

	if m.state == StateIdle {
		return Result{State: StateIdle}
	}
	m.state = StateIdle
	m.hitCount = 0
	m.missCount = 0

	pre := m.preRoll.drain()
	audio := make([]byte, 0, len(pre)+len(m.buffer))
	audio = append(audio, pre...)
	audio = append(audio, m.buffer...)
	return Result{SpeechEnd: true, Audio: audio, State: StateIdle}
}

// Reset returns the machine to its initial IDLE state, discarding all
// accumulated audio and counters.
func (m *Machine) Reset() {
	m.state = StateIdle
	m.hitCount = 0
	m.missCount = 0
	m.carry = nil
	m.probSmoother = newTrailingMean(m.cfg.SmoothingWindow)
	m.dbSmoother = newTrailingMean(m.cfg.SmoothingWindow)
	m.resetBuffers()
}
