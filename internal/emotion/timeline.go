package emotion

import "sort"

// Segment is one span of the avatar's expression timeline.
type Segment struct {
	Emotion   string
	StartTime float64
	EndTime   float64
	Duration  float64
	Intensity float64
}

// Timeline is the full expression schedule for one synthesized utterance.
type Timeline struct {
	Segments       []Segment
	TotalDuration  float64
	DefaultEmotion string
}

// EmotionAt returns the expression that should be showing at time (seconds
// from the start of playback).
func (t Timeline) EmotionAt(time float64) string {
	for _, seg := range t.Segments {
		if seg.StartTime <= time && time < seg.EndTime {
			return seg.Emotion
		}
	}
	if n := len(t.Segments); n > 0 && time >= t.Segments[n-1].EndTime {
		return t.Segments[n-1].Emotion
	}
	return t.DefaultEmotion
}

// minSegmentDuration is the floor below which a segment is too short to
// animate cleanly and gets absorbed into its neighbor.
const minSegmentDuration = 0.1

// Strategy selects which algorithm a Calculator uses to turn tags into
// time-coded segments. Grounded on
// original_source/src/anima/live2d/strategies/{position_based,
// duration_based,intensity_based}.py, which the Python original registers
// behind a shared ITimelineStrategy interface.
type Strategy string

const (
	// StrategyPosition proportions each tag's window to its position in
	// the cleaned text, boundaries at the midpoint between adjacent tags.
	// Grounded on original_source/src/anima/live2d/emotion_timeline.py.
	StrategyPosition Strategy = "position_based"
	// StrategyDuration assigns each emotion a duration proportional to a
	// per-emotion weight (e.g. "sad" runs longer than "surprised"),
	// independent of where the tag appeared in the text.
	StrategyDuration Strategy = "duration_based"
	// StrategyIntensity assigns duration proportional to a per-emotion
	// intensity value and carries that intensity onto the segment;
	// emotions below MinIntensity are dropped before allocation.
	StrategyIntensity Strategy = "intensity_based"
)

// timelineStrategy computes the raw, un-smoothed segment list for one
// utterance. Calculator applies smoothing, full-coverage, and minimum
// duration absorption uniformly afterward, regardless of strategy.
type timelineStrategy interface {
	compute(tags []Tag, cleanedText string, audioDuration float64, cfg TimelineConfig) []Segment
}

// TimelineConfig holds the knobs every strategy shares, grounded on
// original_source/src/anima/live2d/strategies/base.py's TimelineConfig
// dataclass.
type TimelineConfig struct {
	DefaultEmotion     string
	MinSegmentDuration float64
	EnableSmoothing    bool
}

// Calculator turns position-tagged emotions into a time-coded segment
// list using a selected Strategy.
type Calculator struct {
	strategy timelineStrategy
	config   TimelineConfig
}

// NewCalculator creates a Calculator using the position-based strategy,
// the teacher's default.
func NewCalculator(defaultEmotion string) *Calculator {
	return NewCalculatorWithStrategy(StrategyPosition, defaultEmotion)
}

// NewCalculatorWithStrategy creates a Calculator using defaultEmotion for
// any stretch of audio that precedes the first tag, carries no tag at
// all, or is filtered out by the chosen strategy.
func NewCalculatorWithStrategy(strategy Strategy, defaultEmotion string) *Calculator {
	if defaultEmotion == "" {
		defaultEmotion = "neutral"
	}
	return &Calculator{
		strategy: selectStrategy(strategy),
		config: TimelineConfig{
			DefaultEmotion:     defaultEmotion,
			MinSegmentDuration: minSegmentDuration,
			EnableSmoothing:    true,
		},
	}
}

func selectStrategy(s Strategy) timelineStrategy {
	switch s {
	case StrategyDuration:
		return newDurationBasedStrategy(nil)
	case StrategyIntensity:
		return newIntensityBasedStrategy(nil)
	default:
		return positionBasedStrategy{}
	}
}

// Calculate builds a Timeline from the extracted tags, the tag-stripped
// text they were found in, and the synthesized audio's duration in
// seconds.
func (c *Calculator) Calculate(tags []Tag, cleanedText string, audioDuration float64) Timeline {
	if audioDuration <= 0 {
		return Timeline{DefaultEmotion: c.config.DefaultEmotion}
	}

	if len(tags) == 0 {
		return Timeline{
			Segments: []Segment{{
				Emotion:   c.config.DefaultEmotion,
				StartTime: 0,
				EndTime:   audioDuration,
				Duration:  audioDuration,
				Intensity: 1.0,
			}},
			TotalDuration:  audioDuration,
			DefaultEmotion: c.config.DefaultEmotion,
		}
	}

	segments := c.strategy.compute(tags, cleanedText, audioDuration, c.config)
	if c.config.EnableSmoothing {
		segments = mergeAdjacentSameEmotion(segments)
	}
	segments = ensureFullCoverage(segments, audioDuration, c.config.DefaultEmotion)
	segments = absorbShortSegments(segments, c.config.MinSegmentDuration)

	return Timeline{
		Segments:       segments,
		TotalDuration:  audioDuration,
		DefaultEmotion: c.config.DefaultEmotion,
	}
}

// sortByCleanPosition returns tags sorted by their position in the
// cleaned text (the text audioDuration was synthesized from), not their
// position in the original, tag-bearing text.
func sortByCleanPosition(tags []Tag) []Tag {
	sorted := make([]Tag, len(tags))
	copy(sorted, tags)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CleanPosition < sorted[j].CleanPosition })
	return sorted
}

// mergeAdjacentSameEmotion joins consecutive segments carrying the same
// emotion when they touch or overlap, grounded on
// original_source/src/anima/live2d/strategies/base.py's
// merge_adjacent_same_emotion.
func mergeAdjacentSameEmotion(segments []Segment) []Segment {
	if len(segments) < 2 {
		return segments
	}
	merged := make([]Segment, 0, len(segments))
	merged = append(merged, segments[0])
	for _, seg := range segments[1:] {
		last := &merged[len(merged)-1]
		if seg.Emotion == last.Emotion && seg.StartTime <= last.EndTime {
			if seg.EndTime > last.EndTime {
				last.EndTime = seg.EndTime
				last.Duration = last.EndTime - last.StartTime
			}
			continue
		}
		merged = append(merged, seg)
	}
	return merged
}

// ensureFullCoverage sorts segments by start time and fills any gap
// (including before the first segment and after the last) with
// defaultEmotion, guaranteeing segments span [0, audioDuration] with no
// hole, per invariant §8.7. Grounded on
// original_source/src/anima/live2d/strategies/base.py's
// ensure_full_coverage.
func ensureFullCoverage(segments []Segment, audioDuration float64, defaultEmotion string) []Segment {
	if len(segments) == 0 {
		return []Segment{{
			Emotion:   defaultEmotion,
			StartTime: 0,
			EndTime:   audioDuration,
			Duration:  audioDuration,
			Intensity: 1.0,
		}}
	}

	sorted := make([]Segment, len(segments))
	copy(sorted, segments)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartTime < sorted[j].StartTime })

	filled := make([]Segment, 0, len(sorted)+2)
	lastEnd := 0.0
	for _, seg := range sorted {
		if seg.StartTime > lastEnd {
			filled = append(filled, Segment{
				Emotion:   defaultEmotion,
				StartTime: lastEnd,
				EndTime:   seg.StartTime,
				Duration:  seg.StartTime - lastEnd,
				Intensity: 1.0,
			})
		}
		filled = append(filled, seg)
		if seg.EndTime > lastEnd {
			lastEnd = seg.EndTime
		}
	}
	if lastEnd < audioDuration {
		filled = append(filled, Segment{
			Emotion:   defaultEmotion,
			StartTime: lastEnd,
			EndTime:   audioDuration,
			Duration:  audioDuration - lastEnd,
			Intensity: 1.0,
		})
	}
	return filled
}

// absorbShortSegments folds any segment under minDuration into its
// preceding neighbor (or, if it is the first segment, into the one that
// follows), preserving full coverage instead of leaving an uncovered gap
// the way dropping the segment outright would.
func absorbShortSegments(segments []Segment, minDuration float64) []Segment {
	if len(segments) <= 1 {
		return segments
	}

	out := make([]Segment, 0, len(segments))
	for _, seg := range segments {
		if seg.Duration < minDuration && len(out) > 0 {
			prev := &out[len(out)-1]
			prev.EndTime = seg.EndTime
			prev.Duration = prev.EndTime - prev.StartTime
			continue
		}
		out = append(out, seg)
	}

	if len(out) > 1 && out[0].Duration < minDuration {
		out[1].StartTime = out[0].StartTime
		out[1].Duration = out[1].EndTime - out[1].StartTime
		out = out[1:]
	}

	return out
}
