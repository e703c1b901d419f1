package emotion

import "math"

// positionBasedStrategy proportions each tag's window to its position in
// the cleaned text, with boundaries at the midpoint between adjacent
// tags. Grounded on
// original_source/src/anima/live2d/emotion_timeline.go's
// EmotionTimelineCalculator.calculate.
type positionBasedStrategy struct{}

func (positionBasedStrategy) compute(tags []Tag, cleanedText string, audioDuration float64, _ TimelineConfig) []Segment {
	sorted := sortByCleanPosition(tags)
	textLength := float64(len(cleanedText))
	if textLength == 0 {
		textLength = 1
	}

	segments := make([]Segment, 0, len(sorted))
	for i, tag := range sorted {
		relPos := min(float64(tag.CleanPosition)/textLength, 1.0)
		startTime := relPos * audioDuration

		var endTime float64
		if i == len(sorted)-1 {
			endTime = audioDuration
		} else {
			nextRelPos := min(float64(sorted[i+1].CleanPosition)/textLength, 1.0)
			endTime = ((relPos + nextRelPos) / 2) * audioDuration
		}
		if endTime < startTime {
			endTime = startTime
		}

		segments = append(segments, Segment{
			Emotion:   tag.Emotion,
			StartTime: startTime,
			EndTime:   endTime,
			Duration:  endTime - startTime,
			Intensity: 1.0,
		})
	}
	return segments
}

// durationBasedStrategy assigns each tagged emotion a duration
// proportional to a per-emotion weight, independent of where in the text
// the tag occurred — "sad" runs longer than "surprised" everywhere it
// appears. Grounded on
// original_source/src/anima/live2d/strategies/duration_based.py.
type durationBasedStrategy struct {
	weights            map[string]float64
	minEmotionDuration float64
	maxEmotionDuration float64
}

// defaultDurationWeights mirrors DurationBasedStrategy.DEFAULT_DURATION_WEIGHTS.
func defaultDurationWeights() map[string]float64 {
	return map[string]float64{
		"happy":     1.0,
		"sad":       1.5,
		"angry":     1.2,
		"surprised": 0.8,
		"thinking":  1.3,
		"neutral":   1.0,
		"listening": 1.0,
		"speaking":  1.0,
	}
}

func newDurationBasedStrategy(weights map[string]float64) *durationBasedStrategy {
	if weights == nil {
		weights = defaultDurationWeights()
	}
	return &durationBasedStrategy{
		weights:            weights,
		minEmotionDuration: 0.5,
		maxEmotionDuration: 5.0,
	}
}

func (s *durationBasedStrategy) compute(tags []Tag, _ string, audioDuration float64, _ TimelineConfig) []Segment {
	sorted := sortByCleanPosition(tags)

	weights := make([]float64, len(sorted))
	total := 0.0
	for i, tag := range sorted {
		w, ok := s.weights[tag.Emotion]
		if !ok {
			w = 1.0
		}
		weights[i] = w
		total += w
	}

	segments := make([]Segment, 0, len(sorted))
	current := 0.0
	for i, tag := range sorted {
		var duration float64
		if total == 0 {
			duration = audioDuration / float64(len(sorted))
		} else {
			duration = (weights[i] / total) * audioDuration
		}
		duration = math.Max(duration, s.minEmotionDuration)
		duration = math.Min(duration, s.maxEmotionDuration)

		start := current
		end := current + duration
		if i == len(sorted)-1 {
			end = audioDuration
		}

		segments = append(segments, Segment{
			Emotion:   tag.Emotion,
			StartTime: start,
			EndTime:   end,
			Duration:  end - start,
			Intensity: 1.0,
		})

		current = end
		if current >= audioDuration {
			break
		}
	}
	return segments
}

// intensityBasedStrategy assigns each tagged emotion a duration
// proportional to a per-emotion intensity value and carries that
// intensity onto the segment; emotions below minIntensity are dropped
// entirely before time is allocated (ensureFullCoverage then fills the
// resulting gap with the default emotion). Grounded on
// original_source/src/anima/live2d/strategies/intensity_based.py.
type intensityBasedStrategy struct {
	intensities     map[string]float64
	minIntensity    float64
	intensityFactor float64
}

// defaultEmotionIntensities mirrors
// IntensityBasedStrategy.DEFAULT_EMOTION_INTENSITIES.
func defaultEmotionIntensities() map[string]float64 {
	return map[string]float64{
		"happy":     0.8,
		"sad":       0.6,
		"angry":     0.9,
		"surprised": 0.95,
		"thinking":  0.4,
		"neutral":   0.3,
		"listening": 0.3,
		"speaking":  0.7,
	}
}

func newIntensityBasedStrategy(intensities map[string]float64) *intensityBasedStrategy {
	if intensities == nil {
		intensities = defaultEmotionIntensities()
	}
	return &intensityBasedStrategy{
		intensities:     intensities,
		minIntensity:    0.2,
		intensityFactor: 0.5,
	}
}

func (s *intensityBasedStrategy) compute(tags []Tag, _ string, audioDuration float64, _ TimelineConfig) []Segment {
	sorted := sortByCleanPosition(tags)

	type weighted struct {
		tag       Tag
		intensity float64
	}
	kept := make([]weighted, 0, len(sorted))
	for _, tag := range sorted {
		intensity, ok := s.intensities[tag.Emotion]
		if !ok {
			intensity = 0.5
		}
		if intensity < s.minIntensity {
			continue
		}
		kept = append(kept, weighted{tag: tag, intensity: intensity})
	}
	if len(kept) == 0 {
		return nil
	}

	factor := math.Max(0.0, math.Min(1.0, s.intensityFactor))
	weights := make([]float64, len(kept))
	total := 0.0
	for i, k := range kept {
		if factor == 0 {
			weights[i] = 1.0
		} else {
			weights[i] = (1-factor)*1.0 + factor*k.intensity
		}
		total += weights[i]
	}

	segments := make([]Segment, 0, len(kept))
	current := 0.0
	for i, k := range kept {
		var duration float64
		if total == 0 {
			duration = audioDuration / float64(len(kept))
		} else {
			duration = (weights[i] / total) * audioDuration
		}

		start := current
		end := current + duration
		if i == len(kept)-1 {
			end = audioDuration
		}

		segments = append(segments, Segment{
			Emotion:   k.tag.Emotion,
			StartTime: start,
			EndTime:   end,
			Duration:  end - start,
			Intensity: k.intensity,
		})

		current = end
		if current >= audioDuration {
			break
		}
	}
	return segments
}
