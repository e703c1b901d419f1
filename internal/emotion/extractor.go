// Package emotion extracts `[emotion]` tags from LLM output and computes
// the avatar expression timeline they drive, grounded on
// original_source/src/anima/live2d/emotion_extractor.go and
// emotion_timeline.go.
package emotion

import (
	"regexp"
	"sort"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// tagPattern matches a bracketed emotion tag: [happy], [sad_quietly].
var tagPattern = regexp.MustCompile(`\[([a-zA-Z_]+)\]`)

// Tag is one emotion marker found in raw LLM text.
type Tag struct {
	Emotion string
	// Position is the byte offset in the ORIGINAL (untrimmed) text; for
	// multi-byte UTF-8 text it is not a character count.
	Position int
	// CleanPosition is the offset the tag would have in CleanedText, i.e.
	// Position less the length of every earlier removed tag. The timeline
	// calculator proportions against this, since CleanedText is what
	// audioDuration was synthesized from.
	CleanPosition int
}

// ExtractionResult holds the tag-stripped text and the tags found in it.
type ExtractionResult struct {
	CleanedText string
	Tags        []Tag
	HasEmotions bool
}

// Extractor strips emotion tags from text, optionally restricting to a
// known vocabulary (persona config may list the emotions its Live2D model
// actually supports).
type Extractor struct {
	valid *orderedmap.OrderedMap[string, struct{}]
}

// NewExtractor creates an Extractor. A nil or empty validEmotions accepts
// any tag found.
func NewExtractor(validEmotions []string) *Extractor {
	if len(validEmotions) == 0 {
		return &Extractor{}
	}
	m := orderedmap.New[string, struct{}]()
	for _, e := range validEmotions {
		m.Set(strings.ToLower(e), struct{}{})
	}
	return &Extractor{valid: m}
}

// Extract removes every emotion tag from text and returns the tags found,
// each annotated with its position in the original text.
func (e *Extractor) Extract(text string) ExtractionResult {
	if text == "" {
		return ExtractionResult{}
	}

	matches := tagPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return ExtractionResult{CleanedText: text}
	}

	var tags []Tag
	var removed [][2]int
	removedBytes := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		emotion := strings.ToLower(text[m[2]:m[3]])
		if e.valid != nil {
			if _, ok := e.valid.Get(emotion); !ok {
				continue
			}
		}
		tags = append(tags, Tag{Emotion: emotion, Position: start, CleanPosition: start - removedBytes})
		removed = append(removed, [2]int{start, end})
		removedBytes += end - start
	}

	cleaned := removeSegments(text, removed)

	return ExtractionResult{
		CleanedText: cleaned,
		Tags:        tags,
		HasEmotions: len(tags) > 0,
	}
}

// removeSegments deletes each [start,end) byte range from text, working
// back-to-front so earlier offsets stay valid.
func removeSegments(text string, segments [][2]int) string {
	if len(segments) == 0 {
		return text
	}
	ordered := make([][2]int, len(segments))
	copy(ordered, segments)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i][0] > ordered[j][0] })
	result := text
	for _, seg := range ordered {
		result = result[:seg[0]] + result[seg[1]:]
	}
	return result
}

// IsValid reports whether emotion is in the accepted vocabulary.
func (e *Extractor) IsValid(emotion string) bool {
	if e.valid == nil {
		return true
	}
	_, ok := e.valid.Get(strings.ToLower(emotion))
	return ok
}
