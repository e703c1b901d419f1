package orchestrator

import "strings"

// sentenceBuffer accumulates streamed LLM tokens and releases text a
// sentence at a time, so the socket frontend renders whole sentences
// instead of a token-by-token stutter. Adapted from the teacher's
// internal/pipeline/sentence.go.
type sentenceBuffer struct {
	buf strings.Builder
}

// add appends a token and returns a complete sentence when one is ready,
// or "" if the boundary hasn't arrived yet.
func (s *sentenceBuffer) add(token string) string {
	s.buf.WriteString(token)
	text := s.buf.String()
	complete, remainder := splitAtSentence(text)
	if complete == "" {
		return ""
	}
	s.buf.Reset()
	s.buf.WriteString(remainder)
	return complete
}

// flush returns whatever partial sentence remains once the stream ends.
func (s *sentenceBuffer) flush() string {
	text := strings.TrimSpace(s.buf.String())
	s.buf.Reset()
	return text
}

var sentenceEnders = map[byte]bool{'.': true, '!': true, '?': true}

// splitAtSentence finds the last sentence-ending punctuation in text that
// is followed by whitespace, and returns (completeSentences, remainder).
func splitAtSentence(text string) (string, string) {
	lastIdx := -1
	for i := 0; i < len(text)-1; i++ {
		if sentenceEnders[text[i]] && isWordBoundary(text[i+1]) {
			lastIdx = i + 1
		}
	}
	if lastIdx < 0 {
		return "", text
	}
	return strings.TrimSpace(text[:lastIdx]), text[lastIdx:]
}

func isWordBoundary(ch byte) bool {
	return ch == ' ' || ch == '\n' || ch == '\t'
}
