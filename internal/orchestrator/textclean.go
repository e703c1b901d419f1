package orchestrator

import (
	"regexp"
	"strings"
)

// whitespaceRun collapses runs of whitespace (including newlines and tabs)
// into a single space, matching the teacher's sentence-boundary treatment
// of output text.
var whitespaceRun = regexp.MustCompile(`\s+`)

// emojiPattern covers the common emoji blocks, grounded on
// original_source/src/anima/pipeline/steps/text_clean_step.go's
// _remove_emoji ranges.
var emojiPattern = regexp.MustCompile(
	"[\U0001F600-\U0001F64F" + // emoticons
		"\U0001F300-\U0001F5FF" + // symbols & pictographs
		"\U0001F680-\U0001F6FF" + // transport & map symbols
		"\U0001F1E0-\U0001F1FF" + // flags
		"\U00002702-\U000027B0" +
		"\U000024C2-\U0001F251]+",
)

// cleanInputText trims and collapses whitespace in recognized or typed
// input text before it reaches the agent, optionally stripping emoji.
// Mirrors the teacher's TextCleanStep.
func cleanInputText(text string, removeEmoji bool) string {
	text = strings.TrimSpace(text)
	text = whitespaceRun.ReplaceAllString(text, " ")
	if removeEmoji {
		text = emojiPattern.ReplaceAllString(text, "")
		text = strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
	}
	return text
}
