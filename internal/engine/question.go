package engine

import (
	"regexp"
	"strings"
)

// questionPatterns match phrasing where the model is asking the user for a
// decision rather than making progress. Kept deliberately narrow: long
// responses that merely end with a rhetorical question are not questions.
var questionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(would you like|do you want|should i|shall i|may i)\b`),
	regexp.MustCompile(`(?i)\bwhich (one|option|approach|version|file|model)\b`),
	regexp.MustCompile(`(?i)\b(can|could) you (confirm|clarify|provide|tell me|specify)\b`),
	regexp.MustCompile(`(?i)\bplease (confirm|clarify|specify|let me know)\b`),
	regexp.MustCompile(`(?i)\b(what|how) would you (prefer|like)\b`),
	regexp.MustCompile(`\?\s*$`),
}

// maxQuestionLength bounds the detector: anything longer is treated as a
// substantive answer even if it contains question phrasing.
const maxQuestionLength = 1000

// DetectsQuestion reports whether the assistant text reads as a request for
// user input. The step loop stops on a detected question only when no tool
// ran in the same iteration, so the user can answer before work continues.
func DetectsQuestion(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || len(trimmed) >= maxQuestionLength {
		return false
	}
	for _, p := range questionPatterns {
		if p.MatchString(trimmed) {
			return true
		}
	}
	return false
}
