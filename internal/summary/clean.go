package summary

import (
	"regexp"
	"strings"
)

var (
	// markerRe matches transcript section markers such as "=== CASE 3 ===".
	markerRe = regexp.MustCompile(`={3,}.*?={3,}`)

	// instructionRe matches short UI-walkthrough clauses ("click the blue
	// button.") that carry no semantic weight for a summary.
	instructionRe = regexp.MustCompile(`(?i)\b(click|tap|press|select|choose|open)\b[^.?!]*[.?!]`)

	whitespaceRe = regexp.MustCompile(`\s+`)
)

// repeatRunLen is the minimum run length of an identical word before the run
// is collapsed. Two repeats can be deliberate emphasis; three or more is a
// transcription artefact.
const repeatRunLen = 3

// CleanText normalises raw case text before summarisation: transcript
// markers and UI-instruction clauses are removed, whitespace is collapsed,
// and stuttered filler runs ("okay okay okay") are reduced to a single word.
func CleanText(text string) string {
	t := markerRe.ReplaceAllString(text, "")
	t = collapseWhitespace(t)
	t = collapseRepeats(t)
	t = instructionRe.ReplaceAllString(t, "")
	return collapseWhitespace(t)
}

// collapseWhitespace replaces any whitespace run with a single space and
// trims the ends.
func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// collapseRepeats reduces runs of repeatRunLen or more identical words to a
// single occurrence. Comparison is case-insensitive; the first occurrence
// keeps its original casing.
func collapseRepeats(s string) string {
	words := strings.Fields(s)
	if len(words) < repeatRunLen {
		return s
	}

	out := make([]string, 0, len(words))
	for i := 0; i < len(words); {
		run := 1
		for i+run < len(words) && strings.EqualFold(words[i+run], words[i]) {
			run++
		}
		if run >= repeatRunLen {
			out = append(out, words[i])
		} else {
			out = append(out, words[i:i+run]...)
		}
		i += run
	}
	return strings.Join(out, " ")
}
