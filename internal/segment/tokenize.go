package segment

import "strings"

// sentenceTerminals are the characters that end a sentence for the purposes
// of transcript tokenisation. This is a heuristic splitter, not a grammatical
// parser: abbreviations and decimal numbers are split like any other text,
// which is acceptable for conversational STT output.
const sentenceTerminals = ".!?"

// SplitSentences splits raw transcript text into trimmed, non-empty
// sentence-like spans. A split occurs after each of '.', '!' or '?' when it
// is followed by whitespace (or ends the text). Whitespace-only spans are
// discarded, so an empty transcript yields an empty slice.
func SplitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var (
		sentences []string
		start     int
	)
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if !strings.ContainsRune(sentenceTerminals, runes[i]) {
			continue
		}
		// Consume any run of terminal punctuation ("?!", "...").
		for i+1 < len(runes) && strings.ContainsRune(sentenceTerminals, runes[i+1]) {
			i++
		}
		if i+1 < len(runes) && !isSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			sentences = append(sentences, s)
		}
		start = i + 1
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// Coalesce merges sentences shorter than minWords words into adjacent text.
// Short sentences accumulate in a running buffer that is flushed as a single
// unit when a sentence meeting the threshold arrives, or at the end of the
// input. Every emitted unit except possibly a final undersized remainder
// therefore has at least minWords words. Order is preserved and no text is
// lost.
func Coalesce(sentences []string, minWords int) []string {
	merged := make([]string, 0, len(sentences))
	var buffer string
	for _, s := range sentences {
		if wordCount(s) < minWords {
			buffer = strings.TrimSpace(buffer + " " + s)
			continue
		}
		if buffer != "" {
			merged = append(merged, buffer)
			buffer = ""
		}
		merged = append(merged, s)
	}
	if buffer != "" {
		merged = append(merged, buffer)
	}
	return merged
}
