package segment_test

import (
	"reflect"
	"testing"

	"github.com/casevox/casevox/internal/segment"
)

func TestSplitSentences_Basic(t *testing.T) {
	t.Parallel()

	got := segment.SplitSentences("Hello there. How can I help you today? Great!")
	want := []string{"Hello there.", "How can I help you today?", "Great!"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitSentences: got %v, want %v", got, want)
	}
}

func TestSplitSentences_Empty(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "   ", "\n\t "} {
		if got := segment.SplitSentences(input); len(got) != 0 {
			t.Errorf("SplitSentences(%q): got %v, want empty", input, got)
		}
	}
}

func TestSplitSentences_NoTerminalPunctuation(t *testing.T) {
	t.Parallel()

	got := segment.SplitSentences("no punctuation at all here")
	want := []string{"no punctuation at all here"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitSentences: got %v, want %v", got, want)
	}
}

func TestSplitSentences_RepeatedPunctuation(t *testing.T) {
	t.Parallel()

	got := segment.SplitSentences("Are you sure?! Yes... Fine.")
	want := []string{"Are you sure?!", "Yes...", "Fine."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitSentences: got %v, want %v", got, want)
	}
}

func TestSplitSentences_NoSplitWithoutWhitespace(t *testing.T) {
	t.Parallel()

	// A terminal character followed by a non-space must not split, so
	// decimal-like tokens stay inside one sentence.
	got := segment.SplitSentences("The amount was 12.50 euros. Thanks.")
	want := []string{"The amount was 12.50 euros.", "Thanks."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitSentences: got %v, want %v", got, want)
	}
}

func TestCoalesce_MergesShortUtterances(t *testing.T) {
	t.Parallel()

	sentences := []string{
		"Okay.",
		"Yes.",
		"I would like to report a problem with my last invoice please.",
		"Mm-hmm.",
	}
	got := segment.Coalesce(sentences, 6)
	want := []string{
		"Okay. Yes.",
		"I would like to report a problem with my last invoice please.",
		"Mm-hmm.",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Coalesce: got %v, want %v", got, want)
	}
}

func TestCoalesce_PreservesAllText(t *testing.T) {
	t.Parallel()

	sentences := []string{"One two.", "Three.", "Four five six seven eight nine.", "Ten."}
	got := segment.Coalesce(sentences, 6)

	joinWords := func(ss []string) []string {
		var words []string
		for _, s := range ss {
			words = append(words, splitWords(s)...)
		}
		return words
	}
	if !reflect.DeepEqual(joinWords(got), joinWords(sentences)) {
		t.Errorf("Coalesce dropped or reordered words: got %v from %v", got, sentences)
	}
}

func TestCoalesce_ZeroThresholdIsIdentity(t *testing.T) {
	t.Parallel()

	sentences := []string{"Hi.", "Hello there friend."}
	got := segment.Coalesce(sentences, 0)
	if !reflect.DeepEqual(got, sentences) {
		t.Errorf("Coalesce with minWords=0: got %v, want %v", got, sentences)
	}
}
