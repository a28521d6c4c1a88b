// Package summary produces short factual summaries of segmented call-center
// cases.
//
// The default [LLMSummariser] sends each case to an LLM with a low
// temperature and a prompt that forbids speculation. Very short cases are
// returned verbatim after cleanup; a handful of words cannot be condensed
// further and an LLM round-trip for them only adds cost and latency.
package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/casevox/casevox/internal/observe"
	"github.com/casevox/casevox/pkg/provider/llm"
)

// casePrompt is the system prompt sent to the LLM for each case.
const casePrompt = `Summarise the following excerpt from a call-center conversation in one or two short factual sentences.
State only what was said or requested. Do not speculate about intent, do not add warnings, and do not address the reader.`

// minLLMWords is the word count below which a cleaned case is returned as its
// own summary instead of being sent to the model.
const minLLMWords = 12

// summaryTemperature keeps the model output close to deterministic.
const summaryTemperature = 0.3

// Summariser produces a concise summary of a single case.
type Summariser interface {
	// Summarise takes raw case text and returns a condensed summary string.
	// Empty input yields an empty summary and no error.
	Summarise(ctx context.Context, caseText string) (string, error)
}

// Compile-time assertion that LLMSummariser satisfies Summariser.
var _ Summariser = (*LLMSummariser)(nil)

// LLMSummariser uses an LLM provider to summarise cases.
// Safe for concurrent use.
type LLMSummariser struct {
	llm       llm.Provider
	maxTokens int
	metrics   *observe.Metrics
}

// Option is a functional option for configuring an [LLMSummariser].
type Option func(*LLMSummariser)

// WithMaxTokens caps the length of generated summaries in model tokens.
// Zero (the default) leaves the cap to the provider.
func WithMaxTokens(n int) Option {
	return func(s *LLMSummariser) { s.maxTokens = n }
}

// WithMetrics enables token-usage accounting on the given metrics instance.
// Without it no metrics are recorded.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *LLMSummariser) { s.metrics = m }
}

// NewLLMSummariser creates a new [LLMSummariser] backed by the given provider.
func NewLLMSummariser(provider llm.Provider, opts ...Option) *LLMSummariser {
	s := &LLMSummariser{llm: provider}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Summarise cleans caseText and returns its summary. Cases shorter than
// minLLMWords after cleaning are returned as-is without a model call.
func (s *LLMSummariser) Summarise(ctx context.Context, caseText string) (string, error) {
	text := CleanText(caseText)
	if text == "" {
		return "", nil
	}
	if len(strings.Fields(text)) < minLLMWords {
		return text, nil
	}

	resp, err := s.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: casePrompt,
		Messages: []llm.Message{
			{
				Role:    "user",
				Content: text,
			},
		},
		Temperature: summaryTemperature,
		MaxTokens:   s.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("summarise: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordTokens(ctx, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}

	return collapseWhitespace(resp.Content), nil
}
