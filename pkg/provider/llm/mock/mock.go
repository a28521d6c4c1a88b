// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider to return canned completions without a live model and to
// inspect the requests the pipeline builds.
package mock

import (
	"context"
	"sync"

	"github.com/casevox/casevox/pkg/provider/llm"
)

// Ensure Provider implements llm.Provider at compile time.
var _ llm.Provider = (*Provider)(nil)

// Provider is a mock implementation of llm.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// CompleteResult is returned by Complete when CompleteFunc is nil.
	CompleteResult *llm.CompletionResponse

	// CompleteErr, if non-nil, is returned as the error from Complete.
	CompleteErr error

	// CompleteFunc, when set, computes the Complete response per call.
	// It takes precedence over CompleteResult/CompleteErr.
	CompleteFunc func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)

	// CountTokensValue is returned by CountTokens.
	CountTokensValue int

	// ModelIDValue is returned by ModelID. Defaults to "mock-llm".
	ModelIDValue string

	// --- Call records ---

	// CompleteCalls records every request passed to Complete, in order.
	CompleteCalls []llm.CompletionRequest
}

// Complete records the call and returns the configured response.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.CompleteCalls = append(p.CompleteCalls, req)
	fn := p.CompleteFunc
	result, errResult := p.CompleteResult, p.CompleteErr
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if errResult != nil {
		return nil, errResult
	}
	if result != nil {
		return result, nil
	}
	return &llm.CompletionResponse{}, nil
}

// CountTokens returns CountTokensValue.
func (p *Provider) CountTokens(messages []llm.Message) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CountTokensValue, nil
}

// ModelID returns ModelIDValue or "mock-llm" when unset.
func (p *Provider) ModelID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ModelIDValue == "" {
		return "mock-llm"
	}
	return p.ModelIDValue
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CompleteCalls = nil
}
