// Package mock provides a test double for [embeddings.Provider]: canned
// vectors without a live model, plus a record of the texts submitted for
// embedding.
package mock

import (
	"context"
	"sync"

	"github.com/cmcp0/torreai-new-screening-process-approach/pkg/provider/embeddings"
)

var _ embeddings.Provider = (*Provider)(nil)

// EmbedCall records a single Embed invocation.
type EmbedCall struct {
	Ctx  context.Context
	Text string
}

// Provider is a mock [embeddings.Provider]. The zero value returns an empty
// vector for every text.
type Provider struct {
	mu sync.Mutex

	// EmbedResult is returned by Embed unless EmbedFunc is set.
	EmbedResult []float32

	// EmbedErr, if non-nil, is returned as the error from Embed.
	EmbedErr error

	// EmbedFunc, if set, overrides EmbedResult/EmbedErr entirely.
	EmbedFunc func(ctx context.Context, text string) ([]float32, error)

	// EmbedCalls records every call to Embed in order.
	EmbedCalls []EmbedCall
}

// Embed records the call and returns the configured result.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	p.EmbedCalls = append(p.EmbedCalls, EmbedCall{Ctx: ctx, Text: text})
	fn := p.EmbedFunc
	result, err := p.EmbedResult, p.EmbedErr
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, text)
	}
	return result, err
}

// Reset clears the recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedCalls = nil
}
