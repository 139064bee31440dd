// Package ollama embeds candidate profiles and job offers through a local
// Ollama server (https://ollama.com) using its /api/embed endpoint. Models
// such as nomic-embed-text or mxbai-embed-large work out of the box.
//
// The package is stdlib-only on purpose: the endpoint is one JSON POST and
// pulling in a client SDK for it buys nothing.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cmcp0/torreai-new-screening-process-approach/pkg/provider/embeddings"
)

// DefaultBaseURL is where a locally running Ollama instance listens.
const DefaultBaseURL = "http://localhost:11434"

var _ embeddings.Provider = (*Provider)(nil)

// Provider implements [embeddings.Provider] against an Ollama server. It is
// safe for concurrent use.
type Provider struct {
	baseURL string
	model   string
	client  *http.Client
}

// Option customises a [Provider].
type Option func(*Provider)

// WithTimeout bounds each embed request. Zero or negative means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.client.Timeout = d
		}
	}
}

// New creates a Provider for the given server and model. An empty baseURL
// selects [DefaultBaseURL]; model must name an embedding model pulled into
// the server (e.g. "nomic-embed-text").
func New(baseURL, model string, opts ...Option) (*Provider, error) {
	if model == "" {
		return nil, fmt.Errorf("ollama embeddings: model must not be empty")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	p := &Provider{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Ollama's /api/embed takes an input array even for a single text and
// answers with a parallel embeddings array.
type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed implements [embeddings.Provider].
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: p.model, Input: []string{text}})
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama embeddings: unexpected status %d", resp.StatusCode)
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("ollama embeddings: decode response: %w", err)
	}
	if len(decoded.Embeddings) == 0 || len(decoded.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("ollama embeddings: empty embedding in response")
	}
	return decoded.Embeddings[0], nil
}
