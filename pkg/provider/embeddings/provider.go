// Package embeddings defines the Provider interface for the vector backends
// behind the fit score.
//
// The screening pipeline embeds exactly two documents per application — the
// candidate profile text and the job offer text — and compares them with
// cosine similarity. Providers therefore expose a single-text Embed call and
// nothing else; batch APIs, dimension introspection, and model metadata live
// with the backend, not here.
package embeddings

import "context"

// Provider maps a text to a dense float32 vector.
//
// Both vectors feeding one similarity computation must come from the same
// Provider instance; mixing models mixes vector spaces. The input is passed to
// the backend verbatim, so any model-specific prompt formatting (such as a
// "query: " prefix) is the caller's responsibility.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
