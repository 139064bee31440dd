// Package llm defines the Provider interface for Large Language Model
// backends.
//
// The screening service uses an LLM for exactly one thing: answering
// candidate questions about the role during a call, grounded on the job
// offer context. The interface is therefore a single non-streaming chat
// completion; provider selection (OpenAI, Anthropic, Ollama, …) happens in
// the anyllm subpackage.
//
// Implementors must be safe for concurrent use.
package llm

import "context"

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// It returns an error if the request fails or ctx is cancelled before
	// the completion arrives.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
