package call

import (
	"sync"

	"github.com/cmcp0/torreai-new-screening-process-approach/internal/domain"
)

// Prompt is the interview script for one application: the prepared questions
// Emma asks in order, and the role context she answers role questions from.
type Prompt struct {
	Questions   []string
	RoleContext string
}

// DefaultPrompt is the minimal script used when no prompt has been generated
// for an application; it guarantees a call can always start.
func DefaultPrompt() Prompt {
	return Prompt{
		Questions:   []string{"Tell me about your background."},
		RoleContext: "Screening call.",
	}
}

// PromptLookup resolves the interview script prepared for an application.
type PromptLookup interface {
	// PromptFor returns the prompt for the application and whether one was
	// prepared.
	PromptFor(id domain.ApplicationID) (Prompt, bool)
}

// Compile-time check that *PromptStore satisfies [PromptLookup].
var _ PromptLookup = (*PromptStore)(nil)

// PromptStore is the in-process prompt registry. The JobOfferApplied
// subscriber writes a script per application; the call handler reads it when
// the candidate connects. Safe for concurrent use.
type PromptStore struct {
	mu      sync.RWMutex
	prompts map[domain.ApplicationID]Prompt
}

// NewPromptStore returns an empty registry.
func NewPromptStore() *PromptStore {
	return &PromptStore{prompts: make(map[domain.ApplicationID]Prompt)}
}

// Set stores the prompt for the application, replacing any previous one.
func (s *PromptStore) Set(id domain.ApplicationID, p Prompt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts[id] = p
}

// PromptFor implements [PromptLookup].
func (s *PromptStore) PromptFor(id domain.ApplicationID) (Prompt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prompts[id]
	return p, ok
}
