// Package call manages screening call sessions: the Emma interviewer
// persona, the per-application interview script, and the call lifecycle
// (single active call per application, transcript persistence, CallFinished
// publication).
package call

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cmcp0/torreai-new-screening-process-approach/pkg/provider/llm"
)

// Fixed interviewer lines. The greeting and goodbye bracket every call; the
// role answer fallback is used when no language model is wired or the
// completion fails.
const (
	EmmaGreeting = "Hello! Thanks for joining. I'm Emma. I'll ask you a few questions about your experience. Ready when you are."
	EmmaGoodbye  = "That's all from my side. Thanks for your time. Goodbye!"

	roleAnswerFallback = "Here's what I can tell you based on the role description."
)

// roleAnswerSystemPrompt pins the model to the job offer context so it cannot
// invent details about the role.
const roleAnswerSystemPrompt = "Answer only using this role context. Do not invent information.\n\n%s"

// Emma is the synthetic interviewer. It walks the prepared question list and
// answers candidate questions about the role from the role context.
//
// Safe for concurrent use across calls.
type Emma struct {
	llm llm.Provider
}

// NewEmma creates the interviewer persona. provider may be nil, in which case
// role questions get the static fallback answer.
func NewEmma(provider llm.Provider) *Emma {
	return &Emma{llm: provider}
}

// Greeting is Emma's opening line.
func (e *Emma) Greeting() string { return EmmaGreeting }

// Goodbye is Emma's closing line.
func (e *Emma) Goodbye() string { return EmmaGoodbye }

// NextQuestion returns the prepared question at index, or ok=false when the
// script is exhausted.
func (e *Emma) NextQuestion(index int, questions []string) (string, bool) {
	if index < 0 || index >= len(questions) {
		return "", false
	}
	return questions[index], true
}

// AnswerRoleQuestion answers a candidate's question about the role using only
// the role context. Never fails: a missing provider or a completion error
// degrades to the static fallback line.
func (e *Emma) AnswerRoleQuestion(ctx context.Context, question, roleContext string) string {
	if e.llm == nil {
		return roleAnswerFallback
	}
	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: fmt.Sprintf(roleAnswerSystemPrompt, roleContext),
		Messages: []llm.Message{
			{Role: "user", Content: question},
		},
	})
	if err != nil {
		slog.Warn("role answer completion failed, using fallback", "error", err)
		return roleAnswerFallback
	}
	if resp == nil || resp.Content == "" {
		return roleAnswerFallback
	}
	return resp.Content
}
