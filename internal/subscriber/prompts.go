package subscriber

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cmcp0/torreai-new-screening-process-approach/internal/call"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/domain"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/event"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/repo"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/resilience"
)

const (
	promptRetries = 3
	promptBackoff = 500 * time.Millisecond

	// maxPromptItems limits how many strengths/responsibilities enter the
	// role context, and how many skills the tailored question references.
	maxPromptItems  = 5
	maxPromptSkills = 3
)

// PromptGenerator prepares the interview script for each new application:
// a role context built from the job offer, and prepared questions optionally
// tailored to the candidate's skills. When the application graph cannot be
// read, a minimal default prompt is stored so the call can still start.
type PromptGenerator struct {
	apps    repo.ApplicationRepository
	prompts *call.PromptStore

	backoffBase time.Duration
}

// NewPromptGenerator wires the generator.
func NewPromptGenerator(apps repo.ApplicationRepository, prompts *call.PromptStore) *PromptGenerator {
	return &PromptGenerator{
		apps:        apps,
		prompts:     prompts,
		backoffBase: promptBackoff,
	}
}

// Register subscribes the handler for JobOfferApplied.
func (g *PromptGenerator) Register(sub event.Subscriber) {
	sub.On(domain.KindJobOfferApplied, g.Handle)
}

// Handle builds and stores the prompt for a JobOfferApplied event. Never
// returns an error: after the retry budget, the default prompt is stored
// instead so the interview is not blocked on a prepared script.
func (g *PromptGenerator) Handle(ctx context.Context, evt domain.Event) error {
	e, ok := evt.(domain.JobOfferApplied)
	if !ok {
		return nil
	}

	err := resilience.Retry(ctx, "call-prompt", promptRetries, g.backoffBase, func(ctx context.Context) error {
		return g.generate(ctx, e)
	})
	if err != nil {
		slog.Warn("call prompt generation failed, storing default",
			"application_id", e.ApplicationID, "error", err)
		g.prompts.Set(e.ApplicationID, call.DefaultPrompt())
	}
	return nil
}

func (g *PromptGenerator) generate(ctx context.Context, e domain.JobOfferApplied) error {
	if _, err := g.apps.GetApplication(ctx, e.ApplicationID); err != nil {
		return fmt.Errorf("subscriber: load application: %w", err)
	}
	offer, err := g.apps.GetJobOffer(ctx, e.JobOfferID)
	if err != nil {
		return fmt.Errorf("subscriber: load job offer: %w", err)
	}
	// The candidate only tailors one question; its absence is not an error.
	var skills []string
	if candidate, err := g.apps.GetCandidate(ctx, e.CandidateID); err == nil {
		skills = candidate.Skills
	}

	g.prompts.Set(e.ApplicationID, call.Prompt{
		Questions:   preparedQuestions(skills),
		RoleContext: roleContext(offer),
	})
	return nil
}

// roleContext summarizes the offer for Emma's role answers.
func roleContext(o domain.JobOffer) string {
	return fmt.Sprintf("Objective: %s\nStrengths: %s\nResponsibilities: %s",
		o.Objective,
		strings.Join(firstN(o.Strengths, maxPromptItems), ", "),
		strings.Join(firstN(o.Responsibilities, maxPromptItems), ", "))
}

// preparedQuestions is the interview script: three standing questions, with
// a skills-specific one inserted when the candidate's profile names any.
func preparedQuestions(skills []string) []string {
	questions := []string{
		"Can you tell me about your relevant experience?",
		"What interests you about this role?",
		"How do your skills align with the responsibilities?",
	}
	if len(skills) > 0 {
		preview := strings.Join(firstN(skills, maxPromptSkills), ", ")
		tailored := fmt.Sprintf("How have you applied %s in your work?", preview)
		questions = append(questions[:1], append([]string{tailored}, questions[1:]...)...)
	}
	return questions
}

func firstN(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
