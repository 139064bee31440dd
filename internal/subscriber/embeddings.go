// Package subscriber holds the event handlers behind the screening pipeline:
// embedding generation and call-prompt preparation on JobOfferApplied, and
// the analysis run on CallFinished. Handlers are idempotent so at-least-once
// delivery is safe.
package subscriber

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cmcp0/torreai-new-screening-process-approach/internal/domain"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/event"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/repo"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/resilience"
	"github.com/cmcp0/torreai-new-screening-process-approach/pkg/provider/embeddings"
)

const (
	// maxEmbedTextLength caps the text handed to the embedding model.
	maxEmbedTextLength = 8000

	// maxEmbedJobs limits how many prior positions enter the candidate text.
	maxEmbedJobs = 5

	embedRetries = 3
	embedBackoff = time.Second
)

// EmbeddingGenerator computes and stores embedding vectors for the candidate
// and the job offer of each new application. The vectors feed the
// embedding-based fit score later.
type EmbeddingGenerator struct {
	candidates repo.CandidateReader
	offers     repo.JobOfferReader
	provider   embeddings.Provider
	store      repo.EmbeddingRepository

	backoffBase time.Duration
}

// NewEmbeddingGenerator wires the generator. Pass [repo.NoEmbeddings] as
// store when embedding persistence is not configured.
func NewEmbeddingGenerator(candidates repo.CandidateReader, offers repo.JobOfferReader, provider embeddings.Provider, store repo.EmbeddingRepository) *EmbeddingGenerator {
	return &EmbeddingGenerator{
		candidates:  candidates,
		offers:      offers,
		provider:    provider,
		store:       store,
		backoffBase: embedBackoff,
	}
}

// Register subscribes both handlers for JobOfferApplied.
func (g *EmbeddingGenerator) Register(sub event.Subscriber) {
	sub.On(domain.KindJobOfferApplied, g.HandleCandidate)
	sub.On(domain.KindJobOfferApplied, g.HandleJobOffer)
}

// HandleCandidate embeds the candidate profile for a JobOfferApplied event.
func (g *EmbeddingGenerator) HandleCandidate(ctx context.Context, evt domain.Event) error {
	e, ok := evt.(domain.JobOfferApplied)
	if !ok {
		return nil
	}
	candidate, err := g.candidates.GetCandidate(ctx, e.CandidateID)
	if err != nil {
		return fmt.Errorf("subscriber: load candidate: %w", err)
	}

	vec, err := g.embed(ctx, "candidate-embedding", candidateEmbedText(candidate))
	if err != nil {
		g.deadLetter("candidate", e, err)
		return nil
	}
	if err := g.store.SaveCandidateEmbedding(ctx, e.CandidateID, vec); err != nil {
		slog.Warn("failed to persist candidate embedding", "candidate_id", e.CandidateID, "error", err)
	}
	return nil
}

// HandleJobOffer embeds the job offer for a JobOfferApplied event.
func (g *EmbeddingGenerator) HandleJobOffer(ctx context.Context, evt domain.Event) error {
	e, ok := evt.(domain.JobOfferApplied)
	if !ok {
		return nil
	}
	offer, err := g.offers.GetJobOffer(ctx, e.JobOfferID)
	if err != nil {
		return fmt.Errorf("subscriber: load job offer: %w", err)
	}

	vec, err := g.embed(ctx, "job-offer-embedding", jobOfferEmbedText(offer))
	if err != nil {
		g.deadLetter("job_offer", e, err)
		return nil
	}
	if err := g.store.SaveJobOfferEmbedding(ctx, e.JobOfferID, vec); err != nil {
		slog.Warn("failed to persist job offer embedding", "job_offer_id", e.JobOfferID, "error", err)
	}
	return nil
}

func (g *EmbeddingGenerator) embed(ctx context.Context, name, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if len(text) > maxEmbedTextLength {
		text = text[:maxEmbedTextLength]
	}

	var vec []float32
	err := resilience.Retry(ctx, name, embedRetries, g.backoffBase, func(ctx context.Context) error {
		v, err := g.provider.Embed(ctx, text)
		if err != nil {
			return err
		}
		if len(v) == 0 {
			return fmt.Errorf("subscriber: empty embedding")
		}
		vec = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vec, nil
}

// deadLetter records the full event payload so a failed embedding can be
// replayed by hand.
func (g *EmbeddingGenerator) deadLetter(kind string, e domain.JobOfferApplied, err error) {
	slog.Warn("embeddings dead-letter",
		"kind", kind,
		"reason", err,
		"event", string(domain.KindJobOfferApplied),
		"application_id", e.ApplicationID,
		"candidate_id", e.CandidateID,
		"job_offer_id", e.JobOfferID,
		"occurred_at", e.At.Format(time.RFC3339Nano))
}

// candidateEmbedText flattens a candidate profile into one embedding input:
// the name, every skill, and the most recent prior positions.
func candidateEmbedText(c domain.Candidate) string {
	parts := []string{c.FullName, strings.Join(c.Skills, " ")}
	jobs := c.Jobs
	if len(jobs) > maxEmbedJobs {
		jobs = jobs[:maxEmbedJobs]
	}
	for _, j := range jobs {
		parts = append(parts, strings.TrimSpace(j.Title+" "+j.Organization))
	}
	return strings.Join(parts, " ")
}

// jobOfferEmbedText flattens a job offer into one embedding input.
func jobOfferEmbedText(o domain.JobOffer) string {
	return strings.Join([]string{
		o.Objective,
		strings.Join(o.Strengths, " "),
		strings.Join(o.Responsibilities, " "),
	}, " ")
}
