package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmcp0/torreai-new-screening-process-approach/internal/domain"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/event"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/repo"
)

// EmbeddingLookup is the slice of the embedding repository the scorer needs.
// A lookup miss selects the rule-based score path.
type EmbeddingLookup interface {
	GetCandidateEmbedding(ctx context.Context, id domain.CandidateID) ([]float32, error)
	GetJobOfferEmbedding(ctx context.Context, id domain.JobOfferID) ([]float32, error)
}

// GetResult is the outcome of [Service.GetForApplication].
type GetResult struct {
	// FoundApplication is false when the application id is unknown.
	FoundApplication bool

	// Analysis is nil while no analysis has been persisted yet.
	Analysis *domain.ScreeningAnalysis
}

// Service runs and serves fit-score analyses. Safe for concurrent use.
type Service struct {
	calls      repo.CallReader
	apps       repo.ApplicationRepository
	analyses   repo.AnalysisRepository
	embeddings EmbeddingLookup
	publisher  event.Publisher
}

// NewService wires a Service. Pass [repo.NoCalls] or [repo.NoEmbeddings] for
// capabilities that are not configured.
func NewService(calls repo.CallReader, apps repo.ApplicationRepository, analyses repo.AnalysisRepository, embeddings EmbeddingLookup, publisher event.Publisher) *Service {
	return &Service{
		calls:      calls,
		apps:       apps,
		analyses:   analyses,
		embeddings: embeddings,
		publisher:  publisher,
	}
}

// GetForApplication returns the analysis state for an application: whether
// the application exists at all, and its analysis if one has been persisted.
func (s *Service) GetForApplication(ctx context.Context, id domain.ApplicationID) (GetResult, error) {
	if _, err := s.apps.GetApplication(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return GetResult{}, nil
		}
		return GetResult{}, fmt.Errorf("analysis: load application: %w", err)
	}

	a, err := s.analyses.GetByApplication(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return GetResult{FoundApplication: true}, nil
		}
		return GetResult{}, fmt.Errorf("analysis: load analysis: %w", err)
	}
	return GetResult{FoundApplication: true, Analysis: &a}, nil
}

// RunAnalysis computes and persists the fit score for a finished call, then
// publishes AnalysisCompleted. A missing call record still yields a default
// completed analysis (score 0) so the application never dangles without one.
func (s *Service) RunAnalysis(ctx context.Context, applicationID domain.ApplicationID, callID domain.CallID) error {
	call, err := s.calls.GetCall(ctx, callID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return s.persist(ctx, applicationID, 0, []string{}, domain.AnalysisCompletedStatus)
		}
		return fmt.Errorf("analysis: load call: %w", err)
	}

	candidate, offer := s.loadApplicationGraph(ctx, applicationID)

	skills := deriveSkills(call.Transcript, candidate, offer)
	score, scored := 0, false
	if candidate != nil && offer != nil {
		cvec, cerr := s.embeddings.GetCandidateEmbedding(ctx, candidate.ID)
		ovec, oerr := s.embeddings.GetJobOfferEmbedding(ctx, offer.ID)
		if cerr == nil && oerr == nil {
			score, scored = embeddingScore(cvec, ovec)
		}
	}
	if !scored {
		score = ruleScore(call.Transcript, skills)
	}

	return s.persist(ctx, applicationID, score, skills, domain.AnalysisCompletedStatus)
}

// PersistFailed records a terminal failed analysis for the application,
// after the retry budget for RunAnalysis is exhausted.
func (s *Service) PersistFailed(ctx context.Context, applicationID domain.ApplicationID) error {
	a := domain.ScreeningAnalysis{
		ID:            domain.NewAnalysisID(),
		ApplicationID: applicationID,
		FitScore:      0,
		Skills:        []string{},
		CompletedAt:   time.Now().UTC(),
		Status:        domain.AnalysisFailedStatus,
	}
	if err := s.analyses.UpsertByApplication(ctx, a); err != nil {
		return fmt.Errorf("analysis: persist failed state: %w", err)
	}
	slog.Warn("analysis marked failed", "application_id", applicationID)
	return nil
}

// loadApplicationGraph resolves the candidate and job offer behind an
// application. Either may be nil; the scorer degrades accordingly.
func (s *Service) loadApplicationGraph(ctx context.Context, applicationID domain.ApplicationID) (*domain.Candidate, *domain.JobOffer) {
	app, err := s.apps.GetApplication(ctx, applicationID)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			slog.Warn("analysis: application lookup failed", "application_id", applicationID, "error", err)
		}
		return nil, nil
	}

	var candidate *domain.Candidate
	if c, err := s.apps.GetCandidate(ctx, app.CandidateID); err == nil {
		candidate = &c
	}
	var offer *domain.JobOffer
	if o, err := s.apps.GetJobOffer(ctx, app.JobOfferID); err == nil {
		offer = &o
	}
	return candidate, offer
}

func (s *Service) persist(ctx context.Context, applicationID domain.ApplicationID, score int, skills []string, status domain.AnalysisStatus) error {
	a := domain.ScreeningAnalysis{
		ID:            domain.NewAnalysisID(),
		ApplicationID: applicationID,
		FitScore:      score,
		Skills:        skills,
		CompletedAt:   time.Now().UTC(),
		Status:        status,
	}
	if err := s.analyses.UpsertByApplication(ctx, a); err != nil {
		return fmt.Errorf("analysis: upsert: %w", err)
	}

	slog.Info("analysis persisted",
		"application_id", applicationID,
		"fit_score", score,
		"skills", len(skills))

	if err := s.publisher.Publish(ctx, domain.AnalysisCompleted{
		ApplicationID: applicationID,
		AnalysisID:    a.ID,
		At:            time.Now().UTC(),
	}); err != nil {
		// The analysis row is the source of truth; a missed event only
		// delays downstream observers.
		slog.Warn("analysis: publish AnalysisCompleted failed", "application_id", applicationID, "error", err)
	}
	return nil
}
