// Package repo defines narrow capability interfaces over the screening
// persistence layer, plus in-memory and PostgreSQL implementations.
//
// Services depend on exactly the capabilities they use (a reader, a writer)
// rather than a broad repository type; a missing capability is expressed by
// an explicit null-object implementation instead of a nil check.
package repo

import (
	"context"
	"errors"

	"github.com/cmcp0/torreai-new-screening-process-approach/internal/domain"
)

// ErrNotFound is returned by readers when the requested record does not exist.
var ErrNotFound = errors.New("repo: not found")

// ApplicationReader looks up screening applications.
type ApplicationReader interface {
	// GetApplication returns the application with the given id, or
	// [ErrNotFound].
	GetApplication(ctx context.Context, id domain.ApplicationID) (domain.ScreeningApplication, error)

	// FindApplicationByUsernameAndJobOffer returns the application created
	// for the (case-insensitive username, external job id) pair, or
	// [ErrNotFound].
	FindApplicationByUsernameAndJobOffer(ctx context.Context, username, externalJobID string) (domain.ScreeningApplication, error)
}

// CandidateReader looks up candidates.
type CandidateReader interface {
	GetCandidate(ctx context.Context, id domain.CandidateID) (domain.Candidate, error)
}

// JobOfferReader looks up job offers.
type JobOfferReader interface {
	GetJobOffer(ctx context.Context, id domain.JobOfferID) (domain.JobOffer, error)
}

// ApplicationWriter persists the full application graph.
type ApplicationWriter interface {
	// SaveApplicationGraph persists candidate, job offer, and application in
	// one atomic operation so partial states never leak. Candidate and job
	// offer use upsert-by-id semantics.
	SaveApplicationGraph(ctx context.Context, c domain.Candidate, o domain.JobOffer, a domain.ScreeningApplication) error
}

// ApplicationRepository combines all application-context capabilities.
type ApplicationRepository interface {
	ApplicationReader
	CandidateReader
	JobOfferReader
	ApplicationWriter
}

// CallReader looks up screening calls.
type CallReader interface {
	GetCall(ctx context.Context, id domain.CallID) (domain.ScreeningCall, error)
}

// CallRepository persists screening calls and their transcripts.
type CallRepository interface {
	CallReader

	SaveCall(ctx context.Context, c domain.ScreeningCall) error
	UpdateCallTranscript(ctx context.Context, id domain.CallID, transcript []domain.TranscriptSegment) error
	MarkCallCompleted(ctx context.Context, id domain.CallID) error
	MarkCallFailed(ctx context.Context, id domain.CallID) error
}

// AnalysisRepository persists screening analyses, unique per application.
type AnalysisRepository interface {
	// GetByApplication returns the analysis for the application, or
	// [ErrNotFound].
	GetByApplication(ctx context.Context, id domain.ApplicationID) (domain.ScreeningAnalysis, error)

	// UpsertByApplication inserts or replaces the analysis row keyed by
	// application id.
	UpsertByApplication(ctx context.Context, a domain.ScreeningAnalysis) error
}

// EmbeddingRepository stores embedding vectors keyed by entity id.
// Save-by-entity is idempotent, which makes redelivered JobOfferApplied
// events harmless.
type EmbeddingRepository interface {
	SaveCandidateEmbedding(ctx context.Context, id domain.CandidateID, vec []float32) error
	GetCandidateEmbedding(ctx context.Context, id domain.CandidateID) ([]float32, error)
	SaveJobOfferEmbedding(ctx context.Context, id domain.JobOfferID, vec []float32) error
	GetJobOfferEmbedding(ctx context.Context, id domain.JobOfferID) ([]float32, error)
}

// NoCalls is the null-object [CallRepository]: reads miss and writes are
// dropped. Used when call persistence is not wired.
type NoCalls struct{}

var _ CallRepository = NoCalls{}

func (NoCalls) GetCall(context.Context, domain.CallID) (domain.ScreeningCall, error) {
	return domain.ScreeningCall{}, ErrNotFound
}
func (NoCalls) SaveCall(context.Context, domain.ScreeningCall) error { return nil }
func (NoCalls) UpdateCallTranscript(context.Context, domain.CallID, []domain.TranscriptSegment) error {
	return nil
}
func (NoCalls) MarkCallCompleted(context.Context, domain.CallID) error { return nil }
func (NoCalls) MarkCallFailed(context.Context, domain.CallID) error    { return nil }

// NoEmbeddings is the null-object [EmbeddingRepository]: reads miss and
// writes are dropped.
type NoEmbeddings struct{}

var _ EmbeddingRepository = NoEmbeddings{}

func (NoEmbeddings) SaveCandidateEmbedding(context.Context, domain.CandidateID, []float32) error {
	return nil
}
func (NoEmbeddings) GetCandidateEmbedding(context.Context, domain.CandidateID) ([]float32, error) {
	return nil, ErrNotFound
}
func (NoEmbeddings) SaveJobOfferEmbedding(context.Context, domain.JobOfferID, []float32) error {
	return nil
}
func (NoEmbeddings) GetJobOfferEmbedding(context.Context, domain.JobOfferID) ([]float32, error) {
	return nil, ErrNotFound
}
