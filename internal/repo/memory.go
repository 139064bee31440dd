package repo

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cmcp0/torreai-new-screening-process-approach/internal/domain"
)

// Compile-time interface checks.
var (
	_ ApplicationRepository = (*MemoryApplications)(nil)
	_ CallRepository        = (*MemoryCalls)(nil)
	_ AnalysisRepository    = (*MemoryAnalyses)(nil)
	_ EmbeddingRepository   = (*MemoryEmbeddings)(nil)
)

// MemoryApplications is the in-process [ApplicationRepository]. Safe for
// concurrent use.
type MemoryApplications struct {
	mu           sync.RWMutex
	applications map[domain.ApplicationID]domain.ScreeningApplication
	candidates   map[domain.CandidateID]domain.Candidate
	jobOffers    map[domain.JobOfferID]domain.JobOffer
	// byPair indexes applications by (lowercase username, external job id).
	byPair map[string]domain.ApplicationID
}

// NewMemoryApplications returns an empty MemoryApplications.
func NewMemoryApplications() *MemoryApplications {
	return &MemoryApplications{
		applications: make(map[domain.ApplicationID]domain.ScreeningApplication),
		candidates:   make(map[domain.CandidateID]domain.Candidate),
		jobOffers:    make(map[domain.JobOfferID]domain.JobOffer),
		byPair:       make(map[string]domain.ApplicationID),
	}
}

func pairKey(username, externalJobID string) string {
	return strings.ToLower(strings.TrimSpace(username)) + "\x00" + strings.TrimSpace(externalJobID)
}

// GetApplication implements [ApplicationReader].
func (m *MemoryApplications) GetApplication(_ context.Context, id domain.ApplicationID) (domain.ScreeningApplication, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.applications[id]
	if !ok {
		return domain.ScreeningApplication{}, ErrNotFound
	}
	return a, nil
}

// FindApplicationByUsernameAndJobOffer implements [ApplicationReader].
func (m *MemoryApplications) FindApplicationByUsernameAndJobOffer(_ context.Context, username, externalJobID string) (domain.ScreeningApplication, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byPair[pairKey(username, externalJobID)]
	if !ok {
		return domain.ScreeningApplication{}, ErrNotFound
	}
	return m.applications[id], nil
}

// GetCandidate implements [CandidateReader].
func (m *MemoryApplications) GetCandidate(_ context.Context, id domain.CandidateID) (domain.Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.candidates[id]
	if !ok {
		return domain.Candidate{}, ErrNotFound
	}
	return c, nil
}

// GetJobOffer implements [JobOfferReader].
func (m *MemoryApplications) GetJobOffer(_ context.Context, id domain.JobOfferID) (domain.JobOffer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.jobOffers[id]
	if !ok {
		return domain.JobOffer{}, ErrNotFound
	}
	return o, nil
}

// SaveApplicationGraph implements [ApplicationWriter]. The whole graph is
// written under one lock so readers never observe a partial state.
func (m *MemoryApplications) SaveApplicationGraph(_ context.Context, c domain.Candidate, o domain.JobOffer, a domain.ScreeningApplication) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.candidates[c.ID] = c
	m.jobOffers[o.ID] = o
	m.applications[a.ID] = a
	m.byPair[pairKey(c.Username, o.ExternalID)] = a.ID
	return nil
}

// MemoryCalls is the in-process [CallRepository]. Safe for concurrent use.
type MemoryCalls struct {
	mu    sync.RWMutex
	calls map[domain.CallID]domain.ScreeningCall
}

// NewMemoryCalls returns an empty MemoryCalls.
func NewMemoryCalls() *MemoryCalls {
	return &MemoryCalls{calls: make(map[domain.CallID]domain.ScreeningCall)}
}

// GetCall implements [CallReader].
func (m *MemoryCalls) GetCall(_ context.Context, id domain.CallID) (domain.ScreeningCall, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.calls[id]
	if !ok {
		return domain.ScreeningCall{}, ErrNotFound
	}
	return c, nil
}

// SaveCall implements [CallRepository].
func (m *MemoryCalls) SaveCall(_ context.Context, c domain.ScreeningCall) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[c.ID] = c
	return nil
}

// UpdateCallTranscript implements [CallRepository].
func (m *MemoryCalls) UpdateCallTranscript(_ context.Context, id domain.CallID, transcript []domain.TranscriptSegment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.calls[id]
	if !ok {
		return ErrNotFound
	}
	c.Transcript = append([]domain.TranscriptSegment(nil), transcript...)
	m.calls[id] = c
	return nil
}

// MarkCallCompleted implements [CallRepository].
func (m *MemoryCalls) MarkCallCompleted(ctx context.Context, id domain.CallID) error {
	return m.setStatus(id, domain.CallCompleted)
}

// MarkCallFailed implements [CallRepository].
func (m *MemoryCalls) MarkCallFailed(ctx context.Context, id domain.CallID) error {
	return m.setStatus(id, domain.CallFailed)
}

func (m *MemoryCalls) setStatus(id domain.CallID, status domain.CallStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.calls[id]
	if !ok {
		return ErrNotFound
	}
	c.Status = status
	now := time.Now().UTC()
	c.EndedAt = &now
	m.calls[id] = c
	return nil
}

// MemoryAnalyses is the in-process [AnalysisRepository]. Safe for concurrent
// use.
type MemoryAnalyses struct {
	mu            sync.RWMutex
	byApplication map[domain.ApplicationID]domain.ScreeningAnalysis
}

// NewMemoryAnalyses returns an empty MemoryAnalyses.
func NewMemoryAnalyses() *MemoryAnalyses {
	return &MemoryAnalyses{byApplication: make(map[domain.ApplicationID]domain.ScreeningAnalysis)}
}

// GetByApplication implements [AnalysisRepository].
func (m *MemoryAnalyses) GetByApplication(_ context.Context, id domain.ApplicationID) (domain.ScreeningAnalysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.byApplication[id]
	if !ok {
		return domain.ScreeningAnalysis{}, ErrNotFound
	}
	return a, nil
}

// UpsertByApplication implements [AnalysisRepository].
func (m *MemoryAnalyses) UpsertByApplication(_ context.Context, a domain.ScreeningAnalysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byApplication[a.ApplicationID] = a
	return nil
}

// MemoryEmbeddings is the in-process [EmbeddingRepository]. Safe for
// concurrent use.
type MemoryEmbeddings struct {
	mu         sync.RWMutex
	candidates map[domain.CandidateID][]float32
	jobOffers  map[domain.JobOfferID][]float32
}

// NewMemoryEmbeddings returns an empty MemoryEmbeddings.
func NewMemoryEmbeddings() *MemoryEmbeddings {
	return &MemoryEmbeddings{
		candidates: make(map[domain.CandidateID][]float32),
		jobOffers:  make(map[domain.JobOfferID][]float32),
	}
}

// SaveCandidateEmbedding implements [EmbeddingRepository].
func (m *MemoryEmbeddings) SaveCandidateEmbedding(_ context.Context, id domain.CandidateID, vec []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidates[id] = append([]float32(nil), vec...)
	return nil
}

// GetCandidateEmbedding implements [EmbeddingRepository].
func (m *MemoryEmbeddings) GetCandidateEmbedding(_ context.Context, id domain.CandidateID) ([]float32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	vec, ok := m.candidates[id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]float32(nil), vec...), nil
}

// SaveJobOfferEmbedding implements [EmbeddingRepository].
func (m *MemoryEmbeddings) SaveJobOfferEmbedding(_ context.Context, id domain.JobOfferID, vec []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobOffers[id] = append([]float32(nil), vec...)
	return nil
}

// GetJobOfferEmbedding implements [EmbeddingRepository].
func (m *MemoryEmbeddings) GetJobOfferEmbedding(_ context.Context, id domain.JobOfferID) ([]float32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	vec, ok := m.jobOffers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]float32(nil), vec...), nil
}
