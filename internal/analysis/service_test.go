package analysis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cmcp0/torreai-new-screening-process-approach/internal/domain"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/repo"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *capturePublisher) Publish(_ context.Context, e domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

type fixture struct {
	svc        *Service
	apps       *repo.MemoryApplications
	calls      *repo.MemoryCalls
	analyses   *repo.MemoryAnalyses
	embeddings *repo.MemoryEmbeddings
	pub        *capturePublisher
}

func newFixture() *fixture {
	f := &fixture{
		apps:       repo.NewMemoryApplications(),
		calls:      repo.NewMemoryCalls(),
		analyses:   repo.NewMemoryAnalyses(),
		embeddings: repo.NewMemoryEmbeddings(),
		pub:        &capturePublisher{},
	}
	f.svc = NewService(f.calls, f.apps, f.analyses, f.embeddings, f.pub)
	return f
}

// seed persists a full application graph with a completed call and returns
// the ids involved.
func (f *fixture) seed(t *testing.T, transcript []domain.TranscriptSegment, strengths, candidateSkills []string) (domain.ApplicationID, domain.CallID, domain.CandidateID, domain.JobOfferID) {
	t.Helper()
	ctx := context.Background()

	candidate := domain.Candidate{ID: domain.NewCandidateID(), Username: "jdoe", FullName: "Jane Doe", Skills: candidateSkills}
	offer := domain.JobOffer{ID: domain.NewJobOfferID(), ExternalID: "job-1", Objective: "Backend engineer", Strengths: strengths}
	app := domain.ScreeningApplication{ID: domain.NewApplicationID(), CandidateID: candidate.ID, JobOfferID: offer.ID, CreatedAt: time.Now()}
	if err := f.apps.SaveApplicationGraph(ctx, candidate, offer, app); err != nil {
		t.Fatalf("seed graph: %v", err)
	}

	call := domain.ScreeningCall{
		ID:            domain.NewCallID(),
		ApplicationID: app.ID,
		Status:        domain.CallCompleted,
		StartedAt:     time.Now(),
		Transcript:    transcript,
	}
	if err := f.calls.SaveCall(ctx, call); err != nil {
		t.Fatalf("seed call: %v", err)
	}
	return app.ID, call.ID, candidate.ID, offer.ID
}

func TestRunAnalysisRuleBased(t *testing.T) {
	f := newFixture()
	transcript := []domain.TranscriptSegment{
		seg(domain.SpeakerEmma, "Hi"),
		seg(domain.SpeakerCandidate, "I have five years of Python and Java"),
		seg(domain.SpeakerEmma, "What interests you?"),
		seg(domain.SpeakerCandidate, "I like communication and teamwork"),
	}
	appID, callID, _, _ := f.seed(t, transcript, []string{"Python", "communication", "teamwork"}, nil)

	if err := f.svc.RunAnalysis(context.Background(), appID, callID); err != nil {
		t.Fatalf("RunAnalysis: %v", err)
	}

	a, err := f.analyses.GetByApplication(context.Background(), appID)
	if err != nil {
		t.Fatalf("GetByApplication: %v", err)
	}
	if a.FitScore != 90 {
		t.Errorf("fit score = %d, want 90", a.FitScore)
	}
	if len(a.Skills) != 3 {
		t.Errorf("skills = %v, want 3 matched strengths", a.Skills)
	}
	if a.Status != domain.AnalysisCompletedStatus {
		t.Errorf("status = %q, want completed", a.Status)
	}

	if len(f.pub.events) != 1 {
		t.Fatalf("published %d events, want 1", len(f.pub.events))
	}
	done, ok := f.pub.events[0].(domain.AnalysisCompleted)
	if !ok {
		t.Fatalf("published %T, want AnalysisCompleted", f.pub.events[0])
	}
	if done.ApplicationID != appID {
		t.Error("AnalysisCompleted carries wrong application id")
	}
}

func TestRunAnalysisEmbeddingPath(t *testing.T) {
	f := newFixture()
	transcript := []domain.TranscriptSegment{
		seg(domain.SpeakerEmma, "Hi"),
		seg(domain.SpeakerCandidate, "Hello there"),
	}
	appID, callID, candidateID, offerID := f.seed(t, transcript, nil, []string{"Go"})

	ctx := context.Background()
	// Identical vectors: cosine similarity 1 maps to a perfect score.
	if err := f.embeddings.SaveCandidateEmbedding(ctx, candidateID, []float32{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if err := f.embeddings.SaveJobOfferEmbedding(ctx, offerID, []float32{1, 2, 3}); err != nil {
		t.Fatal(err)
	}

	if err := f.svc.RunAnalysis(ctx, appID, callID); err != nil {
		t.Fatalf("RunAnalysis: %v", err)
	}
	a, err := f.analyses.GetByApplication(ctx, appID)
	if err != nil {
		t.Fatalf("GetByApplication: %v", err)
	}
	if a.FitScore != 100 {
		t.Errorf("fit score = %d, want 100 from the embedding path", a.FitScore)
	}
}

func TestRunAnalysisMissingCallPersistsDefault(t *testing.T) {
	f := newFixture()
	appID := domain.NewApplicationID()

	if err := f.svc.RunAnalysis(context.Background(), appID, domain.NewCallID()); err != nil {
		t.Fatalf("RunAnalysis: %v", err)
	}
	a, err := f.analyses.GetByApplication(context.Background(), appID)
	if err != nil {
		t.Fatalf("default analysis missing: %v", err)
	}
	if a.FitScore != 0 || len(a.Skills) != 0 || a.Status != domain.AnalysisCompletedStatus {
		t.Errorf("default analysis = %+v", a)
	}
}

func TestRunAnalysisIsIdempotentPerApplication(t *testing.T) {
	f := newFixture()
	transcript := []domain.TranscriptSegment{
		seg(domain.SpeakerEmma, "Hi"),
		seg(domain.SpeakerCandidate, "Hello"),
	}
	appID, callID, _, _ := f.seed(t, transcript, nil, nil)

	ctx := context.Background()
	if err := f.svc.RunAnalysis(ctx, appID, callID); err != nil {
		t.Fatal(err)
	}
	// Redelivered CallFinished runs the analysis again; still one row.
	if err := f.svc.RunAnalysis(ctx, appID, callID); err != nil {
		t.Fatal(err)
	}

	a, err := f.analyses.GetByApplication(ctx, appID)
	if err != nil {
		t.Fatalf("GetByApplication: %v", err)
	}
	if a.ApplicationID != appID {
		t.Error("analysis keyed to wrong application")
	}
}

func TestPersistFailed(t *testing.T) {
	f := newFixture()
	appID := domain.NewApplicationID()

	if err := f.svc.PersistFailed(context.Background(), appID); err != nil {
		t.Fatalf("PersistFailed: %v", err)
	}
	a, err := f.analyses.GetByApplication(context.Background(), appID)
	if err != nil {
		t.Fatalf("failed analysis missing: %v", err)
	}
	if a.Status != domain.AnalysisFailedStatus || a.FitScore != 0 || len(a.Skills) != 0 {
		t.Errorf("failed analysis = %+v", a)
	}
	if len(f.pub.events) != 0 {
		t.Errorf("failed state should not publish AnalysisCompleted, got %d events", len(f.pub.events))
	}
}

func TestGetForApplication(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// Unknown application.
	res, err := f.svc.GetForApplication(ctx, domain.NewApplicationID())
	if err != nil {
		t.Fatalf("GetForApplication: %v", err)
	}
	if res.FoundApplication {
		t.Error("unknown application reported as found")
	}

	// Application without analysis.
	appID, callID, _, _ := f.seed(t, []domain.TranscriptSegment{
		seg(domain.SpeakerEmma, "Hi"),
		seg(domain.SpeakerCandidate, "Hello"),
	}, nil, nil)
	res, err = f.svc.GetForApplication(ctx, appID)
	if err != nil {
		t.Fatalf("GetForApplication: %v", err)
	}
	if !res.FoundApplication || res.Analysis != nil {
		t.Errorf("pending analysis state = %+v", res)
	}

	// Analysis persisted.
	if err := f.svc.RunAnalysis(ctx, appID, callID); err != nil {
		t.Fatal(err)
	}
	res, err = f.svc.GetForApplication(ctx, appID)
	if err != nil {
		t.Fatalf("GetForApplication: %v", err)
	}
	if res.Analysis == nil {
		t.Fatal("analysis should be visible after RunAnalysis")
	}
	if res.Analysis.FitScore < 0 || res.Analysis.FitScore > 100 {
		t.Errorf("fit score out of range: %d", res.Analysis.FitScore)
	}
}
