package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cmcp0/torreai-new-screening-process-approach/internal/domain"
)

func sampleGraph() (domain.Candidate, domain.JobOffer, domain.ScreeningApplication) {
	c := domain.Candidate{
		ID:       domain.NewCandidateID(),
		Username: "JDoe",
		FullName: "Jane Doe",
		Skills:   []string{"Go"},
	}
	o := domain.JobOffer{
		ID:         domain.NewJobOfferID(),
		ExternalID: "job-1",
		Objective:  "Backend engineer",
	}
	a := domain.ScreeningApplication{
		ID:          domain.NewApplicationID(),
		CandidateID: c.ID,
		JobOfferID:  o.ID,
		CreatedAt:   time.Now().UTC(),
	}
	return c, o, a
}

func TestMemoryApplicationsGraphRoundTrip(t *testing.T) {
	m := NewMemoryApplications()
	ctx := context.Background()
	c, o, a := sampleGraph()

	if _, err := m.GetApplication(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("empty repo: err = %v, want ErrNotFound", err)
	}

	if err := m.SaveApplicationGraph(ctx, c, o, a); err != nil {
		t.Fatalf("SaveApplicationGraph: %v", err)
	}

	got, err := m.GetApplication(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetApplication: %v", err)
	}
	if got.CandidateID != c.ID || got.JobOfferID != o.ID {
		t.Errorf("application = %+v", got)
	}

	if _, err := m.GetCandidate(ctx, c.ID); err != nil {
		t.Errorf("GetCandidate: %v", err)
	}
	if _, err := m.GetJobOffer(ctx, o.ID); err != nil {
		t.Errorf("GetJobOffer: %v", err)
	}
}

func TestMemoryApplicationsFindByPairIsCaseInsensitive(t *testing.T) {
	m := NewMemoryApplications()
	ctx := context.Background()
	c, o, a := sampleGraph()

	if err := m.SaveApplicationGraph(ctx, c, o, a); err != nil {
		t.Fatalf("SaveApplicationGraph: %v", err)
	}

	for _, username := range []string{"jdoe", "JDOE", "  jdoe  "} {
		got, err := m.FindApplicationByUsernameAndJobOffer(ctx, username, "job-1")
		if err != nil {
			t.Errorf("find %q: %v", username, err)
			continue
		}
		if got.ID != a.ID {
			t.Errorf("find %q returned %s, want %s", username, got.ID, a.ID)
		}
	}

	if _, err := m.FindApplicationByUsernameAndJobOffer(ctx, "jdoe", "job-2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("other job offer: err = %v, want ErrNotFound", err)
	}
}

func TestMemoryCallsLifecycle(t *testing.T) {
	m := NewMemoryCalls()
	ctx := context.Background()

	call := domain.ScreeningCall{
		ID:            domain.NewCallID(),
		ApplicationID: domain.NewApplicationID(),
		Status:        domain.CallInProgress,
		StartedAt:     time.Now().UTC(),
	}
	if err := m.SaveCall(ctx, call); err != nil {
		t.Fatalf("SaveCall: %v", err)
	}

	transcript := []domain.TranscriptSegment{
		{Speaker: domain.SpeakerEmma, Text: "Hello!", Timestamp: 0},
		{Speaker: domain.SpeakerCandidate, Text: "Hi.", Timestamp: 1.5},
	}
	if err := m.UpdateCallTranscript(ctx, call.ID, transcript); err != nil {
		t.Fatalf("UpdateCallTranscript: %v", err)
	}
	if err := m.MarkCallCompleted(ctx, call.ID); err != nil {
		t.Fatalf("MarkCallCompleted: %v", err)
	}

	got, err := m.GetCall(ctx, call.ID)
	if err != nil {
		t.Fatalf("GetCall: %v", err)
	}
	if got.Status != domain.CallCompleted || got.EndedAt == nil {
		t.Errorf("call after completion = %+v", got)
	}
	if len(got.Transcript) != 2 {
		t.Errorf("transcript has %d segments, want 2", len(got.Transcript))
	}

	// The stored transcript is a copy, not an alias of the caller's slice.
	transcript[0].Text = "mutated"
	got, _ = m.GetCall(ctx, call.ID)
	if got.Transcript[0].Text != "Hello!" {
		t.Error("stored transcript aliases the caller's slice")
	}
}

func TestMemoryCallsMarkUnknown(t *testing.T) {
	m := NewMemoryCalls()
	ctx := context.Background()

	if err := m.MarkCallCompleted(ctx, domain.NewCallID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkCallCompleted unknown: err = %v, want ErrNotFound", err)
	}
	if err := m.MarkCallFailed(ctx, domain.NewCallID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkCallFailed unknown: err = %v, want ErrNotFound", err)
	}
	if err := m.UpdateCallTranscript(ctx, domain.NewCallID(), nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateCallTranscript unknown: err = %v, want ErrNotFound", err)
	}
}

func TestMemoryAnalysesUpsert(t *testing.T) {
	m := NewMemoryAnalyses()
	ctx := context.Background()
	appID := domain.NewApplicationID()

	if _, err := m.GetByApplication(ctx, appID); !errors.Is(err, ErrNotFound) {
		t.Errorf("empty repo: err = %v, want ErrNotFound", err)
	}

	first := domain.ScreeningAnalysis{
		ID:            domain.NewAnalysisID(),
		ApplicationID: appID,
		FitScore:      40,
		Status:        domain.AnalysisCompletedStatus,
	}
	if err := m.UpsertByApplication(ctx, first); err != nil {
		t.Fatalf("UpsertByApplication: %v", err)
	}

	// A rerun replaces the analysis for the same application.
	second := first
	second.ID = domain.NewAnalysisID()
	second.FitScore = 85
	if err := m.UpsertByApplication(ctx, second); err != nil {
		t.Fatalf("UpsertByApplication: %v", err)
	}

	got, err := m.GetByApplication(ctx, appID)
	if err != nil {
		t.Fatalf("GetByApplication: %v", err)
	}
	if got.ID != second.ID || got.FitScore != 85 {
		t.Errorf("analysis after upsert = %+v", got)
	}
}

func TestMemoryEmbeddingsCopySemantics(t *testing.T) {
	m := NewMemoryEmbeddings()
	ctx := context.Background()

	candID := domain.NewCandidateID()
	vec := []float32{0.1, 0.2, 0.3}
	if err := m.SaveCandidateEmbedding(ctx, candID, vec); err != nil {
		t.Fatalf("SaveCandidateEmbedding: %v", err)
	}
	vec[0] = 99

	got, err := m.GetCandidateEmbedding(ctx, candID)
	if err != nil {
		t.Fatalf("GetCandidateEmbedding: %v", err)
	}
	if got[0] != 0.1 {
		t.Error("stored vector aliases the caller's slice")
	}

	if _, err := m.GetJobOfferEmbedding(ctx, domain.NewJobOfferID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing job offer vector: err = %v, want ErrNotFound", err)
	}
}
