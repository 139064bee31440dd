package call

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cmcp0/torreai-new-screening-process-approach/internal/domain"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/repo"
	"github.com/cmcp0/torreai-new-screening-process-approach/pkg/provider/llm"
	llmmock "github.com/cmcp0/torreai-new-screening-process-approach/pkg/provider/llm/mock"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, e domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func newTestService() (*Service, *PromptStore, *repo.MemoryCalls, *capturePublisher) {
	prompts := NewPromptStore()
	calls := repo.NewMemoryCalls()
	pub := &capturePublisher{}
	return NewService(prompts, calls, pub), prompts, calls, pub
}

func TestStartCallRegistersActive(t *testing.T) {
	svc, _, calls, _ := newTestService()
	appID := domain.NewApplicationID()

	c, err := svc.StartCall(context.Background(), appID)
	if err != nil {
		t.Fatalf("StartCall: %v", err)
	}
	if !svc.IsApplicationInCall(appID) {
		t.Error("application should be marked in call")
	}
	if c.Status != domain.CallInProgress {
		t.Errorf("status = %q, want in_progress", c.Status)
	}

	saved, err := calls.GetCall(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("call was not persisted: %v", err)
	}
	if saved.ApplicationID != appID {
		t.Error("persisted call carries wrong application id")
	}
}

func TestStartCallRejectsSecondCall(t *testing.T) {
	svc, _, _, _ := newTestService()
	appID := domain.NewApplicationID()

	if _, err := svc.StartCall(context.Background(), appID); err != nil {
		t.Fatalf("first StartCall: %v", err)
	}
	if _, err := svc.StartCall(context.Background(), appID); !errors.Is(err, ErrCallActive) {
		t.Fatalf("second StartCall = %v, want ErrCallActive", err)
	}
}

func TestStartCallConcurrentSameApplication(t *testing.T) {
	svc, _, _, _ := newTestService()
	appID := domain.NewApplicationID()

	const n = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		started int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.StartCall(context.Background(), appID); err == nil {
				mu.Lock()
				started++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if started != 1 {
		t.Errorf("%d calls started, want exactly 1", started)
	}
}

func TestEndCallCompletesAndPublishes(t *testing.T) {
	svc, _, calls, pub := newTestService()
	appID := domain.NewApplicationID()

	c, err := svc.StartCall(context.Background(), appID)
	if err != nil {
		t.Fatalf("StartCall: %v", err)
	}

	transcript := []domain.TranscriptSegment{
		{Speaker: domain.SpeakerEmma, Text: "Hello!", Timestamp: 0.1},
		{Speaker: domain.SpeakerCandidate, Text: "Hi.", Timestamp: 2.4},
	}
	if err := svc.EndCall(context.Background(), appID, c.ID, transcript); err != nil {
		t.Fatalf("EndCall: %v", err)
	}

	if svc.IsApplicationInCall(appID) {
		t.Error("application should no longer be in call")
	}

	saved, err := calls.GetCall(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("GetCall: %v", err)
	}
	if saved.Status != domain.CallCompleted {
		t.Errorf("status = %q, want completed", saved.Status)
	}
	if len(saved.Transcript) != 2 {
		t.Errorf("transcript has %d segments, want 2", len(saved.Transcript))
	}

	if len(pub.events) != 1 {
		t.Fatalf("published %d events, want 1", len(pub.events))
	}
	finished, ok := pub.events[0].(domain.CallFinished)
	if !ok {
		t.Fatalf("published %T, want CallFinished", pub.events[0])
	}
	if finished.CallID != c.ID || finished.ApplicationID != appID {
		t.Error("CallFinished carries wrong identifiers")
	}
}

func TestEndCallReleasesSlotDespitePublishFailure(t *testing.T) {
	svc, _, _, pub := newTestService()
	appID := domain.NewApplicationID()

	c, err := svc.StartCall(context.Background(), appID)
	if err != nil {
		t.Fatalf("StartCall: %v", err)
	}
	pub.err = errors.New("broker down")

	if err := svc.EndCall(context.Background(), appID, c.ID, nil); err == nil {
		t.Fatal("expected publish error")
	}
	if svc.IsApplicationInCall(appID) {
		t.Error("slot should be released even when publish fails")
	}
	if _, err := svc.StartCall(context.Background(), appID); err != nil {
		t.Errorf("a follow-up call should be allowed: %v", err)
	}
}

func TestPromptForApplicationFallsBackToDefault(t *testing.T) {
	svc, prompts, _, _ := newTestService()
	appID := domain.NewApplicationID()

	p := svc.PromptForApplication(appID)
	if len(p.Questions) != 1 || p.Questions[0] != "Tell me about your background." {
		t.Errorf("default questions = %v", p.Questions)
	}
	if p.RoleContext != "Screening call." {
		t.Errorf("default role context = %q", p.RoleContext)
	}

	prompts.Set(appID, Prompt{Questions: []string{"Q1", "Q2"}, RoleContext: "Backend role."})
	p = svc.PromptForApplication(appID)
	if len(p.Questions) != 2 || p.RoleContext != "Backend role." {
		t.Errorf("stored prompt not returned: %+v", p)
	}
}

func TestEmmaAnswerRoleQuestion(t *testing.T) {
	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "The stack is Go and PostgreSQL."},
	}
	emma := NewEmma(provider)

	got := emma.AnswerRoleQuestion(context.Background(), "What is the stack?", "Stack: Go, PostgreSQL")
	if got != "The stack is Go and PostgreSQL." {
		t.Errorf("answer = %q", got)
	}

	if len(provider.CompleteCalls) != 1 {
		t.Fatalf("provider called %d times, want 1", len(provider.CompleteCalls))
	}
	req := provider.CompleteCalls[0].Req
	if req.SystemPrompt == "" || req.SystemPrompt == "What is the stack?" {
		t.Error("role context should be carried in the system prompt")
	}
	if len(req.Messages) != 1 || req.Messages[0].Content != "What is the stack?" {
		t.Errorf("messages = %+v", req.Messages)
	}
}

func TestEmmaAnswerRoleQuestionFallback(t *testing.T) {
	// No provider wired.
	if got := NewEmma(nil).AnswerRoleQuestion(context.Background(), "What is the role?", "ctx"); got != roleAnswerFallback {
		t.Errorf("answer = %q, want fallback", got)
	}

	// Provider fails.
	provider := &llmmock.Provider{CompleteErr: errors.New("model offline")}
	if got := NewEmma(provider).AnswerRoleQuestion(context.Background(), "What is the role?", "ctx"); got != roleAnswerFallback {
		t.Errorf("answer = %q, want fallback", got)
	}
}

func TestEmmaNextQuestion(t *testing.T) {
	emma := NewEmma(nil)
	questions := []string{"Q1", "Q2"}

	if q, ok := emma.NextQuestion(0, questions); !ok || q != "Q1" {
		t.Errorf("NextQuestion(0) = %q, %v", q, ok)
	}
	if q, ok := emma.NextQuestion(1, questions); !ok || q != "Q2" {
		t.Errorf("NextQuestion(1) = %q, %v", q, ok)
	}
	if _, ok := emma.NextQuestion(2, questions); ok {
		t.Error("NextQuestion past the end should report ok=false")
	}
}
