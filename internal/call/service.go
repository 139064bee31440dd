package call

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cmcp0/torreai-new-screening-process-approach/internal/domain"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/event"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/repo"
)

// ErrCallActive is returned by StartCall when the application already has an
// in-progress call. The websocket handler surfaces it as close code 4409.
var ErrCallActive = errors.New("call: call already active for this application")

// Service owns the call lifecycle. It enforces the single-active-call rule
// per application process-wide, persists call records and transcripts, and
// publishes CallFinished when a call ends.
//
// Safe for concurrent use.
type Service struct {
	prompts   PromptLookup
	calls     repo.CallRepository
	publisher event.Publisher

	mu     sync.Mutex
	active map[domain.ApplicationID]domain.CallID
}

// NewService wires a Service. Pass [repo.NoCalls] when call persistence is
// not configured.
func NewService(prompts PromptLookup, calls repo.CallRepository, publisher event.Publisher) *Service {
	return &Service{
		prompts:   prompts,
		calls:     calls,
		publisher: publisher,
		active:    make(map[domain.ApplicationID]domain.CallID),
	}
}

// IsApplicationInCall reports whether the application has an in-progress call.
func (s *Service) IsApplicationInCall(id domain.ApplicationID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[id]
	return ok
}

// PromptForApplication returns the interview script prepared for the
// application, or the default script when none was generated.
func (s *Service) PromptForApplication(id domain.ApplicationID) Prompt {
	if p, ok := s.prompts.PromptFor(id); ok {
		return p
	}
	return DefaultPrompt()
}

// StartCall creates an in-progress call for the application and registers it
// as active. Returns [ErrCallActive] when another call holds the slot; the
// registration check and the claim are one atomic step, so two concurrent
// connections for the same application cannot both start.
func (s *Service) StartCall(ctx context.Context, applicationID domain.ApplicationID) (domain.ScreeningCall, error) {
	call := domain.ScreeningCall{
		ID:            domain.NewCallID(),
		ApplicationID: applicationID,
		Status:        domain.CallInProgress,
		StartedAt:     time.Now().UTC(),
		Transcript:    []domain.TranscriptSegment{},
	}

	s.mu.Lock()
	if _, ok := s.active[applicationID]; ok {
		s.mu.Unlock()
		return domain.ScreeningCall{}, ErrCallActive
	}
	s.active[applicationID] = call.ID
	s.mu.Unlock()

	if err := s.calls.SaveCall(ctx, call); err != nil {
		s.unregister(applicationID)
		return domain.ScreeningCall{}, fmt.Errorf("call: save call: %w", err)
	}

	slog.Info("call started", "call_id", call.ID, "application_id", applicationID)
	return call, nil
}

// EndCall releases the application's active-call slot, persists the final
// transcript, marks the call completed, and publishes CallFinished. The slot
// is released first so a follow-up call can start even if persistence fails.
//
// A transcript that cannot be written marks the call failed instead of
// completed; the CallFinished event is published on every exit path.
func (s *Service) EndCall(ctx context.Context, applicationID domain.ApplicationID, callID domain.CallID, transcript []domain.TranscriptSegment) error {
	s.unregister(applicationID)

	var errs []error
	if err := s.calls.UpdateCallTranscript(ctx, callID, transcript); err != nil {
		errs = append(errs, fmt.Errorf("call: update transcript: %w", err))
		if err := s.calls.MarkCallFailed(ctx, callID); err != nil {
			errs = append(errs, fmt.Errorf("call: mark failed: %w", err))
		}
	} else if err := s.calls.MarkCallCompleted(ctx, callID); err != nil {
		errs = append(errs, fmt.Errorf("call: mark completed: %w", err))
	}

	if err := s.publisher.Publish(ctx, domain.CallFinished{
		ApplicationID: applicationID,
		CallID:        callID,
		At:            time.Now().UTC(),
	}); err != nil {
		errs = append(errs, fmt.Errorf("call: publish CallFinished: %w", err))
	}

	slog.Info("call ended",
		"call_id", callID,
		"application_id", applicationID,
		"segments", len(transcript))
	return errors.Join(errs...)
}

func (s *Service) unregister(applicationID domain.ApplicationID) {
	s.mu.Lock()
	delete(s.active, applicationID)
	s.mu.Unlock()
}
