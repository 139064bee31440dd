// Package application implements the intake flow: a candidate applies to a
// job offer, profile and offer are fetched from Torre, the application graph
// is persisted, and a JobOfferApplied event kicks off the asynchronous
// pipeline.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cmcp0/torreai-new-screening-process-approach/internal/domain"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/event"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/repo"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/torre"
)

var (
	// ErrInvalidArgument is returned when username or job offer id is blank.
	ErrInvalidArgument = errors.New("application: username and job_offer_id are required")

	// ErrCandidateNotFound is returned when the username has no Torre genome.
	ErrCandidateNotFound = errors.New("application: candidate not found")

	// ErrJobOfferNotFound is returned when the job offer id is unknown upstream.
	ErrJobOfferNotFound = errors.New("application: job offer not found")
)

// BiosLookup is the slice of the Torre client the service needs for
// candidate profiles.
type BiosLookup interface {
	GetBio(ctx context.Context, username string) (torre.Bio, error)
}

// OpportunityLookup is the slice of the Torre client the service needs for
// job offers.
type OpportunityLookup interface {
	GetOpportunity(ctx context.Context, externalID string) (torre.Opportunity, error)
}

// CreateResult is the outcome of [Service.CreateApplication].
type CreateResult struct {
	// ApplicationID identifies the new or already-existing application.
	ApplicationID domain.ApplicationID

	// Created is false when an application for the same (username, job
	// offer) pair already existed and was returned instead.
	Created bool
}

// Service coordinates application intake. Safe for concurrent use; requests
// for the same (username, job offer) pair are serialised so a concurrent
// double-submit cannot create two applications.
type Service struct {
	bios          BiosLookup
	opportunities OpportunityLookup
	repo          repo.ApplicationRepository
	publisher     event.Publisher

	locks *keyedMutex
}

// NewService wires a Service from its dependencies.
func NewService(bios BiosLookup, opportunities OpportunityLookup, applications repo.ApplicationRepository, publisher event.Publisher) *Service {
	return &Service{
		bios:          bios,
		opportunities: opportunities,
		repo:          applications,
		publisher:     publisher,
		locks:         newKeyedMutex(),
	}
}

// CreateApplication creates a screening application for the (username, job
// offer) pair, or returns the existing one. The candidate profile and the
// job offer are fetched from Torre on first application.
//
// When the application was persisted but the JobOfferApplied publish failed,
// the returned CreateResult is still valid alongside the non-nil error; the
// outbox relay will deliver the event later.
func (s *Service) CreateApplication(ctx context.Context, username, externalJobID string) (CreateResult, error) {
	username = strings.TrimSpace(username)
	externalJobID = strings.TrimSpace(externalJobID)
	if username == "" || externalJobID == "" {
		return CreateResult{}, ErrInvalidArgument
	}

	unlock := s.locks.lock(strings.ToLower(username) + "\x00" + externalJobID)
	defer unlock()

	existing, err := s.repo.FindApplicationByUsernameAndJobOffer(ctx, username, externalJobID)
	if err == nil {
		return CreateResult{ApplicationID: existing.ID, Created: false}, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return CreateResult{}, fmt.Errorf("application: lookup existing: %w", err)
	}

	bio, err := s.bios.GetBio(ctx, username)
	if err != nil {
		if errors.Is(err, torre.ErrNotFound) {
			return CreateResult{}, ErrCandidateNotFound
		}
		return CreateResult{}, fmt.Errorf("application: fetch bio: %w", err)
	}

	opportunity, err := s.opportunities.GetOpportunity(ctx, externalJobID)
	if err != nil {
		if errors.Is(err, torre.ErrNotFound) {
			return CreateResult{}, ErrJobOfferNotFound
		}
		return CreateResult{}, fmt.Errorf("application: fetch opportunity: %w", err)
	}

	candidate := domain.Candidate{
		ID:       domain.NewCandidateID(),
		Username: bio.Username,
		FullName: bio.FullName,
		Skills:   bio.Skills,
		Jobs:     bio.Jobs,
	}
	offer := domain.JobOffer{
		ID:               domain.NewJobOfferID(),
		ExternalID:       opportunity.ExternalID,
		Objective:        opportunity.Objective,
		Strengths:        opportunity.Strengths,
		Responsibilities: opportunity.Responsibilities,
	}
	app := domain.ScreeningApplication{
		ID:          domain.NewApplicationID(),
		CandidateID: candidate.ID,
		JobOfferID:  offer.ID,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.repo.SaveApplicationGraph(ctx, candidate, offer, app); err != nil {
		return CreateResult{}, fmt.Errorf("application: save: %w", err)
	}

	slog.Info("application created",
		"application_id", app.ID,
		"username", candidate.Username,
		"job_offer_id", offer.ExternalID)

	result := CreateResult{ApplicationID: app.ID, Created: true}
	if err := s.publisher.Publish(ctx, domain.JobOfferApplied{
		CandidateID:   candidate.ID,
		JobOfferID:    offer.ID,
		ApplicationID: app.ID,
		At:            time.Now().UTC(),
	}); err != nil {
		return result, fmt.Errorf("application: publish JobOfferApplied: %w", err)
	}
	return result, nil
}

// GetApplication returns the application with the given id, or
// [repo.ErrNotFound].
func (s *Service) GetApplication(ctx context.Context, id domain.ApplicationID) (domain.ScreeningApplication, error) {
	return s.repo.GetApplication(ctx, id)
}
