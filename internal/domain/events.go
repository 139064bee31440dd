package domain

import "time"

// EventKind tags the concrete variant of a domain [Event].
type EventKind string

const (
	KindJobOfferApplied   EventKind = "JobOfferApplied"
	KindCallFinished      EventKind = "CallFinished"
	KindAnalysisCompleted EventKind = "AnalysisCompleted"
)

// Event is a domain event exchanged between the application, call, and
// analysis contexts. The concrete variants are [JobOfferApplied],
// [CallFinished], and [AnalysisCompleted].
type Event interface {
	// Kind returns the variant tag used for dispatch and envelope encoding.
	Kind() EventKind

	// OccurredAt returns when the event was raised.
	OccurredAt() time.Time
}

// JobOfferApplied is raised when a new screening application is created.
type JobOfferApplied struct {
	CandidateID   CandidateID
	JobOfferID    JobOfferID
	ApplicationID ApplicationID
	At            time.Time
}

// CallFinished is raised when a screening call ends, on any exit path of a
// successfully started call.
type CallFinished struct {
	ApplicationID ApplicationID
	CallID        CallID
	At            time.Time
}

// AnalysisCompleted is raised when a fit-score analysis has been persisted.
type AnalysisCompleted struct {
	ApplicationID ApplicationID
	AnalysisID    AnalysisID
	At            time.Time
}

func (e JobOfferApplied) Kind() EventKind   { return KindJobOfferApplied }
func (e CallFinished) Kind() EventKind      { return KindCallFinished }
func (e AnalysisCompleted) Kind() EventKind { return KindAnalysisCompleted }

func (e JobOfferApplied) OccurredAt() time.Time   { return e.At }
func (e CallFinished) OccurredAt() time.Time      { return e.At }
func (e AnalysisCompleted) OccurredAt() time.Time { return e.At }
