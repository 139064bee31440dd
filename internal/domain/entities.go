package domain

import "time"

// PriorJob is a single prior position on a candidate's record.
type PriorJob struct {
	Title        string `json:"title"`
	Organization string `json:"organization"`
}

// Candidate is a person applying to job offers. Created on first application
// and upserted (merge by id) thereafter.
type Candidate struct {
	ID       CandidateID
	Username string
	FullName string
	Skills   []string
	Jobs     []PriorJob
}

// JobOffer is an open position as received from the upstream lookup.
type JobOffer struct {
	ID               JobOfferID
	ExternalID       string
	Objective        string
	Strengths        []string
	Responsibilities []string
}

// ScreeningApplication links a candidate to a job offer. At most one
// application exists per (lowercase username, external job id) pair;
// applications are immutable once created.
type ScreeningApplication struct {
	ID          ApplicationID
	CandidateID CandidateID
	JobOfferID  JobOfferID
	CreatedAt   time.Time
}

// CallStatus is the lifecycle state of a screening call.
type CallStatus string

const (
	CallInProgress CallStatus = "in_progress"
	CallCompleted  CallStatus = "completed"
	CallFailed     CallStatus = "failed"
)

// Speaker identifies who produced a transcript segment.
type Speaker string

const (
	SpeakerEmma      Speaker = "emma"
	SpeakerCandidate Speaker = "candidate"
)

// TranscriptSegment is one utterance within a call transcript. Timestamp is
// monotonic seconds since call start; segments are appended strictly in event
// arrival order.
type TranscriptSegment struct {
	Speaker   Speaker `json:"speaker"`
	Text      string  `json:"text"`
	Timestamp float64 `json:"timestamp"`
}

// ScreeningCall is one interview session. At most one in-progress call exists
// per application at any moment, process-wide.
type ScreeningCall struct {
	ID            CallID
	ApplicationID ApplicationID
	Status        CallStatus
	StartedAt     time.Time
	EndedAt       *time.Time
	Transcript    []TranscriptSegment
}

// AnalysisStatus is the terminal state of a screening analysis.
type AnalysisStatus string

const (
	AnalysisCompletedStatus AnalysisStatus = "completed"
	AnalysisFailedStatus    AnalysisStatus = "failed"
)

// ScreeningAnalysis is the fit-score result for an application. At most one
// analysis exists per application; writes use upsert-by-application semantics.
type ScreeningAnalysis struct {
	ID            AnalysisID
	ApplicationID ApplicationID
	FitScore      int // in [0, 100]
	Skills        []string
	CompletedAt   time.Time
	Status        AnalysisStatus
}
