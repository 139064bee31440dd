// Package domain holds the entity model shared by the screening bounded
// contexts: typed identifiers, the application/call/analysis records, and the
// domain events exchanged between them.
package domain

import "github.com/google/uuid"

// ApplicationID identifies a screening application.
type ApplicationID struct{ value uuid.UUID }

// CandidateID identifies a candidate.
type CandidateID struct{ value uuid.UUID }

// JobOfferID identifies a job offer.
type JobOfferID struct{ value uuid.UUID }

// CallID identifies a screening call.
type CallID struct{ value uuid.UUID }

// AnalysisID identifies a screening analysis.
type AnalysisID struct{ value uuid.UUID }

// NewApplicationID returns a freshly generated ApplicationID.
func NewApplicationID() ApplicationID { return ApplicationID{uuid.New()} }

// NewCandidateID returns a freshly generated CandidateID.
func NewCandidateID() CandidateID { return CandidateID{uuid.New()} }

// NewJobOfferID returns a freshly generated JobOfferID.
func NewJobOfferID() JobOfferID { return JobOfferID{uuid.New()} }

// NewCallID returns a freshly generated CallID.
func NewCallID() CallID { return CallID{uuid.New()} }

// NewAnalysisID returns a freshly generated AnalysisID.
func NewAnalysisID() AnalysisID { return AnalysisID{uuid.New()} }

// ParseApplicationID parses s as a UUID-backed ApplicationID.
func ParseApplicationID(s string) (ApplicationID, error) {
	v, err := uuid.Parse(s)
	return ApplicationID{v}, err
}

// ParseCandidateID parses s as a UUID-backed CandidateID.
func ParseCandidateID(s string) (CandidateID, error) {
	v, err := uuid.Parse(s)
	return CandidateID{v}, err
}

// ParseJobOfferID parses s as a UUID-backed JobOfferID.
func ParseJobOfferID(s string) (JobOfferID, error) {
	v, err := uuid.Parse(s)
	return JobOfferID{v}, err
}

// ParseCallID parses s as a UUID-backed CallID.
func ParseCallID(s string) (CallID, error) {
	v, err := uuid.Parse(s)
	return CallID{v}, err
}

// ParseAnalysisID parses s as a UUID-backed AnalysisID.
func ParseAnalysisID(s string) (AnalysisID, error) {
	v, err := uuid.Parse(s)
	return AnalysisID{v}, err
}

func (id ApplicationID) String() string { return id.value.String() }
func (id CandidateID) String() string   { return id.value.String() }
func (id JobOfferID) String() string    { return id.value.String() }
func (id CallID) String() string        { return id.value.String() }
func (id AnalysisID) String() string    { return id.value.String() }

// IsZero reports whether the identifier is the zero value.
func (id ApplicationID) IsZero() bool { return id.value == uuid.Nil }
func (id CandidateID) IsZero() bool   { return id.value == uuid.Nil }
func (id JobOfferID) IsZero() bool    { return id.value == uuid.Nil }
func (id CallID) IsZero() bool        { return id.value == uuid.Nil }
func (id AnalysisID) IsZero() bool    { return id.value == uuid.Nil }
