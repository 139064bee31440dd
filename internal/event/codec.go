package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cmcp0/torreai-new-screening-process-approach/internal/domain"
)

// Envelope is the self-describing on-wire form of a domain event. Payload
// fields are strings for identifiers and RFC 3339 for timestamps.
type Envelope struct {
	Type    string            `json:"type"`
	Payload map[string]string `json:"payload"`
}

// ErrUnknownEventType is returned by Decode for envelopes whose type field
// does not name a known event variant.
var ErrUnknownEventType = fmt.Errorf("event: unknown event type")

// Encode converts e into its envelope form.
func Encode(e domain.Event) (Envelope, error) {
	switch ev := e.(type) {
	case domain.JobOfferApplied:
		return Envelope{
			Type: string(domain.KindJobOfferApplied),
			Payload: map[string]string{
				"occurred_at":    ev.At.Format(time.RFC3339Nano),
				"candidate_id":   ev.CandidateID.String(),
				"job_offer_id":   ev.JobOfferID.String(),
				"application_id": ev.ApplicationID.String(),
			},
		}, nil
	case domain.CallFinished:
		return Envelope{
			Type: string(domain.KindCallFinished),
			Payload: map[string]string{
				"occurred_at":    ev.At.Format(time.RFC3339Nano),
				"application_id": ev.ApplicationID.String(),
				"call_id":        ev.CallID.String(),
			},
		}, nil
	case domain.AnalysisCompleted:
		return Envelope{
			Type: string(domain.KindAnalysisCompleted),
			Payload: map[string]string{
				"occurred_at":    ev.At.Format(time.RFC3339Nano),
				"application_id": ev.ApplicationID.String(),
				"analysis_id":    ev.AnalysisID.String(),
			},
		}, nil
	default:
		return Envelope{}, fmt.Errorf("event: encode: unsupported event %T", e)
	}
}

// Decode converts an envelope back into the domain event it encodes.
// Decode(Encode(e)) round-trips for every event variant.
func Decode(env Envelope) (domain.Event, error) {
	switch domain.EventKind(env.Type) {
	case domain.KindJobOfferApplied:
		at, err := payloadTime(env.Payload, "occurred_at")
		if err != nil {
			return nil, err
		}
		candidateID, err := payloadID(env.Payload, "candidate_id", domain.ParseCandidateID)
		if err != nil {
			return nil, err
		}
		jobOfferID, err := payloadID(env.Payload, "job_offer_id", domain.ParseJobOfferID)
		if err != nil {
			return nil, err
		}
		applicationID, err := payloadID(env.Payload, "application_id", domain.ParseApplicationID)
		if err != nil {
			return nil, err
		}
		return domain.JobOfferApplied{
			CandidateID:   candidateID,
			JobOfferID:    jobOfferID,
			ApplicationID: applicationID,
			At:            at,
		}, nil
	case domain.KindCallFinished:
		at, err := payloadTime(env.Payload, "occurred_at")
		if err != nil {
			return nil, err
		}
		applicationID, err := payloadID(env.Payload, "application_id", domain.ParseApplicationID)
		if err != nil {
			return nil, err
		}
		callID, err := payloadID(env.Payload, "call_id", domain.ParseCallID)
		if err != nil {
			return nil, err
		}
		return domain.CallFinished{
			ApplicationID: applicationID,
			CallID:        callID,
			At:            at,
		}, nil
	case domain.KindAnalysisCompleted:
		at, err := payloadTime(env.Payload, "occurred_at")
		if err != nil {
			return nil, err
		}
		applicationID, err := payloadID(env.Payload, "application_id", domain.ParseApplicationID)
		if err != nil {
			return nil, err
		}
		analysisID, err := payloadID(env.Payload, "analysis_id", domain.ParseAnalysisID)
		if err != nil {
			return nil, err
		}
		return domain.AnalysisCompleted{
			ApplicationID: applicationID,
			AnalysisID:    analysisID,
			At:            at,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, env.Type)
	}
}

// Marshal serialises e to envelope JSON bytes for broker transport.
func Marshal(e domain.Event) ([]byte, error) {
	env, err := Encode(e)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("event: marshal envelope: %w", err)
	}
	return data, nil
}

// Unmarshal parses envelope JSON bytes back into a domain event.
func Unmarshal(data []byte) (domain.Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("event: unmarshal envelope: %w", err)
	}
	return Decode(env)
}

func payloadTime(payload map[string]string, key string) (time.Time, error) {
	raw, ok := payload[key]
	if !ok {
		return time.Time{}, fmt.Errorf("event: decode: missing payload field %q", key)
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("event: decode %q: %w", key, err)
	}
	return t, nil
}

func payloadID[T any](payload map[string]string, key string, parse func(string) (T, error)) (T, error) {
	var zero T
	raw, ok := payload[key]
	if !ok {
		return zero, fmt.Errorf("event: decode: missing payload field %q", key)
	}
	id, err := parse(raw)
	if err != nil {
		return zero, fmt.Errorf("event: decode %q: %w", key, err)
	}
	return id, nil
}
