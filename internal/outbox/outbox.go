// Package outbox provides durable pending/published bookkeeping for event
// publishing. An event is saved as a pending record before the broker
// publish is attempted; the reliable publisher marks it published on success
// and records failed attempts otherwise, giving at-least-once delivery
// across broker outages.
package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// maxErrorLen caps the stored last-error text.
const maxErrorLen = 1000

// Record is one row of the outbox. A record is pending iff PublishedAt is nil.
type Record struct {
	ID          uuid.UUID
	EventType   string
	Payload     []byte // envelope JSON
	Attempts    int
	CreatedAt   time.Time
	PublishedAt *time.Time
	LastError   string
}

// Pending reports whether the record still awaits a successful publish.
func (r Record) Pending() bool { return r.PublishedAt == nil }

// Store is the durable outbox. Implementations must tolerate concurrent
// writers: every operation is a point operation by id, guarded by row-level
// semantics or a mutex.
type Store interface {
	// SavePending inserts a new pending record and returns its id.
	SavePending(ctx context.Context, eventType string, payload []byte) (uuid.UUID, error)

	// ListPending returns up to limit pending records, oldest first.
	ListPending(ctx context.Context, limit int) ([]Record, error)

	// MarkPublished stamps the record as successfully published.
	MarkPublished(ctx context.Context, id uuid.UUID) error

	// MarkFailedAttempt increments the attempt counter and stores the error
	// text, truncated to 1000 characters. Unknown ids are ignored.
	MarkFailedAttempt(ctx context.Context, id uuid.UUID, publishErr string) error
}

// truncateError clips err text to the stored column width.
func truncateError(s string) string {
	if len(s) > maxErrorLen {
		return s[:maxErrorLen]
	}
	return s
}
