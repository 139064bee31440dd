package outbox

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Compile-time check that *MemoryStore satisfies [Store].
var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-process [Store] used when no database is configured
// and throughout the test suite. Safe for concurrent use.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*Record
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[uuid.UUID]*Record)}
}

// SavePending implements [Store].
func (s *MemoryStore) SavePending(_ context.Context, eventType string, payload []byte) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New()
	s.rows[id] = &Record{
		ID:        id,
		EventType: eventType,
		Payload:   append([]byte(nil), payload...),
		CreatedAt: time.Now().UTC(),
	}
	return id, nil
}

// ListPending implements [Store].
func (s *MemoryStore) ListPending(_ context.Context, limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := make([]Record, 0, len(s.rows))
	for _, r := range s.rows {
		if r.Pending() {
			pending = append(pending, *r)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

// MarkPublished implements [Store].
func (s *MemoryStore) MarkPublished(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.rows[id]; ok {
		now := time.Now().UTC()
		r.PublishedAt = &now
	}
	return nil
}

// MarkFailedAttempt implements [Store].
func (s *MemoryStore) MarkFailedAttempt(_ context.Context, id uuid.UUID, publishErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.rows[id]; ok {
		r.Attempts++
		r.LastError = truncateError(publishErr)
	}
	return nil
}
