package outbox

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestMemoryStorePendingLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first, err := s.SavePending(ctx, "JobOfferApplied", []byte(`{"type":"JobOfferApplied"}`))
	if err != nil {
		t.Fatalf("SavePending: %v", err)
	}
	second, err := s.SavePending(ctx, "CallFinished", []byte(`{"type":"CallFinished"}`))
	if err != nil {
		t.Fatalf("SavePending: %v", err)
	}

	pending, err := s.ListPending(ctx, 0)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("%d pending, want 2", len(pending))
	}

	if err := s.MarkPublished(ctx, first); err != nil {
		t.Fatalf("MarkPublished: %v", err)
	}
	pending, _ = s.ListPending(ctx, 0)
	if len(pending) != 1 || pending[0].ID != second {
		t.Errorf("pending after publish = %+v, want only the second record", pending)
	}
	if pending[0].EventType != "CallFinished" {
		t.Errorf("event type = %q", pending[0].EventType)
	}
}

func TestMemoryStoreListPendingLimit(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for range 5 {
		if _, err := s.SavePending(ctx, "CallFinished", []byte("{}")); err != nil {
			t.Fatalf("SavePending: %v", err)
		}
	}

	pending, err := s.ListPending(ctx, 3)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 3 {
		t.Errorf("%d pending returned, want the limit of 3", len(pending))
	}
}

func TestMemoryStoreMarkFailedAttempt(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	id, err := s.SavePending(ctx, "CallFinished", []byte("{}"))
	if err != nil {
		t.Fatalf("SavePending: %v", err)
	}

	if err := s.MarkFailedAttempt(ctx, id, "dial refused"); err != nil {
		t.Fatalf("MarkFailedAttempt: %v", err)
	}
	if err := s.MarkFailedAttempt(ctx, id, strings.Repeat("x", 5000)); err != nil {
		t.Fatalf("MarkFailedAttempt: %v", err)
	}

	pending, _ := s.ListPending(ctx, 0)
	if len(pending) != 1 {
		t.Fatalf("record disappeared after failed attempts")
	}
	if pending[0].Attempts != 2 {
		t.Errorf("attempts = %d, want 2", pending[0].Attempts)
	}
	if len(pending[0].LastError) != maxErrorLen {
		t.Errorf("last error length = %d, want truncated to %d", len(pending[0].LastError), maxErrorLen)
	}
}

func TestMemoryStoreIgnoresUnknownIDs(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.MarkPublished(ctx, uuid.New()); err != nil {
		t.Errorf("MarkPublished unknown id: %v", err)
	}
	if err := s.MarkFailedAttempt(ctx, uuid.New(), "whatever"); err != nil {
		t.Errorf("MarkFailedAttempt unknown id: %v", err)
	}
}
