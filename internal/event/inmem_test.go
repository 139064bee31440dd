package event

import (
	"context"
	"sync"
	"testing"

	"github.com/cmcp0/torreai-new-screening-process-approach/internal/domain"
)

func TestInMemoryPublisherDeliversAsynchronously(t *testing.T) {
	d := NewDispatcher()

	var mu sync.Mutex
	var got []domain.Event
	d.On(domain.KindCallFinished, func(_ context.Context, e domain.Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e)
		return nil
	})

	p := NewInMemoryPublisher(d)
	want := callFinished()
	for range 3 {
		if err := p.Publish(context.Background(), want); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	p.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 3 {
		t.Fatalf("delivered %d events, want 3", len(got))
	}
	if got[0] != domain.Event(want) {
		t.Errorf("delivered %+v, want %+v", got[0], want)
	}
}

func TestInMemoryPublisherIgnoresCallerCancellation(t *testing.T) {
	d := NewDispatcher()

	sawLiveContext := false
	d.On(domain.KindCallFinished, func(ctx context.Context, _ domain.Event) error {
		sawLiveContext = ctx.Err() == nil
		return nil
	})

	p := NewInMemoryPublisher(d)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Publish(ctx, callFinished()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	p.Wait()

	if !sawLiveContext {
		t.Error("handler saw a cancelled context; delivery must outlive the publishing request")
	}
}
