package event

import (
	"context"
	"sync"

	"github.com/cmcp0/torreai-new-screening-process-approach/internal/domain"
)

// Compile-time check that *InMemoryPublisher satisfies [Publisher].
var _ Publisher = (*InMemoryPublisher)(nil)

// InMemoryPublisher fans events out to a local [Dispatcher]. Handlers run on
// a background goroutine per event so that publishing from request or dialog
// code never stalls the caller; within one event, handlers run sequentially.
//
// Used when no broker is configured. Publish never fails.
type InMemoryPublisher struct {
	dispatcher *Dispatcher

	wg sync.WaitGroup
}

// NewInMemoryPublisher returns a publisher that delivers through d.
func NewInMemoryPublisher(d *Dispatcher) *InMemoryPublisher {
	return &InMemoryPublisher{dispatcher: d}
}

// Publish delivers e to all registered handlers asynchronously.
func (p *InMemoryPublisher) Publish(_ context.Context, e domain.Event) error {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		// Handlers outlive the publishing request; they run to their own
		// completion and are never cancelled by the publisher.
		p.dispatcher.Dispatch(context.Background(), e)
	}()
	return nil
}

// Wait blocks until all in-flight handler invocations have returned.
// Intended for tests and orderly shutdown.
func (p *InMemoryPublisher) Wait() {
	p.wg.Wait()
}
