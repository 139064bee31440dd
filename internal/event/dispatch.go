package event

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cmcp0/torreai-new-screening-process-approach/internal/domain"
)

// Dispatcher routes each domain event to the handlers registered for its
// kind. A failing or panicking handler is logged; it never aborts the other
// handlers for the same event.
//
// Dispatcher implements [Subscriber]. All methods are safe for concurrent use.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[domain.EventKind][]Handler
}

// NewDispatcher returns an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[domain.EventKind][]Handler)}
}

// On registers h for events of the given kind.
func (d *Dispatcher) On(kind domain.EventKind, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = append(d.handlers[kind], h)
}

// Dispatch invokes every handler registered for e's kind, in registration
// order, logging failures so one handler's failure does not mask another's.
func (d *Dispatcher) Dispatch(ctx context.Context, e domain.Event) {
	_ = d.DispatchStrict(ctx, e)
}

// DispatchStrict is like [Dispatcher.Dispatch] but additionally reports an
// error when any handler failed. The broker consumer uses it to decide
// between ack and nack-with-requeue.
func (d *Dispatcher) DispatchStrict(ctx context.Context, e domain.Event) error {
	d.mu.RLock()
	handlers := d.handlers[e.Kind()]
	d.mu.RUnlock()

	failed := 0
	for _, h := range handlers {
		if err := runHandler(ctx, h, e); err != nil {
			slog.Error("event handler failed", "kind", e.Kind(), "err", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("event: %d handler(s) failed for %s", failed, e.Kind())
	}
	return nil
}

// runHandler invokes h, converting a panic into an error.
func runHandler(ctx context.Context, h Handler, e domain.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("event: handler panicked: %v", r)
		}
	}()
	return h(ctx, e)
}
