package event

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cmcp0/torreai-new-screening-process-approach/internal/domain"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/outbox"
)

// drainBatchSize caps how many pending rows one drain pass replays.
const drainBatchSize = 100

// minFlushInterval is the lower bound for the relay wake-up interval.
const minFlushInterval = 200 * time.Millisecond

// Compile-time check that *ReliablePublisher satisfies [Publisher].
var _ Publisher = (*ReliablePublisher)(nil)

// ReliablePublisher wraps any [Publisher] with outbox durability:
//
//   - Publish saves the envelope as a pending outbox record, attempts the
//     inner publish, and marks the record published or failed accordingly.
//     A failed inner publish is re-raised to the caller; the record stays
//     pending for the relay.
//   - Run drains pending rows every flush interval. Draining is guarded by
//     a non-blocking lock so concurrent drains skip instead of piling up,
//     and a drain pass stops at the first failure to avoid hot-looping
//     against a down broker.
type ReliablePublisher struct {
	delegate Publisher
	store    outbox.Store
	interval time.Duration

	draining sync.Mutex
}

// NewReliablePublisher wraps delegate with the outbox in store. A
// flushInterval below 200ms is raised to that floor.
func NewReliablePublisher(delegate Publisher, store outbox.Store, flushInterval time.Duration) *ReliablePublisher {
	if flushInterval < minFlushInterval {
		flushInterval = minFlushInterval
	}
	return &ReliablePublisher{delegate: delegate, store: store, interval: flushInterval}
}

// Publish implements [Publisher] with save-pending-first semantics. On
// success it also opportunistically drains any backlog.
func (p *ReliablePublisher) Publish(ctx context.Context, e domain.Event) error {
	env, err := Encode(e)
	if err != nil {
		return err
	}
	body, err := Marshal(e)
	if err != nil {
		return err
	}

	id, err := p.store.SavePending(ctx, env.Type, body)
	if err != nil {
		return err
	}

	if err := p.delegate.Publish(ctx, e); err != nil {
		if markErr := p.store.MarkFailedAttempt(ctx, id, err.Error()); markErr != nil {
			slog.Warn("outbox mark failed attempt", "id", id, "err", markErr)
		}
		return err
	}

	if err := p.store.MarkPublished(ctx, id); err != nil {
		slog.Warn("outbox mark published", "id", id, "err", err)
	}
	p.drainPending(ctx)
	return nil
}

// Run is the relay loop: it wakes every flush interval and drains pending
// rows until ctx is cancelled.
func (p *ReliablePublisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	slog.Info("outbox relay started", "flush_interval", p.interval)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.drainPending(ctx)
		}
	}
}

// drainPending replays pending outbox rows through the delegate. Contending
// callers skip; within one pass, the first failed publish is recorded and
// ends the pass.
func (p *ReliablePublisher) drainPending(ctx context.Context) {
	if !p.draining.TryLock() {
		return
	}
	defer p.draining.Unlock()

	pending, err := p.store.ListPending(ctx, drainBatchSize)
	if err != nil {
		slog.Warn("outbox list pending", "err", err)
		return
	}

	for _, row := range pending {
		e, err := Unmarshal(row.Payload)
		if err != nil {
			// Undecodable rows would wedge the queue head; record and skip.
			slog.Error("outbox row is undecodable", "id", row.ID, "err", err)
			if markErr := p.store.MarkFailedAttempt(ctx, row.ID, err.Error()); markErr != nil {
				slog.Warn("outbox mark failed attempt", "id", row.ID, "err", markErr)
			}
			continue
		}

		if err := p.delegate.Publish(ctx, e); err != nil {
			if markErr := p.store.MarkFailedAttempt(ctx, row.ID, err.Error()); markErr != nil {
				slog.Warn("outbox mark failed attempt", "id", row.ID, "err", markErr)
			}
			slog.Warn("outbox replay failed", "id", row.ID, "event_type", row.EventType, "err", err)
			break
		}
		if err := p.store.MarkPublished(ctx, row.ID); err != nil {
			slog.Warn("outbox mark published", "id", row.ID, "err", err)
		}
	}
}
