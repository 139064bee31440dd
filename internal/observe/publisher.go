package observe

import (
	"context"

	"github.com/cmcp0/torreai-new-screening-process-approach/internal/domain"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/event"
)

// Compile-time check that *InstrumentedPublisher satisfies [event.Publisher].
var _ event.Publisher = (*InstrumentedPublisher)(nil)

// InstrumentedPublisher decorates an [event.Publisher], counting every
// publish attempt by event kind and outcome.
type InstrumentedPublisher struct {
	delegate event.Publisher
	metrics  *Metrics
}

// InstrumentPublisher wraps delegate with publish counting on m.
func InstrumentPublisher(delegate event.Publisher, m *Metrics) *InstrumentedPublisher {
	return &InstrumentedPublisher{delegate: delegate, metrics: m}
}

// Publish implements [event.Publisher].
func (p *InstrumentedPublisher) Publish(ctx context.Context, e domain.Event) error {
	err := p.delegate.Publish(ctx, e)
	status := "ok"
	if err != nil {
		status = "error"
	}
	p.metrics.RecordEventPublished(ctx, string(e.Kind()), status)
	return err
}
