// Package event implements the durable event bus shared by the screening
// contexts: the envelope codec, the kind-keyed dispatcher, an in-process
// publisher, a RabbitMQ-backed publisher with a consumer loop, and the
// outbox-backed reliable wrapper that layers at-least-once delivery on top
// of either.
package event

import (
	"context"
	"errors"

	"github.com/cmcp0/torreai-new-screening-process-approach/internal/domain"
)

// ErrBrokerUnavailable is returned by publishers when the underlying broker
// cannot accept the event. Callers surface it as a 503 to HTTP clients.
var ErrBrokerUnavailable = errors.New("event: broker unavailable")

// Handler consumes a single domain event. Handlers must be idempotent:
// at-least-once delivery means the same event may be observed more than once.
type Handler func(ctx context.Context, e domain.Event) error

// Publisher delivers domain events to all subscribed consumers.
//
// Implementations must be safe for concurrent use.
type Publisher interface {
	// Publish delivers e. In-process implementations fan out to the local
	// dispatcher; broker-backed implementations enqueue to a durable queue
	// and return [ErrBrokerUnavailable] on connection or channel failure.
	Publish(ctx context.Context, e domain.Event) error
}

// Subscriber registers handlers for specific event kinds.
type Subscriber interface {
	// On registers h for events of the given kind. Registration is not safe
	// to interleave with dispatch; wire all handlers during composition.
	On(kind domain.EventKind, h Handler)
}
