// Package observe provides the observability primitives for the screening
// service: OpenTelemetry metric instruments, a Prometheus exporter bridge,
// and HTTP middleware that records request latency and logs completions.
//
// Metrics are recorded through the OpenTelemetry Metrics API and scraped via
// the standard /metrics endpoint. A package-level default [Metrics] instance
// ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all screening metrics.
const meterName = "github.com/cmcp0/torreai-new-screening-process-approach"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram

	// CallDuration tracks end-to-end screening call duration.
	CallDuration metric.Float64Histogram

	// AnalysisDuration tracks fit-score analysis latency.
	AnalysisDuration metric.Float64Histogram

	// --- Counters ---

	// EventsPublished counts published domain events. Use with attributes:
	//   attribute.String("kind", ...), attribute.String("status", ...)
	EventsPublished metric.Int64Counter

	// CallsStarted counts accepted screening calls.
	CallsStarted metric.Int64Counter

	// CallsFinished counts finished screening calls. Use with attribute:
	//   attribute.String("status", ...)
	CallsFinished metric.Int64Counter

	// AnalysesRun counts analysis outcomes. Use with attribute:
	//   attribute.String("status", ...)
	AnalysesRun metric.Int64Counter

	// --- Gauges ---

	// ActiveCalls tracks the number of live interview sessions.
	ActiveCalls metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) covering
// both sub-second HTTP requests and multi-minute interview calls.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.HTTPRequestDuration, err = m.Float64Histogram("screening.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CallDuration, err = m.Float64Histogram("screening.call.duration",
		metric.WithDescription("End-to-end screening call duration."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AnalysisDuration, err = m.Float64Histogram("screening.analysis.duration",
		metric.WithDescription("Latency of the fit-score analysis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.EventsPublished, err = m.Int64Counter("screening.events.published",
		metric.WithDescription("Total published domain events by kind and status."),
	); err != nil {
		return nil, err
	}
	if met.CallsStarted, err = m.Int64Counter("screening.calls.started",
		metric.WithDescription("Total accepted screening calls."),
	); err != nil {
		return nil, err
	}
	if met.CallsFinished, err = m.Int64Counter("screening.calls.finished",
		metric.WithDescription("Total finished screening calls by terminal status."),
	); err != nil {
		return nil, err
	}
	if met.AnalysesRun, err = m.Int64Counter("screening.analyses.run",
		metric.WithDescription("Total fit-score analyses by outcome."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveCalls, err = m.Int64UpDownCounter("screening.active_calls",
		metric.WithDescription("Number of live interview sessions."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordEventPublished records a published domain event with the standard
// attribute set.
func (m *Metrics) RecordEventPublished(ctx context.Context, kind, status string) {
	m.EventsPublished.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordCallStarted records one accepted call and bumps the active gauge.
func (m *Metrics) RecordCallStarted(ctx context.Context) {
	m.CallsStarted.Add(ctx, 1)
	m.ActiveCalls.Add(ctx, 1)
}

// RecordCallFinished records one finished call with its terminal status,
// releases the active gauge, and records the call duration.
func (m *Metrics) RecordCallFinished(ctx context.Context, status string, seconds float64) {
	m.CallsFinished.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
	m.ActiveCalls.Add(ctx, -1)
	m.CallDuration.Record(ctx, seconds)
}

// RecordAnalysis records one analysis outcome and its latency.
func (m *Metrics) RecordAnalysis(ctx context.Context, status string, seconds float64) {
	m.AnalysesRun.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
	m.AnalysisDuration.Record(ctx, seconds)
}
