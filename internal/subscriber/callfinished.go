package subscriber

import (
	"context"
	"log/slog"
	"time"

	"github.com/cmcp0/torreai-new-screening-process-approach/internal/analysis"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/domain"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/event"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/observe"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/resilience"
)

const (
	analysisRetries = 3
	analysisBackoff = time.Second
)

// AnalysisRunner triggers the fit-score analysis when a call finishes.
// Exhausting the retry budget persists a failed analysis so clients polling
// for a result see a terminal state instead of waiting forever.
type AnalysisRunner struct {
	svc     *analysis.Service
	metrics *observe.Metrics

	backoffBase time.Duration
}

// NewAnalysisRunner wires the runner.
func NewAnalysisRunner(svc *analysis.Service) *AnalysisRunner {
	return &AnalysisRunner{
		svc:         svc,
		metrics:     observe.DefaultMetrics(),
		backoffBase: analysisBackoff,
	}
}

// Register subscribes the handler for CallFinished.
func (r *AnalysisRunner) Register(sub event.Subscriber) {
	sub.On(domain.KindCallFinished, r.Handle)
}

// Handle runs the analysis for a CallFinished event.
func (r *AnalysisRunner) Handle(ctx context.Context, evt domain.Event) error {
	e, ok := evt.(domain.CallFinished)
	if !ok {
		return nil
	}

	start := time.Now()
	err := resilience.Retry(ctx, "run-analysis", analysisRetries, r.backoffBase, func(ctx context.Context) error {
		return r.svc.RunAnalysis(ctx, e.ApplicationID, e.CallID)
	})
	if err == nil {
		r.metrics.RecordAnalysis(ctx, "completed", time.Since(start).Seconds())
		return nil
	}

	slog.Error("analysis failed after retries, persisting failed state",
		"application_id", e.ApplicationID, "call_id", e.CallID, "error", err)
	r.metrics.RecordAnalysis(ctx, "failed", time.Since(start).Seconds())
	return r.svc.PersistFailed(ctx, e.ApplicationID)
}
