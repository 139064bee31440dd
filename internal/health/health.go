// Package health serves the screening server's probe endpoints.
//
// GET /healthz answers 200 whenever the process serves HTTP. GET /readyz runs
// the registered dependency checks — the Postgres pool and the RabbitMQ
// broker in a full deployment — and answers 503 with the failing check named
// as soon as any of them errors. Both respond with a JSON body of the form
// {"status": ..., "checks": {...}}.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// probeTimeout caps each dependency check so a hung pool cannot stall the
// readiness probe past the orchestrator's own deadline.
const probeTimeout = 5 * time.Second

// Checker probes one dependency. Check returns nil when the dependency can
// serve traffic.
type Checker struct {
	// Name keys the check in the /readyz response ("database", "broker").
	Name string

	// Check must respect ctx cancellation.
	Check func(ctx context.Context) error
}

// Handler answers the liveness and readiness probes. Construct with [New];
// the checker set is immutable afterwards, so Handler is safe for concurrent
// use.
type Handler struct {
	checkers []Checker
}

// New creates a Handler over the given checkers. /readyz evaluates them in
// order and reports every result, not just the first failure.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: append([]Checker(nil), checkers...)}
}

// Register mounts /healthz and /readyz on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

type probeReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz is the liveness probe. Reaching the handler at all is the signal,
// so it unconditionally answers 200.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	h.respond(w, http.StatusOK, probeReport{Status: "ok"})
}

// Readyz is the readiness probe: 200 when every dependency check passes,
// 503 otherwise, with the per-check outcomes in the body either way.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	report := probeReport{
		Status: "ok",
		Checks: make(map[string]string, len(h.checkers)),
	}
	status := http.StatusOK

	for _, c := range h.checkers {
		if err := h.runCheck(r.Context(), c); err != nil {
			report.Checks[c.Name] = "fail: " + err.Error()
			report.Status = "fail"
			status = http.StatusServiceUnavailable
		} else {
			report.Checks[c.Name] = "ok"
		}
	}

	h.respond(w, status, report)
}

func (h *Handler) runCheck(ctx context.Context, c Checker) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return c.Check(ctx)
}

func (h *Handler) respond(w http.ResponseWriter, status int, report probeReport) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(report); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
