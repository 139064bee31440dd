// Package httpapi exposes the screening service over HTTP and WebSocket:
// application intake, analysis polling, the live interview socket, and the
// operational endpoints (health, readiness, metrics).
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cmcp0/torreai-new-screening-process-approach/internal/analysis"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/application"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/call"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/call/dialog"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/health"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/observe"
	"github.com/cmcp0/torreai-new-screening-process-approach/pkg/provider/stt"
)

// Config wires a [Server] from its collaborators. Applications, Calls, and
// Analyses are required; the rest have working zero values.
type Config struct {
	Applications *application.Service
	Calls        *call.Service
	Analyses     *analysis.Service

	// Emma generates the interviewer's lines during a call. A nil provider
	// inside is fine; role questions then get the static fallback answer.
	Emma *call.Emma

	// Transcriber turns candidate audio into text. Nil disables the audio
	// path; text messages still work.
	Transcriber stt.Provider

	// Dialog tunes the interview state machine timeouts.
	Dialog dialog.Config

	// Health serves /healthz and /readyz. Nil mounts a checker-less handler.
	Health *health.Handler

	// Metrics records request and call metrics. Nil selects
	// [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// AllowedOrigins lists origins allowed by the CORS middleware. "*"
	// allows any origin. Empty disables cross-origin access.
	AllowedOrigins []string
}

// Server is the HTTP surface of the screening service.
type Server struct {
	applications *application.Service
	calls        *call.Service
	analyses     *analysis.Service
	emma         *call.Emma
	transcriber  stt.Provider
	dialog       dialog.Config
	health       *health.Handler
	metrics      *observe.Metrics
	origins      []string
}

// NewServer creates a Server from cfg.
func NewServer(cfg Config) *Server {
	if cfg.Health == nil {
		cfg.Health = health.New()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &Server{
		applications: cfg.Applications,
		calls:        cfg.Calls,
		analyses:     cfg.Analyses,
		emma:         cfg.Emma,
		transcriber:  cfg.Transcriber,
		dialog:       cfg.Dialog,
		health:       cfg.Health,
		metrics:      cfg.Metrics,
		origins:      cfg.AllowedOrigins,
	}
}

// Handler returns the full route tree wrapped in the CORS and observability
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/applications", s.handleCreateApplication)
	mux.HandleFunc("GET /api/applications/{id}/analysis", s.handleGetAnalysis)
	mux.HandleFunc("GET /api/ws/call", s.handleCallSocket)

	s.health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(s.metrics)(s.cors(mux))
}

// ── CORS ──────────────────────────────────────────────────────────────────────

// cors applies the allowed-origins policy: matching origins get the CORS
// response headers, preflight requests are answered directly with 204.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.origins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// ── JSON helpers ──────────────────────────────────────────────────────────────

// errorBody matches the {"detail": …} error shape clients already parse.
type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"detail":"encoding error"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}
