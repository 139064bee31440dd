// Package app wires all screening subsystems into a running service.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems from the configuration, Run executes the serving loops, and
// Shutdown tears everything down in order.
//
// Persistence and transport are selected by configuration: an empty database
// DSN keeps every repository in memory, and an empty broker URL keeps the
// event bus in process. For testing, inject stub upstream lookups via the
// functional options (WithBios, WithOpportunities).
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cmcp0/torreai-new-screening-process-approach/internal/analysis"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/application"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/call"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/call/dialog"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/config"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/event"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/health"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/httpapi"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/observe"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/outbox"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/repo"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/repo/postgres"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/subscriber"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/torre"
	"github.com/cmcp0/torreai-new-screening-process-approach/pkg/provider/embeddings"
	"github.com/cmcp0/torreai-new-screening-process-approach/pkg/provider/embeddings/stub"
	"github.com/cmcp0/torreai-new-screening-process-approach/pkg/provider/llm"
	"github.com/cmcp0/torreai-new-screening-process-approach/pkg/provider/stt"
)

// shutdownTimeout bounds the HTTP server drain during Run teardown.
const shutdownTimeout = 10 * time.Second

// Providers carries the model backends the service talks to. Every field is
// optional: a nil LLM degrades role answers to the static fallback, a nil
// Embeddings provider selects the deterministic stub, and a nil STT disables
// the audio path.
type Providers struct {
	LLM        llm.Provider
	Embeddings embeddings.Provider
	STT        stt.Provider
}

// Option customises App construction, mainly for tests.
type Option func(*options)

type options struct {
	bios          application.BiosLookup
	opportunities application.OpportunityLookup
}

// WithBios overrides the upstream candidate lookup.
func WithBios(b application.BiosLookup) Option {
	return func(o *options) { o.bios = b }
}

// WithOpportunities overrides the upstream job offer lookup.
func WithOpportunities(l application.OpportunityLookup) Option {
	return func(o *options) { o.opportunities = l }
}

// App is the assembled screening service.
type App struct {
	cfg *config.Config

	store    *postgres.Store
	inmem    *event.InMemoryPublisher
	rabbit   *event.RabbitPublisher
	reliable *event.ReliablePublisher

	server *http.Server
}

// New builds the application from cfg and the given providers.
func New(ctx context.Context, cfg *config.Config, providers Providers, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{cfg: cfg}

	// ── Persistence ───────────────────────────────────────────────────────
	var (
		apps        repo.ApplicationRepository
		calls       repo.CallRepository
		analyses    repo.AnalysisRepository
		embedStore  repo.EmbeddingRepository
		outboxStore outbox.Store
	)
	if cfg.Database.DSN != "" {
		store, err := postgres.NewStore(ctx, cfg.Database.DSN, cfg.Database.EmbeddingDimensions)
		if err != nil {
			return nil, fmt.Errorf("app: connect database: %w", err)
		}
		a.store = store
		apps = store.Applications()
		calls = store.Calls()
		analyses = store.Analyses()
		embedStore = store.Embeddings()
		slog.Info("postgres persistence enabled")
	} else {
		apps = repo.NewMemoryApplications()
		calls = repo.NewMemoryCalls()
		analyses = repo.NewMemoryAnalyses()
		embedStore = repo.NewMemoryEmbeddings()
		slog.Info("in-memory persistence enabled")
	}

	metrics := observe.DefaultMetrics()

	// ── Event bus ─────────────────────────────────────────────────────────
	dispatcher := event.NewDispatcher()
	var publisher event.Publisher
	if cfg.Broker.URL != "" {
		if a.store != nil {
			store, err := outbox.NewPostgresStore(ctx, a.store.Pool())
			if err != nil {
				a.store.Close()
				return nil, fmt.Errorf("app: outbox store: %w", err)
			}
			outboxStore = store
		} else {
			outboxStore = outbox.NewMemoryStore()
		}

		a.rabbit = event.NewRabbitPublisher(cfg.Broker.URL, cfg.Broker.Queue, dispatcher)
		a.reliable = event.NewReliablePublisher(a.rabbit, outboxStore, cfg.Broker.OutboxFlushInterval.Std())
		publisher = a.reliable
		slog.Info("broker event bus enabled", "queue", cfg.Broker.Queue)
	} else {
		a.inmem = event.NewInMemoryPublisher(dispatcher)
		publisher = a.inmem
		slog.Info("in-process event bus enabled")
	}
	publisher = observe.InstrumentPublisher(publisher, metrics)

	// ── Model backends ────────────────────────────────────────────────────
	embedProvider := providers.Embeddings
	if embedProvider == nil {
		embedProvider = stub.Provider{}
	}

	// ── Upstream lookups ──────────────────────────────────────────────────
	torreClient := torre.NewClient(torre.Config{
		BaseURL: cfg.Torre.BaseURL,
		Timeout: cfg.Torre.Timeout.Std(),
		Retries: cfg.Torre.Retries,
	})
	bios := o.bios
	if bios == nil {
		bios = torreClient
	}
	opportunities := o.opportunities
	if opportunities == nil {
		opportunities = torreClient
	}

	// ── Services ──────────────────────────────────────────────────────────
	prompts := call.NewPromptStore()
	applicationSvc := application.NewService(bios, opportunities, apps, publisher)
	callSvc := call.NewService(prompts, calls, publisher)
	analysisSvc := analysis.NewService(calls, apps, analyses, embedStore, publisher)

	// ── Subscribers ───────────────────────────────────────────────────────
	subscriber.NewEmbeddingGenerator(apps, apps, embedProvider, embedStore).Register(dispatcher)
	subscriber.NewPromptGenerator(apps, prompts).Register(dispatcher)
	subscriber.NewAnalysisRunner(analysisSvc).Register(dispatcher)

	// ── Readiness checkers ────────────────────────────────────────────────
	var checkers []health.Checker
	if a.store != nil {
		checkers = append(checkers, health.Checker{
			Name:  "database",
			Check: a.store.Pool().Ping,
		})
	}
	if a.rabbit != nil {
		checkers = append(checkers, health.Checker{
			Name:  "broker",
			Check: a.rabbit.Ping,
		})
	}

	// ── HTTP surface ──────────────────────────────────────────────────────
	api := httpapi.NewServer(httpapi.Config{
		Applications: applicationSvc,
		Calls:        callSvc,
		Analyses:     analysisSvc,
		Emma:         call.NewEmma(providers.LLM),
		Transcriber:  providers.STT,
		Dialog: dialog.Config{
			ReadyTimeoutBase:   cfg.Dialog.ReadyTimeoutBase.Std(),
			ReadyTimeoutMax:    cfg.Dialog.ReadyTimeoutMax.Std(),
			AnswerTimeout:      cfg.Dialog.AnswerTimeout.Std(),
			SilenceRetries:     cfg.Dialog.SilenceRetries,
			ContinuationWindow: cfg.Dialog.ContinuationWindow.Std(),
		},
		Health:         health.New(checkers...),
		Metrics:        metrics,
		AllowedOrigins: cfg.Server.CORSAllowedOrigins,
	})
	a.server = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// Handler returns the HTTP route tree. Intended for tests that serve the app
// through httptest instead of a listener.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run serves HTTP, the broker consumer, and the outbox relay until ctx is
// cancelled or any of them fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http server listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(drainCtx)
	})

	if a.rabbit != nil {
		g.Go(func() error {
			if err := a.rabbit.Consume(ctx); !errors.Is(err, context.Canceled) {
				return fmt.Errorf("app: consumer: %w", err)
			}
			return nil
		})
	}
	if a.reliable != nil {
		g.Go(func() error {
			if err := a.reliable.Run(ctx); !errors.Is(err, context.Canceled) {
				return fmt.Errorf("app: outbox relay: %w", err)
			}
			return nil
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Shutdown releases resources after Run has returned: it waits for in-flight
// in-process event handlers and closes the database pool.
func (a *App) Shutdown(ctx context.Context) error {
	if a.inmem != nil {
		done := make(chan struct{})
		go func() {
			a.inmem.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			return fmt.Errorf("app: handlers still running: %w", ctx.Err())
		}
	}

	if a.store != nil {
		a.store.Close()
	}
	return nil
}
