// Command screening is the main entry point for the automated screening
// interview server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/cmcp0/torreai-new-screening-process-approach/internal/app"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/config"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/observe"
	ollamaembed "github.com/cmcp0/torreai-new-screening-process-approach/pkg/provider/embeddings/ollama"
	oaembed "github.com/cmcp0/torreai-new-screening-process-approach/pkg/provider/embeddings/openai"
	"github.com/cmcp0/torreai-new-screening-process-approach/pkg/provider/embeddings/stub"
	"github.com/cmcp0/torreai-new-screening-process-approach/pkg/provider/llm/anyllm"
	"github.com/cmcp0/torreai-new-screening-process-approach/pkg/provider/stt/whisper"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "screening: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "screening: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("screening server starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	context.AfterFunc(ctx, func() {
		slog.Info("shutdown signal received, stopping…")
	})

	// ── Metrics ───────────────────────────────────────────────────────────────
	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise metrics", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(flushCtx); err != nil {
			slog.Warn("metrics shutdown error", "err", err)
		}
	}()

	// ── Providers ─────────────────────────────────────────────────────────────
	providers, err := buildProviders(cfg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// buildProviders instantiates the model backends named in cfg. Unconfigured
// kinds stay nil; the application degrades per kind (static role answers, stub
// embeddings, text-only calls).
func buildProviders(cfg *config.Config) (app.Providers, error) {
	var ps app.Providers

	if entry := cfg.Providers.LLM; entry.Name != "" {
		var opts []anyllmlib.Option
		// ollama is a local server; it uses a base URL rather than an API key.
		if entry.APIKey != "" && entry.Name != "ollama" {
			opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		p, err := anyllm.New(entry.Name, entry.Model, opts...)
		if err != nil {
			return ps, fmt.Errorf("create llm provider %q: %w", entry.Name, err)
		}
		ps.LLM = p
		slog.Info("provider created", "kind", "llm", "name", entry.Name)
	}

	if entry := cfg.Providers.Embeddings; entry.Name != "" {
		switch entry.Name {
		case "openai":
			var opts []oaembed.Option
			if entry.BaseURL != "" {
				opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
			}
			p, err := oaembed.New(entry.APIKey, entry.Model, opts...)
			if err != nil {
				return ps, fmt.Errorf("create embeddings provider %q: %w", entry.Name, err)
			}
			ps.Embeddings = p
		case "ollama":
			p, err := ollamaembed.New(entry.BaseURL, entry.Model)
			if err != nil {
				return ps, fmt.Errorf("create embeddings provider %q: %w", entry.Name, err)
			}
			ps.Embeddings = p
		case "stub":
			ps.Embeddings = stub.Provider{}
		default:
			return ps, fmt.Errorf("unknown embeddings provider %q", entry.Name)
		}
		slog.Info("provider created", "kind", "embeddings", "name", entry.Name)
	}

	if entry := cfg.Providers.STT; entry.Name != "" {
		if entry.Name != "whisper" {
			return ps, fmt.Errorf("unknown stt provider %q", entry.Name)
		}
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		p, err := whisper.New(entry.BaseURL, opts...)
		if err != nil {
			return ps, fmt.Errorf("create stt provider %q: %w", entry.Name, err)
		}
		ps.STT = p
		slog.Info("provider created", "kind", "stt", "name", entry.Name)
	}

	return ps, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║      Screening — startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printProvider("Embeddings", cfg.Providers.Embeddings.Name, cfg.Providers.Embeddings.Model)
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printSetting("Database", orDefault(redactedBackend(cfg.Database.DSN, "postgres"), "in-memory"))
	printSetting("Broker", orDefault(redactedBackend(cfg.Broker.URL, "rabbitmq"), "in-process"))
	if cfg.Server.ListenAddr != "" {
		printSetting("Listen addr", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	printSetting(kind, value)
}

func printSetting(kind, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-15s : %-19s ║\n", kind, value)
}

// redactedBackend names the backend without leaking credentials from the URL.
func redactedBackend(url, name string) string {
	if url == "" {
		return ""
	}
	return name
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
