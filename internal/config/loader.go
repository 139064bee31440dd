package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":        {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"embeddings": {"openai", "ollama", "stub"},
	"stt":        {"whisper"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Torre upstream
	if cfg.Torre.Retries < 0 {
		errs = append(errs, fmt.Errorf("torre.retries %d is negative", cfg.Torre.Retries))
	}
	if cfg.Torre.Timeout < 0 {
		errs = append(errs, fmt.Errorf("torre.timeout must not be negative"))
	}

	// Dialog timeouts
	if cfg.Dialog.ReadyTimeoutBase < 0 || cfg.Dialog.ReadyTimeoutMax < 0 ||
		cfg.Dialog.AnswerTimeout < 0 || cfg.Dialog.ContinuationWindow < 0 {
		errs = append(errs, fmt.Errorf("dialog timeouts must not be negative"))
	}
	if cfg.Dialog.ReadyTimeoutMax != 0 && cfg.Dialog.ReadyTimeoutMax < cfg.Dialog.ReadyTimeoutBase {
		errs = append(errs, fmt.Errorf("dialog.ready_timeout_max is shorter than dialog.ready_timeout_base"))
	}

	// Broker
	if cfg.Broker.OutboxFlushInterval < 0 {
		errs = append(errs, fmt.Errorf("broker.outbox_flush_interval must not be negative"))
	}
	if cfg.Broker.URL == "" && cfg.Broker.Queue != "" {
		slog.Warn("broker.queue is set but broker.url is empty; events stay in process")
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)

	// Embeddings ↔ database dimensions
	if cfg.Database.EmbeddingDimensions < 0 {
		errs = append(errs, fmt.Errorf("database.embedding_dimensions %d is negative", cfg.Database.EmbeddingDimensions))
	}
	if cfg.Database.DSN != "" && cfg.Database.EmbeddingDimensions == 0 {
		cfg.Database.EmbeddingDimensions = DefaultEmbeddingDimensions
		slog.Warn("database.dsn is configured but database.embedding_dimensions is not set; using the default",
			"embedding_dimensions", DefaultEmbeddingDimensions)
	}
	if cfg.Providers.Embeddings.Name == "" {
		slog.Warn("providers.embeddings is not configured; fit scores fall back to the deterministic stub vectors")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
