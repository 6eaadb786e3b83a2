// Command vellum is the main entry point for the vellum RAG server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/vellum/internal/config"
	"github.com/MrWong99/vellum/internal/health"
	"github.com/MrWong99/vellum/internal/httpapi"
	"github.com/MrWong99/vellum/internal/observe"
	"github.com/MrWong99/vellum/internal/rag"
	"github.com/MrWong99/vellum/internal/resilience"
	"github.com/MrWong99/vellum/pkg/docstore"
	pgstore "github.com/MrWong99/vellum/pkg/docstore/postgres"
	"github.com/MrWong99/vellum/pkg/provider/embeddings"
	ollamaembed "github.com/MrWong99/vellum/pkg/provider/embeddings/ollama"
	oaembed "github.com/MrWong99/vellum/pkg/provider/embeddings/openai"
	"github.com/MrWong99/vellum/pkg/provider/llm"
	"github.com/MrWong99/vellum/pkg/provider/llm/anyllm"
	oaillm "github.com/MrWong99/vellum/pkg/provider/llm/openai"
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
			fmt.Fprintf(os.Stderr, "vellum: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "vellum: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("vellum starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Telemetry pipelines ───────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(observe.ProviderConfig{
		ServiceName:    "vellum",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(ctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Instantiate providers ─────────────────────────────────────────────────
	ps, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Document store (optional) ─────────────────────────────────────────────
	var store docstore.Store
	checkers := []health.Checker{
		{Name: "embeddings", Check: func(context.Context) error {
			if ps.embeddings == nil {
				return errors.New("no embeddings provider configured")
			}
			return nil
		}},
	}
	if cfg.Store.PostgresDSN != "" {
		pg, err := pgstore.New(ctx, cfg.Store.PostgresDSN, cfg.Store.EmbeddingDimensions)
		if err != nil {
			slog.Error("failed to connect document store", "err", err)
			return 1
		}
		defer pg.Close()
		store = pg
		checkers = append(checkers, health.Checker{Name: "docstore", Check: pg.Ping})
		slog.Info("document store connected", "dimensions", cfg.Store.EmbeddingDimensions)
	} else {
		slog.Warn("no document store configured — ingestion disabled, chat degrades to plain generation")
	}

	// ── Orchestrators and HTTP server ─────────────────────────────────────────
	metrics := observe.DefaultMetrics()
	api := httpapi.New(httpapi.Config{
		Ingestor:    rag.NewIngestor(ps.embeddings, store, logger),
		Answerer:    rag.NewAnswerer(ps.embeddings, ps.generation, ps.fallback, store, cfg.Retrieval.TopK, logger),
		Diagnostics: cfg.Diagnostics(),
		History:     rag.NewConversationLog(rag.DefaultHistoryLimit),
		Checkers:    checkers,
		Metrics:     metrics,
		Log:         logger,
	})

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           api,
		ReadHeaderTimeout: 10 * time.Second,
	}

	printStartupSummary(cfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	slog.Info("server ready — press Ctrl+C to shut down", "addr", cfg.Server.ListenAddr)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			return 1
		}
	case <-ctx.Done():
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// version is stamped at build time via -ldflags "-X main.version=…".
var version = "dev"

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	// openai uses the native SDK client; the rest go through any-llm. All
	// share the same pattern: optional APIKey + optional BaseURL.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaillm.WithBaseURL(entry.BaseURL))
		}
		return oaillm.New(entry.APIKey, entry.Model, opts...)
	})

	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.NewOllama(entry.Model, opts...)
	})

	// ── Embeddings ────────────────────────────────────────────────────────────

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		if dims := optInt(entry.Options, "dimensions"); dims > 0 {
			opts = append(opts, oaembed.WithDimensions(dims))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterEmbeddings("ollama", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []ollamaembed.Option
		if dims := optInt(entry.Options, "dimensions"); dims > 0 {
			opts = append(opts, ollamaembed.WithDimensions(dims))
		}
		return ollamaembed.New(entry.BaseURL, entry.Model, opts...)
	})
}

// providerSet holds the instantiated backends the orchestrators run on.
type providerSet struct {
	generation llm.Provider
	fallback   llm.Provider
	embeddings embeddings.Provider
}

// buildProviders instantiates the providers named in cfg using the registry
// and wraps each in a per-call timeout bound.
func buildProviders(cfg *config.Config, reg *config.Registry) (*providerSet, error) {
	timeout := time.Duration(cfg.Providers.TimeoutSeconds) * time.Second
	ps := &providerSet{}

	gen, err := reg.CreateLLM(cfg.Providers.Generation)
	if err != nil {
		return nil, fmt.Errorf("create generation provider %q: %w", cfg.Providers.Generation.Name, err)
	}
	ps.generation = resilience.NewBoundLLM(gen, timeout)
	slog.Info("provider created", "kind", "generation", "name", cfg.Providers.Generation.Name, "model", gen.ModelID())

	if name := cfg.Providers.Fallback.Name; name != "" {
		fb, err := reg.CreateLLM(cfg.Providers.Fallback)
		if err != nil {
			return nil, fmt.Errorf("create fallback provider %q: %w", name, err)
		}
		ps.fallback = resilience.NewBoundLLM(fb, timeout)
		slog.Info("provider created", "kind", "fallback", "name", name, "model", fb.ModelID())
	}

	emb, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
	if err != nil {
		return nil, fmt.Errorf("create embeddings provider %q: %w", cfg.Providers.Embeddings.Name, err)
	}
	ps.embeddings = resilience.NewBoundEmbeddings(emb, timeout)
	slog.Info("provider created", "kind", "embeddings", "name", cfg.Providers.Embeddings.Name,
		"model", emb.ModelID(), "dimensions", emb.Dimensions())

	return ps, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          Vellum — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("Generation", cfg.Providers.Generation.Name, cfg.Providers.Generation.Model)
	printProvider("Fallback", cfg.Providers.Fallback.Name, cfg.Providers.Fallback.Model)
	printProvider("Embeddings", cfg.Providers.Embeddings.Name, cfg.Providers.Embeddings.Model)
	if cfg.Store.PostgresDSN != "" {
		fmt.Printf("║  Store           : %-19s ║\n", fmt.Sprintf("postgres (%dd)", cfg.Store.EmbeddingDimensions))
	} else {
		fmt.Printf("║  Store           : %-19s ║\n", "(none)")
	}
	fmt.Printf("║  Top-K           : %-19d ║\n", cfg.Retrieval.TopK)
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
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
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
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

// ── Helpers ───────────────────────────────────────────────────────────────────

// optInt extracts an integer from a provider Options map[string]any. YAML
// decodes integers as int; returns 0 if the key is absent or mistyped.
func optInt(opts map[string]any, key string) int {
	if opts == nil {
		return 0
	}
	v, ok := opts[key]
	if !ok {
		return 0
	}
	n, ok := v.(int)
	if !ok {
		return 0
	}
	return n
}
