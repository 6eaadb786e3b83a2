// Package httpapi exposes the ingestion and chat orchestrators over HTTP.
//
// All request and response bodies are JSON. Mapping from orchestrator errors
// to HTTP status codes happens in this package only; handlers never write
// raw upstream error text to clients.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/vellum/internal/health"
	"github.com/MrWong99/vellum/internal/observe"
	"github.com/MrWong99/vellum/internal/rag"
)

// Config carries the dependencies for a [Server]. Ingestor and Answerer are
// required; everything else has a working zero-value fallback.
type Config struct {
	Ingestor *rag.Ingestor
	Answerer *rag.Answerer

	// Diagnostics is the redacted configuration view served by /telemetry.
	Diagnostics map[string]string

	// History receives each completed chat exchange. Optional.
	History *rag.ConversationLog

	// Checkers are evaluated by the /readyz endpoint.
	Checkers []health.Checker

	Metrics *observe.Metrics
	Log     *slog.Logger
}

// Server routes HTTP requests to the RAG orchestrators.
type Server struct {
	ingestor    *rag.Ingestor
	answerer    *rag.Answerer
	diagnostics map[string]string
	history     *rag.ConversationLog
	metrics     *observe.Metrics
	log         *slog.Logger

	handler http.Handler
}

// New builds a Server with all routes registered and the observability
// middleware applied.
func New(cfg Config) *Server {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}

	s := &Server{
		ingestor:    cfg.Ingestor,
		answerer:    cfg.Answerer,
		diagnostics: cfg.Diagnostics,
		history:     cfg.History,
		metrics:     cfg.Metrics,
		log:         cfg.Log,
	}

	mux := http.NewServeMux()
	health.New(cfg.Checkers...).Register(mux)
	mux.HandleFunc("POST /ingest", s.handleIngest)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /telemetry", s.handleTelemetry)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.handler = observe.Middleware(cfg.Metrics)(mux)
	return s
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
