package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrWong99/vellum/pkg/docstore"
	"github.com/MrWong99/vellum/pkg/provider/embeddings"
	"github.com/MrWong99/vellum/pkg/provider/llm"
)

// Backend selects which text-generation backend answers a query.
type Backend string

const (
	// BackendPrimary is the retrieval-augmented path: similar documents are
	// retrieved and stuffed into the prompt before generation.
	BackendPrimary Backend = "primary"

	// BackendFallback routes the raw query to the secondary backend with no
	// retrieval step.
	BackendFallback Backend = "fallback"
)

// IsValid reports whether b is a recognised backend.
func (b Backend) IsValid() bool {
	return b == BackendPrimary || b == BackendFallback
}

// systemPrompt instructs the model to stay inside the retrieved context.
const systemPrompt = "You are a helpful assistant. When context is provided, answer using that context."

// Answerer resolves chat queries against the configured backends.
type Answerer struct {
	embedder embeddings.Provider
	primary  llm.Provider
	fallback llm.Provider   // nil when no fallback backend is configured
	store    docstore.Store // nil when the service runs without a store
	topK     int
	log      *slog.Logger
}

// NewAnswerer constructs an Answerer. fallback and store may be nil; topK
// values below one fall back to a minimum of one. A nil logger falls back to
// slog.Default.
func NewAnswerer(embedder embeddings.Provider, primary, fallback llm.Provider, store docstore.Store, topK int, log *slog.Logger) *Answerer {
	if topK < 1 {
		topK = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Answerer{
		embedder: embedder,
		primary:  primary,
		fallback: fallback,
		store:    store,
		topK:     topK,
		log:      log,
	}
}

// Answer resolves query on the selected backend and returns the generated
// answer together with the documents that informed it (empty for the fallback
// backend and for the degraded store-less path).
//
// The fallback backend receives the raw query verbatim and never touches the
// embedding provider or the store. The primary backend embeds the query,
// retrieves the topK closest documents and composes a context-stuffed prompt;
// without a store it degrades to plain generation, which is not an error.
//
// Upstream failures surface as [*UpstreamError] exactly once; there are no
// internal retries.
func (a *Answerer) Answer(ctx context.Context, query string, backend Backend) (string, []docstore.Result, error) {
	if strings.TrimSpace(query) == "" {
		return "", nil, &ValidationError{Field: "query", Reason: "must not be empty"}
	}
	if !backend.IsValid() {
		return "", nil, &ValidationError{Field: "provider", Reason: fmt.Sprintf("unknown backend %q; valid values: primary, fallback", backend)}
	}

	start := time.Now()

	if backend == BackendFallback {
		if a.fallback == nil {
			return "", nil, &ValidationError{Field: "provider", Reason: "no fallback backend configured"}
		}
		answer, err := a.complete(ctx, a.fallback, "llm/fallback", query, nil)
		if err != nil {
			return "", nil, err
		}
		a.log.Info("query answered", "backend", backend, "duration", time.Since(start))
		return answer, nil, nil
	}

	var hits []docstore.Result
	if a.store != nil {
		vec, err := a.embedder.Embed(ctx, query)
		if err != nil {
			return "", nil, &UpstreamError{Provider: "embeddings", Err: err}
		}
		hits, err = a.store.Search(ctx, vec, a.topK)
		if err != nil {
			return "", nil, &UpstreamError{Provider: "docstore", Err: err}
		}
	}

	answer, err := a.complete(ctx, a.primary, "llm/primary", query, hits)
	if err != nil {
		return "", nil, err
	}

	a.log.Info("query answered",
		"backend", backend,
		"retrieved", len(hits),
		"duration", time.Since(start),
	)
	return answer, hits, nil
}

// complete sends query (with optional retrieved context) to provider.
func (a *Answerer) complete(ctx context.Context, provider llm.Provider, providerName, query string, hits []docstore.Result) (string, error) {
	resp, err := provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: ComposePrompt(query, hits)},
		},
	})
	if err != nil {
		return "", &UpstreamError{Provider: providerName, Err: err}
	}
	return resp.Content, nil
}

// ComposePrompt builds the user prompt for a query. With retrieved documents
// the prompt carries a context block of their texts, most similar first; with
// none it is the raw query unchanged.
func ComposePrompt(query string, hits []docstore.Result) string {
	if len(hits) == 0 {
		return query
	}

	var b strings.Builder
	b.WriteString("Use this context to answer the query.\n\nContext:\n")
	for _, hit := range hits {
		b.WriteString(hit.Document.Text)
		b.WriteString("\n")
	}
	b.WriteString("\nQuery: ")
	b.WriteString(query)
	return b.String()
}
