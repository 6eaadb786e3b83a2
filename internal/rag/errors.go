// Package rag contains the ingestion and retrieval orchestrators that tie
// the embedding provider, the document store and the LLM backends together.
//
// The orchestrators return typed errors so the HTTP layer can map them to
// status codes without parsing messages: [*ValidationError] for rejected
// input, [*UpstreamError] for provider failures, and [ErrNoStore] when no
// document store is configured.
package rag

import (
	"errors"
	"fmt"
)

// ErrNoStore is returned by [Ingestor.Ingest] when the service runs without a
// document store. Callers treat it as a skip condition, not a failure.
var ErrNoStore = errors.New("rag: no document store configured")

// ValidationError reports rejected request input. It never wraps an upstream
// error.
type ValidationError struct {
	// Field names the offending input field (e.g. "query", "texts").
	Field string

	// Reason is a human-readable description safe to return to clients.
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("rag: invalid %s: %s", e.Field, e.Reason)
}

// UpstreamError reports a failed call to an external dependency. Provider
// identifies which one so operators can tell an embedding outage from an LLM
// outage.
type UpstreamError struct {
	// Provider is the dependency that failed: "embeddings", "docstore",
	// "llm/primary" or "llm/fallback".
	Provider string

	// Err is the underlying provider error.
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("rag: upstream %s: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
