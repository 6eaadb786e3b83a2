// Package resilience wraps provider clients with per-call deadlines.
//
// Every outbound call to an LLM or embeddings backend gets its own
// context.WithTimeout derived from the caller's context, so a hung upstream
// cannot stall a request beyond the configured bound. There are no retries
// and no failover; an upstream error surfaces to the caller exactly once.
package resilience

import (
	"context"
	"time"

	"github.com/MrWong99/vellum/pkg/provider/embeddings"
	"github.com/MrWong99/vellum/pkg/provider/llm"
)

// Compile-time interface assertions.
var (
	_ llm.Provider        = (*BoundLLM)(nil)
	_ embeddings.Provider = (*BoundEmbeddings)(nil)
)

// BoundLLM implements [llm.Provider] by delegating to an inner provider with
// a deadline applied to each call.
type BoundLLM struct {
	inner   llm.Provider
	timeout time.Duration
}

// NewBoundLLM wraps inner so that every Complete call runs under timeout.
// A zero or negative timeout returns the inner provider's behaviour unchanged.
func NewBoundLLM(inner llm.Provider, timeout time.Duration) *BoundLLM {
	return &BoundLLM{inner: inner, timeout: timeout}
}

// Complete implements llm.Provider.
func (b *BoundLLM) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	return b.inner.Complete(ctx, req)
}

// ModelID implements llm.Provider.
func (b *BoundLLM) ModelID() string {
	return b.inner.ModelID()
}

// BoundEmbeddings implements [embeddings.Provider] by delegating to an inner
// provider with a deadline applied to each call.
type BoundEmbeddings struct {
	inner   embeddings.Provider
	timeout time.Duration
}

// NewBoundEmbeddings wraps inner so that every Embed and EmbedBatch call runs
// under timeout. A zero or negative timeout disables the bound.
func NewBoundEmbeddings(inner embeddings.Provider, timeout time.Duration) *BoundEmbeddings {
	return &BoundEmbeddings{inner: inner, timeout: timeout}
}

// Embed implements embeddings.Provider.
func (b *BoundEmbeddings) Embed(ctx context.Context, text string) ([]float32, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	return b.inner.Embed(ctx, text)
}

// EmbedBatch implements embeddings.Provider. The whole batch shares a single
// deadline; one slow batch call must not hold a request open indefinitely.
func (b *BoundEmbeddings) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	return b.inner.EmbedBatch(ctx, texts)
}

// Dimensions implements embeddings.Provider.
func (b *BoundEmbeddings) Dimensions() int {
	return b.inner.Dimensions()
}

// ModelID implements embeddings.Provider.
func (b *BoundEmbeddings) ModelID() string {
	return b.inner.ModelID()
}
