// Package docstore defines the document store abstraction used for retrieval.
//
// A document store persists pre-embedded text documents and answers
// similarity queries over their embedding vectors. The store never computes
// embeddings itself; callers embed texts first and hand the vectors in, which
// keeps the store agnostic of the embedding backend and its dimensionality
// contract (apart from the fixed column width chosen at migration time).
package docstore

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by store operations after Close has been called.
var ErrClosed = errors.New("docstore: store is closed")

// Document is a single unit of retrievable text with its embedding vector.
type Document struct {
	// ID uniquely identifies the document. Inserting a document with an
	// existing ID replaces the stored one.
	ID string

	// Text is the raw document content that ends up in LLM prompts.
	Text string

	// Metadata holds optional string tags, e.g. a source label describing
	// where the document came from.
	Metadata map[string]string

	// Embedding is the dense vector for Text. Its length must match the
	// dimension the store was migrated with.
	Embedding []float32

	// CreatedAt is set by the store on insert when zero.
	CreatedAt time.Time
}

// Result is a single similarity search hit.
type Result struct {
	Document Document

	// Distance is the cosine distance between the query embedding and the
	// document embedding. Smaller means more similar.
	Distance float64
}

// Store persists documents and serves nearest-neighbour queries.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Insert writes all documents atomically. Either every document is
	// persisted or none is; a failure mid-batch leaves the store unchanged.
	// Documents with IDs already present are replaced.
	Insert(ctx context.Context, docs []Document) error

	// Search returns up to topK documents closest to embedding, ordered by
	// ascending cosine distance. Fewer than topK stored documents yield a
	// shorter result, never padding. Ties are broken deterministically.
	Search(ctx context.Context, embedding []float32, topK int) ([]Result, error)

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int64, error)

	// Ping verifies the backing storage is reachable.
	Ping(ctx context.Context) error

	// Close releases held resources. The store is unusable afterwards.
	Close()
}
