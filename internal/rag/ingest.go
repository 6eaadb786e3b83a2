package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/vellum/pkg/docstore"
	"github.com/MrWong99/vellum/pkg/provider/embeddings"
)

// MetadataSourceKey is the metadata key carrying the ingest source tag.
const MetadataSourceKey = "source"

// Ingestor embeds raw texts and writes them to the document store.
type Ingestor struct {
	embedder embeddings.Provider
	store    docstore.Store // nil when the service runs without a store
	log      *slog.Logger
}

// NewIngestor constructs an Ingestor. store may be nil, in which case every
// Ingest call returns [ErrNoStore]. A nil logger falls back to slog.Default.
func NewIngestor(embedder embeddings.Provider, store docstore.Store, log *slog.Logger) *Ingestor {
	if log == nil {
		log = slog.Default()
	}
	return &Ingestor{embedder: embedder, store: store, log: log}
}

// Ingest embeds all texts in a single provider call and stores them with
// metadata atomically: either every text is persisted or none is.
//
// source tags each document's origin and lands in metadata under
// [MetadataSourceKey]; extra metadata pairs are stored alongside it. Returns
// the number of documents stored.
//
// Error contract: empty texts or any blank element yield a
// [*ValidationError]; a missing store yields [ErrNoStore]; embedding or
// storage failures yield a [*UpstreamError]. There are no partial successes.
func (i *Ingestor) Ingest(ctx context.Context, texts []string, source string, extra map[string]string) (int, error) {
	if len(texts) == 0 {
		return 0, &ValidationError{Field: "texts", Reason: "must contain at least one text"}
	}
	for idx, text := range texts {
		if strings.TrimSpace(text) == "" {
			return 0, &ValidationError{Field: "texts", Reason: fmt.Sprintf("element %d is blank", idx)}
		}
	}
	if i.store == nil {
		return 0, ErrNoStore
	}

	start := time.Now()
	vecs, err := i.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, &UpstreamError{Provider: "embeddings", Err: err}
	}
	if len(vecs) != len(texts) {
		return 0, &UpstreamError{
			Provider: "embeddings",
			Err:      fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vecs)),
		}
	}

	now := time.Now().UTC()
	docs := make([]docstore.Document, len(texts))
	for idx, text := range texts {
		metadata := make(map[string]string, len(extra)+1)
		for k, v := range extra {
			metadata[k] = v
		}
		if source != "" {
			metadata[MetadataSourceKey] = source
		}
		docs[idx] = docstore.Document{
			ID:        uuid.NewString(),
			Text:      text,
			Metadata:  metadata,
			Embedding: vecs[idx],
			CreatedAt: now,
		}
	}

	if err := i.store.Insert(ctx, docs); err != nil {
		return 0, &UpstreamError{Provider: "docstore", Err: err}
	}

	i.log.Info("documents ingested",
		"count", len(docs),
		"source", source,
		"embedding_model", i.embedder.ModelID(),
		"duration", time.Since(start),
	)
	return len(docs), nil
}
