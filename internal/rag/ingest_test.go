package rag_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/vellum/internal/rag"
	storemock "github.com/MrWong99/vellum/pkg/docstore/mock"
	embedmock "github.com/MrWong99/vellum/pkg/provider/embeddings/mock"
)

func TestIngest_EmptyTexts(t *testing.T) {
	ing := rag.NewIngestor(&embedmock.Provider{}, &storemock.Store{}, nil)

	for _, texts := range [][]string{nil, {}} {
		_, err := ing.Ingest(context.Background(), texts, "", nil)
		var verr *rag.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("Ingest(%v): want *ValidationError, got %v", texts, err)
		}
	}
}

func TestIngest_BlankElement(t *testing.T) {
	embedder := &embedmock.Provider{}
	store := &storemock.Store{}
	ing := rag.NewIngestor(embedder, store, nil)

	_, err := ing.Ingest(context.Background(), []string{"fine", "   "}, "", nil)
	var verr *rag.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("want *ValidationError, got %v", err)
	}
	if len(embedder.EmbedBatchCalls) != 0 {
		t.Error("embedder must not be called for invalid input")
	}
	if len(store.InsertCalls) != 0 {
		t.Error("store must not be called for invalid input")
	}
}

func TestIngest_NoStore(t *testing.T) {
	embedder := &embedmock.Provider{}
	ing := rag.NewIngestor(embedder, nil, nil)

	n, err := ing.Ingest(context.Background(), []string{"some text"}, "notes", nil)
	if !errors.Is(err, rag.ErrNoStore) {
		t.Fatalf("want ErrNoStore, got %v", err)
	}
	if n != 0 {
		t.Errorf("stored count: got %d, want 0", n)
	}
	if len(embedder.EmbedBatchCalls) != 0 {
		t.Error("embedder must not be called without a store")
	}
}

func TestIngest_StoresAllTexts(t *testing.T) {
	embedder := &embedmock.Provider{
		EmbedBatchFunc: func(texts []string) ([][]float32, error) {
			vecs := make([][]float32, len(texts))
			for i := range texts {
				vecs[i] = []float32{float32(i), 1}
			}
			return vecs, nil
		},
	}
	store := &storemock.Store{}
	ing := rag.NewIngestor(embedder, store, nil)

	texts := []string{"Cats are mammals", "Dogs are mammals"}
	n, err := ing.Ingest(context.Background(), texts, "biology", map[string]string{"category": "animals"})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if n != 2 {
		t.Errorf("stored count: got %d, want 2", n)
	}

	// All texts go through a single batch embedding call.
	if len(embedder.EmbedBatchCalls) != 1 {
		t.Fatalf("EmbedBatch calls: got %d, want 1", len(embedder.EmbedBatchCalls))
	}
	if got := embedder.EmbedBatchCalls[0].Texts; len(got) != 2 || got[0] != texts[0] {
		t.Errorf("EmbedBatch texts: got %v", got)
	}

	if len(store.Inserted) != 2 {
		t.Fatalf("inserted documents: got %d, want 2", len(store.Inserted))
	}
	for i, doc := range store.Inserted {
		if doc.ID == "" {
			t.Errorf("doc %d: missing ID", i)
		}
		if doc.Text != texts[i] {
			t.Errorf("doc %d text: got %q, want %q", i, doc.Text, texts[i])
		}
		if doc.Metadata[rag.MetadataSourceKey] != "biology" {
			t.Errorf("doc %d source: got %q, want biology", i, doc.Metadata[rag.MetadataSourceKey])
		}
		if doc.Metadata["category"] != "animals" {
			t.Errorf("doc %d category: got %q, want animals", i, doc.Metadata["category"])
		}
		if len(doc.Embedding) != 2 {
			t.Errorf("doc %d: missing embedding", i)
		}
	}
}

func TestIngest_EmbedFailure(t *testing.T) {
	embedder := &embedmock.Provider{EmbedBatchErr: errors.New("connection refused")}
	store := &storemock.Store{}
	ing := rag.NewIngestor(embedder, store, nil)

	_, err := ing.Ingest(context.Background(), []string{"x"}, "", nil)
	var uerr *rag.UpstreamError
	if !errors.As(err, &uerr) {
		t.Fatalf("want *UpstreamError, got %v", err)
	}
	if uerr.Provider != "embeddings" {
		t.Errorf("provider: got %q, want embeddings", uerr.Provider)
	}
	if len(store.InsertCalls) != 0 {
		t.Error("nothing may be stored when embedding fails")
	}
}

func TestIngest_StoreFailureIsAllOrNothing(t *testing.T) {
	embedder := &embedmock.Provider{
		EmbedBatchFunc: func(texts []string) ([][]float32, error) {
			return make([][]float32, len(texts)), nil
		},
	}
	store := &storemock.Store{InsertErr: errors.New("connection reset")}
	ing := rag.NewIngestor(embedder, store, nil)

	n, err := ing.Ingest(context.Background(), []string{"a", "b"}, "", nil)
	var uerr *rag.UpstreamError
	if !errors.As(err, &uerr) {
		t.Fatalf("want *UpstreamError, got %v", err)
	}
	if uerr.Provider != "docstore" {
		t.Errorf("provider: got %q, want docstore", uerr.Provider)
	}
	if n != 0 {
		t.Errorf("stored count on failure: got %d, want 0", n)
	}
	if len(store.Inserted) != 0 {
		t.Errorf("documents persisted despite failure: %d", len(store.Inserted))
	}
}

func TestIngest_EmbeddingCountMismatch(t *testing.T) {
	embedder := &embedmock.Provider{
		EmbedBatchFunc: func([]string) ([][]float32, error) {
			return [][]float32{{1}}, nil // one vector for two texts
		},
	}
	store := &storemock.Store{}
	ing := rag.NewIngestor(embedder, store, nil)

	_, err := ing.Ingest(context.Background(), []string{"a", "b"}, "", nil)
	var uerr *rag.UpstreamError
	if !errors.As(err, &uerr) {
		t.Fatalf("want *UpstreamError, got %v", err)
	}
	if len(store.InsertCalls) != 0 {
		t.Error("store must not be called on embedding count mismatch")
	}
}
