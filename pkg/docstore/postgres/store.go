// Package postgres provides a PostgreSQL-backed document store using the
// pgvector extension for nearest-neighbour search.
//
// All documents live in a single table with a fixed-dimension vector column
// and an HNSW index using cosine distance. [New] installs the extension and
// creates the schema automatically; migration is idempotent and safe to run
// on every application start.
//
// Usage:
//
//	store, err := postgres.New(ctx, dsn, 1536)
//	if err != nil { … }
//	defer store.Close()
//
//	err = store.Insert(ctx, docs)
//	hits, err := store.Search(ctx, queryVec, 4)
package postgres

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/MrWong99/vellum/pkg/docstore"
)

// Ensure Store implements the docstore.Store interface.
var _ docstore.Store = (*Store)(nil)

// Store is a PostgreSQL document store. All methods are safe for concurrent
// use; the underlying pgxpool handles connection management.
type Store struct {
	pool   *pgxpool.Pool
	closed atomic.Bool
}

// New connects to the PostgreSQL database at dsn, registers pgvector types on
// every connection, and runs [Migrate].
//
// embeddingDimensions must match the output dimension of the embedding model
// whose vectors are stored (e.g. 1536 for text-embedding-3-small, 768 for
// nomic-embed-text). Changing it after the first migration requires a manual
// schema change.
func New(ctx context.Context, dsn string, embeddingDimensions int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres docstore: parse dsn: %w", err)
	}

	// Register pgvector types so vector columns scan into and insert from
	// pgvector.Vector values.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres docstore: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres docstore: ping: %w", err)
	}

	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres docstore: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// ddlDocuments returns the documents DDL with the embedding dimension
// substituted. The dimension is baked into the column type at creation time.
func ddlDocuments(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS documents (
    id          TEXT         PRIMARY KEY,
    text        TEXT         NOT NULL,
    metadata    JSONB        NOT NULL DEFAULT '{}',
    embedding   vector(%d),
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_documents_created_at
    ON documents (created_at);

CREATE INDEX IF NOT EXISTS idx_documents_embedding
    ON documents USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// Migrate creates or ensures the documents table, its indexes and the vector
// extension exist. Idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	if _, err := pool.Exec(ctx, ddlDocuments(embeddingDimensions)); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}

// Insert implements docstore.Store. The whole batch runs in one transaction;
// on any error the transaction rolls back and nothing is persisted. Existing
// IDs are replaced.
func (s *Store) Insert(ctx context.Context, docs []docstore.Document) error {
	if s.closed.Load() {
		return docstore.ErrClosed
	}
	if len(docs) == 0 {
		return nil
	}

	const q = `
		INSERT INTO documents (id, text, metadata, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
		    text       = EXCLUDED.text,
		    metadata   = EXCLUDED.metadata,
		    embedding  = EXCLUDED.embedding,
		    created_at = EXCLUDED.created_at`

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres docstore: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, doc := range docs {
		createdAt := doc.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		metadata := doc.Metadata
		if metadata == nil {
			metadata = map[string]string{}
		}
		batch.Queue(q, doc.ID, doc.Text, metadata, pgvector.NewVector(doc.Embedding), createdAt)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres docstore: insert batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres docstore: commit: %w", err)
	}
	return nil
}

// Search implements docstore.Store. Results are ordered by ascending cosine
// distance; equal distances are broken by created_at then id so repeated
// queries return a stable ordering.
func (s *Store) Search(ctx context.Context, embedding []float32, topK int) ([]docstore.Result, error) {
	if s.closed.Load() {
		return nil, docstore.ErrClosed
	}
	if topK <= 0 {
		return []docstore.Result{}, nil
	}

	const q = `
		SELECT id, text, metadata, embedding, created_at,
		       embedding <=> $1 AS distance
		FROM   documents
		ORDER  BY distance, created_at, id
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("postgres docstore: search: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (docstore.Result, error) {
		var (
			res docstore.Result
			vec pgvector.Vector
		)
		if err := row.Scan(
			&res.Document.ID,
			&res.Document.Text,
			&res.Document.Metadata,
			&vec,
			&res.Document.CreatedAt,
			&res.Distance,
		); err != nil {
			return docstore.Result{}, err
		}
		res.Document.Embedding = vec.Slice()
		return res, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres docstore: scan rows: %w", err)
	}
	if results == nil {
		results = []docstore.Result{}
	}
	return results, nil
}

// Count implements docstore.Store.
func (s *Store) Count(ctx context.Context) (int64, error) {
	if s.closed.Load() {
		return 0, docstore.ErrClosed
	}
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres docstore: count: %w", err)
	}
	return n, nil
}

// Ping implements docstore.Store.
func (s *Store) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return docstore.ErrClosed
	}
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres docstore: ping: %w", err)
	}
	return nil
}

// Close implements docstore.Store by releasing the connection pool. Further
// operations return [docstore.ErrClosed]. Close is idempotent.
func (s *Store) Close() {
	if s.closed.CompareAndSwap(false, true) {
		s.pool.Close()
	}
}
