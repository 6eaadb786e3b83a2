// Package mock provides a test double for the docstore.Store interface.
//
// The mock records every call and can either serve canned results or compute
// them via per-method hooks. SearchFunc is handy for tests that want a real
// nearest-neighbour ranking over the inserted documents.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/vellum/pkg/docstore"
)

// InsertCall records a single invocation of Insert.
type InsertCall struct {
	// Ctx is the context passed to Insert.
	Ctx context.Context
	// Docs is a copy of the document slice passed to Insert.
	Docs []docstore.Document
}

// SearchCall records a single invocation of Search.
type SearchCall struct {
	// Ctx is the context passed to Search.
	Ctx context.Context
	// Embedding is the query vector passed to Search.
	Embedding []float32
	// TopK is the result limit passed to Search.
	TopK int
}

// Store is a mock implementation of docstore.Store.
type Store struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// InsertErr, if non-nil, is returned from Insert. No documents are
	// recorded in Inserted when set, mirroring all-or-nothing semantics.
	InsertErr error

	// SearchFunc, if non-nil, computes Search results. Takes precedence over
	// SearchResults/SearchErr.
	SearchFunc func(embedding []float32, topK int) ([]docstore.Result, error)

	// SearchResults is returned by Search when SearchFunc is nil.
	SearchResults []docstore.Result

	// SearchErr, if non-nil, is returned as the error from Search.
	SearchErr error

	// CountValue is returned by Count.
	CountValue int64

	// CountErr, if non-nil, is returned as the error from Count.
	CountErr error

	// PingErr, if non-nil, is returned from Ping.
	PingErr error

	// --- Call records ---

	// Inserted accumulates every successfully inserted document in order.
	Inserted []docstore.Document

	// InsertCalls records every call to Insert, including failed ones.
	InsertCalls []InsertCall

	// SearchCalls records every call to Search in order.
	SearchCalls []SearchCall

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// Insert records the call and appends docs to Inserted unless InsertErr is set.
func (s *Store) Insert(ctx context.Context, docs []docstore.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]docstore.Document, len(docs))
	copy(cp, docs)
	s.InsertCalls = append(s.InsertCalls, InsertCall{Ctx: ctx, Docs: cp})
	if s.InsertErr != nil {
		return s.InsertErr
	}
	s.Inserted = append(s.Inserted, cp...)
	return nil
}

// Search records the call and returns the configured results.
func (s *Store) Search(ctx context.Context, embedding []float32, topK int) ([]docstore.Result, error) {
	s.mu.Lock()
	s.SearchCalls = append(s.SearchCalls, SearchCall{Ctx: ctx, Embedding: embedding, TopK: topK})
	fn := s.SearchFunc
	s.mu.Unlock()
	if fn != nil {
		return fn(embedding, topK)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SearchErr != nil {
		return nil, s.SearchErr
	}
	return s.SearchResults, nil
}

// Count returns CountValue, CountErr. When CountValue is zero and documents
// have been inserted, the inserted count is returned instead.
func (s *Store) Count(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CountErr != nil {
		return 0, s.CountErr
	}
	if s.CountValue == 0 {
		return int64(len(s.Inserted)), nil
	}
	return s.CountValue, nil
}

// Ping returns PingErr.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.PingErr
}

// Close increments CloseCallCount.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
}

// Reset clears all recorded calls and inserted documents. Thread-safe.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Inserted = nil
	s.InsertCalls = nil
	s.SearchCalls = nil
	s.CloseCallCount = 0
}

// Ensure Store implements docstore.Store at compile time.
var _ docstore.Store = (*Store)(nil)
