// Package index defines the retrieval backend contract and its two
// implementations, a lexical BM25 index and an embedding-based vector
// index. Backends are interchangeable behind one interface so the
// retriever can fan out a query and fuse the ranked lists.
package index

import "context"

// Entry is one chunk as a backend sees it.
type Entry struct {
	ChunkID    string
	DocumentID string
	Text       string
	// EmbedText is the text to embed: the chunk enriched with a
	// contextual preamble (document title, parties, governing law).
	// Backends that embed fall back to Text when it is empty.
	EmbedText string
}

// Hit is one ranked result from a backend query. Scores are only
// comparable within a single backend's result list.
type Hit struct {
	ChunkID string
	Score   float64
}

// Backend indexes chunks and answers ranked queries. Upsert replaces the
// document's entries atomically with respect to Query, so a re-ingested
// document never serves a mix of old and new chunks.
type Backend interface {
	Upsert(ctx context.Context, docID string, entries []Entry) error
	Delete(ctx context.Context, docID string) error
	Query(ctx context.Context, query string, k int) ([]Hit, error)
	Name() string
}
