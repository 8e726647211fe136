package index

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// BM25 ranking parameters, standard Robertson values.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// Lexical is an in-memory BM25 index. It is rebuilt from the chunk store
// on startup and kept current by the ingestion pipeline.
type Lexical struct {
	mu      sync.RWMutex
	entries map[string]*lexEntry          // chunk id -> entry
	byDoc   map[string]map[string]struct{} // document id -> chunk ids
	df      map[string]int                 // term -> number of chunks containing it
	total   int                            // total tokens across all chunks
}

type lexEntry struct {
	documentID string
	terms      map[string]int
	length     int
}

// NewLexical creates an empty BM25 index.
func NewLexical() *Lexical {
	return &Lexical{
		entries: make(map[string]*lexEntry),
		byDoc:   make(map[string]map[string]struct{}),
		df:      make(map[string]int),
	}
}

func (l *Lexical) Name() string { return "lexical" }

// Upsert replaces all entries for a document under one lock acquisition.
func (l *Lexical) Upsert(_ context.Context, docID string, entries []Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.deleteLocked(docID)
	for _, e := range entries {
		terms := tokenize(e.Text)
		length := 0
		counts := make(map[string]int)
		for _, t := range terms {
			counts[t]++
			length++
		}
		l.entries[e.ChunkID] = &lexEntry{
			documentID: docID,
			terms:      counts,
			length:     length,
		}
		for t := range counts {
			l.df[t]++
		}
		l.total += length
		if l.byDoc[docID] == nil {
			l.byDoc[docID] = make(map[string]struct{})
		}
		l.byDoc[docID][e.ChunkID] = struct{}{}
	}
	return nil
}

// Delete removes all of a document's entries. Unknown documents are a no-op.
func (l *Lexical) Delete(_ context.Context, docID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deleteLocked(docID)
	return nil
}

func (l *Lexical) deleteLocked(docID string) {
	for chunkID := range l.byDoc[docID] {
		e := l.entries[chunkID]
		for t := range e.terms {
			l.df[t]--
			if l.df[t] <= 0 {
				delete(l.df, t)
			}
		}
		l.total -= e.length
		delete(l.entries, chunkID)
	}
	delete(l.byDoc, docID)
}

// Query scores every chunk containing at least one query term and returns
// the top k by BM25 score. Ties break on chunk id for determinism.
func (l *Lexical) Query(_ context.Context, query string, k int) ([]Hit, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.entries) == 0 || k <= 0 {
		return nil, nil
	}

	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	n := float64(len(l.entries))
	avgLen := float64(l.total) / n

	scores := make(map[string]float64)
	seen := make(map[string]struct{})
	for _, t := range terms {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}

		df := l.df[t]
		if df == 0 {
			continue
		}
		idf := math.Log(1 + (n-float64(df)+0.5)/(float64(df)+0.5))
		for chunkID, e := range l.entries {
			tf := float64(e.terms[t])
			if tf == 0 {
				continue
			}
			norm := tf * (bm25K1 + 1) / (tf + bm25K1*(1-bm25B+bm25B*float64(e.length)/avgLen))
			scores[chunkID] += idf * norm
		}
	}

	hits := make([]Hit, 0, len(scores))
	for chunkID, score := range scores {
		hits = append(hits, Hit{ChunkID: chunkID, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Count returns the number of indexed chunks.
func (l *Lexical) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// tokenize lowercases and splits on non-alphanumeric runes.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
