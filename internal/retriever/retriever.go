// Package retriever fans a query out to the index backends and fuses the
// ranked lists with reciprocal rank fusion.
package retriever

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"

	"github.com/clausewise/clausewise/internal/chunkstore"
	"github.com/clausewise/clausewise/internal/index"
)

// FusedResult is one chunk after fusion, with its per-backend ranks
// retained for provenance.
type FusedResult struct {
	Chunk chunkstore.Chunk `json:"chunk"`
	Score float64          `json:"score"`
	// Ranks maps backend name to this chunk's 1-based rank in that
	// backend's list. Absent backends did not return the chunk.
	Ranks map[string]int `json:"ranks"`
}

// Retriever queries all backends in parallel and fuses their rankings.
type Retriever struct {
	backends []index.Backend
	weights  map[string]float64
	store    *chunkstore.Store
	rrfK     int
	reranker Reranker
	topN     int
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithReranker reorders the top n fused results for presentation. Fusion
// scores are not modified.
func WithReranker(r Reranker, topN int) Option {
	return func(rt *Retriever) {
		rt.reranker = r
		rt.topN = topN
	}
}

// New creates a Retriever. weights maps backend name to its fusion weight;
// backends without an entry get weight 1.0.
func New(store *chunkstore.Store, backends []index.Backend, weights map[string]float64, rrfK int, opts ...Option) *Retriever {
	if rrfK <= 0 {
		rrfK = 60
	}
	r := &Retriever{
		backends: backends,
		weights:  weights,
		store:    store,
		rrfK:     rrfK,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Filters narrows retrieval to a subset of the corpus. The zero value
// matches every chunk.
type Filters struct {
	DocumentIDs []string `json:"document_ids,omitempty"`
}

func (f Filters) empty() bool { return len(f.DocumentIDs) == 0 }

func (f Filters) match(c chunkstore.Chunk) bool {
	if len(f.DocumentIDs) == 0 {
		return true
	}
	for _, id := range f.DocumentIDs {
		if c.DocumentID == id {
			return true
		}
	}
	return false
}

// Retrieve runs the query against every backend and returns the top k
// fused results. A single failing backend degrades to the others' results;
// the query fails only when every backend fails.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]FusedResult, error) {
	return r.RetrieveFiltered(ctx, query, k, Filters{})
}

// RetrieveFiltered is Retrieve restricted to chunks matching the filters.
// Filtering happens after fusion, so backends are over-queried to keep the
// filtered list close to k results.
func (r *Retriever) RetrieveFiltered(ctx context.Context, query string, k int, filters Filters) ([]FusedResult, error) {
	if k <= 0 {
		return nil, nil
	}

	fetchK := k
	if !filters.empty() {
		fetchK = k * 4
	}

	results := make([]backendResult, len(r.backends))
	var wg sync.WaitGroup
	for i, b := range r.backends {
		wg.Add(1)
		go func(i int, b index.Backend) {
			defer wg.Done()
			hits, err := b.Query(ctx, query, fetchK)
			results[i] = backendResult{name: b.Name(), hits: hits, err: err}
		}(i, b)
	}
	wg.Wait()

	var lastErr error
	failed := 0
	for _, br := range results {
		if br.err != nil {
			failed++
			lastErr = fmt.Errorf("backend %s: %w", br.name, br.err)
		}
	}
	if failed == len(r.backends) && len(r.backends) > 0 {
		return nil, lastErr
	}

	fused := r.fuse(results)
	if len(fused) == 0 {
		return nil, nil
	}

	fused, err := r.attachChunks(ctx, fused)
	if err != nil {
		return nil, err
	}

	if !filters.empty() {
		matched := fused[:0]
		for _, fr := range fused {
			if filters.match(fr.Chunk) {
				matched = append(matched, fr)
			}
		}
		fused = matched
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return contentDigest(fused[i].Chunk.Text) < contentDigest(fused[j].Chunk.Text)
	})
	if len(fused) > k {
		fused = fused[:k]
	}

	if r.reranker != nil {
		r.rerank(ctx, query, fused)
	}
	return fused, nil
}

type backendResult struct {
	name string
	hits []index.Hit
	err  error
}

// fuse computes reciprocal rank fusion over the per-backend lists:
// score = sum over backends of weight / (K + rank).
func (r *Retriever) fuse(results []backendResult) []FusedResult {
	byChunk := make(map[string]*FusedResult)
	for _, br := range results {
		if br.err != nil {
			continue
		}
		weight, ok := r.weights[br.name]
		if !ok {
			weight = 1.0
		}
		for rank, hit := range br.hits {
			fr := byChunk[hit.ChunkID]
			if fr == nil {
				fr = &FusedResult{
					Chunk: chunkstore.Chunk{ID: hit.ChunkID},
					Ranks: make(map[string]int),
				}
				byChunk[hit.ChunkID] = fr
			}
			fr.Ranks[br.name] = rank + 1
			fr.Score += weight / float64(r.rrfK+rank+1)
		}
	}

	fused := make([]FusedResult, 0, len(byChunk))
	for _, fr := range byChunk {
		fused = append(fused, *fr)
	}
	return fused
}

// attachChunks resolves chunk ids to full chunks and returns the surviving
// results. Ids no longer in the store (deleted mid-query) are dropped.
func (r *Retriever) attachChunks(ctx context.Context, fused []FusedResult) ([]FusedResult, error) {
	ids := make([]string, len(fused))
	for i, fr := range fused {
		ids[i] = fr.Chunk.ID
	}
	chunks, err := r.store.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve chunks: %w", err)
	}

	kept := fused[:0]
	for _, fr := range fused {
		chunk, ok := chunks[fr.Chunk.ID]
		if !ok {
			continue
		}
		fr.Chunk = chunk
		kept = append(kept, fr)
	}
	return kept, nil
}

// rerank reorders the head of the fused list by model relevance. Rerank
// failures leave the fusion order untouched.
func (r *Retriever) rerank(ctx context.Context, query string, fused []FusedResult) {
	n := r.topN
	if n > len(fused) {
		n = len(fused)
	}
	if n < 2 {
		return
	}

	docs := make([]string, n)
	for i := 0; i < n; i++ {
		docs[i] = fused[i].Chunk.Text
	}
	order, err := r.reranker.Rerank(ctx, query, docs)
	if err != nil || len(order) != n {
		return
	}

	head := make([]FusedResult, n)
	for pos, idx := range order {
		if idx < 0 || idx >= n {
			return
		}
		head[pos] = fused[idx]
	}
	copy(fused, head)
}

func contentDigest(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
