package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	chromem "github.com/philippgille/chromem-go"

	"github.com/clausewise/clausewise/internal/embeddings"
)

const collectionName = "chunks"

// snapshotFile is the on-disk export written by Persist.
const snapshotFile = "chromem.gob.gz"

// Vector is an embedding-based backend built on chromem-go.
type Vector struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   embeddings.Embedder
	embedFunc  chromem.EmbeddingFunc
}

// NewVector creates an in-memory vector backend using the given embedder.
func NewVector(embedder embeddings.Embedder) (*Vector, error) {
	db := chromem.NewDB()
	ef := embeddings.ToChromemFunc(embedder)

	col, err := db.GetOrCreateCollection(collectionName, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &Vector{
		db:         db,
		collection: col,
		embedder:   embedder,
		embedFunc:  ef,
	}, nil
}

func (v *Vector) Name() string { return "vector" }

// Upsert replaces the document's entries. chromem has no per-document
// replace, so this deletes by document_id metadata first.
func (v *Vector) Upsert(ctx context.Context, docID string, entries []Entry) error {
	if err := v.Delete(ctx, docID); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(entries))
	for i, e := range entries {
		content := e.EmbedText
		if content == "" {
			content = e.Text
		}
		docs[i] = chromem.Document{
			ID:      e.ChunkID,
			Content: content,
			Metadata: map[string]string{
				"document_id": docID,
			},
		}
	}
	if err := v.collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("add documents: %w", err)
	}
	return nil
}

// Delete removes all entries tagged with the document id.
func (v *Vector) Delete(ctx context.Context, docID string) error {
	if v.collection.Count() == 0 {
		return nil
	}
	where := map[string]string{"document_id": docID}
	if err := v.collection.Delete(ctx, where, nil); err != nil {
		return fmt.Errorf("delete by document: %w", err)
	}
	return nil
}

// Query embeds the query text and returns the k nearest chunks by cosine
// similarity.
func (v *Vector) Query(ctx context.Context, query string, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}

	// chromem-go requires nResults <= collection size.
	count := v.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := v.collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{ChunkID: r.ID, Score: float64(r.Similarity)}
	}
	return hits, nil
}

// Count returns the number of indexed chunks.
func (v *Vector) Count() int {
	return v.collection.Count()
}

// Persist exports the index to dir so embeddings survive a restart.
func (v *Vector) Persist(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	return v.db.ExportToFile(filepath.Join(dir, snapshotFile), true, "")
}

// Load restores a previously persisted index. A missing snapshot is not
// an error, the index just starts empty.
func (v *Vector) Load(dir string) error {
	path := filepath.Join(dir, snapshotFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := v.db.ImportFromFile(path, ""); err != nil {
		return fmt.Errorf("import from file: %w", err)
	}

	// Re-acquire collection reference after import.
	col := v.db.GetCollection(collectionName, v.embedFunc)
	if col == nil {
		return fmt.Errorf("collection %q not found after import", collectionName)
	}
	v.collection = col
	return nil
}
