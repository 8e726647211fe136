package chunkstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/clausewise/clausewise/internal/db"
)

// ErrNotFound is returned when a chunk id is unknown.
var ErrNotFound = errors.New("chunk not found")

// Store provides durable chunk storage over SQLite. A document's chunk set
// is always replaced in one transaction, so readers either see the old set
// or the new one, never a mix.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Replace atomically swaps the full chunk set for a document:
// delete-then-insert inside a single transaction.
func (s *Store) Replace(ctx context.Context, docID string, chunks []Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting chunk transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", docID); err != nil {
		return fmt.Errorf("deleting old chunks: %w", err)
	}

	for _, c := range chunks {
		if c.DocumentID != docID {
			return fmt.Errorf("chunk %s belongs to document %s, not %s", c.ID, c.DocumentID, docID)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO chunks (id, document_id, chunk_index, section_type, clause_number, text, page_num, span_start, span_end, source_uri)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.DocumentID, c.ChunkIndex, string(c.SectionType), c.ClauseNumber,
			c.Text, c.PageNum, c.SpanStart, c.SpanEnd, c.SourceURI,
		)
		if err != nil {
			return fmt.Errorf("inserting chunk %d: %w", c.ChunkIndex, err)
		}
	}

	return tx.Commit()
}

// Get retrieves one chunk by id.
func (s *Store) Get(ctx context.Context, id string) (*Chunk, error) {
	row := s.db.QueryRowContext(ctx, selectCols+" FROM chunks WHERE id = ?", id)
	c, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// GetMany retrieves the chunks for the given ids. Missing ids are skipped;
// the result is keyed by chunk id.
func (s *Store) GetMany(ctx context.Context, ids []string) (map[string]Chunk, error) {
	out := make(map[string]Chunk, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, selectCols+" FROM chunks WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out[c.ID] = *c
	}
	return out, rows.Err()
}

// ByDocument returns a document's chunks ordered by chunk index.
func (s *Store) ByDocument(ctx context.Context, docID string) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		selectCols+" FROM chunks WHERE document_id = ? ORDER BY chunk_index", docID)
	if err != nil {
		return nil, fmt.Errorf("querying document chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *c)
	}
	return chunks, rows.Err()
}

// DeleteDocument removes all chunks owned by a document.
func (s *Store) DeleteDocument(ctx context.Context, docID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", docID)
	if err != nil {
		return fmt.Errorf("deleting document chunks: %w", err)
	}
	return nil
}

// Count returns the total number of stored chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM chunks").Scan(&n)
	return n, err
}

const selectCols = "SELECT id, document_id, chunk_index, section_type, clause_number, text, page_num, span_start, span_end, source_uri"

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanChunk(sc scanner) (*Chunk, error) {
	var c Chunk
	var section string
	err := sc.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &section, &c.ClauseNumber,
		&c.Text, &c.PageNum, &c.SpanStart, &c.SpanEnd, &c.SourceURI)
	if err != nil {
		return nil, err
	}
	c.SectionType = SectionType(section)
	return &c, nil
}
