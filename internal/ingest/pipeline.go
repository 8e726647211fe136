// Package ingest runs uploaded contracts through the processing pipeline:
// parse, extract metadata, chunk, and index into every retrieval backend.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/clausewise/clausewise/internal/blobstore"
	"github.com/clausewise/clausewise/internal/chunker"
	"github.com/clausewise/clausewise/internal/chunkstore"
	"github.com/clausewise/clausewise/internal/extract"
	"github.com/clausewise/clausewise/internal/index"
	"github.com/clausewise/clausewise/internal/parser"
	"github.com/clausewise/clausewise/internal/registry"
)

// Pipeline processes one document end to end.
type Pipeline struct {
	reg       *registry.Registry
	blobs     blobstore.BlobStore
	parsers   *parser.Registry
	chunker   *chunker.Chunker
	extractor extract.Extractor
	chunks    *chunkstore.Store
	backends  []index.Backend
	// retries is the per-backend index retry budget.
	retries int
	// backoffBase scales the linear retry backoff.
	backoffBase time.Duration
}

// NewPipeline wires the processing stages together.
func NewPipeline(reg *registry.Registry, blobs blobstore.BlobStore, parsers *parser.Registry, ch *chunker.Chunker, extractor extract.Extractor, chunks *chunkstore.Store, backends []index.Backend, retries int) *Pipeline {
	if retries < 1 {
		retries = 1
	}
	return &Pipeline{
		reg:         reg,
		blobs:       blobs,
		parsers:     parsers,
		chunker:     ch,
		extractor:   extractor,
		chunks:      chunks,
		backends:    backends,
		retries:     retries,
		backoffBase: time.Second,
	}
}

// BlobKey is the blobstore key for a document's original bytes.
func BlobKey(docID, filename string) string {
	return docID + "/" + filename
}

// HashContent returns the content hash used for duplicate detection.
func HashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Process runs the full pipeline for a document already registered and
// stored. Stage failures flip the document to error status with the
// failing stage recorded; the returned error restates it for the caller.
func (p *Pipeline) Process(ctx context.Context, docID string) error {
	doc, err := p.reg.Get(docID)
	if err != nil {
		return err
	}

	if err := p.reg.Put(docID, func(d *registry.DocumentRecord) error {
		d.Status = registry.StatusProcessing
		d.FailReason = ""
		return nil
	}); err != nil {
		return err
	}

	if err := p.process(ctx, doc); err != nil {
		if putErr := p.reg.Put(docID, func(d *registry.DocumentRecord) error {
			d.Status = registry.StatusError
			d.FailReason = err.Error()
			return nil
		}); putErr != nil {
			log.Printf("ingest: record failure for %s: %v", docID, putErr)
		}
		return err
	}
	return nil
}

func (p *Pipeline) process(ctx context.Context, doc registry.DocumentRecord) error {
	rc, err := p.blobs.Get(ctx, BlobKey(doc.ID, doc.Filename))
	if err != nil {
		return &ExtractionError{Stage: "fetch", Err: err}
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return &ExtractionError{Stage: "fetch", Err: err}
	}

	parsed, err := p.parsers.Parse(ctx, doc.Filename, data)
	if err != nil {
		return &ExtractionError{Stage: "parse", Err: err}
	}

	meta, err := p.extractor.Extract(ctx, parsed.Text)
	if err != nil {
		return &ExtractionError{Stage: "metadata", Err: err}
	}

	chunks := p.chunker.Split(doc.ID, parsed, doc.StorageURI)
	if len(chunks) == 0 {
		return &ExtractionError{Stage: "chunk", Err: fmt.Errorf("document produced no chunks")}
	}

	if err := p.chunks.Replace(ctx, doc.ID, chunks); err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}

	preamble := embedPreamble(doc.Filename, meta)
	entries := make([]index.Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = index.Entry{
			ChunkID:    c.ID,
			DocumentID: c.DocumentID,
			Text:       c.Text,
			EmbedText:  preamble + c.Text,
		}
	}
	for _, backend := range p.backends {
		if err := p.upsertWithRetry(ctx, backend, doc.ID, entries); err != nil {
			return err
		}
	}

	return p.reg.Put(doc.ID, func(d *registry.DocumentRecord) error {
		d.Status = registry.StatusProcessed
		d.PageCount = len(parsed.Pages)
		d.ChunkCount = len(chunks)
		d.Metadata = *meta
		return nil
	})
}

// embedPreamble renders the contextual prefix embedded with every chunk so
// vectors carry document-level signal (title, parties, governing law).
// Lexical matching and retrieval output use the raw chunk text.
func embedPreamble(filename string, meta *registry.ContractMetadata) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Document: %s\n", filename)
	if len(meta.Parties) > 0 {
		fmt.Fprintf(&b, "Parties: %s\n", strings.Join(meta.Parties, "; "))
	}
	if meta.GoverningLaw != "" {
		fmt.Fprintf(&b, "Governing law: %s\n", meta.GoverningLaw)
	}
	b.WriteString("\n")
	return b.String()
}

// upsertWithRetry replaces a document's entries in one backend, retrying
// transient failures with a linear backoff.
func (p *Pipeline) upsertWithRetry(ctx context.Context, backend index.Backend, docID string, entries []index.Entry) error {
	var lastErr error
	for attempt := 1; attempt <= p.retries; attempt++ {
		lastErr = backend.Upsert(ctx, docID, entries)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			break
		}
		if attempt < p.retries {
			select {
			case <-ctx.Done():
				return &IndexError{Backend: backend.Name(), Err: ctx.Err()}
			case <-time.After(time.Duration(attempt) * p.backoffBase):
			}
		}
	}
	return &IndexError{Backend: backend.Name(), Err: lastErr}
}

// Remove deletes a document everywhere: backends, chunk store, blob
// store, and finally the registry.
func (p *Pipeline) Remove(ctx context.Context, docID string) error {
	doc, err := p.reg.Get(docID)
	if err != nil {
		return err
	}

	for _, backend := range p.backends {
		if err := backend.Delete(ctx, docID); err != nil {
			return &IndexError{Backend: backend.Name(), Err: err}
		}
	}
	if err := p.chunks.DeleteDocument(ctx, docID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if err := p.blobs.Delete(ctx, BlobKey(docID, doc.Filename)); err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	return p.reg.Delete(docID)
}

// RebuildLexical reloads every stored chunk into the lexical backend.
// The lexical index lives in memory, so this runs once at startup.
func (p *Pipeline) RebuildLexical(ctx context.Context, lexical index.Backend) error {
	for _, doc := range p.reg.List() {
		if doc.Status != registry.StatusProcessed || doc.DuplicateOf != "" {
			continue
		}
		chunks, err := p.chunks.ByDocument(ctx, doc.ID)
		if err != nil {
			return fmt.Errorf("load chunks for %s: %w", doc.ID, err)
		}
		entries := make([]index.Entry, len(chunks))
		for i, c := range chunks {
			entries[i] = index.Entry{ChunkID: c.ID, DocumentID: c.DocumentID, Text: c.Text}
		}
		if err := lexical.Upsert(ctx, doc.ID, entries); err != nil {
			return &IndexError{Backend: lexical.Name(), Err: err}
		}
	}
	return nil
}
