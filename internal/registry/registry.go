// Package registry is the single source of truth for document lifecycle
// state and extracted metadata. Every mutation runs its full
// load -> merge -> persist sequence inside one exclusive critical section,
// so concurrent ingestion workers can never lose each other's updates.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned when a document id is not in the registry.
var ErrNotFound = errors.New("document not found")

// ErrBadTransition is returned when a mutation attempts an illegal
// status transition.
var ErrBadTransition = errors.New("illegal status transition")

// Registry holds DocumentRecords keyed by id, persisted as a JSON snapshot.
type Registry struct {
	mu   sync.Mutex
	path string // empty for in-memory registries
	docs map[string]*DocumentRecord
}

// Open loads (or initializes) a registry persisted at dir/registry.json.
func Open(dir string) (*Registry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating registry directory: %w", err)
	}

	r := &Registry{
		path: filepath.Join(dir, "registry.json"),
		docs: make(map[string]*DocumentRecord),
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("reading registry: %w", err)
	}

	var records []DocumentRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing registry: %w", err)
	}
	for i := range records {
		rec := records[i]
		r.docs[rec.ID] = &rec
	}
	return r, nil
}

// NewInMemory returns a registry without file persistence, for tests and
// ephemeral runs.
func NewInMemory() *Registry {
	return &Registry{docs: make(map[string]*DocumentRecord)}
}

// Create inserts a new record. The id must not already exist.
func (r *Registry) Create(rec DocumentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.docs[rec.ID]; ok {
		return fmt.Errorf("document %s already exists", rec.ID)
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	stored := rec.clone()
	r.docs[rec.ID] = &stored
	return r.persistLocked()
}

// Get returns a copy of the record for id, or ErrNotFound.
func (r *Registry) Get(id string) (DocumentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.docs[id]
	if !ok {
		return DocumentRecord{}, ErrNotFound
	}
	return doc.clone(), nil
}

// Put applies a read-modify-write transaction to the record for id. The
// mutation function receives the current record and edits it in place; the
// merge and the persist both happen under the registry lock. Status changes
// are validated against the lifecycle transition rules.
func (r *Registry) Put(id string, mutate func(*DocumentRecord) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.docs[id]
	if !ok {
		return ErrNotFound
	}

	working := doc.clone()
	if err := mutate(&working); err != nil {
		return err
	}
	working.ID = id // the id is immutable

	if working.Status != doc.Status && !doc.Status.CanTransition(working.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, doc.Status, working.Status)
	}

	working.UpdatedAt = time.Now().UTC()
	r.docs[id] = &working
	return r.persistLocked()
}

// List returns a snapshot of all records, ordered by creation time then id
// so repeated calls over unchanged state are identical.
func (r *Registry) List() []DocumentRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]DocumentRecord, 0, len(r.docs))
	for _, doc := range r.docs {
		out = append(out, doc.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Delete removes the record for id.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.docs[id]; !ok {
		return ErrNotFound
	}
	delete(r.docs, id)
	return r.persistLocked()
}

// FindByHash returns the first non-duplicate, non-error record sharing the
// content hash. Used for upload dedupe; errored records never dedupe, so
// re-uploading failed content processes it fresh.
func (r *Registry) FindByHash(hash string) (DocumentRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, doc := range r.docs {
		if doc.ContentHash != hash || doc.DuplicateOf != "" || doc.Status == StatusError {
			continue
		}
		rec := doc.clone()
		return rec, true
	}
	return DocumentRecord{}, false
}

// Count returns the number of records.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.docs)
}

// persistLocked writes the full snapshot. Callers must hold r.mu. The write
// goes through a temp file and rename so readers never see a torn file.
func (r *Registry) persistLocked() error {
	if r.path == "" {
		return nil
	}

	records := make([]DocumentRecord, 0, len(r.docs))
	for _, doc := range r.docs {
		records = append(records, *doc)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling registry: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing registry: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replacing registry: %w", err)
	}
	return nil
}
