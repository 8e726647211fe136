package registry

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"
)

func TestCreateAndGet(t *testing.T) {
	r := NewInMemory()

	rec := DocumentRecord{
		ID:          "doc1",
		ContentHash: "abc",
		Filename:    "acme_nda.pdf",
		Status:      StatusPending,
	}
	if err := r.Create(rec); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := r.Get("doc1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Filename != "acme_nda.pdf" {
		t.Errorf("Filename: got %q", got.Filename)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps should be set on create")
	}

	if err := r.Create(rec); err == nil {
		t.Error("duplicate Create should fail")
	}
	if _, err := r.Get("absent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get absent: got %v, want ErrNotFound", err)
	}
}

func TestPutMutatesUnderLock(t *testing.T) {
	r := NewInMemory()
	r.Create(DocumentRecord{ID: "doc1", Status: StatusPending})

	err := r.Put("doc1", func(d *DocumentRecord) error {
		d.Status = StatusProcessing
		d.Metadata.GoverningLaw = "Delaware"
		return nil
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, _ := r.Get("doc1")
	if got.Status != StatusProcessing {
		t.Errorf("Status: got %q", got.Status)
	}
	if got.Metadata.GoverningLaw != "Delaware" {
		t.Errorf("GoverningLaw: got %q", got.Metadata.GoverningLaw)
	}
}

func TestPutRejectsIllegalTransition(t *testing.T) {
	r := NewInMemory()
	r.Create(DocumentRecord{ID: "doc1", Status: StatusProcessed})

	err := r.Put("doc1", func(d *DocumentRecord) error {
		d.Status = StatusPending
		return nil
	})
	if !errors.Is(err, ErrBadTransition) {
		t.Errorf("got %v, want ErrBadTransition", err)
	}
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusProcessed, false},
		{StatusProcessing, StatusProcessed, true},
		{StatusProcessing, StatusError, true},
		{StatusProcessing, StatusProcessing, true}, // re-ingest
		{StatusProcessed, StatusProcessing, true},  // re-index
		{StatusProcessed, StatusPending, false},
		{StatusError, StatusProcessing, true}, // retry
		{StatusError, StatusProcessed, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.ok {
			t.Errorf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}

func TestGetReturnsCopy(t *testing.T) {
	r := NewInMemory()
	r.Create(DocumentRecord{
		ID:       "doc1",
		Status:   StatusPending,
		Metadata: ContractMetadata{Parties: []string{"Acme Corp"}},
	})

	got, _ := r.Get("doc1")
	got.Metadata.Parties[0] = "mutated"

	again, _ := r.Get("doc1")
	if again.Metadata.Parties[0] != "Acme Corp" {
		t.Error("Get must return a deep copy of registry state")
	}
}

func TestFindByHash(t *testing.T) {
	r := NewInMemory()
	r.Create(DocumentRecord{ID: "doc1", ContentHash: "h1", Status: StatusProcessed})
	r.Create(DocumentRecord{ID: "doc2", ContentHash: "h2", Status: StatusError})
	r.Create(DocumentRecord{ID: "doc3", ContentHash: "h1", Status: StatusProcessed, DuplicateOf: "doc1"})

	got, ok := r.FindByHash("h1")
	if !ok || got.ID != "doc1" {
		t.Errorf("FindByHash(h1): got %q, ok=%v, want doc1", got.ID, ok)
	}

	// Errored records never dedupe; the content gets a fresh ingest.
	if _, ok := r.FindByHash("h2"); ok {
		t.Error("FindByHash(h2) matched an errored record")
	}

	if _, ok := r.FindByHash("h3"); ok {
		t.Error("FindByHash(h3) should miss")
	}
}

func TestExpirationDate(t *testing.T) {
	m := ContractMetadata{EffectiveDate: "2024-03-15", TermMonths: 24}
	exp, ok := m.ExpirationDate()
	if !ok {
		t.Fatal("expected expiration to be computable")
	}
	want := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	if !exp.Equal(want) {
		t.Errorf("ExpirationDate: got %v, want %v", exp, want)
	}

	if _, ok := (ContractMetadata{TermMonths: 12}).ExpirationDate(); ok {
		t.Error("missing effective date should not be computable")
	}
	if _, ok := (ContractMetadata{EffectiveDate: "2024-01-01"}).ExpirationDate(); ok {
		t.Error("missing term should not be computable")
	}
}

// TestConcurrentWriters simulates the classic lost-update race: many workers
// performing read-modify-write cycles on separate documents and on shared
// metadata fields. Every field written must survive.
func TestConcurrentWriters(t *testing.T) {
	r, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	const docs = 5
	const workers = 3
	for i := 0; i < docs; i++ {
		id := fmt.Sprintf("doc%d", i)
		if err := r.Create(DocumentRecord{ID: id, Status: StatusPending}); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}

	// Each worker transitions its share of documents through the full
	// lifecycle with injected scheduling delays between load and store.
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := w; i < docs; i += workers {
				id := fmt.Sprintf("doc%d", i)
				r.Put(id, func(d *DocumentRecord) error {
					d.Status = StatusProcessing
					return nil
				})
				time.Sleep(time.Duration(rand.Intn(3)) * time.Millisecond)
				r.Put(id, func(d *DocumentRecord) error {
					time.Sleep(time.Duration(rand.Intn(2)) * time.Millisecond)
					d.Status = StatusProcessed
					d.ChunkCount = 10 + i
					d.Metadata = ContractMetadata{
						EffectiveDate:   "2024-01-01",
						TermMonths:      12 + i,
						GoverningLaw:    "California",
						Parties:         []string{fmt.Sprintf("Party %d", i), "Counterparty"},
						ConfidenceScore: 0.9,
					}
					return nil
				})
			}
		}(w)
	}
	wg.Wait()

	records := r.List()
	if len(records) != docs {
		t.Fatalf("List: got %d records, want %d", len(records), docs)
	}
	for i, rec := range records {
		if rec.Status != StatusProcessed {
			t.Errorf("doc%d status: got %q, want processed", i, rec.Status)
		}
		if rec.Metadata.GoverningLaw != "California" {
			t.Errorf("doc%d lost metadata: %+v", i, rec.Metadata)
		}
		if len(rec.Metadata.Parties) != 2 {
			t.Errorf("doc%d parties: got %v", i, rec.Metadata.Parties)
		}
		if rec.ChunkCount == 0 {
			t.Errorf("doc%d lost chunk count", i)
		}
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()

	r, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	r.Create(DocumentRecord{
		ID:          "doc1",
		ContentHash: "h1",
		Filename:    "nda.pdf",
		Status:      StatusProcessed,
		Metadata:    ContractMetadata{GoverningLaw: "New York", TermMonths: 36},
	})

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := reopened.Get("doc1")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.Metadata.GoverningLaw != "New York" || got.Metadata.TermMonths != 36 {
		t.Errorf("metadata lost across reopen: %+v", got.Metadata)
	}
}
