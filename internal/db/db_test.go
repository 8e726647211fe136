package db

import (
	"path/filepath"
	"testing"
)

func TestOpenMemory(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer d.Close()

	// Schema should be applied.
	var name string
	err = d.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='chunks'").Scan(&name)
	if err != nil {
		t.Fatalf("chunks table missing: %v", err)
	}
}

func TestOpenCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "clausewise.db")
	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	var count int
	err = d.QueryRow("SELECT count(*) FROM competency_questions").Scan(&count)
	if err != nil {
		t.Fatalf("competency_questions table missing: %v", err)
	}
	if count != 0 {
		t.Errorf("expected empty table, got %d rows", count)
	}
}

func TestForeignKeysEnforced(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer d.Close()

	var fk int
	if err := d.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("reading foreign_keys pragma: %v", err)
	}
	if fk != 1 {
		t.Fatalf("foreign_keys = %d, want 1", fk)
	}

	// A run referencing a missing question must be rejected.
	_, err = d.Exec(`INSERT INTO competency_runs (id, question_id) VALUES ('r1', 'no-such-question')`)
	if err == nil {
		t.Error("expected foreign key violation for orphaned run")
	}
}

func TestOpenAppliesJournalMode(t *testing.T) {
	d, err := Open(filepath.Join(t.TempDir(), "clausewise.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	var mode string
	if err := d.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("reading journal_mode pragma: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer d.Close()

	if err := d.migrate(); err != nil {
		t.Errorf("second migrate: %v", err)
	}
}

func TestChunkSpanConstraint(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer d.Close()

	_, err = d.Exec(`INSERT INTO chunks (id, document_id, chunk_index, section_type, text, span_start, span_end)
		VALUES ('c1', 'd1', 0, 'clause', 'x', 10, 5)`)
	if err == nil {
		t.Error("expected CHECK violation for span_start >= span_end")
	}
}
