package blobstore

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestFSPutGetDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("new fs: %v", err)
	}

	uri, err := store.Put(ctx, "doc-1/nda.pdf", strings.NewReader("contract bytes"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if !strings.HasPrefix(uri, "file://") || !strings.HasSuffix(uri, "doc-1/nda.pdf") {
		t.Errorf("uri = %q", uri)
	}

	rc, err := store.Get(ctx, "doc-1/nda.pdf")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "contract bytes" {
		t.Errorf("data = %q", data)
	}

	if err := store.Delete(ctx, "doc-1/nda.pdf"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "doc-1/nda.pdf"); err == nil {
		t.Error("get after delete succeeded")
	}
	if err := store.Delete(ctx, "doc-1/nda.pdf"); err != nil {
		t.Errorf("delete of missing blob: %v", err)
	}
}

func TestFSPutOverwrites(t *testing.T) {
	ctx := context.Background()
	store, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := store.Put(ctx, "k", strings.NewReader("v1")); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Put(ctx, "k", strings.NewReader("v2")); err != nil {
		t.Fatal(err)
	}
	rc, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "v2" {
		t.Errorf("data = %q, want v2", data)
	}
}

func TestFSRejectsTraversal(t *testing.T) {
	ctx := context.Background()
	store, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{"../escape", "/abs/path", "a/../../b", "."} {
		if _, err := store.Put(ctx, key, strings.NewReader("x")); err == nil {
			t.Errorf("key %q accepted", key)
		}
	}
}
