package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clausewise/clausewise/internal/parser"
	"github.com/clausewise/clausewise/internal/registry"
)

// RouteOptions carries the upload policy for the document endpoints.
type RouteOptions struct {
	MaxUploadBytes    int64
	AllowedExtensions []string
}

// RegisterRoutes mounts document endpoints under /api/documents.
func RegisterRoutes(r chi.Router, reg *registry.Registry, pipeline *Pipeline, scheduler *Scheduler, opts RouteOptions) {
	r.Route("/api/documents", func(r chi.Router) {
		r.Get("/", handleList(reg))
		r.Post("/", handleUpload(reg, pipeline, scheduler, opts))
		r.Post("/reindex", handleReindexAll(reg, scheduler))
		r.Get("/{id}", handleGet(reg))
		r.Delete("/{id}", handleDelete(pipeline))
		r.Post("/{id}/reindex", handleReindexOne(reg, scheduler))
	})
}

type uploadResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Duplicate   bool   `json:"duplicate,omitempty"`
	DuplicateOf string `json:"duplicate_of,omitempty"`
}

func handleUpload(reg *registry.Registry, pipeline *Pipeline, scheduler *Scheduler, opts RouteOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, opts.MaxUploadBytes)

		file, header, err := r.FormFile("file")
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				http.Error(w, fmt.Sprintf("upload exceeds %d bytes", opts.MaxUploadBytes), http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "multipart field 'file' is required", http.StatusBadRequest)
			return
		}
		defer file.Close()

		filename := filepath.Base(header.Filename)
		if verr := validateFilename(filename, opts.AllowedExtensions, pipeline.parsers); verr != nil {
			http.Error(w, verr.Error(), http.StatusBadRequest)
			return
		}

		data, err := io.ReadAll(file)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				http.Error(w, fmt.Sprintf("upload exceeds %d bytes", opts.MaxUploadBytes), http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if len(data) == 0 {
			http.Error(w, (&ValidationError{Reason: "empty file"}).Error(), http.StatusBadRequest)
			return
		}

		hash := HashContent(data)
		if canonical, ok := reg.FindByHash(hash); ok {
			dup := registry.DocumentRecord{
				ID:          uuid.NewString(),
				ContentHash: hash,
				Filename:    filename,
				Status:      registry.StatusProcessed,
				DuplicateOf: canonical.ID,
			}
			if err := reg.Create(dup); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, uploadResponse{
				ID:          dup.ID,
				Status:      string(dup.Status),
				Duplicate:   true,
				DuplicateOf: canonical.ID,
			})
			return
		}

		docID := uuid.NewString()
		uri, err := pipeline.blobs.Put(r.Context(), BlobKey(docID, filename), bytes.NewReader(data))
		if err != nil {
			http.Error(w, fmt.Sprintf("store upload: %v", err), http.StatusInternalServerError)
			return
		}

		rec := registry.DocumentRecord{
			ID:          docID,
			ContentHash: hash,
			Filename:    filename,
			StorageURI:  uri,
			Status:      registry.StatusPending,
		}
		if err := reg.Create(rec); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		if err := scheduler.Enqueue(docID); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusAccepted, uploadResponse{ID: docID, Status: string(registry.StatusPending)})
	}
}

func handleList(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs := reg.List()
		if status := r.URL.Query().Get("status"); status != "" {
			filtered := docs[:0]
			for _, d := range docs {
				if string(d.Status) == status {
					filtered = append(filtered, d)
				}
			}
			docs = filtered
		}
		writeJSON(w, http.StatusOK, docs)
	}
}

func handleGet(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := reg.Get(chi.URLParam(r, "id"))
		if errors.Is(err, registry.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

func handleDelete(pipeline *Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := pipeline.Remove(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, registry.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleReindexOne(reg *registry.Registry, scheduler *Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		doc, err := reg.Get(id)
		if errors.Is(err, registry.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if doc.DuplicateOf != "" {
			http.Error(w, "duplicate documents have no index entries; reindex the canonical document "+doc.DuplicateOf, http.StatusConflict)
			return
		}

		if err := scheduler.Enqueue(id); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": "queued"})
	}
}

func handleReindexAll(reg *registry.Registry, scheduler *Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		queued := 0
		for _, doc := range reg.List() {
			if doc.DuplicateOf != "" {
				continue
			}
			if err := scheduler.Enqueue(doc.ID); err != nil {
				http.Error(w, fmt.Sprintf("queued %d before failure: %v", queued, err), http.StatusServiceUnavailable)
				return
			}
			queued++
		}
		writeJSON(w, http.StatusAccepted, map[string]int{"queued": queued})
	}
}

func validateFilename(filename string, allowed []string, parsers *parser.Registry) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return &ValidationError{Reason: "file has no extension"}
	}
	permitted := false
	for _, a := range allowed {
		if ext == strings.ToLower(a) {
			permitted = true
			break
		}
	}
	if !permitted {
		return &ValidationError{Reason: fmt.Sprintf("extension %s not allowed (accepted: %s)", ext, strings.Join(allowed, ", "))}
	}
	// An allowlisted extension with no parser behind it would be queued
	// only to fail; reject it up front instead.
	if parsers != nil && !parsers.Supports(ext) {
		return &ValidationError{Reason: fmt.Sprintf("no parser available for %s files", ext)}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
