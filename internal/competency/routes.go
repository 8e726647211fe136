package competency

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts competency endpoints under /api/competency.
func RegisterRoutes(r chi.Router, store *Store, runner *Runner) {
	r.Route("/api/competency", func(r chi.Router) {
		r.Get("/", handleList(store))
		r.Post("/", handleCreate(store))
		r.Get("/run", handleRunStatus(runner))
		r.Post("/run", handleRunAll(runner))
		r.Get("/{id}", handleGet(store))
		r.Put("/{id}", handleUpdate(store))
		r.Delete("/{id}", handleDelete(store))
		r.Get("/{id}/runs", handleRuns(store))
		r.Post("/{id}/run", handleRunOne(store, runner))
	})
}

type questionPayload struct {
	Question            string   `json:"question"`
	ExpectedAnswer      string   `json:"expected_answer"`
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`
}

func (p *questionPayload) validate() string {
	if strings.TrimSpace(p.Question) == "" {
		return "question is required"
	}
	if strings.TrimSpace(p.ExpectedAnswer) == "" {
		return "expected_answer is required"
	}
	if p.ConfidenceThreshold != nil && (*p.ConfidenceThreshold <= 0 || *p.ConfidenceThreshold > 1) {
		return "confidence_threshold must be in (0, 1]"
	}
	return ""
}

type questionWithLatest struct {
	Question
	LatestRun *Run `json:"latest_run,omitempty"`
}

func handleList(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		questions, err := store.ListQuestions(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		latest, err := store.LatestRuns(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		out := make([]questionWithLatest, len(questions))
		for i, q := range questions {
			out[i] = questionWithLatest{Question: q}
			if run, ok := latest[q.ID]; ok {
				runCopy := run
				out[i].LatestRun = &runCopy
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleCreate(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload questionPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if msg := payload.validate(); msg != "" {
			http.Error(w, msg, http.StatusBadRequest)
			return
		}

		q := &Question{
			Question:            payload.Question,
			ExpectedAnswer:      payload.ExpectedAnswer,
			ConfidenceThreshold: payload.ConfidenceThreshold,
		}
		if err := store.CreateQuestion(r.Context(), q); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, q)
	}
}

func handleGet(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := store.GetQuestion(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

func handleUpdate(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload questionPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if msg := payload.validate(); msg != "" {
			http.Error(w, msg, http.StatusBadRequest)
			return
		}

		q := &Question{
			ID:                  chi.URLParam(r, "id"),
			Question:            payload.Question,
			ExpectedAnswer:      payload.ExpectedAnswer,
			ConfidenceThreshold: payload.ConfidenceThreshold,
		}
		err := store.UpdateQuestion(r.Context(), q)
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

func handleDelete(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := store.DeleteQuestion(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, ErrNotFound) {
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

func handleRuns(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				limit = n
			}
		}
		runs, err := store.RunsForQuestion(r.Context(), chi.URLParam(r, "id"), limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if runs == nil {
			runs = []Run{}
		}
		writeJSON(w, http.StatusOK, runs)
	}
}

func handleRunOne(store *Store, runner *Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := store.GetQuestion(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		run, err := runner.RunOne(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, run)
	}
}

// handleRunAll starts a full suite run in the background. Progress is
// polled via GET /api/competency/run.
func handleRunAll(runner *Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if runner.Progress().Running {
			http.Error(w, "a run is already in progress", http.StatusConflict)
			return
		}
		go func() {
			if err := runner.RunAll(context.Background()); err != nil {
				log.Printf("competency run: %v", err)
			}
		}()
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
	}
}

func handleRunStatus(runner *Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, runner.Progress())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
