package retriever

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// maxQueryChars bounds query length before any backend is consulted.
const maxQueryChars = 4096

// RegisterRoutes mounts the search endpoint on the given router.
func RegisterRoutes(r chi.Router, rt *Retriever, defaultK int) {
	r.Post("/api/search", handleSearch(rt, defaultK))
}

type searchRequest struct {
	Query   string  `json:"query"`
	K       int     `json:"k,omitempty"`
	Filters Filters `json:"filters,omitempty"`
}

type searchResponse struct {
	Results []FusedResult `json:"results"`
}

func handleSearch(rt *Retriever, defaultK int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Query) == "" {
			http.Error(w, "query is required", http.StatusBadRequest)
			return
		}
		if len(req.Query) > maxQueryChars {
			http.Error(w, "query too long", http.StatusBadRequest)
			return
		}

		k := req.K
		if k <= 0 {
			k = defaultK
		}

		results, err := rt.RetrieveFiltered(r.Context(), req.Query, k, req.Filters)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if results == nil {
			results = []FusedResult{}
		}

		writeJSON(w, http.StatusOK, searchResponse{Results: results})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
