package answer

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// maxQuestionChars bounds question length before routing or retrieval.
const maxQuestionChars = 4096

// RegisterRoutes mounts the answer endpoint on the given router.
func RegisterRoutes(r chi.Router, a *Assembler) {
	r.Post("/api/answer", handleAnswer(a))
}

type answerRequest struct {
	Question string `json:"question"`
}

func handleAnswer(a *Assembler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req answerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Question) == "" {
			http.Error(w, "question is required", http.StatusBadRequest)
			return
		}
		if len(req.Question) > maxQuestionChars {
			http.Error(w, "question too long", http.StatusBadRequest)
			return
		}

		ans, err := a.Answer(r.Context(), req.Question)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, ans)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
