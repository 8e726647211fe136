// Package extract pulls structured contract metadata out of NDA text.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/clausewise/clausewise/internal/llm"
	"github.com/clausewise/clausewise/internal/registry"
)

// maxPromptChars bounds how much contract text is sent to the model. NDAs
// front-load the operative clauses, so the head of the document is enough.
const maxPromptChars = 24000

// requiredFields are reported in missing_fields when extraction leaves
// them empty.
var requiredFields = []string{"effective_date", "term_months", "governing_law", "parties"}

// Extractor produces contract metadata from extracted document text.
type Extractor interface {
	Extract(ctx context.Context, text string) (*registry.ContractMetadata, error)
}

// LLMExtractor asks an LLM for metadata in JSON mode, falling back to
// heuristics when the response cannot be parsed.
type LLMExtractor struct {
	provider llm.Provider
	model    string
}

// NewLLMExtractor creates an extractor backed by the given provider.
func NewLLMExtractor(provider llm.Provider, model string) *LLMExtractor {
	return &LLMExtractor{provider: provider, model: model}
}

// completeWithRetry calls the LLM with exponential backoff on rate limit errors.
func (e *LLMExtractor) completeWithRetry(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	maxRetries := 5
	backoff := 15 * time.Second

	for attempt := 0; attempt <= maxRetries; attempt++ {
		resp, err := e.provider.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}

		errStr := err.Error()
		isRateLimit := strings.Contains(errStr, "rate_limit") || strings.Contains(errStr, "429") || strings.Contains(errStr, "too many requests")
		isOverloaded := strings.Contains(errStr, "overloaded")

		if !isRateLimit && !isOverloaded {
			return nil, err
		}

		if attempt == maxRetries {
			return nil, fmt.Errorf("rate limited after %d retries: %w", maxRetries, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
			backoff = backoff * 2
			if backoff > 2*time.Minute {
				backoff = 2 * time.Minute
			}
		}
	}
	return nil, fmt.Errorf("unreachable")
}

// Extract runs the extraction prompt and normalizes the result.
func (e *LLMExtractor) Extract(ctx context.Context, text string) (*registry.ContractMetadata, error) {
	excerpt := text
	if len(excerpt) > maxPromptChars {
		excerpt = excerpt[:maxPromptChars]
	}

	resp, err := e.completeWithRetry(ctx, llm.CompletionRequest{
		Model:       e.model,
		Messages:    buildExtractionMessages(excerpt),
		MaxTokens:   1024,
		Temperature: 0.0,
		JSONMode:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("llm completion: %w", err)
	}

	meta, parseErr := parseMetadata(resp.Content)
	if parseErr != nil {
		// Retry with a simpler fallback prompt before giving up on the model.
		fallbackResp, fallbackErr := e.completeWithRetry(ctx, llm.CompletionRequest{
			Model:       e.model,
			Messages:    buildFallbackMessages(excerpt),
			MaxTokens:   512,
			Temperature: 0.0,
			JSONMode:    true,
		})
		if fallbackErr == nil {
			meta, parseErr = parseMetadata(fallbackResp.Content)
		}
		if meta == nil {
			meta = HeuristicExtract(text)
			normalize(meta)
			return meta, nil
		}
	}

	meta.ExtractionMethod = "llm"
	normalize(meta)
	return meta, nil
}

// parseMetadata parses an LLM JSON response, tolerating markdown fences.
func parseMetadata(raw string) (*registry.ContractMetadata, error) {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		lines := strings.Split(raw, "\n")
		if len(lines) >= 2 {
			start := 1
			end := len(lines)
			if strings.TrimSpace(lines[end-1]) == "```" {
				end--
			}
			raw = strings.Join(lines[start:end], "\n")
		}
	}

	var payload struct {
		EffectiveDate   string   `json:"effective_date"`
		TermMonths      int      `json:"term_months"`
		GoverningLaw    string   `json:"governing_law"`
		Parties         []string `json:"parties"`
		IsMutual        bool     `json:"is_mutual"`
		SurvivalMonths  int      `json:"survival_months"`
		ConfidenceScore float64  `json:"confidence_score"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("json parse: %w", err)
	}

	return &registry.ContractMetadata{
		EffectiveDate:   payload.EffectiveDate,
		TermMonths:      payload.TermMonths,
		GoverningLaw:    payload.GoverningLaw,
		Parties:         payload.Parties,
		IsMutual:        payload.IsMutual,
		SurvivalMonths:  payload.SurvivalMonths,
		ConfidenceScore: payload.ConfidenceScore,
	}, nil
}

// normalize clamps the confidence score, validates the date format, and
// recomputes missing_fields from the populated values.
func normalize(m *registry.ContractMetadata) {
	if m.ConfidenceScore < 0 {
		m.ConfidenceScore = 0
	}
	if m.ConfidenceScore > 1 {
		m.ConfidenceScore = 1
	}
	if m.EffectiveDate != "" {
		if _, err := time.Parse("2006-01-02", m.EffectiveDate); err != nil {
			m.EffectiveDate = ""
		}
	}
	if m.TermMonths < 0 {
		m.TermMonths = 0
	}
	if m.SurvivalMonths < 0 {
		m.SurvivalMonths = 0
	}

	m.MissingFields = nil
	for _, field := range requiredFields {
		switch field {
		case "effective_date":
			if m.EffectiveDate == "" {
				m.MissingFields = append(m.MissingFields, field)
			}
		case "term_months":
			if m.TermMonths == 0 {
				m.MissingFields = append(m.MissingFields, field)
			}
		case "governing_law":
			if m.GoverningLaw == "" {
				m.MissingFields = append(m.MissingFields, field)
			}
		case "parties":
			if len(m.Parties) == 0 {
				m.MissingFields = append(m.MissingFields, field)
			}
		}
	}
}
