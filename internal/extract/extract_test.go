package extract

import (
	"context"
	"fmt"
	"testing"

	"github.com/clausewise/clausewise/internal/llm"
)

// scriptedProvider returns canned responses in order.
type scriptedProvider struct {
	responses []string
	errs      []error
	calls     int
}

func (p *scriptedProvider) Complete(_ context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
	i := p.calls
	p.calls++
	if i < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	if i >= len(p.responses) {
		return nil, fmt.Errorf("no scripted response for call %d", i)
	}
	return &llm.CompletionResponse{Content: p.responses[i]}, nil
}

func (p *scriptedProvider) Name() string { return "scripted" }

const validJSON = `{
  "effective_date": "2024-03-15",
  "term_months": 24,
  "governing_law": "Delaware",
  "parties": ["Acme Corp", "Widget LLC"],
  "is_mutual": true,
  "survival_months": 36,
  "confidence_score": 0.92
}`

func TestExtractParsesResponse(t *testing.T) {
	p := &scriptedProvider{responses: []string{validJSON}}
	ex := NewLLMExtractor(p, "test-model")

	meta, err := ex.Extract(context.Background(), "some nda text")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if meta.EffectiveDate != "2024-03-15" {
		t.Errorf("effective_date = %q", meta.EffectiveDate)
	}
	if meta.TermMonths != 24 {
		t.Errorf("term_months = %d", meta.TermMonths)
	}
	if meta.GoverningLaw != "Delaware" {
		t.Errorf("governing_law = %q", meta.GoverningLaw)
	}
	if len(meta.Parties) != 2 {
		t.Errorf("parties = %v", meta.Parties)
	}
	if !meta.IsMutual {
		t.Error("is_mutual = false")
	}
	if meta.ExtractionMethod != "llm" {
		t.Errorf("extraction_method = %q", meta.ExtractionMethod)
	}
	if len(meta.MissingFields) != 0 {
		t.Errorf("missing_fields = %v", meta.MissingFields)
	}
}

func TestExtractStripsCodeFences(t *testing.T) {
	p := &scriptedProvider{responses: []string{"```json\n" + validJSON + "\n```"}}
	ex := NewLLMExtractor(p, "test-model")

	meta, err := ex.Extract(context.Background(), "text")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if meta.TermMonths != 24 {
		t.Errorf("term_months = %d after fence stripping", meta.TermMonths)
	}
}

func TestExtractFallbackPrompt(t *testing.T) {
	p := &scriptedProvider{responses: []string{"not json at all", validJSON}}
	ex := NewLLMExtractor(p, "test-model")

	meta, err := ex.Extract(context.Background(), "text")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if p.calls != 2 {
		t.Errorf("calls = %d, want 2 (primary then fallback)", p.calls)
	}
	if meta.GoverningLaw != "Delaware" {
		t.Errorf("governing_law = %q", meta.GoverningLaw)
	}
}

func TestExtractHeuristicWhenLLMUnparseable(t *testing.T) {
	p := &scriptedProvider{responses: []string{"garbage", "more garbage"}}
	ex := NewLLMExtractor(p, "test-model")

	text := `MUTUAL NON-DISCLOSURE AGREEMENT

This Agreement is entered into as of 2024-01-10 between Acme Corp ("Discloser") and Widget LLC ("Recipient"),
for a term of two (2) years. This Agreement shall be governed by the laws of the State of New York.
The obligations herein shall survive termination for three (3) years.`

	meta, err := ex.Extract(context.Background(), text)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if meta.ExtractionMethod != "heuristic" {
		t.Fatalf("extraction_method = %q, want heuristic", meta.ExtractionMethod)
	}
	if meta.EffectiveDate != "2024-01-10" {
		t.Errorf("effective_date = %q", meta.EffectiveDate)
	}
	if meta.TermMonths != 24 {
		t.Errorf("term_months = %d", meta.TermMonths)
	}
	if meta.GoverningLaw != "New York" {
		t.Errorf("governing_law = %q", meta.GoverningLaw)
	}
	if meta.SurvivalMonths != 36 {
		t.Errorf("survival_months = %d", meta.SurvivalMonths)
	}
	if !meta.IsMutual {
		t.Error("is_mutual = false for a mutual NDA")
	}
	if meta.ConfidenceScore >= 0.5 {
		t.Errorf("confidence_score = %f, heuristic extraction should score low", meta.ConfidenceScore)
	}
}

func TestExtractNormalizesBadValues(t *testing.T) {
	bad := `{"effective_date": "March 2024", "term_months": -5, "confidence_score": 1.7}`
	p := &scriptedProvider{responses: []string{bad}}
	ex := NewLLMExtractor(p, "test-model")

	meta, err := ex.Extract(context.Background(), "text")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if meta.EffectiveDate != "" {
		t.Errorf("non-ISO date kept: %q", meta.EffectiveDate)
	}
	if meta.TermMonths != 0 {
		t.Errorf("negative term kept: %d", meta.TermMonths)
	}
	if meta.ConfidenceScore != 1.0 {
		t.Errorf("confidence not clamped: %f", meta.ConfidenceScore)
	}
	want := map[string]bool{"effective_date": true, "term_months": true, "governing_law": true, "parties": true}
	for _, f := range meta.MissingFields {
		if !want[f] {
			t.Errorf("unexpected missing field %q", f)
		}
		delete(want, f)
	}
	for f := range want {
		t.Errorf("field %q not reported missing", f)
	}
}

func TestExtractProviderError(t *testing.T) {
	p := &scriptedProvider{errs: []error{fmt.Errorf("connection refused")}}
	ex := NewLLMExtractor(p, "test-model")

	if _, err := ex.Extract(context.Background(), "text"); err == nil {
		t.Fatal("expected error on provider failure")
	}
}

func TestHeuristicSpelledOutNumbers(t *testing.T) {
	meta := HeuristicExtract(`This Agreement shall continue for a period of five (5) years from the Effective Date.`)
	if meta.TermMonths != 60 {
		t.Errorf("term_months = %d, want 60", meta.TermMonths)
	}
}
