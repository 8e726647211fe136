package router

import (
	"context"
	"strings"
	"testing"

	"github.com/clausewise/clausewise/internal/registry"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		question string
		want     Intent
	}{
		{"When does the Acme NDA expire?", IntentExpiration},
		{"What is the effective date of the agreement?", IntentEffectiveDate},
		{"When was this entered into?", IntentEffectiveDate},
		{"How long is the term?", IntentTerm},
		{"What is the governing law?", IntentGoverningLaw},
		{"Which state's law applies?", IntentGoverningLaw},
		{"Who are the parties to this agreement?", IntentParties},
		{"Is the acme agreement mutual or one-way?", IntentMutual},
		{"What counts as confidential information?", IntentGeneral},
		{"Summarize the non-solicitation clause", IntentGeneral},
	}
	for _, tt := range tests {
		if got := Classify(tt.question); got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.question, got, tt.want)
		}
	}
}

func TestClassifyExpirationBeforeEffectiveDate(t *testing.T) {
	// Mentions both start and expiry; expiry wins.
	got := Classify("Given the effective date, when does the agreement expire?")
	if got != IntentExpiration {
		t.Errorf("got %s, want %s", got, IntentExpiration)
	}
}

func seedRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.NewInMemory()
	docs := []registry.DocumentRecord{
		{
			ID:       "doc-acme",
			Filename: "acme-corp-nda.pdf",
			Status:   registry.StatusProcessed,
			Metadata: registry.ContractMetadata{
				EffectiveDate: "2024-03-01",
				TermMonths:    24,
				GoverningLaw:  "Delaware",
				Parties:       []string{"Acme Corp", "Widget LLC"},
				IsMutual:      true,
			},
		},
		{
			ID:       "doc-globex",
			Filename: "globex-mutual-nda.pdf",
			Status:   registry.StatusProcessed,
			Metadata: registry.ContractMetadata{
				GoverningLaw: "New York",
			},
		},
	}
	for _, d := range docs {
		if err := reg.Create(d); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return reg
}

func TestRouteMetadataAnswers(t *testing.T) {
	r := New(seedRegistry(t))
	ctx := context.Background()

	tests := []struct {
		question string
		intent   Intent
		contains string
	}{
		{"When does the acme corp NDA expire?", IntentExpiration, "2026-03-01"},
		{"What is the effective date of the acme corp nda?", IntentEffectiveDate, "2024-03-01"},
		{"How long is the term of the acme corp nda?", IntentTerm, "24 months"},
		{"What is the governing law of the acme corp nda?", IntentGoverningLaw, "Delaware"},
		{"Who are the parties in the acme corp nda?", IntentParties, "Acme Corp and Widget LLC"},
	}
	for _, tt := range tests {
		route := r.Route(ctx, tt.question)
		if route.Intent != tt.intent {
			t.Errorf("%q: intent = %s, want %s", tt.question, route.Intent, tt.intent)
			continue
		}
		if !route.Direct {
			t.Errorf("%q: not answered from metadata", tt.question)
			continue
		}
		if !strings.Contains(route.Answer, tt.contains) {
			t.Errorf("%q: answer %q missing %q", tt.question, route.Answer, tt.contains)
		}
	}
}

func TestRouteMissingMetadataFallsThrough(t *testing.T) {
	r := New(seedRegistry(t))

	// globex has no effective date, so the question must go to retrieval.
	route := r.Route(context.Background(), "When does the globex mutual nda expire?")
	if route.Intent != IntentExpiration {
		t.Fatalf("intent = %s", route.Intent)
	}
	if route.Direct {
		t.Error("answered from metadata despite missing fields")
	}
	if route.Document == nil || route.Document.ID != "doc-globex" {
		t.Errorf("document = %+v, want doc-globex", route.Document)
	}
}

func TestRouteGeneralQuestion(t *testing.T) {
	r := New(seedRegistry(t))

	route := r.Route(context.Background(), "What counts as confidential information?")
	if route.Intent != IntentGeneral || route.Direct {
		t.Errorf("route = %+v, want general non-direct", route)
	}
}

func TestRouteUnprocessedDocumentNotAnswered(t *testing.T) {
	reg := registry.NewInMemory()
	if err := reg.Create(registry.DocumentRecord{
		ID:       "doc-1",
		Filename: "pending-nda.pdf",
		Status:   registry.StatusPending,
		Metadata: registry.ContractMetadata{GoverningLaw: "Texas"},
	}); err != nil {
		t.Fatal(err)
	}

	route := New(reg).Route(context.Background(), "What is the governing law of the pending nda?")
	if route.Direct {
		t.Error("answered from metadata of an unprocessed document")
	}
}

func TestResolveDocument(t *testing.T) {
	docs := []registry.DocumentRecord{
		{ID: "a", Filename: "acme-corp-nda.pdf"},
		{ID: "b", Filename: "globex-mutual-nda.pdf"},
	}

	tests := []struct {
		question string
		wantID   string
	}{
		{"when does the acme corp nda expire", "a"},
		{"tell me about globex mutual nda terms", "b"},
		// Typo within one edit of a filename token.
		{"what law governs the glovex mutual nda", "b"},
		{"what counts as confidential information", ""},
	}
	for _, tt := range tests {
		got := ResolveDocument(tt.question, docs)
		gotID := ""
		if got != nil {
			gotID = got.ID
		}
		if gotID != tt.wantID {
			t.Errorf("ResolveDocument(%q) = %q, want %q", tt.question, gotID, tt.wantID)
		}
	}
}

func TestResolveDocumentAmbiguousTie(t *testing.T) {
	docs := []registry.DocumentRecord{
		{ID: "a", Filename: "vendor-nda-2023.pdf"},
		{ID: "b", Filename: "vendor-nda-2024.pdf"},
	}
	if got := ResolveDocument("what does the vendor nda say", docs); got != nil {
		t.Errorf("ambiguous reference resolved to %s, want nil", got.ID)
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "abc", 0},
		{"abc", "abd", 1},
		{"globex", "glovex", 1},
		{"kitten", "sitting", 3},
	}
	for _, tt := range tests {
		if got := levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
