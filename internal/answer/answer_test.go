package answer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/clausewise/clausewise/internal/chunkstore"
	"github.com/clausewise/clausewise/internal/db"
	"github.com/clausewise/clausewise/internal/index"
	"github.com/clausewise/clausewise/internal/llm"
	"github.com/clausewise/clausewise/internal/registry"
	"github.com/clausewise/clausewise/internal/retriever"
	"github.com/clausewise/clausewise/internal/router"
)

// stubProvider returns a fixed completion, or an error.
type stubProvider struct {
	response string
	err      error
	calls    int
}

func (p *stubProvider) Complete(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &llm.CompletionResponse{Content: p.response}, nil
}

func (p *stubProvider) Name() string { return "stub" }

// stubBackend returns a fixed ranked list.
type stubBackend struct {
	hits []index.Hit
}

func (s *stubBackend) Upsert(context.Context, string, []index.Entry) error { return nil }
func (s *stubBackend) Delete(context.Context, string) error                { return nil }
func (s *stubBackend) Name() string                                        { return "lexical" }
func (s *stubBackend) Query(context.Context, string, int) ([]index.Hit, error) {
	return s.hits, nil
}

type fixture struct {
	provider *stubProvider
	asm      *Assembler
}

func newFixture(t *testing.T, chunks []chunkstore.Chunk, hits []index.Hit, provider *stubProvider) *fixture {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	store := chunkstore.NewStore(database)
	byDoc := make(map[string][]chunkstore.Chunk)
	for _, c := range chunks {
		byDoc[c.DocumentID] = append(byDoc[c.DocumentID], c)
	}
	for docID, docChunks := range byDoc {
		if err := store.Replace(context.Background(), docID, docChunks); err != nil {
			t.Fatalf("seed chunks: %v", err)
		}
	}

	reg := registry.NewInMemory()
	for docID := range byDoc {
		if err := reg.Create(registry.DocumentRecord{
			ID:       docID,
			Filename: docID + "-nda.pdf",
			Status:   registry.StatusProcessed,
		}); err != nil {
			t.Fatalf("seed registry: %v", err)
		}
	}

	rt := retriever.New(store, []index.Backend{&stubBackend{hits: hits}}, nil, 60)
	asm := New(provider, "test-model", reg, rt, router.New(reg), 12, 1024, 50)
	return &fixture{provider: provider, asm: asm}
}

func clause(id, docID string, idx int, clauseNum, text string) chunkstore.Chunk {
	return chunkstore.Chunk{
		ID:           id,
		DocumentID:   docID,
		ChunkIndex:   idx,
		SectionType:  chunkstore.SectionClause,
		ClauseNumber: clauseNum,
		Text:         text,
		PageNum:      1,
		SpanStart:    idx * 100,
		SpanEnd:      idx*100 + len(text),
		SourceURI:    "file:///" + docID + ".txt",
	}
}

func TestAnswerWithCitations(t *testing.T) {
	chunks := []chunkstore.Chunk{
		clause("c1", "acme", 0, "2", "The term of this Agreement is twenty-four months."),
		clause("c2", "acme", 1, "3", "This Agreement is governed by the laws of Delaware."),
	}
	hits := []index.Hit{{ChunkID: "c1", Score: 2}, {ChunkID: "c2", Score: 1}}
	provider := &stubProvider{response: "The term is 24 months [1]. Delaware law governs [2], as stated [2]. Unsupported claim [9]."}

	f := newFixture(t, chunks, hits, provider)
	ans, err := f.asm.Answer(context.Background(), "What does the contract say about its term?")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}

	if ans.Source != "retrieval" {
		t.Errorf("source = %q", ans.Source)
	}
	if len(ans.Citations) != 2 {
		t.Fatalf("citations = %d, want 2 (repeated [2] deduped)", len(ans.Citations))
	}
	if ans.Citations[0].ChunkID != "c1" || ans.Citations[1].ChunkID != "c2" {
		t.Errorf("citations = %+v", ans.Citations)
	}
	if ans.Citations[0].ClauseNumber != "2" || ans.Citations[0].PageNum != 1 {
		t.Errorf("citation provenance = %+v", ans.Citations[0])
	}
	if ans.Citations[0].Filename != "acme-nda.pdf" {
		t.Errorf("citation filename = %q", ans.Citations[0].Filename)
	}
	if strings.Contains(ans.Answer, "[9]") {
		t.Errorf("out-of-range marker kept: %q", ans.Answer)
	}
	if !strings.Contains(ans.Answer, "[1]") {
		t.Errorf("valid marker stripped: %q", ans.Answer)
	}
}

func TestAnswerMetadataDirectSkipsRetrieval(t *testing.T) {
	chunks := []chunkstore.Chunk{
		clause("c1", "acme", 0, "3", "This Agreement is governed by the laws of Delaware."),
	}
	provider := &stubProvider{response: "should not be called"}
	f := newFixture(t, chunks, []index.Hit{{ChunkID: "c1", Score: 1}}, provider)

	// Give the registry record the metadata the router needs.
	reg := registryOf(t, f)
	if err := reg.Put("acme", func(d *registry.DocumentRecord) error {
		d.Metadata.GoverningLaw = "Delaware"
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	ans, err := f.asm.Answer(context.Background(), "What is the governing law of the acme nda?")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if ans.Source != "metadata" {
		t.Fatalf("source = %q, want metadata", ans.Source)
	}
	if !strings.Contains(ans.Answer, "Delaware") {
		t.Errorf("answer = %q", ans.Answer)
	}
	if p := f.provider; p.calls != 0 {
		t.Errorf("provider called %d times for a metadata question", p.calls)
	}
}

func TestAnswerClauseDedupe(t *testing.T) {
	// Two chunks of the same clause; only the better-ranked one enters
	// the context, so [2] must refer to the second clause.
	chunks := []chunkstore.Chunk{
		clause("c1a", "acme", 0, "2", "The term of this Agreement is twenty-four months,"),
		clause("c1b", "acme", 1, "2", "renewable by mutual written consent."),
		clause("c2", "acme", 2, "3", "Delaware law governs."),
	}
	hits := []index.Hit{
		{ChunkID: "c1a", Score: 3},
		{ChunkID: "c1b", Score: 2},
		{ChunkID: "c2", Score: 1},
	}
	provider := &stubProvider{response: "Term answer [1], law answer [2]."}

	f := newFixture(t, chunks, hits, provider)
	ans, err := f.asm.Answer(context.Background(), "What does the contract say about its term?")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if len(ans.Citations) != 2 {
		t.Fatalf("citations = %+v", ans.Citations)
	}
	if ans.Citations[0].ChunkID != "c1a" {
		t.Errorf("citation 1 = %s, want the higher-scored chunk of clause 2", ans.Citations[0].ChunkID)
	}
	if ans.Citations[1].ChunkID != "c2" {
		t.Errorf("citation 2 = %s, want c2", ans.Citations[1].ChunkID)
	}
}

func TestAnswerContextCap(t *testing.T) {
	var chunks []chunkstore.Chunk
	var hits []index.Hit
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("c%d", i)
		chunks = append(chunks, clause(id, "acme", i, fmt.Sprintf("%d", i+1), fmt.Sprintf("Clause %d body.", i+1)))
		hits = append(hits, index.Hit{ChunkID: id, Score: float64(20 - i)})
	}
	provider := &stubProvider{response: "ok [1]"}

	f := newFixture(t, chunks, hits, provider)
	f.asm.maxChunks = 5

	if _, err := f.asm.Answer(context.Background(), "What do the clauses say?"); err != nil {
		t.Fatalf("answer: %v", err)
	}

	picked := f.asm.selectContext(mustRetrieve(t, f, "What do the clauses say?"))
	if len(picked) != 5 {
		t.Errorf("context size = %d, want 5", len(picked))
	}
	for i, res := range picked {
		if res.Chunk.ID != fmt.Sprintf("c%d", i) {
			t.Errorf("context[%d] = %s, want the %d best-ranked chunks", i, res.Chunk.ID, 5)
		}
	}
}

func TestAnswerEmptyIndex(t *testing.T) {
	provider := &stubProvider{response: "should not be called"}
	f := newFixture(t, nil, nil, provider)

	ans, err := f.asm.Answer(context.Background(), "What does the contract say?")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if ans.Answer != noContextAnswer {
		t.Errorf("answer = %q", ans.Answer)
	}
	if len(ans.Citations) != 0 {
		t.Errorf("citations = %+v", ans.Citations)
	}
	if provider.calls != 0 {
		t.Errorf("provider called with no context")
	}
}

func TestAnswerDegradedOnGenerationFailure(t *testing.T) {
	chunks := []chunkstore.Chunk{
		clause("c1", "acme", 0, "2", "The term of this Agreement is twenty-four months."),
	}
	provider := &stubProvider{err: fmt.Errorf("model overloaded")}

	f := newFixture(t, chunks, []index.Hit{{ChunkID: "c1", Score: 1}}, provider)
	ans, err := f.asm.Answer(context.Background(), "What is the term?")
	if err != nil {
		t.Fatalf("answer should degrade, not fail: %v", err)
	}
	if !ans.Degraded {
		t.Fatal("not marked degraded")
	}
	if !strings.Contains(ans.Answer, "twenty-four months") {
		t.Errorf("degraded answer missing evidence: %q", ans.Answer)
	}
	if len(ans.Citations) != 1 || ans.Citations[0].ChunkID != "c1" {
		t.Errorf("citations = %+v", ans.Citations)
	}
}

func TestAnswerEndpoint(t *testing.T) {
	chunks := []chunkstore.Chunk{
		clause("c1", "acme", 0, "2", "The term is twenty-four months."),
	}
	provider := &stubProvider{response: "Twenty-four months [1]."}
	f := newFixture(t, chunks, []index.Hit{{ChunkID: "c1", Score: 1}}, provider)

	r := chi.NewRouter()
	RegisterRoutes(r, f.asm)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/answer", strings.NewReader(`{"question":"what is the term?"}`))
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Twenty-four months") {
		t.Errorf("body = %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/answer", strings.NewReader(`{"question":""}`))
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty question status = %d, want 400", rec.Code)
	}
}

func registryOf(t *testing.T, f *fixture) *registry.Registry {
	t.Helper()
	return f.asm.reg
}

func mustRetrieve(t *testing.T, f *fixture, question string) []retriever.FusedResult {
	t.Helper()
	results, err := f.asm.rt.Retrieve(context.Background(), question, f.asm.k)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	return results
}
