// Package answer turns retrieval results into grounded, cited answers.
package answer

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/clausewise/clausewise/internal/llm"
	"github.com/clausewise/clausewise/internal/registry"
	"github.com/clausewise/clausewise/internal/retriever"
	"github.com/clausewise/clausewise/internal/router"
)

// Citation ties one answer reference back to its chunk provenance.
type Citation struct {
	Ref          int    `json:"ref"`
	ChunkID      string `json:"chunk_id"`
	DocumentID   string `json:"document_id"`
	Filename     string `json:"filename,omitempty"`
	ClauseNumber string `json:"clause_number,omitempty"`
	PageNum      int    `json:"page_num"`
	SpanStart    int    `json:"span_start"`
	SpanEnd      int    `json:"span_end"`
	SourceURI    string `json:"source_uri,omitempty"`
}

// Answer is the assembled response to one question.
type Answer struct {
	Question  string     `json:"question"`
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
	// Source is "metadata" when the router settled the question without
	// retrieval, otherwise "retrieval".
	Source string `json:"source"`
	// Degraded marks answers produced without the LLM after a
	// generation failure.
	Degraded bool `json:"degraded,omitempty"`
}

// noContextAnswer is returned when retrieval finds nothing to ground on.
const noContextAnswer = "No indexed contract text matches this question. Upload and process a document first, or rephrase the question."

// Assembler answers questions over the indexed contracts.
type Assembler struct {
	provider  llm.Provider
	model     string
	reg       *registry.Registry
	rt        *retriever.Retriever
	router    *router.Router
	maxChunks int
	maxTokens int
	k         int
}

// New creates an Assembler. maxChunks caps how many chunks enter the
// prompt; k is the retrieval depth feeding the fusion.
func New(provider llm.Provider, model string, reg *registry.Registry, rt *retriever.Retriever, route *router.Router, maxChunks, maxTokens, k int) *Assembler {
	if maxChunks <= 0 {
		maxChunks = 12
	}
	return &Assembler{
		provider:  provider,
		model:     model,
		reg:       reg,
		rt:        rt,
		router:    route,
		maxChunks: maxChunks,
		maxTokens: maxTokens,
		k:         k,
	}
}

// Answer routes the question, retrieves context when needed, and returns
// a cited answer. Generation failures degrade to an extractive answer
// rather than an error so the caller always gets the evidence.
func (a *Assembler) Answer(ctx context.Context, question string) (*Answer, error) {
	route := a.router.Route(ctx, question)
	if route.Direct {
		return &Answer{
			Question:  question,
			Answer:    route.Answer,
			Citations: []Citation{},
			Source:    "metadata",
		}, nil
	}

	results, err := a.rt.Retrieve(ctx, question, a.k)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	if route.Document != nil {
		results = filterByDocument(results, route.Document.ID)
	}

	picked := a.selectContext(results)
	if len(picked) == 0 {
		return &Answer{
			Question:  question,
			Answer:    noContextAnswer,
			Citations: []Citation{},
			Source:    "retrieval",
		}, nil
	}

	resp, err := a.provider.Complete(ctx, llm.CompletionRequest{
		Model:       a.model,
		Messages:    buildAnswerMessages(question, a.renderContext(picked)),
		MaxTokens:   a.maxTokens,
		Temperature: 0.2,
	})
	if err != nil {
		return a.degradedAnswer(question, picked), nil
	}

	text, citations := a.resolveCitations(resp.Content, picked)
	return &Answer{
		Question:  question,
		Answer:    text,
		Citations: citations,
		Source:    "retrieval",
	}, nil
}

// selectContext dedupes results to one chunk per (document, clause) and
// caps the context size. Results arrive sorted by fused score, so the
// first chunk seen for a clause is the best one.
func (a *Assembler) selectContext(results []retriever.FusedResult) []retriever.FusedResult {
	seen := make(map[string]bool)
	var picked []retriever.FusedResult
	for _, res := range results {
		key := res.Chunk.ID
		if res.Chunk.ClauseNumber != "" {
			key = res.Chunk.DocumentID + "#" + res.Chunk.ClauseNumber
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		picked = append(picked, res)
		if len(picked) == a.maxChunks {
			break
		}
	}
	return picked
}

// renderContext numbers the chunks and groups them by document so the
// model sees which contract each excerpt belongs to.
func (a *Assembler) renderContext(picked []retriever.FusedResult) string {
	byDoc := make(map[string][]int)
	var docOrder []string
	for i, res := range picked {
		id := res.Chunk.DocumentID
		if _, ok := byDoc[id]; !ok {
			docOrder = append(docOrder, id)
		}
		byDoc[id] = append(byDoc[id], i)
	}

	var sb strings.Builder
	for _, docID := range docOrder {
		sb.WriteString("Document: ")
		sb.WriteString(a.filename(docID))
		sb.WriteString("\n")
		for _, i := range byDoc[docID] {
			chunk := picked[i].Chunk
			sb.WriteString(fmt.Sprintf("[%d]", i+1))
			if chunk.ClauseNumber != "" {
				sb.WriteString(" (clause " + chunk.ClauseNumber + ")")
			}
			sb.WriteString(" " + chunk.Text + "\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

var citationRef = regexp.MustCompile(`\[(\d+)\]`)

// resolveCitations maps [n] markers in the generated text back to chunk
// provenance. Markers outside the context range are stripped from the
// text; repeated markers yield one citation.
func (a *Assembler) resolveCitations(text string, picked []retriever.FusedResult) (string, []Citation) {
	used := make(map[int]bool)
	out := citationRef.ReplaceAllStringFunc(text, func(m string) string {
		n, err := strconv.Atoi(m[1 : len(m)-1])
		if err != nil || n < 1 || n > len(picked) {
			return ""
		}
		used[n] = true
		return m
	})

	refs := make([]int, 0, len(used))
	for n := range used {
		refs = append(refs, n)
	}
	sort.Ints(refs)

	citations := make([]Citation, 0, len(refs))
	for _, n := range refs {
		citations = append(citations, a.citationFor(n, picked[n-1]))
	}
	return strings.TrimSpace(out), citations
}

// degradedAnswer returns the top retrieved clauses verbatim when the
// model is unavailable.
func (a *Assembler) degradedAnswer(question string, picked []retriever.FusedResult) *Answer {
	var sb strings.Builder
	sb.WriteString("Answer generation is unavailable. The most relevant contract excerpts are:\n")
	citations := make([]Citation, 0, len(picked))
	for i, res := range picked {
		sb.WriteString(fmt.Sprintf("\n[%d] %s", i+1, res.Chunk.Text))
		citations = append(citations, a.citationFor(i+1, res))
	}
	return &Answer{
		Question:  question,
		Answer:    sb.String(),
		Citations: citations,
		Source:    "retrieval",
		Degraded:  true,
	}
}

func (a *Assembler) citationFor(ref int, res retriever.FusedResult) Citation {
	return Citation{
		Ref:          ref,
		ChunkID:      res.Chunk.ID,
		DocumentID:   res.Chunk.DocumentID,
		Filename:     a.filename(res.Chunk.DocumentID),
		ClauseNumber: res.Chunk.ClauseNumber,
		PageNum:      res.Chunk.PageNum,
		SpanStart:    res.Chunk.SpanStart,
		SpanEnd:      res.Chunk.SpanEnd,
		SourceURI:    res.Chunk.SourceURI,
	}
}

func (a *Assembler) filename(docID string) string {
	doc, err := a.reg.Get(docID)
	if err != nil {
		return docID
	}
	return doc.Filename
}

func filterByDocument(results []retriever.FusedResult, docID string) []retriever.FusedResult {
	kept := results[:0]
	for _, res := range results {
		if res.Chunk.DocumentID == docID {
			kept = append(kept, res)
		}
	}
	return kept
}
