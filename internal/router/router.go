// Package router classifies incoming questions and answers the ones that
// map onto extracted contract metadata without touching the indexes.
package router

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/clausewise/clausewise/internal/registry"
)

// Intent is the recognized question category.
type Intent string

const (
	IntentEffectiveDate Intent = "effective_date"
	IntentExpiration    Intent = "expiration"
	IntentTerm          Intent = "term"
	IntentGoverningLaw  Intent = "governing_law"
	IntentParties       Intent = "parties"
	IntentMutual        Intent = "mutual"
	// IntentGeneral routes to hybrid retrieval.
	IntentGeneral Intent = "general"
)

// Route is the routing decision for one question.
type Route struct {
	Intent   Intent                   `json:"intent"`
	Document *registry.DocumentRecord `json:"document,omitempty"`
	// Direct is true when Answer was produced from metadata and no
	// retrieval is needed.
	Direct bool   `json:"direct"`
	Answer string `json:"answer,omitempty"`
}

// Router resolves questions against the document registry.
type Router struct {
	reg *registry.Registry
}

func New(reg *registry.Registry) *Router {
	return &Router{reg: reg}
}

var intentPatterns = []struct {
	intent Intent
	re     *regexp.Regexp
}{
	{IntentExpiration, regexp.MustCompile(`(?i)\b(expir\w*|lapse|run out|end date|ends?\s+on|until when)\b`)},
	{IntentEffectiveDate, regexp.MustCompile(`(?i)\b(effective date|take[sn]? effect|commencement|start date|starts?\s+on|signed on|entered into)\b`)},
	{IntentTerm, regexp.MustCompile(`(?i)\b(how long|term length|duration|term of|what term|many (months|years))\b`)},
	{IntentGoverningLaw, regexp.MustCompile(`(?i)\b(governing law|governed by|jurisdiction|which (state|country)'?s? law|choice of law)\b`)},
	{IntentParties, regexp.MustCompile(`(?i)\b(parties|who signed|between whom|counterpart(y|ies)|who (is|are) bound)\b`)},
	{IntentMutual, regexp.MustCompile(`(?i)\b(mutual|one[- ]way|unilateral|bilateral|both (parties|sides))\b`)},
}

// Classify returns the first matching intent. Expiration is checked before
// effective date so "when does it expire" never reads as a start-date
// question.
func Classify(question string) Intent {
	for _, p := range intentPatterns {
		if p.re.MatchString(question) {
			return p.intent
		}
	}
	return IntentGeneral
}

// Route classifies the question, resolves a document reference if one is
// present, and answers directly from metadata when it can. Questions it
// cannot settle from metadata come back with Direct=false for the
// retrieval path.
func (r *Router) Route(_ context.Context, question string) *Route {
	intent := Classify(question)
	doc := ResolveDocument(question, r.reg.List())

	route := &Route{Intent: intent, Document: doc}
	if intent == IntentGeneral || doc == nil || doc.Status != registry.StatusProcessed {
		return route
	}

	answer, ok := metadataAnswer(intent, doc)
	if !ok {
		return route
	}
	route.Direct = true
	route.Answer = answer
	return route
}

// metadataAnswer renders an answer from extracted metadata. ok is false
// when the needed field was not extracted, which sends the question to
// retrieval instead of guessing.
func metadataAnswer(intent Intent, doc *registry.DocumentRecord) (string, bool) {
	m := doc.Metadata
	switch intent {
	case IntentEffectiveDate:
		if m.EffectiveDate == "" {
			return "", false
		}
		return fmt.Sprintf("%s became effective on %s.", doc.Filename, m.EffectiveDate), true
	case IntentExpiration:
		exp, ok := m.ExpirationDate()
		if !ok {
			return "", false
		}
		return fmt.Sprintf("%s expires on %s (effective %s, term %d months).",
			doc.Filename, exp.Format("2006-01-02"), m.EffectiveDate, m.TermMonths), true
	case IntentTerm:
		if m.TermMonths == 0 {
			return "", false
		}
		return fmt.Sprintf("%s has a term of %d months.", doc.Filename, m.TermMonths), true
	case IntentGoverningLaw:
		if m.GoverningLaw == "" {
			return "", false
		}
		return fmt.Sprintf("%s is governed by the laws of %s.", doc.Filename, m.GoverningLaw), true
	case IntentParties:
		if len(m.Parties) == 0 {
			return "", false
		}
		return fmt.Sprintf("The parties to %s are %s.", doc.Filename, strings.Join(m.Parties, " and ")), true
	case IntentMutual:
		kind := "one-way"
		if m.IsMutual {
			kind = "mutual"
		}
		return fmt.Sprintf("%s is a %s NDA.", doc.Filename, kind), true
	}
	return "", false
}

// ResolveDocument finds the document a question refers to by fuzzy
// filename match. It returns nil when no filename scores well enough or
// when two documents tie, since answering about the wrong contract is
// worse than running retrieval.
func ResolveDocument(question string, docs []registry.DocumentRecord) *registry.DocumentRecord {
	q := normalize(question)
	if q == "" {
		return nil
	}

	var best *registry.DocumentRecord
	bestScore := 0.0
	tied := false
	for i := range docs {
		score := matchScore(q, normalize(docs[i].Filename))
		switch {
		case score > bestScore:
			best = &docs[i]
			bestScore = score
			tied = false
		case score == bestScore && score > 0:
			tied = true
		}
	}
	if best == nil || bestScore < 0.5 || tied {
		return nil
	}
	return best
}

// matchScore scores how strongly the normalized question references the
// normalized filename: 1.0 for containment, otherwise the fraction of
// filename tokens found in the question within one edit.
func matchScore(question, name string) float64 {
	if name == "" {
		return 0
	}
	if strings.Contains(question, name) {
		return 1.0
	}

	nameTokens := strings.Fields(name)
	qTokens := strings.Fields(question)
	if len(nameTokens) == 0 {
		return 0
	}

	matched := 0
	for _, nt := range nameTokens {
		for _, qt := range qTokens {
			if nt == qt || (len(nt) > 3 && levenshtein(nt, qt) <= 1) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(nameTokens))
}

// normalize lowercases, strips a file extension, and collapses
// punctuation to spaces.
func normalize(s string) string {
	s = strings.ToLower(s)
	if idx := strings.LastIndex(s, "."); idx > 0 && len(s)-idx <= 5 {
		s = s[:idx]
	}
	var sb strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		} else {
			sb.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// levenshtein computes edit distance with a two-row table.
func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
