package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/clausewise/clausewise/internal/registry"
)

// heuristicConfidence is deliberately low so downstream consumers can tell
// pattern-matched metadata apart from model-extracted metadata.
const heuristicConfidence = 0.3

var (
	datePatterns = []struct {
		re     *regexp.Regexp
		layout string
	}{
		{regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`), "2006-01-02"},
		{regexp.MustCompile(`\b(January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},\s+\d{4}\b`), "January 2, 2006"},
		{regexp.MustCompile(`\b\d{1,2}\s+(January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{4}\b`), "2 January 2006"},
	}

	termRe      = regexp.MustCompile(`(?i)(?:term|period)\s+of\s+(?:\w+\s+)?\((\d+)\)\s+(month|year)s?`)
	termPlainRe = regexp.MustCompile(`(?i)(?:term|period)\s+of\s+(\d+)\s+(month|year)s?`)
	lawRe       = regexp.MustCompile(`(?i)governed\s+by\s+(?:and\s+construed\s+(?:in\s+accordance\s+with|under)\s+)?the\s+laws?\s+of\s+(?:the\s+(?:State|Commonwealth)\s+of\s+)?([A-Z][A-Za-z ]+?)[,.;\n]`)
	partiesRe   = regexp.MustCompile(`(?i)between\s+(.+?)\s+(?:\("[^"]*"\)\s+)?and\s+(.+?)(?:\s+\("[^"]*"\))?[,.;\n(]`)
	survivalRe  = regexp.MustCompile(`(?i)survive[^.]*?(?:for\s+)?(?:\w+\s+)?\((\d+)\)\s+(month|year)s?`)
	mutualRe    = regexp.MustCompile(`(?i)\bmutual\b`)
)

// HeuristicExtract pattern-matches common NDA phrasings. It is used when
// the LLM path fails and never errors.
func HeuristicExtract(text string) *registry.ContractMetadata {
	meta := &registry.ContractMetadata{
		ConfidenceScore:  heuristicConfidence,
		ExtractionMethod: "heuristic",
	}

	head := text
	if len(head) > maxPromptChars {
		head = head[:maxPromptChars]
	}

	for _, p := range datePatterns {
		if match := p.re.FindString(head); match != "" {
			if t, err := time.Parse(p.layout, match); err == nil {
				meta.EffectiveDate = t.Format("2006-01-02")
				break
			}
		}
	}

	if m := termRe.FindStringSubmatch(head); m != nil {
		meta.TermMonths = toMonths(m[1], m[2])
	} else if m := termPlainRe.FindStringSubmatch(head); m != nil {
		meta.TermMonths = toMonths(m[1], m[2])
	}

	if m := survivalRe.FindStringSubmatch(head); m != nil {
		meta.SurvivalMonths = toMonths(m[1], m[2])
	}

	if m := lawRe.FindStringSubmatch(head); m != nil {
		meta.GoverningLaw = strings.TrimSpace(m[1])
	}

	if m := partiesRe.FindStringSubmatch(head); m != nil {
		for _, raw := range m[1:] {
			party := cleanParty(raw)
			if party != "" {
				meta.Parties = append(meta.Parties, party)
			}
		}
	}

	meta.IsMutual = mutualRe.MatchString(head)
	return meta
}

func toMonths(count, unit string) int {
	n, err := strconv.Atoi(count)
	if err != nil {
		return 0
	}
	if strings.EqualFold(unit, "year") {
		return n * 12
	}
	return n
}

func cleanParty(raw string) string {
	s := strings.TrimSpace(raw)
	if idx := strings.Index(s, "("); idx > 0 {
		s = strings.TrimSpace(s[:idx])
	}
	s = strings.Trim(s, `"',`)
	if len(s) > 80 {
		return ""
	}
	return s
}
