package extract

import (
	"fmt"

	"github.com/clausewise/clausewise/internal/llm"
)

const extractionSystemPrompt = `You are a contract analyst. You read non-disclosure agreements and extract structured metadata. Respond with a single JSON object and nothing else.`

const extractionUserTemplate = `Extract the following fields from this NDA. If a field is not present in the text, use the empty value ("" for strings, 0 for numbers, [] for lists). Do not guess.

Respond with JSON in exactly this shape:
{
  "effective_date": "YYYY-MM-DD or empty string",
  "term_months": 0,
  "governing_law": "jurisdiction name or empty string",
  "parties": ["legal names of the contracting parties"],
  "is_mutual": true,
  "survival_months": 0,
  "confidence_score": 0.0
}

Rules:
- effective_date is the date the agreement takes effect, not the signature date, unless they are the same.
- term_months is the agreement term converted to months (e.g. "two (2) years" is 24).
- survival_months is how long confidentiality obligations outlive termination, in months.
- is_mutual is true when both parties disclose and receive confidential information.
- confidence_score is your overall confidence in the extraction, between 0.0 and 1.0.

NDA text:
---
%s
---`

const fallbackUserTemplate = `Extract metadata from this NDA as JSON with keys: effective_date (YYYY-MM-DD), term_months (int), governing_law (string), parties (list of strings), is_mutual (bool), survival_months (int), confidence_score (0.0-1.0). Use empty values for anything not found.

%s`

func buildExtractionMessages(text string) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: extractionSystemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf(extractionUserTemplate, text)},
	}
}

func buildFallbackMessages(text string) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: extractionSystemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf(fallbackUserTemplate, text)},
	}
}
