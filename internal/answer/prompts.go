package answer

import (
	"fmt"

	"github.com/clausewise/clausewise/internal/llm"
)

const answerSystemPrompt = `You answer questions about non-disclosure agreements using only the provided contract excerpts. Every factual claim must cite its excerpt with a bracketed number like [1]. If the excerpts do not contain the answer, say so plainly. Do not use outside knowledge about the contracts.`

const answerUserTemplate = `Contract excerpts:

%s
Question: %s

Answer the question using only the excerpts above, citing each claim with its excerpt number in brackets.`

func buildAnswerMessages(question, renderedContext string) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: answerSystemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf(answerUserTemplate, renderedContext, question)},
	}
}
