// Package llm abstracts the text-generation providers used for contract
// metadata extraction, answer synthesis, and competency judging.
package llm

import "context"

// Provider is a text-generation backend. Implementations must be safe for
// concurrent use; the ingestion workers and the query path share one
// instance.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	Name() string
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a chat prompt.
type Message struct {
	Role    Role
	Content string
}

// CompletionRequest describes one generation call. Model overrides the
// provider default when set. JSONMode requests a JSON object response from
// providers that support structured output.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
	JSONMode    bool
}

// CompletionResponse is the provider-neutral result of a generation call.
type CompletionResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
	Model        string
	FinishReason string
}
