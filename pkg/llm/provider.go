package llm

import "context"

// Provider produces a single completion for a conversation. Marketing copy is
// short, so a non-streaming interface keeps callers simple.
type Provider interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
