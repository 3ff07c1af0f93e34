// Package llm abstracts the chat-completion providers used by the
// classifier. Providers return raw response text; JSON shape validation is
// the caller's concern.
package llm

import "context"

// Message is a chat message in the provider-neutral format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Roles understood by all providers.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Schema describes the expected JSON output structure for structured
// responses. Providers that support constrained decoding use it; others
// ignore it.
type Schema struct {
	Type       string                    `json:"type"`
	Properties map[string]SchemaProperty `json:"properties"`
	Required   []string                  `json:"required,omitempty"`
}

// SchemaProperty describes a single field within a Schema.
type SchemaProperty struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Chatter sends messages to a model and returns the raw response text.
type Chatter interface {
	Chat(ctx context.Context, messages []Message, jsonSchema *Schema) (string, error)
}
