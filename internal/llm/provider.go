// Package llm wraps the chat-completion providers used to generate study
// tasks. OpenRouter is the default; OpenAI, Anthropic and Gemini are
// reachable through the same Provider interface.
package llm

import (
	"context"
	"encoding/json"
)

// Provider is the core abstraction for LLM interaction.
type Provider interface {
	// Generate sends a prompt to the LLM. When the request carries a Schema
	// the response Content is validated JSON; otherwise Text holds the
	// completion.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model identifier this provider is configured to use.
	ModelID() string
}

// Request describes what to send to the LLM.
type Request struct {
	// System is the system prompt.
	System string

	// Messages is the conversation history. Task generation sends a single
	// user message.
	Messages []Message

	// Schema is the JSON Schema the response must conform to.
	// When nil, the completion is returned as plain text.
	Schema *Schema

	// MaxTokens is the maximum number of tokens in the response.
	MaxTokens int

	// Temperature controls randomness. Zero leaves the provider default.
	Temperature float64
}

// Message represents a single message in the conversation.
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Schema defines the JSON structure expected from the LLM.
type Schema struct {
	// Name identifies this schema (used as the schema name for OpenAI).
	// Kebab-case, e.g. "study-task".
	Name string

	// Description is sent to the LLM to guide generation.
	Description string

	// Definition is the JSON Schema definition as a map.
	Definition map[string]any
}

// Response holds the LLM's output.
type Response struct {
	// Text is the completion exactly as returned by the model.
	Text string

	// Content is the validated JSON object when a Schema was provided,
	// or Text encoded as a JSON string otherwise.
	Content json.RawMessage

	// Usage reports token consumption for this request.
	Usage Usage

	// Model is the actual model that served the request.
	Model string

	// StopReason indicates why generation stopped.
	// Normalized to: "end", "max_tokens", "error"
	StopReason string
}

// Usage tracks token consumption for a single request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// completionContent builds Response.Content from the model text.
func completionContent(schema *Schema, text string) (json.RawMessage, error) {
	if schema != nil {
		content := json.RawMessage(text)
		if err := validateResponse(schema, content); err != nil {
			return nil, err
		}
		return content, nil
	}
	b, err := json.Marshal(text)
	if err != nil {
		return nil, &ErrInvalidResponse{Err: err}
	}
	return b, nil
}
