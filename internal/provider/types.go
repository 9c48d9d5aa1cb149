// Package provider abstracts the LLM surface the routing pipeline depends on.
// The core never branches on provider identity: it sees only three narrow
// interfaces - plain text generation, schema-constrained structured
// generation, and tool-calling generation.
package provider

import (
	"context"
	"encoding/json"
)

// TextGenerator produces free text from a prompt.
type TextGenerator interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// StructuredGenerator produces JSON constrained by a schema. Used for the
// strict AI classification call and the executor's batch evaluator.
type StructuredGenerator interface {
	CompleteStructured(ctx context.Context, schema json.RawMessage, systemPrompt, userPrompt string) (json.RawMessage, error)
}

// ToolCaller runs a generation with tool definitions enabled and returns the
// emitted tool calls alongside any surface text.
type ToolCaller interface {
	CompleteWithTools(ctx context.Context, systemPrompt, userPrompt string, tools []ToolDefinition) (*ToolResponse, error)
}

// ToolDefinition declares one callable tool to the model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolCall is one tool invocation emitted by the model.
type ToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResponse is the full result of a tool-enabled generation.
type ToolResponse struct {
	Text      string     `json:"text"`
	ToolCalls []ToolCall `json:"toolCalls"`
}
