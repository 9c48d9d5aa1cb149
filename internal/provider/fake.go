package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// =============================================================================
// FAKES - deterministic providers for tests and offline runs
// =============================================================================

// FakeTextGenerator returns scripted responses in order, cycling on the last.
type FakeTextGenerator struct {
	Responses []string
	Err       error

	mu    sync.Mutex
	calls int
	// Prompts records every prompt seen, for assertions.
	Prompts []string
}

// Complete returns the next scripted response.
func (f *FakeTextGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	return f.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem returns the next scripted response.
func (f *FakeTextGenerator) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Prompts = append(f.Prompts, userPrompt)
	if f.Err != nil {
		return "", f.Err
	}
	if len(f.Responses) == 0 {
		return "", fmt.Errorf("fake has no responses configured")
	}

	idx := f.calls
	if idx >= len(f.Responses) {
		idx = len(f.Responses) - 1
	}
	f.calls++
	return f.Responses[idx], nil
}

// CallCount reports how many completions were requested.
func (f *FakeTextGenerator) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// FakeStructuredGenerator returns scripted JSON documents in order.
type FakeStructuredGenerator struct {
	Responses []json.RawMessage
	Err       error

	mu      sync.Mutex
	calls   int
	Prompts []string
}

// CompleteStructured returns the next scripted JSON document.
func (f *FakeStructuredGenerator) CompleteStructured(ctx context.Context, schema json.RawMessage, systemPrompt, userPrompt string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Prompts = append(f.Prompts, userPrompt)
	if f.Err != nil {
		return nil, f.Err
	}
	if len(f.Responses) == 0 {
		return nil, fmt.Errorf("fake has no responses configured")
	}

	idx := f.calls
	if idx >= len(f.Responses) {
		idx = len(f.Responses) - 1
	}
	f.calls++
	return f.Responses[idx], nil
}

// CallCount reports how many structured calls were made.
func (f *FakeStructuredGenerator) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// FakeToolCaller returns scripted tool responses in order.
type FakeToolCaller struct {
	Responses []*ToolResponse
	Err       error

	mu      sync.Mutex
	calls   int
	Prompts []string
}

// CompleteWithTools returns the next scripted tool response.
func (f *FakeToolCaller) CompleteWithTools(ctx context.Context, systemPrompt, userPrompt string, tools []ToolDefinition) (*ToolResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Prompts = append(f.Prompts, userPrompt)
	if f.Err != nil {
		return nil, f.Err
	}
	if len(f.Responses) == 0 {
		return nil, fmt.Errorf("fake has no responses configured")
	}

	idx := f.calls
	if idx >= len(f.Responses) {
		idx = len(f.Responses) - 1
	}
	f.calls++
	return f.Responses[idx], nil
}

// CallCount reports how many tool calls were made.
func (f *FakeToolCaller) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
