package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"sheetmind/internal/logging"
)

// =============================================================================
// GEMINI CLIENT
// =============================================================================

// GeminiClient implements TextGenerator, StructuredGenerator, and ToolCaller
// against the Gemini REST API.
type GeminiClient struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	httpClient  *http.Client
	mu          sync.Mutex
	lastRequest time.Time
}

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// DefaultGeminiConfig returns sensible defaults.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:      apiKey,
		BaseURL:     "https://generativelanguage.googleapis.com/v1beta",
		Model:       "gemini-2.0-flash",
		Temperature: 0.7,
		Timeout:     60 * time.Second,
	}
}

// NewGeminiClient creates a Gemini client with custom config.
func NewGeminiClient(config GeminiConfig) *GeminiClient {
	if config.BaseURL == "" {
		config.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if config.Model == "" {
		config.Model = "gemini-2.0-flash"
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	return &GeminiClient{
		apiKey:      config.APIKey,
		baseURL:     config.BaseURL,
		model:       config.Model,
		temperature: config.Temperature,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Complete sends a prompt and returns the text response.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem sends a prompt with a system instruction.
func (c *GeminiClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	req := c.baseRequest(systemPrompt, userPrompt)
	resp, err := c.send(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.text(), nil
}

// CompleteStructured sends a prompt with a JSON response schema and returns
// the raw JSON the model produced.
func (c *GeminiClient) CompleteStructured(ctx context.Context, schema json.RawMessage, systemPrompt, userPrompt string) (json.RawMessage, error) {
	var schemaObj map[string]any
	if err := json.Unmarshal(schema, &schemaObj); err != nil {
		return nil, fmt.Errorf("invalid json schema: %w", err)
	}

	req := c.baseRequest(systemPrompt, userPrompt)
	req.GenerationConfig.ResponseMimeType = "application/json"
	req.GenerationConfig.ResponseSchema = schemaObj
	// Structured calls want determinism, not creativity.
	req.GenerationConfig.Temperature = 0.1

	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(resp.text())
	if text == "" {
		return nil, fmt.Errorf("no structured content returned")
	}
	return json.RawMessage(text), nil
}

// CompleteWithTools sends a prompt with tool definitions enabled.
func (c *GeminiClient) CompleteWithTools(ctx context.Context, systemPrompt, userPrompt string, tools []ToolDefinition) (*ToolResponse, error) {
	req := c.baseRequest(systemPrompt, userPrompt)

	if len(tools) > 0 {
		decls := make([]geminiFunctionDeclaration, len(tools))
		for i, tool := range tools {
			decls[i] = geminiFunctionDeclaration{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			}
		}
		req.Tools = []geminiTool{{FunctionDeclarations: decls}}
	}

	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}

	out := &ToolResponse{Text: resp.text()}
	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			if part.FunctionCall != nil {
				out.ToolCalls = append(out.ToolCalls, ToolCall{
					Name:      part.FunctionCall.Name,
					Arguments: part.FunctionCall.Args,
				})
			}
		}
		break // only the first candidate carries the answer
	}

	logging.APIDebug("[Gemini] tool response: %d tool call(s), %d text bytes",
		len(out.ToolCalls), len(out.Text))
	return out, nil
}

// baseRequest builds the shared request shape.
func (c *GeminiClient) baseRequest(systemPrompt, userPrompt string) geminiRequest {
	req := geminiRequest{
		Contents: []geminiContent{
			{
				Role:  "user",
				Parts: []geminiPart{{Text: userPrompt}},
			},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     c.temperature,
			MaxOutputTokens: 8192,
		},
	}
	if strings.TrimSpace(systemPrompt) != "" {
		req.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: systemPrompt}},
		}
	}
	return req
}

// send posts the request with rate limiting and a bounded retry on 429.
func (c *GeminiClient) send(ctx context.Context, reqBody geminiRequest) (*geminiResponse, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("API key not configured")
	}

	// Rate limiting: keep at least 100ms between requests.
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)

	maxRetries := 3
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			time.Sleep(time.Duration(1<<uint(i-1)) * time.Second)
		}

		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limit exceeded (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
		}

		var geminiResp geminiResponse
		if err := json.Unmarshal(body, &geminiResp); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}

		if geminiResp.Error != nil {
			return nil, fmt.Errorf("API error: %s", geminiResp.Error.Message)
		}

		if len(geminiResp.Candidates) == 0 {
			return nil, fmt.Errorf("no completion returned")
		}

		logging.APIDebug("[Gemini] %s completed in %v (%d prompt / %d output tokens)",
			c.model, time.Since(start),
			geminiResp.UsageMetadata.PromptTokenCount,
			geminiResp.UsageMetadata.CandidatesTokenCount)

		return &geminiResp, nil
	}

	return nil, fmt.Errorf("gemini request failed after %d retries: %w", maxRetries, lastErr)
}

// =============================================================================
// GEMINI API TYPES
// =============================================================================

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text         string              `json:"text,omitempty"`
	FunctionCall *geminiFunctionCall `json:"functionCall,omitempty"`
}

type geminiFunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type geminiGenerationConfig struct {
	Temperature      float64        `json:"temperature,omitempty"`
	MaxOutputTokens  int            `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string         `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
}

type geminiTool struct {
	FunctionDeclarations []geminiFunctionDeclaration `json:"functionDeclarations"`
}

type geminiFunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
	Tools             []geminiTool           `json:"tools,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// text concatenates all text parts of the first candidate.
func (r *geminiResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, part := range r.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String()
}
