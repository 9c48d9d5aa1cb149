package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"sheetmind/internal/logging"
)

// =============================================================================
// OLLAMA EMBEDDING ENGINE
// =============================================================================

// OllamaEngine generates embeddings using a local Ollama server.
type OllamaEngine struct {
	endpoint string
	model    string
	dims     int
	client   *http.Client
}

// NewOllamaEngine creates a new Ollama embedding engine. dims declares the
// vector width the configured model produces; zero means DefaultDimensions.
func NewOllamaEngine(endpoint, model string, dims int) (*OllamaEngine, error) {
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	if model == "" {
		model = "embeddinggemma"
	}
	if dims <= 0 {
		dims = DefaultDimensions
	}

	return &OllamaEngine{
		endpoint: endpoint,
		model:    model,
		dims:     dims,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Embed generates an embedding for a single text.
func (e *OllamaEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "OllamaEngine.Embed")
	defer timer.Stop()

	req := ollamaEmbedRequest{
		Model:  e.model,
		Prompt: text,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", e.endpoint+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(result.Embedding) != e.dims {
		// The vec store declares a fixed width; mismatched vectors only
		// reach the brute-force path, so warn rather than fail.
		logging.Get(logging.CategoryEmbedding).Warn(
			"Ollama model %s returned %d dimensions, configured for %d",
			e.model, len(result.Embedding), e.dims)
	}
	logging.EmbeddingDebug("Ollama embedded %d chars into %d dims", len(text), len(result.Embedding))

	return result.Embedding, nil
}

// EmbedBatch generates embeddings for multiple texts.
// Ollama has no native batch API, so texts are embedded sequentially.
func (e *OllamaEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))

	for i, text := range texts {
		embedding, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, err)
		}
		embeddings[i] = embedding
	}

	return embeddings, nil
}

// Dimensions returns the configured embedding width.
func (e *OllamaEngine) Dimensions() int {
	return e.dims
}

// Name returns the engine name.
func (e *OllamaEngine) Name() string {
	return fmt.Sprintf("ollama:%s", e.model)
}

// =============================================================================
// OLLAMA API TYPES
// =============================================================================

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}
