package embedding

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// =============================================================================
// GOOGLE GENAI EMBEDDING ENGINE
// =============================================================================

// taskTypeSemanticSimilarity is the embedding task type for matching commands
// against a corpus of cached intents.
const taskTypeSemanticSimilarity = "SEMANTIC_SIMILARITY"

// GenAIEngine generates embeddings using Google's Gemini API.
// Commands are queries against a corpus of cached intents, so the engine is
// pinned to the semantic-similarity task type.
type GenAIEngine struct {
	client *genai.Client
	model  string
}

// NewGenAIEngine creates a new GenAI embedding engine.
func NewGenAIEngine(apiKey, model string) (*GenAIEngine, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}

	if model == "" {
		model = "gemini-embedding-001"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIEngine{
		client: client,
		model:  model,
	}, nil
}

// Embed generates an embedding for a single text.
func (e *GenAIEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}

	result, err := e.client.Models.EmbedContent(ctx,
		e.model,
		contents,
		&genai.EmbedContentConfig{
			TaskType: taskTypeSemanticSimilarity,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("GenAI embed failed: %w", err)
	}

	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}

	return result.Embeddings[0].Values, nil
}

// EmbedBatch generates embeddings for multiple texts.
// GenAI has native batch support.
func (e *GenAIEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	result, err := e.client.Models.EmbedContent(ctx,
		e.model,
		contents,
		&genai.EmbedContentConfig{
			TaskType: taskTypeSemanticSimilarity,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("GenAI batch embed failed: %w", err)
	}

	embeddings := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		embeddings[i] = emb.Values
	}

	return embeddings, nil
}

// Dimensions returns the dimensionality of embeddings.
func (e *GenAIEngine) Dimensions() int {
	// gemini-embedding-001 matches the vec store's declared width.
	return DefaultDimensions
}

// Name returns the engine name.
func (e *GenAIEngine) Name() string {
	return fmt.Sprintf("genai:%s", e.model)
}
