// Package embedding provides vector embedding generation for intent caching.
// Supports multiple backends: Ollama (local) and Google GenAI (cloud).
// Embedding failures are never fatal to the routing pipeline; callers treat
// them as "skip semantic paths".
package embedding

import (
	"context"
	"fmt"
	"math"

	"sheetmind/internal/logging"
)

// DefaultDimensions is the vector width of the default models
// (embeddinggemma, gemini-embedding-001). The intent store's vec_intents
// table is declared with this width; rows of any other width fall back to
// the brute-force scan.
const DefaultDimensions = 768

// =============================================================================
// EMBEDDING ENGINE INTERFACE
// =============================================================================

// Engine generates vector embeddings for text.
type Engine interface {
	// Embed generates an embedding for a single text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of embeddings
	Dimensions() int

	// Name returns the engine name
	Name() string
}

// =============================================================================
// CONFIGURATION & FACTORY
// =============================================================================

// Config holds embedding engine configuration.
type Config struct {
	// Provider: "ollama" or "genai"
	Provider string `json:"provider"`

	OllamaEndpoint string `json:"ollama_endpoint"` // Default: "http://localhost:11434"
	OllamaModel    string `json:"ollama_model"`    // Default: "embeddinggemma"

	GenAIAPIKey string `json:"genai_api_key"`
	GenAIModel  string `json:"genai_model"` // Default: "gemini-embedding-001"

	// Dimensions declares the expected vector width. Default: DefaultDimensions.
	Dimensions int `json:"dimensions"`
}

// NewEngine creates an embedding engine based on configuration.
func NewEngine(cfg Config) (Engine, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "NewEngine")
	defer timer.Stop()

	logging.Embedding("Creating embedding engine with provider=%s", cfg.Provider)

	var engine Engine
	var err error

	switch cfg.Provider {
	case "ollama", "":
		engine, err = NewOllamaEngine(cfg.OllamaEndpoint, cfg.OllamaModel, cfg.Dimensions)
	case "genai":
		engine, err = NewGenAIEngine(cfg.GenAIAPIKey, cfg.GenAIModel)
	default:
		err = fmt.Errorf("unsupported embedding provider: %s (use 'ollama' or 'genai')", cfg.Provider)
	}

	if err != nil {
		logging.Get(logging.CategoryEmbedding).Error("Failed to create embedding engine: %v", err)
		return nil, err
	}

	logging.Embedding("Embedding engine created: name=%s, dimensions=%d", engine.Name(), engine.Dimensions())
	return engine, nil
}

// =============================================================================
// COSINE SIMILARITY
// =============================================================================

// CosineSimilarity calculates the cosine similarity between two vectors.
// Returns a value between -1 and 1, where 1 means identical.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have the same length: %d != %d", len(a), len(b))
	}

	var dotProduct, aMagnitude, bMagnitude float64
	for i := 0; i < len(a); i++ {
		dotProduct += float64(a[i] * b[i])
		aMagnitude += float64(a[i] * a[i])
		bMagnitude += float64(b[i] * b[i])
	}

	if aMagnitude == 0 || bMagnitude == 0 {
		logging.Get(logging.CategoryEmbedding).Warn("CosineSimilarity: zero magnitude vector detected")
		return 0, nil
	}

	return dotProduct / (math.Sqrt(aMagnitude) * math.Sqrt(bMagnitude)), nil
}
