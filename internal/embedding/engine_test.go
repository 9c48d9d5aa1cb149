package embedding

import (
	"math"
	"testing"
)

func TestCosineSimilarityIdentical(t *testing.T) {
	a := []float32{0.5, 0.5, 0.7}
	sim, err := CosineSimilarity(a, a)
	if err != nil {
		t.Fatalf("CosineSimilarity() error = %v", err)
	}
	if math.Abs(sim-1.0) > 1e-9 {
		t.Errorf("similarity = %v, want 1.0", sim)
	}
}

func TestCosineSimilarityOrthogonal(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	sim, err := CosineSimilarity(a, b)
	if err != nil {
		t.Fatalf("CosineSimilarity() error = %v", err)
	}
	if math.Abs(sim) > 1e-9 {
		t.Errorf("similarity = %v, want 0", sim)
	}
}

func TestCosineSimilarityDimensionMismatch(t *testing.T) {
	if _, err := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}); err == nil {
		t.Fatal("expected error for dimension mismatch")
	}
}

func TestCosineSimilarityZeroVector(t *testing.T) {
	sim, err := CosineSimilarity([]float32{0, 0}, []float32{1, 1})
	if err != nil {
		t.Fatalf("CosineSimilarity() error = %v", err)
	}
	if sim != 0 {
		t.Errorf("similarity = %v, want 0 for zero vector", sim)
	}
}

func TestNewEngineUnsupportedProvider(t *testing.T) {
	if _, err := NewEngine(Config{Provider: "nope"}); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestNewEngineDefaultsToOllama(t *testing.T) {
	engine, err := NewEngine(Config{})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	if engine.Name() != "ollama:embeddinggemma" {
		t.Errorf("Name = %q", engine.Name())
	}
	if engine.Dimensions() != DefaultDimensions {
		t.Errorf("Dimensions = %d, want %d", engine.Dimensions(), DefaultDimensions)
	}
}

func TestNewEngineHonorsConfiguredDimensions(t *testing.T) {
	engine, err := NewEngine(Config{Provider: "ollama", Dimensions: 1024})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	if engine.Dimensions() != 1024 {
		t.Errorf("Dimensions = %d, want 1024", engine.Dimensions())
	}
}
