// Package config holds all sheetmind configuration.
// Configuration is loaded from .sheetmind/config.yaml with environment
// overrides for secrets. Every tuning threshold used by the routing and
// planning pipeline lives here so the components stay free of magic numbers.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all sheetmind configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM provider configuration
	LLM LLMConfig `yaml:"llm"`

	// Embedding engine configuration
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Routing thresholds and cache settings
	Routing RoutingConfig `yaml:"routing"`

	// Skill registry settings
	Skills SkillsConfig `yaml:"skills"`

	// Self-correcting executor settings
	Executor ExecutorConfig `yaml:"executor"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the text/structured generation provider.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // "gemini"
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	// ClassifierTemperature is used for the structured classification call.
	// Kept low so the same command classifies the same way across requests.
	ClassifierTemperature float64 `yaml:"classifier_temperature"`
	TimeoutSeconds        int     `yaml:"timeout_seconds"`
}

// EmbeddingConfig configures the embedding engine.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // "ollama" or "genai"
	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`
	GenAIAPIKey    string `yaml:"genai_api_key"`
	GenAIModel     string `yaml:"genai_model"`
	Dimensions     int    `yaml:"dimensions"` // vector width of the embedding model
}

// RoutingConfig holds the intent-routing thresholds.
//
// The numeric defaults are empirically chosen values carried over from
// production tuning; they are configuration, not derived quantities.
type RoutingConfig struct {
	// CacheSimilarity is the minimum cosine similarity for a cache hit.
	CacheSimilarity float64 `yaml:"cache_similarity"`
	// PromoteConfidence is the minimum AI-tier confidence required before a
	// successful classification is promoted into the cache.
	PromoteConfidence float64 `yaml:"promote_confidence"`
	// OverrideConfidence is the minimum classifier confidence at which the
	// classifier's sheet action overrides a conflicting parsed action.
	OverrideConfidence float64 `yaml:"override_confidence"`
	// CachePath is the sqlite database holding cached intents.
	CachePath string `yaml:"cache_path"`
}

// SkillsConfig holds skill selection settings.
type SkillsConfig struct {
	// MinConfidence is the score floor a skill must clear to be selected.
	MinConfidence float64 `yaml:"min_confidence"`
	// MaxSkills caps how many non-conflicting skills are combined per request.
	MaxSkills int `yaml:"max_skills"`
	// OverridesPath optionally points at a YAML file of skill instruction
	// overrides; the registry watches it for changes.
	OverridesPath string `yaml:"overrides_path"`
	// TemplateTTLSeconds controls the in-memory workflow template cache.
	TemplateTTLSeconds int `yaml:"template_ttl_seconds"`
}

// ExecutorConfig holds the self-correction loop settings.
type ExecutorConfig struct {
	// MaxAttempts bounds the generate/evaluate loop.
	MaxAttempts int `yaml:"max_attempts"`
	// SoftBudgetSeconds is checked before each retry and before evaluation;
	// exceeding it degrades to the best result so far.
	SoftBudgetSeconds int `yaml:"soft_budget_seconds"`
	// HardCeilingSeconds is the overall wall-clock ceiling the soft budget
	// leaves headroom under.
	HardCeilingSeconds int `yaml:"hard_ceiling_seconds"`
}

// LoggingConfig mirrors internal/logging's expectations.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "sheetmind",
		Version: "0.3.0",
		LLM: LLMConfig{
			Provider:              "gemini",
			Model:                 "gemini-2.0-flash",
			Temperature:           0.7,
			ClassifierTemperature: 0.1,
			TimeoutSeconds:        60,
		},
		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			GenAIModel:     "gemini-embedding-001",
			Dimensions:     768,
		},
		Routing: RoutingConfig{
			CacheSimilarity:    0.85,
			PromoteConfidence:  0.8,
			OverrideConfidence: 0.8,
			CachePath:          filepath.Join(".sheetmind", "intent_cache.db"),
		},
		Skills: SkillsConfig{
			MinConfidence:      0.6,
			MaxSkills:          2,
			TemplateTTLSeconds: 300,
		},
		Executor: ExecutorConfig{
			MaxAttempts:        2,
			SoftBudgetSeconds:  45,
			HardCeilingSeconds: 60,
		},
		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Load reads configuration from a YAML file, applying defaults for any
// missing fields and environment overrides for secrets.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// applyEnvOverrides applies environment variables over file values.
// Secrets should come from the environment, not the config file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SHEETMIND_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("SHEETMIND_EMBED_PROVIDER"); v != "" {
		c.Embedding.Provider = v
	}
	if v := os.Getenv("SHEETMIND_EMBED_API_KEY"); v != "" {
		c.Embedding.GenAIAPIKey = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		c.Embedding.OllamaEndpoint = v
	}
	if v := os.Getenv("SHEETMIND_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if os.Getenv("SHEETMIND_DEBUG") == "1" {
		c.Logging.DebugMode = true
		c.Logging.Level = "debug"
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Routing.CacheSimilarity < 0 || c.Routing.CacheSimilarity > 1 {
		return fmt.Errorf("routing.cache_similarity must be in [0,1], got %v", c.Routing.CacheSimilarity)
	}
	if c.Routing.PromoteConfidence < 0 || c.Routing.PromoteConfidence > 1 {
		return fmt.Errorf("routing.promote_confidence must be in [0,1], got %v", c.Routing.PromoteConfidence)
	}
	if c.Skills.MinConfidence < 0 || c.Skills.MinConfidence > 1 {
		return fmt.Errorf("skills.min_confidence must be in [0,1], got %v", c.Skills.MinConfidence)
	}
	if c.Skills.MaxSkills < 1 {
		return fmt.Errorf("skills.max_skills must be >= 1, got %d", c.Skills.MaxSkills)
	}
	if c.Executor.MaxAttempts < 1 {
		return fmt.Errorf("executor.max_attempts must be >= 1, got %d", c.Executor.MaxAttempts)
	}
	if c.Executor.SoftBudgetSeconds >= c.Executor.HardCeilingSeconds {
		return fmt.Errorf("executor.soft_budget_seconds (%d) must leave headroom under hard_ceiling_seconds (%d)",
			c.Executor.SoftBudgetSeconds, c.Executor.HardCeilingSeconds)
	}
	return nil
}

// GetLLMTimeout returns the provider call timeout.
func (c *Config) GetLLMTimeout() time.Duration {
	if c.LLM.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// GetSoftBudget returns the executor's soft time budget.
func (c *Config) GetSoftBudget() time.Duration {
	if c.Executor.SoftBudgetSeconds <= 0 {
		return 45 * time.Second
	}
	return time.Duration(c.Executor.SoftBudgetSeconds) * time.Second
}

// GetTemplateTTL returns the workflow template cache TTL.
func (c *Config) GetTemplateTTL() time.Duration {
	if c.Skills.TemplateTTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Skills.TemplateTTLSeconds) * time.Second
}
