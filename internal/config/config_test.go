package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 0.85, cfg.Routing.CacheSimilarity)
	assert.Equal(t, 0.6, cfg.Skills.MinConfidence)
	assert.Equal(t, 2, cfg.Executor.MaxAttempts)
	assert.Equal(t, 45*time.Second, cfg.GetSoftBudget())
	assert.Equal(t, 5*time.Minute, cfg.GetTemplateTTL())
}

func TestLoadMergesPartialFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "routing:\n  cache_similarity: 0.9\nexecutor:\n  max_attempts: 3\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.9, cfg.Routing.CacheSimilarity)
	assert.Equal(t, 3, cfg.Executor.MaxAttempts)
	// Untouched sections keep their defaults.
	assert.Equal(t, 0.8, cfg.Routing.PromoteConfidence)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("routing: ["), 0644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverridesWinForSecrets(t *testing.T) {
	t.Setenv("SHEETMIND_API_KEY", "sk-test")
	t.Setenv("SHEETMIND_DEBUG", "1")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.True(t, cfg.Logging.DebugMode)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Routing.CacheSimilarity = 1.5
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Executor.SoftBudgetSeconds = 60
	cfg.Executor.HardCeilingSeconds = 60
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Skills.MaxSkills = 0
	assert.Error(t, cfg.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Routing.CacheSimilarity = 0.75
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.75, loaded.Routing.CacheSimilarity)
}
