package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chTempDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "https://export.arxiv.org/api/query", cfg.Arxiv.BaseURL)
	assert.Equal(t, 2, cfg.Pipeline.MaxRetries)
	assert.Equal(t, 3, cfg.Pipeline.StageAttempts)
	assert.Equal(t, 3, cfg.Pipeline.Concurrency)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "data/jobs.db", cfg.Store.DSN)
	assert.Equal(t, "data", cfg.Data.Dir)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 120, cfg.Parser.TimeoutSecs)
}

func TestLoadFromYAML(t *testing.T) {
	chTempDir(t)

	yaml := `
llm:
  provider: openai
  model: gpt-4o-mini
pipeline:
  max_retries: 1
  concurrency: 8
store:
  driver: postgres
  dsn: postgres://localhost/digest
log:
  level: debug
  format: console
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 1, cfg.Pipeline.MaxRetries)
	assert.Equal(t, 8, cfg.Pipeline.Concurrency)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Unset keys keep defaults.
	assert.Equal(t, 3, cfg.Pipeline.StageAttempts)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadFromEnv(t *testing.T) {
	chTempDir(t)
	t.Setenv("DIGEST_LLM_API_KEY", "sk-test")
	t.Setenv("DIGEST_PIPELINE_MAX_RETRIES", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, 0, cfg.Pipeline.MaxRetries)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	err := InitLogger(LogConfig{Level: "nope", Format: "json"})
	require.Error(t, err)
}
