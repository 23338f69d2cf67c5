package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "choir.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_AppliesDefaultsWhenFieldsAbsent(t *testing.T) {
	path := writeTOML(t, `[server]
host = "127.0.0.1"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 4, cfg.Terminal.DefaultMaxSteps)
	assert.Equal(t, 60, cfg.Terminal.DefaultTimeoutSeconds)
	assert.Equal(t, 24*time.Hour, cfg.Conductor.RetentionTTL)
	assert.Equal(t, "@every 1h", cfg.Conductor.RetentionSchedule)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_EmptyPathStartsFromZeroValueThenDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 5, cfg.Research.Burst)
}

func TestLoad_EnvOverridesWinOverFileValues(t *testing.T) {
	path := writeTOML(t, `[llm]
fast_model = "file-model"

[research]
tavily_api_key = "file-key"
`)
	t.Setenv("CHOIR_LLM_FAST_MODEL", "env-model")
	t.Setenv("TAVILY_API_KEY", "env-key")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-model", cfg.LLM.FastModel)
	assert.Equal(t, "env-key", cfg.Research.TavilyAPIKey)
}

func TestLoad_EnvOverrideParsesDurationAndInt(t *testing.T) {
	t.Setenv("CHOIR_TERMINAL_MAX_STEPS", "9")
	t.Setenv("CHOIR_CONDUCTOR_RETENTION_TTL", "2h")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Terminal.DefaultMaxSteps)
	assert.Equal(t, 2*time.Hour, cfg.Conductor.RetentionTTL)
}

func TestLoad_InvalidEnvIntIsIgnored(t *testing.T) {
	t.Setenv("CHOIR_TERMINAL_MAX_STEPS", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Terminal.DefaultMaxSteps)
}

func TestLoad_MemoryStubEnvFlag(t *testing.T) {
	t.Setenv("CHOIR_MEMORY_STUB", "1")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.True(t, cfg.Memory.Stub)
}

func TestLoad_RejectsMalformedTOML(t *testing.T) {
	path := writeTOML(t, `this is not valid toml =`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadDotEnv_MissingFileIsNotAnError(t *testing.T) {
	err := LoadDotEnv(filepath.Join(t.TempDir(), "does-not-exist.env"))
	assert.NoError(t, err)
}
