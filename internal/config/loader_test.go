package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
		require.NoError(t, err)
		assert.Equal(t, 6, cfg.Agent.MaxRounds)
		assert.Equal(t, "http://localhost:8000/mcp", cfg.MCP.ServerURL)
	})

	t.Run("file values override defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "deskmate.json")
		content := `{
			"model": {"provider": "anthropic", "model": "claude-sonnet-4-20250514"},
			"agent": {"max_rounds": 4},
			"cache": {"enabled": false, "exclude_tools": ["reset_sap_password"]}
		}`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "anthropic", cfg.Model.Provider)
		assert.Equal(t, 4, cfg.Agent.MaxRounds)
		assert.False(t, cfg.Cache.Enabled)
		assert.Equal(t, []string{"reset_sap_password"}, cfg.Cache.ExcludeTools)
		// Untouched sections keep their defaults.
		assert.Equal(t, 8000, cfg.Compaction.MaxChars)
	})

	t.Run("api key falls back to provider env", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")

		path := filepath.Join(t.TempDir(), "deskmate.json")
		content := `{"model": {"provider": "anthropic", "model": "claude-sonnet-4-20250514"}}`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "sk-ant-test", cfg.Model.APIKey)
	})

	t.Run("backend system credentials come from env", func(t *testing.T) {
		t.Setenv("SAP_BASE_URL", "https://sap.example.com")
		t.Setenv("SAP_USERNAME", "svc-deskmate")
		t.Setenv("SAP_PASSWORD", "secret")

		cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
		require.NoError(t, err)

		sap, ok := cfg.ToolServer.Systems["sap"]
		require.True(t, ok)
		assert.Equal(t, "https://sap.example.com", sap.BaseURL)
		assert.Equal(t, "svc-deskmate", sap.Username)
		assert.Equal(t, "secret", sap.Password)
	})

	t.Run("malformed file is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "deskmate.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestGetConfigPath(t *testing.T) {
	assert.Equal(t, "/tmp/x.json", NewLoader("/tmp/x.json").GetConfigPath())
	assert.Contains(t, NewLoader("").GetConfigPath(), ".deskmate")
}
