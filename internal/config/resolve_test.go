package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// unsetenv removes variables for the test's duration. t.Setenv registers the
// restore; the explicit unset clears the value it just wrote.
func unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestResolve(t *testing.T) {
	t.Run("environment wins and defaults fill the rest", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())
		t.Setenv("LITELLM_BASE_URL", "https://litellm.internal.example.com/v1")
		t.Setenv("LITELLM_AUTH_TOKEN", "sk-proxy")
		t.Setenv("CODEXHUB_MCP_AUTH_TOKEN", "team-key")
		t.Setenv("AI_MODEL_NAME", "claude-sonnet-4")
		t.Setenv("AGENTD_REQUEST_TIMEOUT", "45s")

		cfg, err := Resolve()
		require.NoError(t, err)
		require.Equal(t, "https://litellm.internal.example.com/v1", cfg.BaseURL)
		require.Equal(t, "sk-proxy", cfg.ModelAuthToken.Reveal())
		require.Equal(t, "claude-sonnet-4", cfg.Model)
		require.Equal(t, 45*time.Second, cfg.RequestTimeout.Std())
		require.Equal(t, ":8000", cfg.HTTPAddr)
		require.True(t, cfg.ToolsConfigured())

		// First run materializes the settings file and cache directories.
		require.FileExists(t, cfg.SettingsPath)
		require.DirExists(t, filepath.Join(cfg.CachePath, "conversations"))
	})

	t.Run("missing proxy credential fails", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())
		t.Setenv("LITELLM_BASE_URL", "https://litellm.internal.example.com/v1")
		unsetenv(t, "LITELLM_AUTH_TOKEN", "CODEXHUB_MCP_AUTH_TOKEN", "AI_MODEL_NAME", "AGENTD_REQUEST_TIMEOUT")

		_, err := Resolve()
		var cerr *ConfigurationError
		require.ErrorAs(t, err, &cerr)
		require.Equal(t, "LITELLM_AUTH_TOKEN", cerr.Variable)
	})

	t.Run("settings file values apply when env is unset", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)
		t.Setenv("LITELLM_AUTH_TOKEN", "sk-proxy")
		unsetenv(t, "LITELLM_BASE_URL", "CODEXHUB_MCP_AUTH_TOKEN", "AI_MODEL_NAME", "AGENTD_REQUEST_TIMEOUT")

		dir := filepath.Join(home, ".config", "agentd")
		require.NoError(t, os.MkdirAll(dir, 0o700))
		settings := "base-url: https://from-file.example.com/v1\nmodel: gpt-4o\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "agentd.yml"), []byte(settings), 0o600))

		cfg, err := Resolve()
		require.NoError(t, err)
		require.Equal(t, "https://from-file.example.com/v1", cfg.BaseURL)
		require.Equal(t, "gpt-4o", cfg.Model)
	})
}
