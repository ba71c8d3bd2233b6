package mcp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/agentd/internal/config"
)

func testConfig() *config.Config {
	cfg := config.Default()
	return &cfg
}

func TestDefaultServers(t *testing.T) {
	web := DefaultServers(KindWeb)
	require.Len(t, web, 1)
	require.Equal(t, "http", web["web"].Type)
	require.Equal(t, "https://mcp.codexhub.ai/web/mcp", web["web"].URL)
	require.Equal(t, ToolTokenPlaceholder, web["web"].Headers["x-team-key"])

	image := DefaultServers(KindImage)
	require.Equal(t, "https://mcp.codexhub.ai/image/mcp", image["image"].URL)

	require.Nil(t, DefaultServers("video"))
}

func TestRegisterIdempotent(t *testing.T) {
	r := NewRegistry(testConfig())

	server := config.MCPServerConfig{Type: "http", URL: "https://mcp.example.com/mcp"}
	require.NoError(t, r.Register("tools", server))
	require.Equal(t, 1, r.Len())

	t.Run("same name and url", func(t *testing.T) {
		require.NoError(t, r.Register("tools", server))
		require.Equal(t, 1, r.Len())
	})

	t.Run("new name, same url", func(t *testing.T) {
		require.NoError(t, r.Register("alias", server))
		require.Equal(t, 1, r.Len())
	})

	t.Run("new url", func(t *testing.T) {
		require.NoError(t, r.Register("other", config.MCPServerConfig{
			Type: "http", URL: "https://mcp.example.com/other",
		}))
		require.Equal(t, 2, r.Len())
	})
}

func TestRegisterStdioKeyedByCommandLine(t *testing.T) {
	r := NewRegistry(testConfig())

	require.NoError(t, r.Register("fs", config.MCPServerConfig{Command: "mcp-fs", Args: []string{"--root", "/tmp"}}))
	require.NoError(t, r.Register("fs2", config.MCPServerConfig{Command: "mcp-fs", Args: []string{"--root", "/tmp"}}))
	require.Equal(t, 1, r.Len())

	require.NoError(t, r.Register("fs3", config.MCPServerConfig{Command: "mcp-fs", Args: []string{"--root", "/home"}}))
	require.Equal(t, 2, r.Len())
}

func TestRegisterMalformed(t *testing.T) {
	r := NewRegistry(testConfig())

	for name, server := range map[string]config.MCPServerConfig{
		"no-url":     {Type: "http"},
		"no-command": {Type: "stdio"},
		"bad-type":   {Type: "grpc", URL: "https://mcp.example.com"},
	} {
		err := r.Register(name, server)
		var rerr *RegistrationError
		require.ErrorAs(t, err, &rerr, name)
		require.Equal(t, name, rerr.Name)
	}
	require.Equal(t, 0, r.Len())
}

func TestIsEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.MCPDisable = []string{"blocked"}
	r := NewRegistry(cfg)

	require.True(t, r.IsEnabled("web"))
	require.False(t, r.IsEnabled("blocked"))

	cfg.MCPDisable = []string{"*"}
	require.False(t, r.IsEnabled("web"))
}

func TestEnabledServersOrderAndFilter(t *testing.T) {
	cfg := testConfig()
	cfg.MCPDisable = []string{"beta"}
	r := NewRegistry(cfg)

	require.NoError(t, r.Register("zulu", config.MCPServerConfig{Type: "http", URL: "https://z.example.com"}))
	require.NoError(t, r.Register("alpha", config.MCPServerConfig{Type: "http", URL: "https://a.example.com"}))
	require.NoError(t, r.Register("beta", config.MCPServerConfig{Type: "http", URL: "https://b.example.com"}))

	var names []string
	for name := range r.EnabledServers() {
		names = append(names, name)
	}
	require.Equal(t, []string{"alpha", "zulu"}, names)
}

func TestResolveHeadersUsesCurrentToken(t *testing.T) {
	cfg := testConfig()
	r := NewRegistry(cfg)

	server := DefaultServers(KindWeb)["web"]
	require.NoError(t, r.Register("web", server))

	// Token arrives after registration; resolution happens at connect time.
	cfg.ToolAuthToken = "team-key-123"
	headers := r.resolveHeaders(server)
	require.Equal(t, "team-key-123", headers["x-team-key"])

	cfg.ToolAuthToken = "team-key-456"
	headers = r.resolveHeaders(server)
	require.Equal(t, "team-key-456", headers["x-team-key"])
}

func TestCallRejectsUnknownNames(t *testing.T) {
	r := NewRegistry(testConfig())

	_, err := r.Call(t.Context(), "notool", nil)
	require.Error(t, err)

	_, err = r.Call(t.Context(), "ghost_search", nil)
	require.ErrorContains(t, err, "unknown server")
}

func TestCallRejectsDisabledServer(t *testing.T) {
	cfg := testConfig()
	cfg.MCPDisable = []string{"web"}
	r := NewRegistry(cfg)
	require.NoError(t, r.Register("web", DefaultServers(KindWeb)["web"]))

	_, err := r.Call(t.Context(), "web_search", nil)
	require.ErrorContains(t, err, "disabled")
}
