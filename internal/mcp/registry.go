// Package mcp maintains the set of MCP tool servers bound to an agent and
// executes tool discovery and invocation against them.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"

	shellwords "github.com/caarlos0/go-shellwords"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/dotcommander/agentd/internal/config"
	"github.com/dotcommander/agentd/internal/errs"
)

// Capability kinds with built-in server defaults.
const (
	KindWeb   = "web"
	KindImage = "image"
)

const (
	webServerURL   = "https://mcp.codexhub.ai/web/mcp"
	imageServerURL = "https://mcp.codexhub.ai/image/mcp"

	teamKeyHeader = "x-team-key"

	// ToolTokenPlaceholder marks header values that resolve to the CodexHub
	// credential at connect time.
	ToolTokenPlaceholder = "${CODEXHUB_MCP_AUTH_TOKEN}"
)

// RegistrationError reports a descriptor that cannot be registered.
type RegistrationError struct {
	Name   string
	Detail string
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("mcp: register %q: %s", e.Name, e.Detail)
}

// DefaultServers returns the built-in server set for a capability kind, or
// nil for kinds without defaults.
func DefaultServers(kind string) map[string]config.MCPServerConfig {
	switch kind {
	case KindWeb:
		return map[string]config.MCPServerConfig{
			"web": {
				Type:    "http",
				URL:     webServerURL,
				Headers: map[string]string{teamKeyHeader: ToolTokenPlaceholder},
			},
		}
	case KindImage:
		return map[string]config.MCPServerConfig{
			"image": {
				Type:    "http",
				URL:     imageServerURL,
				Headers: map[string]string{teamKeyHeader: ToolTokenPlaceholder},
			},
		}
	default:
		return nil
	}
}

// Registry is the set of tool servers available to one agent.
//
// Registration is idempotent: servers are keyed by URL (http) or command
// line (stdio), so re-registering a known endpoint is a no-op. Header values
// are resolved against the current configuration at connect time, not at
// registration, so a rotated tool token applies without re-registration.
type Registry struct {
	cfg *config.Config

	mu      sync.RWMutex
	servers map[string]config.MCPServerConfig
	keys    map[string]struct{}
}

// NewRegistry creates an empty registry bound to cfg.
func NewRegistry(cfg *config.Config) *Registry {
	return &Registry{
		cfg:     cfg,
		servers: map[string]config.MCPServerConfig{},
		keys:    map[string]struct{}{},
	}
}

// Register adds one server descriptor to the active set. Registering a
// descriptor whose endpoint is already known is a no-op.
func (r *Registry) Register(name string, server config.MCPServerConfig) error {
	key, err := serverKey(name, server)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.keys[key]; exists {
		return nil
	}
	r.keys[key] = struct{}{}
	r.servers[name] = server
	return nil
}

func serverKey(name string, server config.MCPServerConfig) (string, error) {
	switch server.Type {
	case "http", "sse":
		if strings.TrimSpace(server.URL) == "" {
			return "", &RegistrationError{Name: name, Detail: "http server requires a url"}
		}
		return server.URL, nil
	case "", "stdio":
		if strings.TrimSpace(server.Command) == "" {
			return "", &RegistrationError{Name: name, Detail: "stdio server requires a command"}
		}
		return strings.Join(append([]string{server.Command}, server.Args...), " "), nil
	default:
		return "", &RegistrationError{Name: name, Detail: fmt.Sprintf("unsupported transport %q, supported: http, sse, stdio", server.Type)}
	}
}

// Len returns the number of registered servers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.servers)
}

// IsEnabled reports whether the named server is enabled by configuration.
func (r *Registry) IsEnabled(name string) bool {
	return !slices.Contains(r.cfg.MCPDisable, "*") &&
		!slices.Contains(r.cfg.MCPDisable, name)
}

// EnabledServers iterates enabled servers in stable name order.
func (r *Registry) EnabledServers() iter.Seq2[string, config.MCPServerConfig] {
	r.mu.RLock()
	snapshot := maps.Clone(r.servers)
	r.mu.RUnlock()

	return func(yield func(string, config.MCPServerConfig) bool) {
		for _, name := range slices.Sorted(maps.Keys(snapshot)) {
			if !r.IsEnabled(name) {
				continue
			}
			if !yield(name, snapshot[name]) {
				return
			}
		}
	}
}

// Tools returns available tools grouped by server name.
func (r *Registry) Tools(ctx context.Context) (map[string][]mcp.Tool, error) {
	var mu sync.Mutex
	var wg errgroup.Group
	result := map[string][]mcp.Tool{}
	for sname, server := range r.EnabledServers() {
		wg.Go(func() error {
			serverTools, err := r.toolsFor(ctx, sname, server)
			if errors.Is(err, context.DeadlineExceeded) {
				return errs.Wrapf(
					fmt.Errorf("timeout while listing tools for %q", sname),
					"Could not list tools",
				)
			}
			if err != nil {
				return errs.Wrap(err, "Could not list tools")
			}
			mu.Lock()
			result[sname] = append(result[sname], serverTools...)
			mu.Unlock()
			return nil
		})
	}
	if err := wg.Wait(); err != nil {
		return nil, fmt.Errorf("mcp tools: %w", err)
	}
	return result, nil
}

// Call executes a tool against its server. fullName must be of the form
// <server>_<tool>.
func (r *Registry) Call(ctx context.Context, fullName string, data []byte) (string, error) {
	sname, tool, ok := strings.Cut(fullName, "_")
	if !ok {
		return "", fmt.Errorf("mcp: invalid tool name: %q", fullName)
	}
	r.mu.RLock()
	server, ok := r.servers[sname]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("mcp: unknown server: %q", sname)
	}
	if !r.IsEnabled(sname) {
		return "", fmt.Errorf("mcp: server is disabled: %q", sname)
	}

	cli, err := r.connect(ctx, server)
	if err != nil {
		return "", fmt.Errorf("mcp: %w", err)
	}
	defer cli.Close() //nolint:errcheck

	var args map[string]any
	if len(data) > 0 {
		if err := json.Unmarshal(data, &args); err != nil {
			return "", fmt.Errorf("mcp: %w: %s", err, string(data))
		}
	}

	request := mcp.CallToolRequest{}
	request.Params.Name = tool
	request.Params.Arguments = args
	result, err := cli.CallTool(ctx, request)
	if err != nil {
		return "", fmt.Errorf("mcp: %w", err)
	}

	var sb strings.Builder
	for _, content := range result.Content {
		switch content := content.(type) {
		case mcp.TextContent:
			sb.WriteString(content.Text)
		default:
			sb.WriteString("[Non-text content]")
		}
	}

	if result.IsError {
		return "", errors.New(sb.String())
	}
	return sb.String(), nil
}

// resolveHeaders substitutes credential placeholders with the current tool
// token. Resolution happens on every connect on purpose.
func (r *Registry) resolveHeaders(server config.MCPServerConfig) map[string]string {
	if len(server.Headers) == 0 {
		return nil
	}
	headers := make(map[string]string, len(server.Headers))
	for k, v := range server.Headers {
		headers[k] = strings.ReplaceAll(v, ToolTokenPlaceholder, r.cfg.ToolAuthToken.Reveal())
	}
	return headers
}

func (r *Registry) connect(ctx context.Context, server config.MCPServerConfig) (*client.Client, error) {
	var cli *client.Client
	var err error

	switch server.Type {
	case "", "stdio":
		command := server.Command
		args := server.Args
		if len(args) == 0 && strings.ContainsRune(command, ' ') {
			parsed, perr := shellwords.Parse(command)
			if perr != nil {
				return nil, fmt.Errorf("parse command %q: %w", command, perr)
			}
			command, args = parsed[0], parsed[1:]
		}
		cli, err = client.NewStdioMCPClient(
			command,
			append(os.Environ(), server.Env...),
			args...,
		)
	case "sse":
		cli, err = client.NewSSEMCPClient(server.URL, transport.WithHeaders(r.resolveHeaders(server)))
	case "http":
		cli, err = client.NewStreamableHttpClient(server.URL, transport.WithHTTPHeaders(r.resolveHeaders(server)))
	default:
		return nil, fmt.Errorf("unsupported MCP server type: %q", server.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client: %w", err)
	}

	if err := cli.Start(ctx); err != nil {
		cli.Close() //nolint:errcheck,gosec
		return nil, fmt.Errorf("failed to start MCP client: %w", err)
	}
	if _, err := cli.Initialize(ctx, mcp.InitializeRequest{}); err != nil {
		cli.Close() //nolint:errcheck,gosec
		return nil, fmt.Errorf("failed to initialize MCP client: %w", err)
	}
	return cli, nil
}

func (r *Registry) toolsFor(ctx context.Context, name string, server config.MCPServerConfig) ([]mcp.Tool, error) {
	cli, err := r.connect(ctx, server)
	if err != nil {
		return nil, fmt.Errorf("could not setup %s: %w", name, err)
	}
	defer cli.Close() //nolint:errcheck

	tools, err := cli.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("could not setup %s: %w", name, err)
	}
	return tools.Tools, nil
}
