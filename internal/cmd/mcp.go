package cmd

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	mmcp "github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"

	"github.com/dotcommander/agentd/internal/config"
	imcp "github.com/dotcommander/agentd/internal/mcp"
	"github.com/dotcommander/agentd/internal/present"
)

func newMCPCmd(rt *runtime) *cobra.Command {
	mcpCmd := &cobra.Command{
		Use:   "mcp",
		Short: "MCP server integration",
	}

	mcpCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List known MCP servers",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			return mcpList(&rt.cfg)
		},
	})

	mcpCmd.AddCommand(&cobra.Command{
		Use:   "tools",
		Short: "List tools from enabled MCP servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), rt.cfg.MCPTimeout.Std())
			defer cancel()
			return mcpListTools(ctx, &rt.cfg)
		},
	})

	return mcpCmd
}

// searchRegistry builds the registry the search agent would use: the default
// web server when the tool credential is present, plus everything from the
// settings file.
func searchRegistry(cfg *config.Config) (*imcp.Registry, error) {
	registry := imcp.NewRegistry(cfg)
	if cfg.ToolsConfigured() {
		for name, server := range imcp.DefaultServers(imcp.KindWeb) {
			if err := registry.Register(name, server); err != nil {
				return nil, err
			}
		}
	}
	for name, server := range cfg.MCPServers {
		if err := registry.Register(name, server); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func mcpList(cfg *config.Config) error {
	registry, err := searchRegistry(cfg)
	if err != nil {
		return err
	}
	for name := range registry.EnabledServers() {
		fmt.Println(name + present.StdoutStyles().Timeago.Render(" (enabled)"))
	}
	return nil
}

func mcpListTools(ctx context.Context, cfg *config.Config) error {
	registry, err := searchRegistry(cfg)
	if err != nil {
		return err
	}
	servers, err := registry.Tools(ctx)
	if err != nil {
		return fmt.Errorf("mcp list tools: %w", err)
	}

	names := slices.Collect(maps.Keys(servers))
	slices.Sort(names)
	for _, sname := range names {
		tools := servers[sname]
		slices.SortFunc(tools, func(a, b mmcp.Tool) int { return strings.Compare(a.Name, b.Name) })
		for _, tool := range tools {
			_, _ = fmt.Fprint(os.Stdout, present.StdoutStyles().Timeago.Render(sname+" > "))
			_, _ = fmt.Fprintln(os.Stdout, tool.Name)
		}
	}
	return nil
}
