package agent

import (
	"context"
	"fmt"
	"strings"

	mmcp "github.com/mark3labs/mcp-go/mcp"

	"github.com/dotcommander/agentd/internal/config"
	"github.com/dotcommander/agentd/internal/fantasybridge"
	"github.com/dotcommander/agentd/internal/mcp"
	"github.com/dotcommander/agentd/internal/proto"
	"github.com/dotcommander/agentd/internal/stream"
)

// Type identifies an agent variant.
type Type string

// Agent variants. Chat and Search differ only in system prompt and default
// tool set; Custom supplies both at construction.
const (
	TypeChat   Type = "chat"
	TypeSearch Type = "search"
	TypeCustom Type = "custom"
)

const chatSystemPrompt = `You are a friendly conversational AI assistant.
You hold natural conversations, explain concepts clearly, and help with
analysis and writing. Be helpful, honest, and concise.`

const searchSystemPrompt = `You are a research assistant with access to web
search tools. Use the search tools whenever the answer depends on current or
external information, then summarize what you found and cite your sources.`

// Result is the outcome of one Execute call. Content is set iff Success is
// true; Error and Category are set iff it is false.
type Result struct {
	Success  bool     `json:"success"`
	Content  string   `json:"content,omitempty"`
	Error    string   `json:"error,omitempty"`
	Category Category `json:"category,omitempty"`
}

// Agent executes prompts against the configured model, optionally exposing
// the tools of its registry to the model.
type Agent struct {
	cfg          *config.Config
	typ          Type
	systemPrompt string
	registry     *mcp.Registry

	// client overrides the fantasy-backed default. Set in tests.
	client stream.Client
}

// NewChat creates a conversational agent. Its tool set is always empty,
// regardless of what servers the configuration declares.
func NewChat(cfg *config.Config) *Agent {
	return &Agent{
		cfg:          cfg,
		typ:          TypeChat,
		systemPrompt: chatSystemPrompt,
		registry:     mcp.NewRegistry(cfg),
	}
}

// NewSearch creates a research agent. The web search server is registered
// when the tool credential is present; servers from the configuration are
// added on top of it. Without the credential and without configured servers
// the agent runs tool-less and prompts go straight to the model.
func NewSearch(cfg *config.Config) (*Agent, error) {
	registry := mcp.NewRegistry(cfg)
	if cfg.ToolsConfigured() {
		for name, server := range mcp.DefaultServers(mcp.KindWeb) {
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
	return &Agent{
		cfg:          cfg,
		typ:          TypeSearch,
		systemPrompt: searchSystemPrompt,
		registry:     registry,
	}, nil
}

// NewCustom creates an agent with an explicit system prompt and tool servers.
// Only the given servers are registered.
func NewCustom(cfg *config.Config, systemPrompt string, servers map[string]config.MCPServerConfig) (*Agent, error) {
	registry := mcp.NewRegistry(cfg)
	for name, server := range servers {
		if err := registry.Register(name, server); err != nil {
			return nil, err
		}
	}
	return &Agent{
		cfg:          cfg,
		typ:          TypeCustom,
		systemPrompt: systemPrompt,
		registry:     registry,
	}, nil
}

// WithClient returns a copy of the agent bound to the given stream client
// instead of the fantasy-backed default.
func (a *Agent) WithClient(client stream.Client) *Agent {
	b := *a
	b.client = client
	return &b
}

// Type returns the agent variant tag.
func (a *Agent) Type() Type { return a.typ }

// Registry exposes the agent's tool registry.
func (a *Agent) Registry() *mcp.Registry { return a.registry }

// Execute runs one completion for the given prompt. It never returns an
// error: all failures are reported through the Result.
func (a *Agent) Execute(ctx context.Context, prompt string, useTools bool) Result {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Result{Error: "prompt must not be empty"}
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout.Std())
	defer cancel()

	var tools map[string][]mmcp.Tool
	if useTools && a.registry.Len() > 0 {
		toolsCtx, toolsCancel := context.WithTimeout(ctx, a.cfg.MCPTimeout.Std())
		var err error
		tools, err = a.registry.Tools(toolsCtx)
		toolsCancel()
		if err != nil {
			return Result{Error: err.Error(), Category: CategoryTool}
		}
	}

	request := proto.Request{
		Messages: []proto.Message{
			{Role: proto.RoleSystem, Content: a.systemPrompt},
			{Role: proto.RoleUser, Content: prompt},
		},
		API:   config.APIForModel(a.cfg.Model),
		Model: a.cfg.Model,
		User:  a.cfg.User,
		Stop:  a.cfg.Stop,
		Tools: tools,
	}
	if a.cfg.Temperature > 0 {
		v := a.cfg.Temperature
		request.Temperature = &v
	}
	if a.cfg.TopP > 0 {
		v := a.cfg.TopP
		request.TopP = &v
	}
	if a.cfg.TopK > 0 {
		v := a.cfg.TopK
		request.TopK = &v
	}
	// o1 models do not accept max_tokens.
	if a.cfg.MaxTokens > 0 && !strings.HasPrefix(a.cfg.Model, "o1") {
		v := a.cfg.MaxTokens
		request.MaxTokens = &v
	}
	if len(tools) > 0 {
		request.ToolCaller = func(name string, data []byte) (string, error) {
			callCtx, callCancel := context.WithTimeout(ctx, a.cfg.MCPTimeout.Std())
			defer callCancel()
			return a.registry.Call(callCtx, name, data)
		}
	}

	client, err := a.streamClient()
	if err != nil {
		return a.failure(err)
	}

	st := client.Request(ctx, request)
	defer st.Close() //nolint:errcheck

	var content strings.Builder
	for {
		for st.Next() {
			chunk, err := st.Current()
			if err != nil {
				// stream.ErrNoContent marks bookkeeping parts, skip them.
				continue
			}
			content.WriteString(chunk.Content)
		}
		if err := st.Err(); err != nil {
			return a.failure(err)
		}
		statuses := st.CallTools()
		if len(statuses) == 0 {
			break
		}
		for _, status := range statuses {
			if status.Err != nil {
				return Result{
					Error:    fmt.Sprintf("tool %s: %s", status.Name, status.Err),
					Category: CategoryTool,
				}
			}
		}
	}

	return Result{Success: true, Content: content.String()}
}

func (a *Agent) failure(err error) Result {
	category, reason := classify(err)
	return Result{Error: reason, Category: category}
}

func (a *Agent) streamClient() (stream.Client, error) {
	if a.client != nil {
		return a.client, nil
	}

	api := config.APIForModel(a.cfg.Model)
	aliases := a.cfg.Aliases()
	var alias config.Alias
	switch api {
	case "anthropic":
		alias = aliases.Anthropic
	case "google":
		alias = aliases.Gemini
	default:
		alias = aliases.OpenAI
	}

	client, err := fantasybridge.New(fantasybridge.Config{
		API:     api,
		BaseURL: alias.BaseURL,
		APIKey:  alias.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("new fantasy bridge client: %w", err)
	}
	return client, nil
}
