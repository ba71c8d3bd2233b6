package fantasybridge

import (
	"testing"

	"charm.land/fantasy"
	fopenai "charm.land/fantasy/providers/openai"
	fopenaicompat "charm.land/fantasy/providers/openaicompat"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/agentd/internal/proto"
)

func TestNewProviderAliases(t *testing.T) {
	// Every alias points at the same proxy pair; construction must succeed
	// for each provider family plus the compat fallthrough.
	for _, api := range []string{"openai", "anthropic", "google", "litellm"} {
		t.Run(api, func(t *testing.T) {
			client, err := New(Config{
				API:     api,
				APIKey:  "sk-proxy",
				BaseURL: "https://litellm.internal.example.com/v1",
			})
			require.NoError(t, err)
			require.NotNil(t, client)
		})
	}
}

func TestToFantasyPrompt(t *testing.T) {
	messages := []proto.Message{
		{Role: proto.RoleSystem, Content: "you search the web"},
		{Role: proto.RoleUser, Content: "latest Go release?"},
		{Role: proto.RoleAssistant, Content: "searching", ToolCalls: []proto.ToolCall{{
			ID: "call_9",
			Function: proto.Function{
				Name:      "web_search",
				Arguments: []byte(`{"query":"go release"}`),
			},
		}}},
		{Role: proto.RoleTool, Content: "Go 1.25", ToolCalls: []proto.ToolCall{{ID: "call_9"}}},
		{Role: proto.RoleTool, Content: "connect refused", ToolCalls: []proto.ToolCall{{ID: "call_a", IsError: true}}},
	}

	prompt := toFantasyPrompt(messages)
	require.Len(t, prompt, 5)
	require.Equal(t, fantasy.MessageRoleSystem, prompt[0].Role)
	require.Equal(t, fantasy.MessageRoleUser, prompt[1].Role)
	require.Equal(t, fantasy.MessageRoleAssistant, prompt[2].Role)

	callPart, ok := fantasy.AsMessagePart[fantasy.ToolCallPart](prompt[2].Content[1])
	require.True(t, ok)
	require.Equal(t, "web_search", callPart.ToolName)

	okPart, ok := fantasy.AsMessagePart[fantasy.ToolResultPart](prompt[3].Content[0])
	require.True(t, ok)
	okOutput, textOK := fantasy.AsToolResultOutputType[fantasy.ToolResultOutputContentText](okPart.Output)
	require.True(t, textOK)
	require.Equal(t, "Go 1.25", okOutput.Text)

	errPart, ok := fantasy.AsMessagePart[fantasy.ToolResultPart](prompt[4].Content[0])
	require.True(t, ok)
	errOutput, errOK := fantasy.AsToolResultOutputType[fantasy.ToolResultOutputContentError](errPart.Output)
	require.True(t, errOK)
	require.Equal(t, "connect refused", errOutput.Error.Error())
}

func TestFromMCPTools(t *testing.T) {
	tools := fromMCPTools(map[string][]mcp.Tool{
		"web": {
			{
				Name:        "search",
				Description: "web search",
				InputSchema: mcp.ToolInputSchema{
					Properties: map[string]any{
						"query": map[string]any{"type": "string"},
					},
					Required: []string{"query"},
				},
			},
		},
	})

	require.Len(t, tools, 1)
	fn, ok := tools[0].(fantasy.FunctionTool)
	require.True(t, ok)
	require.Equal(t, "web_search", fn.Name)
	require.Equal(t, "web search", fn.Description)
	require.Equal(t, "object", fn.InputSchema["type"])
	require.Equal(t, []string{"query"}, fn.InputSchema["required"])
}

func TestToolChoiceForRequest(t *testing.T) {
	require.Nil(t, toolChoiceForRequest(proto.Request{}))

	choice := toolChoiceForRequest(proto.Request{
		Tools: map[string][]mcp.Tool{"web": {{Name: "search"}}},
	})
	require.NotNil(t, choice)
	require.Equal(t, fantasy.ToolChoiceAuto, *choice)
}

func TestBuildCallUserProviderOptions(t *testing.T) {
	t.Run("openai alias", func(t *testing.T) {
		s := &Stream{api: "openai", request: proto.Request{User: "alice"}}

		call := s.buildCall()
		v, ok := call.ProviderOptions[fopenai.Name]
		require.True(t, ok)
		opts, ok := v.(*fopenai.ProviderOptions)
		require.True(t, ok)
		require.NotNil(t, opts.User)
		require.Equal(t, "alice", *opts.User)
	})

	t.Run("compat fallthrough", func(t *testing.T) {
		s := &Stream{api: "litellm", request: proto.Request{User: "bob"}}

		call := s.buildCall()
		v, ok := call.ProviderOptions[fopenaicompat.Name]
		require.True(t, ok)
		opts, ok := v.(*fopenaicompat.ProviderOptions)
		require.True(t, ok)
		require.NotNil(t, opts.User)
		require.Equal(t, "bob", *opts.User)
	})

	t.Run("anthropic and google attach nothing", func(t *testing.T) {
		for _, api := range []string{"anthropic", "google"} {
			s := &Stream{api: api, request: proto.Request{User: "carol"}}
			require.Empty(t, s.buildCall().ProviderOptions)
		}
	})
}

func TestConsumePart(t *testing.T) {
	t.Run("accumulates text deltas", func(t *testing.T) {
		s := &Stream{stepToolCallSeen: map[string]struct{}{}}
		s.consumePart(fantasy.StreamPart{Type: fantasy.StreamPartTypeTextDelta, Delta: "Hello"})
		s.consumePart(fantasy.StreamPart{Type: fantasy.StreamPartTypeTextDelta, Delta: " there"})
		require.Equal(t, "Hello there", s.stepText.String())
	})

	t.Run("deduplicates tool calls by id", func(t *testing.T) {
		s := &Stream{stepToolCallSeen: map[string]struct{}{}}
		part := fantasy.StreamPart{
			Type:          fantasy.StreamPartTypeToolCall,
			ID:            "tc_1",
			ToolCallName:  "web_search",
			ToolCallInput: `{"query":"x"}`,
		}
		s.consumePart(part)
		s.consumePart(part)
		require.Len(t, s.stepToolCalls, 1)
	})

	t.Run("skips provider-executed tool calls", func(t *testing.T) {
		s := &Stream{stepToolCallSeen: map[string]struct{}{}}
		s.consumePart(fantasy.StreamPart{
			Type:             fantasy.StreamPartTypeToolCall,
			ID:               "tc_2",
			ToolCallName:     "web_search",
			ProviderExecuted: true,
		})
		require.Empty(t, s.stepToolCalls)
	})
}
