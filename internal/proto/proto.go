// Package proto defines the provider-agnostic request and message types
// exchanged between the agent layer and the model bridge.
package proto

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// Role of a conversation message.
type Role string

// Message roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one conversation turn.
type Message struct {
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// Function describes the function invoked by a tool call.
type Function struct {
	Name      string `json:"name"`
	Arguments []byte `json:"arguments"`
}

// ToolCall is a model-requested tool invocation.
type ToolCall struct {
	ID       string   `json:"id"`
	Function Function `json:"function"`
	IsError  bool     `json:"is_error,omitempty"`
}

// ToolCaller executes a named tool with raw JSON arguments and returns its
// textual output.
type ToolCaller func(name string, data []byte) (string, error)

// Request is a single model invocation: messages, model selection, sampling
// parameters, and optionally the tools the model may call.
type Request struct {
	Messages    []Message
	API         string
	Model       string
	User        string
	Temperature *float64
	TopP        *float64
	TopK        *int64
	Stop        []string
	MaxTokens   *int64

	// Tools available to the model, grouped by MCP server name.
	Tools      map[string][]mcp.Tool
	ToolCaller ToolCaller
}

// Chunk is one piece of streamed response content.
type Chunk struct {
	Content string
}
