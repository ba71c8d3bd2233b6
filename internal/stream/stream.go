// Package stream defines the streaming contract between the agent layer and
// provider bridges.
package stream

import (
	"context"
	"errors"
	"fmt"

	"github.com/dotcommander/agentd/internal/proto"
)

// ErrNoContent is returned by Current when the latest stream event carried no
// renderable content.
var ErrNoContent = errors.New("no content")

// Client starts model invocations.
type Client interface {
	Request(ctx context.Context, request proto.Request) Stream
}

// Stream is an in-flight model invocation.
//
// Consumers drain it with Next/Current, then call CallTools; a non-empty
// result means the model requested tool invocations and the stream will
// continue with their results on the following Next.
type Stream interface {
	Next() bool
	Current() (proto.Chunk, error)
	Close() error
	Err() error
	Messages() []proto.Message
	CallTools() []ToolCallStatus
}

// ToolCallStatus reports the outcome of one tool invocation.
type ToolCallStatus struct {
	Name string
	Err  error
}

func (s ToolCallStatus) String() string {
	if s.Err != nil {
		return fmt.Sprintf("\n> Tool %s failed: %s\n\n", s.Name, s.Err)
	}
	return fmt.Sprintf("\n> Ran %s\n\n", s.Name)
}

// CallTool executes one tool call through caller and converts the outcome
// into the tool message appended to the conversation.
func CallTool(id, name string, args []byte, caller proto.ToolCaller) (proto.Message, ToolCallStatus) {
	if caller == nil {
		err := fmt.Errorf("no tool caller configured for %q", name)
		return toolMessage(id, name, args, err.Error(), true), ToolCallStatus{Name: name, Err: err}
	}
	out, err := caller(name, args)
	if err != nil {
		return toolMessage(id, name, args, err.Error(), true), ToolCallStatus{Name: name, Err: err}
	}
	return toolMessage(id, name, args, out, false), ToolCallStatus{Name: name}
}

func toolMessage(id, name string, args []byte, content string, isErr bool) proto.Message {
	return proto.Message{
		Role:    proto.RoleTool,
		Content: content,
		ToolCalls: []proto.ToolCall{{
			ID:       id,
			Function: proto.Function{Name: name, Arguments: args},
			IsError:  isErr,
		}},
	}
}
