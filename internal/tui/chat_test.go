package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dotcommander/agentd/internal/agent"
	"github.com/dotcommander/agentd/internal/config"
	"github.com/dotcommander/agentd/internal/proto"
)

func newTestChat(t *testing.T, history []proto.Message, saveFn SaveFn) *Chat {
	t.Helper()
	cfg := config.Default()
	cfg.Quiet = true
	c := NewChat(t.Context(), lipgloss.DefaultRenderer(), &cfg, nil, history, saveFn)
	c.width = 80
	c.height = 24
	c.resizeViewport()
	return c
}

func TestChatQuitKeys(t *testing.T) {
	for name, key := range map[string]tea.KeyType{
		"ctrl+c": tea.KeyCtrlC,
		"esc":    tea.KeyEsc,
	} {
		t.Run(name, func(t *testing.T) {
			c := newTestChat(t, nil, nil)
			_, cmd := c.Update(tea.KeyMsg{Type: key})
			if cmd == nil {
				t.Fatal("expected a quit command")
			}
			if _, ok := cmd().(tea.QuitMsg); !ok {
				t.Errorf("expected tea.QuitMsg, got %T", cmd())
			}
		})
	}
}

func TestChatIgnoresEmptySubmit(t *testing.T) {
	c := newTestChat(t, nil, nil)
	c.input.SetValue("   ")
	_, cmd := c.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Fatal("blank input must not start a turn")
	}
	if c.state != chatInputState {
		t.Fatalf("state = %d, want input state", c.state)
	}
}

func TestChatSubmitEntersWaitingState(t *testing.T) {
	c := newTestChat(t, nil, nil)
	c.input.SetValue("hello")
	_, cmd := c.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected spinner and execute commands")
	}
	if c.state != chatWaitingState {
		t.Fatalf("state = %d, want waiting state", c.state)
	}
	if !strings.Contains(c.transcript.String(), "> hello") {
		t.Errorf("transcript missing submitted prompt: %q", c.transcript.String())
	}
}

func TestChatAppliesTurn(t *testing.T) {
	var saved []proto.Message
	c := newTestChat(t, nil, func(messages []proto.Message) error {
		saved = messages
		return nil
	})
	c.state = chatWaitingState

	c.Update(turnDoneMsg{
		prompt: "hi",
		result: agent.Result{Success: true, Content: "hello back"},
	})

	if c.state != chatInputState {
		t.Fatalf("state = %d, want input state", c.state)
	}
	if len(c.history) != 2 {
		t.Fatalf("history length = %d, want 2", len(c.history))
	}
	if len(saved) != 2 {
		t.Fatalf("saved length = %d, want 2", len(saved))
	}
	if !strings.Contains(c.transcript.String(), "hello back") {
		t.Errorf("transcript missing assistant reply")
	}
}

func TestChatRendersFailureAndContinues(t *testing.T) {
	c := newTestChat(t, nil, nil)
	c.state = chatWaitingState

	c.Update(turnDoneMsg{
		prompt: "hi",
		result: agent.Result{Error: "Invalid API key.", Category: agent.CategoryAuth},
	})

	if c.state != chatInputState {
		t.Fatal("session must return to input state after a failed turn")
	}
	if len(c.history) != 0 {
		t.Fatal("failed turns must not be recorded in history")
	}
	if !strings.Contains(c.transcript.String(), "Invalid API key.") {
		t.Errorf("transcript missing error detail: %q", c.transcript.String())
	}
}

func TestChatSeedsTranscriptFromHistory(t *testing.T) {
	history := []proto.Message{
		{Role: proto.RoleUser, Content: "earlier question"},
		{Role: proto.RoleAssistant, Content: "earlier answer"},
	}
	c := newTestChat(t, history, nil)

	out := c.transcript.String()
	if !strings.Contains(out, "> earlier question") || !strings.Contains(out, "earlier answer") {
		t.Errorf("transcript missing seeded history: %q", out)
	}
}
