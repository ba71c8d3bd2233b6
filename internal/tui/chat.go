// Package tui implements the interactive chat REPL.
package tui

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/dotcommander/agentd/internal/agent"
	"github.com/dotcommander/agentd/internal/config"
	"github.com/dotcommander/agentd/internal/present"
	"github.com/dotcommander/agentd/internal/proto"
)

type chatState int

const (
	chatInputState chatState = iota
	chatWaitingState
)

// SaveFn persists conversation messages after each turn.
type SaveFn func([]proto.Message) error

// turnDoneMsg carries the outcome of one agent execution.
type turnDoneMsg struct {
	prompt string
	result agent.Result
}

// Chat is the Bubble Tea model for the multi-turn REPL. Each submitted line
// runs one agent execution; failures are rendered inline and the session
// continues.
type Chat struct {
	state    chatState
	input    textinput.Model
	viewport viewport.Model
	spin     spinner.Model
	glam     *glamour.TermRenderer
	styles   present.Styles

	ctx     context.Context
	cfg     *config.Config
	agent   *agent.Agent
	saveFn  SaveFn
	history []proto.Message

	transcript bytes.Buffer
	width      int
	height     int
	quitting   bool
}

// NewChat creates the REPL model. history seeds the transcript when the
// caller continues a saved conversation.
func NewChat(ctx context.Context, r *lipgloss.Renderer, cfg *config.Config, a *agent.Agent, history []proto.Message, saveFn SaveFn) *Chat {
	gr, _ := glamour.NewTermRenderer(
		glamour.WithEnvironmentConfig(),
		glamour.WithWordWrap(cfg.WordWrap),
	)

	ti := textinput.New()
	ti.Prompt = "agentd> "
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	c := &Chat{
		state:    chatInputState,
		input:    ti,
		viewport: viewport.New(0, 0),
		spin:     sp,
		glam:     gr,
		styles:   present.MakeStyles(r),
		ctx:      ctx,
		cfg:      cfg,
		agent:    a,
		saveFn:   saveFn,
		history:  history,
	}

	for _, msg := range history {
		if msg.Content == "" {
			continue
		}
		switch msg.Role {
		case proto.RoleUser:
			fmt.Fprintf(&c.transcript, "> %s\n\n", msg.Content)
		case proto.RoleAssistant:
			fmt.Fprintf(&c.transcript, "%s\n\n", msg.Content)
		}
	}

	return c
}

// Messages returns the accumulated conversation history.
func (c *Chat) Messages() []proto.Message {
	return c.history
}

// Init implements tea.Model.
func (c *Chat) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (c *Chat) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		c.width = msg.Width
		c.height = msg.Height
		c.resizeViewport()
		c.refreshViewport()
		return c, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			c.quitting = true
			return c, tea.Quit
		case tea.KeyEnter:
			if c.state != chatInputState {
				return c, nil
			}
			prompt := strings.TrimSpace(c.input.Value())
			if prompt == "" {
				return c, nil
			}
			c.input.Reset()
			c.state = chatWaitingState
			fmt.Fprintf(&c.transcript, "> %s\n\n", prompt)
			c.refreshViewport()
			return c, tea.Batch(c.spin.Tick, c.executeCmd(prompt))
		}

	case spinner.TickMsg:
		if c.state != chatWaitingState {
			return c, nil
		}
		var cmd tea.Cmd
		c.spin, cmd = c.spin.Update(msg)
		return c, cmd

	case turnDoneMsg:
		c.state = chatInputState
		c.applyTurn(msg)
		c.refreshViewport()
		return c, nil
	}

	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	return c, cmd
}

// View implements tea.Model.
func (c *Chat) View() string {
	if c.quitting {
		return ""
	}
	var footer string
	switch c.state {
	case chatWaitingState:
		footer = c.spin.View() + c.styles.Comment.Render("thinking")
	default:
		footer = c.input.View()
	}
	return c.viewport.View() + "\n" + footer
}

func (c *Chat) executeCmd(prompt string) tea.Cmd {
	return func() tea.Msg {
		result := c.agent.Execute(c.ctx, prompt, c.agent.Type() != agent.TypeChat)
		return turnDoneMsg{prompt: prompt, result: result}
	}
}

func (c *Chat) applyTurn(msg turnDoneMsg) {
	if !msg.result.Success {
		header := c.styles.ErrorHeader.String()
		detail := c.styles.ErrorDetails.Render(msg.result.Error)
		fmt.Fprintf(&c.transcript, "%s %s\n\n", header, detail)
		return
	}

	c.history = append(c.history,
		proto.Message{Role: proto.RoleUser, Content: msg.prompt},
		proto.Message{Role: proto.RoleAssistant, Content: msg.result.Content},
	)

	rendered := msg.result.Content
	if c.glam != nil {
		if out, err := c.glam.Render(msg.result.Content); err == nil {
			rendered = strings.TrimRight(out, "\n")
		}
	}
	fmt.Fprintf(&c.transcript, "%s\n\n", rendered)

	if c.saveFn != nil {
		if err := c.saveFn(c.history); err != nil {
			fmt.Fprintf(&c.transcript, "%s\n\n", c.styles.Comment.Render("could not save conversation: "+err.Error()))
		}
	}
}

func (c *Chat) resizeViewport() {
	c.viewport.Width = c.width
	height := c.height - 2
	if height < 1 {
		height = 1
	}
	c.viewport.Height = height
}

func (c *Chat) refreshViewport() {
	c.viewport.SetContent(c.transcript.String())
	c.viewport.GotoBottom()
}
