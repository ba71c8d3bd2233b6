package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/dotcommander/agentd/internal/errs"
	"github.com/dotcommander/agentd/internal/present"
	"github.com/dotcommander/agentd/internal/proto"
	"github.com/dotcommander/agentd/internal/storage"
	"github.com/dotcommander/agentd/internal/storage/cache"
	"github.com/dotcommander/agentd/internal/tui"
)

const titleMaxLen = 50

func newChatCmd(rt *runtime) *cobra.Command {
	var (
		agentType    string
		continueID   string
		continueLast bool
		title        string
	)
	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			if !present.IsInputTTY() || !present.IsOutputTTY() {
				return errs.Error{
					Err:    errors.New("stdin and stdout must be terminals"),
					Reason: "Interactive chat needs a terminal. Use `agentd ask` in pipelines.",
				}
			}

			a, _, err := buildAgent(rt, agentType)
			if err != nil {
				return err
			}

			db, err := storage.Open(rt.cfg.CachePath)
			if err != nil {
				return errs.Error{Err: err, Reason: "Could not open the conversation store."}
			}
			defer db.Close() //nolint:errcheck
			convoCache, err := cache.NewConversations(rt.cfg.CachePath)
			if err != nil {
				return errs.Error{Err: err, Reason: "Could not open the conversation cache."}
			}

			id, history, err := resolveConversation(db, convoCache, continueID, continueLast)
			if err != nil {
				return err
			}

			saveFn := func(messages []proto.Message) error {
				if err := convoCache.Write(id, messages); err != nil {
					return err
				}
				t := title
				if t == "" {
					t = titleFromMessages(messages)
				}
				return db.Save(id, t, agentType, rt.cfg.Model)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			model := tui.NewChat(ctx, present.StdoutRenderer(), &rt.cfg, a, history, saveFn)
			p := tea.NewProgram(model, tea.WithContext(ctx))
			if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return errs.Error{Err: err, Reason: "The chat session ended unexpectedly."}
			}
			return nil
		},
	}
	chatCmd.Flags().StringVarP(&agentType, "agent", "a", "chat", "agent variant (chat or search)")
	chatCmd.Flags().StringVar(&continueID, "continue", "", "continue the conversation with the given ID or title")
	chatCmd.Flags().BoolVar(&continueLast, "continue-last", false, "continue the most recent conversation")
	chatCmd.Flags().StringVar(&title, "title", "", "title to save the conversation under")
	return chatCmd
}

func resolveConversation(db *storage.DB, convoCache *cache.Conversations, continueID string, continueLast bool) (string, []proto.Message, error) {
	switch {
	case continueLast:
		head, err := db.FindHEAD()
		if err != nil {
			return "", nil, errs.Error{Err: err, Reason: "There is no conversation to continue."}
		}
		return loadConversation(convoCache, head.ID)
	case continueID != "":
		convo, err := db.Find(continueID)
		if err != nil {
			return "", nil, errs.Error{Err: err, Reason: fmt.Sprintf("Could not find conversation %q.", continueID)}
		}
		return loadConversation(convoCache, convo.ID)
	default:
		return storage.NewConversationID(), nil, nil
	}
}

func loadConversation(convoCache *cache.Conversations, id string) (string, []proto.Message, error) {
	var history []proto.Message
	if err := convoCache.Read(id, &history); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", nil, errs.Error{Err: err, Reason: "Could not read the saved conversation."}
	}
	return id, history, nil
}

func titleFromMessages(messages []proto.Message) string {
	for _, msg := range messages {
		if msg.Role != proto.RoleUser {
			continue
		}
		title := strings.TrimSpace(msg.Content)
		if title == "" {
			continue
		}
		title = strings.ReplaceAll(title, "\n", " ")
		if len(title) > titleMaxLen {
			title = title[:titleMaxLen]
		}
		return title
	}
	return "untitled"
}
