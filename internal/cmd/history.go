package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	timeago "github.com/caarlos0/timea.go"
	"github.com/spf13/cobra"

	"github.com/dotcommander/agentd/internal/config"
	"github.com/dotcommander/agentd/internal/errs"
	"github.com/dotcommander/agentd/internal/present"
	"github.com/dotcommander/agentd/internal/proto"
	"github.com/dotcommander/agentd/internal/storage"
	"github.com/dotcommander/agentd/internal/storage/cache"
)

func newHistoryCmd(rt *runtime) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Manage saved conversations",
	}

	historyCmd.AddCommand(newHistoryListCmd(rt))
	historyCmd.AddCommand(newHistoryShowCmd(rt))
	historyCmd.AddCommand(newHistoryDeleteCmd(rt))
	historyCmd.AddCommand(newHistoryPruneCmd(rt))

	return historyCmd
}

func newHistoryListCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved conversations",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			db, err := storage.Open(rt.cfg.CachePath)
			if err != nil {
				return errs.Error{Err: err, Reason: "Could not open the conversation store."}
			}
			defer db.Close() //nolint:errcheck
			printList(db.List())
			return nil
		},
	}
}

func newHistoryShowCmd(rt *runtime) *cobra.Command {
	var last bool
	showCmd := &cobra.Command{
		Use:   "show [id-or-title]",
		Short: "Show a saved conversation",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			in := ""
			if len(args) == 1 {
				in = args[0]
			}
			return showConversation(&rt.cfg, in, last)
		},
	}
	showCmd.Flags().BoolVarP(&last, "last", "S", false, "Show the last saved conversation")
	return showCmd
}

func newHistoryDeleteCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id-or-title> [more...]",
		Short: "Delete saved conversations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			return deleteConversations(&rt.cfg, args)
		},
	}
}

func newHistoryPruneCmd(rt *runtime) *cobra.Command {
	var olderThan time.Duration
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete conversations older than a duration",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			if olderThan == 0 {
				return errs.Error{
					Err:    errors.New("missing --older-than"),
					Reason: "Could not delete old conversations.",
				}
			}
			return pruneConversations(&rt.cfg, olderThan)
		},
	}
	pruneCmd.Flags().DurationVar(&olderThan, "older-than", 0, "duration to prune; e.g. 24h, 168h")
	return pruneCmd
}

func printList(conversations []storage.Conversation) {
	for _, convo := range conversations {
		id := convo.ID
		if len(id) > storage.IDShort {
			id = id[:storage.IDShort]
		}
		timea := present.StdoutStyles().Timeago.Render(timeago.Of(convo.UpdatedAt))
		line := fmt.Sprintf(
			"%s %s",
			present.StdoutStyles().SHA.Render(id),
			present.StdoutStyles().ConversationList.Render(convo.Title, timea),
		)
		if convo.Model != "" {
			line += present.StdoutStyles().Comment.Render(" " + convo.Model)
		}
		_, _ = fmt.Fprintln(os.Stdout, line)
	}
}

func showConversation(cfg *config.Config, in string, last bool) error {
	db, err := storage.Open(cfg.CachePath)
	if err != nil {
		return errs.Error{Err: err, Reason: "Could not open the conversation store."}
	}
	defer db.Close() //nolint:errcheck

	var convo *storage.Conversation
	if last || in == "" {
		convo, err = db.FindHEAD()
	} else {
		convo, err = db.Find(in)
	}
	if err != nil {
		return errs.Error{Err: err, Reason: "Could not find the conversation."}
	}

	convoCache, err := cache.NewConversations(cfg.CachePath)
	if err != nil {
		return errs.Error{Err: err, Reason: "Could not open the conversation cache."}
	}
	var messages []proto.Message
	if err := convoCache.Read(convo.ID, &messages); err != nil {
		return errs.Error{Err: err, Reason: "Could not read the saved conversation."}
	}

	var b strings.Builder
	for _, msg := range messages {
		switch msg.Role {
		case proto.RoleUser:
			fmt.Fprintf(&b, "> %s\n\n", msg.Content)
		case proto.RoleAssistant:
			fmt.Fprintf(&b, "%s\n\n", msg.Content)
		}
	}

	out := b.String()
	if present.IsOutputTTY() && !cfg.Raw {
		if rendered, err := present.RenderMarkdownForTTY(out, cfg.WordWrap); err == nil {
			out = rendered
		}
	}
	_, _ = fmt.Fprint(os.Stdout, out)
	return nil
}

func deleteConversations(cfg *config.Config, args []string) error {
	db, err := storage.Open(cfg.CachePath)
	if err != nil {
		return errs.Error{Err: err, Reason: "Could not open the conversation store."}
	}
	defer db.Close() //nolint:errcheck
	convoCache, err := cache.NewConversations(cfg.CachePath)
	if err != nil {
		return errs.Error{Err: err, Reason: "Could not open the conversation cache."}
	}

	for _, in := range args {
		convo, err := db.Find(in)
		if err != nil {
			return errs.Error{Err: err, Reason: fmt.Sprintf("Could not find conversation %q.", in)}
		}
		if err := db.Delete(convo.ID); err != nil {
			return errs.Error{Err: err, Reason: "Could not delete the conversation."}
		}
		if err := convoCache.Delete(convo.ID); err != nil && !errors.Is(err, os.ErrNotExist) {
			return errs.Error{Err: err, Reason: "Could not delete the saved messages."}
		}
		if !cfg.Quiet {
			fmt.Fprintln(os.Stderr, "Deleted:", convo.ID[:storage.IDShort], convo.Title)
		}
	}
	return nil
}

func pruneConversations(cfg *config.Config, olderThan time.Duration) error {
	db, err := storage.Open(cfg.CachePath)
	if err != nil {
		return errs.Error{Err: err, Reason: "Could not open the conversation store."}
	}
	defer db.Close() //nolint:errcheck

	old := db.ListOlderThan(olderThan)
	if len(old) == 0 {
		if !cfg.Quiet {
			fmt.Fprintln(os.Stderr, "Nothing to prune.")
		}
		return nil
	}

	ids := make([]string, 0, len(old))
	for _, convo := range old {
		ids = append(ids, convo.ID)
	}
	return deleteConversations(cfg, ids)
}
