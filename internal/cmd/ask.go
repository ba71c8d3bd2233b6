package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dotcommander/agentd/internal/agent"
	"github.com/dotcommander/agentd/internal/errs"
	"github.com/dotcommander/agentd/internal/present"
)

func newAskCmd(rt *runtime) *cobra.Command {
	var (
		agentType string
		useTools  bool
		raw       bool
	)
	askCmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Run a single prompt and print the answer",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}

			prompt := strings.TrimSpace(strings.Join(args, " "))
			if stdin := readStdin(); stdin != "" {
				prompt = strings.TrimSpace(prompt + "\n\n" + stdin)
			}

			a, toolsDefault, err := buildAgent(rt, agentType)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("tools") {
				useTools = toolsDefault
			}

			result := a.Execute(cmd.Context(), prompt, useTools)
			if !result.Success {
				cause := errors.New(result.Error)
				if result.Category != "" {
					cause = fmt.Errorf("%s error: %s", result.Category, result.Error)
				}
				return errs.Error{Err: cause, Reason: result.Error}
			}

			output := result.Content
			if present.IsOutputTTY() && !raw {
				rendered, err := present.RenderMarkdownForTTY(output, rt.cfg.WordWrap)
				if err == nil {
					output = rendered
				}
			} else if !strings.HasSuffix(output, "\n") {
				output += "\n"
			}
			_, _ = fmt.Fprint(os.Stdout, output)
			return nil
		},
	}
	askCmd.Flags().StringVarP(&agentType, "agent", "a", string(agent.TypeChat), "agent variant (chat or search)")
	askCmd.Flags().BoolVarP(&useTools, "tools", "t", false, "expose MCP tools to the model")
	askCmd.Flags().BoolVarP(&raw, "raw", "r", false, "print raw output without markdown rendering")
	return askCmd
}

// buildAgent maps the CLI agent flag onto a variant. The second return is
// the variant's tool-use default.
func buildAgent(rt *runtime, agentType string) (*agent.Agent, bool, error) {
	switch agent.Type(agentType) {
	case agent.TypeChat, "":
		return agent.NewChat(&rt.cfg), false, nil
	case agent.TypeSearch:
		a, err := agent.NewSearch(&rt.cfg)
		return a, true, err
	default:
		return nil, false, errs.Error{
			Err:    errors.New("valid agents are: chat, search"),
			Reason: fmt.Sprintf("Unknown agent type %q.", agentType),
		}
	}
}

func readStdin() string {
	if present.IsInputTTY() {
		return ""
	}
	bts, err := io.ReadAll(os.Stdin)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(bts))
}
