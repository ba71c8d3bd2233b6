package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"

	"github.com/dotcommander/agentd/internal/present"
)

func useLine(cmd *cobra.Command) string {
	appName := filepath.Base(os.Args[0])
	if present.StdoutRenderer().ColorProfile() == termenv.TrueColor {
		appName = present.MakeGradientText(present.StdoutStyles().AppName, appName)
	}

	args := "[COMMAND]"
	if cmd.HasParent() {
		args = cmd.Use
	}
	return fmt.Sprintf("%s %s", appName, present.StdoutStyles().CliArgs.Render(args))
}

func usageFunc(cmd *cobra.Command) error {
	fmt.Printf("Usage:\n  %s\n\n", useLine(cmd))

	if cmd.HasAvailableSubCommands() {
		fmt.Println("Commands:")
		for _, sub := range cmd.Commands() {
			if sub.Hidden {
				continue
			}
			fmt.Printf(
				"  %-44s %s\n",
				present.StdoutStyles().Flag.Render(sub.Name()),
				present.StdoutStyles().FlagDesc.Render(sub.Short),
			)
		}
		fmt.Println()
	}

	fmt.Println("Options:")
	cmd.Flags().VisitAll(func(f *flag.Flag) {
		if f.Hidden {
			return
		}
		if f.Shorthand == "" {
			fmt.Printf(
				"  %-44s %s\n",
				present.StdoutStyles().Flag.Render("--"+f.Name),
				present.StdoutStyles().FlagDesc.Render(f.Usage),
			)
		} else {
			fmt.Printf(
				"  %s%s %-40s %s\n",
				present.StdoutStyles().Flag.Render("-"+f.Shorthand),
				present.StdoutStyles().FlagComma,
				present.StdoutStyles().Flag.Render("--"+f.Name),
				present.StdoutStyles().FlagDesc.Render(f.Usage),
			)
		}
	})
	return nil
}
