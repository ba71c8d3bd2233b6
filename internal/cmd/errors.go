package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dotcommander/agentd/internal/errs"
	"github.com/dotcommander/agentd/internal/present"
)

type flagParseError struct {
	err error
}

func newFlagParseError(err error) flagParseError {
	return flagParseError{err: err}
}

func (f flagParseError) Error() string { return f.err.Error() }

// Flag extracts the offending flag name from a pflag error message.
func (f flagParseError) Flag() string {
	msg := f.err.Error()
	for _, prefix := range []string{"unknown flag: ", "unknown shorthand flag: ", "bad flag syntax: "} {
		if rest, ok := strings.CutPrefix(msg, prefix); ok {
			return strings.Trim(rest, "'")
		}
	}
	return msg
}

func handleError(err error) {
	// exhaust stdin so upstream pipe writers do not get a broken pipe
	if !present.IsInputTTY() {
		_, _ = io.ReadAll(os.Stdin)
	}

	format := "\n%s\n\n"

	var ferr flagParseError
	if errors.As(err, &ferr) {
		fmt.Fprintf(os.Stderr, format+"%s\n\n",
			fmt.Sprintf(
				"Check out %s %s",
				present.StderrStyles().InlineCode.Render("agentd -h"),
				present.StderrStyles().Comment.Render("for help."),
			),
			fmt.Sprintf("Invalid flag: %s", present.StderrStyles().InlineCode.Render(ferr.Flag())),
		)
		return
	}

	var merr errs.Error
	if errors.As(err, &merr) {
		fmt.Fprintf(os.Stderr, format+"%s\n\n",
			present.StderrStyles().ErrPadding.Render(present.StderrStyles().ErrorHeader.String(), merr.Reason),
			present.StderrStyles().ErrPadding.Render(present.StderrStyles().ErrorDetails.Render(err.Error())),
		)
		return
	}

	fmt.Fprintf(os.Stderr, format, present.StderrStyles().ErrPadding.Render(present.StderrStyles().ErrorDetails.Render(err.Error())))
}
