package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dotcommander/agentd/internal/present"
	"github.com/dotcommander/agentd/internal/server"
)

func newServeCmd(rt *runtime) *cobra.Command {
	var addr string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			if addr != "" {
				rt.cfg.HTTPAddr = addr
			}

			logger := newLogger()
			srv, err := server.New(&rt.cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx)
		},
	}
	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides settings)")
	return serveCmd
}

// newLogger emits JSON when output is piped, text on a terminal.
func newLogger() *slog.Logger {
	var handler slog.Handler
	if present.IsOutputTTY() {
		handler = slog.NewTextHandler(os.Stderr, nil)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, nil)
	}
	return slog.New(handler)
}
