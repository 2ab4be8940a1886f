package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rendis/verdict/internal/logging"
)

// Execute runs the root command.
func Execute() {
	if err := newRootCmd(loadConfig()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(cfg Config) *cobra.Command {
	root := &cobra.Command{
		Use:   "verdict",
		Short: "Verdict - decision graph evaluation engine",
		Long: `Verdict evaluates business-rule decision graphs: JSON or YAML documents of
input, expression, decision table, switch and output nodes wired by edges.

Configuration is read from ~/.verdict/settings.json and VERDICT_* environment
variables; flags override both.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")

	root.AddCommand(
		newEvalCmd(&cfg),
		newValidateCmd(&cfg),
		newServeCmd(&cfg),
		newGraphCmd(&cfg),
		newVersionCmd(),
	)
	return root
}

// newLogger builds the process logger. Logs go to w so stdout stays free
// for command output and the stdio transport.
func newLogger(w io.Writer, level string) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logging.ParseLevel(level)})
	return slog.New(logging.NewCorrelationHandler(h))
}
