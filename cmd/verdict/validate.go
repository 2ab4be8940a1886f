package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>...",
		Short: "Validate decision files",
		Long: `Check that JSON or YAML decision files are well-formed and compile: the
document shape, unique node IDs, resolvable edges, an acyclic graph and valid
node content. Nothing is evaluated.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine(cfg, newLogger(cmd.ErrOrStderr(), cfg.LogLevel))
			if err != nil {
				return err
			}

			failed := 0
			for _, path := range args {
				content, err := readDecision(path)
				if err == nil {
					_, err = e.CreateDecision(content)
				}
				if err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", path, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", path)
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d decision files are invalid", failed, len(args))
			}
			return nil
		},
	}
}
