package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rendis/verdict/internal/diagram"
	"github.com/rendis/verdict/pkg/schema"
	"github.com/rendis/verdict/pkg/verdict"
)

func newGraphCmd(cfg *Config) *cobra.Command {
	var (
		format     string
		contextArg string
	)

	cmd := &cobra.Command{
		Use:   "graph <file>",
		Short: "Render a decision graph",
		Long: `Render a decision file as a Mermaid flowchart or an ASCII diagram.

With --context the decision is evaluated with tracing first, and the diagram
marks which nodes executed and which were skipped by switch branches.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readDecision(args[0])
			if err != nil {
				return err
			}

			var trace []schema.TraceRecord
			if contextArg != "" {
				input, err := readContext(contextArg)
				if err != nil {
					return err
				}
				e, err := newEngine(cfg, newLogger(cmd.ErrOrStderr(), cfg.LogLevel), verdict.WithListeners(verdict.EngineListener{
					Loader: verdict.NewFilesystemLoader(filepath.Dir(args[0])),
				}))
				if err != nil {
					return err
				}
				d, err := e.CreateDecision(content)
				if err != nil {
					return err
				}
				res, err := d.Evaluate(cmd.Context(), input, schema.EvaluationOptions{Trace: schema.TraceDefault, MaxDepth: schema.Depth(cfg.MaxDepth)})
				if err != nil {
					return err
				}
				trace = res.Trace
			}

			model, err := diagram.Build(content, trace)
			if err != nil {
				return err
			}

			switch format {
			case "mermaid":
				fmt.Fprint(cmd.OutOrStdout(), diagram.RenderMermaid(model))
			case "ascii":
				fmt.Fprint(cmd.OutOrStdout(), diagram.RenderASCII(model))
			default:
				return fmt.Errorf("unknown format %q (want mermaid or ascii)", format)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "mermaid", "output format: mermaid, ascii")
	cmd.Flags().StringVar(&contextArg, "context", "", "evaluate with this context and overlay the trace")
	return cmd
}
