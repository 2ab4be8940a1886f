package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rendis/verdict/internal/loader"
	"github.com/rendis/verdict/pkg/schema"
	"github.com/rendis/verdict/pkg/verdict"
)

func newEvalCmd(cfg *Config) *cobra.Command {
	var (
		contextArg string
		dir        string
		trace      bool
		maxDepth   int
	)

	cmd := &cobra.Command{
		Use:   "eval <file>",
		Short: "Evaluate a decision file",
		Long: `Evaluate a JSON or YAML decision file against a context and print the result.

The context is either inline JSON or the path of a JSON/YAML file. Decision
nodes resolve keys relative to --dir, which defaults to the directory of the
decision file.

Examples:
  verdict eval pricing.json --context '{"cart": {"total": 120}}'
  verdict eval pricing.yaml --context cart.yaml --trace`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readDecision(args[0])
			if err != nil {
				return err
			}
			input, err := readContext(contextArg)
			if err != nil {
				return err
			}
			if dir == "" {
				dir = filepath.Dir(args[0])
			}

			logger := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
			e, err := newEngine(cfg, logger, verdict.WithListeners(verdict.EngineListener{
				Loader: verdict.NewCachedLoader(verdict.NewFilesystemLoader(dir)),
			}))
			if err != nil {
				return err
			}
			d, err := e.CreateDecision(content)
			if err != nil {
				return err
			}

			opts := schema.EvaluationOptions{MaxDepth: schema.Depth(maxDepth)}
			if trace {
				opts.Trace = schema.TraceDefault
			}
			res, err := d.Evaluate(cmd.Context(), input, opts)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if trace {
				return enc.Encode(res)
			}
			return enc.Encode(res.Result)
		},
	}

	cmd.Flags().StringVar(&contextArg, "context", "", "context as inline JSON or a JSON/YAML file path")
	cmd.Flags().StringVar(&dir, "dir", "", "directory used to resolve decision node keys")
	cmd.Flags().BoolVar(&trace, "trace", false, "print the evaluation trace with the result")
	cmd.Flags().IntVar(&maxDepth, "max-depth", cfg.MaxDepth, "maximum nested decision depth")
	return cmd
}

// newEngine builds an Engine with the process-wide capabilities.
func newEngine(cfg *Config, logger *slog.Logger, opts ...verdict.Option) (*verdict.Engine, error) {
	base := []verdict.Option{
		verdict.WithLogger(logger),
		verdict.WithConcurrency(cfg.Concurrency),
		verdict.WithListeners(verdict.NewHTTPListener(verdict.NetworkConfig{})),
	}
	return verdict.NewEngine(append(base, opts...)...)
}

func readDecision(path string) (*schema.DecisionContent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read decision: %w", err)
	}
	return loader.Decode(data, loader.FormatOf(path))
}

// readContext parses arg as inline JSON, or as a file when it names one.
// An empty arg is an empty object.
func readContext(arg string) (any, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return map[string]any{}, nil
	}

	if !strings.HasPrefix(arg, "{") && !strings.HasPrefix(arg, "[") {
		data, err := os.ReadFile(arg)
		if err != nil {
			return nil, fmt.Errorf("read context: %w", err)
		}
		if loader.FormatOf(arg) == loader.FormatYAML {
			return yamlContext(data)
		}
		arg = string(data)
	}

	var v any
	if err := json.Unmarshal([]byte(arg), &v); err != nil {
		return nil, schema.NewErrorf(schema.ErrContextDeserialization, "invalid context: %v", err).WithCause(err)
	}
	return v, nil
}

// yamlContext converts YAML into the JSON value model.
func yamlContext(data []byte) (any, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, schema.NewErrorf(schema.ErrContextDeserialization, "invalid context: %v", err).WithCause(err)
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrContextDeserialization, "invalid context: %v", err).WithCause(err)
	}
	var v any
	if err := json.Unmarshal(encoded, &v); err != nil {
		return nil, schema.NewErrorf(schema.ErrContextDeserialization, "invalid context: %v", err).WithCause(err)
	}
	return v, nil
}
