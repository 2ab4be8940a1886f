package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rendis/verdict/internal/loader"
	"github.com/rendis/verdict/internal/metrics"
	"github.com/rendis/verdict/internal/plugins"
	"github.com/rendis/verdict/internal/store"
	"github.com/rendis/verdict/pkg/mcp"
	"github.com/rendis/verdict/pkg/verdict"
)

func newServeCmd(cfg *Config) *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve decisions over MCP",
		Long: `Expose decision.evaluate, decision.validate, decision.define and decision.list
as MCP tools.

Decisions come from a directory (--dir), cached and reloaded when files
change, or from a libSQL database (--db), which also enables decision.define.
The SSE transport mounts Prometheus metrics at /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cmd, cfg, transport)
		},
	}

	cmd.Flags().StringVar(&cfg.DecisionsDir, "dir", cfg.DecisionsDir, "serve decisions from this directory")
	cmd.Flags().StringVar(&cfg.DBPath, "db", cfg.DBPath, "serve decisions from this libSQL database")
	cmd.Flags().StringVar(&transport, "transport", "stdio", "MCP transport: stdio, sse")
	cmd.Flags().StringVar(&cfg.ListenAddr, "addr", cfg.ListenAddr, "listen address for the sse transport")
	cmd.Flags().StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "public base URL for the sse transport")
	cmd.MarkFlagsMutuallyExclusive("dir", "db")
	return cmd
}

func serve(ctx context.Context, cmd *cobra.Command, cfg *Config, transport string) error {
	logger := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	collector := metrics.NewCollector(metrics.Config{}, nil)

	deps := mcp.ServerDeps{Logger: logger, Metrics: collector.Handler()}
	var source verdict.Loader

	if cfg.DecisionsDir != "" && !cmd.Flags().Changed("db") {
		fsl := loader.NewFilesystem(cfg.DecisionsDir)
		cache := loader.NewCache(fsl)
		source = cache
		deps.Keys = func(context.Context) ([]string, error) { return fsl.Keys() }

		go func() {
			err := fsl.Watch(ctx, loader.DefaultDebounce, logger, func(keys []string) {
				for _, k := range keys {
					cache.Invalidate(k)
					cache.Invalidate(strings.TrimSuffix(k, filepath.Ext(k)))
				}
				logger.Info("decisions changed", "keys", keys)
			})
			if err != nil {
				logger.Error("decision watcher stopped", "error", err)
			}
		}()
		logger.Info("serving decisions from directory", "path", cfg.DecisionsDir)
	} else {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
		st, err := store.Open(ctx, "file:"+cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()
		source = st
		deps.Store = st
		logger.Info("serving decisions from database", "path", cfg.DBPath)
	}

	listener := verdict.EngineListener{Loader: source}
	if len(cfg.Plugins) > 0 {
		pm := plugins.NewManager(logger)
		defer func() { _ = pm.StopAll() }()
		for _, pc := range cfg.Plugins {
			if err := pm.LoadPlugin(ctx, pc); err != nil {
				return err
			}
		}
		listener.CustomNode = pm
	}

	e, err := newEngine(cfg, logger,
		verdict.WithObserver(collector),
		verdict.WithListeners(listener),
	)
	if err != nil {
		return err
	}
	deps.Engine = e
	srv := mcp.NewServer(deps)

	switch transport {
	case "stdio":
		return srv.Serve(ctx)
	case "sse":
		return srv.ServeSSE(ctx, cfg.ListenAddr, cfg.baseURL())
	default:
		return fmt.Errorf("unknown transport %q (want stdio or sse)", transport)
	}
}
