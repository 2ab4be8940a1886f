// Package mcp exposes decision evaluation as Model Context Protocol tools.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/verdict/internal/store"
	"github.com/rendis/verdict/pkg/verdict"
)

// ServerDeps holds the dependencies of a Server.
type ServerDeps struct {
	Engine *verdict.Engine
	// Store enables decision.define and backs decision.list. Optional.
	Store store.Store
	// Keys lists decisions when no Store is configured. Optional.
	Keys func(ctx context.Context) ([]string, error)
	// OnDefine is called after a decision is stored, e.g. to drop a cache entry.
	OnDefine func(key string)
	// Metrics is mounted at /metrics by ServeSSE when set.
	Metrics http.Handler
	Logger  *slog.Logger
}

// Server wraps an MCP server with the decision tool handlers.
type Server struct {
	engine    *verdict.Engine
	store     store.Store
	keys      func(ctx context.Context) ([]string, error)
	onDefine  func(key string)
	metrics   http.Handler
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a Server with every tool registered.
func NewServer(deps ServerDeps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	s := &Server{
		engine:   deps.Engine,
		store:    deps.Store,
		keys:     deps.Keys,
		onDefine: deps.OnDefine,
		metrics:  deps.Metrics,
		logger:   logger,
	}

	mcpSrv := server.NewMCPServer(
		"verdict",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Verdict evaluates business-rule decision graphs. Use decision.evaluate to run a stored decision (by key) or an inline one (content) against a context, decision.validate to check a document, decision.define to store a new version and decision.list to browse stored keys."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// ServeSSE serves the SSE transport on addr until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sse := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sse.SSEHandler())
	mux.Handle("/message", sse.MessageHandler())
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}

	httpServer := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("mcp server listening (sse)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: evaluateTool(), Handler: s.handleEvaluate},
		{Tool: validateTool(), Handler: s.handleValidate},
		{Tool: defineTool(), Handler: s.handleDefine},
		{Tool: listTool(), Handler: s.handleList},
	}
}

// --- Tool definitions ---

func evaluateTool() mcp.Tool {
	return mcp.NewTool("decision.evaluate",
		mcp.WithDescription("Evaluate a decision against a context"),
		mcp.WithString("key", mcp.Description("Key of a stored decision")),
		mcp.WithObject("content", mcp.Description("Inline decision document, used instead of key")),
		mcp.WithObject("context", mcp.Description("Input context object")),
		mcp.WithBoolean("trace", mcp.Description("Include the per-node execution trace")),
		mcp.WithNumber("max_depth", mcp.Description("Sub-decision recursion bound (default 5)")),
	)
}

func validateTool() mcp.Tool {
	return mcp.NewTool("decision.validate",
		mcp.WithDescription("Validate a decision document without evaluating it"),
		mcp.WithObject("content", mcp.Required(), mcp.Description("Decision document")),
	)
}

func defineTool() mcp.Tool {
	return mcp.NewTool("decision.define",
		mcp.WithDescription("Store a decision document as the next version of a key"),
		mcp.WithString("key", mcp.Required(), mcp.Description("Decision key")),
		mcp.WithObject("content", mcp.Required(), mcp.Description("Decision document")),
		mcp.WithString("description", mcp.Description("Version description")),
	)
}

func listTool() mcp.Tool {
	return mcp.NewTool("decision.list",
		mcp.WithDescription("List stored decision keys"),
		mcp.WithString("prefix", mcp.Description("Only keys starting with prefix")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results")),
	)
}
