// Package plugins dispatches custom nodes to tools served by external MCP
// servers. A custom node of kind "<plugin>/<tool>" calls tool on the plugin
// registered under that ID.
package plugins

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rendis/verdict/internal/capability"
	"github.com/rendis/verdict/pkg/schema"
)

// PluginConfig describes how to launch an MCP server subprocess.
type PluginConfig struct {
	ID      string   `json:"id"`
	Command string   `json:"command"` // MCP server binary path
	Args    []string `json:"args,omitempty"`
	Env     []string `json:"env,omitempty"`
}

// Manager owns the connected plugins. It implements
// capability.CustomNodeHandler and is safe for concurrent use.
type Manager struct {
	mu      sync.RWMutex
	plugins map[string]*managedPlugin
	logger  *slog.Logger
}

type managedPlugin struct {
	id     string
	client *client.Client
	tools  map[string]mcp.Tool
}

// NewManager creates an empty Manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		plugins: make(map[string]*managedPlugin),
		logger:  logger,
	}
}

// LoadPlugin starts a plugin subprocess over stdio and attaches it.
func (m *Manager) LoadPlugin(ctx context.Context, cfg PluginConfig) error {
	if cfg.ID == "" || cfg.Command == "" {
		return fmt.Errorf("plugin requires an id and a command")
	}
	c, err := client.NewStdioMCPClient(cfg.Command, cfg.Env, cfg.Args...)
	if err != nil {
		return fmt.Errorf("start plugin %q: %w", cfg.ID, err)
	}
	if err := m.Attach(ctx, cfg.ID, c); err != nil {
		_ = c.Close()
		return err
	}
	return nil
}

// Attach performs the MCP handshake on a started client, discovers its tools
// and registers it under id.
func (m *Manager) Attach(ctx context.Context, id string, c *client.Client) error {
	m.mu.RLock()
	_, exists := m.plugins[id]
	m.mu.RUnlock()
	if exists {
		return fmt.Errorf("plugin %q already loaded", id)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "verdict", Version: "1.0.0"}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		return fmt.Errorf("handshake with plugin %q: %w", id, err)
	}

	listed, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return fmt.Errorf("list tools of plugin %q: %w", id, err)
	}
	tools := make(map[string]mcp.Tool, len(listed.Tools))
	for _, t := range listed.Tools {
		tools[t.Name] = t
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.plugins[id]; exists {
		return fmt.Errorf("plugin %q already loaded", id)
	}
	m.plugins[id] = &managedPlugin{id: id, client: c, tools: tools}

	m.logger.Info("plugin loaded", slog.String("id", id), slog.Int("tools", len(tools)))
	return nil
}

// Handle implements capability.CustomNodeHandler. The node input object
// becomes the tool arguments, with keys of the node config object layered on
// top.
func (m *Manager) Handle(ctx context.Context, req capability.CustomNodeRequest) (*capability.CustomNodeResponse, error) {
	pluginID, toolName, ok := strings.Cut(req.Kind, "/")
	if !ok || pluginID == "" || toolName == "" {
		return nil, schema.NewErrorf(schema.ErrNodeExecution, "custom kind %q is not of the form plugin/tool", req.Kind)
	}

	m.mu.RLock()
	p, ok := m.plugins[pluginID]
	m.mu.RUnlock()
	if !ok {
		return nil, schema.NewErrorf(schema.ErrNodeExecution, "plugin %q is not loaded", pluginID)
	}
	if _, ok := p.tools[toolName]; !ok {
		return nil, schema.NewErrorf(schema.ErrNodeExecution, "plugin %q has no tool %q", pluginID, toolName)
	}

	args, err := toolArguments(req)
	if err != nil {
		return nil, err
	}

	call := mcp.CallToolRequest{}
	call.Params.Name = toolName
	call.Params.Arguments = args

	res, err := p.client.CallTool(ctx, call)
	if err != nil {
		if ctx.Err() != nil {
			return nil, schema.NewError(schema.ErrCancelled, "evaluation cancelled").WithCause(ctx.Err())
		}
		return nil, schema.NewErrorf(schema.ErrNodeExecution, "plugin tool %s: %v", req.Kind, err).WithCause(err)
	}
	if res.IsError {
		return nil, schema.NewErrorf(schema.ErrNodeExecution, "plugin tool %s failed: %s", req.Kind, resultText(res))
	}

	return &capability.CustomNodeResponse{
		Output:    toolOutput(res),
		TraceData: map[string]any{"plugin": pluginID, "tool": toolName},
	}, nil
}

// Tools returns the "<plugin>/<tool>" kinds available, sorted.
func (m *Manager) Tools() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var kinds []string
	for id, p := range m.plugins {
		for name := range p.tools {
			kinds = append(kinds, id+"/"+name)
		}
	}
	sort.Strings(kinds)
	return kinds
}

// StopPlugin closes a plugin connection.
func (m *Manager) StopPlugin(id string) error {
	m.mu.Lock()
	p, ok := m.plugins[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("plugin %q not found", id)
	}
	delete(m.plugins, id)
	m.mu.Unlock()

	if err := p.client.Close(); err != nil {
		return fmt.Errorf("close plugin %q: %w", id, err)
	}
	m.logger.Info("plugin stopped", slog.String("id", id))
	return nil
}

// StopAll stops every plugin and returns the last error.
func (m *Manager) StopAll() error {
	m.mu.RLock()
	ids := make([]string, 0, len(m.plugins))
	for id := range m.plugins {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	var lastErr error
	for _, id := range ids {
		if err := m.StopPlugin(id); err != nil {
			lastErr = err
			m.logger.Error("failed to stop plugin", slog.String("id", id), slog.String("error", err.Error()))
		}
	}
	return lastErr
}

func toolArguments(req capability.CustomNodeRequest) (map[string]any, error) {
	args := make(map[string]any)
	if in, ok := req.Input.(map[string]any); ok {
		for k, v := range in {
			args[k] = v
		}
	}
	if len(req.Config) > 0 {
		var cfg map[string]any
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			return nil, schema.NewErrorf(schema.ErrNodeExecution, "custom node config must be an object: %v", err).WithCause(err)
		}
		for k, v := range cfg {
			args[k] = v
		}
	}
	return args, nil
}

// toolOutput prefers structured content, then JSON text, then plain text.
func toolOutput(res *mcp.CallToolResult) any {
	if res.StructuredContent != nil {
		return res.StructuredContent
	}
	text := resultText(res)
	var v any
	if err := json.Unmarshal([]byte(text), &v); err == nil {
		return v
	}
	return text
}

func resultText(res *mcp.CallToolResult) string {
	var parts []string
	for _, c := range res.Content {
		if t := mcp.GetTextFromContent(c); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}
