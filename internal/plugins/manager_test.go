package plugins

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/verdict/internal/capability"
	"github.com/rendis/verdict/pkg/schema"
)

// newToolServer returns an MCP server with a "double" tool answering JSON
// text, a "greet" tool answering plain text and a "fail" tool.
func newToolServer() *server.MCPServer {
	s := server.NewMCPServer("tools", "1.0.0", server.WithToolCapabilities(false))
	s.AddTool(mcp.NewTool("double", mcp.WithNumber("x", mcp.Required())),
		func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			x := req.GetFloat("x", 0)
			factor := req.GetFloat("factor", 2)
			return mcp.NewToolResultText(fmt.Sprintf(`{"y": %v}`, x*factor)), nil
		})
	s.AddTool(mcp.NewTool("greet", mcp.WithString("name")),
		func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText("hello " + req.GetString("name", "world")), nil
		})
	s.AddTool(mcp.NewTool("fail"),
		func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultError("upstream unavailable"), nil
		})
	return s
}

func attachInProcess(t *testing.T, m *Manager, id string) {
	t.Helper()
	ctx := context.Background()
	c, err := client.NewInProcessClient(newToolServer())
	require.NoError(t, err)
	require.NoError(t, c.Start(ctx))
	require.NoError(t, m.Attach(ctx, id, c))
}

func TestNewManager(t *testing.T) {
	m := NewManager(nil)
	require.NotNil(t, m)
	assert.Empty(t, m.Tools())
}

func TestLoadPlugin_InvalidConfig(t *testing.T) {
	m := NewManager(nil)

	err := m.LoadPlugin(context.Background(), PluginConfig{ID: "x"})
	assert.ErrorContains(t, err, "requires an id and a command")

	err = m.LoadPlugin(context.Background(), PluginConfig{ID: "x", Command: "/nonexistent/binary/path"})
	assert.Error(t, err)
}

func TestAttach_DiscoversTools(t *testing.T) {
	m := NewManager(nil)
	attachInProcess(t, m, "math")

	assert.Equal(t, []string{"math/double", "math/fail", "math/greet"}, m.Tools())
}

func TestAttach_Duplicate(t *testing.T) {
	m := NewManager(nil)
	attachInProcess(t, m, "math")

	c, err := client.NewInProcessClient(newToolServer())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	err = m.Attach(context.Background(), "math", c)
	assert.ErrorContains(t, err, "already loaded")
}

func TestHandle_JSONResult(t *testing.T) {
	m := NewManager(nil)
	attachInProcess(t, m, "math")

	resp, err := m.Handle(context.Background(), capability.CustomNodeRequest{
		NodeID: "n1",
		Kind:   "math/double",
		Input:  map[string]any{"x": 21.0},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"y": 42.0}, resp.Output)
	assert.Equal(t, map[string]any{"plugin": "math", "tool": "double"}, resp.TraceData)
}

func TestHandle_ConfigOverridesInput(t *testing.T) {
	m := NewManager(nil)
	attachInProcess(t, m, "math")

	resp, err := m.Handle(context.Background(), capability.CustomNodeRequest{
		Kind:   "math/double",
		Config: json.RawMessage(`{"factor": 10}`),
		Input:  map[string]any{"x": 3.0, "factor": 1.0},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"y": 30.0}, resp.Output)
}

func TestHandle_TextResult(t *testing.T) {
	m := NewManager(nil)
	attachInProcess(t, m, "util")

	resp, err := m.Handle(context.Background(), capability.CustomNodeRequest{
		Kind:  "util/greet",
		Input: map[string]any{"name": "ada"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello ada", resp.Output)
}

func TestHandle_Errors(t *testing.T) {
	m := NewManager(nil)
	attachInProcess(t, m, "math")
	ctx := context.Background()

	tests := []struct {
		name    string
		req     capability.CustomNodeRequest
		message string
	}{
		{"bad kind", capability.CustomNodeRequest{Kind: "double"}, "not of the form plugin/tool"},
		{"unknown plugin", capability.CustomNodeRequest{Kind: "other/double"}, `plugin "other" is not loaded`},
		{"unknown tool", capability.CustomNodeRequest{Kind: "math/triple"}, `has no tool "triple"`},
		{"bad config", capability.CustomNodeRequest{Kind: "math/double", Config: json.RawMessage(`[1]`)}, "config must be an object"},
		{"tool error", capability.CustomNodeRequest{Kind: "math/fail"}, "upstream unavailable"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.Handle(ctx, tc.req)
			require.Error(t, err)
			assert.True(t, schema.IsKind(err, schema.ErrNodeExecution))
			assert.Contains(t, err.Error(), tc.message)
		})
	}
}

func TestStopPlugin(t *testing.T) {
	m := NewManager(nil)
	attachInProcess(t, m, "math")
	attachInProcess(t, m, "util")

	require.NoError(t, m.StopPlugin("math"))
	assert.Equal(t, []string{"util/double", "util/fail", "util/greet"}, m.Tools())
	assert.ErrorContains(t, m.StopPlugin("math"), "not found")

	require.NoError(t, m.StopAll())
	assert.Empty(t, m.Tools())
}

func TestManagerImplementsCustomNodeHandler(t *testing.T) {
	var _ capability.CustomNodeHandler = NewManager(nil)
}
