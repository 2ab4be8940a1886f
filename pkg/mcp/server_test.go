package mcp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	s := NewServer(ServerDeps{Engine: newTestEngine(t)})
	require.NotNil(t, s)
	assert.NotNil(t, s.MCPServer())
	assert.NotNil(t, s.logger)
}

func TestToolRegistration(t *testing.T) {
	s := NewServer(ServerDeps{Engine: newTestEngine(t)})

	tools := s.mcpServer.ListTools()
	require.Len(t, tools, 4)

	for _, name := range []string{"decision.evaluate", "decision.validate", "decision.define", "decision.list"} {
		assert.NotNil(t, s.mcpServer.GetTool(name), "tool %s should be registered", name)
	}
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		toolName    string
		description string
	}{
		{"decision.evaluate", "Evaluate a decision against a context"},
		{"decision.validate", "Validate a decision document without evaluating it"},
		{"decision.define", "Store a decision document as the next version of a key"},
		{"decision.list", "List stored decision keys"},
	}

	s := NewServer(ServerDeps{Engine: newTestEngine(t)})
	for _, tc := range tests {
		t.Run(tc.toolName, func(t *testing.T) {
			tool := s.mcpServer.GetTool(tc.toolName)
			require.NotNil(t, tool)
			assert.Equal(t, tc.description, tool.Tool.Description)
		})
	}
}

func TestServeSSE_StopsOnCancel(t *testing.T) {
	s := NewServer(ServerDeps{Engine: newTestEngine(t)})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.ServeSSE(ctx, "127.0.0.1:0", "http://127.0.0.1") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
