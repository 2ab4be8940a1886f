// Package capability holds the embedder-supplied side-effecting capabilities
// (logging, outbound HTTP, custom node execution, sub-decision loading and the
// optional scripting runtime) that node handlers reach through the per-call
// evaluation context.
//
// Every implementation must be safe for concurrent use: the executor invokes
// capabilities from parallel node dispatches and from concurrent evaluations.
package capability

import (
	"context"
	"encoding/json"

	"github.com/rendis/verdict/pkg/schema"
)

// HTTPRequest is an outbound request issued by an HTTP request node.
type HTTPRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    any               `json:"body,omitempty"`
}

// HTTPResponse is the decoded response of an outbound request.
type HTTPResponse struct {
	StatusCode int               `json:"status"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       any               `json:"body,omitempty"`
}

// HTTPHandler performs outbound network calls. Retry, pooling and timeout
// policy belong to the implementation.
type HTTPHandler interface {
	Do(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error)
}

// HTTPHandlerFunc adapts a function to HTTPHandler.
type HTTPHandlerFunc func(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error)

func (f HTTPHandlerFunc) Do(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
	return f(ctx, req)
}

// Loader resolves a sub-decision reference by key.
type Loader interface {
	Load(ctx context.Context, key string) (*schema.DecisionContent, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, key string) (*schema.DecisionContent, error)

func (f LoaderFunc) Load(ctx context.Context, key string) (*schema.DecisionContent, error) {
	return f(ctx, key)
}

// CustomNodeRequest is handed to the custom node dispatcher for node kinds
// unknown to the core.
type CustomNodeRequest struct {
	NodeID string          `json:"node_id"`
	Name   string          `json:"name,omitempty"`
	Kind   string          `json:"kind"`
	Config json.RawMessage `json:"config,omitempty"`
	Input  any             `json:"input"`
}

// CustomNodeResponse carries the output of a custom node and its optional
// trace payload.
type CustomNodeResponse struct {
	Output    any `json:"output"`
	TraceData any `json:"trace_data,omitempty"`
}

// CustomNodeHandler executes custom nodes.
type CustomNodeHandler interface {
	Handle(ctx context.Context, req CustomNodeRequest) (*CustomNodeResponse, error)
}

// CustomNodeFunc adapts a function to CustomNodeHandler.
type CustomNodeFunc func(ctx context.Context, req CustomNodeRequest) (*CustomNodeResponse, error)

func (f CustomNodeFunc) Handle(ctx context.Context, req CustomNodeRequest) (*CustomNodeResponse, error) {
	return f(ctx, req)
}

// ScriptRequest is handed to the scripting runtime backing function nodes.
type ScriptRequest struct {
	NodeID  string `json:"node_id"`
	Source  string `json:"source"`
	Input   any    `json:"input"`
	Version int    `json:"version"`
}

// ScriptResponse carries the script result and captured console lines.
type ScriptResponse struct {
	Output any      `json:"output"`
	Logs   []string `json:"logs,omitempty"`
}

// ScriptRuntime runs function node sources. No implementation ships with
// the engine; embedders that need function nodes supply one.
type ScriptRuntime interface {
	Run(ctx context.Context, req ScriptRequest) (*ScriptResponse, error)
}
