package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rendis/verdict/internal/capability"
	"github.com/rendis/verdict/internal/logging"
	"github.com/rendis/verdict/pkg/schema"
)

// NodeContext is the per-dispatch view a handler works with. It lives for
// one Handle call and is never shared between goroutines.
type NodeContext[D any, T any] struct {
	Data  D   // decoded node content, shared across evaluations, read-only
	Input any // private deep copy of the merged upstream outputs

	node     *schema.Node
	depth    int
	options  schema.EvaluationOptions
	registry *capability.Registry
	nested   NestedEvaluator
	trace    *T
	handles  []string
	restrict bool
}

func (nc *NodeContext[D, T]) ID() string { return nc.node.ID }
func (nc *NodeContext[D, T]) Name() string { return nc.node.Name }
func (nc *NodeContext[D, T]) Kind() schema.NodeKind { return nc.node.Kind }
func (nc *NodeContext[D, T]) Depth() int { return nc.depth }
func (nc *NodeContext[D, T]) Options() schema.EvaluationOptions { return nc.options }

// Registry returns the capabilities installed on the engine.
func (nc *NodeContext[D, T]) Registry() *capability.Registry { return nc.registry }

// Traced reports whether this evaluation collects trace records.
func (nc *NodeContext[D, T]) Traced() bool { return nc.options.TraceEnabled() }

// Trace mutates the node's trace record. fn only runs when tracing is
// enabled; the record is allocated on first use.
func (nc *NodeContext[D, T]) Trace(fn func(*T)) {
	if !nc.Traced() {
		return
	}
	if nc.trace == nil {
		nc.trace = new(T)
	}
	fn(nc.trace)
}

// Activate restricts the node's outgoing edges to the given source handles.
// Calling it with no handles deactivates every handled edge.
func (nc *NodeContext[D, T]) Activate(handles ...string) {
	nc.restrict = true
	nc.handles = append(nc.handles, handles...)
}

// EvaluateDecision evaluates the decision stored under key at the next depth
// with the same options as the current call.
func (nc *NodeContext[D, T]) EvaluateDecision(ctx context.Context, key string, input any) (*Result, error) {
	if nc.nested == nil {
		return nil, schema.NewError(schema.ErrFeatureDisabled, "sub-decision evaluation is not available")
	}
	return nc.nested.EvaluateDecision(ctx, key, input)
}

// Logger returns the registry logger enriched with correlation IDs.
func (nc *NodeContext[D, T]) Logger(ctx context.Context) *slog.Logger {
	return logging.LogWith(ctx, nc.registry.Logger())
}

// Error converts a handler failure into an EngineError attributed to this
// node. Kinds raised by the node itself are preserved, loader failures
// become the cause of a node execution error, and failures of nested
// evaluations keep their kind and are wrapped with this node's ID.
func (nc *NodeContext[D, T]) Error(err error) error {
	if err == nil {
		return nil
	}
	id := nc.node.ID

	if engErr, ok := err.(*schema.EngineError); ok {
		switch {
		case engErr.Kind == schema.ErrLoader:
			return schema.NewError(schema.ErrNodeExecution, engErr.Message).WithNode(id).WithCause(engErr)
		case engErr.NodeID == "":
			cp := *engErr
			cp.NodeID = id
			return &cp
		case engErr.NodeID == id:
			return engErr
		default:
			return schema.NewError(engErr.Kind, engErr.Error()).WithNode(id).WithCause(engErr)
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return schema.NewErrorf(schema.ErrCancelled, "evaluation cancelled: %v", err).WithNode(id).WithCause(err)
	}
	return schema.NewError(schema.ErrNodeExecution, err.Error()).WithNode(id).WithCause(err)
}
