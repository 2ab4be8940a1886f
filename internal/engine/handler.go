package engine

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rendis/verdict/internal/capability"
	"github.com/rendis/verdict/pkg/schema"
)

// Dispatcher turns a raw node definition into a Prepared node. The table of
// dispatchers keyed by node kind is fixed when the Executor is built.
type Dispatcher interface {
	Prepare(node *schema.Node) (Prepared, error)
}

// Prepared is a node whose content has been decoded and validated once.
// It is shared by every evaluation of its graph and must not be mutated.
type Prepared interface {
	Dispatch(ctx context.Context, req *Request) (*NodeResult, error)
}

// Request is the per-dispatch input handed to a Prepared node.
type Request struct {
	Input    any
	Depth    int
	Options  schema.EvaluationOptions
	Registry *capability.Registry
	Nested   NestedEvaluator
}

// NestedEvaluator runs a sub-decision by key at the next depth.
type NestedEvaluator interface {
	EvaluateDecision(ctx context.Context, key string, input any) (*Result, error)
}

// NodeResult is what a dispatched node produced.
type NodeResult struct {
	Output    any
	TraceData any // nil unless tracing is enabled

	// Handles lists the source handles activated by the node. When
	// Restrict is false every outgoing edge is active.
	Handles  []string
	Restrict bool
}

// HandleActive reports whether an edge leaving the node on handle is active.
func (r *NodeResult) HandleActive(handle string) bool {
	if r == nil {
		return false
	}
	if !r.Restrict || handle == "" {
		return true
	}
	for _, h := range r.Handles {
		if h == handle {
			return true
		}
	}
	return false
}

// Handler implements one node kind. D is the decoded node content and T the
// kind's trace data record.
type Handler[D any, T any] interface {
	Handle(ctx context.Context, nc *NodeContext[D, T]) (any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc[D any, T any] func(ctx context.Context, nc *NodeContext[D, T]) (any, error)

func (f HandlerFunc[D, T]) Handle(ctx context.Context, nc *NodeContext[D, T]) (any, error) {
	return f(ctx, nc)
}

// Preparer is implemented by handlers that validate or precompile their
// content once at compile time.
type Preparer[D any] interface {
	Prepare(node *schema.Node, data *D) error
}

// Decoder replaces the default JSON decoding of node content.
type Decoder[D any] func(node *schema.Node) (D, error)

// BindOption configures Bind.
type BindOption[D any] func(*binding[D])

// WithDecoder installs a custom content decoder.
func WithDecoder[D any](dec Decoder[D]) BindOption[D] {
	return func(b *binding[D]) { b.decode = dec }
}

type binding[D any] struct {
	decode Decoder[D]
}

// Bind erases a typed handler into a Dispatcher.
func Bind[D any, T any](h Handler[D, T], opts ...BindOption[D]) Dispatcher {
	b := &binding[D]{decode: decodeJSON[D]}
	for _, opt := range opts {
		opt(b)
	}
	return &typedDispatcher[D, T]{handler: h, decode: b.decode}
}

type typedDispatcher[D any, T any] struct {
	handler Handler[D, T]
	decode  Decoder[D]
}

func (d *typedDispatcher[D, T]) Prepare(node *schema.Node) (Prepared, error) {
	data, err := d.decode(node)
	if err != nil {
		return nil, contentError(node.ID, err)
	}
	if p, ok := d.handler.(Preparer[D]); ok {
		if err := p.Prepare(node, &data); err != nil {
			return nil, contentError(node.ID, err)
		}
	}
	return &typedNode[D, T]{handler: d.handler, node: node, data: data}, nil
}

type typedNode[D any, T any] struct {
	handler Handler[D, T]
	node    *schema.Node
	data    D
}

func (n *typedNode[D, T]) Dispatch(ctx context.Context, req *Request) (*NodeResult, error) {
	nc := &NodeContext[D, T]{
		Data:     n.data,
		Input:    req.Input,
		node:     n.node,
		depth:    req.Depth,
		options:  req.Options,
		registry: req.Registry,
		nested:   req.Nested,
	}

	out, err := n.handler.Handle(ctx, nc)
	if err != nil {
		return nil, nc.Error(err)
	}

	res := &NodeResult{Output: out, Handles: nc.handles, Restrict: nc.restrict}
	if nc.Traced() {
		if nc.trace == nil {
			nc.trace = new(T)
		}
		res.TraceData = nc.trace
	}
	return res, nil
}

func decodeJSON[D any](node *schema.Node) (D, error) {
	var data D
	if len(node.Content) == 0 || string(node.Content) == "null" {
		return data, nil
	}
	if err := json.Unmarshal(node.Content, &data); err != nil {
		return data, err
	}
	return data, nil
}

// contentError attributes a compile-time failure to a node, keeping the
// kind of errors that already carry one.
func contentError(nodeID string, err error) error {
	var engErr *schema.EngineError
	if errors.As(err, &engErr) {
		cp := *engErr
		if cp.NodeID == "" {
			cp.NodeID = nodeID
		}
		return &cp
	}
	return schema.NewErrorf(schema.ErrContentDeserialization, "invalid node content: %v", err).
		WithNode(nodeID).WithCause(err)
}
