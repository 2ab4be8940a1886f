package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/rendis/verdict/internal/engine"
	"github.com/rendis/verdict/pkg/schema"
)

// ExpressionTrace records the value computed for every expression key.
type ExpressionTrace struct {
	Results map[string]any `json:"results,omitempty"`
}

// expressionHandler evaluates expr-lang expressions against the node input
// and assembles their values into an object keyed by (dotted) key.
type expressionHandler struct {
	deps *Deps
}

func (h *expressionHandler) Prepare(node *schema.Node, data *schema.ExpressionContent) error {
	if err := h.deps.prepareTransform(data.Transform); err != nil {
		return err
	}
	for i, e := range data.Expressions {
		if strings.TrimSpace(e.Key) == "" {
			return fmt.Errorf("expression %d has an empty key", i)
		}
		if strings.TrimSpace(e.Value) == "" {
			return fmt.Errorf("expression %q has an empty value", e.Key)
		}
		if err := h.deps.Expr.Compile(e.Value); err != nil {
			return err
		}
	}
	return nil
}

func (h *expressionHandler) Handle(ctx context.Context, nc *engine.NodeContext[schema.ExpressionContent, ExpressionTrace]) (any, error) {
	in, err := h.deps.selectInput(ctx, nc.Data.Transform, nc.Input)
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(nc.Data.Expressions))
	for _, e := range nc.Data.Expressions {
		v, err := h.deps.Expr.Evaluate(ctx, e.Value, in)
		if err != nil {
			return nil, err
		}
		engine.SetPath(out, e.Key, v)
		nc.Trace(func(tr *ExpressionTrace) {
			if tr.Results == nil {
				tr.Results = make(map[string]any, len(nc.Data.Expressions))
			}
			tr.Results[e.Key] = v
		})
	}

	return passThrough(nc.Data.Transform, nc.Input, out), nil
}
