package nodes

import (
	"context"
	"errors"
	"strings"

	"github.com/rendis/verdict/internal/engine"
	"github.com/rendis/verdict/pkg/schema"
)

// DecisionTrace holds the nested evaluation's trace.
type DecisionTrace struct {
	Key         string               `json:"key"`
	Performance string               `json:"performance,omitempty"`
	Trace       []schema.TraceRecord `json:"trace,omitempty"`
}

// decisionHandler evaluates another decision, resolved by key through the
// loader capability, with the node input as its context.
type decisionHandler struct {
	deps *Deps
}

func (h *decisionHandler) Prepare(node *schema.Node, data *schema.SubDecisionContent) error {
	data.Key = strings.TrimSpace(data.Key)
	if data.Key == "" {
		return errors.New("decision node has no key")
	}
	return h.deps.prepareTransform(data.Transform)
}

func (h *decisionHandler) Handle(ctx context.Context, nc *engine.NodeContext[schema.SubDecisionContent, DecisionTrace]) (any, error) {
	in, err := h.deps.selectInput(ctx, nc.Data.Transform, nc.Input)
	if err != nil {
		return nil, err
	}

	res, err := nc.EvaluateDecision(ctx, nc.Data.Key, in)
	if err != nil {
		return nil, err
	}

	nc.Trace(func(tr *DecisionTrace) {
		tr.Key = nc.Data.Key
		tr.Performance = res.Performance.String()
		tr.Trace = res.Trace
	})
	return passThrough(nc.Data.Transform, nc.Input, res.Output), nil
}
