package nodes

import (
	"context"
	"errors"

	"github.com/rendis/verdict/internal/capability"
	"github.com/rendis/verdict/internal/engine"
	"github.com/rendis/verdict/pkg/schema"
)

// CustomTrace wraps whatever the custom node dispatcher reported.
type CustomTrace struct {
	Data any `json:"data,omitempty"`
}

// customHandler forwards nodes of embedder-defined kinds to the custom node
// dispatcher capability.
type customHandler struct{}

func (customHandler) Prepare(node *schema.Node, data *schema.CustomContent) error {
	if data.Kind == "" {
		return errors.New("custom node has no kind")
	}
	return nil
}

func (customHandler) Handle(ctx context.Context, nc *engine.NodeContext[schema.CustomContent, CustomTrace]) (any, error) {
	h := nc.Registry().CustomNode()
	if h == nil {
		return nil, schema.NewErrorf(schema.ErrFeatureDisabled,
			"custom node feature is disabled: no dispatcher for kind %q", nc.Data.Kind)
	}

	resp, err := h.Handle(ctx, capability.CustomNodeRequest{
		NodeID: nc.ID(),
		Name:   nc.Name(),
		Kind:   nc.Data.Kind,
		Config: nc.Data.Config,
		Input:  nc.Input,
	})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}

	nc.Trace(func(tr *CustomTrace) { tr.Data = resp.TraceData })
	return resp.Output, nil
}
