package nodes

import (
	"context"

	"github.com/rendis/verdict/internal/engine"
	"github.com/rendis/verdict/pkg/schema"
)

// inputHandler exposes the evaluation context, checked against the node's
// optional schema.
type inputHandler struct {
	deps *Deps
}

func (h *inputHandler) Prepare(node *schema.Node, data *schema.SchemaContent) error {
	return compileSchema(h.deps, data)
}

func (h *inputHandler) Handle(ctx context.Context, nc *engine.NodeContext[schema.SchemaContent, struct{}]) (any, error) {
	if err := h.deps.Validator.ValidateValue(nc.Input, nc.Data.Schema); err != nil {
		return nil, err
	}
	return nc.Input, nil
}

// outputHandler passes its merged input through as a final result.
type outputHandler struct {
	deps *Deps
}

func (h *outputHandler) Prepare(node *schema.Node, data *schema.SchemaContent) error {
	return compileSchema(h.deps, data)
}

func (h *outputHandler) Handle(ctx context.Context, nc *engine.NodeContext[schema.SchemaContent, struct{}]) (any, error) {
	if err := h.deps.Validator.ValidateValue(nc.Input, nc.Data.Schema); err != nil {
		return nil, err
	}
	return nc.Input, nil
}

func compileSchema(d *Deps, data *schema.SchemaContent) error {
	if len(data.Schema) == 0 || string(data.Schema) == "null" {
		data.Schema = nil
		return nil
	}
	_, err := d.Validator.Compile(data.Schema)
	return err
}
