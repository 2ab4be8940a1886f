package verdict

import (
	"context"
	"encoding/json"

	"github.com/rendis/verdict/internal/engine"
	"github.com/rendis/verdict/pkg/schema"
)

// Decision is an immutable compiled decision graph.
type Decision struct {
	executor *engine.Executor
	content  *schema.DecisionContent
	graph    *engine.Graph
}

// Content returns the document the decision was compiled from.
func (d *Decision) Content() *schema.DecisionContent { return d.content }

// Evaluate runs the decision against value, which must be an object (or nil).
// Go structs and typed maps are converted through their JSON form.
func (d *Decision) Evaluate(ctx context.Context, value any, opts schema.EvaluationOptions) (*schema.EvaluationResult, error) {
	input, err := contextValue(value)
	if err != nil {
		return nil, err
	}

	res, err := d.executor.Evaluate(ctx, d.graph, input, opts)
	if err != nil {
		return nil, err
	}
	return &schema.EvaluationResult{
		Result:      res.Output,
		Performance: res.Performance.String(),
		Trace:       res.Trace,
	}, nil
}

// contextValue converts a host value to the generic JSON representation.
func contextValue(v any) (any, error) {
	switch t := v.(type) {
	case nil, map[string]any, []any, string, bool, float64:
		return v, nil
	case json.RawMessage:
		return unmarshalContext(t)
	case []byte:
		return unmarshalContext(t)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrContextDeserialization, "context is not serializable: %v", err).WithCause(err)
	}
	return unmarshalContext(data)
}

func unmarshalContext(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, schema.NewErrorf(schema.ErrContextDeserialization, "invalid context: %v", err).WithCause(err)
	}
	return out, nil
}
