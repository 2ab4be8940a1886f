package verdict

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rendis/verdict/pkg/schema"
)

// TraceFlag is the context key the Adapter reads the trace toggle from.
const TraceFlag = "trace"

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithMaxDepth overrides the sub-decision recursion bound. Zero forbids
// sub-decisions.
func WithMaxDepth(n int) AdapterOption {
	return func(a *Adapter) { a.maxDepth = n }
}

// Adapter is the host boundary: it accepts host-native content and
// contexts, and returns host-native results. Errors carry only their text.
type Adapter struct {
	decision *Decision
	maxDepth int
}

// NewAdapter compiles content, which may be JSON ([]byte, json.RawMessage,
// string), a *schema.DecisionContent, or any value whose JSON form is a
// decision document.
func NewAdapter(e *Engine, content any, opts ...AdapterOption) (*Adapter, error) {
	d, err := decisionFrom(e, content)
	if err != nil {
		return nil, flatten(err)
	}
	a := &Adapter{decision: d, maxDepth: schema.DefaultMaxDepth}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Decision returns the compiled decision.
func (a *Adapter) Decision() *Decision { return a.decision }

// Evaluate runs the decision against host. A boolean "trace" member of an
// object context turns tracing on and is removed before evaluation, so
// nodes never see it; a context that needs a "trace" field of its own should
// go through Decision.Evaluate instead. The result is
// {"result", "performance", "trace"?} in generic JSON form.
func (a *Adapter) Evaluate(ctx context.Context, host any) (map[string]any, error) {
	value, err := contextValue(host)
	if err != nil {
		return nil, flatten(err)
	}

	opts := schema.EvaluationOptions{MaxDepth: schema.Depth(a.maxDepth)}
	if obj, ok := value.(map[string]any); ok {
		if trace, ok := obj[TraceFlag].(bool); ok {
			if trace {
				opts.Trace = schema.TraceDefault
			}
			stripped := make(map[string]any, len(obj)-1)
			for k, v := range obj {
				if k != TraceFlag {
					stripped[k] = v
				}
			}
			value = stripped
		}
	}

	res, err := a.decision.Evaluate(ctx, value, opts)
	if err != nil {
		return nil, flatten(err)
	}

	data, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize result: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to serialize result: %v", err)
	}
	return out, nil
}

func decisionFrom(e *Engine, content any) (*Decision, error) {
	switch c := content.(type) {
	case nil:
		return nil, schema.NewError(schema.ErrContentDeserialization, "decision content is empty")
	case *schema.DecisionContent:
		return e.CreateDecision(c)
	case schema.DecisionContent:
		return e.CreateDecision(&c)
	case []byte:
		return e.ParseDecision(c)
	case json.RawMessage:
		return e.ParseDecision(c)
	case string:
		return e.ParseDecision([]byte(c))
	}

	data, err := json.Marshal(content)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrContentDeserialization, "decision content is not serializable: %v", err).WithCause(err)
	}
	return e.ParseDecision(data)
}

// flatten drops structure from err so hosts cannot depend on it.
func flatten(err error) error {
	return errors.New(err.Error())
}
