package expressions

import "context"

// Engine evaluates expressions found in node content.
// Three implementations: Expr (expression nodes, table cells), CEL (switch
// conditions) and GoJQ (input field selection).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data any) (any, error)
}

// env turns a node input into an expression environment. Non-object inputs
// are exposed under "$".
func env(data any) map[string]any {
	switch v := data.(type) {
	case map[string]any:
		return v
	case nil:
		return map[string]any{}
	default:
		return map[string]any{"$": v}
	}
}
