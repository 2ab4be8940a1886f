package nodes

import (
	"context"
	"strings"

	"github.com/rendis/verdict/internal/engine"
	"github.com/rendis/verdict/pkg/schema"
)

// query normalises an inputField selector into a jq query. Bare dotted paths
// ("customer.address") are accepted as shorthand for ".customer.address".
func query(field string) string {
	field = strings.TrimSpace(field)
	if field == "" {
		return ""
	}
	c := field[0]
	if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
		return "." + field
	}
	return field
}

func (d *Deps) prepareTransform(t schema.Transform) error {
	if q := query(t.InputField); q != "" {
		return d.JQ.Compile(q)
	}
	return nil
}

// selectInput applies the node's inputField selector.
func (d *Deps) selectInput(ctx context.Context, t schema.Transform, input any) (any, error) {
	q := query(t.InputField)
	if q == "" {
		return input, nil
	}
	return d.JQ.Evaluate(ctx, q, input)
}

// passThrough merges the node input under its output when requested.
func passThrough(t schema.Transform, input, output any) any {
	if !t.PassThrough {
		return output
	}
	return engine.Merge(input, output)
}
