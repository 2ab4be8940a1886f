package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rendis/verdict/internal/engine"
	"github.com/rendis/verdict/internal/expressions"
	"github.com/rendis/verdict/pkg/schema"
)

// RuleIDKey is the rule cell holding the rule's own identifier.
const RuleIDKey = "_id"

// TableTrace lists the rules that matched, in table order.
type TableTrace struct {
	Matched []MatchedRule `json:"matched,omitempty"`
}

// MatchedRule identifies one matching rule.
type MatchedRule struct {
	Index int    `json:"index"`
	ID    string `json:"id,omitempty"`
}

// tableData is a decision table with its cells compiled once.
type tableData struct {
	schema.DecisionTableContent
	rules []compiledRule
}

type compiledRule struct {
	id      string
	tests   []string // unary test per input column, "" matches anything
	outputs []string // expression per output column, "" leaves the field unset
}

func decodeTable(d *Deps) engine.Decoder[tableData] {
	return func(node *schema.Node) (tableData, error) {
		var data tableData
		if err := json.Unmarshal(node.Content, &data.DecisionTableContent); err != nil {
			return data, err
		}
		switch data.HitPolicy {
		case "":
			data.HitPolicy = schema.HitPolicyFirst
		case schema.HitPolicyFirst, schema.HitPolicyCollect:
		default:
			return data, fmt.Errorf("unsupported hit policy %q", data.HitPolicy)
		}
		if err := d.prepareTransform(data.Transform); err != nil {
			return data, err
		}

		data.rules = make([]compiledRule, len(data.Rules))
		for i, rule := range data.Rules {
			cr := compiledRule{
				id:      rule[RuleIDKey],
				tests:   make([]string, len(data.Inputs)),
				outputs: make([]string, len(data.Outputs)),
			}
			for j, col := range data.Inputs {
				test := expressions.UnaryTest(rule[col.ID])
				if test != "" {
					if err := d.Expr.Compile(test); err != nil {
						return data, fmt.Errorf("rule %d input %q: %w", i, col.ID, err)
					}
				}
				cr.tests[j] = test
			}
			for j, col := range data.Outputs {
				if strings.TrimSpace(col.Field) == "" {
					return data, fmt.Errorf("output column %q has no field", col.ID)
				}
				cell := strings.TrimSpace(rule[col.ID])
				if cell != "" {
					if err := d.Expr.Compile(cell); err != nil {
						return data, fmt.Errorf("rule %d output %q: %w", i, col.ID, err)
					}
				}
				cr.outputs[j] = cell
			}
			data.rules[i] = cr
		}
		return data, nil
	}
}

// tableHandler evaluates rules top to bottom. The first hit policy returns
// the first matching rule's outputs (an empty object when nothing matches);
// collect returns the outputs of every match as an array.
type tableHandler struct {
	deps *Deps
}

func (h *tableHandler) Handle(ctx context.Context, nc *engine.NodeContext[tableData, TableTrace]) (any, error) {
	in, err := h.deps.selectInput(ctx, nc.Data.Transform, nc.Input)
	if err != nil {
		return nil, err
	}

	collected := make([]any, 0)
	for i, rule := range nc.Data.rules {
		ok, err := h.matches(ctx, &nc.Data, rule, in)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		out, err := h.outputs(ctx, &nc.Data, rule, in)
		if err != nil {
			return nil, err
		}
		nc.Trace(func(tr *TableTrace) {
			tr.Matched = append(tr.Matched, MatchedRule{Index: i, ID: rule.id})
		})

		if nc.Data.HitPolicy == schema.HitPolicyFirst {
			return passThrough(nc.Data.Transform, nc.Input, out), nil
		}
		collected = append(collected, passThrough(nc.Data.Transform, nc.Input, out))
	}

	if nc.Data.HitPolicy == schema.HitPolicyFirst {
		return passThrough(nc.Data.Transform, nc.Input, map[string]any{}), nil
	}
	return collected, nil
}

func (h *tableHandler) matches(ctx context.Context, data *tableData, rule compiledRule, in any) (bool, error) {
	for j, test := range rule.tests {
		if test == "" {
			continue
		}
		value, _ := engine.GetPath(in, data.Inputs[j].Field)
		res, err := h.deps.Expr.Evaluate(ctx, test, expressions.UnaryEnv(in, value))
		if err != nil {
			// Comparisons against a missing field do not match.
			if value == nil {
				return false, nil
			}
			return false, err
		}
		if b, ok := res.(bool); !ok || !b {
			return false, nil
		}
	}
	return true, nil
}

func (h *tableHandler) outputs(ctx context.Context, data *tableData, rule compiledRule, in any) (map[string]any, error) {
	out := make(map[string]any, len(rule.outputs))
	for j, cell := range rule.outputs {
		if cell == "" {
			continue
		}
		v, err := h.deps.Expr.Evaluate(ctx, cell, in)
		if err != nil {
			return nil, err
		}
		engine.SetPath(out, data.Outputs[j].Field, v)
	}
	return out, nil
}
