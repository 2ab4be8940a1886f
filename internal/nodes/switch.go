package nodes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rendis/verdict/internal/engine"
	"github.com/rendis/verdict/pkg/schema"
)

// SwitchTrace lists the statements whose branches were activated.
type SwitchTrace struct {
	Statements []string `json:"statements"`
}

// switchHandler routes its input down the branches whose CEL condition
// holds. Statements without a condition are defaults, taken only when no
// conditional statement matched. The input passes through unchanged.
type switchHandler struct {
	deps *Deps
}

func (h *switchHandler) Prepare(node *schema.Node, data *schema.SwitchContent) error {
	switch data.HitPolicy {
	case "":
		data.HitPolicy = schema.HitPolicyFirst
	case schema.HitPolicyFirst, schema.HitPolicyCollect:
	default:
		return fmt.Errorf("unsupported hit policy %q", data.HitPolicy)
	}
	for _, st := range data.Statements {
		if st.ID == "" {
			return errors.New("switch statement without id")
		}
		if c := strings.TrimSpace(st.Condition); c != "" {
			if err := h.deps.CEL.Compile(c); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *switchHandler) Handle(ctx context.Context, nc *engine.NodeContext[schema.SwitchContent, SwitchTrace]) (any, error) {
	var matched, defaults []string
	for _, st := range nc.Data.Statements {
		cond := strings.TrimSpace(st.Condition)
		if cond == "" {
			defaults = append(defaults, st.ID)
			continue
		}
		ok, err := h.deps.CEL.EvaluateBool(ctx, cond, nc.Input)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		matched = append(matched, st.ID)
		if nc.Data.HitPolicy == schema.HitPolicyFirst {
			break
		}
	}

	if len(matched) == 0 {
		matched = defaults
		if nc.Data.HitPolicy == schema.HitPolicyFirst && len(matched) > 1 {
			matched = matched[:1]
		}
	}

	nc.Activate(matched...)
	nc.Trace(func(tr *SwitchTrace) { tr.Statements = matched })
	return nc.Input, nil
}
