// Package nodes implements the built-in node kinds of the decision catalog
// on top of the engine's handler contract.
package nodes

import (
	"fmt"

	"github.com/rendis/verdict/internal/engine"
	"github.com/rendis/verdict/internal/expressions"
	"github.com/rendis/verdict/internal/validation"
	"github.com/rendis/verdict/pkg/schema"
)

// Deps are the shared, concurrency-safe evaluators used by node handlers.
type Deps struct {
	Expr      *expressions.ExprEngine
	CEL       *expressions.CELEngine
	JQ        *expressions.GoJQEngine
	Validator *validation.JSONSchemaValidator
}

// NewDeps builds the default evaluators.
func NewDeps() (*Deps, error) {
	cel, err := expressions.NewCELEngine()
	if err != nil {
		return nil, fmt.Errorf("create cel engine: %w", err)
	}
	v, err := validation.NewJSONSchemaValidator()
	if err != nil {
		return nil, fmt.Errorf("create schema validator: %w", err)
	}
	return &Deps{
		Expr:      expressions.NewExprEngine(),
		CEL:       cel,
		JQ:        expressions.NewGoJQEngine(),
		Validator: v,
	}, nil
}

// Handlers returns the dispatch table for every built-in node kind.
func Handlers(d *Deps) map[schema.NodeKind]engine.Dispatcher {
	return map[schema.NodeKind]engine.Dispatcher{
		schema.NodeKindInput:         engine.Bind[schema.SchemaContent, struct{}](&inputHandler{deps: d}),
		schema.NodeKindOutput:        engine.Bind[schema.SchemaContent, struct{}](&outputHandler{deps: d}),
		schema.NodeKindExpression:    engine.Bind[schema.ExpressionContent, ExpressionTrace](&expressionHandler{deps: d}),
		schema.NodeKindDecisionTable: engine.Bind[tableData, TableTrace](&tableHandler{deps: d}, engine.WithDecoder[tableData](decodeTable(d))),
		schema.NodeKindSwitch:        engine.Bind[schema.SwitchContent, SwitchTrace](&switchHandler{deps: d}),
		schema.NodeKindFunction:      engine.Bind[functionData, FunctionTrace](functionHandler{}, engine.WithDecoder[functionData](decodeFunction)),
		schema.NodeKindCustom:        engine.Bind[schema.CustomContent, CustomTrace](customHandler{}),
		schema.NodeKindHTTPRequest:   engine.Bind[schema.HTTPRequestContent, HTTPTrace](&httpHandler{deps: d}),
		schema.NodeKindDecision:      engine.Bind[schema.SubDecisionContent, DecisionTrace](&decisionHandler{deps: d}),
	}
}
