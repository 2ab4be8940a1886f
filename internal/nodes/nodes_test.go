package nodes

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/verdict/internal/capability"
	"github.com/rendis/verdict/internal/engine"
	"github.com/rendis/verdict/pkg/schema"
)

// --- helpers ---

func newExecutor(t *testing.T, listeners ...capability.Listener) *engine.Executor {
	t.Helper()
	deps, err := NewDeps()
	require.NoError(t, err)
	return engine.NewExecutor(engine.Config{
		Registry:    capability.NewRegistry(listeners...),
		Handlers:    Handlers(deps),
		Concurrency: 2,
	})
}

func decode(t *testing.T, doc string) *schema.DecisionContent {
	t.Helper()
	var c schema.DecisionContent
	require.NoError(t, json.Unmarshal([]byte(doc), &c))
	return &c
}

// single wires input → node → output around one node definition.
func single(nodeJSON string) string {
	return `{
		"nodes": [
			{"id": "in", "type": "inputNode"},
			` + nodeJSON + `,
			{"id": "out", "type": "outputNode"}
		],
		"edges": [
			{"id": "e1", "sourceId": "in", "targetId": "n"},
			{"id": "e2", "sourceId": "n", "targetId": "out"}
		]
	}`
}

func run(t *testing.T, ex *engine.Executor, doc string, input any, opts schema.EvaluationOptions) (*engine.Result, error) {
	t.Helper()
	g, err := ex.Compile(decode(t, doc))
	require.NoError(t, err)
	return ex.Evaluate(context.Background(), g, input, opts)
}

func traceOf(t *testing.T, res *engine.Result, id string) schema.TraceRecord {
	t.Helper()
	for _, rec := range res.Trace {
		if rec.ID == id {
			return rec
		}
	}
	t.Fatalf("no trace record for %s", id)
	return schema.TraceRecord{}
}

// --- expression ---

func TestExpression_Basic(t *testing.T) {
	ex := newExecutor(t)
	doc := single(`{"id": "n", "type": "expressionNode", "content": {"expressions": [
		{"id": "x1", "key": "output", "value": "input + 10"}
	]}}`)

	res, err := run(t, ex, doc, map[string]any{"input": 5.0}, schema.EvaluationOptions{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"output": 15.0}, res.Output)
}

func TestExpression_DottedKeysAndBuiltins(t *testing.T) {
	ex := newExecutor(t)
	doc := single(`{"id": "n", "type": "expressionNode", "content": {"expressions": [
		{"id": "x1", "key": "customer.name", "value": "upper(name)"},
		{"id": "x2", "key": "customer.total", "value": "sum(items)"},
		{"id": "x3", "key": "flag", "value": "missing ?? 'fallback'"}
	]}}`)

	res, err := run(t, ex, doc, map[string]any{"name": "ada", "items": []any{1.0, 2.0, 3.0}}, schema.EvaluationOptions{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"customer": map[string]any{"name": "ADA", "total": 6.0},
		"flag":     "fallback",
	}, res.Output)
}

func TestExpression_InputFieldAndPassThrough(t *testing.T) {
	ex := newExecutor(t)
	doc := single(`{"id": "n", "type": "expressionNode", "content": {
		"inputField": "order",
		"passThrough": true,
		"expressions": [{"id": "x1", "key": "doubled", "value": "amount * 2"}]
	}}`)

	input := map[string]any{"order": map[string]any{"amount": 4.0}, "keep": true}
	res, err := run(t, ex, doc, input, schema.EvaluationOptions{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"order": map[string]any{"amount": 4.0}, "keep": true, "doubled": 8.0}, res.Output)
}

func TestExpression_Trace(t *testing.T) {
	ex := newExecutor(t)
	doc := single(`{"id": "n", "type": "expressionNode", "content": {"expressions": [
		{"id": "x1", "key": "a", "value": "1 + 1"}
	]}}`)

	res, err := run(t, ex, doc, map[string]any{}, schema.EvaluationOptions{Trace: schema.TraceDefault})
	require.NoError(t, err)
	rec := traceOf(t, res, "n")
	assert.Equal(t, &ExpressionTrace{Results: map[string]any{"a": 2}}, rec.TraceData)
}

func TestExpression_CompileErrors(t *testing.T) {
	ex := newExecutor(t)
	for name, content := range map[string]string{
		"syntax":    `{"expressions": [{"id": "x", "key": "a", "value": "1 +"}]}`,
		"empty key": `{"expressions": [{"id": "x", "key": "", "value": "1"}]}`,
		"empty val": `{"expressions": [{"id": "x", "key": "a", "value": ""}]}`,
		"bad jq":    `{"inputField": ".[", "expressions": []}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ex.Compile(decode(t, single(`{"id": "n", "type": "expressionNode", "content": `+content+`}`)))
			require.Error(t, err)
			assert.Equal(t, schema.ErrContentDeserialization, schema.KindOf(err))

			var engErr *schema.EngineError
			require.ErrorAs(t, err, &engErr)
			assert.Equal(t, "n", engErr.NodeID)
		})
	}
}

func TestExpression_RuntimeError(t *testing.T) {
	ex := newExecutor(t)
	doc := single(`{"id": "n", "type": "expressionNode", "content": {"expressions": [
		{"id": "x1", "key": "a", "value": "a % b"}
	]}}`)

	_, err := run(t, ex, doc, map[string]any{"a": 1.0, "b": 0.0}, schema.EvaluationOptions{})
	require.Error(t, err)
	assert.Equal(t, schema.ErrNodeExecution, schema.KindOf(err))
}

// --- decision table ---

const ageTable = `{"id": "n", "type": "decisionTableNode", "content": {
	"hitPolicy": "%s",
	"inputs": [{"id": "age", "field": "customer.age"}, {"id": "tier", "field": "tier"}],
	"outputs": [{"id": "cat", "field": "category"}, {"id": "disc", "field": "pricing.discount"}],
	"rules": [
		{"_id": "r1", "age": "< 18", "tier": "", "cat": "'minor'", "disc": "0"},
		{"_id": "r2", "age": ">= 18", "tier": "'gold', 'platinum'", "cat": "'vip'", "disc": "0.2"},
		{"_id": "r3", "age": ">= 18", "tier": "-", "cat": "'adult'", "disc": "0.05"},
		{"_id": "r4", "age": "$ > 90 && $ < 200", "tier": "-", "cat": "'senior'", "disc": ""}
	]
}}`

func tableDoc(policy string) string {
	return single(strings.Replace(ageTable, "%s", policy, 1))
}

func TestDecisionTable_FirstHit(t *testing.T) {
	ex := newExecutor(t)

	tests := []struct {
		name  string
		input map[string]any
		want  any
	}{
		{"minor", map[string]any{"customer": map[string]any{"age": 12.0}}, map[string]any{"category": "minor", "pricing": map[string]any{"discount": 0}}},
		{"vip", map[string]any{"customer": map[string]any{"age": 40.0}, "tier": "gold"}, map[string]any{"category": "vip", "pricing": map[string]any{"discount": 0.2}}},
		{"adult", map[string]any{"customer": map[string]any{"age": 40.0}, "tier": "silver"}, map[string]any{"category": "adult", "pricing": map[string]any{"discount": 0.05}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := run(t, ex, tableDoc("first"), tc.input, schema.EvaluationOptions{})
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Output)
		})
	}
}

func TestDecisionTable_NoMatchYieldsEmptyObject(t *testing.T) {
	ex := newExecutor(t)
	res, err := run(t, ex, tableDoc("first"), map[string]any{}, schema.EvaluationOptions{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, res.Output)
}

func TestDecisionTable_Collect(t *testing.T) {
	ex := newExecutor(t)
	res, err := run(t, ex, tableDoc("collect"), map[string]any{"customer": map[string]any{"age": 95.0}, "tier": "gold"},
		schema.EvaluationOptions{Trace: schema.TraceDefault})
	require.NoError(t, err)

	assert.Equal(t, []any{
		map[string]any{"category": "vip", "pricing": map[string]any{"discount": 0.2}},
		map[string]any{"category": "adult", "pricing": map[string]any{"discount": 0.05}},
		map[string]any{"category": "senior"},
	}, res.Output)

	rec := traceOf(t, res, "n")
	assert.Equal(t, &TableTrace{Matched: []MatchedRule{{Index: 1, ID: "r2"}, {Index: 2, ID: "r3"}, {Index: 3, ID: "r4"}}}, rec.TraceData)
}

func TestDecisionTable_CompileErrors(t *testing.T) {
	ex := newExecutor(t)
	for name, content := range map[string]string{
		"hit policy":  `{"hitPolicy": "unique", "inputs": [], "outputs": [], "rules": []}`,
		"bad cell":    `{"inputs": [{"id": "a", "field": "a"}], "outputs": [], "rules": [{"a": "> > 1"}]}`,
		"bad output":  `{"inputs": [], "outputs": [{"id": "o", "field": "o"}], "rules": [{"o": "1 +"}]}`,
		"no field":    `{"inputs": [], "outputs": [{"id": "o"}], "rules": []}`,
		"not object":  `[1, 2]`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ex.Compile(decode(t, single(`{"id": "n", "type": "decisionTableNode", "content": `+content+`}`)))
			require.Error(t, err)
			assert.Equal(t, schema.ErrContentDeserialization, schema.KindOf(err))
		})
	}
}

// --- switch ---

const switchDoc = `{
	"nodes": [
		{"id": "in", "type": "inputNode"},
		{"id": "sw", "type": "switchNode", "content": {"hitPolicy": "%s", "statements": [
			{"id": "big", "condition": "input.amount > 100"},
			{"id": "flagged", "condition": "input.flagged == true"},
			{"id": "default"}
		]}},
		{"id": "review", "type": "expressionNode", "content": {"expressions": [{"id": "r", "key": "review", "value": "true"}]}},
		{"id": "audit", "type": "expressionNode", "content": {"expressions": [{"id": "a", "key": "audit", "value": "true"}]}},
		{"id": "auto", "type": "expressionNode", "content": {"expressions": [{"id": "o", "key": "auto", "value": "true"}]}},
		{"id": "out", "type": "outputNode"}
	],
	"edges": [
		{"id": "e1", "sourceId": "in", "targetId": "sw"},
		{"id": "e2", "sourceId": "sw", "targetId": "review", "sourceHandle": "big"},
		{"id": "e3", "sourceId": "sw", "targetId": "audit", "sourceHandle": "flagged"},
		{"id": "e4", "sourceId": "sw", "targetId": "auto", "sourceHandle": "default"},
		{"id": "e5", "sourceId": "review", "targetId": "out"},
		{"id": "e6", "sourceId": "audit", "targetId": "out"},
		{"id": "e7", "sourceId": "auto", "targetId": "out"}
	]
}`

func TestSwitch_Branches(t *testing.T) {
	ex := newExecutor(t)

	tests := []struct {
		name   string
		policy string
		input  map[string]any
		want   map[string]any
	}{
		{"first match", "first", map[string]any{"amount": 150.0, "flagged": true}, map[string]any{"review": true}},
		{"collect", "collect", map[string]any{"amount": 150.0, "flagged": true}, map[string]any{"review": true, "audit": true}},
		{"default", "first", map[string]any{"amount": 10.0, "flagged": false}, map[string]any{"auto": true}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			doc := strings.Replace(switchDoc, "%s", tc.policy, 1)
			res, err := run(t, ex, doc, tc.input, schema.EvaluationOptions{Trace: schema.TraceDefault})
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Output)
		})
	}
}

func TestSwitch_TraceAndSkippedNodes(t *testing.T) {
	ex := newExecutor(t)
	doc := strings.Replace(switchDoc, "%s", "first", 1)

	res, err := run(t, ex, doc, map[string]any{"amount": 500.0}, schema.EvaluationOptions{Trace: schema.TraceDefault})
	require.NoError(t, err)

	assert.Equal(t, []string{"in", "sw", "review", "out"}, engine.TraceIDs(res.Trace))
	assert.Equal(t, &SwitchTrace{Statements: []string{"big"}}, traceOf(t, res, "sw").TraceData)
}

func TestSwitch_NonBooleanCondition(t *testing.T) {
	ex := newExecutor(t)
	doc := single(`{"id": "n", "type": "switchNode", "content": {"statements": [{"id": "s", "condition": "input.amount"}]}}`)

	_, err := run(t, ex, doc, map[string]any{"amount": 3.0}, schema.EvaluationOptions{})
	require.Error(t, err)
	assert.Equal(t, schema.ErrNodeExecution, schema.KindOf(err))
	assert.Contains(t, err.Error(), "expected bool")
}

func TestSwitch_CompileErrors(t *testing.T) {
	ex := newExecutor(t)
	for name, content := range map[string]string{
		"bad cel":    `{"statements": [{"id": "s", "condition": "input.a >"}]}`,
		"no id":      `{"statements": [{"condition": "true"}]}`,
		"hit policy": `{"hitPolicy": "any", "statements": []}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ex.Compile(decode(t, single(`{"id": "n", "type": "switchNode", "content": `+content+`}`)))
			require.Error(t, err)
			assert.Equal(t, schema.ErrContentDeserialization, schema.KindOf(err))
		})
	}
}

// --- input / output schemas ---

func TestInputSchema(t *testing.T) {
	ex := newExecutor(t)
	doc := `{
		"nodes": [
			{"id": "in", "type": "inputNode", "content": {"schema": {"type": "object", "required": ["age"], "properties": {"age": {"type": "number"}}}}},
			{"id": "out", "type": "outputNode"}
		],
		"edges": [{"id": "e", "sourceId": "in", "targetId": "out"}]
	}`

	res, err := run(t, ex, doc, map[string]any{"age": 3.0}, schema.EvaluationOptions{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"age": 3.0}, res.Output)

	_, err = run(t, ex, doc, map[string]any{"age": "three"}, schema.EvaluationOptions{})
	require.Error(t, err)
	assert.Equal(t, schema.ErrNodeExecution, schema.KindOf(err))
	assert.Contains(t, err.Error(), "/age")
}

func TestOutputSchema(t *testing.T) {
	ex := newExecutor(t)
	doc := `{
		"nodes": [
			{"id": "in", "type": "inputNode"},
			{"id": "out", "type": "outputNode", "content": {"schema": {"type": "object", "additionalProperties": false, "properties": {"ok": {"type": "boolean"}}}}}
		],
		"edges": [{"id": "e", "sourceId": "in", "targetId": "out"}]
	}`

	_, err := run(t, ex, doc, map[string]any{"ok": true}, schema.EvaluationOptions{})
	require.NoError(t, err)

	_, err = run(t, ex, doc, map[string]any{"ok": true, "extra": 1.0}, schema.EvaluationOptions{})
	require.Error(t, err)

	var engErr *schema.EngineError
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, "out", engErr.NodeID)
}

func TestInputSchema_InvalidSchemaFailsCompile(t *testing.T) {
	ex := newExecutor(t)
	_, err := ex.Compile(decode(t, `{"nodes": [{"id": "in", "type": "inputNode", "content": {"schema": {"type": 12}}}]}`))
	require.Error(t, err)
	assert.Equal(t, schema.ErrContentDeserialization, schema.KindOf(err))
}

// --- feature-gated kinds ---

func TestFeatureGatedKindsWithoutCapabilities(t *testing.T) {
	tests := []struct {
		name    string
		node    string
		mention string
	}{
		{"function v1", `{"id": "n", "type": "functionNode", "content": "export const handler = (input) => input;"}`, "scripting runtime"},
		{"function v2", `{"id": "n", "type": "functionNode", "content": {"source": "export const handler = (input) => input;"}}`, "scripting runtime"},
		{"custom", `{"id": "n", "type": "customNode", "content": {"kind": "fraud-score"}}`, "custom node"},
		{"http", `{"id": "n", "type": "httpRequestNode", "content": {"url": "https://example.com/score"}}`, "network"},
		{"decision", `{"id": "n", "type": "decisionNode", "content": {"key": "pricing"}}`, "loader"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ex := newExecutor(t, capability.ConsoleListener{})
			for _, trace := range []schema.TraceKind{schema.TraceNone, schema.TraceDefault} {
				assert.NotPanics(t, func() {
					_, err := run(t, ex, single(tc.node), map[string]any{"a": 1.0}, schema.EvaluationOptions{Trace: trace})
					require.Error(t, err)
					assert.Equal(t, schema.ErrFeatureDisabled, schema.KindOf(err))
					assert.Contains(t, err.Error(), tc.mention)

					var engErr *schema.EngineError
					require.ErrorAs(t, err, &engErr)
					assert.Equal(t, "n", engErr.NodeID)
				})
			}
		})
	}
}

func TestFunction_ContentFormats(t *testing.T) {
	t.Run("v1", func(t *testing.T) {
		data, err := decodeFunction(&schema.Node{Content: json.RawMessage(`"return 1"`)})
		require.NoError(t, err)
		assert.Equal(t, functionData{Version: FunctionV1, Source: "return 1"}, data)
	})
	t.Run("v2", func(t *testing.T) {
		data, err := decodeFunction(&schema.Node{Content: json.RawMessage(` {"source": "return 2", "omitNodes": true}`)})
		require.NoError(t, err)
		assert.Equal(t, functionData{Version: FunctionV2, Source: "return 2", OmitNodes: true}, data)
	})
	t.Run("missing", func(t *testing.T) {
		_, err := decodeFunction(&schema.Node{})
		assert.Error(t, err)
	})
}

type stubRuntime struct {
	calls int64
}

func (s *stubRuntime) Run(ctx context.Context, req capability.ScriptRequest) (*capability.ScriptResponse, error) {
	atomic.AddInt64(&s.calls, 1)
	return &capability.ScriptResponse{
		Output: map[string]any{"version": float64(req.Version), "node": req.NodeID},
		Logs:   []string{"ran " + req.Source},
	}, nil
}

func TestFunction_WithScriptRuntime(t *testing.T) {
	rt := &stubRuntime{}
	ex := newExecutor(t, capability.ScriptListener{Runtime: rt})
	doc := single(`{"id": "n", "type": "functionNode", "content": {"source": "fn"}}`)

	res, err := run(t, ex, doc, map[string]any{}, schema.EvaluationOptions{Trace: schema.TraceDefault})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"version": 2.0, "node": "n"}, res.Output)
	assert.Equal(t, &FunctionTrace{Version: 2, Logs: []string{"ran fn"}}, traceOf(t, res, "n").TraceData)
	assert.Equal(t, int64(1), rt.calls)
}

func TestCustom_Dispatch(t *testing.T) {
	var got capability.CustomNodeRequest
	dispatcher := capability.CustomNodeFunc(func(ctx context.Context, req capability.CustomNodeRequest) (*capability.CustomNodeResponse, error) {
		got = req
		return &capability.CustomNodeResponse{Output: map[string]any{"score": 0.7}, TraceData: "model-v3"}, nil
	})
	ex := newExecutor(t, capability.EngineListener{CustomNode: dispatcher})
	doc := single(`{"id": "n", "name": "Fraud", "type": "customNode", "content": {"kind": "fraud-score", "config": {"threshold": 0.5}}}`)

	res, err := run(t, ex, doc, map[string]any{"amount": 3.0}, schema.EvaluationOptions{Trace: schema.TraceDefault})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"score": 0.7}, res.Output)
	assert.Equal(t, "fraud-score", got.Kind)
	assert.Equal(t, "Fraud", got.Name)
	assert.JSONEq(t, `{"threshold": 0.5}`, string(got.Config))
	assert.Equal(t, map[string]any{"amount": 3.0}, got.Input)
	assert.Equal(t, &CustomTrace{Data: "model-v3"}, traceOf(t, res, "n").TraceData)
}

func TestCustom_DispatcherError(t *testing.T) {
	dispatcher := capability.CustomNodeFunc(func(ctx context.Context, req capability.CustomNodeRequest) (*capability.CustomNodeResponse, error) {
		return nil, errors.New("model unavailable")
	})
	ex := newExecutor(t, capability.EngineListener{CustomNode: dispatcher})
	_, err := run(t, ex, single(`{"id": "n", "type": "customNode", "content": {"kind": "k"}}`), map[string]any{}, schema.EvaluationOptions{})
	require.Error(t, err)
	assert.Equal(t, schema.ErrNodeExecution, schema.KindOf(err))
	assert.Contains(t, err.Error(), "model unavailable")
}

// --- http ---

func TestHTTPRequest_Dispatch(t *testing.T) {
	var got *capability.HTTPRequest
	client := capability.HTTPHandlerFunc(func(ctx context.Context, req *capability.HTTPRequest) (*capability.HTTPResponse, error) {
		got = req
		return &capability.HTTPResponse{StatusCode: 201, Headers: map[string]string{"X-Id": "7"}, Body: map[string]any{"ok": true}}, nil
	})
	ex := newExecutor(t, capability.HTTPListener{Handler: client})
	doc := single(`{"id": "n", "type": "httpRequestNode", "content": {"method": "post", "url": "https://api.example.com/score", "headers": {"X-Key": "k"}, "bodyFromInput": true}}`)

	res, err := run(t, ex, doc, map[string]any{"amount": 3.0}, schema.EvaluationOptions{Trace: schema.TraceDefault})
	require.NoError(t, err)

	assert.Equal(t, "POST", got.Method)
	assert.Equal(t, map[string]any{"amount": 3.0}, got.Body)
	assert.Equal(t, "k", got.Headers["X-Key"])
	assert.Equal(t, map[string]any{
		"status":  201.0,
		"headers": map[string]any{"X-Id": "7"},
		"body":    map[string]any{"ok": true},
	}, res.Output)
	assert.Equal(t, &HTTPTrace{Method: "POST", URL: "https://api.example.com/score", Status: 201}, traceOf(t, res, "n").TraceData)
}

func TestHTTPRequest_CompileErrors(t *testing.T) {
	ex := newExecutor(t)
	for name, content := range map[string]string{
		"method": `{"method": "TRACE", "url": "https://example.com"}`,
		"scheme": `{"url": "ftp://example.com"}`,
		"empty":  `{"url": ""}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ex.Compile(decode(t, single(`{"id": "n", "type": "httpRequestNode", "content": `+content+`}`)))
			require.Error(t, err)
			assert.Equal(t, schema.ErrContentDeserialization, schema.KindOf(err))
		})
	}
}

// --- sub-decision ---

func TestDecision_EvaluatesLoadedDecision(t *testing.T) {
	child := single(`{"id": "n", "type": "expressionNode", "content": {"expressions": [{"id": "x", "key": "price", "value": "base * 2"}]}}`)
	var loads int64
	loader := capability.LoaderFunc(func(ctx context.Context, key string) (*schema.DecisionContent, error) {
		atomic.AddInt64(&loads, 1)
		if key != "pricing" {
			return nil, errors.New("not found")
		}
		return decode(t, child), nil
	})
	ex := newExecutor(t, capability.EngineListener{Loader: loader})
	doc := single(`{"id": "n", "type": "decisionNode", "content": {"key": "pricing", "inputField": "product", "passThrough": true}}`)

	input := map[string]any{"product": map[string]any{"base": 21.0}}
	res, err := run(t, ex, doc, input, schema.EvaluationOptions{Trace: schema.TraceDefault})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"product": map[string]any{"base": 21.0}, "price": 42.0}, res.Output)
	assert.Equal(t, int64(1), loads)

	tr, ok := traceOf(t, res, "n").TraceData.(*DecisionTrace)
	require.True(t, ok)
	assert.Equal(t, "pricing", tr.Key)
	assert.Equal(t, []string{"in", "n", "out"}, engine.TraceIDs(tr.Trace))
}

func TestDecision_RecursionLimit(t *testing.T) {
	self := single(`{"id": "n", "type": "decisionNode", "content": {"key": "self"}}`)
	var loads int64
	loader := capability.LoaderFunc(func(ctx context.Context, key string) (*schema.DecisionContent, error) {
		atomic.AddInt64(&loads, 1)
		return decode(t, self), nil
	})
	ex := newExecutor(t, capability.EngineListener{Loader: loader})

	_, err := run(t, ex, self, map[string]any{}, schema.EvaluationOptions{})
	require.Error(t, err)
	assert.True(t, schema.IsKind(err, schema.ErrRecursionLimit))
	assert.Equal(t, int64(schema.DefaultMaxDepth), atomic.LoadInt64(&loads))
}

// --- trace idempotence ---

func TestTraceDoesNotChangeOutput(t *testing.T) {
	ex := newExecutor(t)
	for _, doc := range []string{tableDoc("collect"), strings.Replace(switchDoc, "%s", "collect", 1)} {
		input := map[string]any{"customer": map[string]any{"age": 40.0}, "tier": "gold", "amount": 120.0, "flagged": true}

		plain, err := run(t, ex, doc, input, schema.EvaluationOptions{})
		require.NoError(t, err)
		traced, err := run(t, ex, doc, input, schema.EvaluationOptions{Trace: schema.TraceDefault})
		require.NoError(t, err)

		assert.Equal(t, plain.Output, traced.Output)
		assert.Nil(t, plain.Trace)
		assert.NotEmpty(t, traced.Trace)
	}
}
