package validation

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/verdict/pkg/schema"
)

func newValidator(t *testing.T) *JSONSchemaValidator {
	t.Helper()
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)
	return v
}

func TestNewJSONSchemaValidator(t *testing.T) {
	v := newValidator(t)
	assert.NotNil(t, v.decisionSchema)
}

// --- decision documents ---

func TestValidateContent_MinimalValid(t *testing.T) {
	v := newValidator(t)
	err := v.ValidateContent([]byte(`{"nodes": [{"id": "in", "type": "inputNode"}]}`))
	assert.NoError(t, err)
}

func TestValidateContent_FullValid(t *testing.T) {
	v := newValidator(t)
	doc := `{
		"nodes": [
			{"id": "in", "name": "Request", "type": "inputNode", "position": {"x": 10, "y": 20}},
			{"id": "expr", "type": "expressionNode", "content": {"expressions": [{"id": "e1", "key": "out", "value": "input + 10"}]}},
			{"id": "out", "type": "outputNode"}
		],
		"edges": [
			{"id": "e1", "sourceId": "in", "targetId": "expr"},
			{"id": "e2", "sourceId": "expr", "targetId": "out", "sourceHandle": "h1"}
		],
		"settings": {"validation": "none"}
	}`
	assert.NoError(t, v.ValidateContent([]byte(doc)))
}

func TestValidateContent_Violations(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"empty", ``, "empty"},
		{"not json", `{nodes`, "not valid JSON"},
		{"scalar", `42`, "/"},
		{"missing nodes", `{"edges": []}`, "nodes"},
		{"empty nodes", `{"nodes": []}`, "/nodes"},
		{"node without id", `{"nodes": [{"type": "inputNode"}]}`, "/nodes/0"},
		{"node without type", `{"nodes": [{"id": "a"}]}`, "/nodes/0"},
		{"edge without target", `{"nodes": [{"id": "a", "type": "inputNode"}], "edges": [{"sourceId": "a"}]}`, "/edges/0"},
		{"bad position", `{"nodes": [{"id": "a", "type": "inputNode", "position": {"x": "left"}}]}`, "/nodes/0/position/x"},
	}

	v := newValidator(t)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := v.ValidateContent([]byte(tc.doc))
			require.Error(t, err)
			assert.True(t, schema.IsKind(err, schema.ErrContentDeserialization))
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestValidateContent_ErrorDetails(t *testing.T) {
	v := newValidator(t)
	err := v.ValidateContent([]byte(`{"nodes": [{"id": ""}, {"type": 3}]}`))
	require.Error(t, err)

	var engErr *schema.EngineError
	require.ErrorAs(t, err, &engErr)
	violations, ok := engErr.Details["violations"].([]string)
	require.True(t, ok)
	assert.Greater(t, len(violations), 1)
	assert.Contains(t, engErr.Message, "validation failed with")
}

func TestValidateDecision(t *testing.T) {
	v := newValidator(t)

	err := v.ValidateDecision(nil)
	require.Error(t, err)
	assert.True(t, schema.IsKind(err, schema.ErrContentDeserialization))

	valid := &schema.DecisionContent{
		Nodes: []schema.Node{
			{ID: "in", Kind: schema.NodeKindInput},
			{ID: "out", Kind: schema.NodeKindOutput, Content: json.RawMessage(`{"schema": {"type": "object"}}`)},
		},
		Edges: []schema.Edge{{ID: "e", SourceID: "in", TargetID: "out"}},
	}
	assert.NoError(t, v.ValidateDecision(valid))

	invalid := &schema.DecisionContent{Nodes: []schema.Node{{ID: "in"}}}
	err = v.ValidateDecision(invalid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/nodes/0")
}

func TestValidateDecision_Concurrent(t *testing.T) {
	v := newValidator(t)
	content := &schema.DecisionContent{Nodes: []schema.Node{{ID: "in", Kind: schema.NodeKindInput}}}

	var wg sync.WaitGroup
	errs := make([]error, 50)
	for i := range 50 {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			errs[idx] = v.ValidateDecision(content)
		}(i)
	}
	wg.Wait()

	for i, e := range errs {
		assert.NoError(t, e, "goroutine %d should not error", i)
	}
}

// --- node values ---

func TestValidateValue_EmptySchema(t *testing.T) {
	v := newValidator(t)
	assert.NoError(t, v.ValidateValue("anything", nil))
	assert.NoError(t, v.ValidateValue(map[string]any{"a": 1}, []byte("  ")))
}

func TestValidateValue_ValidObject(t *testing.T) {
	v := newValidator(t)
	s := []byte(`{
		"type": "object",
		"required": ["age"],
		"properties": {
			"age": {"type": "integer", "minimum": 0},
			"email": {"type": "string", "format": "email"}
		}
	}`)

	assert.NoError(t, v.ValidateValue(map[string]any{"age": 30, "email": "a@example.com"}, s))
	assert.NoError(t, v.ValidateValue(map[string]any{"age": 30.0}, s))
}

func TestValidateValue_Violations(t *testing.T) {
	v := newValidator(t)
	s := []byte(`{
		"type": "object",
		"required": ["age"],
		"properties": {
			"age": {"type": "integer", "minimum": 0},
			"email": {"type": "string", "format": "email"},
			"tier": {"enum": ["gold", "silver"]}
		}
	}`)

	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"missing required", map[string]any{}, "age"},
		{"wrong type", map[string]any{"age": "old"}, "/age"},
		{"minimum", map[string]any{"age": -1}, "/age"},
		{"format", map[string]any{"age": 1, "email": "nope"}, "/email"},
		{"enum", map[string]any{"age": 1, "tier": "bronze"}, "/tier"},
		{"not an object", []any{1, 2}, "/"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := v.ValidateValue(tc.value, s)
			require.Error(t, err)
			assert.Equal(t, schema.ErrNodeExecution, schema.KindOf(err))
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestValidateValue_RefSupport(t *testing.T) {
	v := newValidator(t)
	s := []byte(`{
		"type": "object",
		"properties": {
			"primary": {"$ref": "#/$defs/address"}
		},
		"$defs": {
			"address": {
				"type": "object",
				"required": ["city"],
				"properties": {"city": {"type": "string"}}
			}
		}
	}`)

	assert.NoError(t, v.ValidateValue(map[string]any{"primary": map[string]any{"city": "Lima"}}, s))
	assert.Error(t, v.ValidateValue(map[string]any{"primary": map[string]any{}}, s))
}

func TestValidateValue_InvalidSchema(t *testing.T) {
	v := newValidator(t)
	err := v.ValidateValue(map[string]any{}, []byte(`{not json`))
	require.Error(t, err)
	assert.Equal(t, schema.ErrContentDeserialization, schema.KindOf(err))
	assert.Contains(t, err.Error(), "invalid node schema")
}

func TestCompile_Caching(t *testing.T) {
	v := newValidator(t)
	s := []byte(`{"type": "object", "properties": {"x": {"type": "integer"}}}`)

	first, err := v.Compile(s)
	require.NoError(t, err)
	second, err := v.Compile(s)
	require.NoError(t, err)

	assert.Same(t, first, second)
	v.mu.RLock()
	assert.Len(t, v.cache, 1)
	v.mu.RUnlock()
}

func TestValidateValue_Concurrent(t *testing.T) {
	v := newValidator(t)
	schemaA := []byte(`{"type": "object", "properties": {"a": {"type": "string"}}}`)
	schemaB := []byte(`{"type": "object", "properties": {"b": {"type": "integer"}}}`)

	var wg sync.WaitGroup
	errs := make([]error, 100)
	for i := range 100 {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if idx%2 == 0 {
				errs[idx] = v.ValidateValue(map[string]any{"a": "hello"}, schemaA)
				return
			}
			errs[idx] = v.ValidateValue(map[string]any{"b": 42}, schemaB)
		}(i)
	}
	wg.Wait()

	for i, e := range errs {
		assert.NoError(t, e, "goroutine %d should not error", i)
	}
}

func TestJSONSchemaValidator_ImplementsValidator(t *testing.T) {
	var _ Validator = newValidator(t)
}
