package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rendis/verdict/pkg/schema"
)

const decisionSchemaURL = "https://verdict.dev/schemas/decision.json"

// decisionSchemaJSON describes the shape of a decision document. Graph rules
// JSON Schema cannot express (unique IDs, resolvable edges, acyclicity) are
// checked when the graph is compiled.
const decisionSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://verdict.dev/schemas/decision.json",
  "type": "object",
  "required": ["nodes"],
  "properties": {
    "nodes": {
      "type": "array",
      "minItems": 1,
      "items": { "$ref": "#/$defs/node" }
    },
    "edges": {
      "type": ["array", "null"],
      "items": { "$ref": "#/$defs/edge" }
    },
    "settings": { "type": ["object", "null"] }
  },
  "$defs": {
    "node": {
      "type": "object",
      "required": ["id", "type"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "name": { "type": "string" },
        "type": { "type": "string", "minLength": 1 },
        "content": {},
        "position": {
          "type": ["object", "null"],
          "properties": {
            "x": { "type": "number" },
            "y": { "type": "number" }
          }
        }
      }
    },
    "edge": {
      "type": "object",
      "required": ["sourceId", "targetId"],
      "properties": {
        "id": { "type": "string" },
        "sourceId": { "type": "string", "minLength": 1 },
        "targetId": { "type": "string", "minLength": 1 },
        "sourceHandle": { "type": "string" },
        "targetHandle": { "type": "string" }
      }
    }
  }
}`

// JSONSchemaValidator implements Validator. It is safe for concurrent use.
type JSONSchemaValidator struct {
	decisionSchema *jsonschema.Schema

	// mu guards the cache of node schemas.
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}

// NewJSONSchemaValidator creates a validator with the decision schema pre-compiled.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	c := newCompiler()

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(decisionSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal decision schema: %w", err)
	}
	if err := c.AddResource(decisionSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("add decision schema resource: %w", err)
	}
	compiled, err := c.Compile(decisionSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile decision schema: %w", err)
	}

	return &JSONSchemaValidator{
		decisionSchema: compiled,
		cache:          make(map[string]*jsonschema.Schema),
	}, nil
}

// ValidateContent validates a raw JSON decision document.
func (v *JSONSchemaValidator) ValidateContent(raw []byte) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return schema.NewError(schema.ErrContentDeserialization, "decision content is empty")
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return schema.NewErrorf(schema.ErrContentDeserialization, "decision content is not valid JSON: %v", err).WithCause(err)
	}
	if err := v.decisionSchema.Validate(doc); err != nil {
		return toEngineError(schema.ErrContentDeserialization, err)
	}
	return nil
}

// ValidateDecision validates an already decoded decision document.
func (v *JSONSchemaValidator) ValidateDecision(content *schema.DecisionContent) error {
	if content == nil {
		return schema.NewError(schema.ErrContentDeserialization, "decision content is nil")
	}
	doc, err := toJSONValue(content)
	if err != nil {
		return schema.NewError(schema.ErrContentDeserialization, "failed to serialize decision content").WithCause(err)
	}
	if err := v.decisionSchema.Validate(doc); err != nil {
		return toEngineError(schema.ErrContentDeserialization, err)
	}
	return nil
}

// ValidateValue validates a node value against a JSON Schema given as raw
// bytes. An empty schema accepts everything. Violations are node execution
// errors; a schema that does not compile is a content error.
func (v *JSONSchemaValidator) ValidateValue(value any, valueSchema []byte) error {
	if len(bytes.TrimSpace(valueSchema)) == 0 {
		return nil
	}

	compiled, err := v.Compile(valueSchema)
	if err != nil {
		return err
	}

	doc, err := toJSONValue(value)
	if err != nil {
		return schema.NewError(schema.ErrNodeExecution, "failed to serialize value").WithCause(err)
	}
	if err := compiled.Validate(doc); err != nil {
		return toEngineError(schema.ErrNodeExecution, err)
	}
	return nil
}

// Compile returns a cached compiled schema or compiles and caches a new one.
// Node handlers call it at prepare time so bad schemas surface on construct.
func (v *JSONSchemaValidator) Compile(schemaBytes []byte) (*jsonschema.Schema, error) {
	key := string(schemaBytes)

	v.mu.RLock()
	if cached, ok := v.cache[key]; ok {
		v.mu.RUnlock()
		return cached, nil
	}
	v.mu.RUnlock()

	v.mu.Lock()
	defer v.mu.Unlock()

	// Double-check after acquiring write lock.
	if cached, ok := v.cache[key]; ok {
		return cached, nil
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(key))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrContentDeserialization, "invalid node schema: %v", err).WithCause(err)
	}

	// Each dynamic schema gets its own compiler and URL to avoid resource collisions.
	url := fmt.Sprintf("verdict://node-schema/%d", len(v.cache))
	c := newCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, schema.NewErrorf(schema.ErrContentDeserialization, "invalid node schema: %v", err).WithCause(err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrContentDeserialization, "invalid node schema: %v", err).WithCause(err)
	}

	v.cache[key] = compiled
	return compiled, nil
}

func newCompiler() *jsonschema.Compiler {
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	return c
}

// toJSONValue round-trips a Go value through JSON so numbers become
// json.Number, as the jsonschema library expects.
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(b))
}

// toEngineError flattens a jsonschema.ValidationError into an EngineError
// listing each leaf violation with its instance location.
func toEngineError(kind schema.ErrorKind, err error) *schema.EngineError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(kind, err.Error()).WithCause(err)
	}

	violations := collectViolations(verr)
	switch len(violations) {
	case 0:
		return schema.NewError(kind, verr.Error())
	case 1:
		return schema.NewError(kind, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	default:
		return schema.NewErrorf(kind, "validation failed with %d errors: %s", len(violations), strings.Join(violations, "; ")).
			WithDetails(map[string]any{"violations": violations})
	}
}

func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}

var _ Validator = (*JSONSchemaValidator)(nil)
