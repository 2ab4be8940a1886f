package schema

import "encoding/json"

// DecisionContent is the JSON-serializable decision graph document.
type DecisionContent struct {
	Nodes    []Node         `json:"nodes"`
	Edges    []Edge         `json:"edges"`
	Settings map[string]any `json:"settings,omitempty"`
}

// Node is a single typed unit of computation in a decision graph.
type Node struct {
	ID       string          `json:"id"`
	Name     string          `json:"name,omitempty"`
	Kind     NodeKind        `json:"type"`
	Content  json.RawMessage `json:"content,omitempty"`
	Position *Position       `json:"position,omitempty"`
}

// Position is the editor placement of a node. It has no execution meaning.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Edge routes the output of one node into the input of another.
type Edge struct {
	ID           string `json:"id"`
	SourceID     string `json:"sourceId"`
	TargetID     string `json:"targetId"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// NodeKind enumerates the node types of the decision catalog.
type NodeKind string

const (
	NodeKindInput         NodeKind = "inputNode"
	NodeKindOutput        NodeKind = "outputNode"
	NodeKindExpression    NodeKind = "expressionNode"
	NodeKindDecisionTable NodeKind = "decisionTableNode"
	NodeKindSwitch        NodeKind = "switchNode"
	NodeKindFunction      NodeKind = "functionNode"
	NodeKindCustom        NodeKind = "customNode"
	NodeKindHTTPRequest   NodeKind = "httpRequestNode"
	NodeKindDecision      NodeKind = "decisionNode"
)

// Transform holds the input selection and pass-through flags shared by
// several node kinds.
type Transform struct {
	InputField  string `json:"inputField,omitempty"`  // jq query applied to the node input
	PassThrough bool   `json:"passThrough,omitempty"` // merge node input into output
}

// SchemaContent is the content of input and output nodes.
type SchemaContent struct {
	Schema json.RawMessage `json:"schema,omitempty"`
}

// ExpressionContent is the content of expression nodes.
type ExpressionContent struct {
	Transform
	Expressions []Expression `json:"expressions"`
}

// Expression assigns the result of Value to the (possibly dotted) Key.
type Expression struct {
	ID    string `json:"id"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

// HitPolicy selects how many matching rules or statements contribute.
type HitPolicy string

const (
	HitPolicyFirst   HitPolicy = "first"
	HitPolicyCollect HitPolicy = "collect"
)

// DecisionTableContent is the content of decision table nodes.
type DecisionTableContent struct {
	Transform
	HitPolicy HitPolicy           `json:"hitPolicy,omitempty"`
	Inputs    []TableColumn       `json:"inputs"`
	Outputs   []TableColumn       `json:"outputs"`
	Rules     []map[string]string `json:"rules"`
}

// TableColumn describes one input or output column of a decision table.
type TableColumn struct {
	ID    string `json:"id"`
	Field string `json:"field,omitempty"`
	Name  string `json:"name,omitempty"`
}

// SwitchContent is the content of switch nodes.
type SwitchContent struct {
	HitPolicy  HitPolicy         `json:"hitPolicy,omitempty"`
	Statements []SwitchStatement `json:"statements"`
}

// SwitchStatement is one branch of a switch node. An empty Condition is the
// default branch.
type SwitchStatement struct {
	ID        string `json:"id"`
	Condition string `json:"condition,omitempty"`
}

// FunctionContent is the v2 content of function nodes. The v1 content is a
// bare JSON string holding the script source.
type FunctionContent struct {
	Source    string `json:"source"`
	OmitNodes bool   `json:"omitNodes,omitempty"`
}

// CustomContent is the content of custom nodes, dispatched to the embedder.
type CustomContent struct {
	Kind   string          `json:"kind"`
	Config json.RawMessage `json:"config,omitempty"`
}

// HTTPRequestContent is the content of outbound HTTP request nodes.
type HTTPRequestContent struct {
	Method        string            `json:"method,omitempty"`
	URL           string            `json:"url"`
	Headers       map[string]string `json:"headers,omitempty"`
	Body          any               `json:"body,omitempty"`
	BodyFromInput bool              `json:"bodyFromInput,omitempty"`
}

// SubDecisionContent is the content of decision nodes, which evaluate another
// decision resolved by key.
type SubDecisionContent struct {
	Transform
	Key string `json:"key"`
}
