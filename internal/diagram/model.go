package diagram

import "github.com/rendis/verdict/pkg/schema"

// DiagramModel is the intermediate representation used by all renderers.
type DiagramModel struct {
	Title  string
	Nodes  []*Node
	Edges  []Edge
	Levels [][]string
}

// Node represents a single decision node in the diagram.
type Node struct {
	ID     string
	Label  string
	Kind   schema.NodeKind
	Status *StatusOverlay
}

// Status values of a traced evaluation.
const (
	StatusExecuted = "executed"
	StatusSkipped  = "skipped"
)

// StatusOverlay carries the outcome of a traced evaluation for a node.
type StatusOverlay struct {
	Status      string
	Order       int    // execution position, executed nodes only
	Performance string // node duration as reported by the trace
}

// Edge represents a connection between two nodes. Label is the branch
// condition for edges leaving a switch node.
type Edge struct {
	From  string
	To    string
	Label string
}
