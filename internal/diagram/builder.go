package diagram

import (
	"encoding/json"
	"fmt"

	"github.com/rendis/verdict/internal/engine"
	"github.com/rendis/verdict/pkg/schema"
)

// Build constructs a DiagramModel from a decision document. When trace is
// non-nil, nodes present in it are marked executed and every other node
// skipped.
func Build(content *schema.DecisionContent, trace []schema.TraceRecord) (*DiagramModel, error) {
	g, err := engine.ParseGraph(content, nil)
	if err != nil {
		return nil, fmt.Errorf("diagram: parse graph: %w", err)
	}

	records := make(map[string]schema.TraceRecord, len(trace))
	for _, r := range trace {
		records[r.ID] = r
	}

	nodes := make([]*Node, 0, len(g.Order))
	for _, id := range g.Order {
		n := g.Nodes[id]
		node := &Node{ID: id, Label: nodeLabel(n), Kind: n.Kind}
		if trace != nil {
			node.Status = overlayStatus(id, records)
		}
		nodes = append(nodes, node)
	}

	return &DiagramModel{
		Title:  titleFromContent(content),
		Nodes:  nodes,
		Edges:  buildEdges(g, content),
		Levels: g.Levels,
	}, nil
}

// nodeLabel prefers the display name and appends the kind on a second line.
func nodeLabel(n *schema.Node) string {
	name := n.Name
	if name == "" {
		name = n.ID
	}
	return fmt.Sprintf("%s\n(%s)", name, n.Kind)
}

func overlayStatus(id string, records map[string]schema.TraceRecord) *StatusOverlay {
	r, ok := records[id]
	if !ok {
		return &StatusOverlay{Status: StatusSkipped}
	}
	return &StatusOverlay{Status: StatusExecuted, Order: r.Order, Performance: r.Performance}
}

// buildEdges converts graph edges in declaration order. Edges leaving a
// switch node through a handle are labelled with the statement condition,
// or "default" for the unconditioned statement.
func buildEdges(g *engine.Graph, content *schema.DecisionContent) []Edge {
	conditions := switchConditions(g)

	edges := make([]Edge, 0, len(content.Edges))
	for i := range content.Edges {
		e := &content.Edges[i]
		label := e.SourceHandle
		if conds, ok := conditions[e.SourceID]; ok && e.SourceHandle != "" {
			if c, ok := conds[e.SourceHandle]; ok {
				label = c
			}
		}
		edges = append(edges, Edge{From: e.SourceID, To: e.TargetID, Label: label})
	}
	return edges
}

func switchConditions(g *engine.Graph) map[string]map[string]string {
	out := make(map[string]map[string]string)
	for _, id := range g.Order {
		n := g.Nodes[id]
		if n.Kind != schema.NodeKindSwitch || len(n.Content) == 0 {
			continue
		}
		var sc schema.SwitchContent
		if json.Unmarshal(n.Content, &sc) != nil {
			continue
		}
		conds := make(map[string]string, len(sc.Statements))
		for _, st := range sc.Statements {
			if st.Condition == "" {
				conds[st.ID] = "default"
			} else {
				conds[st.ID] = st.Condition
			}
		}
		out[id] = conds
	}
	return out
}

// titleFromContent returns the "name" setting when present.
func titleFromContent(content *schema.DecisionContent) string {
	if name, ok := content.Settings["name"].(string); ok {
		return name
	}
	return ""
}
