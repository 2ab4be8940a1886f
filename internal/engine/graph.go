package engine

import (
	"github.com/rendis/verdict/pkg/schema"
)

// Graph is the immutable, executable form of a decision document. Built by
// Executor.Compile, it is safe to evaluate concurrently.
type Graph struct {
	Nodes    map[string]*schema.Node   // node ID → definition
	Order    []string                  // declaration order
	Incoming map[string][]*schema.Edge // node ID → edges targeting it, declaration order
	Outgoing map[string][]*schema.Edge // node ID → edges leaving it, declaration order
	Sorted   []string                  // topological order, ties by declaration order
	Levels   [][]string                // readiness levels
	Outputs  []string                  // output node IDs, declaration order

	index    map[string]int
	prepared map[string]Prepared
}

// ParseGraph validates a decision document and builds its adjacency lists,
// topological order and readiness levels. Kinds are checked by known; a nil
// known accepts every kind.
func ParseGraph(content *schema.DecisionContent, known func(schema.NodeKind) bool) (*Graph, error) {
	if content == nil {
		return nil, schema.NewError(schema.ErrContentDeserialization, "decision content is nil")
	}
	if len(content.Nodes) == 0 {
		return nil, schema.NewError(schema.ErrContentDeserialization, "decision has no nodes")
	}

	g := &Graph{
		Nodes:    make(map[string]*schema.Node, len(content.Nodes)),
		Order:    make([]string, 0, len(content.Nodes)),
		Incoming: make(map[string][]*schema.Edge, len(content.Nodes)),
		Outgoing: make(map[string][]*schema.Edge, len(content.Nodes)),
		index:    make(map[string]int, len(content.Nodes)),
	}

	// First pass: register nodes and check identities.
	for i := range content.Nodes {
		node := &content.Nodes[i]

		if node.ID == "" {
			return nil, schema.NewErrorf(schema.ErrContentDeserialization, "node at index %d has empty id", i)
		}
		if _, exists := g.Nodes[node.ID]; exists {
			return nil, schema.NewErrorf(schema.ErrContentDeserialization, "duplicate node id: %s", node.ID)
		}
		if node.Kind == "" {
			return nil, schema.NewErrorf(schema.ErrContentDeserialization, "node %s has no type", node.ID)
		}
		if known != nil && !known(node.Kind) {
			return nil, schema.NewErrorf(schema.ErrContentDeserialization, "node %s has unknown type: %s", node.ID, node.Kind)
		}

		g.Nodes[node.ID] = node
		g.index[node.ID] = i
		g.Order = append(g.Order, node.ID)
		if node.Kind == schema.NodeKindOutput {
			g.Outputs = append(g.Outputs, node.ID)
		}
	}

	// Second pass: edges must reference existing nodes.
	for i := range content.Edges {
		edge := &content.Edges[i]
		if _, ok := g.Nodes[edge.SourceID]; !ok {
			return nil, schema.NewErrorf(schema.ErrContentDeserialization, "edge %s references non-existent source node: %s", edge.ID, edge.SourceID)
		}
		if _, ok := g.Nodes[edge.TargetID]; !ok {
			return nil, schema.NewErrorf(schema.ErrContentDeserialization, "edge %s references non-existent target node: %s", edge.ID, edge.TargetID)
		}
		if edge.SourceID == edge.TargetID {
			return nil, schema.NewErrorf(schema.ErrContentDeserialization, "edge %s connects node %s to itself", edge.ID, edge.SourceID)
		}
		g.Outgoing[edge.SourceID] = append(g.Outgoing[edge.SourceID], edge)
		g.Incoming[edge.TargetID] = append(g.Incoming[edge.TargetID], edge)
	}

	// Kahn's algorithm: topological sort + cycle detection. Recursion is
	// only allowed through decision nodes, never through edges.
	inDegree := make(map[string]int, len(g.Nodes))
	for id := range g.Nodes {
		inDegree[id] = len(g.Incoming[id])
	}

	queue := make([]string, 0)
	for _, id := range g.Order {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	sorted := make([]string, 0, len(g.Nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		sorted = append(sorted, id)

		targets := make([]string, 0, len(g.Outgoing[id]))
		for _, e := range g.Outgoing[id] {
			targets = append(targets, e.TargetID)
		}
		g.sortByDeclaration(targets)

		for _, t := range targets {
			inDegree[t]--
			if inDegree[t] == 0 {
				queue = append(queue, t)
			}
		}
	}

	if len(sorted) != len(g.Nodes) {
		return nil, schema.NewError(schema.ErrContentDeserialization, "decision graph contains a cycle")
	}

	g.Sorted = sorted
	g.Levels = g.computeLevels()

	return g, nil
}

// computeLevels groups nodes into readiness levels. A node's level is one
// past the deepest of its sources, so every level only depends on earlier ones.
func (g *Graph) computeLevels() [][]string {
	depth := make(map[string]int, len(g.Nodes))

	for _, id := range g.Sorted {
		maxDep := -1
		for _, e := range g.Incoming[id] {
			if depth[e.SourceID] > maxDep {
				maxDep = depth[e.SourceID]
			}
		}
		depth[id] = maxDep + 1
	}

	maxLevel := 0
	for _, d := range depth {
		if d > maxLevel {
			maxLevel = d
		}
	}

	levels := make([][]string, maxLevel+1)
	for _, id := range g.Order {
		d := depth[id]
		levels[d] = append(levels[d], id)
	}

	return levels
}

// sortByDeclaration sorts node IDs in-place by declaration order using
// insertion sort; fan-out lists are short.
func (g *Graph) sortByDeclaration(s []string) {
	for i := 1; i < len(s); i++ {
		key := s[i]
		j := i - 1
		for j >= 0 && g.index[s[j]] > g.index[key] {
			s[j+1] = s[j]
			j--
		}
		s[j+1] = key
	}
}

// IsTerminal reports whether a node has no outgoing edges.
func (g *Graph) IsTerminal(id string) bool {
	return len(g.Outgoing[id]) == 0
}
