package diagram

import (
	"fmt"
	"strings"

	"github.com/rendis/verdict/pkg/schema"
)

// RenderMermaid renders a DiagramModel as a Mermaid flowchart string.
func RenderMermaid(model *DiagramModel) string {
	var b strings.Builder

	b.WriteString("graph TD\n")

	if model.Title != "" {
		b.WriteString(fmt.Sprintf("    %%%% %s\n", model.Title))
	}

	for _, node := range model.Nodes {
		b.WriteString(fmt.Sprintf("    %s\n", mermaidNodeDef(node)))
	}

	for _, edge := range model.Edges {
		label := ""
		if edge.Label != "" {
			label = fmt.Sprintf("|%s|", mermaidEscapeLabel(edge.Label))
		}
		b.WriteString(fmt.Sprintf("    %s -->%s %s\n",
			mermaidSafeID(edge.From), label, mermaidSafeID(edge.To)))
	}

	// Status classes only matter for traced models.
	traced := false
	for _, node := range model.Nodes {
		if node.Status != nil {
			traced = true
			break
		}
	}
	if !traced {
		return b.String()
	}

	b.WriteString("\n")
	b.WriteString("    classDef executed fill:#2d6a2d,stroke:#1a4a1a,color:#fff\n")
	b.WriteString("    classDef skipped fill:#4a4a4a,stroke:#333,color:#aaa,stroke-dasharray:5 5\n")
	for _, node := range model.Nodes {
		if node.Status != nil {
			b.WriteString(fmt.Sprintf("    class %s %s\n", mermaidSafeID(node.ID), node.Status.Status))
		}
	}

	return b.String()
}

// mermaidNodeDef returns a Mermaid node definition with the appropriate shape.
func mermaidNodeDef(node *Node) string {
	id := mermaidSafeID(node.ID)
	label := mermaidEscapeLabel(firstLine(node.Label))

	switch node.Kind {
	case schema.NodeKindInput, schema.NodeKindOutput:
		return fmt.Sprintf("%s([%q])", id, label)
	case schema.NodeKindSwitch:
		return fmt.Sprintf("%s{%q}", id, label)
	case schema.NodeKindDecisionTable:
		return fmt.Sprintf("%s[(%q)]", id, label)
	case schema.NodeKindDecision:
		return fmt.Sprintf("%s[[%q]]", id, label)
	case schema.NodeKindFunction, schema.NodeKindCustom, schema.NodeKindHTTPRequest:
		return fmt.Sprintf("%s{{%q}}", id, label)
	default: // expression
		return fmt.Sprintf("%s[%q]", id, label)
	}
}

// mermaidSafeID converts a node ID to a Mermaid-safe identifier.
// Replaces dots, dashes and spaces with underscores.
func mermaidSafeID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", " ", "_")
	return r.Replace(id)
}

// mermaidEscapeLabel escapes characters that end a Mermaid label or edge text.
func mermaidEscapeLabel(s string) string {
	r := strings.NewReplacer(`"`, "#quot;", "|", "#124;")
	return r.Replace(s)
}
