package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/switchboard/pkg/domain"
)

// Overlay contains run data to highlight on the diagram.
type Overlay struct {
	Visited []string
	Current string
}

// Mermaid produces a Mermaid flowchart for g.
// Shapes follow node semantics:
// - Entry: ((Circle))
// - Decision: {Rhombus}
// - Task: [Rectangle]
// - End: ([Stadium])
func Mermaid(g *Graph, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	usesEnd := false
	for _, name := range g.order {
		node := g.nodes[name]
		safeID := sanitizeMermaidID(name)

		opener, closer := "[", "]"
		switch {
		case name == g.entry:
			opener, closer = "((", "))"
		case KindOf(node) == KindDecision:
			opener, closer = "{", "}"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, name, closer)

		arrow := "-->"
		if KindOf(node) == KindDecision {
			// Decision edges are chosen at run time.
			arrow = "-.->"
		}
		for _, to := range node.Targets() {
			if to == domain.End {
				usesEnd = true
			}
			fmt.Fprintf(&sb, "    %s %s %s\n", safeID, arrow, sanitizeMermaidID(to))
		}
	}
	if usesEnd {
		fmt.Fprintf(&sb, "    %s([\"end\"])\n", sanitizeMermaidID(domain.End))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text keeps contrast on both light and dark themes.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, name := range overlay.Visited {
			safeID := sanitizeMermaidID(name)
			if safeID != "" && !seen[safeID] {
				seen[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}
		if overlay.Current != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.Current))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_")
	return r.Replace(id)
}
