// Package graphfmt renders dependency graphs as Graphviz DOT or Mermaid text.
package graphfmt

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/starford/codeintel/internal/query"
)

// Format names accepted by Render.
const (
	FormatDOT     = "dot"
	FormatMermaid = "mermaid"
)

// Render dispatches on format.
func Render(format string, g *query.DependencyGraph) (string, error) {
	switch format {
	case FormatDOT:
		return DOT(g), nil
	case FormatMermaid:
		return Mermaid(g), nil
	default:
		return "", fmt.Errorf("graphfmt: unknown format %q", format)
	}
}

var dotEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// DOT renders g as a directed Graphviz graph. Unresolved edges are dashed.
func DOT(g *query.DependencyGraph) string {
	var b strings.Builder
	b.WriteString("digraph G {\n")
	b.WriteString("  rankdir=TB;\n")
	b.WriteString("  node [shape=box, style=rounded];\n")

	for _, n := range g.Nodes {
		id := dotEscaper.Replace(n.Name)
		label := id
		if n.Layer != "" {
			label = id + `\n` + dotEscaper.Replace(n.Layer)
		}
		fmt.Fprintf(&b, "  \"%s\" [label=\"%s\"];\n", id, label)
	}
	for _, e := range g.Edges {
		attrs := ""
		if !e.Resolved {
			attrs = " [style=dashed]"
		}
		fmt.Fprintf(&b, "  \"%s\" -> \"%s\"%s;\n", dotEscaper.Replace(e.From), dotEscaper.Replace(e.To), attrs)
	}
	b.WriteString("}")
	return b.String()
}

var (
	unsafeID       = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
	mermaidEscaper = strings.NewReplacer(`"`, "&quot;", "[", "&#91;", "]", "&#93;")
)

func safeID(id string) string {
	return unsafeID.ReplaceAllString(id, "_")
}

// Mermaid renders g as a top-down flowchart. Nodes without edges are listed
// after the edges. Unresolved edges use a dotted arrow.
func Mermaid(g *query.DependencyGraph) string {
	var b strings.Builder
	b.WriteString("graph TD")

	connected := make(map[string]struct{})
	for _, e := range g.Edges {
		arrow := "-->"
		if !e.Resolved {
			arrow = "-.->"
		}
		fmt.Fprintf(&b, "\n  %s[\"%s\"] %s %s[\"%s\"]",
			safeID(e.From), mermaidEscaper.Replace(e.From), arrow, safeID(e.To), mermaidEscaper.Replace(e.To))
		connected[e.From] = struct{}{}
		connected[e.To] = struct{}{}
	}
	for _, n := range g.Nodes {
		if _, ok := connected[n.Name]; ok {
			continue
		}
		fmt.Fprintf(&b, "\n  %s[\"%s\"]", safeID(n.Name), mermaidEscaper.Replace(n.Name))
	}
	return b.String()
}
