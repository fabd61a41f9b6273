package visualization

import (
	"fmt"
	"strings"

	"github.com/nvandessel/kuramap/internal/oscillator"
	"github.com/nvandessel/kuramap/internal/vecmath"
)

// Graph is a rendered view of the coupling graph.
type Graph struct {
	Rows  int         `json:"rows"`
	Cols  int         `json:"cols"`
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// GraphNode is one lattice unit.
type GraphNode struct {
	ID    string  `json:"id"`
	Row   int     `json:"row"`
	Col   int     `json:"col"`
	Phase float64 `json:"phase"`
}

// GraphEdge is one coupled pair, listed once with Source < Target.
type GraphEdge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Weight float64 `json:"weight"`
}

func nodeID(r, c int) string { return fmt.Sprintf("u%d_%d", r, c) }

// BuildGraph collects the units and every non-zero coupling of adj.
// phases may be nil.
func BuildGraph(rows, cols int, adj oscillator.Adjacency, phases []float64) (*Graph, error) {
	if err := checkGrid(adj.Len(), rows, cols); err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}
	if phases != nil && len(phases) != adj.Len() {
		return nil, fmt.Errorf("build graph: phases: %w", checkGrid(len(phases), rows, cols))
	}

	n := rows * cols
	g := &Graph{Rows: rows, Cols: cols, Nodes: make([]GraphNode, 0, n)}
	for i := 0; i < n; i++ {
		node := GraphNode{ID: nodeID(i/cols, i%cols), Row: i / cols, Col: i % cols}
		if phases != nil {
			node.Phase = phases[i]
		}
		g.Nodes = append(g.Nodes, node)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if w := adj.At(i, j); w != 0 {
				g.Edges = append(g.Edges, GraphEdge{
					Source: g.Nodes[i].ID,
					Target: g.Nodes[j].ID,
					Weight: w,
				})
			}
		}
	}
	return g, nil
}

// RenderDOT produces an undirected Graphviz DOT representation of the
// coupling graph. Nodes are pinned to their lattice position (for neato)
// and filled with a hue taken from their phase.
func RenderDOT(g *Graph) string {
	var b strings.Builder
	b.WriteString("graph kuramap {\n")
	b.WriteString("  node [shape=circle, style=filled, fontname=\"Helvetica\", fontsize=8];\n")
	b.WriteString("  edge [color=\"gray40\"];\n\n")

	for _, n := range g.Nodes {
		hue := vecmath.WrapPhase(n.Phase) / vecmath.TwoPi
		fmt.Fprintf(&b, "  %q [label=\"%d,%d\", pos=\"%d,%d!\", fillcolor=\"%.3f 0.600 0.950\", tooltip=\"phase=%.3f\"];\n",
			n.ID, n.Row, n.Col, n.Col, -n.Row, hue, n.Phase)
	}
	b.WriteString("\n")

	for _, e := range g.Edges {
		fmt.Fprintf(&b, "  %q -- %q [penwidth=\"%.2f\"];\n", e.Source, e.Target, 0.5+e.Weight)
	}

	b.WriteString("}\n")
	return b.String()
}
