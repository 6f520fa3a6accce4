package graph

import (
	"fmt"
	"sort"

	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/common"
)

// Edge is a directed edge between vertex indices
type Edge struct {
	From int
	To   int
}

// SimpleGraph is a directed multigraph. Vertices are indices 0..n-1; their
// properties are stored column-wise, one slice per property name.
type SimpleGraph struct {
	n     int
	edges []Edge
	props map[string][]any
}

func NewSimpleGraph() *SimpleGraph {
	return &SimpleGraph{props: make(map[string][]any)}
}

// NumVertices returns the vertex count
func (g *SimpleGraph) NumVertices() int {
	return g.n
}

// NumEdges returns the edge count, duplicates included
func (g *SimpleGraph) NumEdges() int {
	return len(g.edges)
}

// AddVertex appends a vertex and returns its index. Properties the new vertex
// does not set are nil in their columns.
func (g *SimpleGraph) AddVertex(properties map[string]any) int {
	idx := g.n
	g.n++
	for name, col := range g.props {
		g.props[name] = append(col, nil)
	}
	for name, value := range properties {
		col, ok := g.props[name]
		if !ok {
			col = make([]any, g.n)
		}
		col[idx] = value
		g.props[name] = col
	}
	return idx
}

// AddEdge adds the edge i -> j
func (g *SimpleGraph) AddEdge(i, j int) error {
	if i < 0 || i >= g.n || j < 0 || j >= g.n {
		return fmt.Errorf("%w: edge (%d, %d) in graph with %d vertices", common.ErrIndexOutOfBounds, i, j, g.n)
	}
	g.edges = append(g.edges, Edge{From: i, To: j})
	return nil
}

// SetVertexProperties replaces the column name; values must have one entry per vertex
func (g *SimpleGraph) SetVertexProperties(name string, values []any) error {
	if len(values) != g.n {
		return common.NewValidationError("vertex properties", name,
			fmt.Sprintf("has %d values for %d vertices", len(values), g.n))
	}
	g.props[name] = append([]any(nil), values...)
	return nil
}

// GetVertexProperties returns a copy of the column name, or nil if no vertex has it
func (g *SimpleGraph) GetVertexProperties(name string) []any {
	col, ok := g.props[name]
	if !ok {
		return nil
	}
	return append([]any(nil), col...)
}

// VertexProperty returns one property of vertex i
func (g *SimpleGraph) VertexProperty(i int, name string) (any, bool) {
	col, ok := g.props[name]
	if !ok || i < 0 || i >= g.n {
		return nil, false
	}
	return col[i], col[i] != nil
}

// Edges returns the edges in insertion order
func (g *SimpleGraph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// VertexProperties returns the property names, sorted
func (g *SimpleGraph) VertexProperties() []string {
	names := make([]string, 0, len(g.props))
	for name := range g.props {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Vertex returns all set properties of vertex i
func (g *SimpleGraph) Vertex(i int) map[string]any {
	out := make(map[string]any)
	if i < 0 || i >= g.n {
		return out
	}
	for name, col := range g.props {
		if col[i] != nil {
			out[name] = col[i]
		}
	}
	return out
}
