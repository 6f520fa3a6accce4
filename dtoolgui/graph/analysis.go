package graph

import (
	"fmt"
	"sort"

	gograph "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/graph/traverse"

	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/common"
)

// Directed builds a gonum view of g. Duplicate edges collapse and self loops are dropped.
func (g *SimpleGraph) Directed() *simple.DirectedGraph {
	return g.directed(false)
}

func (g *SimpleGraph) directed(reversed bool) *simple.DirectedGraph {
	dg := simple.NewDirectedGraph()
	for i := 0; i < g.n; i++ {
		dg.AddNode(simple.Node(int64(i)))
	}
	for _, e := range g.edges {
		if e.From == e.To {
			continue
		}
		from, to := int64(e.From), int64(e.To)
		if reversed {
			from, to = to, from
		}
		dg.SetEdge(dg.NewEdge(dg.Node(from), dg.Node(to)))
	}
	return dg
}

// Reachable returns the vertices reachable from i, excluding i, in ascending order.
// With reversed set edges are followed backwards.
func (g *SimpleGraph) Reachable(i int, reversed bool) ([]int, error) {
	if i < 0 || i >= g.n {
		return nil, fmt.Errorf("%w: vertex %d in graph with %d vertices", common.ErrIndexOutOfBounds, i, g.n)
	}
	dg := g.directed(reversed)

	var out []int
	bf := traverse.BreadthFirst{
		Visit: func(n gograph.Node) {
			if id := int(n.ID()); id != i {
				out = append(out, id)
			}
		},
	}
	bf.Walk(dg, dg.Node(int64(i)), nil)
	sort.Ints(out)
	return out, nil
}

// Ancestors returns the UUIDs uuid was derived from, directly or transitively
func (d *DependencyGraph) Ancestors(uuid string) ([]string, error) {
	return d.reachable(uuid, false)
}

// Descendants returns the UUIDs derived from uuid, directly or transitively
func (d *DependencyGraph) Descendants(uuid string) ([]string, error) {
	return d.reachable(uuid, true)
}

func (d *DependencyGraph) reachable(uuid string, reversed bool) ([]string, error) {
	i, ok := d.index[uuid]
	if !ok {
		return nil, fmt.Errorf("%w: dataset %s is not in the graph", common.ErrNotFound, uuid)
	}
	idx, err := d.graph.Reachable(i, reversed)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(idx))
	for k, v := range idx {
		out[k] = d.uuids[v]
	}
	return out, nil
}

// TopologicalOrder lists the UUIDs with every parent before the datasets derived from it.
// It fails if the provenance contains a cycle.
func (d *DependencyGraph) TopologicalOrder() ([]string, error) {
	sorted, err := topo.Sort(d.graph.directed(true))
	if err != nil {
		return nil, fmt.Errorf("%w: provenance is not acyclic: %v", common.ErrMalformedResponse, err)
	}
	out := make([]string, len(sorted))
	for k, n := range sorted {
		out[k] = d.uuids[n.ID()]
	}
	return out, nil
}
