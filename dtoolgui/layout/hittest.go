package layout

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r2"
)

// vertexPoint is a laid out vertex in the k-d tree
type vertexPoint struct {
	Index int
	Pos   r2.Vec
}

// Compare performs axis comparisons for the k-d tree.
func (p vertexPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(vertexPoint)
	if d == 0 {
		return p.Pos.X - q.Pos.X
	}
	return p.Pos.Y - q.Pos.Y
}

func (p vertexPoint) Dims() int {
	return 2
}

// Distance returns the squared Euclidean distance, the metric kdtree expects.
func (p vertexPoint) Distance(c kdtree.Comparable) float64 {
	q, ok := c.(vertexPoint)
	if !ok {
		return math.Inf(1)
	}
	d := r2.Sub(p.Pos, q.Pos)
	return r2.Dot(d, d)
}

type vertexPoints []vertexPoint

func (v vertexPoints) Index(i int) kdtree.Comparable         { return v[i] }
func (v vertexPoints) Len() int                              { return len(v) }
func (v vertexPoints) Pivot(d kdtree.Dim) int                { return vertexPlane{vertexPoints: v, Dim: d}.Pivot() }
func (v vertexPoints) Slice(start, end int) kdtree.Interface { return v[start:end] }

type vertexPlane struct {
	kdtree.Dim
	vertexPoints
}

func (p vertexPlane) Less(i, j int) bool {
	if p.Dim == 0 {
		return p.vertexPoints[i].Pos.X < p.vertexPoints[j].Pos.X
	}
	return p.vertexPoints[i].Pos.Y < p.vertexPoints[j].Pos.Y
}

func (p vertexPlane) Pivot() int {
	return kdtree.Partition(p, kdtree.MedianOfMedians(p))
}

func (p vertexPlane) Slice(start, end int) kdtree.SortSlicer {
	p.vertexPoints = p.vertexPoints[start:end]
	return p
}

func (p vertexPlane) Swap(i, j int) {
	p.vertexPoints[i], p.vertexPoints[j] = p.vertexPoints[j], p.vertexPoints[i]
}

// Index answers point queries against a snapshot of the layout
type Index struct {
	tree *kdtree.Tree
}

// NewIndex indexes positions by vertex
func NewIndex(positions []r2.Vec) *Index {
	points := make(vertexPoints, len(positions))
	for i, p := range positions {
		points[i] = vertexPoint{Index: i, Pos: p}
	}
	if len(points) == 0 {
		return &Index{}
	}
	return &Index{tree: kdtree.New(points, false)}
}

// VertexAt returns the vertex closest to at, if it lies within radius
func (ix *Index) VertexAt(at r2.Vec, radius float64) (int, bool) {
	if ix.tree == nil {
		return -1, false
	}
	nearest, dist := ix.tree.Nearest(vertexPoint{Index: -1, Pos: at})
	if nearest == nil || dist > radius*radius {
		return -1, false
	}
	return nearest.(vertexPoint).Index, true
}

// Within returns the vertices within radius of at, nearest first
func (ix *Index) Within(at r2.Vec, radius float64) []int {
	if ix.tree == nil {
		return nil
	}
	keeper := kdtree.NewDistKeeper(radius * radius)
	ix.tree.NearestSet(keeper, vertexPoint{Index: -1, Pos: at})

	// the keeper is a max-heap holding a nil sentinel when nothing is in range
	items := make([]kdtree.ComparableDist, 0, len(keeper.Heap))
	for _, item := range keeper.Heap {
		if item.Comparable != nil {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Dist < items[j].Dist })

	out := make([]int, len(items))
	for i, item := range items {
		out[i] = item.Comparable.(vertexPoint).Index
	}
	return out
}
