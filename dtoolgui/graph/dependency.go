package graph

import (
	"context"
	"log/slog"
	"time"

	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/common"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/lookup"
)

// VertexKind classifies dependency graph vertices
type VertexKind string

const (
	KindRoot         VertexKind = "root"
	KindDependent    VertexKind = "dependent"
	KindDoesNotExist VertexKind = "does-not-exist"
)

// Vertex property names of a dependency graph
const (
	PropUUID = "uuid"
	PropName = "name"
	PropKind = "kind"
)

// MissingName labels vertices of datasets the server did not return
const MissingName = "Dataset does not exist in database."

// Source serves the provenance records around a dataset
type Source interface {
	Graph(ctx context.Context, uuid string, dependencyKeys any) ([]lookup.DatasetInfo, error)
}

// DependencyGraph is the derivation graph around a root dataset. Edges point
// from a derived dataset to its parent.
type DependencyGraph struct {
	graph   *SimpleGraph
	index   map[string]int
	uuids   []string
	kinds   []VertexKind
	missing []string
	root    string
}

func NewDependencyGraph() *DependencyGraph {
	d := &DependencyGraph{}
	d.reset()
	return d
}

func (d *DependencyGraph) reset() {
	d.graph = NewSimpleGraph()
	d.index = make(map[string]int)
	d.uuids = nil
	d.kinds = nil
	d.missing = nil
	d.root = ""
}

// Build replaces the graph with the records the server reports for rootUUID.
// Records are added first wins; parents absent from the response become
// does-not-exist vertices and are reported by MissingUUIDs.
func (d *DependencyGraph) Build(ctx context.Context, src Source, rootUUID string, dependencyKeys any) error {
	if err := common.ValidateUUID(rootUUID); err != nil {
		return err
	}
	d.reset()

	start := time.Now()
	records, err := src.Graph(ctx, rootUUID, dependencyKeys)
	if err != nil {
		return err
	}
	d.root = rootUUID

	for _, rec := range records {
		if rec.UUID == "" {
			continue
		}
		if _, ok := d.index[rec.UUID]; ok {
			continue
		}
		kind := KindDependent
		if rec.UUID == rootUUID {
			kind = KindRoot
		}
		d.addVertex(rec.UUID, rec.Name, kind)
	}

	for _, rec := range records {
		if rec.UUID == "" || rec.DerivedFrom == nil {
			continue
		}
		child := d.index[rec.UUID]
		for _, parent := range rec.DerivedFrom {
			if !common.IsUUID(parent) {
				slog.Warn("Skipping invalid parent UUID", "dataset", rec.UUID, "derived_from", parent)
				continue
			}
			p, ok := d.index[parent]
			if !ok {
				p = d.addVertex(parent, MissingName, KindDoesNotExist)
				d.missing = append(d.missing, parent)
			}
			if err := d.graph.AddEdge(child, p); err != nil {
				return err
			}
		}
	}

	slog.Debug("Built dependency graph",
		"root", rootUUID,
		"vertices", d.graph.NumVertices(),
		"edges", d.graph.NumEdges(),
		"missing", len(d.missing),
		"duration", time.Since(start))
	return nil
}

func (d *DependencyGraph) addVertex(uuid, name string, kind VertexKind) int {
	idx := d.graph.AddVertex(map[string]any{PropUUID: uuid, PropName: name, PropKind: string(kind)})
	d.index[uuid] = idx
	d.uuids = append(d.uuids, uuid)
	d.kinds = append(d.kinds, kind)
	return idx
}

// Graph returns the underlying graph
func (d *DependencyGraph) Graph() *SimpleGraph {
	return d.graph
}

// Root returns the UUID of the last build
func (d *DependencyGraph) Root() string {
	return d.root
}

// MissingUUIDs lists parents that were referenced but not returned, in discovery order
func (d *DependencyGraph) MissingUUIDs() []string {
	return append([]string(nil), d.missing...)
}

// Index returns the vertex of uuid
func (d *DependencyGraph) Index(uuid string) (int, bool) {
	i, ok := d.index[uuid]
	return i, ok
}

// UUID returns the dataset UUID of vertex i
func (d *DependencyGraph) UUID(i int) string {
	return d.uuids[i]
}

// Kind returns the kind of vertex i
func (d *DependencyGraph) Kind(i int) VertexKind {
	return d.kinds[i]
}

// UUIDs returns the vertex UUIDs by index
func (d *DependencyGraph) UUIDs() []string {
	return append([]string(nil), d.uuids...)
}
