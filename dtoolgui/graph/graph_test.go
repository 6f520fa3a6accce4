package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/common"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/lookup"
)

const (
	uuidA       = "aaaaaaaa-0000-0000-0000-000000000000"
	uuidB       = "bbbbbbbb-0000-0000-0000-000000000000"
	uuidC       = "cccccccc-0000-0000-0000-000000000000"
	uuidD       = "dddddddd-0000-0000-0000-000000000000"
	uuidMissing = "eeeeeeee-0000-0000-0000-000000000000"
)

func TestSimpleGraphBounds(t *testing.T) {
	g := NewSimpleGraph()
	for i := 0; i < 3; i++ {
		assert.Equal(t, i, g.AddVertex(nil))
	}

	tests := []struct {
		i, j int
		ok   bool
	}{
		{0, 1, true},
		{2, 2, true},
		{-1, 0, false},
		{0, -1, false},
		{3, 0, false},
		{0, 3, false},
	}
	for _, tt := range tests {
		before := g.NumEdges()
		err := g.AddEdge(tt.i, tt.j)
		if tt.ok {
			require.NoError(t, err)
			assert.Equal(t, before+1, g.NumEdges())
		} else {
			assert.ErrorIs(t, err, common.ErrIndexOutOfBounds)
			assert.Equal(t, before, g.NumEdges())
		}
	}
	assert.Equal(t, []Edge{{0, 1}, {2, 2}}, g.Edges())
}

func TestSimpleGraphProperties(t *testing.T) {
	g := NewSimpleGraph()
	g.AddVertex(map[string]any{"name": "a"})
	g.AddVertex(map[string]any{"name": "b", "kind": "root"})
	g.AddVertex(nil)

	assert.Equal(t, []any{"a", "b", nil}, g.GetVertexProperties("name"))
	assert.Equal(t, []any{nil, "root", nil}, g.GetVertexProperties("kind"))
	assert.Nil(t, g.GetVertexProperties("missing"))
	assert.Equal(t, []string{"kind", "name"}, g.VertexProperties())

	require.NoError(t, g.SetVertexProperties("position", []any{1, 2, 3}))
	v, ok := g.VertexProperty(2, "position")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
	assert.Equal(t, map[string]any{"name": "b", "kind": "root", "position": 2}, g.Vertex(1))

	assert.True(t, common.IsValidation(g.SetVertexProperties("position", []any{1})))
}

type fakeSource struct {
	records []lookup.DatasetInfo
	err     error
	keys    any
}

func (f *fakeSource) Graph(ctx context.Context, uuid string, dependencyKeys any) ([]lookup.DatasetInfo, error) {
	f.keys = dependencyKeys
	return f.records, f.err
}

func TestBuildReconciliation(t *testing.T) {
	src := &fakeSource{records: []lookup.DatasetInfo{
		{UUID: uuidA, Name: "A"},
		{UUID: uuidB, Name: "B", DerivedFrom: []string{uuidA}},
		{UUID: uuidC, Name: "C", DerivedFrom: []string{uuidMissing}},
	}}
	d := NewDependencyGraph()
	require.NoError(t, d.Build(context.Background(), src, uuidA, nil))

	g := d.Graph()
	require.Equal(t, 4, g.NumVertices())
	kinds := map[string]VertexKind{}
	for i, u := range d.UUIDs() {
		kinds[u] = d.Kind(i)
	}
	assert.Equal(t, map[string]VertexKind{
		uuidA:       KindRoot,
		uuidB:       KindDependent,
		uuidC:       KindDependent,
		uuidMissing: KindDoesNotExist,
	}, kinds)

	a, _ := d.Index(uuidA)
	b, _ := d.Index(uuidB)
	c, _ := d.Index(uuidC)
	m, _ := d.Index(uuidMissing)
	assert.Equal(t, []Edge{{b, a}, {c, m}}, g.Edges())
	assert.Equal(t, []string{uuidMissing}, d.MissingUUIDs())

	name, _ := g.VertexProperty(m, PropName)
	assert.Equal(t, MissingName, name)
	kind, _ := g.VertexProperty(a, PropKind)
	assert.Equal(t, "root", kind)
}

func TestBuildDuplicatesAndInvalidParents(t *testing.T) {
	src := &fakeSource{records: []lookup.DatasetInfo{
		{UUID: uuidA, Name: "first"},
		{UUID: uuidA, Name: "second"},
		{UUID: uuidB, DerivedFrom: []string{uuidA, "not-a-uuid", ""}},
		{UUID: uuidB, DerivedFrom: []string{uuidA}},
		{Name: "no uuid", DerivedFrom: []string{uuidA}},
	}}
	logs := captureWarnings(t)
	d := NewDependencyGraph()
	require.NoError(t, d.Build(context.Background(), src, uuidA, []string{"readme.derived_from.uuid"}))
	assert.Equal(t, []string{"readme.derived_from.uuid"}, src.keys)

	var skipped []string
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry["msg"] == "Skipping invalid parent UUID" {
			assert.Equal(t, "WARN", entry["level"])
			assert.Equal(t, uuidB, entry["dataset"])
			skipped = append(skipped, entry["derived_from"].(string))
		}
	}
	assert.Equal(t, []string{"not-a-uuid", ""}, skipped)

	g := d.Graph()
	assert.Equal(t, 2, g.NumVertices())
	name, _ := g.VertexProperty(0, PropName)
	assert.Equal(t, "first", name)
	// edges are kept per record
	assert.Equal(t, []Edge{{1, 0}, {1, 0}}, g.Edges())
	assert.Empty(t, d.MissingUUIDs())
}

// captureWarnings routes the default logger to a buffer for the rest of the test
func captureWarnings(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestBuildPurgedAncestor(t *testing.T) {
	// R derived from I derived from A, A purged from the catalog
	uuidR, uuidI := uuidD, uuidC
	src := &fakeSource{records: []lookup.DatasetInfo{
		{UUID: uuidR, DerivedFrom: []string{uuidI}},
		{UUID: uuidI, DerivedFrom: []string{uuidA}},
	}}
	d := NewDependencyGraph()
	require.NoError(t, d.Build(context.Background(), src, uuidR, nil))

	assert.Equal(t, 3, d.Graph().NumVertices())
	assert.Equal(t, []string{uuidA}, d.MissingUUIDs())
	i, ok := d.Index(uuidA)
	require.True(t, ok)
	assert.Equal(t, KindDoesNotExist, d.Kind(i))

	ancestors, err := d.Ancestors(uuidR)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{uuidI, uuidA}, ancestors)

	descendants, err := d.Descendants(uuidA)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{uuidI, uuidR}, descendants)

	order, err := d.TopologicalOrder()
	require.NoError(t, err)
	assert.Less(t, slices.Index(order, uuidA), slices.Index(order, uuidI))
	assert.Less(t, slices.Index(order, uuidI), slices.Index(order, uuidR))

	_, err = d.Ancestors(uuidB)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestBuildErrors(t *testing.T) {
	d := NewDependencyGraph()
	err := d.Build(context.Background(), &fakeSource{}, "not-a-uuid", nil)
	assert.True(t, common.IsValidation(err))

	boom := errors.Join(common.ErrTransport, errors.New("connection refused"))
	err = d.Build(context.Background(), &fakeSource{err: boom}, uuidA, nil)
	assert.ErrorIs(t, err, common.ErrTransport)
	assert.Zero(t, d.Graph().NumVertices())
}

func TestTopologicalOrderCycle(t *testing.T) {
	src := &fakeSource{records: []lookup.DatasetInfo{
		{UUID: uuidA, DerivedFrom: []string{uuidB}},
		{UUID: uuidB, DerivedFrom: []string{uuidA}},
	}}
	d := NewDependencyGraph()
	require.NoError(t, d.Build(context.Background(), src, uuidA, nil))
	_, err := d.TopologicalOrder()
	assert.Error(t, err)
}
