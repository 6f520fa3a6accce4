package dataset

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/common"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/lookup"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/storage"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLocalLifecycle(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()

	ds, err := Create(storage.FileURI(base), "sim-01", "tester")
	require.NoError(t, err)
	assert.Equal(t, Proto, ds.Kind())
	assert.Nil(t, ds.Info().FrozenAt)

	src := filepath.Join(t.TempDir(), "a.txt")
	writeFile(t, src, "hello")
	id, err := ds.PutItem(ctx, src, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, storage.ItemIdentifier("a.txt"), id)

	require.NoError(t, ds.PutReadme(ctx, "description: first\n"))
	require.NoError(t, ds.Freeze(ctx))
	assert.Equal(t, Frozen, ds.Kind())
	require.NotNil(t, ds.Info().FrozenAt)
	require.NotNil(t, ds.Info().SizeInBytes)
	assert.Equal(t, int64(5), *ds.Info().SizeInBytes)

	// frozen datasets keep their items but accept metadata edits
	_, err = ds.PutItem(ctx, src, "b.txt")
	assert.ErrorIs(t, err, common.ErrFrozen)
	require.NoError(t, ds.PutTag(ctx, "raw"))
	require.NoError(t, ds.PutReadme(ctx, "description: second\n"))
	require.NoError(t, ds.Freeze(ctx))

	reopened, err := FromURI(ctx, ds.Info().URI)
	require.NoError(t, err)
	assert.Equal(t, Frozen, reopened.Kind())
	assert.Equal(t, ds.Info().UUID, reopened.Info().UUID)

	readme, err := reopened.Readme(ctx)
	require.NoError(t, err)
	assert.Equal(t, "description: second\n", readme)

	items, err := reopened.Manifest(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "a.txt", items[0].RelPath)

	p, err := reopened.GetItem(ctx, id)
	require.NoError(t, err)
	content, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
}

func TestFromURIErrors(t *testing.T) {
	ctx := context.Background()

	_, err := FromURI(ctx, "s3://bucket/11111111-2222-3333-4444-555555555555")
	assert.ErrorIs(t, err, common.ErrUnsupportedScheme)

	_, err = FromURI(ctx, storage.FileURI(t.TempDir()))
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = Create(storage.FileURI(t.TempDir()), "bad name!", "tester")
	assert.True(t, common.IsValidation(err))
}

type fakeCatalog struct {
	mu       sync.Mutex
	readme   []byte
	manifest []byte
	calls    int
}

func (f *fakeCatalog) RawReadme(ctx context.Context, uri string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.readme, nil
}

func (f *fakeCatalog) RawManifest(ctx context.Context, uri string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.manifest, nil
}

type memCache struct {
	mu     sync.Mutex
	bodies map[string][]byte
}

func (c *memCache) Get(ctx context.Context, uri, kind string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.bodies[uri+"|"+kind]
	return b, ok, nil
}

func (c *memCache) Put(ctx context.Context, uri, kind string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bodies[uri+"|"+kind] = body
	return nil
}

func remoteRecord() lookup.DatasetInfo {
	size := int64(42)
	return lookup.DatasetInfo{
		UUID:        "11111111-2222-3333-4444-555555555555",
		Name:        "remote-ds",
		BaseURI:     "s3://bucket",
		URI:         "s3://bucket/11111111-2222-3333-4444-555555555555",
		Creator:     "alice",
		CreatedAt:   1700000000.0,
		FrozenAt:    "2023-11-14T22:13:20.000000",
		SizeInBytes: &size,
		Tags:        []string{"b", "a"},
		Annotations: map[string]any{"project": "x"},
	}
}

func TestRemoteDataset(t *testing.T) {
	ctx := context.Background()
	catalog := &fakeCatalog{
		readme:   []byte(`{"description": "remote", "derived_from": [{"uuid": "aaaaaaaa-2222-3333-4444-555555555555"}]}`),
		manifest: []byte(`{"items": {"id1": {"relpath": "b.txt", "size_in_bytes": 3, "hash": "h1", "utc_timestamp": 1.5}, "id0": {"relpath": "a.txt", "size_in_bytes": 2, "hash": "h0", "utc_timestamp": 1}}}`),
	}
	cache := &memCache{bodies: map[string][]byte{}}

	ds := FromLookup(remoteRecord(), catalog, cache)
	assert.Equal(t, Remote, ds.Kind())

	info := ds.Info()
	assert.Equal(t, "alice", info.Creator)
	assert.Equal(t, int64(1700000000), info.CreatedAt.Unix())
	require.NotNil(t, info.FrozenAt)
	assert.Equal(t, int64(1700000000), info.FrozenAt.Unix())

	readme, err := ds.Readme(ctx)
	require.NoError(t, err)
	assert.Contains(t, readme, "description: remote")
	_, err = ds.Readme(ctx)
	require.NoError(t, err)

	items, err := ds.Manifest(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a.txt", items[0].RelPath)
	assert.Equal(t, int64(3), items[1].SizeInBytes)
	assert.Equal(t, "h1", items[1].Hash)
	assert.Equal(t, 2, catalog.calls)

	// a fresh dataset on the same cache never reaches the catalog
	again := FromLookup(remoteRecord(), catalog, cache)
	_, err = again.Readme(ctx)
	require.NoError(t, err)
	_, err = again.Manifest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, catalog.calls)

	tags, err := ds.Tags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tags)

	t.Run("read only", func(t *testing.T) {
		assert.ErrorIs(t, ds.PutReadme(ctx, "x: 1\n"), common.ErrReadOnly)
		assert.ErrorIs(t, ds.PutTag(ctx, "x"), common.ErrReadOnly)
		assert.ErrorIs(t, ds.DeleteTag(ctx, "a"), common.ErrReadOnly)
		assert.ErrorIs(t, ds.PutAnnotation(ctx, "k", 1), common.ErrReadOnly)
		assert.ErrorIs(t, ds.DeleteAnnotation(ctx, "project"), common.ErrReadOnly)
		assert.ErrorIs(t, ds.Freeze(ctx), common.ErrReadOnly)
		_, err := ds.PutItem(ctx, "/tmp/x", "x")
		assert.ErrorIs(t, err, common.ErrReadOnly)
	})

	_, err = ds.GetItem(ctx, "id0")
	assert.ErrorIs(t, err, common.ErrUnsupportedScheme)
}

func TestReadmeText(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"raw yaml", "description: x\n", "description: x\n"},
		{"json string", `"description: x\n"`, "description: x\n"},
		{"json object", `{"description": "x"}`, "description: x\n"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := readmeText([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadmeReferences(t *testing.T) {
	text := "description: child\n" +
		"parent: 11111111-2222-3333-4444-555555555555\n" +
		"derived_from:\n" +
		"  - uuid: aaaaaaaa-2222-3333-4444-555555555555\n" +
		"    name: other\n" +
		"not_a_uuid: 11111111-2222-3333-4444\n"

	refs, err := ReadmeReferences(text)
	require.NoError(t, err)
	require.Len(t, refs, 2)

	assert.Equal(t, "parent", refs[0].Path)
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", refs[0].UUID)
	assert.Equal(t, 2, refs[0].Line)

	assert.Equal(t, "derived_from[0].uuid", refs[1].Path)
	assert.Equal(t, 4, refs[1].Line)

	refs, err = ReadmeReferences("")
	require.NoError(t, err)
	assert.Empty(t, refs)

	_, err = ReadmeReferences("a: [1, 2\n")
	assert.True(t, common.IsValidation(err))
}

func TestLintReadme(t *testing.T) {
	long := "description: " + "word " + "word word word word word word word word word word word word word word word\n"

	tests := []struct {
		name  string
		text  string
		rules []string
	}{
		{"clean", "description: fine\nproject: x\n", nil},
		{"trailing spaces", "description: x  \n", []string{"trailing-spaces"}},
		{"no final newline", "description: x", []string{"new-line-at-end-of-file"}},
		{"duplicate key", "a: 1\nb: 2\na: 3\n", []string{"key-duplicates"}},
		{"truthy", "published: yes\n", []string{"truthy"}},
		{"line length", long, []string{"line-length"}},
		{"long url is fine", "url: https://example.com/aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa\n", nil},
		{"syntax", "a: [1, 2\n", []string{"syntax"}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			var rules []string
			for _, p := range LintReadme(tt.text) {
				rules = append(rules, p.Rule)
			}
			assert.Equal(t, tt.rules, rules)
		})
	}

	problems := LintReadme("a: 1\na: 2\n")
	require.Len(t, problems, 1)
	assert.Equal(t, 2, problems[0].Line)
	assert.Equal(t, LevelError, problems[0].Level)
}

func TestTagIndex(t *testing.T) {
	ti := NewTagIndex()
	ti.Add("raw", "simulation")
	ti.Add("raw")
	ti.Add()
	ti.Add("simulation", "raw", "final")

	assert.Equal(t, 4, ti.Len())
	assert.Equal(t, []string{"final", "raw", "simulation"}, ti.Tags())
	assert.Equal(t, uint64(3), ti.Count("raw"))
	assert.Zero(t, ti.Count("missing"))

	assert.Equal(t, []uint32{0, 1, 2, 3}, ti.Filter())
	assert.Equal(t, []uint32{0, 1, 3}, ti.Filter("raw"))
	assert.Equal(t, []uint32{0, 3}, ti.Filter("raw", "simulation"))
	assert.Empty(t, ti.Filter("raw", "missing"))
	assert.Empty(t, ti.Filter("missing"))
}

func TestListLocalAndTagIndex(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	baseURI := storage.FileURI(base)

	for _, name := range []string{"zeta", "alpha", "mid"} {
		ds, err := Create(baseURI, name, "tester")
		require.NoError(t, err)
		if name != "mid" {
			require.NoError(t, ds.PutTag(ctx, "keep"))
		}
	}
	require.NoError(t, os.MkdirAll(filepath.Join(base, "not-a-dataset"), 0o755))

	list, err := ListLocal(ctx, baseURI)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "alpha", list[0].Info().Name)
	assert.Equal(t, "mid", list[1].Info().Name)
	assert.Equal(t, "zeta", list[2].Info().Name)

	ti := IndexTags(list, TagsOf(ctx))
	assert.Equal(t, []uint32{0, 2}, ti.Filter("keep"))

	_, err = ListLocal(ctx, "s3://bucket")
	assert.ErrorIs(t, err, common.ErrUnsupportedScheme)
}

func TestPutItemsFromDirectory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".dtoolignore"), "*.log\nscratch/\n")
	writeFile(t, filepath.Join(dir, "data.csv"), "1,2\n")
	writeFile(t, filepath.Join(dir, "run.log"), "noise")
	writeFile(t, filepath.Join(dir, "sub", "result.txt"), "42")
	writeFile(t, filepath.Join(dir, "scratch", "tmp.txt"), "tmp")

	ds, err := Create(storage.FileURI(t.TempDir()), "from-dir", "tester")
	require.NoError(t, err)

	ids, err := PutItemsFromDirectory(ctx, ds, dir)
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	items, err := ds.Manifest(ctx)
	require.NoError(t, err)
	var relpaths []string
	for _, it := range items {
		relpaths = append(relpaths, it.RelPath)
	}
	assert.Equal(t, []string{"data.csv", "sub/result.txt"}, relpaths)

	t.Run("download", func(t *testing.T) {
		downloads := t.TempDir()
		id := storage.ItemIdentifier("sub/result.txt")

		p, err := DownloadItem(ctx, ds, id, downloads)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(downloads, id, "result.txt"), p)
		content, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, "42", string(content))

		again, err := DownloadItem(ctx, ds, id, downloads)
		require.NoError(t, err)
		assert.Equal(t, p, again)

		_, err = DownloadItem(ctx, ds, "missing", downloads)
		assert.ErrorIs(t, err, common.ErrNotFound)
	})
}
