package baseuri

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/common"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/config"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/dataset"
)

type fakeUsers struct {
	info  map[string]any
	err   error
	asked []string
}

func (f *fakeUsers) UserInfo(ctx context.Context, username string) (map[string]any, error) {
	f.asked = append(f.asked, username)
	return f.info, f.err
}

func newRegistry(t *testing.T, users UserInfoSource) (*Registry, *config.Store) {
	t.Helper()
	dir := t.TempDir()
	content := `{
  "DTOOL_S3_ENDPOINT_zbucket": "https://s3.example.org",
  "DTOOL_S3_ACCESS_KEY_ID_abucket": "key",
  "DTOOL_S3_SECRET_ACCESS_KEY_abucket": "secret",
  "DTOOL_SMB_SERVER_NAME_share": "smb.example.org",
  "DTOOL_SMB_SERVER_PORT_share": "445",
  "DTOOL_S3_DATASET_PREFIX": "global"
}`
	cfgPath := filepath.Join(dir, "dtool.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o600))
	store := config.NewStore(cfgPath, nil)
	require.NoError(t, store.Load())

	settings, err := config.LoadSettings(filepath.Join(dir, "settings.json"))
	require.NoError(t, err)
	return NewRegistry(store, settings, users), store
}

func uris(bs []BaseURI) []string {
	out := make([]string, 0, len(bs))
	for _, b := range bs {
		out = append(out, b.URI())
	}
	return out
}

func TestRegistryAllOrdering(t *testing.T) {
	ctx := context.Background()
	users := &fakeUsers{info: map[string]any{
		"username": "alice",
		"search_permissions_on_base_uris": []any{
			"s3://abucket", "s3://remote-only", 17, "smb://share",
		},
	}}
	r, _ := newRegistry(t, users)

	localB := t.TempDir()
	localA := t.TempDir()
	_, err := r.AddLocal(localB)
	require.NoError(t, err)
	_, err = r.AddLocal(localA)
	require.NoError(t, err)

	all, err := r.All(ctx, true, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"file://" + localB,
		"file://" + localA,
		"s3://abucket",
		"s3://zbucket",
		"smb://share",
		"s3://remote-only",
	}, uris(all))
	assert.Equal(t, []string{"alice"}, users.asked)

	withoutLocal, err := r.All(ctx, false, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"s3://abucket", "s3://zbucket", "smb://share"}, uris(withoutLocal))
	assert.Len(t, users.asked, 1)

	t.Run("lookup failure keeps configured endpoints", func(t *testing.T) {
		users.err = errors.New("boom")
		partial, err := r.All(ctx, false, "alice")
		assert.Error(t, err)
		assert.Len(t, partial, 3)
	})
}

func TestRegistryParams(t *testing.T) {
	r, store := newRegistry(t, nil)

	s3 := r.S3Params("abucket")
	assert.Equal(t, "key", s3.AccessKeyID)
	assert.Equal(t, "secret", s3.SecretAccessKey)
	assert.Empty(t, s3.Endpoint)
	assert.Equal(t, "global", s3.DatasetPrefix)
	assert.Equal(t, "global", r.S3Params("zbucket").DatasetPrefix)

	smb := r.SMBParams("share")
	assert.Equal(t, "smb.example.org", smb.ServerName)
	assert.Equal(t, "445", smb.ServerPort)

	var events []config.Event
	unsubscribe := store.Broker().Subscribe("dtool-config-changed", func(ev config.Event) {
		events = append(events, ev)
	})
	defer unsubscribe()

	require.NoError(t, r.SetS3Params("newbucket", S3Params{Endpoint: "https://minio", AccessKeyID: "k", SecretAccessKey: "s"}))
	require.Len(t, events, 1)
	assert.Contains(t, r.S3Names(), "newbucket")
	assert.Equal(t, "https://minio", r.S3Params("newbucket").Endpoint)
	assert.Equal(t, "global", r.S3Params("newbucket").DatasetPrefix, "empty prefix keeps the shared one")

	require.NoError(t, r.SetS3Params("newbucket", S3Params{Endpoint: "https://minio", DatasetPrefix: "datasets/"}))
	assert.Equal(t, "datasets/", r.S3Params("abucket").DatasetPrefix)
	v, ok := store.Get("DTOOL_S3_DATASET_PREFIX")
	assert.True(t, ok)
	assert.Equal(t, "datasets/", v)
	_, ok = store.Get("DTOOL_S3_DATASET_PREFIX_newbucket")
	assert.False(t, ok)

	require.Len(t, events, 2)
	require.NoError(t, r.SetSMBParams("lab", SMBParams{ServerName: "lab.example.org", Path: "/data"}))
	assert.Equal(t, []string{"lab", "share"}, r.SMBNames())

	assert.True(t, common.IsValidation(r.SetS3Params("", S3Params{})))
}

func TestRegistryLocalEntries(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegistry(t, nil)

	dir := t.TempDir()
	b, err := r.AddLocal(dir)
	require.NoError(t, err)
	assert.Equal(t, SchemeFile, b.Scheme)

	_, err = r.AddLocal(filepath.Join(dir, "missing"))
	assert.True(t, common.IsValidation(err))

	ds, err := r.CreateDataset(ctx, b, "new-dataset")
	require.NoError(t, err)
	assert.Equal(t, dataset.Proto, ds.Kind())
	assert.Equal(t, "new-dataset", ds.Info().Name)

	_, err = r.CreateDataset(ctx, b, "invalid name with spaces")
	assert.True(t, common.IsValidation(err))
	_, err = r.CreateDataset(ctx, BaseURI{Scheme: SchemeS3, Name: "abucket"}, "x")
	assert.ErrorIs(t, err, common.ErrUnsupportedScheme)

	// only local entries can be removed
	assert.True(t, common.IsValidation(r.RemoveLocal(BaseURI{Scheme: SchemeS3, Name: "abucket"})))
	require.NoError(t, r.RemoveLocal(b))
	assert.ErrorIs(t, r.RemoveLocal(b), common.ErrNotFound)

	all, err := r.All(ctx, true, "")
	require.NoError(t, err)
	assert.NotContains(t, uris(all), b.URI())
}

func TestParse(t *testing.T) {
	b, err := Parse("s3://bucket")
	require.NoError(t, err)
	assert.Equal(t, BaseURI{Scheme: SchemeS3, Name: "bucket"}, b)

	b, err = Parse("/data")
	require.NoError(t, err)
	assert.Equal(t, "file:///data", b.URI())
}
