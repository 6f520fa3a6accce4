package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/common"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/config"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/dataset"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/storage"
)

const (
	testToken = "cli-token"
	uuidRoot  = "11111111-2222-3333-4444-555555555555"
	uuidGone  = "99999999-8888-7777-6666-555555555555"
)

type env struct {
	config   string
	settings string
}

func newEnv(t *testing.T, values map[string]string) env {
	t.Helper()
	color.NoColor = true
	t.Setenv("DTOOL_LOOKUP_GUI_CACHE_ENABLED", "false")

	dir := t.TempDir()
	e := env{
		config:   filepath.Join(dir, "dtool.json"),
		settings: filepath.Join(dir, "settings.json"),
	}
	if values != nil {
		data, err := json.Marshal(values)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(e.config, data, 0o644))
	}
	return e
}

func (e env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", e.config, "--settings", e.settings, "-q"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestConfigCommands(t *testing.T) {
	e := newEnv(t, nil)

	_, err := e.run(t, "config", "set", "DTOOL_S3_ENDPOINT_bucket", "https://s3.example.org")
	require.NoError(t, err)
	_, err = e.run(t, "config", "set", "DTOOL_S3_SECRET_ACCESS_KEY_bucket", "hunter2")
	require.NoError(t, err)

	out, err := e.run(t, "config", "get", "DTOOL_S3_ENDPOINT_bucket")
	require.NoError(t, err)
	assert.Equal(t, "https://s3.example.org\n", out)

	out, err = e.run(t, "config", "list", "--prefix", "DTOOL_S3_")
	require.NoError(t, err)
	assert.Contains(t, out, "DTOOL_S3_ENDPOINT_bucket=https://s3.example.org")
	assert.NotContains(t, out, "hunter2")

	_, err = e.run(t, "config", "unset", "DTOOL_S3_ENDPOINT_bucket")
	require.NoError(t, err)
	_, err = e.run(t, "config", "get", "DTOOL_S3_ENDPOINT_bucket")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDatasetWorkflow(t *testing.T) {
	e := newEnv(t, nil)
	base, archive, items := t.TempDir(), t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(items, "data.csv"), []byte("a,b\n1,2\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(items, "debug.log"), []byte("noise"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(items, ".dtoolignore"), []byte("*.log\n"), 0o644))

	out, err := e.run(t, "base-uris", "add", base)
	require.NoError(t, err)
	assert.Contains(t, out, storage.FileURI(base))

	_, err = e.run(t, "dataset", "create", storage.FileURI(base), "sim-01")
	require.NoError(t, err)
	uri := storage.FileURI(filepath.Join(base, "sim-01"))

	out, err = e.run(t, "dataset", "put-items", uri, items)
	require.NoError(t, err)
	assert.Contains(t, out, "Added 1 items")

	_, err = e.run(t, "dataset", "tag", uri, "raw")
	require.NoError(t, err)
	_, err = e.run(t, "dataset", "freeze", uri)
	require.NoError(t, err)

	out, err = e.run(t, "ls", storage.FileURI(base))
	require.NoError(t, err)
	assert.Contains(t, out, "sim-01")
	assert.Contains(t, out, "frozen")

	out, err = e.run(t, "copy", uri, storage.FileURI(archive))
	require.NoError(t, err)
	assert.Contains(t, out, "Copied sim-01")

	out, err = e.run(t, "copy", uri, storage.FileURI(archive))
	require.NoError(t, err)
	assert.Contains(t, out, "Resumed sim-01")

	out, err = e.run(t, "ls", storage.FileURI(archive), "--tag", "raw")
	require.NoError(t, err)
	assert.Contains(t, out, "sim-01")

	out, err = e.run(t, "show", storage.FileURI(filepath.Join(archive, "sim-01")), "--manifest", "--no-lint")
	require.NoError(t, err)
	assert.Contains(t, out, "data.csv")
	assert.NotContains(t, out, "debug.log")

	_, err = e.run(t, "ls", "s3://bucket")
	assert.ErrorIs(t, err, common.ErrUnsupportedScheme)
}

func newLookupServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	authorized := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer "+testToken {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next(w, r)
		}
	}
	mux.HandleFunc("/graph/lookup/", authorized(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"uuid": "` + uuidRoot + `", "name": "root", "derived_from": ["` + uuidGone + `"]}
		]`))
	}))
	mux.HandleFunc("/dataset/search", authorized(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Pagination", `{"total": 1, "total_pages": 1, "first_page": 1, "last_page": 1, "page": 1}`)
		_, _ = w.Write([]byte(`[{"uuid": "` + uuidRoot + `", "name": "root", "base_uri": "s3://bucket", "uri": "s3://bucket/` + uuidRoot + `"}]`))
	}))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGraphCommand(t *testing.T) {
	srv := newLookupServer(t)
	e := newEnv(t, map[string]string{
		config.KeyLookupServerURL:   srv.URL,
		config.KeyLookupServerToken: testToken,
	})

	out, err := e.run(t, "graph", uuidRoot, "--iterations", "5000")
	require.NoError(t, err)
	assert.Contains(t, out, "root")
	assert.Contains(t, out, "does-not-exist")
	assert.Contains(t, out, "0 -> 1")
	assert.Contains(t, out, "not in database: "+uuidGone)
}

func TestSearchCommand(t *testing.T) {
	srv := newLookupServer(t)
	e := newEnv(t, map[string]string{
		config.KeyLookupServerURL:   srv.URL,
		config.KeyLookupServerToken: testToken,
	})

	out, err := e.run(t, "search", "root")
	require.NoError(t, err)
	assert.Contains(t, out, uuidRoot)
	assert.Contains(t, out, "Page 1 of 1")
}

func TestParseSort(t *testing.T) {
	fields, order, err := parseSort([]string{"name", "created_at:desc", "uri:ASC"})
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "created_at", "uri"}, fields)
	assert.Equal(t, []int{1, -1, 1}, order)

	_, _, err = parseSort([]string{"name:sideways"})
	assert.True(t, common.IsValidation(err))
}

func TestHighlightReferences(t *testing.T) {
	readme := "description: x\nparent: " + uuidRoot
	text := highlightReferences(readme, []dataset.Reference{{Line: 2, UUID: uuidRoot}})
	assert.Equal(t, readme+"\n", text)
}
