package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "cache", "lookup-cache.db"))
	require.NoError(t, err)
	defer s.Close()

	uri := "s3://bucket/11111111-2222-3333-4444-555555555555"

	_, ok, err := s.Get(ctx, uri, KindReadme)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, uri, KindReadme, []byte("description: a\n")))
	require.NoError(t, s.Put(ctx, uri, KindManifest, []byte(`{"items": {}}`)))
	require.NoError(t, s.Put(ctx, uri, KindReadme, []byte("description: b\n")))

	body, ok, err := s.Get(ctx, uri, KindReadme)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "description: b\n", string(body))

	require.NoError(t, s.Delete(ctx, uri))
	_, ok, err = s.Get(ctx, uri, KindManifest)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStorePurge(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "lookup-cache.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put(ctx, "u1", KindReadme, []byte("a")))
	require.NoError(t, s.Put(ctx, "u2", KindReadme, []byte("b")))

	n, err := s.PurgeOlderThan(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.PurgeOlderThan(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, s.Put(ctx, "u3", KindManifest, []byte("c")))
	require.NoError(t, s.Purge(ctx))
	_, ok, err := s.Get(ctx, "u3", KindManifest)
	require.NoError(t, err)
	assert.False(t, ok)
}
