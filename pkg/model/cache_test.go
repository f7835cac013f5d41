package model

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func newCache(t *testing.T) *Cache {
	t.Helper()
	c, err := OpenCache(t.TempDir(), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func storeBytes(t *testing.T, c *Cache, url string, data []byte) string {
	t.Helper()
	tmp, err := c.TempFile(url)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(tmp, data, 0o644))
	path, err := c.Store(url, tmp)
	require.NoError(t, err)
	return path
}

func TestFileNameDeterministic(t *testing.T) {
	c := newCache(t)

	a := c.FileName("https://example.com/models/ship.glb")
	assert.Equal(t, a, c.FileName("https://example.com/models/ship.glb"))
	assert.NotEqual(t, a, c.FileName("https://example.com/models/boat.glb"))
	assert.Len(t, a, 64+len(".glb"))
	assert.True(t, strings.HasSuffix(a, ".glb"))
}

func TestExtensionInference(t *testing.T) {
	tests := []struct {
		url string
		ext string
	}{
		{"https://example.com/a.glb", ".glb"},
		{"https://example.com/a.GLTF", ".gltf"},
		{"https://example.com/a.obj?sig=abc123", ".obj"},
		{"https://example.com/scans/part.stl", ".stl"},
		{"https://example.com/a.usdz", ".usdz"},
		{"https://example.com/download.php", ".bin"},
		{"https://example.com/model", ".bin"},
		{"https://example.com/", ".bin"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ext, extensionFor(tt.url), tt.url)
	}
}

func TestStoreAndLookup(t *testing.T) {
	c := newCache(t)
	const url = "https://example.com/ship.glb"

	_, ok := c.Lookup(url)
	require.False(t, ok, "lookup hit on empty cache")

	path := storeBytes(t, c, url, []byte("glTF-bytes"))
	assert.Equal(t, filepath.Join(c.Dir(), c.FileName(url)), path)

	got, ok := c.Lookup(url)
	require.True(t, ok)
	assert.Equal(t, path, got)
	assert.Equal(t, 1, c.Entries())
	assert.Equal(t, int64(10), c.TotalBytes())

	// The temp file was consumed by the rename.
	partials, err := filepath.Glob(filepath.Join(c.Dir(), partialPrefix+"*"))
	require.NoError(t, err)
	assert.Empty(t, partials)
}

func TestLookupZeroByteIsMiss(t *testing.T) {
	c := newCache(t)
	const url = "https://example.com/ship.glb"

	path := storeBytes(t, c, url, []byte("data"))
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, ok := c.Lookup(url)
	assert.False(t, ok, "zero-length entry treated as valid")
	assert.Equal(t, 0, c.Entries())
}

func TestLookupSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	c1, err := OpenCache(dir, nil)
	require.NoError(t, err)
	const url = "https://example.com/ship.glb"
	path := storeBytes(t, c1, url, []byte("data"))
	require.NoError(t, c1.Close())

	// A fresh cache on the same directory finds the entry by name alone.
	c2, err := OpenCache(dir, nil)
	require.NoError(t, err)
	defer c2.Close()
	got, ok := c2.Lookup(url)
	require.True(t, ok)
	assert.Equal(t, path, got)
}

func TestClear(t *testing.T) {
	c := newCache(t)
	storeBytes(t, c, "https://example.com/a.glb", []byte("aaa"))
	storeBytes(t, c, "https://example.com/b.obj", []byte("bbb"))

	// A stray partial file is swept as well.
	_, err := c.TempFile("https://example.com/c.stl")
	require.NoError(t, err)

	require.NoError(t, c.Clear(context.Background()))

	_, ok := c.Lookup("https://example.com/a.glb")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Entries())

	left, err := os.ReadDir(c.Dir())
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestClearCanceledContext(t *testing.T) {
	c := newCache(t)
	storeBytes(t, c, "https://example.com/a.glb", []byte("aaa"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, c.Clear(ctx))

	_, ok := c.Lookup("https://example.com/a.glb")
	assert.True(t, ok, "canceled clear removed entries")
}

func TestWatcherDropsRemovedEntries(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	c, err := OpenCache(t.TempDir(), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer c.Close()

	const url = "https://example.com/ship.glb"
	path := storeBytes(t, c, url, []byte("data"))
	require.Equal(t, 1, c.Entries())

	require.NoError(t, os.Remove(path))
	assert.Eventually(t, func() bool { return c.Entries() == 0 },
		2*time.Second, 10*time.Millisecond,
		"index kept an entry for an externally removed file")

	_, ok := c.Lookup(url)
	assert.False(t, ok)
}

func TestIsCacheName(t *testing.T) {
	hash := strings.Repeat("ab", 32)
	tests := []struct {
		name string
		want bool
	}{
		{hash + ".glb", true},
		{hash + ".bin", true},
		{partialPrefix + "uuid.glb", false},
		{"README.md", false},
		{strings.Repeat("zz", 32) + ".glb", false},
		{hash, false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isCacheName(tt.name), tt.name)
	}
}
