package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDiskCache(t *testing.T, dir string) *PersistentTileCache {
	t.Helper()
	c, err := NewPersistentTileCache(dir, 1, 30)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestPersistentCacheSetGet(t *testing.T) {
	dir := t.TempDir()
	c := newDiskCache(t, dir)

	require.NoError(t, c.Set("maptiler", 14, 9500, 6800, "jpg", []byte("tile-bytes")))

	data, ok := c.Get(BuildKey("maptiler", 14, 9500, 6800))
	require.True(t, ok)
	assert.Equal(t, []byte("tile-bytes"), data)

	_, err := os.Stat(filepath.Join(dir, "maptiler", "14", "9500", "6800.jpg"))
	assert.NoError(t, err)

	entries, size, _ := c.Stats()
	assert.Equal(t, 1, entries)
	assert.Equal(t, int64(len("tile-bytes")), size)
}

func TestPersistentCacheSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	first, err := NewPersistentTileCache(dir, 1, 30)
	require.NoError(t, err)
	require.NoError(t, first.Set("maptiler", 3, 4, 5, "png", []byte("abc")))
	require.NoError(t, first.Close())

	second := newDiskCache(t, dir)
	data, ok := second.Get(BuildKey("maptiler", 3, 4, 5))
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), data)
}

func TestPersistentCacheRebuildsMissingIndex(t *testing.T) {
	dir := t.TempDir()
	tileDir := filepath.Join(dir, "maptiler", "7", "8")
	require.NoError(t, os.MkdirAll(tileDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(tileDir, "9.jpg"), []byte("xyz"), 0644))

	c := newDiskCache(t, dir)
	data, ok := c.Get(BuildKey("maptiler", 7, 8, 9))
	require.True(t, ok)
	assert.Equal(t, []byte("xyz"), data)
}

func TestPersistentCacheClear(t *testing.T) {
	c := newDiskCache(t, t.TempDir())
	require.NoError(t, c.Set("maptiler", 1, 1, 1, "jpg", []byte("a")))
	require.NoError(t, c.Clear())

	_, ok := c.Get(BuildKey("maptiler", 1, 1, 1))
	assert.False(t, ok)
	entries, size, _ := c.Stats()
	assert.Zero(t, entries)
	assert.Zero(t, size)
}

func TestTileCacheLayers(t *testing.T) {
	disk := newDiskCache(t, t.TempDir())
	tc, err := NewTileCache(disk, 2)
	require.NoError(t, err)

	require.NoError(t, tc.Set("maptiler", 15, 1, 2, "jpg", []byte("one")))

	data, ok := tc.Get("maptiler", 15, 1, 2)
	require.True(t, ok)
	assert.Equal(t, []byte("one"), data)

	// A disk-only tile is promoted into memory on first read.
	require.NoError(t, disk.Set("maptiler", 15, 3, 4, "jpg", []byte("two")))
	data, ok = tc.Get("maptiler", 15, 3, 4)
	require.True(t, ok)
	assert.Equal(t, []byte("two"), data)

	_, _, _, mem := tc.Stats()
	assert.Equal(t, 2, mem)
}

func TestTileCacheMemoryOnly(t *testing.T) {
	tc, err := NewTileCache(nil, 0)
	require.NoError(t, err)

	require.NoError(t, tc.Set("maptiler", 1, 2, 3, "jpg", []byte("m")))
	data, ok := tc.Get("maptiler", 1, 2, 3)
	require.True(t, ok)
	assert.Equal(t, []byte("m"), data)
	assert.Empty(t, tc.GetCachePath())
	assert.NoError(t, tc.Close())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 250, cfg.MaxSizeMB)
	assert.Equal(t, 30, cfg.TTLDays)
	assert.Equal(t, 256, cfg.MemoryEntries)
	assert.Equal(t, filepath.Join(GetCacheRoot(), "tiles"), GetCacheDir())
}
