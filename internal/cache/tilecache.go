package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// TileCache keeps recently rendered tiles in memory in front of the
// persistent disk cache. The disk layer is optional.
type TileCache struct {
	mem  *lru.Cache[string, []byte]
	disk *PersistentTileCache
}

// NewTileCache creates a layered cache holding up to memoryEntries tiles in memory
func NewTileCache(disk *PersistentTileCache, memoryEntries int) (*TileCache, error) {
	if memoryEntries <= 0 {
		memoryEntries = DefaultConfig().MemoryEntries
	}

	mem, err := lru.New[string, []byte](memoryEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	return &TileCache{mem: mem, disk: disk}, nil
}

// Get retrieves a tile, promoting disk hits into memory
func (c *TileCache) Get(provider string, z, x, y int) ([]byte, bool) {
	key := BuildKey(provider, z, x, y)

	if data, ok := c.mem.Get(key); ok {
		return data, true
	}
	if c.disk == nil {
		return nil, false
	}

	data, ok := c.disk.Get(key)
	if ok {
		c.mem.Add(key, data)
	}
	return data, ok
}

// Set stores a tile in both layers
func (c *TileCache) Set(provider string, z, x, y int, ext string, data []byte) error {
	c.mem.Add(BuildKey(provider, z, x, y), data)
	if c.disk == nil {
		return nil
	}
	return c.disk.Set(provider, z, x, y, ext, data)
}

// Stats returns disk statistics plus the number of tiles held in memory
func (c *TileCache) Stats() (entries int, sizeBytes int64, maxBytes int64, memoryEntries int) {
	memoryEntries = c.mem.Len()
	if c.disk == nil {
		return 0, 0, 0, memoryEntries
	}
	entries, sizeBytes, maxBytes = c.disk.Stats()
	return entries, sizeBytes, maxBytes, memoryEntries
}

// GetCachePath returns the disk cache directory, or "" when memory only
func (c *TileCache) GetCachePath() string {
	if c.disk == nil {
		return ""
	}
	return c.disk.GetCachePath()
}

// Clear removes all cached tiles from both layers
func (c *TileCache) Clear() error {
	c.mem.Purge()
	if c.disk == nil {
		return nil
	}
	return c.disk.Clear()
}

// Close flushes and stops the disk layer
func (c *TileCache) Close() error {
	if c.disk == nil {
		return nil
	}
	return c.disk.Close()
}
