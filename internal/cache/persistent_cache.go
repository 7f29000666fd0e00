package cache

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const indexFileName = "cache_index.json"

// PersistentTileCache provides disk-based caching with OGC ZXY structure
// Cache persists across app restarts and uses standard tile directory layout
type PersistentTileCache struct {
	baseDir   string
	maxSize   int64 // Maximum cache size in bytes
	currSize  int64 // Current cache size (atomic)
	ttl       time.Duration
	mu        sync.RWMutex
	metadata  map[string]*TileMetadata // Persistent metadata index
	dirty     atomic.Bool
	evictChan chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// TileMetadata stores information about a cached tile
type TileMetadata struct {
	Key        string    `json:"key"`
	Provider   string    `json:"provider"`
	Z          int       `json:"z"`
	X          int       `json:"x"`
	Y          int       `json:"y"`
	Ext        string    `json:"ext"`
	Size       int64     `json:"size"`
	AccessTime time.Time `json:"accessTime"`
	CreateTime time.Time `json:"createTime"`
}

// NewPersistentTileCache creates a new persistent tile cache
// Cache structure: baseDir/{provider}/{z}/{x}/{y}.{ext}
// Metadata index: baseDir/cache_index.json
func NewPersistentTileCache(baseDir string, maxSizeMB int, ttlDays int) (*PersistentTileCache, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	cache := &PersistentTileCache{
		baseDir:   baseDir,
		maxSize:   int64(maxSizeMB) * 1024 * 1024,
		ttl:       time.Duration(ttlDays) * 24 * time.Hour,
		metadata:  make(map[string]*TileMetadata),
		evictChan: make(chan struct{}, 1),
		done:      make(chan struct{}),
	}

	if err := cache.loadMetadata(); err != nil {
		if err := cache.rebuildMetadata(); err != nil {
			return nil, fmt.Errorf("failed to initialize cache: %w", err)
		}
	}

	cache.wg.Add(1)
	go cache.maintenanceWorker()

	return cache, nil
}

// BuildKey creates a cache key from tile coordinates
func BuildKey(provider string, z, x, y int) string {
	return fmt.Sprintf("%s:%d:%d:%d", provider, z, x, y)
}

// Get retrieves a tile from cache
func (c *PersistentTileCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	meta, exists := c.metadata[key]
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}

	if c.ttl > 0 && time.Since(meta.CreateTime) > c.ttl {
		c.evictTile(key)
		return nil, false
	}

	data, err := os.ReadFile(c.buildFilePath(meta))
	if err != nil {
		c.evictTile(key)
		return nil, false
	}

	c.mu.Lock()
	meta.AccessTime = time.Now()
	c.mu.Unlock()
	c.dirty.Store(true)

	return data, true
}

// Set stores a tile in cache using OGC ZXY structure
func (c *PersistentTileCache) Set(provider string, z, x, y int, ext string, data []byte) error {
	if ext == "" {
		ext = "jpg"
	}
	key := BuildKey(provider, z, x, y)
	size := int64(len(data))

	now := time.Now()
	meta := &TileMetadata{
		Key:        key,
		Provider:   provider,
		Z:          z,
		X:          x,
		Y:          y,
		Ext:        ext,
		Size:       size,
		AccessTime: now,
		CreateTime: now,
	}

	filePath := c.buildFilePath(meta)
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	c.mu.Lock()
	if oldMeta, exists := c.metadata[key]; exists {
		atomic.AddInt64(&c.currSize, -oldMeta.Size)
		if oldPath := c.buildFilePath(oldMeta); oldPath != filePath {
			os.Remove(oldPath)
		}
	}
	c.metadata[key] = meta
	c.mu.Unlock()

	atomic.AddInt64(&c.currSize, size)
	c.dirty.Store(true)

	if atomic.LoadInt64(&c.currSize) > c.maxSize {
		select {
		case c.evictChan <- struct{}{}:
		default:
		}
	}

	return nil
}

// buildFilePath creates the OGC ZXY file path for a tile
func (c *PersistentTileCache) buildFilePath(meta *TileMetadata) string {
	ext := meta.Ext
	if ext == "" {
		ext = "jpg"
	}
	return filepath.Join(c.baseDir, meta.Provider, strconv.Itoa(meta.Z),
		strconv.Itoa(meta.X), fmt.Sprintf("%d.%s", meta.Y, ext))
}

func (c *PersistentTileCache) evictTile(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	meta, exists := c.metadata[key]
	if !exists {
		return
	}
	os.Remove(c.buildFilePath(meta))
	delete(c.metadata, key)
	atomic.AddInt64(&c.currSize, -meta.Size)
	c.dirty.Store(true)
}

// maintenanceWorker evicts on demand, expires tiles and flushes the index
func (c *PersistentTileCache) maintenanceWorker() {
	defer c.wg.Done()

	expireTicker := time.NewTicker(5 * time.Minute)
	flushTicker := time.NewTicker(10 * time.Second)
	defer expireTicker.Stop()
	defer flushTicker.Stop()

	for {
		select {
		case <-c.evictChan:
			c.evictOldTiles()
		case <-expireTicker.C:
			c.evictExpiredTiles()
		case <-flushTicker.C:
			c.flush()
		case <-c.done:
			return
		}
	}
}

func (c *PersistentTileCache) flush() {
	if !c.dirty.Swap(false) {
		return
	}
	if err := c.saveMetadata(); err != nil {
		log.Printf("[TileCache] Failed to save index: %v", err)
		c.dirty.Store(true)
	}
}

// evictOldTiles removes least recently used tiles when cache is full
func (c *PersistentTileCache) evictOldTiles() {
	c.mu.Lock()

	currSize := atomic.LoadInt64(&c.currSize)
	if currSize <= c.maxSize {
		c.mu.Unlock()
		return
	}

	// Target size: 80% of max to avoid thrashing
	targetSize := c.maxSize * 8 / 10

	entries := make([]*TileMetadata, 0, len(c.metadata))
	for _, meta := range c.metadata {
		entries = append(entries, meta)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].AccessTime.Before(entries[j].AccessTime)
	})

	for _, meta := range entries {
		if currSize <= targetSize {
			break
		}
		os.Remove(c.buildFilePath(meta))
		delete(c.metadata, meta.Key)
		atomic.AddInt64(&c.currSize, -meta.Size)
		currSize -= meta.Size
	}
	c.mu.Unlock()

	c.dirty.Store(true)
	c.flush()
}

// evictExpiredTiles removes tiles that exceed TTL
func (c *PersistentTileCache) evictExpiredTiles() {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	now := time.Now()
	evicted := 0
	for key, meta := range c.metadata {
		if now.Sub(meta.CreateTime) > c.ttl {
			os.Remove(c.buildFilePath(meta))
			delete(c.metadata, key)
			atomic.AddInt64(&c.currSize, -meta.Size)
			evicted++
		}
	}
	c.mu.Unlock()

	if evicted > 0 {
		c.dirty.Store(true)
		c.flush()
	}
}

// loadMetadata loads the metadata index from disk
func (c *PersistentTileCache) loadMetadata() error {
	data, err := os.ReadFile(filepath.Join(c.baseDir, indexFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("metadata file not found")
		}
		return fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata map[string]*TileMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return fmt.Errorf("failed to parse metadata: %w", err)
	}
	if metadata == nil {
		metadata = make(map[string]*TileMetadata)
	}

	var totalSize int64
	for _, meta := range metadata {
		totalSize += meta.Size
	}

	c.mu.Lock()
	c.metadata = metadata
	c.mu.Unlock()
	atomic.StoreInt64(&c.currSize, totalSize)

	return nil
}

// saveMetadata writes the metadata index to disk via a temp file and rename
func (c *PersistentTileCache) saveMetadata() error {
	c.mu.RLock()
	data, err := json.MarshalIndent(c.metadata, "", "  ")
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	metaPath := filepath.Join(c.baseDir, indexFileName)
	tempPath := metaPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	if err := os.Rename(tempPath, metaPath); err != nil {
		return fmt.Errorf("failed to rename metadata file: %w", err)
	}

	return nil
}

// rebuildMetadata rebuilds the metadata index by scanning the cache directory
func (c *PersistentTileCache) rebuildMetadata() error {
	metadata := make(map[string]*TileMetadata)
	var totalSize int64

	err := filepath.Walk(c.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || filepath.Base(path) == indexFileName {
			return nil
		}

		// {provider}/{z}/{x}/{y}.{ext}
		relPath, err := filepath.Rel(c.baseDir, path)
		if err != nil {
			return nil
		}
		parts := strings.Split(relPath, string(os.PathSeparator))
		if len(parts) != 4 {
			return nil
		}

		ext := strings.TrimPrefix(filepath.Ext(parts[3]), ".")
		z, errZ := strconv.Atoi(parts[1])
		x, errX := strconv.Atoi(parts[2])
		y, errY := strconv.Atoi(strings.TrimSuffix(parts[3], "."+ext))
		if errZ != nil || errX != nil || errY != nil {
			return nil
		}

		key := BuildKey(parts[0], z, x, y)
		metadata[key] = &TileMetadata{
			Key:        key,
			Provider:   parts[0],
			Z:          z,
			X:          x,
			Y:          y,
			Ext:        ext,
			Size:       info.Size(),
			AccessTime: info.ModTime(),
			CreateTime: info.ModTime(),
		}
		totalSize += info.Size()
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan cache directory: %w", err)
	}

	c.mu.Lock()
	c.metadata = metadata
	c.mu.Unlock()
	atomic.StoreInt64(&c.currSize, totalSize)

	return c.saveMetadata()
}

// Stats returns cache statistics
func (c *PersistentTileCache) Stats() (entries int, sizeBytes int64, maxBytes int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.metadata), atomic.LoadInt64(&c.currSize), c.maxSize
}

// Clear removes all cached tiles
func (c *PersistentTileCache) Clear() error {
	c.mu.Lock()
	for _, meta := range c.metadata {
		os.Remove(c.buildFilePath(meta))
	}
	c.metadata = make(map[string]*TileMetadata)
	atomic.StoreInt64(&c.currSize, 0)
	c.mu.Unlock()

	c.dirty.Store(false)
	return c.saveMetadata()
}

// GetCachePath returns the base directory of the cache
func (c *PersistentTileCache) GetCachePath() string {
	return c.baseDir
}

// Close stops background maintenance and flushes the index
func (c *PersistentTileCache) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.wg.Wait()
		if c.dirty.Swap(false) {
			err = c.saveMetadata()
		}
	})
	return err
}
