package main

import (
	"satellitor-desktop/internal/ratelimit"
)

// Rate Limit Management Functions (Wails-exported)

// GetRateLimitStatus returns the current throttle state of the tile provider
func (a *App) GetRateLimitStatus() *ratelimit.RateLimitEvent {
	if a.throttle != nil {
		return a.throttle.GetCurrentState(a.source.Config().Provider)
	}
	return nil
}

// IsRateLimited checks if the tile provider is currently throttling
func (a *App) IsRateLimited() bool {
	if a.throttle != nil {
		return a.throttle.IsRateLimited(a.source.Config().Provider)
	}
	return false
}

// Cache Management Functions (Wails-exported)

// CacheStats represents cache statistics for frontend
type CacheStats struct {
	Entries       int     `json:"entries"`
	MemoryEntries int     `json:"memoryEntries"`
	SizeBytes     int64   `json:"sizeBytes"`
	MaxBytes      int64   `json:"maxBytes"`
	SizeMB        float64 `json:"sizeMB"`
	MaxMB         float64 `json:"maxMB"`
	CachePath     string  `json:"cachePath"`
}

// GetCacheStats returns current cache statistics
func (a *App) GetCacheStats() CacheStats {
	if a.tileCache == nil {
		return CacheStats{}
	}

	entries, sizeBytes, maxBytes, memoryEntries := a.tileCache.Stats()

	return CacheStats{
		Entries:       entries,
		MemoryEntries: memoryEntries,
		SizeBytes:     sizeBytes,
		MaxBytes:      maxBytes,
		SizeMB:        float64(sizeBytes) / 1024 / 1024,
		MaxMB:         float64(maxBytes) / 1024 / 1024,
		CachePath:     a.tileCache.GetCachePath(),
	}
}

// ClearCache removes all cached tiles
func (a *App) ClearCache() error {
	if a.tileCache != nil {
		return a.tileCache.Clear()
	}
	return nil
}
