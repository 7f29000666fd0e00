package cache

import (
	"os"
	"path/filepath"
	goruntime "runtime"
)

// AppDirName is the per-user directory name used for caches
const AppDirName = "satellitor-desktop"

// Config represents cache configuration
type Config struct {
	MaxSizeMB     int `json:"maxSizeMB"`
	TTLDays       int `json:"ttlDays"`
	MemoryEntries int `json:"memoryEntries"`
}

// DefaultConfig returns default cache configuration
func DefaultConfig() *Config {
	return &Config{
		MaxSizeMB:     250,
		TTLDays:       30,
		MemoryEntries: 256,
	}
}

// GetCacheRoot returns the OS-specific cache root for the application
func GetCacheRoot() string {
	homeDir, _ := os.UserHomeDir()

	switch goruntime.GOOS {
	case "darwin":
		return filepath.Join(homeDir, "Library", "Caches", AppDirName)
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			appData = filepath.Join(homeDir, "AppData", "Roaming")
		}
		return filepath.Join(appData, AppDirName, "cache")
	default:
		cacheHome := os.Getenv("XDG_CACHE_HOME")
		if cacheHome == "" {
			cacheHome = filepath.Join(homeDir, ".cache")
		}
		return filepath.Join(cacheHome, AppDirName)
	}
}

// GetCacheDir returns the tile cache directory
func GetCacheDir() string {
	return filepath.Join(GetCacheRoot(), "tiles")
}
