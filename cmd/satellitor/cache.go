package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"satellitor-desktop/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the tile cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show tile cache usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		disk, err := openDiskCache()
		if err != nil {
			return err
		}
		defer disk.Close()

		entries, size, maxBytes := disk.Stats()
		fmt.Printf("Tile Cache\n")
		fmt.Printf("==========\n")
		fmt.Printf("Path:    %s\n", disk.GetCachePath())
		fmt.Printf("Tiles:   %d\n", entries)
		fmt.Printf("Size:    %.1f MB / %.0f MB\n", float64(size)/1024/1024, float64(maxBytes)/1024/1024)
		fmt.Printf("TTL:     %d days\n", settings.CacheTTLDays)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached tiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		disk, err := openDiskCache()
		if err != nil {
			return err
		}
		defer disk.Close()

		if err := disk.Clear(); err != nil {
			return err
		}
		fmt.Println("Tile cache cleared")
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

func openDiskCache() (*cache.PersistentTileCache, error) {
	cfg := settings.CacheConfig()
	return cache.NewPersistentTileCache(cache.GetCacheDir(), cfg.MaxSizeMB, cfg.TTLDays)
}
