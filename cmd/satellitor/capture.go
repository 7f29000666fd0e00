package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"satellitor-desktop/internal/analysis"
	"satellitor-desktop/internal/cache"
	"satellitor-desktop/internal/capture"
	"satellitor-desktop/internal/ratelimit"
	"satellitor-desktop/internal/render"
	"satellitor-desktop/internal/results"
	"satellitor-desktop/internal/session"
	"satellitor-desktop/internal/tiles"
	"satellitor-desktop/internal/utils/naming"
	"satellitor-desktop/internal/viewport"
)

var (
	captureLat    string
	captureLng    string
	captureWidth  int
	captureHeight int
	captureOut    string
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture the map at a location and submit it for land analysis",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		disk, err := openDiskCache()
		if err != nil {
			logVerbose("Tile cache unavailable, using memory only: %v", err)
			disk = nil
		}
		tileCache, err := cache.NewTileCache(disk, settings.CacheConfig().MemoryEntries)
		if err != nil {
			return err
		}
		defer tileCache.Close()

		throttle := ratelimit.NewHandler(settings.TileRequestsPerSecond, ratelimit.DefaultBurst)
		throttle.SetOnRateLimit(func(event ratelimit.RateLimitEvent) {
			fmt.Fprintln(os.Stderr, event.Message)
		})
		source := tiles.NewSource(settings.TileConfig(), tileCache, throttle)

		view := viewport.NewController(settings.ViewportConfig(captureWidth, captureHeight))
		defer view.Close()
		if err := view.GoTo(captureLat, captureLng); err != nil {
			return err
		}

		surface := render.NewMapSurface(source, view)
		defer surface.Close()

		repo, err := openSession(true)
		if err != nil {
			return err
		}

		client := analysis.NewClient(settings.AnalysisURL, settings.RequestTimeout())
		pipeline := capture.NewPipeline(settings.CaptureConfig(), view, surface, source, client, repo)
		defer pipeline.Close()
		pipeline.OnStateChange(func(ev capture.Event) {
			logVerbose("[%s] %s", ev.CaptureID[:8], ev.State)
		})

		state := view.State()
		fmt.Printf("Capturing %.5f, %.5f at zoom %d (%dx%d)\n",
			state.Center.Latitude, state.Center.Longitude, state.Zoom, state.Width, state.Height)

		result, err := pipeline.Capture(ctx)
		if err != nil {
			return err
		}

		if captureOut != "" {
			path, err := saveCapturedImage(repo, captureOut, state)
			if err != nil {
				return err
			}
			fmt.Printf("Captured image saved to %s\n", path)
		}

		printSummary(results.Summarize(state.Center, result))
		fmt.Printf("\nSession: %s\n", repo.ID())
		return nil
	},
}

func saveCapturedImage(repo session.Repository, dir string, state viewport.State) (string, error) {
	dataURL, err := repo.CapturedImage()
	if err != nil {
		return "", err
	}
	data, err := capture.DecodeDataURL(dataURL)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path, err := naming.UniquePath(dir, naming.CaptureFilename(state.Center, state.Zoom))
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	return filepath.Clean(path), nil
}

func printSummary(s results.Summary) {
	fmt.Printf("\nLocation:    %s\n", s.Location)
	fmt.Printf("Soil type:   %s\n", s.SoilType)
	fmt.Printf("pH:          %s\n", s.PH)
	fmt.Printf("Humidity:    %s\n", s.Humidity)
	fmt.Printf("Temperature: %s\n", s.Temperature)
	fmt.Printf("Rainfall:    %s\n", s.Rainfall)
	fmt.Printf("Moisture:    %s\n", s.Moisture)
	fmt.Printf("N / P / K:   %s / %s / %s\n", s.Nitrogen, s.Phosphorus, s.Potassium)
	if s.Fertilizer != nil {
		fmt.Printf("Fertilizer:  %s\n", s.Fertilizer.Name)
		if s.Fertilizer.Description != "" {
			fmt.Printf("             %s\n", s.Fertilizer.Description)
		}
	}

	if len(s.Legend) > 0 {
		fmt.Printf("\nLand cover\n")
		fmt.Printf("----------\n")
		for _, item := range s.Legend {
			fmt.Printf("  %-14s %6.2f%%  %s\n", item.Category, item.Share, item.Color)
		}
	}
}

func init() {
	captureCmd.Flags().StringVar(&captureLat, "lat", "", "Latitude (22 to 31.6)")
	captureCmd.Flags().StringVar(&captureLng, "lng", "", "Longitude (25 to 36.9)")
	captureCmd.Flags().IntVar(&captureWidth, "width", 1024, "Map width in pixels")
	captureCmd.Flags().IntVar(&captureHeight, "height", 768, "Map height in pixels")
	captureCmd.Flags().StringVar(&captureOut, "out", "", "Directory to also save the captured PNG in")
	captureCmd.MarkFlagRequired("lat")
	captureCmd.MarkFlagRequired("lng")
	rootCmd.AddCommand(captureCmd)
}
