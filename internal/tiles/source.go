package tiles

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"satellitor-desktop/internal/cache"
	"satellitor-desktop/internal/ratelimit"
)

const (
	// DefaultURLTemplate is the MapTiler satellite layer used by the map view
	DefaultURLTemplate = "https://api.maptiler.com/maps/satellite/{z}/{x}/{y}.jpg?key={key}"

	// DefaultProvider is the cache and analytics identifier for MapTiler
	DefaultProvider = "maptiler"

	// UserAgent sent with tile requests
	UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

	DefaultWorkers = 8
)

// Config describes a templated XYZ tile source
type Config struct {
	Provider    string
	URLTemplate string // {z}, {x}, {y} and {key} are substituted
	APIKey      string
	TileSize    int // Pixel size of served tiles
	ZoomOffset  int // Tile zoom = map zoom + ZoomOffset
	Workers     int
}

// DefaultConfig returns the MapTiler satellite configuration (512px tiles, zoom offset -1)
func DefaultConfig(apiKey string) Config {
	return Config{
		Provider:    DefaultProvider,
		URLTemplate: DefaultURLTemplate,
		APIKey:      apiKey,
		TileSize:    512,
		ZoomOffset:  -1,
		Workers:     DefaultWorkers,
	}
}

// Tile addresses one XYZ tile
type Tile struct {
	Z int
	X int
	Y int
}

// GetColumn returns the tile column
func (t Tile) GetColumn() int { return t.X }

// GetRow returns the tile row (from the top)
func (t Tile) GetRow() int { return t.Y }

// Source fetches tiles over HTTP with caching and request pacing
type Source struct {
	cfg        Config
	httpClient *http.Client
	cache      *cache.TileCache
	throttle   *ratelimit.Handler
}

// NewSource creates a tile source. tileCache and throttle may be nil.
func NewSource(cfg Config, tileCache *cache.TileCache, throttle *ratelimit.Handler) *Source {
	if cfg.Provider == "" {
		cfg.Provider = DefaultProvider
	}
	if cfg.URLTemplate == "" {
		cfg.URLTemplate = DefaultURLTemplate
	}
	if cfg.TileSize <= 0 {
		cfg.TileSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
	}

	return &Source{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		cache:    tileCache,
		throttle: throttle,
	}
}

// Config returns the source configuration
func (s *Source) Config() Config {
	return s.cfg
}

// TileZoom converts a map zoom level to the zoom of the tiles that display it
func (s *Source) TileZoom(mapZoom int) int {
	z := mapZoom + s.cfg.ZoomOffset
	if z < 0 {
		return 0
	}
	return z
}

// URL builds the request URL for a tile
func (s *Source) URL(t Tile) string {
	r := strings.NewReplacer(
		"{z}", strconv.Itoa(t.Z),
		"{x}", strconv.Itoa(t.X),
		"{y}", strconv.Itoa(t.Y),
		"{key}", s.cfg.APIKey,
	)
	return r.Replace(s.cfg.URLTemplate)
}

// FetchTile returns tile bytes from cache or the network
func (s *Source) FetchTile(ctx context.Context, t Tile) ([]byte, error) {
	if s.cache != nil {
		if data, ok := s.cache.Get(s.cfg.Provider, t.Z, t.X, t.Y); ok {
			return data, nil
		}
	}

	if s.throttle != nil {
		if err := s.throttle.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL(t), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tile: %w", err)
	}
	defer resp.Body.Close()

	if s.throttle != nil && s.throttle.CheckResponse(s.cfg.Provider, resp) {
		return nil, fmt.Errorf("tile provider %s throttled request (status %d)", s.cfg.Provider, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tile request failed with status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read tile: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(s.cfg.Provider, t.Z, t.X, t.Y, extensionFor(resp.Header.Get("Content-Type")), data); err != nil {
			log.Printf("[Tiles] Failed to cache tile %d/%d/%d: %v", t.Z, t.X, t.Y, err)
		}
	}

	return data, nil
}

func extensionFor(contentType string) string {
	switch {
	case strings.Contains(contentType, "png"):
		return "png"
	case strings.Contains(contentType, "webp"):
		return "webp"
	default:
		return "jpg"
	}
}
