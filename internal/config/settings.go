package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"satellitor-desktop/internal/analysis"
	"satellitor-desktop/internal/cache"
	"satellitor-desktop/internal/capture"
	"satellitor-desktop/internal/geo"
	"satellitor-desktop/internal/report"
	"satellitor-desktop/internal/tiles"
	"satellitor-desktop/internal/viewport"
)

// MapTilerKeyEnv overrides the stored MapTiler key when set
const MapTilerKeyEnv = "MAPTILER_KEY"

// UserSettings represents persistent user preferences
type UserSettings struct {
	// Remote services
	AnalysisURL       string `json:"analysisUrl"`
	ReportURL         string `json:"reportUrl"`
	RequestTimeoutSec int    `json:"requestTimeoutSec"`

	// Tile source
	MapTilerKey           string  `json:"mapTilerKey"`
	TileURLTemplate       string  `json:"tileUrlTemplate"`
	TileSize              int     `json:"tileSize"`
	TileZoomOffset        int     `json:"tileZoomOffset"`
	TileWorkers           int     `json:"tileWorkers"`
	TileRequestsPerSecond float64 `json:"tileRequestsPerSecond"`

	// Map navigation
	Bounds           geo.Bounds `json:"bounds"`
	DefaultCenterLat float64    `json:"defaultCenterLat"`
	DefaultCenterLon float64    `json:"defaultCenterLon"`
	DefaultZoom      int        `json:"defaultZoom"`
	MinZoom          int        `json:"minZoom"`
	MaxZoom          int        `json:"maxZoom"`
	GoToSettleMs     int        `json:"goToSettleMs"`

	// Capture
	SmallScreenWidth  int `json:"smallScreenWidth"`
	OffscreenWidth    int `json:"offscreenWidth"`
	OffscreenHeight   int `json:"offscreenHeight"`
	OffscreenSettleMs int `json:"offscreenSettleMs"`

	// Cache settings
	CacheMaxSizeMB     int `json:"cacheMaxSizeMB"`
	CacheTTLDays       int `json:"cacheTTLDays"`
	CacheMemoryEntries int `json:"cacheMemoryEntries"`

	// Report downloads
	DownloadPath string `json:"downloadPath"`

	// UI preferences
	Theme string `json:"theme"` // "light", "dark", "system"
}

// DefaultSettings returns default user settings
func DefaultSettings() *UserSettings {
	homeDir, _ := os.UserHomeDir()
	vp := viewport.DefaultConfig()
	cp := capture.DefaultConfig()
	tc := tiles.DefaultConfig("")
	cc := cache.DefaultConfig()

	return &UserSettings{
		AnalysisURL:           analysis.DefaultBaseURL,
		ReportURL:             report.DefaultBaseURL,
		RequestTimeoutSec:     int(analysis.DefaultTimeout / time.Second),
		TileURLTemplate:       tc.URLTemplate,
		TileSize:              tc.TileSize,
		TileZoomOffset:        tc.ZoomOffset,
		TileWorkers:           tc.Workers,
		TileRequestsPerSecond: 20,
		Bounds:                vp.Bounds,
		DefaultCenterLat:      vp.InitialCenter.Latitude,
		DefaultCenterLon:      vp.InitialCenter.Longitude,
		DefaultZoom:           vp.InitialZoom,
		MinZoom:               vp.MinZoom,
		MaxZoom:               vp.MaxZoom,
		GoToSettleMs:          int(vp.SettleDelay / time.Millisecond),
		SmallScreenWidth:      vp.SmallScreenWidth,
		OffscreenWidth:        cp.OffscreenWidth,
		OffscreenHeight:       cp.OffscreenHeight,
		OffscreenSettleMs:     int(cp.OffscreenSettle / time.Millisecond),
		CacheMaxSizeMB:        cc.MaxSizeMB,
		CacheTTLDays:          cc.TTLDays,
		CacheMemoryEntries:    cc.MemoryEntries,
		DownloadPath:          filepath.Join(homeDir, "Downloads"),
		Theme:                 "dark",
	}
}

// GetSettingsPath returns the OS-specific settings file path
func GetSettingsPath() string {
	homeDir, _ := os.UserHomeDir()

	// ~/.satellitor/desktop/settings/
	baseDir := filepath.Join(homeDir, ".satellitor", "desktop", "settings")

	// Ensure directory exists
	os.MkdirAll(baseDir, 0755)

	return filepath.Join(baseDir, "settings.json")
}

// LoadSettings loads user settings from the default location
func LoadSettings() (*UserSettings, error) {
	return LoadSettingsFrom(GetSettingsPath())
}

// LoadSettingsFrom loads user settings from path
func LoadSettingsFrom(settingsPath string) (*UserSettings, error) {
	// If file doesn't exist, return defaults
	if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
		return DefaultSettings(), nil
	}

	data, err := os.ReadFile(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var settings UserSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}

	settings.mergeDefaults(DefaultSettings())
	if err := settings.Validate(); err != nil {
		log.Printf("[Settings] Invalid settings in %s, using defaults: %v", settingsPath, err)
		return DefaultSettings(), nil
	}
	return &settings, nil
}

// mergeDefaults fills fields missing from an older or partial file
func (s *UserSettings) mergeDefaults(defaults *UserSettings) {
	if s.AnalysisURL == "" {
		s.AnalysisURL = defaults.AnalysisURL
	}
	if s.ReportURL == "" {
		s.ReportURL = defaults.ReportURL
	}
	if s.RequestTimeoutSec == 0 {
		s.RequestTimeoutSec = defaults.RequestTimeoutSec
	}
	if s.TileURLTemplate == "" {
		s.TileURLTemplate = defaults.TileURLTemplate
		s.TileZoomOffset = defaults.TileZoomOffset
	}
	if s.TileSize == 0 {
		s.TileSize = defaults.TileSize
	}
	if s.TileWorkers == 0 {
		s.TileWorkers = defaults.TileWorkers
	}
	if s.TileRequestsPerSecond == 0 {
		s.TileRequestsPerSecond = defaults.TileRequestsPerSecond
	}
	if s.Bounds == (geo.Bounds{}) {
		s.Bounds = defaults.Bounds
	}
	if s.DefaultCenterLat == 0 && s.DefaultCenterLon == 0 {
		s.DefaultCenterLat = defaults.DefaultCenterLat
		s.DefaultCenterLon = defaults.DefaultCenterLon
	}
	if s.DefaultZoom == 0 {
		s.DefaultZoom = defaults.DefaultZoom
	}
	if s.MinZoom == 0 {
		s.MinZoom = defaults.MinZoom
	}
	if s.MaxZoom == 0 {
		s.MaxZoom = defaults.MaxZoom
	}
	if s.GoToSettleMs == 0 {
		s.GoToSettleMs = defaults.GoToSettleMs
	}
	if s.SmallScreenWidth == 0 {
		s.SmallScreenWidth = defaults.SmallScreenWidth
	}
	if s.OffscreenWidth == 0 {
		s.OffscreenWidth = defaults.OffscreenWidth
	}
	if s.OffscreenHeight == 0 {
		s.OffscreenHeight = defaults.OffscreenHeight
	}
	if s.OffscreenSettleMs == 0 {
		s.OffscreenSettleMs = defaults.OffscreenSettleMs
	}
	if s.CacheMaxSizeMB == 0 {
		s.CacheMaxSizeMB = defaults.CacheMaxSizeMB
	}
	if s.CacheTTLDays == 0 {
		s.CacheTTLDays = defaults.CacheTTLDays
	}
	if s.CacheMemoryEntries == 0 {
		s.CacheMemoryEntries = defaults.CacheMemoryEntries
	}
	if s.DownloadPath == "" {
		s.DownloadPath = defaults.DownloadPath
	}
	if s.Theme == "" {
		s.Theme = defaults.Theme
	}
}

// SaveSettings saves user settings to the default location
func SaveSettings(settings *UserSettings) error {
	return SaveSettingsTo(GetSettingsPath(), settings)
}

// SaveSettingsTo validates and writes settings to path
func SaveSettingsTo(settingsPath string, settings *UserSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	// Ensure directory exists
	dir := filepath.Dir(settingsPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.WriteFile(settingsPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	return nil
}

// Validate checks the settings are usable
func (s *UserSettings) Validate() error {
	if err := s.Bounds.Check(); err != nil {
		return fmt.Errorf("invalid bounds: %w", err)
	}
	if s.MinZoom < 0 || s.MaxZoom > 22 || s.MinZoom > s.MaxZoom {
		return fmt.Errorf("invalid zoom range %d-%d", s.MinZoom, s.MaxZoom)
	}
	if s.DefaultZoom < s.MinZoom || s.DefaultZoom > s.MaxZoom {
		return fmt.Errorf("default zoom %d must be between %d and %d", s.DefaultZoom, s.MinZoom, s.MaxZoom)
	}
	center := geo.Coordinate{Latitude: s.DefaultCenterLat, Longitude: s.DefaultCenterLon}
	if err := geo.Validate(center, s.Bounds); err != nil {
		return fmt.Errorf("default center: %w", err)
	}
	if s.TileSize <= 0 {
		return fmt.Errorf("tile size must be positive")
	}
	if s.OffscreenWidth <= 0 || s.OffscreenHeight <= 0 {
		return fmt.Errorf("off-screen size must be positive")
	}
	if s.AnalysisURL == "" || s.ReportURL == "" {
		return fmt.Errorf("service URLs are required")
	}
	return nil
}

// ResolvedMapTilerKey returns the environment override or the stored key
func (s *UserSettings) ResolvedMapTilerKey() string {
	if key := os.Getenv(MapTilerKeyEnv); key != "" {
		return key
	}
	return s.MapTilerKey
}

// RequestTimeout returns the timeout for analysis and report calls
func (s *UserSettings) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSec) * time.Second
}

// ViewportConfig builds the navigation constants for a surface size
func (s *UserSettings) ViewportConfig(width, height int) viewport.Config {
	cfg := viewport.DefaultConfig()
	cfg.Bounds = s.Bounds
	cfg.InitialCenter = geo.Coordinate{Latitude: s.DefaultCenterLat, Longitude: s.DefaultCenterLon}
	cfg.InitialZoom = s.DefaultZoom
	cfg.MinZoom = s.MinZoom
	cfg.MaxZoom = s.MaxZoom
	cfg.SmallScreenWidth = s.SmallScreenWidth
	cfg.SettleDelay = time.Duration(s.GoToSettleMs) * time.Millisecond
	if width > 0 && height > 0 {
		cfg.Width = width
		cfg.Height = height
	}
	return cfg
}

// CaptureConfig builds the capture constants
func (s *UserSettings) CaptureConfig() capture.Config {
	return capture.Config{
		TargetZoom:      s.MaxZoom,
		OffscreenWidth:  s.OffscreenWidth,
		OffscreenHeight: s.OffscreenHeight,
		OffscreenSettle: time.Duration(s.OffscreenSettleMs) * time.Millisecond,
	}
}

// TileConfig builds the tile source configuration
func (s *UserSettings) TileConfig() tiles.Config {
	cfg := tiles.DefaultConfig(s.ResolvedMapTilerKey())
	cfg.URLTemplate = s.TileURLTemplate
	cfg.TileSize = s.TileSize
	cfg.ZoomOffset = s.TileZoomOffset
	cfg.Workers = s.TileWorkers
	return cfg
}

// CacheConfig builds the tile cache limits
func (s *UserSettings) CacheConfig() *cache.Config {
	return &cache.Config{
		MaxSizeMB:     s.CacheMaxSizeMB,
		TTLDays:       s.CacheTTLDays,
		MemoryEntries: s.CacheMemoryEntries,
	}
}
