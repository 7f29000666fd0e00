package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	goruntime "runtime"
	"sync"
	"time"

	"github.com/posthog/posthog-go"
	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"satellitor-desktop/internal/analysis"
	"satellitor-desktop/internal/cache"
	"satellitor-desktop/internal/capture"
	"satellitor-desktop/internal/config"
	"satellitor-desktop/internal/geo"
	"satellitor-desktop/internal/handlers/tileserver"
	"satellitor-desktop/internal/ratelimit"
	"satellitor-desktop/internal/render"
	"satellitor-desktop/internal/report"
	"satellitor-desktop/internal/results"
	"satellitor-desktop/internal/session"
	"satellitor-desktop/internal/tiles"
	"satellitor-desktop/internal/viewport"
)

// Linker flags
var (
	PostHogKey  string
	PostHogHost string
	AppVersion  string = "0.0.0-dev"
)

// MapConfig tells the frontend how to set up the interactive map
type MapConfig struct {
	TileURL     string         `json:"tileUrl"` // Local proxy template, empty until the tile server is up
	TileSize    int            `json:"tileSize"`
	ZoomOffset  int            `json:"zoomOffset"`
	Bounds      geo.Bounds     `json:"bounds"`
	MinZoom     int            `json:"minZoom"`
	MaxZoom     int            `json:"maxZoom"`
	SmallScreen int            `json:"smallScreenWidth"`
	View        viewport.State `json:"view"`
}

// ImageURLs are the absolute links to the images produced by the analysis service
type ImageURLs struct {
	Normal     string `json:"normal,omitempty"`
	Mask       string `json:"mask,omitempty"`
	Boundaries string `json:"boundaries,omitempty"`
}

// ResultsView is everything the results screen shows
type ResultsView struct {
	Coordinates   geo.Coordinate       `json:"coordinates"`
	Summary       results.Summary      `json:"summary"`
	Charts        results.ChartDataset `json:"charts"`
	Images        ImageURLs            `json:"images"`
	BestCrops     []analysis.Crop      `json:"bestCrops"`
	NormalCrops   []analysis.Crop      `json:"normalCrops"`
	CapturedImage string               `json:"capturedImage,omitempty"`
}

// App struct
type App struct {
	ctx      context.Context
	settings *config.UserSettings
	mu       sync.Mutex
	devMode  bool // Enable verbose logging in dev mode only
	phClient posthog.Client

	tileCache  *cache.TileCache
	throttle   *ratelimit.Handler
	source     *tiles.Source
	tileServer *tileserver.Server
	view       *viewport.Controller
	surface    *render.MapSurface
	client     *analysis.Client
	session    session.Repository
	pipeline   *capture.Pipeline
	reports    *report.Generator
}

// NewApp creates a new App application struct
func NewApp() *App {
	// Load user settings
	settings, err := config.LoadSettings()
	if err != nil {
		log.Printf("Failed to load settings, using defaults: %v", err)
		settings = config.DefaultSettings()
	}
	log.Printf("Settings loaded from: %s", config.GetSettingsPath())

	// Initialize cache with settings
	cacheDir := cache.GetCacheDir()
	cacheCfg := settings.CacheConfig()
	disk, err := cache.NewPersistentTileCache(cacheDir, cacheCfg.MaxSizeMB, cacheCfg.TTLDays)
	if err != nil {
		log.Printf("Failed to initialize tile cache, using memory only: %v", err)
		disk = nil
	} else {
		log.Printf("Tile cache initialized at %s (max %d MB)", cacheDir, cacheCfg.MaxSizeMB)
	}
	tileCache, err := cache.NewTileCache(disk, cacheCfg.MemoryEntries)
	if err != nil {
		log.Printf("Failed to initialize memory tile cache: %v", err)
		tileCache = nil // Continue without cache
	}

	throttle := ratelimit.NewHandler(settings.TileRequestsPerSecond, ratelimit.DefaultBurst)
	source := tiles.NewSource(settings.TileConfig(), tileCache, throttle)
	if settings.ResolvedMapTilerKey() == "" {
		log.Printf("No MapTiler key configured; set %s or add it in settings", config.MapTilerKeyEnv)
	}

	view := viewport.NewController(settings.ViewportConfig(0, 0))
	surface := render.NewMapSurface(source, view)
	client := analysis.NewClient(settings.AnalysisURL, settings.RequestTimeout())

	var repo session.Repository
	fileRepo, err := session.NewFileRepository(cache.GetCacheRoot())
	if err != nil {
		log.Printf("Failed to create session directory, keeping session in memory: %v", err)
		repo = session.NewMemoryRepository()
	} else {
		log.Printf("Session %s stored at %s", fileRepo.ID(), fileRepo.Dir())
		repo = fileRepo
	}

	pipeline := capture.NewPipeline(settings.CaptureConfig(), view, surface, source, client, repo)
	reports := report.NewGenerator(settings.ReportURL, settings.RequestTimeout())

	// Initialize PostHog
	var phClient posthog.Client
	if PostHogKey != "" {
		phConfig := posthog.Config{
			Endpoint: PostHogHost,
		}
		ph, err := posthog.NewWithConfig(PostHogKey, phConfig)
		if err != nil {
			log.Printf("Failed to initialize PostHog: %v", err)
		} else {
			phClient = ph
		}
	}

	return &App{
		settings:  settings,
		phClient:  phClient,
		tileCache: tileCache,
		throttle:  throttle,
		source:    source,
		view:      view,
		surface:   surface,
		client:    client,
		session:   repo,
		pipeline:  pipeline,
		reports:   reports,
	}
}

// startup is called when the app starts
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	// Create download directory if it doesn't exist
	os.MkdirAll(a.settings.DownloadPath, 0755)

	// Start local tile server
	a.tileServer = tileserver.NewServer(a.source, a.devMode)
	if err := a.tileServer.Start(); err != nil {
		wailsRuntime.LogError(ctx, fmt.Sprintf("Failed to start tile server: %v", err))
	} else {
		wailsRuntime.LogInfo(ctx, fmt.Sprintf("Tile server started on %s", a.tileServer.GetTileServerURL()))
	}

	a.view.Subscribe(func(s viewport.State) {
		wailsRuntime.EventsEmit(ctx, "viewport-changed", s)
	})

	a.pipeline.OnStateChange(func(ev capture.Event) {
		// A new capture abandons the report of the previous result
		if ev.State == capture.StateCapturing.String() {
			a.reports.Abandon()
		}
		wailsRuntime.EventsEmit(ctx, "capture-state", ev)
	})
	a.pipeline.OnResult(func(rec session.Record) {
		if err := a.reports.Generate(ctx, rec.Analysis); err != nil {
			wailsRuntime.LogError(ctx, fmt.Sprintf("Failed to start report generation: %v", err))
		}
	})

	a.reports.OnChange(func(s report.State) {
		wailsRuntime.EventsEmit(ctx, "report-state", s)
		switch s.Status {
		case report.StatusReady:
			a.TrackEvent("report_ready", map[string]interface{}{"size": s.Size})
		case report.StatusFailed:
			a.TrackEvent("report_failed", map[string]interface{}{"error": s.Error})
		}
	})

	a.throttle.SetOnRateLimit(func(event ratelimit.RateLimitEvent) {
		wailsRuntime.EventsEmit(ctx, "rate-limit", event)
	})
	a.throttle.SetOnRecovered(func(provider string) {
		wailsRuntime.EventsEmit(ctx, "rate-limit-cleared", provider)
	})

	// Track app start
	a.TrackEvent("app_started", map[string]interface{}{
		"version": a.GetAppVersion(),
		"os":      goruntime.GOOS,
		"arch":    goruntime.GOARCH,
	})
}

// TrackEvent sends an event to PostHog
func (a *App) TrackEvent(event string, props map[string]interface{}) {
	if a.phClient != nil {
		a.phClient.Enqueue(posthog.Capture{
			DistinctId: "backend_user",
			Event:      event,
			Properties: props,
		})
	}
}

// Shutdown cleans up resources
func (a *App) Shutdown(ctx context.Context) {
	a.reports.Abandon()
	a.pipeline.Close()
	a.surface.Close()
	a.view.Close()

	if a.tileServer != nil {
		stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := a.tileServer.Stop(stopCtx); err != nil {
			log.Printf("Failed to stop tile server: %v", err)
		}
	}

	// The session lives as long as the window
	if err := a.session.Clear(); err != nil {
		log.Printf("Failed to clear session: %v", err)
	}
	if a.tileCache != nil {
		a.tileCache.Close()
	}
	if a.phClient != nil {
		a.phClient.Close()
	}
}

// GetAppVersion returns the current application version
func (a *App) GetAppVersion() string {
	return AppVersion
}

// emitLog sends a log message to the frontend (only in dev mode)
func (a *App) emitLog(message string) {
	if a.devMode {
		wailsRuntime.EventsEmit(a.ctx, "log", message)
	}
}

// GetMapConfig returns the map setup for the frontend
func (a *App) GetMapConfig() MapConfig {
	cfg := a.source.Config()
	vc := a.view.Config()
	var tileURL string
	if a.tileServer != nil {
		tileURL = a.tileServer.TileURLTemplate()
	}
	return MapConfig{
		TileURL:     tileURL,
		TileSize:    cfg.TileSize,
		ZoomOffset:  cfg.ZoomOffset,
		Bounds:      vc.Bounds,
		MinZoom:     vc.MinZoom,
		MaxZoom:     vc.MaxZoom,
		SmallScreen: vc.SmallScreenWidth,
		View:        a.view.State(),
	}
}

// =============
// Map Viewport
// =============

// GetViewport returns the current map view
func (a *App) GetViewport() viewport.State {
	return a.view.State()
}

// GoTo navigates to user-entered coordinates at full detail
func (a *App) GoTo(latText, lngText string) error {
	if err := a.view.GoTo(latText, lngText); err != nil {
		a.emitLog(fmt.Sprintf("Go to rejected: %v", err))
		return err
	}

	s := a.view.State()
	a.TrackEvent("goto_location", map[string]interface{}{
		"lat": s.Center.Latitude,
		"lng": s.Center.Longitude,
	})
	return nil
}

// PanZoomTo records an interactive pan or zoom from the map
func (a *App) PanZoomTo(lat, lng float64, zoom int) error {
	return a.view.PanZoomTo(geo.Coordinate{Latitude: lat, Longitude: lng}, zoom)
}

// OnZoomChanged records a zoom around the current center
func (a *App) OnZoomChanged(zoom int) viewport.State {
	a.view.OnZoomChanged(zoom)
	return a.view.State()
}

// Resize records the map container size in CSS pixels
func (a *App) Resize(width, height int) viewport.State {
	a.view.Resize(width, height)
	return a.view.State()
}

// ========
// Capture
// ========

// GetCaptureState returns the capture phase
func (a *App) GetCaptureState() string {
	return a.pipeline.State().String()
}

// Capture rasterizes the current view, submits it for analysis and returns
// the results screen. Report generation starts in the background.
func (a *App) Capture() (*ResultsView, error) {
	state := a.view.State()
	props := map[string]interface{}{
		"lat":          state.Center.Latitude,
		"lng":          state.Center.Longitude,
		"small_screen": a.view.SmallScreen(),
	}
	a.TrackEvent("capture_started", props)

	start := time.Now()
	result, err := a.pipeline.Capture(a.ctx)
	if err != nil {
		if errors.Is(err, capture.ErrCaptureInProgress) || errors.Is(err, capture.ErrCaptureNotEligible) {
			return nil, err
		}
		props["error"] = err.Error()
		a.TrackEvent("capture_failed", props)
		wailsRuntime.LogError(a.ctx, fmt.Sprintf("Capture failed: %v", err))
		return nil, err
	}

	props["duration_ms"] = time.Since(start).Milliseconds()
	a.TrackEvent("capture_succeeded", props)
	a.emitLog(fmt.Sprintf("Analysis received for %.4f, %.4f", state.Center.Latitude, state.Center.Longitude))

	return a.buildResults(session.Record{Coordinates: state.Center, Analysis: result}), nil
}

// ========
// Results
// ========

// GetResults returns the stored analysis for the results screen
func (a *App) GetResults() (*ResultsView, error) {
	rec, err := a.session.Analysis()
	if err != nil {
		return nil, err
	}
	return a.buildResults(rec), nil
}

func (a *App) buildResults(rec session.Record) *ResultsView {
	r := rec.Analysis
	view := &ResultsView{
		Coordinates: rec.Coordinates,
		Summary:     results.Summarize(rec.Coordinates, r),
		Charts:      results.Transform(r),
		Images:      a.imageURLs(r),
		BestCrops:   r.BestCrops,
		NormalCrops: r.NormalCrops,
	}
	if img, err := a.session.CapturedImage(); err == nil {
		view.CapturedImage = img
	}
	return view
}

func (a *App) imageURLs(r *analysis.Result) ImageURLs {
	var urls ImageURLs
	if r.NormalImage != "" {
		urls.Normal = a.client.ImageURL(r.NormalImage)
	}
	if r.MaskImage != "" {
		urls.Mask = a.client.ImageURL(r.MaskImage)
	}
	if r.BoundariesImage != "" {
		urls.Boundaries = a.client.ImageURL(r.BoundariesImage)
	}
	return urls
}

// GetChartsHTML renders the distribution and fragmentation charts
func (a *App) GetChartsHTML() (string, error) {
	rec, err := a.session.Analysis()
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	theme := a.settings.Theme
	a.mu.Unlock()

	opts := results.DefaultChartOptions()
	if theme == "light" {
		opts.Theme = "light"
	}
	return results.ChartsHTML(results.Transform(rec.Analysis), opts)
}

// GetCapturedImage returns the stored capture as a data URL
func (a *App) GetCapturedImage() (string, error) {
	return a.session.CapturedImage()
}

// LeaveResults abandons the report for the current result
func (a *App) LeaveResults() {
	a.reports.Abandon()
}

// =======
// Report
// =======

// GetReportState returns the report status for the current result
func (a *App) GetReportState() report.State {
	return a.reports.State()
}

// GenerateReport starts report generation for the stored result. It is a
// no-op while a report for the same result is pending, ready or failed.
func (a *App) GenerateReport() error {
	rec, err := a.session.Analysis()
	if err != nil {
		return err
	}
	return a.reports.Generate(a.ctx, rec.Analysis)
}

// DownloadReport asks where to save the report and writes it there.
// It returns an empty path when the dialog is cancelled.
func (a *App) DownloadReport() (string, error) {
	if _, err := a.reports.Artifact(); err != nil {
		return "", err
	}

	path, err := wailsRuntime.SaveFileDialog(a.ctx, wailsRuntime.SaveDialogOptions{
		Title:            "Save Land Analysis Report",
		DefaultDirectory: a.GetDownloadPath(),
		DefaultFilename:  report.Filename,
		Filters: []wailsRuntime.FileFilter{
			{DisplayName: "PDF Documents (*.pdf)", Pattern: "*.pdf"},
		},
	})
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", nil
	}

	if err := a.reports.SaveTo(path); err != nil {
		wailsRuntime.LogError(a.ctx, fmt.Sprintf("Failed to save report: %v", err))
		return "", err
	}

	a.TrackEvent("report_downloaded", map[string]interface{}{"dialog": true})
	return path, nil
}

// SaveReportToDownloads writes the report into the download folder without
// overwriting an earlier copy
func (a *App) SaveReportToDownloads() (string, error) {
	path, err := a.reports.Download(a.GetDownloadPath())
	if err != nil {
		return "", err
	}
	a.TrackEvent("report_downloaded", map[string]interface{}{"dialog": false})
	return path, nil
}
