package viewport

import (
	"sync"
	"time"

	"satellitor-desktop/internal/geo"
)

// Status reports whether a programmatic navigation is still settling
type Status string

const (
	StatusIdle       Status = "idle"
	StatusNavigating Status = "navigating"
)

// Config holds the fixed navigation constants
type Config struct {
	Bounds           geo.Bounds
	InitialCenter    geo.Coordinate
	InitialZoom      int
	MinZoom          int
	MaxZoom          int
	Width            int           // Surface width in pixels
	Height           int           // Surface height in pixels
	SmallScreenWidth int           // Widths at or below this use the off-screen capture surface
	SettleDelay      time.Duration // How long GoTo reports StatusNavigating
}

// DefaultConfig returns the Egypt map configuration
func DefaultConfig() Config {
	return Config{
		Bounds:           geo.EgyptBounds,
		InitialCenter:    geo.Coordinate{Latitude: 26.8206, Longitude: 30.8025},
		InitialZoom:      5,
		MinZoom:          5,
		MaxZoom:          15,
		Width:            1024,
		Height:           768,
		SmallScreenWidth: 560,
		SettleDelay:      500 * time.Millisecond,
	}
}

// State is a snapshot of the map view
type State struct {
	Center          geo.Coordinate `json:"center"`
	Zoom            int            `json:"zoom"`
	BoundsLocked    bool           `json:"boundsLocked"`
	CaptureEligible bool           `json:"captureEligible"`
	Width           int            `json:"width"`
	Height          int            `json:"height"`
	Status          Status         `json:"status"`
	Seq             uint64         `json:"seq"` // Increases with every published change
}

// Controller owns the map view. Rendering surfaces only follow the
// snapshots it publishes; they never mutate the view themselves.
// Listeners see snapshots in Seq order and must not call back into the
// controller's mutators.
type Controller struct {
	// pubMu orders mutation and delivery; it is always taken before mu
	pubMu       sync.Mutex
	mu          sync.Mutex
	cfg         Config
	state       State
	listeners   map[int]func(State)
	nextID      int
	settleTimer *time.Timer
}

// NewController creates a controller at the configured initial view
func NewController(cfg Config) *Controller {
	if cfg.MaxZoom < cfg.MinZoom {
		cfg.MaxZoom = cfg.MinZoom
	}
	zoom := clampZoom(cfg.InitialZoom, cfg.MinZoom, cfg.MaxZoom)

	return &Controller{
		cfg: cfg,
		state: State{
			Center:          cfg.InitialCenter,
			Zoom:            zoom,
			BoundsLocked:    true,
			CaptureEligible: zoom == cfg.MaxZoom,
			Width:           cfg.Width,
			Height:          cfg.Height,
			Status:          StatusIdle,
		},
		listeners: make(map[int]func(State)),
	}
}

// Config returns the controller's configuration
func (c *Controller) Config() Config {
	return c.cfg
}

// State returns the current view snapshot
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CaptureEligible reports whether the view is at full detail
func (c *Controller) CaptureEligible() bool {
	return c.State().CaptureEligible
}

// SmallScreen reports whether the surface is too narrow to be rasterized directly
func (c *Controller) SmallScreen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Width <= c.cfg.SmallScreenWidth
}

// Subscribe registers fn to receive a snapshot after every change.
// The returned function removes the subscription.
func (c *Controller) Subscribe(fn func(State)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// PanZoomTo moves the view to coord at zoom. The coordinate must lie inside
// the bounds; zoom is clamped and the center is pulled back so the visible
// extent never shows area outside the bounds rectangle.
func (c *Controller) PanZoomTo(coord geo.Coordinate, zoom int) error {
	if err := geo.Validate(coord, c.cfg.Bounds); err != nil {
		return err
	}

	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	c.mu.Lock()
	c.applyLocked(coord, zoom)
	snapshot := c.stampLocked()
	c.mu.Unlock()

	c.publish(snapshot)
	return nil
}

// OnZoomChanged records an interactive zoom around the current center
func (c *Controller) OnZoomChanged(newZoom int) {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	c.mu.Lock()
	c.applyLocked(c.state.Center, newZoom)
	snapshot := c.stampLocked()
	c.mu.Unlock()

	c.publish(snapshot)
}

// Resize updates the surface size and re-applies the bounds lock
func (c *Controller) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}

	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	c.mu.Lock()
	c.state.Width = width
	c.state.Height = height
	c.applyLocked(c.state.Center, c.state.Zoom)
	snapshot := c.stampLocked()
	c.mu.Unlock()

	c.publish(snapshot)
}

// GoTo navigates to raw user-entered coordinates at full detail.
// Invalid input is returned as a *geo.ValidationError and leaves the view untouched.
// On success the status is StatusNavigating until the settle delay elapses.
func (c *Controller) GoTo(latText, lngText string) error {
	coord, err := geo.ParseCoordinate(latText, lngText)
	if err != nil {
		return err
	}
	if err := geo.Validate(coord, c.cfg.Bounds); err != nil {
		return err
	}

	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	c.mu.Lock()
	c.applyLocked(coord, c.cfg.MaxZoom)
	c.state.Status = StatusNavigating
	if c.settleTimer != nil {
		c.settleTimer.Stop()
	}
	c.settleTimer = time.AfterFunc(c.cfg.SettleDelay, c.settle)
	snapshot := c.stampLocked()
	c.mu.Unlock()

	c.publish(snapshot)
	return nil
}

// Close stops any pending settle timer
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.settleTimer != nil {
		c.settleTimer.Stop()
		c.settleTimer = nil
	}
}

func (c *Controller) settle() {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	c.mu.Lock()
	if c.state.Status != StatusNavigating {
		c.mu.Unlock()
		return
	}
	c.state.Status = StatusIdle
	snapshot := c.stampLocked()
	c.mu.Unlock()

	c.publish(snapshot)
}

// applyLocked must be called with c.mu held
func (c *Controller) applyLocked(center geo.Coordinate, zoom int) {
	zoom = clampZoom(zoom, c.cfg.MinZoom, c.cfg.MaxZoom)
	c.state.Zoom = zoom
	c.state.Center = Constrain(center, zoom, c.state.Width, c.state.Height, c.cfg.Bounds)
	c.state.CaptureEligible = zoom == c.cfg.MaxZoom
}

// stampLocked must be called with c.mu held
func (c *Controller) stampLocked() State {
	c.state.Seq++
	return c.state
}

// publish must be called with c.pubMu held
func (c *Controller) publish(s State) {
	c.mu.Lock()
	fns := make([]func(State), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

func clampZoom(zoom, min, max int) int {
	if zoom < min {
		return min
	}
	if zoom > max {
		return max
	}
	return zoom
}
