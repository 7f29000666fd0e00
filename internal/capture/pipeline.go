package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"satellitor-desktop/internal/analysis"
	"satellitor-desktop/internal/geo"
	"satellitor-desktop/internal/render"
	"satellitor-desktop/internal/session"
	"satellitor-desktop/internal/viewport"
)

var (
	// ErrCaptureNotEligible is returned when the map is not at full detail
	ErrCaptureNotEligible = errors.New("capture is only available at maximum zoom")

	// ErrCaptureInProgress is returned while another capture is running
	ErrCaptureInProgress = errors.New("a capture is already in progress")

	// ErrViewChanged is returned when the map surface no longer shows the
	// view that was validated for capture
	ErrViewChanged = errors.New("map view changed during capture")
)

// State is the pipeline phase
type State int32

const (
	StateIdle State = iota
	StateCapturing
	StateUploading
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateUploading:
		return "uploading"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is published on every state change
type Event struct {
	CaptureID string         `json:"captureId"`
	State     string         `json:"state"`
	Center    geo.Coordinate `json:"center"`
	Error     string         `json:"error,omitempty"`
}

// Viewport is the part of the view controller a capture reads
type Viewport interface {
	State() viewport.State
	SmallScreen() bool
}

// Submitter uploads a payload. *analysis.Client satisfies it.
type Submitter interface {
	Submit(ctx context.Context, p *analysis.CapturePayload) (*analysis.Result, error)
}

// Config holds the capture constants
type Config struct {
	TargetZoom      int
	OffscreenWidth  int
	OffscreenHeight int
	OffscreenSettle time.Duration // Time the hidden map gets to load before it is rasterized
}

// DefaultConfig returns the standard capture settings
func DefaultConfig() Config {
	return Config{
		TargetZoom:      15,
		OffscreenWidth:  1024,
		OffscreenHeight: 768,
		OffscreenSettle: time.Second,
	}
}

// Pipeline turns the current map view into one analysis request
type Pipeline struct {
	cfg      Config
	view     Viewport
	primary  render.Surface
	renderer render.TileRenderer
	client   Submitter
	repo     session.Repository

	state atomic.Int32

	mu        sync.Mutex
	offscreen *render.OffscreenSurface
	listeners []func(Event)
	onResult  func(session.Record)
}

// NewPipeline wires a capture pipeline. renderer backs the off-screen
// surface, which is only created on the first small-screen capture.
func NewPipeline(cfg Config, view Viewport, primary render.Surface, renderer render.TileRenderer, client Submitter, repo session.Repository) *Pipeline {
	if cfg.TargetZoom == 0 {
		cfg.TargetZoom = DefaultConfig().TargetZoom
	}
	if cfg.OffscreenWidth <= 0 || cfg.OffscreenHeight <= 0 {
		cfg.OffscreenWidth = DefaultConfig().OffscreenWidth
		cfg.OffscreenHeight = DefaultConfig().OffscreenHeight
	}

	return &Pipeline{
		cfg:      cfg,
		view:     view,
		primary:  primary,
		renderer: renderer,
		client:   client,
		repo:     repo,
	}
}

// State returns the current phase
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

// OnStateChange registers a listener for state changes
func (p *Pipeline) OnStateChange(fn func(Event)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// OnResult registers the callback invoked after a successful capture
func (p *Pipeline) OnResult(fn func(session.Record)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onResult = fn
}

// Capture rasterizes the current view, stores it, and submits it once.
// The pipeline is back to idle when Capture returns.
func (p *Pipeline) Capture(ctx context.Context) (*analysis.Result, error) {
	if p.State() != StateIdle {
		return nil, ErrCaptureInProgress
	}

	view := p.view.State()
	if !view.CaptureEligible {
		return nil, ErrCaptureNotEligible
	}

	if !p.state.CompareAndSwap(int32(StateIdle), int32(StateCapturing)) {
		return nil, ErrCaptureInProgress
	}

	id := uuid.New().String()
	center := view.Center
	p.emit(Event{CaptureID: id, State: StateCapturing.String(), Center: center})
	defer p.transition(id, center, StateIdle, nil)

	log.Printf("[Capture] %s started at %.6f, %.6f", id, center.Latitude, center.Longitude)

	img, err := p.rasterize(ctx, view)
	if err != nil {
		err = fmt.Errorf("failed to render map: %w", err)
		p.transition(id, center, StateFailed, err)
		return nil, err
	}

	pngData, err := EncodePNG(img)
	if err != nil {
		err = fmt.Errorf("failed to encode capture: %w", err)
		p.transition(id, center, StateFailed, err)
		return nil, err
	}

	if err := p.repo.SetCapturedImage(EncodeDataURL(pngData)); err != nil {
		log.Printf("[Capture] %s could not store captured image: %v", id, err)
	}

	p.transition(id, center, StateUploading, nil)

	result, err := p.client.Submit(ctx, analysis.NewCapturePayload(center, pngData))
	if err != nil {
		log.Printf("[Capture] %s upload failed: %v", id, err)
		p.transition(id, center, StateFailed, err)
		return nil, err
	}

	rec := session.Record{Coordinates: center, Analysis: result}
	if err := p.repo.SetAnalysis(rec); err != nil {
		log.Printf("[Capture] %s could not store analysis: %v", id, err)
	}

	p.transition(id, center, StateSucceeded, nil)
	log.Printf("[Capture] %s succeeded (%d bytes uploaded)", id, len(pngData))

	p.mu.Lock()
	onResult := p.onResult
	p.mu.Unlock()
	if onResult != nil {
		onResult(rec)
	}

	return result, nil
}

// rasterize renders the exact snapshot that passed the eligibility check,
// so the image and the submitted center always describe the same view.
// Narrow windows use the hidden fixed-size surface, moved to the same
// center at full detail.
func (p *Pipeline) rasterize(ctx context.Context, view viewport.State) (*image.RGBA, error) {
	center := view.Center
	if !p.view.SmallScreen() {
		if p.renderer != nil && view.Width > 0 && view.Height > 0 {
			return p.renderer.Render(ctx, center, view.Zoom, view.Width, view.Height, nil)
		}
		if c, zoom := p.primary.View(); c != center || zoom != view.Zoom {
			return nil, ErrViewChanged
		}
		return p.primary.Rasterize(ctx)
	}

	off, err := p.offscreenSurface()
	if err != nil {
		return nil, err
	}
	if err := off.SetView(center, p.cfg.TargetZoom); err != nil {
		return nil, err
	}
	if err := off.Settle(ctx, p.cfg.OffscreenSettle); err != nil {
		return nil, err
	}
	return off.Rasterize(ctx)
}

func (p *Pipeline) offscreenSurface() (*render.OffscreenSurface, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.offscreen == nil {
		if p.renderer == nil {
			return nil, fmt.Errorf("no renderer for off-screen capture")
		}
		center, _ := p.primary.View()
		p.offscreen = render.NewOffscreenSurface(p.renderer, p.cfg.OffscreenWidth, p.cfg.OffscreenHeight, center, p.cfg.TargetZoom)
		log.Printf("[Capture] Created off-screen surface %dx%d", p.cfg.OffscreenWidth, p.cfg.OffscreenHeight)
	}
	return p.offscreen, nil
}

// HasOffscreen reports whether the off-screen surface has been created
func (p *Pipeline) HasOffscreen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.offscreen != nil
}

// Close tears down the off-screen surface
func (p *Pipeline) Close() error {
	p.mu.Lock()
	off := p.offscreen
	p.offscreen = nil
	p.mu.Unlock()

	if off != nil {
		return off.Close()
	}
	return nil
}

func (p *Pipeline) transition(id string, center geo.Coordinate, s State, err error) {
	p.state.Store(int32(s))
	ev := Event{CaptureID: id, State: s.String(), Center: center}
	if err != nil {
		ev.Error = err.Error()
	}
	p.emit(ev)
}

func (p *Pipeline) emit(ev Event) {
	p.mu.Lock()
	listeners := make([]func(Event), len(p.listeners))
	copy(listeners, p.listeners)
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(ev)
	}
}

// EncodePNG encodes a raster as PNG
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

const dataURLPrefix = "data:image/png;base64,"

// EncodeDataURL wraps PNG bytes in a data URL
func EncodeDataURL(pngData []byte) string {
	return dataURLPrefix + base64.StdEncoding.EncodeToString(pngData)
}

// DecodeDataURL extracts PNG bytes from a data URL made by EncodeDataURL
func DecodeDataURL(dataURL string) ([]byte, error) {
	if !strings.HasPrefix(dataURL, dataURLPrefix) {
		return nil, fmt.Errorf("not a PNG data URL")
	}
	return base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURL, dataURLPrefix))
}
