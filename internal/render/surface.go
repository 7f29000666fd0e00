package render

import (
	"context"
	"errors"
	"image"
	"log"
	"sync"
	"time"

	"satellitor-desktop/internal/geo"
	"satellitor-desktop/internal/viewport"
)

// ErrSurfaceClosed is returned by a surface after Close
var ErrSurfaceClosed = errors.New("render surface is closed")

// TileRenderer produces map rasters. *tiles.Source satisfies it.
type TileRenderer interface {
	Render(ctx context.Context, center geo.Coordinate, mapZoom, width, height int, onProgress func(current, total int)) (*image.RGBA, error)
	Prefetch(ctx context.Context, center geo.Coordinate, mapZoom, width, height int) (int, error)
}

// Surface is something a capture can be rasterized from
type Surface interface {
	// View returns the center and zoom the surface currently shows
	View() (geo.Coordinate, int)
	Size() (width, height int)
	Rasterize(ctx context.Context) (*image.RGBA, error)
	Close() error
}

// MapSurface mirrors the interactive map. It never changes the view itself;
// it only follows the snapshots published by the viewport controller.
type MapSurface struct {
	mu       sync.RWMutex
	renderer TileRenderer
	state    viewport.State
	unsub    func()
	closed   bool
}

// NewMapSurface creates a surface that tracks ctrl
func NewMapSurface(renderer TileRenderer, ctrl *viewport.Controller) *MapSurface {
	s := &MapSurface{
		renderer: renderer,
		state:    ctrl.State(),
	}
	s.unsub = ctrl.Subscribe(s.apply)
	return s
}

func (s *MapSurface) apply(state viewport.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state.Seq <= s.state.Seq {
		return
	}
	s.state = state
}

// View returns the last published center and zoom
func (s *MapSurface) View() (geo.Coordinate, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Center, s.state.Zoom
}

// Size returns the surface size in pixels
func (s *MapSurface) Size() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Width, s.state.Height
}

// Rasterize renders the current view
func (s *MapSurface) Rasterize(ctx context.Context) (*image.RGBA, error) {
	s.mu.RLock()
	state := s.state
	closed := s.closed
	s.mu.RUnlock()

	if closed {
		return nil, ErrSurfaceClosed
	}
	return s.renderer.Render(ctx, state.Center, state.Zoom, state.Width, state.Height, nil)
}

// Close stops following the controller
func (s *MapSurface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.unsub != nil {
		s.unsub()
	}
	return nil
}

// OffscreenSurface is a fixed-size hidden map used to capture on narrow
// windows, where the visible map is too small to yield a useful image.
type OffscreenSurface struct {
	mu       sync.Mutex
	renderer TileRenderer
	width    int
	height   int
	center   geo.Coordinate
	zoom     int
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	closed   bool
}

// NewOffscreenSurface creates a hidden surface of the given size
func NewOffscreenSurface(renderer TileRenderer, width, height int, center geo.Coordinate, zoom int) *OffscreenSurface {
	return &OffscreenSurface{
		renderer: renderer,
		width:    width,
		height:   height,
		center:   center,
		zoom:     zoom,
	}
}

// SetView moves the hidden map and starts loading its tiles in the
// background. A previous load that is still running is cancelled.
func (s *OffscreenSurface) SetView(center geo.Coordinate, zoom int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSurfaceClosed
	}
	if s.cancel != nil {
		s.cancel()
	}

	s.center = center
	s.zoom = zoom

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		n, err := s.renderer.Prefetch(ctx, center, zoom, s.width, s.height)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[Offscreen] Prefetch failed after %d tiles: %v", n, err)
		}
	}()
	return nil
}

// Settle waits for d so the hidden map can finish loading, or until ctx is done
func (s *OffscreenSurface) Settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// View returns the hidden map's center and zoom
func (s *OffscreenSurface) View() (geo.Coordinate, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.center, s.zoom
}

// Size returns the fixed surface size
func (s *OffscreenSurface) Size() (int, int) {
	return s.width, s.height
}

// Rasterize renders the hidden map's current view
func (s *OffscreenSurface) Rasterize(ctx context.Context) (*image.RGBA, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSurfaceClosed
	}
	center, zoom := s.center, s.zoom
	s.mu.Unlock()

	return s.renderer.Render(ctx, center, zoom, s.width, s.height, nil)
}

// Close cancels any background load and waits for it to stop
func (s *OffscreenSurface) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}
