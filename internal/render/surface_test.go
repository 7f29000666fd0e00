package render

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"satellitor-desktop/internal/geo"
	"satellitor-desktop/internal/viewport"
)

type renderCall struct {
	center geo.Coordinate
	zoom   int
	width  int
	height int
}

type fakeRenderer struct {
	mu        sync.Mutex
	renders   []renderCall
	prefetchs []renderCall
}

func (f *fakeRenderer) Render(ctx context.Context, center geo.Coordinate, zoom, width, height int, _ func(int, int)) (*image.RGBA, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renders = append(f.renders, renderCall{center, zoom, width, height})
	return image.NewRGBA(image.Rect(0, 0, width, height)), nil
}

func (f *fakeRenderer) Prefetch(ctx context.Context, center geo.Coordinate, zoom, width, height int) (int, error) {
	f.mu.Lock()
	f.prefetchs = append(f.prefetchs, renderCall{center, zoom, width, height})
	f.mu.Unlock()
	<-ctx.Done()
	return 0, ctx.Err()
}

func (f *fakeRenderer) lastRender() renderCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.renders[len(f.renders)-1]
}

func TestMapSurfaceFollowsController(t *testing.T) {
	cfg := viewport.DefaultConfig()
	ctrl := viewport.NewController(cfg)
	t.Cleanup(ctrl.Close)

	r := &fakeRenderer{}
	s := NewMapSurface(r, ctrl)
	t.Cleanup(func() { s.Close() })

	target := geo.Coordinate{Latitude: 30.0444, Longitude: 31.2357}
	require.NoError(t, ctrl.PanZoomTo(target, 15))

	img, err := s.Rasterize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, cfg.Width, cfg.Height), img.Bounds())

	call := r.lastRender()
	assert.Equal(t, 15, call.zoom)
	assert.InDelta(t, target.Latitude, call.center.Latitude, 1e-9)
	assert.InDelta(t, target.Longitude, call.center.Longitude, 1e-9)

	ctrl.Resize(400, 300)
	w, h := s.Size()
	assert.Equal(t, 400, w)
	assert.Equal(t, 300, h)
}

func TestMapSurfaceIgnoresOlderSnapshots(t *testing.T) {
	ctrl := viewport.NewController(viewport.DefaultConfig())
	t.Cleanup(ctrl.Close)

	s := NewMapSurface(&fakeRenderer{}, ctrl)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, ctrl.PanZoomTo(geo.Coordinate{Latitude: 27, Longitude: 30}, 15))
	older := ctrl.State()
	require.NoError(t, ctrl.PanZoomTo(geo.Coordinate{Latitude: 29, Longitude: 32}, 15))
	latest := ctrl.State()

	s.apply(older)
	center, _ := s.View()
	assert.Equal(t, latest.Center, center)
}

func TestMapSurfaceStopsFollowingAfterClose(t *testing.T) {
	ctrl := viewport.NewController(viewport.DefaultConfig())
	t.Cleanup(ctrl.Close)

	s := NewMapSurface(&fakeRenderer{}, ctrl)
	require.NoError(t, s.Close())

	require.NoError(t, ctrl.PanZoomTo(geo.Coordinate{Latitude: 30, Longitude: 31}, 15))
	_, zoom := s.View()
	assert.Equal(t, 5, zoom)

	_, err := s.Rasterize(context.Background())
	assert.ErrorIs(t, err, ErrSurfaceClosed)
}

func TestOffscreenSurfaceSetViewAndRasterize(t *testing.T) {
	r := &fakeRenderer{}
	s := NewOffscreenSurface(r, 1024, 768, geo.EgyptBounds.Center(), 15)

	target := geo.Coordinate{Latitude: 25.6872, Longitude: 32.6396}
	require.NoError(t, s.SetView(target, 15))
	require.NoError(t, s.Settle(context.Background(), 10*time.Millisecond))

	img, err := s.Rasterize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 1024, 768), img.Bounds())
	assert.Equal(t, renderCall{target, 15, 1024, 768}, r.lastRender())

	// Close cancels the background prefetch started by SetView.
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.SetView(target, 15), ErrSurfaceClosed)
	_, err = s.Rasterize(context.Background())
	assert.ErrorIs(t, err, ErrSurfaceClosed)
}

func TestOffscreenSettleHonorsContext(t *testing.T) {
	s := NewOffscreenSurface(&fakeRenderer{}, 10, 10, geo.Coordinate{}, 15)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := s.Settle(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
