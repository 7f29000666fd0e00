package tiles

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"sync"
	"sync/atomic"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/semaphore"

	"satellitor-desktop/internal/geo"
)

// Placement is a tile together with its offset on the output canvas
type Placement struct {
	Tile
	OffsetX int
	OffsetY int
}

// Layout describes the tiles covering a view
type Layout struct {
	Tiles []Placement

	// Canvas size in tile pixels
	CanvasWidth  int
	CanvasHeight int

	// Tile pixels per map pixel
	Scale float64
}

type tileResult struct {
	placement Placement
	data      []byte
	err       error
}

// scale returns how many tile pixels cover one map pixel at mapZoom
func (s *Source) scale(mapZoom int) float64 {
	tileWorld := geo.WorldSize(s.TileZoom(mapZoom), s.cfg.TileSize)
	mapWorld := geo.WorldSize(mapZoom, geo.CRSTileSize)
	return tileWorld / mapWorld
}

// TilesFor returns the tiles needed to draw a width x height view centered on center
func (s *Source) TilesFor(center geo.Coordinate, mapZoom, width, height int) Layout {
	z := s.TileZoom(mapZoom)
	size := s.cfg.TileSize
	scale := s.scale(mapZoom)

	cw := int(math.Ceil(float64(width) * scale))
	ch := int(math.Ceil(float64(height) * scale))

	p := geo.Project(center, z, size)
	left := p.X - float64(cw)/2
	top := p.Y - float64(ch)/2

	minX := int(math.Floor(left / float64(size)))
	maxX := int(math.Floor((left + float64(cw) - 1) / float64(size)))
	minY := int(math.Floor(top / float64(size)))
	maxY := int(math.Floor((top + float64(ch) - 1) / float64(size)))

	n := 1 << uint(z)
	layout := Layout{CanvasWidth: cw, CanvasHeight: ch, Scale: scale}

	for ty := minY; ty <= maxY; ty++ {
		if ty < 0 || ty >= n {
			continue
		}
		for tx := minX; tx <= maxX; tx++ {
			// Wrap around the antimeridian
			wx := ((tx % n) + n) % n
			layout.Tiles = append(layout.Tiles, Placement{
				Tile:    Tile{Z: z, X: wx, Y: ty},
				OffsetX: int(math.Round(float64(tx*size) - left)),
				OffsetY: int(math.Round(float64(ty*size) - top)),
			})
		}
	}

	return layout
}

// fetchAll downloads every placement with at most cfg.Workers requests in flight
func (s *Source) fetchAll(ctx context.Context, placements []Placement, onProgress func(current, total int)) <-chan tileResult {
	total := len(placements)
	results := make(chan tileResult, total)
	sem := semaphore.NewWeighted(int64(s.cfg.Workers))

	var done int64
	var wg sync.WaitGroup

	for _, pl := range placements {
		if err := sem.Acquire(ctx, 1); err != nil {
			results <- tileResult{placement: pl, err: err}
			continue
		}
		wg.Add(1)
		go func(pl Placement) {
			defer wg.Done()
			defer sem.Release(1)

			data, err := s.FetchTile(ctx, pl.Tile)
			results <- tileResult{placement: pl, data: data, err: err}

			current := atomic.AddInt64(&done, 1)
			if onProgress != nil {
				onProgress(int(current), total)
			}
		}(pl)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// Render stitches the tiles for a view into a width x height image.
// Tiles that fail to download or decode are left blank; the render only
// fails when no tile could be drawn.
func (s *Source) Render(ctx context.Context, center geo.Coordinate, mapZoom, width, height int, onProgress func(current, total int)) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid render size %dx%d", width, height)
	}

	layout := s.TilesFor(center, mapZoom, width, height)
	if len(layout.Tiles) == 0 {
		return nil, fmt.Errorf("no tiles to download")
	}

	canvas := image.NewRGBA(image.Rect(0, 0, layout.CanvasWidth, layout.CanvasHeight))
	size := s.cfg.TileSize

	successCount := 0
	var lastErr error
	for result := range s.fetchAll(ctx, layout.Tiles, onProgress) {
		if result.err != nil {
			lastErr = result.err
			continue
		}

		img, _, err := image.Decode(bytes.NewReader(result.data))
		if err != nil {
			lastErr = fmt.Errorf("failed to decode tile %d/%d/%d: %w", result.placement.Z, result.placement.X, result.placement.Y, err)
			continue
		}

		pl := result.placement
		destRect := image.Rect(pl.OffsetX, pl.OffsetY, pl.OffsetX+size, pl.OffsetY+size)
		b := img.Bounds()
		if b.Dx() == size && b.Dy() == size {
			draw.Draw(canvas, destRect, img, b.Min, draw.Src)
		} else {
			draw.CatmullRom.Scale(canvas, destRect, img, b, draw.Src, nil)
		}
		successCount++
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if successCount == 0 {
		return nil, fmt.Errorf("no tiles downloaded successfully: %w", lastErr)
	}

	if layout.CanvasWidth == width && layout.CanvasHeight == height {
		return canvas, nil
	}

	out := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(out, out.Bounds(), canvas, canvas.Bounds(), draw.Src, nil)
	return out, nil
}

// Prefetch warms the cache with the tiles for a view and returns how many arrived
func (s *Source) Prefetch(ctx context.Context, center geo.Coordinate, mapZoom, width, height int) (int, error) {
	layout := s.TilesFor(center, mapZoom, width, height)

	fetched := 0
	for result := range s.fetchAll(ctx, layout.Tiles, nil) {
		if result.err == nil {
			fetched++
		}
	}
	return fetched, ctx.Err()
}
