package viewport

import "satellitor-desktop/internal/geo"

// Extent is the geographic area visible on a surface
type Extent struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	West  float64 `json:"west"`
	East  float64 `json:"east"`
}

// VisibleExtent returns the area a width x height surface shows at center/zoom
func VisibleExtent(center geo.Coordinate, zoom, width, height int) Extent {
	p := geo.Project(center, zoom, geo.CRSTileSize)
	halfW := float64(width) / 2
	halfH := float64(height) / 2

	nw := geo.Unproject(geo.Point{X: p.X - halfW, Y: p.Y - halfH}, zoom, geo.CRSTileSize)
	se := geo.Unproject(geo.Point{X: p.X + halfW, Y: p.Y + halfH}, zoom, geo.CRSTileSize)
	return Extent{North: nw.Latitude, South: se.Latitude, West: nw.Longitude, East: se.Longitude}
}

// Constrain pulls center back so that a width x height view at zoom stays
// inside bounds. On an axis where the view is larger than the bounds, the
// center is pinned to the middle of the bounds on that axis.
func Constrain(center geo.Coordinate, zoom, width, height int, bounds geo.Bounds) geo.Coordinate {
	nw, se := bounds.PixelRect(zoom, geo.CRSTileSize)
	p := geo.Project(center, zoom, geo.CRSTileSize)

	p.X = constrainAxis(p.X, nw.X, se.X, float64(width)/2)
	p.Y = constrainAxis(p.Y, nw.Y, se.Y, float64(height)/2)

	return geo.Unproject(p, zoom, geo.CRSTileSize)
}

func constrainAxis(v, min, max, half float64) float64 {
	if max-min <= 2*half {
		return (min + max) / 2
	}
	if v-half < min {
		return min + half
	}
	if v+half > max {
		return max - half
	}
	return v
}
