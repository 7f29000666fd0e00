package geo

import "math"

const (
	// MaxLatitude is the Web Mercator (EPSG:3857) latitude limit
	MaxLatitude = 85.0511287798

	// CRSTileSize is the pixel size of one tile at zoom 0 in the map's
	// reference system. Tile sources may use larger tiles with a zoom offset.
	CRSTileSize = 256
)

// Point is a position in world pixel space at some zoom level.
// X grows east, Y grows south; (0,0) is the north-west corner of the world.
type Point struct {
	X float64
	Y float64
}

// WorldSize returns the width (and height) of the world in pixels at zoom
func WorldSize(zoom, tileSize int) float64 {
	return float64(tileSize) * math.Exp2(float64(zoom))
}

// Project converts a coordinate to world pixel space
func Project(c Coordinate, zoom, tileSize int) Point {
	size := WorldSize(zoom, tileSize)
	lat := math.Max(-MaxLatitude, math.Min(MaxLatitude, c.Latitude))
	latRad := lat * math.Pi / 180.0

	x := (c.Longitude + 180.0) / 360.0 * size
	y := (1.0 - math.Log(math.Tan(latRad)+1.0/math.Cos(latRad))/math.Pi) / 2.0 * size
	return Point{X: x, Y: y}
}

// Unproject converts a world pixel position back to a coordinate
func Unproject(p Point, zoom, tileSize int) Coordinate {
	size := WorldSize(zoom, tileSize)
	lng := p.X/size*360.0 - 180.0
	n := math.Pi - 2.0*math.Pi*p.Y/size
	lat := 180.0 / math.Pi * math.Atan(math.Sinh(n))
	return Coordinate{Latitude: lat, Longitude: lng}
}

// PixelRect returns the north-west and south-east corners of b in world pixel space
func (b Bounds) PixelRect(zoom, tileSize int) (nw, se Point) {
	nw = Project(Coordinate{Latitude: b.MaxLat, Longitude: b.MinLng}, zoom, tileSize)
	se = Project(Coordinate{Latitude: b.MinLat, Longitude: b.MaxLng}, zoom, tileSize)
	return nw, se
}

// ResolutionAtZoom returns approximate ground meters per pixel at a latitude
func ResolutionAtZoom(zoom int, lat float64) float64 {
	const equator = 40075016.685578
	return equator * math.Cos(lat*math.Pi/180.0) / WorldSize(zoom, CRSTileSize)
}
