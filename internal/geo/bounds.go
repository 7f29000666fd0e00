package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Coordinate is a WGS84 latitude/longitude pair
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Bounds is a fixed geographic rectangle the map may not leave
type Bounds struct {
	MinLat float64 `json:"minLat"`
	MaxLat float64 `json:"maxLat"`
	MinLng float64 `json:"minLng"`
	MaxLng float64 `json:"maxLng"`
}

// EgyptBounds is the default analysis area
var EgyptBounds = Bounds{
	MinLat: 22.0,
	MaxLat: 31.6,
	MinLng: 25.0,
	MaxLng: 36.9,
}

// Center returns the geographic midpoint of the rectangle
func (b Bounds) Center() Coordinate {
	return Coordinate{
		Latitude:  (b.MinLat + b.MaxLat) / 2,
		Longitude: (b.MinLng + b.MaxLng) / 2,
	}
}

// Contains reports whether c lies inside the rectangle (edges included)
func (b Bounds) Contains(c Coordinate) bool {
	return Validate(c, b) == nil
}

// Check verifies the rectangle itself is usable
func (b Bounds) Check() error {
	if b.MinLat >= b.MaxLat {
		return fmt.Errorf("minLat (%f) must be less than maxLat (%f)", b.MinLat, b.MaxLat)
	}
	if b.MinLng >= b.MaxLng {
		return fmt.Errorf("minLng (%f) must be less than maxLng (%f)", b.MinLng, b.MaxLng)
	}
	if b.MinLat < -MaxLatitude || b.MaxLat > MaxLatitude {
		return fmt.Errorf("latitude out of Web Mercator range: minLat=%f, maxLat=%f", b.MinLat, b.MaxLat)
	}
	if b.MinLng < -180 || b.MaxLng > 180 {
		return fmt.Errorf("longitude out of range [-180, 180]: minLng=%f, maxLng=%f", b.MinLng, b.MaxLng)
	}
	return nil
}

// Axis names the coordinate component a validation error refers to
type Axis string

const (
	AxisLatitude  Axis = "latitude"
	AxisLongitude Axis = "longitude"
)

// ErrorKind classifies a ValidationError
type ErrorKind int

const (
	NotANumber ErrorKind = iota + 1
	OutOfRange
)

// ValidationError describes a rejected coordinate.
// For OutOfRange, Axis/Min/Max name the offending axis and its allowed range.
type ValidationError struct {
	Kind ErrorKind
	Axis Axis
	Min  float64
	Max  float64
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case NotANumber:
		return "please enter valid numbers for both coordinates"
	case OutOfRange:
		return fmt.Sprintf("%s must be between %.1f and %.1f", e.Axis, e.Min, e.Max)
	default:
		return "invalid coordinate"
	}
}

// Validate checks c against b. Latitude is checked before longitude so the
// error always names the first offending axis.
func Validate(c Coordinate, b Bounds) error {
	if !finite(c.Latitude) || !finite(c.Longitude) {
		return &ValidationError{Kind: NotANumber}
	}
	if c.Latitude < b.MinLat || c.Latitude > b.MaxLat {
		return &ValidationError{Kind: OutOfRange, Axis: AxisLatitude, Min: b.MinLat, Max: b.MaxLat}
	}
	if c.Longitude < b.MinLng || c.Longitude > b.MaxLng {
		return &ValidationError{Kind: OutOfRange, Axis: AxisLongitude, Min: b.MinLng, Max: b.MaxLng}
	}
	return nil
}

// ParseCoordinate parses user-entered text into a Coordinate.
// Empty, malformed, NaN and infinite values all yield a NotANumber error.
func ParseCoordinate(latText, lngText string) (Coordinate, error) {
	lat, latErr := strconv.ParseFloat(strings.TrimSpace(latText), 64)
	lng, lngErr := strconv.ParseFloat(strings.TrimSpace(lngText), 64)
	if latErr != nil || lngErr != nil || !finite(lat) || !finite(lng) {
		return Coordinate{}, &ValidationError{Kind: NotANumber}
	}
	return Coordinate{Latitude: lat, Longitude: lng}, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
