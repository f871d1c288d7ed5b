package cluster

import (
	"math"
)

// TileSize is the pixel width of the zoom-0 world, matching the base scale
// of the mapping provider's world coordinates.
const TileSize = 256

// maxSin clamps latitude near the poles where Mercator diverges.
const maxSin = 0.9999

// Point is a planar coordinate, either world units or screen pixels.
type Point struct {
	X, Y float64
}

// Projector is the mapping provider's projection as seen by the engine and
// the presenter. Both projections report false when the projection is not
// available yet or the coordinate cannot be projected.
type Projector interface {
	// ProjectToPoint returns the zoom-independent world point.
	ProjectToPoint(ll LatLng) (Point, bool)

	// ProjectToPixel returns the screen-space pixel for the current view.
	ProjectToPixel(ll LatLng) (Point, bool)

	// Zoom returns the current integer zoom level.
	Zoom() int
}

// readiness is implemented by projectors that can report whether they have
// been initialised.
type readiness interface {
	Ready() bool
}

// WorldPoint converts lng/lat into world coordinates at TileSize scale.
func WorldPoint(ll LatLng) (Point, bool) {
	if math.IsNaN(ll.Lat) || math.IsNaN(ll.Lng) || math.IsInf(ll.Lat, 0) || math.IsInf(ll.Lng, 0) {
		return Point{}, false
	}

	sin := math.Sin(ll.Lat * math.Pi / 180)
	sin = math.Max(math.Min(sin, maxSin), -maxSin)

	x := (ll.Lng + 180) / 360
	y := 0.5 - 0.25*math.Log((1+sin)/(1-sin))/math.Pi

	return Point{X: x * TileSize, Y: y * TileSize}, true
}

// Unproject converts a world point back to lng/lat.
func Unproject(p Point) LatLng {
	x := p.X / TileSize
	y := p.Y / TileSize

	lng := x*360 - 180
	lat := math.Atan(math.Sinh(math.Pi*(1-2*y))) * 180 / math.Pi
	return LatLng{Lat: lat, Lng: lng}
}

// ZoomScale returns 2^zoom.
func ZoomScale(zoom int) float64 {
	return math.Ldexp(1, zoom)
}

// WebMercator is a spherical Mercator projection bound to a viewport.
type WebMercator struct {
	Center        LatLng
	ZoomLevel     int
	Width, Height float64
}

// ProjectToPoint returns the world point for ll.
func (m WebMercator) ProjectToPoint(ll LatLng) (Point, bool) {
	return WorldPoint(ll)
}

// ProjectToPixel returns the pixel position of ll inside the viewport, with
// the origin at the top-left corner.
func (m WebMercator) ProjectToPixel(ll LatLng) (Point, bool) {
	p, ok := WorldPoint(ll)
	if !ok {
		return Point{}, false
	}
	c, ok := WorldPoint(m.Center)
	if !ok {
		return Point{}, false
	}

	scale := ZoomScale(m.ZoomLevel)
	return Point{
		X: (p.X-c.X)*scale + m.Width/2,
		Y: (p.Y-c.Y)*scale + m.Height/2,
	}, true
}

// Zoom returns the viewport zoom level.
func (m WebMercator) Zoom() int {
	return m.ZoomLevel
}
