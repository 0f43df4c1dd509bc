// Package region models heterogeneous region queries (named place, single
// point, or bounding box) and resolves them into a canonical extraction
// window plus, for named regions, a membership polygon.
package region

import (
	"math"

	"github.com/twpayne/go-geom"
)

// Coordinate is a geographic point in degrees, longitude in −180..180.
type Coordinate struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// Valid reports whether the coordinate is inside the legal lat/lon ranges.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// BoundingBox is a lat/lon window. MinLon > MaxLon means the box wraps the
// antimeridian and covers [MinLon, 180] ∪ [−180, MaxLon].
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// Validate checks the box invariants: ordered latitudes inside −90..90,
// longitudes inside −180..180, and a non-degenerate longitude span.
func (b BoundingBox) Validate() error {
	if b.MinLat < -90 || b.MaxLat > 90 {
		return InvalidQueryf("latitude bounds [%g, %g] outside -90..90", b.MinLat, b.MaxLat)
	}
	if b.MinLat >= b.MaxLat {
		return InvalidQueryf("min_lat %g must be below max_lat %g", b.MinLat, b.MaxLat)
	}
	if b.MinLon < -180 || b.MinLon > 180 || b.MaxLon < -180 || b.MaxLon > 180 {
		return InvalidQueryf("longitude bounds [%g, %g] outside -180..180", b.MinLon, b.MaxLon)
	}
	if b.MinLon == b.MaxLon {
		return InvalidQueryf("degenerate longitude span at %g", b.MinLon)
	}
	return nil
}

// WrapsAntimeridian reports whether the longitude interval crosses 180°.
func (b BoundingBox) WrapsAntimeridian() bool {
	return b.MinLon > b.MaxLon
}

// LonSpan returns the width of the longitude interval in degrees,
// accounting for antimeridian wrap.
func (b BoundingBox) LonSpan() float64 {
	if b.WrapsAntimeridian() {
		return (180 - b.MinLon) + (b.MaxLon + 180)
	}
	return b.MaxLon - b.MinLon
}

// ContainsLon reports whether a −180..180 longitude falls inside the
// (possibly wrapping) longitude interval. Bounds are inclusive.
func (b BoundingBox) ContainsLon(lon float64) bool {
	if b.WrapsAntimeridian() {
		return lon >= b.MinLon || lon <= b.MaxLon
	}
	return lon >= b.MinLon && lon <= b.MaxLon
}

// Contains reports whether the coordinate lies inside the box (inclusive).
func (b BoundingBox) Contains(c Coordinate) bool {
	return c.Lat >= b.MinLat && c.Lat <= b.MaxLat && b.ContainsLon(c.Lon)
}

// Pad grows the box by d degrees on every side, clamping latitudes to the
// poles and renormalizing longitudes.
func (b BoundingBox) Pad(d float64) BoundingBox {
	out := BoundingBox{
		MinLat: math.Max(b.MinLat-d, -90),
		MaxLat: math.Min(b.MaxLat+d, 90),
		MinLon: NormalizeLon(b.MinLon - d),
		MaxLon: NormalizeLon(b.MaxLon + d),
	}
	// Padding past a full circle collapses to the whole longitude range.
	if b.LonSpan()+2*d >= 360 {
		out.MinLon, out.MaxLon = -180, 180
	}
	return out
}

// NormalizeLon maps any longitude into −180..180.
func NormalizeLon(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

// LonTo360 maps a −180..180 longitude into the 0–360 convention common
// to upstream forecast grids.
func LonTo360(lon float64) float64 {
	if lon < 0 {
		return lon + 360
	}
	return lon
}

// Query is a tagged region variant. Exactly one of Name, Point, or Box must
// be set; Validate enforces this before any resolution happens.
type Query struct {
	Name  string
	Point *Coordinate
	Box   *BoundingBox
}

// ByName builds a named-region query.
func ByName(name string) Query { return Query{Name: name} }

// ByPoint builds a point query.
func ByPoint(lat, lon float64) Query {
	return Query{Point: &Coordinate{Lat: lat, Lon: lon}}
}

// ByBoundingBox builds an explicit bounding-box query.
func ByBoundingBox(minLat, maxLat, minLon, maxLon float64) Query {
	return Query{Box: &BoundingBox{MinLat: minLat, MaxLat: maxLat, MinLon: minLon, MaxLon: maxLon}}
}

// Validate checks that exactly one variant is present.
func (q Query) Validate() error {
	n := 0
	if q.Name != "" {
		n++
	}
	if q.Point != nil {
		n++
	}
	if q.Box != nil {
		n++
	}
	switch n {
	case 0:
		return InvalidQueryf("one of name, point, or bounding box is required")
	case 1:
		return nil
	default:
		return InvalidQueryf("conflicting region fields: supply exactly one of name, point, or bounding box")
	}
}

// Resolved is the canonical form every query reduces to: an extraction
// window, the exact point for nearest-cell semantics (point queries only),
// and a membership polygon (named regions only).
type Resolved struct {
	Box     BoundingBox
	Point   *Coordinate
	Polygon *geom.MultiPolygon
	Name    string
}

// Entry is a gazetteer record as seen by the resolver.
type Entry struct {
	Name    string
	Box     BoundingBox
	Polygon *geom.MultiPolygon
}

// Gazetteer is the read-only name lookup the resolver consults for named
// regions. Implementations must be safe for concurrent use.
type Gazetteer interface {
	Lookup(name string) (Entry, bool)
}
