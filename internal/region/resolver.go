package region

import (
	"go.uber.org/zap"
)

const (
	// DefaultPointHalfWidth is the half-width in degrees of the extraction
	// window built around a point query (~111 km at the equator).
	DefaultPointHalfWidth = 1.0

	// smallRegionPad widens the window of named regions whose bounding box
	// spans less than smallRegionSpan degrees, so small seas and lakes
	// still yield a usable raster.
	smallRegionPad  = 3.0
	smallRegionSpan = 5.0
)

// Resolver converts a Query into a Resolved region. It is a pure function
// over the immutable gazetteer; a single Resolver may serve any number of
// concurrent queries.
type Resolver struct {
	gaz            Gazetteer
	pointHalfWidth float64
}

// ResolverOption customizes a Resolver.
type ResolverOption func(*Resolver)

// WithPointHalfWidth overrides the extraction half-width for point queries.
func WithPointHalfWidth(deg float64) ResolverOption {
	return func(r *Resolver) {
		if deg > 0 {
			r.pointHalfWidth = deg
		}
	}
}

// NewResolver builds a Resolver over the given gazetteer.
func NewResolver(gaz Gazetteer, opts ...ResolverOption) *Resolver {
	r := &Resolver{gaz: gaz, pointHalfWidth: DefaultPointHalfWidth}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve validates the query and produces the canonical region.
func (r *Resolver) Resolve(q Query) (Resolved, error) {
	if err := q.Validate(); err != nil {
		return Resolved{}, err
	}

	switch {
	case q.Box != nil:
		return r.resolveBox(*q.Box)
	case q.Point != nil:
		return r.resolvePoint(*q.Point)
	default:
		return r.resolveName(q.Name)
	}
}

func (r *Resolver) resolveBox(b BoundingBox) (Resolved, error) {
	if err := b.Validate(); err != nil {
		return Resolved{}, err
	}
	return Resolved{Box: b}, nil
}

func (r *Resolver) resolvePoint(p Coordinate) (Resolved, error) {
	if !p.Valid() {
		return Resolved{}, InvalidQueryf("point (%g, %g) outside valid coordinate ranges", p.Lat, p.Lon)
	}
	d := r.pointHalfWidth
	box := BoundingBox{
		MinLat: maxf(p.Lat-d, -90),
		MaxLat: minf(p.Lat+d, 90),
		MinLon: NormalizeLon(p.Lon - d),
		MaxLon: NormalizeLon(p.Lon + d),
	}
	exact := p
	return Resolved{Box: box, Point: &exact}, nil
}

func (r *Resolver) resolveName(name string) (Resolved, error) {
	entry, ok := r.gaz.Lookup(name)
	if !ok {
		return Resolved{}, NotFoundf("no gazetteer entry matches %q", name)
	}

	box := entry.Box
	if box.MaxLat-box.MinLat < smallRegionSpan || box.LonSpan() < smallRegionSpan {
		box = box.Pad(smallRegionPad)
		zap.L().Debug("region: padded small named region",
			zap.String("name", entry.Name),
			zap.Float64("pad_deg", smallRegionPad),
		)
	}

	return Resolved{Box: box, Polygon: entry.Polygon, Name: entry.Name}, nil
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
