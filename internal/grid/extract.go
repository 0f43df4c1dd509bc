package grid

import (
	"math"
	"sort"

	"github.com/twpayne/go-geom"

	"github.com/seaward-systems/marinecast/internal/region"
)

// Extract returns the data points for every cell of f whose center lies
// inside the resolved region, in deterministic scan order: latitude
// ascending, then longitude west to east across the region's window. For
// non-wrapping regions that is plain longitude-ascending in −180..180.
// For polygon-bearing regions, cell centers are additionally tested for
// membership; boundary cells are included. An empty intersection yields an
// empty slice, never an error.
func Extract(f *Field, r region.Resolved) []DataPoint {
	latIdx := latWindow(f, r.Box.MinLat, r.Box.MaxLat)
	lonIdx := lonWindows(f, r.Box)

	points := make([]DataPoint, 0, len(latIdx)*len(lonIdx))
	for _, i := range latIdx {
		lat := f.lats[i]
		for _, j := range lonIdx {
			lon := region.NormalizeLon(f.lons[j])
			if r.Polygon != nil && !PointInPolygon(r.Polygon, lat, lon) {
				continue
			}
			points = append(points, f.cellPoint(i, j, lat, lon))
		}
	}
	return points
}

func (f *Field) cellPoint(i, j int, lat, lon float64) DataPoint {
	values := make(map[string]float64, len(f.measures))
	for name, vals := range f.measures {
		values[name] = vals[i*len(f.lons)+j]
	}
	return DataPoint{Latitude: lat, Longitude: lon, Values: values}
}

// latWindow returns the axis indices whose latitude lies in [lo, hi],
// ordered by ascending latitude regardless of the axis direction.
func latWindow(f *Field, lo, hi float64) []int {
	n := len(f.lats)
	if f.latAscending {
		start := sort.Search(n, func(i int) bool { return f.lats[i] >= lo })
		end := sort.Search(n, func(i int) bool { return f.lats[i] > hi })
		idx := make([]int, 0, end-start)
		for i := start; i < end; i++ {
			idx = append(idx, i)
		}
		return idx
	}
	// Descending axis: rows run north to south; emit them south-first.
	start := sort.Search(n, func(i int) bool { return f.lats[i] <= hi })
	end := sort.Search(n, func(i int) bool { return f.lats[i] < lo })
	idx := make([]int, 0, end-start)
	for i := end - 1; i >= start; i-- {
		idx = append(idx, i)
	}
	return idx
}

// lonWindows converts the region's longitude interval into the grid's own
// convention exactly once, splits it where it wraps, and returns the
// matching axis indices ordered by ascending output longitude.
func lonWindows(f *Field, box region.BoundingBox) []int {
	type span struct{ lo, hi float64 }
	var spans []span

	if f.lonIn360 {
		lo, hi := region.LonTo360(box.MinLon), region.LonTo360(box.MaxLon)
		if lo <= hi {
			spans = []span{{lo, hi}}
		} else {
			spans = []span{{lo, 360}, {0, hi}}
		}
	} else {
		if box.WrapsAntimeridian() {
			spans = []span{{box.MinLon, 180}, {-180, box.MaxLon}}
		} else {
			spans = []span{{box.MinLon, box.MaxLon}}
		}
	}

	n := len(f.lons)
	windows := make([][]int, 0, len(spans))
	for _, s := range spans {
		start := sort.Search(n, func(j int) bool { return f.lons[j] >= s.lo })
		end := sort.Search(n, func(j int) bool { return f.lons[j] > s.hi })
		if start >= end {
			continue
		}
		w := make([]int, 0, end-start)
		for j := start; j < end; j++ {
			w = append(w, j)
		}
		windows = append(windows, w)
	}

	// Order windows west to east from the box's western edge so wrapped
	// intervals scan in one geographic sweep.
	offset := func(lon float64) float64 {
		d := math.Mod(region.NormalizeLon(lon)-box.MinLon, 360)
		if d < 0 {
			d += 360
		}
		return d
	}
	sort.Slice(windows, func(a, b int) bool {
		return offset(f.lons[windows[a][0]]) < offset(f.lons[windows[b][0]])
	})

	var idx []int
	for _, w := range windows {
		idx = append(idx, w...)
	}
	return idx
}

// NearestCell returns the data point of the cell whose center is closest
// to p by great-circle distance. The second return is false only for an
// empty field. Ties break toward the lower latitude, then lower longitude,
// so selection is deterministic.
func NearestCell(f *Field, p region.Coordinate) (DataPoint, bool) {
	if len(f.lats) == 0 || len(f.lons) == 0 {
		return DataPoint{}, false
	}

	latCands := nearestAxisIndices(f.lats, p.Lat)
	gridLon := p.Lon
	if f.lonIn360 {
		gridLon = region.LonTo360(p.Lon)
	}
	lonCands := nearestLonIndices(f.lons, gridLon)

	best := DataPoint{}
	bestDist := math.Inf(1)
	found := false
	for _, i := range latCands {
		for _, j := range lonCands {
			lat := f.lats[i]
			lon := region.NormalizeLon(f.lons[j])
			d := HaversineKM(p.Lat, p.Lon, lat, lon)
			if !found || d < bestDist ||
				(d == bestDist && (lat < best.Latitude || (lat == best.Latitude && lon < best.Longitude))) {
				best = f.cellPoint(i, j, lat, lon)
				bestDist = d
				found = true
			}
		}
	}
	return best, found
}

// nearestLonIndices brackets v on the longitude axis and, when the axis
// spans the full circle or v falls off either end, adds the seam columns so
// a query just west of the first column can still select it. The haversine
// comparison in NearestCell decides between the candidates.
func nearestLonIndices(lons []float64, v float64) []int {
	idx := nearestAxisIndices(lons, v)
	n := len(lons)
	if n < 2 {
		return idx
	}

	step := (lons[n-1] - lons[0]) / float64(n-1)
	global := lons[n-1]-lons[0]+step >= 360-1e-6
	if global || v < lons[0] || v > lons[n-1] {
		idx = appendIndex(idx, 0)
		idx = appendIndex(idx, n-1)
	}
	return idx
}

func appendIndex(idx []int, i int) []int {
	for _, have := range idx {
		if have == i {
			return idx
		}
	}
	return append(idx, i)
}

// nearestAxisIndices returns the axis indices bracketing v. Monotonic axes
// make the nearest cell one of the two neighbors of the insertion point.
func nearestAxisIndices(axis []float64, v float64) []int {
	n := len(axis)
	ascending := n < 2 || axis[1] > axis[0]

	var at int
	if ascending {
		at = sort.Search(n, func(i int) bool { return axis[i] >= v })
	} else {
		at = sort.Search(n, func(i int) bool { return axis[i] <= v })
	}

	idx := make([]int, 0, 2)
	for _, i := range []int{at - 1, at} {
		if i >= 0 && i < n {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		idx = append(idx, n-1)
	}
	return idx
}

// earthRadiusKM is the equatorial radius used for great-circle distances.
const earthRadiusKM = 6378.137

// HaversineKM computes the great-circle distance between two coordinates.
func HaversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	const degToRad = math.Pi / 180
	dLat := (lat2 - lat1) * degToRad
	dLon := (lon2 - lon1) * degToRad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// PointInPolygon tests membership of a coordinate in a multi-polygon using
// even-odd ray casting across every ring. Points on a ring boundary count
// as inside (regions are closed).
func PointInPolygon(mp *geom.MultiPolygon, lat, lon float64) bool {
	if mp == nil {
		return false
	}
	inside := false
	for i := 0; i < mp.NumPolygons(); i++ {
		p := mp.Polygon(i)
		for j := 0; j < p.NumLinearRings(); j++ {
			ring := p.LinearRing(j)
			on, crossings := castRay(ring, lon, lat)
			if on {
				return true
			}
			if crossings%2 == 1 {
				inside = !inside
			}
		}
	}
	return inside
}

const boundaryEps = 1e-9

// castRay counts crossings of a horizontal ray from (x, y) toward +x with
// the ring's edges, and reports whether the point lies on an edge.
func castRay(ring *geom.LinearRing, x, y float64) (onBoundary bool, crossings int) {
	n := ring.NumCoords()
	for k := 0; k < n-1; k++ {
		a := ring.Coord(k)
		b := ring.Coord(k + 1)
		ax, ay := a.X(), a.Y()
		bx, by := b.X(), b.Y()

		if onSegment(ax, ay, bx, by, x, y) {
			return true, 0
		}

		if (ay > y) != (by > y) {
			xCross := ax + (y-ay)/(by-ay)*(bx-ax)
			if xCross > x {
				crossings++
			}
		}
	}
	return false, crossings
}

func onSegment(ax, ay, bx, by, x, y float64) bool {
	cross := (bx-ax)*(y-ay) - (by-ay)*(x-ax)
	if math.Abs(cross) > boundaryEps {
		return false
	}
	return x >= math.Min(ax, bx)-boundaryEps && x <= math.Max(ax, bx)+boundaryEps &&
		y >= math.Min(ay, by)-boundaryEps && y <= math.Max(ay, by)+boundaryEps
}
