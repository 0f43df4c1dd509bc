package grid

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/seaward-systems/marinecast/internal/region"
)

// fieldWithValues builds a wind field whose wind_speed_knots at each cell
// encodes the cell's coordinates, so extraction results can be traced back
// to the cell they came from.
func fieldWithValues(t *testing.T, lats, lons []float64) *Field {
	t.Helper()
	values := make([]float64, len(lats)*len(lons))
	for i, lat := range lats {
		for j, lon := range lons {
			values[i*len(lons)+j] = lat*1000 + region.NormalizeLon(lon)
		}
	}
	f, err := NewField(ProductWind, time.Date(2024, 3, 22, 12, 0, 0, 0, time.UTC),
		"t12z", "0p25", 0, lats, lons, map[string][]float64{MeasureWindSpeedKnots: values})
	require.NoError(t, err)
	return f
}

func resolvedBox(minLat, maxLat, minLon, maxLon float64) region.Resolved {
	return region.Resolved{Box: region.BoundingBox{
		MinLat: minLat, MaxLat: maxLat, MinLon: minLon, MaxLon: maxLon,
	}}
}

func TestExtractBoundingBoxQuarterDegree(t *testing.T) {
	// Global-ish 0.25° field spanning the US east coast.
	f := fieldWithValues(t, axis(30, 0.25, 81), axis(-80, 0.25, 81))

	points := Extract(f, resolvedBox(37.5, 42.5, -72.5, -67.5))

	// 21 latitudes x 21 longitudes, bounds inclusive.
	require.Len(t, points, 21*21)

	first := points[0]
	assert.InDelta(t, 37.5, first.Latitude, 1e-9)
	assert.InDelta(t, -72.5, first.Longitude, 1e-9)

	last := points[len(points)-1]
	assert.InDelta(t, 42.5, last.Latitude, 1e-9)
	assert.InDelta(t, -67.5, last.Longitude, 1e-9)

	// Scan order: latitude ascending, longitude ascending within a row.
	for k := 1; k < len(points); k++ {
		prev, cur := points[k-1], points[k]
		if cur.Latitude == prev.Latitude {
			assert.Greater(t, cur.Longitude, prev.Longitude)
		} else {
			assert.Greater(t, cur.Latitude, prev.Latitude)
		}
	}

	// Values map back to the cell they were extracted from.
	for _, p := range points {
		assert.InDelta(t, p.Latitude*1000+p.Longitude, p.Values[MeasureWindSpeedKnots], 1e-6)
	}
}

func TestExtractDescendingLatitudeAxis(t *testing.T) {
	// GFS grids scan north to south; output must still ascend.
	lats := make([]float64, 81)
	for i := range lats {
		lats[i] = 50 - float64(i)*0.25
	}
	f := fieldWithValues(t, lats, axis(-80, 0.25, 81))

	points := Extract(f, resolvedBox(37.5, 42.5, -72.5, -67.5))
	require.Len(t, points, 21*21)
	assert.InDelta(t, 37.5, points[0].Latitude, 1e-9)
	assert.InDelta(t, 42.5, points[len(points)-1].Latitude, 1e-9)
}

func TestExtract360ConventionGrid(t *testing.T) {
	// Same region, but the grid stores longitudes as 280..300.
	f := fieldWithValues(t, axis(30, 0.25, 81), axis(280, 0.25, 81))

	points := Extract(f, resolvedBox(37.5, 42.5, -72.5, -67.5))
	require.Len(t, points, 21*21)

	// Output longitudes are normalized to −180..180.
	assert.InDelta(t, -72.5, points[0].Longitude, 1e-9)
	assert.InDelta(t, -67.5, points[len(points)-1].Longitude, 1e-9)
}

func TestExtractAntimeridianWrap(t *testing.T) {
	// 0–360 grid covering 170..190 (i.e. 170..180 and −180..−170).
	f := fieldWithValues(t, axis(-5, 0.25, 41), axis(170, 0.25, 81))

	points := Extract(f, resolvedBox(-2, 2, 178, -178))

	require.NotEmpty(t, points)
	for _, p := range points {
		assert.True(t, p.Longitude >= 178 || p.Longitude <= -178,
			"longitude %g outside wrapped interval", p.Longitude)
	}

	// Within one latitude row the west side (178..180) comes before the
	// east side (−180..−178).
	row := points[0].Latitude
	sawEast := false
	for _, p := range points {
		if p.Latitude != row {
			break
		}
		if p.Longitude < 0 {
			sawEast = true
		} else {
			assert.False(t, sawEast, "positive longitude after negative in one row")
		}
	}
}

func TestExtractEmptyIntersection(t *testing.T) {
	f := fieldWithValues(t, axis(30, 0.25, 11), axis(-80, 0.25, 11))

	points := Extract(f, resolvedBox(60, 65, 0, 5))
	assert.NotNil(t, points)
	assert.Empty(t, points)
}

// triangle returns a multipolygon covering the right triangle with legs on
// lat/lon 0..10.
func triangle(t *testing.T) *geom.MultiPolygon {
	t.Helper()
	poly := geom.NewPolygon(geom.XY)
	_, err := poly.SetCoords([][]geom.Coord{{
		{0, 0}, {10, 0}, {0, 10}, {0, 0},
	}})
	require.NoError(t, err)
	mp := geom.NewMultiPolygon(geom.XY)
	require.NoError(t, mp.Push(poly))
	return mp
}

func TestExtractPolygonFilter(t *testing.T) {
	f := fieldWithValues(t, axis(0, 1, 11), axis(0, 1, 11))

	r := resolvedBox(0, 10, 0, 10)
	r.Polygon = triangle(t)

	points := Extract(f, r)
	require.NotEmpty(t, points)

	for _, p := range points {
		// Inside or on the hypotenuse lon + lat <= 10.
		assert.LessOrEqual(t, p.Latitude+p.Longitude, 10.0+1e-9)
	}

	// Boundary cells are included: the three corners are all present.
	var corners int
	for _, p := range points {
		if (p.Latitude == 0 && p.Longitude == 0) ||
			(p.Latitude == 0 && p.Longitude == 10) ||
			(p.Latitude == 10 && p.Longitude == 0) {
			corners++
		}
	}
	assert.Equal(t, 3, corners)
}

func TestPointInPolygonHole(t *testing.T) {
	// Square with a square hole in the middle.
	poly := geom.NewPolygon(geom.XY)
	_, err := poly.SetCoords([][]geom.Coord{
		{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
		{{4, 4}, {6, 4}, {6, 6}, {4, 6}, {4, 4}},
	})
	require.NoError(t, err)
	mp := geom.NewMultiPolygon(geom.XY)
	require.NoError(t, mp.Push(poly))

	assert.True(t, PointInPolygon(mp, 2, 2))
	assert.False(t, PointInPolygon(mp, 5, 5))
	// Hole boundary still counts as inside.
	assert.True(t, PointInPolygon(mp, 4, 4))
	assert.False(t, PointInPolygon(mp, 20, 20))
}

func TestNearestCell(t *testing.T) {
	f := fieldWithValues(t, axis(30, 0.25, 81), axis(-80, 0.25, 81))

	p, ok := NearestCell(f, region.Coordinate{Lat: 40.1, Lon: -70.1})
	require.True(t, ok)
	assert.InDelta(t, 40.0, p.Latitude, 1e-9)
	assert.InDelta(t, -70.0, p.Longitude, 1e-9)

	// Exactly on a cell center.
	p, ok = NearestCell(f, region.Coordinate{Lat: 40, Lon: -70})
	require.True(t, ok)
	assert.InDelta(t, 40.0, p.Latitude, 1e-9)
	assert.InDelta(t, -70.0, p.Longitude, 1e-9)

	// Outside the grid entirely snaps to the nearest edge cell.
	p, ok = NearestCell(f, region.Coordinate{Lat: 80, Lon: -70})
	require.True(t, ok)
	assert.InDelta(t, 50.0, p.Latitude, 1e-9)
}

func TestNearestCellOn360Grid(t *testing.T) {
	f := fieldWithValues(t, axis(30, 0.25, 81), axis(280, 0.25, 81))

	p, ok := NearestCell(f, region.Coordinate{Lat: 40.07, Lon: -70.06})
	require.True(t, ok)
	assert.InDelta(t, 40.0, p.Latitude, 1e-9)
	assert.InDelta(t, -70.0, p.Longitude, 1e-9)
}

func TestNearestCellAcrossLonSeam(t *testing.T) {
	// Global 0–360 grid at 1° spacing: columns 0..359. A query just west
	// of the seam is 0.4° from column 0 and 0.6° from column 359; the
	// nearest cell must be column 0, not the last column of the axis.
	f := fieldWithValues(t, axis(-2, 1, 5), axis(0, 1, 360))

	p, ok := NearestCell(f, region.Coordinate{Lat: 0, Lon: -0.4})
	require.True(t, ok)
	assert.InDelta(t, 0.0, p.Longitude, 1e-9)

	// Just east of the seam still resolves within the bracketed columns.
	p, ok = NearestCell(f, region.Coordinate{Lat: 0, Lon: 0.4})
	require.True(t, ok)
	assert.InDelta(t, 0.0, p.Longitude, 1e-9)

	p, ok = NearestCell(f, region.Coordinate{Lat: 0, Lon: -0.6})
	require.True(t, ok)
	assert.InDelta(t, -1.0, p.Longitude, 1e-9)
}

func TestNearestCellAcrossDatelineSeam(t *testing.T) {
	// Global −180..180 grid: columns −180..179. A query at 179.6 is 0.4°
	// from the −180 column and 0.6° from 179.
	f := fieldWithValues(t, axis(-2, 1, 5), axis(-180, 1, 360))

	p, ok := NearestCell(f, region.Coordinate{Lat: 0, Lon: 179.6})
	require.True(t, ok)
	assert.InDelta(t, -180.0, p.Longitude, 1e-9)

	p, ok = NearestCell(f, region.Coordinate{Lat: 0, Lon: 179.4})
	require.True(t, ok)
	assert.InDelta(t, 179.0, p.Longitude, 1e-9)
}

func TestHaversineKM(t *testing.T) {
	// One degree of latitude is about 111 km.
	d := HaversineKM(40, -70, 41, -70)
	assert.InDelta(t, 111.3, d, 1.0)

	assert.InDelta(t, 0.0, HaversineKM(40, -70, 40, -70), 1e-9)
}

func TestDataPointJSON(t *testing.T) {
	p := DataPoint{
		Latitude:  40.25,
		Longitude: -70.5,
		Values: map[string]float64{
			MeasureWindSpeedKnots: 32.5,
			MeasureWindGustKnots:  41.0,
		},
	}

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var flat map[string]float64
	require.NoError(t, json.Unmarshal(data, &flat))
	assert.InDelta(t, 40.25, flat["latitude"], 1e-6)
	assert.InDelta(t, -70.5, flat["longitude"], 1e-6)
	assert.InDelta(t, 32.5, flat["wind_speed_knots"], 1e-6)

	var back DataPoint
	require.NoError(t, json.Unmarshal(data, &back))
	assert.InDelta(t, p.Latitude, back.Latitude, 1e-6)
	assert.InDelta(t, p.Longitude, back.Longitude, 1e-6)
	assert.InDelta(t, 32.5, back.Values[MeasureWindSpeedKnots], 1e-6)

	var missing DataPoint
	err = json.Unmarshal([]byte(`{"wind_speed_knots": 3}`), &missing)
	assert.Error(t, err)
}
