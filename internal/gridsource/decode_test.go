package gridsource

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seaward-systems/marinecast/internal/grid"
)

const windCSV = `"2024-03-22 12:00:00","2024-03-22 12:00:00","UGRD","10 m above ground",287.5,40,3
"2024-03-22 12:00:00","2024-03-22 12:00:00","UGRD","10 m above ground",287.75,40,0
"2024-03-22 12:00:00","2024-03-22 12:00:00","UGRD","10 m above ground",287.5,40.25,6
"2024-03-22 12:00:00","2024-03-22 12:00:00","UGRD","10 m above ground",287.75,40.25,0
"2024-03-22 12:00:00","2024-03-22 12:00:00","VGRD","10 m above ground",287.5,40,4
"2024-03-22 12:00:00","2024-03-22 12:00:00","VGRD","10 m above ground",287.75,40,10
"2024-03-22 12:00:00","2024-03-22 12:00:00","VGRD","10 m above ground",287.5,40.25,8
"2024-03-22 12:00:00","2024-03-22 12:00:00","VGRD","10 m above ground",287.75,40.25,0
"2024-03-22 12:00:00","2024-03-22 12:00:00","GUST","surface",287.5,40,12
"2024-03-22 12:00:00","2024-03-22 12:00:00","GUST","surface",287.75,40,15
"2024-03-22 12:00:00","2024-03-22 12:00:00","GUST","surface",287.5,40.25,18
"2024-03-22 12:00:00","2024-03-22 12:00:00","GUST","surface",287.75,40.25,20
`

func windArtifact() Artifact {
	return Artifact{
		Product:      grid.ProductWind,
		Path:         "/tmp/gfs.t12z.pgrb2.0p25.f000",
		Date:         "20240322",
		Cycle:        "t12z",
		Resolution:   "0p25",
		ForecastHour: 0,
	}
}

func TestParseWGRIB2CSVWind(t *testing.T) {
	f, err := parseWGRIB2CSV(strings.NewReader(windCSV), windArtifact())
	require.NoError(t, err)

	assert.Equal(t, grid.ProductWind, f.Product())
	assert.Equal(t, time.Date(2024, 3, 22, 12, 0, 0, 0, time.UTC), f.ValidTime())
	assert.Equal(t, "t12z", f.Cycle())
	assert.Equal(t, "0p25", f.Resolution())
	assert.Equal(t, 2, f.NumLat())
	assert.Equal(t, 2, f.NumLon())
	assert.True(t, f.LonIn360())

	// Speed is the vector magnitude in knots: 3-4-5 triangle at (40, 287.5).
	v, ok := f.Value(grid.MeasureWindSpeedKnots, 0, 0)
	require.True(t, ok)
	assert.InDelta(t, 5*1.94384, v, 1e-6)

	// Pure-V cell.
	v, ok = f.Value(grid.MeasureWindSpeedKnots, 0, 1)
	require.True(t, ok)
	assert.InDelta(t, 10*1.94384, v, 1e-6)

	// 6-8-10 triangle.
	v, ok = f.Value(grid.MeasureWindSpeedKnots, 1, 0)
	require.True(t, ok)
	assert.InDelta(t, 10*1.94384, v, 1e-6)

	// Gusts carried through in knots.
	v, ok = f.Value(grid.MeasureWindGustKnots, 1, 1)
	require.True(t, ok)
	assert.InDelta(t, 20*1.94384, v, 1e-6)
}

func TestParseWGRIB2CSVWave(t *testing.T) {
	csv := `"2024-03-22 12:00:00","2024-03-22 12:00:00","HTSGW","surface",287.5,40,2.5
"2024-03-22 12:00:00","2024-03-22 12:00:00","HTSGW","surface",287.75,40,4.25
"2024-03-22 12:00:00","2024-03-22 12:00:00","PERPW","surface",287.5,40,9
"2024-03-22 12:00:00","2024-03-22 12:00:00","PERPW","surface",287.75,40,11
"2024-03-22 12:00:00","2024-03-22 12:00:00","DIRPW","surface",287.5,40,180
"2024-03-22 12:00:00","2024-03-22 12:00:00","DIRPW","surface",287.75,40,225
`
	a := windArtifact()
	a.Product = grid.ProductWave
	a.Resolution = "0p16"

	f, err := parseWGRIB2CSV(strings.NewReader(csv), a)
	require.NoError(t, err)

	assert.Equal(t, grid.ProductWave, f.Product())
	assert.Equal(t, 1, f.NumLat())
	assert.Equal(t, 2, f.NumLon())

	v, ok := f.Value(grid.MeasureWaveHeightM, 0, 1)
	require.True(t, ok)
	assert.InDelta(t, 4.25, v, 1e-9)

	v, ok = f.Value(grid.MeasureWavePeriodS, 0, 0)
	require.True(t, ok)
	assert.InDelta(t, 9.0, v, 1e-9)

	v, ok = f.Value(grid.MeasureWaveDirectionDeg, 0, 1)
	require.True(t, ok)
	assert.InDelta(t, 225.0, v, 1e-9)
}

func TestParseWGRIB2CSVMissingComponent(t *testing.T) {
	// UGRD without VGRD cannot produce a speed.
	csv := `"2024-03-22 12:00:00","2024-03-22 12:00:00","UGRD","10 m above ground",287.5,40,3
`
	_, err := parseWGRIB2CSV(strings.NewReader(csv), windArtifact())
	assert.Error(t, err)
}

func TestParseWGRIB2CSVIncompleteGrid(t *testing.T) {
	// VGRD is missing one of UGRD's cells; the hole becomes NaN, the speed
	// at that cell is NaN, and the rest of the grid stays usable.
	csv := `"2024-03-22 12:00:00","2024-03-22 12:00:00","UGRD","10 m above ground",287.5,40,3
"2024-03-22 12:00:00","2024-03-22 12:00:00","UGRD","10 m above ground",287.75,40,3
"2024-03-22 12:00:00","2024-03-22 12:00:00","VGRD","10 m above ground",287.5,40,4
`
	f, err := parseWGRIB2CSV(strings.NewReader(csv), windArtifact())
	require.NoError(t, err)

	v, ok := f.Value(grid.MeasureWindSpeedKnots, 0, 0)
	require.True(t, ok)
	assert.InDelta(t, 5*1.94384, v, 1e-6)

	v, ok = f.Value(grid.MeasureWindSpeedKnots, 0, 1)
	require.True(t, ok)
	assert.True(t, math.IsNaN(v))
}

func TestParseWGRIB2CSVEmpty(t *testing.T) {
	_, err := parseWGRIB2CSV(strings.NewReader(""), windArtifact())
	assert.Error(t, err)
}

func TestParseWGRIB2CSVMalformed(t *testing.T) {
	csv := `"2024-03-22 12:00:00","2024-03-22 12:00:00","UGRD","10 m above ground",not-a-number,40,3
`
	_, err := parseWGRIB2CSV(strings.NewReader(csv), windArtifact())
	assert.Error(t, err)

	badTime := `"x","not a time","UGRD","10 m above ground",287.5,40,3
`
	_, err = parseWGRIB2CSV(strings.NewReader(badTime), windArtifact())
	assert.Error(t, err)
}

func TestNewWGRIB2DecoderDefaultPath(t *testing.T) {
	assert.Equal(t, "wgrib2", NewWGRIB2Decoder("").BinPath)
	assert.Equal(t, "/opt/wgrib2", NewWGRIB2Decoder("/opt/wgrib2").BinPath)
}
