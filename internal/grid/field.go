// Package grid holds the immutable in-memory form of a decoded forecast
// field and the extraction engine that filters its cells to a resolved
// region.
package grid

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Product identifies the forecast model family a field came from.
type Product string

const (
	// ProductWind is the GFS atmospheric product (10 m wind, gusts).
	ProductWind Product = "wind"
	// ProductWave is the GFS wave product (significant height, period, direction).
	ProductWave Product = "wave"
)

// Measurement keys used across extraction, hazards, and the response schema.
const (
	MeasureWindSpeedKnots   = "wind_speed_knots"
	MeasureWindGustKnots    = "wind_gust_knots"
	MeasureWaveHeightM      = "wave_height_m"
	MeasureWavePeriodS      = "wave_period_s"
	MeasureWaveDirectionDeg = "wave_direction_deg"
)

// Field is one decoded forecast grid. It is immutable after construction:
// NewField copies every slice it is given, and all access goes through
// read-only methods, so concurrent queries may share a Field freely.
type Field struct {
	product      Product
	validTime    time.Time
	cycle        string
	resolution   string
	forecastHour int

	lats         []float64 // monotonic, either direction
	lons         []float64 // strictly ascending in the grid's own convention
	latAscending bool
	lonIn360     bool

	measures map[string][]float64 // row-major [latIdx*len(lons)+lonIdx]
}

// NewField validates axes and values and builds an immutable Field.
// Latitude may ascend or descend (GFS grids scan north to south); longitude
// must ascend in whichever convention (0–360 or −180..180) the source uses.
func NewField(product Product, validTime time.Time, cycle, resolution string, forecastHour int,
	lats, lons []float64, measures map[string][]float64) (*Field, error) {

	if len(lats) == 0 || len(lons) == 0 {
		return nil, eris.New("grid: empty axis")
	}
	ascending, err := monotonicDirection(lats)
	if err != nil {
		return nil, eris.Wrap(err, "grid: latitude axis")
	}
	lonAsc, err := monotonicDirection(lons)
	if err != nil {
		return nil, eris.Wrap(err, "grid: longitude axis")
	}
	if !lonAsc {
		return nil, eris.New("grid: longitude axis must be ascending")
	}
	if len(measures) == 0 {
		return nil, eris.New("grid: no measurements")
	}

	want := len(lats) * len(lons)
	copied := make(map[string][]float64, len(measures))
	for name, vals := range measures {
		if len(vals) != want {
			return nil, eris.Errorf("grid: measurement %s has %d values, want %d", name, len(vals), want)
		}
		cp := make([]float64, want)
		copy(cp, vals)
		copied[name] = cp
	}

	lonIn360 := false
	for _, lon := range lons {
		if lon > 180 {
			lonIn360 = true
			break
		}
	}

	f := &Field{
		product:      product,
		validTime:    validTime,
		cycle:        cycle,
		resolution:   resolution,
		forecastHour: forecastHour,
		lats:         append([]float64(nil), lats...),
		lons:         append([]float64(nil), lons...),
		latAscending: ascending,
		lonIn360:     lonIn360,
		measures:     copied,
	}
	return f, nil
}

func monotonicDirection(axis []float64) (ascending bool, err error) {
	if len(axis) == 1 {
		return true, nil
	}
	ascending = axis[1] > axis[0]
	for i := 1; i < len(axis); i++ {
		if ascending && axis[i] <= axis[i-1] {
			return false, eris.Errorf("not strictly ascending at index %d", i)
		}
		if !ascending && axis[i] >= axis[i-1] {
			return false, eris.Errorf("not strictly descending at index %d", i)
		}
	}
	return ascending, nil
}

// Product returns the field's product family.
func (f *Field) Product() Product { return f.product }

// ValidTime returns the instant the forecast is valid for.
func (f *Field) ValidTime() time.Time { return f.validTime }

// Cycle returns the model run identifier, e.g. "t12z".
func (f *Field) Cycle() string { return f.cycle }

// Resolution returns the grid resolution token, e.g. "0p25".
func (f *Field) Resolution() string { return f.resolution }

// ForecastHour returns the hours-ahead offset from the cycle.
func (f *Field) ForecastHour() int { return f.forecastHour }

// NumLat and NumLon return the axis lengths.
func (f *Field) NumLat() int { return len(f.lats) }

func (f *Field) NumLon() int { return len(f.lons) }

// Lat returns the latitude of axis row i.
func (f *Field) Lat(i int) float64 { return f.lats[i] }

// Lon returns the longitude of axis column j, in the grid's own convention.
func (f *Field) Lon(j int) float64 { return f.lons[j] }

// LonIn360 reports whether the longitude axis uses the 0–360 convention.
func (f *Field) LonIn360() bool { return f.lonIn360 }

// Value returns a measurement at cell (i, j).
func (f *Field) Value(measure string, i, j int) (float64, bool) {
	vals, ok := f.measures[measure]
	if !ok {
		return 0, false
	}
	return vals[i*len(f.lons)+j], true
}

// Measurements lists the field's measurement names, sorted for determinism.
func (f *Field) Measurements() []string {
	names := make([]string, 0, len(f.measures))
	for name := range f.measures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolutionDegrees parses the resolution token ("0p25" → 0.25).
func (f *Field) ResolutionDegrees() (float64, error) {
	return ResolutionDegrees(f.resolution)
}

// ResolutionDegrees parses a GFS-style resolution token such as "0p25".
func ResolutionDegrees(token string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(token, "p", "."), 64)
	if err != nil {
		return 0, eris.Wrapf(err, "grid: parse resolution %q", token)
	}
	if v <= 0 {
		return 0, eris.Errorf("grid: non-positive resolution %q", token)
	}
	return v, nil
}
