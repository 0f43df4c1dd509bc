package gridsource

import (
	"context"
	"encoding/csv"
	"io"
	"math"
	"os/exec"
	"sort"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/seaward-systems/marinecast/internal/grid"
)

// metersPerSecToKnots converts wind speeds for the response schema.
const metersPerSecToKnots = 1.94384

// Decoder turns a cataloged artifact into an immutable grid field.
type Decoder interface {
	Decode(ctx context.Context, a Artifact) (*grid.Field, error)
}

// WGRIB2Decoder shells out to the wgrib2 binary for GRIB2 decoding, the
// same way the OCR pipeline shells out to pdftotext: the binary's path is
// configuration, the parsing of its output is ours.
type WGRIB2Decoder struct {
	// BinPath is the wgrib2 executable, "wgrib2" on PATH by default.
	BinPath string
}

// NewWGRIB2Decoder builds a decoder around the given wgrib2 path.
func NewWGRIB2Decoder(binPath string) *WGRIB2Decoder {
	if binPath == "" {
		binPath = "wgrib2"
	}
	return &WGRIB2Decoder{BinPath: binPath}
}

// Decode extracts the product's variables from the artifact as CSV and
// assembles the grid field.
func (d *WGRIB2Decoder) Decode(ctx context.Context, a Artifact) (*grid.Field, error) {
	spec, ok := specs[a.Product]
	if !ok {
		return nil, eris.Errorf("gridsource: unknown product %q", a.Product)
	}

	cmd := exec.CommandContext(ctx, d.BinPath, a.Path, "-match", spec.match, "-csv", "-")
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, eris.Wrap(err, "gridsource: wgrib2 stdout pipe")
	}
	if err := cmd.Start(); err != nil {
		return nil, eris.Wrapf(err, "gridsource: start %s", d.BinPath)
	}

	field, parseErr := parseWGRIB2CSV(stdout, a)
	waitErr := cmd.Wait()
	if parseErr != nil {
		return nil, parseErr
	}
	if waitErr != nil {
		return nil, eris.Wrapf(waitErr, "gridsource: wgrib2 %s", a.Path)
	}

	zap.L().Info("decoded grid artifact",
		zap.String("product", string(a.Product)),
		zap.String("path", a.Path),
		zap.Int("lats", field.NumLat()),
		zap.Int("lons", field.NumLon()),
	)
	return field, nil
}

// parseWGRIB2CSV reads wgrib2 -csv records:
//
//	"start","valid","VAR","level",lon,lat,value
//
// and assembles the per-product measurements on a common axis pair.
func parseWGRIB2CSV(r io.Reader, a Artifact) (*grid.Field, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 7

	type cell struct{ lat, lon float64 }
	vars := map[string]map[cell]float64{}
	latSet := map[float64]struct{}{}
	lonSet := map[float64]struct{}{}
	var validTime time.Time

	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "gridsource: read wgrib2 csv")
		}

		vt, err := time.ParseInLocation("2006-01-02 15:04:05", rec[1], time.UTC)
		if err != nil {
			return nil, eris.Wrapf(err, "gridsource: parse valid time %q", rec[1])
		}
		validTime = vt

		lon, err1 := strconv.ParseFloat(rec[4], 64)
		lat, err2 := strconv.ParseFloat(rec[5], 64)
		val, err3 := strconv.ParseFloat(rec[6], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, eris.Errorf("gridsource: malformed csv record %v", rec)
		}

		name := rec[2]
		if vars[name] == nil {
			vars[name] = map[cell]float64{}
		}
		vars[name][cell{lat, lon}] = val
		latSet[lat] = struct{}{}
		lonSet[lon] = struct{}{}
	}

	if len(latSet) == 0 || len(lonSet) == 0 {
		return nil, eris.Errorf("gridsource: no grid cells decoded from %s", a.Path)
	}

	lats := sortedKeys(latSet)
	lons := sortedKeys(lonSet)

	lookup := func(name string) ([]float64, bool) {
		grid, ok := vars[name]
		if !ok {
			return nil, false
		}
		out := make([]float64, len(lats)*len(lons))
		for i, lat := range lats {
			for j, lon := range lons {
				v, ok := grid[cell{lat, lon}]
				if !ok {
					v = math.NaN()
				}
				out[i*len(lons)+j] = v
			}
		}
		return out, true
	}

	measures := map[string][]float64{}
	switch a.Product {
	case grid.ProductWind:
		u, okU := lookup("UGRD")
		v, okV := lookup("VGRD")
		if !okU || !okV {
			return nil, eris.Errorf("gridsource: wind components missing from %s", a.Path)
		}
		speed := make([]float64, len(u))
		for i := range u {
			speed[i] = math.Hypot(u[i], v[i]) * metersPerSecToKnots
		}
		measures[grid.MeasureWindSpeedKnots] = speed
		if gust, ok := lookup("GUST"); ok {
			kt := make([]float64, len(gust))
			for i := range gust {
				kt[i] = gust[i] * metersPerSecToKnots
			}
			measures[grid.MeasureWindGustKnots] = kt
		}
	case grid.ProductWave:
		height, ok := lookup("HTSGW")
		if !ok {
			return nil, eris.Errorf("gridsource: wave height missing from %s", a.Path)
		}
		measures[grid.MeasureWaveHeightM] = height
		if period, ok := lookup("PERPW"); ok {
			measures[grid.MeasureWavePeriodS] = period
		}
		if dir, ok := lookup("DIRPW"); ok {
			measures[grid.MeasureWaveDirectionDeg] = dir
		}
	default:
		return nil, eris.Errorf("gridsource: unknown product %q", a.Product)
	}

	return grid.NewField(a.Product, validTime, a.Cycle, a.Resolution, a.ForecastHour, lats, lons, measures)
}

func sortedKeys(set map[float64]struct{}) []float64 {
	out := make([]float64, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Float64s(out)
	return out
}
