// Package hazard derives storm indicators from co-registered wind and wave
// extractions. Evaluation is pure: no I/O, no retained state, deterministic
// output for identical inputs.
package hazard

import (
	"sort"

	"github.com/seaward-systems/marinecast/internal/grid"
)

// Kind classifies the severity of a storm indicator. The threshold table
// is evaluated in priority order; the first matching row wins.
type Kind string

const (
	KindHurricaneForce Kind = "hurricane-force"
	KindStormForce     Kind = "storm-force"
	KindGaleForce      Kind = "gale-force"
	KindRoughSeas      Kind = "rough-seas"
)

// Marine warning thresholds, wind in knots and wave height in meters.
const (
	HurricaneForceKnots = 64.0
	StormForceKnots     = 48.0
	GaleForceKnots      = 34.0
	RoughSeasMeters     = 4.0
)

// Indicator is a derived hazard at one wind-grid cell. Recomputed per
// query, never persisted.
type Indicator struct {
	Latitude     float64        `json:"latitude"`
	Longitude    float64        `json:"longitude"`
	Kind         Kind           `json:"kind"`
	Severity     float64        `json:"severity"`
	Contributing []grid.Product `json:"contributing_fields"`
}

// Evaluator pairs wind points with their nearest wave point and applies the
// threshold table.
type Evaluator struct {
	// matchToleranceDeg is the maximum coordinate distance, in degrees,
	// for a wave point to count as co-located with a wind point. Derive it
	// from the coarser grid's resolution (see MatchTolerance).
	matchToleranceDeg float64
}

// MatchToleranceFactor scales the coarser resolution into the default
// co-location tolerance.
const MatchToleranceFactor = 1.5

// MatchTolerance derives the co-location tolerance from two resolution
// tokens, using the coarser of the two.
func MatchTolerance(windRes, waveRes string) (float64, error) {
	w, err := grid.ResolutionDegrees(windRes)
	if err != nil {
		return 0, err
	}
	v, err := grid.ResolutionDegrees(waveRes)
	if err != nil {
		return 0, err
	}
	coarser := w
	if v > coarser {
		coarser = v
	}
	return coarser * MatchToleranceFactor, nil
}

// NewEvaluator builds an Evaluator with the given co-location tolerance in
// degrees.
func NewEvaluator(matchToleranceDeg float64) *Evaluator {
	return &Evaluator{matchToleranceDeg: matchToleranceDeg}
}

// Evaluate walks the wind points in their extraction order, attaches the
// nearest wave point within tolerance, and emits an indicator for every
// point that crosses a threshold. Wind points with no wave partner still
// contribute wind-only indicators; points below every threshold are
// excluded, so the result is sparse.
//
// Callers must have verified that both inputs were extracted for the same
// resolved region and share a valid time within tolerance.
func (e *Evaluator) Evaluate(windPoints, wavePoints []grid.DataPoint) []Indicator {
	matcher := newWaveMatcher(wavePoints, e.matchToleranceDeg)

	var out []Indicator
	for _, wp := range windPoints {
		windKt, hasWind := wp.Values[grid.MeasureWindSpeedKnots]
		if !hasWind {
			windKt, hasWind = wp.Values[grid.MeasureWindGustKnots]
		}
		if !hasWind {
			continue
		}

		waveM := 0.0
		hasWave := false
		if wv, ok := matcher.nearest(wp.Latitude, wp.Longitude); ok {
			waveM, hasWave = wv.Values[grid.MeasureWaveHeightM]
		}

		kind, severity, ok := classify(windKt, waveM, hasWave)
		if !ok {
			continue
		}

		contributing := []grid.Product{grid.ProductWind}
		if hasWave && kind == KindRoughSeas {
			contributing = []grid.Product{grid.ProductWave}
		} else if hasWave {
			contributing = append(contributing, grid.ProductWave)
		}

		out = append(out, Indicator{
			Latitude:     wp.Latitude,
			Longitude:    wp.Longitude,
			Kind:         kind,
			Severity:     severity,
			Contributing: contributing,
		})
	}
	return out
}

// classify applies the threshold table in priority order.
func classify(windKt, waveM float64, hasWave bool) (Kind, float64, bool) {
	switch {
	case windKt >= HurricaneForceKnots:
		return KindHurricaneForce, windKt, true
	case windKt >= StormForceKnots:
		return KindStormForce, windKt, true
	case windKt >= GaleForceKnots:
		return KindGaleForce, windKt, true
	case hasWave && waveM >= RoughSeasMeters:
		return KindRoughSeas, waveM, true
	default:
		return "", 0, false
	}
}

// waveMatcher answers nearest-within-tolerance queries over the wave
// extraction. Points are sorted by latitude so each query scans only the
// rows inside the tolerance band.
type waveMatcher struct {
	points []grid.DataPoint
	tolDeg float64
}

func newWaveMatcher(points []grid.DataPoint, tolDeg float64) *waveMatcher {
	sorted := append([]grid.DataPoint(nil), points...)
	sort.SliceStable(sorted, func(a, b int) bool { return sorted[a].Latitude < sorted[b].Latitude })
	return &waveMatcher{points: sorted, tolDeg: tolDeg}
}

func (m *waveMatcher) nearest(lat, lon float64) (grid.DataPoint, bool) {
	if len(m.points) == 0 || m.tolDeg <= 0 {
		return grid.DataPoint{}, false
	}

	lo := sort.Search(len(m.points), func(i int) bool { return m.points[i].Latitude >= lat-m.tolDeg })
	hi := sort.Search(len(m.points), func(i int) bool { return m.points[i].Latitude > lat+m.tolDeg })

	best := grid.DataPoint{}
	bestKM := 0.0
	found := false
	for i := lo; i < hi; i++ {
		p := m.points[i]
		if lonDelta(p.Longitude, lon) > m.tolDeg {
			continue
		}
		d := grid.HaversineKM(lat, lon, p.Latitude, p.Longitude)
		if !found || d < bestKM {
			best, bestKM, found = p, d, true
		}
	}
	return best, found
}

// lonDelta is the absolute longitude difference accounting for wrap.
func lonDelta(a, b float64) float64 {
	d := a - b
	if d < 0 {
		d = -d
	}
	if d > 180 {
		d = 360 - d
	}
	return d
}
