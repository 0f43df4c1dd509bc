// Package query coordinates one weather query end to end: region
// resolution, grid snapshot acquisition, extraction, hazard evaluation,
// and rendering. It owns the service-level error taxonomy.
package query

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/seaward-systems/marinecast/internal/grid"
	"github.com/seaward-systems/marinecast/internal/hazard"
	"github.com/seaward-systems/marinecast/internal/region"
)

// Sentinel errors. Resolution errors pass through from the region package;
// these cover the orchestration stages.
var (
	// ErrDataUnavailable means the GridSource has no fresh grid yet. Safe
	// for the caller to retry later; never retried here.
	ErrDataUnavailable = eris.New("query: grid data not yet available")

	// ErrValidTimeMismatch means wind and wave fields disagree on valid
	// time beyond tolerance. Surfaced, never silently resolved.
	ErrValidTimeMismatch = eris.New("query: valid time mismatch between fields")

	// ErrRender wraps renderer failures.
	ErrRender = eris.New("query: render failed")

	// ErrMissingMeasurement means a decoded field lacks a measurement the
	// query needs.
	ErrMissingMeasurement = eris.New("query: field missing required measurement")
)

// ArtifactInfo describes the grid artifact a snapshot was decoded from,
// echoed back in response payloads.
type ArtifactInfo struct {
	Path         string    `json:"path"`
	Cycle        string    `json:"cycle"`
	Resolution   string    `json:"resolution"`
	ForecastHour int       `json:"forecast_hour"`
	DownloadTime time.Time `json:"download_time"`
}

// Snapshot is one consistent view of a decoded grid: the orchestrator
// obtains it once per query so extraction and rendering never observe two
// different data versions.
type Snapshot struct {
	Field *grid.Field
	Info  ArtifactInfo
}

// GridSource supplies decoded grid snapshots. Implementations report a
// missing or not-yet-downloaded grid with an error matching
// ErrDataUnavailable, and must swap refreshed snapshots atomically.
type GridSource interface {
	Fetch(ctx context.Context, product grid.Product) (Snapshot, error)
}

// Renderer turns an extracted point sequence into an image. The point
// order is exactly the extractor's scan order.
type Renderer interface {
	Render(ctx context.Context, product grid.Product, points []grid.DataPoint, box region.BoundingBox) ([]byte, error)
}

// DefaultValidTimeTolerance bounds how far apart wind and wave valid times
// may drift before a hazards query is refused.
const DefaultValidTimeTolerance = 90 * time.Minute

// Orchestrator is the top-level use-case coordinator. It is stateless
// across queries; all shared state lives in the gazetteer and the
// GridSource's snapshots, both safe for concurrent reads.
type Orchestrator struct {
	resolver *region.Resolver
	source   GridSource
	renderer Renderer

	validTimeTolerance time.Duration
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithValidTimeTolerance overrides the hazard valid-time tolerance.
func WithValidTimeTolerance(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.validTimeTolerance = d
		}
	}
}

// NewOrchestrator wires the resolver, grid source, and renderer together.
func NewOrchestrator(resolver *region.Resolver, source GridSource, renderer Renderer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		resolver:           resolver,
		source:             source,
		renderer:           renderer,
		validTimeTolerance: DefaultValidTimeTolerance,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Result is the assembled outcome of one query.
type Result struct {
	ValidTime  time.Time
	Points     []grid.DataPoint
	Nearest    *grid.DataPoint
	ImagePNG   []byte
	Artifact   ArtifactInfo
	Indicators []hazard.Indicator
}

// WindData answers the wind endpoint family: extraction of the wind field
// over the resolved region plus a rendered raster.
func (o *Orchestrator) WindData(ctx context.Context, q region.Query) (*Result, error) {
	return o.singleField(ctx, q, grid.ProductWind)
}

// WaveData is the wave-field counterpart of WindData.
func (o *Orchestrator) WaveData(ctx context.Context, q region.Query) (*Result, error) {
	return o.singleField(ctx, q, grid.ProductWave)
}

func (o *Orchestrator) singleField(ctx context.Context, q region.Query, product grid.Product) (*Result, error) {
	resolved, err := o.resolver.Resolve(q)
	if err != nil {
		return nil, err
	}

	snap, err := o.source.Fetch(ctx, product)
	if err != nil {
		return nil, err
	}

	points := grid.Extract(snap.Field, resolved)
	result := &Result{
		ValidTime: snap.Field.ValidTime(),
		Points:    points,
		Artifact:  snap.Info,
	}
	if resolved.Point != nil {
		if nearest, ok := grid.NearestCell(snap.Field, *resolved.Point); ok {
			result.Nearest = &nearest
		}
	}

	img, err := o.renderer.Render(ctx, product, points, resolved.Box)
	if err != nil {
		return nil, eris.Wrapf(ErrRender, "%s raster: %v", product, err)
	}
	result.ImagePNG = img

	zap.L().Debug("query: extraction complete",
		zap.String("product", string(product)),
		zap.Int("points", len(points)),
		zap.Time("valid_time", result.ValidTime),
	)
	return result, nil
}

// MarineHazards extracts wind and wave over the same resolved region,
// refuses mixed forecast cycles, and derives storm indicators.
func (o *Orchestrator) MarineHazards(ctx context.Context, q region.Query) (*Result, error) {
	resolved, err := o.resolver.Resolve(q)
	if err != nil {
		return nil, err
	}

	// One consistent snapshot per product, fetched concurrently.
	var windSnap, waveSnap Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		windSnap, err = o.source.Fetch(gctx, grid.ProductWind)
		return err
	})
	g.Go(func() error {
		var err error
		waveSnap, err = o.source.Fetch(gctx, grid.ProductWave)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	drift := windSnap.Field.ValidTime().Sub(waveSnap.Field.ValidTime())
	if drift < 0 {
		drift = -drift
	}
	if drift > o.validTimeTolerance {
		return nil, eris.Wrapf(ErrValidTimeMismatch,
			"wind %s vs wave %s exceeds tolerance %s",
			windSnap.Field.ValidTime().Format(time.RFC3339),
			waveSnap.Field.ValidTime().Format(time.RFC3339),
			o.validTimeTolerance,
		)
	}

	windPoints := grid.Extract(windSnap.Field, resolved)
	wavePoints := grid.Extract(waveSnap.Field, resolved)

	tol, err := hazard.MatchTolerance(windSnap.Field.Resolution(), waveSnap.Field.Resolution())
	if err != nil {
		return nil, err
	}
	indicators := hazard.NewEvaluator(tol).Evaluate(windPoints, wavePoints)

	result := &Result{
		ValidTime:  windSnap.Field.ValidTime(),
		Points:     windPoints,
		Artifact:   windSnap.Info,
		Indicators: indicators,
	}
	if resolved.Point != nil {
		if nearest, ok := grid.NearestCell(windSnap.Field, *resolved.Point); ok {
			result.Nearest = &nearest
		}
	}

	img, err := o.renderer.Render(ctx, grid.ProductWind, windPoints, resolved.Box)
	if err != nil {
		return nil, eris.Wrapf(ErrRender, "hazard raster: %v", err)
	}
	result.ImagePNG = img

	zap.L().Debug("query: hazard evaluation complete",
		zap.Int("wind_points", len(windPoints)),
		zap.Int("wave_points", len(wavePoints)),
		zap.Int("indicators", len(indicators)),
	)
	return result, nil
}
