package gridsource

import (
	"context"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/seaward-systems/marinecast/internal/grid"
	"github.com/seaward-systems/marinecast/internal/query"
)

// Source holds the newest decoded snapshot per product. Readers always see
// a complete snapshot or none: the poller installs replacements with an
// atomic pointer swap, never in place.
type Source struct {
	wind atomic.Pointer[query.Snapshot]
	wave atomic.Pointer[query.Snapshot]
}

// NewSource returns an empty Source. Until the first Install, Fetch
// reports data unavailable.
func NewSource() *Source {
	return &Source{}
}

// Fetch implements query.GridSource.
func (s *Source) Fetch(_ context.Context, product grid.Product) (query.Snapshot, error) {
	snap := s.slot(product).Load()
	if snap == nil {
		return query.Snapshot{}, eris.Wrapf(query.ErrDataUnavailable, "no %s grid loaded", product)
	}
	return *snap, nil
}

// Install publishes a snapshot as the current one for its product.
func (s *Source) Install(snap query.Snapshot) {
	product := snap.Field.Product()
	s.slot(product).Store(&snap)
	zap.L().Info("installed grid snapshot",
		zap.String("product", string(product)),
		zap.Time("valid_time", snap.Field.ValidTime()),
		zap.String("cycle", snap.Info.Cycle),
	)
}

// Current returns the installed snapshot without the unavailable error,
// for health and metrics reporting.
func (s *Source) Current(product grid.Product) (query.Snapshot, bool) {
	snap := s.slot(product).Load()
	if snap == nil {
		return query.Snapshot{}, false
	}
	return *snap, true
}

func (s *Source) slot(product grid.Product) *atomic.Pointer[query.Snapshot] {
	if product == grid.ProductWave {
		return &s.wave
	}
	return &s.wind
}

// WarmStart loads the newest cataloged artifact per product from disk so a
// restarted service can answer queries before its first poll completes.
// Missing or undecodable artifacts are logged and skipped, not fatal.
func (s *Source) WarmStart(ctx context.Context, catalog *Catalog, decoder Decoder) {
	for _, product := range []grid.Product{grid.ProductWind, grid.ProductWave} {
		artifact, err := catalog.Latest(ctx, product)
		if err != nil {
			zap.L().Warn("warm start: catalog query failed",
				zap.String("product", string(product)), zap.Error(err))
			continue
		}
		if artifact == nil {
			continue
		}
		field, err := decoder.Decode(ctx, *artifact)
		if err != nil {
			zap.L().Warn("warm start: decode failed",
				zap.String("product", string(product)),
				zap.String("path", artifact.Path),
				zap.Error(err))
			continue
		}
		s.Install(query.Snapshot{Field: field, Info: artifactInfo(*artifact)})
	}
}

func artifactInfo(a Artifact) query.ArtifactInfo {
	return query.ArtifactInfo{
		Path:         a.Path,
		Cycle:        a.Cycle,
		Resolution:   a.Resolution,
		ForecastHour: a.ForecastHour,
		DownloadTime: a.DownloadTime,
	}
}
