package gridsource

import (
	"context"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/seaward-systems/marinecast/internal/grid"
	"github.com/seaward-systems/marinecast/internal/observability"
	"github.com/seaward-systems/marinecast/internal/query"
)

// PollerOptions configures the refresh loop.
type PollerOptions struct {
	// Interval between upstream checks.
	Interval time.Duration
	// BaseURL of the GFS tree, DefaultBaseURL unless overridden.
	BaseURL string
	// Dir receives downloaded artifacts.
	Dir string
	// MaxLookback is how many cycles to probe before giving up a pass.
	MaxLookback int
	// ForecastHour selects the lead time to download, f000 by default.
	ForecastHour int
	// Metrics receives download counts and grid age; nil disables them.
	Metrics *observability.Collector
}

// Poller keeps the Source stocked with the newest published cycle per
// product. Each pass probes candidate cycles newest first and stops at the
// first one that exists upstream; a cycle already installed is skipped.
type Poller struct {
	source  *Source
	fetcher *Fetcher
	decoder Decoder
	catalog *Catalog
	clock   clockwork.Clock
	opts    PollerOptions

	current map[grid.Product]Cycle
}

// NewPoller wires the refresh loop. A nil clock gets the real one.
func NewPoller(source *Source, fetcher *Fetcher, decoder Decoder, catalog *Catalog, clock clockwork.Clock, opts PollerOptions) *Poller {
	if opts.Interval == 0 {
		opts.Interval = 10 * time.Minute
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.MaxLookback == 0 {
		opts.MaxLookback = 8
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Poller{
		source:  source,
		fetcher: fetcher,
		decoder: decoder,
		catalog: catalog,
		clock:   clock,
		opts:    opts,
		current: map[grid.Product]Cycle{},
	}
}

// Run polls until the context is canceled. The first pass runs
// immediately so a cold service does not wait one interval for data.
func (p *Poller) Run(ctx context.Context) error {
	for {
		p.PollOnce(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.clock.After(p.opts.Interval):
		}
	}
}

// PollOnce refreshes both products. Per-product failures are logged and do
// not abort the other product's refresh.
func (p *Poller) PollOnce(ctx context.Context) {
	for _, product := range []grid.Product{grid.ProductWind, grid.ProductWave} {
		if err := p.refresh(ctx, product); err != nil {
			if ctx.Err() != nil {
				return
			}
			zap.L().Warn("grid refresh failed",
				zap.String("product", string(product)), zap.Error(err))
		}
	}
}

func (p *Poller) refresh(ctx context.Context, product grid.Product) error {
	cycle, rawURL, found, err := p.newestPublished(ctx, product)
	if err != nil {
		return err
	}
	if !found {
		return eris.Errorf("gridsource: no published %s cycle within lookback %d", product, p.opts.MaxLookback)
	}

	if cur, ok := p.current[product]; ok && !cycle.After(cur) {
		p.publishGridAge(product)
		return nil
	}

	spec := specs[product]
	dest := filepath.Join(p.opts.Dir, string(product),
		cycle.DateDir(), spec.filename(cycle, p.opts.ForecastHour))
	downloadStart := p.clock.Now()
	if err := p.fetcher.Download(ctx, rawURL, dest); err != nil {
		if p.opts.Metrics != nil {
			p.opts.Metrics.RecordDownload(string(product), "error", p.clock.Since(downloadStart))
		}
		return err
	}
	if p.opts.Metrics != nil {
		p.opts.Metrics.RecordDownload(string(product), "ok", p.clock.Since(downloadStart))
	}

	artifact := Artifact{
		Product:      product,
		Path:         dest,
		Date:         cycle.DateDir(),
		Cycle:        cycle.Tag(),
		Resolution:   spec.resolution,
		ForecastHour: p.opts.ForecastHour,
		DownloadTime: p.clock.Now().UTC(),
	}
	if p.catalog != nil {
		id, err := p.catalog.Insert(ctx, artifact)
		if err != nil {
			return err
		}
		artifact.ID = id
	}

	field, err := p.decoder.Decode(ctx, artifact)
	if err != nil {
		return err
	}

	p.source.Install(query.Snapshot{Field: field, Info: artifactInfo(artifact)})
	p.current[product] = cycle
	p.publishGridAge(product)
	return nil
}

// publishGridAge refreshes the age gauge from the installed snapshot so it
// stays current between scrapes even when no new cycle arrived.
func (p *Poller) publishGridAge(product grid.Product) {
	if p.opts.Metrics == nil {
		return
	}
	if snap, ok := p.source.Current(product); ok {
		p.opts.Metrics.SetGridAge(string(product), p.clock.Now().Sub(snap.Field.ValidTime()))
	}
}

// newestPublished probes candidate cycles newest first and returns the
// first whose artifact URL answers the probe.
func (p *Poller) newestPublished(ctx context.Context, product grid.Product) (Cycle, string, bool, error) {
	for _, cycle := range CycleCandidates(p.clock.Now(), p.opts.MaxLookback) {
		rawURL := ArtifactURL(p.opts.BaseURL, product, cycle, p.opts.ForecastHour)
		ok, err := p.fetcher.Probe(ctx, rawURL)
		if err != nil {
			return Cycle{}, "", false, err
		}
		if ok {
			return cycle, rawURL, true, nil
		}
	}
	return Cycle{}, "", false, nil
}
