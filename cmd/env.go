package main

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/seaward-systems/marinecast/internal/config"
	"github.com/seaward-systems/marinecast/internal/forecast"
	"github.com/seaward-systems/marinecast/internal/gazetteer"
	"github.com/seaward-systems/marinecast/internal/gridsource"
	"github.com/seaward-systems/marinecast/internal/query"
	"github.com/seaward-systems/marinecast/internal/region"
	"github.com/seaward-systems/marinecast/internal/render"
)

// env holds the shared service components a command needs.
type env struct {
	Gazetteer    *gazetteer.Index
	Resolver     *region.Resolver
	Source       *gridsource.Source
	Fetcher      *gridsource.Fetcher
	Decoder      gridsource.Decoder
	Catalog      *gridsource.Catalog
	Orchestrator *query.Orchestrator
	Forecasts    *forecast.Client
}

// initEnv builds the component graph from configuration. The grid catalog
// is optional infrastructure: a failure to open it degrades to running
// without warm restarts rather than refusing to start.
func initEnv(cfg *config.Config) (*env, error) {
	var opts []gazetteer.Option
	if cfg.Gazetteer.AliasPath != "" {
		aliases, err := gazetteer.LoadAliases(cfg.Gazetteer.AliasPath)
		if err != nil {
			return nil, eris.Wrap(err, "load gazetteer aliases")
		}
		opts = append(opts, gazetteer.WithAliases(aliases))
	}

	gaz, err := gazetteer.Build(gazetteer.NaturalEarthSources(
		cfg.Gazetteer.MarinePath,
		cfg.Gazetteer.CountriesPath,
		cfg.Gazetteer.LakesPath,
	), opts...)
	if err != nil {
		return nil, eris.Wrap(err, "build gazetteer")
	}
	zap.L().Info("gazetteer loaded", zap.Int("entries", gaz.Len()))

	resolver := region.NewResolver(gaz,
		region.WithPointHalfWidth(cfg.Query.PointHalfWidthDeg))

	source := gridsource.NewSource()
	fetcher := gridsource.NewFetcher(gridsource.FetcherOptions{
		UserAgent:  cfg.Grids.UserAgent,
		RatePerSec: cfg.Grids.RatePerSec,
	})
	decoder := gridsource.NewWGRIB2Decoder(cfg.Grids.WGRIB2Path)

	var catalog *gridsource.Catalog
	if cfg.Grids.CatalogPath != "" {
		catalog, err = gridsource.NewCatalog(cfg.Grids.CatalogPath)
		if err != nil {
			zap.L().Warn("catalog unavailable, continuing without it", zap.Error(err))
			catalog = nil
		}
	}

	orchestrator := query.NewOrchestrator(resolver, source, render.NewRaster(0),
		query.WithValidTimeTolerance(time.Duration(cfg.Query.ValidTimeToleranceMins)*time.Minute))

	forecasts := forecast.NewClient(forecast.ClientOptions{
		BaseURL: cfg.Forecast.BaseURL,
		Timeout: time.Duration(cfg.Forecast.TimeoutSecs) * time.Second,
	})

	return &env{
		Gazetteer:    gaz,
		Resolver:     resolver,
		Source:       source,
		Fetcher:      fetcher,
		Decoder:      decoder,
		Catalog:      catalog,
		Orchestrator: orchestrator,
		Forecasts:    forecasts,
	}, nil
}

// Close releases held resources.
func (e *env) Close() {
	if e.Catalog != nil {
		_ = e.Catalog.Close()
	}
}
