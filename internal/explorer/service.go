// Package explorer is the in-process surface the CLI and HTTP server use. It
// wires the catalog, the loaders and the composer through one shared
// geocache.Cache.
package explorer

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/schoolshare/dss-geo/internal/catalog"
	"github.com/schoolshare/dss-geo/internal/choropleth"
	"github.com/schoolshare/dss-geo/internal/config"
	"github.com/schoolshare/dss-geo/internal/facility"
	"github.com/schoolshare/dss-geo/internal/geocache"
	"github.com/schoolshare/dss-geo/internal/model"
	"github.com/schoolshare/dss-geo/internal/results"
	"github.com/schoolshare/dss-geo/internal/tiger"
)

// Cache artifact names.
const (
	artifactFacilities = "facilities"
	artifactPairings   = "pairings"
	artifactCoverage   = "coverage"
	artifactSummary    = "summary"
)

// Service answers the explorer's questions for any (state, service) key. It
// is safe for concurrent use.
type Service struct {
	cache      *geocache.Cache
	catalog    *catalog.Catalog
	facilities *facility.Loader
	results    *results.Loader
	polygons   *tiger.Provider
	composer   *choropleth.Composer
	warmLimit  int
	log        *zap.Logger
}

// New builds a Service from configuration. Paths are resolved here; no
// artifact is read until first use.
func New(cfg *config.Config) (*Service, error) {
	paths, err := cfg.Paths.Resolve()
	if err != nil {
		return nil, err
	}
	metric, err := choropleth.ParseMetric(cfg.Choropleth.Metric)
	if err != nil {
		return nil, err
	}

	cat := catalog.New(catalog.Options{
		DataDir:        paths.Data,
		ProcessedDir:   paths.Processed,
		CensusDir:      paths.Census,
		CBGFile:        cfg.Census.CBGFile,
		ArtsBatch:      cfg.Results.ArtsBatch,
		HospitalBatch:  cfg.Results.HospitalBatch,
		ActivationRate: cfg.Results.ActivationRate,
	})
	fac, err := facility.NewLoader(cat, cfg.Projection.EPSG, cfg.Quality.MaxDropFraction)
	if err != nil {
		return nil, err
	}

	cache := geocache.New()
	polygons := tiger.NewProvider(cache, tiger.Options{
		Path:            cat.CBGPath(),
		MaxDropFraction: cfg.Quality.MaxDropFraction,
	})
	s := &Service{
		cache:      cache,
		catalog:    cat,
		facilities: fac,
		results:    results.NewLoader(cat, cfg.Quality.MaxDropFraction),
		polygons:   polygons,
		warmLimit:  cfg.Cache.WarmConcurrency,
		log:        zap.L().With(zap.String("component", "explorer")),
	}
	s.composer = choropleth.NewComposer(s, s.polygons, choropleth.Options{
		Metric:             metric,
		Bins:               cfg.Choropleth.Bins,
		Rate:               cfg.Results.ActivationRate,
		CoverageThresholdM: cfg.Choropleth.CoverageThresholdM,
		MaxDropFraction:    cfg.Quality.MaxDropFraction,
	})
	return s, nil
}

// IsAvailable reports whether key has a complete artifact set.
func (s *Service) IsAvailable(key model.Key) bool {
	return s.catalog.IsAvailable(key.State, key.Service)
}

// Artifacts resolves the artifact paths for key. When some are missing the
// partial set is returned together with a DataUnavailable error naming them.
func (s *Service) Artifacts(key model.Key) (catalog.Artifacts, error) {
	a, err := s.catalog.Resolve(key.State, key.Service)
	if err != nil {
		s.log.Debug("incomplete artifact set", zap.String("key", key.String()), zap.Error(err))
	}
	return a, err
}

// ListAvailableStates returns the states with a complete artifact set for
// service, ordered by FIPS code.
func (s *Service) ListAvailableStates(service model.Service) []model.State {
	return s.catalog.ListAvailable(service)
}

// ComposeLayer builds the choropleth layer for (state, service).
func (s *Service) ComposeLayer(ctx context.Context, state model.State, service model.Service, opts choropleth.Options) (*choropleth.Layer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.composer.Compose(model.NewKey(state, service), opts)
}

// Coverage returns the coverage table for key at the activation rate closest
// to rate (0 selects the configured rate). Tables are cached per resolved
// rate. It satisfies choropleth.CoverageSource.
func (s *Service) Coverage(key model.Key, rate int) (*results.CoverageTable, error) {
	if rate <= 0 {
		rate = s.catalog.Options().ActivationRate
	}
	resolved, err := s.catalog.SelectRate(key.State, key.Service, rate)
	if err != nil {
		return nil, err
	}
	ck := geocache.Key{Artifact: artifactCoverage, Subject: key.String() + "@" + strconv.Itoa(resolved)}
	return geocache.Load(s.cache, ck, func() (*results.CoverageTable, error) {
		return s.results.LoadCoverageAt(key.State, key.Service, resolved)
	})
}

// CoverageTable is the tabular coverage view. It never touches CBG geometry.
func (s *Service) CoverageTable(ctx context.Context, key model.Key, rate int) (*results.CoverageTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Coverage(key, rate)
}

// Summary returns the optimization summary table for key.
func (s *Service) Summary(ctx context.Context, key model.Key) (*model.ScenarioSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ck := geocache.Key{Artifact: artifactSummary, Subject: key.String()}
	return geocache.Load(s.cache, ck, func() (*model.ScenarioSummary, error) {
		return s.results.LoadSummary(key.State, key.Service)
	})
}

// CacheStats reports cache activity.
func (s *Service) CacheStats() geocache.Stats {
	return s.cache.Stats()
}
