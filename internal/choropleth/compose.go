// Package choropleth joins per-CBG coverage records with block-group
// polygons and produces a binned, coloured layer plus summary statistics.
package choropleth

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/schoolshare/dss-geo/internal/dataerr"
	"github.com/schoolshare/dss-geo/internal/model"
	"github.com/schoolshare/dss-geo/internal/results"
)

const opCompose = "choropleth.compose"

// DefaultCoverageThresholdM is the distance within which a CBG counts as
// covered.
const DefaultCoverageThresholdM = 10000

// layerNamespace seeds the name-based layer IDs.
var layerNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://schoolshare.org/dss-geo/layers"))

// Options control a single composition.
type Options struct {
	Metric             Metric
	Bins               int
	Rate               int // activation rate in percent; 0 means the configured default
	CoverageThresholdM float64
	MaxDropFraction    float64
}

func (o Options) withDefaults() Options {
	if o.Metric == "" {
		o.Metric = MetricDistanceReduction
	}
	if o.Bins < 1 {
		o.Bins = 5
	}
	if o.CoverageThresholdM <= 0 {
		o.CoverageThresholdM = DefaultCoverageThresholdM
	}
	return o
}

// Feature is one rendered block group.
type Feature struct {
	GEOID    string               `json:"geoid" yaml:"geoid"`
	Geometry *geom.MultiPolygon   `json:"-" yaml:"-"`
	Value    *float64             `json:"value" yaml:"value"`
	Bin      int                  `json:"bin" yaml:"bin"` // -1 where Value is nil
	Color    string               `json:"color" yaml:"color"`
	Record   model.CoverageRecord `json:"record" yaml:"record"`
}

// Layer is a composed choropleth for one (state, service, rate).
type Layer struct {
	ID       string    `json:"id" yaml:"id"`
	Key      model.Key `json:"key" yaml:"key"`
	Metric   Metric    `json:"metric" yaml:"metric"`
	Label    string    `json:"label" yaml:"label"`
	Rate     int       `json:"rate" yaml:"rate"`
	SRID     int       `json:"srid" yaml:"srid"`
	Bins     []Bin     `json:"bins" yaml:"bins"`
	Stats    Stats     `json:"stats" yaml:"stats"`
	Features []Feature `json:"features" yaml:"features"`
}

// CoverageSource supplies the coverage table for a key at an activation rate.
type CoverageSource interface {
	Coverage(key model.Key, rate int) (*results.CoverageTable, error)
}

// PolygonSource supplies a state's block-group polygons keyed by GEOID.
type PolygonSource interface {
	StateGeometries(state model.State) (map[string]*model.CBGPolygon, error)
}

// Composer builds layers from cached sources.
type Composer struct {
	coverage CoverageSource
	polygons PolygonSource
	defaults Options
	log      *zap.Logger
}

// NewComposer returns a Composer. defaults fill any zero field of the options
// passed to Compose.
func NewComposer(coverage CoverageSource, polygons PolygonSource, defaults Options) *Composer {
	return &Composer{
		coverage: coverage,
		polygons: polygons,
		defaults: defaults,
		log:      zap.L().With(zap.String("component", "choropleth")),
	}
}

// Compose fetches the coverage table and polygons for key and builds the
// layer. Polygons are fetched only after the coverage table loads, so a
// missing polygon dataset never masks a results error.
func (c *Composer) Compose(key model.Key, opts Options) (*Layer, error) {
	opts = c.merge(opts)

	table, err := c.coverage.Coverage(key, opts.Rate)
	if err != nil {
		return nil, err
	}
	polys, err := c.polygons.StateGeometries(key.State)
	if err != nil {
		return nil, err
	}

	opts.Rate = table.Rate
	layer, err := Build(key, table.Records, polys, opts)
	if err != nil {
		return nil, err
	}
	c.log.Info("composed layer",
		zap.String("key", key.String()),
		zap.String("metric", string(opts.Metric)),
		zap.Int("rate", layer.Rate),
		zap.Int("features", len(layer.Features)),
		zap.Int("excluded", layer.Stats.Excluded),
	)
	return layer, nil
}

func (c *Composer) merge(o Options) Options {
	if o.Metric == "" {
		o.Metric = c.defaults.Metric
	}
	if o.Bins < 1 {
		o.Bins = c.defaults.Bins
	}
	if o.Rate <= 0 {
		o.Rate = c.defaults.Rate
	}
	if o.CoverageThresholdM <= 0 {
		o.CoverageThresholdM = c.defaults.CoverageThresholdM
	}
	if o.MaxDropFraction <= 0 {
		o.MaxDropFraction = c.defaults.MaxDropFraction
	}
	return o.withDefaults()
}

// Build joins records with polys by GEOID and computes bins, colours and
// statistics. It is pure: equal inputs give equal layers.
func Build(key model.Key, records []model.CoverageRecord, polys map[string]*model.CBGPolygon, opts Options) (*Layer, error) {
	opts = opts.withDefaults()
	subject := key.String()
	if len(records) == 0 {
		return nil, dataerr.Integrityf(opCompose, subject, "no coverage records")
	}

	matched := make(map[string]bool, len(records))
	features := make([]Feature, 0, len(records))
	srid := 0
	excluded := 0
	for _, r := range records {
		poly, ok := polys[r.GEOID]
		if !ok || poly.Geometry == nil {
			excluded++
			continue
		}
		if srid == 0 {
			srid = poly.SRID
		} else if poly.SRID != srid {
			return nil, dataerr.Integrityf(opCompose, subject,
				"mixed polygon SRIDs %d and %d", srid, poly.SRID)
		}
		matched[r.GEOID] = true
		f := Feature{GEOID: r.GEOID, Geometry: poly.Geometry, Bin: -1, Color: NoDataColor, Record: r}
		if v, ok := opts.Metric.value(r, opts.CoverageThresholdM); ok {
			f.Value = &v
		}
		features = append(features, f)
	}
	if dataerr.ExceedsThreshold(excluded, len(records), opts.MaxDropFraction) {
		return nil, dataerr.Integrityf(opCompose, subject,
			"%d of %d coverage records have no CBG polygon", excluded, len(records))
	}
	if len(features) == 0 {
		return nil, dataerr.Integrityf(opCompose, subject, "no coverage record matched a CBG polygon")
	}
	sort.Slice(features, func(i, j int) bool { return features[i].GEOID < features[j].GEOID })

	bins := classify(features, opts)

	stats := computeStats(features, opts.CoverageThresholdM)
	stats.Excluded = excluded
	for geoid := range polys {
		if !matched[geoid] {
			stats.UnmatchedPolygons++
		}
	}

	return &Layer{
		ID:       LayerID(key, opts.Metric, opts.Rate),
		Key:      key,
		Metric:   opts.Metric,
		Label:    opts.Metric.Label(),
		Rate:     opts.Rate,
		SRID:     srid,
		Bins:     bins,
		Stats:    stats,
		Features: features,
	}, nil
}

// LayerID is the name-based UUID of a layer.
func LayerID(key model.Key, metric Metric, rate int) string {
	name := key.State.FIPS + "|" + string(key.Service) + "|" + string(metric) + "|" + strconv.Itoa(rate)
	return uuid.NewSHA1(layerNamespace, []byte(name)).String()
}

// classify assigns bins and colours to features in place.
func classify(features []Feature, opts Options) []Bin {
	if opts.Metric.Categorical() {
		colors := opts.Metric.palette()
		bins := make([]Bin, len(statusLabels))
		for i := range bins {
			bins[i] = Bin{Index: i, Lower: float64(i), Upper: float64(i), Color: colors[i], Label: statusLabels[i]}
		}
		for i := range features {
			if features[i].Value == nil {
				continue
			}
			b := int(*features[i].Value)
			features[i].Bin = b
			features[i].Color = bins[b].Color
			bins[b].Count++
		}
		return bins
	}

	values := make([]float64, 0, len(features))
	for _, f := range features {
		if f.Value != nil {
			values = append(values, *f.Value)
		}
	}
	breaks := QuantileBreaks(values, opts.Bins)
	if len(breaks) < 2 {
		return []Bin{}
	}
	colors := Ramp(opts.Metric.palette(), len(breaks)-1)
	bins := make([]Bin, len(breaks)-1)
	for i := range bins {
		bins[i] = Bin{
			Index: i,
			Lower: breaks[i],
			Upper: breaks[i+1],
			Color: colors[i],
			Label: fmt.Sprintf("%.2f – %.2f", breaks[i], breaks[i+1]),
		}
	}
	for i := range features {
		if features[i].Value == nil {
			continue
		}
		b := Assign(breaks, *features[i].Value)
		features[i].Bin = b
		features[i].Color = bins[b].Color
		bins[b].Count++
	}
	return bins
}
