// Package tiger provides census block-group polygons. The national dataset is
// read once, indexed by GEOID and bucketed by state FIPS; per-state lookups
// are views over that single index.
package tiger

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/schoolshare/dss-geo/internal/dataerr"
	"github.com/schoolshare/dss-geo/internal/geocache"
	"github.com/schoolshare/dss-geo/internal/model"
)

const opLoad = "tiger: load national CBG polygons"

// Cache artifacts owned by this package.
const (
	ArtifactNational = "cbg-national"
	ArtifactState    = "cbg-state"
)

// Index is the national block-group dataset keyed by GEOID.
type Index struct {
	Source  string
	Total   int
	Skipped int

	byGEOID map[string]*model.CBGPolygon
	byState map[string][]*model.CBGPolygon
}

func newIndex(source string) *Index {
	return &Index{
		Source:  source,
		byGEOID: make(map[string]*model.CBGPolygon),
		byState: make(map[string][]*model.CBGPolygon),
	}
}

// add inserts p. A GEOID seen twice makes the dataset ambiguous.
func (ix *Index) add(p *model.CBGPolygon) error {
	if _, dup := ix.byGEOID[p.GEOID]; dup {
		return dataerr.Integrityf(opLoad, ix.Source, "duplicate GEOID %s", p.GEOID)
	}
	ix.byGEOID[p.GEOID] = p
	ix.byState[p.StateFIPS] = append(ix.byState[p.StateFIPS], p)
	return nil
}

// Len returns the number of indexed block groups.
func (ix *Index) Len() int { return len(ix.byGEOID) }

// State returns the block groups whose GEOID starts with fips, sorted by
// GEOID. The slice is shared; callers must not modify it.
func (ix *Index) State(fips string) []*model.CBGPolygon {
	return ix.byState[fips]
}

// Options configures a Provider.
type Options struct {
	// Path is the national polygon file (.gpkg or .shp).
	Path string
	// MaxDropFraction bounds the share of unusable records tolerated.
	MaxDropFraction float64
}

// Provider serves block-group polygons through a shared geocache.Cache.
type Provider struct {
	cache *geocache.Cache
	opts  Options
	log   *zap.Logger
}

// NewProvider creates a Provider. Nothing is read until the first lookup.
func NewProvider(cache *geocache.Cache, opts Options) *Provider {
	return &Provider{
		cache: cache,
		opts:  opts,
		log:   zap.L().With(zap.String("component", "tiger")),
	}
}

// Path returns the national polygon file the provider reads.
func (p *Provider) Path() string { return p.opts.Path }

// Index returns the national index, loading it on first use. A failed load
// is remembered and returned to every later caller.
func (p *Provider) Index() (*Index, error) {
	return geocache.Load(p.cache, geocache.Key{Artifact: ArtifactNational}, p.loadIndex)
}

// StateGeometries returns the block groups of state keyed by GEOID.
func (p *Provider) StateGeometries(state model.State) (map[string]*model.CBGPolygon, error) {
	key := geocache.Key{Artifact: ArtifactState, Subject: state.FIPS}
	return geocache.Load(p.cache, key, func() (map[string]*model.CBGPolygon, error) {
		ix, err := p.Index()
		if err != nil {
			return nil, err
		}
		bucket := ix.State(state.FIPS)
		out := make(map[string]*model.CBGPolygon, len(bucket))
		for _, poly := range bucket {
			out[poly.GEOID] = poly
		}
		return out, nil
	})
}

func (p *Provider) loadIndex() (*Index, error) {
	path := p.opts.Path
	if path == "" {
		return nil, dataerr.NewUnavailable(opLoad, "", eris.New("tiger: no CBG polygon file configured"))
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, dataerr.NewUnavailable(opLoad, path, eris.Wrap(err, "tiger: stat"))
	}
	if info.IsDir() {
		return nil, dataerr.NewUnavailable(opLoad, path, eris.New("tiger: path is a directory"))
	}

	ix := newIndex(path)
	read := readGeoPackage
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".gpkg":
	case ".shp":
		read = readShapefile
	default:
		return nil, dataerr.NewUnavailable(opLoad, path, eris.Errorf("tiger: unsupported polygon format %q", ext))
	}

	p.log.Info("loading national CBG polygons", zap.String("path", path))
	total, skipped, err := read(path, ix.add)
	if err != nil {
		return nil, err
	}
	ix.Total, ix.Skipped = total, skipped

	if ix.Len() == 0 {
		return nil, dataerr.Integrityf(opLoad, path, "no usable block groups in %d records", total)
	}
	if dataerr.ExceedsThreshold(skipped, total, p.opts.MaxDropFraction) {
		return nil, dataerr.Integrityf(opLoad, path, "%d of %d records unusable (max fraction %.4f)", skipped, total, p.opts.MaxDropFraction)
	}

	for fips := range ix.byState {
		bucket := ix.byState[fips]
		sort.Slice(bucket, func(i, j int) bool { return bucket[i].GEOID < bucket[j].GEOID })
	}

	p.log.Info("loaded national CBG polygons",
		zap.Int("block_groups", ix.Len()),
		zap.Int("states", len(ix.byState)),
		zap.Int("skipped", skipped),
	)
	return ix, nil
}
