// Package catalog knows where every precomputed artifact lives on disk and
// which (state, service) pairs have a complete artifact set.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/schoolshare/dss-geo/internal/dataerr"
	"github.com/schoolshare/dss-geo/internal/model"
)

// Artifact kinds named in availability logs and errors.
const (
	KindSchools  = "schools"
	KindTargets  = "facilities"
	KindPairings = "pairings"
	KindCoverage = "coverage"
	KindSummary  = "summary"
)

// Options locates the artifact roots.
type Options struct {
	DataDir        string
	ProcessedDir   string
	CensusDir      string
	CBGFile        string
	ArtsBatch      string
	HospitalBatch  string
	ActivationRate int
}

// Artifacts are the resolved paths for one (state, service) pair.
type Artifacts struct {
	Key      model.Key
	Schools  string
	Targets  string
	Pairings string
	Coverage string
	Rate     int
	// Summary is empty when the optional summary table is absent.
	Summary string
}

// Catalog answers availability questions from the filesystem. It keeps no
// state between calls.
type Catalog struct {
	opts Options
	log  *zap.Logger
}

// New creates a Catalog.
func New(opts Options) *Catalog {
	return &Catalog{
		opts: opts,
		log:  zap.L().With(zap.String("component", "catalog")),
	}
}

// Options returns the roots the catalog was built with.
func (c *Catalog) Options() Options { return c.opts }

var facilityPrefix = map[model.FacilityKind]string{
	model.KindSchool:   "HS",
	model.KindArts:     "OM",
	model.KindHospital: "HO",
}

// FacilityPath is the processed point file for kind in state.
func (c *Catalog) FacilityPath(state model.State, kind model.FacilityKind) string {
	return filepath.Join(c.opts.ProcessedDir, fmt.Sprintf("%s_gdf_meters_clipped_%s.geojson", facilityPrefix[kind], state.FIPS))
}

// OrgMapPath is the raw arts-organization workbook used when the processed
// arts file is missing.
func (c *Catalog) OrgMapPath() string {
	return filepath.Join(c.opts.DataDir, "raw", "OrgMap", "OrgMap_05_15_2023.xlsx")
}

// CBGPath is the national block-group polygon file.
func (c *Catalog) CBGPath() string {
	return filepath.Join(c.opts.CensusDir, c.opts.CBGFile)
}

// BatchDir is the result batch directory for service.
func (c *Catalog) BatchDir(service model.Service) string {
	batch := c.opts.ArtsBatch
	if service == model.ServiceHospital {
		batch = c.opts.HospitalBatch
	}
	return filepath.Join(c.opts.DataDir, filepath.FromSlash(batch))
}

func statePrefix(state model.State) string {
	return state.Abbr + "_" + state.FIPS
}

// PairingsPath is the school-facility pairing table.
func (c *Catalog) PairingsPath(state model.State, service model.Service) string {
	return filepath.Join(c.BatchDir(service), "pairings", statePrefix(state)+"_pairings.csv")
}

// CoveragePath is the per-CBG coverage table for an activation rate.
func (c *Catalog) CoveragePath(state model.State, service model.Service, rate int) string {
	name := fmt.Sprintf("%s_coverage_mindist_numfacility_%dperc.csv", statePrefix(state), rate)
	return filepath.Join(c.BatchDir(service), "coverages", name)
}

var ratePattern = regexp.MustCompile(`_coverage_mindist_numfacility_(\d+)perc\.csv$`)

// Rates lists the activation rates with a coverage table, ascending.
func (c *Catalog) Rates(state model.State, service model.Service) []int {
	pattern := filepath.Join(c.BatchDir(service), "coverages", statePrefix(state)+"_coverage_mindist_numfacility_*perc.csv")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil
	}
	var rates []int
	for _, m := range matches {
		sub := ratePattern.FindStringSubmatch(filepath.Base(m))
		if sub == nil {
			continue
		}
		if r, err := strconv.Atoi(sub[1]); err == nil {
			rates = append(rates, r)
		}
	}
	sort.Ints(rates)
	return rates
}

// SelectRate returns want when a coverage table exists for it, else the
// closest available rate. Ties go to the lower rate.
func (c *Catalog) SelectRate(state model.State, service model.Service, want int) (int, error) {
	rates := c.Rates(state, service)
	if len(rates) == 0 {
		return 0, dataerr.NewUnavailable("catalog: select activation rate", model.NewKey(state, service).String(),
			eris.New("catalog: no coverage tables"))
	}
	return closestRate(rates, want), nil
}

func closestRate(sorted []int, want int) int {
	best := sorted[0]
	for _, r := range sorted[1:] {
		if abs(r-want) < abs(best-want) {
			best = r
		}
	}
	return best
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// SummaryPath finds the transposed summary table. The file name embeds the
// coverage thresholds, so it is matched by pattern.
func (c *Catalog) SummaryPath(state model.State, service model.Service) (string, error) {
	pattern := filepath.Join(c.BatchDir(service), statePrefix(state)+"_result_dist_*_reduced.csv")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", eris.Wrap(err, "catalog: glob summary")
	}
	if len(matches) == 0 {
		return "", dataerr.NewUnavailable("catalog: resolve summary", model.NewKey(state, service).String(),
			eris.Errorf("catalog: no file matches %s", filepath.Base(pattern)))
	}
	sort.Strings(matches)
	return matches[0], nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// check resolves every artifact and reports the kinds that are missing.
func (c *Catalog) check(state model.State, service model.Service) (Artifacts, []string) {
	a := Artifacts{
		Key:      model.NewKey(state, service),
		Schools:  c.FacilityPath(state, model.KindSchool),
		Targets:  c.FacilityPath(state, service.TargetKind()),
		Pairings: c.PairingsPath(state, service),
	}

	var missing []string
	if !fileExists(a.Schools) {
		missing = append(missing, KindSchools)
	}
	if !fileExists(a.Targets) {
		if service == model.ServiceArts && fileExists(c.OrgMapPath()) {
			a.Targets = c.OrgMapPath()
		} else {
			missing = append(missing, KindTargets)
		}
	}
	if !fileExists(a.Pairings) {
		missing = append(missing, KindPairings)
	}
	if rate, err := c.SelectRate(state, service, c.opts.ActivationRate); err == nil {
		a.Rate = rate
		a.Coverage = c.CoveragePath(state, service, rate)
	} else {
		missing = append(missing, KindCoverage)
	}
	if p, err := c.SummaryPath(state, service); err == nil {
		a.Summary = p
	}
	return a, missing
}

// Resolve returns the artifact paths for (state, service), failing with a
// DataUnavailable error that names every missing artifact kind.
func (c *Catalog) Resolve(state model.State, service model.Service) (Artifacts, error) {
	a, missing := c.check(state, service)
	if len(missing) > 0 {
		return a, dataerr.NewUnavailable("catalog: resolve", a.Key.String(),
			eris.Errorf("catalog: missing %s", strings.Join(missing, ", ")))
	}
	return a, nil
}

// Entry is one artifact of a resolved set.
type Entry struct {
	Kind    string `json:"kind" yaml:"kind"`
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`
	Present bool   `json:"present" yaml:"present"`
}

// Entries lists the artifacts of a in a fixed order: schools, facilities,
// pairings, coverage, summary. Path is the expected location when the file
// is missing and empty when no candidate exists.
func (a Artifacts) Entries() []Entry {
	out := []Entry{
		{Kind: KindSchools, Path: a.Schools},
		{Kind: KindTargets, Path: a.Targets},
		{Kind: KindPairings, Path: a.Pairings},
		{Kind: KindCoverage, Path: a.Coverage},
		{Kind: KindSummary, Path: a.Summary},
	}
	for i := range out {
		out[i].Present = out[i].Path != "" && fileExists(out[i].Path)
	}
	return out
}

// IsAvailable reports whether the full artifact set exists.
func (c *Catalog) IsAvailable(state model.State, service model.Service) bool {
	_, missing := c.check(state, service)
	return len(missing) == 0
}

// ListAvailable returns the states with a complete artifact set for service,
// sorted by FIPS. States with only some artifacts are logged and left out.
func (c *Catalog) ListAvailable(service model.Service) []model.State {
	out := []model.State{}
	for _, st := range model.AllStates() {
		_, missing := c.check(st, service)
		switch {
		case len(missing) == 0:
			out = append(out, st)
		case hasResults(missing):
			c.log.Warn("partial artifact set, state excluded",
				zap.String("state", st.String()),
				zap.String("service", string(service)),
				zap.Strings("missing", missing),
			)
		}
	}
	return out
}

// hasResults reports whether at least one result table was found. Facility
// files are shared across services, so a state only counts as partial when
// the optimization produced something for it.
func hasResults(missing []string) bool {
	var pairings, coverage bool
	for _, m := range missing {
		pairings = pairings || m == KindPairings
		coverage = coverage || m == KindCoverage
	}
	return !pairings || !coverage
}
