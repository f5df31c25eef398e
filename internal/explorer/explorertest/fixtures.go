// Package explorertest lays out a small artifact tree on disk for tests of
// the explorer service and the HTTP API.
package explorertest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/schoolshare/dss-geo/internal/config"
	"github.com/schoolshare/dss-geo/internal/model"
	"github.com/schoolshare/dss-geo/internal/tiger/tigertest"
)

// Config returns a configuration rooted at base with test defaults.
func Config(base string) *config.Config {
	return &config.Config{
		Paths:  config.PathsConfig{Base: base},
		Census: config.CensusConfig{CBGFile: "cbg_shapes_2020.gpkg"},
		Results: config.ResultsConfig{
			ArtsBatch:      "raw/result_arts_250425",
			HospitalBatch:  "raw/result_hospital_250507",
			ActivationRate: 25,
		},
		Quality:    config.QualityConfig{MaxDropFraction: 0.01},
		Choropleth: config.ChoroplethConfig{Bins: 5, Metric: "distance_reduction", CoverageThresholdM: 10000},
		Projection: config.ProjectionConfig{EPSG: 5070},
		Cache:      config.CacheConfig{WarmConcurrency: 2},
		Server:     config.ServerConfig{Port: 8501, RateLimit: 100, Burst: 100, Origins: []string{"*"}},
		Log:        config.LogConfig{Level: "info", Format: "json"},
	}
}

// State parses a state or fails the test.
func State(t testing.TB, v string) model.State {
	t.Helper()
	s, err := model.ParseState(v)
	require.NoError(t, err)
	return s
}

// GEOID returns the i-th block group of state.
func GEOID(state model.State, i int) string {
	return fmt.Sprintf("%s001%07d", state.FIPS, i)
}

// Tree is an artifact tree under a temporary base directory.
type Tree struct {
	t     testing.TB
	Base  string
	polys map[string]*geom.MultiPolygon
}

// NewTree creates an empty tree.
func NewTree(t testing.TB) *Tree {
	t.Helper()
	return &Tree{t: t, Base: t.TempDir(), polys: map[string]*geom.MultiPolygon{}}
}

func (tr *Tree) data(parts ...string) string {
	return filepath.Join(append([]string{tr.Base, "data"}, parts...)...)
}

func (tr *Tree) write(path, body string) {
	tr.t.Helper()
	require.NoError(tr.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(tr.t, os.WriteFile(path, []byte(body), 0o644))
}

func prefix(state model.State) string { return state.Abbr + "_" + state.FIPS }

func batch(service model.Service) string {
	if service == model.ServiceHospital {
		return "result_hospital_250507"
	}
	return "result_arts_250425"
}

// AddResults writes pairings and an n-row coverage table at rate 25 for
// (state, service), and registers n block-group polygons.
func (tr *Tree) AddResults(state model.State, service model.Service, n int) {
	tr.t.Helper()
	dir := tr.data("raw", batch(service))
	tr.write(filepath.Join(dir, "pairings", prefix(state)+"_pairings.csv"),
		"school_id,facility_id,distance\n"+
			state.FIPS+"0001,F1,1500\n"+
			state.FIPS+"0002,F2,2500\n")

	var b strings.Builder
	b.WriteString("GEOID,mindist_current,mindist_sol,numfacility_current,numfacility_sol,population\n")
	for i := 0; i < n; i++ {
		geoid := GEOID(state, i)
		fmt.Fprintf(&b, "%s,%d,%d,0,1,%d\n", geoid, 4000+1000*i, 1000+500*i, 100+i)
		tr.polys[geoid] = tigertest.Square(float64(i)*0.01-100, 30, 0.01)
	}
	tr.write(filepath.Join(dir, "coverages", prefix(state)+"_coverage_mindist_numfacility_25perc.csv"), b.String())
}

// AddFacilities writes the school and target point files for
// (state, service).
func (tr *Tree) AddFacilities(state model.State, service model.Service) {
	tr.t.Helper()
	crs := `"crs": {"type": "name", "properties": {"name": "urn:ogc:def:crs:EPSG::5070"}}`
	tr.write(tr.data("processed", "HS_gdf_meters_clipped_"+state.FIPS+".geojson"), `{"type": "FeatureCollection", `+crs+`, "features": [
  {"type": "Feature", "geometry": {"type": "Point", "coordinates": [100, 200]}, "properties": {"NCESSCH": "`+state.FIPS+`0001", "SCH_NAME": "North High"}},
  {"type": "Feature", "geometry": {"type": "Point", "coordinates": [300, 400]}, "properties": {"NCESSCH": "`+state.FIPS+`0002", "SCH_NAME": "South High"}}
]}`)

	name, idKey, nameKey := "OM", "NCARID", "OrgName"
	if service == model.ServiceHospital {
		name, idKey, nameKey = "HO", "ID", "NAME"
	}
	tr.write(tr.data("processed", name+"_gdf_meters_clipped_"+state.FIPS+".geojson"), `{"type": "FeatureCollection", `+crs+`, "features": [
  {"type": "Feature", "geometry": {"type": "Point", "coordinates": [500, 600]}, "properties": {"`+idKey+`": "F1", "`+nameKey+`": "Riverside Arts"}}
]}`)
}

// AddSummary writes a minimal transposed summary table for (state, service).
func (tr *Tree) AddSummary(state model.State, service model.Service) {
	tr.t.Helper()
	tr.write(tr.data("raw", batch(service), prefix(state)+"_result_dist_10000_50000_reduced.csv"), strings.Join([]string{
		",existing,p=25%",
		"|I|,3,3",
		"|J|,2,2",
		"|Q|,1,1",
		"delta1 threshold,10000,10000",
		"delta2 threshold,50000,50000",
		"num facility to open,0,1",
		"Primary coverage,150,250",
		"Secondary coverage,300,303",
		"Customer Avg dist to fac,4000,2000",
		"Customer Max dist to fac,9000,5000",
	}, "\n")+"\n")
}

// WritePolygons writes every registered polygon to the national GeoPackage.
func (tr *Tree) WritePolygons() {
	tr.t.Helper()
	path := tr.data("census", "cbg_shapes_2020.gpkg")
	require.NoError(tr.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(tr.t, tigertest.WriteGeoPackage(path, 4269, tr.polys))
}
