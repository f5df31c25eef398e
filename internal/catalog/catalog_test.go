package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolshare/dss-geo/internal/dataerr"
	"github.com/schoolshare/dss-geo/internal/model"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	data := t.TempDir()
	return New(Options{
		DataDir:        data,
		ProcessedDir:   filepath.Join(data, "processed"),
		CensusDir:      filepath.Join(data, "census"),
		CBGFile:        "cbg_shapes_2020.gpkg",
		ArtsBatch:      "raw/result_arts_250425",
		HospitalBatch:  "raw/result_hospital_250507",
		ActivationRate: 25,
	})
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x\n"), 0o644))
}

func state(t *testing.T, v string) model.State {
	t.Helper()
	s, err := model.ParseState(v)
	require.NoError(t, err)
	return s
}

// writeFullSet creates every artifact for (st, svc) with the given rates.
func writeFullSet(t *testing.T, c *Catalog, st model.State, svc model.Service, rates ...int) {
	t.Helper()
	touch(t, c.FacilityPath(st, model.KindSchool))
	touch(t, c.FacilityPath(st, svc.TargetKind()))
	touch(t, c.PairingsPath(st, svc))
	for _, r := range rates {
		touch(t, c.CoveragePath(st, svc, r))
	}
}

func TestPaths(t *testing.T) {
	c := testCatalog(t)
	tx := state(t, "TX")
	data := c.Options().DataDir

	assert.Equal(t, filepath.Join(data, "processed", "HS_gdf_meters_clipped_48.geojson"), c.FacilityPath(tx, model.KindSchool))
	assert.Equal(t, filepath.Join(data, "processed", "OM_gdf_meters_clipped_48.geojson"), c.FacilityPath(tx, model.KindArts))
	assert.Equal(t, filepath.Join(data, "processed", "HO_gdf_meters_clipped_48.geojson"), c.FacilityPath(tx, model.KindHospital))
	assert.Equal(t, filepath.Join(data, "raw", "result_arts_250425", "pairings", "TX_48_pairings.csv"), c.PairingsPath(tx, model.ServiceArts))
	assert.Equal(t,
		filepath.Join(data, "raw", "result_hospital_250507", "coverages", "TX_48_coverage_mindist_numfacility_25perc.csv"),
		c.CoveragePath(tx, model.ServiceHospital, 25))
	assert.Equal(t, filepath.Join(data, "census", "cbg_shapes_2020.gpkg"), c.CBGPath())
}

func TestListAvailable(t *testing.T) {
	c := testCatalog(t)
	tx, ca, ny := state(t, "TX"), state(t, "CA"), state(t, "NY")

	writeFullSet(t, c, tx, model.ServiceArts, 25)
	writeFullSet(t, c, ca, model.ServiceArts, 10, 50)
	// New York has results but no facility geometry.
	touch(t, c.PairingsPath(ny, model.ServiceArts))
	touch(t, c.CoveragePath(ny, model.ServiceArts, 25))

	got := c.ListAvailable(model.ServiceArts)
	assert.Equal(t, []model.State{ca, tx}, got, "sorted by FIPS, partial set excluded")

	assert.True(t, c.IsAvailable(tx, model.ServiceArts))
	assert.False(t, c.IsAvailable(ny, model.ServiceArts))
	assert.False(t, c.IsAvailable(tx, model.ServiceHospital))
	assert.Empty(t, c.ListAvailable(model.ServiceHospital))
}

func TestResolve(t *testing.T) {
	c := testCatalog(t)
	tx := state(t, "TX")
	writeFullSet(t, c, tx, model.ServiceHospital, 25)

	a, err := c.Resolve(tx, model.ServiceHospital)
	require.NoError(t, err)
	assert.Equal(t, 25, a.Rate)
	assert.Equal(t, c.CoveragePath(tx, model.ServiceHospital, 25), a.Coverage)
	assert.Equal(t, c.FacilityPath(tx, model.KindHospital), a.Targets)
	assert.Empty(t, a.Summary)

	touch(t, filepath.Join(c.BatchDir(model.ServiceHospital), "TX_48_result_dist_16093_32187_reduced.csv"))
	a, err = c.Resolve(tx, model.ServiceHospital)
	require.NoError(t, err)
	assert.Equal(t, "TX_48_result_dist_16093_32187_reduced.csv", filepath.Base(a.Summary))
}

func TestResolveMissing(t *testing.T) {
	c := testCatalog(t)
	tx := state(t, "TX")
	touch(t, c.FacilityPath(tx, model.KindSchool))
	touch(t, c.PairingsPath(tx, model.ServiceArts))

	_, err := c.Resolve(tx, model.ServiceArts)
	require.Error(t, err)
	assert.True(t, dataerr.IsUnavailable(err))
	assert.Contains(t, err.Error(), "facilities")
	assert.Contains(t, err.Error(), "coverage")
	assert.NotContains(t, err.Error(), "pairings")
}

func TestResolveArtsWorkbookFallback(t *testing.T) {
	c := testCatalog(t)
	tx := state(t, "TX")
	touch(t, c.FacilityPath(tx, model.KindSchool))
	touch(t, c.PairingsPath(tx, model.ServiceArts))
	touch(t, c.CoveragePath(tx, model.ServiceArts, 25))
	touch(t, c.OrgMapPath())

	a, err := c.Resolve(tx, model.ServiceArts)
	require.NoError(t, err)
	assert.Equal(t, c.OrgMapPath(), a.Targets)

	// Hospitals have no workbook fallback.
	touch(t, c.PairingsPath(tx, model.ServiceHospital))
	touch(t, c.CoveragePath(tx, model.ServiceHospital, 25))
	assert.False(t, c.IsAvailable(tx, model.ServiceHospital))
}

func TestRatesAndSelectRate(t *testing.T) {
	c := testCatalog(t)
	tx := state(t, "TX")
	for _, r := range []int{50, 10, 30} {
		touch(t, c.CoveragePath(tx, model.ServiceArts, r))
	}
	touch(t, filepath.Join(c.BatchDir(model.ServiceArts), "coverages", "TX_48_coverage_mindist_numfacility_notes.csv"))

	assert.Equal(t, []int{10, 30, 50}, c.Rates(tx, model.ServiceArts))

	tests := []struct {
		want int
		got  int
	}{
		{want: 30, got: 30},
		{want: 25, got: 30},
		{want: 20, got: 10}, // tie between 10 and 30 goes lower
		{want: 40, got: 30},
		{want: 99, got: 50},
		{want: 0, got: 10},
	}
	for _, tt := range tests {
		r, err := c.SelectRate(tx, model.ServiceArts, tt.want)
		require.NoError(t, err)
		assert.Equal(t, tt.got, r, "want %d", tt.want)
	}

	_, err := c.SelectRate(state(t, "CA"), model.ServiceArts, 25)
	assert.True(t, dataerr.IsUnavailable(err))
}

func TestSummaryPathMissing(t *testing.T) {
	c := testCatalog(t)
	_, err := c.SummaryPath(state(t, "TX"), model.ServiceArts)
	assert.True(t, dataerr.IsUnavailable(err))
}
