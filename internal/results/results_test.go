package results

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolshare/dss-geo/internal/catalog"
	"github.com/schoolshare/dss-geo/internal/dataerr"
	"github.com/schoolshare/dss-geo/internal/model"
)

func newTestLoader(t *testing.T) (*Loader, *catalog.Catalog) {
	t.Helper()
	data := t.TempDir()
	cat := catalog.New(catalog.Options{
		DataDir:        data,
		ArtsBatch:      "raw/result_arts_250425",
		HospitalBatch:  "raw/result_hospital_250507",
		ActivationRate: 25,
	})
	return NewLoader(cat, 0.01), cat
}

func writeFile(t *testing.T, path string, lines ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
}

func texas(t *testing.T) model.State {
	t.Helper()
	s, err := model.ParseState("TX")
	require.NoError(t, err)
	return s
}

func TestLoadPairings(t *testing.T) {
	l, cat := newTestLoader(t)
	tx := texas(t)
	writeFile(t, cat.PairingsPath(tx, model.ServiceArts),
		"NCESSCH,NCARID,dist",
		"480001000001,ART00001,1200.5",
		"480001000001,ART00002,\" 2,400 \"",
		"480001000002,ART00001,0",
	)

	got, err := l.LoadPairings(tx, model.ServiceArts)
	require.NoError(t, err)
	assert.Equal(t, []model.FacilitySchoolPairing{
		{SchoolID: "480001000001", FacilityID: "ART00001", DistanceM: 1200.5, Rank: 1},
		{SchoolID: "480001000001", FacilityID: "ART00002", DistanceM: 2400, Rank: 2},
		{SchoolID: "480001000002", FacilityID: "ART00001", DistanceM: 0, Rank: 1},
	}, got)
}

func TestLoadPairings_ExplicitRankAndBadRows(t *testing.T) {
	l, cat := newTestLoader(t)
	tx := texas(t)
	lines := []string{"school_id,facility_id,distance,rank"}
	for i := 0; i < 199; i++ {
		lines = append(lines, "S1,F1,10,3")
	}
	lines = append(lines, "S2,F2,,1") // empty distance never becomes zero
	writeFile(t, cat.PairingsPath(tx, model.ServiceHospital), lines...)

	got, err := l.LoadPairings(tx, model.ServiceHospital)
	require.NoError(t, err, "1 bad row in 200 is within 1%")
	assert.Len(t, got, 199)
	assert.Equal(t, 3, got[0].Rank)

	lines = append(lines, "S3,F3,NaN,1")
	lines = append(lines, "S4,F4,-5,1")
	writeFile(t, cat.PairingsPath(tx, model.ServiceHospital), lines...)
	_, err = l.LoadPairings(tx, model.ServiceHospital)
	require.Error(t, err)
	assert.True(t, dataerr.IsIntegrity(err))
}

func TestLoadPairings_SchemaAndAvailability(t *testing.T) {
	l, cat := newTestLoader(t)
	tx := texas(t)

	_, err := l.LoadPairings(tx, model.ServiceArts)
	assert.True(t, dataerr.IsUnavailable(err))

	writeFile(t, cat.PairingsPath(tx, model.ServiceArts), "school_id,distance", "S1,10")
	_, err = l.LoadPairings(tx, model.ServiceArts)
	require.Error(t, err)
	assert.True(t, dataerr.IsIntegrity(err))
	assert.Contains(t, err.Error(), "facility_id")

	writeFile(t, cat.PairingsPath(tx, model.ServiceArts), "school_id,facility_id,distance")
	_, err = l.LoadPairings(tx, model.ServiceArts)
	assert.True(t, dataerr.IsIntegrity(err), "header only is an empty table")

	require.NoError(t, os.WriteFile(cat.PairingsPath(tx, model.ServiceArts), nil, 0o644))
	_, err = l.LoadPairings(tx, model.ServiceArts)
	assert.True(t, dataerr.IsIntegrity(err), "zero-byte file")
}

const coverageHeader = "GEOID,mindist_current,mindist_sol,numfacility_current,numfacility_sol,population"

func TestLoadCoverage(t *testing.T) {
	l, cat := newTestLoader(t)
	tx := texas(t)
	writeFile(t, cat.CoveragePath(tx, model.ServiceArts, 25),
		"\ufeff"+coverageHeader,
		"480019501001,5000,1000,0,1,1200",
		"480019501002,12000.0,12000.0,0,0,\"1,050\"",
	)

	tbl, err := l.LoadCoverage(tx, model.ServiceArts)
	require.NoError(t, err)
	assert.Equal(t, 25, tbl.Rate)
	assert.Equal(t, 2, tbl.Total)
	assert.Zero(t, tbl.Dropped)
	require.Len(t, tbl.Records, 2)

	assert.Equal(t, model.CoverageRecord{
		GEOID: "480019501001", BaselineDistM: 5000, OptimizedDistM: 1000,
		FacilitiesBefore: 0, FacilitiesAfter: 1, Population: 1200,
	}, tbl.Records[0])
	assert.Equal(t, 1050.0, tbl.Records[1].Population)
}

func TestLoadCoverage_PadsElevenDigitGEOID(t *testing.T) {
	l, cat := newTestLoader(t)
	ca, err := model.ParseState("CA")
	require.NoError(t, err)
	writeFile(t, cat.CoveragePath(ca, model.ServiceArts, 25),
		coverageHeader,
		"60014001001,5000,1000,0,1,1200",
	)

	tbl, err := l.LoadCoverage(ca, model.ServiceArts)
	require.NoError(t, err)
	assert.Equal(t, "060014001001", tbl.Records[0].GEOID)
}

func TestLoadCoverage_WrongStatePrefixDropped(t *testing.T) {
	l, cat := newTestLoader(t)
	tx := texas(t)
	writeFile(t, cat.CoveragePath(tx, model.ServiceArts, 25),
		coverageHeader,
		"480019501001,5000,1000,0,1,1200",
		"060014001001,5000,1000,0,1,1200",
	)
	_, err := l.LoadCoverage(tx, model.ServiceArts)
	require.Error(t, err)
	assert.True(t, dataerr.IsIntegrity(err))
	assert.Contains(t, err.Error(), "1 of 2 rows invalid")
}

func TestLoadCoverage_DuplicateGEOID(t *testing.T) {
	l, cat := newTestLoader(t)
	tx := texas(t)
	writeFile(t, cat.CoveragePath(tx, model.ServiceArts, 25),
		coverageHeader,
		"480019501001,5000,1000,0,1,1200",
		"480019501001,5000,1000,0,1,1200",
	)
	_, err := l.LoadCoverage(tx, model.ServiceArts)
	require.Error(t, err)
	assert.True(t, dataerr.IsIntegrity(err))
	assert.Contains(t, err.Error(), "duplicate GEOID 480019501001")
}

func TestLoadCoverage_AliasesAndClosestRate(t *testing.T) {
	l, cat := newTestLoader(t)
	tx := texas(t)
	writeFile(t, cat.CoveragePath(tx, model.ServiceHospital, 30),
		"GEOID,mindist_current,mindist_sol,numfac_current,numfac_sol,POP",
		"480019501001,5000,1000,2.0,3.0,10",
	)

	tbl, err := l.LoadCoverage(tx, model.ServiceHospital)
	require.NoError(t, err)
	assert.Equal(t, 30, tbl.Rate)
	assert.Equal(t, 2, tbl.Records[0].FacilitiesBefore)
	assert.Equal(t, 3, tbl.Records[0].FacilitiesAfter)

	_, err = l.LoadCoverage(texas(t), model.ServiceArts)
	assert.True(t, dataerr.IsUnavailable(err))
}

func TestLoadCoverage_RejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		row  string
	}{
		{name: "scientific GEOID", row: "4.80019501001e11,5000,1000,0,1,10"},
		{name: "short GEOID", row: "4800195010,5000,1000,0,1,10"},
		{name: "empty distance", row: "480019501001,,1000,0,1,10"},
		{name: "text distance", row: "480019501001,far,1000,0,1,10"},
		{name: "infinite", row: "480019501001,inf,1000,0,1,10"},
		{name: "negative population", row: "480019501001,5000,1000,0,1,-10"},
		{name: "fractional count", row: "480019501001,5000,1000,0.5,1,10"},
		{name: "bad grouping", row: "480019501001,\"50,00\",1000,0,1,10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, cat := newTestLoader(t)
			tx := texas(t)
			writeFile(t, cat.CoveragePath(tx, model.ServiceArts, 25), coverageHeader, tt.row)

			_, err := l.LoadCoverage(tx, model.ServiceArts)
			require.Error(t, err)
			assert.True(t, dataerr.IsIntegrity(err))
		})
	}
}

func TestLoadSummary(t *testing.T) {
	l, cat := newTestLoader(t)
	tx := texas(t)
	writeFile(t, filepath.Join(cat.BatchDir(model.ServiceArts), "TX_48_result_dist_3553_9060_reduced.csv"),
		",existing,p=10%,p=25%",
		"|I|,15811,15811,15811",
		"|J|,8963,8963,8963",
		"|Q|,1320,1320,1320",
		"delta1 threshold,3553,3553,3553",
		"delta2 threshold,9060,9060,9060",
		"num facility to open,0,896,2241",
		"Primary coverage,7000,9000,11000",
		"Secondary coverage,10000,12000,13500",
		"Customer Avg dist to fac,9438.2,7100.5,6000",
		"Customer Max dist to fac,178202,150000,140000",
		"Customer Min dist to fac,0,10.2,5.1",
		"Nonwhite % (secondary cover),,0.35,0.36",
		"NonBach % (secondary cover),,0.65,0.66",
		"Total Time (sec),,1.5,2.5",
		"open facility NCESSCH,0.0,\"['480001000001', '480001000002']\",0.0",
	)

	s, err := l.LoadSummary(tx, model.ServiceArts)
	require.NoError(t, err)

	assert.Equal(t, 15811, s.NumCBGs)
	assert.Equal(t, 8963, s.NumSchools)
	assert.Equal(t, 1320, s.NumFacilities)
	assert.Equal(t, 3553.0, s.PrimaryDistM)
	assert.Equal(t, 9060.0, s.SecondaryDistM)

	assert.Equal(t, 7000.0, s.Baseline.PrimaryCoverage)
	assert.Equal(t, 9438.2, s.Baseline.AvgDistanceM)
	assert.Nil(t, s.Baseline.NonwhitePct)

	require.Contains(t, s.Optimized, 10)
	require.Contains(t, s.Optimized, 25)
	assert.Equal(t, 896, s.Optimized[10].SchoolsActivated)
	assert.Equal(t, 6000.0, s.Optimized[25].AvgDistanceM)
	require.NotNil(t, s.Optimized[25].MinDistanceM)
	assert.Equal(t, 5.1, *s.Optimized[25].MinDistanceM)
	require.NotNil(t, s.Optimized[10].ComputeSeconds)
	assert.Equal(t, 1.5, *s.Optimized[10].ComputeSeconds)

	assert.Equal(t, map[int][]string{10: {"480001000001", "480001000002"}}, s.ActivatedSchools)
}

func TestLoadSummary_Errors(t *testing.T) {
	l, cat := newTestLoader(t)
	tx := texas(t)

	_, err := l.LoadSummary(tx, model.ServiceHospital)
	assert.True(t, dataerr.IsUnavailable(err))

	path := filepath.Join(cat.BatchDir(model.ServiceHospital), "TX_48_result_dist_16093_32187_reduced.csv")
	writeFile(t, path, ",existing", "Primary coverage,1")
	_, err = l.LoadSummary(tx, model.ServiceHospital)
	assert.True(t, dataerr.IsIntegrity(err), "no scenario columns")

	writeFile(t, path, ",existing,p=25%", "|I|,1,1")
	_, err = l.LoadSummary(tx, model.ServiceHospital)
	assert.True(t, dataerr.IsIntegrity(err), "missing metadata rows")
}
