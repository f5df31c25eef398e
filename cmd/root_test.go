package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolshare/dss-geo/internal/catalog"
	"github.com/schoolshare/dss-geo/internal/choropleth"
	"github.com/schoolshare/dss-geo/internal/explorer"
	"github.com/schoolshare/dss-geo/internal/model"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"states", "artifacts", "compose", "pairings", "summary", "warm", "serve"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "dss", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestComposeCommand_Flags(t *testing.T) {
	for _, name := range []string{"state", "service", "metric", "bins", "rate", "format", "out"} {
		assert.NotNil(t, composeCmd.Flags().Lookup(name), "compose should have --%s", name)
	}
	assert.Equal(t, "table", composeCmd.Flags().Lookup("format").DefValue)
	assert.Equal(t, "arts", composeCmd.Flags().Lookup("service").DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestCheckFormat(t *testing.T) {
	assert.NoError(t, checkFormat("json", "table", "json"))
	assert.Error(t, checkFormat("xml", "table", "json"))
}

func TestParseKey(t *testing.T) {
	key, err := parseKey("tx", "hospitals")
	require.NoError(t, err)
	assert.Equal(t, "48", key.State.FIPS)
	assert.Equal(t, model.ServiceHospital, key.Service)

	_, err = parseKey("Atlantis", "arts")
	assert.Error(t, err)
	_, err = parseKey("TX", "zoo")
	assert.Error(t, err)
}

func TestWriteStructured(t *testing.T) {
	var buf bytes.Buffer
	ok, err := writeStructured(&buf, "yaml", map[string]int{"count": 1})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "count: 1\n", buf.String())

	buf.Reset()
	ok, err = writeStructured(&buf, "table", nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, buf.String())
}

func TestFormatLayer(t *testing.T) {
	tx, err := model.ParseState("TX")
	require.NoError(t, err)
	gap := 0.8
	layer := &choropleth.Layer{
		ID:    "layer-id",
		Key:   model.NewKey(tx, model.ServiceArts),
		Label: choropleth.MetricDistanceReduction.Label(),
		Rate:  25,
		Bins: []choropleth.Bin{
			{Index: 0, Label: "0.00 – 1.00", Color: "#f5f5f5", Count: 1200},
		},
		Stats: choropleth.Stats{Joined: 15811, PopulationTotal: 1234567, GapClosed: &gap},
	}

	var buf bytes.Buffer
	formatLayer(&buf, layer)
	out := buf.String()
	assert.Contains(t, out, "Texas, Arts Facilities at 25% activation")
	assert.Contains(t, out, "1,200")
	assert.Contains(t, out, "15,811")
	assert.Contains(t, out, "1,234,567")
	assert.Contains(t, out, "80.0%")
	assert.Contains(t, out, "n/a", "undefined means are shown as n/a")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteLayer_PropagatesWriteErrors(t *testing.T) {
	tx, err := model.ParseState("TX")
	require.NoError(t, err)
	layer := &choropleth.Layer{ID: "layer-id", Key: model.NewKey(tx, model.ServiceArts), Features: []choropleth.Feature{}}

	for _, format := range []string{"geojson", "json"} {
		err := writeLayer(failingWriter{}, format, layer)
		assert.Error(t, err, format)
	}

	var buf bytes.Buffer
	require.NoError(t, writeLayer(&buf, "geojson", layer))
	assert.Contains(t, buf.String(), `"FeatureCollection"`)
}

func TestFormatArtifacts(t *testing.T) {
	key, err := parseKey("TX", "arts")
	require.NoError(t, err)

	var buf bytes.Buffer
	formatArtifacts(&buf, artifactReport{
		Key:  key,
		Rate: 25,
		Artifacts: []catalog.Entry{
			{Kind: catalog.KindSchools, Path: "/d/HS_48.geojson", Present: true},
			{Kind: catalog.KindTargets, Path: "/d/OM_48.geojson"},
			{Kind: catalog.KindPairings, Path: "/d/TX_48_pairings.csv", Present: true},
			{Kind: catalog.KindCoverage, Path: "/d/TX_48_25perc.csv", Present: true},
			{Kind: catalog.KindSummary},
		},
	})
	out := buf.String()
	assert.Regexp(t, `facilities\s+MISSING\s+/d/OM_48.geojson`, out)
	assert.Regexp(t, `summary\s+absent\s+-`, out)
	assert.Regexp(t, `schools\s+ok\s+/d/HS_48.geojson`, out)
	assert.Contains(t, out, "Texas, Arts Facilities: artifact set incomplete (coverage at p=25%)")
}

func TestFormatStates(t *testing.T) {
	tx, err := model.ParseState("TX")
	require.NoError(t, err)
	var buf bytes.Buffer
	formatStates(&buf, model.ServiceHospital, []model.State{tx})
	assert.Contains(t, buf.String(), "48    TX    Texas")
	assert.Contains(t, buf.String(), "1 states available for Hospitals")
}

func TestPairingsOutput(t *testing.T) {
	rows := []explorer.PairingRow{{
		FacilitySchoolPairing: model.FacilitySchoolPairing{SchoolID: "480001", FacilityID: "F1", DistanceM: 1500, Rank: 1},
		FacilityName:          "Riverside Arts",
		SchoolName:            "North High",
	}}

	var buf bytes.Buffer
	require.NoError(t, writePairingsCSV(&buf, rows))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Facility ID,Facility Name,School ID,School Name,Distance (m)", lines[0])
	assert.Equal(t, "F1,Riverside Arts,480001,North High,1500", lines[1])

	buf.Reset()
	formatPairings(&buf, rows)
	assert.Contains(t, buf.String(), "1.50 km")
	assert.Contains(t, buf.String(), "1 facility-school pairings")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
