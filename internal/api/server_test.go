package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolshare/dss-geo/internal/explorer"
	"github.com/schoolshare/dss-geo/internal/explorer/explorertest"
	"github.com/schoolshare/dss-geo/internal/model"
)

func newTestRouter(t *testing.T, opts Options) (http.Handler, *explorertest.Tree) {
	t.Helper()
	tr := explorertest.NewTree(t)
	tx := explorertest.State(t, "TX")
	tr.AddResults(tx, model.ServiceArts, 12)
	tr.AddFacilities(tx, model.ServiceArts)
	tr.AddSummary(tx, model.ServiceArts)
	tr.WritePolygons()

	svc, err := explorer.New(explorertest.Config(tr.Base))
	require.NoError(t, err)
	if opts.Origins == nil {
		opts.Origins = []string{"*"}
	}
	return NewRouter(svc, opts), tr
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	h, _ := newTestRouter(t, Options{})
	rr := get(t, h, "/health")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decode(t, rr)["status"])
}

func TestStates(t *testing.T) {
	h, _ := newTestRouter(t, Options{})

	rr := get(t, h, "/states?service=arts")
	require.Equal(t, http.StatusOK, rr.Code)
	states := decode(t, rr)["states"].([]any)
	require.Len(t, states, 1)
	assert.Equal(t, "TX", states[0].(map[string]any)["abbr"])

	rr = get(t, h, "/states?service=museums")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "bad_request", decode(t, rr)["error"])
}

func TestStateAvailable(t *testing.T) {
	h, _ := newTestRouter(t, Options{})

	rr := get(t, h, "/states/arts/TX")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, decode(t, rr)["available"])

	rr = get(t, h, "/states/hospital/TX")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, false, decode(t, rr)["available"])

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/states/arts/ZZ").Code)
}

func TestArtifacts(t *testing.T) {
	h, _ := newTestRouter(t, Options{})

	rr := get(t, h, "/artifacts/arts/TX")
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, true, body["available"])
	assert.Equal(t, float64(25), body["rate"])
	entries := body["artifacts"].([]any)
	require.Len(t, entries, 5)
	for _, e := range entries {
		assert.Equal(t, true, e.(map[string]any)["present"], e)
	}
	assert.Equal(t, "summary", entries[4].(map[string]any)["kind"])

	rr = get(t, h, "/artifacts/hospital/TX")
	require.Equal(t, http.StatusOK, rr.Code)
	body = decode(t, rr)
	assert.Equal(t, false, body["available"])
	assert.NotContains(t, body, "rate")
	entries = body["artifacts"].([]any)
	assert.Equal(t, true, entries[0].(map[string]any)["present"], "schools are shared across services")
	assert.Equal(t, false, entries[2].(map[string]any)["present"])
}

func TestLayer(t *testing.T) {
	h, _ := newTestRouter(t, Options{})

	rr := get(t, h, "/layers/arts/TX?metric=pct_improvement&bins=4")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "application/geo+json", rr.Header().Get("Content-Type"))
	assert.NotEmpty(t, rr.Header().Get("X-Layer-Id"))

	body := decode(t, rr)
	assert.Equal(t, "FeatureCollection", body["type"])
	assert.Len(t, body["features"], 12)

	again := get(t, h, "/layers/arts/TX?metric=pct_improvement&bins=4")
	assert.Equal(t, rr.Body.String(), again.Body.String())
}

func TestLayerSummary(t *testing.T) {
	h, _ := newTestRouter(t, Options{})

	rr := get(t, h, "/layers/arts/48/summary")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decode(t, rr)
	assert.Equal(t, float64(25), body["rate"])
	stats := body["stats"].(map[string]any)
	assert.Equal(t, float64(12), stats["joined"])
	assert.NotNil(t, stats["gap_closed"])
}

func TestStatusMapping(t *testing.T) {
	h, tr := newTestRouter(t, Options{})

	cases := []struct {
		path   string
		status int
		code   string
	}{
		{"/layers/arts/ZZ", http.StatusBadRequest, "bad_request"},
		{"/layers/arts/TX?bins=0", http.StatusBadRequest, "bad_request"},
		{"/layers/arts/TX?metric=density", http.StatusBadRequest, "bad_request"},
		{"/layers/hospital/TX", http.StatusNotFound, "data_unavailable"},
		{"/summary/hospital/TX", http.StatusNotFound, "data_unavailable"},
	}
	for _, tc := range cases {
		rr := get(t, h, tc.path)
		assert.Equal(t, tc.status, rr.Code, tc.path)
		body := decode(t, rr)
		assert.Equal(t, tc.code, body["error"], tc.path)
		assert.NotEmpty(t, body["message"], tc.path)
	}

	// A coverage table with a corrupt row beyond the threshold is an
	// integrity failure.
	path := filepath.Join(tr.Base, "data", "raw", "result_arts_250425", "coverages", "CA_06_coverage_mindist_numfacility_25perc.csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(
		"GEOID,mindist_current,mindist_sol,numfacility_current,numfacility_sol,population\n"+
			"060010000001,abc,1,0,0,1\n"), 0o644))
	rr := get(t, h, "/coverage/arts/CA")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "data_integrity", decode(t, rr)["error"])
}

func TestPairings(t *testing.T) {
	h, _ := newTestRouter(t, Options{})

	rr := get(t, h, "/pairings/arts/TX")
	require.Equal(t, http.StatusOK, rr.Code)
	rows := decode(t, rr)["pairings"].([]any)
	require.Len(t, rows, 2)
	first := rows[0].(map[string]any)
	assert.Equal(t, "North High", first["school_name"])
	assert.Equal(t, "F1", first["facility_id"])

	rr = get(t, h, "/pairings/arts/TX?format=csv")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "tx_arts_pairings.csv")
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "facility_id,facility_name,school_id,school_name,distance_m,rank", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "F1,Riverside Arts,480001,North High,1500,"))
}

func TestFacilitiesDegradedIsOK(t *testing.T) {
	h, _ := newTestRouter(t, Options{})

	rr := get(t, h, "/facilities/hospital/TX")
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, true, body["degraded"])
	assert.NotEmpty(t, body["banner"])

	rr = get(t, h, "/facilities/arts/TX")
	body = decode(t, rr)
	assert.Equal(t, false, body["degraded"])
	assert.Len(t, body["schools"], 2)
}

func TestCoverageAndSummary(t *testing.T) {
	h, _ := newTestRouter(t, Options{})

	rr := get(t, h, "/coverage/arts/TX?rate=30")
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, float64(25), body["rate"])
	assert.Len(t, body["records"], 12)

	rr = get(t, h, "/summary/arts/texas")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, float64(3), decode(t, rr)["n_cbgs"])

	rr = get(t, h, "/cache/stats")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Greater(t, decode(t, rr)["loads"], float64(0))
}

func TestRateLimit(t *testing.T) {
	h, _ := newTestRouter(t, Options{RateLimit: 0.001, Burst: 2})

	assert.Equal(t, http.StatusOK, get(t, h, "/cache/stats").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/cache/stats").Code)
	rr := get(t, h, "/cache/stats")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "rate_limited", decode(t, rr)["error"])

	// Health checks are not limited.
	assert.Equal(t, http.StatusOK, get(t, h, "/health").Code)
}

func TestCORS(t *testing.T) {
	h, _ := newTestRouter(t, Options{Origins: []string{"https://explorer.example.org"}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://explorer.example.org")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "https://explorer.example.org", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://elsewhere.example.org")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}
