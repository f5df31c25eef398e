package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/schoolshare/dss-geo/internal/choropleth"
	"github.com/schoolshare/dss-geo/internal/model"
)

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// keyFrom parses the {service} and {state} path parameters.
func keyFrom(r *http.Request) (model.Key, error) {
	svc, err := model.ParseService(chi.URLParam(r, "service"))
	if err != nil {
		return model.Key{}, err
	}
	st, err := model.ParseState(chi.URLParam(r, "state"))
	if err != nil {
		return model.Key{}, err
	}
	return model.NewKey(st, svc), nil
}

func (h *handlers) badRequest(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, "bad_request", err.Error())
}

func (h *handlers) states(w http.ResponseWriter, r *http.Request) {
	svc := model.ServiceArts
	if v := r.URL.Query().Get("service"); v != "" {
		var err error
		if svc, err = model.ParseService(v); err != nil {
			h.badRequest(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"service": svc,
		"states":  h.ex.ListAvailableStates(svc),
	})
}

func (h *handlers) stateAvailable(w http.ResponseWriter, r *http.Request) {
	key, err := keyFrom(r)
	if err != nil {
		h.badRequest(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"key":       key,
		"available": h.ex.IsAvailable(key),
	})
}

// artifacts reports the resolved artifact set. An incomplete set is still a
// 200; available is false and the missing entries have present=false.
func (h *handlers) artifacts(w http.ResponseWriter, r *http.Request) {
	key, err := keyFrom(r)
	if err != nil {
		h.badRequest(w, err)
		return
	}
	a, err := h.ex.Artifacts(key)
	body := map[string]any{
		"key":       key,
		"available": err == nil,
		"artifacts": a.Entries(),
	}
	if a.Rate > 0 {
		body["rate"] = a.Rate
	}
	writeJSON(w, http.StatusOK, body)
}

// layerOptions reads the metric, bins and rate query parameters. Zero values
// fall back to the configured defaults.
func layerOptions(r *http.Request) (choropleth.Options, error) {
	var opts choropleth.Options
	q := r.URL.Query()
	if v := q.Get("metric"); v != "" {
		m, err := choropleth.ParseMetric(v)
		if err != nil {
			return opts, err
		}
		opts.Metric = m
	}
	if v := q.Get("bins"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 20 {
			return opts, eris.Errorf("bins must be an integer between 1 and 20, got %q", v)
		}
		opts.Bins = n
	}
	if v := q.Get("rate"); v != "" {
		n, err := strconv.Atoi(strings.TrimSuffix(v, "%"))
		if err != nil || n < 1 || n > 100 {
			return opts, eris.Errorf("rate must be a percentage between 1 and 100, got %q", v)
		}
		opts.Rate = n
	}
	return opts, nil
}

func (h *handlers) composeFor(w http.ResponseWriter, r *http.Request) (*choropleth.Layer, bool) {
	key, err := keyFrom(r)
	if err != nil {
		h.badRequest(w, err)
		return nil, false
	}
	opts, err := layerOptions(r)
	if err != nil {
		h.badRequest(w, err)
		return nil, false
	}
	layer, err := h.ex.ComposeLayer(r.Context(), key.State, key.Service, opts)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return layer, true
}

func (h *handlers) layer(w http.ResponseWriter, r *http.Request) {
	layer, ok := h.composeFor(w, r)
	if !ok {
		return
	}
	body, err := layer.GeoJSON()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("X-Layer-Id", layer.ID)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.log.Debug("write layer", zap.Error(err))
	}
}

type layerSummary struct {
	ID     string            `json:"id"`
	Key    model.Key         `json:"key"`
	Metric choropleth.Metric `json:"metric"`
	Label  string            `json:"label"`
	Rate   int               `json:"rate"`
	Bins   []choropleth.Bin  `json:"bins"`
	Stats  choropleth.Stats  `json:"stats"`
}

func (h *handlers) layerSummary(w http.ResponseWriter, r *http.Request) {
	layer, ok := h.composeFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, layerSummary{
		ID:     layer.ID,
		Key:    layer.Key,
		Metric: layer.Metric,
		Label:  layer.Label,
		Rate:   layer.Rate,
		Bins:   layer.Bins,
		Stats:  layer.Stats,
	})
}

// pairingCSV is the download layout of a pairing row.
type pairingCSV struct {
	FacilityID   string  `csv:"facility_id"`
	FacilityName string  `csv:"facility_name"`
	SchoolID     string  `csv:"school_id"`
	SchoolName   string  `csv:"school_name"`
	DistanceM    float64 `csv:"distance_m"`
	Rank         int     `csv:"rank"`
}

func (h *handlers) pairings(w http.ResponseWriter, r *http.Request) {
	key, err := keyFrom(r)
	if err != nil {
		h.badRequest(w, err)
		return
	}
	rows, err := h.ex.Pairings(r.Context(), key)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if r.URL.Query().Get("format") != "csv" {
		writeJSON(w, http.StatusOK, map[string]any{"key": key, "pairings": rows})
		return
	}
	out := make([]pairingCSV, 0, len(rows))
	for _, p := range rows {
		out = append(out, pairingCSV{
			FacilityID:   p.FacilityID,
			FacilityName: p.FacilityName,
			SchoolID:     p.SchoolID,
			SchoolName:   p.SchoolName,
			DistanceM:    p.DistanceM,
			Rank:         p.Rank,
		})
	}
	body, err := csvutil.Marshal(out)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	name := fmt.Sprintf("%s_%s_pairings.csv", strings.ToLower(key.State.Abbr), key.Service)
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *handlers) facilities(w http.ResponseWriter, r *http.Request) {
	key, err := keyFrom(r)
	if err != nil {
		h.badRequest(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ex.Facilities(r.Context(), key))
}

func (h *handlers) coverage(w http.ResponseWriter, r *http.Request) {
	key, err := keyFrom(r)
	if err != nil {
		h.badRequest(w, err)
		return
	}
	opts, err := layerOptions(r)
	if err != nil {
		h.badRequest(w, err)
		return
	}
	tbl, err := h.ex.CoverageTable(r.Context(), key, opts.Rate)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"key":     key,
		"rate":    tbl.Rate,
		"total":   tbl.Total,
		"dropped": tbl.Dropped,
		"records": tbl.Records,
	})
}

func (h *handlers) summary(w http.ResponseWriter, r *http.Request) {
	key, err := keyFrom(r)
	if err != nil {
		h.badRequest(w, err)
		return
	}
	s, err := h.ex.Summary(r.Context(), key)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *handlers) cacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.ex.CacheStats())
}
