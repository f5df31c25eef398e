package results

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/schoolshare/dss-geo/internal/dataerr"
	"github.com/schoolshare/dss-geo/internal/model"
	"github.com/schoolshare/dss-geo/internal/tabular"
)

const opCoverage = "results: load coverage"

// CoverageSchema is the column contract of a per-CBG coverage table.
var CoverageSchema = tabular.Schema{
	Name: "coverage table",
	Columns: []tabular.Column{
		{Name: "GEOID", Required: true},
		{Name: "mindist_current", Required: true},
		{Name: "mindist_sol", Required: true},
		{Name: "numfacility_current", Aliases: []string{"numfac_current"}, Required: true},
		{Name: "numfacility_sol", Aliases: []string{"numfac_sol"}, Required: true},
		{Name: "population", Aliases: []string{"pop", "POP"}, Required: true},
	},
}

// CoverageTable is a validated coverage table for one activation rate.
type CoverageTable struct {
	Key     model.Key
	Rate    int
	Path    string
	Records []model.CoverageRecord
	Total   int
	Dropped int
}

// LoadCoverage reads the coverage table at the configured activation rate,
// or the closest rate available.
func (l *Loader) LoadCoverage(state model.State, service model.Service) (*CoverageTable, error) {
	return l.LoadCoverageAt(state, service, l.cat.Options().ActivationRate)
}

// LoadCoverageAt reads the coverage table closest to rate.
func (l *Loader) LoadCoverageAt(state model.State, service model.Service, rate int) (*CoverageTable, error) {
	selected, err := l.cat.SelectRate(state, service, rate)
	if err != nil {
		return nil, err
	}
	if selected != rate {
		l.log.Info("activation rate not available, using closest",
			zap.String("key", model.NewKey(state, service).String()),
			zap.Int("requested", rate),
			zap.Int("selected", selected),
		)
	}

	t := &CoverageTable{
		Key:  model.NewKey(state, service),
		Rate: selected,
		Path: l.cat.CoveragePath(state, service, selected),
	}
	seen := make(map[string]int)

	st, err := l.readTable(opCoverage, t.Path, CoverageSchema, func(b tabular.Binding, rec tabular.Record) error {
		r, err := parseCoverageRow(b, rec, state)
		if err != nil {
			return err
		}
		if line, dup := seen[r.GEOID]; dup {
			return dataerr.Integrityf(opCoverage, t.Path, "duplicate GEOID %s on lines %d and %d", r.GEOID, line, rec.Line)
		}
		seen[r.GEOID] = rec.Line
		t.Records = append(t.Records, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	t.Total, t.Dropped = st.Total, st.Dropped
	return t, nil
}

func parseCoverageRow(b tabular.Binding, rec tabular.Record, state model.State) (model.CoverageRecord, error) {
	var r model.CoverageRecord

	geoid, err := model.NormalizeGEOID(b.Get(rec, "GEOID"))
	if err != nil {
		return r, err
	}
	if fips := model.GEOIDStateFIPS(geoid); fips != state.FIPS {
		return r, eris.Errorf("results: GEOID %s belongs to state %s, not %s", geoid, fips, state.FIPS)
	}
	r.GEOID = geoid

	if r.BaselineDistM, err = tabular.ParseNonNegative(b.Get(rec, "mindist_current")); err != nil {
		return r, eris.Wrap(err, "results: mindist_current")
	}
	if r.OptimizedDistM, err = tabular.ParseNonNegative(b.Get(rec, "mindist_sol")); err != nil {
		return r, eris.Wrap(err, "results: mindist_sol")
	}
	if r.FacilitiesBefore, err = tabular.ParseCount(b.Get(rec, "numfacility_current")); err != nil {
		return r, eris.Wrap(err, "results: numfacility_current")
	}
	if r.FacilitiesAfter, err = tabular.ParseCount(b.Get(rec, "numfacility_sol")); err != nil {
		return r, eris.Wrap(err, "results: numfacility_sol")
	}
	if r.Population, err = tabular.ParseNonNegative(b.Get(rec, "population")); err != nil {
		return r, eris.Wrap(err, "results: population")
	}
	return r, nil
}
