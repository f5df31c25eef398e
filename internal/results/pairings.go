package results

import (
	"github.com/rotisserie/eris"

	"github.com/schoolshare/dss-geo/internal/model"
	"github.com/schoolshare/dss-geo/internal/tabular"
)

const opPairings = "results: load pairings"

// PairingSchema is the column contract of a pairing table.
var PairingSchema = tabular.Schema{
	Name: "pairing table",
	Columns: []tabular.Column{
		{Name: "school_id", Aliases: []string{"NCESSCH", "school"}, Required: true},
		{Name: "facility_id", Aliases: []string{"NCARID", "facility"}, Required: true},
		{Name: "distance", Aliases: []string{"dist", "distance_m"}, Required: true},
		{Name: "rank"},
	},
}

// LoadPairings reads the school-facility pairing table for (state, service).
// Rows without a rank column are ranked by order of appearance per school.
func (l *Loader) LoadPairings(state model.State, service model.Service) ([]model.FacilitySchoolPairing, error) {
	path := l.cat.PairingsPath(state, service)

	var out []model.FacilitySchoolPairing
	perSchool := make(map[string]int)
	_, err := l.readTable(opPairings, path, PairingSchema, func(b tabular.Binding, rec tabular.Record) error {
		p := model.FacilitySchoolPairing{
			SchoolID:   b.Get(rec, "school_id"),
			FacilityID: b.Get(rec, "facility_id"),
		}
		if p.SchoolID == "" || p.FacilityID == "" {
			return eris.New("results: empty school or facility id")
		}
		d, err := tabular.ParseNonNegative(b.Get(rec, "distance"))
		if err != nil {
			return eris.Wrap(err, "results: distance")
		}
		p.DistanceM = d

		if b.Has("rank") {
			r, err := tabular.ParseCount(b.Get(rec, "rank"))
			if err != nil {
				return eris.Wrap(err, "results: rank")
			}
			p.Rank = r
		} else {
			perSchool[p.SchoolID]++
			p.Rank = perSchool[p.SchoolID]
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
