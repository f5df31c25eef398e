package facility

import (
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/schoolshare/dss-geo/internal/dataerr"
	"github.com/schoolshare/dss-geo/internal/model"
	"github.com/schoolshare/dss-geo/internal/tabular"
)

var orgMapSchema = tabular.Schema{
	Name: "OrgMap workbook",
	Columns: []tabular.Column{
		{Name: "NCARID", Required: true},
		{Name: "OrgName", Aliases: []string{"name"}, Required: true},
		{Name: "Latitude", Aliases: []string{"lat"}, Required: true},
		{Name: "Longitude", Aliases: []string{"lon", "lng"}, Required: true},
		{Name: "State", Aliases: []string{"StateAbbr", "ST"}, Required: true},
		{Name: "City"},
		{Name: "macro_sector"},
	},
}

// LoadOrgMap reads arts organizations for state from the national OrgMap
// workbook, projecting their WGS84 coordinates.
func (l *Loader) LoadOrgMap(path string, state model.State) ([]model.FacilityPoint, error) {
	header, records, err := tabular.ReadXLSX(path, tabular.XLSXOptions{})
	if err != nil {
		return nil, dataerr.NewUnavailable(opLoad, path, err)
	}
	b, err := orgMapSchema.Bind(header)
	if err != nil {
		return nil, dataerr.NewIntegrity(opLoad, path, err)
	}

	var (
		points  []model.FacilityPoint
		dropped int
		total   int
	)
	for _, rec := range records {
		if !strings.EqualFold(b.Get(rec, "State"), state.Abbr) {
			continue
		}
		total++

		id := b.Get(rec, "NCARID")
		lat, latErr := tabular.ParseFloat(b.Get(rec, "Latitude"))
		lon, lonErr := tabular.ParseFloat(b.Get(rec, "Longitude"))
		if id == "" || latErr != nil || lonErr != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			dropped++
			continue
		}
		x, y, err := l.proj.Forward(lon, lat)
		if err != nil {
			dropped++
			continue
		}

		var attrs map[string]string
		for _, col := range []string{"City", "macro_sector"} {
			if v := b.Get(rec, col); v != "" {
				if attrs == nil {
					attrs = make(map[string]string)
				}
				attrs[col] = v
			}
		}
		points = append(points, model.FacilityPoint{
			ID:        id,
			Name:      b.Get(rec, "OrgName"),
			X:         x,
			Y:         y,
			StateFIPS: state.FIPS,
			Kind:      model.KindArts,
			Attrs:     attrs,
		})
	}

	if total == 0 {
		return nil, dataerr.NewUnavailable(opLoad, path, eris.Errorf("facility: OrgMap has no organizations in %s", state.Abbr))
	}
	if err := l.checkDropped(path, dropped, total); err != nil {
		return nil, err
	}
	l.log.Debug("loaded OrgMap points",
		zap.String("state", state.String()),
		zap.Int("points", len(points)),
		zap.Int("dropped", dropped),
	)
	return points, nil
}
