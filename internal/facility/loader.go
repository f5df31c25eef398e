// Package facility loads school, arts-organization and hospital point
// locations for one state in projected meters.
package facility

import (
	"encoding/json"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/schoolshare/dss-geo/internal/catalog"
	"github.com/schoolshare/dss-geo/internal/dataerr"
	"github.com/schoolshare/dss-geo/internal/model"
	"github.com/schoolshare/dss-geo/internal/proj"
	"github.com/schoolshare/dss-geo/internal/tabular"
)

const opLoad = "facility: load points"

// Property schemas per facility kind. Processed exports keep the source
// dataset's column names, so each kind has its own aliases.
var schemas = map[model.FacilityKind]tabular.Schema{
	model.KindSchool: {Name: "school points", Columns: []tabular.Column{
		{Name: "id", Aliases: []string{"NCESSCH", "school_id"}, Required: true},
		{Name: "name", Aliases: []string{"SCH_NAME", "School Name"}, Required: true},
	}},
	model.KindArts: {Name: "arts points", Columns: []tabular.Column{
		{Name: "id", Aliases: []string{"NCARID", "facility_id"}, Required: true},
		{Name: "name", Aliases: []string{"OrgName"}, Required: true},
	}},
	model.KindHospital: {Name: "hospital points", Columns: []tabular.Column{
		{Name: "id", Aliases: []string{"ID", "facility_id"}, Required: true},
		{Name: "name", Aliases: []string{"NAME"}, Required: true},
	}},
}

// Loader reads facility point files located by a catalog.
type Loader struct {
	cat     *catalog.Catalog
	proj    proj.Projection
	maxDrop float64
	log     *zap.Logger
}

// NewLoader creates a Loader that returns coordinates in the projected CRS
// epsg.
func NewLoader(cat *catalog.Catalog, epsg int, maxDropFraction float64) (*Loader, error) {
	p, err := proj.ByEPSG(epsg)
	if err != nil {
		return nil, dataerr.NewConfiguration("facility: new loader", "projection.epsg", err)
	}
	return &Loader{
		cat:     cat,
		proj:    p,
		maxDrop: maxDropFraction,
		log:     zap.L().With(zap.String("component", "facility")),
	}, nil
}

// LoadFacilities returns the schools and the service's target facilities for
// state. Either failing fails the whole call.
func (l *Loader) LoadFacilities(state model.State, service model.Service) (schools, targets []model.FacilityPoint, err error) {
	schools, err = l.Load(state, model.KindSchool)
	if err != nil {
		return nil, nil, err
	}
	targets, err = l.Load(state, service.TargetKind())
	if err != nil {
		return nil, nil, err
	}
	return schools, targets, nil
}

// Load returns the points of one kind for state. Arts organizations fall
// back to the raw OrgMap workbook when the processed file is absent.
func (l *Loader) Load(state model.State, kind model.FacilityKind) ([]model.FacilityPoint, error) {
	path := l.cat.FacilityPath(state, kind)
	if _, err := os.Stat(path); err != nil && os.IsNotExist(err) && kind == model.KindArts {
		if _, wErr := os.Stat(l.cat.OrgMapPath()); wErr == nil {
			l.log.Info("processed arts file missing, using OrgMap workbook",
				zap.String("state", state.String()),
				zap.String("path", l.cat.OrgMapPath()),
			)
			return l.LoadOrgMap(l.cat.OrgMapPath(), state)
		}
	}
	return l.LoadGeoJSON(path, state, kind)
}

// collectionCRS is the legacy "crs" member of a FeatureCollection, which the
// geojson package does not decode.
type collectionCRS struct {
	CRS *geojson.CRS `json:"crs"`
}

// LoadGeoJSON reads a FeatureCollection of Point features.
func (l *Loader) LoadGeoJSON(path string, state model.State, kind model.FacilityKind) ([]model.FacilityPoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, dataerr.NewUnavailable(opLoad, path, eris.Wrap(err, "facility: read"))
	}

	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, dataerr.NewIntegrity(opLoad, path, eris.Wrap(err, "facility: decode feature collection"))
	}
	if len(fc.Features) == 0 {
		return nil, dataerr.Integrityf(opLoad, path, "no features")
	}
	var meta collectionCRS
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, dataerr.NewIntegrity(opLoad, path, eris.Wrap(err, "facility: decode crs"))
	}

	epsg, err := l.sourceEPSG(meta.CRS)
	if err != nil {
		return nil, dataerr.NewIntegrity(opLoad, path, err)
	}
	reproject := proj.IsGeographic(epsg)

	schema := schemas[kind]
	var (
		keys    map[string]string
		dropped int
	)
	points := make([]model.FacilityPoint, 0, len(fc.Features))
	for i, f := range fc.Features {
		if keys == nil {
			props := f.Properties
			if props == nil {
				props = map[string]any{}
			}
			if f.ID != "" {
				if _, ok := props["id"]; !ok {
					props["id"] = f.ID
				}
			}
			if keys, err = schema.BindMap(props); err != nil {
				return nil, dataerr.NewIntegrity(opLoad, path, err)
			}
		}

		pt, ok := f.Geometry.(*geom.Point)
		if !ok || pt.Empty() {
			dropped++
			l.log.Debug("dropping feature without point geometry", zap.String("path", path), zap.Int("feature", i))
			continue
		}
		x, y := pt.X(), pt.Y()
		if reproject {
			if x, y, err = l.proj.Forward(x, y); err != nil {
				dropped++
				l.log.Debug("dropping unprojectable feature", zap.String("path", path), zap.Int("feature", i), zap.Error(err))
				continue
			}
		}
		if !finite(x) || !finite(y) {
			dropped++
			continue
		}

		id := propString(f.Properties[keys["id"]])
		if id == "" {
			id = f.ID
		}
		if id == "" {
			dropped++
			continue
		}

		points = append(points, model.FacilityPoint{
			ID:        id,
			Name:      propString(f.Properties[keys["name"]]),
			X:         x,
			Y:         y,
			StateFIPS: state.FIPS,
			Kind:      kind,
			Attrs:     extraAttrs(f.Properties, keys),
		})
	}

	if err := l.checkDropped(path, dropped, len(fc.Features)); err != nil {
		return nil, err
	}
	l.log.Debug("loaded facility points",
		zap.String("path", path),
		zap.String("kind", string(kind)),
		zap.Int("points", len(points)),
		zap.Int("dropped", dropped),
		zap.Bool("reprojected", reproject),
	)
	return points, nil
}

// sourceEPSG decides the CRS of the coordinates. A missing crs member means
// the configured projected CRS; geographic input is accepted for
// reprojection; any other projected CRS is refused.
func (l *Loader) sourceEPSG(crs *geojson.CRS) (int, error) {
	if crs == nil || crs.Properties == nil {
		return l.proj.EPSG(), nil
	}
	name, _ := crs.Properties["name"].(string)
	if name == "" {
		return l.proj.EPSG(), nil
	}
	epsg, err := proj.ParseCRSName(name)
	if err != nil {
		return 0, err
	}
	if epsg != l.proj.EPSG() && !proj.IsGeographic(epsg) {
		return 0, eris.Errorf("facility: coordinates in EPSG:%d, expected EPSG:%d", epsg, l.proj.EPSG())
	}
	return epsg, nil
}

func (l *Loader) checkDropped(path string, dropped, total int) error {
	if dataerr.ExceedsThreshold(dropped, total, l.maxDrop) {
		return dataerr.Integrityf(opLoad, path, "%d of %d features unusable (max fraction %.4f)", dropped, total, l.maxDrop)
	}
	return nil
}

func propString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, _ := json.Marshal(x)
		return string(b)
	}
}

// extraAttrs keeps the scalar properties not already mapped to ID or Name.
func extraAttrs(props map[string]any, keys map[string]string) map[string]string {
	used := make(map[string]bool, len(keys))
	for _, k := range keys {
		used[k] = true
	}
	var out map[string]string
	for k, v := range props {
		if used[k] || v == nil {
			continue
		}
		switch v.(type) {
		case string, float64, bool:
		default:
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[k] = propString(v)
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
