package choropleth

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/schoolshare/dss-geo/internal/dataerr"
	"github.com/schoolshare/dss-geo/internal/proj"
)

// FeatureCollection converts the layer to a GeoJSON feature collection in
// geographic coordinates. Projected polygons are inverse-projected on copies;
// the layer itself is not modified.
func (l *Layer) FeatureCollection() (*geojson.FeatureCollection, error) {
	unproject, err := inverseFor(l.SRID)
	if err != nil {
		return nil, dataerr.NewConfiguration("choropleth.geojson", l.Key.String(), err)
	}

	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(l.Features))}
	var bounds *geom.Bounds
	for _, f := range l.Features {
		g := f.Geometry
		if unproject != nil {
			if g, err = unproject(g); err != nil {
				return nil, dataerr.NewIntegrity("choropleth.geojson", f.GEOID, err)
			}
		}
		if bounds == nil {
			bounds = geom.NewBounds(geom.XY)
		}
		bounds.Extend(g)
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         f.GEOID,
			Geometry:   g,
			Properties: f.properties(l.Metric),
		})
	}
	fc.BBox = bounds
	return fc, nil
}

// GeoJSON encodes the layer as a GeoJSON FeatureCollection.
func (l *Layer) GeoJSON() ([]byte, error) {
	fc, err := l.FeatureCollection()
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(fc)
	if err != nil {
		return nil, eris.Wrap(err, "choropleth: encode geojson")
	}
	return b, nil
}

func (f Feature) properties(m Metric) map[string]any {
	r := f.Record
	props := map[string]any{
		"geoid":             f.GEOID,
		"metric":            string(m),
		"value":             nil,
		"bin":               f.Bin,
		"color":             f.Color,
		"baseline_km":       r.BaselineDistM / 1000,
		"optimized_km":      r.OptimizedDistM / 1000,
		"population":        r.Population,
		"facilities_before": r.FacilitiesBefore,
		"facilities_after":  r.FacilitiesAfter,
	}
	if f.Value != nil {
		props["value"] = *f.Value
	}
	return props
}

// inverseFor returns a function that unprojects a copy of a polygon from srid
// to lon/lat, or nil when srid is already geographic.
func inverseFor(srid int) (func(*geom.MultiPolygon) (*geom.MultiPolygon, error), error) {
	if srid == 0 || proj.IsGeographic(srid) {
		return nil, nil
	}
	p, err := proj.ByEPSG(srid)
	if err != nil {
		return nil, eris.Wrapf(err, "choropleth: polygons in EPSG:%d cannot be unprojected", srid)
	}
	return func(g *geom.MultiPolygon) (*geom.MultiPolygon, error) {
		var first error
		out := geom.TransformInPlace(g.Clone(), func(c geom.Coord) {
			if first != nil {
				return
			}
			lon, lat, err := p.Inverse(c[0], c[1])
			if err != nil {
				first = err
				return
			}
			c[0], c[1] = lon, lat
		}).(*geom.MultiPolygon)
		return out, first
	}, nil
}
