package tiger

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// shapeToMultiPolygon converts a shapefile Polygon record to a
// geom.MultiPolygon. Shapefile outer rings run clockwise and holes
// counter-clockwise; each hole is attached to the outer ring before it.
// Returns nil, nil for null or empty shapes.
func shapeToMultiPolygon(shape shp.Shape, srid int) (*geom.MultiPolygon, error) {
	var p *shp.Polygon
	switch s := shape.(type) {
	case nil, *shp.Null:
		return nil, nil
	case *shp.Polygon:
		p = s
	default:
		return nil, eris.Errorf("tiger: unsupported shape type %T", shape)
	}
	if p.NumParts == 0 || len(p.Points) == 0 {
		return nil, nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(srid)
	var current *geom.Polygon
	flush := func() error {
		if current == nil {
			return nil
		}
		err := mp.Push(current)
		current = nil
		return err
	}

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if start < 0 || end > int32(len(p.Points)) || end-start < 4 {
			zap.L().Debug("tiger: skipping degenerate ring", zap.Int32("part", i))
			continue
		}

		flat := flatCoords(p.Points[start:end])
		ring := geom.NewLinearRingFlat(geom.XY, flat)

		if signedArea(flat) > 0 && current != nil {
			if err := current.Push(ring); err != nil {
				return nil, eris.Wrapf(err, "tiger: push hole %d", i)
			}
			continue
		}
		if err := flush(); err != nil {
			return nil, eris.Wrapf(err, "tiger: push polygon before part %d", i)
		}
		current = geom.NewPolygon(geom.XY)
		if err := current.Push(ring); err != nil {
			return nil, eris.Wrapf(err, "tiger: push ring %d", i)
		}
	}
	if err := flush(); err != nil {
		return nil, eris.Wrap(err, "tiger: push last polygon")
	}

	if mp.NumPolygons() == 0 {
		return nil, nil
	}
	return mp, nil
}

// toMultiPolygon promotes a decoded Polygon to a single-member MultiPolygon.
func toMultiPolygon(g geom.T, srid int) (*geom.MultiPolygon, error) {
	switch v := g.(type) {
	case *geom.MultiPolygon:
		return v.SetSRID(srid), nil
	case *geom.Polygon:
		mp := geom.NewMultiPolygon(v.Layout()).SetSRID(srid)
		if err := mp.Push(v); err != nil {
			return nil, eris.Wrap(err, "tiger: promote polygon")
		}
		return mp, nil
	case nil:
		return nil, nil
	default:
		return nil, eris.Errorf("tiger: expected polygon geometry, got %T", g)
	}
}

// flatCoords converts shapefile points to flat XY pairs for go-geom.
func flatCoords(points []shp.Point) []float64 {
	flat := make([]float64, 0, len(points)*2)
	for _, pt := range points {
		flat = append(flat, pt.X, pt.Y)
	}
	return flat
}

// signedArea is the shoelace area of a closed XY ring; positive when the ring
// runs counter-clockwise.
func signedArea(flat []float64) float64 {
	var sum float64
	n := len(flat) / 2
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += flat[2*i]*flat[2*j+1] - flat[2*j]*flat[2*i+1]
	}
	return sum / 2
}
