package tiger

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/schoolshare/dss-geo/internal/dataerr"
	"github.com/schoolshare/dss-geo/internal/model"
)

// TIGER/Line shapefiles are published in NAD83 geographic coordinates.
const shapefileSRID = 4269

// geoidFields are the attribute names that carry the block-group GEOID across
// TIGER vintages.
var geoidFields = []string{"GEOID", "GEOID20", "GEOID10"}

// readShapefile streams block groups from a TIGER/Line shapefile to emit.
// Records with an unusable GEOID or geometry are skipped and counted.
func readShapefile(shpPath string, emit func(*model.CBGPolygon) error) (total, skipped int, err error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return 0, 0, dataerr.NewUnavailable(opLoad, shpPath, eris.Wrap(err, "tiger: open shapefile"))
	}
	defer func() { _ = reader.Close() }()

	// Build field name → index map.
	fieldIdx := make(map[string]int)
	for i, f := range reader.Fields() {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToUpper(strings.TrimSpace(name))] = i
	}
	geoidIdx := -1
	for _, name := range geoidFields {
		if i, ok := fieldIdx[name]; ok {
			geoidIdx = i
			break
		}
	}
	if geoidIdx < 0 {
		return 0, 0, dataerr.Integrityf(opLoad, shpPath, "no GEOID attribute (looked for %s)", strings.Join(geoidFields, ", "))
	}

	for reader.Next() {
		total++
		row, shape := reader.Shape()

		raw := strings.TrimSpace(strings.TrimRight(reader.Attribute(geoidIdx), "\x00"))
		geoid, gErr := model.NormalizeGEOID(raw)
		if gErr != nil {
			skipped++
			zap.L().Debug("tiger: skipping record with bad GEOID", zap.Int("row", row), zap.String("geoid", raw))
			continue
		}

		mp, cErr := shapeToMultiPolygon(shape, shapefileSRID)
		if cErr != nil || mp == nil {
			skipped++
			zap.L().Debug("tiger: skipping record without polygon", zap.String("geoid", geoid), zap.Error(cErr))
			continue
		}

		if err := emit(&model.CBGPolygon{
			GEOID:     geoid,
			StateFIPS: model.GEOIDStateFIPS(geoid),
			Geometry:  mp,
			SRID:      shapefileSRID,
		}); err != nil {
			return total, skipped, err
		}
	}
	if err := reader.Err(); err != nil {
		return total, skipped, dataerr.NewUnavailable(opLoad, shpPath, eris.Wrap(err, "tiger: read shapefile"))
	}
	return total, skipped, nil
}
