package tiger

import (
	"database/sql"
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/wkb"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/schoolshare/dss-geo/internal/dataerr"
	"github.com/schoolshare/dss-geo/internal/model"
)

// gpkgLayer is the feature table holding block-group polygons.
type gpkgLayer struct {
	Table    string
	GeomCol  string
	GEOIDCol string
	SRID     int
}

// readGeoPackage streams block groups from the first feature table of a
// GeoPackage to emit.
func readGeoPackage(path string, emit func(*model.CBGPolygon) error) (total, skipped int, err error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return 0, 0, dataerr.NewUnavailable(opLoad, path, eris.Wrap(err, "tiger: open geopackage"))
	}
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA query_only=1"); err != nil {
		return 0, 0, dataerr.NewUnavailable(opLoad, path, eris.Wrap(err, "tiger: set query_only"))
	}

	layer, err := discoverLayer(db)
	if err != nil {
		return 0, 0, dataerr.NewIntegrity(opLoad, path, err)
	}
	zap.L().Debug("tiger: geopackage layer",
		zap.String("table", layer.Table),
		zap.String("geom", layer.GeomCol),
		zap.String("geoid", layer.GEOIDCol),
		zap.Int("srid", layer.SRID),
	)

	q := "SELECT " + quoteIdent(layer.GEOIDCol) + ", " + quoteIdent(layer.GeomCol) + " FROM " + quoteIdent(layer.Table)
	rows, err := db.Query(q)
	if err != nil {
		return 0, 0, dataerr.NewUnavailable(opLoad, path, eris.Wrap(err, "tiger: query features"))
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		total++
		var (
			rawID any
			blob  []byte
		)
		if err := rows.Scan(&rawID, &blob); err != nil {
			return total, skipped, dataerr.NewIntegrity(opLoad, path, eris.Wrap(err, "tiger: scan feature"))
		}

		geoid, gErr := model.NormalizeGEOID(formatGEOID(rawID))
		if gErr != nil {
			skipped++
			continue
		}
		p, dErr := decodeGPKGGeometry(blob, layer.SRID)
		if dErr != nil || p == nil {
			skipped++
			zap.L().Debug("tiger: skipping feature without polygon", zap.String("geoid", geoid), zap.Error(dErr))
			continue
		}
		p.GEOID = geoid
		p.StateFIPS = model.GEOIDStateFIPS(geoid)
		if err := emit(p); err != nil {
			return total, skipped, err
		}
	}
	if err := rows.Err(); err != nil {
		return total, skipped, dataerr.NewUnavailable(opLoad, path, eris.Wrap(err, "tiger: iterate features"))
	}
	return total, skipped, nil
}

// discoverLayer finds the feature table, its geometry column and the GEOID
// attribute from the GeoPackage metadata tables.
func discoverLayer(db *sql.DB) (gpkgLayer, error) {
	var l gpkgLayer
	err := db.QueryRow(`
		SELECT c.table_name, g.column_name, g.srs_id
		FROM gpkg_contents c
		JOIN gpkg_geometry_columns g ON g.table_name = c.table_name
		WHERE c.data_type = 'features'
		ORDER BY c.table_name
		LIMIT 1`).Scan(&l.Table, &l.GeomCol, &l.SRID)
	if err == sql.ErrNoRows {
		return l, eris.New("tiger: geopackage has no feature table")
	}
	if err != nil {
		return l, eris.Wrap(err, "tiger: read gpkg_contents")
	}

	rows, err := db.Query("PRAGMA table_info(" + quoteIdent(l.Table) + ")")
	if err != nil {
		return l, eris.Wrapf(err, "tiger: table_info %s", l.Table)
	}
	defer func() { _ = rows.Close() }()

	cols := make(map[string]string)
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return l, eris.Wrap(err, "tiger: scan table_info")
		}
		cols[strings.ToUpper(name)] = name
	}
	if err := rows.Err(); err != nil {
		return l, eris.Wrap(err, "tiger: iterate table_info")
	}

	for _, name := range geoidFields {
		if c, ok := cols[name]; ok {
			l.GEOIDCol = c
			return l, nil
		}
	}
	return l, eris.Errorf("tiger: table %s has no GEOID column (looked for %s)", l.Table, strings.Join(geoidFields, ", "))
}

// decodeGPKGGeometry strips the GeoPackage binary header and decodes the WKB
// body. fallbackSRID is used when the header carries srs_id 0.
func decodeGPKGGeometry(blob []byte, fallbackSRID int) (*model.CBGPolygon, error) {
	body, srid, empty, err := splitGPKGHeader(blob)
	if err != nil {
		return nil, err
	}
	if empty {
		return nil, nil
	}
	if srid <= 0 {
		srid = fallbackSRID
	}

	g, err := wkb.Unmarshal(body)
	if err != nil {
		return nil, eris.Wrap(err, "tiger: decode WKB")
	}
	mp, err := toMultiPolygon(g, srid)
	if err != nil || mp == nil {
		return nil, err
	}
	return &model.CBGPolygon{Geometry: mp, SRID: srid}, nil
}

// envelopeSizes maps the header envelope indicator to its byte length.
var envelopeSizes = map[byte]int{0: 0, 1: 32, 2: 48, 3: 48, 4: 64}

// splitGPKGHeader parses the "GP" header: magic, version, flags, srs_id and
// an optional envelope.
func splitGPKGHeader(blob []byte) (body []byte, srid int, empty bool, err error) {
	if len(blob) < 8 || blob[0] != 'G' || blob[1] != 'P' {
		return nil, 0, false, eris.New("tiger: missing GeoPackage header magic")
	}
	flags := blob[3]

	var order binary.ByteOrder = binary.BigEndian
	if flags&0x01 == 1 {
		order = binary.LittleEndian
	}
	envLen, ok := envelopeSizes[(flags>>1)&0x07]
	if !ok {
		return nil, 0, false, eris.Errorf("tiger: invalid envelope indicator in flags %#x", flags)
	}

	srid = int(int32(order.Uint32(blob[4:8])))
	empty = flags&0x10 != 0
	off := 8 + envLen
	if len(blob) < off {
		return nil, 0, false, eris.Errorf("tiger: geometry blob truncated (%d bytes, header needs %d)", len(blob), off)
	}
	return blob[off:], srid, empty, nil
}

// formatGEOID renders a GEOID column value. GeoPackages written from
// dataframes sometimes store it as an integer.
func formatGEOID(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return ""
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
