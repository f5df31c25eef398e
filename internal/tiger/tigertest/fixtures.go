// Package tigertest writes small block-group polygon files for tests.
package tigertest

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	_ "modernc.org/sqlite"
)

// Square returns a clockwise square MultiPolygon with lower-left corner (x, y).
func Square(x, y, size float64) *geom.MultiPolygon {
	return geom.NewMultiPolygon(geom.XY).MustSetCoords([][][]geom.Coord{{{
		{x, y}, {x, y + size}, {x + size, y + size}, {x + size, y}, {x, y},
	}}})
}

func sortedKeys(feats map[string]*geom.MultiPolygon) []string {
	keys := make([]string, 0, len(feats))
	for k := range feats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// WriteShapefile writes feats to path (.shp plus .shx and .dbf) with a
// 12-character GEOID attribute.
func WriteShapefile(path string, feats map[string]*geom.MultiPolygon) error {
	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return eris.Wrap(err, "tigertest: create shapefile")
	}
	err = writeShapes(w, feats)
	w.Close()
	if err != nil {
		return err
	}

	// go-shp names the attribute table "<base>dbf", without the dot.
	base := strings.TrimSuffix(path, filepath.Ext(path))
	if err := os.Rename(base+"dbf", base+".dbf"); err != nil {
		return eris.Wrap(err, "tigertest: rename attribute table")
	}
	return nil
}

func writeShapes(w *shp.Writer, feats map[string]*geom.MultiPolygon) error {
	if err := w.SetFields([]shp.Field{shp.StringField("GEOID", 12)}); err != nil {
		return eris.Wrap(err, "tigertest: set fields")
	}
	for _, geoid := range sortedKeys(feats) {
		mp := feats[geoid]
		var parts [][]shp.Point
		for i := 0; i < mp.NumPolygons(); i++ {
			poly := mp.Polygon(i)
			for j := 0; j < poly.NumLinearRings(); j++ {
				var ring []shp.Point
				for _, c := range poly.LinearRing(j).Coords() {
					ring = append(ring, shp.Point{X: c.X(), Y: c.Y()})
				}
				parts = append(parts, ring)
			}
		}
		shape := shp.Polygon(*shp.NewPolyLine(parts))
		row := w.Write(&shape)
		if err := w.WriteAttribute(int(row), 0, geoid); err != nil {
			return eris.Wrapf(err, "tigertest: write GEOID %s", geoid)
		}
	}
	return nil
}

// WriteGeoPackage writes feats to a minimal GeoPackage at path. Geometry
// blobs carry an XY envelope so readers must honour the header length.
func WriteGeoPackage(path string, srid int, feats map[string]*geom.MultiPolygon) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return eris.Wrap(err, "tigertest: open geopackage")
	}
	defer func() { _ = db.Close() }()

	ddl := []string{
		`CREATE TABLE gpkg_contents (table_name TEXT PRIMARY KEY, data_type TEXT NOT NULL, identifier TEXT, srs_id INTEGER)`,
		`CREATE TABLE gpkg_geometry_columns (table_name TEXT NOT NULL, column_name TEXT NOT NULL, geometry_type_name TEXT NOT NULL, srs_id INTEGER NOT NULL, z INTEGER NOT NULL, m INTEGER NOT NULL)`,
		`CREATE TABLE cbg_shapes (fid INTEGER PRIMARY KEY AUTOINCREMENT, geom BLOB, GEOID TEXT)`,
	}
	for _, stmt := range ddl {
		if _, err := db.Exec(stmt); err != nil {
			return eris.Wrap(err, "tigertest: create tables")
		}
	}
	if _, err := db.Exec(`INSERT INTO gpkg_contents VALUES ('cbg_shapes', 'features', 'cbg_shapes', ?)`, srid); err != nil {
		return eris.Wrap(err, "tigertest: insert gpkg_contents")
	}
	if _, err := db.Exec(`INSERT INTO gpkg_geometry_columns VALUES ('cbg_shapes', 'geom', 'MULTIPOLYGON', ?, 0, 0)`, srid); err != nil {
		return eris.Wrap(err, "tigertest: insert gpkg_geometry_columns")
	}

	for _, geoid := range sortedKeys(feats) {
		blob, err := GeoPackageBlob(feats[geoid], srid)
		if err != nil {
			return err
		}
		if _, err := db.Exec(`INSERT INTO cbg_shapes (geom, GEOID) VALUES (?, ?)`, blob, geoid); err != nil {
			return eris.Wrapf(err, "tigertest: insert %s", geoid)
		}
	}
	return nil
}

// GeoPackageBlob encodes g as a little-endian GeoPackage geometry with an XY
// envelope.
func GeoPackageBlob(g geom.T, srid int) ([]byte, error) {
	body, err := wkb.Marshal(g, binary.LittleEndian)
	if err != nil {
		return nil, eris.Wrap(err, "tigertest: marshal WKB")
	}
	b := g.Bounds()

	var buf bytes.Buffer
	buf.Write([]byte{'G', 'P', 0, 0x01 | 1<<1})
	_ = binary.Write(&buf, binary.LittleEndian, int32(srid))
	for _, v := range []float64{b.Min(0), b.Max(0), b.Min(1), b.Max(1)} {
		_ = binary.Write(&buf, binary.LittleEndian, math.Float64bits(v))
	}
	buf.Write(body)
	return buf.Bytes(), nil
}
