// Package results loads the precomputed optimization outputs: school-facility
// pairings, per-CBG coverage tables and the transposed scenario summary.
package results

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/schoolshare/dss-geo/internal/catalog"
	"github.com/schoolshare/dss-geo/internal/dataerr"
	"github.com/schoolshare/dss-geo/internal/tabular"
)

// maxLoggedRejects caps the per-file debug lines for rejected rows.
const maxLoggedRejects = 5

// Loader reads result tables located by a catalog.
type Loader struct {
	cat     *catalog.Catalog
	maxDrop float64
	log     *zap.Logger
}

// NewLoader creates a Loader. Loads fail when more than maxDropFraction of a
// table's rows are invalid.
func NewLoader(cat *catalog.Catalog, maxDropFraction float64) *Loader {
	return &Loader{
		cat:     cat,
		maxDrop: maxDropFraction,
		log:     zap.L().With(zap.String("component", "results")),
	}
}

// rowFunc validates one record. A non-nil error drops the row.
type rowFunc func(b tabular.Binding, rec tabular.Record) error

// tableStats counts what happened to the rows of one table.
type tableStats struct {
	Total   int
	Dropped int
}

// readTable opens path, binds the header to schema and feeds every data row
// to fn, enforcing the empty-table and drop-fraction rules.
func (l *Loader) readTable(op, path string, schema tabular.Schema, fn rowFunc) (tableStats, error) {
	var st tableStats

	f, err := os.Open(path)
	if err != nil {
		return st, dataerr.NewUnavailable(op, path, eris.Wrap(err, "results: open"))
	}
	defer func() { _ = f.Close() }()

	r, err := tabular.NewCSVReader(f, tabular.CSVOptions{})
	if err != nil {
		return st, dataerr.NewIntegrity(op, path, err)
	}
	b, err := schema.Bind(r.Header)
	if err != nil {
		return st, dataerr.NewIntegrity(op, path, err)
	}

	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return st, dataerr.NewIntegrity(op, path, err)
		}
		st.Total++
		if err := fn(b, rec); err != nil {
			var de *dataerr.Error
			if eris.As(err, &de) {
				return st, err
			}
			st.Dropped++
			if st.Dropped <= maxLoggedRejects {
				l.log.Debug("rejected row",
					zap.String("table", schema.Name),
					zap.String("path", path),
					zap.Int("line", rec.Line),
					zap.Error(err),
				)
			}
		}
	}

	if st.Total == 0 {
		return st, dataerr.Integrityf(op, path, "%s has no data rows", schema.Name)
	}
	if dataerr.ExceedsThreshold(st.Dropped, st.Total, l.maxDrop) {
		return st, dataerr.Integrityf(op, path, "%d of %d rows invalid (max fraction %.4f)", st.Dropped, st.Total, l.maxDrop)
	}
	if st.Dropped > 0 {
		l.log.Warn("dropped invalid rows",
			zap.String("table", schema.Name),
			zap.String("path", path),
			zap.Int("dropped", st.Dropped),
			zap.Int("total", st.Total),
		)
	}
	return st, nil
}
