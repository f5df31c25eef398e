package tabular

import (
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"
)

// CSVOptions configures the CSV reader.
type CSVOptions struct {
	LazyQuotes bool
}

// CSVReader reads a headed CSV table one record at a time.
type CSVReader struct {
	r      *csv.Reader
	Header *Header
}

// NewCSVReader reads the header row immediately. An empty input is an error.
func NewCSVReader(r io.Reader, opts CSVOptions) (*CSVReader, error) {
	cr := csv.NewReader(r)
	cr.LazyQuotes = opts.LazyQuotes
	cr.FieldsPerRecord = -1 // allow ragged rows; validation happens per column

	header, err := cr.Read()
	if err == io.EOF {
		return nil, eris.New("csv: empty input, no header row")
	}
	if err != nil {
		return nil, eris.Wrap(err, "csv: read header")
	}

	return &CSVReader{r: cr, Header: NewHeader(header)}, nil
}

// Next returns the next record, or io.EOF when the input is exhausted.
func (c *CSVReader) Next() (Record, error) {
	fields, err := c.r.Read()
	if err == io.EOF {
		return Record{}, io.EOF
	}
	if err != nil {
		return Record{}, eris.Wrap(err, "csv: read row")
	}
	line, _ := c.r.FieldPos(0)
	return Record{Line: line, Fields: fields}, nil
}

// Each calls fn for every remaining record.
func (c *CSVReader) Each(fn func(Record) error) error {
	for {
		rec, err := c.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}
