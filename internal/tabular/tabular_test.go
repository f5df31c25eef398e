package tabular

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var coverageSchema = Schema{
	Name: "coverage",
	Columns: []Column{
		{Name: "GEOID", Required: true},
		{Name: "population", Aliases: []string{"pop"}, Required: true},
		{Name: "note"},
	},
}

func TestCSVReaderWithSchema(t *testing.T) {
	in := "\ufeff GEOID ,POP,extra\n480010001001, 1,234 ,x\n480010001002,56,y\n"
	r, err := NewCSVReader(strings.NewReader(in), CSVOptions{})
	require.NoError(t, err)

	b, err := coverageSchema.Bind(r.Header)
	require.NoError(t, err)
	assert.False(t, b.Has("note"))

	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Line)
	assert.Equal(t, "480010001001", b.Get(rec, "GEOID"))
	// Unquoted comma splits the field; the schema sees only "1".
	assert.Equal(t, "1", b.Get(rec, "population"))

	var lines []int
	require.NoError(t, r.Each(func(rec Record) error {
		lines = append(lines, rec.Line)
		return nil
	}))
	assert.Equal(t, []int{3}, lines)

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestSchemaBindMissingColumns(t *testing.T) {
	_, err := coverageSchema.Bind(NewHeader([]string{"geoid_x", "name"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEOID, population")
}

func TestSchemaBindMap(t *testing.T) {
	keys, err := coverageSchema.BindMap(map[string]any{"geoid": "1", "POP": 3})
	require.NoError(t, err)
	assert.Equal(t, "geoid", keys["GEOID"])
	assert.Equal(t, "POP", keys["population"])

	_, err = coverageSchema.BindMap(map[string]any{"geoid": "1"})
	assert.Error(t, err)
}

func TestNewCSVReaderEmpty(t *testing.T) {
	_, err := NewCSVReader(strings.NewReader(""), CSVOptions{})
	assert.Error(t, err)
}

func TestParseFloat(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"12.5", 12.5, true},
		{"  7 ", 7, true},
		{"1,234", 1234, true},
		{"12,345,678.25", 12345678.25, true},
		{"-1,000", -1000, true},
		{"1e3", 1000, true},
		{"", 0, false},
		{"   ", 0, false},
		{"abc", 0, false},
		{"12,34", 0, false},
		{"1,2345", 0, false},
		{"NaN", 0, false},
		{"inf", 0, false},
		{"--5", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFloat(tt.in)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestParseNonNegativeAndCount(t *testing.T) {
	_, err := ParseNonNegative("-0.5")
	assert.Error(t, err)

	v, err := ParseNonNegative("0")
	require.NoError(t, err)
	assert.Zero(t, v)

	n, err := ParseCount("3.0")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = ParseCount("2.5")
	assert.Error(t, err)
}
