// Package tabular reads header-addressed CSV and XLSX tables and checks them
// against explicit column schemas.
package tabular

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Header maps column names to field positions.
type Header struct {
	Names []string
	index map[string]int
}

// NewHeader builds a Header. Names are matched case-insensitively after
// trimming whitespace and a UTF-8 byte-order mark.
func NewHeader(names []string) *Header {
	h := &Header{Names: make([]string, len(names)), index: make(map[string]int, len(names))}
	for i, n := range names {
		n = normalizeName(n)
		h.Names[i] = n
		key := strings.ToLower(n)
		if _, dup := h.index[key]; !dup {
			h.index[key] = i
		}
	}
	return h
}

func normalizeName(n string) string {
	return strings.TrimSpace(strings.TrimPrefix(n, "\ufeff"))
}

// Lookup returns the position of the first name found.
func (h *Header) Lookup(names ...string) (int, bool) {
	for _, n := range names {
		if i, ok := h.index[strings.ToLower(normalizeName(n))]; ok {
			return i, true
		}
	}
	return -1, false
}

// Record is one data row. Line is the 1-based line (or sheet row) number.
type Record struct {
	Line   int
	Fields []string
}

// Field returns the trimmed value at position i, or "" when out of range.
func (r Record) Field(i int) string {
	if i < 0 || i >= len(r.Fields) {
		return ""
	}
	return strings.TrimSpace(r.Fields[i])
}

// Column declares one schema column.
type Column struct {
	Name     string
	Aliases  []string
	Required bool
}

// Schema is the declared column contract of a table.
type Schema struct {
	Name    string
	Columns []Column
}

// Binding resolves schema column names to positions in a concrete header.
type Binding struct {
	schema string
	pos    map[string]int
}

// Bind checks h against the schema. Every missing required column is
// reported in one error.
func (s Schema) Bind(h *Header) (Binding, error) {
	b := Binding{schema: s.Name, pos: make(map[string]int, len(s.Columns))}
	var missing []string
	for _, c := range s.Columns {
		i, ok := h.Lookup(append([]string{c.Name}, c.Aliases...)...)
		if !ok {
			if c.Required {
				missing = append(missing, c.Name)
			}
			continue
		}
		b.pos[c.Name] = i
	}
	if len(missing) > 0 {
		return b, eris.Errorf("tabular: %s missing required columns: %s", s.Name, strings.Join(missing, ", "))
	}
	return b, nil
}

// Has reports whether the optional column was present.
func (b Binding) Has(col string) bool {
	_, ok := b.pos[col]
	return ok
}

// Get returns the trimmed value of col in rec.
func (b Binding) Get(rec Record, col string) string {
	i, ok := b.pos[col]
	if !ok {
		return ""
	}
	return rec.Field(i)
}

// BindMap checks a property map (e.g. GeoJSON feature properties) against
// the schema, returning the concrete key used for each column.
func (s Schema) BindMap(props map[string]any) (map[string]string, error) {
	lower := make(map[string]string, len(props))
	for k := range props {
		lower[strings.ToLower(normalizeName(k))] = k
	}
	keys := make(map[string]string, len(s.Columns))
	var missing []string
	for _, c := range s.Columns {
		found := false
		for _, n := range append([]string{c.Name}, c.Aliases...) {
			if k, ok := lower[strings.ToLower(n)]; ok {
				keys[c.Name] = k
				found = true
				break
			}
		}
		if !found && c.Required {
			missing = append(missing, c.Name)
		}
	}
	if len(missing) > 0 {
		return keys, eris.Errorf("tabular: %s missing required properties: %s", s.Name, strings.Join(missing, ", "))
	}
	return keys, nil
}
