package tabular

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

var groupedNumber = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d*)?$`)

// ParseFloat parses a finite decimal number. Surrounding whitespace and
// well-formed thousands separators are accepted; empty values, NaN and
// infinities are errors so a missing measurement never becomes zero.
func ParseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, eris.New("tabular: empty number")
	}
	if strings.Contains(s, ",") {
		if !groupedNumber.MatchString(s) {
			return 0, eris.Errorf("tabular: malformed number %q", s)
		}
		s = strings.ReplaceAll(s, ",", "")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Errorf("tabular: not a number %q", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, eris.Errorf("tabular: non-finite number %q", s)
	}
	return v, nil
}

// ParseNonNegative parses a finite number that must be >= 0.
func ParseNonNegative(s string) (float64, error) {
	v, err := ParseFloat(s)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, eris.Errorf("tabular: negative value %q", s)
	}
	return v, nil
}

// ParseCount parses a non-negative integer. Integral floats such as "3.0",
// the form pandas writes for nullable int columns, are accepted.
func ParseCount(s string) (int, error) {
	v, err := ParseNonNegative(s)
	if err != nil {
		return 0, err
	}
	if v != math.Trunc(v) || v > math.MaxInt32 {
		return 0, eris.Errorf("tabular: not a whole count %q", s)
	}
	return int(v), nil
}
