package choropleth

import (
	"math"
	"sort"
)

// Bin is one legend class. Values v with Lower <= v <= Upper belong to the
// lowest such bin.
type Bin struct {
	Index int     `json:"index" yaml:"index"`
	Lower float64 `json:"lower" yaml:"lower"`
	Upper float64 `json:"upper" yaml:"upper"`
	Color string  `json:"color" yaml:"color"`
	Count int     `json:"count" yaml:"count"`
	Label string  `json:"label,omitempty" yaml:"label,omitempty"`
}

// QuantileBreaks returns the bin boundaries for values split into n quantile
// bins. Boundary i is the i/n quantile, interpolated linearly between the
// ranks of the sorted values. Repeated boundaries collapse, so fewer than n
// bins may result; identical values give the single bin [v, v].
func QuantileBreaks(values []float64, n int) []float64 {
	if len(values) == 0 {
		return nil
	}
	if n < 1 {
		n = 1
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	last := float64(len(sorted) - 1)
	breaks := make([]float64, 0, n+1)
	for i := 0; i <= n; i++ {
		pos := float64(i) / float64(n) * last
		lo := int(math.Floor(pos))
		q := sorted[lo]
		if frac := pos - float64(lo); frac > 0 && lo+1 < len(sorted) {
			q += frac * (sorted[lo+1] - sorted[lo])
		}
		if len(breaks) > 0 && q <= breaks[len(breaks)-1] {
			continue
		}
		breaks = append(breaks, q)
	}
	if len(breaks) == 1 {
		breaks = append(breaks, breaks[0])
	}
	return breaks
}

// Assign returns the index of the lowest bin whose upper boundary is >= v.
// A value on a boundary therefore falls in the lower bin. Values above the
// last boundary go to the top bin.
func Assign(breaks []float64, v float64) int {
	nbins := len(breaks) - 1
	if nbins < 1 {
		return 0
	}
	// breaks[1:] are the upper bounds, ascending.
	i := sort.SearchFloat64s(breaks[1:], v)
	if i >= nbins {
		return nbins - 1
	}
	return i
}
