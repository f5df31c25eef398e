package choropleth

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Palettes are the legend colour ramps, light to dark.
var (
	distancePalette = []string{"#f5f5f5", "#c7e9c0", "#74c476", "#238b45"}
	percentPalette  = []string{"#f5f5f5", "#c6dbef", "#6baed6", "#2171b5"}
	statusPalette   = []string{"#e74c3c", "#f1c40f", "#27ae60"}
)

// NoDataColor fills polygons whose metric is undefined.
const NoDataColor = "#e0e0e0"

func (m Metric) palette() []string {
	switch m {
	case MetricPctImprovement:
		return percentPalette
	case MetricCoverageStatus:
		return statusPalette
	default:
		return distancePalette
	}
}

// Ramp spreads palette over n colours by linear RGB interpolation. A single
// colour is the lightest palette entry. Entries that are not hex colours
// render as NoDataColor.
func Ramp(palette []string, n int) []string {
	if n <= 0 || len(palette) == 0 {
		return nil
	}
	if n == 1 || len(palette) == 1 {
		out := make([]string, n)
		for i := range out {
			out[i] = palette[0]
		}
		return out
	}

	stops := make([]colorful.Color, len(palette))
	for i, hex := range palette {
		stops[i] = parseHex(hex)
	}
	last := len(stops) - 1
	out := make([]string, n)
	for i := range out {
		t := float64(i*last) / float64(n-1)
		lo := int(math.Floor(t))
		if lo >= last {
			out[i] = stops[last].Hex()
			continue
		}
		out[i] = stops[lo].BlendRgb(stops[lo+1], t-float64(lo)).Hex()
	}
	return out
}

func parseHex(hex string) colorful.Color {
	c, err := colorful.Hex(hex)
	if err != nil {
		c, _ = colorful.Hex(NoDataColor)
	}
	return c
}
