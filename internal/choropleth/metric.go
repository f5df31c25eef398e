package choropleth

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/schoolshare/dss-geo/internal/model"
)

// Metric is the per-CBG value a layer is coloured by.
type Metric string

const (
	// MetricDistanceReduction is baseline minus optimized distance, in km.
	MetricDistanceReduction Metric = "distance_reduction"
	// MetricPctImprovement is the reduction as a percentage of the baseline
	// distance. Undefined where the baseline is zero.
	MetricPctImprovement Metric = "pct_improvement"
	// MetricPopWeightedReduction is the km reduction times population.
	MetricPopWeightedReduction Metric = "pop_weighted_reduction"
	// MetricCoverageStatus is categorical: not covered, already covered or
	// newly covered within the coverage threshold.
	MetricCoverageStatus Metric = "coverage_status"
)

// Metrics lists every supported metric.
var Metrics = []Metric{
	MetricDistanceReduction,
	MetricPctImprovement,
	MetricPopWeightedReduction,
	MetricCoverageStatus,
}

// ParseMetric accepts a metric name or its display label.
func ParseMetric(v string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "distance_reduction", "distance (km)", "distance":
		return MetricDistanceReduction, nil
	case "pct_improvement", "% improvement", "percent":
		return MetricPctImprovement, nil
	case "pop_weighted_reduction", "population-weighted distance reduction":
		return MetricPopWeightedReduction, nil
	case "coverage_status", "coverage status", "status":
		return MetricCoverageStatus, nil
	}
	return "", eris.Errorf("choropleth: unknown metric %q", v)
}

// Label is the legend title.
func (m Metric) Label() string {
	switch m {
	case MetricDistanceReduction:
		return "Distance Reduction (km)"
	case MetricPctImprovement:
		return "Distance Improvement (%)"
	case MetricPopWeightedReduction:
		return "Population-weighted Reduction (km × people)"
	case MetricCoverageStatus:
		return "Coverage Status"
	}
	return string(m)
}

// Categorical reports whether the metric uses fixed category bins instead of
// quantiles.
func (m Metric) Categorical() bool { return m == MetricCoverageStatus }

// Coverage status categories.
const (
	StatusNotCovered     = 0
	StatusAlreadyCovered = 1
	StatusNewlyCovered   = 2
)

var statusLabels = []string{"Not Covered", "Already Covered", "Newly Covered"}

// CoverageStatus classifies r against the coverage threshold.
func CoverageStatus(r model.CoverageRecord, thresholdM float64) int {
	before := r.BaselineDistM <= thresholdM
	after := r.OptimizedDistM <= thresholdM
	switch {
	case after && !before:
		return StatusNewlyCovered
	case after:
		return StatusAlreadyCovered
	default:
		return StatusNotCovered
	}
}

// value computes the metric for r. ok is false where the metric is undefined.
func (m Metric) value(r model.CoverageRecord, thresholdM float64) (v float64, ok bool) {
	switch m {
	case MetricDistanceReduction:
		return r.ReductionM() / 1000, true
	case MetricPctImprovement:
		if r.BaselineDistM <= 0 {
			return 0, false
		}
		return r.ReductionM() / r.BaselineDistM * 100, true
	case MetricPopWeightedReduction:
		return r.ReductionM() / 1000 * r.Population, true
	case MetricCoverageStatus:
		return float64(CoverageStatus(r, thresholdM)), true
	}
	return 0, false
}
