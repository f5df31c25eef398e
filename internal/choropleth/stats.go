package choropleth

// Stats summarize a composed layer. Pointer fields are nil where the
// aggregate is undefined (no population, no baseline distance).
type Stats struct {
	Joined                 int      `json:"joined" yaml:"joined"`
	Excluded               int      `json:"excluded" yaml:"excluded"`
	UnmatchedPolygons      int      `json:"unmatched_polygons" yaml:"unmatched_polygons"`
	Improved               int      `json:"improved" yaml:"improved"`
	NewlyCovered           int      `json:"newly_covered" yaml:"newly_covered"`
	PopulationTotal        float64  `json:"population_total" yaml:"population_total"`
	PopulationHelped       float64  `json:"population_helped" yaml:"population_helped"`
	NewlyCoveredPopulation float64  `json:"newly_covered_population" yaml:"newly_covered_population"`
	MeanImprovementM       *float64 `json:"mean_improvement_m" yaml:"mean_improvement_m"`
	MeanBaselineDistM      *float64 `json:"mean_baseline_dist_m" yaml:"mean_baseline_dist_m"`
	MeanOptimizedDistM     *float64 `json:"mean_optimized_dist_m" yaml:"mean_optimized_dist_m"`
	GapClosed              *float64 `json:"gap_closed" yaml:"gap_closed"`
}

func computeStats(features []Feature, thresholdM float64) Stats {
	var s Stats
	var popImprove, popBase, popOpt float64
	var gapBase, gapOpt float64
	for _, f := range features {
		r := f.Record
		s.Joined++
		s.PopulationTotal += r.Population
		popImprove += r.Population * r.ReductionM()
		popBase += r.Population * r.BaselineDistM
		popOpt += r.Population * r.OptimizedDistM
		if r.OptimizedDistM < r.BaselineDistM {
			s.Improved++
			s.PopulationHelped += r.Population
		}
		if CoverageStatus(r, thresholdM) == StatusNewlyCovered {
			s.NewlyCovered++
			s.NewlyCoveredPopulation += r.Population
		}
		if r.BaselineDistM > 0 {
			gapBase += r.Population * r.BaselineDistM
			gapOpt += r.Population * r.OptimizedDistM
		}
	}
	if s.PopulationTotal > 0 {
		s.MeanImprovementM = ptr(popImprove / s.PopulationTotal)
		s.MeanBaselineDistM = ptr(popBase / s.PopulationTotal)
		s.MeanOptimizedDistM = ptr(popOpt / s.PopulationTotal)
	}
	if gapBase > 0 {
		s.GapClosed = ptr(1 - gapOpt/gapBase)
	}
	return s
}

func ptr(v float64) *float64 { return &v }
