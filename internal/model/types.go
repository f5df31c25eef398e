package model

import "github.com/twpayne/go-geom"

// FacilityKind distinguishes the point collections loaded per state.
type FacilityKind string

const (
	KindSchool   FacilityKind = "school"
	KindArts     FacilityKind = "arts"
	KindHospital FacilityKind = "hospital"
)

// TargetKind returns the facility kind an optimization for s pairs schools
// with.
func (s Service) TargetKind() FacilityKind {
	if s == ServiceHospital {
		return KindHospital
	}
	return KindArts
}

// FacilityPoint is a school, arts organization or hospital location in
// projected meters.
type FacilityPoint struct {
	ID        string            `json:"id" yaml:"id"`
	Name      string            `json:"name" yaml:"name"`
	X         float64           `json:"x" yaml:"x"`
	Y         float64           `json:"y" yaml:"y"`
	StateFIPS string            `json:"state_fips" yaml:"state_fips"`
	Kind      FacilityKind      `json:"kind" yaml:"kind"`
	Attrs     map[string]string `json:"attrs,omitempty" yaml:"attrs,omitempty"`
}

// FacilitySchoolPairing links an activated school to the facility it serves.
type FacilitySchoolPairing struct {
	SchoolID   string  `json:"school_id" yaml:"school_id"`
	FacilityID string  `json:"facility_id" yaml:"facility_id"`
	DistanceM  float64 `json:"distance_m" yaml:"distance_m"`
	Rank       int     `json:"rank" yaml:"rank"`
}

// CoverageRecord holds per-CBG distances before and after optimization.
type CoverageRecord struct {
	GEOID            string  `json:"geoid" yaml:"geoid"`
	BaselineDistM    float64 `json:"baseline_dist_m" yaml:"baseline_dist_m"`
	OptimizedDistM   float64 `json:"optimized_dist_m" yaml:"optimized_dist_m"`
	FacilitiesBefore int     `json:"facilities_before" yaml:"facilities_before"`
	FacilitiesAfter  int     `json:"facilities_after" yaml:"facilities_after"`
	Population       float64 `json:"population" yaml:"population"`
}

// ReductionM is the distance saved by the optimized solution.
func (r CoverageRecord) ReductionM() float64 {
	return r.BaselineDistM - r.OptimizedDistM
}

// CBGPolygon is one block group from the national polygon dataset.
type CBGPolygon struct {
	GEOID     string
	StateFIPS string
	Geometry  *geom.MultiPolygon
	SRID      int
}

// GEOIDLength is the width of a block-group GEOID.
const GEOIDLength = 12

// ScenarioMetrics are the headline numbers for one scenario column of the
// transposed summary table.
type ScenarioMetrics struct {
	SchoolsActivated  int      `json:"schools_activated,omitempty" yaml:"schools_activated,omitempty"`
	PrimaryCoverage   float64  `json:"primary_coverage" yaml:"primary_coverage"`
	SecondaryCoverage float64  `json:"secondary_coverage" yaml:"secondary_coverage"`
	AvgDistanceM      float64  `json:"avg_distance_m" yaml:"avg_distance_m"`
	MaxDistanceM      float64  `json:"max_distance_m" yaml:"max_distance_m"`
	MinDistanceM      *float64 `json:"min_distance_m,omitempty" yaml:"min_distance_m,omitempty"`
	NonwhitePct       *float64 `json:"nonwhite_pct,omitempty" yaml:"nonwhite_pct,omitempty"`
	NonBachPct        *float64 `json:"nonbach_pct,omitempty" yaml:"nonbach_pct,omitempty"`
	ComputeSeconds    *float64 `json:"compute_seconds,omitempty" yaml:"compute_seconds,omitempty"`
}

// ScenarioSummary is the parsed per-state optimization summary.
type ScenarioSummary struct {
	NumCBGs          int                     `json:"n_cbgs" yaml:"n_cbgs"`
	NumSchools       int                     `json:"n_schools" yaml:"n_schools"`
	NumFacilities    int                     `json:"n_facilities" yaml:"n_facilities"`
	PrimaryDistM     float64                 `json:"primary_dist_m" yaml:"primary_dist_m"`
	SecondaryDistM   float64                 `json:"secondary_dist_m" yaml:"secondary_dist_m"`
	Baseline         ScenarioMetrics         `json:"baseline" yaml:"baseline"`
	Optimized        map[int]ScenarioMetrics `json:"optimized" yaml:"optimized"`
	ActivatedSchools map[int][]string        `json:"activated_schools,omitempty" yaml:"activated_schools,omitempty"`
}
