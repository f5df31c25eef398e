package explorer

import (
	"context"

	"go.uber.org/zap"

	"github.com/schoolshare/dss-geo/internal/dataerr"
	"github.com/schoolshare/dss-geo/internal/geocache"
	"github.com/schoolshare/dss-geo/internal/model"
)

// FacilitySet holds the points drawn on the map for one key. When the points
// could not be loaded the set is empty, Degraded is true and Banner says why;
// callers show the banner instead of failing the page.
type FacilitySet struct {
	Key      model.Key             `json:"key" yaml:"key"`
	Schools  []model.FacilityPoint `json:"schools" yaml:"schools"`
	Targets  []model.FacilityPoint `json:"targets" yaml:"targets"`
	Degraded bool                  `json:"degraded" yaml:"degraded"`
	Banner   string                `json:"banner,omitempty" yaml:"banner,omitempty"`
}

type facilityPair struct {
	schools []model.FacilityPoint
	targets []model.FacilityPoint
}

// Facilities returns the schools and target facilities for key. Load errors
// never escape; they become a degraded set.
func (s *Service) Facilities(ctx context.Context, key model.Key) FacilitySet {
	set := FacilitySet{Key: key, Schools: []model.FacilityPoint{}, Targets: []model.FacilityPoint{}}
	if err := ctx.Err(); err != nil {
		set.Degraded = true
		set.Banner = err.Error()
		return set
	}

	pair, err := s.loadFacilities(key)
	if err != nil {
		s.log.Warn("facility points unavailable",
			zap.String("key", key.String()),
			zap.String("kind", dataerr.KindOf(err).String()),
			zap.Error(err),
		)
		set.Degraded = true
		set.Banner = banner(key, err)
		return set
	}
	set.Schools = pair.schools
	set.Targets = pair.targets
	return set
}

func (s *Service) loadFacilities(key model.Key) (facilityPair, error) {
	ck := geocache.Key{Artifact: artifactFacilities, Subject: key.String()}
	return geocache.Load(s.cache, ck, func() (facilityPair, error) {
		schools, targets, err := s.facilities.LoadFacilities(key.State, key.Service)
		return facilityPair{schools: schools, targets: targets}, err
	})
}

func banner(key model.Key, err error) string {
	switch {
	case dataerr.IsUnavailable(err):
		return "Facility locations for " + key.State.Name + " (" + key.Service.Label() + ") are not available. Coverage statistics are still shown."
	case dataerr.IsIntegrity(err):
		return "Facility locations for " + key.State.Name + " (" + key.Service.Label() + ") failed validation and are hidden: " + err.Error()
	default:
		return "Facility locations could not be loaded: " + err.Error()
	}
}

// PairingRow is one pairing joined with the display names of both ends.
// Names are empty when the facility points are unavailable or the id is not
// found.
type PairingRow struct {
	model.FacilitySchoolPairing `yaml:",inline"`

	FacilityName string `json:"facility_name" yaml:"facility_name"`
	SchoolName   string `json:"school_name" yaml:"school_name"`
}

// Pairings returns the pairing table for key with facility and school names.
// Missing facility points only blank the names.
func (s *Service) Pairings(ctx context.Context, key model.Key) ([]PairingRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ck := geocache.Key{Artifact: artifactPairings, Subject: key.String()}
	pairings, err := geocache.Load(s.cache, ck, func() ([]model.FacilitySchoolPairing, error) {
		return s.results.LoadPairings(key.State, key.Service)
	})
	if err != nil {
		return nil, err
	}

	schoolNames := map[string]string{}
	targetNames := map[string]string{}
	if pair, err := s.loadFacilities(key); err == nil {
		schoolNames = names(pair.schools)
		targetNames = names(pair.targets)
	}

	rows := make([]PairingRow, 0, len(pairings))
	for _, p := range pairings {
		rows = append(rows, PairingRow{
			FacilitySchoolPairing: p,
			FacilityName:          targetNames[p.FacilityID],
			SchoolName:            schoolNames[p.SchoolID],
		})
	}
	return rows, nil
}

func names(points []model.FacilityPoint) map[string]string {
	out := make(map[string]string, len(points))
	for _, p := range points {
		out[p.ID] = p.Name
	}
	return out
}
