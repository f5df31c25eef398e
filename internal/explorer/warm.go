package explorer

import (
	"context"

	"go.uber.org/zap"

	"github.com/schoolshare/dss-geo/internal/geocache"
	"github.com/schoolshare/dss-geo/internal/model"
)

// Warm preloads every artifact of the available states for services, plus
// the national polygon index. It returns the number of states warmed and the
// joined load errors; a failed key does not stop the others.
func (s *Service) Warm(ctx context.Context, services ...model.Service) (int, error) {
	if len(services) == 0 {
		services = model.Services
	}

	jobs := map[string]func() error{
		"cbg-index": func() error {
			_, err := s.polygons.Index()
			return err
		},
	}
	warmed := 0
	for _, svc := range services {
		for _, state := range s.ListAvailableStates(svc) {
			key := model.NewKey(state, svc)
			warmed++
			jobs["coverage:"+key.String()] = func() error {
				_, err := s.Coverage(key, 0)
				return err
			}
			jobs["pairings:"+key.String()] = func() error {
				_, err := s.Pairings(ctx, key)
				return err
			}
			jobs["facilities:"+key.String()] = func() error {
				_, err := s.loadFacilities(key)
				return err
			}
			if _, err := s.catalog.SummaryPath(state, svc); err == nil {
				jobs["summary:"+key.String()] = func() error {
					_, err := s.Summary(ctx, key)
					return err
				}
			}
		}
	}

	s.log.Info("warming cache",
		zap.Int("states", warmed),
		zap.Int("jobs", len(jobs)),
		zap.Int("concurrency", s.warmLimit),
	)
	err := geocache.Warm(ctx, s.warmLimit, jobs)
	stats := s.cache.Stats()
	s.log.Info("cache warm finished",
		zap.Int("entries", stats.Entries),
		zap.Int64("loads", stats.Loads),
		zap.Int64("failed", stats.Failed),
	)
	return warmed, err
}
