// Package api serves the explorer over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/schoolshare/dss-geo/internal/catalog"
	"github.com/schoolshare/dss-geo/internal/choropleth"
	"github.com/schoolshare/dss-geo/internal/explorer"
	"github.com/schoolshare/dss-geo/internal/geocache"
	"github.com/schoolshare/dss-geo/internal/model"
	"github.com/schoolshare/dss-geo/internal/results"
)

// Explorer is the subset of explorer.Service the handlers use.
type Explorer interface {
	ListAvailableStates(service model.Service) []model.State
	IsAvailable(key model.Key) bool
	Artifacts(key model.Key) (catalog.Artifacts, error)
	ComposeLayer(ctx context.Context, state model.State, service model.Service, opts choropleth.Options) (*choropleth.Layer, error)
	Facilities(ctx context.Context, key model.Key) explorer.FacilitySet
	Pairings(ctx context.Context, key model.Key) ([]explorer.PairingRow, error)
	CoverageTable(ctx context.Context, key model.Key, rate int) (*results.CoverageTable, error)
	Summary(ctx context.Context, key model.Key) (*model.ScenarioSummary, error)
	CacheStats() geocache.Stats
}

// Options configures the router.
type Options struct {
	Origins   []string
	RateLimit float64 // requests per second per client
	Burst     int
}

type handlers struct {
	ex  Explorer
	log *zap.Logger
}

// NewRouter returns the HTTP handler for all explorer routes.
func NewRouter(ex Explorer, opts Options) http.Handler {
	h := &handlers{ex: ex, log: zap.L().With(zap.String("component", "api"))}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.Origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"X-Layer-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)

	r.Group(func(r chi.Router) {
		if opts.RateLimit > 0 {
			r.Use(newClientLimiter(opts.RateLimit, opts.Burst).middleware)
		}
		r.Get("/states", h.states)
		r.Get("/states/{service}/{state}", h.stateAvailable)
		r.Get("/artifacts/{service}/{state}", h.artifacts)
		r.Get("/layers/{service}/{state}", h.layer)
		r.Get("/layers/{service}/{state}/summary", h.layerSummary)
		r.Get("/pairings/{service}/{state}", h.pairings)
		r.Get("/facilities/{service}/{state}", h.facilities)
		r.Get("/coverage/{service}/{state}", h.coverage)
		r.Get("/summary/{service}/{state}", h.summary)
		r.Get("/cache/stats", h.cacheStats)
	})
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
