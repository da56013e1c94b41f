// Package api exposes the analytics engine over HTTP: dataset upload and
// management plus per-dataset metrics, analysis, segmentation, cleaning,
// trend, and report endpoints.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/subscriber-analytics/internal/analytics"
	"github.com/ignite/subscriber-analytics/internal/dataset"
	"github.com/ignite/subscriber-analytics/internal/domain"
	"github.com/ignite/subscriber-analytics/internal/feed"
	"github.com/ignite/subscriber-analytics/internal/loader"
	"github.com/ignite/subscriber-analytics/internal/pkg/logger"
	"github.com/ignite/subscriber-analytics/internal/report"
	"github.com/ignite/subscriber-analytics/internal/repository/postgres"
	"github.com/ignite/subscriber-analytics/internal/storage"
)

// Server wires the dataset store, optional side stores, and the analytics
// engines behind the HTTP API. Cache, archive, registry, and enricher are
// all nilable: absence just disables the feature.
type Server struct {
	manager  *dataset.Manager
	cache    *storage.ResultCache
	archive  *storage.Archive
	registry *postgres.ManifestRepo
	enricher *feed.Enricher
	reports  *report.Generator
	opts     analytics.Options

	// now is the reference instant provider; tests pin it.
	now func() time.Time
}

// Option configures optional server dependencies.
type Option func(*Server)

// WithCache enables the Redis result cache.
func WithCache(c *storage.ResultCache) Option { return func(s *Server) { s.cache = c } }

// WithArchive enables S3 archival of uploaded export zips.
func WithArchive(a *storage.Archive) Option { return func(s *Server) { s.archive = a } }

// WithRegistry enables the Postgres manifest registry.
func WithRegistry(r *postgres.ManifestRepo) Option { return func(s *Server) { s.registry = r } }

// WithFeedEnricher enables canonical URL enrichment from the publication
// feed.
func WithFeedEnricher(e *feed.Enricher) Option { return func(s *Server) { s.enricher = e } }

// WithAnalyticsOptions overrides the engine tuning knobs.
func WithAnalyticsOptions(opts analytics.Options) Option {
	return func(s *Server) { s.opts = opts }
}

// WithClock overrides the reference instant provider; used by tests.
func WithClock(now func() time.Time) Option { return func(s *Server) { s.now = now } }

// NewServer builds the API server over a dataset manager.
func NewServer(manager *dataset.Manager, options ...Option) (*Server, error) {
	reports, err := report.NewGenerator()
	if err != nil {
		return nil, err
	}

	s := &Server{
		manager: manager,
		reports: reports,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Routes builds the chi router.
func (s *Server) Routes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/datasets", func(r chi.Router) {
			r.Get("/", s.handleListDatasets)
			r.Post("/", s.handleUploadDataset)

			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", s.handleDeleteDataset)
				r.Post("/subscriber-details", s.handleAttachDetails)

				r.Get("/metrics", s.handleMetrics)
				r.Get("/analysis", s.handleAnalysis)
				r.Get("/segments", s.handleSegments)
				r.Get("/cleaning", s.handleCleaning)
				r.Get("/cleaning/impact", s.handleCleaningImpact)
				r.Get("/trends", s.handleTrends)
				r.Get("/report", s.handleReport)
			})
		})
	})

	return r
}

// loadDataset reads a dataset's tables from disk and applies optional feed
// enrichment. Enrichment failures are logged, never fatal.
func (s *Server) loadDataset(ctx context.Context, id string) (*domain.Dataset, error) {
	dir, err := s.manager.Path(id)
	if err != nil {
		return nil, err
	}
	ds, err := loader.Load(dir)
	if err != nil {
		return nil, err
	}

	if s.enricher != nil {
		if _, err := s.enricher.Enrich(ctx, ds.Posts); err != nil {
			logger.Warn("feed enrichment failed", "dataset_id", id, "error", err.Error())
		}
	}
	return ds, nil
}

// runAnalysis computes (or fetches from cache) the full analysis for a
// dataset.
func (s *Server) runAnalysis(ctx context.Context, id string) (*analytics.Analysis, error) {
	if s.cache != nil {
		var cached analytics.Analysis
		err := s.cache.Get(ctx, id, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, storage.ErrCacheMiss) {
			logger.Warn("result cache read failed", "dataset_id", id, "error", err.Error())
		}
	}

	ds, err := s.loadDataset(ctx, id)
	if err != nil {
		return nil, err
	}
	analysis := analytics.Run(ds, s.now(), s.opts)

	if s.cache != nil {
		if err := s.cache.Set(ctx, id, analysis); err != nil {
			logger.Warn("result cache write failed", "dataset_id", id, "error", err.Error())
		}
	}
	return analysis, nil
}

// invalidate drops any cached analysis for a dataset after it changes.
func (s *Server) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		logger.Warn("result cache invalidation failed", "dataset_id", id, "error", err.Error())
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
