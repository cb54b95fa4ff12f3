// Package service is the rating engine: it runs the two-phase rebuild
// pipeline, captures weekly snapshots and serves the published set.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/prodigyranking/ratingengine/internal/adapters/notify"
	"github.com/prodigyranking/ratingengine/internal/adapters/repository"
	"github.com/prodigyranking/ratingengine/internal/adapters/source"
	"github.com/prodigyranking/ratingengine/internal/adapters/worker"
	"github.com/prodigyranking/ratingengine/internal/domain/audit"
	"github.com/prodigyranking/ratingengine/internal/domain/dedupe"
	"github.com/prodigyranking/ratingengine/internal/domain/delta"
	"github.com/prodigyranking/ratingengine/internal/domain/model"
	"github.com/prodigyranking/ratingengine/internal/domain/registry"
	"github.com/prodigyranking/ratingengine/internal/domain/scoring"
	"github.com/prodigyranking/ratingengine/pkg/logger"
)

const (
	defaultEngineVersion   = "ratingengine-1.0.0"
	defaultSampleLimit     = 20
	defaultRefreshInterval = 5 * time.Second
)

// Store is everything the engine persists: the published set, runs, audit
// reports and weekly snapshots.
type Store interface {
	repository.RatingStore
	delta.SnapshotStore
}

// Service runs engine operations. Runs are serialized; reads are not.
type Service struct {
	mu    sync.RWMutex
	runMu sync.Mutex

	// Core components
	catalog     *registry.Catalog
	source      source.Source
	store       Store
	evaluator   *scoring.Evaluator
	aggregator  *dedupe.Aggregator
	tracker     *delta.Tracker
	pool        *worker.Pool
	leaderboard *repository.Leaderboard
	notifier    *notify.Manager

	// Configuration
	engineVersion   model.EngineVersion
	workerCount     int
	sampleLimit     int
	refreshInterval time.Duration
	now             func() time.Time

	// State
	started bool
	lastRun *RunSummary

	// Logging
	logger logger.Logger
}

// LoadCatalog loads and compiles the catalog at path (the embedded default
// when empty). Failures wrap ErrConfiguration.
func LoadCatalog(path string) (*registry.Catalog, error) {
	c, err := registry.Load(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return c, nil
}

// New wires a service over a compiled catalog, a factor source and a store.
func New(catalog *registry.Catalog, src source.Source, store Store, opts ...Option) (*Service, error) {
	s := &Service{
		catalog:         catalog,
		source:          src,
		store:           store,
		engineVersion:   defaultEngineVersion,
		workerCount:     runtime.NumCPU() * 2,
		sampleLimit:     defaultSampleLimit,
		refreshInterval: defaultRefreshInterval,
		now:             time.Now,
		logger:          logger.Get(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("pipeline")

	if catalog == nil {
		return nil, fmt.Errorf("%w: no catalog", ErrConfiguration)
	}
	if src == nil || store == nil {
		return nil, fmt.Errorf("%w: source and store are required", ErrConfiguration)
	}

	ev, err := scoring.New(catalog, scoring.WithLogger(s.logger))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	s.evaluator = ev

	factorCats := make(map[string]model.Category, len(catalog.Factors()))
	for _, f := range catalog.Factors() {
		factorCats[f.ID] = f.Category
	}
	s.aggregator = dedupe.NewAggregator(catalog.Categories(), dedupe.WithFactorCategories(factorCats))
	s.tracker = delta.NewTracker(store, delta.WithCounterSource(src), delta.WithLogger(s.logger))
	s.pool = worker.NewPool(s.workerCount, worker.WithName("pipeline-workers"), worker.WithLogger(s.logger))
	s.leaderboard = repository.NewLeaderboard(store, repository.WithRefreshInterval(s.refreshInterval))
	return s, nil
}

// Catalog returns the compiled catalog the service rates with.
func (s *Service) Catalog() *registry.Catalog { return s.catalog }

// Start loads the published set into the leaderboard and keeps it fresh.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting rating service...")
	if err := s.leaderboard.Start(ctx); err != nil {
		return fmt.Errorf("start leaderboard: %w", err)
	}
	s.started = true
	s.logger.Info(ctx, "rating service started",
		logger.Int("workers", s.workerCount),
		logger.Int("published", s.leaderboard.Count(ctx)),
		logger.String("catalog_version", s.catalog.Version()),
	)
	return nil
}

// Stop stops the leaderboard refresher.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	_ = s.leaderboard.Close()
	s.started = false
	s.logger.Info(context.Background(), "rating service stopped")
}

// Stats describes the service and its published set.
type Stats struct {
	Started             bool        `json:"started"`
	WorkerCount         int         `json:"worker_count"`
	EngineVersion       string      `json:"engine_version"`
	CatalogVersion      string      `json:"catalog_version"`
	WeightsVersion      string      `json:"weights_version"`
	Factors             int         `json:"factors"`
	PublishedRecords    int         `json:"published_records"`
	LeaderboardSize     int         `json:"leaderboard_size"`
	LeaderboardLoadedAt time.Time   `json:"leaderboard_loaded_at"`
	LastRun             *RunSummary `json:"last_run,omitempty"`
	LastPublishedRun    *model.Run  `json:"last_published_run,omitempty"`
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	st := Stats{
		Started:             s.started,
		WorkerCount:         s.workerCount,
		EngineVersion:       string(s.engineVersion),
		CatalogVersion:      s.catalog.Version(),
		WeightsVersion:      s.catalog.Weights().Version(),
		Factors:             len(s.catalog.Factors()),
		LeaderboardSize:     s.leaderboard.Count(ctx),
		LeaderboardLoadedAt: s.leaderboard.LoadedAt(),
	}
	if s.lastRun != nil {
		last := *s.lastRun
		st.LastRun = &last
	}
	s.mu.RUnlock()

	n, err := s.store.Count(ctx)
	if err != nil {
		return st, fmt.Errorf("count published records: %w", err)
	}
	st.PublishedRecords = n

	run, err := s.store.LatestRun(ctx)
	switch {
	case errors.Is(err, repository.ErrNoPublishedRun):
	case err != nil:
		return st, fmt.Errorf("latest run: %w", err)
	default:
		st.LastPublishedRun = &run
	}
	return st, nil
}

// TopN returns the top n leaderboard entries.
func (s *Service) TopN(ctx context.Context, n int) ([]repository.Entry, error) {
	return s.leaderboard.TopN(ctx, n)
}

// Rank returns the leaderboard entry of one entity.
func (s *Service) Rank(ctx context.Context, entityID int64) (repository.Entry, error) {
	return s.leaderboard.Rank(ctx, entityID)
}

// Record returns the full published record of one entity.
func (s *Service) Record(ctx context.Context, entityID int64) (model.RatingRecord, error) {
	return s.store.Record(ctx, entityID)
}

// LatestAudit returns the audit report of the last published run.
func (s *Service) LatestAudit(ctx context.Context) (*audit.Report, error) {
	return s.store.LatestAudit(ctx)
}
