package service

import (
	"time"

	"github.com/prodigyranking/ratingengine/internal/adapters/notify"
	"github.com/prodigyranking/ratingengine/internal/domain/model"
	"github.com/prodigyranking/ratingengine/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the per-entity parallelism of both phases.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithEngineVersion sets the version stamped on published records.
func WithEngineVersion(v string) Option {
	return func(s *Service) {
		if v != "" {
			s.engineVersion = model.EngineVersion(v)
		}
	}
}

// WithAnomalySampleLimit caps audit samples per kind and factor.
func WithAnomalySampleLimit(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.sampleLimit = n
		}
	}
}

// WithRefreshInterval sets how often a started service reloads the
// leaderboard from the store.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.refreshInterval = d
		}
	}
}

// WithNotifier sets where audit notifications go.
func WithNotifier(m *notify.Manager) Option {
	return func(s *Service) {
		s.notifier = m
	}
}

// WithClock replaces time.Now for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
