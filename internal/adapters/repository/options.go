package repository

import (
	"time"

	"github.com/prodigyranking/ratingengine/pkg/logger"
)

// Option applies a configuration option to the SQLiteStore.
type Option func(*SQLiteStore)

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *SQLiteStore) {
		if l != nil {
			s.logger = l.Named("store")
		}
	}
}

// LeaderboardOption applies a configuration option to the Leaderboard.
type LeaderboardOption func(*Leaderboard)

// WithRefreshInterval sets how often a running refresher reloads the
// published set.
func WithRefreshInterval(interval time.Duration) LeaderboardOption {
	return func(l *Leaderboard) {
		if interval > 0 {
			l.refreshInterval = interval
		}
	}
}
