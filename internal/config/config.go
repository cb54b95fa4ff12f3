// Package config defines process configuration and its loading.
//
// Conventions:
//   - New builds a Config with defaults; Load layers a YAML file and
//     RATING_* environment variables over them.
//   - Every Load failure wraps ErrLoadConfig or ErrInvalidConfig.
package config

import (
	"context"
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DatabasePath is the SQLite file holding sources, snapshots and
	// published ratings.
	DatabasePath string `koanf:"database_path"`

	// CatalogPath points at a rating catalog YAML. Empty selects the
	// embedded default catalog.
	CatalogPath string `koanf:"catalog_path"`

	// EngineVersion is stamped on every published record.
	EngineVersion string `koanf:"engine_version"`

	// WorkerCount bounds per-entity parallelism inside a run.
	WorkerCount int `koanf:"worker_count"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// RefreshIntervalMS is how often serve reloads the leaderboard snapshot.
	RefreshIntervalMS int `koanf:"refresh_interval_ms"`

	// WebhookURL receives audit notifications. Empty disables them.
	WebhookURL string `koanf:"webhook_url"`

	// WebhookSecret signs notification bodies with HMAC-SHA256.
	WebhookSecret string `koanf:"webhook_secret"`

	// AnomalySampleLimit caps audit samples per anomaly kind and factor.
	AnomalySampleLimit int `koanf:"anomaly_sample_limit"`
}

// New creates a Config with defaults. Context is accepted first to match
// Load; it is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		DatabasePath:        "ratings.db",
		EngineVersion:       "ratingengine-1.0.0",
		WorkerCount:         runtime.NumCPU() * 2,
		MaxLeaderboardLimit: 100,
		RefreshIntervalMS:   5000,
		AnomalySampleLimit:  20,
	}
}

// RefreshInterval returns RefreshIntervalMS as a duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalMS) * time.Millisecond
}
