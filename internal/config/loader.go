package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/prodigyranking/ratingengine/pkg/logger"
)

const (
	envPrefix  = "RATING_"
	envConfig  = "RATING_CONFIG"
	maxWorkers = 1024
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) from path, or RATING_CONFIG when path is empty
//  3. env (prefix RATING_)
func Load(ctx context.Context, path string) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(envConfig)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// RATING_DATABASE_PATH -> database_path. Keys stay flat so underscores
	// match the koanf tags.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		if s == envConfig {
			return ""
		}
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every field and joins the problems.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database_path must not be empty"))
	}
	if c.EngineVersion == "" {
		errs = append(errs, errors.New("engine_version must not be empty"))
	}
	if c.WorkerCount < 1 || c.WorkerCount > maxWorkers {
		errs = append(errs, fmt.Errorf("worker_count must be in [1, %d], got %d", maxWorkers, c.WorkerCount))
	}
	if c.MaxLeaderboardLimit < 1 {
		errs = append(errs, fmt.Errorf("max_leaderboard_limit must be positive, got %d", c.MaxLeaderboardLimit))
	}
	if c.RefreshIntervalMS < 1 {
		errs = append(errs, fmt.Errorf("refresh_interval_ms must be positive, got %d", c.RefreshIntervalMS))
	}
	if c.AnomalySampleLimit < 0 {
		errs = append(errs, fmt.Errorf("anomaly_sample_limit must not be negative, got %d", c.AnomalySampleLimit))
	}
	if c.WebhookSecret != "" && c.WebhookURL == "" {
		errs = append(errs, errors.New("webhook_secret set without webhook_url"))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level must be debug, info, warn or error, got %q", c.LogLevel))
	}
	switch logger.Format(c.LogFormat) {
	case logger.FormatText, logger.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log_format must be text or json, got %q", c.LogFormat))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
