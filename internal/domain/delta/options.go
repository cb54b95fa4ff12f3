package delta

import "github.com/prodigyranking/ratingengine/pkg/logger"

// Option applies a configuration option to the Tracker.
type Option func(*Tracker)

// WithCounterSource sets where Capture reads counters from.
func WithCounterSource(s CounterSource) Option {
	return func(t *Tracker) {
		t.source = s
	}
}

// WithLogger sets the tracker logger.
func WithLogger(l logger.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l.Named("delta")
		}
	}
}
