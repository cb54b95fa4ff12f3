package audit

import "github.com/prodigyranking/ratingengine/pkg/logger"

// Option applies a configuration option to the Collector.
type Option func(*Collector)

// WithSampleLimit caps the anomalies kept per kind and factor. Counts are
// always complete.
func WithSampleLimit(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.sampleLimit = n
		}
	}
}

// WithLogger sets the collector logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Collector) {
		if l != nil {
			c.logger = l.Named("audit")
		}
	}
}
