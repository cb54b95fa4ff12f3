package source

import "github.com/prodigyranking/ratingengine/pkg/logger"

// Option applies a configuration option to the SQLiteSource.
type Option func(*SQLiteSource)

// WithLogger sets the source logger.
func WithLogger(l logger.Logger) Option {
	return func(s *SQLiteSource) {
		if l != nil {
			s.logger = l.Named("source")
		}
	}
}
