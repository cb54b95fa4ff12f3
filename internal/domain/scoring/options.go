package scoring

import "github.com/prodigyranking/ratingengine/pkg/logger"

// Option applies a configuration option to the Evaluator.
type Option func(*Evaluator)

// WithLogger sets the evaluator logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l.Named("evaluator")
		}
	}
}
