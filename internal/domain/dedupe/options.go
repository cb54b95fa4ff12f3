package dedupe

import "github.com/prodigyranking/ratingengine/internal/domain/model"

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithFactorCategories supplies the category of factors whose results do
// not carry one.
func WithFactorCategories(m map[string]model.Category) Option {
	return func(a *Aggregator) {
		for id, c := range m {
			a.factorCats[id] = c
		}
	}
}
