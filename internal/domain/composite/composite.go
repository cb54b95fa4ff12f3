// Package composite combines category ratings into the overall rating.
package composite

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/prodigyranking/ratingengine/internal/domain/model"
	"github.com/prodigyranking/ratingengine/internal/domain/normalize"
)

// sumTolerance absorbs float error in configured weights such as 0.19+0.03.
const sumTolerance = 1e-9

// Weights is a versioned, immutable weight vector over categories. A
// category absent from the vector contributes nothing.
type Weights struct {
	version string
	values  map[model.Category]float64
	order   []model.Category
}

// NewWeights validates values against the known categories. Weights must be
// non-negative and sum to at most 1.
func NewWeights(version string, values map[model.Category]float64, known []model.Category) (Weights, error) {
	if version == "" {
		return Weights{}, fmt.Errorf("%w: missing version", ErrInvalidWeights)
	}
	valid := make(map[model.Category]bool, len(known))
	for _, c := range known {
		valid[c] = true
	}

	w := Weights{version: version, values: make(map[model.Category]float64, len(values))}
	var errs []error
	var sum float64
	for c, v := range values {
		switch {
		case !valid[c]:
			errs = append(errs, fmt.Errorf("%w: unknown category %q", ErrInvalidWeights, c))
		case math.IsNaN(v) || v < 0:
			errs = append(errs, fmt.Errorf("%w: category %s weight %v", ErrInvalidWeights, c, v))
		default:
			w.values[c] = v
			w.order = append(w.order, c)
			sum += v
		}
	}
	if len(errs) > 0 {
		return Weights{}, errors.Join(errs...)
	}
	if sum <= 0 {
		return Weights{}, fmt.Errorf("%w: weights sum to zero", ErrInvalidWeights)
	}
	if sum > 1+sumTolerance {
		return Weights{}, fmt.Errorf("%w: weights sum to %v, above 1", ErrInvalidWeights, sum)
	}
	sort.Slice(w.order, func(i, j int) bool { return w.order[i] < w.order[j] })
	return w, nil
}

// Version returns the weight vector version.
func (w Weights) Version() string { return w.version }

// Of returns the weight of c.
func (w Weights) Of(c model.Category) float64 { return w.values[c] }

// Sum returns the total weight.
func (w Weights) Sum() float64 {
	var s float64
	for _, c := range w.order {
		s += w.values[c]
	}
	return s
}

// Overall computes clamp(round(sum of weight[c] * rating[c]), 1, 99).
// Categories are visited in a fixed order so the result is reproducible.
func (w Weights) Overall(ratings map[model.Category]int) int {
	var total float64
	for _, c := range w.order {
		total += w.values[c] * float64(ratings[c])
	}
	return normalize.ClampRating(total)
}
