// Package dedupe is the deduplicating aggregator. It reduces the evaluations
// of one entity to exactly one value per factor and sums them by category.
package dedupe

import (
	"fmt"
	"sort"

	"github.com/prodigyranking/ratingengine/internal/domain/model"
	"github.com/prodigyranking/ratingengine/internal/domain/scoring"
)

// Row is the aggregated phase-one output of one entity.
type Row struct {
	EntityID     int64
	Factors      map[string]float64
	CategorySums map[model.Category]float64
	GrandTotal   float64
	// Duplicates counts factors that had more than one matching row.
	Duplicates int
	Anomalies  []model.Anomaly
}

// Aggregator merges factor results. It holds no per-entity state and is safe
// for concurrent use.
type Aggregator struct {
	categories []model.Category
	factorCats map[string]model.Category
}

// NewAggregator creates an aggregator over the given categories.
func NewAggregator(categories []model.Category, opts ...Option) *Aggregator {
	a := &Aggregator{
		categories: append([]model.Category(nil), categories...),
		factorCats: make(map[string]model.Category),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Merge returns the max of values, 0 when empty. Duplicate matches are
// never summed.
func Merge(values ...float64) float64 {
	var best float64
	for _, v := range values {
		if v > best {
			best = v
		}
	}
	return best
}

// Aggregate reduces results to one value per factor (the max over every
// candidate of every result carrying that factor id) and computes category
// sums and the grand total.
func (a *Aggregator) Aggregate(entityID int64, results []scoring.Result) Row {
	row := Row{
		EntityID:     entityID,
		Factors:      make(map[string]float64, len(results)),
		CategorySums: make(map[model.Category]float64, len(a.categories)),
	}
	matches := make(map[string]int, len(results))
	cats := make(map[string]model.Category, len(results))
	maxPoints := make(map[string]float64)

	for _, r := range results {
		cats[r.FactorID] = r.Category
		row.Anomalies = append(row.Anomalies, r.Anomalies...)
		if _, ok := row.Factors[r.FactorID]; !ok {
			row.Factors[r.FactorID] = 0
		}
		for _, v := range r.Candidates {
			row.Factors[r.FactorID] = Merge(row.Factors[r.FactorID], v)
			matches[r.FactorID]++
		}
		maxPoints[r.FactorID] = r.MaxPoints
	}

	ids := make([]string, 0, len(row.Factors))
	for id := range row.Factors {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if n := matches[id]; n > 1 {
			row.Duplicates++
			row.Anomalies = append(row.Anomalies, model.Anomaly{
				Kind:      model.AnomalyDuplicateMatch,
				EntityID:  entityID,
				FactorID:  id,
				Value:     row.Factors[id],
				MaxPoints: maxPoints[id],
				Detail:    fmt.Sprintf("%d matches", n),
			})
		}
		c := cats[id]
		if c == "" {
			c = a.factorCats[id]
		}
		row.CategorySums[c] += row.Factors[id]
	}

	for _, c := range a.categories {
		if _, ok := row.CategorySums[c]; !ok {
			row.CategorySums[c] = 0
		}
		row.GrandTotal += row.CategorySums[c]
	}
	return row
}
