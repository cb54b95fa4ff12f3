// Package normalize turns raw category sums into bounded 1..99 ratings,
// with the policy chosen per category.
package normalize

import (
	"fmt"
	"sort"

	"github.com/prodigyranking/ratingengine/internal/domain/model"
)

// Row is one entity's phase-one output as seen by the normalizer.
type Row struct {
	Cohort model.Cohort
	Sums   map[model.Category]float64
}

// Distribution holds the sorted category sums of every cohort. It is built
// once after all entities are aggregated and is read-only afterwards.
type Distribution struct {
	sums map[model.Cohort]map[model.Category][]float64
}

// Normalizer applies the configured policy of each category.
type Normalizer struct {
	curve    Curve
	policies map[model.Category]Policy
	order    []model.Category
}

// New validates policies against curve. Every category must appear once.
func New(curve Curve, policies []Policy) (*Normalizer, error) {
	if len(curve.knots) == 0 {
		return nil, fmt.Errorf("%w: empty curve", ErrInvalidCurve)
	}
	n := &Normalizer{curve: curve, policies: make(map[model.Category]Policy, len(policies))}
	for _, p := range policies {
		if err := p.validate(); err != nil {
			return nil, err
		}
		if _, dup := n.policies[p.Category]; dup {
			return nil, fmt.Errorf("%w: category %s has two policies", ErrInvalidPolicy, p.Category)
		}
		n.policies[p.Category] = p
		n.order = append(n.order, p.Category)
	}
	return n, nil
}

// Categories returns the categories in configuration order.
func (n *Normalizer) Categories() []model.Category {
	out := make([]model.Category, len(n.order))
	copy(out, n.order)
	return out
}

// Policy returns the policy of category c.
func (n *Normalizer) Policy(c model.Category) (Policy, bool) {
	p, ok := n.policies[c]
	return p, ok
}

// Curve returns the percentile curve.
func (n *Normalizer) Curve() Curve { return n.curve }

// Distribution collects the percentile-policy sums of rows per cohort.
func (n *Normalizer) Distribution(rows []Row) *Distribution {
	d := &Distribution{sums: make(map[model.Cohort]map[model.Category][]float64)}
	for _, r := range rows {
		byCat, ok := d.sums[r.Cohort]
		if !ok {
			byCat = make(map[model.Category][]float64)
			d.sums[r.Cohort] = byCat
		}
		for _, c := range n.order {
			if n.policies[c].Kind != PolicyPercentile {
				continue
			}
			byCat[c] = append(byCat[c], r.Sums[c])
		}
	}
	for _, byCat := range d.sums {
		for _, s := range byCat {
			sort.Float64s(s)
		}
	}
	return d
}

// CohortSize returns the number of entities seen in cohort.
func (d *Distribution) CohortSize(cohort model.Cohort) int {
	for _, s := range d.sums[cohort] {
		return len(s)
	}
	return 0
}

// Percentile returns the share of the cohort whose sum for c is strictly
// below sum, scaled so the cohort's best maps to 1. A cohort of one maps
// to 0.
func (d *Distribution) Percentile(cohort model.Cohort, c model.Category, sum float64) float64 {
	s := d.sums[cohort][c]
	if len(s) < 2 {
		return 0
	}
	below := sort.SearchFloat64s(s, sum)
	p := float64(below) / float64(len(s)-1)
	if p > 1 {
		return 1
	}
	return p
}

// Rate rates every configured category for one entity.
func (n *Normalizer) Rate(d *Distribution, e model.Entity, sums map[model.Category]float64) map[model.Category]int {
	out := make(map[model.Category]int, len(n.order))
	for _, c := range n.order {
		out[c] = n.rate(d, n.policies[c], e, sums[c])
	}
	return out
}

func (n *Normalizer) rate(d *Distribution, p Policy, e model.Entity, sum float64) int {
	floor := n.curve.Floor()
	if p.Floor > 0 {
		floor = p.Floor
	}

	switch p.Kind {
	case PolicyTier:
		attr := e.Attribute(p.Driver)
		v, ok := p.Tiers.Lookup(attr)
		if !ok {
			if def, has := p.Tiers.Default(); has {
				return ClampRating(def)
			}
			return floor
		}
		return ClampRating(v)
	case PolicyScaled:
		if sum <= 0 {
			return floor
		}
		v := sum / p.FullScale * MaxRating
		if v < float64(floor) {
			return floor
		}
		return ClampRating(v)
	default:
		if sum <= 0 || d == nil {
			return n.curve.Floor()
		}
		return ClampRating(n.curve.At(d.Percentile(e.Cohort(), p.Category, sum)))
	}
}
