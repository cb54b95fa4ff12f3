// Package scoring is the factor evaluator: it applies each factor's formula
// kind to the source rows matching one entity.
package scoring

import (
	"context"
	"fmt"
	"math"

	"github.com/prodigyranking/ratingengine/internal/domain/lookup"
	"github.com/prodigyranking/ratingengine/internal/domain/model"
	"github.com/prodigyranking/ratingengine/internal/domain/registry"
	"github.com/prodigyranking/ratingengine/pkg/logger"
)

// DeltaSource answers the bounded-below counter delta of an entity since its
// latest prior snapshot. It returns 0 when there is no prior snapshot.
type DeltaSource interface {
	Events(entityID int64, c model.Counter) int64
}

// Input is everything the evaluator may read for one entity.
type Input struct {
	Entity model.Entity
	// Records holds the entity's source rows keyed by source name.
	Records map[string][]model.SourceRecord
	Deltas  DeltaSource
}

// Result is the evaluation of one factor for one entity. Candidates holds
// one capped value per matching source row; the aggregator reduces them.
type Result struct {
	FactorID   string
	Category   model.Category
	MaxPoints  float64
	Applicable bool
	Candidates []float64
	// Raw is the largest value seen before capping.
	Raw       float64
	Anomalies []model.Anomaly
}

// outcome is the uncapped value produced from one source row.
type outcome struct {
	value float64
	// negative marks raw data below zero, clamped to 0.
	negative bool
	miss     string
}

// kindFunc evaluates one formula kind. It returns no outcomes when the
// entity has no usable data for the factor.
type kindFunc func(c *compiled, in Input) []outcome

var kinds = map[model.FormulaKind]kindFunc{
	model.KindLinear:               evalLinear,
	model.KindInvertedLinear:       evalInvertedLinear,
	model.KindTieredLookup:         evalTiered,
	model.KindDirectLookup:         evalDirect,
	model.KindPerEventCappedDelta:  evalDelta,
	model.KindStandardsTableLookup: evalStandards,
}

// compiled binds a factor to its kind function and resolved tables.
type compiled struct {
	def       *model.FactorDefinition
	eval      kindFunc
	table     *lookup.Table
	standards *registry.Standards
	// flagOverCap is set for kinds whose value comes from data or table
	// entries rather than a saturating formula.
	flagOverCap bool
}

// Evaluator evaluates catalog factors. It is safe for concurrent use.
type Evaluator struct {
	factors []*compiled
	byID    map[string]*compiled
	logger  logger.Logger
}

// New compiles every factor in catalog against the dispatch table.
func New(catalog *registry.Catalog, opts ...Option) (*Evaluator, error) {
	e := &Evaluator{
		byID:   make(map[string]*compiled, len(catalog.Factors())),
		logger: logger.Get().Named("evaluator"),
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, f := range catalog.Factors() {
		fn, ok := kinds[f.Kind]
		if !ok {
			return nil, fmt.Errorf("factor %s: %w: %s", f.ID, ErrNoEvaluator, f.Kind)
		}
		c := &compiled{def: f, eval: fn}
		switch f.Kind {
		case model.KindTieredLookup, model.KindDirectLookup:
			c.flagOverCap = true
			if f.Table != "" {
				t, ok := catalog.Table(f.Table)
				if !ok {
					return nil, fmt.Errorf("factor %s: %w", f.ID, registry.ErrUnknownTable)
				}
				c.table = t
			}
		case model.KindStandardsTableLookup:
			c.flagOverCap = true
			s, ok := catalog.Standards(f.Standards)
			if !ok {
				return nil, fmt.Errorf("factor %s: %w", f.ID, registry.ErrUnknownTable)
			}
			c.standards = s
		}
		e.factors = append(e.factors, c)
		e.byID[f.ID] = c
	}
	return e, nil
}

// Evaluate evaluates factor id for one entity.
func (e *Evaluator) Evaluate(id string, in Input) (Result, error) {
	c, ok := e.byID[id]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", registry.ErrUnknownFactor, id)
	}
	return e.evaluate(c, in), nil
}

// EvaluateAll evaluates every catalog factor, in catalog order, for one
// entity.
func (e *Evaluator) EvaluateAll(ctx context.Context, in Input) []Result {
	out := make([]Result, 0, len(e.factors))
	for _, c := range e.factors {
		r := e.evaluate(c, in)
		if len(r.Anomalies) > 0 {
			e.logger.Debug(ctx, "factor anomalies",
				logger.Int64("entity_id", in.Entity.ID),
				logger.String("factor_id", c.def.ID),
				logger.Int("count", len(r.Anomalies)),
			)
		}
		out = append(out, r)
	}
	return out
}

func (e *Evaluator) evaluate(c *compiled, in Input) Result {
	f := c.def
	r := Result{FactorID: f.ID, Category: f.Category, MaxPoints: f.MaxPoints}
	if !f.Enabled || !f.Applies(in.Entity.SubType) {
		return r
	}
	r.Applicable = true

	for _, o := range c.eval(c, in) {
		switch {
		case o.miss != "":
			r.Anomalies = append(r.Anomalies, newAnomaly(in, f, model.AnomalyNoMatch, 0, fmt.Sprintf("key %q", o.miss)))
		case o.negative:
			r.Anomalies = append(r.Anomalies, newAnomaly(in, f, model.AnomalyNegativeValue, o.value, ""))
			o.value = 0
		}
		v := o.value
		if math.IsNaN(v) || v < 0 {
			v = 0
		}
		if v > r.Raw {
			r.Raw = v
		}
		if v > f.MaxPoints {
			if c.flagOverCap {
				r.Anomalies = append(r.Anomalies, newAnomaly(in, f, model.AnomalyOverCap, v, ""))
			}
			v = f.MaxPoints
		}
		r.Candidates = append(r.Candidates, v)
	}
	return r
}

func newAnomaly(in Input, f *model.FactorDefinition, kind model.AnomalyKind, v float64, detail string) model.Anomaly {
	return model.Anomaly{
		Kind:      kind,
		EntityID:  in.Entity.ID,
		FactorID:  f.ID,
		Value:     v,
		MaxPoints: f.MaxPoints,
		Detail:    detail,
	}
}

// Value reduces a result to the single value published for the factor:
// the max over candidates, 0 when there are none.
func (r Result) Value() float64 {
	var best float64
	for _, v := range r.Candidates {
		if v > best {
			best = v
		}
	}
	return best
}
