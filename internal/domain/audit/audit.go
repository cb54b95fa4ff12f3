// Package audit collects data-quality anomalies during a run and builds the
// factor-by-factor audit report. Anomalies are reported, never corrected.
package audit

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/prodigyranking/ratingengine/internal/domain/dedupe"
	"github.com/prodigyranking/ratingengine/internal/domain/model"
	"github.com/prodigyranking/ratingengine/internal/domain/scoring"
	"github.com/prodigyranking/ratingengine/pkg/logger"
	"github.com/prodigyranking/ratingengine/pkg/metrics"
)

const defaultSampleLimit = 20

// FactorStats summarizes one factor over a run.
type FactorStats struct {
	FactorID   string         `json:"factor_id"`
	Name       string         `json:"name"`
	Category   model.Category `json:"category"`
	MaxPoints  float64        `json:"max_points"`
	Enabled    bool           `json:"enabled"`
	Evaluated  int            `json:"evaluated"`
	Applicable int            `json:"applicable"`
	NonZero    int            `json:"non_zero"`
	// Coverage is the non-zero share of applicable entities.
	Coverage float64 `json:"coverage"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	// MaxRaw is the largest value observed before capping.
	MaxRaw  float64 `json:"max_raw"`
	OverCap int     `json:"over_cap"`
}

// Report is the audit output of one run.
type Report struct {
	RunID          string                    `json:"run_id"`
	EngineVersion  model.EngineVersion       `json:"engine_version"`
	CatalogVersion string                    `json:"catalog_version"`
	GeneratedAt    time.Time                 `json:"generated_at"`
	Entities       int                       `json:"entities"`
	Factors        []FactorStats             `json:"factors"`
	Counts         map[model.AnomalyKind]int `json:"counts"`
	// Anomalies holds up to the sample limit per (kind, factor).
	Anomalies []model.Anomaly `json:"anomalies"`
}

// Total returns the number of anomalies of every kind.
func (r *Report) Total() int {
	var n int
	for _, c := range r.Counts {
		n += c
	}
	return n
}

// Count returns the number of anomalies of kind.
func (r *Report) Count(kind model.AnomalyKind) int { return r.Counts[kind] }

// NeedsAttention reports whether the run found configuration-level problems:
// data above a configured max, or a source that was missing entirely.
func (r *Report) NeedsAttention() bool {
	return r.Count(model.AnomalyOverCap) > 0 || r.Count(model.AnomalyMissingSource) > 0
}

// Factor returns the stats of factor id.
func (r *Report) Factor(id string) (FactorStats, bool) {
	for _, f := range r.Factors {
		if f.FactorID == id {
			return f, true
		}
	}
	return FactorStats{}, false
}

type sampleKey struct {
	kind   model.AnomalyKind
	factor string
}

type factorAcc struct {
	stats   FactorStats
	hasSeen bool
}

// Collector accumulates observations from concurrent workers.
type Collector struct {
	mu          sync.Mutex
	order       []string
	factors     map[string]*factorAcc
	counts      map[model.AnomalyKind]int
	samples     map[sampleKey]int
	anomalies   []model.Anomaly
	entities    int
	sampleLimit int
	logger      logger.Logger
}

// NewCollector creates a collector for the given factors.
func NewCollector(factors []*model.FactorDefinition, opts ...Option) *Collector {
	c := &Collector{
		factors:     make(map[string]*factorAcc, len(factors)),
		counts:      make(map[model.AnomalyKind]int),
		samples:     make(map[sampleKey]int),
		sampleLimit: defaultSampleLimit,
		logger:      logger.Get().Named("audit"),
	}
	for _, opt := range opts {
		opt(c)
	}
	for _, f := range factors {
		c.order = append(c.order, f.ID)
		c.factors[f.ID] = &factorAcc{stats: FactorStats{
			FactorID:  f.ID,
			Name:      f.Name,
			Category:  f.Category,
			MaxPoints: f.MaxPoints,
			Enabled:   f.Enabled,
		}}
	}
	return c
}

// Observe folds one entity's results and aggregated row into the report.
func (c *Collector) Observe(ctx context.Context, results []scoring.Result, row dedupe.Row) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entities++
	seen := make(map[string]bool, len(results))
	for _, r := range results {
		acc, ok := c.factors[r.FactorID]
		if !ok || seen[r.FactorID] {
			continue
		}
		seen[r.FactorID] = true
		acc.stats.Evaluated++
		if !r.Applicable {
			continue
		}
		acc.stats.Applicable++
		v := row.Factors[r.FactorID]
		if v > 0 {
			acc.stats.NonZero++
		}
		if !acc.hasSeen || v < acc.stats.Min {
			acc.stats.Min = v
		}
		if !acc.hasSeen || v > acc.stats.Max {
			acc.stats.Max = v
		}
		acc.hasSeen = true
		acc.stats.MaxRaw = math.Max(acc.stats.MaxRaw, r.Raw)
	}
	for _, a := range row.Anomalies {
		c.record(ctx, a)
	}
}

// Record adds an anomaly that is not tied to one entity's evaluation, such
// as a missing source.
func (c *Collector) Record(ctx context.Context, a model.Anomaly) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(ctx, a)
}

func (c *Collector) record(ctx context.Context, a model.Anomaly) {
	c.counts[a.Kind]++
	if a.Kind == model.AnomalyOverCap {
		if acc, ok := c.factors[a.FactorID]; ok {
			acc.stats.OverCap++
		}
	}
	metrics.RecordAnomaly(a.FactorID, string(a.Kind))

	key := sampleKey{kind: a.Kind, factor: a.FactorID}
	if c.samples[key] >= c.sampleLimit {
		return
	}
	c.samples[key]++
	c.anomalies = append(c.anomalies, a)
	c.logger.Warn(ctx, "data-quality anomaly",
		logger.String("kind", string(a.Kind)),
		logger.Int64("entity_id", a.EntityID),
		logger.String("factor_id", a.FactorID),
		logger.Float64("value", a.Value),
		logger.Float64("max_points", a.MaxPoints),
	)
}

// Report builds the report. Factors keep catalog order; anomalies are
// sorted by kind, factor and entity so reports of identical runs match.
func (c *Collector) Report(runID string, engine model.EngineVersion, catalogVersion string, at time.Time) *Report {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := &Report{
		RunID:          runID,
		EngineVersion:  engine,
		CatalogVersion: catalogVersion,
		GeneratedAt:    at,
		Entities:       c.entities,
		Counts:         make(map[model.AnomalyKind]int, len(c.counts)),
		Anomalies:      append([]model.Anomaly(nil), c.anomalies...),
	}
	for k, v := range c.counts {
		r.Counts[k] = v
	}
	for _, id := range c.order {
		s := c.factors[id].stats
		if s.Applicable > 0 {
			s.Coverage = float64(s.NonZero) / float64(s.Applicable)
		}
		r.Factors = append(r.Factors, s)
	}

	rank := make(map[model.AnomalyKind]int)
	for i, k := range model.AnomalyKinds() {
		rank[k] = i
	}
	sort.SliceStable(r.Anomalies, func(i, j int) bool {
		a, b := r.Anomalies[i], r.Anomalies[j]
		if a.Kind != b.Kind {
			return rank[a.Kind] < rank[b.Kind]
		}
		if a.FactorID != b.FactorID {
			return a.FactorID < b.FactorID
		}
		return a.EntityID < b.EntityID
	})
	return r
}
