package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/prodigyranking/ratingengine/internal/adapters/source"
	"github.com/prodigyranking/ratingengine/internal/adapters/worker"
	"github.com/prodigyranking/ratingengine/internal/domain/audit"
	"github.com/prodigyranking/ratingengine/internal/domain/dedupe"
	"github.com/prodigyranking/ratingengine/internal/domain/model"
	"github.com/prodigyranking/ratingengine/internal/domain/normalize"
	"github.com/prodigyranking/ratingengine/internal/domain/scoring"
	"github.com/prodigyranking/ratingengine/pkg/logger"
	"github.com/prodigyranking/ratingengine/pkg/metrics"
)

// ModeRebuild names a plain rebuild in the runs table.
const ModeRebuild = "rebuild"

// RebuildOptions controls one rebuild.
type RebuildOptions struct {
	// AsOf selects the rating date; zero means today. The delta prior is
	// the latest snapshot strictly before it.
	AsOf time.Time
	// DryRun computes and audits without publishing.
	DryRun bool
	// Mode is recorded with the run. Empty means ModeRebuild.
	Mode string
}

// RunSummary describes a finished rebuild.
type RunSummary struct {
	RunID          string              `json:"run_id"`
	Mode           string              `json:"mode"`
	EngineVersion  model.EngineVersion `json:"engine_version"`
	WeightsVersion string              `json:"weights_version"`
	CatalogVersion string              `json:"catalog_version"`
	AsOf           time.Time           `json:"as_of"`
	Entities       int                 `json:"entities"`
	Anomalies      int                 `json:"anomalies"`
	DryRun         bool                `json:"dry_run"`
	Published      bool                `json:"published"`
	Notified       bool                `json:"notified"`
	Duration       time.Duration       `json:"duration"`

	// Records and Report are the run's full output, kept for dry runs and
	// callers that print results.
	Records []model.RatingRecord `json:"-"`
	Report  *audit.Report        `json:"-"`
}

// phaseOne is one entity's evaluated and aggregated output.
type phaseOne struct {
	entity  model.Entity
	results []scoring.Result
	row     dedupe.Row
}

// Rebuild recomputes every entity's RatingRecord. Phase 1 evaluates and
// aggregates each entity in parallel; after a barrier the cohort
// distributions are built; phase 2 normalizes and composites in parallel.
// Unless DryRun, the records, the run and its audit report are published in
// one transaction.
func (s *Service) Rebuild(ctx context.Context, opts RebuildOptions) (RunSummary, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	started := s.now()
	mode := opts.Mode
	if mode == "" {
		mode = ModeRebuild
	}
	asOf := opts.AsOf
	if asOf.IsZero() {
		asOf = started
	}
	asOf = model.Day(asOf)

	sum := RunSummary{
		RunID:          uuid.NewString(),
		Mode:           mode,
		EngineVersion:  s.engineVersion,
		WeightsVersion: s.catalog.Weights().Version(),
		CatalogVersion: s.catalog.Version(),
		AsOf:           asOf,
		DryRun:         opts.DryRun,
	}
	log := s.logger.With(logger.String("run_id", sum.RunID), logger.String("mode", mode))
	log.Info(ctx, "rebuild started",
		logger.String("as_of", asOf.Format(model.DateLayout)),
		logger.Bool("dry_run", opts.DryRun),
	)

	err := s.rebuild(ctx, log, &sum, started)
	sum.Duration = s.now().Sub(started)
	metrics.RecordRun(mode, err == nil)
	metrics.RecordRunDuration(float64(sum.Duration.Milliseconds()))
	if err != nil {
		metrics.RecordErrorByComponent("pipeline", "run_failed")
		if errors.Is(err, ErrConfiguration) {
			log.Error(ctx, "rebuild aborted on configuration error", logger.Error(err))
		} else {
			log.Error(ctx, "rebuild failed", logger.Error(err))
		}
		return sum, err
	}

	s.mu.Lock()
	last := sum
	last.Records, last.Report = nil, nil
	s.lastRun = &last
	s.mu.Unlock()

	log.Info(ctx, "rebuild finished",
		logger.Int("entities", sum.Entities),
		logger.Int("anomalies", sum.Anomalies),
		logger.Bool("published", sum.Published),
		logger.Int64("duration_ms", sum.Duration.Milliseconds()),
	)
	return sum, nil
}

func (s *Service) rebuild(ctx context.Context, log logger.Logger, sum *RunSummary, started time.Time) error {
	entities, err := s.source.Entities(ctx)
	if err != nil {
		return fmt.Errorf("%w: load entities: %w", ErrRunFailed, err)
	}
	counters, err := s.source.Counters(ctx)
	if err != nil {
		return fmt.Errorf("%w: load counters: %w", ErrRunFailed, err)
	}
	deltas, err := s.tracker.Prepare(ctx, sum.AsOf, counters)
	if err != nil {
		return fmt.Errorf("%w: prepare deltas: %w", ErrRunFailed, err)
	}
	if prior, ok := deltas.PriorDate(); ok {
		log.Info(ctx, "delta prior resolved", logger.String("snapshot_id", model.SnapshotID(prior)))
	} else {
		log.Info(ctx, "no prior snapshot, deltas are zero")
	}

	collector := audit.NewCollector(s.catalog.Factors(),
		audit.WithSampleLimit(s.sampleLimit),
		audit.WithLogger(log),
	)
	records, err := s.loadRecords(ctx, log, collector)
	if err != nil {
		return err
	}

	// Phase 1: evaluate and aggregate.
	phaseStart := time.Now()
	ones, err := worker.Map(ctx, s.pool, entities, func(ctx context.Context, e model.Entity) (phaseOne, error) {
		results := s.evaluator.EvaluateAll(ctx, scoring.Input{
			Entity:  e,
			Records: records[e.ID],
			Deltas:  deltas,
		})
		return phaseOne{entity: e, results: results, row: s.aggregator.Aggregate(e.ID, results)}, nil
	})
	if err != nil {
		return fmt.Errorf("%w: evaluate: %w", ErrRunFailed, err)
	}
	metrics.RecordPhaseDuration("evaluate", float64(time.Since(phaseStart).Milliseconds()))
	metrics.RecordFactorEvaluations(len(entities) * len(s.catalog.Factors()))

	// Barrier: every row is aggregated before any cohort distribution is read.
	rows := make([]normalize.Row, len(ones))
	for i := range ones {
		collector.Observe(ctx, ones[i].results, ones[i].row)
		rows[i] = normalize.Row{Cohort: ones[i].entity.Cohort(), Sums: ones[i].row.CategorySums}
	}
	norm := s.catalog.Normalizer()
	dist := norm.Distribution(rows)

	// Phase 2: normalize and composite.
	phaseStart = time.Now()
	weights := s.catalog.Weights()
	out, err := worker.Map(ctx, s.pool, ones, func(_ context.Context, p phaseOne) (model.RatingRecord, error) {
		ratings := norm.Rate(dist, p.entity, p.row.CategorySums)
		return model.RatingRecord{
			EntityID:        p.entity.ID,
			Name:            p.entity.Name,
			SubType:         p.entity.SubType,
			BirthYear:       p.entity.BirthYear,
			Factors:         p.row.Factors,
			CategorySums:    p.row.CategorySums,
			CategoryRatings: ratings,
			GrandTotal:      p.row.GrandTotal,
			Overall:         weights.Overall(ratings),
			EngineVersion:   s.engineVersion,
			WeightsVersion:  weights.Version(),
			ComputedAt:      started,
		}, nil
	})
	if err != nil {
		return fmt.Errorf("%w: normalize: %w", ErrRunFailed, err)
	}
	metrics.RecordPhaseDuration("normalize", float64(time.Since(phaseStart).Milliseconds()))

	finished := s.now()
	report := collector.Report(sum.RunID, s.engineVersion, s.catalog.Version(), finished)
	sum.Entities = len(out)
	sum.Anomalies = report.Total()
	sum.Records = out
	sum.Report = report
	metrics.UpdateEntitiesRated(len(out))

	if sum.DryRun {
		log.Info(ctx, "dry run, nothing published")
		return nil
	}

	run := model.Run{
		ID:             sum.RunID,
		Mode:           sum.Mode,
		EngineVersion:  sum.EngineVersion,
		WeightsVersion: sum.WeightsVersion,
		CatalogVersion: sum.CatalogVersion,
		AsOf:           sum.AsOf,
		Entities:       sum.Entities,
		Anomalies:      sum.Anomalies,
		StartedAt:      started,
		FinishedAt:     finished,
	}
	phaseStart = time.Now()
	if err := s.store.Publish(ctx, run, out, report); err != nil {
		return fmt.Errorf("%w: publish: %w", ErrRunFailed, err)
	}
	metrics.RecordPhaseDuration("publish", float64(time.Since(phaseStart).Milliseconds()))
	metrics.UpdateRecordsPublished(len(out))
	metrics.UpdateLastPublish(finished.Unix())
	sum.Published = true
	s.leaderboard.Load(out)

	if s.notifier != nil {
		sum.Notified = s.notifier.NotifyReport(ctx, report)
	}
	return nil
}

// loadRecords reads every source the catalog needs and indexes the rows by
// entity. An empty or unavailable source is recorded as a missing_source
// anomaly against each factor reading it and the run continues.
func (s *Service) loadRecords(ctx context.Context, log logger.Logger, collector *audit.Collector) (map[int64]map[string][]model.SourceRecord, error) {
	bySource := make(map[string][]*model.FactorDefinition)
	for _, f := range s.catalog.Factors() {
		if f.Enabled && f.ReadsSource() {
			bySource[f.Source] = append(bySource[f.Source], f)
		}
	}

	out := make(map[int64]map[string][]model.SourceRecord)
	for _, name := range s.catalog.Sources() {
		rows, err := s.source.Records(ctx, name)
		if err != nil && !errors.Is(err, source.ErrSourceUnavailable) {
			return nil, fmt.Errorf("%w: read source %s: %w", ErrRunFailed, name, err)
		}
		if len(rows) == 0 {
			detail := "empty"
			if err != nil {
				detail = "unavailable"
				log.Warn(ctx, "source unavailable, treated as empty",
					logger.String("source", name),
					logger.Error(err),
				)
			}
			metrics.RecordMissingSource(name)
			for _, f := range bySource[name] {
				collector.Record(ctx, model.Anomaly{
					Kind:      model.AnomalyMissingSource,
					FactorID:  f.ID,
					MaxPoints: f.MaxPoints,
					Detail:    fmt.Sprintf("source %s %s", name, detail),
				})
			}
			continue
		}
		for id, rs := range source.GroupByEntity(rows) {
			byName, ok := out[id]
			if !ok {
				byName = make(map[string][]model.SourceRecord)
				out[id] = byName
			}
			byName[name] = rs
		}
	}
	return out, nil
}
