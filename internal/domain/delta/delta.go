// Package delta is the weekly delta tracker. It captures cumulative counters
// per entity on a date and answers bounded deltas against the latest prior
// capture.
package delta

import (
	"context"
	"fmt"
	"time"

	"github.com/prodigyranking/ratingengine/internal/domain/model"
	"github.com/prodigyranking/ratingengine/pkg/logger"
	"github.com/prodigyranking/ratingengine/pkg/metrics"
)

// SnapshotStore persists weekly snapshots. SaveSnapshots must be atomic:
// either every row of the capture is durable or none is.
type SnapshotStore interface {
	HasSnapshot(ctx context.Context, date time.Time) (bool, error)
	SaveSnapshots(ctx context.Context, date time.Time, snaps []model.WeeklySnapshot) error
	// LatestSnapshotBefore returns the most recent capture date strictly
	// before date.
	LatestSnapshotBefore(ctx context.Context, date time.Time) (time.Time, bool, error)
	SnapshotCounters(ctx context.Context, date time.Time) (map[int64]model.Counters, error)
}

// CounterSource reads the current cumulative counters of every entity.
type CounterSource interface {
	Counters(ctx context.Context) (map[int64]model.Counters, error)
}

// State is the capture state of a date.
type State int

const (
	StatePending State = iota
	StateStored
)

func (s State) String() string {
	if s == StateStored {
		return "stored"
	}
	return "pending"
}

// CaptureResult describes one Capture call.
type CaptureResult struct {
	ID       string
	Date     time.Time
	Entities int
	// Skipped is set when the date had already been captured.
	Skipped bool
	State   State
}

// Tracker captures snapshots and prepares deltas.
type Tracker struct {
	store  SnapshotStore
	source CounterSource
	logger logger.Logger
}

// NewTracker creates a tracker over store. The counter source is needed
// only by Capture.
func NewTracker(store SnapshotStore, opts ...Option) *Tracker {
	t := &Tracker{
		store:  store,
		logger: logger.Get().Named("delta"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Capture stores one snapshot per entity for date. A date that is already
// stored is not captured twice.
func (t *Tracker) Capture(ctx context.Context, date time.Time) (CaptureResult, error) {
	if date.IsZero() {
		return CaptureResult{}, ErrInvalidDate
	}
	day := model.Day(date)
	res := CaptureResult{ID: model.SnapshotID(day), Date: day, State: StatePending}

	exists, err := t.store.HasSnapshot(ctx, day)
	if err != nil {
		return res, fmt.Errorf("check snapshot %s: %w", res.ID, err)
	}
	if exists {
		res.Skipped = true
		res.State = StateStored
		metrics.RecordSnapshotCapture(0, true)
		t.logger.Info(ctx, "snapshot already stored", logger.String("snapshot_id", res.ID))
		return res, nil
	}

	if t.source == nil {
		return res, ErrNoCounterSource
	}
	counters, err := t.source.Counters(ctx)
	if err != nil {
		return res, fmt.Errorf("read counters: %w", err)
	}
	snaps := make([]model.WeeklySnapshot, 0, len(counters))
	for id, c := range counters {
		snaps = append(snaps, model.WeeklySnapshot{EntityID: id, Date: day, Counters: c})
	}
	if err := t.store.SaveSnapshots(ctx, day, snaps); err != nil {
		return res, fmt.Errorf("save snapshot %s: %w", res.ID, err)
	}

	res.Entities = len(snaps)
	res.State = StateStored
	metrics.RecordSnapshotCapture(len(snaps), false)
	t.logger.Info(ctx, "snapshot stored",
		logger.String("snapshot_id", res.ID),
		logger.Int("entities", len(snaps)),
	)
	return res, nil
}

// Prepare resolves the latest snapshot strictly before asOf and pairs it with
// current. A same-day snapshot is never used as the prior.
func (t *Tracker) Prepare(ctx context.Context, asOf time.Time, current map[int64]model.Counters) (*Deltas, error) {
	if asOf.IsZero() {
		return nil, ErrInvalidDate
	}
	d := &Deltas{current: current}
	prior, ok, err := t.store.LatestSnapshotBefore(ctx, model.Day(asOf))
	if err != nil {
		return nil, fmt.Errorf("resolve prior snapshot: %w", err)
	}
	if !ok {
		t.logger.Info(ctx, "no prior snapshot; deltas are zero", logger.String("as_of", model.Day(asOf).Format(model.DateLayout)))
		return d, nil
	}
	counters, err := t.store.SnapshotCounters(ctx, prior)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", model.SnapshotID(prior), err)
	}
	d.prior = counters
	d.priorDate = prior
	d.hasPrior = true
	return d, nil
}

// Deltas answers per-entity counter deltas for one run. It is read-only
// after Prepare and safe for concurrent use.
type Deltas struct {
	current   map[int64]model.Counters
	prior     map[int64]model.Counters
	priorDate time.Time
	hasPrior  bool
}

// NewDeltas builds deltas from explicit counter sets.
func NewDeltas(current, prior map[int64]model.Counters) *Deltas {
	return &Deltas{current: current, prior: prior, hasPrior: prior != nil}
}

// PriorDate returns the prior snapshot date, if any.
func (d *Deltas) PriorDate() (time.Time, bool) { return d.priorDate, d.hasPrior }

// Events returns max(current - prior, 0) for the entity's counter, and 0
// when the entity has no prior snapshot.
func (d *Deltas) Events(entityID int64, c model.Counter) int64 {
	if d == nil || !d.hasPrior {
		return 0
	}
	prior, ok := d.prior[entityID]
	if !ok {
		return 0
	}
	return Delta(d.current[entityID].Get(c), prior.Get(c))
}

// Delta returns current - prior, clamped below at 0.
func Delta(current, prior int64) int64 {
	if current <= prior {
		return 0
	}
	return current - prior
}
