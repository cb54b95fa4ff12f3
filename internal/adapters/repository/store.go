// Package repository persists published rating records, runs, weekly
// snapshots and audit reports, and serves the ranked leaderboard.
package repository

import (
	"context"
	"time"

	"github.com/prodigyranking/ratingengine/internal/domain/audit"
	"github.com/prodigyranking/ratingengine/internal/domain/model"
)

// Entry represents a leaderboard row.
type Entry struct {
	Rank      int           `json:"rank"`
	EntityID  int64         `json:"entity_id"`
	Name      string        `json:"name"`
	SubType   model.SubType `json:"sub_type"`
	BirthYear int           `json:"birth_year"`
	Overall   int           `json:"overall"`
}

// RatingStore is the published side of the engine. Publish replaces the
// whole record set atomically; readers see the old set or the new one.
type RatingStore interface {
	Publish(ctx context.Context, run model.Run, records []model.RatingRecord, report *audit.Report) error
	Records(ctx context.Context) ([]model.RatingRecord, error)
	Record(ctx context.Context, entityID int64) (model.RatingRecord, error)
	Count(ctx context.Context) (int, error)
	LatestRun(ctx context.Context) (model.Run, error)
	LatestAudit(ctx context.Context) (*audit.Report, error)
}

// SnapshotStore persists weekly snapshots of cumulative counters.
type SnapshotStore interface {
	HasSnapshot(ctx context.Context, date time.Time) (bool, error)
	SaveSnapshots(ctx context.Context, date time.Time, snaps []model.WeeklySnapshot) error
	LatestSnapshotBefore(ctx context.Context, date time.Time) (time.Time, bool, error)
	SnapshotCounters(ctx context.Context, date time.Time) (map[int64]model.Counters, error)
}
