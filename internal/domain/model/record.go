package model

import (
	"fmt"
	"time"
)

// EngineVersion identifies the algorithm that produced a RatingRecord. It is
// passed explicitly into every run.
type EngineVersion string

// SourceRecord is one raw row from a factor source. Several rows may match
// one (entity, factor).
type SourceRecord struct {
	EntityID int64   `db:"entity_id" yaml:"entity_id" json:"entity_id"`
	Source   string  `db:"source" yaml:"source" json:"source"`
	Value    float64 `db:"value" yaml:"value" json:"value"`
	Key      string  `db:"lookup_key" yaml:"key" json:"key"`
	Sample   int     `db:"sample" yaml:"sample" json:"sample"`
}

// Counters are the cumulative counts captured by weekly snapshots.
type Counters struct {
	Goals   int64 `db:"goals" yaml:"goals" json:"goals"`
	Assists int64 `db:"assists" yaml:"assists" json:"assists"`
	Views   int64 `db:"views" yaml:"views" json:"views"`
}

// Get returns the count named by c.
func (c Counters) Get(name Counter) int64 {
	switch name {
	case CounterGoals:
		return c.Goals
	case CounterAssists:
		return c.Assists
	case CounterViews:
		return c.Views
	default:
		return 0
	}
}

// FactorObservation is the evaluated value of one factor for one entity. It
// never leaves the pipeline.
type FactorObservation struct {
	EntityID int64
	FactorID string
	Value    float64
	AsOf     time.Time
}

// RatingRecord is the engine's published output for one entity.
type RatingRecord struct {
	EntityID        int64                `json:"entity_id"`
	Name            string               `json:"name"`
	SubType         SubType              `json:"sub_type"`
	BirthYear       int                  `json:"birth_year"`
	Factors         map[string]float64   `json:"factors"`
	CategorySums    map[Category]float64 `json:"category_sums"`
	CategoryRatings map[Category]int     `json:"category_ratings"`
	GrandTotal      float64              `json:"grand_total"`
	Overall         int                  `json:"overall"`
	EngineVersion   EngineVersion        `json:"engine_version"`
	WeightsVersion  string               `json:"weights_version"`
	ComputedAt      time.Time            `json:"computed_at"`
}

// DateLayout is the calendar date format used for snapshots and run dates.
const DateLayout = "2006-01-02"

// WeeklySnapshot is a durable capture of one entity's counters on a date.
type WeeklySnapshot struct {
	EntityID int64
	Date     time.Time
	Counters Counters
}

// SnapshotID names the capture that produced snapshots for date.
func SnapshotID(date time.Time) string {
	return fmt.Sprintf("snapshot-%s", date.UTC().Format(DateLayout))
}

// Day truncates t to its UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD date.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// Run describes one rebuild. Published runs are recorded next to the
// records they produced.
type Run struct {
	ID             string        `json:"run_id"`
	Mode           string        `json:"mode"`
	EngineVersion  EngineVersion `json:"engine_version"`
	WeightsVersion string        `json:"weights_version"`
	CatalogVersion string        `json:"catalog_version"`
	AsOf           time.Time     `json:"as_of"`
	Entities       int           `json:"entities"`
	Anomalies      int           `json:"anomalies"`
	DryRun         bool          `json:"dry_run"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     time.Time     `json:"finished_at"`
}

// Duration returns the wall time of the run.
func (r Run) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }
