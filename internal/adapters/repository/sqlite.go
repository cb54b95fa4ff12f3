package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/prodigyranking/ratingengine/internal/domain/audit"
	"github.com/prodigyranking/ratingengine/internal/domain/model"
	"github.com/prodigyranking/ratingengine/pkg/logger"
	"github.com/prodigyranking/ratingengine/pkg/metrics"
)

type ratingRow struct {
	EntityID       int64     `db:"entity_id"`
	Name           string    `db:"name"`
	SubType        string    `db:"sub_type"`
	BirthYear      int       `db:"birth_year"`
	FactorsJSON    string    `db:"factors"`
	SumsJSON       string    `db:"category_sums"`
	RatingsJSON    string    `db:"category_ratings"`
	GrandTotal     float64   `db:"grand_total"`
	Overall        int       `db:"overall"`
	EngineVersion  string    `db:"engine_version"`
	WeightsVersion string    `db:"weights_version"`
	ComputedAt     time.Time `db:"computed_at"`
}

type runRow struct {
	ID             string    `db:"run_id"`
	Mode           string    `db:"mode"`
	EngineVersion  string    `db:"engine_version"`
	WeightsVersion string    `db:"weights_version"`
	CatalogVersion string    `db:"catalog_version"`
	AsOf           string    `db:"as_of"`
	Entities       int       `db:"entities"`
	Anomalies      int       `db:"anomalies"`
	StartedAt      time.Time `db:"started_at"`
	FinishedAt     time.Time `db:"finished_at"`
}

// SQLiteStore implements RatingStore and SnapshotStore on SQLite.
type SQLiteStore struct {
	db     *sqlx.DB
	logger logger.Logger
}

// Open opens a SQLite database and runs migrations.
func Open(path string, opts ...Option) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger.Get().Named("store")}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// DB returns the underlying handle, shared with the source adapter.
func (s *SQLiteStore) DB() *sqlx.DB { return s.db }

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func toRow(r *model.RatingRecord) (ratingRow, error) {
	factors, err := json.Marshal(r.Factors)
	if err != nil {
		return ratingRow{}, err
	}
	sums, err := json.Marshal(r.CategorySums)
	if err != nil {
		return ratingRow{}, err
	}
	ratings, err := json.Marshal(r.CategoryRatings)
	if err != nil {
		return ratingRow{}, err
	}
	return ratingRow{
		EntityID:       r.EntityID,
		Name:           r.Name,
		SubType:        string(r.SubType),
		BirthYear:      r.BirthYear,
		FactorsJSON:    string(factors),
		SumsJSON:       string(sums),
		RatingsJSON:    string(ratings),
		GrandTotal:     r.GrandTotal,
		Overall:        r.Overall,
		EngineVersion:  string(r.EngineVersion),
		WeightsVersion: r.WeightsVersion,
		ComputedAt:     r.ComputedAt.UTC(),
	}, nil
}

func (row *ratingRow) record() (model.RatingRecord, error) {
	r := model.RatingRecord{
		EntityID:       row.EntityID,
		Name:           row.Name,
		SubType:        model.SubType(row.SubType),
		BirthYear:      row.BirthYear,
		GrandTotal:     row.GrandTotal,
		Overall:        row.Overall,
		EngineVersion:  model.EngineVersion(row.EngineVersion),
		WeightsVersion: row.WeightsVersion,
		ComputedAt:     row.ComputedAt.UTC(),
	}
	if err := json.Unmarshal([]byte(row.FactorsJSON), &r.Factors); err != nil {
		return r, fmt.Errorf("decode factors of %d: %w", row.EntityID, err)
	}
	if err := json.Unmarshal([]byte(row.SumsJSON), &r.CategorySums); err != nil {
		return r, fmt.Errorf("decode category sums of %d: %w", row.EntityID, err)
	}
	if err := json.Unmarshal([]byte(row.RatingsJSON), &r.CategoryRatings); err != nil {
		return r, fmt.Errorf("decode category ratings of %d: %w", row.EntityID, err)
	}
	return r, nil
}

// Publish replaces every rating record, records the run and stores the audit
// report in one transaction.
func (s *SQLiteStore) Publish(ctx context.Context, run model.Run, records []model.RatingRecord, report *audit.Report) error {
	start := time.Now()
	defer func() {
		metrics.RecordStoreSwapDuration(float64(time.Since(start).Milliseconds()))
	}()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin publish: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM rating_records"); err != nil {
		return fmt.Errorf("clear rating records: %w", err)
	}

	stmt, err := tx.PrepareNamedContext(ctx, `
		INSERT INTO rating_records (entity_id, name, sub_type, birth_year, factors, category_sums, category_ratings,
			grand_total, overall, engine_version, weights_version, computed_at)
		VALUES (:entity_id, :name, :sub_type, :birth_year, :factors, :category_sums, :category_ratings,
			:grand_total, :overall, :engine_version, :weights_version, :computed_at)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range records {
		row, err := toRow(&records[i])
		if err != nil {
			return fmt.Errorf("encode record %d: %w", records[i].EntityID, err)
		}
		if _, err := stmt.ExecContext(ctx, row); err != nil {
			return fmt.Errorf("insert record %d: %w", row.EntityID, err)
		}
	}

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO runs (run_id, mode, engine_version, weights_version, catalog_version, as_of, entities, anomalies, started_at, finished_at)
		VALUES (:run_id, :mode, :engine_version, :weights_version, :catalog_version, :as_of, :entities, :anomalies, :started_at, :finished_at)
	`, runRow{
		ID:             run.ID,
		Mode:           run.Mode,
		EngineVersion:  string(run.EngineVersion),
		WeightsVersion: run.WeightsVersion,
		CatalogVersion: run.CatalogVersion,
		AsOf:           model.Day(run.AsOf).Format(model.DateLayout),
		Entities:       run.Entities,
		Anomalies:      run.Anomalies,
		StartedAt:      run.StartedAt.UTC(),
		FinishedAt:     run.FinishedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}

	if report != nil {
		body, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("encode audit report: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO audit_reports (run_id, created_at, body) VALUES (?, ?, ?)",
			run.ID, report.GeneratedAt.UTC(), string(body)); err != nil {
			return fmt.Errorf("store audit report: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit publish: %w", err)
	}
	s.logger.Info(ctx, "published rating records",
		logger.String("run_id", run.ID),
		logger.Int("records", len(records)),
	)
	return nil
}

// Records returns the published set ordered by entity id.
func (s *SQLiteStore) Records(ctx context.Context) ([]model.RatingRecord, error) {
	defer observeQuery(time.Now())
	var rows []ratingRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT * FROM rating_records ORDER BY entity_id"); err != nil {
		return nil, fmt.Errorf("list rating records: %w", err)
	}
	out := make([]model.RatingRecord, 0, len(rows))
	for i := range rows {
		r, err := rows[i].record()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Record returns one published record.
func (s *SQLiteStore) Record(ctx context.Context, entityID int64) (model.RatingRecord, error) {
	defer observeQuery(time.Now())
	var row ratingRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM rating_records WHERE entity_id = ?", entityID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RatingRecord{}, fmt.Errorf("%w: %d", ErrNotFound, entityID)
	}
	if err != nil {
		return model.RatingRecord{}, fmt.Errorf("get rating record %d: %w", entityID, err)
	}
	return row.record()
}

// Count returns the size of the published set.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM rating_records"); err != nil {
		return 0, fmt.Errorf("count rating records: %w", err)
	}
	return n, nil
}

// LatestRun returns the most recently published run.
func (s *SQLiteStore) LatestRun(ctx context.Context) (model.Run, error) {
	var row runRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM runs ORDER BY finished_at DESC, run_id DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return model.Run{}, ErrNoPublishedRun
	}
	if err != nil {
		return model.Run{}, fmt.Errorf("latest run: %w", err)
	}
	asOf, err := model.ParseDay(row.AsOf)
	if err != nil {
		return model.Run{}, err
	}
	return model.Run{
		ID:             row.ID,
		Mode:           row.Mode,
		EngineVersion:  model.EngineVersion(row.EngineVersion),
		WeightsVersion: row.WeightsVersion,
		CatalogVersion: row.CatalogVersion,
		AsOf:           asOf,
		Entities:       row.Entities,
		Anomalies:      row.Anomalies,
		StartedAt:      row.StartedAt.UTC(),
		FinishedAt:     row.FinishedAt.UTC(),
	}, nil
}

// LatestAudit returns the audit report of the most recently published run.
func (s *SQLiteStore) LatestAudit(ctx context.Context) (*audit.Report, error) {
	var body string
	err := s.db.GetContext(ctx, &body, `
		SELECT a.body FROM audit_reports a JOIN runs r ON r.run_id = a.run_id
		ORDER BY r.finished_at DESC, r.run_id DESC LIMIT 1
	`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoPublishedRun
	}
	if err != nil {
		return nil, fmt.Errorf("latest audit report: %w", err)
	}
	var rep audit.Report
	if err := json.Unmarshal([]byte(body), &rep); err != nil {
		return nil, fmt.Errorf("decode audit report: %w", err)
	}
	return &rep, nil
}

// HasSnapshot reports whether any snapshot row exists for date.
func (s *SQLiteStore) HasSnapshot(ctx context.Context, date time.Time) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM weekly_snapshots WHERE snapshot_date = ?", model.Day(date).Format(model.DateLayout))
	if err != nil {
		return false, fmt.Errorf("check snapshot: %w", err)
	}
	return n > 0, nil
}

// SaveSnapshots writes every snapshot of one capture in one transaction.
func (s *SQLiteStore) SaveSnapshots(ctx context.Context, date time.Time, snaps []model.WeeklySnapshot) error {
	day := model.Day(date).Format(model.DateLayout)
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin capture: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO weekly_snapshots (entity_id, snapshot_date, goals, assists, views)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(entity_id, snapshot_date) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	for _, sn := range snaps {
		if _, err := stmt.ExecContext(ctx, sn.EntityID, day, sn.Counters.Goals, sn.Counters.Assists, sn.Counters.Views); err != nil {
			return fmt.Errorf("insert snapshot %d: %w", sn.EntityID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit capture: %w", err)
	}
	return nil
}

// LatestSnapshotBefore returns the latest capture date strictly before date.
func (s *SQLiteStore) LatestSnapshotBefore(ctx context.Context, date time.Time) (time.Time, bool, error) {
	var latest sql.NullString
	err := s.db.GetContext(ctx, &latest,
		"SELECT MAX(snapshot_date) FROM weekly_snapshots WHERE snapshot_date < ?", model.Day(date).Format(model.DateLayout))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("latest snapshot: %w", err)
	}
	if !latest.Valid {
		return time.Time{}, false, nil
	}
	t, err := model.ParseDay(latest.String)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// SnapshotCounters returns the counters captured on date keyed by entity.
func (s *SQLiteStore) SnapshotCounters(ctx context.Context, date time.Time) (map[int64]model.Counters, error) {
	defer observeQuery(time.Now())
	var rows []struct {
		EntityID int64 `db:"entity_id"`
		model.Counters
	}
	err := s.db.SelectContext(ctx, &rows,
		"SELECT entity_id, goals, assists, views FROM weekly_snapshots WHERE snapshot_date = ?",
		model.Day(date).Format(model.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	out := make(map[int64]model.Counters, len(rows))
	for _, r := range rows {
		out[r.EntityID] = r.Counters
	}
	return out, nil
}

func observeQuery(start time.Time) {
	metrics.RecordStoreQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
}
