package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/prodigyranking/ratingengine/internal/domain/model"
	"github.com/prodigyranking/ratingengine/pkg/logger"
)

// SQLiteSource reads the entities, factor_records and counters tables.
type SQLiteSource struct {
	db     *sqlx.DB
	logger logger.Logger
}

// NewSQLite wraps an open database whose schema is already migrated.
func NewSQLite(db *sqlx.DB, opts ...Option) *SQLiteSource {
	s := &SQLiteSource{db: db, logger: logger.Get().Named("source")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Entities returns every entity ordered by id.
func (s *SQLiteSource) Entities(ctx context.Context) ([]model.Entity, error) {
	var out []model.Entity
	if err := s.db.SelectContext(ctx, &out, "SELECT * FROM entities ORDER BY id"); err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	return out, nil
}

// Entity returns one entity.
func (s *SQLiteSource) Entity(ctx context.Context, id int64) (model.Entity, error) {
	var e model.Entity
	err := s.db.GetContext(ctx, &e, "SELECT * FROM entities WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return e, fmt.Errorf("%w: %d", ErrEntityNotFound, id)
	}
	if err != nil {
		return e, fmt.Errorf("get entity %d: %w", id, err)
	}
	return e, nil
}

// Records returns every row of source ordered by entity and insertion.
func (s *SQLiteSource) Records(ctx context.Context, source string) ([]model.SourceRecord, error) {
	var out []model.SourceRecord
	err := s.db.SelectContext(ctx, &out, `
		SELECT entity_id, source, value, lookup_key, sample FROM factor_records
		WHERE source = ? ORDER BY entity_id, id
	`, source)
	if isMissingTable(err) {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, source, err)
	}
	if err != nil {
		return nil, fmt.Errorf("read source %s: %w", source, err)
	}
	return out, nil
}

// isMissingTable reports a schema that lacks the queried table.
func isMissingTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

// Counters returns the current counters keyed by entity.
func (s *SQLiteSource) Counters(ctx context.Context) (map[int64]model.Counters, error) {
	var rows []struct {
		EntityID int64 `db:"entity_id"`
		model.Counters
	}
	if err := s.db.SelectContext(ctx, &rows, "SELECT entity_id, goals, assists, views FROM counters"); err != nil {
		return nil, fmt.Errorf("read counters: %w", err)
	}
	out := make(map[int64]model.Counters, len(rows))
	for _, r := range rows {
		out[r.EntityID] = r.Counters
	}
	return out, nil
}

// IngestResult counts what Ingest wrote.
type IngestResult struct {
	Entities int
	Records  int
	Counters int
}

// Ingest applies a dataset in one transaction: entities and counters are
// upserted, and every source present in the dataset has its rows replaced.
// Records and counters may name entities listed in the dataset or already
// stored.
func (s *SQLiteSource) Ingest(ctx context.Context, ds *Dataset) (IngestResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return IngestResult{}, fmt.Errorf("begin ingest: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var ids []int64
	if err := tx.SelectContext(ctx, &ids, "SELECT id FROM entities"); err != nil {
		return IngestResult{}, fmt.Errorf("list entity ids: %w", err)
	}
	stored := make(map[int64]bool, len(ids))
	for _, id := range ids {
		stored[id] = true
	}
	entities, err := ds.ValidateAgainst(func(id int64) bool { return stored[id] })
	if err != nil {
		return IngestResult{}, err
	}

	for i := range entities {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO entities (id, name, sub_type, birth_year, nationality, team, league, season, height_cm, weight_kg)
			VALUES (:id, :name, :sub_type, :birth_year, :nationality, :team, :league, :season, :height_cm, :weight_kg)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				sub_type = excluded.sub_type,
				birth_year = excluded.birth_year,
				nationality = excluded.nationality,
				team = excluded.team,
				league = excluded.league,
				season = excluded.season,
				height_cm = excluded.height_cm,
				weight_kg = excluded.weight_kg
		`, &entities[i])
		if err != nil {
			return IngestResult{}, fmt.Errorf("upsert entity %d: %w", entities[i].ID, err)
		}
	}

	for _, src := range ds.Sources() {
		if _, err := tx.ExecContext(ctx, "DELETE FROM factor_records WHERE source = ?", src); err != nil {
			return IngestResult{}, fmt.Errorf("clear source %s: %w", src, err)
		}
	}
	for i := range ds.Records {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO factor_records (entity_id, source, value, lookup_key, sample)
			VALUES (:entity_id, :source, :value, :lookup_key, :sample)
		`, &ds.Records[i])
		if err != nil {
			return IngestResult{}, fmt.Errorf("insert record for entity %d: %w", ds.Records[i].EntityID, err)
		}
	}

	for _, c := range ds.Counters {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO counters (entity_id, goals, assists, views) VALUES (?, ?, ?, ?)
			ON CONFLICT(entity_id) DO UPDATE SET goals = excluded.goals, assists = excluded.assists, views = excluded.views
		`, c.EntityID, c.Goals, c.Assists, c.Views)
		if err != nil {
			return IngestResult{}, fmt.Errorf("upsert counters %d: %w", c.EntityID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return IngestResult{}, fmt.Errorf("commit ingest: %w", err)
	}
	res := IngestResult{Entities: len(entities), Records: len(ds.Records), Counters: len(ds.Counters)}
	s.logger.Info(ctx, "dataset ingested",
		logger.Int("entities", res.Entities),
		logger.Int("records", res.Records),
		logger.Int("counters", res.Counters),
	)
	return res, nil
}
