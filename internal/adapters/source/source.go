// Package source is the factor source adapter. It reads entities, raw factor
// rows and cumulative counters from the store that holds them.
package source

import (
	"context"

	"github.com/prodigyranking/ratingengine/internal/domain/model"
)

// Source is the read interface the engine consumes.
type Source interface {
	// Entities returns every rated entity ordered by id.
	Entities(ctx context.Context) ([]model.Entity, error)
	// Entity returns one entity or ErrEntityNotFound.
	Entity(ctx context.Context, id int64) (model.Entity, error)
	// Records returns every row of one factor source. A source that cannot
	// be read returns ErrSourceUnavailable.
	Records(ctx context.Context, source string) ([]model.SourceRecord, error)
	// Counters returns the current cumulative counters keyed by entity.
	Counters(ctx context.Context) (map[int64]model.Counters, error)
}

// GroupByEntity indexes rows by entity id, keeping their order.
func GroupByEntity(rows []model.SourceRecord) map[int64][]model.SourceRecord {
	out := make(map[int64][]model.SourceRecord)
	for _, r := range rows {
		out[r.EntityID] = append(out[r.EntityID], r)
	}
	return out
}
