package source_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/prodigyranking/ratingengine/internal/adapters/repository"
	"github.com/prodigyranking/ratingengine/internal/adapters/source"
	"github.com/prodigyranking/ratingengine/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

const dataset = `
entities:
  - id: 2
    name: Erik Lund
    sub_type: Defenseman
    birth_year: 2009
    league: J20 Nationell
    height_cm: 188
    weight_kg: 84
  - id: 1
    name: Alex Berg
    sub_type: C
    birth_year: 2009
records:
  - {entity_id: 1, source: points, value: 42, sample: 30}
  - {entity_id: 1, source: league_level, key: ohl}
  - {entity_id: 2, source: points, value: 18, sample: 28}
counters:
  - {entity_id: 1, goals: 10, assists: 12, views: 300}
`

func openSource(t *testing.T) *source.SQLiteSource {
	t.Helper()
	store, err := repository.Open(filepath.Join(t.TempDir(), "ratings.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return source.NewSQLite(store.DB())
}

func TestParseDataset(t *testing.T) {
	Convey("Given an ingest document", t, func() {
		ds, err := source.ParseDataset([]byte(dataset))
		So(err, ShouldBeNil)

		Convey("sub-type spellings are normalized", func() {
			entities, err := ds.Validate()
			So(err, ShouldBeNil)
			So(entities, ShouldHaveLength, 2)
			So(entities[0].SubType, ShouldEqual, model.Defense)
			So(entities[1].SubType, ShouldEqual, model.Forward)
		})

		Convey("sources are listed in first-seen order", func() {
			So(ds.Sources(), ShouldResemble, []string{"points", "league_level"})
		})

		Convey("counters are read inline", func() {
			So(ds.Counters[0].Goals, ShouldEqual, 10)
			So(ds.Counters[0].Views, ShouldEqual, 300)
		})
	})

	Convey("Unknown fields are rejected", t, func() {
		_, err := source.ParseDataset([]byte("entities: []\nplayers: []\n"))
		So(errors.Is(err, source.ErrInvalidDataset), ShouldBeTrue)
	})

	Convey("Rows for unknown entities are rejected", t, func() {
		ds, err := source.ParseDataset([]byte(`
entities:
  - {id: 1, name: A, sub_type: G}
records:
  - {entity_id: 9, source: points, value: 1}
`))
		So(err, ShouldBeNil)
		_, err = ds.Validate()
		So(errors.Is(err, source.ErrInvalidDataset), ShouldBeTrue)
	})

	Convey("Unknown sub-types are rejected", t, func() {
		ds, err := source.ParseDataset([]byte("entities:\n  - {id: 1, name: A, sub_type: referee}\n"))
		So(err, ShouldBeNil)
		_, err = ds.Validate()
		So(errors.Is(err, source.ErrInvalidDataset), ShouldBeTrue)
	})
}

func TestSQLiteSource(t *testing.T) {
	ctx := context.Background()
	Convey("Given an ingested dataset", t, func() {
		src := openSource(t)
		ds, err := source.ParseDataset([]byte(dataset))
		So(err, ShouldBeNil)
		res, err := src.Ingest(ctx, ds)
		So(err, ShouldBeNil)
		So(res, ShouldResemble, source.IngestResult{Entities: 2, Records: 3, Counters: 1})

		Convey("entities come back ordered by id", func() {
			entities, err := src.Entities(ctx)
			So(err, ShouldBeNil)
			So(entities, ShouldHaveLength, 2)
			So(entities[0].ID, ShouldEqual, 1)
			So(entities[1].League, ShouldEqual, "J20 Nationell")
			So(entities[1].HeightCM, ShouldEqual, 188)
		})

		Convey("a missing entity is reported", func() {
			_, err := src.Entity(ctx, 99)
			So(errors.Is(err, source.ErrEntityNotFound), ShouldBeTrue)
		})

		Convey("records are read per source", func() {
			rows, err := src.Records(ctx, "points")
			So(err, ShouldBeNil)
			So(rows, ShouldHaveLength, 2)
			So(rows[0].EntityID, ShouldEqual, 1)
			So(rows[0].Sample, ShouldEqual, 30)

			rows, err = src.Records(ctx, "league_level")
			So(err, ShouldBeNil)
			So(rows[0].Key, ShouldEqual, "ohl")
		})

		Convey("counters are keyed by entity", func() {
			counters, err := src.Counters(ctx)
			So(err, ShouldBeNil)
			So(counters[1].Assists, ShouldEqual, 12)
			So(counters, ShouldNotContainKey, int64(2))
		})

		Convey("re-ingesting a source replaces its rows and keeps the others", func() {
			next, err := source.ParseDataset([]byte(`
entities:
  - {id: 1, name: Alex Berg, sub_type: F, birth_year: 2009}
records:
  - {entity_id: 1, source: points, value: 50, sample: 35}
counters:
  - {entity_id: 1, goals: 11, assists: 12, views: 320}
`))
			So(err, ShouldBeNil)
			_, err = src.Ingest(ctx, next)
			So(err, ShouldBeNil)

			rows, err := src.Records(ctx, "points")
			So(err, ShouldBeNil)
			So(rows, ShouldHaveLength, 1)
			So(rows[0].Value, ShouldEqual, 50)

			rows, err = src.Records(ctx, "league_level")
			So(err, ShouldBeNil)
			So(rows, ShouldHaveLength, 1)

			counters, err := src.Counters(ctx)
			So(err, ShouldBeNil)
			So(counters[1].Goals, ShouldEqual, 11)
		})
	})
}

func TestSQLiteSourceIngestReferences(t *testing.T) {
	ctx := context.Background()
	Convey("Given entities already ingested", t, func() {
		src := openSource(t)
		ds, err := source.ParseDataset([]byte(dataset))
		So(err, ShouldBeNil)
		_, err = src.Ingest(ctx, ds)
		So(err, ShouldBeNil)

		Convey("a records-only document may name stored entities", func() {
			next, err := source.ParseDataset([]byte(`
records:
  - {entity_id: 2, source: points, value: 21, sample: 31}
counters:
  - {entity_id: 2, goals: 4, assists: 9, views: 150}
`))
			So(err, ShouldBeNil)
			res, err := src.Ingest(ctx, next)
			So(err, ShouldBeNil)
			So(res, ShouldResemble, source.IngestResult{Records: 1, Counters: 1})

			rows, err := src.Records(ctx, "points")
			So(err, ShouldBeNil)
			So(rows, ShouldHaveLength, 1)
			So(rows[0].EntityID, ShouldEqual, 2)

			entities, err := src.Entities(ctx)
			So(err, ShouldBeNil)
			So(entities, ShouldHaveLength, 2)
		})

		Convey("ids that are neither listed nor stored are still rejected", func() {
			next, err := source.ParseDataset([]byte("records:\n  - {entity_id: 9, source: points, value: 1}\n"))
			So(err, ShouldBeNil)
			_, err = src.Ingest(ctx, next)
			So(errors.Is(err, source.ErrInvalidDataset), ShouldBeTrue)

			rows, err := src.Records(ctx, "points")
			So(err, ShouldBeNil)
			So(rows, ShouldHaveLength, 2)
		})
	})
}

func TestSQLiteSourceReadErrors(t *testing.T) {
	ctx := context.Background()
	Convey("Given a store", t, func() {
		store, err := repository.Open(filepath.Join(t.TempDir(), "ratings.db"))
		So(err, ShouldBeNil)
		src := source.NewSQLite(store.DB())

		Convey("a missing records table makes the source unavailable", func() {
			_, err := store.DB().Exec("DROP TABLE factor_records")
			So(err, ShouldBeNil)
			_, err = src.Records(ctx, "points")
			So(errors.Is(err, source.ErrSourceUnavailable), ShouldBeTrue)
			So(store.Close(), ShouldBeNil)
		})

		Convey("other read failures are not treated as an absent source", func() {
			So(store.Close(), ShouldBeNil)
			_, err := src.Records(ctx, "points")
			So(err, ShouldNotBeNil)
			So(errors.Is(err, source.ErrSourceUnavailable), ShouldBeFalse)
		})
	})
}

func TestMemorySource(t *testing.T) {
	ctx := context.Background()
	Convey("Given a memory source built from a dataset", t, func() {
		ds, err := source.ParseDataset([]byte(dataset))
		So(err, ShouldBeNil)
		mem, err := source.NewMemoryFromDataset(ds)
		So(err, ShouldBeNil)

		Convey("it serves the same reads", func() {
			entities, err := mem.Entities(ctx)
			So(err, ShouldBeNil)
			So(entities[0].ID, ShouldEqual, 1)

			rows, err := mem.Records(ctx, "points")
			So(err, ShouldBeNil)
			So(source.GroupByEntity(rows)[2][0].Value, ShouldEqual, 18)
		})

		Convey("an unavailable source fails", func() {
			mem.SetUnavailable("points", true)
			_, err := mem.Records(ctx, "points")
			So(errors.Is(err, source.ErrSourceUnavailable), ShouldBeTrue)
		})

		Convey("an unknown source is empty", func() {
			rows, err := mem.Records(ctx, "nope")
			So(err, ShouldBeNil)
			So(rows, ShouldBeEmpty)
		})
	})
}
