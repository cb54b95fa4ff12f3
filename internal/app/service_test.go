package service_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prodigyranking/ratingengine/internal/adapters/notify"
	"github.com/prodigyranking/ratingengine/internal/adapters/repository"
	"github.com/prodigyranking/ratingengine/internal/adapters/source"
	service "github.com/prodigyranking/ratingengine/internal/app"
	"github.com/prodigyranking/ratingengine/internal/domain/model"
	"github.com/prodigyranking/ratingengine/internal/domain/registry"
	"github.com/prodigyranking/ratingengine/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var clock = time.Date(2025, 1, 13, 6, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return clock }

type fixture struct {
	svc   *service.Service
	src   *source.Memory
	store *repository.SQLiteStore
}

func newFixture(t *testing.T, opts ...service.Option) *fixture {
	t.Helper()
	store, err := repository.Open(filepath.Join(t.TempDir(), "ratings.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	src := source.NewMemory()
	src.PutEntity(model.Entity{ID: 1, Name: "Alex Berg", SubType: model.Forward, BirthYear: 2009, League: "OHL", HeightCM: 185, WeightKG: 80})
	src.PutEntity(model.Entity{ID: 2, Name: "Erik Lund", SubType: model.Defense, BirthYear: 2009, League: "J20 Nationell"})
	src.PutEntity(model.Entity{ID: 3, Name: "Noah Holm", SubType: model.Goalie, BirthYear: 2009})
	src.AddRecord(model.SourceRecord{EntityID: 1, Source: "league", Key: "OHL"})
	src.AddRecord(model.SourceRecord{EntityID: 1, Source: "ep_views", Value: 15000})
	src.AddRecord(model.SourceRecord{EntityID: 1, Source: "current_gpg", Value: 1.0, Sample: 20})
	src.AddRecord(model.SourceRecord{EntityID: 2, Source: "league", Key: "J20 Nationell"})
	src.AddRecord(model.SourceRecord{EntityID: 2, Source: "manual", Value: 150})
	src.AddRecord(model.SourceRecord{EntityID: 2, Source: "manual", Value: 1800})
	src.SetCounters(1, model.Counters{Goals: 10, Assists: 4, Views: 300})

	catalog, err := registry.Default()
	if err != nil {
		t.Fatalf("default catalog: %v", err)
	}
	opts = append([]service.Option{service.WithClock(fixedClock), service.WithWorkerCount(4)}, opts...)
	svc, err := service.New(catalog, src, store, opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	t.Cleanup(svc.Stop)
	return &fixture{svc: svc, src: src, store: store}
}

func TestService_New(t *testing.T) {
	Convey("A service needs a catalog, a source and a store", t, func() {
		_, err := service.New(nil, source.NewMemory(), nil)
		So(errors.Is(err, service.ErrConfiguration), ShouldBeTrue)
	})

	Convey("A catalog that does not load is a configuration error", t, func() {
		_, err := service.LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
		So(errors.Is(err, service.ErrConfiguration), ShouldBeTrue)
	})
}

func TestService_Rebuild(t *testing.T) {
	ctx := context.Background()

	Convey("Given a populated source", t, func() {
		f := newFixture(t)

		Convey("When rebuilding", func() {
			sum, err := f.svc.Rebuild(ctx, service.RebuildOptions{})
			So(err, ShouldBeNil)

			Convey("Then every entity is published", func() {
				So(sum.Published, ShouldBeTrue)
				So(sum.Entities, ShouldEqual, 3)
				So(sum.RunID, ShouldNotBeEmpty)
				So(sum.WeightsVersion, ShouldEqual, "v3.0")
				So(sum.AsOf, ShouldEqual, model.Day(clock))
				n, err := f.store.Count(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 3)
			})

			Convey("Then duplicate rows merge by max, never by sum", func() {
				rec, err := f.svc.Record(ctx, 2)
				So(err, ShouldBeNil)
				So(rec.Factors["F22"], ShouldEqual, 1000)
				So(sum.Report.Count(model.AnomalyDuplicateMatch), ShouldEqual, 1)
				So(sum.Report.Count(model.AnomalyOverCap), ShouldEqual, 1)
			})

			Convey("Then an entity with no data sits at the floor", func() {
				rec, err := f.svc.Record(ctx, 3)
				So(err, ShouldBeNil)
				So(rec.GrandTotal, ShouldEqual, 0)
				for _, r := range rec.CategoryRatings {
					So(r, ShouldEqual, 40)
				}
				So(rec.Overall, ShouldEqual, 40)
			})

			Convey("Then the leaderboard is ranked by overall", func() {
				top, err := f.svc.TopN(ctx, 3)
				So(err, ShouldBeNil)
				So(top, ShouldHaveLength, 3)
				So(top[0].EntityID, ShouldEqual, 1)
				So(top[2].EntityID, ShouldEqual, 3)

				e, err := f.svc.Rank(ctx, 2)
				So(err, ShouldBeNil)
				So(e.Rank, ShouldEqual, 2)
			})

			Convey("Then the audit report is published with the run", func() {
				report, err := f.svc.LatestAudit(ctx)
				So(err, ShouldBeNil)
				So(report.RunID, ShouldEqual, sum.RunID)
				So(report.Entities, ShouldEqual, 3)
				So(report.Count(model.AnomalyMissingSource), ShouldBeGreaterThan, 0)
			})

			Convey("Then stats describe the published run", func() {
				st, err := f.svc.GetStats(ctx)
				So(err, ShouldBeNil)
				So(st.PublishedRecords, ShouldEqual, 3)
				So(st.LastRun.RunID, ShouldEqual, sum.RunID)
				So(st.LastPublishedRun.ID, ShouldEqual, sum.RunID)
				So(st.Factors, ShouldEqual, 27)
			})

			Convey("Then rebuilding the same inputs publishes the same records", func() {
				first, err := f.store.Records(ctx)
				So(err, ShouldBeNil)
				again, err := f.svc.Rebuild(ctx, service.RebuildOptions{})
				So(err, ShouldBeNil)
				So(again.RunID, ShouldNotEqual, sum.RunID)
				second, err := f.store.Records(ctx)
				So(err, ShouldBeNil)
				So(second, ShouldResemble, first)
			})
		})

		Convey("When a source is unavailable", func() {
			f.src.SetUnavailable("league", true)
			sum, err := f.svc.Rebuild(ctx, service.RebuildOptions{})

			Convey("Then the run still succeeds and records the gap", func() {
				So(err, ShouldBeNil)
				a, ok := sum.Report.Factor("F13")
				So(ok, ShouldBeTrue)
				So(a.NonZero, ShouldEqual, 0)

				found := false
				for _, an := range sum.Report.Anomalies {
					if an.Kind == model.AnomalyMissingSource && an.FactorID == "F13" {
						found = true
						So(an.Detail, ShouldContainSubstring, "unavailable")
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When running dry", func() {
			sum, err := f.svc.Rebuild(ctx, service.RebuildOptions{DryRun: true})

			Convey("Then results are computed but nothing is published", func() {
				So(err, ShouldBeNil)
				So(sum.Published, ShouldBeFalse)
				So(sum.Records, ShouldHaveLength, 3)
				n, err := f.store.Count(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)
				_, err = f.store.LatestRun(ctx)
				So(errors.Is(err, repository.ErrNoPublishedRun), ShouldBeTrue)
			})
		})

		Convey("When the context is canceled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := f.svc.Rebuild(cctx, service.RebuildOptions{})

			Convey("Then the run fails without publishing", func() {
				So(errors.Is(err, service.ErrRunFailed), ShouldBeTrue)
				n, err := f.store.Count(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)
			})
		})
	})
}

func TestService_Notifications(t *testing.T) {
	ctx := context.Background()

	Convey("Given a webhook receiver", t, func() {
		var hits atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		f := newFixture(t, service.WithNotifier(notify.NewManager(notify.NewWebhook(srv.URL, "secret"))))

		Convey("A published run with over-cap data notifies once", func() {
			sum, err := f.svc.Rebuild(ctx, service.RebuildOptions{})
			So(err, ShouldBeNil)
			So(sum.Notified, ShouldBeTrue)
			So(hits.Load(), ShouldEqual, 1)
		})

		Convey("A dry run does not notify", func() {
			_, err := f.svc.Rebuild(ctx, service.RebuildOptions{DryRun: true})
			So(err, ShouldBeNil)
			So(hits.Load(), ShouldEqual, 0)
		})
	})

	Convey("A failing receiver never fails the run", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		f := newFixture(t, service.WithNotifier(notify.NewManager(notify.NewWebhook(srv.URL, ""))))
		sum, err := f.svc.Rebuild(ctx, service.RebuildOptions{})
		So(err, ShouldBeNil)
		So(sum.Published, ShouldBeTrue)
		So(sum.Notified, ShouldBeFalse)
	})
}

func TestService_Weekly(t *testing.T) {
	ctx := context.Background()
	week1 := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	week2 := week1.AddDate(0, 0, 7)

	Convey("Given a populated source", t, func() {
		f := newFixture(t)

		Convey("An unknown mode is rejected", func() {
			_, err := f.svc.Weekly(ctx, service.Mode("monthly"), week1)
			So(errors.Is(err, service.ErrUnknownMode), ShouldBeTrue)
		})

		Convey("A snapshot-only job captures once per date", func() {
			res, err := f.svc.Weekly(ctx, service.ModeSnapshotOnly, week1)
			So(err, ShouldBeNil)
			So(res.Run, ShouldBeNil)
			So(res.Snapshot.Skipped, ShouldBeFalse)
			So(res.Snapshot.Entities, ShouldEqual, 1)

			again, err := f.svc.CaptureSnapshot(ctx, week1)
			So(err, ShouldBeNil)
			So(again.Skipped, ShouldBeTrue)
		})

		Convey("Full jobs score the counter growth since the prior week", func() {
			res, err := f.svc.Weekly(ctx, service.ModeFull, week1)
			So(err, ShouldBeNil)
			So(res.Snapshot, ShouldNotBeNil)
			So(res.Run.Published, ShouldBeTrue)
			rec, err := f.svc.Record(ctx, 1)
			So(err, ShouldBeNil)
			So(rec.Factors["F18"], ShouldEqual, 0)

			f.src.SetCounters(1, model.Counters{Goals: 13, Assists: 4, Views: 450})
			res, err = f.svc.Weekly(ctx, service.ModeFull, week2)
			So(err, ShouldBeNil)
			So(res.Run.Mode, ShouldEqual, "full")

			rec, err = f.svc.Record(ctx, 1)
			So(err, ShouldBeNil)
			So(rec.Factors["F18"], ShouldEqual, 120)
			So(rec.Factors["F19"], ShouldEqual, 0)
			So(rec.Factors["F25"], ShouldEqual, 150)
		})

		Convey("A delta-only job does not capture", func() {
			res, err := f.svc.Weekly(ctx, service.ModeDeltaOnly, week1)
			So(err, ShouldBeNil)
			So(res.Snapshot, ShouldBeNil)
			So(res.Run.Published, ShouldBeTrue)

			stored, err := f.store.HasSnapshot(ctx, week1)
			So(err, ShouldBeNil)
			So(stored, ShouldBeFalse)
		})

		Convey("A dry-run job neither captures nor publishes", func() {
			res, err := f.svc.Weekly(ctx, service.ModeDryRun, week1)
			So(err, ShouldBeNil)
			So(res.Snapshot, ShouldBeNil)
			So(res.Run.DryRun, ShouldBeTrue)
			So(res.Run.Published, ShouldBeFalse)
		})
	})
}

func TestService_StartStop(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service with a published run", t, func() {
		f := newFixture(t, service.WithRefreshInterval(10*time.Millisecond))
		_, err := f.svc.Rebuild(ctx, service.RebuildOptions{})
		So(err, ShouldBeNil)

		Convey("Starting loads the leaderboard and stopping is idempotent", func() {
			So(f.svc.Start(ctx), ShouldBeNil)
			st, err := f.svc.GetStats(ctx)
			So(err, ShouldBeNil)
			So(st.Started, ShouldBeTrue)
			So(st.LeaderboardSize, ShouldEqual, 3)

			f.svc.Stop()
			f.svc.Stop()
			st, err = f.svc.GetStats(ctx)
			So(err, ShouldBeNil)
			So(st.Started, ShouldBeFalse)
		})
	})
}
